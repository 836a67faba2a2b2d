// Package stats maintains the per-scope author statistics derived from
// approved entries.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pubflow/internal/common"
	"github.com/dmitrijs2005/pubflow/internal/dbx"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Recount recomputes the entry count and last post date of ownerID in
// scopeID from its approved entries.
func (r *PostgresRepository) Recount(ctx context.Context, scopeID, ownerID string) error {
	query := `
		INSERT INTO owner_stats (scope_id, owner_id, entry_count, last_post_date)
		SELECT $1, $2, count(*), max(display_date)
		FROM entries
		WHERE scope_id = $1 AND owner_id = $2 AND status = 'approved'
		ON CONFLICT (scope_id, owner_id)
		DO UPDATE SET entry_count = EXCLUDED.entry_count, last_post_date = EXCLUDED.last_post_date
	`
	if _, err := r.db.ExecContext(ctx, query, scopeID, ownerID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, scopeID, ownerID string) (*models.OwnerStats, error) {
	query := `
		SELECT scope_id, owner_id, entry_count, last_post_date
		FROM owner_stats
		WHERE scope_id = $1 AND owner_id = $2
	`
	s := &models.OwnerStats{}
	var last sql.NullTime
	err := r.db.QueryRowContext(ctx, query, scopeID, ownerID).Scan(&s.ScopeID, &s.OwnerID, &s.EntryCount, &last)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if last.Valid {
		s.LastPostDate = &last.Time
	}
	return s, nil
}
