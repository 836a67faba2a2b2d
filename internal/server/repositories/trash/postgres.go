// Package trash stores the pre-trash status of entries so that a restore can
// replay it.
package trash

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

// Put records rec, replacing any older record for the same entry.
func (r *PostgresRepository) Put(ctx context.Context, rec *models.TrashRecord) error {
	query := `
		INSERT INTO trash_records (entry_id, scope_id, actor_id, old_status, trashed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entry_id)
		DO UPDATE SET scope_id = EXCLUDED.scope_id, actor_id = EXCLUDED.actor_id,
			old_status = EXCLUDED.old_status, trashed_at = EXCLUDED.trashed_at
	`
	if _, err := r.db.ExecContext(ctx, query,
		rec.EntryID, rec.ScopeID, rec.ActorID, string(rec.OldStatus), rec.TrashedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the trash record of entryID or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, entryID string) (*models.TrashRecord, error) {
	query := `
		SELECT entry_id, scope_id, actor_id, old_status, trashed_at
		FROM trash_records
		WHERE entry_id = $1
	`
	rec := &models.TrashRecord{}
	var status string
	err := r.db.QueryRowContext(ctx, query, entryID).
		Scan(&rec.EntryID, &rec.ScopeID, &rec.ActorID, &status, &rec.TrashedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	rec.OldStatus = models.Status(status)
	return rec, nil
}

// Delete removes the record; deleting a missing record is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, entryID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM trash_records WHERE entry_id = $1`, entryID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
