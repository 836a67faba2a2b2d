// Package activities is the social activity log. Recording an add_entry
// activity is idempotent per entry: the activities_add_once_idx partial index
// keeps at most one, and a duplicate insert is silently skipped.
package activities

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/pubflow/internal/dbx"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Record appends an activity event.
func (r *PostgresRepository) Record(ctx context.Context, actorID, scopeID, entityType, entryID string, kind models.ActivityKind) error {
	query := `
		INSERT INTO activities (actor_id, scope_id, entity_type, entry_id, kind)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_type, entry_id) WHERE kind = 'add_entry' DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, actorID, scopeID, entityType, entryID, string(kind)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListByEntry returns the activities of one entry in insertion order.
func (r *PostgresRepository) ListByEntry(ctx context.Context, entityType, entryID string) ([]*models.Activity, error) {
	query := `
		SELECT id, actor_id, scope_id, entity_type, entry_id, kind, created_at
		FROM activities
		WHERE entity_type = $1 AND entry_id = $2
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, entityType, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to select activities: %w", err)
	}
	defer rows.Close()

	var result []*models.Activity
	for rows.Next() {
		var a models.Activity
		var kind string
		if err := rows.Scan(&a.ID, &a.ActorID, &a.ScopeID, &a.EntityType, &a.EntryID, &kind, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Kind = models.ActivityKind(kind)
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SetCountersEnabled suspends or resumes the activity counters of an entry.
func (r *PostgresRepository) SetCountersEnabled(ctx context.Context, entityType, entryID string, enabled bool) error {
	query := `
		INSERT INTO activity_counters (entity_type, entry_id, enabled)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_type, entry_id)
		DO UPDATE SET enabled = EXCLUDED.enabled
	`
	if _, err := r.db.ExecContext(ctx, query, entityType, entryID, enabled); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteByEntry purges the activities and counters of an entry.
func (r *PostgresRepository) DeleteByEntry(ctx context.Context, entityType, entryID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM activities WHERE entity_type = $1 AND entry_id = $2`, entityType, entryID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM activity_counters WHERE entity_type = $1 AND entry_id = $2`, entityType, entryID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
