// Package workflows links entries to the approval workflow instance they
// were submitted to, together with the context to replay on decision.
package workflows

import (
	"context"
	"database/sql"
	"encoding/json"
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

// Create stores wf, replacing an older instance of the same entry.
func (r *PostgresRepository) Create(ctx context.Context, wf *models.WorkflowInstance) error {
	payload, err := json.Marshal(wf.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	query := `
		INSERT INTO workflow_instances (id, entry_id, scope_id, context)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entry_id)
		DO UPDATE SET id = EXCLUDED.id, scope_id = EXCLUDED.scope_id, context = EXCLUDED.context, created_at = now()
		RETURNING created_at
	`
	if err := r.db.QueryRowContext(ctx, query, wf.ID, wf.EntryID, wf.ScopeID, string(payload)).Scan(&wf.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByEntry returns the pending instance of entryID or common.ErrorNotFound.
func (r *PostgresRepository) GetByEntry(ctx context.Context, entryID string) (*models.WorkflowInstance, error) {
	query := `
		SELECT id, entry_id, scope_id, context, created_at
		FROM workflow_instances
		WHERE entry_id = $1
	`
	wf := &models.WorkflowInstance{}
	var payload []byte
	err := r.db.QueryRowContext(ctx, query, entryID).Scan(&wf.ID, &wf.EntryID, &wf.ScopeID, &payload, &wf.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(payload, &wf.Context); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	return wf, nil
}

// DeleteByEntry removes the instance link; a missing link is not an error.
func (r *PostgresRepository) DeleteByEntry(ctx context.Context, entryID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM workflow_instances WHERE entry_id = $1`, entryID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
