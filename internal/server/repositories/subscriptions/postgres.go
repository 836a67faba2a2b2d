// Package subscriptions stores which users follow a scope or an entry.
package subscriptions

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/pubflow/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Add subscribes userID; subscribing twice is a no-op.
func (r *PostgresRepository) Add(ctx context.Context, userID, entityType, entityID string) error {
	query := `
		INSERT INTO subscriptions (user_id, entity_type, entity_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, userID, entityType, entityID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Remove(ctx context.Context, userID, entityType, entityID string) error {
	query := `DELETE FROM subscriptions WHERE user_id = $1 AND entity_type = $2 AND entity_id = $3`
	if _, err := r.db.ExecContext(ctx, query, userID, entityType, entityID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListSubscribers returns subscriber user IDs in a stable order.
func (r *PostgresRepository) ListSubscribers(ctx context.Context, entityType, entityID string) ([]string, error) {
	query := `
		SELECT user_id FROM subscriptions
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY user_id
	`
	rows, err := r.db.QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to select subscriptions: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		result = append(result, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) DeleteByEntity(ctx context.Context, entityType, entityID string) error {
	query := `DELETE FROM subscriptions WHERE entity_type = $1 AND entity_id = $2`
	if _, err := r.db.ExecContext(ctx, query, entityType, entityID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
