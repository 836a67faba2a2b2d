// Package entries provides the PostgreSQL-backed entry store. Slug uniqueness
// per scope is enforced by the entries_scope_url_title_key index; writes that
// would violate it fail with common.ErrSlugTaken.
package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pubflow/internal/common"
	"github.com/dmitrijs2005/pubflow/internal/dbx"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
)

const slugConstraint = "entries_scope_url_title_key"

const selectColumns = `id, scope_id, owner_id, owner_name, title, description, body, display_date,
		url_title, allow_pingbacks, allow_trackbacks, status, status_by_user_id, status_by_user_name,
		status_date, notified_targets, created_at, updated_at`

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.Entry, error) {
	e := &models.Entry{}
	var status string
	if err := row.Scan(
		&e.ID, &e.ScopeID, &e.OwnerID, &e.OwnerName, &e.Title, &e.Description, &e.Body, &e.DisplayDate,
		&e.URLTitle, &e.AllowPingbacks, &e.AllowTrackbacks, &status, &e.StatusByUserID, &e.StatusByUserName,
		&e.StatusDate, &e.NotifiedTargets, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	st, err := models.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: entry %s: %v", common.ErrorInternal, e.ID, err)
	}
	e.Status = st
	return e, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

// Get returns the entry with the given ID or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Entry, error) {
	query := `SELECT ` + selectColumns + ` FROM entries WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// FindBySlug returns the entry owning urlTitle in scopeID or common.ErrorNotFound.
func (r *PostgresRepository) FindBySlug(ctx context.Context, scopeID, urlTitle string) (*models.Entry, error) {
	query := `SELECT ` + selectColumns + ` FROM entries WHERE scope_id = $1 AND url_title = $2`
	return r.getOne(ctx, query, scopeID, urlTitle)
}

// ListByScope returns every entry of a scope, oldest first.
func (r *PostgresRepository) ListByScope(ctx context.Context, scopeID string) ([]*models.Entry, error) {
	query := `SELECT ` + selectColumns + ` FROM entries WHERE scope_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []*models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Create inserts a new entry. Timestamps are filled in from the database.
func (r *PostgresRepository) Create(ctx context.Context, entry *models.Entry) error {
	query := `
		INSERT INTO entries (id, scope_id, owner_id, owner_name, title, description, body, display_date,
			url_title, allow_pingbacks, allow_trackbacks, status, status_by_user_id, status_by_user_name,
			status_date, notified_targets)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		entry.ID, entry.ScopeID, entry.OwnerID, entry.OwnerName, entry.Title, entry.Description, entry.Body,
		entry.DisplayDate, entry.URLTitle, entry.AllowPingbacks, entry.AllowTrackbacks, string(entry.Status),
		entry.StatusByUserID, entry.StatusByUserName, entry.StatusDate, entry.NotifiedTargets,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, slugConstraint) {
			return common.ErrSlugTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update writes the editable content, slug and status of an entry.
func (r *PostgresRepository) Update(ctx context.Context, entry *models.Entry) error {
	query := `
		UPDATE entries SET title = $2, description = $3, body = $4, display_date = $5, url_title = $6,
			allow_pingbacks = $7, allow_trackbacks = $8, status = $9, status_by_user_id = $10,
			status_by_user_name = $11, status_date = $12, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		entry.ID, entry.Title, entry.Description, entry.Body, entry.DisplayDate, entry.URLTitle,
		entry.AllowPingbacks, entry.AllowTrackbacks, string(entry.Status), entry.StatusByUserID,
		entry.StatusByUserName, entry.StatusDate,
	).Scan(&entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		if dbx.IsUniqueViolation(err, slugConstraint) {
			return common.ErrSlugTaken
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpdateStatus persists only the lifecycle fields of an entry.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, entry *models.Entry) error {
	query := `
		UPDATE entries SET status = $2, status_by_user_id = $3, status_by_user_name = $4, status_date = $5,
			updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		entry.ID, string(entry.Status), entry.StatusByUserID, entry.StatusByUserName, entry.StatusDate)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// UpdateNotifiedTargets replaces the notified-target ledger of an entry.
func (r *PostgresRepository) UpdateNotifiedTargets(ctx context.Context, id string, targets models.TargetSet) error {
	query := `UPDATE entries SET notified_targets = $2 WHERE id = $1`
	if targets == nil {
		targets = models.TargetSet{}
	}
	res, err := r.db.ExecContext(ctx, query, id, targets)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// AddNotifiedTargets merges targets into the ledger in one statement and
// returns the resulting set.
func (r *PostgresRepository) AddNotifiedTargets(ctx context.Context, id string, targets models.TargetSet) (models.TargetSet, error) {
	query := `
		UPDATE entries SET notified_targets = (
			SELECT COALESCE(jsonb_agg(DISTINCT t ORDER BY t), '[]'::jsonb)
			FROM jsonb_array_elements_text(entries.notified_targets || $2::jsonb) AS t
		)
		WHERE id = $1
		RETURNING notified_targets
	`
	var merged models.TargetSet
	if err := r.db.QueryRowContext(ctx, query, id, targets).Scan(&merged); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return merged, nil
}

// Delete removes an entry row.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
