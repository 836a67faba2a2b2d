// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/pubflow/internal/dbx"
	"github.com/dmitrijs2005/pubflow/internal/server/migrations"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/activities"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/entries"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/stats"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/subscriptions"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/trash"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/workflows"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Entries returns an entries.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Entries(db dbx.DBTX) entries.Repository {
	return entries.NewPostgresRepository(db)
}

// Trash returns a trash.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Trash(db dbx.DBTX) trash.Repository {
	return trash.NewPostgresRepository(db)
}

// Activities returns an activities.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Activities(db dbx.DBTX) activities.Repository {
	return activities.NewPostgresRepository(db)
}

// Stats returns a stats.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Stats(db dbx.DBTX) stats.Repository {
	return stats.NewPostgresRepository(db)
}

// Subscriptions returns a subscriptions.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Subscriptions(db dbx.DBTX) subscriptions.Repository {
	return subscriptions.NewPostgresRepository(db)
}

// Workflows returns a workflows.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Workflows(db dbx.DBTX) workflows.Repository {
	return workflows.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{}, nil
}
