package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/pubflow/internal/dbx"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/activities"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/entries"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/stats"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/subscriptions"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/trash"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/workflows"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Entries(db dbx.DBTX) entries.Repository
	Trash(db dbx.DBTX) trash.Repository
	Activities(db dbx.DBTX) activities.Repository
	Stats(db dbx.DBTX) stats.Repository
	Subscriptions(db dbx.DBTX) subscriptions.Repository
	Workflows(db dbx.DBTX) workflows.Repository
}
