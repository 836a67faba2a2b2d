package stats

import (
	"context"

	"github.com/dmitrijs2005/pubflow/internal/server/models"
)

type Repository interface {
	Recount(ctx context.Context, scopeID, ownerID string) error
	Get(ctx context.Context, scopeID, ownerID string) (*models.OwnerStats, error)
}
