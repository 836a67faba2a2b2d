package entries

import (
	"context"

	"github.com/dmitrijs2005/pubflow/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, id string) (*models.Entry, error)
	FindBySlug(ctx context.Context, scopeID, urlTitle string) (*models.Entry, error)
	ListByScope(ctx context.Context, scopeID string) ([]*models.Entry, error)
	Create(ctx context.Context, entry *models.Entry) error
	Update(ctx context.Context, entry *models.Entry) error
	UpdateStatus(ctx context.Context, entry *models.Entry) error
	UpdateNotifiedTargets(ctx context.Context, id string, targets models.TargetSet) error
	AddNotifiedTargets(ctx context.Context, id string, targets models.TargetSet) (models.TargetSet, error)
	Delete(ctx context.Context, id string) error
}
