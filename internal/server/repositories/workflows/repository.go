package workflows

import (
	"context"

	"github.com/dmitrijs2005/pubflow/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, wf *models.WorkflowInstance) error
	GetByEntry(ctx context.Context, entryID string) (*models.WorkflowInstance, error)
	DeleteByEntry(ctx context.Context, entryID string) error
}
