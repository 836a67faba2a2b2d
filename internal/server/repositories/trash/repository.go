package trash

import (
	"context"

	"github.com/dmitrijs2005/pubflow/internal/server/models"
)

type Repository interface {
	Put(ctx context.Context, rec *models.TrashRecord) error
	Get(ctx context.Context, entryID string) (*models.TrashRecord, error)
	Delete(ctx context.Context, entryID string) error
}
