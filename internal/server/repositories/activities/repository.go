package activities

import (
	"context"

	"github.com/dmitrijs2005/pubflow/internal/server/models"
)

type Repository interface {
	Record(ctx context.Context, actorID, scopeID, entityType, entryID string, kind models.ActivityKind) error
	ListByEntry(ctx context.Context, entityType, entryID string) ([]*models.Activity, error)
	SetCountersEnabled(ctx context.Context, entityType, entryID string, enabled bool) error
	DeleteByEntry(ctx context.Context, entityType, entryID string) error
}
