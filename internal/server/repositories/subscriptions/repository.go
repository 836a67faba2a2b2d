package subscriptions

import "context"

type Repository interface {
	Add(ctx context.Context, userID, entityType, entityID string) error
	Remove(ctx context.Context, userID, entityType, entityID string) error
	ListSubscribers(ctx context.Context, entityType, entityID string) ([]string, error)
	DeleteByEntity(ctx context.Context, entityType, entityID string) error
}
