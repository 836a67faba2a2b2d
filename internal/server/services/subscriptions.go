package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/pubflow/internal/server/models"
)

// Subscribe makes userID receive notifications for new and updated entries
// of scopeID.
func (s *EntryService) Subscribe(ctx context.Context, userID, scopeID string) error {
	if err := s.repomanager.Subscriptions(s.db).Add(ctx, userID, models.ScopeEntityType, scopeID); err != nil {
		return fmt.Errorf("error subscribing: %w", err)
	}
	return nil
}

func (s *EntryService) Unsubscribe(ctx context.Context, userID, scopeID string) error {
	if err := s.repomanager.Subscriptions(s.db).Remove(ctx, userID, models.ScopeEntityType, scopeID); err != nil {
		return fmt.Errorf("error unsubscribing: %w", err)
	}
	return nil
}
