package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/pubflow/internal/dbx"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
)

// DeleteEntry removes an entry for good and asks every collaborator to
// purge what it keeps about it.
func (s *EntryService) DeleteEntry(ctx context.Context, entryID string) error {
	entry, err := s.repomanager.Entries(s.db).Get(ctx, entryID)
	if err != nil {
		return fmt.Errorf("error loading entry: %w", err)
	}
	return s.deleteEntry(ctx, entry)
}

// DeleteEntries deletes every entry of a scope.
func (s *EntryService) DeleteEntries(ctx context.Context, scopeID string) error {
	list, err := s.repomanager.Entries(s.db).ListByScope(ctx, scopeID)
	if err != nil {
		return fmt.Errorf("error listing entries: %w", err)
	}
	for _, entry := range list {
		if err := s.deleteEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *EntryService) deleteEntry(ctx context.Context, entry *models.Entry) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Entries(tx).Delete(ctx, entry.ID); err != nil {
			return fmt.Errorf("error deleting entry: %w", err)
		}
		if err := s.repomanager.Subscriptions(tx).DeleteByEntity(ctx, models.EntityType, entry.ID); err != nil {
			return fmt.Errorf("error deleting subscriptions: %w", err)
		}
		if err := s.repomanager.Stats(tx).Recount(ctx, entry.ScopeID, entry.OwnerID); err != nil {
			return fmt.Errorf("error updating stats: %w", err)
		}
		if err := s.repomanager.Activities(tx).DeleteByEntry(ctx, models.EntityType, entry.ID); err != nil {
			return fmt.Errorf("error deleting activities: %w", err)
		}
		if err := s.repomanager.Trash(tx).Delete(ctx, entry.ID); err != nil {
			return fmt.Errorf("error deleting trash record: %w", err)
		}
		if err := s.repomanager.Workflows(tx).DeleteByEntry(ctx, entry.ID); err != nil {
			return fmt.Errorf("error deleting workflow instance: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.assets.Delete(ctx, models.EntityType, entry.ID); err != nil {
		return s.bookkeepingFailed(ctx, entry, "asset", err)
	}
	if err := s.index.Remove(ctx, entry.ID); err != nil {
		return s.bookkeepingFailed(ctx, entry, "index", err)
	}

	s.logger.Info(ctx, "entry deleted", "entry_id", entry.ID, "scope_id", entry.ScopeID)
	return nil
}
