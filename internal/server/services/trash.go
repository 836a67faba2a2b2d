package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pubflow/internal/common"
	"github.com/dmitrijs2005/pubflow/internal/dbx"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
)

// MoveEntryToTrash moves an entry to IN_TRASH and records the status it
// held so RestoreEntryFromTrash can replay it. A PENDING entry loses its
// workflow instance and is restored as DRAFT_FROM_APPROVED when it was
// submitted as an edit of an approved entry, as DRAFT otherwise.
func (s *EntryService) MoveEntryToTrash(ctx context.Context, actor models.Actor, entryID string) (*models.Entry, error) {
	entry, err := s.repomanager.Entries(s.db).Get(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("error loading entry: %w", err)
	}
	return s.moveToTrash(ctx, actor, entry)
}

// MoveEntriesToTrash trashes every entry of a scope. Entries already in the
// trash are skipped.
func (s *EntryService) MoveEntriesToTrash(ctx context.Context, actor models.Actor, scopeID string) error {
	list, err := s.repomanager.Entries(s.db).ListByScope(ctx, scopeID)
	if err != nil {
		return fmt.Errorf("error listing entries: %w", err)
	}
	for _, entry := range list {
		if entry.Status == models.StatusInTrash {
			continue
		}
		if _, err := s.moveToTrash(ctx, actor, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *EntryService) moveToTrash(ctx context.Context, actor models.Actor, entry *models.Entry) (*models.Entry, error) {
	oldStatus := entry.Status
	if oldStatus == models.StatusInTrash {
		return nil, fmt.Errorf("%w: entry %s is already in the trash", common.ErrInvalidTransition, entry.ID)
	}

	rec := &models.TrashRecord{
		EntryID:   entry.ID,
		ScopeID:   entry.ScopeID,
		ActorID:   actor.ID,
		OldStatus: oldStatus,
		TrashedAt: nowFunc().UTC(),
	}

	_, bookkeepingErr := s.transition(ctx, actor, entry, models.StatusInTrash, models.TransitionContext{}, func(ctx context.Context, tx dbx.DBTX) error {
		if oldStatus == models.StatusPending {
			collapsed, err := s.cancelWorkflow(ctx, tx, entry.ID)
			if err != nil {
				return err
			}
			rec.OldStatus = collapsed
		}
		return s.repomanager.Trash(tx).Put(ctx, rec)
	})
	if bookkeepingErr != nil && entry.Status != models.StatusInTrash {
		return nil, bookkeepingErr
	}

	activities := s.repomanager.Activities(s.db)
	if err := activities.Record(ctx, actor.ID, entry.ScopeID, models.EntityType, entry.ID, models.ActivityMoveToTrash); err != nil {
		return entry, s.bookkeepingFailed(ctx, entry, "activity", err)
	}
	if err := activities.SetCountersEnabled(ctx, models.EntityType, entry.ID, false); err != nil {
		return entry, s.bookkeepingFailed(ctx, entry, "activity", err)
	}

	s.logger.Info(ctx, "entry moved to trash", "entry_id", entry.ID, "restores_to", rec.OldStatus)
	return entry, bookkeepingErr
}

// cancelWorkflow deletes the pending workflow instance of an entry and
// returns the draft status the entry collapses to.
func (s *EntryService) cancelWorkflow(ctx context.Context, tx dbx.DBTX, entryID string) (models.Status, error) {
	repo := s.repomanager.Workflows(tx)

	collapsed := models.StatusDraft
	wf, err := repo.GetByEntry(ctx, entryID)
	switch {
	case err == nil:
		if wf.Context.Update {
			collapsed = models.StatusDraftFromApproved
		}
	case errors.Is(err, common.ErrorNotFound):
		s.logger.Warn(ctx, "pending entry has no workflow instance", "entry_id", entryID)
	default:
		return "", fmt.Errorf("error loading workflow instance: %w", err)
	}

	if err := repo.DeleteByEntry(ctx, entryID); err != nil {
		return "", fmt.Errorf("error deleting workflow instance: %w", err)
	}
	return collapsed, nil
}

// RestoreEntryFromTrash replays the status recorded when the entry was
// trashed. The trash record is single use: a second restore fails with
// common.ErrNotInTrash.
func (s *EntryService) RestoreEntryFromTrash(ctx context.Context, actor models.Actor, entryID string) (*models.Entry, error) {
	rec, err := s.repomanager.Trash(s.db).Get(ctx, entryID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: %s", common.ErrNotInTrash, entryID)
		}
		return nil, fmt.Errorf("error loading trash record: %w", err)
	}

	entry, err := s.repomanager.Entries(s.db).Get(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("error loading entry: %w", err)
	}
	if entry.Status != models.StatusInTrash {
		return nil, fmt.Errorf("%w: entry %s is %s", common.ErrNotInTrash, entryID, entry.Status)
	}

	_, err = s.transition(ctx, actor, entry, rec.OldStatus, models.TransitionContext{}, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Trash(tx).Delete(ctx, entryID)
	})
	if err != nil && entry.Status == models.StatusInTrash {
		return nil, err
	}
	bookkeepingErr := err

	activities := s.repomanager.Activities(s.db)
	if err := activities.SetCountersEnabled(ctx, models.EntityType, entry.ID, true); err != nil {
		return entry, s.bookkeepingFailed(ctx, entry, "activity", err)
	}
	if err := activities.Record(ctx, actor.ID, entry.ScopeID, models.EntityType, entry.ID, models.ActivityRestoreFromTrash); err != nil {
		return entry, s.bookkeepingFailed(ctx, entry, "activity", err)
	}

	s.logger.Info(ctx, "entry restored from trash", "entry_id", entry.ID, "status", entry.Status)
	return entry, bookkeepingErr
}
