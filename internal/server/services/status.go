package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/pubflow/internal/common"
	"github.com/dmitrijs2005/pubflow/internal/dbx"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
	"github.com/dmitrijs2005/pubflow/internal/server/workers"
)

// UpdateStatus moves an entry to newStatus and runs the side effects of the
// transition. The status write is committed first; a failing bookkeeping
// step is returned but leaves the entry in its new status.
func (s *EntryService) UpdateStatus(ctx context.Context, actor models.Actor, entryID string, newStatus models.Status, tctx models.TransitionContext) (*models.Entry, error) {
	entry, err := s.repomanager.Entries(s.db).Get(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("error loading entry: %w", err)
	}
	if _, err := s.transition(ctx, actor, entry, newStatus, tctx, nil); err != nil {
		return entry, err
	}
	return entry, nil
}

// transition writes newStatus and runs bookkeeping. When inTx is set the
// status write and inTx share one database transaction. It returns the
// status the entry had before.
func (s *EntryService) transition(ctx context.Context, actor models.Actor, entry *models.Entry, newStatus models.Status, tctx models.TransitionContext, inTx func(ctx context.Context, tx dbx.DBTX) error) (models.Status, error) {
	if !newStatus.Valid() {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidStatus, newStatus)
	}
	oldStatus := entry.Status
	if !models.CanTransition(oldStatus, newStatus) {
		return oldStatus, fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, oldStatus, newStatus)
	}

	now := nowFunc().UTC()
	entry.Status = newStatus
	entry.StatusByUserID = actor.ID
	entry.StatusByUserName = actor.Name
	entry.StatusDate = now
	entry.UpdatedAt = now

	if err := s.writeStatus(ctx, entry, inTx); err != nil {
		entry.Status = oldStatus
		return oldStatus, fmt.Errorf("error updating status: %w", err)
	}
	s.metrics.RecordTransition(oldStatus.String(), newStatus.String())
	s.logger.Info(ctx, "entry status changed", "entry_id", entry.ID, "from", oldStatus, "to", newStatus, "actor_id", actor.ID)

	if newStatus == models.StatusApproved {
		return oldStatus, s.afterApprove(ctx, actor, entry, oldStatus, tctx)
	}
	return oldStatus, s.afterWithdraw(ctx, entry, oldStatus)
}

func (s *EntryService) writeStatus(ctx context.Context, entry *models.Entry, inTx func(ctx context.Context, tx dbx.DBTX) error) error {
	if inTx == nil {
		return s.repomanager.Entries(s.db).UpdateStatus(ctx, entry)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Entries(tx).UpdateStatus(ctx, entry); err != nil {
			return err
		}
		return inTx(ctx, tx)
	})
}

func (s *EntryService) afterApprove(ctx context.Context, actor models.Actor, entry *models.Entry, oldStatus models.Status, tctx models.TransitionContext) error {
	if err := s.repomanager.Stats(s.db).Recount(ctx, entry.ScopeID, entry.OwnerID); err != nil {
		return s.bookkeepingFailed(ctx, entry, "stats", err)
	}

	if oldStatus != models.StatusApproved {
		if err := s.assets.SetVisible(ctx, models.EntityType, entry.ID, true); err != nil {
			return s.bookkeepingFailed(ctx, entry, "asset", err)
		}

		if oldStatus != models.StatusInTrash {
			kind := models.ActivityAddEntry
			if tctx.Update {
				kind = models.ActivityUpdateEntry
			}
			if err := s.repomanager.Activities(s.db).Record(ctx, actor.ID, entry.ScopeID, models.EntityType, entry.ID, kind); err != nil {
				return s.bookkeepingFailed(ctx, entry, "activity", err)
			}
		}
	}

	if err := s.index.Reindex(ctx, entry); err != nil {
		return s.bookkeepingFailed(ctx, entry, "index", err)
	}

	if oldStatus != models.StatusInTrash {
		s.dispatchFanOut(ctx, entry, tctx)
	}
	return nil
}

func (s *EntryService) afterWithdraw(ctx context.Context, entry *models.Entry, oldStatus models.Status) error {
	if oldStatus == models.StatusApproved {
		if err := s.repomanager.Stats(s.db).Recount(ctx, entry.ScopeID, entry.OwnerID); err != nil {
			return s.bookkeepingFailed(ctx, entry, "stats", err)
		}
	}

	if entry.Status == models.StatusInTrash {
		if err := s.assets.MarkTrashed(ctx, models.EntityType, entry.ID); err != nil {
			return s.bookkeepingFailed(ctx, entry, "asset", err)
		}
	} else {
		if err := s.assets.SetVisible(ctx, models.EntityType, entry.ID, false); err != nil {
			return s.bookkeepingFailed(ctx, entry, "asset", err)
		}
	}

	if err := s.index.Remove(ctx, entry.ID); err != nil {
		return s.bookkeepingFailed(ctx, entry, "index", err)
	}
	return nil
}

func (s *EntryService) bookkeepingFailed(ctx context.Context, entry *models.Entry, step string, err error) error {
	s.metrics.RecordBookkeepingFailure(step)
	s.logger.Error(ctx, "bookkeeping failed", "entry_id", entry.ID, "status", entry.Status, "step", step, "error", err)
	return fmt.Errorf("%s bookkeeping for entry %s: %w", step, entry.ID, err)
}

// dispatchFanOut hands the notification fan-out of an approval to the
// worker pool. The task gets its own copy of the entry.
func (s *EntryService) dispatchFanOut(ctx context.Context, entry *models.Entry, tctx models.TransitionContext) {
	snapshot := *entry
	snapshot.NotifiedTargets = entry.NotifiedTargets.Clone()
	tctx.BaseURL = s.resolveBaseURL(tctx)
	tctx.ScopeName = s.resolveBlogName(tctx)

	err := s.dispatcher.Submit(ctx, workers.Task{
		Name: "fan-out:" + entry.ID,
		Run: func(ctx context.Context) error {
			s.fanOut(ctx, &snapshot, tctx)
			return nil
		},
	})
	if err != nil {
		s.logger.Warn(ctx, "fan-out not dispatched", "entry_id", entry.ID, "error", err)
	}
}

// fanOut notifies subscribers, pings links found in the body, then the
// caller-supplied targets minus those already pinged, then the blog search
// service. Every failure is logged and absorbed.
func (s *EntryService) fanOut(ctx context.Context, entry *models.Entry, tctx models.TransitionContext) {
	if err := s.subscribers.Notify(ctx, entry, tctx); err != nil {
		s.logger.Warn(ctx, "subscriber notification failed", "entry_id", entry.ID, "error", err)
	}

	if tctx.BaseURL == "" {
		s.logger.Debug(ctx, "no base url, link-backs skipped", "entry_id", entry.ID)
		return
	}
	entryURL := entry.URL(tctx.BaseURL)

	discovered := s.links.PingDiscovered(ctx, entry, entryURL)

	if err := s.links.PingTargets(ctx, entry, entryURL, tctx.ScopeName, tctx.Targets, tctx.RenotifyPrevious, discovered); err != nil {
		s.logger.Warn(ctx, "trackbacks failed", "entry_id", entry.ID, "error", err)
	}

	s.links.PingSearchEngine(ctx, entry, tctx.ScopeName, tctx.BaseURL)
}
