package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pubflow/internal/common"
	"github.com/dmitrijs2005/pubflow/internal/dbx"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
	"github.com/google/uuid"
)

// submit publishes entry directly when auto-approval is on. Otherwise the
// entry becomes PENDING and a workflow instance keeps tctx until the
// approver calls CompleteWorkflow.
func (s *EntryService) submit(ctx context.Context, actor models.Actor, entry *models.Entry, tctx models.TransitionContext) (*models.Entry, error) {
	if s.autoApprove {
		if _, err := s.transition(ctx, actor, entry, models.StatusApproved, tctx, nil); err != nil {
			return entry, err
		}
		return entry, nil
	}

	wf := &models.WorkflowInstance{
		ID:      uuid.NewString(),
		EntryID: entry.ID,
		ScopeID: entry.ScopeID,
		Context: tctx,
	}
	_, err := s.transition(ctx, actor, entry, models.StatusPending, tctx, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Workflows(tx).Create(ctx, wf)
	})
	if err != nil {
		return entry, err
	}
	s.logger.Info(ctx, "entry submitted for approval", "entry_id", entry.ID, "workflow_id", wf.ID)
	return entry, nil
}

// CompleteWorkflow applies the approver's decision on a pending entry. The
// context stored at submission is replayed, so an approved edit is announced
// as an update. A rejected entry goes back to DRAFT_FROM_APPROVED when it was
// an edit of an approved entry, to DRAFT otherwise.
func (s *EntryService) CompleteWorkflow(ctx context.Context, actor models.Actor, entryID string, approved bool) (*models.Entry, error) {
	wf, err := s.repomanager.Workflows(s.db).GetByEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: %s", common.ErrNoWorkflow, entryID)
		}
		return nil, fmt.Errorf("error loading workflow instance: %w", err)
	}

	entry, err := s.repomanager.Entries(s.db).Get(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("error loading entry: %w", err)
	}
	if entry.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: entry %s is %s", common.ErrNoWorkflow, entryID, entry.Status)
	}

	target := models.StatusApproved
	if !approved {
		target = models.StatusDraft
		if wf.Context.Update {
			target = models.StatusDraftFromApproved
		}
	}

	_, err = s.transition(ctx, actor, entry, target, wf.Context, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Workflows(tx).DeleteByEntry(ctx, entryID)
	})
	if err != nil {
		return entry, err
	}
	s.logger.Info(ctx, "workflow completed", "entry_id", entryID, "workflow_id", wf.ID, "approved", approved)
	return entry, nil
}
