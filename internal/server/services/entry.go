package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/pubflow/internal/common"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
	"github.com/google/uuid"
)

var nowFunc = time.Now

// validate rejects malformed input before anything is written.
func (s *EntryService) validate(in models.EntryInput, override string) error {
	if in.Title == "" {
		return common.ErrEmptyTitle
	}
	if s.maxTitleLength > 0 && utf8.RuneCountInString(in.Title) > s.maxTitleLength {
		return fmt.Errorf("%w: %d characters max", common.ErrTitleTooLong, s.maxTitleLength)
	}
	if in.Body == "" {
		return common.ErrEmptyBody
	}
	if override != "" {
		if len(override) > s.slugs.MaxLength() {
			return fmt.Errorf("%w: longer than %d", common.ErrInvalidURLTitle, s.slugs.MaxLength())
		}
		if s.slugs.Trusted(override) {
			if err := s.slugs.ValidateOverride(override); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddEntry creates a draft entry with a freshly resolved slug and, unless
// tctx.SaveDraft is set, submits it for publication.
func (s *EntryService) AddEntry(ctx context.Context, actor models.Actor, in models.EntryInput, tctx models.TransitionContext) (*models.Entry, error) {
	if in.ScopeID == "" {
		return nil, common.ErrEmptyScope
	}
	if err := s.validate(in, tctx.URLTitle); err != nil {
		return nil, err
	}

	now := nowFunc().UTC()
	entry := &models.Entry{
		ID:               uuid.NewString(),
		ScopeID:          in.ScopeID,
		OwnerID:          actor.ID,
		OwnerName:        actor.Name,
		Status:           models.StatusDraft,
		StatusByUserID:   actor.ID,
		StatusByUserName: actor.Name,
		StatusDate:       now,
		NotifiedTargets:  models.NewTargetSet(),
	}
	applyInput(entry, in, now)

	repo := s.repomanager.Entries(s.db)
	err := s.claimSlug(ctx, entry, "", tctx.URLTitle, func(ctx context.Context) error {
		return repo.Create(ctx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("error creating entry: %w", err)
	}

	if err := s.assets.Register(ctx, entry); err != nil {
		s.metrics.RecordBookkeepingFailure("asset")
		return entry, fmt.Errorf("error registering asset: %w", err)
	}

	s.logger.Info(ctx, "entry added", "entry_id", entry.ID, "scope_id", entry.ScopeID, "url_title", entry.URLTitle)

	tctx.Command = models.CommandAdd
	if tctx.SaveDraft {
		return entry, nil
	}
	return s.submit(ctx, actor, entry, tctx)
}

// UpdateEntry edits the content of an entry. An approved entry drops to
// DRAFT_FROM_APPROVED until it is approved again.
func (s *EntryService) UpdateEntry(ctx context.Context, actor models.Actor, entryID string, in models.EntryInput, tctx models.TransitionContext) (*models.Entry, error) {
	if err := s.validate(in, tctx.URLTitle); err != nil {
		return nil, err
	}

	repo := s.repomanager.Entries(s.db)
	entry, err := repo.Get(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("error loading entry: %w", err)
	}
	if entry.Status == models.StatusInTrash {
		return nil, fmt.Errorf("%w: entry %s is in the trash", common.ErrInvalidTransition, entryID)
	}

	oldStatus := entry.Status
	oldSlug := entry.URLTitle
	now := nowFunc().UTC()

	// the scope is fixed at creation
	in.ScopeID = entry.ScopeID
	applyInput(entry, in, now)

	entry.Status = models.StatusAfterEdit(oldStatus)
	if entry.Status != oldStatus {
		entry.StatusByUserID = actor.ID
		entry.StatusByUserName = actor.Name
		entry.StatusDate = now
	}

	err = s.claimSlug(ctx, entry, oldSlug, tctx.URLTitle, func(ctx context.Context) error {
		return repo.Update(ctx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("error updating entry: %w", err)
	}
	if entry.Status != oldStatus {
		s.metrics.RecordTransition(oldStatus.String(), entry.Status.String())
	}

	if err := s.assets.Register(ctx, entry); err != nil {
		s.metrics.RecordBookkeepingFailure("asset")
		return entry, fmt.Errorf("error registering asset: %w", err)
	}
	if oldStatus == models.StatusApproved {
		if err := s.index.Remove(ctx, entry.ID); err != nil {
			s.metrics.RecordBookkeepingFailure("index")
			return entry, fmt.Errorf("error removing entry from index: %w", err)
		}
	}

	s.logger.Info(ctx, "entry updated", "entry_id", entry.ID, "status", entry.Status, "url_title", entry.URLTitle)

	tctx.Command = models.CommandUpdate
	if entry.URLTitle != oldSlug {
		tctx.RenotifyPrevious = true
	}
	if entry.Status != models.StatusDraft {
		tctx.Update = true
	}
	if tctx.SaveDraft {
		return entry, nil
	}
	return s.submit(ctx, actor, entry, tctx)
}

// GetEntry returns the entry with the given id.
func (s *EntryService) GetEntry(ctx context.Context, entryID string) (*models.Entry, error) {
	entry, err := s.repomanager.Entries(s.db).Get(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("error loading entry: %w", err)
	}
	return entry, nil
}

// GetEntryBySlug returns the entry owning urlTitle in scopeID.
func (s *EntryService) GetEntryBySlug(ctx context.Context, scopeID, urlTitle string) (*models.Entry, error) {
	entry, err := s.repomanager.Entries(s.db).FindBySlug(ctx, scopeID, urlTitle)
	if err != nil {
		return nil, fmt.Errorf("error loading entry: %w", err)
	}
	return entry, nil
}

// claimSlug resolves a slug for entry and runs write. A concurrent writer
// can take the same slug between resolution and write; the store reports
// that as ErrSlugTaken and resolution runs again.
func (s *EntryService) claimSlug(ctx context.Context, entry *models.Entry, previous, override string, write func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		urlTitle, err := s.slugs.Resolve(ctx, entry.ScopeID, entry.ID, entry.Title, previous, override)
		if err != nil {
			return err
		}
		entry.URLTitle = urlTitle

		err = write(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, common.ErrSlugTaken) {
			return err
		}
		if attempt >= s.slugClaimRetries {
			return fmt.Errorf("%w: %q lost %d times", common.ErrSlugConflict, urlTitle, attempt+1)
		}
		s.metrics.RecordSlugClaimRetry()
		s.logger.Debug(ctx, "url title taken concurrently, resolving again", "entry_id", entry.ID, "url_title", urlTitle)
		// a pinned previous slug that is now taken must be derived again
		previous = ""
	}
}

func applyInput(entry *models.Entry, in models.EntryInput, now time.Time) {
	entry.ScopeID = in.ScopeID
	entry.Title = in.Title
	entry.Description = in.Description
	entry.Body = in.Body
	entry.DisplayDate = in.DisplayDate
	if entry.DisplayDate.IsZero() {
		entry.DisplayDate = now
	}
	entry.AllowPingbacks = in.AllowPingbacks
	entry.AllowTrackbacks = in.AllowTrackbacks
	entry.UpdatedAt = now
}
