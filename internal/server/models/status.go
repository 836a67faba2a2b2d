package models

import (
	"fmt"

	"github.com/dmitrijs2005/pubflow/internal/common"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusPending           Status = "pending"
	StatusApproved          Status = "approved"
	StatusDraftFromApproved Status = "draft_from_approved"
	StatusInTrash           Status = "in_trash"
)

// transitions lists, for every status, the statuses it may move to.
// Re-applying the current status is allowed except for IN_TRASH: trashing
// twice is a conflict, restoring is the only way out of the trash.
var transitions = map[Status][]Status{
	StatusDraft:             {StatusDraft, StatusPending, StatusApproved, StatusInTrash},
	StatusPending:           {StatusPending, StatusApproved, StatusDraft, StatusDraftFromApproved, StatusInTrash},
	StatusApproved:          {StatusApproved, StatusDraftFromApproved, StatusInTrash},
	StatusDraftFromApproved: {StatusDraftFromApproved, StatusPending, StatusApproved, StatusDraft, StatusInTrash},
	StatusInTrash:           {StatusDraft, StatusPending, StatusApproved, StatusDraftFromApproved},
}

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidStatus, s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) String() string { return string(s) }

// IsDraft reports DRAFT and DRAFT_FROM_APPROVED alike.
func (s Status) IsDraft() bool {
	return s == StatusDraft || s == StatusDraftFromApproved
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StatusAfterEdit is the status an entry takes when its content is edited:
// an approved entry drops back to DRAFT_FROM_APPROVED, drafts and pending
// entries keep their status.
func StatusAfterEdit(current Status) Status {
	switch current {
	case StatusApproved:
		return StatusDraftFromApproved
	case StatusPending, StatusDraft, StatusDraftFromApproved:
		return current
	default:
		return StatusDraft
	}
}
