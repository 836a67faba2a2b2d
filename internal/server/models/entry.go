// Package models holds the domain types of the publication engine.
package models

import (
	"strings"
	"time"
)

// Entity types used when talking to collaborators that track several kinds
// of content (activity log, assets, subscriptions).
const (
	EntityType      = "blogs_entry"
	ScopeEntityType = "blogs_scope"
)

// Entry is a publishable blog entry.
type Entry struct {
	ID        string
	ScopeID   string
	OwnerID   string
	OwnerName string

	Title       string
	Description string
	Body        string
	DisplayDate time.Time

	// URLTitle is the slug, unique within ScopeID.
	URLTitle string

	AllowPingbacks  bool
	AllowTrackbacks bool

	Status           Status
	StatusByUserID   string
	StatusByUserName string
	StatusDate       time.Time

	// NotifiedTargets is the idempotency ledger of successful trackbacks.
	NotifiedTargets TargetSet

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsApproved reports whether the entry is publicly visible.
func (e *Entry) IsApproved() bool {
	return e.Status == StatusApproved
}

// EntryInput carries the caller-editable fields of an entry.
type EntryInput struct {
	ScopeID         string
	Title           string
	Description     string
	Body            string
	DisplayDate     time.Time
	AllowPingbacks  bool
	AllowTrackbacks bool
}

// Actor identifies who performs an operation.
type Actor struct {
	ID   string
	Name string
}

// URL returns the canonical public URL of the entry under a scope base URL,
// or "" when base is empty.
func (e *Entry) URL(base string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/-/blogs/" + e.URLTitle
}
