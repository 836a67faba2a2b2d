package models

import "time"

// TrashRecord remembers the status an entry had before it was trashed.
type TrashRecord struct {
	EntryID   string
	ScopeID   string
	ActorID   string
	OldStatus Status
	TrashedAt time.Time
}
