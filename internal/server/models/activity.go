package models

import "time"

// ActivityKind is the type of a social activity event.
type ActivityKind string

const (
	ActivityAddEntry         ActivityKind = "add_entry"
	ActivityUpdateEntry      ActivityKind = "update_entry"
	ActivityMoveToTrash      ActivityKind = "move_to_trash"
	ActivityRestoreFromTrash ActivityKind = "restore_from_trash"
)

type Activity struct {
	ID         int64
	ActorID    string
	ScopeID    string
	EntityType string
	EntryID    string
	Kind       ActivityKind
	CreatedAt  time.Time
}
