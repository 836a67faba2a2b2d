package models

import "time"

// OwnerStats is the denormalized per-scope posting summary of one author.
type OwnerStats struct {
	ScopeID      string
	OwnerID      string
	EntryCount   int
	LastPostDate *time.Time
}
