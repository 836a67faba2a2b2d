package models

import "time"

// WorkflowInstance links an entry to the approval process it was submitted
// to. Context is replayed when the approver decides.
type WorkflowInstance struct {
	ID        string
	EntryID   string
	ScopeID   string
	Context   TransitionContext
	CreatedAt time.Time
}
