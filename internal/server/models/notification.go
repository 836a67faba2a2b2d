package models

import "time"

// NotificationEvent selects the template set used for subscribers.
type NotificationEvent string

const (
	EventEntryAdded   NotificationEvent = "entry_added"
	EventEntryUpdated NotificationEvent = "entry_updated"
)

// NotificationJob is handed to the subscription delivery queue. Subject and
// Body are unrendered templates; rendering happens in the delivery worker.
type NotificationJob struct {
	ID               string            `json:"id"`
	EntryID          string            `json:"entry_id"`
	ScopeID          string            `json:"scope_id"`
	OwnerID          string            `json:"owner_id"`
	Event            NotificationEvent `json:"event"`
	Subject          string            `json:"subject"`
	Body             string            `json:"body"`
	FromName         string            `json:"from_name"`
	FromAddress      string            `json:"from_address"`
	Title            string            `json:"title"`
	Excerpt          string            `json:"excerpt"`
	StatusByUserName string            `json:"status_by_user_name"`
	EntryURL         string            `json:"entry_url"`
	Recipients       []string          `json:"recipients"`
	CreatedAt        time.Time         `json:"created_at"`
}
