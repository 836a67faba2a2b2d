package models

// Command tells the subscriber notifier whether an approval announces a new
// entry or an edit.
type Command string

const (
	CommandAdd    Command = "add"
	CommandUpdate Command = "update"
)

// TransitionContext is what a caller passes along with a write: it replaces
// a loosely-typed attribute bag with named fields.
type TransitionContext struct {
	Command Command `json:"command,omitempty"`

	// Update marks an edit-republish of a previously approved entry.
	Update bool `json:"update,omitempty"`

	// URLTitle is an explicit slug override.
	URLTitle string `json:"url_title,omitempty"`

	// Targets are caller-supplied trackback targets.
	Targets []string `json:"targets,omitempty"`

	// RenotifyPrevious resets the notified-target ledger so every target
	// notified before is attempted again.
	RenotifyPrevious bool `json:"renotify_previous,omitempty"`

	// BaseURL is the public display URL of the entry's scope.
	BaseURL string `json:"base_url,omitempty"`

	// ScopeName is the human-readable scope name sent as the blog name.
	ScopeName string `json:"scope_name,omitempty"`

	// SaveDraft keeps the entry as a draft instead of submitting it for
	// approval.
	SaveDraft bool `json:"save_draft,omitempty"`
}

// IsUpdate reports whether subscribers should get the "updated" message.
func (c TransitionContext) IsUpdate() bool {
	return c.Command == CommandUpdate || c.Update
}
