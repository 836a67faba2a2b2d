// Package linkback tells external sites that an entry links to them.
//
// Two styles are supported: pingbacks to every link discovered in the entry
// body, and trackbacks to a caller-supplied target list. Trackbacks are
// tracked in the entry's notified-target ledger: only targets that accepted
// the trackback are recorded, so a failed run can always be retried safely.
package linkback

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/pubflow/internal/server/models"
)

// Kind selects the link-back protocol of a delivery.
type Kind string

const (
	KindPingback   Kind = "pingback"
	KindTrackback  Kind = "trackback"
	KindSearchPing Kind = "search_ping"
)

var (
	// ErrNoEndpoint means the target does not advertise a pingback server.
	ErrNoEndpoint = errors.New("no pingback endpoint")
	// ErrRejected means the remote side answered with an error.
	ErrRejected = errors.New("link-back rejected")
)

// Payload is what gets sent to one target.
type Payload struct {
	Kind      Kind
	SourceURL string
	Title     string
	Excerpt   string
	BlogName  string
	// ChangesURL is the feed URL announced by search engine pings.
	ChangesURL string
}

// Transport delivers one link-back. Implementations bound each attempt with
// their own timeout.
type Transport interface {
	AttemptNotify(ctx context.Context, target string, payload Payload) error
}

// LedgerStore persists the notified-target ledger of an entry.
type LedgerStore interface {
	UpdateNotifiedTargets(ctx context.Context, entryID string, targets models.TargetSet) error
	AddNotifiedTargets(ctx context.Context, entryID string, targets models.TargetSet) (models.TargetSet, error)
}
