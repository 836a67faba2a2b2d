package linkback

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/pubflow/internal/htmlx"
	"github.com/dmitrijs2005/pubflow/internal/logging"
	"github.com/dmitrijs2005/pubflow/internal/server/metrics"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
)

// Config holds the link-back switches and limits.
type Config struct {
	PingbackEnabled   bool
	TrackbackEnabled  bool
	SearchPingEnabled bool
	SearchPingURL     string
	ExcerptLength     int
}

type Notifier struct {
	transport Transport
	ledger    LedgerStore
	cfg       Config
	metrics   *metrics.Metrics
	logger    logging.Logger
}

func NewNotifier(transport Transport, ledger LedgerStore, cfg Config, m *metrics.Metrics, logger logging.Logger) *Notifier {
	return &Notifier{
		transport: transport,
		ledger:    ledger,
		cfg:       cfg,
		metrics:   m,
		logger:    logger.With("module", "linkback"),
	}
}

// PingDiscovered sends a pingback to every absolute link in the entry body
// and returns the set of targets it attempted. Failures are logged and
// skipped.
func (n *Notifier) PingDiscovered(ctx context.Context, entry *models.Entry, entryURL string) models.TargetSet {
	attempted := models.TargetSet{}
	if !n.cfg.PingbackEnabled || !entry.AllowPingbacks || entryURL == "" {
		return attempted
	}

	links, err := htmlx.Links(entry.Body)
	if err != nil {
		n.logger.Warn(ctx, "cannot parse entry body for links", "entry_id", entry.ID, "error", err)
		return attempted
	}

	payload := Payload{Kind: KindPingback, SourceURL: entryURL}
	for _, target := range links {
		if target == entryURL {
			continue
		}
		attempted.Add(target)
		n.deliver(ctx, entry.ID, target, payload)
	}
	return attempted
}

// PingTargets sends trackbacks to the caller-supplied targets not already in
// the entry's ledger and not in skip. With renotify set, the ledger is first
// cleared durably and its prior contents are attempted again. Targets that
// accept the trackback are merged into the ledger in one write at the end.
//
// Only ledger persistence errors are returned; delivery failures are logged.
func (n *Notifier) PingTargets(ctx context.Context, entry *models.Entry, entryURL, blogName string, targets []string, renotify bool, skip models.TargetSet) error {
	if !n.cfg.TrackbackEnabled || !entry.AllowTrackbacks || entryURL == "" {
		return nil
	}

	candidates := models.NewTargetSet(targets...)
	notified := entry.NotifiedTargets.Clone()

	if renotify {
		candidates = candidates.Union(notified)
		notified = models.TargetSet{}
		if err := n.ledger.UpdateNotifiedTargets(ctx, entry.ID, notified); err != nil {
			return fmt.Errorf("reset notified targets: %w", err)
		}
		entry.NotifiedTargets = notified
	}

	pending := candidates.Difference(notified, skip)
	if pending.Len() == 0 {
		return nil
	}

	payload := Payload{
		Kind:      KindTrackback,
		SourceURL: entryURL,
		Title:     entry.Title,
		Excerpt:   htmlx.Shorten(htmlx.Text(entry.Body), n.cfg.ExcerptLength),
		BlogName:  blogName,
	}

	succeeded := models.TargetSet{}
	for _, target := range pending.Sorted() {
		if n.deliver(ctx, entry.ID, target, payload) {
			succeeded.Add(target)
		}
	}
	if succeeded.Len() == 0 {
		return nil
	}

	merged, err := n.ledger.AddNotifiedTargets(ctx, entry.ID, succeeded)
	if err != nil {
		return fmt.Errorf("record notified targets: %w", err)
	}
	entry.NotifiedTargets = merged
	return nil
}

// PingSearchEngine announces the scope's updated feed to the configured
// search engine ping service. Local scopes are never announced.
func (n *Notifier) PingSearchEngine(ctx context.Context, entry *models.Entry, scopeName, scopeURL string) {
	if !n.cfg.SearchPingEnabled || n.cfg.SearchPingURL == "" || scopeURL == "" {
		return
	}
	if isLocal(scopeURL) {
		n.logger.Debug(ctx, "search engine ping skipped for local url", "url", scopeURL)
		return
	}

	payload := Payload{
		Kind:       KindSearchPing,
		SourceURL:  scopeURL,
		BlogName:   scopeName,
		ChangesURL: strings.TrimRight(scopeURL, "/") + "/-/blogs/rss",
	}
	n.deliver(ctx, entry.ID, n.cfg.SearchPingURL, payload)
}

func (n *Notifier) deliver(ctx context.Context, entryID, target string, payload Payload) bool {
	err := n.transport.AttemptNotify(ctx, target, payload)
	n.metrics.RecordLinkback(string(payload.Kind), err == nil)
	if err != nil {
		n.logger.Warn(ctx, "link-back failed",
			"kind", payload.Kind, "entry_id", entryID, "target", target, "error", err)
		return false
	}
	n.logger.Debug(ctx, "link-back delivered", "kind", payload.Kind, "entry_id", entryID, "target", target)
	return true
}

func isLocal(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
