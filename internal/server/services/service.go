// Package services contains server-side business logic. EntryService is the
// status transition engine: it owns the entry lifecycle and sequences the
// bookkeeping and notification side effects of every transition.
package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/pubflow/internal/logging"
	"github.com/dmitrijs2005/pubflow/internal/server/config"
	"github.com/dmitrijs2005/pubflow/internal/server/metrics"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pubflow/internal/server/slug"
	"github.com/dmitrijs2005/pubflow/internal/server/workers"
)

// SearchIndex keeps the full-text index in sync with approved entries.
type SearchIndex interface {
	Reindex(ctx context.Context, entry *models.Entry) error
	Remove(ctx context.Context, entryID string) error
}

// AssetVisibility controls the public visibility of an entry's asset record.
type AssetVisibility interface {
	Register(ctx context.Context, entry *models.Entry) error
	SetVisible(ctx context.Context, entityType, entryID string, visible bool) error
	MarkTrashed(ctx context.Context, entityType, entryID string) error
	Delete(ctx context.Context, entityType, entryID string) error
}

// SubscriberNotifier announces approved entries to scope subscribers.
type SubscriberNotifier interface {
	Notify(ctx context.Context, entry *models.Entry, tctx models.TransitionContext) error
}

// LinkNotifier sends pingbacks, trackbacks and search engine pings.
type LinkNotifier interface {
	PingDiscovered(ctx context.Context, entry *models.Entry, entryURL string) models.TargetSet
	PingTargets(ctx context.Context, entry *models.Entry, entryURL, blogName string, targets []string, renotify bool, skip models.TargetSet) error
	PingSearchEngine(ctx context.Context, entry *models.Entry, scopeName, scopeURL string)
}

// Dispatcher runs fire-and-forget work off the request path.
type Dispatcher interface {
	Submit(ctx context.Context, task workers.Task) error
}

// Deps are the collaborators of EntryService.
type Deps struct {
	DB          *sql.DB
	Repos       repomanager.RepositoryManager
	Slugs       *slug.Resolver
	Index       SearchIndex
	Assets      AssetVisibility
	Subscribers SubscriberNotifier
	Links       LinkNotifier
	Dispatcher  Dispatcher
	Metrics     *metrics.Metrics
	Logger      logging.Logger
}

type EntryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	slugs       *slug.Resolver
	index       SearchIndex
	assets      AssetVisibility
	subscribers SubscriberNotifier
	links       LinkNotifier
	dispatcher  Dispatcher
	metrics     *metrics.Metrics
	logger      logging.Logger

	autoApprove      bool
	baseURL          string
	blogName         string
	maxTitleLength   int
	slugClaimRetries int
}

func NewEntryService(d Deps, cfg *config.Config) *EntryService {
	logger := d.Logger
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &EntryService{
		db:          d.DB,
		repomanager: d.Repos,
		slugs:       d.Slugs,
		index:       d.Index,
		assets:      d.Assets,
		subscribers: d.Subscribers,
		links:       d.Links,
		dispatcher:  d.Dispatcher,
		metrics:     d.Metrics,
		logger:      logger.With("module", "entries"),

		autoApprove:      cfg.AutoApprove,
		baseURL:          cfg.BaseURL,
		blogName:         cfg.BlogName,
		maxTitleLength:   cfg.MaxTitleLength,
		slugClaimRetries: cfg.SlugClaimRetries,
	}
}

// resolveBaseURL returns the scope display URL for a transition.
func (s *EntryService) resolveBaseURL(tctx models.TransitionContext) string {
	if tctx.BaseURL != "" {
		return tctx.BaseURL
	}
	return s.baseURL
}

func (s *EntryService) resolveBlogName(tctx models.TransitionContext) string {
	if tctx.ScopeName != "" {
		return tctx.ScopeName
	}
	return s.blogName
}
