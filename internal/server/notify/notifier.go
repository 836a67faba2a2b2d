// Package notify builds notification jobs for the subscribers of an entry's
// scope when the entry is published or republished.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pubflow/internal/htmlx"
	"github.com/dmitrijs2005/pubflow/internal/logging"
	"github.com/dmitrijs2005/pubflow/internal/server/metrics"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
	"github.com/google/uuid"
)

// Queue is the asynchronous delivery side.
type Queue interface {
	Enqueue(ctx context.Context, job *models.NotificationJob) error
}

// SubscriberSource resolves the users following an entity.
type SubscriberSource interface {
	ListSubscribers(ctx context.Context, entityType, entityID string) ([]string, error)
}

// Template is an unrendered subject/body pair.
type Template struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type Config struct {
	EntryAddedEnabled   bool
	EntryUpdatedEnabled bool
	Added               Template
	Updated             Template
	FromName            string
	FromAddress         string
	ExcerptLength       int
}

type SubscriberNotifier struct {
	queue   Queue
	subs    SubscriberSource
	cfg     Config
	metrics *metrics.Metrics
	logger  logging.Logger
	now     func() time.Time
}

func NewSubscriberNotifier(queue Queue, subs SubscriberSource, cfg Config, m *metrics.Metrics, logger logging.Logger) *SubscriberNotifier {
	return &SubscriberNotifier{
		queue:   queue,
		subs:    subs,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With("module", "notify"),
		now:     time.Now,
	}
}

// Notify enqueues one job for the subscribers of the entry's scope. It does
// nothing unless the entry is approved, tctx carries a base URL and the
// add/update event is enabled.
func (n *SubscriberNotifier) Notify(ctx context.Context, entry *models.Entry, tctx models.TransitionContext) error {
	if !entry.IsApproved() || tctx.BaseURL == "" {
		return nil
	}

	event, tmpl := models.EventEntryAdded, n.cfg.Added
	enabled := n.cfg.EntryAddedEnabled
	if tctx.IsUpdate() {
		event, tmpl = models.EventEntryUpdated, n.cfg.Updated
		enabled = n.cfg.EntryUpdatedEnabled
	}
	if !enabled {
		return nil
	}

	recipients, err := n.subs.ListSubscribers(ctx, models.ScopeEntityType, entry.ScopeID)
	if err != nil {
		n.metrics.RecordNotification(string(event), false)
		return fmt.Errorf("list subscribers: %w", err)
	}
	if len(recipients) == 0 {
		n.logger.Debug(ctx, "no subscribers", "entry_id", entry.ID, "scope_id", entry.ScopeID)
		return nil
	}

	job := &models.NotificationJob{
		ID:               uuid.NewString(),
		EntryID:          entry.ID,
		ScopeID:          entry.ScopeID,
		OwnerID:          entry.OwnerID,
		Event:            event,
		Subject:          tmpl.Subject,
		Body:             tmpl.Body,
		FromName:         n.cfg.FromName,
		FromAddress:      n.cfg.FromAddress,
		Title:            entry.Title,
		Excerpt:          excerpt(entry, n.cfg.ExcerptLength),
		StatusByUserName: entry.StatusByUserName,
		EntryURL:         entry.URL(tctx.BaseURL),
		Recipients:       recipients,
		CreatedAt:        n.now().UTC(),
	}

	if err := n.queue.Enqueue(ctx, job); err != nil {
		n.metrics.RecordNotification(string(event), false)
		return fmt.Errorf("enqueue notification: %w", err)
	}
	n.metrics.RecordNotification(string(event), true)
	n.logger.Info(ctx, "subscribers notified",
		"entry_id", entry.ID, "event", event, "job_id", job.ID, "recipients", len(recipients))
	return nil
}

// excerpt prefers the entry description and falls back to the body text.
func excerpt(entry *models.Entry, maxRunes int) string {
	text := entry.Description
	if text == "" {
		text = htmlx.Text(entry.Body)
	}
	return htmlx.Shorten(text, maxRunes)
}
