// Package metrics exposes the Prometheus instrumentation of the publication
// engine. All recording methods are safe on a nil *Metrics, which is what
// tests and tools that do not serve /metrics pass around.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pubflow"

// Metrics holds all engine Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Workflow metrics
	Transitions         *prometheus.CounterVec
	BookkeepingFailures *prometheus.CounterVec
	SlugClaimRetries    prometheus.Counter

	// Delivery metrics
	Linkbacks     *prometheus.CounterVec
	Notifications *prometheus.CounterVec

	// Backpressure metrics
	QueueDepth    prometheus.Gauge
	ActiveWorkers prometheus.Gauge
	TasksDropped  prometheus.Counter
}

// New registers the engine metrics, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Entry status transitions by old and new status",
		}, []string{"from", "to"}),
		BookkeepingFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookkeeping_failures_total",
			Help:      "Synchronous bookkeeping steps that failed after a status write",
		}, []string{"step"}),
		SlugClaimRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slug_claim_retries_total",
			Help:      "Writes retried because another entry claimed the resolved url title first",
		}),
		Linkbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "linkbacks_total",
			Help:      "Outbound link-back attempts by kind and result",
		}, []string{"kind", "result"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriber_notifications_total",
			Help:      "Subscriber notification jobs by event and result",
		}, []string{"event", "result"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fanout_queue_depth",
			Help:      "Fan-out tasks waiting for a worker",
		}),
		ActiveWorkers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fanout_active_workers",
			Help:      "Fan-out workers currently running a task",
		}),
		TasksDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_tasks_dropped_total",
			Help:      "Fan-out tasks dropped because the queue was full",
		}),
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordBookkeepingFailure(step string) {
	if m == nil {
		return
	}
	m.BookkeepingFailures.WithLabelValues(step).Inc()
}

func (m *Metrics) RecordSlugClaimRetry() {
	if m == nil {
		return
	}
	m.SlugClaimRetries.Inc()
}

func (m *Metrics) RecordLinkback(kind string, ok bool) {
	if m == nil {
		return
	}
	m.Linkbacks.WithLabelValues(kind, result(ok)).Inc()
}

func (m *Metrics) RecordNotification(event string, ok bool) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(event, result(ok)).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) AddActiveWorkers(delta int) {
	if m == nil {
		return
	}
	m.ActiveWorkers.Add(float64(delta))
}

func (m *Metrics) RecordTaskDropped() {
	if m == nil {
		return
	}
	m.TasksDropped.Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
