package linkback

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/pubflow/internal/logging"
	"github.com/dmitrijs2005/pubflow/internal/server/metrics"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	target  string
	payload Payload
}

type fakeTransport struct {
	mu    sync.Mutex
	calls []call
	fail  map[string]bool
}

func (f *fakeTransport) AttemptNotify(_ context.Context, target string, p Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{target: target, payload: p})
	if f.fail[target] {
		return errors.New("unreachable")
	}
	return nil
}

func (f *fakeTransport) targets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.target)
	}
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type fakeLedger struct {
	stored   models.TargetSet
	resets   int
	adds     int
	resetErr error
	addErr   error
}

func (l *fakeLedger) UpdateNotifiedTargets(_ context.Context, _ string, targets models.TargetSet) error {
	if l.resetErr != nil {
		return l.resetErr
	}
	l.resets++
	l.stored = targets.Clone()
	return nil
}

func (l *fakeLedger) AddNotifiedTargets(_ context.Context, _ string, targets models.TargetSet) (models.TargetSet, error) {
	if l.addErr != nil {
		return nil, l.addErr
	}
	l.adds++
	l.stored = l.stored.Union(targets)
	return l.stored.Clone(), nil
}

func allOn() Config {
	return Config{PingbackEnabled: true, TrackbackEnabled: true, SearchPingEnabled: true, SearchPingURL: "http://ping.example/ping", ExcerptLength: 50}
}

func newEntry(notified ...string) *models.Entry {
	return &models.Entry{
		ID: "e1", Title: "Hello", AllowPingbacks: true, AllowTrackbacks: true,
		Body:            `<p>Links: <a href="http://a.example/1">a</a> <a href="http://b.example/2">b</a> <a href="http://blog/-/blogs/hello">self</a></p>`,
		NotifiedTargets: models.NewTargetSet(notified...),
	}
}

func TestPingTargets_OnlyPendingAttempted_FailureLeavesLedger(t *testing.T) {
	tr := &fakeTransport{fail: map[string]bool{"B": true}}
	ledger := &fakeLedger{stored: models.NewTargetSet("A")}
	n := NewNotifier(tr, ledger, allOn(), nil, logging.NopLogger{})
	entry := newEntry("A")

	require.NoError(t, n.PingTargets(context.Background(), entry, "http://blog/e", "Blog", []string{"A", "B"}, false, nil))
	assert.Equal(t, []string{"B"}, tr.targets())
	assert.Equal(t, []string{"A"}, ledger.stored.Sorted())
	assert.Equal(t, 0, ledger.adds)

	// identical retry attempts B again
	tr.reset()
	require.NoError(t, n.PingTargets(context.Background(), entry, "http://blog/e", "Blog", []string{"A", "B"}, false, nil))
	assert.Equal(t, []string{"B"}, tr.targets())

	// once B recovers it lands in the ledger exactly once
	tr.reset()
	tr.fail = nil
	require.NoError(t, n.PingTargets(context.Background(), entry, "http://blog/e", "Blog", []string{"A", "B"}, false, nil))
	assert.Equal(t, []string{"A", "B"}, ledger.stored.Sorted())
	assert.Equal(t, []string{"A", "B"}, entry.NotifiedTargets.Sorted())
	assert.Equal(t, 1, ledger.adds)
}

func TestPingTargets_RenotifyResetsDurablyAndRetriesAll(t *testing.T) {
	tr := &fakeTransport{fail: map[string]bool{"A": true}}
	ledger := &fakeLedger{stored: models.NewTargetSet("A", "C")}
	n := NewNotifier(tr, ledger, allOn(), nil, logging.NopLogger{})
	entry := newEntry("A", "C")

	require.NoError(t, n.PingTargets(context.Background(), entry, "http://blog/e", "Blog", []string{"B"}, true, nil))
	assert.Equal(t, 1, ledger.resets)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, tr.targets())
	// A failed, so it is no longer in the ledger
	assert.Equal(t, []string{"B", "C"}, ledger.stored.Sorted())
}

func TestPingTargets_RenotifyResetErrorStops(t *testing.T) {
	tr := &fakeTransport{}
	ledger := &fakeLedger{resetErr: errors.New("db down")}
	n := NewNotifier(tr, ledger, allOn(), nil, logging.NopLogger{})

	err := n.PingTargets(context.Background(), newEntry("A"), "http://blog/e", "Blog", nil, true, nil)
	require.Error(t, err)
	assert.Empty(t, tr.targets())
}

func TestPingTargets_SkipsBodyDiscovered(t *testing.T) {
	tr := &fakeTransport{}
	ledger := &fakeLedger{stored: models.TargetSet{}}
	n := NewNotifier(tr, ledger, allOn(), nil, logging.NopLogger{})

	skip := models.NewTargetSet("http://a.example/1")
	require.NoError(t, n.PingTargets(context.Background(), newEntry(), "http://blog/e", "Blog",
		[]string{"http://a.example/1", "http://c.example"}, false, skip))
	assert.Equal(t, []string{"http://c.example"}, tr.targets())
}

func TestPingTargets_PayloadAndMetrics(t *testing.T) {
	tr := &fakeTransport{fail: map[string]bool{"B": true}}
	ledger := &fakeLedger{stored: models.TargetSet{}}
	m := metrics.New()
	n := NewNotifier(tr, ledger, allOn(), m, logging.NopLogger{})

	require.NoError(t, n.PingTargets(context.Background(), newEntry(), "http://blog/e", "My Blog", []string{"A", "B"}, false, nil))

	require.Len(t, tr.calls, 2)
	p := tr.calls[0].payload
	assert.Equal(t, KindTrackback, p.Kind)
	assert.Equal(t, "Hello", p.Title)
	assert.Equal(t, "My Blog", p.BlogName)
	assert.Equal(t, "http://blog/e", p.SourceURL)
	assert.LessOrEqual(t, len([]rune(p.Excerpt)), 50)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Linkbacks.WithLabelValues("trackback", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Linkbacks.WithLabelValues("trackback", "failure")))
}

func TestPingTargets_Gates(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		allow bool
		url   string
	}{
		{"disabled", Config{}, true, "http://blog/e"},
		{"entry disallows", allOn(), false, "http://blog/e"},
		{"no url", allOn(), true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{}
			ledger := &fakeLedger{}
			n := NewNotifier(tr, ledger, tt.cfg, nil, logging.NopLogger{})
			e := newEntry()
			e.AllowTrackbacks = tt.allow

			require.NoError(t, n.PingTargets(context.Background(), e, tt.url, "Blog", []string{"A"}, true, nil))
			assert.Empty(t, tr.targets())
			assert.Equal(t, 0, ledger.resets)
		})
	}
}

func TestPingTargets_LedgerAddError(t *testing.T) {
	tr := &fakeTransport{}
	ledger := &fakeLedger{addErr: errors.New("db down")}
	n := NewNotifier(tr, ledger, allOn(), nil, logging.NopLogger{})

	err := n.PingTargets(context.Background(), newEntry(), "http://blog/e", "Blog", []string{"A"}, false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record notified targets")
}

func TestPingDiscovered(t *testing.T) {
	tr := &fakeTransport{fail: map[string]bool{"http://a.example/1": true}}
	n := NewNotifier(tr, &fakeLedger{}, allOn(), nil, logging.NopLogger{})

	got := n.PingDiscovered(context.Background(), newEntry(), "http://blog/-/blogs/hello")
	assert.Equal(t, []string{"http://a.example/1", "http://b.example/2"}, tr.targets())
	assert.Equal(t, []string{"http://a.example/1", "http://b.example/2"}, got.Sorted())
	for _, c := range tr.calls {
		assert.Equal(t, KindPingback, c.payload.Kind)
		assert.Equal(t, "http://blog/-/blogs/hello", c.payload.SourceURL)
	}
}

func TestPingDiscovered_Disabled(t *testing.T) {
	tr := &fakeTransport{}
	n := NewNotifier(tr, &fakeLedger{}, Config{}, nil, logging.NopLogger{})

	got := n.PingDiscovered(context.Background(), newEntry(), "http://blog/e")
	assert.Equal(t, 0, got.Len())
	assert.Empty(t, tr.targets())

	n = NewNotifier(tr, &fakeLedger{}, allOn(), nil, logging.NopLogger{})
	e := newEntry()
	e.AllowPingbacks = false
	assert.Equal(t, 0, n.PingDiscovered(context.Background(), e, "http://blog/e").Len())
}

func TestPingSearchEngine(t *testing.T) {
	tr := &fakeTransport{}
	n := NewNotifier(tr, &fakeLedger{}, allOn(), nil, logging.NopLogger{})

	n.PingSearchEngine(context.Background(), newEntry(), "Blog", "http://localhost:8080/web/guest")
	assert.Empty(t, tr.targets())

	n.PingSearchEngine(context.Background(), newEntry(), "Blog", "https://blog.example/web/guest/")
	require.Len(t, tr.calls, 1)
	assert.Equal(t, "http://ping.example/ping", tr.calls[0].target)
	assert.Equal(t, "https://blog.example/web/guest/-/blogs/rss", tr.calls[0].payload.ChangesURL)
	assert.Equal(t, KindSearchPing, tr.calls[0].payload.Kind)
}
