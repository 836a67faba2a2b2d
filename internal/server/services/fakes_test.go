package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/pubflow/internal/common"
	"github.com/dmitrijs2005/pubflow/internal/dbx"
	"github.com/dmitrijs2005/pubflow/internal/logging"
	"github.com/dmitrijs2005/pubflow/internal/server/config"
	"github.com/dmitrijs2005/pubflow/internal/server/metrics"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/activities"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/entries"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/stats"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/subscriptions"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/trash"
	"github.com/dmitrijs2005/pubflow/internal/server/repositories/workflows"
	"github.com/dmitrijs2005/pubflow/internal/server/slug"
	"github.com/dmitrijs2005/pubflow/internal/server/workers"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// --- repositories ---

type fakeEntries struct {
	mu      sync.Mutex
	rows    map[string]models.Entry
	getErr  error
	statErr error

	// beforeWrite runs before Create/Update claims a slug.
	beforeWrite func(e *models.Entry)
}

func newFakeEntries() *fakeEntries {
	return &fakeEntries{rows: map[string]models.Entry{}}
}

func copyEntry(e models.Entry) *models.Entry {
	e.NotifiedTargets = e.NotifiedTargets.Clone()
	return &e
}

func (f *fakeEntries) Get(_ context.Context, id string) (*models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	e, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyEntry(e), nil
}

func (f *fakeEntries) FindBySlug(_ context.Context, scopeID, urlTitle string) (*models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.rows {
		if e.ScopeID == scopeID && e.URLTitle == urlTitle {
			return copyEntry(e), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeEntries) ListByScope(_ context.Context, scopeID string) ([]*models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Entry
	for _, e := range f.rows {
		if e.ScopeID == scopeID {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEntries) taken(e *models.Entry) bool {
	for id, other := range f.rows {
		if id != e.ID && other.ScopeID == e.ScopeID && other.URLTitle == e.URLTitle {
			return true
		}
	}
	return false
}

func (f *fakeEntries) Create(_ context.Context, e *models.Entry) error {
	if f.beforeWrite != nil {
		f.beforeWrite(e)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taken(e) {
		return common.ErrSlugTaken
	}
	f.rows[e.ID] = *copyEntry(*e)
	return nil
}

func (f *fakeEntries) Update(_ context.Context, e *models.Entry) error {
	if f.beforeWrite != nil {
		f.beforeWrite(e)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[e.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if f.taken(e) {
		return common.ErrSlugTaken
	}
	upd := *copyEntry(*e)
	upd.NotifiedTargets = cur.NotifiedTargets
	f.rows[e.ID] = upd
	return nil
}

func (f *fakeEntries) UpdateStatus(_ context.Context, e *models.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statErr != nil {
		return f.statErr
	}
	cur, ok := f.rows[e.ID]
	if !ok {
		return common.ErrorNotFound
	}
	cur.Status = e.Status
	cur.StatusByUserID = e.StatusByUserID
	cur.StatusByUserName = e.StatusByUserName
	cur.StatusDate = e.StatusDate
	f.rows[e.ID] = cur
	return nil
}

func (f *fakeEntries) UpdateNotifiedTargets(_ context.Context, id string, targets models.TargetSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[id]
	if !ok {
		return common.ErrorNotFound
	}
	cur.NotifiedTargets = targets.Clone()
	f.rows[id] = cur
	return nil
}

func (f *fakeEntries) AddNotifiedTargets(_ context.Context, id string, targets models.TargetSet) (models.TargetSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cur.NotifiedTargets = cur.NotifiedTargets.Union(targets)
	f.rows[id] = cur
	return cur.NotifiedTargets.Clone(), nil
}

func (f *fakeEntries) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeEntries) status(t *testing.T, id string) models.Status {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	require.True(t, ok, "entry %s not stored", id)
	return e.Status
}

type fakeTrash struct {
	mu      sync.Mutex
	records map[string]models.TrashRecord
}

func (f *fakeTrash) Put(_ context.Context, rec *models.TrashRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.EntryID] = *rec
	return nil
}

func (f *fakeTrash) Get(_ context.Context, entryID string) (*models.TrashRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[entryID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &rec, nil
}

func (f *fakeTrash) Delete(_ context.Context, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, entryID)
	return nil
}

type fakeActivities struct {
	mu        sync.Mutex
	recorded  []models.Activity
	counters  map[string]bool
	recordErr error
}

func (f *fakeActivities) Record(_ context.Context, actorID, scopeID, entityType, entryID string, kind models.ActivityKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	f.recorded = append(f.recorded, models.Activity{ActorID: actorID, ScopeID: scopeID, EntityType: entityType, EntryID: entryID, Kind: kind})
	return nil
}

func (f *fakeActivities) ListByEntry(_ context.Context, entityType, entryID string) ([]*models.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Activity
	for i := range f.recorded {
		if f.recorded[i].EntityType == entityType && f.recorded[i].EntryID == entryID {
			a := f.recorded[i]
			out = append(out, &a)
		}
	}
	return out, nil
}

func (f *fakeActivities) SetCountersEnabled(_ context.Context, _, entryID string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[entryID] = enabled
	return nil
}

func (f *fakeActivities) DeleteByEntry(_ context.Context, entityType, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.recorded[:0]
	for _, a := range f.recorded {
		if a.EntityType != entityType || a.EntryID != entryID {
			kept = append(kept, a)
		}
	}
	f.recorded = kept
	return nil
}

func (f *fakeActivities) kinds(entryID string) []models.ActivityKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ActivityKind
	for _, a := range f.recorded {
		if a.EntryID == entryID {
			out = append(out, a.Kind)
		}
	}
	return out
}

type fakeStats struct {
	mu       sync.Mutex
	recounts []string
	err      error
}

func (f *fakeStats) Recount(_ context.Context, scopeID, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.recounts = append(f.recounts, scopeID+"/"+ownerID)
	return nil
}

func (f *fakeStats) Get(context.Context, string, string) (*models.OwnerStats, error) {
	return nil, common.ErrorNotFound
}

type fakeSubscriptions struct {
	mu   sync.Mutex
	subs map[string]map[string]bool
}

func subKey(entityType, entityID string) string { return entityType + ":" + entityID }

func (f *fakeSubscriptions) Add(_ context.Context, userID, entityType, entityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := subKey(entityType, entityID)
	if f.subs[k] == nil {
		f.subs[k] = map[string]bool{}
	}
	f.subs[k][userID] = true
	return nil
}

func (f *fakeSubscriptions) Remove(_ context.Context, userID, entityType, entityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs[subKey(entityType, entityID)], userID)
	return nil
}

func (f *fakeSubscriptions) ListSubscribers(_ context.Context, entityType, entityID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for u := range f.subs[subKey(entityType, entityID)] {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeSubscriptions) DeleteByEntity(_ context.Context, entityType, entityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, subKey(entityType, entityID))
	return nil
}

type fakeWorkflows struct {
	mu        sync.Mutex
	instances map[string]models.WorkflowInstance
}

func (f *fakeWorkflows) Create(_ context.Context, wf *models.WorkflowInstance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances[wf.EntryID] = *wf
	return nil
}

func (f *fakeWorkflows) GetByEntry(_ context.Context, entryID string) (*models.WorkflowInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wf, ok := f.instances[entryID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &wf, nil
}

func (f *fakeWorkflows) DeleteByEntry(_ context.Context, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.instances, entryID)
	return nil
}

func (f *fakeWorkflows) has(entryID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.instances[entryID]
	return ok
}

type fakeRepoManager struct {
	entries       *fakeEntries
	trash         *fakeTrash
	activities    *fakeActivities
	stats         *fakeStats
	subscriptions *fakeSubscriptions
	workflows     *fakeWorkflows
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error     { return nil }
func (m *fakeRepoManager) Entries(dbx.DBTX) entries.Repository             { return m.entries }
func (m *fakeRepoManager) Trash(dbx.DBTX) trash.Repository                 { return m.trash }
func (m *fakeRepoManager) Activities(dbx.DBTX) activities.Repository       { return m.activities }
func (m *fakeRepoManager) Stats(dbx.DBTX) stats.Repository                 { return m.stats }
func (m *fakeRepoManager) Subscriptions(dbx.DBTX) subscriptions.Repository { return m.subscriptions }
func (m *fakeRepoManager) Workflows(dbx.DBTX) workflows.Repository         { return m.workflows }

// --- collaborators ---

// calls is a shared, ordered log of collaborator calls.
type calls struct {
	mu  sync.Mutex
	log []string
}

func (c *calls) add(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, fmt.Sprintf(format, args...))
}

func (c *calls) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

func (c *calls) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = nil
}

type fakeIndex struct {
	calls     *calls
	reindexed map[string]bool
	err       error
}

func (f *fakeIndex) Reindex(_ context.Context, e *models.Entry) error {
	f.calls.add("index.reindex %s", e.ID)
	if f.err != nil {
		return f.err
	}
	f.reindexed[e.ID] = true
	return nil
}

func (f *fakeIndex) Remove(_ context.Context, id string) error {
	f.calls.add("index.remove %s", id)
	if f.err != nil {
		return f.err
	}
	delete(f.reindexed, id)
	return nil
}

type fakeAssets struct {
	calls *calls
	err   error
}

func (f *fakeAssets) Register(_ context.Context, e *models.Entry) error {
	f.calls.add("asset.register %s", e.ID)
	return f.err
}

func (f *fakeAssets) SetVisible(_ context.Context, _, id string, visible bool) error {
	f.calls.add("asset.visible %s %t", id, visible)
	return f.err
}

func (f *fakeAssets) MarkTrashed(_ context.Context, _, id string) error {
	f.calls.add("asset.trashed %s", id)
	return f.err
}

func (f *fakeAssets) Delete(_ context.Context, _, id string) error {
	f.calls.add("asset.delete %s", id)
	return f.err
}

type fakeSubscriberNotifier struct {
	calls *calls
	ctxs  []models.TransitionContext
	err   error
}

func (f *fakeSubscriberNotifier) Notify(_ context.Context, e *models.Entry, tctx models.TransitionContext) error {
	f.calls.add("notify %s update=%t", e.ID, tctx.IsUpdate())
	f.ctxs = append(f.ctxs, tctx)
	return f.err
}

type fakeLinks struct {
	calls      *calls
	discovered models.TargetSet
	skips      []models.TargetSet
	renotify   []bool
	targetsErr error
}

func (f *fakeLinks) PingDiscovered(_ context.Context, e *models.Entry, entryURL string) models.TargetSet {
	f.calls.add("ping.discovered %s %s", e.ID, entryURL)
	return f.discovered
}

func (f *fakeLinks) PingTargets(_ context.Context, e *models.Entry, entryURL, blogName string, targets []string, renotify bool, skip models.TargetSet) error {
	f.calls.add("ping.targets %s %s %v", e.ID, blogName, targets)
	f.skips = append(f.skips, skip)
	f.renotify = append(f.renotify, renotify)
	return f.targetsErr
}

func (f *fakeLinks) PingSearchEngine(_ context.Context, e *models.Entry, scopeName, scopeURL string) {
	f.calls.add("ping.search %s %s", e.ID, scopeURL)
}

// syncDispatcher runs tasks inline so fan-out effects are visible when the
// engine call returns.
type syncDispatcher struct {
	submitted atomic.Int32
	err       error
}

func (d *syncDispatcher) Submit(ctx context.Context, task workers.Task) error {
	d.submitted.Add(1)
	if d.err != nil {
		return d.err
	}
	return task.Run(context.WithoutCancel(ctx))
}

// --- fixture ---

type fixture struct {
	svc        *EntryService
	repos      *fakeRepoManager
	calls      *calls
	index      *fakeIndex
	assets     *fakeAssets
	notifier   *fakeSubscriberNotifier
	links      *fakeLinks
	dispatcher *syncDispatcher
	metrics    *metrics.Metrics
}

var (
	author   = models.Actor{ID: "u1", Name: "Jane Author"}
	approver = models.Actor{ID: "u2", Name: "Sam Approver"}
)

func testConfig() *config.Config {
	return &config.Config{
		AutoApprove:       true,
		BaseURL:           "https://blog.example.com",
		BlogName:          "Example Blog",
		URLTitlePattern:   `^[a-z0-9]+(?:-[a-z0-9]+)*$`,
		URLTitleMaxLength: 150,
		SlugMaxAttempts:   100,
		SlugClaimRetries:  3,
		MaxTitleLength:    150,
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	c := &calls{}
	repos := &fakeRepoManager{
		entries:       newFakeEntries(),
		trash:         &fakeTrash{records: map[string]models.TrashRecord{}},
		activities:    &fakeActivities{counters: map[string]bool{}},
		stats:         &fakeStats{},
		subscriptions: &fakeSubscriptions{subs: map[string]map[string]bool{}},
		workflows:     &fakeWorkflows{instances: map[string]models.WorkflowInstance{}},
	}

	resolver, err := slug.NewResolver(repos.entries, slug.Options{
		Pattern:     cfg.URLTitlePattern,
		MaxLength:   cfg.URLTitleMaxLength,
		MaxAttempts: cfg.SlugMaxAttempts,
	}, logging.NopLogger{})
	require.NoError(t, err)

	f := &fixture{
		repos:      repos,
		calls:      c,
		index:      &fakeIndex{calls: c, reindexed: map[string]bool{}},
		assets:     &fakeAssets{calls: c},
		notifier:   &fakeSubscriberNotifier{calls: c},
		links:      &fakeLinks{calls: c, discovered: models.NewTargetSet()},
		dispatcher: &syncDispatcher{},
		metrics:    metrics.New(),
	}
	f.svc = NewEntryService(Deps{
		DB:          openTestDB(t),
		Repos:       repos,
		Slugs:       resolver,
		Index:       f.index,
		Assets:      f.assets,
		Subscribers: f.notifier,
		Links:       f.links,
		Dispatcher:  f.dispatcher,
		Metrics:     f.metrics,
		Logger:      logging.NopLogger{},
	}, cfg)
	return f
}

func input(title string) models.EntryInput {
	return models.EntryInput{
		ScopeID:         "scope-1",
		Title:           title,
		Body:            `<p>See <a href="https://other.example.org/post">this</a>.</p>`,
		AllowPingbacks:  true,
		AllowTrackbacks: true,
	}
}
