package usecase

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/dto"
	"github.com/dreschagin/plugin-performance-monitor/internal/application/port"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/apperr"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/service"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func testLogger() *logger.Logger { return logger.New("error") }

func mustScope(userID, siteID string) valueobject.Scope {
	s, err := valueobject.NewScope(userID, siteID)
	if err != nil {
		panic(err)
	}
	return s
}

// memoryCatalog хранит сайты, плагины и установки в памяти
type memoryCatalog struct {
	mu            sync.RWMutex
	sites         map[string]*entity.Site
	plugins       map[string]*entity.Plugin
	installations map[string]*entity.Installation
	err           error
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{
		sites:         make(map[string]*entity.Site),
		plugins:       make(map[string]*entity.Plugin),
		installations: make(map[string]*entity.Installation),
	}
}

func (c *memoryCatalog) addSite(id, userID, name string) {
	c.sites[id] = entity.ReconstructSite(id, userID, name, "https://"+id+".example.com", testNow.AddDate(-1, 0, 0))
}

func (c *memoryCatalog) addPlugin(id, slug, name, latest string) {
	c.plugins[id] = entity.ReconstructPlugin(id, slug, name, latest)
}

func (c *memoryCatalog) addInstallation(id, siteID, pluginID, version string, installedAt time.Time, active bool) {
	c.installations[id] = entity.ReconstructInstallation(id, siteID, pluginID, version, active, installedAt, nil)
}

func (c *memoryCatalog) catalog() Catalog {
	return Catalog{
		Sites:         memorySites{c},
		Plugins:       memoryPlugins{c},
		Installations: memoryInstallations{c},
	}
}

func (c *memoryCatalog) inScope(scope valueobject.Scope, siteID string) bool {
	s, ok := c.sites[siteID]
	if !ok || s.UserID() != scope.UserID() {
		return false
	}
	return !scope.HasSite() || scope.SiteID() == siteID
}

type memorySites struct{ c *memoryCatalog }

func (r memorySites) FindInScope(_ context.Context, scope valueobject.Scope) ([]*entity.Site, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	if r.c.err != nil {
		return nil, r.c.err
	}
	out := make([]*entity.Site, 0)
	for id, s := range r.c.sites {
		if r.c.inScope(scope, id) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (r memorySites) ListAll(_ context.Context) ([]*entity.Site, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	out := make([]*entity.Site, 0, len(r.c.sites))
	for _, s := range r.c.sites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

type memoryPlugins struct{ c *memoryCatalog }

func (r memoryPlugins) FindByIDs(_ context.Context, ids []string) (map[string]*entity.Plugin, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	out := make(map[string]*entity.Plugin)
	for _, id := range ids {
		if p, ok := r.c.plugins[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type memoryInstallations struct{ c *memoryCatalog }

func (r memoryInstallations) FindInScope(_ context.Context, scope valueobject.Scope, activeOnly bool) ([]*entity.Installation, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	if r.c.err != nil {
		return nil, r.c.err
	}
	out := make([]*entity.Installation, 0)
	for _, inst := range r.c.installations {
		if !r.c.inScope(scope, inst.SiteID()) || (activeOnly && !inst.IsActive()) {
			continue
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (r memoryInstallations) FindByPair(_ context.Context, scope valueobject.Scope, siteID, pluginID string) ([]*entity.Installation, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	out := make([]*entity.Installation, 0)
	for _, inst := range r.c.installations {
		if inst.SiteID() == siteID && inst.PluginID() == pluginID && r.c.inScope(scope, siteID) {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (r memoryInstallations) FindByIDs(_ context.Context, ids []string) (map[string]*entity.Installation, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	out := make(map[string]*entity.Installation)
	for _, id := range ids {
		if inst, ok := r.c.installations[id]; ok {
			out[id] = inst
		}
	}
	return out, nil
}

// memoryMeasurements хранит замеры в памяти
type memoryMeasurements struct {
	mu      sync.RWMutex
	catalog *memoryCatalog
	items   []*entity.Measurement
	saveErr error
}

func newMemoryMeasurements(catalog *memoryCatalog) *memoryMeasurements {
	return &memoryMeasurements{catalog: catalog}
}

func (r *memoryMeasurements) add(instID string, load, mem float64, queries, errs int, at time.Time) {
	sample := valueobject.NewSample(load, mem, queries, errs)
	score := service.NewPerformanceScorer().Score(sample)
	m, err := entity.NewMeasurement(instID, sample, score, at)
	if err != nil {
		panic(err)
	}
	r.items = append(r.items, m)
}

func (r *memoryMeasurements) SaveBatch(_ context.Context, measurements []*entity.Measurement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.items = append(r.items, measurements...)
	return nil
}

func (r *memoryMeasurements) FindInScope(_ context.Context, scope valueobject.Scope, since time.Time) ([]*entity.Measurement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.Measurement, 0)
	for _, m := range r.items {
		inst, ok := r.catalog.installations[m.InstallationID()]
		if !ok || !r.catalog.inScope(scope, inst.SiteID()) || m.MeasuredAt().Before(since) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *memoryMeasurements) FindByInstallation(_ context.Context, installationID string) ([]*entity.Measurement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.Measurement, 0)
	for _, m := range r.items {
		if m.InstallationID() == installationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryMeasurements) FindLatestInScope(ctx context.Context, scope valueobject.Scope, limit int) ([]*entity.Measurement, error) {
	all, _ := r.FindInScope(ctx, scope, time.Time{})
	sort.Slice(all, func(i, j int) bool { return all[i].MeasuredAt().After(all[j].MeasuredAt()) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *memoryMeasurements) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// memoryAlerts хранит алерты в памяти; переходы атомарны под мьютексом
type memoryAlerts struct {
	mu      sync.Mutex
	catalog *memoryCatalog
	items   []*entity.Alert
	err     error
}

func newMemoryAlerts(catalog *memoryCatalog) *memoryAlerts {
	return &memoryAlerts{catalog: catalog}
}

func (r *memoryAlerts) Create(_ context.Context, alert *entity.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.items = append(r.items, alert)
	return nil
}

func (r *memoryAlerts) find(scope valueobject.Scope, id string) *entity.Alert {
	for _, a := range r.items {
		if a.ID() == id && r.catalog.inScope(scope, a.SiteID()) {
			return a
		}
	}
	return nil
}

func (r *memoryAlerts) FindByID(_ context.Context, scope valueobject.Scope, id string) (*entity.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a := r.find(scope, id); a != nil {
		return a, nil
	}
	return nil, apperr.NotFound("alert " + id)
}

func (r *memoryAlerts) transition(scope valueobject.Scope, id string, apply func(*entity.Alert) bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, apperr.Unavailable("update alert", r.err)
	}
	a := r.find(scope, id)
	if a == nil {
		return false, apperr.NotFound("alert " + id)
	}
	return apply(a), nil
}

func (r *memoryAlerts) MarkRead(_ context.Context, scope valueobject.Scope, id string, now time.Time) (bool, error) {
	return r.transition(scope, id, func(a *entity.Alert) bool { return a.MarkRead(now) })
}

func (r *memoryAlerts) Resolve(_ context.Context, scope valueobject.Scope, id string, now time.Time) (bool, error) {
	return r.transition(scope, id, func(a *entity.Alert) bool { return a.Resolve(now) })
}

func (r *memoryAlerts) MarkAllRead(_ context.Context, scope valueobject.Scope, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, apperr.Unavailable("mark alerts read", r.err)
	}
	var n int64
	for _, a := range r.items {
		if r.catalog.inScope(scope, a.SiteID()) && a.MarkRead(now) {
			n++
		}
	}
	return n, nil
}

func (r *memoryAlerts) scoped(scope valueobject.Scope) []*entity.Alert {
	out := make([]*entity.Alert, 0)
	for _, a := range r.items {
		if r.catalog.inScope(scope, a.SiteID()) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TriggeredAt().After(out[j].TriggeredAt()) })
	return out
}

func (r *memoryAlerts) FindTriggeredAfter(_ context.Context, scope valueobject.Scope, after time.Time) ([]*entity.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, apperr.Unavailable("find alerts", r.err)
	}
	out := make([]*entity.Alert, 0)
	for _, a := range r.scoped(scope) {
		if a.TriggeredAt().After(after) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryAlerts) FindRecent(_ context.Context, scope valueobject.Scope, limit int) ([]*entity.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.scoped(scope)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryAlerts) CountUnresolved(_ context.Context, scope valueobject.Scope, severity valueobject.Severity) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.scoped(scope) {
		if !a.IsResolved() && (severity == "" || a.Severity() == severity) {
			n++
		}
	}
	return n, nil
}

func (r *memoryAlerts) ExistsUnresolved(_ context.Context, siteID string, alertType valueobject.AlertType, title string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.items {
		if a.SiteID() == siteID && a.Type() == alertType && a.Title() == title && !a.IsResolved() {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryAlerts) all() []*entity.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.Alert(nil), r.items...)
}

// memoryCache реализует port.Cache поверх карты
type memoryCache struct {
	mu      sync.Mutex
	values  map[string]interface{}
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string]interface{})}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return port.ErrCacheMiss
	}
	switch d := dest.(type) {
	case **dto.AggregatesDTO:
		*d = v.(*dto.AggregatesDTO)
	case **dto.PluginRankingDTO:
		*d = v.(*dto.PluginRankingDTO)
	case *[]dto.RecommendationDTO:
		*d = v.([]dto.RecommendationDTO)
	default:
		return port.ErrCacheMiss
	}
	return nil
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

func (c *memoryCache) DeletePattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, pattern)
	for key := range c.values {
		if ok, _ := path.Match(pattern, key); ok || strings.HasPrefix(key, strings.TrimSuffix(pattern, "*")) {
			delete(c.values, key)
		}
	}
	return nil
}

func (c *memoryCache) Close() error { return nil }

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok
}

type publishedEvent struct {
	subject string
	event   interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, subject string, event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{subject: subject, event: event})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.subject
	}
	return out
}

type recordingNotifier struct {
	mu      sync.Mutex
	alerts  map[string][]*dto.AlertDTO
	ingests map[string]int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{alerts: make(map[string][]*dto.AlertDTO), ingests: make(map[string]int)}
}

func (n *recordingNotifier) NotifyAlert(userID string, alert *dto.AlertDTO) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts[userID] = append(n.alerts[userID], alert)
}

func (n *recordingNotifier) NotifyIngest(userID string, _ *dto.IngestResultDTO) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ingests[userID]++
}

func (n *recordingNotifier) ClientCount() int { return 0 }

type recordingMetrics struct {
	mu     sync.Mutex
	points []port.MeasurementPoint
}

func (m *recordingMetrics) PublishBatch(_ context.Context, points []port.MeasurementPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, points...)
	return nil
}

func (m *recordingMetrics) Flush(_ context.Context) error { return nil }

type countingTelemetry struct {
	mu          sync.Mutex
	ingested    int
	rejected    int
	raised      map[string]int
	transitions map[string]int
	cacheHits   int
	cacheMisses int
}

func newCountingTelemetry() *countingTelemetry {
	return &countingTelemetry{raised: make(map[string]int), transitions: make(map[string]int)}
}

func (t *countingTelemetry) MeasurementsIngested(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ingested += n
}

func (t *countingTelemetry) MeasurementsRejected(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rejected += n
}

func (t *countingTelemetry) AlertRaised(severity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.raised[severity]++
}

func (t *countingTelemetry) AlertTransition(transition string, changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if changed {
		t.transitions[transition]++
	}
}

func (t *countingTelemetry) CacheLookup(_ string, hit bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if hit {
		t.cacheHits++
	} else {
		t.cacheMisses++
	}
}

func dtoAlert(siteID, severity string) dto.RaiseAlertCommand {
	return dto.RaiseAlertCommand{
		SiteID:    siteID,
		Severity:  severity,
		AlertType: "performance",
		Title:     "Alert " + severity,
	}
}
