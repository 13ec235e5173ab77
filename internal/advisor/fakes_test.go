package advisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/dto"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/service"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
)

type fakeSites struct {
	sites []*entity.Site
	err   error
}

func (f *fakeSites) FindInScope(_ context.Context, scope valueobject.Scope) ([]*entity.Site, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*entity.Site, 0)
	for _, s := range f.sites {
		if s.UserID() == scope.UserID() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSites) ListAll(_ context.Context) ([]*entity.Site, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sites, nil
}

type fakeRecommender struct {
	bySite map[string][]service.Recommendation
	failOn map[string]bool
	scopes []valueobject.Scope
}

func (f *fakeRecommender) Recommend(_ context.Context, scope valueobject.Scope) ([]service.Recommendation, error) {
	f.scopes = append(f.scopes, scope)
	if f.failOn[scope.SiteID()] {
		return nil, errors.New("store unavailable")
	}
	return f.bySite[scope.SiteID()], nil
}

// fakeRaiser помнит открытые алерты по ключу site/type/title
type fakeRaiser struct {
	mu   sync.Mutex
	open map[string]bool
	cmds []dto.RaiseAlertCommand
	err  error
}

func newFakeRaiser() *fakeRaiser {
	return &fakeRaiser{open: make(map[string]bool)}
}

func (f *fakeRaiser) RaiseUnlessOpen(_ context.Context, _ string, cmd dto.RaiseAlertCommand) (*dto.AlertDTO, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, false, f.err
	}
	key := cmd.SiteID + "|" + cmd.AlertType + "|" + cmd.Title
	if f.open[key] {
		return nil, false, nil
	}
	f.open[key] = true
	f.cmds = append(f.cmds, cmd)
	return &dto.AlertDTO{ID: key, SiteID: cmd.SiteID, Title: cmd.Title}, true, nil
}

type countingRecorder struct {
	outcomes []string
}

func (r *countingRecorder) AdvisorRun(outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}

func testSites() []*entity.Site {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []*entity.Site{
		entity.ReconstructSite("site-1", "user-1", "Shop", "https://shop.example.com", created),
		entity.ReconstructSite("site-2", "user-1", "Blog", "https://blog.example.com", created),
		entity.ReconstructSite("site-3", "user-2", "Docs", "https://docs.example.com", created),
	}
}

func slowPluginRecommendation() service.Recommendation {
	return service.Recommendation{
		Type:        valueobject.RecommendationPerformance,
		Priority:    valueobject.PriorityHigh,
		Title:       "Slow plugins detected",
		Description: "1 plugin averages more than 2000 ms page load.",
		Action:      "Review or replace slow plugins.",
		Plugins: []service.PluginFinding{
			{PluginID: "plugin-slow", PluginSlug: "slow-slider", PluginName: "Slow Slider", AvgLoadTimeMs: 4200},
		},
	}
}

func updatesRecommendation() service.Recommendation {
	return service.Recommendation{
		Type:     valueobject.RecommendationUpdates,
		Priority: valueobject.PriorityLow,
		Title:    "Plugin updates available",
		Action:   "Update outdated plugins.",
		Plugins: []service.PluginFinding{
			{PluginSlug: "a"},
			{PluginSlug: "b"},
		},
	}
}
