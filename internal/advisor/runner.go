package advisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/pkg/logger"
)

// Исходы цикла для метрик
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeEmpty   = "empty"
)

// Recorder учитывает исходы циклов. Может быть nil.
type Recorder interface {
	AdvisorRun(outcome string)
}

type Runner struct {
	service  *Service
	recorder Recorder
	log      *logger.Logger
	interval time.Duration
	timeout  time.Duration

	runMu sync.Mutex

	mu          sync.RWMutex
	startedAt   time.Time
	lastRunAt   time.Time
	lastError   string
	lastSummary *CycleSummary
}

func NewRunner(service *Service, recorder Recorder, log *logger.Logger, interval, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{
		service:   service,
		recorder:  recorder,
		log:       log,
		interval:  interval,
		timeout:   timeout,
		startedAt: time.Now(),
	}
}

func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// ошибка уже сохранена в снапшоте и залогирована
			_, _ = r.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce проверяет все сайты. Циклы не пересекаются.
func (r *Runner) RunOnce(ctx context.Context) (*CycleSummary, error) {
	return r.run(ctx, r.service.EvaluateAll)
}

// RunSites проверяет сайты одного пользователя, например после загрузки замеров
func (r *Runner) RunSites(ctx context.Context, userID string, siteIDs []string) (*CycleSummary, error) {
	return r.run(ctx, func(ctx context.Context) (*CycleSummary, error) {
		return r.service.EvaluateSites(ctx, userID, siteIDs)
	})
}

func (r *Runner) run(ctx context.Context, evaluate func(context.Context) (*CycleSummary, error)) (*CycleSummary, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	cycleCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	summary, err := evaluate(cycleCtx)
	runAt := time.Now()

	if err != nil {
		wrappedErr := fmt.Errorf("advisor cycle failed: %w", err)
		r.updateFailure(runAt, wrappedErr)
		r.record(OutcomeFailure)
		r.log.Error("Alert advisor cycle failed", wrappedErr)
		return nil, wrappedErr
	}

	r.updateSuccess(runAt, summary)

	if summary.SitesTotal == 0 {
		r.record(OutcomeEmpty)
		r.log.Warn("Alert advisor cycle completed without sites")
		return summary, nil
	}

	if summary.FailedSites > 0 {
		r.record(OutcomeFailure)
	} else {
		r.record(OutcomeSuccess)
	}

	r.log.Info(
		"Alert advisor cycle completed",
		"sites_total", summary.SitesTotal,
		"failed_sites", summary.FailedSites,
		"recommendations_total", summary.RecommendationsTotal,
		"alerts_raised", summary.AlertsRaised,
		"alerts_skipped", summary.AlertsSkipped,
	)

	return summary, nil
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := Snapshot{
		StartedAt: r.startedAt,
		Interval:  r.interval,
		LastRunAt: r.lastRunAt,
		LastError: r.lastError,
	}

	if r.lastSummary != nil {
		copiedSummary := *r.lastSummary
		copiedSummary.Sites = append([]SiteOutcome(nil), r.lastSummary.Sites...)
		snapshot.LastSummary = &copiedSummary
	}

	return snapshot
}

func (r *Runner) record(outcome string) {
	if r.recorder != nil {
		r.recorder.AdvisorRun(outcome)
	}
}

func (r *Runner) updateFailure(runAt time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastRunAt = runAt
	r.lastError = err.Error()
}

func (r *Runner) updateSuccess(runAt time.Time, summary *CycleSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastRunAt = runAt
	r.lastError = ""
	r.lastSummary = summary
}
