package advisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dreschagin/plugin-performance-monitor/internal/application/dto"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/entity"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/repository"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/service"
	"github.com/dreschagin/plugin-performance-monitor/internal/domain/valueobject"
)

// Recommender строит рекомендации для области без кеша
type Recommender interface {
	Recommend(ctx context.Context, scope valueobject.Scope) ([]service.Recommendation, error)
}

// AlertRaiser создает алерт, если такой же еще не открыт
type AlertRaiser interface {
	RaiseUnlessOpen(ctx context.Context, userID string, cmd dto.RaiseAlertCommand) (*dto.AlertDTO, bool, error)
}

// Service превращает рекомендации по каждому сайту в алерты
type Service struct {
	sites       repository.SiteRepository
	recommender Recommender
	alerts      AlertRaiser
	now         func() time.Time
}

func NewService(sites repository.SiteRepository, recommender Recommender, alerts AlertRaiser) *Service {
	return &Service{
		sites:       sites,
		recommender: recommender,
		alerts:      alerts,
		now:         time.Now,
	}
}

// EvaluateAll проверяет все сайты. Ошибка одного сайта не прерывает цикл.
func (s *Service) EvaluateAll(ctx context.Context) (*CycleSummary, error) {
	sites, err := s.sites.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return s.evaluate(ctx, sites), nil
}

// EvaluateSites проверяет только перечисленные сайты пользователя
func (s *Service) EvaluateSites(ctx context.Context, userID string, siteIDs []string) (*CycleSummary, error) {
	scope, err := valueobject.NewScope(userID, "")
	if err != nil {
		return nil, err
	}

	owned, err := s.sites.FindInScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("find sites: %w", err)
	}

	wanted := make(map[string]struct{}, len(siteIDs))
	for _, id := range siteIDs {
		wanted[id] = struct{}{}
	}

	selected := make([]*entity.Site, 0, len(siteIDs))
	for _, site := range owned {
		if _, ok := wanted[site.ID()]; ok {
			selected = append(selected, site)
		}
	}
	return s.evaluate(ctx, selected), nil
}

func (s *Service) evaluate(ctx context.Context, sites []*entity.Site) *CycleSummary {
	summary := &CycleSummary{
		GeneratedAt: s.now().UTC(),
		Sites:       make([]SiteOutcome, 0, len(sites)),
	}

	for _, site := range sites {
		if ctx.Err() != nil {
			break
		}
		summary.add(s.evaluateSite(ctx, site))
	}
	return summary
}

func (s *Service) evaluateSite(ctx context.Context, site *entity.Site) SiteOutcome {
	outcome := SiteOutcome{SiteID: site.ID(), UserID: site.UserID()}

	scope, err := valueobject.NewScope(site.UserID(), site.ID())
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	recs, err := s.recommender.Recommend(ctx, scope)
	if err != nil {
		outcome.Error = fmt.Sprintf("recommend: %v", err)
		return outcome
	}
	outcome.Recommendations = len(recs)

	for _, rec := range recs {
		_, raised, err := s.alerts.RaiseUnlessOpen(ctx, site.UserID(), alertFor(site.ID(), rec))
		if err != nil {
			outcome.Error = fmt.Sprintf("raise alert: %v", err)
			return outcome
		}
		if raised {
			outcome.AlertsRaised++
		} else {
			outcome.AlertsSkipped++
		}
	}
	return outcome
}

func alertFor(siteID string, rec service.Recommendation) dto.RaiseAlertCommand {
	cmd := dto.RaiseAlertCommand{
		SiteID:    siteID,
		Severity:  string(rec.Priority.Severity()),
		AlertType: string(rec.Type.AlertType()),
		Title:     rec.Title,
		Message:   strings.TrimSpace(rec.Description + " " + rec.Action),
	}
	if len(rec.Plugins) == 1 {
		cmd.PluginSlug = rec.Plugins[0].PluginSlug
	}
	return cmd
}
