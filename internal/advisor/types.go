package advisor

import "time"

// SiteOutcome итог проверки одного сайта за цикл
type SiteOutcome struct {
	SiteID          string `json:"site_id"`
	UserID          string `json:"user_id"`
	Recommendations int    `json:"recommendations"`
	AlertsRaised    int    `json:"alerts_raised"`
	AlertsSkipped   int    `json:"alerts_skipped"`
	Error           string `json:"error,omitempty"`
}

type CycleSummary struct {
	GeneratedAt          time.Time     `json:"generated_at"`
	SitesTotal           int           `json:"sites_total"`
	FailedSites          int           `json:"failed_sites"`
	RecommendationsTotal int           `json:"recommendations_total"`
	AlertsRaised         int           `json:"alerts_raised"`
	AlertsSkipped        int           `json:"alerts_skipped"`
	Sites                []SiteOutcome `json:"sites"`
}

type Snapshot struct {
	StartedAt   time.Time     `json:"started_at"`
	Interval    time.Duration `json:"interval"`
	LastRunAt   time.Time     `json:"last_run_at"`
	LastError   string        `json:"last_error,omitempty"`
	LastSummary *CycleSummary `json:"last_summary,omitempty"`
}

func (s *CycleSummary) add(outcome SiteOutcome) {
	s.SitesTotal++
	s.RecommendationsTotal += outcome.Recommendations
	s.AlertsRaised += outcome.AlertsRaised
	s.AlertsSkipped += outcome.AlertsSkipped
	if outcome.Error != "" {
		s.FailedSites++
	}
	s.Sites = append(s.Sites, outcome)
}
