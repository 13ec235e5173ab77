package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Analytics.DefaultWindowDays != 7 {
		t.Fatalf("DefaultWindowDays = %d, want 7", cfg.Analytics.DefaultWindowDays)
	}
	if cfg.Analytics.DefaultRankingLimit != 5 {
		t.Fatalf("DefaultRankingLimit = %d, want 5", cfg.Analytics.DefaultRankingLimit)
	}
	if cfg.Alerts.FeedLookback != time.Minute {
		t.Fatalf("FeedLookback = %v, want 1m", cfg.Alerts.FeedLookback)
	}
	if cfg.Ingestion.MaxPayloadBytes != 2048*1024 {
		t.Fatalf("MaxPayloadBytes = %d", cfg.Ingestion.MaxPayloadBytes)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ANALYTICS_WINDOW_DAYS", "30")
	t.Setenv("ALERTS_SCORE_THRESHOLD", "2.5")
	t.Setenv("REDIS_CACHE_TTL", "90s")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Analytics.DefaultWindowDays != 30 {
		t.Fatalf("DefaultWindowDays = %d, want 30", cfg.Analytics.DefaultWindowDays)
	}
	if cfg.Alerts.ScoreAlertThreshold != 2.5 {
		t.Fatalf("ScoreAlertThreshold = %v, want 2.5", cfg.Alerts.ScoreAlertThreshold)
	}
	if cfg.Redis.CacheTTL != 90*time.Second {
		t.Fatalf("CacheTTL = %v, want 90s", cfg.Redis.CacheTTL)
	}
	if len(cfg.Security.AllowedOrigins) != 2 || cfg.Security.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("AllowedOrigins = %v", cfg.Security.AllowedOrigins)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "duration", key: "ALERTS_FEED_LOOKBACK", value: "soon", wantErr: "invalid ALERTS_FEED_LOOKBACK"},
		{name: "int", key: "INGEST_MAX_BATCH_SIZE", value: "many", wantErr: "invalid INGEST_MAX_BATCH_SIZE"},
		{name: "float", key: "INGEST_RATE_LIMIT_RPS", value: "fast", wantErr: "invalid INGEST_RATE_LIMIT_RPS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			S3:        S3Config{URLMode: "presigned"},
			Analytics: AnalyticsConfig{DefaultWindowDays: 7, DefaultRankingLimit: 5},
			Alerts:    AlertsConfig{FeedLookback: time.Minute, ScoreAlertThreshold: 3},
			Ingestion: IngestionConfig{MaxBatchSize: 10, RateLimitRPS: 1, RateLimitBurst: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "auth without token",
			mutate:  func(c *Config) { c.Security.AuthEnabled = true },
			wantErr: "AUTH_BEARER_TOKEN",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.S3.Enabled = true },
			wantErr: "S3_BUCKET",
		},
		{
			name:    "unknown url mode",
			mutate:  func(c *Config) { c.S3.URLMode = "signed" },
			wantErr: "S3_URL_MODE",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Alerts.ScoreAlertThreshold = 5 },
			wantErr: "ALERTS_SCORE_THRESHOLD",
		},
		{
			name:    "zero window",
			mutate:  func(c *Config) { c.Analytics.DefaultWindowDays = 0 },
			wantErr: "ANALYTICS_WINDOW_DAYS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Database: "pm", SSLMode: "require"}
	want := "host=db port=5432 user=u password=p dbname=pm sslmode=require"
	if got := db.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
}
