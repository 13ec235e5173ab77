package advisor

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfigFromEnv()
		if err != nil {
			t.Fatalf("LoadConfigFromEnv: %v", err)
		}
		if cfg.Port != "8081" || cfg.Interval != 5*time.Minute || cfg.SubscribeEvents {
			t.Fatalf("unexpected defaults: %+v", cfg)
		}
	})

	t.Run("too short interval", func(t *testing.T) {
		t.Setenv("ADVISOR_INTERVAL", "1s")
		if _, err := LoadConfigFromEnv(); err == nil {
			t.Fatalf("expected error for interval below 5s")
		}
	})

	t.Run("bad subscribe flag", func(t *testing.T) {
		t.Setenv("ADVISOR_SUBSCRIBE_EVENTS", "maybe")
		if _, err := LoadConfigFromEnv(); err == nil {
			t.Fatalf("expected error for malformed bool")
		}
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("ADVISOR_INTERVAL", "30s")
		t.Setenv("ADVISOR_SUBSCRIBE_EVENTS", "true")
		t.Setenv("ADVISOR_PORT", "9090")
		cfg, err := LoadConfigFromEnv()
		if err != nil {
			t.Fatalf("LoadConfigFromEnv: %v", err)
		}
		if cfg.Interval != 30*time.Second || !cfg.SubscribeEvents || cfg.Port != "9090" {
			t.Fatalf("unexpected overrides: %+v", cfg)
		}
	})
}
