package advisor

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            string
	Interval        time.Duration
	CycleTimeout    time.Duration
	SubscribeEvents bool
	ConsumerName    string
}

func LoadConfigFromEnv() (Config, error) {
	interval, err := time.ParseDuration(getEnv("ADVISOR_INTERVAL", "5m"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ADVISOR_INTERVAL: %w", err)
	}

	if interval < 5*time.Second {
		return Config{}, errors.New("ADVISOR_INTERVAL must be >= 5s")
	}

	timeout, err := time.ParseDuration(getEnv("ADVISOR_CYCLE_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ADVISOR_CYCLE_TIMEOUT: %w", err)
	}

	subscribe, err := strconv.ParseBool(getEnv("ADVISOR_SUBSCRIBE_EVENTS", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ADVISOR_SUBSCRIBE_EVENTS: %w", err)
	}

	return Config{
		Port:            getEnv("ADVISOR_PORT", "8081"),
		Interval:        interval,
		CycleTimeout:    timeout,
		SubscribeEvents: subscribe,
		ConsumerName:    getEnv("ADVISOR_CONSUMER", "alert-advisor"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
