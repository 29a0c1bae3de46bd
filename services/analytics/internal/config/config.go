package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AnalyticsConfig configures the learn-event consumer.
type AnalyticsConfig struct {
	PostHogAPIKey    string
	PostHogHost      string // e.g. https://app.posthog.com or self-hosted URL
	FlushInterval    time.Duration
	PostHogBatchSize int           // PostHog SDK batch size before flush
	FetchBatch       int           // JetStream pull batch size
	FetchWait        time.Duration // JetStream pull max wait
}

func LoadAnalytics() (AnalyticsConfig, error) {
	key := strings.TrimSpace(os.Getenv("POSTHOG_API_KEY"))
	if key == "" {
		return AnalyticsConfig{}, errors.New("POSTHOG_API_KEY is required")
	}
	cfg := AnalyticsConfig{
		PostHogAPIKey: key,
		PostHogHost:   strings.TrimSpace(os.Getenv("POSTHOG_HOST")),
	}
	if cfg.PostHogHost == "" {
		cfg.PostHogHost = "https://app.posthog.com"
	}

	var err error
	if cfg.FlushInterval, err = envDuration("POSTHOG_FLUSH_INTERVAL", 5*time.Second); err != nil {
		return AnalyticsConfig{}, err
	}
	if cfg.PostHogBatchSize, err = envInt("POSTHOG_BATCH_SIZE", 100); err != nil {
		return AnalyticsConfig{}, err
	}
	if cfg.FetchBatch, err = envInt("ANALYTICS_FETCH_BATCH", 200); err != nil {
		return AnalyticsConfig{}, err
	}
	if cfg.FetchWait, err = envDuration("ANALYTICS_FETCH_WAIT", 2*time.Second); err != nil {
		return AnalyticsConfig{}, err
	}
	return cfg, nil
}

func envInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}
