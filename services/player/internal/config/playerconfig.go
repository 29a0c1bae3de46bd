package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type PlayerConfig struct {
	JWTSecret []byte
	// EnrollmentBaseURL is the enrollment service the engine reads course
	// outlines from and writes progress to.
	EnrollmentBaseURL string
	RequestTimeout    time.Duration
	// The enrollment circuit breaker opens after BreakerFailures consecutive
	// failures and probes again after BreakerCooldown.
	BreakerFailures int
	BreakerCooldown time.Duration

	SessionIdleTimeout time.Duration
	MaxSessionsPerUser int

	// Token bucket for POST /v1/sessions, per client IP.
	CreateRate  float64
	CreateBurst int
}

func LoadPlayer() (PlayerConfig, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return PlayerConfig{}, errors.New("JWT_SECRET is required")
	}
	base := strings.TrimRight(strings.TrimSpace(os.Getenv("ENROLLMENT_BASE_URL")), "/")
	if base == "" {
		return PlayerConfig{}, errors.New("ENROLLMENT_BASE_URL is required")
	}

	cfg := PlayerConfig{JWTSecret: []byte(secret), EnrollmentBaseURL: base}
	var err error
	if cfg.RequestTimeout, err = envDuration("PLAYER_REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return PlayerConfig{}, err
	}
	if cfg.BreakerFailures, err = envInt("PLAYER_BREAKER_FAILURES", 5); err != nil {
		return PlayerConfig{}, err
	}
	if cfg.BreakerCooldown, err = envDuration("PLAYER_BREAKER_COOLDOWN", 30*time.Second); err != nil {
		return PlayerConfig{}, err
	}
	if cfg.SessionIdleTimeout, err = envDuration("PLAYER_SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return PlayerConfig{}, err
	}
	if cfg.MaxSessionsPerUser, err = envInt("PLAYER_MAX_SESSIONS_PER_USER", 5); err != nil {
		return PlayerConfig{}, err
	}
	if cfg.CreateBurst, err = envInt("PLAYER_CREATE_BURST", 10); err != nil {
		return PlayerConfig{}, err
	}
	cfg.CreateRate = 1
	if v := strings.TrimSpace(os.Getenv("PLAYER_CREATE_RATE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return PlayerConfig{}, fmt.Errorf("PLAYER_CREATE_RATE: invalid value %q", v)
		}
		cfg.CreateRate = f
	}
	return cfg, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid value %q", key, v)
	}
	return n, nil
}
