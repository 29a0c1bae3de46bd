package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type EnrollmentConfig struct {
	JWTSecret []byte
	GRPCAddr  string

	RedisURL        string
	OutlineCacheTTL time.Duration

	VideoSigningSecret string
	VideoURLTTL        time.Duration
	// VideoProxyBase, when set, routes signed video URLs through the video proxy.
	VideoProxyBase string

	AutoMigrate bool
	// DemoUserID owns the seeded enrollment of the in-memory store.
	DemoUserID string
}

func LoadEnrollment() (EnrollmentConfig, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return EnrollmentConfig{}, errors.New("JWT_SECRET is required")
	}
	cfg := EnrollmentConfig{
		JWTSecret:          []byte(secret),
		GRPCAddr:           strings.TrimSpace(os.Getenv("GRPC_ADDR")),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		VideoSigningSecret: strings.TrimSpace(os.Getenv("VIDEO_SIGNING_SECRET")),
		VideoProxyBase:     strings.TrimRight(strings.TrimSpace(os.Getenv("VIDEO_PROXY_BASE")), "/"),
		DemoUserID:         strings.TrimSpace(os.Getenv("ENROLLMENT_DEMO_USER")),
	}
	if cfg.GRPCAddr == "" {
		cfg.GRPCAddr = ":9090"
	}
	if cfg.DemoUserID == "" {
		cfg.DemoUserID = "demo-user"
	}
	if cfg.VideoProxyBase != "" && cfg.VideoSigningSecret == "" {
		return EnrollmentConfig{}, errors.New("VIDEO_PROXY_BASE requires VIDEO_SIGNING_SECRET")
	}
	var err error
	if cfg.OutlineCacheTTL, err = duration("OUTLINE_CACHE_TTL", 10*time.Minute); err != nil {
		return EnrollmentConfig{}, err
	}
	if cfg.VideoURLTTL, err = duration("VIDEO_URL_TTL", 6*time.Hour); err != nil {
		return EnrollmentConfig{}, err
	}
	switch v := strings.ToLower(strings.TrimSpace(os.Getenv("ENROLLMENT_AUTO_MIGRATE"))); v {
	case "", "0", "false", "no":
	case "1", "true", "yes":
		cfg.AutoMigrate = true
	default:
		return EnrollmentConfig{}, fmt.Errorf("ENROLLMENT_AUTO_MIGRATE: invalid value %q", v)
	}
	return cfg, nil
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
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
