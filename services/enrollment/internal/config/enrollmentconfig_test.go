package config

import (
	"testing"
	"time"
)

func TestLoadEnrollment_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("GRPC_ADDR", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("ENROLLMENT_AUTO_MIGRATE", "")

	cfg, err := LoadEnrollment()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GRPCAddr != ":9090" || cfg.OutlineCacheTTL != 10*time.Minute || cfg.VideoURLTTL != 6*time.Hour {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.AutoMigrate || cfg.RedisURL != "" || cfg.DemoUserID != "demo-user" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadEnrollment_Errors(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadEnrollment(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ENROLLMENT_AUTO_MIGRATE", "maybe")
	if _, err := LoadEnrollment(); err == nil {
		t.Fatal("expected error for an invalid boolean")
	}
	t.Setenv("ENROLLMENT_AUTO_MIGRATE", "true")
	t.Setenv("VIDEO_URL_TTL", "-1h")
	if _, err := LoadEnrollment(); err == nil {
		t.Fatal("expected error for a negative ttl")
	}
}

func TestLoadEnrollment_VideoProxyNeedsSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("VIDEO_PROXY_BASE", "https://video.example.com/v1/video/")
	t.Setenv("VIDEO_SIGNING_SECRET", "")
	if _, err := LoadEnrollment(); err == nil {
		t.Fatal("expected error for a proxy without a signing secret")
	}

	t.Setenv("VIDEO_SIGNING_SECRET", "video-secret")
	cfg, err := LoadEnrollment()
	if err != nil {
		t.Fatalf("LoadEnrollment: %v", err)
	}
	if cfg.VideoProxyBase != "https://video.example.com/v1/video" {
		t.Fatalf("proxy base = %q", cfg.VideoProxyBase)
	}
}
