package config

import (
	"testing"
	"time"
)

func TestLoadPlayer_RequiresSecretAndBaseURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENROLLMENT_BASE_URL", "http://enrollment:8080")
	if _, err := LoadPlayer(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ENROLLMENT_BASE_URL", " ")
	if _, err := LoadPlayer(); err == nil {
		t.Fatal("expected error without ENROLLMENT_BASE_URL")
	}
}

func TestLoadPlayer_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ENROLLMENT_BASE_URL", "http://enrollment:8080/")
	t.Setenv("PLAYER_SESSION_IDLE_TIMEOUT", "")
	t.Setenv("PLAYER_CREATE_RATE", "")

	cfg, err := LoadPlayer()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.EnrollmentBaseURL != "http://enrollment:8080" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.EnrollmentBaseURL)
	}
	if cfg.SessionIdleTimeout != 30*time.Minute || cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("unexpected timeouts %+v", cfg)
	}
	if cfg.BreakerFailures != 5 || cfg.BreakerCooldown != 30*time.Second {
		t.Fatalf("unexpected breaker settings %+v", cfg)
	}
	if cfg.MaxSessionsPerUser != 5 || cfg.CreateRate != 1 || cfg.CreateBurst != 10 {
		t.Fatalf("unexpected limits %+v", cfg)
	}
}

func TestLoadPlayer_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ENROLLMENT_BASE_URL", "http://enrollment:8080")
	t.Setenv("PLAYER_SESSION_IDLE_TIMEOUT", "5m")
	t.Setenv("PLAYER_CREATE_RATE", "0.5")

	cfg, err := LoadPlayer()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SessionIdleTimeout != 5*time.Minute || cfg.CreateRate != 0.5 {
		t.Fatalf("unexpected config %+v", cfg)
	}

	t.Setenv("PLAYER_SESSION_IDLE_TIMEOUT", "soon")
	if _, err := LoadPlayer(); err == nil {
		t.Fatal("expected error for an invalid duration")
	}
}
