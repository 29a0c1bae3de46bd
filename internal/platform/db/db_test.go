package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestOpen_RequiresDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "  ")
	_, err := Open(context.Background())
	if !errors.Is(err, ErrNoDSN) {
		t.Fatalf("expected ErrNoDSN, got %v", err)
	}
}

func TestOpenDSN_InvalidDSN(t *testing.T) {
	if _, err := OpenDSN(context.Background(), "postgres://%zz", PoolOptions{}); err == nil {
		t.Fatal("expected parse error for malformed DSN")
	}
}

func TestPoolOptions_Defaults(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "")
	t.Setenv("DB_MIN_CONNS", "")
	o, err := PoolOptions{}.withDefaults()
	if err != nil {
		t.Fatal(err)
	}
	if o.MaxConns != 10 || o.MinConns != 1 || o.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults %+v", o)
	}
}

func TestPoolOptions_FromEnv(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "25")
	t.Setenv("DB_MIN_CONNS", "4")
	o, err := PoolOptions{}.withDefaults()
	if err != nil {
		t.Fatal(err)
	}
	if o.MaxConns != 25 || o.MinConns != 4 {
		t.Fatalf("unexpected sizes %+v", o)
	}

	t.Setenv("DB_MIN_CONNS", "30")
	if _, err := (PoolOptions{}).withDefaults(); err == nil {
		t.Fatal("expected error when min exceeds max")
	}
	t.Setenv("DB_MAX_CONNS", "lots")
	if _, err := (PoolOptions{}).withDefaults(); err == nil {
		t.Fatal("expected error for a non-numeric size")
	}
}
