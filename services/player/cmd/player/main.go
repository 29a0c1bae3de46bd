package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/analytics"
	"github.com/example/course-platform/internal/platform/auth"
	"github.com/example/course-platform/internal/platform/config"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/internal/platform/logging"
	"github.com/example/course-platform/internal/platform/natsconn"
	"github.com/example/course-platform/internal/platform/run"
	playerconfig "github.com/example/course-platform/services/player/internal/config"
	"github.com/example/course-platform/services/player/internal/handlers"
	"github.com/example/course-platform/services/player/internal/playback"
	"github.com/example/course-platform/services/player/internal/progressclient"
	"github.com/example/course-platform/services/player/internal/sessions"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	playerCfg, err := playerconfig.LoadPlayer()
	if err != nil {
		log.Error("load player config", zap.Error(err))
		run.Exit(1)
	}

	var nc *nats.Conn
	pub := analytics.New(nil, log)
	if natsconn.Enabled() {
		conn, js, err := natsconn.JetStream(natsconn.Options{Name: cfg.ServiceName})
		if err != nil {
			log.Error("nats connect", zap.Error(err))
			run.Exit(1)
		}
		nc = conn
		pub = analytics.New(js, log)
	} else {
		log.Info("NATS_URL not set, analytics disabled")
	}

	client := progressclient.New(playerCfg.EnrollmentBaseURL,
		progressclient.WithHTTPClient(&http.Client{Timeout: playerCfg.RequestTimeout}),
		progressclient.WithCircuitBreaker(progressclient.NewBreaker(progressclient.BreakerSettings{
			Failures: uint32(playerCfg.BreakerFailures),
			Cooldown: playerCfg.BreakerCooldown,
			Logger:   log,
		})))
	reg := sessions.New(func(token string) playback.ProgressStore {
		return client.WithBearer(token)
	}, sessions.Options{
		Logger:      log,
		Publisher:   pub,
		IdleTimeout: playerCfg.SessionIdleTimeout,
		MaxPerUser:  playerCfg.MaxSessionsPerUser,
	})
	limiter := handlers.NewRateLimiter(playerCfg.CreateRate, playerCfg.CreateBurst)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: func() error {
		if nc != nil && !nc.IsConnected() {
			return errors.New("nats disconnected")
		}
		return nil
	}})

	verifier := auth.JWTVerifier{Secret: playerCfg.JWTSecret}
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Get("/v1/enrollments", handlers.ListEnrollments(func(token string) handlers.EnrollmentLister {
			return client.WithBearer(token)
		}, log))
		r.With(limiter.Middleware).Post("/v1/sessions", handlers.CreateSession(reg, log))
		r.Route("/v1/sessions/{session_id}", func(r chi.Router) {
			r.Get("/", handlers.GetSession(reg, log))
			r.Delete("/", handlers.CloseSession(reg, log))
			r.Post("/events", handlers.PostEvent(reg, log))
			r.Post("/lecture", handlers.SwitchLecture(reg, log))
			r.Post("/next", handlers.NextLecture(reg, log))
			r.Post("/previous", handlers.PreviousLecture(reg, log))
		})
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go reg.RunReaper(ctx, time.Minute)
		go pruneLoop(ctx, limiter)
		return srv.Start()
	})

	runner.Graceful(
		srv.Shutdown,
		reg.CloseAll,
		func(context.Context) error {
			if nc == nil {
				return nil
			}
			return nc.Drain()
		},
	)
	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

func pruneLoop(ctx context.Context, rl *handlers.RateLimiter) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rl.Prune()
		}
	}
}
