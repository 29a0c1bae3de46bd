package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/config"
	"github.com/example/course-platform/internal/platform/logging"
	"github.com/example/course-platform/internal/platform/natsconn"
	"github.com/example/course-platform/internal/platform/run"
	analyticsconfig "github.com/example/course-platform/services/analytics/internal/config"
	"github.com/example/course-platform/services/analytics/internal/consumer"
	"github.com/example/course-platform/services/analytics/internal/handler"
	"github.com/example/course-platform/services/analytics/internal/posthog"
)

var _ handler.Capturer = (*posthog.Client)(nil)

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

	acfg, err := analyticsconfig.LoadAnalytics()
	if err != nil {
		log.Error("load analytics config", zap.Error(err))
		run.Exit(1)
	}

	ph, err := posthog.New(posthog.Options{
		APIKey:        acfg.PostHogAPIKey,
		Endpoint:      acfg.PostHogHost,
		FlushInterval: acfg.FlushInterval,
		BatchSize:     acfg.PostHogBatchSize,
		Logger:        log,
	})
	if err != nil {
		log.Error("posthog init", zap.Error(err))
		run.Exit(1)
	}

	nc, err := natsconn.Connect(natsconn.Options{Name: cfg.ServiceName})
	if err != nil {
		log.Error("nats connect", zap.Error(err))
		run.Exit(1)
	}

	c, err := consumer.New(nc, handler.New(ph, log), acfg.FetchBatch, acfg.FetchWait, log)
	if err != nil {
		log.Error("consumer init", zap.Error(err))
		run.Exit(1)
	}

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		log.Info("analytics consumer started", zap.String("stream", consumer.Stream))
		c.Run(ctx)
		return nil
	})
	runner.Graceful(
		func(context.Context) error { return nc.Drain() },
		func(context.Context) error { return ph.Close() },
	)
	log.Info("analytics consumer stopped")
	run.Exit(code)
}
