package main

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/example/course-platform/internal/platform/analytics"
	"github.com/example/course-platform/internal/platform/auth"
	"github.com/example/course-platform/internal/platform/cache"
	"github.com/example/course-platform/internal/platform/config"
	"github.com/example/course-platform/internal/platform/db"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/internal/platform/logging"
	"github.com/example/course-platform/internal/platform/natsconn"
	"github.com/example/course-platform/internal/platform/run"
	"github.com/example/course-platform/internal/platform/signing"
	enrollmentconfig "github.com/example/course-platform/services/enrollment/internal/config"
	"github.com/example/course-platform/services/enrollment/internal/handlers"
	"github.com/example/course-platform/services/enrollment/internal/service"
	"github.com/example/course-platform/services/enrollment/internal/store"
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

	ecfg, err := enrollmentconfig.LoadEnrollment()
	if err != nil {
		log.Error("load enrollment config", zap.Error(err))
		run.Exit(1)
	}

	ctx := context.Background()
	var (
		st   store.Store
		pool *pgxpool.Pool
	)
	pool, err = db.Open(ctx)
	switch {
	case errors.Is(err, db.ErrNoDSN) && !cfg.IsProduction():
		mem := store.NewMemory()
		demo := store.SeedDemo(mem, ecfg.DemoUserID)
		log.Warn("DATABASE_URL not set, using in-memory store",
			zap.String("demo_user", ecfg.DemoUserID), zap.String("demo_enrollment", demo.ID))
		st = mem
	case err != nil:
		log.Error("db open", zap.Error(err))
		run.Exit(1)
	default:
		pg := store.NewPostgres(pool)
		if ecfg.AutoMigrate {
			if err := pg.Migrate(ctx); err != nil {
				log.Error("migrate", zap.Error(err))
				run.Exit(1)
			}
		}
		st = pg
	}

	opts := []service.Option{service.WithLogger(log)}

	var outlines *cache.RedisCache
	if ecfg.RedisURL != "" {
		outlines, err = cache.NewRedisCache(ecfg.RedisURL, "enrollment:", ecfg.OutlineCacheTTL)
		if err != nil {
			log.Error("redis config", zap.Error(err))
			run.Exit(1)
		}
		opts = append(opts, service.WithOutlineCache(outlines))
	}

	if ecfg.VideoSigningSecret != "" {
		opts = append(opts, service.WithSigner(signing.New(ecfg.VideoSigningSecret), ecfg.VideoURLTTL))
		if ecfg.VideoProxyBase != "" {
			opts = append(opts, service.WithVideoProxy(ecfg.VideoProxyBase))
		}
	} else if cfg.IsProduction() {
		log.Warn("VIDEO_SIGNING_SECRET not set, video URLs are served unsigned")
	}

	var nc *nats.Conn
	if natsconn.Enabled() {
		conn, js, err := natsconn.JetStream(natsconn.Options{Name: cfg.ServiceName})
		if err != nil {
			log.Error("nats connect", zap.Error(err))
			run.Exit(1)
		}
		nc = conn
		opts = append(opts, service.WithPublisher(analytics.New(js, log)))
	}

	svc := service.New(st, opts...)

	ready := func() error {
		c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if pool != nil {
			if err := pool.Ping(c); err != nil {
				return errors.New("database unavailable")
			}
		}
		if outlines != nil {
			if err := outlines.Ping(c); err != nil {
				return errors.New("cache unavailable")
			}
		}
		return nil
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: ready})
	verifier := auth.JWTVerifier{Secret: ecfg.JWTSecret}
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Get("/v1/enrollments", handlers.ListEnrollments(svc, log))
		r.Get("/v1/enrollments/{enrollment_id}/course", handlers.CourseDetail(svc, log))
		r.Post("/v1/enrollments/{enrollment_id}/progress", handlers.UpdateProgress(svc, log))
	})
	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	lis, err := net.Listen("tcp", ecfg.GRPCAddr)
	if err != nil {
		log.Error("listen grpc", zap.Error(err))
		run.Exit(1)
	}
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	reflection.Register(grpcSrv)

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go watchHealth(ctx, healthSrv, ready, log)
		go func() {
			log.Info("grpc server starting", zap.String("addr", ecfg.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil {
				log.Error("grpc serve", zap.Error(err))
			}
		}()
		return srv.Start()
	})

	runner.Graceful(
		func(context.Context) error {
			healthSrv.Shutdown()
			return nil
		},
		srv.Shutdown,
		func(ctx context.Context) error {
			stopped := make(chan struct{})
			go func() {
				grpcSrv.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
				return nil
			case <-ctx.Done():
				grpcSrv.Stop()
				return ctx.Err()
			}
		},
		func(context.Context) error {
			if nc != nil {
				return nc.Drain()
			}
			return nil
		},
		func(context.Context) error {
			if outlines != nil {
				return outlines.Close()
			}
			return nil
		},
		func(context.Context) error {
			if pool != nil {
				pool.Close()
			}
			return nil
		},
	)
	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// watchHealth mirrors the readiness check into the gRPC health service.
func watchHealth(ctx context.Context, hs *health.Server, ready func() error, log *zap.Logger) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()
	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		status := healthpb.HealthCheckResponse_SERVING
		if err := ready(); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if status != last {
			log.Info("grpc health status", zap.String("status", status.String()))
			hs.SetServingStatus("", status)
			last = status
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
