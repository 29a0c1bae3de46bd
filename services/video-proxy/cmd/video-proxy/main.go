package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/config"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/internal/platform/logging"
	"github.com/example/course-platform/internal/platform/run"
	"github.com/example/course-platform/internal/platform/signing"
	proxyconfig "github.com/example/course-platform/services/video-proxy/internal/config"
	"github.com/example/course-platform/services/video-proxy/internal/proxy"
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

	pcfg, err := proxyconfig.LoadVideoProxy()
	if err != nil {
		log.Error("load video proxy config", zap.Error(err))
		run.Exit(1)
	}
	if len(pcfg.OriginHosts) == 0 && cfg.IsProduction() {
		log.Warn("VIDEO_ORIGIN_HOSTS not set, any signed origin is proxied")
	}

	client := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConnsPerHost:   32,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: pcfg.HeaderTimeout,
		},
	}
	h := proxy.New(signing.New(pcfg.SigningSecret), client, proxy.Options{
		OriginHosts: pcfg.OriginHosts,
		PublicBase:  pcfg.PublicBase,
		Logger:      log,
	})

	r := chi.NewRouter()
	httpserver.SetupRouter(r)
	r.Get("/v1/video", h.ServeHTTP)
	r.Head("/v1/video", h.ServeHTTP)

	// video bodies are long-lived streams; no write deadline
	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})
	srv.HTTP.WriteTimeout = 0

	runner := run.New(log)
	code := runner.WithSignals(func(context.Context) error {
		return srv.Start()
	})
	runner.Graceful(srv.Shutdown)
	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
