package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

type VideoProxyConfig struct {
	SigningSecret string
	// OriginHosts restricts upstream hosts. Empty allows any host the
	// signer has signed for.
	OriginHosts []string
	// PublicBase is this proxy's external URL, used when rewriting
	// playlists. Empty derives it from the request.
	PublicBase string
	// HeaderTimeout bounds the wait for upstream response headers. Bodies
	// stream without a deadline.
	HeaderTimeout time.Duration
}

func LoadVideoProxy() (VideoProxyConfig, error) {
	secret := strings.TrimSpace(os.Getenv("VIDEO_SIGNING_SECRET"))
	if secret == "" {
		return VideoProxyConfig{}, errors.New("VIDEO_SIGNING_SECRET is required")
	}
	cfg := VideoProxyConfig{
		SigningSecret: secret,
		PublicBase:    strings.TrimRight(strings.TrimSpace(os.Getenv("VIDEO_PROXY_BASE")), "/"),
		HeaderTimeout: 15 * time.Second,
	}
	if cfg.PublicBase != "" {
		if _, err := url.Parse(cfg.PublicBase); err != nil {
			return VideoProxyConfig{}, fmt.Errorf("VIDEO_PROXY_BASE: %w", err)
		}
	}
	for _, h := range strings.Split(os.Getenv("VIDEO_ORIGIN_HOSTS"), ",") {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			cfg.OriginHosts = append(cfg.OriginHosts, h)
		}
	}
	if v := strings.TrimSpace(os.Getenv("VIDEO_UPSTREAM_HEADER_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return VideoProxyConfig{}, fmt.Errorf("VIDEO_UPSTREAM_HEADER_TIMEOUT: invalid duration %q", v)
		}
		cfg.HeaderTimeout = d
	}
	return cfg, nil
}
