// Package posthog forwards learn events to PostHog through posthog-go,
// which batches and flushes in the background.
package posthog

import (
	"time"

	ph "github.com/posthog/posthog-go"
	"go.uber.org/zap"
)

type Options struct {
	APIKey        string
	Endpoint      string // cloud or self-hosted URL
	FlushInterval time.Duration
	BatchSize     int
	Logger        *zap.Logger
}

type Client struct {
	ph  ph.Client
	log *zap.Logger
}

func New(opts Options) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "posthog"))
	client, err := ph.NewWithConfig(opts.APIKey, ph.Config{
		Endpoint:  opts.Endpoint,
		BatchSize: opts.BatchSize,
		Interval:  opts.FlushInterval,
		Logger:    sdkLogger{log.Sugar()},
	})
	if err != nil {
		return nil, err
	}
	return &Client{ph: client, log: log}, nil
}

// Capture queues one event stamped with when it happened, not when it was
// consumed, so replays after downtime keep their timeline.
func (c *Client) Capture(distinctID, event string, at time.Time, props map[string]any) {
	if c == nil || c.ph == nil {
		return
	}
	p := ph.NewProperties()
	for k, v := range props {
		p.Set(k, v)
	}
	err := c.ph.Enqueue(ph.Capture{
		DistinctId: distinctID,
		Event:      event,
		Timestamp:  at,
		Properties: p,
	})
	if err != nil {
		c.log.Warn("enqueue failed", zap.String("event", event), zap.Error(err))
	}
}

// Close flushes queued events.
func (c *Client) Close() error {
	if c == nil || c.ph == nil {
		return nil
	}
	return c.ph.Close()
}

// sdkLogger routes posthog-go's printf-style logging into zap.
type sdkLogger struct{ s *zap.SugaredLogger }

func (l sdkLogger) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l sdkLogger) Logf(format string, args ...any)   { l.s.Infof(format, args...) }
func (l sdkLogger) Warnf(format string, args ...any)  { l.s.Warnf(format, args...) }
func (l sdkLogger) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }
