// Package consumer manages the JetStream pull consumer for learn events.
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/course-platform/services/analytics/internal/handler"
)

const (
	Stream  = "LEARN_ANALYTICS"
	Durable = "learn_analytics_processor"

	// StreamSubjects covers every analytics.learn.* event published by the
	// player and enrollment services.
	StreamSubjects = "analytics.learn.>"
)

// fetcher is the pull half of a *nats.Subscription.
type fetcher interface {
	Fetch(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error)
}

// Consumer wraps a JetStream pull subscription and dispatches messages.
type Consumer struct {
	sub        fetcher
	dispatcher *handler.Dispatcher
	batchSize  int
	wait       time.Duration
	backoff    time.Duration
	log        *zap.Logger
}

// New ensures the LEARN_ANALYTICS stream exists and binds a durable pull
// consumer to it.
func New(nc *nats.Conn, d *handler.Dispatcher, batchSize int, wait time.Duration, log *zap.Logger) (*Consumer, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}

	ensureStream(js, log)

	sub, err := js.PullSubscribe(StreamSubjects, Durable, nats.BindStream(Stream))
	if err != nil {
		return nil, err
	}
	return newConsumer(sub, d, batchSize, wait, log), nil
}

func newConsumer(sub fetcher, d *handler.Dispatcher, batchSize int, wait time.Duration, log *zap.Logger) *Consumer {
	return &Consumer{
		sub:        sub,
		dispatcher: d,
		batchSize:  batchSize,
		wait:       wait,
		backoff:    time.Second,
		log:        log,
	}
}

// Run processes messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.sub.Fetch(c.batchSize, nats.MaxWait(c.wait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			c.log.Error("analytics consumer: fetch", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}

		for _, msg := range msgs {
			c.dispatcher.Dispatch(msg)
			if err := msg.Ack(); err != nil {
				c.log.Warn("analytics consumer: ack", zap.Error(err))
			}
		}
	}
}

// ensureStream creates the LEARN_ANALYTICS stream if it doesn't exist, or
// updates it in place.
func ensureStream(js nats.JetStreamContext, log *zap.Logger) {
	cfg := &nats.StreamConfig{
		Name:      Stream,
		Subjects:  []string{StreamSubjects},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    30 * 24 * time.Hour,
	}

	_, err := js.AddStream(cfg)
	if err == nil {
		log.Info("analytics: stream created", zap.String("stream", Stream))
		return
	}

	if !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		if _, updateErr := js.UpdateStream(cfg); updateErr != nil {
			log.Warn("analytics: stream update failed (may already be up to date)", zap.Error(updateErr))
		}
	}
}
