// Package sessions keeps the live playback coordinators of the player
// service, one per open player, and closes the ones nobody talks to anymore.
package sessions

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/analytics"
	"github.com/example/course-platform/services/player/internal/playback"
)

var (
	ErrNotFound  = errors.New("sessions: not found")
	ErrForbidden = errors.New("sessions: owned by another user")
)

// StoreFactory returns a progress store that acts on behalf of the bearer
// token's user.
type StoreFactory func(token string) playback.ProgressStore

type Options struct {
	Logger      *zap.Logger
	Publisher   *analytics.Publisher
	IdleTimeout time.Duration
	// MaxPerUser caps open sessions per user; opening one more closes the
	// least recently used.
	MaxPerUser int
	Now        func() time.Time
}

type Registry struct {
	newStore StoreFactory
	log      *zap.Logger
	pub      *analytics.Publisher
	idle     time.Duration
	maxUser  int
	now      func() time.Time

	mu    sync.Mutex
	hosts map[string]*Host
}

func New(newStore StoreFactory, opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		newStore: newStore,
		log:      opts.Logger,
		pub:      opts.Publisher,
		idle:     opts.IdleTimeout,
		maxUser:  opts.MaxPerUser,
		now:      opts.Now,
		hosts:    make(map[string]*Host),
	}
}

// Create starts a coordinator for enrollmentID and registers it. Load
// failures and empty courses return the playback error and register nothing.
func (r *Registry) Create(ctx context.Context, userID, token, enrollmentID, lectureID string) (*Host, error) {
	id := uuid.NewString()
	log := r.log.With(zap.String("session_id", id), zap.String("user_id", userID))

	loop := playback.NewLoop(log)
	loopCtx, cancel := context.WithCancel(context.Background())
	go func() { _ = loop.Run(loopCtx) }()

	media := &playback.CommandQueue{}
	coord := playback.NewCoordinator(r.newStore(token), loop, media,
		playback.WithLogger(log),
		playback.WithPublisher(r.pub, userID),
	)

	var startErr error
	if err := loop.Do(ctx, func() { startErr = coord.Start(ctx, enrollmentID, lectureID) }); err != nil {
		cancel()
		return nil, err
	}
	if startErr != nil {
		cancel()
		return nil, startErr
	}

	h := &Host{
		ID:           id,
		UserID:       userID,
		EnrollmentID: enrollmentID,
		CreatedAt:    r.now(),
		loop:         loop,
		coord:        coord,
		media:        media,
		cancel:       cancel,
	}
	h.touch(r.now())

	r.mu.Lock()
	r.hosts[id] = h
	evict := r.overLimitLocked(userID)
	r.mu.Unlock()

	for _, old := range evict {
		log.Info("closing least recently used session", zap.String("evicted_session_id", old.ID))
		if err := old.close(ctx); err != nil {
			log.Warn("close evicted session", zap.Error(err))
		}
	}
	log.Info("session started", zap.String("enrollment_id", enrollmentID))
	return h, nil
}

func (r *Registry) overLimitLocked(userID string) []*Host {
	if r.maxUser <= 0 {
		return nil
	}
	var owned []*Host
	for _, h := range r.hosts {
		if h.UserID == userID {
			owned = append(owned, h)
		}
	}
	if len(owned) <= r.maxUser {
		return nil
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].lastSeen.Load() < owned[j].lastSeen.Load() })
	evict := owned[:len(owned)-r.maxUser]
	for _, h := range evict {
		delete(r.hosts, h.ID)
	}
	return evict
}

// Get returns the host for id if userID owns it, and marks it as active.
func (r *Registry) Get(id, userID string) (*Host, error) {
	r.mu.Lock()
	h, ok := r.hosts[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	if h.UserID != userID {
		return nil, ErrForbidden
	}
	h.touch(r.now())
	return h, nil
}

func (r *Registry) Close(ctx context.Context, id, userID string) error {
	r.mu.Lock()
	h, ok := r.hosts[id]
	if ok && h.UserID == userID {
		delete(r.hosts, id)
	}
	r.mu.Unlock()
	switch {
	case !ok:
		return ErrNotFound
	case h.UserID != userID:
		return ErrForbidden
	}
	return h.close(ctx)
}

// Reap closes every session idle for longer than the idle timeout and
// returns how many it closed.
func (r *Registry) Reap(ctx context.Context) int {
	cutoff := r.now().Add(-r.idle).UnixNano()
	var stale []*Host
	r.mu.Lock()
	for id, h := range r.hosts {
		if h.lastSeen.Load() < cutoff {
			stale = append(stale, h)
			delete(r.hosts, id)
		}
	}
	r.mu.Unlock()

	for _, h := range stale {
		if err := h.close(ctx); err != nil {
			r.log.Warn("close idle session", zap.String("session_id", h.ID), zap.Error(err))
		}
	}
	if len(stale) > 0 {
		r.log.Info("reaped idle sessions", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// RunReaper calls Reap every interval until ctx is done.
func (r *Registry) RunReaper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Reap(ctx)
		}
	}
}

// CloseAll closes every session, as on shutdown.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	all := make([]*Host, 0, len(r.hosts))
	for id, h := range r.hosts {
		all = append(all, h)
		delete(r.hosts, id)
	}
	r.mu.Unlock()

	var errs []error
	for _, h := range all {
		if err := h.close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hosts)
}
