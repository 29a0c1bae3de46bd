package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/course-platform/services/player/internal/domain"
)

// Timer is a pending callback scheduled on a Clock.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Callbacks always run on the control loop.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SaveCall performs one progress write against the store.
type SaveCall func(ctx context.Context) (domain.ProgressResult, error)

// Executor runs a store call off the control loop and delivers its result
// back on the loop. The call is never cancelled once started.
type Executor interface {
	Go(call SaveCall, done func(domain.ProgressResult, error))
}

// Runtime is everything a session needs from its control loop.
type Runtime interface {
	Clock
	Executor
}

// ErrLoopStopped is returned by Do once the loop has exited.
var ErrLoopStopped = errors.New("playback: control loop stopped")

// DefaultCallTimeout bounds store calls started by Loop.Go.
const DefaultCallTimeout = 30 * time.Second

// Loop is a single-writer event loop. Every piece of coordinator and session
// state is read and written only from functions running on it, so none of
// that state needs a lock.
type Loop struct {
	events      chan func()
	done        chan struct{}
	log         *zap.Logger
	callTimeout time.Duration
	calls       sync.WaitGroup
}

func NewLoop(log *zap.Logger) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{
		events:      make(chan func(), 64),
		done:        make(chan struct{}),
		log:         log,
		callTimeout: DefaultCallTimeout,
	}
}

// Run processes posted functions in FIFO order until ctx is cancelled.
// It must be called from exactly one goroutine.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.events:
			l.invoke(fn)
		}
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("playback: recovered panic on control loop", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
}

// Post enqueues fn. It reports false if the loop has already stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.events <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() { l.Post(f) })
}

// Go counts a call as open until done has run on the loop, so a call that
// done starts in turn keeps WaitCalls waiting.
func (l *Loop) Go(call SaveCall, done func(domain.ProgressResult, error)) {
	l.calls.Add(1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.callTimeout)
		res, err := call(ctx)
		cancel()
		if !l.Post(func() {
			defer l.calls.Done()
			done(res, err)
		}) {
			l.calls.Done()
		}
	}()
}

// WaitCalls blocks until every store call started by Go has returned and
// delivered its result, so a final teardown save is not lost when the
// process exits. Results of calls that return after the loop stopped are
// dropped.
func (l *Loop) WaitCalls(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		l.calls.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
