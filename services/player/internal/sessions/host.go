package sessions

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/example/course-platform/services/player/internal/playback"
)

type EventType string

const (
	EventMetadata   EventType = "metadata"
	EventTimeUpdate EventType = "timeupdate"
	EventPause      EventType = "pause"
	EventEnded      EventType = "ended"
	EventError      EventType = "error"
)

var ErrUnknownEvent = errors.New("sessions: unknown event type")

// Event is one media-layer notification from the learner's player.
type Event struct {
	Type     EventType
	Position float64
	Code     int
}

// View is a snapshot plus the media commands queued since the last poll.
type View struct {
	SessionID string `json:"sessionId"`
	playback.Snapshot
	Commands []playback.Command `json:"commands"`
}

// Host runs one coordinator on its own control loop. Methods are safe for
// concurrent use; each hops onto the loop.
type Host struct {
	ID           string
	UserID       string
	EnrollmentID string
	CreatedAt    time.Time

	loop   *playback.Loop
	coord  *playback.Coordinator
	media  *playback.CommandQueue
	cancel context.CancelFunc

	lastSeen atomic.Int64
	closed   atomic.Bool
}

func (h *Host) touch(now time.Time) { h.lastSeen.Store(now.UnixNano()) }

// LastSeen is the time of the last request that reached this host.
func (h *Host) LastSeen() time.Time { return time.Unix(0, h.lastSeen.Load()) }

func (h *Host) View(ctx context.Context) (View, error) {
	var v View
	err := h.loop.Do(ctx, func() {
		v = View{SessionID: h.ID, Snapshot: h.coord.Snapshot(), Commands: h.media.Drain()}
	})
	if v.Commands == nil {
		v.Commands = []playback.Command{}
	}
	return v, err
}

func (h *Host) Apply(ctx context.Context, ev Event) error {
	var apply func()
	switch ev.Type {
	case EventMetadata:
		apply = h.coord.MetadataLoaded
	case EventTimeUpdate:
		apply = func() { h.coord.TimeUpdate(ev.Position) }
	case EventPause:
		apply = h.coord.Pause
	case EventEnded:
		apply = h.coord.Ended
	case EventError:
		apply = func() { h.coord.MediaError(ev.Code) }
	default:
		return ErrUnknownEvent
	}
	return h.loop.Do(ctx, apply)
}

func (h *Host) SwitchTo(ctx context.Context, lectureID string) error {
	var err error
	if doErr := h.loop.Do(ctx, func() { err = h.coord.SwitchTo(lectureID) }); doErr != nil {
		return doErr
	}
	return err
}

// Next reports false when the active lecture is the last one.
func (h *Host) Next(ctx context.Context) (bool, error) {
	var moved bool
	err := h.loop.Do(ctx, func() { moved = h.coord.Advance() })
	return moved, err
}

func (h *Host) Previous(ctx context.Context) (bool, error) {
	var moved bool
	err := h.loop.Do(ctx, func() { moved = h.coord.Previous() })
	return moved, err
}

// close tears the coordinator down, waits for the final save to leave and
// stops the loop. The loop keeps running meanwhile because a final save held
// behind an in-flight one is issued from that write's result. It is
// idempotent.
func (h *Host) close(ctx context.Context) error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := h.loop.Do(ctx, h.coord.Close)
	if waitErr := h.loop.WaitCalls(ctx); err == nil {
		err = waitErr
	}
	h.cancel()
	<-h.loop.Done()
	return err
}
