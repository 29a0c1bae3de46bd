package playback

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/example/course-platform/services/player/internal/domain"
	"github.com/example/course-platform/services/player/internal/progressclient"
)

const (
	// AutosaveInterval is the autosave period while a lecture is Ready.
	AutosaveInterval = 10 * time.Second
	// AdvanceDelay lets the completion state render before auto-advance.
	AdvanceDelay = time.Second
	// MaxPosition is the largest media position, in seconds, a session accepts.
	MaxPosition = math.MaxInt32
)

type State int

const (
	StateLoading State = iota
	StateReady
	StateEnded
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateEnded:
		return "ended"
	case StateTornDown:
		return "torn_down"
	}
	return "unknown"
}

// SaveState is the session's write axis, orthogonal to State.
type SaveState int

const (
	SaveNone SaveState = iota
	SaveInFlight
	SaveStaleDiscarded
)

func (s SaveState) String() string {
	switch s {
	case SaveInFlight:
		return "in_flight"
	case SaveStaleDiscarded:
		return "stale_discarded"
	}
	return "none"
}

// ProgressStore is the enrollment service as seen by the engine.
type ProgressStore interface {
	LoadCourse(ctx context.Context, enrollmentID string) (domain.CourseDetail, error)
	SaveProgress(ctx context.Context, enrollmentID string, u domain.ProgressUpdate) (domain.ProgressResult, error)
}

type sessionHooks struct {
	// saved runs after a successful write that is still relevant.
	saved func(s *Session, res domain.ProgressResult)
	// ended runs AdvanceDelay after the completion write was acknowledged.
	ended func(s *Session)
}

// Session is the playback state of one active lecture. All methods must be
// called on the control loop.
type Session struct {
	enrollmentID string
	lecture      domain.Lecture
	rt           Runtime
	store        ProgressStore
	media        Media
	log          *zap.Logger
	hooks        sessionHooks

	state              State
	saving             SaveState
	localWatchTime     int
	lastSavedWatchTime int

	autosave    Timer
	timerGen    int
	timerPaused bool
	advance     Timer

	inflight          *progressclient.InFlight
	inflightUpdate    domain.ProgressUpdate
	flushPending      bool
	completionPending bool
	// final is a teardown save held back until the in-flight write returns.
	final *domain.ProgressUpdate

	lastErr *MediaError
}

func newSession(enrollmentID string, l domain.Lecture, rt Runtime, store ProgressStore, media Media, log *zap.Logger, hooks sessionHooks) *Session {
	resume := l.SavedWatchTime()
	return &Session{
		enrollmentID:       enrollmentID,
		lecture:            l,
		rt:                 rt,
		store:              store,
		media:              media,
		log:                log.With(zap.String("lecture_id", l.ID)),
		hooks:              hooks,
		state:              StateLoading,
		localWatchTime:     resume,
		lastSavedWatchTime: resume,
		inflight:           progressclient.NewInFlight(),
	}
}

func (s *Session) Lecture() domain.Lecture { return s.lecture }
func (s *Session) State() State { return s.state }
func (s *Session) Saving() SaveState { return s.saving }
func (s *Session) LocalWatchTime() int { return s.localWatchTime }
func (s *Session) LastSavedWatchTime() int { return s.lastSavedWatchTime }
func (s *Session) LastError() *MediaError { return s.lastErr }
func (s *Session) ResumePosition() int { return s.lecture.SavedWatchTime() }

// enter attaches the video source. The seek waits for MetadataLoaded.
func (s *Session) enter() {
	s.media.Attach(s.lecture)
}

// MetadataLoaded applies the pending seek and makes the session Ready.
func (s *Session) MetadataLoaded() {
	if s.state != StateLoading {
		return
	}
	s.media.Seek(s.lecture.SavedWatchTime())
	s.state = StateReady
	if s.lastErr == nil {
		s.scheduleAutosave()
	} else {
		s.timerPaused = true
	}
}

// TimeUpdate records the media position, floored to whole seconds. It never
// writes. Positions reported before the seek is applied are ignored, as are
// NaN and positions beyond MaxPosition. Progress at a new position after a
// media error means playback recovered, so autosave resumes.
func (s *Session) TimeUpdate(position float64) {
	if s.state != StateReady {
		return
	}
	if math.IsNaN(position) || position > MaxPosition {
		return
	}
	if position < 0 {
		position = 0
	}
	sec := int(math.Floor(position))
	if s.timerPaused && sec != s.localWatchTime {
		s.lastErr = nil
		s.timerPaused = false
		s.scheduleAutosave()
	}
	s.localWatchTime = sec
}

// Pause saves the current position immediately.
func (s *Session) Pause() {
	if s.state != StateReady {
		return
	}
	s.issue(domain.ProgressUpdate{LectureID: s.lecture.ID, WatchTime: s.localWatchTime}, true)
}

// Ended records completion at the lecture's full duration.
func (s *Session) Ended() {
	if s.state != StateReady {
		return
	}
	s.completionPending = true
	s.issue(s.completionUpdate(), true)
}

// MediaFailed surfaces a classified error and pauses autosave until the
// media reports progress again. Switching lectures tears the session down.
func (s *Session) MediaFailed(code int) MediaError {
	me := ClassifyMediaError(code)
	s.lastErr = &me
	if s.autosave != nil && !s.timerPaused {
		s.stopAutosave()
		s.timerPaused = true
	}
	s.log.Info("media error", zap.Int("code", code), zap.String("kind", string(me.Kind)))
	return me
}

// Teardown stops every timer and, if the position moved since the last
// acknowledged save, issues one final write whose result is not awaited.
// It is safe to call more than once.
func (s *Session) Teardown() {
	if s.state == StateTornDown {
		return
	}
	prev := s.state
	s.stopAutosave()
	if s.advance != nil {
		s.advance.Stop()
		s.advance = nil
	}
	s.state = StateTornDown
	s.flushPending = false

	if prev == StateEnded {
		return
	}
	busy := s.inflight.Busy(s.lecture.ID)
	var final *domain.ProgressUpdate
	switch {
	case s.completionPending:
		if !busy || !s.inflightUpdate.IsCompleted {
			u := s.completionUpdate()
			final = &u
		}
	case s.localWatchTime != s.lastSavedWatchTime:
		if !busy || s.inflightUpdate.WatchTime != s.localWatchTime {
			final = &domain.ProgressUpdate{LectureID: s.lecture.ID, WatchTime: s.localWatchTime}
		}
	}
	if final == nil {
		return
	}
	if busy {
		// one write per lecture on the wire; it goes out when the current one returns
		s.final = final
		return
	}
	s.sendFinal(*final)
}

func (s *Session) sendFinal(u domain.ProgressUpdate) {
	s.inflight.TryAcquire(u.LectureID)
	s.rt.Go(s.saveCall(u), func(_ domain.ProgressResult, err error) {
		s.inflight.Release(u.LectureID)
		if err != nil {
			s.log.Warn("final progress save failed", zap.Int("watch_time", u.WatchTime), zap.Error(err))
		}
	})
}

func (s *Session) completionUpdate() domain.ProgressUpdate {
	watch := s.lecture.DurationSeconds()
	if watch <= 0 {
		// duration unknown until a video is attached
		watch = s.localWatchTime
	}
	return domain.ProgressUpdate{LectureID: s.lecture.ID, WatchTime: watch, IsCompleted: true}
}

func (s *Session) saveCall(u domain.ProgressUpdate) SaveCall {
	store, enrollmentID := s.store, s.enrollmentID
	return func(ctx context.Context) (domain.ProgressResult, error) {
		return store.SaveProgress(ctx, enrollmentID, u)
	}
}

// issue starts a write unless one is already in flight for this lecture.
// A skipped write with coalesce set is retried once, with the then-current
// position, when the outstanding write finishes.
func (s *Session) issue(u domain.ProgressUpdate, coalesce bool) bool {
	if !s.inflight.TryAcquire(u.LectureID) {
		if coalesce {
			s.flushPending = true
		}
		return false
	}
	s.saving = SaveInFlight
	s.inflightUpdate = u
	s.rt.Go(s.saveCall(u), func(res domain.ProgressResult, err error) {
		s.onSaveDone(u, res, err)
	})
	return true
}

func (s *Session) onSaveDone(u domain.ProgressUpdate, res domain.ProgressResult, err error) {
	s.inflight.Release(u.LectureID)
	if s.state == StateTornDown {
		s.saving = SaveStaleDiscarded
		s.log.Debug("discarding stale progress response", zap.Int("watch_time", u.WatchTime))
		if f := s.final; f != nil {
			s.final = nil
			s.sendFinal(*f)
		}
		return
	}
	s.saving = SaveNone

	if err != nil {
		s.log.Warn("progress save failed", zap.Int("watch_time", u.WatchTime), zap.Bool("completed", u.IsCompleted), zap.Error(err))
	} else {
		s.lastSavedWatchTime = u.WatchTime
		if s.hooks.saved != nil {
			s.hooks.saved(s, res)
		}
		if u.IsCompleted {
			s.completionPending = false
			s.flushPending = false
			s.localWatchTime = u.WatchTime
			s.enterEnded()
			return
		}
	}

	if !s.flushPending {
		return
	}
	s.flushPending = false
	if s.completionPending {
		s.issue(s.completionUpdate(), false)
		return
	}
	s.issue(domain.ProgressUpdate{LectureID: s.lecture.ID, WatchTime: s.localWatchTime}, false)
}

func (s *Session) enterEnded() {
	s.stopAutosave()
	s.state = StateEnded
	s.advance = s.rt.AfterFunc(AdvanceDelay, func() {
		if s.state != StateEnded {
			return
		}
		s.advance = nil
		if s.hooks.ended != nil {
			s.hooks.ended(s)
		}
	})
}

func (s *Session) scheduleAutosave() {
	s.timerGen++
	gen := s.timerGen
	s.autosave = s.rt.AfterFunc(AutosaveInterval, func() { s.onTick(gen) })
}

func (s *Session) stopAutosave() {
	s.timerGen++
	if s.autosave != nil {
		s.autosave.Stop()
		s.autosave = nil
	}
}

func (s *Session) onTick(gen int) {
	// a tick posted before Stop took effect
	if gen != s.timerGen || s.state != StateReady || s.timerPaused {
		return
	}
	s.scheduleAutosave()
	if s.completionPending {
		s.issue(s.completionUpdate(), false)
		return
	}
	if s.localWatchTime > s.lastSavedWatchTime {
		s.issue(domain.ProgressUpdate{LectureID: s.lecture.ID, WatchTime: s.localWatchTime}, false)
	}
}
