package playback

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/analytics"
	"github.com/example/course-platform/services/player/internal/domain"
	"github.com/example/course-platform/services/player/internal/sequence"
)

var (
	// ErrLoadFailed wraps the store error when the course cannot be loaded.
	// It is terminal for the coordinator.
	ErrLoadFailed        = errors.New("playback: course load failed")
	ErrNoPlayableContent = errors.New("playback: no playable content")
	ErrNotStarted        = errors.New("playback: coordinator not started")
	ErrAlreadyStarted    = errors.New("playback: coordinator already started")
	ErrUnknownLecture    = errors.New("playback: lecture not in course")
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusActive     Status = "active"
	StatusNoContent  Status = "no_content"
	StatusLoadFailed Status = "load_failed"
	StatusClosed     Status = "closed"
)

// Coordinator owns the single active Session of one learner's player and
// moves it between lectures. It is not safe for concurrent use; drive it
// from one control loop.
type Coordinator struct {
	rt     Runtime
	store  ProgressStore
	media  Media
	log    *zap.Logger
	pub    *analytics.Publisher
	userID string

	status       Status
	loadErr      error
	enrollmentID string
	course       domain.CourseDetail
	index        *sequence.Index
	enrollment   domain.Enrollment
	progress     map[string]domain.LectureProgress
	active       *Session
}

type Option func(*Coordinator)

func WithLogger(log *zap.Logger) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// WithPublisher emits learning analytics attributed to userID.
func WithPublisher(pub *analytics.Publisher, userID string) Option {
	return func(c *Coordinator) {
		c.pub = pub
		c.userID = userID
	}
}

func NewCoordinator(store ProgressStore, rt Runtime, media Media, opts ...Option) *Coordinator {
	c := &Coordinator{
		rt:       rt,
		store:    store,
		media:    media,
		log:      zap.NewNop(),
		status:   StatusIdle,
		progress: make(map[string]domain.LectureProgress),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start loads the course once and activates the deep-linked lecture if it
// belongs to the course, else the first lecture. It blocks on the load.
func (c *Coordinator) Start(ctx context.Context, enrollmentID, deepLinkLectureID string) error {
	if c.status != StatusIdle {
		return ErrAlreadyStarted
	}
	c.enrollmentID = enrollmentID
	c.log = c.log.With(zap.String("enrollment_id", enrollmentID))

	cd, err := c.store.LoadCourse(ctx, enrollmentID)
	if err != nil {
		c.status = StatusLoadFailed
		c.loadErr = err
		c.log.Warn("course load failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	c.course = cd
	c.enrollment = cd.Enrollment
	c.index = sequence.New(cd.Sections)
	if dups := c.index.Duplicates(); len(dups) > 0 {
		c.log.Warn("duplicate lecture ids in course outline", zap.Strings("lecture_ids", dups))
	}
	for i := 0; i < c.index.Len(); i++ {
		l, _ := c.index.At(i)
		if l.Progress != nil {
			c.progress[l.ID] = *l.Progress
		}
	}

	first, ok := c.resolveInitial(deepLinkLectureID)
	if !ok {
		c.status = StatusNoContent
		return ErrNoPlayableContent
	}
	c.status = StatusActive
	c.begin(first)
	c.pub.Publish(analytics.SubjectSessionStarted, "learn_session_started", c.userID, map[string]any{
		"enrollment_id": enrollmentID,
		"course_id":     cd.ID,
		"lecture_id":    first.ID,
		"deep_link":     deepLinkLectureID != "",
	})
	return nil
}

func (c *Coordinator) resolveInitial(hint string) (domain.Lecture, bool) {
	if hint != "" {
		if i, ok := c.index.IndexOf(hint); ok {
			return c.index.At(i)
		}
		c.log.Info("deep link lecture not in course, using first lecture", zap.String("lecture_id", hint))
	}
	return c.index.First()
}

// SwitchTo tears down the active session and starts lectureID at its last
// known watch time. The old session's timers are stopped before the new
// session can schedule any.
func (c *Coordinator) SwitchTo(lectureID string) error {
	if c.status != StatusActive {
		return ErrNotStarted
	}
	i, ok := c.index.IndexOf(lectureID)
	if !ok {
		return ErrUnknownLecture
	}
	l, _ := c.index.At(i)
	c.teardownActive()
	c.begin(l)
	return nil
}

// Advance moves to the lecture after the current one. With no next lecture
// the learner stays where they are and Advance reports false.
func (c *Coordinator) Advance() bool {
	if c.status != StatusActive || c.active == nil {
		return false
	}
	next, ok := c.index.Next(c.active.lecture.ID)
	if !ok {
		return false
	}
	return c.SwitchTo(next.ID) == nil
}

// Previous moves to the lecture before the current one.
func (c *Coordinator) Previous() bool {
	if c.status != StatusActive || c.active == nil {
		return false
	}
	prev, ok := c.index.Previous(c.active.lecture.ID)
	if !ok {
		return false
	}
	return c.SwitchTo(prev.ID) == nil
}

// Close tears down the active session, as on page unload.
func (c *Coordinator) Close() {
	c.teardownActive()
	c.status = StatusClosed
}

func (c *Coordinator) MetadataLoaded() {
	if c.active != nil {
		c.active.MetadataLoaded()
	}
}

func (c *Coordinator) TimeUpdate(position float64) {
	if c.active != nil {
		c.active.TimeUpdate(position)
	}
}

func (c *Coordinator) Pause() {
	if c.active != nil {
		c.active.Pause()
	}
}

func (c *Coordinator) Ended() {
	if c.active != nil {
		c.active.Ended()
	}
}

func (c *Coordinator) MediaError(code int) {
	if c.active != nil {
		c.active.MediaFailed(code)
	}
}

// Active returns the current session, or nil.
func (c *Coordinator) Active() *Session { return c.active }

// Enrollment is the last enrollment snapshot returned by the store.
func (c *Coordinator) Enrollment() domain.Enrollment { return c.enrollment }

// LectureProgress is the cached progress for lectureID.
func (c *Coordinator) LectureProgress(lectureID string) (domain.LectureProgress, bool) {
	p, ok := c.progress[lectureID]
	return p, ok
}

func (c *Coordinator) Status() Status { return c.status }

func (c *Coordinator) begin(l domain.Lecture) {
	if p, ok := c.progress[l.ID]; ok {
		l.Progress = &p
	} else {
		l.Progress = nil
	}
	s := newSession(c.enrollmentID, l, c.rt, c.store, c.media, c.log, sessionHooks{
		saved: c.onSaved,
		ended: c.onEnded,
	})
	c.active = s
	s.enter()
}

func (c *Coordinator) teardownActive() {
	s := c.active
	if s == nil {
		return
	}
	c.active = nil
	// The final write's response is discarded, so remember the position
	// locally for a later switch back to this lecture.
	if s.state != StateEnded && s.state != StateLoading && s.localWatchTime != s.lastSavedWatchTime {
		p := c.progress[s.lecture.ID]
		p.LectureID = s.lecture.ID
		p.EnrollmentID = c.enrollmentID
		p.WatchTime = s.localWatchTime
		c.progress[s.lecture.ID] = p
	}
	s.Teardown()
}

func (c *Coordinator) onSaved(s *Session, res domain.ProgressResult) {
	if c.active != s {
		c.log.Debug("discarding progress response for inactive lecture", zap.String("lecture_id", s.lecture.ID))
		return
	}
	wasLectureDone := c.progress[s.lecture.ID].IsCompleted
	wasCourseDone := c.enrollment.IsCompleted

	lp := res.LectureProgress
	if lp.LectureID == "" {
		lp.LectureID = s.lecture.ID
	}
	c.progress[s.lecture.ID] = lp
	c.enrollment = res.Enrollment

	if lp.IsCompleted && !wasLectureDone {
		c.pub.Publish(analytics.SubjectLectureCompleted, "lecture_completed", c.userID, map[string]any{
			"enrollment_id": c.enrollmentID,
			"lecture_id":    s.lecture.ID,
			"progress":      c.enrollment.Progress,
		})
	}
	if c.enrollment.IsCompleted && !wasCourseDone {
		c.pub.Publish(analytics.SubjectCourseCompleted, "course_completed", c.userID, map[string]any{
			"enrollment_id": c.enrollmentID,
			"course_id":     c.course.ID,
		})
	}
}

func (c *Coordinator) onEnded(s *Session) {
	if c.active != s {
		return
	}
	if !c.Advance() {
		c.log.Debug("last lecture ended", zap.String("lecture_id", s.lecture.ID))
	}
}
