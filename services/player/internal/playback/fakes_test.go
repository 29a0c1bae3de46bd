package playback

import (
	"context"
	"sort"
	"time"

	"github.com/example/course-platform/services/player/internal/domain"
)

// fakeRuntime is a deterministic Runtime: timers fire only in advance, and
// store calls run at issue time but deliver their result only when the
// test completes them.
type fakeRuntime struct {
	now     time.Duration
	timers  []*fakeTimer
	pending []func()
}

type fakeTimer struct {
	at      time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (r *fakeRuntime) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{at: r.now + d, seq: len(r.timers), f: f}
	r.timers = append(r.timers, t)
	return t
}

func (r *fakeRuntime) Go(call SaveCall, done func(domain.ProgressResult, error)) {
	res, err := call(context.Background())
	r.pending = append(r.pending, func() { done(res, err) })
}

// advance moves the clock forward, firing due timers in time order.
func (r *fakeRuntime) advance(d time.Duration) {
	target := r.now + d
	for {
		var due []*fakeTimer
		for _, t := range r.timers {
			if !t.stopped && !t.fired && t.at <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			break
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at != due[j].at {
				return due[i].at < due[j].at
			}
			return due[i].seq < due[j].seq
		})
		t := due[0]
		r.now = t.at
		t.fired = true
		t.f()
	}
	r.now = target
}

// completeNext delivers the oldest outstanding store result.
func (r *fakeRuntime) completeNext() bool {
	if len(r.pending) == 0 {
		return false
	}
	next := r.pending[0]
	r.pending = r.pending[1:]
	next()
	return true
}

func (r *fakeRuntime) completeAll() {
	for r.completeNext() {
	}
}

func (r *fakeRuntime) activeTimers() int {
	n := 0
	for _, t := range r.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakeStore struct {
	course  domain.CourseDetail
	loadErr error

	saves    []domain.ProgressUpdate
	saveErrs []error
	progress int
	complete bool
}

func (s *fakeStore) LoadCourse(_ context.Context, enrollmentID string) (domain.CourseDetail, error) {
	if s.loadErr != nil {
		return domain.CourseDetail{}, s.loadErr
	}
	cd := s.course
	cd.Enrollment.ID = enrollmentID
	return cd, nil
}

func (s *fakeStore) SaveProgress(_ context.Context, enrollmentID string, u domain.ProgressUpdate) (domain.ProgressResult, error) {
	s.saves = append(s.saves, u)
	if len(s.saveErrs) > 0 {
		err := s.saveErrs[0]
		s.saveErrs = s.saveErrs[1:]
		if err != nil {
			return domain.ProgressResult{}, err
		}
	}
	s.progress += 10
	return domain.ProgressResult{
		LectureProgress: domain.LectureProgress{
			EnrollmentID: enrollmentID,
			LectureID:    u.LectureID,
			WatchTime:    u.WatchTime,
			IsCompleted:  u.IsCompleted,
		},
		Enrollment: domain.Enrollment{ID: enrollmentID, Progress: s.progress, IsCompleted: s.complete},
	}, nil
}

func (s *fakeStore) savesFor(lectureID string) []domain.ProgressUpdate {
	var out []domain.ProgressUpdate
	for _, u := range s.saves {
		if u.LectureID == lectureID {
			out = append(out, u)
		}
	}
	return out
}

type fakeMedia struct {
	attached []string
	seeks    []int
}

func (m *fakeMedia) Attach(l domain.Lecture) { m.attached = append(m.attached, l.ID) }
func (m *fakeMedia) Seek(seconds int) { m.seeks = append(m.seeks, seconds) }

func intPtr(v int) *int { return &v }
func strPtr(v string) *string { return &v }

func lecture(id string, order, duration int) domain.Lecture {
	return domain.Lecture{
		ID:       id,
		Title:    "Lecture " + id,
		Order:    order,
		Duration: intPtr(duration),
		VideoURL: strPtr("https://cdn.example.com/" + id + ".mp4"),
	}
}

func withProgress(l domain.Lecture, watch int) domain.Lecture {
	l.Progress = &domain.LectureProgress{LectureID: l.ID, WatchTime: watch}
	return l
}

func course(lectures ...domain.Lecture) domain.CourseDetail {
	return domain.CourseDetail{
		ID:    "c1",
		Title: "Concurrency in Go",
		Sections: []domain.Section{
			{ID: "s1", Order: 1, Lectures: lectures},
		},
		Enrollment: domain.Enrollment{Progress: 0},
	}
}

type harness struct {
	rt    *fakeRuntime
	store *fakeStore
	media *fakeMedia
	c     *Coordinator
}

func newHarness(cd domain.CourseDetail) *harness {
	h := &harness{rt: &fakeRuntime{}, store: &fakeStore{course: cd}, media: &fakeMedia{}}
	h.c = NewCoordinator(h.store, h.rt, h.media)
	return h
}

// ready starts the coordinator and reports metadata for the first lecture.
func (h *harness) ready(deepLink string) error {
	if err := h.c.Start(context.Background(), "e1", deepLink); err != nil {
		return err
	}
	h.c.MetadataLoaded()
	return nil
}
