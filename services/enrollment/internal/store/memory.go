package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store for development and tests.
type Memory struct {
	mu          sync.Mutex
	courses     map[string]Course
	enrollments map[string]Enrollment
	progress    map[string]map[string]LectureProgress // enrollment -> lecture
	now         func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		courses:     make(map[string]Course),
		enrollments: make(map[string]Enrollment),
		progress:    make(map[string]map[string]LectureProgress),
		now:         time.Now,
	}
}

// SetClock replaces time.Now. Tests only.
func (m *Memory) SetClock(now func() time.Time) { m.now = now }

func (m *Memory) PutCourse(c Course) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[c.ID] = c
}

// PutEnrollment stores e, assigning an id and enrolledAt when missing.
func (m *Memory) PutEnrollment(e Enrollment) Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = m.now().UTC()
	}
	m.enrollments[e.ID] = e
	return e
}

func (m *Memory) ListByUser(_ context.Context, userID string) ([]EnrollmentWithCourse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EnrollmentWithCourse
	for _, e := range m.enrollments {
		if e.UserID != userID {
			continue
		}
		c := m.courses[e.CourseID]
		out = append(out, EnrollmentWithCourse{
			Enrollment: e,
			Course:     CourseSummary{ID: c.ID, Slug: c.Slug, Title: c.Title},
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Enrollment.EnrolledAt.After(out[j].Enrollment.EnrolledAt)
	})
	return out, nil
}

func (m *Memory) Enrollment(_ context.Context, enrollmentID, userID string) (Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownedLocked(enrollmentID, userID)
}

func (m *Memory) ownedLocked(enrollmentID, userID string) (Enrollment, error) {
	e, ok := m.enrollments[enrollmentID]
	if !ok {
		return Enrollment{}, ErrNotFound
	}
	if e.UserID != userID || e.Expired(m.now()) {
		return Enrollment{}, ErrForbidden
	}
	return e, nil
}

func (m *Memory) Outline(_ context.Context, courseID string) (Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[courseID]
	if !ok {
		return Course{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) Progress(_ context.Context, enrollmentID string) ([]LectureProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LectureProgress
	for _, p := range m.progress[enrollmentID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LectureID < out[j].LectureID })
	return out, nil
}

func (m *Memory) UpdateProgress(_ context.Context, enrollmentID, userID string, u ProgressUpdate) (ProgressResult, error) {
	if err := u.Validate(); err != nil {
		return ProgressResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.ownedLocked(enrollmentID, userID)
	if err != nil {
		return ProgressResult{}, err
	}
	c := m.courses[e.CourseID]
	if !c.HasLecture(u.LectureID) {
		return ProgressResult{}, ErrLectureNotFound
	}

	now := m.now().UTC()
	byLecture := m.progress[enrollmentID]
	if byLecture == nil {
		byLecture = make(map[string]LectureProgress)
		m.progress[enrollmentID] = byLecture
	}
	cur, ok := byLecture[u.LectureID]
	if !ok {
		cur = LectureProgress{ID: uuid.NewString(), EnrollmentID: enrollmentID, LectureID: u.LectureID}
	}
	wasDone := cur.IsCompleted
	lp := mergeProgress(cur, u, now)
	byLecture[u.LectureID] = lp

	completed := 0
	for _, p := range byLecture {
		if p.IsCompleted && c.HasLecture(p.LectureID) {
			completed++
		}
	}
	courseDone := applyAggregate(&e, completed, c.LectureCount(), now)
	m.enrollments[e.ID] = e

	return ProgressResult{
		LectureProgress:  lp,
		Enrollment:       e,
		LectureCompleted: lp.IsCompleted && !wasDone,
		CourseCompleted:  courseDone,
	}, nil
}
