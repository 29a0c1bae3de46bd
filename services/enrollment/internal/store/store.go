// Package store persists enrollments, course outlines and per-lecture
// progress for the enrollment service.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("store: enrollment not found")
	ErrForbidden       = errors.New("store: enrollment belongs to another user or has expired")
	ErrLectureNotFound = errors.New("store: lecture not in course")
	ErrInvalid         = errors.New("store: invalid progress update")
)

type Enrollment struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	CourseID       string     `json:"courseId"`
	EnrolledAt     time.Time  `json:"enrolledAt"`
	ExpiresAt      *time.Time `json:"expiresAt"`
	LastAccessedAt *time.Time `json:"lastAccessedAt"`
	Progress       int        `json:"progress"`
	IsCompleted    bool       `json:"isCompleted"`
	CompletedAt    *time.Time `json:"completedAt"`
}

// Expired reports whether access lapsed before now.
func (e Enrollment) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

type LectureProgress struct {
	ID           string     `json:"id"`
	EnrollmentID string     `json:"enrollmentId"`
	LectureID    string     `json:"lectureId"`
	WatchTime    int        `json:"watchTime"`
	IsCompleted  bool       `json:"isCompleted"`
	CompletedAt  *time.Time `json:"completedAt"`
}

// Lecture is one outline entry. Progress is only set in a CourseDetail.
type Lecture struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description *string          `json:"description"`
	Order       int              `json:"order"`
	Duration    *int             `json:"duration"`
	VideoURL    *string          `json:"videoUrl"`
	IsPreview   bool             `json:"isPreview"`
	SectionID   string           `json:"sectionId"`
	Progress    *LectureProgress `json:"progress"`
}

type Section struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Order    int       `json:"order"`
	Lectures []Lecture `json:"lectures"`
}

// Course is a course outline. It does not change while learners watch it.
type Course struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Sections    []Section `json:"sections"`
}

// LectureCount counts every lecture in the outline.
func (c Course) LectureCount() int {
	n := 0
	for _, s := range c.Sections {
		n += len(s.Lectures)
	}
	return n
}

func (c Course) HasLecture(id string) bool {
	for _, s := range c.Sections {
		for _, l := range s.Lectures {
			if l.ID == id {
				return true
			}
		}
	}
	return false
}

// CourseSummary is the course part of an enrollment list row.
type CourseSummary struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

type EnrollmentWithCourse struct {
	Enrollment Enrollment    `json:"enrollment"`
	Course     CourseSummary `json:"course"`
}

// CourseDetail is an outline with the learner's progress merged in.
type CourseDetail struct {
	Course
	Enrollment Enrollment `json:"enrollment"`
}

type ProgressUpdate struct {
	LectureID   string `json:"lectureId"`
	WatchTime   int    `json:"watchTime"`
	IsCompleted bool   `json:"isCompleted"`
}

func (u ProgressUpdate) Validate() error {
	if u.LectureID == "" {
		return errors.Join(ErrInvalid, errors.New("lectureId is required"))
	}
	if u.WatchTime < 0 {
		return errors.Join(ErrInvalid, errors.New("watchTime must be >= 0"))
	}
	return nil
}

type ProgressResult struct {
	LectureProgress LectureProgress `json:"lectureProgress"`
	Enrollment      Enrollment      `json:"enrollment"`

	// Transitions caused by this write.
	LectureCompleted bool `json:"-"`
	CourseCompleted  bool `json:"-"`
}

// Store is the enrollment service's persistence.
type Store interface {
	ListByUser(ctx context.Context, userID string) ([]EnrollmentWithCourse, error)
	// Enrollment returns ErrNotFound for an unknown id and ErrForbidden when
	// userID does not own it or it has expired.
	Enrollment(ctx context.Context, enrollmentID, userID string) (Enrollment, error)
	Outline(ctx context.Context, courseID string) (Course, error)
	Progress(ctx context.Context, enrollmentID string) ([]LectureProgress, error)
	// UpdateProgress merges u into the lecture's progress and recomputes the
	// enrollment aggregate in one step.
	UpdateProgress(ctx context.Context, enrollmentID, userID string, u ProgressUpdate) (ProgressResult, error)
}
