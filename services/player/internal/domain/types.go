// Package domain holds the enrollment and course shapes exchanged with the
// enrollment service. Field names follow its camelCase wire format.
package domain

import "time"

// Enrollment is a learner's access to one course. Progress is the
// authoritative aggregate percentage computed by the enrollment service.
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

type LectureProgress struct {
	ID           string     `json:"id"`
	EnrollmentID string     `json:"enrollmentId"`
	LectureID    string     `json:"lectureId"`
	WatchTime    int        `json:"watchTime"`
	IsCompleted  bool       `json:"isCompleted"`
	CompletedAt  *time.Time `json:"completedAt"`
}

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

// SavedWatchTime is where playback resumes: the stored watch time, or 0.
func (l Lecture) SavedWatchTime() int {
	if l.Progress == nil || l.Progress.WatchTime < 0 {
		return 0
	}
	return l.Progress.WatchTime
}

// DurationSeconds returns the known duration, or 0 when no video is attached yet.
func (l Lecture) DurationSeconds() int {
	if l.Duration == nil {
		return 0
	}
	return *l.Duration
}

type Section struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Order    int       `json:"order"`
	Lectures []Lecture `json:"lectures"`
}

type CourseDetail struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Sections    []Section  `json:"sections"`
	Enrollment  Enrollment `json:"enrollment"`
}

// ProgressUpdate is the body of a progress write.
type ProgressUpdate struct {
	LectureID   string `json:"lectureId"`
	WatchTime   int    `json:"watchTime"`
	IsCompleted bool   `json:"isCompleted"`
}

// ProgressResult is what the enrollment service returns for a progress write.
type ProgressResult struct {
	LectureProgress LectureProgress `json:"lectureProgress"`
	Enrollment      Enrollment      `json:"enrollment"`
}

// EnrollmentSummary is one row of the learner's enrollment list.
type EnrollmentSummary struct {
	Enrollment Enrollment `json:"enrollment"`
	Course     struct {
		ID    string `json:"id"`
		Slug  string `json:"slug"`
		Title string `json:"title"`
	} `json:"course"`
}
