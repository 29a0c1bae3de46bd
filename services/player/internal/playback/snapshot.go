package playback

import (
	"errors"

	"github.com/example/course-platform/services/player/internal/progressclient"
)

// LectureView is the display subset of the active lecture.
type LectureView struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	SectionID   string  `json:"sectionId"`
	Duration    *int    `json:"duration"`
	VideoURL    *string `json:"videoUrl"`
	Index       int     `json:"index"`
}

// Snapshot is everything a player UI renders.
type Snapshot struct {
	Status          Status       `json:"status"`
	Message         string       `json:"message,omitempty"`
	EnrollmentID    string       `json:"enrollmentId"`
	CourseID        string       `json:"courseId,omitempty"`
	CourseTitle     string       `json:"courseTitle,omitempty"`
	LectureCount    int          `json:"lectureCount"`
	Lecture         *LectureView `json:"lecture,omitempty"`
	State           string       `json:"state,omitempty"`
	Saving          string       `json:"saving,omitempty"`
	WatchTime       int          `json:"watchTime"`
	SavedWatchTime  int          `json:"savedWatchTime"`
	CourseProgress  int          `json:"courseProgress"`
	CourseCompleted bool         `json:"courseCompleted"`
	MediaError      *MediaError  `json:"mediaError,omitempty"`
	HasPrevious     bool         `json:"hasPrevious"`
	HasNext         bool         `json:"hasNext"`
}

func (c *Coordinator) Snapshot() Snapshot {
	snap := Snapshot{
		Status:          c.status,
		EnrollmentID:    c.enrollmentID,
		CourseID:        c.course.ID,
		CourseTitle:     c.course.Title,
		CourseProgress:  c.enrollment.Progress,
		CourseCompleted: c.enrollment.IsCompleted,
	}
	if c.index != nil {
		snap.LectureCount = c.index.Len()
	}
	switch c.status {
	case StatusLoadFailed:
		snap.Message = LoadFailureMessage(c.loadErr)
	case StatusNoContent:
		snap.Message = "This course has no playable content yet."
	}

	s := c.active
	if s == nil {
		return snap
	}
	l := s.lecture
	idx, _ := c.index.IndexOf(l.ID)
	snap.Lecture = &LectureView{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		SectionID:   l.SectionID,
		Duration:    l.Duration,
		VideoURL:    l.VideoURL,
		Index:       idx,
	}
	if l.VideoURL == nil {
		snap.Message = "The video cannot be loaded."
	}
	snap.State = s.state.String()
	snap.Saving = s.saving.String()
	snap.WatchTime = s.localWatchTime
	snap.SavedWatchTime = s.lastSavedWatchTime
	snap.MediaError = s.lastErr
	_, snap.HasPrevious = c.index.Previous(l.ID)
	_, snap.HasNext = c.index.Next(l.ID)
	return snap
}

// LoadFailureMessage is the learner-facing text for a failed course load.
func LoadFailureMessage(err error) string {
	switch {
	case errors.Is(err, progressclient.ErrNotFound):
		return "The course could not be found."
	case errors.Is(err, progressclient.ErrUnauthorized):
		return "You are not enrolled in this course."
	default:
		return "The course could not be loaded. Please try again later."
	}
}
