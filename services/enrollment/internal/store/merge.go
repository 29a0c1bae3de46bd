package store

import (
	"math"
	"time"
)

// mergeProgress applies u to the stored progress of one lecture: watch time
// is last write wins, completion never reverts and completedAt keeps the
// first completion.
func mergeProgress(cur LectureProgress, u ProgressUpdate, now time.Time) LectureProgress {
	cur.WatchTime = u.WatchTime
	if u.IsCompleted && !cur.IsCompleted {
		cur.IsCompleted = true
		if cur.CompletedAt == nil {
			t := now
			cur.CompletedAt = &t
		}
	}
	return cur
}

// aggregate is floor(completed/total*100), 0 for an empty course.
func aggregate(completed, total int) int {
	if total <= 0 {
		return 0
	}
	if completed > total {
		completed = total
	}
	return int(math.Floor(float64(completed) * 100 / float64(total)))
}

// applyAggregate recomputes the enrollment after a write and bumps
// lastAccessedAt. It reports whether the course became complete.
func applyAggregate(e *Enrollment, completed, total int, now time.Time) bool {
	e.Progress = aggregate(completed, total)
	t := now
	e.LastAccessedAt = &t
	done := total > 0 && completed >= total
	became := done && !e.IsCompleted
	if done {
		e.IsCompleted = true
		if e.CompletedAt == nil {
			e.CompletedAt = &t
		}
	}
	return became
}
