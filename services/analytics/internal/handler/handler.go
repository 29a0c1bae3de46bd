// Package handler routes learn events from NATS to PostHog captures.
package handler

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/analytics"
)

// Capturer is the PostHog surface the dispatcher needs.
type Capturer interface {
	Capture(distinctID, event string, at time.Time, props map[string]any)
}

// Dispatcher routes incoming NATS messages to the correct capture call.
type Dispatcher struct {
	ph  Capturer
	log *zap.Logger
}

func New(ph Capturer, log *zap.Logger) *Dispatcher {
	return &Dispatcher{ph: ph, log: log}
}

// Dispatch routes msg by subject. Unknown subjects and malformed payloads
// are logged and dropped; the caller still acks them to avoid replay.
func (d *Dispatcher) Dispatch(msg *nats.Msg) {
	var ev analytics.Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		d.log.Error("analytics: unmarshal message",
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		return
	}

	switch msg.Subject {
	case analytics.SubjectSessionStarted:
		d.capture(ev, "learn_session_started", "enrollment_id", "course_id", "lecture_id", "deep_link")
	case analytics.SubjectLectureCompleted:
		d.capture(ev, "lecture_completed", "enrollment_id", "lecture_id", "progress")
	case analytics.SubjectCourseCompleted:
		d.capture(ev, "course_completed", "enrollment_id", "course_id")
	case analytics.SubjectProgressSaved:
		d.handleProgressSaved(ev)
	default:
		d.log.Debug("analytics: unhandled subject", zap.String("subject", msg.Subject))
	}
}

// handleProgressSaved forwards only first-time completions recorded by the
// enrollment service. Plain position writes arrive every few seconds per
// learner and are not worth a capture each.
func (d *Dispatcher) handleProgressSaved(ev analytics.Event) {
	if flag(ev.Properties, "lecture_completed") {
		d.capture(ev, "lecture_completion_recorded", "enrollment_id", "lecture_id", "watch_time", "progress")
	}
	if flag(ev.Properties, "course_completed") {
		d.capture(ev, "course_completion_recorded", "enrollment_id", "course_id")
	}
}

func (d *Dispatcher) capture(ev analytics.Event, name string, keys ...string) {
	distinctID := ev.UserID
	if distinctID == "" {
		distinctID = "anonymous"
	}
	props := map[string]any{"event_id": ev.EventID}
	for _, k := range keys {
		if v, ok := ev.Properties[k]; ok {
			props[k] = v
		}
	}
	at := ev.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	d.ph.Capture(distinctID, name, at, props)
}

func flag(props map[string]any, key string) bool {
	v, _ := props[key].(bool)
	return v
}
