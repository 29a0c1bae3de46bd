package handlers

import (
	"context"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/api"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/services/player/internal/playback"
	"github.com/example/course-platform/services/player/internal/sessions"
)

type createSessionReq struct {
	EnrollmentID string `json:"enrollmentId"`
	LectureID    string `json:"lectureId"`
}

type eventReq struct {
	Type     string  `json:"type"`
	Position float64 `json:"position"`
	Code     int     `json:"code"`
}

type switchReq struct {
	LectureID string `json:"lectureId"`
}

type navigateResp struct {
	Moved   bool          `json:"moved"`
	Session sessions.View `json:"session"`
}

// CreateSession loads the enrollment's course and opens a player session on
// the deep-linked lecture, or the first one.
func CreateSession(reg *sessions.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, token, ok := caller(w, r, rid)
		if !ok {
			return
		}
		var req createSessionReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		req.EnrollmentID = strings.TrimSpace(req.EnrollmentID)
		if req.EnrollmentID == "" {
			api.BadRequest(w, api.CodeMissingField, "enrollmentId is required", rid, map[string]any{"field": "enrollmentId"})
			return
		}

		h, err := reg.Create(r.Context(), userID, token, req.EnrollmentID, strings.TrimSpace(req.LectureID))
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		v, err := h.View(r.Context())
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteData(w, http.StatusCreated, v)
	}
}

// GetSession returns the snapshot and drains queued media commands.
func GetSession(reg *sessions.Registry, log *zap.Logger) http.HandlerFunc {
	return withHost(reg, log, func(w http.ResponseWriter, r *http.Request, rid string, h *sessions.Host) {
		v, err := h.View(r.Context())
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteData(w, http.StatusOK, v)
	})
}

// PostEvent feeds one media-layer event to the session.
func PostEvent(reg *sessions.Registry, log *zap.Logger) http.HandlerFunc {
	return withHost(reg, log, func(w http.ResponseWriter, r *http.Request, rid string, h *sessions.Host) {
		var req eventReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		if req.Position < 0 || req.Position > playback.MaxPosition || math.IsNaN(req.Position) {
			api.BadRequest(w, api.CodeInvalidInput, "position must be between 0 and 2147483647", rid, map[string]any{"field": "position"})
			return
		}
		ev := sessions.Event{Type: sessions.EventType(strings.ToLower(strings.TrimSpace(req.Type))), Position: req.Position, Code: req.Code}
		if err := h.Apply(r.Context(), ev); err != nil {
			writeError(w, log, rid, err)
			return
		}
		v, err := h.View(r.Context())
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteData(w, http.StatusOK, v)
	})
}

// SwitchLecture makes lectureId the active lecture.
func SwitchLecture(reg *sessions.Registry, log *zap.Logger) http.HandlerFunc {
	return withHost(reg, log, func(w http.ResponseWriter, r *http.Request, rid string, h *sessions.Host) {
		var req switchReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		if strings.TrimSpace(req.LectureID) == "" {
			api.BadRequest(w, api.CodeMissingField, "lectureId is required", rid, map[string]any{"field": "lectureId"})
			return
		}
		if err := h.SwitchTo(r.Context(), strings.TrimSpace(req.LectureID)); err != nil {
			writeError(w, log, rid, err)
			return
		}
		v, err := h.View(r.Context())
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteData(w, http.StatusOK, v)
	})
}

func NextLecture(reg *sessions.Registry, log *zap.Logger) http.HandlerFunc {
	return navigate(reg, log, (*sessions.Host).Next)
}

func PreviousLecture(reg *sessions.Registry, log *zap.Logger) http.HandlerFunc {
	return navigate(reg, log, (*sessions.Host).Previous)
}

// CloseSession tears the session down like a page unload.
func CloseSession(reg *sessions.Registry, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, _, ok := caller(w, r, rid)
		if !ok {
			return
		}
		if err := reg.Close(r.Context(), chi.URLParam(r, "session_id"), userID); err != nil {
			writeError(w, log, rid, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type hostHandler func(w http.ResponseWriter, r *http.Request, rid string, h *sessions.Host)

// withHost resolves {session_id} for the calling user before next runs.
func withHost(reg *sessions.Registry, log *zap.Logger, next hostHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, _, ok := caller(w, r, rid)
		if !ok {
			return
		}
		id := chi.URLParam(r, "session_id")
		if id == "" {
			api.BadRequest(w, api.CodeMissingField, "session_id is required", rid, nil)
			return
		}
		h, err := reg.Get(id, userID)
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		next(w, r, rid, h)
	}
}

func navigate(reg *sessions.Registry, log *zap.Logger, move func(*sessions.Host, context.Context) (bool, error)) http.HandlerFunc {
	return withHost(reg, log, func(w http.ResponseWriter, r *http.Request, rid string, h *sessions.Host) {
		moved, err := move(h, r.Context())
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		v, err := h.View(r.Context())
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		api.WriteData(w, http.StatusOK, navigateResp{Moved: moved, Session: v})
	})
}
