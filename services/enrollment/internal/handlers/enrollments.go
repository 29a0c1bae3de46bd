package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/api"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/services/enrollment/internal/service"
	"github.com/example/course-platform/services/enrollment/internal/store"
)

type progressReq struct {
	LectureID   string `json:"lectureId"`
	WatchTime   *int   `json:"watchTime"`
	IsCompleted bool   `json:"isCompleted"`
}

// ListEnrollments returns the caller's enrollments, newest first.
func ListEnrollments(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := userID(w, r, rid)
		if !ok {
			return
		}
		list, err := svc.List(r.Context(), uid)
		if err != nil {
			writeStoreError(w, log, rid, err)
			return
		}
		api.WriteData(w, http.StatusOK, list)
	}
}

// CourseDetail returns the enrolled course with per-lecture progress.
func CourseDetail(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := userID(w, r, rid)
		if !ok {
			return
		}
		id := chi.URLParam(r, "enrollment_id")
		if id == "" {
			api.BadRequest(w, api.CodeMissingField, "enrollment_id is required", rid, nil)
			return
		}
		cd, err := svc.CourseDetail(r.Context(), id, uid)
		if err != nil {
			writeStoreError(w, log, rid, err)
			return
		}
		api.WriteData(w, http.StatusOK, cd)
	}
}

// UpdateProgress records one lecture progress write.
func UpdateProgress(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		uid, ok := userID(w, r, rid)
		if !ok {
			return
		}
		id := chi.URLParam(r, "enrollment_id")
		if id == "" {
			api.BadRequest(w, api.CodeMissingField, "enrollment_id is required", rid, nil)
			return
		}
		var req progressReq
		if !decodeJSON(w, r, rid, &req) {
			return
		}
		req.LectureID = strings.TrimSpace(req.LectureID)
		if req.LectureID == "" {
			api.BadRequest(w, api.CodeInvalidInput, "lectureId is required", rid, map[string]any{"field": "lectureId"})
			return
		}
		if req.WatchTime == nil || *req.WatchTime < 0 {
			api.BadRequest(w, api.CodeInvalidInput, "watchTime must be a non-negative integer", rid, map[string]any{"field": "watchTime"})
			return
		}

		res, err := svc.UpdateProgress(r.Context(), id, uid, store.ProgressUpdate{
			LectureID:   req.LectureID,
			WatchTime:   *req.WatchTime,
			IsCompleted: req.IsCompleted,
		})
		if err != nil {
			writeStoreError(w, log, rid, err)
			return
		}
		api.WriteData(w, http.StatusOK, res)
	}
}
