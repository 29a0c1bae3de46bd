package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/api"
	"github.com/example/course-platform/internal/platform/auth"
	"github.com/example/course-platform/services/enrollment/internal/store"
)

const maxRequestBodyBytes = 16 << 10

func decodeJSON[T any](w http.ResponseWriter, r *http.Request, rid string, dst *T) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(dst); err != nil {
		api.BadRequest(w, api.CodeInvalidInput, "Invalid JSON", rid, nil)
		return false
	}
	return true
}

func userID(w http.ResponseWriter, r *http.Request, rid string) (string, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok || uid == "" {
		api.Unauthorized(w, api.CodeAuthFailed, "authentication required", rid)
		return "", false
	}
	return uid, true
}

func writeStoreError(w http.ResponseWriter, log *zap.Logger, rid string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		api.NotFound(w, api.CodeNotFound, "Enrollment not found", rid)
	case errors.Is(err, store.ErrForbidden):
		api.Forbidden(w, api.CodeForbidden, "Not enrolled in this course", rid)
	case errors.Is(err, store.ErrLectureNotFound):
		api.NotFound(w, api.CodeNotFound, "Lecture not found in this course", rid)
	case errors.Is(err, store.ErrInvalid):
		api.BadRequest(w, api.CodeInvalidInput, "Invalid progress update", rid, nil)
	default:
		log.Error("enrollment request failed", zap.String("request_id", rid), zap.Error(err))
		api.Internal(w, rid)
	}
}
