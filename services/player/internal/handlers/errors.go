package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/api"
	"github.com/example/course-platform/services/player/internal/playback"
	"github.com/example/course-platform/services/player/internal/progressclient"
	"github.com/example/course-platform/services/player/internal/sessions"
)

// writeError maps engine, registry and store errors to the API envelope.
func writeError(w http.ResponseWriter, log *zap.Logger, rid string, err error) {
	switch {
	case errors.Is(err, sessions.ErrNotFound), errors.Is(err, playback.ErrLoopStopped):
		api.NotFound(w, api.CodeNotFound, "session not found", rid)
	case errors.Is(err, sessions.ErrForbidden):
		api.Forbidden(w, api.CodeForbidden, "session belongs to another user", rid)
	case errors.Is(err, sessions.ErrUnknownEvent):
		api.BadRequest(w, api.CodeInvalidInput, "unknown event type", rid, nil)
	case errors.Is(err, playback.ErrUnknownLecture):
		api.NotFound(w, api.CodeNotFound, "lecture is not part of this course", rid)
	case errors.Is(err, playback.ErrNotStarted):
		api.Conflict(w, api.CodeNoPlayable, "session has no active course", rid, nil)
	case errors.Is(err, playback.ErrNoPlayableContent):
		api.WriteError(w, http.StatusUnprocessableEntity, api.CodeNoPlayable, "This course has no playable content yet.", rid, nil)
	case errors.Is(err, playback.ErrLoadFailed):
		writeLoadError(w, rid, err)
	case errors.Is(err, progressclient.ErrUnauthorized):
		api.Forbidden(w, api.CodeForbidden, "not enrolled", rid)
	case errors.Is(err, progressclient.ErrNetwork):
		api.WriteError(w, http.StatusBadGateway, api.CodeUnavailable, "enrollment service unavailable", rid, nil)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		api.WriteError(w, http.StatusGatewayTimeout, api.CodeUnavailable, "request timed out", rid, nil)
	default:
		log.Error("unhandled error", zap.String("request_id", rid), zap.Error(err))
		api.Internal(w, rid)
	}
}

func writeLoadError(w http.ResponseWriter, rid string, err error) {
	msg := playback.LoadFailureMessage(err)
	switch {
	case errors.Is(err, progressclient.ErrNotFound):
		api.NotFound(w, api.CodeNotFound, msg, rid)
	case errors.Is(err, progressclient.ErrUnauthorized):
		api.Forbidden(w, api.CodeForbidden, msg, rid)
	case errors.Is(err, progressclient.ErrValidation):
		api.BadRequest(w, api.CodeInvalidInput, msg, rid, nil)
	default:
		api.WriteError(w, http.StatusBadGateway, api.CodeUnavailable, msg, rid, nil)
	}
}
