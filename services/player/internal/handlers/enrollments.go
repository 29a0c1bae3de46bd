package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/api"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/services/player/internal/domain"
)

// EnrollmentLister lists the enrollments of the learner whose token it was
// built with.
type EnrollmentLister interface {
	ListEnrollments(ctx context.Context) ([]domain.EnrollmentSummary, error)
}

// ListEnrollments backs the course picker in front of the player.
func ListEnrollments(forUser func(token string) EnrollmentLister, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		_, token, ok := caller(w, r, rid)
		if !ok {
			return
		}
		list, err := forUser(token).ListEnrollments(r.Context())
		if err != nil {
			writeError(w, log, rid, err)
			return
		}
		if list == nil {
			list = []domain.EnrollmentSummary{}
		}
		api.WriteData(w, http.StatusOK, list)
	}
}
