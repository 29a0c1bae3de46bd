package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/example/course-platform/internal/platform/api"
	"github.com/example/course-platform/internal/platform/auth"
)

const maxRequestBodyBytes = 64 << 10

// decodeJSON reads up to maxRequestBodyBytes from r.Body and decodes JSON into dst.
// On failure it writes a 400 response and returns false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, rid string, dst *T) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(dst); err != nil {
		api.BadRequest(w, api.CodeInvalidInput, "Invalid JSON", rid, nil)
		return false
	}
	return true
}

// caller returns the authenticated user and the bearer token to forward.
func caller(w http.ResponseWriter, r *http.Request, rid string) (userID, token string, ok bool) {
	userID, ok = auth.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		api.Unauthorized(w, api.CodeAuthFailed, "authentication required", rid)
		return "", "", false
	}
	token, _ = auth.TokenFromContext(r.Context())
	return userID, token, true
}
