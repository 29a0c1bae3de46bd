package progressclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound     = errors.New("progress store: not found")
	ErrUnauthorized = errors.New("progress store: unauthorized")
	ErrValidation   = errors.New("progress store: validation failed")
	ErrNetwork      = errors.New("progress store: network error")
)

// APIError is a non-2xx response from the enrollment service. It unwraps to
// one of the sentinel errors above.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("progress store: %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return classify(e.Status, e.Code)
}

func classify(status int, code string) error {
	switch {
	case status == http.StatusNotFound || code == "RESOURCE_001":
		return ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden,
		strings.HasPrefix(code, "AUTH_"), code == "PERMISSION_001":
		return ErrUnauthorized
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity,
		strings.HasPrefix(code, "VALIDATION_"):
		return ErrValidation
	default:
		return ErrNetwork
	}
}
