package gitlab

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError carries the HTTP status of a failed GitLab call so the run
// controller can classify it without seeing transport types. Status 0
// means the request never produced a response (network error, bad URL).
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("gitlab: %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("gitlab: %s: %s (status %d)", e.Op, e.Message, e.Status)
}

// StatusOf extracts the HTTP status from an error chain, or 0 when the
// chain carries no *APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsAuth reports whether err is an authentication failure (401 or 403).
func IsAuth(err error) bool {
	s := StatusOf(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}

// IsConflict reports whether err is a benign idempotency conflict: 409
// (already protected) or 422 (validation overlap with an existing rule).
func IsConflict(err error) bool {
	s := StatusOf(err)
	return s == http.StatusConflict || s == http.StatusUnprocessableEntity
}

// IsNotFound reports whether err is a 404.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}
