package run

import "net/http"

// Class buckets a failed API call for the continue-or-stop decision.
type Class int

const (
	// Recoverable errors are logged and counted; the run continues.
	Recoverable Class = iota
	// Conflict covers benign idempotency races: 409 already-protected and
	// 422 validation overlaps. Never escalated by stop-on-error.
	Conflict
	// AuthFailure (401/403) halts the run unconditionally: no later call
	// can succeed once the token is rejected.
	AuthFailure
	// Fatal is a recoverable-class error promoted by stop-on-error.
	Fatal
)

func (c Class) String() string {
	switch c {
	case Recoverable:
		return "recoverable"
	case Conflict:
		return "conflict"
	case AuthFailure:
		return "auth_failure"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify buckets an API failure by HTTP status. Status 0 (no response)
// follows the generic rule: recoverable unless stopOnError promotes it.
func Classify(status int, stopOnError bool) Class {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return AuthFailure
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return Conflict
	case stopOnError:
		return Fatal
	default:
		return Recoverable
	}
}
