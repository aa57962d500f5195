package shared

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")

	// ErrSystemScope rejects mutation of the reserved system scopes.
	ErrSystemScope = errors.New("Cannot modify system scopes")
	// ErrSelfParent rejects a scope being set as its own parent.
	ErrSelfParent = errors.New("Cannot set scope as its own parent")
	// ErrCycle rejects a re-parent that would make the scope graph cyclic.
	ErrCycle = errors.New("Cannot set a descendant as parent (would create cycle)")

	// ErrAlreadyExists signals a storage-level uniqueness conflict.
	ErrAlreadyExists = errors.New("already exists")
	// ErrStorage replaces unexpected storage failures after they were logged.
	ErrStorage = errors.New("storage failure")

	// ErrInvitationExpired rejects acceptance of an expired invitation.
	ErrInvitationExpired = errors.New("invitation has expired")
)

// ValidationError reports the first failing field of a validated input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UserSafeMessage maps an error to a message safe to show end users.
// Unexpected errors collapse to a generic message so storage details
// never leak past the service boundary.
func UserSafeMessage(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrSystemScope),
		errors.Is(err, ErrSelfParent),
		errors.Is(err, ErrCycle),
		errors.Is(err, ErrInvitationExpired):
		return err.Error()
	default:
		return "Something went wrong. Please try again."
	}
}

// HTTPStatus maps an error to the HTTP status code handlers respond with.
func HTTPStatus(err error) int {
	var verr *ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.As(err, &verr),
		errors.Is(err, ErrSystemScope),
		errors.Is(err, ErrSelfParent),
		errors.Is(err, ErrCycle),
		errors.Is(err, ErrInvitationExpired):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
