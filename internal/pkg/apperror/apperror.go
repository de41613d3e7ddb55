package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the credential/session subsystem. Handlers map these to
// HTTP statuses via Status; anything unrecognized is treated as a 500.
var (
	ErrCredentialMissing = errors.New("credential missing")
	ErrCredentialInvalid = errors.New("credential invalid")
	ErrRevoked           = errors.New("credential revoked")
	ErrRateLimited       = errors.New("rate limited")
	ErrNotFound          = errors.New("not found")
	ErrNotVerified       = errors.New("account not verified")
	ErrValidation        = errors.New("validation failed")
)

// Status returns the HTTP status for a sentinel error, or 500 for anything else.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrCredentialMissing):
		return http.StatusUnauthorized
	case errors.Is(err, ErrCredentialInvalid), errors.Is(err, ErrRevoked):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotVerified), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Validationf wraps ErrValidation with a formatted detail message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}
