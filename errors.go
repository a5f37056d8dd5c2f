package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/validate"
	"github.com/MrEthical07/authcore/jwt"
)

var (
	// ErrValidation is an exported constant or variable used by the authentication engine.
	// Failures carry a [*ValidationError] with per-field reasons.
	ErrValidation = validate.ErrInvalid
	// ErrRateLimited is an exported constant or variable used by the authentication engine.
	ErrRateLimited = errors.New("too many attempts")
	// ErrAccountLocked is an exported constant or variable used by the authentication engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidCredentials is returned for a wrong password and for an unknown
	// email alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOrExpiredToken is an exported constant or variable used by the authentication engine.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrPasswordReused is an exported constant or variable used by the authentication engine.
	ErrPasswordReused = errors.New("password was used recently")
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrSessionExpired is an exported constant or variable used by the authentication engine.
	ErrSessionExpired = jwt.ErrSessionExpired
	// ErrSessionInvalid is an exported constant or variable used by the authentication engine.
	ErrSessionInvalid = jwt.ErrSessionInvalid
	// ErrStoreUnavailable wraps infrastructure failures in controls that fail closed.
	ErrStoreUnavailable = errors.New("auth store unavailable")
	// ErrPermissionDenied is an exported constant or variable used by the authentication engine.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrAccountNotFound is returned by AccountStore implementations.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned by AccountStore implementations on a duplicate email.
	ErrAccountExists = errors.New("account already exists")
	// ErrRoleInvalid is an exported constant or variable used by the authentication engine.
	ErrRoleInvalid = errors.New("invalid account role")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ValidationError lists the fields that failed input validation. It matches
// [ErrValidation] with errors.Is.
type ValidationError = validate.Error

// FieldError is one rejected input field.
type FieldError = validate.FieldError

// GenericLoginMessage is the only text shown on the login surface.
const GenericLoginMessage = "invalid email or password"

// retryBuckets are the only RetryAfter values a ThrottleError reports.
var retryBuckets = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	time.Hour,
	2 * time.Hour,
}

// ThrottleError wraps ErrRateLimited or ErrAccountLocked. RetryAfter is rounded
// up to a coarse bucket so callers cannot time retries precisely.
type ThrottleError struct {
	Kind       error
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("%v: retry after %s", e.Kind, e.RetryAfter)
}

func (e *ThrottleError) Unwrap() error { return e.Kind }

func newThrottleError(kind error, now, until time.Time) *ThrottleError {
	return &ThrottleError{Kind: kind, RetryAfter: coarseRetryAfter(until.Sub(now))}
}

func coarseRetryAfter(d time.Duration) time.Duration {
	for _, b := range retryBuckets {
		if d <= b {
			return b
		}
	}
	return retryBuckets[len(retryBuckets)-1]
}

// LoginErrorMessage maps any Authenticate failure to [GenericLoginMessage].
// It returns "" for a nil error.
func LoginErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return GenericLoginMessage
}

// PublicErrorMessage returns user-facing text for the reset, password change
// and session flows, where the error kind leaks nothing about account
// existence. Unknown errors map to a generic message.
func PublicErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPasswordPolicy):
		return "the password does not meet the strength requirements"
	case errors.Is(err, ErrValidation):
		return "the request is malformed"
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return "the reset link is invalid or has expired"
	case errors.Is(err, ErrPasswordReused):
		return "choose a password you have not used recently"
	case errors.Is(err, ErrSessionExpired):
		return "your session has expired, please sign in again"
	case errors.Is(err, ErrSessionInvalid):
		return "your session is not valid, please sign in again"
	case errors.Is(err, ErrInvalidCredentials):
		return "the current password is incorrect"
	case errors.Is(err, ErrPermissionDenied):
		return "you are not allowed to perform this action"
	default:
		return "something went wrong, please try again later"
	}
}
