package domain

import "errors"

// GenericAuthFailureMessage is the only failure text callers ever see for a
// failed login.
const GenericAuthFailureMessage = "invalid credentials or inactive account"

var (
	// Authentication path. Collapsed into AuthFailure before leaving the service.
	ErrUnknownTenant  = errors.New("unknown tenant")
	ErrNoSuchUser     = errors.New("no such user")
	ErrInactiveUser   = errors.New("inactive user")
	ErrBadPassword    = errors.New("bad password")
	ErrAmbiguousLogin = errors.New("ambiguous login")

	ErrDuplicateLogin   = errors.New("login already exists in tenant")
	ErrDuplicatePrefix  = errors.New("login prefix already used by an active tenant")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoTenantSelected = errors.New("no tenant selected")
	ErrWeakPassword     = errors.New("password does not meet the minimum length")
	ErrInvalidInput     = errors.New("invalid input")

	ErrNotFound        = errors.New("resource not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrSessionNotFound = errors.New("session not found")
)

// AuthFailure wraps an authentication-path error. Error() is always the
// generic message; errors.Is still reaches the underlying reason for logs.
type AuthFailure struct {
	Reason error
}

func (f *AuthFailure) Error() string {
	return GenericAuthFailureMessage
}

func (f *AuthFailure) Unwrap() error {
	return f.Reason
}

// NewAuthFailure returns an AuthFailure for reason
func NewAuthFailure(reason error) error {
	return &AuthFailure{Reason: reason}
}

// IsAuthFailure reports whether err is an authentication failure
func IsAuthFailure(err error) bool {
	var f *AuthFailure
	return errors.As(err, &f)
}
