// Package common defines shared constants and sentinel errors used across
// the repository, service and transport layers of gophauth. Callers should
// use errors.Is to match these values and KindOf to classify them.
package common

import "errors"

// Kind classifies a failure. The transport layer maps each Kind to a status
// code exactly once.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindInvalidCredentials
	KindAccountDeactivated
	KindUnauthorized
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindAccountDeactivated:
		return "account_deactivated"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a classified, client-safe failure. Code and Message may be shown
// to clients; anything else must be logged, not returned.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewError builds a classified error. Use it for failures whose message
// depends on the request (for instance, which field failed validation).
func NewError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrValidation          = NewError(KindValidation, "validation_error", "email and password are required")
	ErrEmailTaken          = NewError(KindConflict, "user_exists", "user with this email already exists")
	ErrInvalidCredentials  = NewError(KindInvalidCredentials, "invalid_credentials", "invalid email or password")
	ErrAccountDeactivated  = NewError(KindAccountDeactivated, "account_deactivated", "account is deactivated")
	ErrUserNotFound        = NewError(KindNotFound, "user_not_found", "user not found")
	ErrorInternal          = NewError(KindInternal, "internal_error", "internal server error")
	ErrorUnauthorized      = NewError(KindUnauthorized, "unauthorized", "authentication required")
	ErrMissingToken        = NewError(KindUnauthorized, "missing_token", "refresh token required")
	ErrInvalidRefreshToken = NewError(KindUnauthorized, "invalid_refresh_token", "invalid refresh token")
	ErrRefreshTokenExpired = NewError(KindUnauthorized, "refresh_token_expired", "refresh token expired or revoked")

	// Auth errors. Expired, malformed and forged tokens are not told apart.
	ErrInvalidToken = NewError(KindUnauthorized, "invalid_token", "invalid or expired token")
)

// KindOf classifies err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Public returns the client-facing form of err. Unclassified errors collapse
// to ErrorInternal so no implementation detail leaks.
func Public(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrorInternal
}
