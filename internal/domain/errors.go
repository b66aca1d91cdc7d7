package domain

import "errors"

// Auth errors
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("user already exists")
)

// Lookup errors. ErrNotFound covers both a missing resource and one owned by
// another user.
var (
	ErrNotFound = errors.New("not found")
)

// Dependency errors
var (
	ErrUpstream = errors.New("completion provider failure")
	ErrStorage  = errors.New("storage failure")
)

// ValidationError reports malformed or missing input. Message is safe to show
// to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
