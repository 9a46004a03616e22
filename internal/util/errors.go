package util

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrProgressNotFound    = errors.New("progress not found")
	ErrNotAvailable        = errors.New("quiz not available")
	ErrValidation          = errors.New("validation error")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrPermissionDenied    = errors.New("permission denied")
)

// IsNotFound reports whether err is any of the not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrQuizNotFound) || errors.Is(err, ErrProgressNotFound)
}
