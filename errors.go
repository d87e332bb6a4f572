package trendengine

import "errors"

var (
	// ErrNotFound is returned when no trend has the requested slug.
	ErrNotFound = errors.New("trend not found")
	// ErrDuplicateSlug is returned when creating a trend whose slug is taken.
	ErrDuplicateSlug = errors.New("slug already exists")
	// ErrVersionConflict is returned when an update was based on a stale
	// version of the trend.
	ErrVersionConflict = errors.New("trend was modified concurrently")
)

// ValidationError reports a rejected field value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
