package extractor

import (
	"errors"
	"fmt"
)

const (
	// ErrorExtraction marks content the backend refuses to retrieve for
	// policy or availability reasons (private, age-restricted, geo-blocked).
	ErrorExtraction = "extraction_error"
	// ErrorBackend marks internal or network faults inside the backend.
	ErrorBackend = "backend_error"
	// ErrorNotFound marks a completed download that left no output file.
	ErrorNotFound = "not_found"
)

// Error represents a stable, categorized extraction failure.
type Error struct {
	Category string
	Detail   string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return e.Category
	}

	return fmt.Sprintf("%s: %s", e.Category, e.Detail)
}

// NewError creates a categorized extraction error.
func NewError(category string, detail string) error {
	return &Error{Category: category, Detail: detail}
}

// CategoryFromError returns the stable category for an error when available.
//
// Uncategorized errors collapse into ErrorBackend so callers can always
// branch on kind rather than message text.
func CategoryFromError(err error) string {
	if err == nil {
		return ""
	}

	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}

	return ErrorBackend
}
