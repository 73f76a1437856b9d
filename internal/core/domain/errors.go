package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTemporary         = errors.New("temporary failure")
	ErrConflict          = errors.New("conflict")
	ErrClientNotFound    = errors.New("client not found")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDeadlineNotFound  = errors.New("deadline not found")
	ErrNotConfigured     = errors.New("model backend not configured")
	ErrMalformedOutput   = errors.New("malformed model output")
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IsNotFound reports whether err carries any of the not-found kinds.
func IsNotFound(err error) bool {
	return IsKind(err, ErrClientNotFound) ||
		IsKind(err, ErrDocumentNotFound) ||
		IsKind(err, ErrDeadlineNotFound)
}
