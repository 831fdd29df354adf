package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotConfigured is returned by write operations on collaborators that
	// require deployment configuration (GitHub owner/repo/token) that is absent.
	ErrNotConfigured = errors.New("not configured")
)
