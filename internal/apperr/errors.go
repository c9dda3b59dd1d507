// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStructural marks configuration-level failures (unreadable manifest,
	// unreadable ignore file, missing credential) that abort a whole run.
	ErrStructural = errors.New("structural error")
)
