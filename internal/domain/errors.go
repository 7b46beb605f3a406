package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidWorkflow = errors.New("invalid workflow")
	ErrStaleTransition = errors.New("stale status transition")
	ErrBuiltinReadOnly = errors.New("built-in workflow is read-only")
)
