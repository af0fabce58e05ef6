package store

import "errors"

// Store errors. Callers match them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateIdentity = errors.New("duplicate identity")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidTransition = errors.New("invalid status transition")
)
