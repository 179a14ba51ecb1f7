package apperr

import "errors"

var (
	ErrMissingArgument = errors.New("missing required argument")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrCorruptTable    = errors.New("corrupt table")
	ErrInvalidField    = errors.New("invalid field value")
	ErrNoBackup        = errors.New("no backup available")
)
