package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRecord  = errors.New("invalid record")
	ErrUnknownDriver  = errors.New("unknown store driver")
	ErrStoreBootstrap = errors.New("store bootstrap failed")
)
