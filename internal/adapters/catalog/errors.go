package catalog

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrInvalidCatalog = errors.New("invalid catalog")
)
