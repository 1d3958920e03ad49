package badge

import "errors"

// Sentinel kinds for badge errors.
var (
	ErrUnknownBadge = errors.New("unknown badge")
)
