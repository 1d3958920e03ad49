package evaluation

import "errors"

// Sentinel kinds for evaluation failures. They never escape Engine.Evaluate;
// they appear in logs and in the fail-soft feedback.
var (
	ErrInternalScoring    = errors.New("internal scoring error")
	ErrSubmissionMismatch = errors.New("submission does not match task category")
)
