package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrBackpressure = errors.New("submission queue full")
	ErrInvalidInput = errors.New("invalid input")
	ErrInProgress   = errors.New("submission already in progress")
)
