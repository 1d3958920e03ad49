package config

import "errors"

// Sentinel kinds returned by Load and Validate.
var (
	// ErrInvalidConfig marks a setting outside its allowed range.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a file, .env or environment source that could not be read.
	ErrLoadConfig = errors.New("load config failed")
)
