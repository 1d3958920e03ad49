package repository

import (
	"time"

	"github.com/okian/trialeval/pkg/logger"
)

// MySQLOption configures a MySQLStore.
type MySQLOption func(*MySQLStore)

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) MySQLOption {
	return func(s *MySQLStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithConnMaxLifetime recycles pooled connections after d.
func WithConnMaxLifetime(d time.Duration) MySQLOption {
	return func(s *MySQLStore) {
		if d > 0 {
			s.connMaxLifetime = d
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) MySQLOption {
	return func(s *MySQLStore) {
		if l != nil {
			s.logger = l
		}
	}
}
