package catalog

import "github.com/okian/trialeval/pkg/logger"

// Option configures a Catalog.
type Option func(*Catalog)

// WithPath loads tasks from a YAML file instead of the built-in set.
func WithPath(path string) Option {
	return func(c *Catalog) {
		c.path = path
	}
}

// WithLogger sets the logger used for reload reporting.
func WithLogger(l logger.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}
