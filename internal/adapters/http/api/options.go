package api

type config struct {
	maxBodyBytes int64
}

// Option configures the API server.
type Option func(*config)

// WithMaxBodyBytes bounds the size of request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}
