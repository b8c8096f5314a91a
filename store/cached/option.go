package cached

import (
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultPrefix = "msgbox"
	DefaultTTL    = 5 * time.Minute
)

// options holds cached store configuration.
type options struct {
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the cached store.
type Option func(*options)

// WithPrefix sets the redis key prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithTTL sets how long cached counters live.
// Default is 5 minutes. Writes through this store invalidate earlier.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
