// Package retry runs an operation again after transient failures, waiting an
// exponentially growing, jittered delay between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Defaults applied to zero Config fields.
const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 50 * time.Millisecond
	DefaultMaxBackoff     = 5 * time.Second
	DefaultMultiplier     = 2.0
	DefaultJitter         = 0.1
)

// Config configures retry behavior.
type Config struct {
	// MaxRetries is the number of attempts after the first one.
	// Zero runs the operation once.
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps any single delay.
	MaxBackoff time.Duration

	// Multiplier grows the delay after each retry.
	Multiplier float64

	// Jitter is the relative spread applied to each delay, between 0 and 1.
	Jitter float64

	// IsRetryable decides whether an error deserves another attempt.
	// Nil means DefaultIsRetryable.
	IsRetryable func(error) bool
}

// DefaultConfig returns the configuration used for notifier calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		Multiplier:     DefaultMultiplier,
		Jitter:         DefaultJitter,
		IsRetryable:    DefaultIsRetryable,
	}
}

// NoRetry runs the operation exactly once.
func NoRetry() Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = 0
	return cfg
}

var (
	// ErrNotRetryable marks a failure that stopped retrying early.
	ErrNotRetryable = errors.New("retry: error is not retryable")

	// ErrMaxRetries marks a failure that used up every attempt.
	ErrMaxRetries = errors.New("retry: max retries exceeded")

	// ErrContextCanceled marks a failure interrupted by the context.
	ErrContextCanceled = errors.New("retry: context canceled")
)

// Func is an operation that can be retried.
type Func func(ctx context.Context) error

// Do runs fn until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is done. Failures are reported as *Error.
func Do(ctx context.Context, cfg Config, fn Func) error {
	cfg = cfg.normalize()

	var (
		last     error
		attempts int
	)
	for attempts <= cfg.MaxRetries {
		if err := ctx.Err(); err != nil {
			if last == nil {
				return err
			}
			return &Error{Cause: last, Attempts: attempts, Reason: ErrContextCanceled}
		}

		last = fn(ctx)
		attempts++
		if last == nil {
			return nil
		}
		if !cfg.IsRetryable(last) {
			return &Error{Cause: last, Attempts: attempts, Reason: ErrNotRetryable}
		}
		if attempts > cfg.MaxRetries {
			break
		}

		timer := time.NewTimer(cfg.Backoff(attempts - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return &Error{Cause: last, Attempts: attempts, Reason: ErrContextCanceled}
		case <-timer.C:
		}
	}
	return &Error{Cause: last, Attempts: attempts, Reason: ErrMaxRetries}
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Error describes a retried operation that did not succeed.
type Error struct {
	// Cause is the last error returned by the operation.
	Cause error
	// Attempts is the number of times the operation ran.
	Attempts int
	// Reason is ErrMaxRetries, ErrNotRetryable, or ErrContextCanceled.
	Reason error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v after %d attempt(s): %v", e.Reason, e.Attempts, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches both the reason and the cause.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Reason, target) || errors.Is(e.Cause, target)
}

// Backoff returns the delay after the given zero-based retry.
func (c Config) Backoff(retry int) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(c.Multiplier, float64(retry))
	if ceiling := float64(c.MaxBackoff); d > ceiling {
		d = ceiling
	}
	if c.Jitter > 0 {
		spread := d * c.Jitter
		d += (rand.Float64()*2 - 1) * spread
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func (c Config) normalize() Config {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.Multiplier < 1 {
		c.Multiplier = DefaultMultiplier
	}
	c.Jitter = min(max(c.Jitter, 0), 1)
	if c.IsRetryable == nil {
		c.IsRetryable = DefaultIsRetryable
	}
	return c
}

// DefaultIsRetryable retries everything except errors marked with
// MarkNotRetryable, context errors, and errors whose Retryable method
// reports false.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

// MarkNotRetryable wraps err so DefaultIsRetryable rejects it.
func MarkNotRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &marked{error: err, retryable: false}
}

// MarkRetryable wraps err so DefaultIsRetryable accepts it.
func MarkRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &marked{error: err, retryable: true}
}

type marked struct {
	error
	retryable bool
}

func (m *marked) Unwrap() error   { return m.error }
func (m *marked) Retryable() bool { return m.retryable }
