// Package retry provides retry functionality with exponential backoff and jitter.
// Used for optimistic-concurrency conflicts on streak rows and for
// connecting to storage at startup.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MARKERS
// ══════════════════════════════════════════════════════════════════════════════

// RetryableError marks an error as worth another attempt when no RetryIf is set.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// PermanentError stops retrying even when RetryIf would accept the error.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Retryable wraps err in a RetryableError. nil stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// Permanent wraps err in a PermanentError. nil stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}

func IsPermanent(err error) bool {
	var target *PermanentError
	return errors.As(err, &target)
}

// unmark strips the outer marker so callers see their own error.
func unmark(err error) error {
	switch e := err.(type) {
	case *RetryableError:
		return e.Err
	case *PermanentError:
		return e.Err
	}
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG
// ══════════════════════════════════════════════════════════════════════════════

// Config holds retry configuration.
type Config struct {
	// MaxAttempts counts the first call.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// JitterFactor spreads each delay by ±factor (0 disables jitter).
	JitterFactor float64

	// RetryIf decides which errors are retried. nil retries only RetryableError.
	RetryIf func(error) bool

	// OnRetry runs before each sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig: 3 attempts, 100ms doubling up to 30s, 10% jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// Option is a functional option for configuring the retrier.
type Option func(*Config)

func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.InitialDelay = d
		}
	}
}

func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxDelay = d
		}
	}
}

func WithMultiplier(m float64) Option {
	return func(c *Config) {
		if m >= 1 {
			c.Multiplier = m
		}
	}
}

// WithJitter sets the jitter factor, clamped to [0, 1].
func WithJitter(j float64) Option {
	return func(c *Config) {
		c.JitterFactor = math.Max(0, math.Min(1, j))
	}
}

func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) { c.RetryIf = fn }
}

func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) { c.OnRetry = fn }
}

// ══════════════════════════════════════════════════════════════════════════════
// RETRIER
// ══════════════════════════════════════════════════════════════════════════════

// Retrier is immutable and safe for concurrent use.
type Retrier struct {
	config Config
}

func New(opts ...Option) *Retrier {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &Retrier{config: config}
}

// Do calls operation until it succeeds, returns a non-retryable error, runs
// out of attempts or ctx is done. The returned error has retry markers removed.
// A context cancelled mid-way returns the last operation error, if any.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return unmark(lastErr)
			}
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.shouldRetry(err) || attempt >= r.config.MaxAttempts {
			return unmark(err)
		}

		delay := r.calculateDelay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return unmark(lastErr)
		case <-timer.C:
		}
	}
}

func (r *Retrier) shouldRetry(err error) bool {
	if IsPermanent(err) {
		return false
	}
	if r.config.RetryIf != nil {
		return r.config.RetryIf(err)
	}
	return IsRetryable(err)
}

// calculateDelay returns InitialDelay * Multiplier^(attempt-1), capped at
// MaxDelay, then jittered.
func (r *Retrier) calculateDelay(attempt int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	d = math.Min(d, float64(r.config.MaxDelay))

	if r.config.JitterFactor > 0 {
		d += d * r.config.JitterFactor * (rand.Float64()*2 - 1)
	}
	return time.Duration(math.Max(d, 0))
}

// Do is a shortcut for New(opts...).Do.
func Do(ctx context.Context, operation func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, operation)
}

// DoWithData runs operation through r and returns its value.
func DoWithData[T any](ctx context.Context, r *Retrier, operation func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = operation(ctx)
		return opErr
	})
	return result, err
}

// ══════════════════════════════════════════════════════════════════════════════
// PRESETS
// ══════════════════════════════════════════════════════════════════════════════

// ConflictRetrier retries optimistic-lock conflicts. A conflict clears as soon
// as the competing writer commits, so delays stay in milliseconds.
func ConflictRetrier(isConflict func(error) bool, opts ...Option) *Retrier {
	return New(append([]Option{
		WithMaxAttempts(5),
		WithInitialDelay(5 * time.Millisecond),
		WithMaxDelay(100 * time.Millisecond),
		WithJitter(0.5),
		WithRetryIf(isConflict),
	}, opts...)...)
}

// StartupRetrier retries every error except Permanent ones, for reaching
// the database or Redis while containers come up in any order.
func StartupRetrier(opts ...Option) *Retrier {
	return New(append([]Option{
		WithMaxAttempts(5),
		WithInitialDelay(500 * time.Millisecond),
		WithMaxDelay(5 * time.Second),
		WithJitter(0.2),
		WithRetryIf(func(error) bool { return true }),
	}, opts...)...)
}
