// Package circuitbreaker implements the Circuit Breaker pattern for fault tolerance.
// It keeps an unhealthy optional dependency (the Redis leaderboard cache) from
// adding latency to every read: while open, callers go straight to the fallback.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until Timeout has passed since the last failure.
	StateOpen
	// StateHalfOpen lets MaxHalfOpenRequests probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned without calling fn while the circuit is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when every half-open probe slot is taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// IsRejected reports whether err came from the breaker rather than from fn.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG
// ══════════════════════════════════════════════════════════════════════════════

// Config holds circuit breaker configuration.
type Config struct {
	Name string

	// FailureThreshold consecutive failures open a closed circuit.
	FailureThreshold int

	// SuccessThreshold consecutive successes close a half-open circuit.
	SuccessThreshold int

	// Timeout is the open period before the first probe.
	Timeout time.Duration

	MaxHalfOpenRequests int

	// OnStateChange runs after the transition, outside the breaker's lock.
	OnStateChange func(name string, from, to State)

	// IsFailure filters errors. nil counts every non-nil error.
	IsFailure func(error) bool
}

// DefaultConfig returns 5 failures to open, 2 successes to close, 30s open period.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// Option is a functional option for configuring the circuit breaker.
type Option func(*Config)

// Non-positive values keep the default.
func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

func WithSuccessThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SuccessThreshold = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

func WithMaxHalfOpenRequests(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxHalfOpenRequests = n
		}
	}
}

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) { c.OnStateChange = fn }
}

func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) { c.IsFailure = fn }
}

// ══════════════════════════════════════════════════════════════════════════════
// BREAKER
// ══════════════════════════════════════════════════════════════════════════════

// Counts are cumulative since creation or the last Reset.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	config Config

	mu          sync.Mutex
	state       State
	counts      Counts
	openedAt    time.Time
	probesInUse int
}

// New creates a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	config := DefaultConfig(name)
	for _, opt := range opts {
		opt(&config)
	}
	return &CircuitBreaker{config: config}
}

// Execute calls fn unless the circuit rejects the call, and records the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

// ExecuteWithFallback routes rejected calls to fallback. Errors from fn are returned as is.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(error) error) error {
	err := cb.Execute(ctx, fn)
	if IsRejected(err) {
		return fallback(err)
	}
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	var change *transition

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.config.Timeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		change = cb.moveTo(StateHalfOpen)
		cb.probesInUse = 1
	case StateHalfOpen:
		if cb.probesInUse >= cb.config.MaxHalfOpenRequests {
			cb.mu.Unlock()
			return ErrTooManyRequests
		}
		cb.probesInUse++
	}

	cb.mu.Unlock()
	cb.notify(change)
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	failed := err != nil
	if failed && cb.config.IsFailure != nil {
		failed = cb.config.IsFailure(err)
	}

	cb.mu.Lock()
	var change *transition
	cb.counts.Requests++

	if failed {
		cb.counts.TotalFailures++
		cb.counts.ConsecutiveFailures++
		cb.counts.ConsecutiveSuccesses = 0
		// A failed probe reopens immediately.
		if cb.state == StateHalfOpen ||
			(cb.state == StateClosed && cb.counts.ConsecutiveFailures >= cb.config.FailureThreshold) {
			change = cb.moveTo(StateOpen)
			cb.openedAt = time.Now()
		} else if cb.state == StateOpen {
			cb.openedAt = time.Now()
		}
	} else {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
			change = cb.moveTo(StateClosed)
		}
	}

	cb.mu.Unlock()
	cb.notify(change)
}

type transition struct{ from, to State }

// moveTo must be called with mu held.
func (cb *CircuitBreaker) moveTo(to State) *transition {
	if cb.state == to {
		return nil
	}
	t := &transition{from: cb.state, to: to}
	cb.state = to
	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures = 0
	cb.probesInUse = 0
	return t
}

func (cb *CircuitBreaker) notify(t *transition) {
	if t != nil && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, t.from, t.to)
	}
}

// State returns the current state. An open circuit past its Timeout still
// reports open until the next call probes it.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset closes the circuit and clears the counters without notifying.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.counts = Counts{}
	cb.probesInUse = 0
}

func (cb *CircuitBreaker) Name() string   { return cb.config.Name }
func (cb *CircuitBreaker) IsOpen() bool   { return cb.State() == StateOpen }
func (cb *CircuitBreaker) IsClosed() bool { return cb.State() == StateClosed }

// CacheBreaker returns the breaker used around the leaderboard response cache.
// The cache is optional, so it opens after a few errors and probes again soon.
// A cancelled request says nothing about Redis health and is not counted.
func CacheBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(
		"leaderboard-cache",
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithTimeout(15*time.Second),
		WithMaxHalfOpenRequests(1),
		WithOnStateChange(onStateChange),
		WithIsFailure(func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}),
	)
}
