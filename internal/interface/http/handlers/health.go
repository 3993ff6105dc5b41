// Package handlers contains the health checks behind /health and /ready.
package handlers

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// HealthChecker is what the /health and /ready routes depend on.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc returns nil when the dependency is usable.
type HealthCheckFunc func(ctx context.Context) error

// HealthStatus is the /health body.
//
// Healthy drops on any failed check. Ready drops only when a critical one
// (the store) fails: without Redis the service is slower, not broken.
type HealthStatus struct {
	Healthy   bool                   `json:"healthy"`
	Ready     bool                   `json:"ready"`
	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type registeredCheck struct {
	name     string
	critical bool
	fn       HealthCheckFunc
}

// CompositeHealthChecker runs its checks in parallel, each under its own timeout.
type CompositeHealthChecker struct {
	version string
	started time.Time
	timeout time.Duration

	mu     sync.RWMutex
	checks []registeredCheck
}

func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		version: version,
		started: time.Now(),
		timeout: 5 * time.Second,
	}
}

// SetTimeout bounds each check. Call it before serving.
func (c *CompositeHealthChecker) SetTimeout(d time.Duration) { c.timeout = d }

// AddCheck registers or replaces the check called name.
func (c *CompositeHealthChecker) AddCheck(name string, critical bool, fn HealthCheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rc := registeredCheck{name: name, critical: critical, fn: fn}
	if i := slices.IndexFunc(c.checks, func(r registeredCheck) bool { return r.name == name }); i >= 0 {
		c.checks[i] = rc
		return
	}
	c.checks = append(c.checks, rc)
}

func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := slices.Clone(c.checks)
	c.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, rc := range checks {
		wg.Go(func() { results[i] = c.run(ctx, rc) })
	}
	wg.Wait()

	status := HealthStatus{
		Healthy:   true,
		Ready:     true,
		Checks:    make(map[string]CheckResult, len(checks)),
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}
	var failed []string
	for i, rc := range checks {
		r := results[i]
		status.Checks[rc.name] = r
		if r.Healthy {
			continue
		}
		failed = append(failed, rc.name)
		status.Healthy = false
		status.Ready = status.Ready && !r.Critical
	}
	slices.Sort(failed)

	switch {
	case len(checks) == 0:
		status.Message = "No health checks registered"
	case len(failed) == 0:
		status.Message = "All checks passed"
	default:
		status.Message = "Some checks failed: " + strings.Join(failed, ", ")
	}
	return status
}

func (c *CompositeHealthChecker) run(ctx context.Context, rc registeredCheck) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := rc.fn(ctx)
	r := CheckResult{
		Healthy:  err == nil,
		Critical: rc.critical,
		Message:  "OK",
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		r.Message = err.Error()
	}
	return r
}

// Pinger is anything with a connectivity probe (postgres connection, redis cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

func PingCheck(p Pinger) HealthCheckFunc { return p.Ping }
