package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/astraweave-go/astraweave/core"
)

// CircuitState mirrors the teacher's resilience.CircuitState three-value
// state machine (Closed/Open/HalfOpen), adapted here to a per-model scope.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
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

// MetricsCollector mirrors the teacher's resilience.MetricsCollector shape
// so the same sink wired for the fallback engine can observe circuit
// breaker events too.
type MetricsCollector interface {
	RecordSuccess(model string)
	RecordFailure(model string, errorType string)
	RecordStateChange(model string, from, to string)
	RecordRejection(model string)
}

type noopMetrics struct{}

func (noopMetrics) RecordSuccess(string)                    {}
func (noopMetrics) RecordFailure(string, string)             {}
func (noopMetrics) RecordStateChange(string, string, string) {}
func (noopMetrics) RecordRejection(string)                   {}

// ErrorClassifier decides whether an error counts toward the failure
// window, ported from the teacher's DefaultErrorClassifier idea: only
// infrastructure errors should trip the breaker, not user/config errors.
type ErrorClassifier func(error) bool

// DefaultErrorClassifier counts every non-nil error as a failure. Callers
// with richer error taxonomies (config errors, not-found, etc.) supply
// their own classifier via WithErrorClassifier.
func DefaultErrorClassifier(err error) bool {
	return err != nil
}

// CircuitOpenError is returned when a call is short-circuited. It wraps
// core.ErrCircuitOpen so errors.Is(err, core.ErrCircuitOpen) still works.
type CircuitOpenError struct {
	Model      string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for model %q, retry after %s", e.Model, e.RetryAfter)
}

func (e *CircuitOpenError) Unwrap() error { return core.ErrCircuitOpen }

// CircuitBreakerConfig configures the per-model state machine described in
// §4.11: Closed -> Open on failure_threshold within failure_window (once
// minimum_requests is met), Open -> HalfOpen after recovery_timeout,
// HalfOpen -> Closed on success_threshold consecutive successes, or back
// to Open on any single failure.
type CircuitBreakerConfig struct {
	FailureThreshold int
	FailureWindow    time.Duration
	MinimumRequests  int
	RecoveryTimeout  time.Duration
	SuccessThreshold int

	ErrorClassifier ErrorClassifier
	Logger          core.Logger
	Metrics         MetricsCollector
	Clock           core.Clock
}

// DefaultCircuitBreakerConfig returns production-shaped defaults: 5
// failures within 30s (with at least 5 requests observed) trips Open for
// 30s, and 2 consecutive half-open successes close it again.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		FailureWindow:    30 * time.Second,
		MinimumRequests:  5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
		ErrorClassifier:  DefaultErrorClassifier,
		Logger:           &core.NoOpLogger{},
		Metrics:          noopMetrics{},
		Clock:            core.RealClock{},
	}
}

func (c *CircuitBreakerConfig) applyDefaults() {
	d := DefaultCircuitBreakerConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureWindow <= 0 {
		c.FailureWindow = d.FailureWindow
	}
	if c.MinimumRequests <= 0 {
		c.MinimumRequests = d.MinimumRequests
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = d.RecoveryTimeout
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.ErrorClassifier == nil {
		c.ErrorClassifier = d.ErrorClassifier
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	if c.Metrics == nil {
		c.Metrics = d.Metrics
	}
	if c.Clock == nil {
		c.Clock = d.Clock
	}
}

type requestEvent struct {
	at      time.Time
	success bool
}

// circuitBreaker is one model's failure-window state machine.
type circuitBreaker struct {
	config CircuitBreakerConfig

	mu                sync.Mutex
	state             CircuitState
	stateChangedAt    time.Time
	until             time.Time // valid while state == StateOpen
	events            []requestEvent
	halfOpenSuccesses int
	model             string
}

func newCircuitBreaker(model string, cfg CircuitBreakerConfig) *circuitBreaker {
	cfg.applyDefaults()
	return &circuitBreaker{
		config:         cfg,
		state:          StateClosed,
		stateChangedAt: cfg.Clock.Now(),
		model:          model,
	}
}

// Allow reports whether a call may proceed, performing the Open->HalfOpen
// transition as a side effect when the recovery timeout has elapsed.
func (cb *circuitBreaker) Allow() (bool, time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.config.Clock.Now()

	switch cb.state {
	case StateClosed:
		return true, 0
	case StateOpen:
		if !now.Before(cb.until) {
			cb.transitionLocked(StateHalfOpen, now)
			return true, 0
		}
		return false, cb.until.Sub(now)
	case StateHalfOpen:
		// A trickle of probes: every Allow() call is let through as a
		// probe, with no limit on probes in flight; the first failure
		// reopens, SuccessThreshold successes closes.
		return true, 0
	default:
		return true, 0
	}
}

// RecordResult reports the outcome of a call that Allow permitted.
func (cb *circuitBreaker) RecordResult(err error) {
	shouldCount := cb.config.ErrorClassifier(err)
	success := err == nil || !shouldCount

	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.config.Clock.Now()

	if success {
		cb.config.Metrics.RecordSuccess(cb.model)
	} else {
		cb.config.Metrics.RecordFailure(cb.model, fmt.Sprintf("%T", err))
	}

	switch cb.state {
	case StateHalfOpen:
		if success {
			cb.halfOpenSuccesses++
			if cb.halfOpenSuccesses >= cb.config.SuccessThreshold {
				cb.transitionLocked(StateClosed, now)
			}
		} else {
			cb.transitionLocked(StateOpen, now)
		}
		return
	case StateOpen:
		// Result for an orphaned in-flight call after we've already
		// reopened; nothing to evaluate.
		return
	}

	cb.events = append(cb.events, requestEvent{at: now, success: success})
	cb.events = pruneEvents(cb.events, now, cb.config.FailureWindow)

	total, failures := 0, 0
	for _, e := range cb.events {
		total++
		if !e.success {
			failures++
		}
	}

	if total >= cb.config.MinimumRequests && failures >= cb.config.FailureThreshold {
		cb.transitionLocked(StateOpen, now)
	}
}

func pruneEvents(events []requestEvent, now time.Time, window time.Duration) []requestEvent {
	cutoff := now.Add(-window)
	kept := events[:0]
	for _, e := range events {
		if e.at.After(cutoff) {
			kept = append(kept, e)
		}
	}
	return kept
}

// transitionLocked must be called with cb.mu held.
func (cb *circuitBreaker) transitionLocked(next CircuitState, now time.Time) {
	prev := cb.state
	if prev == next {
		return
	}

	cb.state = next
	cb.stateChangedAt = now

	switch next {
	case StateOpen:
		cb.until = now.Add(cb.config.RecoveryTimeout)
		cb.events = nil
	case StateHalfOpen:
		cb.halfOpenSuccesses = 0
	case StateClosed:
		cb.events = nil
		cb.halfOpenSuccesses = 0
	}

	cb.config.Logger.Info("circuit breaker state changed", map[string]interface{}{
		"model": cb.model, "from": prev.String(), "to": next.String(),
	})
	cb.config.Metrics.RecordStateChange(cb.model, prev.String(), next.String())
}

func (cb *circuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// CircuitBreakerManager owns one circuitBreaker per model name, created
// lazily on first use, and exposes Execute as the single entry point
// matching the teacher's CircuitBreaker.Execute wrapper shape.
type CircuitBreakerManager struct {
	config CircuitBreakerConfig

	mu       sync.Mutex
	breakers map[string]*circuitBreaker
}

// NewCircuitBreakerManager builds a manager applying cfg (with defaults
// filled in) to every model's breaker.
func NewCircuitBreakerManager(cfg CircuitBreakerConfig) *CircuitBreakerManager {
	cfg.applyDefaults()
	return &CircuitBreakerManager{
		config:   cfg,
		breakers: make(map[string]*circuitBreaker),
	}
}

func (m *CircuitBreakerManager) breakerFor(model string) *circuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	cb, ok := m.breakers[model]
	if !ok {
		cb = newCircuitBreaker(model, m.config)
		m.breakers[model] = cb
	}
	return cb
}

// Execute runs fn under the named model's circuit breaker. If the circuit
// is Open, fn is never called and a *CircuitOpenError is returned,
// satisfying the invariant that zero provider calls occur while Open.
func (m *CircuitBreakerManager) Execute(_ context.Context, model string, fn func() error) error {
	cb := m.breakerFor(model)

	allowed, retryAfter := cb.Allow()
	if !allowed {
		cb.config.Metrics.RecordRejection(model)
		return &CircuitOpenError{Model: model, RetryAfter: retryAfter}
	}

	err := fn()
	cb.RecordResult(err)
	return err
}

// State reports the current state of the named model's circuit, primarily
// for tests and diagnostics.
func (m *CircuitBreakerManager) State(model string) CircuitState {
	return m.breakerFor(model).State()
}
