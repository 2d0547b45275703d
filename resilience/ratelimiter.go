// Package resilience implements the admission-control layer that sits in
// front of every LLM provider call: rate limiting, circuit breaking, and
// backpressure queueing. Every component here is safe to call from many
// goroutines and never holds a lock across a suspension point.
package resilience

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/astraweave-go/astraweave/core"
)

// WindowStore tracks sliding-window request counts for a key. The default
// implementation is in-process; RedisWindowStore shares counters across
// processes when distributed rate limiting is required.
type WindowStore interface {
	// Record appends one event for key at now and returns the number of
	// events still inside the window (now-window, now].
	Record(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
	// Count reports the number of events inside the window without
	// recording a new one.
	Count(ctx context.Context, key string, now time.Time, window time.Duration) (int, error)
}

// inMemoryWindowStore is a sync.Map of per-key sorted event timestamps,
// grounded on the teacher's fixed-window sync.Map bucket design in
// ui/security/inmemory_limiter.go, generalized here to a true sliding
// window (a list of timestamps pruned on every access) rather than a
// fixed-reset bucket, since the spec requires sliding semantics.
type inMemoryWindowStore struct {
	buckets sync.Map // map[string]*eventBucket
}

type eventBucket struct {
	mu    sync.Mutex
	times []time.Time
}

// NewInMemoryWindowStore creates the default, single-process WindowStore.
func NewInMemoryWindowStore() WindowStore {
	return &inMemoryWindowStore{}
}

func (s *inMemoryWindowStore) Record(_ context.Context, key string, now time.Time, window time.Duration) (int, error) {
	bucketI, _ := s.buckets.LoadOrStore(key, &eventBucket{})
	bucket := bucketI.(*eventBucket)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.times = pruneExpired(bucket.times, now, window)
	bucket.times = append(bucket.times, now)
	return len(bucket.times), nil
}

func (s *inMemoryWindowStore) Count(_ context.Context, key string, now time.Time, window time.Duration) (int, error) {
	bucketI, ok := s.buckets.Load(key)
	if !ok {
		return 0, nil
	}
	bucket := bucketI.(*eventBucket)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.times = pruneExpired(bucket.times, now, window)
	return len(bucket.times), nil
}

func pruneExpired(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}

// LimiterConfig configures one dimension of limiting (per-user, per-model,
// or global). Windows default to 60s in production; tests typically pass
// a much shorter window to avoid sleeping.
type LimiterConfig struct {
	Window          time.Duration
	Limit           int
	BurstMultiplier float64

	// AdaptiveThreshold is the success rate below which the effective
	// limit is shrunk. Zero disables adaptation.
	AdaptiveThreshold float64
	// AdaptiveFloor bounds how far the multiplier may shrink (e.g. 0.25
	// means the limit never drops below 25% of configured).
	AdaptiveFloor float64
	// AdaptiveRecoveryStep is how much the multiplier recovers (linearly)
	// per successful request once above threshold.
	AdaptiveRecoveryStep float64
	// AdaptiveShrinkStep is the multiplicative shrink applied per failed
	// request while success rate is below threshold.
	AdaptiveShrinkStep float64
}

// DefaultLimiterConfig returns production defaults: a 60s window, no
// adaptation.
func DefaultLimiterConfig(limit int) LimiterConfig {
	return LimiterConfig{
		Window:          60 * time.Second,
		Limit:           limit,
		BurstMultiplier: 1.0,
	}
}

// adaptiveState tracks the bounded, monotone-within-a-window multiplier
// described in §4.10: failures shrink it multiplicatively toward a floor,
// successes recover it linearly, and it never leaves [floor, 1.0].
type adaptiveState struct {
	mu         sync.Mutex
	multiplier float64
	successes  uint64
	failures   uint64
}

func newAdaptiveState() *adaptiveState {
	return &adaptiveState{multiplier: 1.0}
}

func (a *adaptiveState) record(success bool, cfg LimiterConfig) {
	if cfg.AdaptiveThreshold <= 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if success {
		a.successes++
	} else {
		a.failures++
	}
	total := a.successes + a.failures
	successRate := 1.0
	if total > 0 {
		successRate = float64(a.successes) / float64(total)
	}

	floor := cfg.AdaptiveFloor
	if floor <= 0 {
		floor = 0.1
	}

	if successRate < cfg.AdaptiveThreshold {
		shrink := cfg.AdaptiveShrinkStep
		if shrink <= 0 {
			shrink = 0.9
		}
		a.multiplier = math.Max(floor, a.multiplier*shrink)
	} else {
		step := cfg.AdaptiveRecoveryStep
		if step <= 0 {
			step = 0.05
		}
		a.multiplier = math.Min(1.0, a.multiplier+step)
	}
}

func (a *adaptiveState) effectiveLimit(base int, burst float64) int {
	a.mu.Lock()
	mult := a.multiplier
	a.mu.Unlock()
	if burst <= 0 {
		burst = 1.0
	}
	return int(math.Max(1, math.Floor(float64(base)*mult*burst)))
}

// Limiter enforces per-user, per-model, and global sliding windows,
// each independently configured. A request must pass every configured
// dimension to be allowed.
type Limiter struct {
	store  WindowStore
	clock  core.Clock
	logger core.Logger

	global   LimiterConfig
	perModel map[string]LimiterConfig
	perUser  LimiterConfig

	mu       sync.Mutex
	adaptive map[string]*adaptiveState
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

func WithWindowStore(store WindowStore) LimiterOption {
	return func(l *Limiter) { l.store = store }
}

func WithClock(c core.Clock) LimiterOption {
	return func(l *Limiter) { l.clock = c }
}

func WithLimiterLogger(logger core.Logger) LimiterOption {
	return func(l *Limiter) { l.logger = logger }
}

func WithGlobalLimit(cfg LimiterConfig) LimiterOption {
	return func(l *Limiter) { l.global = cfg }
}

func WithPerUserLimit(cfg LimiterConfig) LimiterOption {
	return func(l *Limiter) { l.perUser = cfg }
}

// WithModelLimit overrides the per-model window for a specific model name.
func WithModelLimit(model string, cfg LimiterConfig) LimiterOption {
	return func(l *Limiter) { l.perModel[model] = cfg }
}

// NewLimiter builds a Limiter. With no options it has no configured
// dimensions and allows everything; callers opt into the dimensions they
// want enforced.
func NewLimiter(opts ...LimiterOption) *Limiter {
	l := &Limiter{
		store:    NewInMemoryWindowStore(),
		clock:    core.RealClock{},
		logger:   &core.NoOpLogger{},
		perModel: make(map[string]LimiterConfig),
		adaptive: make(map[string]*adaptiveState),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow checks the user/model/global dimensions for one request. RPM and
// TPM both flow through the same window mechanism: callers checking token
// budgets pass a key suffixed with ":tokens" and a per-request weight via
// AllowN.
func (l *Limiter) Allow(ctx context.Context, user, model string) Decision {
	return l.AllowN(ctx, user, model, 1)
}

// AllowN is Allow generalized to weighted events (e.g. token counts).
func (l *Limiter) AllowN(ctx context.Context, user, model string, weight int) Decision {
	now := l.clock.Now()

	if d := l.checkDimension(ctx, "global", "", l.global, now, weight); !d.Allowed {
		return d
	}
	if modelCfg, ok := l.perModel[model]; ok {
		if d := l.checkDimension(ctx, "model", model, modelCfg, now, weight); !d.Allowed {
			return d
		}
	}
	if l.perUser.Limit > 0 {
		if d := l.checkDimension(ctx, "user", user, l.perUser, now, weight); !d.Allowed {
			return d
		}
	}

	return Decision{Allowed: true}
}

func (l *Limiter) checkDimension(ctx context.Context, dimension, key string, cfg LimiterConfig, now time.Time, weight int) Decision {
	if cfg.Limit <= 0 {
		return Decision{Allowed: true}
	}

	storeKey := dimension + ":" + key
	state := l.adaptiveFor(storeKey)
	limit := state.effectiveLimit(cfg.Limit, cfg.BurstMultiplier)

	// Record first and check the count Record hands back, rather than
	// Count-then-Record: the store serializes each key's events behind a
	// single bucket lock, so this is the atomic check-and-increment;
	// a separate Count followed by a conditional Record would leave a
	// window for concurrent callers to both pass the check.
	var count int
	for i := 0; i < weight; i++ {
		c, err := l.store.Record(ctx, storeKey, now, cfg.Window)
		if err != nil {
			l.logger.Warn("rate limiter store error, failing open", map[string]interface{}{"dimension": dimension, "key": key, "error": err.Error()})
			return Decision{Allowed: true}
		}
		count = c
	}

	if count > limit {
		state.record(false, cfg)
		retryAfter := cfg.Window / time.Duration(max(1, limit))
		l.logger.Info("rate limit exceeded", map[string]interface{}{
			"dimension": dimension, "key": key, "count": count, "limit": limit,
		})
		return Decision{Allowed: false, Reason: fmt.Sprintf("%s rate limit exceeded", dimension), RetryAfter: retryAfter}
	}
	state.record(true, cfg)

	return Decision{Allowed: true}
}

func (l *Limiter) adaptiveFor(key string) *adaptiveState {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.adaptive[key]
	if !ok {
		state = newAdaptiveState()
		l.adaptive[key] = state
	}
	return state
}
