package fallback

import (
	"context"
	"sync"
	"time"

	"github.com/astraweave-go/astraweave/core"
	"github.com/astraweave-go/astraweave/ecs"
	"github.com/astraweave-go/astraweave/orchestrator"
)

// Attempt records the outcome of trying one tier.
type Attempt struct {
	Tier     Tier
	Success  bool
	Err      error
	Duration time.Duration
}

// Result is the outcome of PlanWithFallback: the plan that finally
// succeeded, which tier served it, and the full attempt trail.
type Result struct {
	Plan          orchestrator.Plan
	Tier          Tier
	Attempts      []Attempt
	TotalDuration time.Duration
}

// Metrics accumulates fallback outcomes across every request served by
// an Engine, for operational visibility into how often each tier is
// actually relied upon.
type Metrics struct {
	TotalRequests     uint64
	TierSuccesses     map[Tier]uint64
	TierFailures      map[Tier]uint64
	AverageAttempts   float64
	AverageDurationMs float64
}

func newMetrics() Metrics {
	return Metrics{
		TierSuccesses: make(map[Tier]uint64),
		TierFailures:  make(map[Tier]uint64),
	}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithStartingTier overrides the tier a request first attempts.
// Defaults to SimplifiedLLM: the full-tool Tier 1 prompt costs enough
// extra latency that starting one rung down is the better default,
// matching the latency-driven tuning observed in the teacher corpus.
func WithStartingTier(tier Tier) EngineOption {
	return func(e *Engine) { e.startingTier = tier }
}

func WithEngineLogger(l core.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// Engine drives a request through the fallback ladder until a tier
// succeeds. Emergency is guaranteed to succeed, so PlanWithFallback never
// fails outright: exhausting every tier without Emergency succeeding
// would be a programming invariant violation, not a runtime condition to
// recover from.
type Engine struct {
	client       core.AIClient
	startingTier Tier
	logger       core.Logger

	mu      sync.RWMutex
	metrics Metrics
}

// NewEngine builds an Engine calling client for the LLM-backed tiers.
func NewEngine(client core.AIClient, opts ...EngineOption) *Engine {
	e := &Engine{
		client:       client,
		startingTier: SimplifiedLLM,
		logger:       &core.NoOpLogger{},
		metrics:      newMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PlanWithFallback attempts tiers starting at e.startingTier, descending
// through Next() on failure, until one succeeds. budgetMs bounds each
// individual LLM-backed tier attempt, not the whole ladder.
func (e *Engine) PlanWithFallback(ctx context.Context, snap *ecs.Snapshot, budgetMs int) Result {
	start := time.Now()
	var attempts []Attempt
	tier := e.startingTier

	for {
		tierStart := time.Now()
		plan, err := e.tryTier(ctx, tier, snap, budgetMs)
		duration := time.Since(tierStart)

		if err == nil {
			attempts = append(attempts, Attempt{Tier: tier, Success: true, Duration: duration})
			e.recordSuccess(tier, attempts, time.Since(start))
			return Result{Plan: plan, Tier: tier, Attempts: attempts, TotalDuration: time.Since(start)}
		}

		e.logger.Warn("fallback tier failed", map[string]interface{}{"tier": tier.String(), "error": err.Error()})
		attempts = append(attempts, Attempt{Tier: tier, Success: false, Err: err, Duration: duration})

		next, ok := tier.Next()
		if !ok {
			panic("fallback: emergency tier failed, this must never happen")
		}
		tier = next
	}
}

// tryTier dispatches to the implementation for tier. Heuristic and
// Emergency never return an error.
func (e *Engine) tryTier(ctx context.Context, tier Tier, snap *ecs.Snapshot, budgetMs int) (orchestrator.Plan, error) {
	switch tier {
	case FullLLM:
		return e.tryLLM(ctx, snap, budgetMs, orchestrator.DefaultToolRegistry(), false)
	case SimplifiedLLM:
		return e.tryLLM(ctx, snap, budgetMs, simplifiedTools, true)
	case Heuristic:
		return HeuristicPlan(snap), nil
	default:
		return EmergencyPlan(snap), nil
	}
}

// tryLLM runs one LLM-backed tier. simplified selects the compact prompt
// builder; the full tier uses orchestrator's own snapshot-dump prompt.
func (e *Engine) tryLLM(ctx context.Context, snap *ecs.Snapshot, budgetMs int, tools []orchestrator.ToolDescriptor, simplified bool) (orchestrator.Plan, error) {
	if e.client == nil {
		return orchestrator.Plan{}, core.NewFrameworkError("fallback.tryLLM", "fallback", core.ErrOrchestratorUnavailable)
	}

	opts := []orchestrator.LlmOrchestratorOption{
		orchestrator.WithToolRegistry(tools),
		orchestrator.WithFallbackOrchestrator(nil),
	}
	if simplified {
		opts = append(opts, orchestrator.WithPromptBuilder(buildSimplifiedPrompt))
	}
	o := orchestrator.NewLlmOrchestrator(e.client, opts...)
	plan, err := o.Plan(ctx, snap, budgetMs)
	if err != nil {
		return orchestrator.Plan{}, err
	}
	if len(plan.Steps) == 0 {
		return orchestrator.Plan{}, core.NewFrameworkError("fallback.tryLLM", "fallback", core.ErrInvalidToolCall)
	}
	return plan, nil
}

func (e *Engine) recordSuccess(tier Tier, attempts []Attempt, totalDuration time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.metrics.TotalRequests++
	e.metrics.TierSuccesses[tier]++
	for _, a := range attempts {
		if !a.Success {
			e.metrics.TierFailures[a.Tier]++
		}
	}

	total := float64(e.metrics.TotalRequests)
	e.metrics.AverageAttempts = (e.metrics.AverageAttempts*(total-1) + float64(len(attempts))) / total
	e.metrics.AverageDurationMs = (e.metrics.AverageDurationMs*(total-1) + float64(totalDuration.Milliseconds())) / total
}

// GetMetrics returns a snapshot of the engine's accumulated metrics.
func (e *Engine) GetMetrics() Metrics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	successes := make(map[Tier]uint64, len(e.metrics.TierSuccesses))
	for k, v := range e.metrics.TierSuccesses {
		successes[k] = v
	}
	failures := make(map[Tier]uint64, len(e.metrics.TierFailures))
	for k, v := range e.metrics.TierFailures {
		failures[k] = v
	}
	return Metrics{
		TotalRequests:     e.metrics.TotalRequests,
		TierSuccesses:     successes,
		TierFailures:      failures,
		AverageAttempts:   e.metrics.AverageAttempts,
		AverageDurationMs: e.metrics.AverageDurationMs,
	}
}
