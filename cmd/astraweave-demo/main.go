// Command astraweave-demo wires every package in this module together
// for a handful of simulated ticks: an ecs.World with a player,
// companion and enemy, a scheduler driving the four-stage tick, an
// orchestrator chosen by strategy, the fallback tier ladder, the
// resilience stack gating how often the ladder may be entered, a
// conversation history recording what was decided, and an OTel
// telemetry provider observing all of it. It plays the role the
// teacher's own cmd/ examples play for gomind: a runnable
// demonstration, not a library any other package imports.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	convo "github.com/astraweave-go/astraweave/context"
	"github.com/astraweave-go/astraweave/core"
	"github.com/astraweave-go/astraweave/ecs"
	"github.com/astraweave-go/astraweave/fallback"
	"github.com/astraweave-go/astraweave/orchestrator"
	"github.com/astraweave-go/astraweave/resilience"
	"github.com/astraweave-go/astraweave/telemetry"
)

// strategyFromEnv mirrors the original Rust runtime's env-var-driven
// orchestrator selection (ASTRAWEAVE_ORCHESTRATOR=rule|utility|goap),
// so an operator can swap strategies without a rebuild. "llm" is
// accepted too but, like any unrecognised value, selects the GOAP
// orchestrator. The fallback ladder that runTick drives every tick,
// whatever the strategy, has a nil client (this module never wires a
// concrete AIClient) and descends to the Heuristic tier, which is itself
// a useful demonstration of §4.9's guaranteed-success behavior.
func strategyFromEnv() string {
	if s := os.Getenv("ASTRAWEAVE_ORCHESTRATOR"); s != "" {
		return s
	}
	return "goap"
}

func main() {
	logger := core.NewProductionLogger(
		core.LoggingConfig{Level: "info", Format: "json", Output: "stdout", TimeFormat: time.RFC3339Nano},
		core.DevelopmentConfig{},
		"astraweave-demo",
	)

	provider, err := telemetry.NewProvider("astraweave-demo", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		logger.Error("telemetry provider unavailable, continuing without it", map[string]interface{}{"error": err.Error()})
		provider = nil
	}
	if provider != nil {
		telemetry.Register(provider)
		defer func() {
			if err := provider.Shutdown(context.Background()); err != nil {
				logger.Warn("telemetry shutdown reported errors", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	limiter := resilience.NewLimiter(
		resilience.WithGlobalLimit(resilience.DefaultLimiterConfig(100)),
		resilience.WithPerUserLimit(resilience.DefaultLimiterConfig(20)),
		resilience.WithLimiterLogger(logger),
	)

	var circuitMetrics resilience.MetricsCollector
	if provider != nil {
		circuitMetrics = telemetry.NewCircuitMetrics(provider)
	}
	breakers := resilience.NewCircuitBreakerManager(resilience.CircuitBreakerConfig{
		Logger:  logger,
		Metrics: circuitMetrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue := resilience.NewQueue(ctx, resilience.QueueConfig{Logger: logger})
	defer queue.Shutdown(5 * time.Second)

	history := convo.NewHistory(convo.DefaultConfig(), convo.WithLogger(logger))
	_, _ = history.AddMessage(ctx, convo.RoleSystem, "You are directing one companion against a single visible enemy.")

	world, resources, events, scheduler := buildWorld(logger)

	strategy := strategyFromEnv()
	active := selectOrchestrator(strategy)
	fallbackEngine := fallback.NewEngine(nil, fallback.WithEngineLogger(logger))

	logger.Info("demo starting", map[string]interface{}{"orchestrator": strategy})

	const tickDuration = 100 * time.Millisecond
	for tick := 0; tick < 3; tick++ {
		runTick(ctx, tick, tickDuration, world, resources, events, scheduler, active, fallbackEngine, limiter, breakers, queue, history, provider, logger)
	}

	metrics := fallbackEngine.GetMetrics()
	logger.Info("demo finished", map[string]interface{}{
		"total_requests":   metrics.TotalRequests,
		"history_tokens":    history.GetTotalTokens(),
		"history_messages":  len(history.GetRecentMessages(100)),
	})
}

// buildWorld constructs a world with one player, one companion and one
// enemy, and a scheduler whose PostSimulation stage refreshes the
// Snapshot resource every tick.
func buildWorld(logger core.Logger) (*ecs.World, *ecs.Resources, *ecs.Events, *ecs.Scheduler) {
	world := ecs.NewWorld(ecs.WithLogger(logger))
	resources := ecs.NewResources()
	events := ecs.NewEvents()
	scheduler := ecs.NewScheduler(ecs.WithSchedulerLogger(logger))

	ecs.InsertResource(resources, ecs.Objective{Text: "Neutralize the visible enemy while preserving companion morale."})

	player := world.Spawn()
	ecs.Insert(world, player, ecs.PlayerTag{})
	ecs.Insert(world, player, ecs.Position{Vec2: ecs.Vec2{X: 0, Y: 0}})
	ecs.Insert(world, player, ecs.Health{HP: 100, MaxHP: 100})

	companion := world.Spawn()
	ecs.Insert(world, companion, ecs.CompanionTag{})
	ecs.Insert(world, companion, ecs.Position{Vec2: ecs.Vec2{X: 1, Y: 0}})
	ecs.Insert(world, companion, ecs.Ammo{Count: 30})
	ecs.Insert(world, companion, ecs.Morale{Value: 0.8})
	ecs.Insert(world, companion, ecs.Cooldowns{Ready: map[string]time.Duration{}})

	enemy := world.Spawn()
	ecs.Insert(world, enemy, ecs.EnemyTag{})
	ecs.Insert(world, enemy, ecs.Position{Vec2: ecs.Vec2{X: 6, Y: 4}})
	ecs.Insert(world, enemy, ecs.Health{HP: 60, MaxHP: 60})
	ecs.Insert(world, enemy, ecs.Cover{InCover: false})
	ecs.Insert(world, enemy, ecs.LastSeen{At: 0})

	scheduler.AddSystem(ecs.PostSimulation, "build_snapshot", func(w *ecs.World, r *ecs.Resources, _ *ecs.Events, dt time.Duration) error {
		snap := ecs.BuildSnapshot(w, r, dt)
		ecs.InsertResource(r, snap)
		return nil
	})

	return world, resources, events, scheduler
}

// selectOrchestrator maps the ASTRAWEAVE_ORCHESTRATOR value to a
// synchronous strategy. Any value other than "rule" or "utility",
// including "llm", selects the GOAP orchestrator.
func selectOrchestrator(strategy string) orchestrator.Orchestrator {
	switch strategy {
	case "rule":
		return orchestrator.RuleOrchestrator{}
	case "utility":
		return orchestrator.UtilityOrchestrator{}
	default:
		return orchestrator.NewGoapOrchestrator(nil)
	}
}

func runTick(
	ctx context.Context,
	tick int,
	dt time.Duration,
	world *ecs.World,
	resources *ecs.Resources,
	events *ecs.Events,
	scheduler *ecs.Scheduler,
	active orchestrator.Orchestrator,
	fallbackEngine *fallback.Engine,
	limiter *resilience.Limiter,
	breakers *resilience.CircuitBreakerManager,
	queue *resilience.Queue,
	history *convo.History,
	provider *telemetry.Provider,
	logger core.Logger,
) {
	tickCtx := ctx
	var span core.Span = &core.NoOpSpan{}
	if provider != nil {
		tickCtx, span = provider.StartSpan(ctx, "tick")
	}
	defer span.End()
	span.SetAttribute("tick", tick)

	scheduler.Tick(world, resources, events, dt)

	snap, ok := ecs.GetResource[*ecs.Snapshot](resources)
	if !ok {
		logger.Error("no snapshot produced this tick", map[string]interface{}{"tick": tick})
		return
	}

	decision := limiter.Allow(tickCtx, "player-1", "tactical-decision")
	if !decision.Allowed {
		logger.Warn("tick decision rate-limited", map[string]interface{}{"tick": tick, "reason": decision.Reason})
		return
	}

	submitErr := queue.Submit(tickCtx, resilience.PriorityNormal, func(stepCtx context.Context) error {
		return breakers.Execute(stepCtx, "tactical-decision", func() error {
			plan := active.ProposePlan(snap)
			fbResult := fallbackEngine.PlanWithFallback(stepCtx, snap, 50)

			describeDecision(history, tick, active.Name(), plan, fbResult, logger)
			return nil
		})
	})
	if submitErr != nil {
		logger.Warn("tick decision rejected by backpressure queue", map[string]interface{}{"tick": tick, "error": submitErr.Error()})
	}
}

// describeDecision logs both the synchronous orchestrator's plan and the
// fallback ladder's result, and records a turn in the conversation
// history the way an NPC's dialogue/narration layer would.
func describeDecision(history *convo.History, tick int, strategyName string, plan orchestrator.Plan, fb fallback.Result, logger core.Logger) {
	logger.Info("tick decision", map[string]interface{}{
		"tick":          tick,
		"strategy":      strategyName,
		"plan_steps":    len(plan.Steps),
		"fallback_tier": fb.Tier.String(),
		"attempts":      len(fb.Attempts),
	})

	summary := fmt.Sprintf("Tick %d: %s proposed %d step(s); fallback settled on %s after %d attempt(s).",
		tick, strategyName, len(plan.Steps), fb.Tier.String(), len(fb.Attempts))
	if _, err := history.AddMessage(context.Background(), convo.RoleAssistant, summary); err != nil {
		logger.Warn("failed to record tick decision in conversation history", map[string]interface{}{"error": err.Error()})
	}
}
