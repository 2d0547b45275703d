// Package orchestrator selects the next action sequence for a companion
// agent given a world snapshot, via one of several strategies ranging
// from hand-written rules to a full GOAP search to an LLM call.
package orchestrator

import (
	"context"
	"time"

	"github.com/astraweave-go/astraweave/ecs"
)

// StepKind identifies which variant of ActionStep is populated.
type StepKind string

const (
	StepMoveTo    StepKind = "move_to"
	StepCoverFire StepKind = "cover_fire"
	StepThrow     StepKind = "throw"
	StepWait      StepKind = "wait"
	StepScan      StepKind = "scan"
)

// ActionStep is one concrete, executable step of a Plan.
type ActionStep struct {
	Kind     StepKind
	X, Y     float64       // MoveTo / Throw target
	TargetID ecs.Entity    // CoverFire target
	Item     string        // Throw payload
	Duration time.Duration // CoverFire / Wait duration
}

// Plan is an ordered sequence of action steps an orchestrator proposes
// for the current tick.
type Plan struct {
	ID    string
	Steps []ActionStep
}

// Orchestrator proposes a plan synchronously from a snapshot; used by
// strategies cheap enough to run inline on the simulation thread (rule,
// utility, GOAP fast path).
type Orchestrator interface {
	ProposePlan(snap *ecs.Snapshot) Plan
	Name() string
}

// AsyncOrchestrator proposes a plan that may require out-of-process work
// (an LLM call) bounded by budgetMs; implementations must return within
// budget or fall back to a cheaper plan rather than block the tick.
type AsyncOrchestrator interface {
	Plan(ctx context.Context, snap *ecs.Snapshot, budgetMs int) (Plan, error)
	Name() string
}

// syncAsAsync adapts a synchronous Orchestrator to AsyncOrchestrator so
// every strategy can be driven through one uniform call site.
type syncAsAsync struct {
	Orchestrator
}

// AsAsync wraps o so it satisfies AsyncOrchestrator, for callers that
// want to treat every strategy uniformly regardless of whether it can
// block.
func AsAsync(o Orchestrator) AsyncOrchestrator {
	return syncAsAsync{o}
}

func (s syncAsAsync) Plan(_ context.Context, snap *ecs.Snapshot, _ int) (Plan, error) {
	return s.ProposePlan(snap), nil
}
