package orchestrator

import (
	"fmt"
	"math"

	"github.com/astraweave-go/astraweave/ecs"
	"github.com/astraweave-go/astraweave/goap"
)

// Symbolic state keys shared between SnapshotToState and the action set
// a GoapOrchestrator plans over.
const (
	keyEnemyVisible = "enemy_visible"
	keyInRange      = "in_range"
	keyEnemyDown    = "enemy_down"
)

// GoapAction pairs a symbolic goap.Action with the function that
// realizes it as a concrete ActionStep once it is chosen by the planner.
type GoapAction struct {
	goap.Action
	ToStep func(snap *ecs.Snapshot, enemy ecs.EnemyState) ActionStep
}

// DefaultGoapActions returns the tactical action set a GoapOrchestrator
// plans over by default: close distance, then suppress.
func DefaultGoapActions() []GoapAction {
	return []GoapAction{
		{
			Action: goap.Action{
				Name:          "advance",
				Preconditions: goap.State{keyInRange: goap.Bool(false)},
				Effects:       goap.State{keyInRange: goap.Bool(true)},
				BaseCost:      1,
				Risk:          0.2,
			},
			ToStep: func(snap *ecs.Snapshot, enemy ecs.EnemyState) ActionStep {
				me := snap.Companions[0]
				dx := signum(enemy.Position.X - me.Position.X)
				dy := signum(enemy.Position.Y - me.Position.Y)
				return ActionStep{Kind: StepMoveTo, X: me.Position.X + dx, Y: me.Position.Y + dy}
			},
		},
		{
			Action: goap.Action{
				Name:          "suppress",
				Preconditions: goap.State{keyInRange: goap.Bool(true)},
				Effects:       goap.State{keyEnemyDown: goap.Bool(true)},
				BaseCost:      2,
				Risk:          0.4,
			},
			ToStep: func(_ *ecs.Snapshot, enemy ecs.EnemyState) ActionStep {
				return ActionStep{Kind: StepCoverFire, TargetID: enemy.Entity, Duration: 1500 * 1_000_000}
			},
		},
	}
}

// GoapOrchestrator drives action selection with a real A* search over
// symbolic state, falling back to an immediate, allocation-free heuristic
// (NextAction) for callers on a sub-millisecond budget.
type GoapOrchestrator struct {
	planner *goap.Planner
	actions []GoapAction
}

// NewGoapOrchestrator builds a GoapOrchestrator over actions, defaulting
// to DefaultGoapActions when actions is nil.
func NewGoapOrchestrator(actions []GoapAction) *GoapOrchestrator {
	if actions == nil {
		actions = DefaultGoapActions()
	}
	plain := make([]goap.Action, len(actions))
	for i, a := range actions {
		plain[i] = a.Action
	}
	return &GoapOrchestrator{planner: goap.NewPlanner(plain), actions: actions}
}

func (GoapOrchestrator) Name() string { return "GoapOrchestrator" }

// SnapshotToState projects the relevant parts of snap into symbolic
// state for the first companion against the first visible enemy: within
// a Manhattan distance of 2 cells counts as in weapon range.
func SnapshotToState(snap *ecs.Snapshot) goap.State {
	state := goap.State{keyEnemyVisible: goap.Bool(false)}
	if len(snap.Companions) == 0 || len(snap.Enemies) == 0 {
		return state
	}
	me := snap.Companions[0]
	enemy := snap.Enemies[0]
	dist := math.Abs(enemy.Position.X-me.Position.X) + math.Abs(enemy.Position.Y-me.Position.Y)
	state[keyEnemyVisible] = goap.Bool(true)
	state[keyInRange] = goap.Bool(dist <= 2)
	state[keyEnemyDown] = goap.Bool(false)
	return state
}

func (g *GoapOrchestrator) ProposePlan(snap *ecs.Snapshot) Plan {
	planID := fmt.Sprintf("goap-%d", snap.Tick.Milliseconds())
	if len(snap.Companions) == 0 || len(snap.Enemies) == 0 {
		return Plan{ID: planID, Steps: []ActionStep{{Kind: StepWait, Duration: 1_000_000_000}}}
	}

	state := SnapshotToState(snap)
	goal := goap.Goal{Name: "suppress-enemy", DesiredState: goap.State{keyEnemyDown: goap.Bool(true)}}

	plan, err := g.planner.Plan(state, goal, 0)
	if err != nil {
		return Plan{ID: planID, Steps: []ActionStep{g.NextAction(snap)}}
	}

	byName := make(map[string]GoapAction, len(g.actions))
	for _, a := range g.actions {
		byName[a.Name] = a
	}

	enemy := snap.Enemies[0]
	steps := make([]ActionStep, 0, len(plan.Actions))
	for _, a := range plan.Actions {
		def, ok := byName[a.Name]
		if !ok {
			continue
		}
		steps = append(steps, def.ToStep(snap, enemy))
	}
	return Plan{ID: planID, Steps: steps}
}

// NextAction returns a single action for this frame without invoking the
// planner at all: a cheap Manhattan-distance heuristic targeting a
// sub-millisecond budget for callers that need an instant decision (e.g.
// a tick whose planning budget has already been exhausted by other
// systems). It performs no allocation beyond the returned value.
func (GoapOrchestrator) NextAction(snap *ecs.Snapshot) ActionStep {
	if len(snap.Companions) == 0 || len(snap.Enemies) == 0 {
		return ActionStep{Kind: StepWait, Duration: 1_000_000_000}
	}
	me := snap.Companions[0]
	enemy := snap.Enemies[0]
	dx := enemy.Position.X - me.Position.X
	dy := enemy.Position.Y - me.Position.Y
	dist := math.Abs(dx) + math.Abs(dy)

	if dist <= 2 {
		return ActionStep{Kind: StepCoverFire, TargetID: enemy.Entity, Duration: 1500 * 1_000_000}
	}
	return ActionStep{Kind: StepMoveTo, X: me.Position.X + signum(dx), Y: me.Position.Y + signum(dy)}
}
