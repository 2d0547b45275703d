package goap

import (
	"sort"

	"github.com/astraweave-go/astraweave/core"
)

var errNoSubGoals = core.NewFrameworkError("goap.planAnyOf", "planner", core.ErrGoalUnreachable)

// Plan is the hierarchical planning entry point: it checks whether goal
// is already satisfied, then whether it should be decomposed at this
// depth, dispatching to the matching strategy, and otherwise falls
// through to direct A*. Any decomposition failure also falls back to
// PlanDirect rather than failing outright, since a leaf-level plan may
// still exist even when the structured decomposition does not pan out.
func (p *Planner) Plan(start State, goal Goal, depth int) (Plan, error) {
	if goal.IsSatisfied(start) {
		return Plan{}, nil
	}

	if goal.ShouldDecompose(depth) {
		if plan, err := p.planDecomposed(start, goal, depth); err == nil {
			return plan, nil
		}
	}

	return p.PlanDirect(start, goal)
}

// planDecomposed dispatches to the strategy named by goal.Strategy.
func (p *Planner) planDecomposed(start State, goal Goal, depth int) (Plan, error) {
	switch goal.Strategy {
	case StrategySequential:
		return p.planSequential(start, goal.SubGoals, depth+1)
	case StrategyAllOf:
		return p.planAllOf(start, goal.SubGoals, depth+1)
	case StrategyAnyOf:
		return p.planAnyOf(start, goal.SubGoals, depth+1)
	default:
		return p.PlanDirect(start, goal)
	}
}

// planSequential plans each sub-goal in turn, threading the simulated
// post-state of one sub-plan into the next sub-goal's starting state,
// and concatenates the resulting action sequences.
func (p *Planner) planSequential(start State, subGoals []Goal, depth int) (Plan, error) {
	state := start.Clone()
	var actions []Action
	var totalCost, totalRisk float64

	for _, sub := range subGoals {
		plan, err := p.Plan(state, sub, depth)
		if err != nil {
			return Plan{}, err
		}
		actions = append(actions, plan.Actions...)
		totalCost += plan.TotalCost
		totalRisk += plan.TotalRisk
		state = simulate(state, plan)
	}

	return Plan{Actions: actions, TotalCost: totalCost, TotalRisk: totalRisk}, nil
}

// planAllOf plans every sub-goal independently from the same starting
// state (appropriate when sub-goals do not interact) and concatenates
// the results. Sub-goals are visited in descending Priority order (ties
// keep the order given). Simulated state is not threaded from one
// sub-plan into the next, and the sub-plans' actions are not
// interleaved.
func (p *Planner) planAllOf(start State, subGoals []Goal, depth int) (Plan, error) {
	ordered := make([]Goal, len(subGoals))
	copy(ordered, subGoals)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	var actions []Action
	var totalCost, totalRisk float64

	for _, sub := range ordered {
		plan, err := p.Plan(start, sub, depth)
		if err != nil {
			return Plan{}, err
		}
		actions = append(actions, plan.Actions...)
		totalCost += plan.TotalCost
		totalRisk += plan.TotalRisk
	}

	return Plan{Actions: actions, TotalCost: totalCost, TotalRisk: totalRisk}, nil
}

// planAnyOf tries each sub-goal in descending Priority order (ties keep
// the order given) and returns the first one that plans successfully.
func (p *Planner) planAnyOf(start State, subGoals []Goal, depth int) (Plan, error) {
	ordered := make([]Goal, len(subGoals))
	copy(ordered, subGoals)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	var lastErr error
	for _, sub := range ordered {
		plan, err := p.Plan(start, sub, depth)
		if err == nil {
			return plan, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errNoSubGoals
	}
	return Plan{}, lastErr
}
