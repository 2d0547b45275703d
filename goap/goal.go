package goap

import "time"

// DecompositionStrategy selects how a Goal's SubGoals are combined when
// the planner decides to decompose instead of planning directly.
type DecompositionStrategy int

const (
	// StrategyNone marks a leaf goal: it is never decomposed, only
	// planned for directly via A*.
	StrategyNone DecompositionStrategy = iota
	// StrategySequential plans each sub-goal in turn, threading the
	// simulated post-state of one into the next.
	StrategySequential
	// StrategyAllOf plans every sub-goal independently from the same
	// starting state and concatenates the resulting actions; used when
	// sub-goals are independent (order does not matter for satisfaction).
	StrategyAllOf
	// StrategyAnyOf tries sub-goals in priority order and accepts the
	// first one that plans successfully.
	StrategyAnyOf
)

// Goal is a desired symbolic state together with scheduling metadata and,
// optionally, a decomposition into sub-goals for hierarchical planning.
type Goal struct {
	Name          string
	DesiredState  State
	Priority      float64
	Deadline      time.Duration // 0 means no deadline
	Strategy      DecompositionStrategy
	SubGoals      []Goal
	// MaxDecompositionDepth bounds how many levels of SubGoals will be
	// expanded before falling back to direct planning, preventing
	// runaway recursion on a malformed goal tree.
	MaxDecompositionDepth int
}

// IsSatisfied reports whether state already matches g's desired state.
func (g Goal) IsSatisfied(state State) bool {
	return state.Satisfies(g.DesiredState)
}

// ShouldDecompose reports whether g should be expanded into its
// sub-goals rather than planned for directly, given the current
// recursion depth.
func (g Goal) ShouldDecompose(depth int) bool {
	if g.Strategy == StrategyNone || len(g.SubGoals) == 0 {
		return false
	}
	max := g.MaxDecompositionDepth
	if max <= 0 {
		max = 4
	}
	return depth < max
}

// Urgency combines priority and deadline pressure into a single score
// used to order goals in multi-goal planning: goals closer to their
// deadline (or with no deadline at all, treated as never urgent on the
// time axis) are scored primarily by Priority, while an approaching
// deadline raises the score so it is not starved by a merely
// higher-priority but unhurried goal.
func (g Goal) Urgency(currentTime time.Duration) float64 {
	if g.Deadline <= 0 {
		return g.Priority
	}
	remaining := g.Deadline - currentTime
	if remaining <= 0 {
		// Past deadline: maximal urgency regardless of priority.
		return g.Priority + 1000
	}
	// As remaining shrinks toward zero the bonus grows; scaled so it
	// dominates priority differences once a deadline is within a few
	// seconds.
	deadlinePressure := 1.0 / (remaining.Seconds() + 0.001)
	return g.Priority + deadlinePressure
}
