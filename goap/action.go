package goap

// Action is a single GOAP operator: applicable when the current state
// satisfies Preconditions, and when applied mutates the state by
// Effects. BaseCost is the nominal A* edge weight before history-based
// and risk adjustments are layered on by CalculateCost.
type Action struct {
	Name           string
	Preconditions  State
	Effects        State
	BaseCost       float64
	// Risk is a caller-assigned 0..1 estimate of how likely this action
	// is to put the agent in danger (e.g. crossing open ground under
	// fire); the planner's f-cost weighs it by RiskWeight.
	Risk float64
}

// IsApplicable reports whether state satisfies every precondition.
func (a Action) IsApplicable(state State) bool {
	return state.Satisfies(a.Preconditions)
}

// Apply returns the state obtained by applying a's effects to state. The
// input state is not mutated.
func (a Action) Apply(state State) State {
	next := state.Clone()
	next.ApplyEffects(a.Effects)
	return next
}

// SuccessProbability estimates how likely a is to succeed given history,
// defaulting to the history's optimistic prior when the action has no
// recorded executions yet.
func (a Action) SuccessProbability(history *ActionHistory) float64 {
	if history == nil {
		return 1.0
	}
	return history.SuccessRate(a.Name)
}

// CalculateCost returns the effective planning cost of a: BaseCost
// inflated by the inverse of its historical success rate, so an action
// that has failed more often becomes a less attractive edge in the
// search without being made impossible.
func (a Action) CalculateCost(history *ActionHistory) float64 {
	p := a.SuccessProbability(history)
	if p <= 0 {
		p = 0.01
	}
	return a.BaseCost / p
}
