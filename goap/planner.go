package goap

import (
	"container/heap"
	"sort"
	"time"

	"github.com/astraweave-go/astraweave/core"
)

// DefaultMaxIterations bounds the A* search when no explicit limit is
// supplied, preventing an unreachable goal from spinning the planner
// forever.
const DefaultMaxIterations = 10000

// DefaultRiskWeight is the default multiplier applied to an action's Risk
// in the f-cost, matching the fixed weighting used when ranking plans of
// otherwise-equal cost.
const DefaultRiskWeight = 5.0

// Plan is an ordered sequence of actions that, applied in order to the
// planner's starting state, satisfies the goal it was produced for.
type Plan struct {
	Actions   []Action
	TotalCost float64
	TotalRisk float64
}

// ActionNames returns the plan's action names in order, for logging and
// for the tie-break comparisons used during planning.
func (p Plan) ActionNames() []string {
	names := make([]string, len(p.Actions))
	for i, a := range p.Actions {
		names[i] = a.Name
	}
	return names
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithMaxIterations overrides DefaultMaxIterations.
func WithMaxIterations(n int) PlannerOption {
	return func(p *Planner) { p.maxIterations = n }
}

// WithRiskWeight overrides DefaultRiskWeight.
func WithRiskWeight(w float64) PlannerOption {
	return func(p *Planner) { p.riskWeight = w }
}

// WithHistory attaches an ActionHistory used to bias action cost by past
// reliability.
func WithHistory(h *ActionHistory) PlannerOption {
	return func(p *Planner) { p.history = h }
}

// Planner performs A* search over symbolic State reachable via a fixed
// set of Actions.
type Planner struct {
	actions       []Action
	maxIterations int
	riskWeight    float64
	history       *ActionHistory
}

// NewPlanner builds a Planner over the given action set.
func NewPlanner(actions []Action, opts ...PlannerOption) *Planner {
	p := &Planner{
		actions:       actions,
		maxIterations: DefaultMaxIterations,
		riskWeight:    DefaultRiskWeight,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// planNode is one A* search node: a symbolic state reached by applying a
// sequence of actions from the start.
type planNode struct {
	state      State
	g          float64 // cost so far
	h          float64 // heuristic estimate to goal
	risk       float64 // accumulated risk so far
	actionPath []string
	actions    []Action
	index      int // heap bookkeeping
}

func (n *planNode) f(riskWeight float64) float64 {
	return n.g + n.h + riskWeight*n.risk
}

// nodeHeap is a min-heap over planNode ordered by f-cost, tie-broken by
// lower g (less cost spent so far), then by a lexicographic
// comparison of the action-name sequence so that, among otherwise
// identical candidates, search order is fully deterministic rather than
// depending on map/slice iteration happenstance.
type nodeHeap struct {
	nodes      []*planNode
	riskWeight float64
}

func (h nodeHeap) Len() int { return len(h.nodes) }

func (h nodeHeap) Less(i, j int) bool {
	a, b := h.nodes[i], h.nodes[j]
	fa, fb := a.f(h.riskWeight), b.f(h.riskWeight)
	if fa != fb {
		return fa < fb
	}
	if a.g != b.g {
		return a.g < b.g
	}
	return lexLess(a.actionPath, b.actionPath)
}

func (h nodeHeap) Swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
	h.nodes[i].index = i
	h.nodes[j].index = j
}

func (h *nodeHeap) Push(x interface{}) {
	n := x.(*planNode)
	n.index = len(h.nodes)
	h.nodes = append(h.nodes, n)
}

func (h *nodeHeap) Pop() interface{} {
	old := h.nodes
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.nodes = old[:n-1]
	return item
}

// lexLess compares two action-name sequences lexicographically, shorter
// is a prefix of longer counts as less.
func lexLess(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// PlanDirect runs A* from start to satisfy goal's desired state, ignoring
// any sub-goal decomposition. This is the base case every hierarchical
// strategy ultimately falls through to.
func (p *Planner) PlanDirect(start State, goal Goal) (Plan, error) {
	startNode := &planNode{
		state: start.Clone(),
		g:     0,
		h:     float64(start.DistanceTo(goal.DesiredState)),
	}

	open := &nodeHeap{riskWeight: p.riskWeight}
	heap.Init(open)
	heap.Push(open, startNode)

	closed := make(map[string]float64) // state hash -> best g seen

	iterations := 0
	for open.Len() > 0 {
		iterations++
		if iterations > p.maxIterations {
			return Plan{}, core.NewFrameworkError("goap.PlanDirect", "planner", core.ErrPlanNotFound)
		}

		current := heap.Pop(open).(*planNode)

		if current.state.Satisfies(goal.DesiredState) {
			return Plan{
				Actions:   current.actions,
				TotalCost: current.g,
				TotalRisk: current.risk,
			}, nil
		}

		hash := current.state.Hash()
		if bestG, seen := closed[hash]; seen && bestG <= current.g {
			continue
		}
		closed[hash] = current.g

		for _, action := range p.actions {
			if !action.IsApplicable(current.state) {
				continue
			}
			next := action.Apply(current.state)
			nextHash := next.Hash()
			cost := action.CalculateCost(p.history)
			g := current.g + cost
			if bestG, seen := closed[nextHash]; seen && bestG <= g {
				continue
			}

			actions := make([]Action, len(current.actions), len(current.actions)+1)
			copy(actions, current.actions)
			actions = append(actions, action)

			path := make([]string, len(current.actionPath), len(current.actionPath)+1)
			copy(path, current.actionPath)
			path = append(path, action.Name)

			heap.Push(open, &planNode{
				state:      next,
				g:          g,
				h:          float64(next.DistanceTo(goal.DesiredState)),
				risk:       current.risk + action.Risk,
				actionPath: path,
				actions:    actions,
			})
		}
	}

	return Plan{}, core.NewFrameworkError("goap.PlanDirect", "planner", core.ErrGoalUnreachable)
}

// PlanMultipleGoals orders goals by descending urgency at currentTime and
// plans each against the state as progressively simulated by the
// preceding goals' plans, returning one Plan per goal in the order they
// were scheduled.
func (p *Planner) PlanMultipleGoals(start State, goals []Goal, currentTime time.Duration) ([]Plan, error) {
	ordered := make([]Goal, len(goals))
	copy(ordered, goals)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Urgency(currentTime) > ordered[j].Urgency(currentTime)
	})

	plans := make([]Plan, 0, len(ordered))
	state := start.Clone()
	for _, g := range ordered {
		plan, err := p.Plan(state, g, 0)
		if err != nil {
			return plans, err
		}
		plans = append(plans, plan)
		state = simulate(state, plan)
	}
	return plans, nil
}

// simulate returns the state obtained by applying every action in plan,
// in order, to state. Used to thread state between sequential sub-goals
// and between successive goals in multi-goal planning.
func simulate(state State, plan Plan) State {
	s := state.Clone()
	for _, a := range plan.Actions {
		s = a.Apply(s)
	}
	return s
}
