package goap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astraweave-go/astraweave/core"
)

func tacticalActions() []Action {
	return []Action{
		{
			Name:          "move_to_poi",
			Preconditions: State{},
			Effects:       State{"at_poi": Bool(true)},
			BaseCost:      1,
		},
		{
			Name:          "pickup_ammo",
			Preconditions: State{"at_poi": Bool(true)},
			Effects:       State{"has_ammo": Bool(true)},
			BaseCost:      1,
		},
		{
			Name:          "engage",
			Preconditions: State{"has_ammo": Bool(true)},
			Effects:       State{"enemy_down": Bool(true)},
			BaseCost:      2,
			Risk:          0.4,
		},
	}
}

func TestPlanDirectFindsShortestActionSequence(t *testing.T) {
	p := NewPlanner(tacticalActions())
	start := State{"at_poi": Bool(false), "has_ammo": Bool(false)}
	goal := Goal{Name: "kill-enemy", DesiredState: State{"enemy_down": Bool(true)}}

	plan, err := p.PlanDirect(start, goal)
	require.NoError(t, err)
	assert.Equal(t, []string{"move_to_poi", "pickup_ammo", "engage"}, plan.ActionNames())
	assert.Equal(t, 4.0, plan.TotalCost)
	assert.InDelta(t, 0.4, plan.TotalRisk, 0.0001)
}

func TestPlanDirectAlreadySatisfiedNeedsNoActions(t *testing.T) {
	p := NewPlanner(tacticalActions())
	start := State{"enemy_down": Bool(true)}
	goal := Goal{DesiredState: State{"enemy_down": Bool(true)}}

	plan, err := p.Plan(start, goal, 0)
	require.NoError(t, err)
	assert.Empty(t, plan.Actions)
}

func TestPlanDirectUnreachableGoalReturnsError(t *testing.T) {
	p := NewPlanner(tacticalActions())
	start := State{}
	goal := Goal{DesiredState: State{"victory_dance": Bool(true)}}

	_, err := p.PlanDirect(start, goal)
	assert.Error(t, err)
}

func TestPlanDirectTieBreaksLexicographically(t *testing.T) {
	// Two equal-cost single-action routes to the same goal; the planner
	// must deterministically prefer the lexicographically smaller name.
	actions := []Action{
		{Name: "zzz_route", Preconditions: State{}, Effects: State{"done": Bool(true)}, BaseCost: 1},
		{Name: "aaa_route", Preconditions: State{}, Effects: State{"done": Bool(true)}, BaseCost: 1},
	}
	p := NewPlanner(actions)
	plan, err := p.PlanDirect(State{}, Goal{DesiredState: State{"done": Bool(true)}})
	require.NoError(t, err)
	assert.Equal(t, []string{"aaa_route"}, plan.ActionNames())
}

func TestPlanDirectRespectsMaxIterations(t *testing.T) {
	// No action can ever satisfy the goal; with a tiny iteration budget
	// the planner must fail fast rather than loop until the (larger)
	// default bound.
	actions := []Action{
		{Name: "noop", Preconditions: State{}, Effects: State{"counter": Int(1)}, BaseCost: 1},
		{Name: "other", Preconditions: State{}, Effects: State{"flag": Bool(true)}, BaseCost: 1},
	}
	p := NewPlanner(actions, WithMaxIterations(2))
	_, err := p.PlanDirect(State{}, Goal{DesiredState: State{"unreachable": Bool(true)}})
	assert.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPlanNotFound)
}

func TestPlanMultipleGoalsOrdersByUrgency(t *testing.T) {
	p := NewPlanner(tacticalActions())
	lowPriority := Goal{Name: "low", Priority: 1, DesiredState: State{"at_poi": Bool(true)}}
	urgent := Goal{Name: "urgent", Priority: 1, Deadline: 1 * time.Second, DesiredState: State{"has_ammo": Bool(true)}}

	plans, err := p.PlanMultipleGoals(State{}, []Goal{lowPriority, urgent}, 900*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	// urgent's deadline is nearly reached, so it must be planned first.
	assert.Equal(t, []string{"move_to_poi", "pickup_ammo"}, plans[0].ActionNames())
}

func TestHistoryInflatesCostOfUnreliableAction(t *testing.T) {
	history := NewActionHistory()
	for i := 0; i < 8; i++ {
		history.Record("risky_shortcut", false, int64(time.Millisecond))
	}
	actions := []Action{
		{Name: "risky_shortcut", Preconditions: State{}, Effects: State{"done": Bool(true)}, BaseCost: 1},
		{Name: "safe_long_way", Preconditions: State{}, Effects: State{"stage1": Bool(true)}, BaseCost: 1},
		{Name: "finish_long_way", Preconditions: State{"stage1": Bool(true)}, Effects: State{"done": Bool(true)}, BaseCost: 1},
	}
	p := NewPlanner(actions, WithHistory(history))
	plan, err := p.PlanDirect(State{}, Goal{DesiredState: State{"done": Bool(true)}})
	require.NoError(t, err)
	assert.Equal(t, []string{"safe_long_way", "finish_long_way"}, plan.ActionNames(),
		"the historically unreliable shortcut must cost more than the two-step safe route")
}
