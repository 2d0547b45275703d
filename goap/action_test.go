package goap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionIsApplicable(t *testing.T) {
	a := Action{Preconditions: State{"has_key": Bool(true)}}
	assert.True(t, a.IsApplicable(State{"has_key": Bool(true)}))
	assert.False(t, a.IsApplicable(State{"has_key": Bool(false)}))
}

func TestActionApplyDoesNotMutateInput(t *testing.T) {
	a := Action{Effects: State{"door_open": Bool(true)}}
	in := State{"door_open": Bool(false)}
	out := a.Apply(in)

	assert.Equal(t, Bool(false), in["door_open"])
	assert.Equal(t, Bool(true), out["door_open"])
}

func TestCalculateCostScalesWithFailureRate(t *testing.T) {
	history := NewActionHistory()
	history.Record("door_kick", false, 1)
	history.Record("door_kick", false, 1)
	history.Record("door_kick", true, 1)

	a := Action{Name: "door_kick", BaseCost: 10}
	cost := a.CalculateCost(history)
	assert.Greater(t, cost, a.BaseCost, "an action with a poor success rate must cost more than its base cost")
}

func TestCalculateCostWithNoHistoryIsBaseCost(t *testing.T) {
	a := Action{Name: "fresh_action", BaseCost: 5}
	assert.Equal(t, 5.0, a.CalculateCost(nil))
}
