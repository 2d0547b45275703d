package orchestrator

import (
	"fmt"
	"math"
	"sort"

	"github.com/astraweave-go/astraweave/ecs"
)

// candidate is a scored plan alternative evaluated by UtilityOrchestrator.
type candidate struct {
	score float64
	steps []ActionStep
}

// UtilityOrchestrator scores a small set of hand-built candidate plans
// and picks the highest-scoring one. Ties are broken by candidate
// construction order (sort.SliceStable over a fixed-order candidate
// list), so the same snapshot always yields the same plan.
type UtilityOrchestrator struct{}

func (UtilityOrchestrator) Name() string { return "UtilityOrchestrator" }

func (UtilityOrchestrator) ProposePlan(snap *ecs.Snapshot) Plan {
	planID := fmt.Sprintf("util-%d", snap.Tick.Milliseconds())

	if len(snap.Companions) == 0 || len(snap.Enemies) == 0 {
		return Plan{ID: planID}
	}
	me := snap.Companions[0]
	enemy := snap.Enemies[0]

	var cands []candidate

	if cd := me.Cooldowns[cooldownThrowSmoke]; cd <= 0 {
		dx := signum(enemy.Position.X - me.Position.X)
		dy := signum(enemy.Position.Y - me.Position.Y)
		mid := ecs.Vec2{
			X: (me.Position.X + enemy.Position.X) / 2,
			Y: (me.Position.Y + enemy.Position.Y) / 2,
		}
		score := 1.0 + math.Max(float64(enemy.HP), 0)*0.01
		cands = append(cands, candidate{
			score: score,
			steps: []ActionStep{
				{Kind: StepThrow, Item: "smoke", X: mid.X, Y: mid.Y},
				{Kind: StepMoveTo, X: me.Position.X + dx*2, Y: me.Position.Y + dy*2},
			},
		})
	}

	dx := math.Abs(enemy.Position.X - me.Position.X)
	dy := math.Abs(enemy.Position.Y - me.Position.Y)
	dist := dx + dy
	steps := []ActionStep{
		{Kind: StepMoveTo, X: me.Position.X + signum(enemy.Position.X-me.Position.X), Y: me.Position.Y + signum(enemy.Position.Y-me.Position.Y)},
	}
	if dist <= 3.0 {
		steps = append(steps, ActionStep{Kind: StepCoverFire, TargetID: enemy.Entity, Duration: 0})
	}
	score := 0.8 + math.Max(3.0-dist, 0)*0.05
	cands = append(cands, candidate{score: score, steps: steps})

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	return Plan{ID: planID, Steps: cands[0].steps}
}
