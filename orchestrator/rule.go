package orchestrator

import (
	"fmt"
	"time"

	"github.com/astraweave-go/astraweave/ecs"
)

// cooldownThrowSmoke is the cooldown key gating the smoke-throw opener,
// named as a constant so rule.go and utility.go cannot drift apart on
// the key string.
const cooldownThrowSmoke = "throw:smoke"

// RuleOrchestrator is a deterministic, hand-written tactical heuristic:
// if an enemy is visible and the smoke throw is off cooldown, open with
// smoke, advance, and lay cover fire; otherwise advance cautiously while
// keeping the enemy suppressed.
type RuleOrchestrator struct{}

func (RuleOrchestrator) Name() string { return "RuleOrchestrator" }

func (RuleOrchestrator) ProposePlan(snap *ecs.Snapshot) Plan {
	planID := fmt.Sprintf("rule-%d", snap.Tick.Milliseconds())

	if len(snap.Companions) == 0 || len(snap.Enemies) == 0 {
		return Plan{ID: planID}
	}
	me := snap.Companions[0]
	enemy := snap.Enemies[0]

	dx := signum(enemy.Position.X - me.Position.X)
	dy := signum(enemy.Position.Y - me.Position.Y)

	cd := me.Cooldowns[cooldownThrowSmoke]
	if cd <= 0 {
		mid := ecs.Vec2{
			X: (me.Position.X + enemy.Position.X) / 2,
			Y: (me.Position.Y + enemy.Position.Y) / 2,
		}
		return Plan{
			ID: planID,
			Steps: []ActionStep{
				{Kind: StepThrow, Item: "smoke", X: mid.X, Y: mid.Y},
				{Kind: StepMoveTo, X: me.Position.X + dx*2, Y: me.Position.Y + dy*2},
				{Kind: StepCoverFire, TargetID: enemy.Entity, Duration: 2500 * time.Millisecond},
			},
		}
	}

	return Plan{
		ID: planID,
		Steps: []ActionStep{
			{Kind: StepMoveTo, X: me.Position.X + dx, Y: me.Position.Y + dy},
			{Kind: StepCoverFire, TargetID: enemy.Entity, Duration: 1500 * time.Millisecond},
		},
	}
}

// signum returns -1, 0, or 1 according to the sign of f.
func signum(f float64) float64 {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	default:
		return 0
	}
}
