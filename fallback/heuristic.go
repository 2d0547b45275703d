package fallback

import (
	"math"
	"strings"
	"time"

	"github.com/astraweave-go/astraweave/ecs"
	"github.com/astraweave-go/astraweave/orchestrator"
	"github.com/google/uuid"
)

// HeuristicPlan produces a plan from hand-written rules with no LLM
// involvement: suppress a nearby enemy, otherwise advance on the
// objective's point of interest, otherwise scan the area. It always
// succeeds (an empty snapshot still yields a Scan).
func HeuristicPlan(snap *ecs.Snapshot) orchestrator.Plan {
	planID := "heuristic-" + uuid.NewString()
	var steps []orchestrator.ActionStep

	if len(snap.Companions) > 0 && len(snap.Enemies) > 0 {
		me := snap.Companions[0]
		enemy := snap.Enemies[0]
		dx := math.Abs(enemy.Position.X - me.Position.X)
		dy := math.Abs(enemy.Position.Y - me.Position.Y)
		distance := math.Max(dx, dy)

		if distance <= 3 {
			steps = append(steps, orchestrator.ActionStep{
				Kind:     orchestrator.StepCoverFire,
				TargetID: enemy.Entity,
				Duration: time.Second,
			})
		}
	}

	if len(steps) == 0 && len(snap.POIs) > 0 && objectiveMentionsReach(snap.Objective) {
		poi := snap.POIs[0]
		steps = append(steps, orchestrator.ActionStep{
			Kind: orchestrator.StepMoveTo,
			X:    poi.Position.X,
			Y:    poi.Position.Y,
		})
	}

	if len(steps) == 0 {
		steps = append(steps, orchestrator.ActionStep{Kind: orchestrator.StepScan, Duration: 0})
	}

	return orchestrator.Plan{ID: planID, Steps: steps}
}

func objectiveMentionsReach(objective string) bool {
	o := strings.ToLower(objective)
	return strings.Contains(o, "extract") || strings.Contains(o, "reach")
}

// EmergencyPlan is the guaranteed-success terminal tier: scan, then
// wait. It must never itself fail; there is no tier beneath it.
func EmergencyPlan(snap *ecs.Snapshot) orchestrator.Plan {
	return orchestrator.Plan{
		ID: "emergency-" + uuid.NewString(),
		Steps: []orchestrator.ActionStep{
			{Kind: orchestrator.StepScan, Duration: 0},
			{Kind: orchestrator.StepWait, Duration: time.Second},
		},
	}
}
