package orchestrator

import (
	"github.com/astraweave-go/astraweave/ecs"
)

// adjacentEnemySnapshot places an enemy within weapon range (Manhattan
// distance <= 2) of the lone companion.
func adjacentEnemySnapshot() *ecs.Snapshot {
	w := ecs.NewWorld()
	companion := w.Spawn()
	ecs.Insert(w, companion, ecs.CompanionTag{})
	ecs.Insert(w, companion, ecs.Position{Vec2: ecs.Vec2{X: 0, Y: 0}})
	ecs.Insert(w, companion, ecs.Ammo{Count: 10})
	ecs.Insert(w, companion, ecs.Morale{Value: 1})

	enemy := w.Spawn()
	ecs.Insert(w, enemy, ecs.EnemyTag{})
	ecs.Insert(w, enemy, ecs.Position{Vec2: ecs.Vec2{X: 1, Y: 1}})
	ecs.Insert(w, enemy, ecs.Health{HP: 20})

	return ecs.BuildSnapshot(w, ecs.NewResources(), 0)
}

// emptySnapshot has no companions and no enemies.
func emptySnapshot() *ecs.Snapshot {
	return ecs.BuildSnapshot(ecs.NewWorld(), ecs.NewResources(), 0)
}
