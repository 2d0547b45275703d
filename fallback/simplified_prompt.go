package fallback

import (
	"fmt"
	"strings"

	"github.com/astraweave-go/astraweave/ecs"
	"github.com/astraweave-go/astraweave/orchestrator"
)

// simplifiedTools is the reduced tool set Tier 2 (SimplifiedLLM) exposes
// to the model: a short, fast-to-process subset of the full registry
// rather than the complete action vocabulary Tier 1 offers.
var simplifiedTools = []orchestrator.ToolDescriptor{
	{Name: string(orchestrator.StepMoveTo), Description: "move toward x,y"},
	{Name: string(orchestrator.StepCoverFire), Description: "suppress target_index for duration_ms"},
	{Name: string(orchestrator.StepWait), Description: "do nothing for duration_ms"},
	{Name: string(orchestrator.StepScan), Description: "scan the area"},
}

// buildSimplifiedPrompt renders a short, tool-constrained prompt, tighter
// than orchestrator.buildPrompt's full snapshot dump, so Tier 2 processes
// meaningfully faster than Tier 1 at the cost of detail.
func buildSimplifiedPrompt(snap *ecs.Snapshot, tools []orchestrator.ToolDescriptor) string {
	var b strings.Builder
	b.WriteString("You are a tactical AI. Generate ONE JSON array of steps using ONLY tools listed below.\n\n")

	fmt.Fprintf(&b, "World state: %d companions, %d enemies, objective: %q\n\n", len(snap.Companions), len(snap.Enemies), snap.Objective)

	b.WriteString("ALLOWED TOOLS (use ONLY these exact names):\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "  %s: %s\n", t.Name, t.Description)
	}

	b.WriteString("\nCRITICAL RULES:\n")
	b.WriteString("1. Use ONLY tools listed above -- no other names allowed.\n")
	b.WriteString("2. Include all required fields for each step.\n")
	b.WriteString("3. Generate 1-3 steps maximum.\n")
	return b.String()
}
