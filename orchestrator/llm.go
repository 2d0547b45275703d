package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/astraweave-go/astraweave/core"
	"github.com/astraweave-go/astraweave/ecs"
)

// ToolDescriptor documents one callable action for the prompt the LLM
// orchestrator builds, so the model only ever proposes steps this
// runtime actually knows how to execute.
type ToolDescriptor struct {
	Name        string
	Description string
}

// DefaultToolRegistry lists the action kinds an LlmOrchestrator will
// accept back from the model.
func DefaultToolRegistry() []ToolDescriptor {
	return []ToolDescriptor{
		{Name: string(StepMoveTo), Description: "move toward x,y"},
		{Name: string(StepCoverFire), Description: "suppress target_index for duration_ms"},
		{Name: string(StepThrow), Description: "throw item at x,y"},
		{Name: string(StepWait), Description: "do nothing for duration_ms"},
	}
}

// LlmOrchestrator proposes a plan by asking an AIClient to choose from a
// fixed tool registry, enforcing a hard timeout derived from budgetMs and
// falling back to a cheap heuristic plan on timeout or malformed output.
type LlmOrchestrator struct {
	client        core.AIClient
	registry      []ToolDescriptor
	fallback      Orchestrator
	logger        core.Logger
	promptBuilder func(*ecs.Snapshot, []ToolDescriptor) string
}

// LlmOrchestratorOption configures an LlmOrchestrator.
type LlmOrchestratorOption func(*LlmOrchestrator)

func WithToolRegistry(tools []ToolDescriptor) LlmOrchestratorOption {
	return func(o *LlmOrchestrator) { o.registry = tools }
}

func WithFallbackOrchestrator(fb Orchestrator) LlmOrchestratorOption {
	return func(o *LlmOrchestrator) { o.fallback = fb }
}

func WithLlmLogger(l core.Logger) LlmOrchestratorOption {
	return func(o *LlmOrchestrator) { o.logger = l }
}

// WithPromptBuilder overrides how the prompt text is rendered from the
// snapshot and tool registry. Used by callers that need a shorter or
// differently-shaped prompt than the default full snapshot dump (e.g. a
// faster, lower-detail tier in a degradation ladder).
func WithPromptBuilder(build func(*ecs.Snapshot, []ToolDescriptor) string) LlmOrchestratorOption {
	return func(o *LlmOrchestrator) { o.promptBuilder = build }
}

// NewLlmOrchestrator builds an LlmOrchestrator over client, defaulting
// the tool registry to DefaultToolRegistry and the fallback strategy to
// a plain RuleOrchestrator.
func NewLlmOrchestrator(client core.AIClient, opts ...LlmOrchestratorOption) *LlmOrchestrator {
	o := &LlmOrchestrator{
		client:        client,
		registry:      DefaultToolRegistry(),
		fallback:      RuleOrchestrator{},
		logger:        &core.NoOpLogger{},
		promptBuilder: buildPrompt,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *LlmOrchestrator) Name() string { return "LlmOrchestrator" }

// Plan enforces a hard timeout of budgetMs (minimum 50ms) around the LLM
// call: a timeout or any error from the client, or a response that fails
// to parse into well-formed steps, falls back to o.fallback rather than
// stalling or aborting the tick.
func (o *LlmOrchestrator) Plan(ctx context.Context, snap *ecs.Snapshot, budgetMs int) (Plan, error) {
	if budgetMs < 50 {
		budgetMs = 50
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(budgetMs)*time.Millisecond)
	defer cancel()

	prompt := o.promptBuilder(snap, o.registry)
	resp, err := o.client.GenerateResponse(ctx, prompt, &core.AIOptions{
		SystemPrompt: "You are a tactical AI companion planner. Reply with only a JSON array of steps.",
		Temperature:  0,
		MaxTokens:    512,
	})
	if err != nil {
		o.logger.Warn("llm planning failed, using fallback", map[string]interface{}{"error": err.Error()})
		return Plan{ID: "llm-fallback", Steps: []ActionStep{}}.withFallback(o.fallback, snap), nil
	}

	steps, parseErr := parseSteps(resp.Content, snap, o.registry)
	if parseErr != nil {
		o.logger.Warn("llm response unparseable, using fallback", map[string]interface{}{"error": parseErr.Error()})
		return Plan{ID: "llm-fallback", Steps: []ActionStep{}}.withFallback(o.fallback, snap), nil
	}

	return Plan{ID: fmt.Sprintf("llm-%d", snap.Tick.Milliseconds()), Steps: steps}, nil
}

// withFallback replaces an empty plan's steps with the fallback
// orchestrator's proposal.
func (p Plan) withFallback(fb Orchestrator, snap *ecs.Snapshot) Plan {
	if fb == nil {
		return p
	}
	fallbackPlan := fb.ProposePlan(snap)
	p.Steps = fallbackPlan.Steps
	return p
}

// llmStep is the wire shape the model is asked to emit. TargetIndex is an
// index into the snapshot's Enemies slice, not a raw entity handle: the
// model never sees or fabricates entity identity directly.
type llmStep struct {
	Kind        string  `json:"kind"`
	X           float64 `json:"x,omitempty"`
	Y           float64 `json:"y,omitempty"`
	TargetIndex int     `json:"target_index,omitempty"`
	Item        string  `json:"item,omitempty"`
	DurationMs  int64   `json:"duration_ms,omitempty"`
}

func buildPrompt(snap *ecs.Snapshot, tools []ToolDescriptor) string {
	var b strings.Builder
	b.WriteString("Available actions:\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	b.WriteString("Objective: ")
	b.WriteString(snap.Objective)
	b.WriteString("\n")
	encoded, _ := json.Marshal(snap)
	b.Write(encoded)
	return b.String()
}

func parseSteps(content string, snap *ecs.Snapshot, tools []ToolDescriptor) ([]ActionStep, error) {
	var raw []llmStep
	if err := json.Unmarshal([]byte(extractJSONArray(content)), &raw); err != nil {
		return nil, core.NewFrameworkError("orchestrator.parseSteps", "llm", core.ErrInvalidToolCall)
	}
	steps := make([]ActionStep, 0, len(raw))
	for _, r := range raw {
		kind := StepKind(r.Kind)
		switch kind {
		case StepMoveTo, StepCoverFire, StepThrow, StepWait, StepScan:
		default:
			return nil, core.NewFrameworkError("orchestrator.parseSteps", "llm", core.ErrInvalidToolCall)
		}
		registered := false
		for _, t := range tools {
			if t.Name == string(kind) {
				registered = true
				break
			}
		}
		if !registered {
			return nil, core.NewFrameworkError("orchestrator.parseSteps", "llm", core.ErrInvalidToolCall)
		}

		var target ecs.Entity
		if kind == StepCoverFire {
			if r.TargetIndex < 0 || r.TargetIndex >= len(snap.Enemies) {
				return nil, core.NewFrameworkError("orchestrator.parseSteps", "llm", core.ErrInvalidToolCall)
			}
			target = snap.Enemies[r.TargetIndex].Entity
		}

		steps = append(steps, ActionStep{
			Kind:     kind,
			X:        r.X,
			Y:        r.Y,
			TargetID: target,
			Item:     r.Item,
			Duration: time.Duration(r.DurationMs) * time.Millisecond,
		})
	}
	return steps, nil
}

// extractJSONArray trims any leading/trailing prose a chat model tends to
// wrap its JSON answer in, returning just the first top-level array.
func extractJSONArray(s string) string {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
