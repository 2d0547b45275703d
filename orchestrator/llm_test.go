package orchestrator

import (
	"context"
	"testing"

	"github.com/astraweave-go/astraweave/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAIClient struct {
	response *core.AIResponse
	err      error
	delay    func(ctx context.Context) error
}

func (s *stubAIClient) GenerateResponse(ctx context.Context, _ string, _ *core.AIOptions) (*core.AIResponse, error) {
	if s.delay != nil {
		if err := s.delay(ctx); err != nil {
			return nil, err
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func TestLlmOrchestratorParsesWellFormedResponse(t *testing.T) {
	client := &stubAIClient{response: &core.AIResponse{
		Content: `[{"kind":"move_to","x":1,"y":2}]`,
	}}
	o := NewLlmOrchestrator(client)
	snap := buildTestSnapshot(0)

	plan, err := o.Plan(context.Background(), snap, 500)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, StepMoveTo, plan.Steps[0].Kind)
	assert.Equal(t, 1.0, plan.Steps[0].X)
}

func TestLlmOrchestratorFallsBackOnClientError(t *testing.T) {
	client := &stubAIClient{err: assertError{"provider unavailable"}}
	o := NewLlmOrchestrator(client)
	snap := buildTestSnapshot(0)

	plan, err := o.Plan(context.Background(), snap, 500)
	require.NoError(t, err)
	assert.NotEmpty(t, plan.Steps, "fallback orchestrator must still produce a plan")
}

func TestLlmOrchestratorFallsBackOnTimeout(t *testing.T) {
	client := &stubAIClient{delay: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	o := NewLlmOrchestrator(client)
	snap := buildTestSnapshot(0)

	plan, err := o.Plan(context.Background(), snap, 50)
	require.NoError(t, err)
	assert.NotEmpty(t, plan.Steps)
}

func TestLlmOrchestratorFallsBackOnMalformedJSON(t *testing.T) {
	client := &stubAIClient{response: &core.AIResponse{Content: "not json at all"}}
	o := NewLlmOrchestrator(client)
	snap := buildTestSnapshot(0)

	plan, err := o.Plan(context.Background(), snap, 500)
	require.NoError(t, err)
	assert.NotEmpty(t, plan.Steps)
}

func TestLlmOrchestratorRejectsOutOfRangeTargetIndex(t *testing.T) {
	client := &stubAIClient{response: &core.AIResponse{
		Content: `[{"kind":"cover_fire","target_index":7}]`,
	}}
	o := NewLlmOrchestrator(client)
	snap := buildTestSnapshot(0)

	plan, err := o.Plan(context.Background(), snap, 500)
	require.NoError(t, err)
	assert.NotEmpty(t, plan.Steps, "an invalid target index must trigger the fallback, not a crash")
}

func TestLlmOrchestratorResolvesTargetIndexToEntity(t *testing.T) {
	client := &stubAIClient{response: &core.AIResponse{
		Content: `[{"kind":"cover_fire","target_index":0,"duration_ms":1500}]`,
	}}
	o := NewLlmOrchestrator(client)
	snap := buildTestSnapshot(0)

	plan, err := o.Plan(context.Background(), snap, 500)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, snap.Enemies[0].Entity, plan.Steps[0].TargetID)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
