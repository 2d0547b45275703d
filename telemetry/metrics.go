package telemetry

// Metric names shared by the runtime's components. Centralizing them
// here keeps the RecordMetric name-pattern heuristic in provider.go
// (duration/latency/time -> histogram, count/total/errors -> counter,
// queue/size/current -> gauge) working consistently across packages.
const (
	// World tick / scheduler metrics (ecs).
	MetricTickDuration      = "astraweave.tick.duration"
	MetricTickEntityCount   = "astraweave.tick.entity_count"
	MetricSchedulerStageErr = "astraweave.scheduler.stage.errors"

	// Planner metrics (goap).
	MetricPlanDuration    = "astraweave.goap.plan.duration"
	MetricPlanNodesVisited = "astraweave.goap.plan.nodes_visited"
	MetricPlanSuccess     = "astraweave.goap.plan.success"
	MetricPlanFailure     = "astraweave.goap.plan.failure"
	MetricGoalDecomposed  = "astraweave.goap.goal.decomposed_total"

	// Orchestrator metrics (orchestrator).
	MetricOrchestratorDecisionDuration = "astraweave.orchestrator.decision.duration"
	MetricOrchestratorDecisionErrors   = "astraweave.orchestrator.decision.errors"
	MetricLLMRequestDuration           = "astraweave.orchestrator.llm.request_duration"
	MetricLLMPromptTokens              = "astraweave.orchestrator.llm.prompt_tokens"
	MetricLLMCompletionTokens          = "astraweave.orchestrator.llm.completion_tokens"

	// Fallback tier metrics (fallback).
	MetricFallbackTierUsed     = "astraweave.fallback.tier_used_total"
	MetricFallbackTierDuration = "astraweave.fallback.tier.duration"
	MetricFallbackExhausted    = "astraweave.fallback.exhausted_total"

	// Resilience metrics (resilience).
	MetricRateLimiterRejected   = "astraweave.resilience.rate_limiter.rejected_total"
	MetricRateLimiterAllowed    = "astraweave.resilience.rate_limiter.allowed_total"
	MetricCircuitBreakerOpen    = "astraweave.resilience.circuit_breaker.open_total"
	MetricCircuitBreakerSuccess = "astraweave.resilience.circuit_breaker.success_total"
	MetricCircuitBreakerFailure = "astraweave.resilience.circuit_breaker.failure_total"
	MetricQueueDepth            = "astraweave.resilience.queue.current_size"
	MetricQueueWaitDuration     = "astraweave.resilience.queue.wait_duration"
	MetricQueueRejected         = "astraweave.resilience.queue.rejected_total"

	// Conversation history metrics (context).
	MetricContextTokens       = "astraweave.context.current_tokens"
	MetricContextPruneTotal   = "astraweave.context.prune_total"
	MetricContextSummarized   = "astraweave.context.summarized_messages_total"
)
