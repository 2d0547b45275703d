package telemetry

import "github.com/astraweave-go/astraweave/resilience"

// CircuitMetrics adapts a Provider to resilience.MetricsCollector, so a
// circuit breaker's success/failure/state-change/rejection events flow
// into the same span-and-metric pipeline as tick and plan observability
// instead of a separate bespoke sink.
type CircuitMetrics struct {
	provider *Provider
}

// NewCircuitMetrics returns a resilience.MetricsCollector backed by provider.
func NewCircuitMetrics(provider *Provider) *CircuitMetrics {
	return &CircuitMetrics{provider: provider}
}

var _ resilience.MetricsCollector = (*CircuitMetrics)(nil)

func (c *CircuitMetrics) RecordSuccess(model string) {
	c.provider.RecordMetric(MetricCircuitBreakerSuccess, 1, map[string]string{"model": model})
}

func (c *CircuitMetrics) RecordFailure(model string, errorType string) {
	c.provider.RecordMetric(MetricCircuitBreakerFailure, 1, map[string]string{
		"model":      model,
		"error_type": errorType,
	})
}

func (c *CircuitMetrics) RecordStateChange(model string, from, to string) {
	c.provider.RecordMetric(MetricCircuitBreakerOpen, boolToFloat(to == "open"), map[string]string{
		"model": model,
		"from":  from,
		"to":    to,
	})
}

func (c *CircuitMetrics) RecordRejection(model string) {
	c.provider.RecordMetric(MetricCircuitBreakerFailure, 1, map[string]string{
		"model":  model,
		"reason": "circuit_open",
	})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
