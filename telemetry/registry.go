package telemetry

import (
	stdctx "context"

	"github.com/astraweave-go/astraweave/core"
	"go.opentelemetry.io/otel/baggage"
)

// metricsRegistry implements core.MetricsRegistry on top of a Provider.
// It is the weak-coupling hook core/config.go's ProductionLogger uses to
// emit its own operational metrics without core importing telemetry
// directly (core stays dependency-free; see core/interfaces.go's
// MetricsRegistry doc comment).
type metricsRegistry struct {
	provider *Provider
}

// Register installs provider as the process-wide core.MetricsRegistry,
// so every already-constructed core.Logger (and any constructed
// afterward) starts emitting framework operational metrics through it.
// This is the one piece of ambient global state this package carries,
// and it mirrors the hook core/config.go already calls out to
// (globalMetricsRegistry) rather than introducing a new one.
func Register(provider *Provider) {
	core.SetMetricsRegistry(&metricsRegistry{provider: provider})
}

// Counter implements core.MetricsRegistry.
func (r *metricsRegistry) Counter(name string, labels ...string) {
	r.provider.RecordMetric(name, 1.0, pairsToLabels(labels))
}

// EmitWithContext implements core.MetricsRegistry.
func (r *metricsRegistry) EmitWithContext(ctx stdctx.Context, name string, value float64, labels ...string) {
	lbls := pairsToLabels(labels)
	for k, v := range r.GetBaggage(ctx) {
		if _, ok := lbls[k]; !ok {
			lbls[k] = v
		}
	}
	r.provider.RecordMetric(name, value, lbls)
}

// GetBaggage implements core.MetricsRegistry. Unlike the teacher's
// version, this does not track cardinality statistics or enforce a
// baggage size limit: there is no multi-tenant request surface in this
// module for that budget to protect.
func (r *metricsRegistry) GetBaggage(ctx stdctx.Context) map[string]string {
	if ctx == nil {
		return nil
	}
	members := baggage.FromContext(ctx).Members()
	if len(members) == 0 {
		return nil
	}
	result := make(map[string]string, len(members))
	for _, m := range members {
		result[m.Key()] = m.Value()
	}
	return result
}

// Gauge implements core.MetricsRegistry.
func (r *metricsRegistry) Gauge(name string, value float64, labels ...string) {
	r.provider.RecordMetric(name, value, pairsToLabels(labels))
}

// Histogram implements core.MetricsRegistry.
func (r *metricsRegistry) Histogram(name string, value float64, labels ...string) {
	r.provider.RecordMetric(name, value, pairsToLabels(labels))
}

// pairsToLabels converts an alternating key, value, key, value... slice
// into a label map, dropping a trailing unpaired key.
func pairsToLabels(pairs []string) map[string]string {
	labels := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		labels[pairs[i]] = pairs[i+1]
	}
	return labels
}
