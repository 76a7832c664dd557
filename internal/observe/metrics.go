// Package observe provides application-wide observability primitives for
// voxflow: OpenTelemetry metrics and the Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped via
// the standard /metrics endpoint. Tests should use [NewMetrics] with a
// custom [metric.MeterProvider] backed by a manual reader to avoid
// cross-test pollution.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxflow metrics.
const meterName = "github.com/voxflow/voxflow"

// Metrics holds all OpenTelemetry metric instruments for the engine.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// CallDuration tracks full call lifetimes from answer to hangup.
	CallDuration metric.Float64Histogram

	// NodeDuration tracks single node execution latency.
	NodeDuration metric.Float64Histogram

	// APIDuration tracks outbound web API request latency.
	APIDuration metric.Float64Histogram

	// Dispatches counts dispatcher executions. Attributes: op, family, status.
	Dispatches metric.Int64Counter

	// APIRequests counts outbound web API calls. Attributes: endpoint, status.
	APIRequests metric.Int64Counter

	// TokenRefreshes counts OAuth2 token fetches. Attribute: status.
	TokenRefreshes metric.Int64Counter

	// ConfigReloads counts flow document publications. Attribute: name.
	ConfigReloads metric.Int64Counter

	// LoopGuardTrips counts calls terminated by the visit budget.
	LoopGuardTrips metric.Int64Counter

	// ActiveCalls tracks the number of calls currently being interpreted.
	ActiveCalls metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Node and
// API latencies sit in the sub-second range; call durations reach minutes.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CallDuration, err = m.Float64Histogram("voxflow.call.duration",
		metric.WithDescription("Duration of a call from answer to hangup."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.NodeDuration, err = m.Float64Histogram("voxflow.node.duration",
		metric.WithDescription("Latency of a single node execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.APIDuration, err = m.Float64Histogram("voxflow.api.duration",
		metric.WithDescription("Latency of outbound web API requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Dispatches, err = m.Int64Counter("voxflow.dispatch.total",
		metric.WithDescription("Node executions routed by the dispatcher."),
	); err != nil {
		return nil, err
	}
	if met.APIRequests, err = m.Int64Counter("voxflow.api.requests",
		metric.WithDescription("Outbound web API requests."),
	); err != nil {
		return nil, err
	}
	if met.TokenRefreshes, err = m.Int64Counter("voxflow.auth.token_refreshes",
		metric.WithDescription("OAuth2 token fetches."),
	); err != nil {
		return nil, err
	}
	if met.ConfigReloads, err = m.Int64Counter("voxflow.config.reloads",
		metric.WithDescription("Flow document publications."),
	); err != nil {
		return nil, err
	}
	if met.LoopGuardTrips, err = m.Int64Counter("voxflow.engine.loop_guard_trips",
		metric.WithDescription("Calls terminated by the per-node visit budget."),
	); err != nil {
		return nil, err
	}
	if met.ActiveCalls, err = m.Int64UpDownCounter("voxflow.calls.active",
		metric.WithDescription("Calls currently being interpreted."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordDispatch records one dispatcher execution.
func (m *Metrics) RecordDispatch(ctx context.Context, op, family, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("family", family),
		attribute.String("status", status),
	)
	m.Dispatches.Add(ctx, 1, attrs)
	m.NodeDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordAPIRequest records one outbound web API request.
func (m *Metrics) RecordAPIRequest(ctx context.Context, endpoint, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	)
	m.APIRequests.Add(ctx, 1, attrs)
	m.APIDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordTokenRefresh records one OAuth2 token fetch attempt.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordConfigReload records one flow document publication.
func (m *Metrics) RecordConfigReload(ctx context.Context, name string) {
	if m == nil {
		return
	}
	m.ConfigReloads.Add(ctx, 1, metric.WithAttributes(attribute.String("name", name)))
}

// RecordCall records a completed call with its duration.
func (m *Metrics) RecordCall(ctx context.Context, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CallDuration.Record(ctx, elapsed.Seconds())
}
