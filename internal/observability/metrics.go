package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "issuebridge"

var (
	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "issuebridge",
		Name:      "tool_calls_total",
		Help:      "Tool executions by module, tool and status.",
	}, []string{"module", "tool", "status"})

	toolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "issuebridge",
		Name:      "tool_call_duration_seconds",
		Help:      "Tool execution latency, including the upstream call.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"module", "tool"})

	descriptorFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "issuebridge",
		Name:      "descriptor_fetches_total",
		Help:      "Tool descriptor fetches by outcome.",
	}, []string{"outcome"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "issuebridge",
		Name:      "http_requests_total",
		Help:      "Tool server HTTP requests by route and status code.",
	}, []string{"method", "route", "code"})
)

// MetricsHandler serves the Prometheus exposition format.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordToolCall updates the tool call metrics.
func RecordToolCall(ctx context.Context, module, tool, status string, d time.Duration) {
	toolCallsTotal.WithLabelValues(module, tool, status).Inc()
	toolCallDuration.WithLabelValues(module, tool).Observe(d.Seconds())

	if counter, err := otelToolCalls(); err == nil {
		counter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("module", module),
			attribute.String("tool", tool),
			attribute.String("status", status),
		))
	}
}

// RecordDescriptorFetch counts a descriptor fetch outcome.
func RecordDescriptorFetch(outcome string) {
	descriptorFetchesTotal.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest counts a served request.
func RecordHTTPRequest(method, route, code string) {
	httpRequestsTotal.WithLabelValues(method, route, code).Inc()
}

// otelToolCalls resolves the counter from the current global meter provider,
// so a provider installed after startup is picked up.
func otelToolCalls() (metric.Int64Counter, error) {
	return otel.Meter(instrumentationName).Int64Counter(
		"issuebridge.tool.calls",
		metric.WithDescription("Tool executions"),
	)
}

// StartToolSpan starts a span around one tool execution on the global tracer.
func StartToolSpan(ctx context.Context, module, tool string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, "tool "+tool,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("tool.module", module),
			attribute.String("tool.name", tool),
		),
	)
}
