package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the OpenTelemetry instruments for the audit engine. The
// Prometheus counters in AuditMetrics cover scrape-based dashboards; this
// registry feeds the OTLP pipeline when one is configured.
type Registry struct {
	meter metric.Meter

	PipelineDuration  metric.Float64Histogram
	EventsPerAnalysis metric.Int64Histogram
	FindingsCounter   metric.Int64Counter
	OpenCorrections   metric.Int64ObservableGauge

	APIRequestDuration metric.Float64Histogram
	APIRequestCounter  metric.Int64Counter

	mu              sync.RWMutex
	openCorrections int64
}

func NewRegistry(meterName string) (*Registry, error) {
	r := &Registry{meter: otel.Meter(meterName)}

	var err error
	r.PipelineDuration, err = r.meter.Float64Histogram(
		"audit.pipeline.duration",
		metric.WithDescription("Full analysis pipeline duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000, 5000),
	)
	if err != nil {
		return nil, err
	}

	r.EventsPerAnalysis, err = r.meter.Int64Histogram(
		"audit.pipeline.events",
		metric.WithDescription("Reconciled events per daily analysis"),
		metric.WithExplicitBucketBoundaries(0, 2, 5, 10, 20, 40),
	)
	if err != nil {
		return nil, err
	}

	r.FindingsCounter, err = r.meter.Int64Counter(
		"audit.findings.total",
		metric.WithDescription("Findings emitted, by category and severity"),
	)
	if err != nil {
		return nil, err
	}

	r.OpenCorrections, err = r.meter.Int64ObservableGauge(
		"audit.corrections.open",
		metric.WithDescription("Correction requests awaiting a response"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.openCorrections)
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	r.APIRequestDuration, err = r.meter.Float64Histogram(
		"audit.api.request_duration",
		metric.WithDescription("API request duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 500, 1000, 5000),
	)
	if err != nil {
		return nil, err
	}

	r.APIRequestCounter, err = r.meter.Int64Counter(
		"audit.api.request_total",
		metric.WithDescription("Total number of API requests"),
	)
	if err != nil {
		return nil, err
	}

	return r, nil
}

// SetOpenCorrections updates the open correction requests gauge.
func (r *Registry) SetOpenCorrections(count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openCorrections = count
}

// RecordPipeline records one completed analysis pass.
func (r *Registry) RecordPipeline(ctx context.Context, durationMS float64, events int, outcome string) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	r.PipelineDuration.Record(ctx, durationMS, attrs)
	r.EventsPerAnalysis.Record(ctx, int64(events), attrs)
}

// RecordFinding counts one emitted finding.
func (r *Registry) RecordFinding(ctx context.Context, category, severity string) {
	r.FindingsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
		attribute.String("severity", severity),
	))
}

// RecordAPIRequest records one served HTTP request.
func (r *Registry) RecordAPIRequest(ctx context.Context, durationMS float64, method, path string, statusCode int) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status_code", statusCode),
	)
	r.APIRequestDuration.Record(ctx, durationMS, attrs)
	r.APIRequestCounter.Add(ctx, 1, attrs)
}
