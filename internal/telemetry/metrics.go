package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/registryd/internal/change"
)

const instrumentationName = "github.com/fyrsmithlabs/registryd/internal/telemetry"

// Run results recorded on the runs counter.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultNoop  = "noop"
)

// Metrics holds the indexing metrics.
type Metrics struct {
	meter       metric.Meter
	logger      *zap.Logger
	runsTotal   metric.Int64Counter
	eventsTotal metric.Int64Counter
	runDuration metric.Float64Histogram
}

// NewMetrics creates the metrics against the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.runsTotal, err = m.meter.Int64Counter(
		"registryd.index.runs_total",
		metric.WithDescription("Completed indexing runs labeled by mirror and result (ok, noop, error)."),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		m.logger.Warn("failed to create runs counter", zap.Error(err))
	}

	m.eventsTotal, err = m.meter.Int64Counter(
		"registryd.index.events_total",
		metric.WithDescription("Change events emitted to the sink, labeled by mirror and kind."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		m.logger.Warn("failed to create events counter", zap.Error(err))
	}

	m.runDuration, err = m.meter.Float64Histogram(
		"registryd.index.run_duration_seconds",
		metric.WithDescription("End-to-end indexing run duration (fetch through checkpoint advance)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		m.logger.Warn("failed to create run duration histogram", zap.Error(err))
	}
}

// RecordRun counts one finished run and its duration.
func (m *Metrics) RecordRun(ctx context.Context, mirror, result string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("mirror", mirror),
		attribute.String("result", result),
	)
	if m.runsTotal != nil {
		m.runsTotal.Add(ctx, 1, attrs)
	}
	if m.runDuration != nil {
		m.runDuration.Record(ctx, seconds, attrs)
	}
}

// RecordEvent counts one emitted change event.
func (m *Metrics) RecordEvent(ctx context.Context, mirror string, kind change.Kind) {
	if m.eventsTotal == nil {
		return
	}
	m.eventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mirror", mirror),
		attribute.String("kind", string(kind)),
	))
}
