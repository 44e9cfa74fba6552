package daemon

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const daemonInstrumentationName = "github.com/fyrsmithlabs/reflectd/internal/daemon"

// Metrics holds daemon request metrics.
type Metrics struct {
	meter    metric.Meter
	logger   *zap.Logger
	duration metric.Float64Histogram
	rejected metric.Int64Counter
}

// NewMetrics creates a new Metrics instance for the daemon.
func NewMetrics(logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  otel.Meter(daemonInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"reflectd.daemon.request_duration_seconds",
		metric.WithDescription("Duration of served requests by op (classify, embed, status) and outcome"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.rejected, err = m.meter.Int64Counter(
		"reflectd.daemon.rejected_total",
		metric.WithDescription("Requests rejected before serving, by reason (not_ready, busy, bad_op, bad_frame)"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create rejected counter", zap.Error(err))
	}
}

// RecordRequest records a served request.
func (m *Metrics) RecordRequest(ctx context.Context, op, outcome string, duration time.Duration) {
	if m.duration == nil {
		return
	}
	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

// RecordRejection records a request turned away before serving.
func (m *Metrics) RecordRejection(ctx context.Context, reason string) {
	if m.rejected == nil {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}
