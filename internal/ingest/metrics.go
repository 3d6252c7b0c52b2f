package ingest

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const ingestInstrumentationName = "github.com/radwerk/reportd/internal/ingest"

// Metrics holds all ingestion-related metrics. A nil *Metrics records
// nothing.
type Metrics struct {
	meter    metric.Meter
	logger   *zap.Logger
	files    metric.Int64Counter
	chunks   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance for ingestion.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(ingestInstrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.files, err = m.meter.Int64Counter(
		"reportd.ingest.files_total",
		metric.WithDescription("Files processed, labeled by outcome status"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		m.logger.Warn("failed to create files counter", zap.Error(err))
	}

	m.chunks, err = m.meter.Int64Counter(
		"reportd.ingest.chunks_total",
		metric.WithDescription("Chunks embedded and upserted"),
		metric.WithUnit("{chunk}"),
	)
	if err != nil {
		m.logger.Warn("failed to create chunks counter", zap.Error(err))
	}

	m.duration, err = m.meter.Float64Histogram(
		"reportd.ingest.file_duration_seconds",
		metric.WithDescription("Per-file processing duration, labeled by outcome status"),
		metric.WithUnit("s"),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}
}

// RecordFile records one processed file outcome.
func (m *Metrics) RecordFile(ctx context.Context, status Status, chunkCount int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", string(status)))
	if m.files != nil {
		m.files.Add(ctx, 1, attrs)
	}
	if m.chunks != nil && chunkCount > 0 {
		m.chunks.Add(ctx, int64(chunkCount))
	}
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), attrs)
	}
}
