package server

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type synthMetrics struct {
	requests metric.Int64Counter
	chunks   metric.Int64Counter
	latency  metric.Float64Histogram
}

func newSynthMetrics() (*synthMetrics, error) {
	meter := otel.Meter("github.com/loqalabs/kokorod/server")

	requests, err := meter.Int64Counter("kokorod.tts.requests",
		metric.WithDescription("Synthesis requests by outcome"))
	if err != nil {
		return nil, err
	}
	chunks, err := meter.Int64Counter("kokorod.tts.chunks",
		metric.WithDescription("Audio chunks produced by the engine"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("kokorod.tts.duration_seconds",
		metric.WithDescription("End-to-end synthesis latency"))
	if err != nil {
		return nil, err
	}
	return &synthMetrics{requests: requests, chunks: chunks, latency: latency}, nil
}

func (m *synthMetrics) record(ctx context.Context, status string, chunks int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.requests.Add(ctx, 1, attrs)
	if chunks > 0 {
		m.chunks.Add(ctx, int64(chunks), attrs)
	}
	m.latency.Record(ctx, elapsed.Seconds(), attrs)
}
