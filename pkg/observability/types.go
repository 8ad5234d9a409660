// Package observability carries the metrics, tracing, health and logging
// plumbing shared by the retrieval store, the query pipeline and the servers.
package observability

import (
	"context"
	"time"
)

// MetricsProvider collects counters, gauges and histograms.
type MetricsProvider interface {
	// Counter increments a counter by value.
	Counter(ctx context.Context, name string, value int64, labels map[string]string)

	// Gauge adds value to a gauge. Pass a negative value to decrease it.
	Gauge(ctx context.Context, name string, value float64, labels map[string]string)

	// Histogram records one observation.
	Histogram(ctx context.Context, name string, value float64, labels map[string]string)

	// RecordDuration records a duration in seconds as a histogram observation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, labels map[string]string)
}

// TracerProvider starts spans.
//
// Example:
//
//	ctx, span := tracer.StartSpan(ctx, "query.preprocess")
//	defer span.End(err)
type TracerProvider interface {
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)

	// Shutdown flushes pending spans.
	Shutdown(ctx context.Context) error
}

// Span is a single traced operation. End must be called exactly once.
type Span interface {
	// End finishes the span, marking it failed when err is non-nil.
	End(err error)
	SetAttribute(key string, value any)
	AddEvent(name string, attrs map[string]any)
	SpanContext() SpanContext
}

// SpanContext identifies a span for log correlation.
type SpanContext struct {
	TraceID string
	SpanID  string
}

// SpanOption configures span creation.
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind       SpanKind
	attributes map[string]any
}

// SpanKind describes the relationship between a span and its peers.
type SpanKind int

const (
	SpanKindInternal SpanKind = iota
	SpanKindServer
	SpanKindClient
)

// WithSpanKind sets the kind of span.
func WithSpanKind(kind SpanKind) SpanOption {
	return func(cfg *spanConfig) {
		cfg.kind = kind
	}
}

// WithAttributes sets initial attributes on the span.
func WithAttributes(attrs map[string]any) SpanOption {
	return func(cfg *spanConfig) {
		cfg.attributes = attrs
	}
}

func newSpanConfig(opts []SpanOption) *spanConfig {
	cfg := &spanConfig{kind: SpanKindInternal, attributes: map[string]any{}}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
