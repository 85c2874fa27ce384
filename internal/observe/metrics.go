// Package observe provides application-wide observability primitives for
// miclink: OpenTelemetry metrics, tracing helpers, structured logging, and
// HTTP middleware for the local debug server.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all miclink metrics.
const meterName = "github.com/miclink/miclink"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ResampleDuration tracks per-chunk resample/quantise processing time.
	ResampleDuration metric.Float64Histogram

	// SignalingDuration tracks the offer/answer HTTP exchange latency.
	SignalingDuration metric.Float64Histogram

	// HTTPRequestDuration tracks debug-server request processing time.
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// FramesSent counts PCM frames accepted onto the audio channel.
	FramesSent metric.Int64Counter

	// BytesSent counts PCM payload bytes accepted onto the audio channel.
	BytesSent metric.Int64Counter

	// FrameDrops counts best-effort frames dropped. Use with attribute:
	//   attribute.String("reason", ...)
	FrameDrops metric.Int64Counter

	// TranscriptionEvents counts well-formed inbound events. Use with
	// attribute: attribute.String("type", ...)
	TranscriptionEvents metric.Int64Counter

	// MalformedMessages counts discarded inbound payloads.
	MalformedMessages metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live sessions (0 or 1).
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// an audio pipeline: per-chunk processing sits well under a millisecond,
// while the signaling exchange can take whole seconds.
var latencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.25, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ResampleDuration, err = m.Float64Histogram("miclink.resample.duration",
		metric.WithDescription("Per-chunk resample and quantise processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SignalingDuration, err = m.Float64Histogram("miclink.signaling.duration",
		metric.WithDescription("Latency of the offer/answer signaling exchange."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("miclink.http.request.duration",
		metric.WithDescription("Debug server request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesSent, err = m.Int64Counter("miclink.frames.sent",
		metric.WithDescription("Total PCM frames accepted onto the audio channel."),
	); err != nil {
		return nil, err
	}
	if met.BytesSent, err = m.Int64Counter("miclink.frames.bytes",
		metric.WithDescription("Total PCM payload bytes accepted onto the audio channel."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.FrameDrops, err = m.Int64Counter("miclink.frames.dropped",
		metric.WithDescription("Total best-effort frames dropped by reason."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionEvents, err = m.Int64Counter("miclink.transcription.events",
		metric.WithDescription("Total well-formed transcription-channel events by type."),
	); err != nil {
		return nil, err
	}
	if met.MalformedMessages, err = m.Int64Counter("miclink.transcription.malformed",
		metric.WithDescription("Total malformed transcription-channel payloads discarded."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("miclink.active_sessions",
		metric.WithDescription("Number of live sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordFrameSent records one accepted frame and its payload size.
func (m *Metrics) RecordFrameSent(ctx context.Context, bytes int) {
	m.FramesSent.Add(ctx, 1)
	m.BytesSent.Add(ctx, int64(bytes))
}

// RecordFrameDrop records one dropped frame with the given reason.
func (m *Metrics) RecordFrameDrop(ctx context.Context, reason string) {
	m.FrameDrops.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordEvent records one well-formed transcription-channel event.
func (m *Metrics) RecordEvent(ctx context.Context, eventType string) {
	m.TranscriptionEvents.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", eventType)),
	)
}

// RecordResample records one chunk's processing duration.
func (m *Metrics) RecordResample(ctx context.Context, d time.Duration) {
	m.ResampleDuration.Record(ctx, d.Seconds())
}
