// Package observe provides the application's metric instruments: synthesis
// latency and request counters per provider, plus an HTTP request histogram.
//
// Metrics go through the OpenTelemetry Metrics API with a Prometheus exporter
// bridge registered by InitProvider, so everything lands on the standard
// /metrics scrape endpoint. Tests should build their own Metrics from a
// private MeterProvider to avoid cross-test pollution.
package observe

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "github.com/suraj5sky/sky-tts"

// latencyBuckets covers the observed spread: cloud calls land well under a
// second, the local generative model can take tens of seconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// Metrics holds the application's metric instruments. Safe for concurrent
// use; the OTel types synchronise internally.
type Metrics struct {
	// SynthesisDuration tracks provider synthesis latency. Attributes:
	// service, status, fallback.
	SynthesisDuration metric.Float64Histogram

	// SynthesisRequests counts synthesis attempts by service and status.
	SynthesisRequests metric.Int64Counter

	// FallbackHops counts resolutions that reached the phonetic fallback.
	FallbackHops metric.Int64Counter

	// PreviewCacheHits counts preview requests served from the cache.
	PreviewCacheHits metric.Int64Counter

	// HTTPRequestDuration tracks HTTP latency by method and path.
	HTTPRequestDuration metric.Float64Histogram
}

// NewMetrics builds all instruments from the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SynthesisDuration, err = m.Float64Histogram("skytts.synthesis.duration",
		metric.WithDescription("Latency of one provider synthesis call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisRequests, err = m.Int64Counter("skytts.synthesis.requests",
		metric.WithDescription("Total synthesis attempts by service and status."),
	); err != nil {
		return nil, err
	}
	if met.FallbackHops, err = m.Int64Counter("skytts.fallback.hops",
		metric.WithDescription("Resolutions that fell back to the phonetic service."),
	); err != nil {
		return nil, err
	}
	if met.PreviewCacheHits, err = m.Int64Counter("skytts.preview.cache_hits",
		metric.WithDescription("Voice previews served from the permanent cache."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("skytts.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordSynthesis records one provider call: the latency histogram and the
// request counter, tagged with outcome. Nil receiver is a no-op so callers
// can run without metrics wired.
func (m *Metrics) RecordSynthesis(ctx context.Context, service string, fallback bool, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("status", status),
		attribute.Bool("fallback", fallback),
	)
	m.SynthesisDuration.Record(ctx, d.Seconds(), attrs)
	m.SynthesisRequests.Add(ctx, 1, attrs)
	if fallback {
		m.FallbackHops.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}
}

// RecordPreviewCacheHit counts one preview served without synthesis.
func (m *Metrics) RecordPreviewCacheHit(ctx context.Context, voiceID string) {
	if m == nil {
		return
	}
	m.PreviewCacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("voice_id", voiceID)))
}

// RecordHTTPRequest records one handled HTTP request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
	))
}

// InitProvider registers a global MeterProvider backed by a Prometheus
// exporter, so instruments built from it are scrapeable at /metrics. Returns
// a shutdown function to defer from main.
func InitProvider(serviceName, serviceVersion string) (shutdown func(context.Context) error, err error) {
	if serviceName == "" {
		serviceName = "sky-tts"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}
	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if e := mp.Shutdown(ctx); e != nil && !errors.Is(e, context.Canceled) {
			return e
		}
		return nil
	}, nil
}
