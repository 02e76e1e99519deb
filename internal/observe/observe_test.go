package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestRecordSynthesis(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSynthesis(ctx, "edge", false, 300*time.Millisecond, nil)
	m.RecordSynthesis(ctx, "edge", true, 100*time.Millisecond, errors.New("boom"))

	rm := collect(t, reader)
	if _, ok := findMetric(rm, "skytts.synthesis.duration"); !ok {
		t.Error("synthesis duration not recorded")
	}
	reqs, ok := findMetric(rm, "skytts.synthesis.requests")
	if !ok {
		t.Fatal("synthesis requests not recorded")
	}
	sum, ok := reqs.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", reqs.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Errorf("request count = %d, want 2", total)
	}
	if _, ok := findMetric(rm, "skytts.fallback.hops"); !ok {
		t.Error("fallback hop not recorded")
	}
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	// Must not panic.
	m.RecordSynthesis(ctx, "edge", false, time.Second, nil)
	m.RecordPreviewCacheHit(ctx, "v")
	m.RecordHTTPRequest(ctx, "GET", "/api/voices", time.Millisecond)
}

func TestRecordPreviewCacheHit(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordPreviewCacheHit(context.Background(), "en-US-AriaNeural")
	rm := collect(t, reader)
	if _, ok := findMetric(rm, "skytts.preview.cache_hits"); !ok {
		t.Error("cache hit not recorded")
	}
}
