package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// spanNames keeps exported span names across provider shutdown.
type spanNames struct {
	mu    sync.Mutex
	names []string
}

func (e *spanNames) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range spans {
		e.names = append(e.names, s.Name())
	}
	return nil
}

func (e *spanNames) Shutdown(context.Context) error { return nil }

func TestNew_Disabled_IsNoop(t *testing.T) {
	tel, err := New(context.Background(), Options{})

	require.NoError(t, err)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_Enabled_RecordsSpansAndCounters(t *testing.T) {
	ctx := context.Background()
	spans := &spanNames{}
	reader := sdkmetric.NewManualReader()

	tel, err := New(ctx, Options{
		Enabled:        true,
		ServiceVersion: "test",
		SampleRatio:    1,
		SpanExporter:   spans,
		MetricReader:   reader,
	})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "ExportLanguage")
	span.End()
	counter, err := otel.Meter("test").Int64Counter("exporter.commits.created")
	require.NoError(t, err)
	counter.Add(ctx, 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)

	require.NoError(t, tel.Shutdown(ctx))
	assert.Equal(t, []string{"ExportLanguage"}, spans.names)
}

func TestSampler(t *testing.T) {
	cases := map[float64]string{
		1:    "AlwaysOnSampler",
		1.5:  "AlwaysOnSampler",
		0:    "AlwaysOffSampler",
		-1:   "AlwaysOffSampler",
		0.25: "TraceIDRatioBased",
	}
	for ratio, want := range cases {
		assert.Contains(t, sampler(ratio).Description(), want, "ratio %v", ratio)
	}
}
