package profiler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/x/profiler"
)

func newExporter(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
		trace.WithSampler(trace.AlwaysSample()),
	)
	t.Cleanup(func() {
		err := tp.Shutdown(context.Background())
		assert.NoError(t, err, "TracerProvider shutdown")
	})
	otel.SetTracerProvider(tp)
	return exporter
}

func TestNewOpenTelemetryAnnotator(t *testing.T) {
	exporter := newExporter(t)
	rt := lisp.StandardRuntime()
	ppa := profiler.NewOpenTelemetryAnnotator(rt, context.Background())
	runProfiled(t, rt, ppa)
	require.NoError(t, ppa.Complete())

	spans := exporter.GetSpans()
	assert.GreaterOrEqual(t, len(spans), 10, "Expected a span per call")
	names := make(map[string]bool)
	for _, s := range spans {
		names[s.Name] = true
	}
	assert.True(t, names["recurse-it"])
	assert.True(t, names["add-it"])
	assert.True(t, names["+"])
}

func TestNewOpenTelemetryAnnotatorSkip(t *testing.T) {
	exporter := newExporter(t)
	rt := lisp.StandardRuntime()
	ppa := profiler.NewOpenTelemetryAnnotator(rt, context.Background(),
		profiler.WithDocFilter(),
		profiler.WithDocLabeler())
	runProfiled(t, rt, ppa)
	require.NoError(t, ppa.Complete())

	// Spans are exported as they end, innermost first.
	spans := exporter.GetSpans()
	var names []string
	for _, s := range spans {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Add_It", "Add_It", "Add_It", "Add_It_Again", "traced-lambda"}, names)
	assert.Equal(t, spans[3].SpanContext.SpanID(), spans[2].Parent.SpanID(), "nested span parent")
}
