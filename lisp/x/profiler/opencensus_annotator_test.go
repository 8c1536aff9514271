package profiler_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/trace"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/x/profiler"
)

func TestNewOpenCensusAnnotator(t *testing.T) {
	trace.ApplyConfig(trace.Config{DefaultSampler: trace.AlwaysSample()})
	exporter := &recordingExporter{}
	trace.RegisterExporter(exporter)
	defer trace.UnregisterExporter(exporter)

	rt := lisp.StandardRuntime()
	ppa := profiler.NewOpenCensusAnnotator(rt, context.Background(), profiler.WithDocFilter())
	runProfiled(t, rt, ppa)
	require.NoError(t, ppa.Complete())

	names := exporter.names()
	assert.Contains(t, names, "add-it")
	assert.Contains(t, names, "traced-lambda")
	assert.NotContains(t, names, "untraced")
}

func TestOpenCensusRequiresContext(t *testing.T) {
	ppa := profiler.NewOpenCensusAnnotator(lisp.StandardRuntime(), nil)
	assert.Error(t, ppa.Enable())
}

// recordingExporter collects the names of exported spans.
type recordingExporter struct {
	mu    sync.Mutex
	spans []*trace.SpanData
}

func (e *recordingExporter) ExportSpan(sd *trace.SpanData) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spans = append(e.spans, sd)
}

func (e *recordingExporter) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var names []string
	for _, sd := range e.spans {
		names = append(names, sd.Name)
	}
	return names
}
