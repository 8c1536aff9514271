package profiler

import (
	"context"
	"runtime/pprof"

	"github.com/luthersystems/elisp/lisp"
)

// pprofAnnotator labels goroutines with the lisp function being executed so
// that pprof samples can be attributed to lisp code.  It does not start
// pprof.
type pprofAnnotator struct {
	profiler
	currentContext context.Context
}

var _ lisp.Profiler = &pprofAnnotator{}

// NewPprofAnnotator returns a profiler which sets pprof goroutine labels.
func NewPprofAnnotator(runtime *lisp.Runtime, parentContext context.Context, opts ...Option) *pprofAnnotator {
	p := &pprofAnnotator{
		profiler: profiler{
			runtime: runtime,
		},
		currentContext: parentContext,
	}
	p.profiler.applyConfigs(opts...)
	return p
}

func (p *pprofAnnotator) Enable() error {
	p.runtime.Profiler = p
	if p.currentContext == nil {
		p.currentContext = context.Background()
	}
	return p.profiler.Enable()
}

func (p *pprofAnnotator) Complete() error {
	pprof.SetGoroutineLabels(context.Background())
	return nil
}

func (p *pprofAnnotator) Start(c *lisp.Context, fn lisp.Value) func() {
	if p.skipTrace(c, fn) {
		return func() {}
	}
	oldContext := p.currentContext
	label, _ := p.prettyFunName(c, fn)
	p.currentContext = pprof.WithLabels(p.currentContext, pprof.Labels("function", label))
	pprof.SetGoroutineLabels(p.currentContext)
	return func() {
		p.currentContext = oldContext
		pprof.SetGoroutineLabels(p.currentContext)
	}
}
