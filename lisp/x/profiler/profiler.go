// Package profiler provides lisp.Profiler implementations that annotate
// function calls for external tracing and profiling tools.
package profiler

import (
	"fmt"

	"github.com/luthersystems/elisp/lisp"
)

// profiler is a minimal lisp.Profiler
type profiler struct {
	runtime    *lisp.Runtime
	enabled    bool
	skipFilter SkipFilter
	funLabeler FunLabeler
}

var _ lisp.Profiler = &profiler{}

func (p *profiler) IsEnabled() bool {
	return p.enabled
}

type Option func(*profiler)

func (p *profiler) applyConfigs(opts ...Option) {
	for _, opt := range opts {
		opt(p)
	}
}

func (p *profiler) Enable() error {
	if p.enabled {
		return fmt.Errorf("profiler already enabled")
	}
	p.enabled = true
	return nil
}

func (p *profiler) Complete() error {
	return nil
}

func (p *profiler) Start(c *lisp.Context, fn lisp.Value) func() {
	return func() {}
}

// prettyFunName returns a display label and the function name for fn.  If
// the labeler gives no label the function name is used.
func (p *profiler) prettyFunName(c *lisp.Context, fn lisp.Value) (string, string) {
	name := p.runtime.FunctionName(fn)
	label := name
	if p.funLabeler != nil {
		if l := p.funLabeler(c, fn); l != "" {
			label = l
		}
	}
	return label, name
}

// skipTrace is a helper function to decide whether to skip tracing.
func (p *profiler) skipTrace(c *lisp.Context, fn lisp.Value) bool {
	return !p.enabled || p.skipFilter != nil && p.skipFilter(c, fn)
}

// docstring returns the documentation of the function called through fn
// without signaling.
func docstring(c *lisp.Context, fn lisp.Value) string {
	rt := c.Runtime()
	resolved := fn
	for i := 0; resolved.IsSymbol() && !resolved.IsNil() && i < 100; i++ {
		resolved = rt.Sym(resolved).Function
	}
	switch resolved.Tag() {
	case lisp.TagFunction:
	case lisp.TagCons:
		switch rt.SymbolName(rt.Car(resolved)) {
		case "lambda", "closure":
		default:
			return ""
		}
	default:
		return ""
	}
	doc, ok, err := c.Documentation(resolved)
	if err != nil || !ok {
		return ""
	}
	return doc
}

// sourceFile returns the file being loaded by c, or "-" at top level.
func sourceFile(c *lisp.Context) string {
	rt := c.Runtime()
	if v, ok := rt.SymbolValue(rt.Symbol("load-file-name")); ok && v.Tag() == lisp.TagString {
		return rt.StringVal(v)
	}
	return "-"
}
