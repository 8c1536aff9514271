package profiler

import (
	"regexp"

	"github.com/luthersystems/elisp/lisp"
)

// SkipFilter reports whether calls to fn should not be traced.
type SkipFilter func(c *lisp.Context, fn lisp.Value) bool

// WithDocFilter filters to only include spans for functions whose
// docstring denotes tracing.
func WithDocFilter() Option {
	return WithSkipFilter(docSkipFilter)
}

// WithSkipFilter sets the filter for tracing spans.
func WithSkipFilter(skipFilter SkipFilter) Option {
	return func(p *profiler) {
		p.skipFilter = skipFilter
	}
}

// DocTrace is a magic string used to enable tracing in a profiler
// configured WithDocFilter. All functions with a docstring that contains
// this string will be traced.
const DocTrace = "@trace"

var docTraceRegExp = regexp.MustCompile(DocTrace)

func docSkipFilter(c *lisp.Context, fn lisp.Value) bool {
	doc := docstring(c, fn)
	if doc == "" {
		return true
	}
	return !docTraceRegExp.MatchString(doc)
}
