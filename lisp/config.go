// Copyright © 2018 The ELPS authors

package lisp

import (
	"context"
	"fmt"
	"io"

	"github.com/tliron/commonlog"
)

// Config is a function that configures a Context or its Runtime.
type Config func(c *Context) error

// WithLexicalBinding returns a Config that selects lexical (true) or
// dynamic (false) binding for forms evaluated at top level.
func WithLexicalBinding(lexical bool) Config {
	return func(c *Context) error {
		c.Lexical = lexical
		return nil
	}
}

// WithMaxLispEvalDepth returns a Config that limits the nesting of eval and
// funcall.  Exceeding the limit signals excessive-lisp-nesting.
func WithMaxLispEvalDepth(n int) Config {
	return func(c *Context) error {
		if n <= 0 {
			return fmt.Errorf("invalid max-lisp-eval-depth: %d", n)
		}
		c.MaxDepth = n
		return nil
	}
}

// WithMaxSteps returns a Config that limits the number of evaluation steps
// taken by one top-level evaluation.  A step is counted for each eval and
// funcall entry.  A value of 0 means unlimited (the default).
func WithMaxSteps(n int64) Config {
	return func(c *Context) error {
		c.MaxSteps = n
		return nil
	}
}

// WithContext returns a Config that sets the context.Context checked at
// safe points.  When it is cancelled or its deadline expires evaluation
// signals deadline-exceeded.
func WithContext(ctx context.Context) Config {
	return func(c *Context) error {
		c.ctx = ctx
		return nil
	}
}

// WithGCThreshold returns a Config that sets the number of allocations
// between garbage collections.
func WithGCThreshold(n int) Config {
	return func(c *Context) error {
		c.rt.Heap.Threshold = n
		c.rt.SetGlobal("gc-cons-threshold", Int(int64(n)))
		return nil
	}
}

// WithMaxHeapObjects returns a Config that bounds the number of live heap
// objects.  Exhausting the heap is a fatal error.
func WithMaxHeapObjects(n int) Config {
	return func(c *Context) error {
		c.rt.Heap.MaxObjects = n
		return nil
	}
}

// WithReader returns a Config that makes the runtime use r to parse source
// streams.  There is no default Reader.
func WithReader(r Reader) Config {
	return func(c *Context) error {
		c.rt.Reader = r
		return nil
	}
}

// WithLibrary returns a Config that makes require and load resolve names
// through l.
func WithLibrary(l SourceLibrary) Config {
	return func(c *Context) error {
		c.rt.Library = l
		return nil
	}
}

// WithStdout returns a Config that makes print functions write to w
// instead of the default, os.Stdout.
func WithStdout(w io.Writer) Config {
	return func(c *Context) error {
		c.rt.Stdout = w
		return nil
	}
}

// WithStderr returns a Config that makes message write to w instead of the
// default, os.Stderr.
func WithStderr(w io.Writer) Config {
	return func(c *Context) error {
		c.rt.Stderr = w
		return nil
	}
}

// WithLogger returns a Config that replaces the runtime's diagnostic
// logger.
func WithLogger(log commonlog.Logger) Config {
	return func(c *Context) error {
		c.rt.Logger = log
		return nil
	}
}

// WithProfiler returns a Config that installs p and enables it.
func WithProfiler(p Profiler) Config {
	return func(c *Context) error {
		c.rt.Profiler = p
		if p.IsEnabled() {
			return nil
		}
		return p.Enable()
	}
}
