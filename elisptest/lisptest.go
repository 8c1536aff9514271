// Copyright © 2018 The ELPS authors

// Package elisptest runs Lisp test files and expression sequences from Go
// tests.
package elisptest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/lisplib"
	"github.com/luthersystems/elisp/lisp/lisplib/libtesting"
	"github.com/luthersystems/elisp/parser"
)

func BenchmarkParse(path string, r func() lisp.Reader) func(*testing.B) {
	return func(b *testing.B) {
		buf, err := os.ReadFile(path) //#nosec G304
		if err != nil {
			b.Fatalf("Unable to read source file %v: %v", path, err)
		}
		rt := lisp.StandardRuntime()
		b.SetBytes(int64(len(buf)))
		for i := 0; i < b.N; i++ {
			s := r().NewStream(rt, "test", bytes.NewReader(buf))
			for {
				_, err := s.Read()
				if err == io.EOF {
					break
				}
				if err != nil {
					b.Fatalf("Parse failure: %v", err)
				}
			}
		}
	}
}

// Runner runs the ert tests defined in a file.  Each test runs in a fresh
// runtime into which the file has been loaded.
type Runner struct {
	// Loader installs libraries into each new runtime.  When Loader is nil
	// lisplib.LoadLibrary is used.
	Loader func(*lisp.Runtime)

	// Config is applied to each context created by the runner.
	Config []lisp.Config

	// Teardown runs after each test.  Any error returned by the teardown
	// function is reported as a test failure.
	Teardown func(*lisp.Context) error
}

func (r *Runner) NewContext(t testing.TB) (*lisp.Context, error) {
	logger := NewLogger(t)
	rt := lisp.StandardRuntime()
	rt.Reader = parser.NewReader()
	rt.Library = &lisp.RelativeFileSystemLibrary{}
	rt.Stdout = logger
	rt.Stderr = logger
	loader := r.Loader
	if loader == nil {
		loader = lisplib.LoadLibrary
	}
	loader(rt)
	c, err := rt.NewContext(r.Config...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize lisp context: %w", err)
	}
	return c, nil
}

// load creates a context and loads source into it.  The returned function
// flushes output and releases the context.
func (r *Runner) load(t testing.TB, path string, source io.Reader) (*lisp.Context, func(), bool) {
	c, err := r.NewContext(t)
	if err != nil {
		t.Error(err.Error())
		return nil, nil, false
	}
	done := func() {
		c.Runtime().Stdout.(*Logger).Flush()
		c.Close()
	}
	_, err = c.Load(filepath.Base(path), source)
	if err != nil {
		r.LispError(t, err)
		done()
		return nil, nil, false
	}
	return c, done, true
}

// LoadTests returns the names of the tests defined by source.
func (r *Runner) LoadTests(t *testing.T, path string, source io.Reader) []string {
	c, done, ok := r.load(t, path, source)
	if !ok {
		t.FailNow()
	}
	defer done()
	var names []string
	for _, test := range libtesting.Tests(c.Runtime()) {
		names = append(names, test.Name)
	}
	return names
}

// RunTest runs the named test read from source.  Path is only used to
// determine a file basename for Context.Load.
func (r *Runner) RunTest(t *testing.T, name string, path string, source io.Reader) {
	c, done, ok := r.load(t, path, source)
	if !ok {
		return
	}
	defer done()
	if r.Teardown != nil {
		defer func() {
			if err := r.Teardown(c); err != nil {
				t.Errorf("teardown: %v", err)
			}
		}()
	}
	result, err := libtesting.Run(c, name)
	switch {
	case err != nil:
		r.LispError(t, err)
	case result.Skipped:
		t.Skip(result.Condition.Error())
	case !result.Passed:
		r.LispError(t, result.Condition)
	}
}

func (r *Runner) RunTestFile(t *testing.T, path string) {
	source, err := os.ReadFile(path) //#nosec G304
	if err != nil {
		t.Errorf("Unable to read test file: %v", err)
		return
	}

	var names []string
	ok := t.Run("$load", func(t *testing.T) {
		names = r.LoadTests(t, path, bytes.NewReader(source))
	})
	if !ok {
		return
	}

	for _, name := range names {
		// Every test runs even when an earlier one fails.
		t.Run(name, func(t *testing.T) {
			r.RunTest(t, name, path, bytes.NewReader(source))
		})
	}
}

// LispError reports err, with the Lisp backtrace when it is a condition.
func (r *Runner) LispError(t testing.TB, err error) {
	t.Helper()
	var sig *lisp.Signal
	if !errors.As(err, &sig) {
		t.Error(err)
		return
	}
	var buf bytes.Buffer
	_, ioerr := sig.WriteTrace(&buf)
	if ioerr != nil {
		t.Errorf("io error: %v", ioerr)
		t.Error(err)
		return
	}
	t.Error(strings.TrimRight(buf.String(), "\n"))
}

// TestSequence is a sequence of lisp expressions which are evaluated
// sequentially in one lisp.Context.
type TestSequence []struct {
	Expr   string // a lisp expression
	Result string // the printed result, or (ERROR-SYMBOL . DATA) for a signal
	Output string // output written to Runtime.Stdout and Runtime.Stderr
}

// TestSuite is a set of named TestSequences
type TestSuite []struct {
	Name string
	TestSequence
}

// Result renders the outcome of an evaluation the way TestSequence records
// it.
func Result(rt *lisp.Runtime, v lisp.Value, err error) string {
	if err == nil {
		return rt.Prin1String(v)
	}
	var sig *lisp.Signal
	if errors.As(err, &sig) {
		return rt.Prin1String(sig.Value(rt))
	}
	return "error: " + err.Error()
}

// RunTestSuite runs each TestSequence in tests in an isolated runtime.
func RunTestSuite(t *testing.T, tests TestSuite, config ...lisp.Config) {
	for i, test := range tests {
		t.Logf("test %d -- %s", i, test.Name)
		var exprBuf bytes.Buffer
		rt := lisp.StandardRuntime()
		lisplib.LoadLibrary(rt)
		opts := append([]lisp.Config{
			lisp.WithMaxLispEvalDepth(1600),
			lisp.WithReader(parser.NewReader()),
			lisp.WithStdout(&exprBuf),
			lisp.WithStderr(&exprBuf),
		}, config...)
		c, err := rt.NewContext(opts...)
		if err != nil {
			t.Errorf("test %d %q: %v", i, test.Name, err)
			continue
		}
		for j, expr := range test.TestSequence {
			exprBuf.Reset()
			v, err := c.ReadString(expr.Expr)
			if err != nil {
				t.Errorf("test %d %q: expr %d: parse error: %v", i, test.Name, j, err)
				continue
			}
			if len(v) == 0 {
				t.Errorf("test %d %q: expr %d: no expression parsed", i, test.Name, j)
				continue
			}
			if len(v) != 1 {
				t.Errorf("test %d %q: expr %d: more than one expression parsed (%d)", i, test.Name, j, len(v))
				continue
			}
			val, err := c.Eval(v[0])
			result := Result(rt, val, err)
			if result != expr.Result {
				t.Errorf("test %d %q: expr %d: expected result %s (got %s)", i, test.Name, j, expr.Result, result)
			}
			if exprBuf.String() != expr.Output {
				t.Errorf("test %d %q: expr %d: expected output %q (got %q)", i, test.Name, j, expr.Output, exprBuf.String())
			}
		}
		c.Close()
	}
}

// RunBenchmark runs a standard benchmark that evaluates the expressions in
// source in a fresh runtime per iteration.
func RunBenchmark(b *testing.B, source string) {
	b.StopTimer()
	for i := 0; i < b.N; i++ {
		c, err := lisp.New(
			lisp.WithReader(parser.NewReader()),
			lisp.WithStdout(io.Discard),
			lisp.WithStderr(io.Discard),
		)
		if err != nil {
			b.Fatal(err)
		}
		exprs, err := c.ReadString(source)
		if err != nil {
			b.Fatalf("parse error: %v", err)
		}
		b.StartTimer()
		for i, expr := range exprs {
			if _, err := c.Eval(expr); err != nil {
				b.Fatalf("expr %d: %v", i, err)
			}
		}
		b.StopTimer()
		c.Close()
	}
}
