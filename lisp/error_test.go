// Copyright © 2018 The ELPS authors

package lisp_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/parser"
)

func newContext(t *testing.T, config ...lisp.Config) *lisp.Context {
	t.Helper()
	c, err := lisp.New(append([]lisp.Config{lisp.WithReader(parser.NewReader())}, config...)...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestSignal(t *testing.T) {
	c := newContext(t)
	rt := c.Runtime()
	_, err := c.LoadString("defs.el", `
(defun outer-fn () (inner-fn 1))
(defun inner-fn (x) (car x))`)
	require.NoError(t, err)

	_, err = c.EvalString(`(outer-fn)`)
	var sig *lisp.Signal
	require.True(t, errors.As(err, &sig), "%v", err)
	assert.Equal(t, "wrong-type-argument", sig.Name())
	assert.Equal(t, "Wrong type argument: listp, 1", sig.Error())
	assert.True(t, sig.Is(rt, "wrong-type-argument"))
	assert.True(t, sig.Is(rt, "error"))
	assert.False(t, sig.Is(rt, "arith-error"))
	assert.Equal(t, "(wrong-type-argument listp 1)", rt.Prin1String(sig.Value(rt)))

	var buf bytes.Buffer
	_, err = sig.WriteTrace(&buf)
	require.NoError(t, err)
	trace := buf.String()
	assert.Contains(t, trace, "Wrong type argument: listp, 1\nBacktrace:\n")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("inner-fn")), bytes.Index(buf.Bytes(), []byte("outer-fn")))

	// The stacks are clean for the next top-level form.
	assert.Zero(t, c.SpecDepth())
	assert.Zero(t, c.HandlerDepth())
}

func TestNativeNonLocalExit(t *testing.T) {
	c := newContext(t)
	rt := c.Runtime()
	rt.DefSubr("go-catch", 2, 2, func(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
		return c.Catch(args[0], func() (lisp.Value, error) {
			return c.Funcall(args[1])
		})
	}, "Call THUNK inside a catch for TAG.")
	rt.DefSubr("go-throw", 2, 2, func(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
		return lisp.Nil, c.ThrowTo(args[0], args[1])
	}, "Throw VALUE to TAG.")
	rt.DefSubr("go-signal", 0, 0, func(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
		return lisp.Nil, c.Errorf("failed with %d", 7)
	}, "Signal an error.")

	for _, test := range []struct {
		src  string
		want string
	}{
		{`(go-catch 'k (lambda () (throw 'k 1)))`, "1"},
		{`(catch 'k (go-throw 'k 2))`, "2"},
		{`(go-catch 'k (lambda () (go-throw 'k 3)))`, "3"},
		{`(catch 'outer (go-catch 'inner (lambda () (throw 'outer 4))))`, "4"},
		{`(defvar trail nil)`, "trail"},
		{`(go-catch 'k (lambda () (unwind-protect (go-throw 'k 5) (push 'cleanup trail))))`, "5"},
		{`trail`, "(cleanup)"},
		{`(condition-case err (go-signal) (error (error-message-string err)))`, `"failed with 7"`},
		{`(condition-case err (go-throw 'missing 1) (no-catch err))`, "(no-catch missing 1)"},
	} {
		v, err := c.EvalString(test.src)
		require.NoError(t, err, test.src)
		assert.Equal(t, test.want, rt.Prin1String(v), test.src)
	}
}

func TestUncaughtThrow(t *testing.T) {
	c := newContext(t)
	_, err := c.EvalString(`(throw 'nowhere 1)`)
	var sig *lisp.Signal
	require.True(t, errors.As(err, &sig))
	assert.Equal(t, "no-catch", sig.Name())
}

func TestDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	c := newContext(t, lisp.WithContext(ctx))
	_, err := c.EvalString(`(while t)`)
	var sig *lisp.Signal
	require.True(t, errors.As(err, &sig), "%v", err)
	assert.Equal(t, "deadline-exceeded", sig.Name())

	_, err = c.EvalString(`(condition-case nil (while t) (error 'caught))`)
	require.True(t, errors.As(err, &sig), "%v", err)
	assert.Equal(t, "deadline-exceeded", sig.Name())

	c.SetContext(context.Background())
	v, err := c.EvalString(`(+ 1 2)`)
	require.NoError(t, err)
	assert.Equal(t, lisp.Int(3), v)
}

func TestMaxSteps(t *testing.T) {
	c := newContext(t, lisp.WithMaxSteps(1000))
	_, err := c.EvalString(`(let ((i 0)) (while t (setq i (1+ i))))`)
	var sig *lisp.Signal
	require.True(t, errors.As(err, &sig), "%v", err)
	assert.Equal(t, "excessive-lisp-nesting", sig.Name())

	v, err := c.EvalString(`(* 6 7)`)
	require.NoError(t, err)
	assert.Equal(t, lisp.Int(42), v)
}
