// Copyright © 2018 The ELPS authors

package lisp_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/elisp/elisptest"
	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/parser"
)

const parityPrelude = `
(defvar trace nil)
(defvar dyn 'outer)
(defun get-dyn () dyn)
(defun throw-from-interp () (throw 'k dyn))
(defun two (a b) (list a b))
`

// Each form is evaluated by the interpreter and, in a fresh runtime, as the
// body of a byte-compiled function.  Results, output and the trace variable
// must agree.
var parityForms = []string{
	`(+ 1 2)`,
	`(+ most-positive-fixnum 1)`,
	`(let ((x 1) (y 2)) (list x y (+ x y)))`,
	`(let* ((a 1) (b (* a 10))) (cons a b))`,
	`(if (> 3 2) 'yes 'no)`,
	`(cond ((eq 'a 'b) 1) ((memq 'c '(a b c)) 2) (t 3))`,
	`(and (or nil 1) (not nil))`,
	`(let ((i 0) (acc nil)) (while (< i 4) (setq acc (cons i acc)) (setq i (1+ i))) acc)`,
	`(let ((s 0)) (dolist (x '(1 2 3) s) (setq s (+ s x))))`,
	`(prog1 (push 1 trace) (push 2 trace))`,
	`(catch 'tag (push 'before trace) (throw 'tag 'thrown) (push 'after trace))`,
	`(catch 'tag (unwind-protect (throw 'tag 1) (push 'cleanup trace)))`,
	`(unwind-protect (car 1) (push 'cleanup trace))`,
	`(condition-case err (car 'x) (wrong-type-argument (push (car err) trace) 'handled))`,
	`(condition-case err (signal 'arith-error '(1)) (error err))`,
	`(condition-case v (* 6 7) (:success (list 'ok v)))`,
	`(let ((dyn 'inner)) (push dyn trace) (get-dyn))`,
	`(progn (catch 'k (let ((dyn 'bound)) (throw-from-interp))) dyn)`,
	`(condition-case nil (let ((dyn 'bound)) (car 1)) (error dyn))`,
	`(throw 'unmatched 1)`,
	`(undefined-function-xyz)`,
	`(condition-case err (two 1) (wrong-number-of-arguments (car err)))`,
	`(mapcar (lambda (x) (* x x)) '(1 2 3))`,
	`(let ((f (lambda (n) (+ n 1)))) (funcall f 41))`,
	`(let ((n 5)) (funcall (lambda () (* n 2))))`,
	`(progn (princ "out") (prin1 'sym))`,
	`(list (aref [1 2 3] 1) (car (nthcdr 2 '(a b c))) (length "abc") (substring "hello" 1 3))`,
	`(apply #'max '(3 9 2))`,
	`(let ((v (vector 1 2))) (aset v 0 'x) v)`,
	`(progn (string-match "b+" "abbbc") (list (match-beginning 0) (match-end 0)))`,
	`(let ((h (make-hash-table :test 'equal))) (puthash "k" 1 h) (gethash "k" h))`,
}

func runEngine(t *testing.T, src string, compile bool) string {
	t.Helper()
	var out bytes.Buffer
	c, err := lisp.New(
		lisp.WithReader(parser.NewReader()),
		lisp.WithStdout(&out),
		lisp.WithStderr(&out),
	)
	require.NoError(t, err)
	defer c.Close()
	rt := c.Runtime()
	_, err = c.LoadString("prelude.el", parityPrelude)
	require.NoError(t, err)

	forms, err := c.ReadString(src)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	form := forms[0]
	if compile {
		form = rt.List(rt.Symbol("byte-compile"), rt.List(rt.Symbol("quote"), form))
	}
	v, err := c.Eval(form)
	result := elisptest.Result(rt, v, err)
	assert.Zero(t, c.SpecDepth(), "binding stack not unwound")
	assert.Zero(t, c.HandlerDepth(), "handler stack not unwound")

	trace, err := c.EvalString("trace")
	require.NoError(t, err)
	return result + " | " + out.String() + " | " + rt.Prin1String(trace)
}

func TestEngineParity(t *testing.T) {
	for _, src := range parityForms {
		t.Run(src, func(t *testing.T) {
			interpreted := runEngine(t, src, false)
			compiled := runEngine(t, src, true)
			assert.Equal(t, interpreted, compiled)
		})
	}
}

func TestByteCode(t *testing.T) {
	tests := elisptest.TestSuite{
		{"make-byte-code", elisptest.TestSequence{
			{`(funcall (make-byte-code 0 "\300\207" [42] 1))`, "42", ""},
			{`(byte-code-function-p (make-byte-code 0 "\300\207" [42] 1))`, "t", ""},
			{`(func-arity (make-byte-code 513 "\300\207" [nil] 3))`, "(1 . 2)", ""},
		}},
		{"byte-compile", elisptest.TestSequence{
			{`(byte-code-function-p (byte-compile (lambda (x) x)))`, "t", ""},
			{`(funcall (byte-compile (lambda (x y) (+ x y))) 2 3)`, "5", ""},
			{`(defun sq (x) "Square X." (* x x))`, "sq", ""},
			{`(byte-code-function-p (byte-compile 'sq))`, "t", ""},
			{`(list (byte-code-function-p (symbol-function 'sq)) (sq 4))`, "(t 16)", ""},
			{`(documentation 'sq)`, `"Square X."`, ""},
			{`(condition-case err (sq) (wrong-number-of-arguments (car err)))`, "wrong-number-of-arguments", ""},
			{`(funcall (byte-compile (lambda (&optional a &rest r) (list a r))) 1 2 3)`, "(1 (2 3))", ""},
		}},
		{"compiled closures", elisptest.TestSequence{
			{`(defun adder (n) (lambda (x) (+ x n)))`, "adder", ""},
			{`(progn (byte-compile 'adder) nil)`, "nil", ""},
			{`(funcall (adder 3) 4)`, "7", ""},
			{`(mapcar (adder 10) '(1 2))`, "(11 12)", ""},
		}},
		{"mixed engines", elisptest.TestSequence{
			{`(defvar depth-log nil)`, "depth-log", ""},
			{`(defun interp-cb (f) (funcall f 'from-interp))`, "interp-cb", ""},
			{`(funcall (byte-compile (lambda () (interp-cb (lambda (x) (list x 'in-compiled))))))`, "(from-interp in-compiled)", ""},
			{`(catch 'out (funcall (byte-compile (lambda () (interp-cb (lambda (x) (throw 'out x)))))))`, "from-interp", ""},
		}},
	}
	elisptest.RunTestSuite(t, tests)
}

func TestByteCodeFaults(t *testing.T) {
	for _, test := range []struct {
		name string
		src  string
		msg  string
	}{
		{"no return", `(funcall (make-byte-code 0 "" [] 0))`, "end of code without return"},
		{"underflow", `(funcall (make-byte-code 0 "\207" [] 0))`, "stack underflow"},
		{"constant range", `(funcall (make-byte-code 0 "\301\207" [1] 1))`, "constant index 1 out of range"},
	} {
		t.Run(test.name, func(t *testing.T) {
			c, err := lisp.New(lisp.WithReader(parser.NewReader()))
			require.NoError(t, err)
			defer c.Close()

			// Faults are not conditions and escape condition-case.
			_, err = c.EvalString(`(condition-case nil ` + test.src + ` (t 'caught))`)
			var ie *lisp.InternalError
			require.True(t, errors.As(err, &ie), "%v", err)
			assert.Contains(t, ie.Msg, test.msg)
			assert.Zero(t, c.SpecDepth())
			assert.Zero(t, c.HandlerDepth())

			// The context remains usable.
			v, err := c.EvalString(`(let ((x 1)) (+ x 1))`)
			require.NoError(t, err)
			assert.Equal(t, lisp.Int(2), v)
		})
	}
}

func TestDisassemble(t *testing.T) {
	c, err := lisp.New(lisp.WithReader(parser.NewReader()))
	require.NoError(t, err)
	defer c.Close()
	fn, err := c.EvalString(`(byte-compile (lambda (x) (if x (car x) 'none)))`)
	require.NoError(t, err)
	text, err := c.Disassemble(fn)
	require.NoError(t, err)
	assert.Contains(t, text, "return")
	assert.Contains(t, text, "car")
}
