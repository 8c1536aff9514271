// Copyright © 2018 The ELPS authors

package lisp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/elisp/elisptest"
	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/parser"
)

// A low threshold forces collections in the middle of these computations.
func TestCollectionPreservesLiveValues(t *testing.T) {
	tests := elisptest.TestSuite{
		{"let bindings", elisptest.TestSequence{
			{`(let ((x (list 1 2 3)) (s (make-string 3 ?a)) (v (vector 'a "b"))) (garbage-collect) (list x s v))`, `((1 2 3) "aaa" [a "b"])`, ""},
		}},
		{"dynamic bindings", elisptest.TestSequence{
			{`(defvar dyn (list 'global))`, "dyn", ""},
			{`(let ((dyn (list 'bound))) (dotimes (i 200) (make-list 10 i)) (garbage-collect) dyn)`, "(bound)", ""},
			{`(progn (garbage-collect) dyn)`, "(global)", ""},
		}},
		{"symbol cells", elisptest.TestSequence{
			{`(progn (setq global-list (number-sequence 1 5)) (put 'global-list 'prop (list "p")) nil)`, "nil", ""},
			{`(progn (dotimes (i 500) (cons i i)) (garbage-collect) (list global-list (get 'global-list 'prop)))`, `((1 2 3 4 5) ("p"))`, ""},
		}},
		{"closures", elisptest.TestSequence{
			{`(defun make-acc () (let ((items (list 'start))) (lambda (x) (setcdr (last items) (list x)) items)))`, "make-acc", ""},
			{`(progn (setq acc (make-acc)) nil)`, "nil", ""},
			{`(progn (dotimes (i 50) (funcall acc i) (make-list 20 nil)) (garbage-collect) (length (funcall acc 'end)))`, "52", ""},
		}},
		{"catch and handlers", elisptest.TestSequence{
			{`(catch (list 'not-eq) 1)`, "1", ""},
			{`(let ((tag (list 'tag))) (catch tag (dotimes (i 100) (make-list 10 i)) (garbage-collect) (throw tag (list 'done))))`, "(done)", ""},
			{`(condition-case err (let ((data (list 1 2))) (garbage-collect) (signal 'error data)) (error (garbage-collect) err))`, "(error 1 2)", ""},
		}},
		{"hash tables", elisptest.TestSequence{
			{`(let ((h (make-hash-table :test 'equal))) (dotimes (i 100) (puthash (format "k%d" i) (list i) h)) (garbage-collect) (list (hash-table-count h) (gethash "k42" h)))`, "(100 (42))", ""},
		}},
		{"bignums and floats", elisptest.TestSequence{
			{`(let ((b (* most-positive-fixnum 4))) (garbage-collect) (list b (bignump b)))`, "(36893488147419103228 t)", ""},
		}},
		{"cyclic structure", elisptest.TestSequence{
			{`(let ((c (list 1 2))) (setcdr (cdr c) c) (garbage-collect) (nth 5 c))`, "2", ""},
		}},
		{"compiled code", elisptest.TestSequence{
			{`(defun build (n) (let (acc) (dotimes (i n) (setq acc (cons (list i (format "%d" i)) acc))) acc))`, "build", ""},
			{`(progn (byte-compile 'build) nil)`, "nil", ""},
			{`(let ((r (build 100))) (garbage-collect) (list (length r) (car r)))`, `(100 (99 "99"))`, ""},
		}},
	}
	elisptest.RunTestSuite(t, tests, lisp.WithGCThreshold(16))
}

func TestCollectReclaimsGarbage(t *testing.T) {
	c, err := lisp.New(lisp.WithReader(parser.NewReader()), lisp.WithGCThreshold(0))
	require.NoError(t, err)
	defer c.Close()
	rt := c.Runtime()

	_, err = c.EvalString(`(progn (garbage-collect) (defvar keep (make-list 100 'x)) nil)`)
	require.NoError(t, err)
	base := rt.Heap.Live()

	_, err = c.EvalString(`(dotimes (i 1000) (make-list 10 i))`)
	require.NoError(t, err)
	assert.Greater(t, rt.Heap.Live(), base+5000)

	_, err = c.EvalString(`(garbage-collect)`)
	require.NoError(t, err)
	assert.Less(t, rt.Heap.Live(), base+1000)

	v, err := c.EvalString(`(length keep)`)
	require.NoError(t, err)
	assert.Equal(t, lisp.Int(100), v)
}

func TestProtect(t *testing.T) {
	c, err := lisp.New(lisp.WithReader(parser.NewReader()))
	require.NoError(t, err)
	defer c.Close()
	rt := c.Runtime()

	v, err := c.EvalString(`(list 1 "two" [3])`)
	require.NoError(t, err)
	release := rt.Protect(v)
	_, err = c.EvalString(`(progn (dotimes (i 100) (make-list 10 i)) (garbage-collect))`)
	require.NoError(t, err)
	_, err = c.EvalString(`(make-list 50 'fill)`)
	require.NoError(t, err)
	assert.Equal(t, `(1 "two" [3])`, rt.Prin1String(v))

	// Protected values may be passed back into lisp.
	n, err := c.Call(rt.Symbol("length"), v)
	require.NoError(t, err)
	assert.Equal(t, lisp.Int(3), n)
	release()
}

func TestHeapExhaustionIsFatal(t *testing.T) {
	c, err := lisp.New(lisp.WithReader(parser.NewReader()), lisp.WithMaxHeapObjects(2000))
	require.NoError(t, err)

	var fatal *lisp.FatalError
	func() {
		defer func() {
			if r := recover(); r != nil {
				fatal, _ = r.(*lisp.FatalError)
			}
		}()
		_, _ = c.EvalString(`(condition-case nil (let (l) (dotimes (i 100000) (push i l)) l) (t 'caught))`)
	}()
	require.NotNil(t, fatal, "heap exhaustion was not fatal")
	assert.NotEmpty(t, fatal.Error())
}
