package profiler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/parser"
)

const testLisp = `
(defun add-it (x y)
  "Add X and Y.
@trace{ Add It }"
  (+ x y))
(defun add-it-again (x y)
  "@trace{ Add It Again }"
  (add-it x y))
(defun untraced (x) (* x 2))
(defun recurse-it (x)
  (if (< x 4)
      (recurse-it (- x 1))
    (add-it x 3)))
(defun traced-lambda ()
  "@trace"
  (funcall (lambda (z) (untraced z)) 4))
(add-it 1 2)
(untraced (recurse-it 5))
(add-it-again 3 4)
(traced-lambda)
`

func runProfiled(t *testing.T, rt *lisp.Runtime, p lisp.Profiler) {
	t.Helper()
	c, err := rt.NewContext(lisp.WithReader(parser.NewReader()), lisp.WithProfiler(p))
	require.NoError(t, err)
	defer c.Close()
	_, err = c.LoadString("test.el", testLisp)
	require.NoError(t, err)
}
