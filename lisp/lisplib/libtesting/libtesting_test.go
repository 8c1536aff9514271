// Copyright © 2018 The ELPS authors

package libtesting_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/lisplib/libtesting"
	"github.com/luthersystems/elisp/parser"
)

const suite = `
(ert-deftest arith-ok ()
  "Addition works."
  (should (= (+ 1 2) 3))
  (should-not (= 1 2)))

(ert-deftest arith-bad ()
  :tags '(slow)
  (should (= (+ 1 1) 3)))

(ert-deftest errors-ok ()
  (should (equal (should-error (car 1) :type 'wrong-type-argument)
                 '(wrong-type-argument listp 1)))
  (should-error (signal 'arith-error nil)))

(ert-deftest errors-bad ()
  (should-error (+ 1 2)))

(ert-deftest skipped ()
  (ert-skip "not today"))
`

func newContext(t *testing.T, out *bytes.Buffer) *lisp.Context {
	t.Helper()
	c, err := lisp.New(lisp.WithReader(parser.NewReader()), lisp.WithStdout(out))
	require.NoError(t, err)
	libtesting.Install(c.Runtime())
	t.Cleanup(c.Close)
	_, err = c.LoadString("suite.el", suite)
	require.NoError(t, err)
	return c
}

func TestTests(t *testing.T) {
	c := newContext(t, &bytes.Buffer{})
	var names []string
	for _, test := range libtesting.Tests(c.Runtime()) {
		names = append(names, test.Name)
	}
	assert.Equal(t, []string{"arith-ok", "arith-bad", "errors-ok", "errors-bad", "skipped"}, names)
	assert.Equal(t, "Addition works.", libtesting.Tests(c.Runtime())[0].Doc)

	// Redefinition keeps the original position.
	_, err := c.EvalString(`(ert-deftest arith-ok () (should t))`)
	require.NoError(t, err)
	assert.Len(t, libtesting.Tests(c.Runtime()), 5)
}

func TestRun(t *testing.T) {
	c := newContext(t, &bytes.Buffer{})
	rt := c.Runtime()

	r, err := libtesting.Run(c, "arith-ok")
	require.NoError(t, err)
	assert.True(t, r.Passed)

	r, err = libtesting.Run(c, "arith-bad")
	require.NoError(t, err)
	assert.False(t, r.Passed)
	require.NotNil(t, r.Condition)
	assert.Equal(t, rt.Symbol("ert-test-failed"), r.Condition.Symbol)
	assert.Equal(t, "(((should (= (+ 1 1) 3)) :form (= (+ 1 1) 3) :value nil))", rt.Prin1String(r.Condition.Data))

	r, err = libtesting.Run(c, "errors-ok")
	require.NoError(t, err)
	assert.True(t, r.Passed, "%v", r.Condition)

	r, err = libtesting.Run(c, "errors-bad")
	require.NoError(t, err)
	assert.False(t, r.Passed)

	r, err = libtesting.Run(c, "skipped")
	require.NoError(t, err)
	assert.True(t, r.Skipped)

	_, err = libtesting.Run(c, "no-such-test")
	assert.Error(t, err)
}

func TestRunTests(t *testing.T) {
	var out bytes.Buffer
	c := newContext(t, &out)
	v, err := c.EvalString(`(ert-run-tests)`)
	require.NoError(t, err)
	assert.Equal(t, "(2 . 2)", c.Runtime().Prin1String(v))
	assert.Contains(t, out.String(), "Running 5 tests")
	assert.Contains(t, out.String(), "FAILED  2/5  arith-bad")
	assert.Contains(t, out.String(), "Ran 5 tests, 2 results as expected, 2 unexpected")

	v, err = c.EvalString(`(ert-run-tests "^arith-")`)
	require.NoError(t, err)
	assert.Equal(t, "(1 . 1)", c.Runtime().Prin1String(v))

	v, err = c.EvalString(`(ert-run-tests 'errors-ok)`)
	require.NoError(t, err)
	assert.Equal(t, "(1 . 0)", c.Runtime().Prin1String(v))
}

func TestShouldInsideConditionCase(t *testing.T) {
	c := newContext(t, &bytes.Buffer{})
	v, err := c.EvalString(`(condition-case err (should (eq 'a 'b)) (ert-test-failed (car err)))`)
	require.NoError(t, err)
	assert.Equal(t, c.Runtime().Symbol("ert-test-failed"), v)
	assert.True(t, c.Featurep(c.Runtime().Symbol("ert")))
}
