// Copyright © 2021 The ELPS authors

package libhelp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/parser"
)

const source = `
(defun help-double (x)
  "Double X.
  The result is always even."
  (* 2 x))
(defun help-nodoc () 1)
(defvar help-ten 10 "The number ten.")
`

func newContext(t *testing.T) *lisp.Context {
	t.Helper()
	c, err := lisp.New(lisp.WithReader(parser.NewReader()))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	Install(c.Runtime())
	_, err = c.LoadString("help.el", source)
	require.NoError(t, err)
	return c
}

func TestRenderSymbol(t *testing.T) {
	c := newContext(t)
	rt := c.Runtime()

	var b strings.Builder
	require.NoError(t, RenderSymbol(&b, c, rt.Symbol("help-double")))
	assert.Contains(t, b.String(), "help-double is ")
	assert.Contains(t, b.String(), "(help-double X)")
	assert.Contains(t, b.String(), "Double X.")

	b.Reset()
	require.NoError(t, RenderSymbol(&b, c, rt.Symbol("help-ten")))
	assert.Equal(t, "help-ten's value is 10\n\n  The number ten.\n", b.String())

	b.Reset()
	require.NoError(t, RenderSymbol(&b, c, rt.Symbol("help-nothing")))
	assert.Equal(t, "help-nothing is void as a variable and as a function.\n", b.String())

	assert.Error(t, RenderSymbol(&b, c, lisp.Int(1)))
}

func TestUndocumented(t *testing.T) {
	c := newContext(t)
	v, err := c.EvalString(`(help-undocumented "help-")`)
	require.NoError(t, err)
	assert.Equal(t, "(help-nodoc)", c.Runtime().Prin1String(v))

	var names []string
	for _, m := range CheckMissing(c) {
		names = append(names, m.Name)
		assert.NotContains(t, m.Name, "--")
	}
	assert.Contains(t, names, "help-nodoc")
	assert.NotContains(t, names, "help-double")
}

func TestDedent(t *testing.T) {
	assert.Equal(t, "first\nsecond\n  third", dedent("first\n\t\tsecond\n\t\t  third"))
	assert.Equal(t, "one line", dedent("one line"))
	assert.Equal(t, "  a\n  b", cleanDocstring("\na\n    b"))
}
