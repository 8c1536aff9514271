// Copyright © 2024 The ELPS authors

package lisplib_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/lisplib"
)

func TestLoadLibrary_ProvidesFeatures(t *testing.T) {
	c, err := lisplib.NewContext()
	require.NoError(t, err)
	defer c.Close()
	rt := c.Runtime()
	for _, lib := range lisplib.Libraries {
		t.Run(lib.Feature, func(t *testing.T) {
			assert.True(t, c.Featurep(rt.Symbol(lib.Feature)))
			v, err := c.EvalString("(require '" + lib.Feature + ")")
			require.NoError(t, err)
			assert.Equal(t, rt.Symbol(lib.Feature), v)
		})
	}
}

func TestLoadLibrary_Idempotent(t *testing.T) {
	rt := lisp.StandardRuntime()
	lisplib.LoadLibrary(rt)
	lisplib.LoadLibrary(rt)
	v, _ := rt.SymbolValue(rt.Symbol("features"))
	count := 0
	for _, f := range rt.ToSlice(v) {
		if f == rt.Symbol("json") {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestLoadLibrary_Interop(t *testing.T) {
	c, err := lisplib.NewContext()
	require.NoError(t, err)
	defer c.Close()
	v, err := c.EvalString(`
(let ((obj (json-parse-string "{\"at\": 86400}" :object-type 'alist)))
  (format-time-string "%Y-%m-%d" (cdr (assq 'at obj)) t))`)
	require.NoError(t, err)
	assert.Equal(t, `"1970-01-02"`, c.Runtime().Prin1String(v))
}
