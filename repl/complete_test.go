// Copyright © 2018 The ELPS authors

package repl

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/luthersystems/elisp/lisp"
)

func TestSymbolCompleter(t *testing.T) {
	rt := lisp.StandardRuntime()
	rt.Symbol("my-unique-symbol")
	c := &symbolCompleter{symbols: rt.Symbols}

	candidates, offset := c.Do([]rune("(de"), 3)
	assert.Equal(t, 2, offset)
	assert.Contains(t, candidates, []rune("fun"))
	assert.Contains(t, candidates, []rune("fvar"))

	candidates, offset = c.Do([]rune("(car 'my-uni"), 12)
	assert.Equal(t, 6, offset)
	assert.Equal(t, [][]rune{[]rune("que-symbol")}, candidates)

	candidates, _ = c.Do([]rune("(zzz-nonexistent"), 16)
	assert.Empty(t, candidates)

	candidates, offset = c.Do([]rune("(car "), 5)
	assert.Empty(t, candidates)
	assert.Zero(t, offset)
}
