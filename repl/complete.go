// Copyright © 2018 The ELPS authors

package repl

import (
	"sort"
	"strings"

	"github.com/luthersystems/elisp/lisp"
)

// symbolCompleter implements readline.AutoCompleter using the interned
// symbols of a runtime.
type symbolCompleter struct {
	symbols *lisp.SymbolTable
}

// Do returns the suffixes completing the symbol before pos.
func (c *symbolCompleter) Do(line []rune, pos int) ([][]rune, int) {
	start := pos
	for start > 0 && !isDelimiter(line[start-1]) {
		start--
	}
	prefix := string(line[start:pos])
	if prefix == "" {
		return nil, 0
	}
	names := c.symbols.Completions(prefix)
	if len(names) == 0 {
		return nil, 0
	}
	sort.Strings(names)
	result := make([][]rune, 0, len(names))
	for _, name := range names {
		result = append(result, []rune(strings.TrimPrefix(name, prefix)))
	}
	return result, len([]rune(prefix))
}

func isDelimiter(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '(', ')', '[', ']', '\'', '`', ',', '"', '#':
		return true
	}
	return false
}
