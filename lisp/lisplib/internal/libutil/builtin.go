// Copyright © 2018 The ELPS authors

package libutil

import (
	"strings"

	"github.com/luthersystems/elisp/lisp"
)

func Function(name string, min, max int, fun lisp.NativeFunc) *Builtin {
	return &Builtin{name: name, min: min, max: max, fun: fun}
}

func FunctionDoc(name string, min, max int, fun lisp.NativeFunc, docs string) *Builtin {
	return &Builtin{name: name, min: min, max: max, fun: fun, docs: docs}
}

// MacroDoc returns a macro whose expander fun receives the unevaluated
// argument forms.
func MacroDoc(name string, min, max int, fun lisp.NativeFunc, docs string) *Builtin {
	return &Builtin{name: name, min: min, max: max, fun: fun, docs: docs, macro: true}
}

type Builtin struct {
	name  string
	min   int
	max   int
	fun   lisp.NativeFunc
	docs  string
	macro bool
}

func (fun *Builtin) Name() string {
	return fun.name
}

func (fun *Builtin) Docstring() string {
	return fun.docs
}

// Install defines each builtin in the function cell of its symbol.
func Install(rt *lisp.Runtime, builtins []*Builtin) {
	for _, fn := range builtins {
		if fn.macro {
			rt.DefMacro(fn.name, fn.min, fn.max, fn.fun, cleanDoc(fn.docs))
			continue
		}
		rt.DefSubr(fn.name, fn.min, fn.max, fn.fun, cleanDoc(fn.docs))
	}
}

func cleanDoc(doc string) string {
	lines := strings.Split(doc, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, "\n")
}
