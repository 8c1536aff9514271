// Copyright © 2018 The ELPS authors

package lisp

import (
	"strings"
)

// langBuiltin describes a native primitive or native macro installed when
// a Runtime is created.
type langBuiltin struct {
	name string
	min  int
	max  int
	fun  NativeFunc
	doc  string
}

// langSpecialOp describes a special form.
type langSpecialOp struct {
	name string
	fun  SpecialFunc
	doc  string
}

var builtinTables = [][]*langBuiltin{
	langDataBuiltins,
	langListBuiltins,
	langSymbolBuiltins,
	langMathBuiltins,
	langStringBuiltins,
	langSearchBuiltins,
	langHashBuiltins,
	langPrintBuiltins,
	langEvalBuiltins,
	langIOBuiltins,
	langByteCodeBuiltins,
}

func (rt *Runtime) installBuiltins(tab []*langBuiltin) {
	for _, b := range tab {
		rt.DefSubr(b.name, b.min, b.max, b.fun, cleanDoc(b.doc))
	}
}

func (rt *Runtime) installLanguage() {
	for _, op := range langSpecialOps {
		rt.DefSpecialForm(op.name, op.fun, cleanDoc(op.doc))
	}
	for _, m := range langMacros {
		rt.DefMacro(m.name, m.min, m.max, m.fun, cleanDoc(m.doc))
	}
	for _, tab := range builtinTables {
		rt.installBuiltins(tab)
	}
}

// cleanDoc removes the source indentation of a docstring.
func cleanDoc(doc string) string {
	lines := strings.Split(doc, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, "\n")
}

// DefSubr registers a native primitive under name and installs it in the
// function cell of the symbol.  The evaluator's apply path and the VM call
// instruction both dispatch through the returned function value.
func (rt *Runtime) DefSubr(name string, min, max int, fn NativeFunc, doc string) Value {
	v := rt.NewFunction(Function{
		Kind:   FuncNative,
		Name:   name,
		Arity:  Arity{Min: min, Max: max},
		Native: fn,
		Doc:    doc,
	})
	rt.subrs = append(rt.subrs, v)
	rt.Symbols.Get(rt.Symbols.Intern(name)).Function = v
	return v
}

// DefSpecialForm registers a special form.
func (rt *Runtime) DefSpecialForm(name string, fn SpecialFunc, doc string) Value {
	v := rt.NewFunction(Function{
		Kind:    FuncNative,
		Name:    name,
		Arity:   Arity{Min: 0, Max: Unevalled},
		Special: fn,
		Doc:     doc,
	})
	rt.subrs = append(rt.subrs, v)
	sym := rt.Symbols.Get(rt.Symbols.Intern(name))
	sym.Function = v
	sym.Flags |= SymSpecialForm
	return v
}

// DefMacro registers a macro whose expander is implemented in Go.
func (rt *Runtime) DefMacro(name string, min, max int, fn NativeFunc, doc string) Value {
	expander := rt.NewFunction(Function{
		Kind:   FuncNative,
		Name:   name,
		Arity:  Arity{Min: min, Max: max},
		Native: fn,
	})
	rt.subrs = append(rt.subrs, expander)
	v := rt.NewFunction(Function{
		Kind:     FuncMacro,
		Name:     name,
		Arity:    Arity{Min: min, Max: max},
		Expander: expander,
		Doc:      doc,
	})
	rt.subrs = append(rt.subrs, v)
	rt.Symbols.Get(rt.Symbols.Intern(name)).Function = v
	return v
}

// Argument checking helpers used by primitives.

func (c *Context) checkSymbol(v Value) (Value, error) {
	if !v.IsSymbol() {
		return Nil, c.WrongType(SymSymbolp, v)
	}
	return v, nil
}

func (c *Context) checkFixnum(v Value) (int64, error) {
	if !v.IsFixnum() {
		return 0, c.WrongType(SymFixnump, v)
	}
	return v.Fixnum(), nil
}

func (c *Context) checkNatnum(v Value) (int64, error) {
	if !v.IsFixnum() || v.Fixnum() < 0 {
		return 0, c.WrongType(SymNatnump, v)
	}
	return v.Fixnum(), nil
}

func (c *Context) checkString(v Value) (string, error) {
	if v.tag != TagString {
		return "", c.WrongType(SymStringp, v)
	}
	return c.rt.StringVal(v), nil
}

// checkStringOrSymbol returns the name of a symbol or the contents of a
// string.
func (c *Context) checkStringOrSymbol(v Value) (string, error) {
	switch v.tag {
	case TagString:
		return c.rt.StringVal(v), nil
	case TagSymbol:
		return c.rt.SymbolName(v), nil
	}
	return "", c.WrongType(SymStringp, v)
}

func (c *Context) checkList(v Value) error {
	if !v.IsList() {
		return c.WrongType(SymListp, v)
	}
	return nil
}

// listSlice returns the elements of a proper list.
func (c *Context) listSlice(v Value) ([]Value, error) {
	items, tail, ok := c.rt.listItems(v)
	if !ok {
		return nil, c.Signal(SymCircularList, v)
	}
	if !tail.IsNil() {
		return nil, c.WrongType(SymListp, v)
	}
	return items, nil
}

// sequenceSlice returns the elements of a list, vector or string.
func (c *Context) sequenceSlice(v Value) ([]Value, error) {
	switch v.tag {
	case TagVector, TagRecord:
		return append([]Value(nil), c.rt.Items(v)...), nil
	case TagString:
		var items []Value
		for _, r := range c.rt.StringVal(v) {
			items = append(items, Int(int64(r)))
		}
		return items, nil
	}
	if v.IsList() {
		return c.listSlice(v)
	}
	return nil, c.WrongType(SymSequencep, v)
}
