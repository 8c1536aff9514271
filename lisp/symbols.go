// Copyright © 2018 The ELPS authors

package lisp

import "sort"

var langSymbolBuiltins = []*langBuiltin{
	{"intern", 1, 2, builtinIntern, `Returns the canonical symbol named NAME, creating it if necessary.`},
	{"intern-soft", 1, 2, builtinInternSoft, `Returns the canonical symbol named NAME, or nil if there is none.`},
	{"unintern", 1, 2, builtinUnintern, `Removes the symbol NAME from the obarray.  Returns t if it was interned.`},
	{"make-symbol", 1, 1, builtinMakeSymbol, `Returns a new uninterned symbol named NAME.`},
	{"gensym", 0, 1, builtinGensym, `Returns a new uninterned symbol named PREFIX followed by a counter.`},
	{"symbol-name", 1, 1, builtinSymbolName, `Returns the name of SYMBOL as a string.`},
	{"bare-symbol", 1, 1, builtinBareSymbol, `Returns SYMBOL.`},
	{"symbol-value", 1, 1, builtinSymbolValue, `Returns the dynamic value of SYMBOL.  Signals void-variable if it has none.`},
	{"symbol-function", 1, 1, builtinSymbolFunction, `Returns the function definition of SYMBOL, or nil.`},
	{"indirect-function", 1, 2, builtinIndirectFunction, `Follows the function cells of symbols starting at OBJECT.`},
	{"indirect-variable", 1, 1, builtinIndirectVariable, `Returns the variable at the end of the alias chain of OBJECT.`},
	{"symbol-plist", 1, 1, builtinSymbolPlist, `Returns the property list of SYMBOL.`},
	{"setplist", 2, 2, builtinSetplist, `Sets the property list of SYMBOL to NEWPLIST.`},
	{"get", 2, 2, builtinGet, `Returns the value of property PROPNAME of SYMBOL.`},
	{"put", 3, 3, builtinPut, `Stores VALUE as property PROPNAME of SYMBOL and returns VALUE.`},
	{"set", 2, 2, builtinSet, `Sets the dynamic value of SYMBOL to NEWVAL.`},
	{"fset", 2, 2, builtinFset, `Sets the function definition of SYMBOL to DEFINITION.`},
	{"defalias", 2, 3, builtinDefalias, `Sets the function definition of SYMBOL and records DOCSTRING.`},
	{"defvaralias", 2, 3, builtinDefvaralias, `Makes NEW-ALIAS a variable alias for BASE-VARIABLE.`},
	{"boundp", 1, 1, builtinBoundp, `Returns t if SYMBOL has a dynamic value.`},
	{"fboundp", 1, 1, builtinFboundp, `Returns t if SYMBOL has a function definition.`},
	{"makunbound", 1, 1, builtinMakunbound, `Makes the value of SYMBOL void.`},
	{"fmakunbound", 1, 1, builtinFmakunbound, `Makes the function definition of SYMBOL void.`},
	{"special-variable-p", 1, 1, builtinSpecialVariablep, `Returns t if SYMBOL was declared special by defvar or defconst.`},
	{"default-value", 1, 1, builtinDefaultValue, `Returns the value of SYMBOL outside of any dynamic binding.`},
	{"default-boundp", 1, 1, builtinDefaultBoundp, `Returns t if SYMBOL has a value outside of any dynamic binding.`},
	{"set-default", 2, 2, builtinSetDefault, `Sets the value of SYMBOL outside of any dynamic binding.`},
	{"make-variable-buffer-local", 1, 1, builtinMakeVariableBufferLocal,
		`Marks VARIABLE buffer local.  Without buffers this only records the
		declaration and makes the variable special.`},
	{"local-variable-p", 1, 2, builtinIgnore, `Returns nil.  There are no buffer local bindings.`},
	{"mapatoms", 1, 2, builtinMapatoms, `Calls FUNCTION on each interned symbol.`},
	{"define-error", 2, 3, builtinDefineError,
		`Defines NAME as an error symbol with MESSAGE.  PARENT is a condition
		or list of conditions, default error.`},
	{"func-arity", 1, 1, builtinFuncArity, `Returns (MIN . MAX) for FUNCTION.  MAX is many or unevalled when unbounded.`},
}

func builtinIntern(c *Context, args []Value) (Value, error) {
	name, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	return c.rt.Symbol(name), nil
}

func builtinInternSoft(c *Context, args []Value) (Value, error) {
	v := args[0]
	if v.IsSymbol() {
		id, ok := c.rt.Symbols.InternSoft(c.rt.SymbolName(v))
		if !ok || id != v.Symbol() {
			return Nil, nil
		}
		return v, nil
	}
	name, err := c.checkString(v)
	if err != nil {
		return Nil, err
	}
	id, ok := c.rt.Symbols.InternSoft(name)
	if !ok {
		return Nil, nil
	}
	return symbolValue(id), nil
}

func builtinUnintern(c *Context, args []Value) (Value, error) {
	v := args[0]
	var id SymbolID
	if v.IsSymbol() {
		id = v.Symbol()
	} else {
		name, err := c.checkString(v)
		if err != nil {
			return Nil, err
		}
		var ok bool
		if id, ok = c.rt.Symbols.InternSoft(name); !ok {
			return Nil, nil
		}
	}
	return Bool(c.rt.Symbols.Unintern(id)), nil
}

func builtinMakeSymbol(c *Context, args []Value) (Value, error) {
	name, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	return symbolValue(c.rt.Symbols.MakeSymbol(name)), nil
}

func builtinGensym(c *Context, args []Value) (Value, error) {
	prefix := "g"
	if v := optArg(args, 0); v.Truthy() {
		var err error
		if prefix, err = c.checkString(v); err != nil {
			return Nil, err
		}
	}
	return c.rt.Gensym(prefix), nil
}

func builtinSymbolName(c *Context, args []Value) (Value, error) {
	if _, err := c.checkSymbol(args[0]); err != nil {
		return Nil, err
	}
	return c.rt.String(c.rt.SymbolName(args[0])), nil
}

func builtinBareSymbol(c *Context, args []Value) (Value, error) {
	return c.checkSymbol(args[0])
}

// SymbolValue implements symbol-value.
func (c *Context) SymbolValue(sym Value) (Value, error) {
	if _, err := c.checkSymbol(sym); err != nil {
		return Nil, err
	}
	v, ok := c.rt.SymbolValue(sym)
	if !ok {
		return Nil, c.Signal(SymVoidVariable, sym)
	}
	return v, nil
}

func builtinSymbolValue(c *Context, args []Value) (Value, error) {
	return c.SymbolValue(args[0])
}

func builtinSymbolFunction(c *Context, args []Value) (Value, error) {
	if _, err := c.checkSymbol(args[0]); err != nil {
		return Nil, err
	}
	fn := c.rt.Sym(args[0]).Function
	if fn.IsUnbound() {
		return Nil, nil
	}
	return fn, nil
}

func builtinIndirectFunction(c *Context, args []Value) (Value, error) {
	fn, err := c.indirectFunction(args[0])
	if err != nil || fn.IsUnbound() {
		return Nil, err
	}
	return fn, nil
}

func builtinIndirectVariable(c *Context, args []Value) (Value, error) {
	if !args[0].IsSymbol() {
		return args[0], nil
	}
	return symbolValue(c.rt.varSymbol(args[0].Symbol())), nil
}

func builtinSymbolPlist(c *Context, args []Value) (Value, error) {
	if _, err := c.checkSymbol(args[0]); err != nil {
		return Nil, err
	}
	return c.rt.Sym(args[0]).Plist, nil
}

func builtinSetplist(c *Context, args []Value) (Value, error) {
	if _, err := c.checkSymbol(args[0]); err != nil {
		return Nil, err
	}
	c.rt.Sym(args[0]).Plist = args[1]
	return args[1], nil
}

func builtinGet(c *Context, args []Value) (Value, error) {
	if _, err := c.checkSymbol(args[0]); err != nil {
		return Nil, err
	}
	return c.rt.Get(args[0], args[1]), nil
}

func builtinPut(c *Context, args []Value) (Value, error) {
	if _, err := c.checkSymbol(args[0]); err != nil {
		return Nil, err
	}
	c.rt.Put(args[0], args[1], args[2])
	return args[2], nil
}

// Set implements set.  Lexical bindings are not affected.
func (c *Context) Set(sym, val Value) (Value, error) {
	if _, err := c.checkSymbol(sym); err != nil {
		return Nil, err
	}
	return val, c.setDynamic(sym, val)
}

func builtinSet(c *Context, args []Value) (Value, error) {
	return c.Set(args[0], args[1])
}

// Fset implements fset.
func (c *Context) Fset(sym, def Value) (Value, error) {
	if _, err := c.checkSymbol(sym); err != nil {
		return Nil, err
	}
	if sym.IsNil() && def.Truthy() {
		return Nil, c.Signal(SymSettingConstant, sym)
	}
	c.rt.Sym(sym).Function = def
	if def.tag == TagFunction {
		if f := c.rt.Fun(def); f.Name == "" && f.Kind != FuncNative {
			f.Name = c.rt.SymbolName(sym)
		}
	}
	return def, nil
}

func builtinFset(c *Context, args []Value) (Value, error) {
	return c.Fset(args[0], args[1])
}

// Defalias implements defalias.
func (c *Context) Defalias(sym, def, doc Value) (Value, error) {
	if _, err := c.Fset(sym, def); err != nil {
		return Nil, err
	}
	if doc.Truthy() {
		c.rt.Put(sym, c.sym("function-documentation"), doc)
	}
	return sym, nil
}

func builtinDefalias(c *Context, args []Value) (Value, error) {
	return c.Defalias(args[0], args[1], optArg(args, 2))
}

func builtinDefvaralias(c *Context, args []Value) (Value, error) {
	alias, base := args[0], args[1]
	if _, err := c.checkSymbol(alias); err != nil {
		return Nil, err
	}
	if _, err := c.checkSymbol(base); err != nil {
		return Nil, err
	}
	s := c.rt.Sym(alias)
	if s.Is(SymConstantVar) {
		return Nil, c.Errorf("Cannot make a constant an alias: %s", s.Name)
	}
	if c.rt.varSymbol(base.Symbol()) == alias.Symbol() {
		return Nil, c.Signal(SymCyclicFunctionIndirection, base)
	}
	b := c.rt.Sym(base)
	if b.Value.IsUnbound() && !s.Value.IsUnbound() {
		b.Value = s.Value
	}
	s.Alias = base
	s.Flags |= SymSpecialVar
	b.Flags |= SymSpecialVar
	if doc := optArg(args, 2); doc.Truthy() {
		c.rt.Put(alias, c.sym("variable-documentation"), doc)
	}
	return base, nil
}

func builtinBoundp(c *Context, args []Value) (Value, error) {
	if _, err := c.checkSymbol(args[0]); err != nil {
		return Nil, err
	}
	_, ok := c.rt.SymbolValue(args[0])
	return Bool(ok), nil
}

func builtinFboundp(c *Context, args []Value) (Value, error) {
	if _, err := c.checkSymbol(args[0]); err != nil {
		return Nil, err
	}
	fn := c.rt.Sym(args[0]).Function
	return Bool(!fn.IsUnbound() && !fn.IsNil()), nil
}

func builtinMakunbound(c *Context, args []Value) (Value, error) {
	if _, err := c.checkSymbol(args[0]); err != nil {
		return Nil, err
	}
	return args[0], c.setDynamic(args[0], Unbound)
}

func builtinFmakunbound(c *Context, args []Value) (Value, error) {
	if _, err := c.checkSymbol(args[0]); err != nil {
		return Nil, err
	}
	if args[0].IsNil() {
		return Nil, c.Signal(SymSettingConstant, args[0])
	}
	c.rt.Sym(args[0]).Function = Unbound
	return args[0], nil
}

func builtinSpecialVariablep(c *Context, args []Value) (Value, error) {
	if _, err := c.checkSymbol(args[0]); err != nil {
		return Nil, err
	}
	return Bool(c.rt.Sym(args[0]).Is(SymSpecialVar)), nil
}

// DefaultValue returns the value of sym outside every dynamic binding.
func (c *Context) DefaultValue(sym Value) (Value, bool) {
	id := c.rt.varSymbol(sym.Symbol())
	for i := range c.specpdl {
		b := &c.specpdl[i]
		if b.kind == specLet && b.sym == id {
			return b.old, !b.old.IsUnbound()
		}
	}
	v := c.rt.Symbols.Get(id).Value
	return v, !v.IsUnbound()
}

func builtinDefaultValue(c *Context, args []Value) (Value, error) {
	if _, err := c.checkSymbol(args[0]); err != nil {
		return Nil, err
	}
	v, ok := c.DefaultValue(args[0])
	if !ok {
		return Nil, c.Signal(SymVoidVariable, args[0])
	}
	return v, nil
}

func builtinDefaultBoundp(c *Context, args []Value) (Value, error) {
	if _, err := c.checkSymbol(args[0]); err != nil {
		return Nil, err
	}
	_, ok := c.DefaultValue(args[0])
	return Bool(ok), nil
}

func builtinSetDefault(c *Context, args []Value) (Value, error) {
	if _, err := c.checkSymbol(args[0]); err != nil {
		return Nil, err
	}
	return args[1], c.setDefault(args[0], args[1])
}

func builtinMakeVariableBufferLocal(c *Context, args []Value) (Value, error) {
	if _, err := c.checkSymbol(args[0]); err != nil {
		return Nil, err
	}
	s := c.rt.Symbols.Get(c.rt.varSymbol(args[0].Symbol()))
	s.Flags |= SymBufferLocal | SymSpecialVar
	if s.Value.IsUnbound() {
		s.Value = Nil
	}
	return args[0], nil
}

func builtinMapatoms(c *Context, args []Value) (Value, error) {
	var syms []Value
	c.rt.Symbols.Each(func(id SymbolID, _ *Symbol) bool {
		syms = append(syms, symbolValue(id))
		return true
	})
	for _, s := range syms {
		if _, err := c.Funcall(args[0], s); err != nil {
			return Nil, err
		}
	}
	return Nil, nil
}

func builtinDefineError(c *Context, args []Value) (Value, error) {
	name := args[0]
	if _, err := c.checkSymbol(name); err != nil {
		return Nil, err
	}
	msg, err := c.checkString(args[1])
	if err != nil {
		return Nil, err
	}
	var parents []string
	switch p := optArg(args, 2); {
	case p.IsNil():
		parents = []string{"error"}
	case p.IsSymbol():
		parents = []string{c.rt.SymbolName(p)}
	default:
		items, err := c.listSlice(p)
		if err != nil {
			return Nil, err
		}
		for _, x := range items {
			if _, err := c.checkSymbol(x); err != nil {
				return Nil, err
			}
			parents = append(parents, c.rt.SymbolName(x))
		}
	}
	c.rt.DefineError(name, msg, parents...)
	return Nil, nil
}

// FuncArity returns the arity of a function designator.
func (c *Context) FuncArity(fn Value) (Arity, error) {
	resolved, err := c.indirectFunction(fn)
	if err != nil {
		return Arity{}, err
	}
	switch resolved.tag {
	case TagFunction:
		f := c.rt.Fun(resolved)
		if f.Kind == FuncCompiled {
			return c.rt.byteCodeArity(f.Code), nil
		}
		return f.Arity, nil
	case TagCons:
		rt := c.rt
		switch rt.Car(resolved) {
		case symbolValue(SymLambda), symbolValue(SymClosure):
			params := rt.Car(rt.Cdr(resolved))
			if rt.Car(resolved) == symbolValue(SymClosure) {
				params = rt.Car(rt.Cdr(rt.Cdr(resolved)))
			}
			if a, ok := c.rt.lambdaArity(params); ok {
				return a, nil
			}
		case symbolValue(SymMacro):
			return c.FuncArity(rt.Cdr(resolved))
		}
	}
	return Arity{}, c.Signal(SymInvalidFunction, fn)
}

func builtinFuncArity(c *Context, args []Value) (Value, error) {
	a, err := c.FuncArity(args[0])
	if err != nil {
		return Nil, err
	}
	max := Int(int64(a.Max))
	switch a.Max {
	case Many:
		max = c.sym("many")
	case Unevalled:
		max = c.sym("unevalled")
	}
	return c.rt.Cons(Int(int64(a.Min)), max), nil
}

// sortedSymbolNames returns the names of all interned symbols in order.
func (rt *Runtime) sortedSymbolNames() []string {
	var names []string
	rt.Symbols.Each(func(_ SymbolID, sym *Symbol) bool {
		names = append(names, sym.Name)
		return true
	})
	sort.Strings(names)
	return names
}
