// Copyright © 2018 The ELPS authors

package lisp

import (
	"math"
)

// emptyLexEnv is the lexical environment containing no bindings.  A form
// evaluated in emptyLexEnv uses lexical binding while a form evaluated in
// the nil environment uses dynamic binding.
var emptyLexEnv = Value{tag: TagEnv, data: math.MaxUint32}

// IsLexicalEnv returns true if env selects lexical binding.
func IsLexicalEnv(env Value) bool {
	return env.tag == TagEnv
}

// EvalIn evaluates form in the lexical environment env from within a
// native function.
func (c *Context) EvalIn(form, env Value) (Value, error) {
	return c.eval(form, env)
}

// EvalForm evaluates form from within a native function, using lexical
// binding if lexical is true.
func (c *Context) EvalForm(form Value, lexical bool) (Value, error) {
	env := Nil
	if lexical {
		env = emptyLexEnv
	}
	return c.eval(form, env)
}

func (c *Context) eval(form, env Value) (Value, error) {
	switch form.tag {
	case TagSymbol:
		return c.evalSymbol(form, env)
	case TagCons:
	default:
		return form, nil
	}
	if err := c.enter(); err != nil {
		return Nil, err
	}
	defer c.leave()

	rt := c.rt
	head := rt.Car(form)
	fn := head
	if head.IsSymbol() {
		var err error
		fn, err = c.indirectFunction(head)
		if err != nil {
			return Nil, err
		}
		if fn.IsUnbound() || fn.IsNil() {
			return Nil, c.Signal(SymVoidFunction, head)
		}
	} else if head.IsCons() && rt.Car(head) == symbolValue(SymLambda) {
		fn = c.makeClosure(head, env)
	}

	switch fn.tag {
	case TagFunction:
		fun := rt.Fun(fn)
		if fun.Special != nil {
			return fun.Special(c, rt.Cdr(form), env)
		}
		if fun.Kind == FuncMacro {
			return c.evalMacro(fun.Expander, form, env)
		}
	case TagCons:
		if rt.Car(fn) == symbolValue(SymMacro) {
			return c.evalMacro(rt.Cdr(fn), form, env)
		}
	}

	f := c.pushFrame(head, make([]Value, 0, 4))
	defer c.popFrame()
	f.env = env
	mark := c.pin(fn)
	defer c.unpin(mark)
	for args := rt.Cdr(form); args.IsCons(); args = rt.Cdr(args) {
		v, err := c.eval(rt.Car(args), env)
		if err != nil {
			return Nil, err
		}
		f.args = append(f.args, v)
	}
	return c.apply(fn, f)
}

func (c *Context) evalMacro(expander, form, env Value) (Value, error) {
	rt := c.rt
	var args []Value
	for a := rt.Cdr(form); a.IsCons(); a = rt.Cdr(a) {
		args = append(args, rt.Car(a))
	}
	exp, err := c.Funcall(expander, args...)
	if err != nil {
		return Nil, err
	}
	mark := c.pin(exp)
	defer c.unpin(mark)
	return c.eval(exp, env)
}

func (c *Context) evalSymbol(form, env Value) (Value, error) {
	id := form.Symbol()
	if b := c.lookupLexical(env, id); b != nil {
		return b.val, nil
	}
	v := c.rt.Symbols.Get(c.rt.varSymbol(id)).Value
	if v.IsUnbound() {
		return Nil, c.Signal(SymVoidVariable, form)
	}
	return v, nil
}

func (c *Context) lookupLexical(env Value, id SymbolID) *binding {
	for e := env; e.tag == TagEnv && e != emptyLexEnv; {
		fr := c.rt.env(e)
		for i := len(fr.vars) - 1; i >= 0; i-- {
			if fr.vars[i].sym == id {
				return &fr.vars[i]
			}
		}
		e = fr.parent
	}
	return nil
}

// setVariable assigns sym in env as setq does.
func (c *Context) setVariable(sym Value, val Value, env Value) error {
	if !sym.IsSymbol() {
		return c.WrongType(SymSymbolp, sym)
	}
	if b := c.lookupLexical(env, sym.Symbol()); b != nil {
		b.val = val
		return nil
	}
	return c.setDynamic(sym, val)
}

func (c *Context) setDynamic(sym Value, val Value) error {
	s := c.rt.Symbols.Get(c.rt.varSymbol(sym.Symbol()))
	if s.Is(SymConstantVar) {
		return c.Signal(SymSettingConstant, sym)
	}
	s.Value = val
	return nil
}

// progn evaluates each form in body and returns the last value.
func (c *Context) progn(body, env Value) (Value, error) {
	val := Nil
	for ; body.IsCons(); body = c.rt.Cdr(body) {
		var err error
		val, err = c.eval(c.rt.Car(body), env)
		if err != nil {
			return Nil, err
		}
	}
	return val, nil
}

// indirectFunction follows the function cells of symbols until a
// non-symbol is found.  It returns Unbound when a cell is void.
func (c *Context) indirectFunction(fn Value) (Value, error) {
	const maxIndirection = 100
	orig := fn
	for i := 0; fn.IsSymbol() && !fn.IsNil(); i++ {
		if i > maxIndirection {
			return Nil, c.Signal(SymCyclicFunctionIndirection, orig)
		}
		fn = c.rt.Sym(fn).Function
	}
	return fn, nil
}

// Funcall calls fn with args from within a native function.  fn may be a
// symbol or any function value.  The caller must ensure args are reachable
// from a root (they are once Funcall has been entered).
func (c *Context) Funcall(fn Value, args ...Value) (Value, error) {
	f := c.pushFrame(fn, args)
	defer c.popFrame()
	if err := c.enter(); err != nil {
		return Nil, err
	}
	defer c.leave()
	resolved := fn
	if fn.IsSymbol() {
		var err error
		resolved, err = c.indirectFunction(fn)
		if err != nil {
			return Nil, err
		}
		if resolved.IsUnbound() || resolved.IsNil() {
			return Nil, c.Signal(SymVoidFunction, fn)
		}
	}
	mark := c.pin(resolved)
	defer c.unpin(mark)
	return c.apply(resolved, f)
}

// apply calls the resolved function fn with the arguments in f.
func (c *Context) apply(fn Value, f *frame) (Value, error) {
	if p := c.rt.Profiler; p != nil && p.IsEnabled() {
		defer p.Start(c, f.fn)()
	}
	rt := c.rt
	switch fn.tag {
	case TagFunction:
		fun := rt.Fun(fn)
		switch fun.Kind {
		case FuncNative:
			if fun.Special != nil {
				return Nil, c.Signal(SymInvalidFunction, fn)
			}
			if !fun.Arity.Accepts(len(f.args)) {
				return Nil, c.Signal(SymWrongNumberOfArguments, fn, Int(int64(len(f.args))))
			}
			return fun.Native(c, f.args)
		case FuncInterpreted:
			return c.applyLambda(fn, fun.Args, fun.Body, fun.Env, f)
		case FuncCompiled:
			return c.execByteCode(fn, fun, f.args)
		}
	case TagCons:
		if rt.Car(fn) == symbolValue(SymLambda) {
			rest := rt.Cdr(fn)
			return c.applyLambda(fn, rt.Car(rest), rt.Cdr(rest), Nil, f)
		}
	}
	return Nil, c.Signal(SymInvalidFunction, fn)
}

// lambdaArity parses a lambda list.
func (rt *Runtime) lambdaArity(params Value) (Arity, bool) {
	var a Arity
	opt, rest := false, false
	n := 0
	for p := params; ; p = rt.Cdr(p) {
		if p.IsNil() {
			break
		}
		if !p.IsCons() {
			return a, false
		}
		sym := rt.Car(p)
		if !sym.IsSymbol() {
			return a, false
		}
		switch sym.Symbol() {
		case SymOptional:
			opt = true
			continue
		case SymRest:
			rest = true
			continue
		}
		switch {
		case rest:
			a.Max = Many
			return a, rt.Cdr(p).IsNil()
		case opt:
			n++
		default:
			a.Min++
			n++
		}
	}
	a.Max = n
	return a, true
}

func (c *Context) applyLambda(fnv, params, body, env Value, f *frame) (Value, error) {
	rt := c.rt
	arity, ok := c.rt.lambdaArity(params)
	if !ok {
		return Nil, c.Signal(SymInvalidFunction, fnv)
	}
	args := f.args
	if !arity.Accepts(len(args)) {
		return Nil, c.Signal(SymWrongNumberOfArguments, fnv, Int(int64(len(args))))
	}
	depth := len(c.specpdl)
	lexical := IsLexicalEnv(env)
	var vars []binding
	i := 0
	rest := false
	for p := params; p.IsCons(); p = rt.Cdr(p) {
		sym := rt.Car(p)
		switch sym.Symbol() {
		case SymOptional:
			continue
		case SymRest:
			rest = true
			continue
		}
		val := Nil
		if rest {
			if i < len(args) {
				val = rt.List(args[i:]...)
			}
			i = len(args)
		} else if i < len(args) {
			val = args[i]
			i++
		}
		if lexical && !rt.Sym(sym).Is(SymSpecialVar) {
			vars = append(vars, binding{sym: sym.Symbol(), val: val})
			continue
		}
		if err := c.specbind(sym.Symbol(), val); err != nil {
			return c.unbind(depth, Nil, err)
		}
	}
	if len(vars) > 0 {
		env = rt.newEnv(env, vars)
	}
	f.env = env
	val, err := c.progn(body, env)
	return c.unbind(depth, val, err)
}

// makeClosure turns a (lambda ARGS . BODY) form into a function value.  In
// dynamic binding mode the form itself is the function.
func (c *Context) makeClosure(form, env Value) Value {
	rt := c.rt
	if !IsLexicalEnv(env) {
		return form
	}
	rest := rt.Cdr(form)
	fn := Function{
		Kind:    FuncInterpreted,
		Args:    rt.Car(rest),
		Body:    rt.Cdr(rest),
		Env:     env,
		Lexical: true,
	}
	fn.Arity, _ = c.rt.lambdaArity(fn.Args)
	body := fn.Body
	if first := rt.Car(body); first.tag == TagString && rt.Cdr(body).IsCons() {
		fn.Doc = rt.StringVal(first)
	}
	return rt.NewFunction(fn)
}

// FunctionName returns a printable name for a function designator.
func (rt *Runtime) FunctionName(fn Value) string {
	switch fn.tag {
	case TagSymbol:
		return rt.SymbolName(fn)
	case TagFunction:
		f := rt.Fun(fn)
		if f.Name != "" {
			return f.Name
		}
		switch f.Kind {
		case FuncCompiled:
			return "byte-code"
		case FuncMacro:
			return "macro"
		}
		return "lambda"
	case TagCons:
		return "lambda"
	}
	return rt.Prin1String(fn)
}

// Functionp reports whether fn can be called with funcall.
func (c *Context) Functionp(fn Value) bool {
	rt := c.rt
	if fn.IsSymbol() {
		if fn.IsNil() {
			return false
		}
		var err error
		fn, err = c.indirectFunction(fn)
		if err != nil {
			return false
		}
	}
	switch fn.tag {
	case TagFunction:
		f := rt.Fun(fn)
		return f.Special == nil && f.Kind != FuncMacro
	case TagCons:
		return rt.Car(fn) == symbolValue(SymLambda)
	}
	return false
}

// Macroexpand1 expands form once if its head names a macro.
func (c *Context) Macroexpand1(form Value) (Value, bool, error) {
	rt := c.rt
	if !form.IsCons() {
		return form, false, nil
	}
	head := rt.Car(form)
	if !head.IsSymbol() {
		return form, false, nil
	}
	fn, err := c.indirectFunction(head)
	if err != nil {
		return Nil, false, err
	}
	var expander Value
	switch {
	case fn.tag == TagFunction && rt.Fun(fn).Kind == FuncMacro:
		expander = rt.Fun(fn).Expander
	case fn.IsCons() && rt.Car(fn) == symbolValue(SymMacro):
		expander = rt.Cdr(fn)
	default:
		return form, false, nil
	}
	var args []Value
	for a := rt.Cdr(form); a.IsCons(); a = rt.Cdr(a) {
		args = append(args, rt.Car(a))
	}
	mark := c.pin(form)
	defer c.unpin(mark)
	exp, err := c.Funcall(expander, args...)
	if err != nil {
		return Nil, false, err
	}
	return exp, true, nil
}

// Macroexpand expands form until its head is no longer a macro.
func (c *Context) Macroexpand(form Value) (Value, error) {
	mark := c.pin(form)
	defer c.unpin(mark)
	for {
		exp, expanded, err := c.Macroexpand1(form)
		if err != nil || !expanded {
			return exp, err
		}
		form = exp
		c.pins[mark] = form
	}
}
