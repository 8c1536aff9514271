// Copyright © 2018 The ELPS authors

package lisp

var langSpecialOps = []*langSpecialOp{
	{"quote", opQuote,
		`Returns its argument unevaluated.  This is the operator behind
		the ' prefix syntax.`},
	{"function", opFunction,
		`Like quote but marks its argument as a function.  A lambda
		expression evaluated in lexical-binding mode becomes a closure
		over the current lexical environment.  This is the operator
		behind the #' prefix syntax.`},
	{"lambda", opLambda,
		`Returns an anonymous function, equivalent to (function (lambda
		ARGS . BODY)).`},
	{"if", opIf,
		`Evaluates COND.  If it is non-nil evaluates and returns THEN,
		otherwise evaluates the ELSE forms and returns the last value.`},
	{"cond", opCond,
		`Tries each clause (TEST BODY...) in order until a TEST evaluates
		non-nil, then evaluates its BODY.  A clause without BODY returns
		the value of TEST.`},
	{"and", opAnd,
		`Evaluates forms until one returns nil.  Returns the last value.`},
	{"or", opOr,
		`Evaluates forms until one returns non-nil and returns it.`},
	{"progn", opProgn,
		`Evaluates forms in order and returns the last value.`},
	{"prog1", opProg1,
		`Evaluates forms in order and returns the value of the first.`},
	{"prog2", opProg2,
		`Evaluates forms in order and returns the value of the second.`},
	{"while", opWhile,
		`Evaluates BODY repeatedly while TEST is non-nil.  Returns nil.`},
	{"let", opLet,
		`Binds variables in parallel and evaluates BODY.  Each binding is
		a symbol (bound to nil) or (SYMBOL VALUE).  Bindings are lexical in
		lexical-binding mode unless the variable is special.`},
	{"let*", opLetStar,
		`Like let but each binding is visible to the following ones.`},
	{"setq", opSetq,
		`Assigns each SYMBOL the value of the following form.  Returns the
		last value.`},
	{"defvar", opDefvar,
		`Declares SYMBOL as a special variable, assigning VALUE if the
		symbol is void.`},
	{"defconst", opDefconst,
		`Declares SYMBOL as a special variable and assigns it VALUE
		unconditionally.`},
	{"catch", opCatch,
		`Evaluates TAG then BODY.  A throw to an eq tag within BODY makes
		catch return the thrown value.`},
	{"unwind-protect", opUnwindProtect,
		`Evaluates BODYFORM and then the UNWINDFORMS, whether BODYFORM
		returns normally or exits non-locally.  Returns the value of
		BODYFORM.`},
	{"condition-case", opConditionCase,
		`Evaluates BODYFORM with condition handlers.  Each handler is
		(CONDITIONS BODY...).  When a matching condition is signaled VAR
		is bound to (ERROR-SYMBOL . DATA) and the handler BODY is
		evaluated.  A (:success BODY...) handler runs with VAR bound to
		the value of BODYFORM when it returns normally.`},
	{"interactive", opInteractive,
		`Declares a command.  Evaluates to nil.`},
}

// argForms returns the elements of a special form argument list, checking
// its length.
func (c *Context) argForms(name string, args Value, min, max int) ([]Value, error) {
	var forms []Value
	for ; args.IsCons(); args = c.rt.Cdr(args) {
		forms = append(forms, c.rt.Car(args))
	}
	if len(forms) < min || (max >= 0 && len(forms) > max) {
		return nil, c.Signal(SymWrongNumberOfArguments, c.rt.Symbol(name), Int(int64(len(forms))))
	}
	return forms, nil
}

func opQuote(c *Context, args, env Value) (Value, error) {
	forms, err := c.argForms("quote", args, 1, 1)
	if err != nil {
		return Nil, err
	}
	return forms[0], nil
}

func opFunction(c *Context, args, env Value) (Value, error) {
	forms, err := c.argForms("function", args, 1, 1)
	if err != nil {
		return Nil, err
	}
	arg := forms[0]
	if arg.IsCons() && c.rt.Car(arg) == symbolValue(SymLambda) {
		return c.makeClosure(arg, env), nil
	}
	return arg, nil
}

func opLambda(c *Context, args, env Value) (Value, error) {
	if !args.IsCons() {
		return Nil, c.Signal(SymWrongNumberOfArguments, symbolValue(SymLambda), Int(0))
	}
	form := c.rt.Cons(symbolValue(SymLambda), args)
	return c.makeClosure(form, env), nil
}

func opIf(c *Context, args, env Value) (Value, error) {
	rt := c.rt
	if _, err := c.argForms("if", args, 2, Many); err != nil {
		return Nil, err
	}
	test, err := c.eval(rt.Car(args), env)
	if err != nil {
		return Nil, err
	}
	if test.Truthy() {
		return c.eval(rt.Car(rt.Cdr(args)), env)
	}
	return c.progn(rt.Cdr(rt.Cdr(args)), env)
}

func opCond(c *Context, args, env Value) (Value, error) {
	rt := c.rt
	for ; args.IsCons(); args = rt.Cdr(args) {
		clause := rt.Car(args)
		if !clause.IsList() {
			return Nil, c.WrongType(SymListp, clause)
		}
		test, err := c.eval(rt.Car(clause), env)
		if err != nil {
			return Nil, err
		}
		if test.IsNil() {
			continue
		}
		if body := rt.Cdr(clause); body.IsCons() {
			return c.progn(body, env)
		}
		return test, nil
	}
	return Nil, nil
}

func opAnd(c *Context, args, env Value) (Value, error) {
	val := T
	for ; args.IsCons(); args = c.rt.Cdr(args) {
		var err error
		val, err = c.eval(c.rt.Car(args), env)
		if err != nil || val.IsNil() {
			return val, err
		}
	}
	return val, nil
}

func opOr(c *Context, args, env Value) (Value, error) {
	for ; args.IsCons(); args = c.rt.Cdr(args) {
		val, err := c.eval(c.rt.Car(args), env)
		if err != nil || val.Truthy() {
			return val, err
		}
	}
	return Nil, nil
}

func opProgn(c *Context, args, env Value) (Value, error) {
	return c.progn(args, env)
}

func opProg1(c *Context, args, env Value) (Value, error) {
	if !args.IsCons() {
		return Nil, c.Signal(SymWrongNumberOfArguments, symbolValue(SymProg1), Int(0))
	}
	first, err := c.eval(c.rt.Car(args), env)
	if err != nil {
		return Nil, err
	}
	mark := c.pin(first)
	defer c.unpin(mark)
	if _, err := c.progn(c.rt.Cdr(args), env); err != nil {
		return Nil, err
	}
	return first, nil
}

func opProg2(c *Context, args, env Value) (Value, error) {
	if _, err := c.argForms("prog2", args, 2, Many); err != nil {
		return Nil, err
	}
	if _, err := c.eval(c.rt.Car(args), env); err != nil {
		return Nil, err
	}
	return opProg1(c, c.rt.Cdr(args), env)
}

func opWhile(c *Context, args, env Value) (Value, error) {
	rt := c.rt
	if !args.IsCons() {
		return Nil, c.Signal(SymWrongNumberOfArguments, symbolValue(SymWhile), Int(0))
	}
	for {
		test, err := c.eval(rt.Car(args), env)
		if err != nil {
			return Nil, err
		}
		if test.IsNil() {
			return Nil, nil
		}
		if _, err := c.progn(rt.Cdr(args), env); err != nil {
			return Nil, err
		}
		// Loops with an empty body must still reach a safe point.
		if err := c.enter(); err != nil {
			return Nil, err
		}
		c.leave()
	}
}

// letBinding splits a let binding into its variable and init form.
func (c *Context) letBinding(b Value) (Value, Value, error) {
	rt := c.rt
	if b.IsSymbol() {
		return b, Nil, nil
	}
	if !b.IsCons() || !rt.Car(b).IsSymbol() {
		return Nil, Nil, c.WrongType(SymSymbolp, b)
	}
	rest := rt.Cdr(b)
	if rest.IsCons() && rt.Cdr(rest).IsCons() {
		return Nil, Nil, c.Errorf("`let' bindings can have only one value-form: %s", rt.Prin1String(b))
	}
	return rt.Car(b), rt.Car(rest), nil
}

func opLet(c *Context, args, env Value) (Value, error) {
	rt := c.rt
	if !args.IsCons() {
		return Nil, c.Signal(SymWrongNumberOfArguments, symbolValue(SymLet), Int(0))
	}
	var syms []Value
	mark := c.pin()
	defer c.unpin(mark)
	for bs := rt.Car(args); bs.IsCons(); bs = rt.Cdr(bs) {
		sym, init, err := c.letBinding(rt.Car(bs))
		if err != nil {
			return Nil, err
		}
		val, err := c.eval(init, env)
		if err != nil {
			return Nil, err
		}
		syms = append(syms, sym)
		c.pin(val)
	}
	vals := c.pins[mark:]
	depth := len(c.specpdl)
	lexical := IsLexicalEnv(env)
	var vars []binding
	for i, sym := range syms {
		if lexical && !rt.Sym(sym).Is(SymSpecialVar) {
			vars = append(vars, binding{sym: sym.Symbol(), val: vals[i]})
			continue
		}
		if err := c.specbind(sym.Symbol(), vals[i]); err != nil {
			return c.unbind(depth, Nil, err)
		}
	}
	if len(vars) > 0 {
		env = rt.newEnv(env, vars)
		c.pin(env)
	}
	val, err := c.progn(rt.Cdr(args), env)
	return c.unbind(depth, val, err)
}

func opLetStar(c *Context, args, env Value) (Value, error) {
	rt := c.rt
	if !args.IsCons() {
		return Nil, c.Signal(SymWrongNumberOfArguments, symbolValue(SymLetStar), Int(0))
	}
	depth := len(c.specpdl)
	lexical := IsLexicalEnv(env)
	slot := c.pin(env)
	defer c.unpin(slot)
	for bs := rt.Car(args); bs.IsCons(); bs = rt.Cdr(bs) {
		sym, init, err := c.letBinding(rt.Car(bs))
		if err != nil {
			return c.unbind(depth, Nil, err)
		}
		val, err := c.eval(init, env)
		if err != nil {
			return c.unbind(depth, Nil, err)
		}
		if lexical && !rt.Sym(sym).Is(SymSpecialVar) {
			env = rt.newEnv(env, []binding{{sym: sym.Symbol(), val: val}})
			c.pins[slot] = env
			continue
		}
		if err := c.specbind(sym.Symbol(), val); err != nil {
			return c.unbind(depth, Nil, err)
		}
	}
	val, err := c.progn(rt.Cdr(args), env)
	return c.unbind(depth, val, err)
}

func opSetq(c *Context, args, env Value) (Value, error) {
	rt := c.rt
	val := Nil
	n := 0
	for a := args; a.IsCons(); a = rt.Cdr(rt.Cdr(a)) {
		n += 2
		if !rt.Cdr(a).IsCons() {
			return Nil, c.Signal(SymWrongNumberOfArguments, symbolValue(SymSetq), Int(int64(n-1)))
		}
		sym := rt.Car(a)
		var err error
		val, err = c.eval(rt.Car(rt.Cdr(a)), env)
		if err != nil {
			return Nil, err
		}
		if err := c.setVariable(sym, val, env); err != nil {
			return Nil, err
		}
	}
	return val, nil
}

func opDefvar(c *Context, args, env Value) (Value, error) {
	rt := c.rt
	forms, err := c.argForms("defvar", args, 1, 3)
	if err != nil {
		return Nil, err
	}
	sym := forms[0]
	if !sym.IsSymbol() {
		return Nil, c.WrongType(SymSymbolp, sym)
	}
	s := rt.Sym(sym)
	s.Flags |= SymSpecialVar
	if len(forms) > 1 && s.Value.IsUnbound() {
		val, err := c.eval(forms[1], env)
		if err != nil {
			return Nil, err
		}
		if err := c.setDefault(sym, val); err != nil {
			return Nil, err
		}
	}
	if len(forms) > 2 {
		rt.Put(sym, rt.Symbol("variable-documentation"), forms[2])
	}
	return sym, nil
}

func opDefconst(c *Context, args, env Value) (Value, error) {
	rt := c.rt
	forms, err := c.argForms("defconst", args, 2, 3)
	if err != nil {
		return Nil, err
	}
	sym := forms[0]
	if !sym.IsSymbol() {
		return Nil, c.WrongType(SymSymbolp, sym)
	}
	val, err := c.eval(forms[1], env)
	if err != nil {
		return Nil, err
	}
	rt.Sym(sym).Flags |= SymSpecialVar
	if err := c.setDefault(sym, val); err != nil {
		return Nil, err
	}
	rt.Put(sym, rt.Symbol("risky-local-variable"), T)
	if len(forms) > 2 {
		rt.Put(sym, rt.Symbol("variable-documentation"), forms[2])
	}
	return sym, nil
}

// setDefault assigns the global value of sym, bypassing any dynamic
// bindings currently in effect.
func (c *Context) setDefault(sym, val Value) error {
	sym = symbolValue(c.rt.varSymbol(sym.Symbol()))
	s := c.rt.Sym(sym)
	if s.Is(SymConstantVar) {
		return c.Signal(SymSettingConstant, sym)
	}
	for i := range c.specpdl {
		b := &c.specpdl[i]
		if b.kind == specLet && b.sym == sym.Symbol() {
			b.old = val
			return nil
		}
	}
	s.Value = val
	return nil
}

func opCatch(c *Context, args, env Value) (Value, error) {
	rt := c.rt
	if !args.IsCons() {
		return Nil, c.Signal(SymWrongNumberOfArguments, symbolValue(SymCatch), Int(0))
	}
	tag, err := c.eval(rt.Car(args), env)
	if err != nil {
		return Nil, err
	}
	return c.Catch(tag, func() (Value, error) {
		return c.progn(rt.Cdr(args), env)
	})
}

// Catch establishes a catch for tag around body.
func (c *Context) Catch(tag Value, body func() (Value, error)) (Value, error) {
	hdepth := len(c.handlers)
	id := c.pushHandler(handlerCatch, tag)
	val, err := body()
	c.handlers = c.handlers[:hdepth]
	if t, ok := err.(*Throw); ok && t.handler == id {
		return t.Value, nil
	}
	return val, err
}

func opUnwindProtect(c *Context, args, env Value) (Value, error) {
	rt := c.rt
	if !args.IsCons() {
		return Nil, c.Signal(SymWrongNumberOfArguments, symbolValue(SymUnwindProtect), Int(0))
	}
	depth := len(c.specpdl)
	c.recordCleanup(rt.Cdr(args), env)
	val, err := c.eval(rt.Car(args), env)
	return c.unbind(depth, val, err)
}

func opConditionCase(c *Context, args, env Value) (Value, error) {
	rt := c.rt
	forms, err := c.argForms("condition-case", args, 2, Many)
	if err != nil {
		return Nil, err
	}
	variable := forms[0]
	if !variable.IsSymbol() {
		return Nil, c.WrongType(SymSymbolp, variable)
	}
	clauses := forms[2:]
	success := -1
	ids := make([]uint64, len(clauses))
	hdepth := len(c.handlers)
	for i := len(clauses) - 1; i >= 0; i-- {
		cl := clauses[i]
		if !cl.IsList() {
			return Nil, c.Errorf("Invalid condition handler: %s", rt.Prin1String(cl))
		}
		if rt.Car(cl) == rt.Symbol(":success") {
			success = i
			continue
		}
		ids[i] = c.pushHandler(handlerConditionCase, rt.Car(cl))
	}
	val, err := c.eval(forms[1], env)
	c.handlers = c.handlers[:hdepth]
	if err == nil {
		if success < 0 {
			return val, nil
		}
		return c.runHandler(variable, val, rt.Cdr(clauses[success]), env)
	}
	sig, ok := err.(*Signal)
	if !ok || sig.handler == 0 {
		return Nil, err
	}
	for i, id := range ids {
		if id != 0 && id == sig.handler {
			return c.runHandler(variable, sig.Value(rt), rt.Cdr(clauses[i]), env)
		}
	}
	return Nil, err
}

func (c *Context) runHandler(variable, val, body, env Value) (Value, error) {
	rt := c.rt
	if variable.IsNil() {
		return c.progn(body, env)
	}
	if IsLexicalEnv(env) && !rt.Sym(variable).Is(SymSpecialVar) {
		env = rt.newEnv(env, []binding{{sym: variable.Symbol(), val: val}})
		mark := c.pin(env)
		defer c.unpin(mark)
		return c.progn(body, env)
	}
	depth := len(c.specpdl)
	if err := c.specbind(variable.Symbol(), val); err != nil {
		return c.unbind(depth, Nil, err)
	}
	res, err := c.progn(body, env)
	return c.unbind(depth, res, err)
}

func opInteractive(c *Context, args, env Value) (Value, error) {
	return Nil, nil
}
