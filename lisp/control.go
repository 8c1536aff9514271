// Copyright © 2018 The ELPS authors

package lisp

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
	"unsafe"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
)

var langEvalBuiltins = []*langBuiltin{
	{"eval", 1, 2, builtinEval,
		`Evaluates FORM.  LEXICAL t selects lexical binding and an alist
		provides initial lexical bindings.  LEXICAL nil uses dynamic binding.`},
	{"funcall", 1, Many, builtinFuncall, `Calls FUNCTION with the remaining arguments.`},
	{"apply", 1, Many, builtinApply,
		`Calls FUNCTION with the remaining arguments, the last of which is a
		list spread into individual arguments.`},
	{"macroexpand", 1, 2, builtinMacroexpand, `Expands FORM until it is no longer a macro call.`},
	{"macroexpand-1", 1, 2, builtinMacroexpand1, `Expands FORM once if it is a macro call.`},
	{"macroexpand-all", 1, 2, builtinMacroexpandAll, `Expands every macro call in FORM.`},
	{"signal", 2, 2, builtinSignal, `Signals the error ERROR-SYMBOL with DATA.`},
	{"error", 1, Many, builtinError, `Signals an error with a message produced by format.`},
	{"user-error", 1, Many, builtinUserError, `Signals a user-error with a message produced by format.`},
	{"throw", 2, 2, builtinThrow, `Exits to the catch for TAG returning VALUE.`},
	{"garbage-collect", 0, 0, builtinGarbageCollect,
		`Collects garbage now.  Returns a list of (NAME SIZE USED FREE) entries
		describing each kind of heap object.`},
	{"documentation", 1, 2, builtinDocumentation, `Returns the documentation string of FUNCTION.`},
	{"describe-function", 1, 1, builtinDescribeFunction, `Returns a help text describing FUNCTION.`},
	{"commandp", 1, 2, builtinCommandp, `Returns t if FUNCTION has an interactive specification.`},
	{"equal-including-properties", 2, 2, builtinEqual,
		`Same as equal.  Strings carry no text properties.`},
	{"secure-hash-algorithms", 0, 0, builtinSecureHashAlgorithms, `Returns the list of supported hash algorithms.`},
	{"secure-hash", 2, 5, builtinSecureHash,
		`Returns the hash of OBJECT with ALGORITHM as a hex string, or as a
		unibyte string when BINARY is non-nil.`},
	{"md5", 1, 5, builtinMD5, `Returns the MD5 hash of OBJECT as a hex string.`},
	{"enable-debug", 0, 0, builtinEnableDebug, `Logs every signaled condition with its backtrace.`},
	{"disable-debug", 0, 0, builtinDisableDebug, `Stops logging signaled conditions.`},
	{"debug-enabled", 0, 0, builtinDebugEnabled, `Returns t if signal logging is enabled.`},
}

// lexicalEnvFromAlist builds a lexical environment from an alist of
// (SYMBOL . VALUE) bindings.
func (c *Context) lexicalEnvFromAlist(alist Value) (Value, error) {
	items, err := c.listSlice(alist)
	if err != nil {
		return Nil, err
	}
	vars := make([]binding, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		b := items[i]
		if !b.IsCons() || !c.rt.Car(b).IsSymbol() {
			continue
		}
		vars = append(vars, binding{sym: c.rt.Car(b).Symbol(), val: c.rt.Cdr(b)})
	}
	if len(vars) == 0 {
		return emptyLexEnv, nil
	}
	return c.rt.newEnv(emptyLexEnv, vars), nil
}

func builtinEval(c *Context, args []Value) (Value, error) {
	env := Nil
	switch lex := optArg(args, 1); {
	case lex.IsCons():
		var err error
		if env, err = c.lexicalEnvFromAlist(lex); err != nil {
			return Nil, err
		}
	case lex.Truthy():
		env = emptyLexEnv
	}
	mark := c.pin(env)
	defer c.unpin(mark)
	return c.eval(args[0], env)
}

func builtinFuncall(c *Context, args []Value) (Value, error) {
	return c.Funcall(args[0], args[1:]...)
}

// Apply calls fn with args, spreading the final list argument.
func (c *Context) Apply(fn Value, args ...Value) (Value, error) {
	if len(args) == 0 {
		// (apply '(f a b))
		spread, err := c.listSlice(fn)
		if err != nil {
			return Nil, err
		}
		if len(spread) == 0 {
			return Nil, c.Signal(SymWrongNumberOfArguments, c.sym("apply"), Int(0))
		}
		return c.Funcall(spread[0], spread[1:]...)
	}
	last := args[len(args)-1]
	spread, err := c.listSlice(last)
	if err != nil {
		return Nil, err
	}
	all := make([]Value, 0, len(args)-1+len(spread))
	all = append(all, args[:len(args)-1]...)
	all = append(all, spread...)
	return c.Funcall(fn, all...)
}

func builtinApply(c *Context, args []Value) (Value, error) {
	return c.Apply(args[0], args[1:]...)
}

// macroEnvLookup returns the expander bound to head in a macroexpand
// environment alist.
func (c *Context) macroEnvLookup(env, head Value) (Value, bool) {
	for ; env.IsCons(); env = c.rt.Cdr(env) {
		b := c.rt.Car(env)
		if b.IsCons() && c.rt.Car(b) == head {
			return c.rt.Cdr(b), true
		}
	}
	return Nil, false
}

// macroexpand1 is Macroexpand1 with support for an environment alist of
// (NAME . EXPANDER) overrides.  An override of nil disables expansion.
func (c *Context) macroexpand1(form, env Value) (Value, bool, error) {
	if env.IsCons() && form.IsCons() {
		if expander, ok := c.macroEnvLookup(env, c.rt.Car(form)); ok {
			if expander.IsNil() {
				return form, false, nil
			}
			args, err := c.listSlice(c.rt.Cdr(form))
			if err != nil {
				return Nil, false, err
			}
			exp, err := c.Funcall(expander, args...)
			return exp, err == nil, err
		}
	}
	return c.Macroexpand1(form)
}

func builtinMacroexpand1(c *Context, args []Value) (Value, error) {
	exp, _, err := c.macroexpand1(args[0], optArg(args, 1))
	return exp, err
}

func builtinMacroexpand(c *Context, args []Value) (Value, error) {
	form, env := args[0], optArg(args, 1)
	mark := c.pin(form)
	defer c.unpin(mark)
	for {
		exp, expanded, err := c.macroexpand1(form, env)
		if err != nil || !expanded || exp == form {
			return exp, err
		}
		form = exp
		c.pins[mark] = form
	}
}

// MacroexpandAll expands macro calls in form and in every subform which
// is evaluated.
func (c *Context) MacroexpandAll(form, env Value) (Value, error) {
	rt := c.rt
	mark := c.pin(form)
	defer c.unpin(mark)
	for {
		exp, expanded, err := c.macroexpand1(form, env)
		if err != nil {
			return Nil, err
		}
		if !expanded || exp == form {
			break
		}
		form = exp
		c.pins[mark] = form
	}
	if !form.IsCons() {
		return form, nil
	}
	head := rt.Car(form)
	switch head {
	case symbolValue(SymQuote):
		return form, nil
	case symbolValue(SymFunction):
		arg := rt.Car(rt.Cdr(form))
		if arg.IsCons() && rt.Car(arg) == symbolValue(SymLambda) {
			lam, err := c.MacroexpandAll(arg, env)
			if err != nil {
				return Nil, err
			}
			return rt.List(head, lam), nil
		}
		return form, nil
	case symbolValue(SymLambda):
		rest := rt.Cdr(form)
		body, err := c.macroexpandForms(rt.Cdr(rest), env)
		if err != nil {
			return Nil, err
		}
		return rt.ListStar(body, head, rt.Car(rest)), nil
	case symbolValue(SymLet), symbolValue(SymLetStar):
		rest := rt.Cdr(form)
		items, err := c.listSlice(rt.Car(rest))
		if err != nil {
			return Nil, err
		}
		mark := c.pin(items...)
		defer c.unpin(mark)
		bindings := make([]Value, len(items))
		for i, b := range items {
			if b.IsCons() {
				val, err := c.MacroexpandAll(rt.Car(rt.Cdr(b)), env)
				if err != nil {
					return Nil, err
				}
				b = rt.List(rt.Car(b), val)
			}
			bindings[i] = b
			c.pins[mark+i] = b
		}
		bl := rt.List(bindings...)
		c.pin(bl)
		body, err := c.macroexpandForms(rt.Cdr(rest), env)
		if err != nil {
			return Nil, err
		}
		return rt.ListStar(body, head, bl), nil
	case symbolValue(SymCond):
		clauses, err := c.listSlice(rt.Cdr(form))
		if err != nil {
			return Nil, err
		}
		mark := c.pin(clauses...)
		defer c.unpin(mark)
		for i, cl := range clauses {
			exp, err := c.macroexpandForms(cl, env)
			if err != nil {
				return Nil, err
			}
			c.pins[mark+i] = exp
			clauses[i] = exp
		}
		return rt.Cons(head, rt.List(clauses...)), nil
	case symbolValue(SymConditionCase):
		rest := rt.Cdr(form)
		body, err := c.MacroexpandAll(rt.Car(rt.Cdr(rest)), env)
		if err != nil {
			return Nil, err
		}
		m := c.pin(body)
		defer c.unpin(m)
		handlers, err := c.listSlice(rt.Cdr(rt.Cdr(rest)))
		if err != nil {
			return Nil, err
		}
		hmark := c.pin(handlers...)
		for i, h := range handlers {
			if !h.IsCons() {
				continue
			}
			hb, err := c.macroexpandForms(rt.Cdr(h), env)
			if err != nil {
				return Nil, err
			}
			handlers[i] = rt.Cons(rt.Car(h), hb)
			c.pins[hmark+i] = handlers[i]
		}
		return rt.ListStar(rt.List(handlers...), head, rt.Car(rest), body), nil
	}
	if head.IsSymbol() && rt.Sym(head).Is(SymSpecialForm) {
		// Remaining special forms evaluate all of their arguments except
		// setq and defvar names, which are symbols and expand to themselves.
		args, err := c.macroexpandForms(rt.Cdr(form), env)
		if err != nil {
			return Nil, err
		}
		return rt.Cons(head, args), nil
	}
	args, err := c.macroexpandForms(rt.Cdr(form), env)
	if err != nil {
		return Nil, err
	}
	if head.IsCons() {
		m := c.pin(args)
		defer c.unpin(m)
		if head, err = c.MacroexpandAll(head, env); err != nil {
			return Nil, err
		}
	}
	return rt.Cons(head, args), nil
}

func (c *Context) macroexpandForms(forms, env Value) (Value, error) {
	items, err := c.listSlice(forms)
	if err != nil {
		return Nil, err
	}
	mark := c.pin(items...)
	defer c.unpin(mark)
	for i, f := range items {
		exp, err := c.MacroexpandAll(f, env)
		if err != nil {
			return Nil, err
		}
		items[i] = exp
		c.pins[mark+i] = exp
	}
	return c.rt.List(items...), nil
}

func builtinMacroexpandAll(c *Context, args []Value) (Value, error) {
	return c.MacroexpandAll(args[0], optArg(args, 1))
}

func builtinSignal(c *Context, args []Value) (Value, error) {
	errsym, data := args[0], args[1]
	if errsym.IsNil() && data.IsCons() {
		// (signal nil (ERROR-SYMBOL . DATA)) re-signals a caught error.
		errsym, data = c.rt.Car(data), c.rt.Cdr(data)
	}
	return Nil, c.SignalValue(errsym, data)
}

func (c *Context) formatArgs(args []Value) (string, error) {
	f, err := c.checkString(args[0])
	if err != nil {
		return "", err
	}
	return c.Format(f, args[1:]...)
}

func builtinError(c *Context, args []Value) (Value, error) {
	msg, err := c.formatArgs(args)
	if err != nil {
		return Nil, err
	}
	return Nil, c.Signal(SymError, c.rt.String(msg))
}

func builtinUserError(c *Context, args []Value) (Value, error) {
	msg, err := c.formatArgs(args)
	if err != nil {
		return Nil, err
	}
	return Nil, c.Signal(SymUserError, c.rt.String(msg))
}

func builtinThrow(c *Context, args []Value) (Value, error) {
	return Nil, c.ThrowTo(args[0], args[1])
}

var heapKindNames = map[Tag]struct {
	name string
	size uintptr
}{
	TagCons:      {"conses", unsafe.Sizeof(cons{})},
	TagString:    {"strings", unsafe.Sizeof(lstring{})},
	TagVector:    {"vectors", unsafe.Sizeof(record{})},
	TagRecord:    {"records", unsafe.Sizeof(record{})},
	TagBigInt:    {"bignums", unsafe.Sizeof(uintptr(0))},
	TagFunction:  {"functions", unsafe.Sizeof(Function{})},
	TagHashTable: {"hash-tables", unsafe.Sizeof(HashTable{})},
	TagEnv:       {"environments", unsafe.Sizeof(envFrame{})},
}

func builtinGarbageCollect(c *Context, args []Value) (Value, error) {
	stats := c.GarbageCollect()
	items := make([]Value, 0, len(stats.Kinds)+1)
	for _, k := range stats.Kinds {
		info := heapKindNames[k.Kind]
		items = append(items, c.rt.List(c.sym(info.name), Int(int64(info.size)), Int(int64(k.Used)), Int(int64(k.Free))))
	}
	items = append(items, c.rt.List(c.sym("symbols"), Int(int64(unsafe.Sizeof(Symbol{}))), Int(int64(c.rt.Symbols.Len())), Int(0)))
	return c.rt.List(items...), nil
}

// Documentation returns the docstring of a function designator.
func (c *Context) Documentation(fn Value) (string, bool, error) {
	if fn.IsSymbol() {
		if doc := c.rt.Get(fn, c.sym("function-documentation")); doc.Tag() == TagString {
			return c.rt.StringVal(doc), true, nil
		}
	}
	resolved, err := c.indirectFunction(fn)
	if err != nil {
		return "", false, err
	}
	rt := c.rt
	switch resolved.tag {
	case TagFunction:
		f := rt.Fun(resolved)
		if f.Kind == FuncCompiled && f.Code.Doc.Tag() == TagString {
			return rt.StringVal(f.Code.Doc), true, nil
		}
		if f.Kind == FuncMacro && f.Doc == "" && !f.Expander.IsNil() {
			return c.Documentation(f.Expander)
		}
		return f.Doc, f.Doc != "", nil
	case TagCons:
		body := rt.Cdr(rt.Cdr(resolved))
		switch rt.Car(resolved) {
		case symbolValue(SymMacro):
			return c.Documentation(rt.Cdr(resolved))
		case symbolValue(SymClosure):
			body = rt.Cdr(body)
		case symbolValue(SymLambda):
		default:
			return "", false, c.Signal(SymInvalidFunction, fn)
		}
		if doc := rt.Car(body); doc.Tag() == TagString && rt.Cdr(body).IsCons() {
			return rt.StringVal(doc), true, nil
		}
		return "", false, nil
	case TagSymbol:
		if resolved.IsUnbound() {
			return "", false, c.Signal(SymVoidFunction, fn)
		}
	}
	return "", false, c.Signal(SymInvalidFunction, fn)
}

func builtinDocumentation(c *Context, args []Value) (Value, error) {
	doc, ok, err := c.Documentation(args[0])
	if err != nil || !ok {
		return Nil, err
	}
	return c.rt.String(doc), nil
}

// signature renders the calling convention of fn as (NAME ARGS...).
func (c *Context) signature(name string, fn Value) string {
	rt := c.rt
	var params Value
	switch fn.tag {
	case TagFunction:
		f := rt.Fun(fn)
		switch {
		case f.Kind == FuncInterpreted:
			params = f.Args
		case f.Kind == FuncCompiled && !f.Code.ArgDesc.IsFixnum():
			params = f.Code.ArgDesc
		case f.Special != nil:
			return fmt.Sprintf("(%s ARGS...)", name)
		default:
			a := f.Arity
			if f.Kind == FuncCompiled {
				a = c.rt.byteCodeArity(f.Code)
			}
			return arityString(name, a)
		}
	case TagCons:
		if rt.Car(fn) == symbolValue(SymMacro) {
			return c.signature(name, rt.Cdr(fn))
		}
		params = rt.Car(rt.Cdr(fn))
	default:
		return "(" + name + ")"
	}
	parts := []string{name}
	for p := params; p.IsCons(); p = rt.Cdr(p) {
		s := rt.SymbolName(rt.Car(p))
		if !strings.HasPrefix(s, "&") {
			s = strings.ToUpper(s)
		}
		parts = append(parts, s)
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func arityString(name string, a Arity) string {
	parts := []string{name}
	for i := 1; i <= a.Min; i++ {
		parts = append(parts, fmt.Sprintf("ARG%d", i))
	}
	switch {
	case a.Max == Many:
		parts = append(parts, "&rest", "ARGS")
	case a.Max > a.Min:
		parts = append(parts, "&optional")
		for i := a.Min + 1; i <= a.Max; i++ {
			parts = append(parts, fmt.Sprintf("ARG%d", i))
		}
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// DescribeFunction renders help text for a function designator.
func (c *Context) DescribeFunction(fn Value) (string, error) {
	rt := c.rt
	resolved, err := c.indirectFunction(fn)
	if err != nil {
		return "", err
	}
	if resolved.IsUnbound() || resolved.IsNil() {
		return "", c.Signal(SymVoidFunction, fn)
	}
	name := rt.FunctionName(fn)
	var kind string
	switch {
	case resolved.tag == TagFunction && rt.Fun(resolved).Special != nil:
		kind = "a special form"
	case resolved.tag == TagFunction && rt.Fun(resolved).Kind == FuncNative:
		kind = "a built-in function"
	case resolved.tag == TagFunction && rt.Fun(resolved).Kind == FuncMacro,
		resolved.IsCons() && rt.Car(resolved) == symbolValue(SymMacro):
		kind = "a Lisp macro"
	case resolved.tag == TagFunction && rt.Fun(resolved).Kind == FuncCompiled:
		kind = "a byte-compiled Lisp function"
	default:
		kind = "an interpreted Lisp function"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s is %s.\n\n", name, kind)
	b.WriteString(c.signature(name, resolved))
	b.WriteString("\n")
	doc, ok, err := c.Documentation(fn)
	if err != nil {
		return "", err
	}
	if !ok {
		doc = "Not documented."
	}
	b.WriteString("\n")
	b.WriteString(indent.String(wordwrap.String(doc, 70), 2))
	b.WriteString("\n")
	return b.String(), nil
}

func builtinDescribeFunction(c *Context, args []Value) (Value, error) {
	s, err := c.DescribeFunction(args[0])
	if err != nil {
		return Nil, err
	}
	return c.rt.String(s), nil
}

// interactiveSpec returns the interactive form of fn, if any.
func (c *Context) interactiveSpec(fn Value) (Value, bool) {
	rt := c.rt
	resolved, err := c.indirectFunction(fn)
	if err != nil {
		return Nil, false
	}
	var body Value
	switch resolved.tag {
	case TagFunction:
		f := rt.Fun(resolved)
		switch f.Kind {
		case FuncCompiled:
			return f.Code.Interactive, !f.Code.Interactive.IsNil()
		case FuncInterpreted:
			body = f.Body
		default:
			return Nil, false
		}
	case TagCons:
		if rt.Car(resolved) != symbolValue(SymLambda) {
			return Nil, false
		}
		body = rt.Cdr(rt.Cdr(resolved))
	default:
		return Nil, false
	}
	if rt.Car(body).Tag() == TagString {
		body = rt.Cdr(body)
	}
	for ; body.IsCons(); body = rt.Cdr(body) {
		form := rt.Car(body)
		if !form.IsCons() {
			return Nil, false
		}
		switch rt.Car(form) {
		case symbolValue(SymInteractive):
			return form, true
		case c.sym("declare"):
			continue
		}
		return Nil, false
	}
	return Nil, false
}

func builtinCommandp(c *Context, args []Value) (Value, error) {
	_, ok := c.interactiveSpec(args[0])
	return Bool(ok), nil
}

var secureHashes = []struct {
	name string
	new  func() hash.Hash
}{
	{"md5", md5.New},
	{"sha1", sha1.New},
	{"sha224", sha256.New224},
	{"sha256", sha256.New},
	{"sha384", sha512.New384},
	{"sha512", sha512.New},
}

func builtinSecureHashAlgorithms(c *Context, args []Value) (Value, error) {
	names := make([]Value, len(secureHashes))
	for i, h := range secureHashes {
		names[i] = c.sym(h.name)
	}
	return c.rt.List(names...), nil
}

// SecureHash implements secure-hash for string objects.
func (c *Context) SecureHash(algorithm, object, start, end Value, binary bool) (Value, error) {
	if _, err := c.checkSymbol(algorithm); err != nil {
		return Nil, err
	}
	name := c.rt.SymbolName(algorithm)
	var h hash.Hash
	for _, sh := range secureHashes {
		if sh.name == name {
			h = sh.new()
		}
	}
	if h == nil {
		return Nil, c.Errorf("Invalid algorithm arg: %s", name)
	}
	s, err := c.checkString(object)
	if err != nil {
		return Nil, err
	}
	rs := []rune(s)
	from, to, err := c.sliceBounds(object, start, end, len(rs))
	if err != nil {
		return Nil, err
	}
	h.Write([]byte(string(rs[from:to])))
	sum := h.Sum(nil)
	if !binary {
		return c.rt.String(hex.EncodeToString(sum)), nil
	}
	out := make([]rune, len(sum))
	for i, x := range sum {
		out[i] = rune(x)
	}
	return c.rt.String(string(out)), nil
}

func builtinSecureHash(c *Context, args []Value) (Value, error) {
	return c.SecureHash(args[0], args[1], optArg(args, 2), optArg(args, 3), optArg(args, 4).Truthy())
}

func builtinMD5(c *Context, args []Value) (Value, error) {
	return c.SecureHash(c.sym("md5"), args[0], optArg(args, 1), optArg(args, 2), false)
}

func builtinEnableDebug(c *Context, args []Value) (Value, error) {
	c.rt.debug = true
	return T, nil
}

func builtinDisableDebug(c *Context, args []Value) (Value, error) {
	c.rt.debug = false
	return Nil, nil
}

func builtinDebugEnabled(c *Context, args []Value) (Value, error) {
	return Bool(c.rt.debug), nil
}
