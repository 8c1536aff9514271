// Copyright © 2018 The ELPS authors

package lisp

// The byte compiler translates interpreted functions into compiled function
// objects executed by the VM.  It covers the core special forms, macros
// (expanded at compile time) and calls.  Lexical variables live in operand
// stack slots.  Nested lambdas which reference enclosing locals are built at
// run time with make-closure, so a captured variable may not be mutated.

// local is a lexical variable held in an operand stack slot.
type local struct {
	sym      SymbolID
	slot     int
	captured bool
	mutated  bool
}

type compiler struct {
	c        *Context
	parent   *compiler
	dynamic  bool
	code     []byte
	consts   []Value
	depth    int
	maxDepth int
	scope    []*local
	locals   []*local
	captures []SymbolID
	// expansions caches macro expansions so each macro call is expanded
	// once even though nested lambdas are compiled twice.
	expansions map[Value]Value
}

const maxCodeSize = 1 << 16

// directOps maps functions to instructions which implement them when called
// with exactly nargs arguments.
var directOps = map[string]struct {
	op    byte
	nargs int
}{
	"car":             {opCar, 1},
	"cdr":             {opCdr, 1},
	"cons":            {opCons, 2},
	"not":             {opNot, 1},
	"null":            {opNot, 1},
	"eq":              {opEq, 2},
	"memq":            {opMemq, 2},
	"symbolp":         {opSymbolp, 1},
	"consp":           {opConsp, 1},
	"stringp":         {opStringp, 1},
	"listp":           {opListp, 1},
	"length":          {opLength, 1},
	"aref":            {opAref, 2},
	"aset":            {opAset, 3},
	"symbol-value":    {opSymbolValue, 1},
	"symbol-function": {opSymbolFunction, 1},
	"set":             {opSet, 2},
	"fset":            {opFset, 2},
	"get":             {opGet, 2},
	"substring":       {opSubstring, 3},
	"nth":             {opNth, 2},
	"1+":              {opAdd1, 1},
	"1-":              {opSub1, 1},
	"=":               {opEqlsign, 2},
	">":               {opGtr, 2},
	"<":               {opLss, 2},
	"<=":              {opLeq, 2},
	">=":              {opGeq, 2},
	"-":               {opDiff, 2},
	"+":               {opPlus, 2},
	"*":               {opMult, 2},
	"max":             {opMax, 2},
	"min":             {opMin, 2},
	"nthcdr":          {opNthcdr, 2},
	"elt":             {opElt, 2},
	"member":          {opMember, 2},
	"assq":            {opAssq, 2},
	"nreverse":        {opNreverse, 1},
	"setcar":          {opSetcar, 2},
	"setcdr":          {opSetcdr, 2},
	"car-safe":        {opCarSafe, 1},
	"cdr-safe":        {opCdrSafe, 1},
	"nconc":           {opNconc, 2},
	"/":               {opQuo, 2},
	"%":               {opRemainder, 2},
	"numberp":         {opNumberp, 1},
	"integerp":        {opIntegerp, 1},
	"equal":           {opEqual, 2},
	"string=":         {opStringEqlsign, 2},
	"string<":         {opStringLss, 2},
	"upcase":          {opUpcase, 1},
	"downcase":        {opDowncase, 1},
	"match-beginning": {opMatchBeginning, 1},
	"match-end":       {opMatchEnd, 1},
}

// Compile byte-compiles form.  A symbol has its function definition
// compiled and replaced.  An interpreted function or lambda expression is
// compiled and the compiled function is returned.  Any other form is
// compiled as the body of a function of no arguments, which is called.
func (c *Context) Compile(form Value) (Value, error) {
	rt := c.rt
	mark := c.pin(form)
	defer c.unpin(mark)
	switch {
	case form.IsSymbol() && !form.IsNil():
		def, err := c.indirectFunction(form)
		if err != nil {
			return Nil, err
		}
		if def.IsNil() {
			return Nil, c.Signal(SymVoidFunction, form)
		}
		compiled, err := c.compileDefinition(def, rt.SymbolName(form))
		if err != nil {
			return Nil, err
		}
		if compiled != def {
			if _, err := c.Fset(form, compiled); err != nil {
				return Nil, err
			}
		}
		return compiled, nil
	case form.tag == TagFunction:
		return c.compileDefinition(form, "")
	case form.IsCons() && rt.Car(form) == symbolValue(SymLambda):
		return c.compileLambda(form, !c.Lexical, "")
	}
	fn, err := c.compileLambda(rt.List(symbolValue(SymLambda), Nil, form), !c.Lexical, "")
	if err != nil {
		return Nil, err
	}
	c.pin(fn)
	return c.Funcall(fn)
}

func builtinByteCompile(c *Context, args []Value) (Value, error) {
	return c.Compile(args[0])
}

// compileDefinition compiles a function definition found in a function
// cell.
func (c *Context) compileDefinition(def Value, name string) (Value, error) {
	rt := c.rt
	switch def.tag {
	case TagFunction:
		f := rt.Fun(def)
		switch f.Kind {
		case FuncInterpreted:
			if f.Lexical && f.Env.tag == TagEnv && f.Env != emptyLexEnv {
				return Nil, c.Errorf("Cannot compile a closure over a lexical environment: %s", rt.Prin1String(def))
			}
			lambda := rt.ListStar(f.Body, symbolValue(SymLambda), f.Args)
			mark := c.pin(lambda)
			defer c.unpin(mark)
			if name == "" {
				name = f.Name
			}
			return c.compileLambda(lambda, !f.Lexical, name)
		case FuncMacro:
			exp, err := c.compileDefinition(f.Expander, name)
			if err != nil {
				return Nil, err
			}
			if exp == f.Expander {
				return def, nil
			}
			mark := c.pin(exp)
			defer c.unpin(mark)
			m := *f
			m.Expander = exp
			return rt.NewFunction(m), nil
		}
		return def, nil
	case TagCons:
		switch rt.Car(def) {
		case symbolValue(SymLambda):
			return c.compileLambda(def, true, name)
		case symbolValue(SymMacro):
			exp, err := c.compileDefinition(rt.Cdr(def), name)
			if err != nil {
				return Nil, err
			}
			return rt.Cons(symbolValue(SymMacro), exp), nil
		}
	}
	return Nil, c.Errorf("Invalid function for byte-compile: %s", rt.Prin1String(def))
}

// compileLambda compiles a lambda expression.  Dynamic functions use the
// dynamic calling convention and bind every variable specially.
func (c *Context) compileLambda(lambda Value, dynamic bool, name string) (Value, error) {
	mark := len(c.pins)
	defer c.unpin(mark)
	cc := &compiler{c: c, dynamic: dynamic, expansions: make(map[Value]Value)}
	fn, err := cc.function(lambda, nil)
	if err != nil {
		return Nil, err
	}
	if name != "" {
		c.rt.Fun(fn).Name = name
	}
	return fn, nil
}

func (cc *compiler) errorf(format string, args ...interface{}) error {
	return cc.c.Errorf(format, args...)
}

func (cc *compiler) unsupported(form Value) error {
	return cc.errorf("Unsupported form in byte-compile: %s", cc.c.rt.Prin1String(form))
}

func (cc *compiler) adjust(n int) {
	cc.depth += n
	if cc.depth > cc.maxDepth {
		cc.maxDepth = cc.depth
	}
}

func (cc *compiler) emit(b ...byte) {
	cc.code = append(cc.code, b...)
}

// emitSmall emits an instruction which encodes its operand in the low three
// bits.
func (cc *compiler) emitSmall(base byte, n int) {
	switch {
	case n <= 5:
		cc.emit(base + byte(n))
	case n <= 0xff:
		cc.emit(base+6, byte(n))
	default:
		cc.emit(base+7, byte(n), byte(n>>8))
	}
}

func (cc *compiler) emitWord(op byte, n int) {
	cc.emit(op, byte(n), byte(n>>8))
}

// constIndex returns the index of v in the constant vector, adding it if
// necessary.  Captured variables occupy the first slots and are never
// shared.
func (cc *compiler) constIndex(v Value) (int, error) {
	for i := len(cc.captures); i < len(cc.consts); i++ {
		if cc.consts[i] == v {
			return i, nil
		}
	}
	if len(cc.consts) > 0xffff {
		return 0, cc.errorf("Too many constants in compiled function")
	}
	cc.consts = append(cc.consts, v)
	cc.c.pin(v)
	return len(cc.consts) - 1, nil
}

func (cc *compiler) pushConstIndex(i int) {
	if i < 0o100 {
		cc.emit(opConstant + byte(i))
	} else {
		cc.emitWord(opConstant2, i)
	}
	cc.adjust(1)
}

func (cc *compiler) constant(v Value) error {
	i, err := cc.constIndex(v)
	if err != nil {
		return err
	}
	cc.pushConstIndex(i)
	return nil
}

// jump emits a jump instruction and returns the position of its operand.
func (cc *compiler) jump(op byte) int {
	cc.emitWord(op, 0)
	return len(cc.code) - 2
}

// label patches the jump operand at pos to the current position.
func (cc *compiler) label(pos int) {
	n := len(cc.code)
	cc.code[pos] = byte(n)
	cc.code[pos+1] = byte(n >> 8)
}

func (cc *compiler) jumpTo(op byte, target int) {
	cc.emitWord(op, target)
}

func (cc *compiler) stackRef(slot int) {
	n := cc.depth - 1 - slot
	if n == 0 {
		cc.emit(opDup)
	} else {
		cc.emitSmall(opStackRef, n)
	}
	cc.adjust(1)
}

// discard pops n values beneath the top of the stack.
func (cc *compiler) discardUnder(n int) {
	for n > 0 {
		k := min(n, 0x7f)
		cc.emit(opDiscardN, byte(k)|0x80)
		cc.adjust(-k)
		n -= k
	}
}

func (cc *compiler) discard() {
	cc.emit(opDiscard)
	cc.adjust(-1)
}

func (cc *compiler) isSpecial(sym Value) bool {
	rt := cc.c.rt
	return cc.dynamic || sym.IsNil() || sym == T || rt.IsKeyword(sym) || rt.Sym(sym).Is(SymSpecialVar)
}

// lookup finds the lexical variable sym.  It returns the local when sym is
// a local of cc, otherwise the index of the captured constant.
func (cc *compiler) lookup(sym SymbolID) (*local, int, bool) {
	for i := len(cc.scope) - 1; i >= 0; i-- {
		if cc.scope[i].sym == sym {
			return cc.scope[i], 0, true
		}
	}
	for i, id := range cc.captures {
		if id == sym {
			return nil, i, true
		}
	}
	if cc.parent == nil {
		return nil, 0, false
	}
	l, _, ok := cc.parent.lookup(sym)
	if !ok {
		return nil, 0, false
	}
	if l != nil {
		l.captured = true
	}
	cc.captures = append(cc.captures, sym)
	return nil, len(cc.captures) - 1, true
}

func (cc *compiler) bindLocal(sym Value, slot int) {
	l := &local{sym: sym.Symbol(), slot: slot}
	cc.scope = append(cc.scope, l)
	cc.locals = append(cc.locals, l)
}

// function compiles a lambda expression.  When parent is non-nil the
// variables of parent are visible and references to them are captured.
func (cc *compiler) function(lambda Value, parent *compiler) (Value, error) {
	c := cc.c
	rt := c.rt
	cc.parent = parent
	if !rt.Cdr(lambda).IsCons() {
		return Nil, cc.errorf("Invalid lambda expression: %s", rt.Prin1String(lambda))
	}
	params := rt.Car(rt.Cdr(lambda))
	body := rt.Cdr(rt.Cdr(lambda))

	doc, interactive := Nil, Nil
	if first := rt.Car(body); first.tag == TagString && rt.Cdr(body).IsCons() {
		doc = first
		body = rt.Cdr(body)
	}
header:
	for ; body.IsCons(); body = rt.Cdr(body) {
		form := rt.Car(body)
		if !form.IsCons() {
			break
		}
		switch rt.Car(form) {
		case c.sym("declare"):
		case symbolValue(SymInteractive):
			interactive = rt.Car(rt.Cdr(form))
			if interactive.IsNil() {
				interactive = rt.String("")
			}
			c.pin(interactive)
		default:
			break header
		}
	}

	cc.consts = make([]Value, len(cc.captures))
	var argdesc Value
	if cc.dynamic {
		if _, ok := c.rt.lambdaArity(params); !ok {
			return Nil, c.Signal(SymInvalidFunction, lambda)
		}
		argdesc = params
	} else {
		var err error
		if argdesc, err = cc.lexicalParams(params); err != nil {
			return Nil, err
		}
	}
	if err := cc.progn(body); err != nil {
		return Nil, err
	}
	cc.emit(opReturn)
	for _, l := range cc.locals {
		if l.captured && l.mutated {
			return Nil, cc.errorf("Cannot compile mutation of captured variable %s", rt.SymbolName(symbolValue(l.sym)))
		}
	}
	if len(cc.code) > maxCodeSize {
		return Nil, cc.errorf("Compiled function is too large")
	}
	bc := &ByteCode{
		ArgDesc:     argdesc,
		Code:        cc.code,
		Constants:   rt.Vector(cc.consts),
		MaxDepth:    cc.maxDepth,
		Doc:         doc,
		Interactive: interactive,
	}
	c.pin(bc.Constants)
	fn := rt.NewFunction(Function{Kind: FuncCompiled, Code: bc, Arity: c.rt.byteCodeArity(bc)})
	c.pin(fn)
	return fn, nil
}

// lexicalParams places the parameters in the first stack slots and returns
// the integer argument descriptor.
func (cc *compiler) lexicalParams(params Value) (Value, error) {
	rt := cc.c.rt
	var syms []Value
	mandatory, optional, rest := 0, false, false
	for p := params; !p.IsNil(); p = rt.Cdr(p) {
		if !p.IsCons() {
			return Nil, cc.c.Signal(SymInvalidFunction, params)
		}
		sym := rt.Car(p)
		if !sym.IsSymbol() || sym.IsNil() || sym == T {
			return Nil, cc.c.Signal(SymInvalidFunction, params)
		}
		switch {
		case sym.Symbol() == SymOptional:
			optional = true
			continue
		case sym.Symbol() == SymRest:
			if rest || !rt.Cdr(p).IsCons() || !rt.Cdr(rt.Cdr(p)).IsNil() {
				return Nil, cc.c.Signal(SymInvalidFunction, params)
			}
			rest = true
			continue
		case !optional && !rest:
			mandatory++
		}
		syms = append(syms, sym)
	}
	nonrest := len(syms)
	if rest {
		nonrest--
	}
	if mandatory > 127 || nonrest > 127 {
		return Nil, cc.errorf("Too many parameters in compiled function")
	}
	cc.adjust(len(syms))
	for i, sym := range syms {
		if cc.isSpecial(sym) {
			cc.stackRef(i)
			if err := cc.varOp(opVarBind, sym); err != nil {
				return Nil, err
			}
			continue
		}
		cc.bindLocal(sym, i)
	}
	desc := int64(mandatory) | int64(nonrest)<<8
	if rest {
		desc |= 128
	}
	return Int(desc), nil
}

// varOp emits varref, varset or varbind for the special variable sym.
func (cc *compiler) varOp(base byte, sym Value) error {
	i, err := cc.constIndex(sym)
	if err != nil {
		return err
	}
	cc.emitSmall(base, i)
	if base == opVarRef {
		cc.adjust(1)
	} else {
		cc.adjust(-1)
	}
	return nil
}

func (cc *compiler) variable(sym Value) error {
	rt := cc.c.rt
	if sym.IsNil() || sym == T || rt.IsKeyword(sym) {
		return cc.constant(sym)
	}
	if !cc.isSpecial(sym) {
		if l, i, ok := cc.lookup(sym.Symbol()); ok {
			if l != nil {
				cc.stackRef(l.slot)
			} else {
				cc.pushConstIndex(i)
			}
			return nil
		}
	}
	return cc.varOp(opVarRef, sym)
}

// store pops the top of the stack into the variable sym.
func (cc *compiler) store(sym Value) error {
	rt := cc.c.rt
	if !sym.IsSymbol() {
		return cc.c.WrongType(SymSymbolp, sym)
	}
	if !cc.isSpecial(sym) {
		if l, _, ok := cc.lookup(sym.Symbol()); ok {
			if l == nil {
				return cc.errorf("Cannot compile mutation of captured variable %s", rt.SymbolName(sym))
			}
			l.mutated = true
			n := cc.depth - 1 - l.slot
			if n <= 0xff {
				cc.emit(opStackSet, byte(n))
			} else {
				cc.emitWord(opStackSet2, n)
			}
			cc.adjust(-1)
			return nil
		}
	}
	return cc.varOp(opVarSet, sym)
}

func (cc *compiler) progn(body Value) error {
	rt := cc.c.rt
	if body.IsNil() {
		return cc.constant(Nil)
	}
	for b := body; b.IsCons(); b = rt.Cdr(b) {
		if err := cc.form(rt.Car(b)); err != nil {
			return err
		}
		if rt.Cdr(b).IsCons() {
			cc.discard()
		}
	}
	return nil
}

// forms returns the argument forms of a special form with at least min
// arguments.
func (cc *compiler) forms(form Value, min int) ([]Value, error) {
	rt := cc.c.rt
	args, err := cc.c.listSlice(rt.Cdr(form))
	if err != nil {
		return nil, err
	}
	if len(args) < min {
		return nil, cc.c.Signal(SymWrongNumberOfArguments, rt.Car(form), Int(int64(len(args))))
	}
	return args, nil
}

func (cc *compiler) form(form Value) error {
	c := cc.c
	rt := c.rt
	if form.IsSymbol() {
		return cc.variable(form)
	}
	if !form.IsCons() {
		return cc.constant(form)
	}
	head := rt.Car(form)
	if head.IsCons() && rt.Car(head) == symbolValue(SymLambda) {
		return cc.call(form, func() error { return cc.lambda(head) })
	}
	if !head.IsSymbol() {
		return c.Signal(SymInvalidFunction, head)
	}
	switch head.Symbol() {
	case SymQuote:
		args, err := cc.forms(form, 1)
		if err != nil {
			return err
		}
		return cc.constant(args[0])
	case SymFunction:
		args, err := cc.forms(form, 1)
		if err != nil {
			return err
		}
		if arg := args[0]; arg.IsCons() && rt.Car(arg) == symbolValue(SymLambda) {
			return cc.lambda(arg)
		}
		return cc.constant(args[0])
	case SymLambda:
		return cc.lambda(form)
	case SymProgn:
		return cc.progn(rt.Cdr(form))
	case SymProg1:
		return cc.prog1(form)
	case SymIf:
		return cc.ifForm(form)
	case SymCond:
		return cc.cond(form)
	case SymAnd:
		return cc.andOr(form, opGotoIfNilElsePop, T)
	case SymOr:
		return cc.andOr(form, opGotoIfNonNilElsePop, Nil)
	case SymWhile:
		return cc.while(form)
	case SymLet:
		return cc.let(form)
	case SymLetStar:
		return cc.letStar(form)
	case SymSetq:
		return cc.setq(form)
	case SymCatch:
		return cc.catch(form)
	case SymUnwindProtect:
		return cc.unwindProtect(form)
	case SymConditionCase:
		return cc.conditionCase(form)
	}
	if head == c.sym("prog2") {
		args, err := cc.forms(form, 2)
		if err != nil {
			return err
		}
		if err := cc.form(args[0]); err != nil {
			return err
		}
		cc.discard()
		return cc.prog1(rt.Cdr(form))
	}
	if exp, ok := cc.expansions[form]; ok {
		return cc.form(exp)
	}
	exp, expanded, err := c.Macroexpand1(form)
	if err != nil {
		return err
	}
	if expanded {
		c.pin(exp)
		cc.expansions[form] = exp
		return cc.form(exp)
	}
	def, err := c.indirectFunction(head)
	if err != nil {
		return err
	}
	if def.tag == TagFunction {
		if rt.Fun(def).Special != nil {
			return cc.unsupported(form)
		}
	}
	return cc.call(form, nil)
}

// call compiles a function call.  pushFn pushes the function when the head
// of form is not a symbol.
func (cc *compiler) call(form Value, pushFn func() error) error {
	c := cc.c
	rt := c.rt
	args, err := c.listSlice(rt.Cdr(form))
	if err != nil {
		return err
	}
	head := rt.Car(form)
	if pushFn == nil {
		if ok, err := cc.direct(rt.SymbolName(head), args); ok || err != nil {
			return err
		}
		if err := cc.constant(head); err != nil {
			return err
		}
	} else if err := pushFn(); err != nil {
		return err
	}
	for _, arg := range args {
		if err := cc.form(arg); err != nil {
			return err
		}
	}
	cc.emitSmall(opCall, len(args))
	cc.adjust(-len(args))
	return nil
}

// direct compiles a call to a function with a dedicated instruction.
func (cc *compiler) direct(name string, args []Value) (bool, error) {
	op, nargs := byte(0), len(args)
	switch {
	case name == "list" && nargs == 0:
		return true, cc.constant(Nil)
	case name == "list" && nargs <= 4:
		op = opList1 + byte(nargs-1)
	case name == "list" && nargs <= 0xff:
		op = opListN
	case name == "concat" && nargs >= 2 && nargs <= 4:
		op = opConcat2 + byte(nargs-2)
	case name == "concat" && nargs > 4 && nargs <= 0xff:
		op = opConcatN
	case name == "-" && nargs == 1:
		op = opNegate
	default:
		d, ok := directOps[name]
		if !ok || d.nargs != nargs {
			return false, nil
		}
		op = d.op
	}
	for _, arg := range args {
		if err := cc.form(arg); err != nil {
			return true, err
		}
	}
	if op == opListN || op == opConcatN {
		cc.emit(op, byte(nargs))
	} else {
		cc.emit(op)
	}
	cc.adjust(1 - nargs)
	return true, nil
}

// lambda pushes the function for a nested lambda expression.
func (cc *compiler) lambda(form Value) error {
	c := cc.c
	if cc.dynamic {
		return cc.constant(form)
	}
	// The first pass discovers the captured variables, which must occupy
	// the leading constants.
	probe := &compiler{c: c, expansions: cc.expansions}
	if _, err := probe.function(form, cc); err != nil {
		return err
	}
	child := &compiler{c: c, expansions: cc.expansions, captures: probe.captures}
	proto, err := child.function(form, cc)
	if err != nil {
		return err
	}
	if len(child.captures) == 0 {
		return cc.constant(proto)
	}
	if err := cc.constant(symbolValue(SymMakeClosure)); err != nil {
		return err
	}
	if err := cc.constant(proto); err != nil {
		return err
	}
	for _, id := range child.captures {
		if err := cc.variable(symbolValue(id)); err != nil {
			return err
		}
	}
	n := len(child.captures) + 1
	cc.emitSmall(opCall, n)
	cc.adjust(-n)
	return nil
}

func (cc *compiler) prog1(form Value) error {
	args, err := cc.forms(form, 1)
	if err != nil {
		return err
	}
	if err := cc.form(args[0]); err != nil {
		return err
	}
	for _, arg := range args[1:] {
		if err := cc.form(arg); err != nil {
			return err
		}
		cc.discard()
	}
	return nil
}

func (cc *compiler) ifForm(form Value) error {
	rt := cc.c.rt
	args, err := cc.forms(form, 2)
	if err != nil {
		return err
	}
	if err := cc.form(args[0]); err != nil {
		return err
	}
	elseJump := cc.jump(opGotoIfNil)
	cc.adjust(-1)
	if err := cc.form(args[1]); err != nil {
		return err
	}
	endJump := cc.jump(opGoto)
	cc.adjust(-1)
	cc.label(elseJump)
	if err := cc.progn(rt.Cdr(rt.Cdr(rt.Cdr(form)))); err != nil {
		return err
	}
	cc.label(endJump)
	return nil
}

func (cc *compiler) cond(form Value) error {
	rt := cc.c.rt
	clauses, err := cc.forms(form, 0)
	if err != nil {
		return err
	}
	var ends []int
	for _, cl := range clauses {
		if !cl.IsCons() {
			if cl.IsNil() {
				continue
			}
			return cc.c.WrongType(SymListp, cl)
		}
		if err := cc.form(rt.Car(cl)); err != nil {
			return err
		}
		body := rt.Cdr(cl)
		if body.IsNil() {
			ends = append(ends, cc.jump(opGotoIfNonNilElsePop))
			cc.adjust(-1)
			continue
		}
		next := cc.jump(opGotoIfNil)
		cc.adjust(-1)
		if err := cc.progn(body); err != nil {
			return err
		}
		ends = append(ends, cc.jump(opGoto))
		cc.adjust(-1)
		cc.label(next)
	}
	if err := cc.constant(Nil); err != nil {
		return err
	}
	for _, pos := range ends {
		cc.label(pos)
	}
	return nil
}

// andOr compiles and/or.  empty is the value without arguments.
func (cc *compiler) andOr(form Value, op byte, empty Value) error {
	args, err := cc.forms(form, 0)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return cc.constant(empty)
	}
	var ends []int
	for i, arg := range args {
		if err := cc.form(arg); err != nil {
			return err
		}
		if i < len(args)-1 {
			ends = append(ends, cc.jump(op))
			cc.adjust(-1)
		}
	}
	for _, pos := range ends {
		cc.label(pos)
	}
	return nil
}

func (cc *compiler) while(form Value) error {
	rt := cc.c.rt
	args, err := cc.forms(form, 1)
	if err != nil {
		return err
	}
	top := len(cc.code)
	if err := cc.form(args[0]); err != nil {
		return err
	}
	end := cc.jump(opGotoIfNil)
	cc.adjust(-1)
	if err := cc.progn(rt.Cdr(rt.Cdr(form))); err != nil {
		return err
	}
	cc.discard()
	cc.jumpTo(opGoto, top)
	cc.label(end)
	return cc.constant(Nil)
}

func (cc *compiler) bindings(form Value) ([]Value, []Value, error) {
	rt := cc.c.rt
	if !rt.Cdr(form).IsCons() {
		return nil, nil, cc.c.Signal(SymWrongNumberOfArguments, rt.Car(form), Int(0))
	}
	list, err := cc.c.listSlice(rt.Car(rt.Cdr(form)))
	if err != nil {
		return nil, nil, err
	}
	syms := make([]Value, len(list))
	inits := make([]Value, len(list))
	for i, b := range list {
		if syms[i], inits[i], err = cc.c.letBinding(b); err != nil {
			return nil, nil, err
		}
	}
	return syms, inits, nil
}

func (cc *compiler) let(form Value) error {
	rt := cc.c.rt
	syms, inits, err := cc.bindings(form)
	if err != nil {
		return err
	}
	base := cc.depth
	for _, init := range inits {
		if err := cc.form(init); err != nil {
			return err
		}
	}
	saved := len(cc.scope)
	nspecial := 0
	for i, sym := range syms {
		if cc.isSpecial(sym) {
			cc.stackRef(base + i)
			if err := cc.varOp(opVarBind, sym); err != nil {
				return err
			}
			nspecial++
			continue
		}
		cc.bindLocal(sym, base+i)
	}
	if err := cc.progn(rt.Cdr(rt.Cdr(form))); err != nil {
		return err
	}
	if nspecial > 0 {
		cc.emitSmall(opUnbind, nspecial)
	}
	cc.scope = cc.scope[:saved]
	cc.discardUnder(len(syms))
	return nil
}

func (cc *compiler) letStar(form Value) error {
	rt := cc.c.rt
	syms, inits, err := cc.bindings(form)
	if err != nil {
		return err
	}
	saved := len(cc.scope)
	nlocal, nspecial := 0, 0
	for i, sym := range syms {
		if err := cc.form(inits[i]); err != nil {
			return err
		}
		if cc.isSpecial(sym) {
			if err := cc.varOp(opVarBind, sym); err != nil {
				return err
			}
			nspecial++
			continue
		}
		cc.bindLocal(sym, cc.depth-1)
		nlocal++
	}
	if err := cc.progn(rt.Cdr(rt.Cdr(form))); err != nil {
		return err
	}
	if nspecial > 0 {
		cc.emitSmall(opUnbind, nspecial)
	}
	cc.scope = cc.scope[:saved]
	cc.discardUnder(nlocal)
	return nil
}

func (cc *compiler) setq(form Value) error {
	args, err := cc.forms(form, 0)
	if err != nil {
		return err
	}
	if len(args)%2 != 0 {
		return cc.c.Signal(SymWrongNumberOfArguments, symbolValue(SymSetq), Int(int64(len(args))))
	}
	if len(args) == 0 {
		return cc.constant(Nil)
	}
	for i := 0; i < len(args); i += 2 {
		if err := cc.form(args[i+1]); err != nil {
			return err
		}
		if i+2 == len(args) {
			cc.emit(opDup)
			cc.adjust(1)
		}
		if err := cc.store(args[i]); err != nil {
			return err
		}
	}
	return nil
}

func (cc *compiler) catch(form Value) error {
	rt := cc.c.rt
	args, err := cc.forms(form, 1)
	if err != nil {
		return err
	}
	if err := cc.form(args[0]); err != nil {
		return err
	}
	handler := cc.jump(opPushCatch)
	cc.adjust(-1)
	if err := cc.progn(rt.Cdr(rt.Cdr(form))); err != nil {
		return err
	}
	cc.emit(opPopHandler)
	cc.label(handler)
	return nil
}

func (cc *compiler) unwindProtect(form Value) error {
	rt := cc.c.rt
	args, err := cc.forms(form, 1)
	if err != nil {
		return err
	}
	cleanup := rt.Cdr(rt.Cdr(form))
	if cc.dynamic {
		err = cc.constant(cleanup)
	} else {
		fn := rt.ListStar(cleanup, symbolValue(SymLambda), Nil)
		cc.c.pin(fn)
		err = cc.lambda(fn)
	}
	if err != nil {
		return err
	}
	cc.emit(opUnwindProtectOp)
	cc.adjust(-1)
	if err := cc.form(args[0]); err != nil {
		return err
	}
	cc.emitSmall(opUnbind, 1)
	return nil
}

func (cc *compiler) conditionCase(form Value) error {
	c := cc.c
	rt := c.rt
	args, err := cc.forms(form, 2)
	if err != nil {
		return err
	}
	variable := args[0]
	if !variable.IsSymbol() {
		return c.WrongType(SymSymbolp, variable)
	}
	clauses := args[2:]
	success := Nil
	type clause struct {
		body    Value
		target  int
		pending int
	}
	var handlers []*clause
	for i := len(clauses) - 1; i >= 0; i-- {
		cl := clauses[i]
		if !cl.IsList() {
			return c.Errorf("Invalid condition handler: %s", rt.Prin1String(cl))
		}
		if rt.Car(cl) == c.sym(":success") {
			success = rt.Cdr(cl)
			if success.IsNil() {
				success = rt.List(Nil)
			}
			continue
		}
		if err := cc.constant(rt.Car(cl)); err != nil {
			return err
		}
		h := &clause{body: rt.Cdr(cl), pending: len(handlers)}
		h.target = cc.jump(opPushConditionCase)
		cc.adjust(-1)
		handlers = append(handlers, h)
	}
	if err := cc.form(args[1]); err != nil {
		return err
	}
	for range handlers {
		cc.emit(opPopHandler)
	}
	if !success.IsNil() {
		if err := cc.handlerBody(variable, success); err != nil {
			return err
		}
	}
	var ends []int
	for i := len(handlers) - 1; i >= 0; i-- {
		h := handlers[i]
		ends = append(ends, cc.jump(opGoto))
		cc.label(h.target)
		for j := 0; j < h.pending; j++ {
			cc.emit(opPopHandler)
		}
		if err := cc.handlerBody(variable, h.body); err != nil {
			return err
		}
	}
	for _, pos := range ends {
		cc.label(pos)
	}
	return nil
}

// handlerBody compiles the body of a condition-case clause with variable
// bound to the value on top of the stack.
func (cc *compiler) handlerBody(variable, body Value) error {
	switch {
	case variable.IsNil():
		cc.discard()
		return cc.progn(body)
	case cc.isSpecial(variable):
		if err := cc.varOp(opVarBind, variable); err != nil {
			return err
		}
		if err := cc.progn(body); err != nil {
			return err
		}
		cc.emitSmall(opUnbind, 1)
		return nil
	}
	saved := len(cc.scope)
	cc.bindLocal(variable, cc.depth-1)
	if err := cc.progn(body); err != nil {
		return err
	}
	cc.scope = cc.scope[:saved]
	cc.discardUnder(1)
	return nil
}
