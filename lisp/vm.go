// Copyright © 2018 The ELPS authors

package lisp

import (
	"fmt"
)

// vmFrame is the activation record of a compiled function.  The operand
// stack below sp and the constants are collector roots.
type vmFrame struct {
	fn        Value
	constants Value
	stack     []Value
	sp        int
	pc        int
	op        byte
	// handlers established by pushcatch and pushconditioncase which are
	// still active.
	handlers []vmHandler
}

// vmHandler records where control resumes when a non-local exit reaches a
// handler pushed by the VM.
type vmHandler struct {
	id     uint64
	hdepth int
	spec   int
	sp     int
	target int
}

func (f *vmFrame) fault(format string, args ...interface{}) {
	panic(&InternalError{Msg: fmt.Sprintf(format, args...), PC: f.pc, Op: f.op})
}

func (f *vmFrame) push(v Value) {
	if f.sp >= len(f.stack) {
		f.fault("stack overflow")
	}
	f.stack[f.sp] = v
	f.sp++
}

func (f *vmFrame) pop() Value {
	if f.sp <= 0 {
		f.fault("stack underflow")
	}
	f.sp--
	v := f.stack[f.sp]
	f.stack[f.sp] = Nil
	return v
}

func (f *vmFrame) top() Value {
	if f.sp <= 0 {
		f.fault("stack underflow")
	}
	return f.stack[f.sp-1]
}

func (f *vmFrame) setTop(v Value) {
	if f.sp <= 0 {
		f.fault("stack underflow")
	}
	f.stack[f.sp-1] = v
}

// ref returns the stack slot n entries below the top.
func (f *vmFrame) ref(n int) *Value {
	i := f.sp - 1 - n
	if n < 0 || i < 0 {
		f.fault("stack reference %d out of range", n)
	}
	return &f.stack[i]
}

// popN removes n values and returns them as a fresh slice.
func (f *vmFrame) popN(n int) []Value {
	if n > f.sp {
		f.fault("stack underflow")
	}
	vs := make([]Value, n)
	copy(vs, f.stack[f.sp-n:f.sp])
	clear(f.stack[f.sp-n : f.sp])
	f.sp -= n
	return vs
}

// byteCodeSlots returns the elements of a compiled function object as aref
// sees them.
func (rt *Runtime) byteCodeSlots(code *ByteCode) []Value {
	slots := []Value{code.ArgDesc, rt.unibyteString(code.Code), code.Constants, Int(int64(code.MaxDepth))}
	if code.Doc.Truthy() || code.Interactive.Truthy() {
		slots = append(slots, code.Doc)
	}
	if code.Interactive.Truthy() {
		slots = append(slots, code.Interactive)
	}
	return slots
}

// unibyteString returns a string with one character per byte of b.
func (rt *Runtime) unibyteString(b []byte) Value {
	rs := make([]rune, len(b))
	for i, x := range b {
		rs[i] = rune(x)
	}
	return rt.String(string(rs))
}

// byteCodeArity returns the number of arguments accepted by code.
func (rt *Runtime) byteCodeArity(code *ByteCode) Arity {
	mandatory, nonrest, rest, ok := code.LexicalArgs()
	if !ok {
		a, _ := rt.lambdaArity(code.ArgDesc)
		return a
	}
	a := Arity{Min: mandatory, Max: nonrest}
	if rest {
		a.Max = Many
	}
	return a
}

// execByteCode calls the compiled function fun with args.  All dynamic
// bindings and handlers established by the function are removed when it
// returns, however control leaves it.
func (c *Context) execByteCode(fnv Value, fun *Function, args []Value) (Value, error) {
	rt := c.rt
	code := fun.Code
	if code.Constants.tag != TagVector {
		panic(&InternalError{Msg: "byte-code constants are not a vector"})
	}
	f := &vmFrame{
		fn:        fnv,
		constants: code.Constants,
		stack:     make([]Value, code.MaxDepth+1),
	}
	spec := len(c.specpdl)
	hdepth := len(c.handlers)
	c.vmframes = append(c.vmframes, f)
	defer func() {
		c.handlers = c.handlers[:hdepth]
		n := len(c.vmframes) - 1
		c.vmframes[n] = nil
		c.vmframes = c.vmframes[:n]
	}()

	if mandatory, nonrest, rest, ok := code.LexicalArgs(); ok {
		n := len(args)
		if n < mandatory || (!rest && n > nonrest) {
			return Nil, c.Signal(SymWrongNumberOfArguments, fnv, Int(int64(n)))
		}
		if nonrest+1 > len(f.stack) {
			f.fault("argument slots exceed stack depth %d", code.MaxDepth)
		}
		for i := 0; i < nonrest; i++ {
			if i < n {
				f.push(args[i])
			} else {
				f.push(Nil)
			}
		}
		if rest {
			if n > nonrest {
				f.push(rt.List(args[nonrest:]...))
			} else {
				f.push(Nil)
			}
		}
	} else if err := c.bindDynamicArgs(fnv, code.ArgDesc, args); err != nil {
		return c.unbind(spec, Nil, err)
	}

	val, err := c.runVM(f, code.Code)
	return c.unbind(spec, val, err)
}

// bindDynamicArgs binds the parameters of a lambda list argument
// descriptor with specbind.
func (c *Context) bindDynamicArgs(fnv, params Value, args []Value) error {
	rt := c.rt
	arity, ok := c.rt.lambdaArity(params)
	if !ok {
		return c.Signal(SymInvalidFunction, fnv)
	}
	if !arity.Accepts(len(args)) {
		return c.Signal(SymWrongNumberOfArguments, fnv, Int(int64(len(args))))
	}
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
		switch {
		case rest:
			if i < len(args) {
				val = rt.List(args[i:]...)
			}
			i = len(args)
		case i < len(args):
			val = args[i]
			i++
		}
		if err := c.specbind(sym.Symbol(), val); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) constant(f *vmFrame, i int) Value {
	consts := c.rt.Items(f.constants)
	if i < 0 || i >= len(consts) {
		f.fault("constant index %d out of range", i)
	}
	return consts[i]
}

func (f *vmFrame) jump(code []byte, target int) {
	if target < 0 || target >= len(code) {
		f.fault("jump target %d out of range", target)
	}
	f.pc = target
}

// vmRecover transfers control to the handler of f targeted by err.  It
// returns the error which must propagate out of f, or nil when execution
// continues at a handler.
func (c *Context) vmRecover(f *vmFrame, err error) error {
	for {
		var id uint64
		switch e := err.(type) {
		case *Signal:
			id = e.handler
		case *Throw:
			id = e.handler
		default:
			return err
		}
		idx := -1
		for i := len(f.handlers) - 1; i >= 0; i-- {
			if f.handlers[i].id == id {
				idx = i
				break
			}
		}
		if id == 0 || idx < 0 {
			return err
		}
		h := f.handlers[idx]
		f.handlers = f.handlers[:idx]
		c.handlers = c.handlers[:h.hdepth]
		_, uerr := c.unbind(h.spec, Nil, err)
		if uerr != err {
			// A cleanup exited non-locally.
			err = uerr
			continue
		}
		clear(f.stack[h.sp:f.sp])
		f.sp = h.sp
		switch e := err.(type) {
		case *Signal:
			f.push(e.Value(c.rt))
		case *Throw:
			f.push(e.Value)
		}
		f.pc = h.target
		return nil
	}
}

func (c *Context) runVM(f *vmFrame, code []byte) (Value, error) {
	for {
		if f.pc >= len(code) {
			f.fault("end of code without return")
		}
		start := f.pc
		op, arg, next, ok := decodeOperand(code, f.pc)
		f.op = op
		if !ok {
			f.fault("truncated instruction")
		}
		f.pc = next
		val, done, err := c.step(f, code, op, arg, start)
		if done {
			return val, nil
		}
		if err != nil {
			if err = c.vmRecover(f, err); err != nil {
				return Nil, err
			}
		}
	}
}

// step executes one instruction.  done is true when the function returns
// val.
func (c *Context) step(f *vmFrame, code []byte, op byte, arg int, start int) (val Value, done bool, err error) {
	rt := c.rt
	if op >= opConstant {
		f.push(c.constant(f, arg))
		return Nil, false, nil
	}
	if op < opPopHandler {
		switch op &^ 7 {
		case opStackRef:
			f.push(*f.ref(arg))
		case opVarRef:
			sym := c.constant(f, arg)
			if !sym.IsSymbol() {
				return Nil, false, c.WrongType(SymSymbolp, sym)
			}
			v, ok := rt.SymbolValue(sym)
			if !ok {
				return Nil, false, c.Signal(SymVoidVariable, sym)
			}
			f.push(v)
		case opVarSet:
			sym := c.constant(f, arg)
			if !sym.IsSymbol() {
				return Nil, false, c.WrongType(SymSymbolp, sym)
			}
			err = c.setDynamic(sym, f.pop())
		case opVarBind:
			sym := c.constant(f, arg)
			if !sym.IsSymbol() {
				return Nil, false, c.WrongType(SymSymbolp, sym)
			}
			err = c.specbind(sym.Symbol(), f.pop())
		case opCall:
			fn := *f.ref(arg)
			if f.sp < arg+1 {
				f.fault("stack underflow")
			}
			args := make([]Value, arg)
			copy(args, f.stack[f.sp-arg:f.sp])
			var v Value
			v, err = c.Funcall(fn, args...)
			f.popN(arg + 1)
			if err == nil {
				f.push(v)
			}
		case opUnbind:
			depth := len(c.specpdl) - arg
			if depth < 0 {
				f.fault("unbind %d exceeds binding stack", arg)
			}
			_, err = c.unbind(depth, Nil, nil)
		}
		return Nil, false, err
	}

	info := &opTable[op]
	if info.fn != "" {
		if f.sp < info.nargs {
			f.fault("stack underflow")
		}
		args := make([]Value, info.nargs)
		copy(args, f.stack[f.sp-info.nargs:f.sp])
		var v Value
		v, err = c.Funcall(c.sym(info.fn), args...)
		f.popN(info.nargs)
		if err == nil {
			f.push(v)
		}
		return Nil, false, err
	}

	switch op {
	case opPopHandler:
		n := len(f.handlers)
		if n == 0 {
			f.fault("pophandler without handler")
		}
		c.handlers = c.handlers[:f.handlers[n-1].hdepth]
		f.handlers = f.handlers[:n-1]
	case opPushConditionCase, opPushCatch:
		tag := f.pop()
		kind := handlerCatch
		if op == opPushConditionCase {
			kind = handlerConditionCase
		}
		if arg >= len(code) {
			f.fault("handler target %d out of range", arg)
		}
		hdepth := len(c.handlers)
		id := c.pushHandler(kind, tag)
		f.handlers = append(f.handlers, vmHandler{
			id:     id,
			hdepth: hdepth,
			spec:   len(c.specpdl),
			sp:     f.sp,
			target: arg,
		})
	case opNth:
		lst := f.pop()
		var v Value
		if v, err = c.Nth(f.top(), lst); err == nil {
			f.setTop(v)
		}
	case opSymbolp:
		f.setTop(Bool(f.top().IsSymbol()))
	case opConsp:
		f.setTop(Bool(f.top().IsCons()))
	case opStringp:
		f.setTop(Bool(f.top().tag == TagString))
	case opListp:
		f.setTop(Bool(f.top().IsList()))
	case opEq:
		b := f.pop()
		f.setTop(Bool(f.top() == b))
	case opMemq:
		lst := f.pop()
		var v Value
		if v, err = c.Memq(f.top(), lst); err == nil {
			f.setTop(v)
		}
	case opNot:
		f.setTop(Bool(f.top().IsNil()))
	case opCar:
		var v Value
		if v, err = c.Car(f.top()); err == nil {
			f.setTop(v)
		}
	case opCdr:
		var v Value
		if v, err = c.Cdr(f.top()); err == nil {
			f.setTop(v)
		}
	case opCons:
		cdr := f.pop()
		f.setTop(rt.Cons(f.top(), cdr))
	case opList1, opList2, opList3, opList4:
		f.push(rt.List(f.popN(int(op-opList1) + 1)...))
	case opListN:
		f.push(rt.List(f.popN(arg)...))
	case opLength:
		var v Value
		if v, err = c.Length(f.top()); err == nil {
			f.setTop(v)
		}
	case opAref:
		idx := f.pop()
		var v Value
		if v, err = c.Aref(f.top(), idx); err == nil {
			f.setTop(v)
		}
	case opAset:
		args := f.popN(3)
		var v Value
		if v, err = c.Aset(args[0], args[1], args[2]); err == nil {
			f.push(v)
		}
	case opSymbolValue:
		var v Value
		if v, err = c.SymbolValue(f.top()); err == nil {
			f.setTop(v)
		}
	case opSymbolFunction:
		var v Value
		if v, err = builtinSymbolFunction(c, []Value{f.top()}); err == nil {
			f.setTop(v)
		}
	case opSet:
		val := f.pop()
		var v Value
		if v, err = c.Set(f.top(), val); err == nil {
			f.setTop(v)
		}
	case opFset:
		def := f.pop()
		var v Value
		if v, err = c.Fset(f.top(), def); err == nil {
			f.setTop(v)
		}
	case opGet:
		prop := f.pop()
		var v Value
		if v, err = builtinGet(c, []Value{f.top(), prop}); err == nil {
			f.setTop(v)
		}
	case opSubstring:
		args := f.popN(3)
		var v Value
		if v, err = c.Substring(args[0], args[1], args[2]); err == nil {
			f.push(v)
		}
	case opConcat2, opConcat3, opConcat4:
		var v Value
		if v, err = c.Concat(f.popN(int(op-opConcat2) + 2)...); err == nil {
			f.push(v)
		}
	case opInsertN:
		var v Value
		if v, err = c.Funcall(c.sym("insert"), f.popN(arg)...); err == nil {
			f.push(v)
		}
	case opConcatN:
		var v Value
		if v, err = c.Concat(f.popN(arg)...); err == nil {
			f.push(v)
		}
	case opSub1, opAdd1:
		aop := opAdd
		if op == opSub1 {
			aop = opSub
		}
		var v Value
		if v, err = c.arith(aop, f.top(), Int(1)); err == nil {
			f.setTop(v)
		}
	case opEqlsign, opGtr, opLss, opLeq, opGeq:
		b := f.pop()
		var n int
		if n, err = c.compare(f.top(), b); err == nil {
			var r bool
			switch op {
			case opEqlsign:
				r = n == 0
			case opGtr:
				r = n == 1
			case opLss:
				r = n == -1
			case opLeq:
				r = n == -1 || n == 0
			case opGeq:
				r = n == 1 || n == 0
			}
			f.setTop(Bool(r))
		}
	case opDiff, opPlus, opMult:
		b := f.pop()
		aop := opAdd
		switch op {
		case opDiff:
			aop = opSub
		case opMult:
			aop = opMul
		}
		var v Value
		if v, err = c.arith(aop, f.top(), b); err == nil {
			f.setTop(v)
		}
	case opNegate:
		var v Value
		if v, err = c.Negate(f.top()); err == nil {
			f.setTop(v)
		}
	case opMax, opMin:
		b := f.pop()
		want := 1
		if op == opMin {
			want = -1
		}
		var v Value
		if v, err = c.extremum([]Value{f.top(), b}, want); err == nil {
			f.setTop(v)
		}
	case opConstant2:
		f.push(c.constant(f, arg))
	case opGoto:
		err = c.vmJump(f, code, arg, start)
	case opGotoIfNil:
		if f.pop().IsNil() {
			err = c.vmJump(f, code, arg, start)
		}
	case opGotoIfNonNil:
		if f.pop().Truthy() {
			err = c.vmJump(f, code, arg, start)
		}
	case opGotoIfNilElsePop:
		if f.top().IsNil() {
			err = c.vmJump(f, code, arg, start)
		} else {
			f.pop()
		}
	case opGotoIfNonNilElsePop:
		if f.top().Truthy() {
			err = c.vmJump(f, code, arg, start)
		} else {
			f.pop()
		}
	case opReturn:
		return f.top(), true, nil
	case opDiscard:
		f.pop()
	case opDiscardN:
		n := arg & 0x7f
		if arg&0x80 != 0 && n > 0 {
			*f.ref(n) = f.top()
		}
		f.popN(n)
	case opDup:
		f.push(f.top())
	case opUnwindProtectOp:
		handler := f.pop()
		if c.Functionp(handler) {
			c.recordCleanupFunc(handler)
		} else {
			c.recordCleanup(handler, Nil)
		}
	case opStackSet, opStackSet2:
		slot := f.ref(arg)
		*slot = f.pop()
	case opSwitch:
		table := f.pop()
		key := f.pop()
		if table.tag != TagHashTable {
			f.fault("switch table is not a hash table")
		}
		var target Value
		var found bool
		if target, found, err = c.Gethash(table, key); err == nil && found {
			if !target.IsFixnum() {
				f.fault("switch target is not an integer")
			}
			err = c.vmJump(f, code, int(target.Fixnum()), start)
		}
	default:
		f.fault("invalid opcode")
	}
	return Nil, false, err
}

// vmJump moves the program counter.  Backward jumps are safe points.
func (c *Context) vmJump(f *vmFrame, code []byte, target, from int) error {
	f.jump(code, target)
	if target <= from {
		return c.poll()
	}
	return nil
}

var langByteCodeBuiltins = []*langBuiltin{
	{"make-byte-code", 4, Many, builtinMakeByteCode,
		`Creates a compiled function object from ARGDESC, BYTE-CODE,
		CONSTANTS and DEPTH, with optional DOCSTRING and INTERACTIVE-SPEC.`},
	{"make-closure", 1, Many, builtinMakeClosure,
		`Returns a copy of the compiled PROTOTYPE whose first constants are
		replaced by CLOSURE-VARS.`},
	{"byte-code", 3, 3, builtinByteCode, `Executes BYTESTR with CONSTANTS and MAXDEPTH.`},
	{"byte-compile", 1, 1, builtinByteCompile,
		`Compiles FORM.  A symbol has its function definition compiled in
		place.  A lambda expression is compiled and returned.`},
	{"disassemble", 1, 1, builtinDisassemble, `Returns a listing of the instructions of a compiled function.`},
}

// byteString returns the bytes of a unibyte string.
func (c *Context) byteString(v Value) ([]byte, error) {
	s, err := c.checkString(v)
	if err != nil {
		return nil, err
	}
	rs := []rune(s)
	b := make([]byte, len(rs))
	for i, r := range rs {
		if r > 0xff {
			if r < 0x3fff80 {
				return nil, c.Errorf("Invalid byte code string")
			}
			// Raw byte characters.
			r -= 0x3fff00
		}
		b[i] = byte(r)
	}
	return b, nil
}

// MakeByteCode builds a compiled function object.
func (c *Context) MakeByteCode(argdesc, code, constants, depth Value, rest ...Value) (Value, error) {
	if !argdesc.IsFixnum() && !argdesc.IsList() {
		return Nil, c.WrongType(SymListp, argdesc)
	}
	b, err := c.byteString(code)
	if err != nil {
		return Nil, err
	}
	if constants.tag != TagVector {
		return Nil, c.WrongType(SymVectorp, constants)
	}
	d, err := c.checkFixnum(depth)
	if err != nil {
		return Nil, err
	}
	if d < 0 || d > 1<<16 {
		return Nil, c.Signal(SymArgsOutOfRange, depth)
	}
	bc := &ByteCode{
		ArgDesc:   argdesc,
		Code:      b,
		Constants: constants,
		MaxDepth:  int(d),
	}
	if len(rest) > 0 {
		bc.Doc = rest[0]
	}
	if len(rest) > 1 {
		bc.Interactive = rest[1]
	}
	return c.rt.NewFunction(Function{Kind: FuncCompiled, Code: bc, Arity: c.rt.byteCodeArity(bc)}), nil
}

// NewByteCode builds a compiled function from the slots of a printed
// byte-code object: ARGDESC CODE CONSTANTS DEPTH and optionally DOC and
// INTERACTIVE.
func (rt *Runtime) NewByteCode(slots []Value) (Value, error) {
	if len(slots) < 4 || len(slots) > 6 {
		return Nil, fmt.Errorf("invalid byte-code object of length %d", len(slots))
	}
	argdesc, code, constants, depth := slots[0], slots[1], slots[2], slots[3]
	if !argdesc.IsFixnum() && !argdesc.IsList() {
		return Nil, fmt.Errorf("invalid byte-code argument descriptor")
	}
	if code.tag != TagString {
		return Nil, fmt.Errorf("byte-code instructions are not a string")
	}
	rs := []rune(rt.StringVal(code))
	b := make([]byte, len(rs))
	for i, r := range rs {
		if r > 0xff {
			return Nil, fmt.Errorf("invalid byte-code string")
		}
		b[i] = byte(r)
	}
	if constants.tag != TagVector {
		return Nil, fmt.Errorf("byte-code constants are not a vector")
	}
	if !depth.IsFixnum() || depth.Fixnum() < 0 || depth.Fixnum() > 1<<16 {
		return Nil, fmt.Errorf("invalid byte-code stack depth")
	}
	bc := &ByteCode{ArgDesc: argdesc, Code: b, Constants: constants, MaxDepth: int(depth.Fixnum())}
	if len(slots) > 4 {
		bc.Doc = slots[4]
	}
	if len(slots) > 5 {
		bc.Interactive = slots[5]
	}
	return rt.NewFunction(Function{Kind: FuncCompiled, Code: bc, Arity: rt.byteCodeArity(bc)}), nil
}

func builtinMakeByteCode(c *Context, args []Value) (Value, error) {
	return c.MakeByteCode(args[0], args[1], args[2], args[3], args[4:]...)
}

// MakeClosure copies the compiled prototype with its leading constants
// replaced by vars.
func (c *Context) MakeClosure(proto Value, vars ...Value) (Value, error) {
	rt := c.rt
	if proto.tag != TagFunction || rt.Fun(proto).Kind != FuncCompiled {
		return Nil, c.WrongType(SymByteCodeFunctionp, proto)
	}
	pf := rt.Fun(proto)
	consts := rt.Items(pf.Code.Constants)
	if len(vars) > len(consts) {
		return Nil, c.Signal(SymArgsOutOfRange, proto, Int(int64(len(vars))))
	}
	nconsts := make([]Value, len(consts))
	copy(nconsts, consts)
	copy(nconsts, vars)
	code := *pf.Code
	code.Constants = rt.Vector(nconsts)
	fn := *pf
	fn.Code = &code
	return rt.NewFunction(fn), nil
}

func builtinMakeClosure(c *Context, args []Value) (Value, error) {
	return c.MakeClosure(args[0], args[1:]...)
}

func builtinByteCode(c *Context, args []Value) (Value, error) {
	fn, err := c.MakeByteCode(Nil, args[0], args[1], args[2])
	if err != nil {
		return Nil, err
	}
	mark := c.pin(fn)
	defer c.unpin(mark)
	return c.Funcall(fn)
}
