// Copyright © 2018 The ELPS authors

package lisp

import (
	"unicode/utf8"
)

var langDataBuiltins = []*langBuiltin{
	{"eq", 2, 2, builtinEq, `Returns t if the two arguments are the same object.`},
	{"eql", 2, 2, builtinEql, `Like eq but numbers of the same type and value are eql.`},
	{"equal", 2, 2, builtinEqual,
		`Returns t if the two arguments have the same structure and contents.
		Comparison terminates on circular structure.`},
	{"null", 1, 1, builtinNull, `Returns t if the argument is nil.`},
	{"not", 1, 1, builtinNull, `Returns t if the argument is nil.`},
	{"type-of", 1, 1, builtinTypeOf, `Returns a symbol naming the type of the argument.`},
	{"consp", 1, 1, predicate(func(c *Context, v Value) bool { return v.IsCons() }), `Returns t if the argument is a cons cell.`},
	{"atom", 1, 1, predicate(func(c *Context, v Value) bool { return !v.IsCons() }), `Returns t if the argument is not a cons cell.`},
	{"listp", 1, 1, predicate(func(c *Context, v Value) bool { return v.IsList() }), `Returns t if the argument is a cons cell or nil.`},
	{"nlistp", 1, 1, predicate(func(c *Context, v Value) bool { return !v.IsList() }), `Returns t if the argument is not a list.`},
	{"symbolp", 1, 1, predicate(func(c *Context, v Value) bool { return v.IsSymbol() }), `Returns t if the argument is a symbol.`},
	{"keywordp", 1, 1, predicate(func(c *Context, v Value) bool { return c.rt.IsKeyword(v) }), `Returns t if the argument is a keyword.`},
	{"booleanp", 1, 1, predicate(func(c *Context, v Value) bool { return v == T || v == Nil }), `Returns t if the argument is t or nil.`},
	{"stringp", 1, 1, predicate(func(c *Context, v Value) bool { return v.tag == TagString }), `Returns t if the argument is a string.`},
	{"numberp", 1, 1, predicate(func(c *Context, v Value) bool { return v.IsNumber() }), `Returns t if the argument is a number.`},
	{"number-or-marker-p", 1, 1, predicate(func(c *Context, v Value) bool { return v.IsNumber() }), `Returns t if the argument is a number.`},
	{"integerp", 1, 1, predicate(func(c *Context, v Value) bool { return v.IsInteger() }), `Returns t if the argument is an integer.`},
	{"integer-or-marker-p", 1, 1, predicate(func(c *Context, v Value) bool { return v.IsInteger() }), `Returns t if the argument is an integer.`},
	{"fixnump", 1, 1, predicate(func(c *Context, v Value) bool { return v.IsFixnum() }), `Returns t if the argument is a fixnum.`},
	{"bignump", 1, 1, predicate(func(c *Context, v Value) bool { return v.tag == TagBigInt }), `Returns t if the argument is a bignum.`},
	{"floatp", 1, 1, predicate(func(c *Context, v Value) bool { return v.tag == TagFloat }), `Returns t if the argument is a float.`},
	{"natnump", 1, 1, predicate(func(c *Context, v Value) bool { return c.rt.sign(v) >= 0 && v.IsInteger() }), `Returns t if the argument is a non-negative integer.`},
	{"zerop", 1, 1, builtinZerop, `Returns t if the number argument is zero.`},
	{"vectorp", 1, 1, predicate(func(c *Context, v Value) bool { return v.tag == TagVector }), `Returns t if the argument is a vector.`},
	{"recordp", 1, 1, predicate(func(c *Context, v Value) bool { return v.tag == TagRecord }), `Returns t if the argument is a record.`},
	{"arrayp", 1, 1, predicate(func(c *Context, v Value) bool { return v.tag == TagVector || v.tag == TagString }), `Returns t if the argument is a vector or string.`},
	{"sequencep", 1, 1, predicate(func(c *Context, v Value) bool { return v.IsList() || v.tag == TagVector || v.tag == TagString }), `Returns t if the argument is a list, vector or string.`},
	{"characterp", 1, 1, predicate(func(c *Context, v Value) bool { return isChar(v) }), `Returns t if the argument is a character code.`},
	{"char-or-string-p", 1, 1, predicate(func(c *Context, v Value) bool { return isChar(v) || v.tag == TagString }), `Returns t if the argument is a character or a string.`},
	{"functionp", 1, 1, predicate(func(c *Context, v Value) bool { return c.Functionp(v) }), `Returns t if the argument can be called with funcall.`},
	{"subrp", 1, 1, predicate(func(c *Context, v Value) bool { return v.tag == TagFunction && c.rt.Fun(v).Kind == FuncNative }), `Returns t if the argument is a primitive.`},
	{"special-form-p", 1, 1, builtinSpecialFormp, `Returns t if the argument names a special form.`},
	{"macrop", 1, 1, builtinMacrop, `Returns t if the argument names a macro.`},
	{"byte-code-function-p", 1, 1, predicate(func(c *Context, v Value) bool { return v.tag == TagFunction && c.rt.Fun(v).Kind == FuncCompiled }), `Returns t if the argument is a compiled function.`},
	{"compiled-function-p", 1, 1, predicate(func(c *Context, v Value) bool {
		return v.tag == TagFunction && (c.rt.Fun(v).Kind == FuncCompiled || c.rt.Fun(v).Kind == FuncNative)
	}), `Returns t if the argument is a compiled function or primitive.`},
	{"interpreted-function-p", 1, 1, predicate(func(c *Context, v Value) bool { return v.tag == TagFunction && c.rt.Fun(v).Kind == FuncInterpreted }), `Returns t if the argument is an interpreted closure.`},
	{"hash-table-p", 1, 1, predicate(func(c *Context, v Value) bool { return v.tag == TagHashTable }), `Returns t if the argument is a hash table.`},
	{"vector", 0, Many, builtinVector, `Returns a new vector containing the arguments.`},
	{"make-vector", 2, 2, builtinMakeVector, `Returns a vector of LENGTH elements, each INIT.`},
	{"record", 1, Many, builtinRecord, `Returns a new record of TYPE with the given slots.`},
	{"make-record", 3, 3, builtinMakeRecord, `Returns a record of TYPE with LENGTH slots, each INIT.`},
	{"aref", 2, 2, builtinAref, `Returns the element of ARRAY at INDEX.`},
	{"aset", 3, 3, builtinAset, `Stores VALUE in ARRAY at INDEX and returns VALUE.`},
	{"vconcat", 0, Many, builtinVconcat, `Returns a vector of the elements of all argument sequences.`},
}

func predicate(fn func(c *Context, v Value) bool) NativeFunc {
	return func(c *Context, args []Value) (Value, error) {
		return Bool(fn(c, args[0])), nil
	}
}

const maxChar = 0x3FFFFF

func isChar(v Value) bool {
	return v.IsFixnum() && v.Fixnum() >= 0 && v.Fixnum() <= maxChar
}

// IsKeyword returns true if v is an interned symbol whose name starts with
// a colon.
func (rt *Runtime) IsKeyword(v Value) bool {
	if !v.IsSymbol() {
		return false
	}
	s := rt.Sym(v)
	return s.Is(SymInterned) && len(s.Name) > 1 && s.Name[0] == ':'
}

func builtinEq(c *Context, args []Value) (Value, error) {
	return Bool(args[0] == args[1]), nil
}

func builtinEql(c *Context, args []Value) (Value, error) {
	return Bool(c.rt.Eql(args[0], args[1])), nil
}

func builtinEqual(c *Context, args []Value) (Value, error) {
	return Bool(c.rt.Equal(args[0], args[1])), nil
}

func builtinNull(c *Context, args []Value) (Value, error) {
	return Bool(args[0].IsNil()), nil
}

func builtinZerop(c *Context, args []Value) (Value, error) {
	v := args[0]
	switch v.tag {
	case TagInt:
		return Bool(v.Fixnum() == 0), nil
	case TagFloat:
		return Bool(v.FloatVal() == 0), nil
	case TagBigInt:
		return Nil, nil
	}
	return Nil, c.WrongType(SymNumberp, v)
}

func builtinSpecialFormp(c *Context, args []Value) (Value, error) {
	v := args[0]
	if v.IsSymbol() {
		v = c.rt.Sym(v).Function
	}
	return Bool(v.tag == TagFunction && c.rt.Fun(v).Special != nil), nil
}

func builtinMacrop(c *Context, args []Value) (Value, error) {
	v, err := c.indirectFunction(args[0])
	if err != nil {
		return Nil, err
	}
	switch {
	case v.tag == TagFunction:
		return Bool(c.rt.Fun(v).Kind == FuncMacro), nil
	case v.IsCons():
		return Bool(c.rt.Car(v) == symbolValue(SymMacro)), nil
	}
	return Nil, nil
}

// Eql implements eql.
func (rt *Runtime) Eql(a, b Value) bool {
	if a == b {
		return true
	}
	if a.tag == TagBigInt && b.tag == TagBigInt {
		return rt.BigIntVal(a).Cmp(rt.BigIntVal(b)) == 0
	}
	return false
}

// Equal implements equal.  Circular structure is compared coinductively: a
// pair of objects already under comparison is assumed equal.
func (rt *Runtime) Equal(a, b Value) bool {
	e := &equalState{rt: rt}
	return e.equal(a, b)
}

type equalState struct {
	rt    *Runtime
	count int
	seen  map[[2]Value]bool
}

// Comparisons shorter than this never allocate a visited set.
const equalTrackThreshold = 1000

func (e *equalState) visit(a, b Value) bool {
	e.count++
	if e.count < equalTrackThreshold {
		return false
	}
	if e.seen == nil {
		e.seen = make(map[[2]Value]bool)
	}
	k := [2]Value{a, b}
	if e.seen[k] {
		return true
	}
	e.seen[k] = true
	return false
}

func (e *equalState) equal(a, b Value) bool {
	rt := e.rt
	for {
		if a == b {
			return true
		}
		if a.tag != b.tag {
			return false
		}
		switch a.tag {
		case TagString:
			return rt.StringVal(a) == rt.StringVal(b)
		case TagBigInt:
			return rt.Eql(a, b)
		case TagVector, TagRecord:
			if e.visit(a, b) {
				return true
			}
			xs, ys := rt.Items(a), rt.Items(b)
			if len(xs) != len(ys) {
				return false
			}
			for i := range xs {
				if !e.equal(xs[i], ys[i]) {
					return false
				}
			}
			return true
		case TagFunction:
			fa, fb := rt.Fun(a), rt.Fun(b)
			if fa.Kind != FuncCompiled || fb.Kind != FuncCompiled {
				return false
			}
			return string(fa.Code.Code) == string(fb.Code.Code) &&
				e.equal(fa.Code.ArgDesc, fb.Code.ArgDesc) &&
				e.equal(fa.Code.Constants, fb.Code.Constants)
		case TagCons:
			if e.visit(a, b) {
				return true
			}
			if !e.equal(rt.Car(a), rt.Car(b)) {
				return false
			}
			a, b = rt.Cdr(a), rt.Cdr(b)
			continue
		}
		return false
	}
}

var typeNames = map[Tag]string{
	TagInt:       "integer",
	TagBigInt:    "integer",
	TagFloat:     "float",
	TagCons:      "cons",
	TagString:    "string",
	TagVector:    "vector",
	TagHashTable: "hash-table",
}

// TypeOf returns the type-of symbol for v.
func (rt *Runtime) TypeOf(v Value) Value {
	switch v.tag {
	case TagSymbol:
		return rt.Symbol("symbol")
	case TagRecord:
		items := rt.Items(v)
		if len(items) > 0 {
			return items[0]
		}
		return rt.Symbol("record")
	case TagFunction:
		f := rt.Fun(v)
		switch {
		case f.Special != nil:
			return rt.Symbol("special-form")
		case f.Kind == FuncNative:
			return rt.Symbol("primitive-function")
		case f.Kind == FuncCompiled:
			return rt.Symbol("byte-code-function")
		case f.Kind == FuncMacro:
			return rt.Symbol("macro")
		}
		return rt.Symbol("interpreted-function")
	}
	if name, ok := typeNames[v.tag]; ok {
		return rt.Symbol(name)
	}
	return rt.Symbol(v.tag.String())
}

func builtinTypeOf(c *Context, args []Value) (Value, error) {
	return c.rt.TypeOf(args[0]), nil
}

func builtinVector(c *Context, args []Value) (Value, error) {
	return c.rt.Vector(append([]Value(nil), args...)), nil
}

// maxSequenceLength bounds sequences created by make-vector and friends.
const maxSequenceLength = 1 << 28

func builtinMakeVector(c *Context, args []Value) (Value, error) {
	n, err := c.checkNatnum(args[0])
	if err != nil {
		return Nil, err
	}
	if n > maxSequenceLength {
		return Nil, c.Signal(SymArgsOutOfRange, args[0])
	}
	items := make([]Value, n)
	for i := range items {
		items[i] = args[1]
	}
	return c.rt.Vector(items), nil
}

func builtinRecord(c *Context, args []Value) (Value, error) {
	return c.rt.Record(append([]Value(nil), args...)), nil
}

func builtinMakeRecord(c *Context, args []Value) (Value, error) {
	n, err := c.checkNatnum(args[1])
	if err != nil {
		return Nil, err
	}
	if n > maxSequenceLength {
		return Nil, c.Signal(SymArgsOutOfRange, args[1])
	}
	items := make([]Value, n+1)
	items[0] = args[0]
	for i := 1; i < len(items); i++ {
		items[i] = args[2]
	}
	return c.rt.Record(items), nil
}

// Aref implements aref.
func (c *Context) Aref(arr, idx Value) (Value, error) {
	i, err := c.checkFixnum(idx)
	if err != nil {
		return Nil, err
	}
	switch arr.tag {
	case TagVector, TagRecord:
		items := c.rt.Items(arr)
		if i < 0 || i >= int64(len(items)) {
			return Nil, c.Signal(SymArgsOutOfRange, arr, idx)
		}
		return items[i], nil
	case TagString:
		rs := []rune(c.rt.StringVal(arr))
		if i < 0 || i >= int64(len(rs)) {
			return Nil, c.Signal(SymArgsOutOfRange, arr, idx)
		}
		return Int(int64(rs[i])), nil
	case TagFunction:
		if f := c.rt.Fun(arr); f.Kind == FuncCompiled {
			slots := c.rt.byteCodeSlots(f.Code)
			if i < 0 || i >= int64(len(slots)) {
				return Nil, c.Signal(SymArgsOutOfRange, arr, idx)
			}
			return slots[i], nil
		}
	}
	return Nil, c.WrongType(SymArrayp, arr)
}

func builtinAref(c *Context, args []Value) (Value, error) {
	return c.Aref(args[0], args[1])
}

// Aset implements aset.
func (c *Context) Aset(arr, idx, val Value) (Value, error) {
	i, err := c.checkFixnum(idx)
	if err != nil {
		return Nil, err
	}
	switch arr.tag {
	case TagVector, TagRecord:
		items := c.rt.Items(arr)
		if i < 0 || i >= int64(len(items)) {
			return Nil, c.Signal(SymArgsOutOfRange, arr, idx)
		}
		items[i] = val
		return val, nil
	case TagString:
		if !isChar(val) {
			return Nil, c.WrongType(SymCharacterp, val)
		}
		rs := []rune(c.rt.StringVal(arr))
		if i < 0 || i >= int64(len(rs)) {
			return Nil, c.Signal(SymArgsOutOfRange, arr, idx)
		}
		r := rune(val.Fixnum())
		if !utf8.ValidRune(r) {
			r = utf8.RuneError
		}
		rs[i] = r
		c.rt.setString(arr, string(rs))
		return val, nil
	}
	return Nil, c.WrongType(SymArrayp, arr)
}

func builtinAset(c *Context, args []Value) (Value, error) {
	return c.Aset(args[0], args[1], args[2])
}

func builtinVconcat(c *Context, args []Value) (Value, error) {
	var items []Value
	for _, seq := range args {
		elts, err := c.sequenceSlice(seq)
		if err != nil {
			return Nil, err
		}
		items = append(items, elts...)
	}
	return c.rt.Vector(items), nil
}
