// Copyright © 2018 The ELPS authors

package lisp

import (
	"math"
)

// Tag identifies the representation of a Value.
type Tag uint8

// Possible Tag values.  Tags below TagCons are immediates whose payload lives
// entirely in Value.data.  The remaining tags reference a slot in one of the
// Heap arenas.
const (
	// TagSymbol values store an index into the runtime SymbolTable.  The
	// zero Value is therefore the symbol nil.
	TagSymbol Tag = iota
	// TagInt values store a fixnum as the bits of an int64.
	TagInt
	// TagFloat values store the IEEE-754 bits of a float64.
	TagFloat
	// TagUnbound marks an empty value or function cell.  It never escapes
	// to lisp code.
	TagUnbound

	TagCons
	TagString
	TagVector
	TagRecord
	TagBigInt
	TagFunction
	TagHashTable
	// TagEnv values are lexical environment frames captured by closures.
	TagEnv

	numTags
)

var tagNames = [numTags]string{
	TagSymbol:    "symbol",
	TagInt:       "integer",
	TagFloat:     "float",
	TagUnbound:   "unbound",
	TagCons:      "cons",
	TagString:    "string",
	TagVector:    "vector",
	TagRecord:    "record",
	TagBigInt:    "integer",
	TagFunction:  "function",
	TagHashTable: "hash-table",
	TagEnv:       "environment",
}

func (t Tag) String() string {
	if t < numTags {
		return tagNames[t]
	}
	return "invalid"
}

// IsHeap returns true if values with tag t reference heap storage.
func (t Tag) IsHeap() bool {
	return t >= TagCons && t < numTags
}

// Value is a tagged handle to a lisp object.  Values are comparable and two
// Values are == exactly when they are eq.  Heap values are only meaningful
// relative to the Runtime which allocated them.
type Value struct {
	tag  Tag
	data uint64
}

// Immediate values shared by every Runtime.
var (
	Nil     = Value{}
	T       = Value{tag: TagSymbol, data: uint64(SymT)}
	Unbound = Value{tag: TagUnbound}
)

// Int returns a fixnum Value.
func Int(n int64) Value {
	return Value{tag: TagInt, data: uint64(n)}
}

// Float returns a float Value.
func Float(x float64) Value {
	return Value{tag: TagFloat, data: math.Float64bits(x)}
}

// Bool returns T if b is true and Nil otherwise.
func Bool(b bool) Value {
	if b {
		return T
	}
	return Nil
}

func symbolValue(id SymbolID) Value {
	return Value{tag: TagSymbol, data: uint64(id)}
}

func heapValue(tag Tag, index uint32) Value {
	return Value{tag: tag, data: uint64(index)}
}

// Tag returns the representation tag of v.
func (v Value) Tag() Tag {
	return v.tag
}

// IsNil returns true if v is the symbol nil.
func (v Value) IsNil() bool {
	return v == Nil
}

// IsUnbound returns true if v is the marker for an empty cell.
func (v Value) IsUnbound() bool {
	return v.tag == TagUnbound
}

// Truthy returns true for every value except nil.
func (v Value) Truthy() bool {
	return v != Nil
}

// IsSymbol returns true if v is a symbol (including nil and t).
func (v Value) IsSymbol() bool {
	return v.tag == TagSymbol
}

// IsCons returns true if v is a cons cell.
func (v Value) IsCons() bool {
	return v.tag == TagCons
}

// IsList returns true if v is a cons cell or nil.
func (v Value) IsList() bool {
	return v.tag == TagCons || v == Nil
}

// IsFixnum returns true if v is an immediate integer.
func (v Value) IsFixnum() bool {
	return v.tag == TagInt
}

// IsInteger returns true if v is a fixnum or a bignum.
func (v Value) IsInteger() bool {
	return v.tag == TagInt || v.tag == TagBigInt
}

// IsNumber returns true if v is an integer or a float.
func (v Value) IsNumber() bool {
	return v.tag == TagInt || v.tag == TagBigInt || v.tag == TagFloat
}

// Symbol returns the SymbolID referenced by v.  The result is meaningless
// unless v.IsSymbol().
func (v Value) Symbol() SymbolID {
	return SymbolID(v.data)
}

// Fixnum returns the integer stored in v.
func (v Value) Fixnum() int64 {
	return int64(v.data)
}

// FloatVal returns the float stored in v.
func (v Value) FloatVal() float64 {
	return math.Float64frombits(v.data)
}

func (v Value) index() uint32 {
	return uint32(v.data)
}

// Arity describes the number of arguments accepted by a function.
type Arity struct {
	Min int
	// Max is the maximum number of arguments or one of the constants Many
	// and Unevalled.
	Max int
}

// Special Arity.Max values.
const (
	Many      = -1
	Unevalled = -2
)

// Accepts returns true if a call with n arguments satisfies a.
func (a Arity) Accepts(n int) bool {
	if n < a.Min {
		return false
	}
	return a.Max < 0 || n <= a.Max
}

// FuncKind is the variant of a Function.
type FuncKind uint8

// Possible FuncKind values.
const (
	// FuncNative functions are implemented in Go.  Special forms are native
	// functions with an Unevalled arity.
	FuncNative FuncKind = iota
	// FuncInterpreted functions are lambda expressions evaluated by the
	// tree-walking evaluator.
	FuncInterpreted
	// FuncCompiled functions are executed by the bytecode VM.
	FuncCompiled
	// FuncMacro functions wrap an expander which transforms unevaluated
	// argument forms.
	FuncMacro
)

// NativeFunc is the Go entry point of a primitive.
type NativeFunc func(c *Context, args []Value) (Value, error)

// SpecialFunc is the Go entry point of a special form.  It receives the
// unevaluated argument list and the current lexical environment.
type SpecialFunc func(c *Context, args Value, env Value) (Value, error)

// Function is the heap representation of every callable value.
type Function struct {
	Kind  FuncKind
	Name  string
	Arity Arity
	Doc   string

	Native  NativeFunc
	Special SpecialFunc

	// Lambda list, body forms and captured environment of an interpreted
	// function.  Lexical is true for closures created in lexical-binding
	// mode, even when Env is nil.
	Args    Value
	Body    Value
	Env     Value
	Lexical bool

	Code *ByteCode

	// Expander is the function applied to unevaluated arguments by a
	// FuncMacro.
	Expander Value
}

// ByteCode holds the components of a compiled function object.
type ByteCode struct {
	// ArgDesc is either a fixnum encoding the lexical calling convention or
	// a lambda list for the dynamic calling convention.
	ArgDesc   Value
	Code      []byte
	Constants Value
	MaxDepth  int
	Doc       Value
	// Interactive is the optional sixth slot of the object.
	Interactive Value
}

// LexicalArgs decodes an integer argument descriptor.
func (b *ByteCode) LexicalArgs() (mandatory int, nonrest int, rest bool, ok bool) {
	if !b.ArgDesc.IsFixnum() {
		return 0, 0, false, false
	}
	desc := b.ArgDesc.Fixnum()
	return int(desc & 127), int(desc >> 8), desc&128 != 0, true
}

// envFrame is one frame of a lexical environment.
type envFrame struct {
	vars   []binding
	parent Value
}

type binding struct {
	sym SymbolID
	val Value
}

// record is the storage of vectors and records.
type record struct {
	items []Value
}

// lstring is the storage of a lisp string.  Strings are mutable through aset.
type lstring struct {
	s string
}

type cons struct {
	car Value
	cdr Value
}
