// Copyright © 2018 The ELPS authors

package lisp

import (
	"math/big"
)

const blockSize = 1024

type slot[T any] struct {
	val  T
	used bool
	mark bool
}

// arena is a growable set of fixed size blocks.  Blocks are never
// reallocated so pointers into them remain valid until the slot is swept.
type arena[T any] struct {
	kind   Tag
	blocks [][]slot[T]
	free   []uint32
	live   int
}

func (a *arena[T]) alloc(v T) uint32 {
	var i uint32
	if n := len(a.free); n > 0 {
		i = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		i = uint32(len(a.blocks) * blockSize)
		a.blocks = append(a.blocks, make([]slot[T], blockSize))
		for j := blockSize - 1; j > 0; j-- {
			a.free = append(a.free, i+uint32(j))
		}
	}
	s := &a.blocks[i/blockSize][i%blockSize]
	s.val = v
	s.used = true
	s.mark = false
	a.live++
	return i
}

func (a *arena[T]) slot(i uint32) *slot[T] {
	b := int(i / blockSize)
	if b >= len(a.blocks) {
		panic(&InternalError{Msg: "corrupted " + a.kind.String() + " reference"})
	}
	s := &a.blocks[b][i%blockSize]
	if !s.used {
		panic(&InternalError{Msg: "reference to reclaimed " + a.kind.String()})
	}
	return s
}

func (a *arena[T]) get(i uint32) *T {
	return &a.slot(i).val
}

// setMark marks slot i and reports whether it was previously unmarked.
func (a *arena[T]) setMark(i uint32) bool {
	s := a.slot(i)
	if s.mark {
		return false
	}
	s.mark = true
	return true
}

func (a *arena[T]) sweep() (freed int) {
	var zero T
	for b := range a.blocks {
		blk := a.blocks[b]
		for j := range blk {
			s := &blk[j]
			if !s.used {
				continue
			}
			if s.mark {
				s.mark = false
				continue
			}
			s.val = zero
			s.used = false
			a.free = append(a.free, uint32(b*blockSize+j))
			freed++
		}
	}
	a.live -= freed
	return freed
}

func (a *arena[T]) capacity() int {
	return len(a.blocks) * blockSize
}

// Heap owns the storage of every heap Value of a Runtime.
type Heap struct {
	conses  arena[cons]
	strings arena[lstring]
	vectors arena[record]
	records arena[record]
	bigints arena[*big.Int]
	funs    arena[Function]
	tables  arena[HashTable]
	envs    arena[envFrame]

	// Threshold is the number of allocations between collections.
	Threshold int
	// MaxObjects bounds the number of live objects.  Zero means unbounded.
	MaxObjects int

	sinceGC     int
	pending     bool
	Collections int
}

// Default allocation limits.
const (
	DefaultGCThreshold = 100000
)

func newHeap() *Heap {
	h := &Heap{Threshold: DefaultGCThreshold}
	h.conses.kind = TagCons
	h.strings.kind = TagString
	h.vectors.kind = TagVector
	h.records.kind = TagRecord
	h.bigints.kind = TagBigInt
	h.funs.kind = TagFunction
	h.tables.kind = TagHashTable
	h.envs.kind = TagEnv
	return h
}

// Live returns the number of allocated objects which have not been reclaimed.
func (h *Heap) Live() int {
	return h.conses.live + h.strings.live + h.vectors.live + h.records.live +
		h.bigints.live + h.funs.live + h.tables.live + h.envs.live
}

// Pending returns true if a collection has been requested.
func (h *Heap) Pending() bool {
	return h.pending
}

func (h *Heap) noteAlloc() {
	h.sinceGC++
	if h.Threshold > 0 && h.sinceGC >= h.Threshold {
		h.pending = true
	}
	if h.MaxObjects <= 0 {
		return
	}
	live := h.Live()
	if live >= h.MaxObjects {
		h.pending = true
	}
	// Garbage is only reclaimed at safe points.  Give the mutator the same
	// amount of headroom again before giving up.
	if live >= 2*h.MaxObjects {
		panic(&FatalError{Msg: "memory exhausted", Live: live})
	}
}

// Cons allocates a new cons cell.
func (rt *Runtime) Cons(car, cdr Value) Value {
	rt.Heap.noteAlloc()
	return heapValue(TagCons, rt.Heap.conses.alloc(cons{car: car, cdr: cdr}))
}

// String allocates a new string.
func (rt *Runtime) String(s string) Value {
	rt.Heap.noteAlloc()
	return heapValue(TagString, rt.Heap.strings.alloc(lstring{s: s}))
}

// Vector allocates a new vector containing items.  The slice is retained.
func (rt *Runtime) Vector(items []Value) Value {
	rt.Heap.noteAlloc()
	return heapValue(TagVector, rt.Heap.vectors.alloc(record{items: items}))
}

// Record allocates a new record.  items[0] is the record type.
func (rt *Runtime) Record(items []Value) Value {
	rt.Heap.noteAlloc()
	return heapValue(TagRecord, rt.Heap.records.alloc(record{items: items}))
}

// BigInt returns an integer Value for n, using a fixnum when n fits.
func (rt *Runtime) BigInt(n *big.Int) Value {
	if n.IsInt64() {
		return Int(n.Int64())
	}
	rt.Heap.noteAlloc()
	return heapValue(TagBigInt, rt.Heap.bigints.alloc(new(big.Int).Set(n)))
}

// NewFunction allocates a function object.
func (rt *Runtime) NewFunction(fn Function) Value {
	rt.Heap.noteAlloc()
	return heapValue(TagFunction, rt.Heap.funs.alloc(fn))
}

func (rt *Runtime) newEnv(parent Value, vars []binding) Value {
	rt.Heap.noteAlloc()
	return heapValue(TagEnv, rt.Heap.envs.alloc(envFrame{vars: vars, parent: parent}))
}

// Symbol returns the interned symbol named name.
func (rt *Runtime) Symbol(name string) Value {
	return symbolValue(rt.Symbols.Intern(name))
}

// MakeSymbol returns a new uninterned symbol named name.
func (rt *Runtime) MakeSymbol(name string) Value {
	return symbolValue(rt.Symbols.MakeSymbol(name))
}

// List allocates a proper list of items.
func (rt *Runtime) List(items ...Value) Value {
	return rt.ListStar(Nil, items...)
}

// ListStar allocates a list of items terminated by tail.
func (rt *Runtime) ListStar(tail Value, items ...Value) Value {
	lst := tail
	for i := len(items) - 1; i >= 0; i-- {
		lst = rt.Cons(items[i], lst)
	}
	return lst
}

func (rt *Runtime) consCell(v Value) *cons {
	if v.tag != TagCons {
		panic(&InternalError{Msg: "cons accessor applied to " + v.tag.String()})
	}
	return rt.Heap.conses.get(v.index())
}

// Car returns the car of a cons or nil.  It does not type check v beyond
// that.
func (rt *Runtime) Car(v Value) Value {
	if v.tag != TagCons {
		return Nil
	}
	return rt.Heap.conses.get(v.index()).car
}

// Cdr returns the cdr of a cons or nil.
func (rt *Runtime) Cdr(v Value) Value {
	if v.tag != TagCons {
		return Nil
	}
	return rt.Heap.conses.get(v.index()).cdr
}

// SetCar replaces the car of cons v.
func (rt *Runtime) SetCar(v, x Value) {
	rt.consCell(v).car = x
}

// SetCdr replaces the cdr of cons v.
func (rt *Runtime) SetCdr(v, x Value) {
	rt.consCell(v).cdr = x
}

// StringVal returns the contents of string v.
func (rt *Runtime) StringVal(v Value) string {
	if v.tag != TagString {
		panic(&InternalError{Msg: "string accessor applied to " + v.tag.String()})
	}
	return rt.Heap.strings.get(v.index()).s
}

func (rt *Runtime) setString(v Value, s string) {
	rt.Heap.strings.get(v.index()).s = s
}

// Items returns the backing slice of a vector or record.
func (rt *Runtime) Items(v Value) []Value {
	switch v.tag {
	case TagVector:
		return rt.Heap.vectors.get(v.index()).items
	case TagRecord:
		return rt.Heap.records.get(v.index()).items
	}
	panic(&InternalError{Msg: "vector accessor applied to " + v.tag.String()})
}

// BigIntVal returns the bignum stored in v.  The result must not be
// modified.
func (rt *Runtime) BigIntVal(v Value) *big.Int {
	if v.tag != TagBigInt {
		panic(&InternalError{Msg: "bignum accessor applied to " + v.tag.String()})
	}
	return *rt.Heap.bigints.get(v.index())
}

// Fun returns the function stored in v.
func (rt *Runtime) Fun(v Value) *Function {
	if v.tag != TagFunction {
		panic(&InternalError{Msg: "function accessor applied to " + v.tag.String()})
	}
	return rt.Heap.funs.get(v.index())
}

// Table returns the hash table stored in v.
func (rt *Runtime) Table(v Value) *HashTable {
	if v.tag != TagHashTable {
		panic(&InternalError{Msg: "hash table accessor applied to " + v.tag.String()})
	}
	return rt.Heap.tables.get(v.index())
}

func (rt *Runtime) env(v Value) *envFrame {
	if v.tag != TagEnv {
		panic(&InternalError{Msg: "environment accessor applied to " + v.tag.String()})
	}
	return rt.Heap.envs.get(v.index())
}

// Sym returns the symbol referenced by v.
func (rt *Runtime) Sym(v Value) *Symbol {
	return rt.Symbols.Get(v.Symbol())
}

// SymbolName returns the name of symbol v.
func (rt *Runtime) SymbolName(v Value) string {
	return rt.Symbols.Get(v.Symbol()).Name
}
