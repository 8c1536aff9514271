// Copyright © 2018 The ELPS authors

package lisp

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/tliron/commonlog"
)

// Runtime holds the state shared by a family of Contexts: the heap, the
// symbol table and the registry of native primitives.  Contexts serialize
// access to the Runtime one top-level evaluation at a time.
type Runtime struct {
	Heap    *Heap
	Symbols *SymbolTable
	Reader  Reader
	Library SourceLibrary
	Stdout  io.Writer
	Stderr  io.Writer
	// Profiler, when enabled, observes every function call.
	Profiler Profiler
	Logger   commonlog.Logger

	mu        sync.Mutex
	contexts  map[*Context]struct{}
	subrs     []Value
	protected map[Value]int
	gensym    uint64
	random    *rand.Rand
	regexps   map[string]*emacsRegexp
	loading   []string
	// debug logs every signal when set by enable-debug.
	debug bool
}

// StandardRuntime returns a new Runtime with the standard library of
// primitives installed.  Output is written to os.Stdout and os.Stderr.
func StandardRuntime() *Runtime {
	rt := &Runtime{
		Heap:      newHeap(),
		Symbols:   NewSymbolTable(),
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Logger:    commonlog.GetLogger("elisp.runtime"),
		contexts:  make(map[*Context]struct{}),
		protected: make(map[Value]int),
		random:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	rt.defineStandardErrors()
	rt.defineStandardVariables()
	rt.installLanguage()
	return rt
}

// New creates a Runtime with a single Context and applies config to it.
func New(config ...Config) (*Context, error) {
	return StandardRuntime().NewContext(config...)
}

// NewContext registers a new Context with rt.
func (rt *Runtime) NewContext(config ...Config) (*Context, error) {
	c := &Context{
		rt:       rt,
		Lexical:  true,
		MaxDepth: DefaultMaxLispEvalDepth,
	}
	rt.mu.Lock()
	rt.contexts[c] = struct{}{}
	rt.mu.Unlock()
	for _, fn := range config {
		if err := fn(c); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// Protect keeps v alive across collections until the returned function is
// called.  Values returned to the host are otherwise only valid until the
// next top-level evaluation.
func (rt *Runtime) Protect(v Value) (release func()) {
	rt.mu.Lock()
	rt.protected[v]++
	rt.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			rt.mu.Lock()
			defer rt.mu.Unlock()
			if rt.protected[v]--; rt.protected[v] <= 0 {
				delete(rt.protected, v)
			}
		})
	}
}

// Gensym returns a fresh uninterned symbol.
func (rt *Runtime) Gensym(prefix string) Value {
	rt.gensym++
	return symbolValue(rt.Symbols.MakeSymbol(fmt.Sprintf("%s%d", prefix, rt.gensym)))
}

// Get returns the value of property prop on symbol sym.
func (rt *Runtime) Get(sym, prop Value) Value {
	if !sym.IsSymbol() {
		return Nil
	}
	return rt.plistGet(rt.Sym(sym).Plist, prop, eqValues)
}

// Put sets property prop on symbol sym.
func (rt *Runtime) Put(sym, prop, val Value) {
	s := rt.Sym(sym)
	s.Plist = rt.plistPut(s.Plist, prop, val, eqValues)
}

// SymbolValue returns the dynamic value of sym, or false when it is void.
func (rt *Runtime) SymbolValue(sym Value) (Value, bool) {
	v := rt.Symbols.Get(rt.varSymbol(sym.Symbol())).Value
	return v, !v.IsUnbound()
}

// varSymbol follows variable aliases from id to the symbol holding the
// value.
func (rt *Runtime) varSymbol(id SymbolID) SymbolID {
	for i := 0; i < 100; i++ {
		a := rt.Symbols.Get(id).Alias
		if a.IsNil() {
			return id
		}
		id = a.Symbol()
	}
	return id
}

// varValue returns the current dynamic value of the variable name, or nil
// when it is void.
func (rt *Runtime) varValue(name string) Value {
	v := rt.Symbols.Get(rt.varSymbol(rt.Symbols.Intern(name))).Value
	if v.IsUnbound() {
		return Nil
	}
	return v
}

// SetGlobal assigns the value cell of the symbol named name.
func (rt *Runtime) SetGlobal(name string, v Value) {
	rt.Symbols.Get(rt.Symbols.Intern(name)).Value = v
}

// Defvar declares name special with an initial value.
func (rt *Runtime) Defvar(name string, v Value) {
	sym := rt.Symbols.Get(rt.Symbols.Intern(name))
	sym.Flags |= SymSpecialVar
	if sym.Value.IsUnbound() {
		sym.Value = v
	}
}

func (rt *Runtime) defineStandardVariables() {
	rt.Defvar("lexical-binding", Nil)
	rt.Defvar("garbage-collection-messages", Nil)
	rt.Defvar("features", Nil)
	rt.Defvar("load-path", Nil)
	rt.Defvar("load-file-name", Nil)
	rt.Defvar("gc-cons-threshold", Int(DefaultGCThreshold))
	rt.Defvar("most-positive-fixnum", Int(math.MaxInt64))
	rt.Defvar("most-negative-fixnum", Int(math.MinInt64))
	rt.Defvar("float-pi", Float(math.Pi))
	rt.Defvar("float-e", Float(math.E))
	rt.Defvar("case-fold-search", T)
	rt.Defvar("print-length", Nil)
	rt.Defvar("print-level", Nil)
	rt.Defvar("print-escape-newlines", Nil)
	rt.Defvar("standard-output", T)
	for _, name := range []string{"most-positive-fixnum", "most-negative-fixnum"} {
		rt.Symbols.Get(rt.Symbols.Intern(name)).Flags |= SymConstantVar
	}
}
