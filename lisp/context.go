// Copyright © 2018 The ELPS authors

package lisp

import (
	"context"
	"fmt"
)

// DefaultMaxLispEvalDepth matches the default max-lisp-eval-depth of Emacs.
const DefaultMaxLispEvalDepth = 1600

// Context is one logical thread of lisp execution.  It owns the dynamic
// binding stack, the exit handler stack and the evaluator and VM frames
// used by both execution engines.  A Context must not be used from more
// than one goroutine at a time.
type Context struct {
	rt *Runtime

	specpdl  []specBinding
	handlers []handler
	frames   []*frame
	vmframes []*vmFrame
	pins     []Value

	// Lexical selects lexical-binding mode for forms evaluated at top
	// level.
	Lexical bool
	// MaxDepth bounds the nesting of eval and funcall.
	MaxDepth int
	// MaxSteps bounds the number of evaluation steps in one top-level
	// evaluation.  Zero means unlimited.
	MaxSteps int64

	ctx         context.Context
	depth       int
	steps       int64
	nextHandler uint64
	matchData   []int
	closed      bool
}

type specKind uint8

const (
	specLet specKind = iota
	// specCleanup entries hold unwind-protect cleanup forms evaluated in
	// env.
	specCleanup
	// specCleanupFunc entries hold a function called with no arguments.
	specCleanupFunc
)

// specBinding is an entry in the dynamic binding stack.  unwind-protect
// cleanups share the stack with variable bindings so that both engines
// unwind them in a single LIFO order.
type specBinding struct {
	kind specKind
	sym  SymbolID
	old  Value
	// cleanup forms or function and their environment
	forms Value
	env   Value
}

type handlerKind uint8

const (
	handlerCatch handlerKind = iota
	handlerConditionCase
)

// handler is an entry in the exit handler stack.  For catch handlers tag is
// the catch tag.  For condition-case handlers it is the clause condition.
type handler struct {
	kind handlerKind
	id   uint64
	tag  Value
}

// frame is an evaluator call frame.  Its values are collector roots.
type frame struct {
	fn   Value
	args []Value
	env  Value
}

// Runtime returns the Runtime shared by c.
func (c *Context) Runtime() *Runtime {
	return c.rt
}

// SpecDepth returns the height of the dynamic binding stack.
func (c *Context) SpecDepth() int {
	return len(c.specpdl)
}

// HandlerDepth returns the height of the exit handler stack.
func (c *Context) HandlerDepth() int {
	return len(c.handlers)
}

// specbind dynamically binds sym to val until the binding is unwound.
func (c *Context) specbind(sym SymbolID, val Value) error {
	sym = c.rt.varSymbol(sym)
	s := c.rt.Symbols.Get(sym)
	if s.Is(SymConstantVar) {
		return c.Signal(SymSettingConstant, symbolValue(sym))
	}
	c.specpdl = append(c.specpdl, specBinding{kind: specLet, sym: sym, old: s.Value})
	s.Value = val
	return nil
}

func (c *Context) recordCleanup(forms, env Value) {
	c.specpdl = append(c.specpdl, specBinding{kind: specCleanup, forms: forms, env: env})
}

func (c *Context) recordCleanupFunc(fn Value) {
	c.specpdl = append(c.specpdl, specBinding{kind: specCleanupFunc, forms: fn})
}

// unbind pops the binding stack down to depth, restoring variables and
// running cleanups exactly once.  val and err describe how the scope being
// left completed.  A non-local exit from a cleanup replaces err.
func (c *Context) unbind(depth int, val Value, err error) (Value, error) {
	for len(c.specpdl) > depth {
		n := len(c.specpdl) - 1
		b := c.specpdl[n]
		c.specpdl = c.specpdl[:n]
		if b.kind == specLet {
			c.rt.Symbols.Get(b.sym).Value = b.old
			continue
		}
		mark := c.pin(val, b.forms, b.env)
		c.pin(exitValues(err)...)
		var cerr error
		if b.kind == specCleanupFunc {
			_, cerr = c.Funcall(b.forms)
		} else {
			_, cerr = c.progn(b.forms, b.env)
		}
		c.unpin(mark)
		if cerr != nil {
			val, err = Nil, cerr
		}
	}
	return val, err
}

// unbindNoCleanup restores variables down to depth without evaluating any
// cleanup.  It is only used to recover from internal faults.
func (c *Context) unbindNoCleanup(depth int) {
	for len(c.specpdl) > depth {
		n := len(c.specpdl) - 1
		b := c.specpdl[n]
		if b.kind == specLet {
			c.rt.Symbols.Get(b.sym).Value = b.old
		}
		c.specpdl = c.specpdl[:n]
	}
}

func (c *Context) pushHandler(kind handlerKind, tag Value) uint64 {
	c.nextHandler++
	c.handlers = append(c.handlers, handler{kind: kind, id: c.nextHandler, tag: tag})
	return c.nextHandler
}

// Pin protects values from collection until Unpin is called with the
// returned mark.  Native functions which allocate and then call back into
// the evaluator must pin their temporaries.
func (c *Context) Pin(vs ...Value) int {
	return c.pin(vs...)
}

// Unpin releases all values pinned since mark was returned by Pin.
func (c *Context) Unpin(mark int) {
	c.unpin(mark)
}

func (c *Context) pin(vs ...Value) int {
	mark := len(c.pins)
	c.pins = append(c.pins, vs...)
	return mark
}

func (c *Context) unpin(mark int) {
	if mark < len(c.pins) {
		clear(c.pins[mark:])
		c.pins = c.pins[:mark]
	}
}

func (c *Context) pushFrame(fn Value, args []Value) *frame {
	f := &frame{fn: fn, args: args, env: Nil}
	c.frames = append(c.frames, f)
	return f
}

func (c *Context) popFrame() {
	n := len(c.frames) - 1
	c.frames[n] = nil
	c.frames = c.frames[:n]
}

// Backtrace returns the names of active function frames, innermost first.
func (c *Context) Backtrace() []string {
	const maxBacktrace = 64
	var names []string
	for i := len(c.frames) - 1; i >= 0 && len(names) < maxBacktrace; i-- {
		names = append(names, c.rt.FunctionName(c.frames[i].fn))
	}
	return names
}

// enter is called on entry to eval and funcall.  It enforces evaluation
// limits and runs a pending collection.  All live values must be reachable
// from roots when enter is called.
func (c *Context) enter() error {
	if c.MaxDepth > 0 && c.depth >= c.MaxDepth {
		return c.Signal(SymExcessiveLispNesting, Int(int64(c.MaxDepth)))
	}
	if err := c.poll(); err != nil {
		return err
	}
	c.depth++
	return nil
}

// poll counts an evaluation step, checks for cancellation and runs a
// pending collection.  The VM polls on backward jumps.
func (c *Context) poll() error {
	c.steps++
	if c.MaxSteps > 0 && c.steps > c.MaxSteps {
		return c.Signal(SymExcessiveLispNesting, c.rt.String(fmt.Sprintf("step limit %d exceeded", c.MaxSteps)))
	}
	if c.ctx != nil && c.steps&63 == 1 {
		if err := c.ctx.Err(); err != nil {
			return c.Signal(SymDeadlineExceeded, c.rt.String(err.Error()))
		}
	}
	if c.rt.Heap.pending {
		c.rt.collect()
	}
	return nil
}

func (c *Context) leave() {
	c.depth--
}

// SetContext replaces the context.Context consulted for cancellation.
func (c *Context) SetContext(ctx context.Context) {
	c.ctx = ctx
}

// Context returns the context.Context consulted for cancellation.
func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Close unregisters c from its Runtime.  Its stacks stop being collector
// roots.
func (c *Context) Close() {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	c.closed = true
	delete(c.rt.contexts, c)
}

// toplevel runs fn while holding the runtime lock.  Internal faults are
// recovered and reset the context's stacks to their state on entry.
func (c *Context) toplevel(fn func() (Value, error)) (v Value, err error) {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	if c.closed {
		return Nil, fmt.Errorf("context is closed")
	}
	var (
		spec   = len(c.specpdl)
		hand   = len(c.handlers)
		frames = len(c.frames)
		vms    = len(c.vmframes)
		pins   = len(c.pins)
		depth  = c.depth
	)
	outer := frames == 0 && vms == 0
	if outer {
		c.steps = 0
	}
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		ie, ok := r.(*InternalError)
		if !ok {
			panic(r)
		}
		c.rt.Logger.Errorf("%s", ie.Error())
		c.unbindNoCleanup(spec)
		c.handlers = c.handlers[:hand]
		clear(c.frames[frames:])
		c.frames = c.frames[:frames]
		clear(c.vmframes[vms:])
		c.vmframes = c.vmframes[:vms]
		c.unpin(pins)
		c.depth = depth
		v, err = Nil, ie
	}()
	v, err = fn()
	c.unpin(pins)
	if err != nil {
		v = Nil
		// Render while the error data is still reachable.
		_ = err.Error()
	}
	return v, err
}

// Eval evaluates form at top level.
func (c *Context) Eval(form Value) (Value, error) {
	return c.toplevel(func() (Value, error) {
		c.pin(form)
		return c.eval(form, c.topEnv())
	})
}

// Call applies fn to args at top level.
func (c *Context) Call(fn Value, args ...Value) (Value, error) {
	return c.toplevel(func() (Value, error) {
		c.pin(fn)
		c.pin(args...)
		return c.Funcall(fn, args...)
	})
}

func (c *Context) topEnv() Value {
	if c.Lexical {
		return emptyLexEnv
	}
	return Nil
}
