// Copyright © 2018 The ELPS authors

package lisp

import (
	"bufio"
	"fmt"
	"io"
)

// Signal is a lisp condition propagating toward a condition-case handler.
// Signals travel up the Go call stack as ordinary error returns.  The
// handler which will receive the signal is determined when the signal is
// raised.
type Signal struct {
	// Symbol is the error symbol, e.g. void-variable.
	Symbol Value
	// Data is the list of error data.
	Data Value
	// Backtrace holds the names of the functions active when the condition
	// was signaled, innermost first.
	Backtrace []string

	handler uint64
	msg     string
	rt      *Runtime
}

var _ error = (*Signal)(nil)

// Error implements the error interface.
func (s *Signal) Error() string {
	if s.msg == "" && s.rt != nil {
		s.msg = s.rt.ErrorMessage(s.Symbol, s.Data)
	}
	return s.msg
}

// Is reports whether s has the given error condition.
func (s *Signal) Is(rt *Runtime, condition string) bool {
	id, ok := rt.Symbols.InternSoft(condition)
	if !ok {
		return false
	}
	return rt.hasCondition(s.Symbol, id)
}

// Name returns the name of the error symbol.
func (s *Signal) Name() string {
	if s.rt == nil || !s.Symbol.IsSymbol() {
		return ""
	}
	return s.rt.SymbolName(s.Symbol)
}

// Value returns the (ERROR-SYMBOL . DATA) cons handed to condition-case.
func (s *Signal) Value(rt *Runtime) Value {
	return rt.Cons(s.Symbol, s.Data)
}

// WriteTrace writes the error message and its backtrace to w.
func (s *Signal) WriteTrace(w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	var n int
	wrote := func(_n int, err error) bool {
		n += _n
		return err == nil
	}
	if !wrote(fmt.Fprintln(bw, s.Error())) {
		return n, bw.Flush()
	}
	if len(s.Backtrace) > 0 {
		if !wrote(fmt.Fprintln(bw, "Backtrace:")) {
			return n, bw.Flush()
		}
	}
	for i, name := range s.Backtrace {
		if !wrote(fmt.Fprintf(bw, "  %d: %s\n", i, name)) {
			break
		}
	}
	return n, bw.Flush()
}

// Throw is a non-local exit created by throw, in flight toward the catch
// with a matching tag.
type Throw struct {
	Tag   Value
	Value Value

	handler uint64
	rt      *Runtime
}

var _ error = (*Throw)(nil)

func (t *Throw) Error() string {
	if t.rt == nil {
		return "throw"
	}
	return fmt.Sprintf("throw to %s", t.rt.Prin1String(t.Tag))
}

// InternalError is raised as a panic when the runtime detects a defect in
// compiled code or a corrupted object reference.  It is never visible to
// lisp handlers.  Top-level evaluation recovers it, resets the offending
// Context and returns it as an error.
type InternalError struct {
	Msg string
	// PC is the program counter of the faulting instruction, when the fault
	// originated in the bytecode VM.
	PC int
	Op byte
}

func (e *InternalError) Error() string {
	if e.Op != 0 || e.PC != 0 {
		return fmt.Sprintf("internal error: %s (pc %d, op %#o)", e.Msg, e.PC, e.Op)
	}
	return "internal error: " + e.Msg
}

// FatalError is raised as a panic when the heap is exhausted.  It is not
// recovered by the runtime.
type FatalError struct {
	Msg  string
	Live int
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s (%d live objects)", e.Msg, e.Live)
}

// exitValues returns the lisp values carried by a non-local exit.
func exitValues(err error) []Value {
	switch e := err.(type) {
	case *Signal:
		return []Value{e.Symbol, e.Data}
	case *Throw:
		return []Value{e.Tag, e.Value}
	}
	return nil
}
