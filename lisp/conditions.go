// Copyright © 2018 The ELPS authors

package lisp

import (
	"fmt"
	"strings"
)

// standardErrors lists the built in error symbols with their parent
// conditions and messages.  Parents must precede their children.
var standardErrors = []struct {
	sym     SymbolID
	name    string
	parents []string
	message string
}{
	{SymError, "error", nil, "error"},
	{SymQuit, "quit", nil, "Quit"},
	{SymUserError, "user-error", []string{"error"}, ""},
	{SymVoidVariable, "void-variable", []string{"error"}, "Symbol’s value as variable is void"},
	{SymVoidFunction, "void-function", []string{"error"}, "Symbol’s function definition is void"},
	{SymWrongTypeArgument, "wrong-type-argument", []string{"error"}, "Wrong type argument"},
	{SymArgsOutOfRange, "args-out-of-range", []string{"error"}, "Args out of range"},
	{SymWrongNumberOfArguments, "wrong-number-of-arguments", []string{"error"}, "Wrong number of arguments"},
	{SymNoCatch, "no-catch", []string{"error"}, "No catch for tag"},
	{SymSettingConstant, "setting-constant", []string{"error"}, "Attempt to set a constant symbol"},
	{SymInvalidFunction, "invalid-function", []string{"error"}, "Invalid function"},
	{SymArithError, "arith-error", []string{"error"}, "Arithmetic error"},
	{SymOverflowError, "overflow-error", []string{"arith-error", "error"}, "Arithmetic overflow error"},
	{SymEndOfFile, "end-of-file", []string{"error"}, "End of file during parsing"},
	{SymInvalidReadSyntax, "invalid-read-syntax", []string{"error"}, "Invalid read syntax"},
	{SymExcessiveLispNesting, "excessive-lisp-nesting", []string{"error"}, "Lisp nesting exceeds ‘max-lisp-eval-depth’"},
	{SymCyclicFunctionIndirection, "cyclic-function-indirection", []string{"error"}, "Symbol's chain of function indirections contains a loop"},
	{SymCircularList, "circular-list", []string{"error"}, "List contains a loop"},
	{SymInvalidRegexp, "invalid-regexp", []string{"error"}, "Invalid regexp"},
	{SymDeadlineExceeded, "deadline-exceeded", []string{"quit"}, "Evaluation deadline exceeded"},
}

func (rt *Runtime) defineStandardErrors() {
	for _, e := range standardErrors {
		rt.DefineError(symbolValue(e.sym), e.message, e.parents...)
	}
	rt.DefineError(rt.Symbol("file-error"), "File error", "error")
	rt.DefineError(rt.Symbol("file-missing"), "Cannot open load file", "file-error")
	rt.DefineError(rt.Symbol("json-error"), "Unknown JSON error", "error")
	rt.DefineError(rt.Symbol("json-parse-error"), "could not parse JSON stream", "json-error")
	rt.DefineError(rt.Symbol("json-end-of-file"), "end of JSON stream", "json-parse-error")
	rt.DefineError(rt.Symbol("json-unavailable"), "JSON serialization is unavailable", "json-error")
}

// DefineError makes sym an error symbol whose conditions are sym followed by
// the conditions of each parent.
func (rt *Runtime) DefineError(sym Value, message string, parents ...string) {
	conds := []Value{sym}
	seen := map[Value]bool{sym: true}
	for _, p := range parents {
		pv := rt.Symbol(p)
		pconds := rt.Get(pv, symbolValue(SymErrorConditions))
		if pconds.IsNil() {
			pconds = rt.List(pv)
		}
		for ; pconds.IsCons(); pconds = rt.Cdr(pconds) {
			c := rt.Car(pconds)
			if !seen[c] {
				seen[c] = true
				conds = append(conds, c)
			}
		}
	}
	rt.Put(sym, symbolValue(SymErrorConditions), rt.List(conds...))
	if message != "" {
		rt.Put(sym, symbolValue(SymErrorMessage), rt.String(message))
	}
}

func (rt *Runtime) hasCondition(errsym Value, cond SymbolID) bool {
	if !errsym.IsSymbol() {
		return false
	}
	conds := rt.Get(errsym, symbolValue(SymErrorConditions))
	for ; conds.IsCons(); conds = rt.Cdr(conds) {
		if rt.Car(conds) == symbolValue(cond) {
			return true
		}
	}
	return false
}

// conditionMatches reports whether a condition-case clause condition (a
// symbol or a list of symbols) applies to errsym.
func (rt *Runtime) conditionMatches(spec Value, errsym Value) bool {
	if spec == T {
		return true
	}
	if spec.IsSymbol() {
		return !spec.IsNil() && rt.hasCondition(errsym, spec.Symbol())
	}
	for ; spec.IsCons(); spec = rt.Cdr(spec) {
		c := rt.Car(spec)
		if c == T || (c.IsSymbol() && rt.hasCondition(errsym, c.Symbol())) {
			return true
		}
	}
	return false
}

// ErrorMessage renders an error the way error-message-string does.
func (rt *Runtime) ErrorMessage(errsym, data Value) string {
	var msg string
	if errsym.IsSymbol() {
		if m := rt.Get(errsym, symbolValue(SymErrorMessage)); m.Tag() == TagString {
			msg = rt.StringVal(m)
		}
	}
	// The data of error and user-error is a formatted message.
	if errsym == symbolValue(SymError) || errsym == symbolValue(SymUserError) {
		if data.IsCons() && rt.Car(data).Tag() == TagString && rt.Cdr(data).IsNil() {
			return rt.StringVal(rt.Car(data))
		}
	}
	if msg == "" {
		msg = "peculiar error"
	}
	var parts []string
	for d := data; d.IsCons(); d = rt.Cdr(d) {
		parts = append(parts, rt.Prin1String(rt.Car(d)))
	}
	if len(parts) == 0 {
		return msg
	}
	return fmt.Sprintf("%s: %s", msg, strings.Join(parts, ", "))
}

// Signal raises the condition sym with data.  The returned error must be
// propagated by the caller.
func (c *Context) Signal(sym SymbolID, data ...Value) error {
	return c.SignalValue(symbolValue(sym), c.rt.List(data...))
}

// SignalValue raises a condition with an arbitrary error symbol and data
// list.
func (c *Context) SignalValue(errsym, data Value) error {
	sig := &Signal{
		Symbol:    errsym,
		Data:      data,
		Backtrace: c.Backtrace(),
		rt:        c.rt,
	}
	if c.rt.debug {
		c.rt.Logger.Noticef("signal %s %s in %s", c.rt.Prin1String(errsym), c.rt.Prin1String(data), strings.Join(sig.Backtrace, " < "))
	}
	for i := len(c.handlers) - 1; i >= 0; i-- {
		h := &c.handlers[i]
		if h.kind == handlerConditionCase && c.rt.conditionMatches(h.tag, errsym) {
			sig.handler = h.id
			break
		}
	}
	return sig
}

// Errorf signals a generic error with a formatted message.
func (c *Context) Errorf(format string, args ...interface{}) error {
	return c.Signal(SymError, c.rt.String(fmt.Sprintf(format, args...)))
}

// WrongType signals wrong-type-argument for a failed predicate.
func (c *Context) WrongType(pred SymbolID, v Value) error {
	return c.Signal(SymWrongTypeArgument, symbolValue(pred), v)
}

// ThrowTo begins a non-local exit to the innermost catch for tag.  When no
// such catch is active it signals no-catch instead.
func (c *Context) ThrowTo(tag, val Value) error {
	for i := len(c.handlers) - 1; i >= 0; i-- {
		h := &c.handlers[i]
		if h.kind == handlerCatch && h.tag == tag {
			return &Throw{Tag: tag, Value: val, handler: h.id, rt: c.rt}
		}
	}
	return c.Signal(SymNoCatch, tag, val)
}

func (c *Context) internalError(format string, args ...interface{}) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}
