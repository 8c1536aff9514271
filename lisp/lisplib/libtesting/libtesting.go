// Copyright © 2018 The ELPS authors

// Package libtesting implements a subset of ERT, the Emacs Lisp regression
// testing library.
package libtesting

import (
	"fmt"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/lisplib/internal/libutil"
)

// Feature is the symbol provided by Install.
const Feature = "ert"

const (
	// testsVar holds the names of defined tests, most recent first.
	testsVar = "ert--tests"
	// testProp is the symbol property holding a test's body function.
	testProp = "ert--test"
)

// Install defines the test macros in rt and provides the ert feature.
func Install(rt *lisp.Runtime) {
	rt.DefineError(rt.Symbol("ert-test-failed"), "Test failed", "error")
	rt.DefineError(rt.Symbol("ert-test-skipped"), "Test skipped", "error")
	libutil.Install(rt, Macros())
	libutil.Install(rt, Builtins())
	rt.Provide(rt.Symbol(Feature))
}

func Macros() []*libutil.Builtin {
	return []*libutil.Builtin{
		libutil.MacroDoc("ert-deftest", 2, lisp.Many, MacroDeftest,
			`Define NAME as a test.  The body is run by ert-run-tests.
			An optional docstring and :tags or :expected-result keyword
			arguments may precede the body.`),
		libutil.MacroDoc("should", 1, 1, MacroShould,
			`Evaluate FORM.  If it returns nil, the test fails.`),
		libutil.MacroDoc("should-not", 1, 1, MacroShouldNot,
			`Evaluate FORM.  If it returns non-nil, the test fails.`),
		libutil.MacroDoc("should-error", 1, 3, MacroShouldError,
			`Evaluate FORM and check that it signals an error.
			The optional keyword argument :type names the error condition,
			or list of conditions, expected.  Returns (ERROR-SYMBOL . DATA).`),
	}
}

func Builtins() []*libutil.Builtin {
	return []*libutil.Builtin{
		libutil.Function("ert--define", 3, 3, builtinDefine),
		libutil.Function("ert--should", 3, 3, builtinShould),
		libutil.Function("ert--should-error", 2, 2, builtinShouldError),
		libutil.FunctionDoc("ert-test-boundp", 1, 1, builtinTestBoundp,
			`Return non-nil if SYMBOL names a test.`),
		libutil.FunctionDoc("ert-skip", 1, 1, builtinSkip,
			`Skip the current test, reporting DATA.`),
		libutil.FunctionDoc("ert-run-tests", 0, 1, builtinRunTests,
			`Run the tests selected by SELECTOR and return (PASSED . FAILED).
			SELECTOR is nil or t for all tests, a test name or a regexp
			matched against test names.`),
	}
}

// Test is a defined test.
type Test struct {
	Name string
	Doc  string
	Fun  lisp.Value
}

// Tests returns the tests defined in rt in definition order.
func Tests(rt *lisp.Runtime) []*Test {
	names, ok := rt.SymbolValue(rt.Symbol(testsVar))
	if !ok {
		return nil
	}
	syms := rt.ToSlice(names)
	tests := make([]*Test, 0, len(syms))
	for i := len(syms) - 1; i >= 0; i-- {
		if t := lookup(rt, syms[i]); t != nil {
			tests = append(tests, t)
		}
	}
	return tests
}

func lookup(rt *lisp.Runtime, name lisp.Value) *Test {
	if !name.IsSymbol() {
		return nil
	}
	def := rt.Get(name, rt.Symbol(testProp))
	if !def.IsCons() {
		return nil
	}
	t := &Test{Name: rt.SymbolName(name), Fun: rt.Car(def)}
	if doc := rt.Cdr(def); doc.Tag() == lisp.TagString {
		t.Doc = rt.StringVal(doc)
	}
	return t
}

// Result is the outcome of running one test.
type Result struct {
	Name    string
	Passed  bool
	Skipped bool
	// Condition is the error that failed or skipped the test.
	Condition *lisp.Signal
}

// Run runs the named test at top level.  Failed assertions and other Lisp
// errors are reported in the Result.  Errors that are not conditions, such
// as internal faults, are returned.
func Run(c *lisp.Context, name string) (*Result, error) {
	rt := c.Runtime()
	t := lookup(rt, rt.Symbol(name))
	if t == nil {
		return nil, fmt.Errorf("test not defined: %s", name)
	}
	_, err := c.Call(t.Fun)
	return result(rt, name, err)
}

func result(rt *lisp.Runtime, name string, err error) (*Result, error) {
	r := &Result{Name: name, Passed: err == nil}
	if err == nil {
		return r, nil
	}
	sig, ok := err.(*lisp.Signal)
	if !ok {
		return nil, err
	}
	r.Condition = sig
	r.Skipped = sig.Symbol == rt.Symbol("ert-test-skipped")
	return r, nil
}

func MacroDeftest(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	rt := c.Runtime()
	name := args[0]
	if !name.IsSymbol() || name.IsNil() {
		return lisp.Nil, c.WrongType(lisp.SymSymbolp, name)
	}
	if _, ok := rt.ListLength(args[1]); !ok {
		return lisp.Nil, c.WrongType(lisp.SymListp, args[1])
	}
	body := args[2:]
	doc := lisp.Nil
	if len(body) > 1 && body[0].Tag() == lisp.TagString {
		doc, body = body[0], body[1:]
	}
	for len(body) > 1 && rt.IsKeyword(body[0]) {
		body = body[2:]
	}
	fun := rt.Cons(rt.Symbol("lambda"), rt.Cons(lisp.Nil, rt.List(body...)))
	return rt.List(rt.Symbol("ert--define"), quote(rt, name), fun, doc), nil
}

func MacroShould(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	return expandShould(c, "should", args[0], lisp.Nil), nil
}

func MacroShouldNot(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	return expandShould(c, "should-not", args[0], lisp.T), nil
}

func expandShould(c *lisp.Context, macro string, form, negate lisp.Value) lisp.Value {
	rt := c.Runtime()
	whole := rt.List(rt.Symbol(macro), form)
	return rt.List(rt.Symbol("ert--should"), quote(rt, whole), form, negate)
}

// MacroShouldError expands into a condition-case so that the error is
// caught by the evaluator's own handler stack.  The body yields a list on
// normal return and the handler a vector holding the condition.
func MacroShouldError(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	rt := c.Runtime()
	form := args[0]
	kw, err := libutil.KeywordArgs(c, args[1:], ":type", ":exclude-subtypes")
	if err != nil {
		return lisp.Nil, err
	}
	errType := rt.Symbol("error")
	if t, ok := kw[":type"]; ok {
		errType = unquote(rt, t)
	}
	whole := rt.Cons(rt.Symbol("should-error"), rt.List(args...))
	errVar := rt.Gensym("err")
	body := rt.List(rt.Symbol("condition-case"), errVar,
		rt.List(rt.Symbol("list"), form),
		rt.List(errType, rt.List(rt.Symbol("vector"), errVar)))
	return rt.List(rt.Symbol("ert--should-error"), quote(rt, whole), body), nil
}

func quote(rt *lisp.Runtime, v lisp.Value) lisp.Value {
	return rt.List(rt.Symbol("quote"), v)
}

// unquote strips quote from a constant form.
func unquote(rt *lisp.Runtime, v lisp.Value) lisp.Value {
	if v.IsCons() && rt.Car(v) == rt.Symbol("quote") {
		return rt.Nth(1, v)
	}
	return v
}

func fail(c *lisp.Context, whole lisp.Value, fields ...lisp.Value) error {
	rt := c.Runtime()
	form := rt.Nth(1, whole)
	info := append([]lisp.Value{whole, rt.Symbol(":form"), form}, fields...)
	return c.SignalValue(rt.Symbol("ert-test-failed"), rt.List(rt.List(info...)))
}

func builtinDefine(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	rt := c.Runtime()
	name, fun, doc := args[0], args[1], args[2]
	if !c.Functionp(fun) {
		return lisp.Nil, c.WrongType(lisp.SymFunctionp, fun)
	}
	if lookup(rt, name) == nil {
		names, ok := rt.SymbolValue(rt.Symbol(testsVar))
		if !ok {
			names = lisp.Nil
		}
		rt.Symbols.Get(rt.Symbols.Intern(testsVar)).Value = rt.Cons(name, names)
	}
	rt.Put(name, rt.Symbol(testProp), rt.Cons(fun, doc))
	return name, nil
}

func builtinShould(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	rt := c.Runtime()
	whole, val, negate := args[0], args[1], args[2]
	if val.Truthy() == negate.Truthy() {
		return lisp.Nil, fail(c, whole, rt.Symbol(":value"), val)
	}
	return val, nil
}

func builtinShouldError(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	rt := c.Runtime()
	whole, outcome := args[0], args[1]
	if outcome.Tag() == lisp.TagVector {
		return rt.Items(outcome)[0], nil
	}
	return lisp.Nil, fail(c, whole,
		rt.Symbol(":value"), rt.Car(outcome),
		rt.Symbol(":fail-reason"), rt.String("did not signal an error"))
}

func builtinTestBoundp(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	return lisp.Bool(lookup(c.Runtime(), args[0]) != nil), nil
}

func builtinSkip(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	return lisp.Nil, c.SignalValue(c.Runtime().Symbol("ert-test-skipped"), c.Runtime().List(args[0]))
}

func (r *Result) status() string {
	switch {
	case r.Skipped:
		return "  skipped"
	case r.Passed:
		return "   passed"
	}
	return "FAILED"
}

func builtinRunTests(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	rt := c.Runtime()
	selected, err := selectTests(c, libutil.OptArg(args, 0))
	if err != nil {
		return lisp.Nil, err
	}
	fmt.Fprintf(rt.Stdout, "Running %d tests\n", len(selected))
	var passed, failed int64
	for i, t := range selected {
		_, err := c.Funcall(t.Fun)
		r, err := result(rt, t.Name, err)
		if err != nil {
			return lisp.Nil, err
		}
		fmt.Fprintf(rt.Stdout, "%s  %d/%d  %s\n", r.status(), i+1, len(selected), t.Name)
		switch {
		case r.Skipped:
		case r.Passed:
			passed++
		default:
			failed++
			fmt.Fprintf(rt.Stdout, "    %s\n", rt.ErrorMessage(r.Condition.Symbol, r.Condition.Data))
		}
	}
	fmt.Fprintf(rt.Stdout, "Ran %d tests, %d results as expected, %d unexpected\n",
		len(selected), passed, failed)
	return rt.Cons(lisp.Int(passed), lisp.Int(failed)), nil
}

func selectTests(c *lisp.Context, selector lisp.Value) ([]*Test, error) {
	rt := c.Runtime()
	all := Tests(rt)
	switch {
	case selector.IsNil(), selector == lisp.T:
		return all, nil
	case selector.IsSymbol():
		if t := lookup(rt, selector); t != nil {
			return []*Test{t}, nil
		}
		return nil, nil
	case selector.Tag() == lisp.TagString:
		var selected []*Test
		for _, t := range all {
			m, err := c.Funcall(rt.Symbol("string-match"), selector, rt.String(t.Name))
			if err != nil {
				return nil, err
			}
			if m.Truthy() {
				selected = append(selected, t)
			}
		}
		return selected, nil
	}
	return nil, c.Errorf("Invalid test selector: %s", rt.Prin1String(selector))
}
