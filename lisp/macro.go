// Copyright © 2018 The ELPS authors

package lisp

import "strings"

var langMacros = []*langBuiltin{
	{"defun", 2, Many, macroDefun,
		`Defines NAME as a function.  Expands to (defalias 'NAME (function
		(lambda ARGS . BODY))).`},
	{"defmacro", 2, Many, macroDefmacro,
		`Defines NAME as a macro.  Expands to (defalias 'NAME (cons 'macro
		(function (lambda ARGS . BODY)))).`},
	{"when", 1, Many, macroWhen,
		`Evaluates BODY when COND is non-nil.`},
	{"unless", 1, Many, macroUnless,
		`Evaluates BODY when COND is nil.`},
	{"dolist", 1, Many, macroDolist,
		`(dolist (VAR LIST [RESULT]) BODY...) evaluates BODY with VAR bound
		to each element of LIST, then returns RESULT.`},
	{"dotimes", 1, Many, macroDotimes,
		`(dotimes (VAR COUNT [RESULT]) BODY...) evaluates BODY with VAR
		bound to successive integers from 0 to COUNT-1, then returns
		RESULT.`},
	{"push", 2, 2, macroPush,
		`Adds NEWELT to the front of the list stored in PLACE.`},
	{"pop", 1, 1, macroPop,
		`Removes and returns the first element of the list stored in
		PLACE.`},
	{"setf", 0, Many, macroSetf,
		`Assigns each PLACE the value of the following form.  Supported
		places are variables and car, cdr, nth, aref, gethash, get and
		symbol-value forms.`},
	{"ignore-errors", 0, Many, macroIgnoreErrors,
		`Evaluates BODY, returning nil if an error is signaled.`},
	{"condition-case-unless-debug", 2, Many, macroConditionCaseUnlessDebug,
		`Like condition-case.`},
	{"`", 1, 1, macroBackquote,
		"Expands a backquote template into list construction calls.  Within\n" +
			"the template ,X is replaced by the value of X and ,@X splices the\n" +
			"elements of the value of X."},
}

func (c *Context) sym(name string) Value {
	return c.rt.Symbol(name)
}

// stripDeclarations removes (declare ...) forms from the head of a
// function body.  The docstring, if any, is kept.
func (c *Context) stripDeclarations(body Value) Value {
	rt := c.rt
	var head []Value
	for b := body; b.IsCons(); b = rt.Cdr(b) {
		form := rt.Car(b)
		if form.Tag() == TagString && len(head) == 0 && rt.Cdr(b).IsCons() {
			head = append(head, form)
			continue
		}
		if form.IsCons() && rt.Car(form) == c.sym("declare") {
			continue
		}
		return rt.ListStar(b, head...)
	}
	return rt.List(head...)
}

func macroDefun(c *Context, args []Value) (Value, error) {
	rt := c.rt
	name := args[0]
	if !name.IsSymbol() {
		return Nil, c.WrongType(SymSymbolp, name)
	}
	body := c.stripDeclarations(rt.List(args[2:]...))
	lambda := rt.ListStar(body, symbolValue(SymLambda), args[1])
	return rt.List(symbolValue(SymDefalias),
		rt.List(symbolValue(SymQuote), name),
		rt.List(symbolValue(SymFunction), lambda)), nil
}

func macroDefmacro(c *Context, args []Value) (Value, error) {
	rt := c.rt
	name := args[0]
	if !name.IsSymbol() {
		return Nil, c.WrongType(SymSymbolp, name)
	}
	body := c.stripDeclarations(rt.List(args[2:]...))
	lambda := rt.ListStar(body, symbolValue(SymLambda), args[1])
	return rt.List(symbolValue(SymDefalias),
		rt.List(symbolValue(SymQuote), name),
		rt.List(symbolValue(SymCons),
			rt.List(symbolValue(SymQuote), symbolValue(SymMacro)),
			rt.List(symbolValue(SymFunction), lambda))), nil
}

func macroWhen(c *Context, args []Value) (Value, error) {
	rt := c.rt
	return rt.List(symbolValue(SymIf), args[0], rt.ListStar(rt.List(args[1:]...), symbolValue(SymProgn))), nil
}

func macroUnless(c *Context, args []Value) (Value, error) {
	rt := c.rt
	return rt.ListStar(rt.List(args[1:]...), symbolValue(SymIf), args[0], Nil), nil
}

// loopSpec destructures (VAR EXPR [RESULT]).
func (c *Context) loopSpec(spec Value) (variable, expr, result Value, err error) {
	rt := c.rt
	n, ok := rt.ListLength(spec)
	if !ok || n < 2 || n > 3 {
		return Nil, Nil, Nil, c.WrongType(SymListp, spec)
	}
	variable = rt.Car(spec)
	if !variable.IsSymbol() {
		return Nil, Nil, Nil, c.WrongType(SymSymbolp, variable)
	}
	return variable, rt.Nth(1, spec), rt.Nth(2, spec), nil
}

func macroDolist(c *Context, args []Value) (Value, error) {
	rt := c.rt
	variable, list, result, err := c.loopSpec(args[0])
	if err != nil {
		return Nil, err
	}
	tail := rt.Gensym("tail")
	body := rt.List(args[1:]...)
	step := rt.List(symbolValue(SymSetq), tail, rt.List(symbolValue(SymCdr), tail))
	iter := rt.ListStar(rt.List(step),
		symbolValue(SymLet),
		rt.List(rt.List(variable, rt.List(symbolValue(SymCar), tail))))
	iter = c.appendForms(iter, body, step)
	loop := rt.List(symbolValue(SymWhile), tail, iter)
	forms := []Value{symbolValue(SymLet), rt.List(rt.List(tail, list)), loop}
	if result.Truthy() {
		forms = append(forms, rt.List(symbolValue(SymLet), rt.List(rt.List(variable, Nil)), result))
	}
	return rt.List(forms...), nil
}

// appendForms builds (HEAD... BODY... LAST) where form is (HEAD... LAST).
func (c *Context) appendForms(form, body, last Value) Value {
	rt := c.rt
	var items []Value
	for f := form; f.IsCons(); f = rt.Cdr(f) {
		items = append(items, rt.Car(f))
	}
	items = items[:len(items)-1]
	for b := body; b.IsCons(); b = rt.Cdr(b) {
		items = append(items, rt.Car(b))
	}
	items = append(items, last)
	return rt.List(items...)
}

func macroDotimes(c *Context, args []Value) (Value, error) {
	rt := c.rt
	variable, count, result, err := c.loopSpec(args[0])
	if err != nil {
		return Nil, err
	}
	upper := rt.Gensym("upper")
	counter := rt.Gensym("counter")
	inner := rt.ListStar(rt.List(args[1:]...),
		symbolValue(SymLet), rt.List(rt.List(variable, counter)))
	step := rt.List(symbolValue(SymSetq), counter, rt.List(c.sym("1+"), counter))
	loop := rt.List(symbolValue(SymWhile), rt.List(c.sym("<"), counter, upper), inner, step)
	forms := []Value{symbolValue(SymLet), rt.List(rt.List(upper, count), rt.List(counter, Int(0))), loop}
	if result.Truthy() {
		forms = append(forms, rt.List(symbolValue(SymLet), rt.List(rt.List(variable, counter)), result))
	}
	return rt.List(forms...), nil
}

func macroPush(c *Context, args []Value) (Value, error) {
	rt := c.rt
	newelt, place := args[0], args[1]
	val := rt.List(symbolValue(SymCons), newelt, place)
	mark := c.pin(val)
	defer c.unpin(mark)
	return c.setfPlace(place, val)
}

func macroPop(c *Context, args []Value) (Value, error) {
	rt := c.rt
	place := args[0]
	next := rt.List(symbolValue(SymCdr), place)
	mark := c.pin(next)
	defer c.unpin(mark)
	set, err := c.setfPlace(place, next)
	if err != nil {
		return Nil, err
	}
	return rt.List(c.sym("car-safe"), rt.List(symbolValue(SymProg1), place, set)), nil
}

func macroSetf(c *Context, args []Value) (Value, error) {
	rt := c.rt
	if len(args)%2 != 0 {
		return Nil, c.Signal(SymWrongNumberOfArguments, c.sym("setf"), Int(int64(len(args))))
	}
	forms := []Value{symbolValue(SymProgn)}
	mark := c.pin()
	defer c.unpin(mark)
	for i := 0; i < len(args); i += 2 {
		set, err := c.setfPlace(args[i], args[i+1])
		if err != nil {
			return Nil, err
		}
		c.pin(set)
		forms = append(forms, set)
	}
	if len(forms) == 2 {
		return forms[1], nil
	}
	return rt.List(forms...), nil
}

// setfPlace returns a form storing val into place.  Subforms of place may
// be evaluated more than once.
func (c *Context) setfPlace(place, val Value) (Value, error) {
	rt := c.rt
	if place.IsSymbol() {
		return rt.List(symbolValue(SymSetq), place, val), nil
	}
	if !place.IsCons() || !rt.Car(place).IsSymbol() {
		return Nil, c.Errorf("invalid place: %s", rt.Prin1String(place))
	}
	arg := func(i int) Value { return rt.Nth(i, place) }
	switch rt.SymbolName(rt.Car(place)) {
	case "car":
		return rt.List(symbolValue(SymSetcar), arg(1), val), nil
	case "cdr":
		return rt.List(symbolValue(SymSetcdr), arg(1), val), nil
	case "nth":
		return rt.List(symbolValue(SymSetcar), rt.List(symbolValue(SymNthcdr), arg(1), arg(2)), val), nil
	case "aref":
		return rt.List(c.sym("aset"), arg(1), arg(2), val), nil
	case "gethash":
		return rt.List(c.sym("puthash"), arg(1), val, arg(2)), nil
	case "get":
		return rt.List(c.sym("put"), arg(1), arg(2), val), nil
	case "symbol-value":
		return rt.List(c.sym("set"), arg(1), val), nil
	}
	exp, expanded, err := c.Macroexpand1(place)
	if err != nil {
		return Nil, err
	}
	if expanded {
		return c.setfPlace(exp, val)
	}
	return Nil, c.Errorf("invalid place: %s", rt.Prin1String(place))
}

func macroIgnoreErrors(c *Context, args []Value) (Value, error) {
	rt := c.rt
	return rt.List(symbolValue(SymConditionCase), Nil,
		rt.ListStar(rt.List(args...), symbolValue(SymProgn)),
		rt.List(symbolValue(SymError), Nil)), nil
}

func macroConditionCaseUnlessDebug(c *Context, args []Value) (Value, error) {
	return c.rt.ListStar(c.rt.List(args...), symbolValue(SymConditionCase)), nil
}

func macroBackquote(c *Context, args []Value) (Value, error) {
	return c.backquote(args[0], 0)
}

func (c *Context) isUnquote(form Value, sym SymbolID) bool {
	rt := c.rt
	return form.IsCons() && rt.Car(form) == symbolValue(sym) &&
		rt.Cdr(form).IsCons() && rt.Cdr(rt.Cdr(form)).IsNil()
}

func (c *Context) quoted(v Value) Value {
	switch v.tag {
	case TagSymbol:
		if v.IsNil() || v == T || strings.HasPrefix(c.rt.SymbolName(v), ":") {
			return v
		}
	case TagCons:
	default:
		return v
	}
	return c.rt.List(symbolValue(SymQuote), v)
}

// backquote expands a template at nesting depth into an expression which
// constructs it.
func (c *Context) backquote(form Value, depth int) (Value, error) {
	rt := c.rt
	switch form.tag {
	case TagVector:
		lst, err := c.backquote(rt.List(rt.Items(form)...), depth)
		if err != nil {
			return Nil, err
		}
		return rt.List(symbolValue(SymVconcat), lst), nil
	case TagCons:
	default:
		return c.quoted(form), nil
	}
	switch {
	case c.isUnquote(form, SymComma):
		if depth == 0 {
			return rt.Nth(1, form), nil
		}
		inner, err := c.backquote(rt.Nth(1, form), depth-1)
		if err != nil {
			return Nil, err
		}
		return rt.List(symbolValue(SymList), c.quoted(symbolValue(SymComma)), inner), nil
	case c.isUnquote(form, SymCommaAt):
		if depth == 0 {
			return Nil, c.Errorf(",@ after `")
		}
		inner, err := c.backquote(rt.Nth(1, form), depth-1)
		if err != nil {
			return Nil, err
		}
		return rt.List(symbolValue(SymList), c.quoted(symbolValue(SymCommaAt)), inner), nil
	case c.isUnquote(form, SymBackquote):
		inner, err := c.backquote(rt.Nth(1, form), depth+1)
		if err != nil {
			return Nil, err
		}
		return rt.List(symbolValue(SymList), c.quoted(symbolValue(SymBackquote)), inner), nil
	}

	var segments []Value
	var pending []Value
	flush := func() {
		if len(pending) > 0 {
			segments = append(segments, rt.ListStar(rt.List(pending...), symbolValue(SymList)))
			pending = nil
		}
	}
	tail := Nil
	p := form
	for p.IsCons() {
		if c.isUnquote(p, SymComma) || c.isUnquote(p, SymCommaAt) {
			// (a . ,b) reads as (a \, b)
			break
		}
		elt := rt.Car(p)
		if depth == 0 && c.isUnquote(elt, SymCommaAt) {
			flush()
			segments = append(segments, rt.Nth(1, elt))
		} else {
			exp, err := c.backquote(elt, depth)
			if err != nil {
				return Nil, err
			}
			pending = append(pending, exp)
		}
		p = rt.Cdr(p)
	}
	flush()
	if !p.IsNil() {
		exp, err := c.backquote(p, depth)
		if err != nil {
			return Nil, err
		}
		tail = exp
	}
	switch {
	case len(segments) == 0:
		return tail, nil
	case len(segments) == 1 && tail.IsNil():
		seg := segments[0]
		if seg.IsCons() && rt.Car(seg) == symbolValue(SymList) {
			return seg, nil
		}
		// A lone splice must still be copied.
		return rt.List(symbolValue(SymAppend), seg, Nil), nil
	}
	if tail.IsNil() {
		last := segments[len(segments)-1]
		if !(last.IsCons() && rt.Car(last) == symbolValue(SymList)) {
			segments = append(segments, Nil)
		}
	} else {
		segments = append(segments, tail)
	}
	return rt.ListStar(rt.List(segments...), symbolValue(SymAppend)), nil
}
