// Copyright © 2018 The ELPS authors

package lisp

import (
	"sort"
	"strings"
)

var langListBuiltins = []*langBuiltin{
	{"cons", 2, 2, builtinCons, `Returns a new cons cell with the given car and cdr.`},
	{"car", 1, 1, builtinCar, `Returns the car of a list.  The car of nil is nil.`},
	{"cdr", 1, 1, builtinCdr, `Returns the cdr of a list.  The cdr of nil is nil.`},
	{"car-safe", 1, 1, builtinCarSafe, `Returns the car of a cons cell, or nil for any other object.`},
	{"cdr-safe", 1, 1, builtinCdrSafe, `Returns the cdr of a cons cell, or nil for any other object.`},
	{"setcar", 2, 2, builtinSetcar, `Replaces the car of CELL with NEWCAR and returns NEWCAR.`},
	{"setcdr", 2, 2, builtinSetcdr, `Replaces the cdr of CELL with NEWCDR and returns NEWCDR.`},
	{"list", 0, Many, builtinList, `Returns a new list of the arguments.`},
	{"make-list", 2, 2, builtinMakeList, `Returns a list of LENGTH elements, each INIT.`},
	{"length", 1, 1, builtinLength,
		`Returns the number of elements of a sequence.  Signals circular-list
		for a circular list.`},
	{"safe-length", 1, 1, builtinSafeLength, `Returns the number of distinct conses in a list, without signaling.`},
	{"proper-list-p", 1, 1, builtinProperListp, `Returns the length of a proper list, or nil.`},
	{"nth", 2, 2, builtinNth, `Returns element N of LIST, counting from zero.`},
	{"nthcdr", 2, 2, builtinNthcdr, `Returns the result of taking cdr N times on LIST.`},
	{"elt", 2, 2, builtinElt, `Returns element N of SEQUENCE.`},
	{"take", 2, 2, builtinTake, `Returns a copy of the first N elements of LIST.`},
	{"last", 1, 2, builtinLast, `Returns the last N conses of LIST, default 1.`},
	{"butlast", 1, 2, builtinButlast, `Returns a copy of LIST without its last N elements.`},
	{"append", 0, Many, builtinAppend,
		`Concatenates sequences into a list.  The last argument is not copied
		and becomes the tail of the result.`},
	{"nconc", 0, Many, builtinNconc, `Destructively concatenates lists.`},
	{"reverse", 1, 1, builtinReverse, `Returns a reversed copy of a sequence.`},
	{"nreverse", 1, 1, builtinNreverse, `Reverses a sequence, destructively for lists.`},
	{"memq", 2, 2, builtinMemq, `Returns the tail of LIST whose car is eq to ELT.`},
	{"memql", 2, 2, builtinMemql, `Returns the tail of LIST whose car is eql to ELT.`},
	{"member", 2, 2, builtinMember, `Returns the tail of LIST whose car is equal to ELT.`},
	{"assq", 2, 2, builtinAssq, `Returns the first element of ALIST whose car is eq to KEY.`},
	{"rassq", 2, 2, builtinRassq, `Returns the first element of ALIST whose cdr is eq to KEY.`},
	{"assoc", 2, 3, builtinAssoc, `Returns the first element of ALIST whose car is equal to KEY, or satisfies TESTFN.`},
	{"rassoc", 2, 2, builtinRassoc, `Returns the first element of ALIST whose cdr is equal to KEY.`},
	{"alist-get", 2, 5, builtinAlistGet, `Returns the value associated with KEY in ALIST, or DEFAULT.`},
	{"delq", 2, 2, builtinDelq, `Destructively removes elements eq to ELT from LIST.`},
	{"remq", 2, 2, builtinRemq, `Returns a copy of LIST without elements eq to ELT.`},
	{"delete", 2, 2, builtinDelete, `Removes elements equal to ELT from SEQ, destructively for lists.`},
	{"copy-sequence", 1, 1, builtinCopySequence, `Returns a shallow copy of a sequence.`},
	{"copy-alist", 1, 1, builtinCopyAlist, `Returns a copy of ALIST with each element cons copied.`},
	{"copy-tree", 1, 2, builtinCopyTree, `Recursively copies conses, and vectors when VECP is non-nil.`},
	{"plist-get", 2, 3, builtinPlistGet, `Returns the value of PROP in PLIST.`},
	{"plist-put", 3, 4, builtinPlistPut, `Sets PROP to VAL in PLIST and returns the modified plist.`},
	{"plist-member", 2, 3, builtinPlistMember, `Returns the tail of PLIST starting at PROP.`},
	{"number-sequence", 1, 3, builtinNumberSequence, `Returns a list of numbers from FROM to TO by SEP.`},
	{"mapcar", 2, 2, builtinMapcar, `Applies FUNCTION to each element of SEQUENCE and returns a list of the results.`},
	{"mapc", 2, 2, builtinMapc, `Applies FUNCTION to each element of SEQUENCE for effect and returns SEQUENCE.`},
	{"mapcan", 2, 2, builtinMapcan, `Applies FUNCTION to each element of SEQUENCE and nconcs the results.`},
	{"mapconcat", 2, 3, builtinMapconcat, `Applies FUNCTION to each element of SEQUENCE and concatenates the resulting strings with SEPARATOR.`},
	{"sort", 2, 2, builtinSort, `Sorts SEQ stably by PREDICATE.  Lists are sorted destructively.`},
	{"identity", 1, 1, builtinIdentity, `Returns its argument.`},
	{"ignore", 0, Many, builtinIgnore, `Ignores its arguments and returns nil.`},
}

// listItems collects the cars of a list.  It returns the final cdr and
// false if the list is circular.
func (rt *Runtime) listItems(v Value) ([]Value, Value, bool) {
	var items []Value
	slow := v
	for v.IsCons() {
		items = append(items, rt.Car(v))
		v = rt.Cdr(v)
		if len(items)%2 == 0 {
			slow = rt.Cdr(slow)
			if slow == v && v.IsCons() {
				return items, v, false
			}
		}
	}
	return items, v, true
}

// ListLength returns the length of a proper, acyclic list.
func (rt *Runtime) ListLength(v Value) (int, bool) {
	n := 0
	slow := v
	for v.IsCons() {
		v = rt.Cdr(v)
		n++
		if n%2 == 0 {
			slow = rt.Cdr(slow)
			if slow == v && v.IsCons() {
				return n, false
			}
		}
	}
	return n, v.IsNil()
}

// Nth returns element n of a list, or nil.
func (rt *Runtime) Nth(n int, v Value) Value {
	for i := 0; i < n && v.IsCons(); i++ {
		v = rt.Cdr(v)
	}
	return rt.Car(v)
}

// ToSlice returns the elements of a list, stopping at a non-cons tail or
// the first repeated cons.
func (rt *Runtime) ToSlice(v Value) []Value {
	items, _, _ := rt.listItems(v)
	return items
}

func builtinCons(c *Context, args []Value) (Value, error) {
	return c.rt.Cons(args[0], args[1]), nil
}

// Car implements car with type checking.
func (c *Context) Car(v Value) (Value, error) {
	if !v.IsList() {
		return Nil, c.WrongType(SymListp, v)
	}
	return c.rt.Car(v), nil
}

// Cdr implements cdr with type checking.
func (c *Context) Cdr(v Value) (Value, error) {
	if !v.IsList() {
		return Nil, c.WrongType(SymListp, v)
	}
	return c.rt.Cdr(v), nil
}

func builtinCar(c *Context, args []Value) (Value, error) {
	return c.Car(args[0])
}

func builtinCdr(c *Context, args []Value) (Value, error) {
	return c.Cdr(args[0])
}

func builtinCarSafe(c *Context, args []Value) (Value, error) {
	return c.rt.Car(args[0]), nil
}

func builtinCdrSafe(c *Context, args []Value) (Value, error) {
	return c.rt.Cdr(args[0]), nil
}

// Setcar implements setcar.
func (c *Context) Setcar(cell, v Value) (Value, error) {
	if !cell.IsCons() {
		return Nil, c.WrongType(SymConsp, cell)
	}
	c.rt.SetCar(cell, v)
	return v, nil
}

// Setcdr implements setcdr.
func (c *Context) Setcdr(cell, v Value) (Value, error) {
	if !cell.IsCons() {
		return Nil, c.WrongType(SymConsp, cell)
	}
	c.rt.SetCdr(cell, v)
	return v, nil
}

func builtinSetcar(c *Context, args []Value) (Value, error) {
	return c.Setcar(args[0], args[1])
}

func builtinSetcdr(c *Context, args []Value) (Value, error) {
	return c.Setcdr(args[0], args[1])
}

func builtinList(c *Context, args []Value) (Value, error) {
	return c.rt.List(args...), nil
}

func builtinMakeList(c *Context, args []Value) (Value, error) {
	n, err := c.checkNatnum(args[0])
	if err != nil {
		return Nil, err
	}
	if n > maxSequenceLength {
		return Nil, c.Signal(SymArgsOutOfRange, args[0])
	}
	lst := Nil
	for i := int64(0); i < n; i++ {
		lst = c.rt.Cons(args[1], lst)
	}
	return lst, nil
}

// Length implements length.
func (c *Context) Length(v Value) (Value, error) {
	switch v.tag {
	case TagString:
		return Int(int64(len([]rune(c.rt.StringVal(v))))), nil
	case TagVector, TagRecord:
		return Int(int64(len(c.rt.Items(v)))), nil
	case TagFunction:
		if f := c.rt.Fun(v); f.Kind == FuncCompiled {
			return Int(int64(len(c.rt.byteCodeSlots(f.Code)))), nil
		}
	}
	if !v.IsList() {
		return Nil, c.WrongType(SymSequencep, v)
	}
	n, ok := c.rt.ListLength(v)
	if !ok {
		items, tail, acyclic := c.rt.listItems(v)
		if !acyclic {
			return Nil, c.Signal(SymCircularList, v)
		}
		_ = items
		return Nil, c.WrongType(SymListp, tail)
	}
	return Int(int64(n)), nil
}

func builtinLength(c *Context, args []Value) (Value, error) {
	return c.Length(args[0])
}

func builtinSafeLength(c *Context, args []Value) (Value, error) {
	seen := make(map[Value]bool)
	n := 0
	for v := args[0]; v.IsCons() && !seen[v]; v = c.rt.Cdr(v) {
		seen[v] = true
		n++
	}
	return Int(int64(n)), nil
}

func builtinProperListp(c *Context, args []Value) (Value, error) {
	n, ok := c.rt.ListLength(args[0])
	if !ok {
		return Nil, nil
	}
	return Int(int64(n)), nil
}

// Nthcdr implements nthcdr.  Circular lists are traversed modulo their
// period.
func (c *Context) Nthcdr(nv, lst Value) (Value, error) {
	n, err := c.checkFixnum(nv)
	if err != nil {
		return Nil, err
	}
	tail := lst
	for i := int64(0); i < n; i++ {
		if !tail.IsCons() {
			if tail.IsNil() {
				return Nil, nil
			}
			return Nil, c.WrongType(SymListp, lst)
		}
		tail = c.rt.Cdr(tail)
		// Avoid walking a circular list a very large number of times.
		if tail == lst && i+1 < n {
			period := i + 1
			remaining := (n - i - 1) % period
			for j := int64(0); j < remaining; j++ {
				tail = c.rt.Cdr(tail)
			}
			return tail, nil
		}
	}
	return tail, nil
}

func builtinNthcdr(c *Context, args []Value) (Value, error) {
	return c.Nthcdr(args[0], args[1])
}

// Nth implements nth.
func (c *Context) Nth(nv, lst Value) (Value, error) {
	tail, err := c.Nthcdr(nv, lst)
	if err != nil {
		return Nil, err
	}
	return c.Car(tail)
}

func builtinNth(c *Context, args []Value) (Value, error) {
	return c.Nth(args[0], args[1])
}

// Elt implements elt.
func (c *Context) Elt(seq, idx Value) (Value, error) {
	if seq.IsList() {
		if _, err := c.checkFixnum(idx); err != nil {
			return Nil, err
		}
		return c.Nth(idx, seq)
	}
	return c.Aref(seq, idx)
}

func builtinElt(c *Context, args []Value) (Value, error) {
	return c.Elt(args[0], args[1])
}

func builtinTake(c *Context, args []Value) (Value, error) {
	n, err := c.checkFixnum(args[0])
	if err != nil {
		return Nil, err
	}
	var items []Value
	for v := args[1]; v.IsCons() && int64(len(items)) < n; v = c.rt.Cdr(v) {
		items = append(items, c.rt.Car(v))
	}
	return c.rt.List(items...), nil
}

func builtinLast(c *Context, args []Value) (Value, error) {
	n := int64(1)
	if len(args) > 1 && args[1].Truthy() {
		var err error
		if n, err = c.checkNatnum(args[1]); err != nil {
			return Nil, err
		}
	}
	length, ok := c.rt.ListLength(args[0])
	if !ok {
		items, _, acyclic := c.rt.listItems(args[0])
		if !acyclic {
			return Nil, c.Signal(SymCircularList, args[0])
		}
		length = len(items)
	}
	skip := int64(length) - n
	if skip < 0 {
		skip = 0
	}
	return c.Nthcdr(Int(skip), args[0])
}

func builtinButlast(c *Context, args []Value) (Value, error) {
	n := int64(1)
	if len(args) > 1 && args[1].Truthy() {
		var err error
		if n, err = c.checkFixnum(args[1]); err != nil {
			return Nil, err
		}
	}
	items, err := c.listSlice(args[0])
	if err != nil {
		return Nil, err
	}
	keep := int64(len(items)) - n
	if keep <= 0 {
		return Nil, nil
	}
	return c.rt.List(items[:keep]...), nil
}

func builtinAppend(c *Context, args []Value) (Value, error) {
	if len(args) == 0 {
		return Nil, nil
	}
	var items []Value
	for _, seq := range args[:len(args)-1] {
		elts, err := c.sequenceSlice(seq)
		if err != nil {
			return Nil, err
		}
		items = append(items, elts...)
	}
	return c.rt.ListStar(args[len(args)-1], items...), nil
}

func builtinNconc(c *Context, args []Value) (Value, error) {
	result := Nil
	var last Value
	for i, lst := range args {
		if lst.IsNil() {
			continue
		}
		if i < len(args)-1 && !lst.IsCons() {
			return Nil, c.WrongType(SymConsp, lst)
		}
		if last.IsCons() {
			c.rt.SetCdr(last, lst)
		} else {
			result = lst
		}
		if !lst.IsCons() {
			break
		}
		items, tail, ok := c.rt.listItems(lst)
		if !ok {
			return Nil, c.Signal(SymCircularList, lst)
		}
		_ = tail
		last = lst
		for j := 1; j < len(items); j++ {
			last = c.rt.Cdr(last)
		}
	}
	return result, nil
}

func builtinReverse(c *Context, args []Value) (Value, error) {
	v := args[0]
	switch v.tag {
	case TagVector:
		items := append([]Value(nil), c.rt.Items(v)...)
		reverseValues(items)
		return c.rt.Vector(items), nil
	case TagString:
		rs := []rune(c.rt.StringVal(v))
		for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
			rs[i], rs[j] = rs[j], rs[i]
		}
		return c.rt.String(string(rs)), nil
	}
	items, err := c.listSlice(v)
	if err != nil {
		return Nil, err
	}
	lst := Nil
	for _, x := range items {
		lst = c.rt.Cons(x, lst)
	}
	return lst, nil
}

func reverseValues(items []Value) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

// Nreverse implements nreverse.
func (c *Context) Nreverse(v Value) (Value, error) {
	switch v.tag {
	case TagVector:
		reverseValues(c.rt.Items(v))
		return v, nil
	case TagString:
		return builtinReverse(c, []Value{v})
	}
	if _, err := c.listSlice(v); err != nil {
		return Nil, err
	}
	prev := Nil
	for v.IsCons() {
		next := c.rt.Cdr(v)
		c.rt.SetCdr(v, prev)
		prev, v = v, next
	}
	return prev, nil
}

func builtinNreverse(c *Context, args []Value) (Value, error) {
	return c.Nreverse(args[0])
}

// member returns the first tail of lst whose car satisfies eq.
func (c *Context) member(elt, lst Value, eq func(a, b Value) bool) (Value, error) {
	slow := lst
	n := 0
	for v := lst; ; v = c.rt.Cdr(v) {
		if v.IsNil() {
			return Nil, nil
		}
		if !v.IsCons() {
			return Nil, c.WrongType(SymListp, lst)
		}
		if eq(elt, c.rt.Car(v)) {
			return v, nil
		}
		if n++; n%2 == 0 {
			slow = c.rt.Cdr(slow)
			if slow == c.rt.Cdr(v) {
				return Nil, c.Signal(SymCircularList, lst)
			}
		}
	}
}

func eqValues(a, b Value) bool { return a == b }

// Memq implements memq.
func (c *Context) Memq(elt, lst Value) (Value, error) {
	return c.member(elt, lst, eqValues)
}

func builtinMemq(c *Context, args []Value) (Value, error) {
	return c.Memq(args[0], args[1])
}

func builtinMemql(c *Context, args []Value) (Value, error) {
	return c.member(args[0], args[1], c.rt.Eql)
}

// Member implements member.
func (c *Context) Member(elt, lst Value) (Value, error) {
	return c.member(elt, lst, c.rt.Equal)
}

func builtinMember(c *Context, args []Value) (Value, error) {
	return c.Member(args[0], args[1])
}

func (c *Context) assoc(key, alist Value, cdr bool, eq func(a, b Value) (bool, error)) (Value, error) {
	items, err := c.listSlice(alist)
	if err != nil {
		return Nil, err
	}
	for _, elt := range items {
		if !elt.IsCons() {
			continue
		}
		k := c.rt.Car(elt)
		if cdr {
			k = c.rt.Cdr(elt)
		}
		ok, err := eq(key, k)
		if err != nil {
			return Nil, err
		}
		if ok {
			return elt, nil
		}
	}
	return Nil, nil
}

func noErr(fn func(a, b Value) bool) func(a, b Value) (bool, error) {
	return func(a, b Value) (bool, error) { return fn(a, b), nil }
}

// Assq implements assq.
func (c *Context) Assq(key, alist Value) (Value, error) {
	return c.assoc(key, alist, false, noErr(eqValues))
}

func builtinAssq(c *Context, args []Value) (Value, error) {
	return c.Assq(args[0], args[1])
}

func builtinRassq(c *Context, args []Value) (Value, error) {
	return c.assoc(args[0], args[1], true, noErr(eqValues))
}

func (c *Context) testFunction(testfn Value) func(a, b Value) (bool, error) {
	if testfn.IsNil() {
		return noErr(c.rt.Equal)
	}
	return func(a, b Value) (bool, error) {
		v, err := c.Funcall(testfn, a, b)
		return v.Truthy(), err
	}
}

func builtinAssoc(c *Context, args []Value) (Value, error) {
	testfn := Nil
	if len(args) > 2 {
		testfn = args[2]
	}
	return c.assoc(args[0], args[1], false, c.testFunction(testfn))
}

func builtinRassoc(c *Context, args []Value) (Value, error) {
	return c.assoc(args[0], args[1], true, noErr(c.rt.Equal))
}

func builtinAlistGet(c *Context, args []Value) (Value, error) {
	def, testfn := Nil, Nil
	if len(args) > 2 {
		def = args[2]
	}
	if len(args) > 4 {
		testfn = args[4]
	}
	eq := noErr(eqValues)
	if testfn.Truthy() {
		eq = c.testFunction(testfn)
	}
	cell, err := c.assoc(args[0], args[1], false, eq)
	if err != nil || cell.IsNil() {
		return def, err
	}
	return c.rt.Cdr(cell), nil
}

// Delq implements delq.
func (c *Context) Delq(elt, lst Value) (Value, error) {
	return c.deleteIf(lst, func(v Value) bool { return v == elt })
}

func (c *Context) deleteIf(lst Value, match func(Value) bool) (Value, error) {
	if _, err := c.listSlice(lst); err != nil {
		return Nil, err
	}
	head := lst
	prev := Nil
	for v := lst; v.IsCons(); v = c.rt.Cdr(v) {
		if !match(c.rt.Car(v)) {
			prev = v
			continue
		}
		if prev.IsNil() {
			head = c.rt.Cdr(v)
		} else {
			c.rt.SetCdr(prev, c.rt.Cdr(v))
		}
	}
	return head, nil
}

func builtinDelq(c *Context, args []Value) (Value, error) {
	return c.Delq(args[0], args[1])
}

func builtinRemq(c *Context, args []Value) (Value, error) {
	items, err := c.listSlice(args[1])
	if err != nil {
		return Nil, err
	}
	var keep []Value
	for _, x := range items {
		if x != args[0] {
			keep = append(keep, x)
		}
	}
	if len(keep) == len(items) {
		return args[1], nil
	}
	return c.rt.List(keep...), nil
}

func builtinDelete(c *Context, args []Value) (Value, error) {
	elt, seq := args[0], args[1]
	match := func(v Value) bool { return c.rt.Equal(elt, v) }
	switch seq.tag {
	case TagVector:
		var keep []Value
		for _, x := range c.rt.Items(seq) {
			if !match(x) {
				keep = append(keep, x)
			}
		}
		return c.rt.Vector(keep), nil
	case TagString:
		var b strings.Builder
		for _, r := range c.rt.StringVal(seq) {
			if !match(Int(int64(r))) {
				b.WriteRune(r)
			}
		}
		return c.rt.String(b.String()), nil
	}
	return c.deleteIf(seq, match)
}

func builtinCopySequence(c *Context, args []Value) (Value, error) {
	v := args[0]
	switch v.tag {
	case TagVector:
		return c.rt.Vector(append([]Value(nil), c.rt.Items(v)...)), nil
	case TagRecord:
		return c.rt.Record(append([]Value(nil), c.rt.Items(v)...)), nil
	case TagString:
		return c.rt.String(c.rt.StringVal(v)), nil
	}
	items, err := c.listSlice(v)
	if err != nil {
		return Nil, c.WrongType(SymSequencep, v)
	}
	return c.rt.List(items...), nil
}

func builtinCopyAlist(c *Context, args []Value) (Value, error) {
	items, err := c.listSlice(args[0])
	if err != nil {
		return Nil, err
	}
	for i, x := range items {
		if x.IsCons() {
			items[i] = c.rt.Cons(c.rt.Car(x), c.rt.Cdr(x))
		}
	}
	return c.rt.List(items...), nil
}

func builtinCopyTree(c *Context, args []Value) (Value, error) {
	vecp := len(args) > 1 && args[1].Truthy()
	const maxTreeDepth = 10000
	var copyTree func(v Value, depth int) (Value, error)
	copyTree = func(v Value, depth int) (Value, error) {
		if depth > maxTreeDepth {
			return Nil, c.Signal(SymCircularList, args[0])
		}
		switch {
		case v.IsCons():
			items, tail, ok := c.rt.listItems(v)
			if !ok {
				return Nil, c.Signal(SymCircularList, v)
			}
			for i := range items {
				x, err := copyTree(items[i], depth+1)
				if err != nil {
					return Nil, err
				}
				items[i] = x
			}
			t, err := copyTree(tail, depth+1)
			if err != nil {
				return Nil, err
			}
			return c.rt.ListStar(t, items...), nil
		case vecp && v.tag == TagVector:
			items := append([]Value(nil), c.rt.Items(v)...)
			for i := range items {
				x, err := copyTree(items[i], depth+1)
				if err != nil {
					return Nil, err
				}
				items[i] = x
			}
			return c.rt.Vector(items), nil
		}
		return v, nil
	}
	return copyTree(args[0], 0)
}

func (rt *Runtime) plistGet(plist, prop Value, eq func(a, b Value) bool) Value {
	for p := plist; p.IsCons() && rt.Cdr(p).IsCons(); p = rt.Cdr(rt.Cdr(p)) {
		if eq(rt.Car(p), prop) {
			return rt.Car(rt.Cdr(p))
		}
	}
	return Nil
}

func (rt *Runtime) plistPut(plist, prop, val Value, eq func(a, b Value) bool) Value {
	var last Value
	for p := plist; p.IsCons() && rt.Cdr(p).IsCons(); p = rt.Cdr(rt.Cdr(p)) {
		if eq(rt.Car(p), prop) {
			rt.SetCar(rt.Cdr(p), val)
			return plist
		}
		last = rt.Cdr(p)
	}
	cell := rt.List(prop, val)
	if last.IsCons() {
		rt.SetCdr(last, cell)
		return plist
	}
	return cell
}

func (c *Context) plistPredicate(args []Value, i int) func(a, b Value) bool {
	if len(args) <= i || args[i].IsNil() {
		return eqValues
	}
	pred := args[i]
	return func(a, b Value) bool {
		v, err := c.Funcall(pred, a, b)
		return err == nil && v.Truthy()
	}
}

func builtinPlistGet(c *Context, args []Value) (Value, error) {
	return c.rt.plistGet(args[0], args[1], c.plistPredicate(args, 2)), nil
}

func builtinPlistPut(c *Context, args []Value) (Value, error) {
	if !args[0].IsList() {
		return Nil, c.WrongType(SymPlistp, args[0])
	}
	return c.rt.plistPut(args[0], args[1], args[2], c.plistPredicate(args, 3)), nil
}

func builtinPlistMember(c *Context, args []Value) (Value, error) {
	eq := c.plistPredicate(args, 2)
	for p := args[0]; p.IsCons(); p = c.rt.Cdr(c.rt.Cdr(p)) {
		if eq(c.rt.Car(p), args[1]) {
			return p, nil
		}
	}
	return Nil, nil
}

func builtinNumberSequence(c *Context, args []Value) (Value, error) {
	from := args[0]
	if len(args) < 2 || args[1].IsNil() {
		return c.rt.List(from), nil
	}
	to := args[1]
	sep := Int(1)
	if len(args) > 2 && args[2].Truthy() {
		sep = args[2]
	}
	if c.rt.sign(sep) == 0 {
		return Nil, c.Errorf("The increment can not be zero")
	}
	var items []Value
	descending := c.rt.sign(sep) < 0
	for x := from; ; {
		cmp, err := c.compare(x, to)
		if err != nil {
			return Nil, err
		}
		if (!descending && cmp > 0) || (descending && cmp < 0) {
			break
		}
		if len(items) > maxSequenceLength {
			return Nil, c.Signal(SymArgsOutOfRange, from, to)
		}
		items = append(items, x)
		if x, err = c.arith(opAdd, x, sep); err != nil {
			return Nil, err
		}
	}
	return c.rt.List(items...), nil
}

// mapSequence calls fn on each element of seq.  The results are pinned
// until done is called.
func (c *Context) mapSequence(fn, seq Value, keep bool) (results []Value, done func(), err error) {
	items, err := c.sequenceSlice(seq)
	if err != nil {
		return nil, func() {}, err
	}
	mark := c.pin(items...)
	done = func() { c.unpin(mark) }
	for _, x := range items {
		v, err := c.Funcall(fn, x)
		if err != nil {
			return nil, done, err
		}
		if keep {
			c.pin(v)
			results = append(results, v)
		}
	}
	return results, done, nil
}

func builtinMapcar(c *Context, args []Value) (Value, error) {
	results, done, err := c.mapSequence(args[0], args[1], true)
	defer done()
	if err != nil {
		return Nil, err
	}
	return c.rt.List(results...), nil
}

func builtinMapc(c *Context, args []Value) (Value, error) {
	_, done, err := c.mapSequence(args[0], args[1], false)
	defer done()
	if err != nil {
		return Nil, err
	}
	return args[1], nil
}

func builtinMapcan(c *Context, args []Value) (Value, error) {
	results, done, err := c.mapSequence(args[0], args[1], true)
	defer done()
	if err != nil {
		return Nil, err
	}
	return builtinNconc(c, results)
}

func builtinMapconcat(c *Context, args []Value) (Value, error) {
	sep := ""
	if len(args) > 2 {
		s, err := c.checkStringOrSymbol(args[2])
		if err != nil {
			return Nil, err
		}
		if !args[2].IsNil() {
			sep = s
		}
	}
	results, done, err := c.mapSequence(args[0], args[1], true)
	defer done()
	if err != nil {
		return Nil, err
	}
	parts := make([]string, len(results))
	for i, r := range results {
		s, err := c.concatPart(r)
		if err != nil {
			return Nil, err
		}
		parts[i] = s
	}
	return c.rt.String(strings.Join(parts, sep)), nil
}

func builtinSort(c *Context, args []Value) (Value, error) {
	seq, pred := args[0], args[1]
	var items []Value
	switch {
	case seq.tag == TagVector:
		items = c.rt.Items(seq)
	case seq.IsList():
		var err error
		if items, err = c.listSlice(seq); err != nil {
			return Nil, err
		}
	default:
		return Nil, c.WrongType(SymSequencep, seq)
	}
	var serr error
	sort.SliceStable(items, func(i, j int) bool {
		if serr != nil {
			return false
		}
		v, err := c.Funcall(pred, items[i], items[j])
		if err != nil {
			serr = err
			return false
		}
		return v.Truthy()
	})
	if serr != nil {
		return Nil, serr
	}
	if seq.tag == TagVector {
		return seq, nil
	}
	v := seq
	for _, x := range items {
		c.rt.SetCar(v, x)
		v = c.rt.Cdr(v)
	}
	return seq, nil
}

func builtinIdentity(c *Context, args []Value) (Value, error) {
	return args[0], nil
}

func builtinIgnore(c *Context, args []Value) (Value, error) {
	return Nil, nil
}
