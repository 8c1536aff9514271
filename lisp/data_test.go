// Copyright © 2018 The ELPS authors

package lisp_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/elisp/elisptest"
	"github.com/luthersystems/elisp/lisp"
)

func TestEquality(t *testing.T) {
	tests := elisptest.TestSuite{
		{"eq", elisptest.TestSequence{
			{"(eq 'a 'a)", "t", ""},
			{"(eq (list 1 2) (list 1 2))", "nil", ""},
			{"(let ((x (list 1))) (eq x x))", "t", ""},
			{"(eq 1 1)", "t", ""},
			{"(eq nil '())", "t", ""},
		}},
		{"eql", elisptest.TestSequence{
			{"(eql 1.5 1.5)", "t", ""},
			{"(eql 1 1.0)", "nil", ""},
			{"(eql (expt 2 70) (expt 2 70))", "t", ""},
			{"(eql 0.0 -0.0)", "nil", ""},
		}},
		{"equal", elisptest.TestSequence{
			{"(equal (list 1 2) (list 1 2))", "t", ""},
			{`(equal "abc" "abc")`, "t", ""},
			{`(equal [1 (2 "x")] [1 (2 "x")])`, "t", ""},
			{"(equal '(1 . 2) '(1 . 3))", "nil", ""},
			{"(equal 1 1.0)", "nil", ""},
		}},
		{"equal on cycles", elisptest.TestSequence{
			{"(let ((a (list 1 2)) (b (list 1 2))) (setcdr (cdr a) a) (setcdr (cdr b) b) (equal a b))", "t", ""},
			{"(let ((a (list 1 2)) (b (list 1 3))) (setcdr (cdr a) a) (setcdr (cdr b) b) (equal a b))", "nil", ""},
			{"(let ((a (list 1)) (b (list 1))) (setcar a a) (setcar b b) (equal a b))", "t", ""},
			{"(let ((v (vector 1 nil)) (w (vector 1 nil))) (aset v 1 v) (aset w 1 w) (equal v w))", "t", ""},
		}},
	}
	elisptest.RunTestSuite(t, tests)
}

func TestNumbers(t *testing.T) {
	tests := elisptest.TestSuite{
		{"fixnum overflow", elisptest.TestSequence{
			{"(+ most-positive-fixnum 1)", "9223372036854775808", ""},
			{"(bignump (+ most-positive-fixnum 1))", "t", ""},
			{"(fixnump (- (+ most-positive-fixnum 1) 1))", "t", ""},
			{"(- most-negative-fixnum 1)", "-9223372036854775809", ""},
			{"(* 4294967296 4294967296)", "18446744073709551616", ""},
			{"(type-of (expt 2 100))", "integer", ""},
		}},
		{"contagion", elisptest.TestSequence{
			{"(+ 1 2.5)", "3.5", ""},
			{"(/ 7 2)", "3", ""},
			{"(/ 7 2.0)", "3.5", ""},
			{"(/ -7 2)", "-3", ""},
			{"(* 2 1.5)", "3.0", ""},
			{"(= 1 1.0)", "t", ""},
			{"(< 1 1.5 2)", "t", ""},
			{"(< (expt 2 80) 1.0e30)", "t", ""},
			{"(max 1 2.0)", "2.0", ""},
		}},
		{"errors", elisptest.TestSequence{
			{"(/ 1 0)", "(arith-error)", ""},
			{"(+ 1 'a)", "(wrong-type-argument number-or-marker-p a)", ""},
			{"(/ 1.0 0)", "1.0e+INF", ""},
		}},
		{"rounding", elisptest.TestSequence{
			{"(truncate 2.7)", "2", ""},
			{"(floor -2.5)", "-3", ""},
			{"(round 2.5)", "2", ""},
			{"(mod -7 3)", "2", ""},
			{"(% -7 3)", "-1", ""},
		}},
		{"type-of", elisptest.TestSequence{
			{"(type-of 1)", "integer", ""},
			{"(type-of 1.0)", "float", ""},
			{"(type-of 'a)", "symbol", ""},
			{"(type-of nil)", "symbol", ""},
			{"(type-of '(1))", "cons", ""},
			{`(type-of "s")`, "string", ""},
			{"(type-of [1])", "vector", ""},
			{"(type-of (make-hash-table))", "hash-table", ""},
			{"(type-of (record 'point 1 2))", "point", ""},
		}},
	}
	elisptest.RunTestSuite(t, tests)
}

func TestListsAndSequences(t *testing.T) {
	tests := elisptest.TestSuite{
		{"mutation", elisptest.TestSequence{
			{"(let ((c (cons 1 2))) (setcar c 'a) (setcdr c 'b) c)", "(a . b)", ""},
			{"(let ((l (list 1 2 3))) (nreverse l))", "(3 2 1)", ""},
			{"(append '(1) '(2) nil '(3 . 4))", "(1 2 3 . 4)", ""},
		}},
		{"cycle tolerant length", elisptest.TestSequence{
			{"(let ((c (list 1 2 3))) (setcdr (cddr c) c) (safe-length c))", "3", ""},
			{"(let ((c (list 1 2 3))) (setcdr (cddr c) c) (proper-list-p c))", "nil", ""},
			{"(let ((c (list 1 2))) (setcdr (cdr c) c) (condition-case err (length c) (circular-list (car err))))", "circular-list", ""},
			{"(length '(1 2 . 3))", "(wrong-type-argument listp 3)", ""},
		}},
		{"association", elisptest.TestSequence{
			{"(assq 'b '((a . 1) (b . 2)))", "(b . 2)", ""},
			{`(assoc "b" '(("a" . 1) ("b" . 2)))`, `("b" . 2)`, ""},
			{"(plist-get '(:a 1 :b 2) :b)", "2", ""},
			{"(memq 'c '(a b c d))", "(c d)", ""},
			{"(alist-get 'x '((x . 10)))", "10", ""},
		}},
		{"records", elisptest.TestSequence{
			{"(let ((r (record 'point 1 2))) (list (aref r 0) (aref r 2) (recordp r)))", "(point 2 t)", ""},
			{"(record 'point 1 2)", "#s(point 1 2)", ""},
		}},
	}
	elisptest.RunTestSuite(t, tests)
}

func TestSymbolTable(t *testing.T) {
	tab := lisp.NewSymbolTable()
	foo := tab.Intern("foo")
	assert.Equal(t, foo, tab.Intern("foo"))
	assert.NotEqual(t, foo, tab.Intern("bar"))
	assert.Equal(t, "foo", tab.Get(foo).Name)

	id, ok := tab.InternSoft("foo")
	assert.True(t, ok)
	assert.Equal(t, foo, id)
	_, ok = tab.InternSoft("never-interned")
	assert.False(t, ok)

	fresh := tab.MakeSymbol("foo")
	assert.NotEqual(t, foo, fresh)
	assert.Equal(t, foo, tab.Intern("foo"))

	n := tab.Len()
	assert.True(t, tab.Unintern(foo))
	assert.False(t, tab.Unintern(foo))
	_, ok = tab.InternSoft("foo")
	assert.False(t, ok)
	assert.NotEqual(t, foo, tab.Intern("foo"))
	assert.Equal(t, n+1, tab.Len())

	assert.Contains(t, tab.Completions("ba"), "bar")
}

func TestSymbols(t *testing.T) {
	tests := elisptest.TestSuite{
		{"interning", elisptest.TestSequence{
			{`(eq (intern "foo") 'foo)`, "t", ""},
			{`(eq (make-symbol "foo") 'foo)`, "nil", ""},
			{`(intern-soft "surely-not-interned-yet")`, "nil", ""},
			{`(let ((g (gensym))) (eq g (intern (symbol-name g))))`, "nil", ""},
			{`(symbol-name 'abc)`, `"abc"`, ""},
		}},
		{"cells", elisptest.TestSequence{
			{`(progn (fset 'my-car #'car) (my-car '(1 2)))`, "1", ""},
			{`(progn (put 'sym 'color 'red) (get 'sym 'color))`, "red", ""},
			{`(symbol-plist 'sym)`, "(color red)", ""},
			{`(progn (set 'dynamic-cell 5) (symbol-value 'dynamic-cell))`, "5", ""},
			{`(progn (makunbound 'dynamic-cell) (boundp 'dynamic-cell))`, "nil", ""},
			{`(fboundp 'no-such-function)`, "nil", ""},
		}},
		{"constants", elisptest.TestSequence{
			{`(set 'nil 1)`, "(setting-constant nil)", ""},
			{`(let ((t 1)) t)`, "(setting-constant t)", ""},
			{`(setq :kw 1)`, "(setting-constant :kw)", ""},
			{`:kw`, ":kw", ""},
		}},
	}
	elisptest.RunTestSuite(t, tests)
}

func TestValues(t *testing.T) {
	rt := lisp.StandardRuntime()
	assert.True(t, lisp.Nil.IsNil())
	assert.True(t, lisp.Nil.IsSymbol())
	assert.True(t, lisp.Nil.IsList())
	assert.False(t, lisp.Nil.Truthy())
	assert.True(t, lisp.T.Truthy())
	assert.Equal(t, lisp.T, lisp.Bool(true))
	assert.Equal(t, lisp.Nil, lisp.Bool(false))

	n := lisp.Int(42)
	assert.True(t, n.IsFixnum())
	assert.Equal(t, int64(42), n.Fixnum())
	assert.Equal(t, lisp.TagFloat, lisp.Float(1.5).Tag())

	cell := rt.Cons(lisp.Int(1), lisp.Nil)
	assert.True(t, cell.IsCons())
	assert.Equal(t, "(1)", rt.Prin1String(cell))
	assert.Equal(t, []lisp.Value{lisp.Int(1), lisp.Int(2)}, rt.ToSlice(rt.List(lisp.Int(1), lisp.Int(2))))

	big := new(big.Int).Lsh(big.NewInt(1), 100)
	b := rt.BigInt(big)
	require.Equal(t, lisp.TagBigInt, b.Tag())
	assert.Equal(t, 0, big.Cmp(rt.BigIntVal(b)))
	assert.Equal(t, "1267650600228229401496703205376", rt.Prin1String(b))

	s := rt.String("hé")
	assert.Equal(t, "hé", rt.StringVal(s))
	assert.Equal(t, `"hé"`, rt.Prin1String(s))
	assert.Equal(t, "hé", rt.PrincString(s))

	assert.Equal(t, rt.Symbol("abc"), rt.Symbol("abc"))
	assert.NotEqual(t, rt.Symbol("abc"), rt.MakeSymbol("abc"))
	assert.True(t, rt.IsKeyword(rt.Symbol(":k")))
}
