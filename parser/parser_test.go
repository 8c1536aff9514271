// Copyright © 2018 The ELPS authors

package parser

import (
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/elisp/lisp"
)

func readAll(t *testing.T, rt *lisp.Runtime, src string) []lisp.Value {
	t.Helper()
	s := NewReader().NewStream(rt, "test", strings.NewReader(src))
	var forms []lisp.Value
	for {
		v, err := s.Read()
		if err == io.EOF {
			return forms
		}
		require.NoError(t, err, "source: %s", src)
		forms = append(forms, v)
	}
}

func readOne(t *testing.T, rt *lisp.Runtime, src string) lisp.Value {
	t.Helper()
	forms := readAll(t, rt, src)
	require.Len(t, forms, 1, "source: %s", src)
	return forms[0]
}

func readError(t *testing.T, rt *lisp.Runtime, src string) *lisp.SyntaxError {
	t.Helper()
	s := NewReader().NewStream(rt, "test", strings.NewReader(src))
	_, err := s.Read()
	require.Error(t, err, "source: %s", src)
	serr, ok := err.(*lisp.SyntaxError)
	require.True(t, ok, "unexpected error type %T", err)
	return serr
}

func TestReadPrint(t *testing.T) {
	rt := lisp.StandardRuntime()
	tests := []struct {
		src    string
		result string
	}{
		{"42", "42"},
		{"-17", "-17"},
		{"+5", "5"},
		{"1.", "1"},
		{"1.5", "1.5"},
		{".5", "0.5"},
		{"-1.25e2", "-125.0"},
		{"1e3", "1000.0"},
		{"1.0e+INF", "1.0e+INF"},
		{"-4.0e+INF", "-1.0e+INF"},
		{"123456789012345678901234567890", "123456789012345678901234567890"},
		{"foo", "foo"},
		{"1+", "1+"},
		{"-", "-"},
		{"+.", "+."},
		{"nil", "nil"},
		{"()", "nil"},
		{"(a b . c)", "(a b . c)"},
		{"(a . (b c))", "(a b c)"},
		{"(. b)", "b"},
		{"'x", "'x"},
		{"#'car", "#'car"},
		{"`(a ,b ,@c)", "`(a ,b ,@c)"},
		{"[1 2 (3)]", "[1 2 (3)]"},
		{"[]", "[]"},
		{`"a\"b"`, `"a\"b"`},
		{"#x1F", "31"},
		{"#X-ff", "-255"},
		{"#b101", "5"},
		{"#o17", "15"},
		{"#24r1k", "44"},
		{"#s(foo 1 2)", "#s(foo 1 2)"},
		{"; comment\n  5", "5"},
		{"#!/usr/bin/emacs --script\n(a)", "(a)"},
		{"(a;comment\nb)", "(a b)"},
		{"#@5 xxxx(a)", "(a)"},
		{`#("abc" 0 1 (face bold))`, `"abc"`},
		{"#_foo", "foo"},
	}
	for i, test := range tests {
		v := readOne(t, rt, test.src)
		assert.Equal(t, test.result, rt.Prin1String(v), "test %d: %s", i, test.src)
	}
}

func TestReadNaN(t *testing.T) {
	rt := lisp.StandardRuntime()
	v := readOne(t, rt, "0.0e+NaN")
	require.Equal(t, lisp.TagFloat, v.Tag())
	assert.True(t, math.IsNaN(v.FloatVal()))
	v = readOne(t, rt, "-0.0e+NaN")
	assert.True(t, math.Signbit(v.FloatVal()))
}

func TestReadChars(t *testing.T) {
	rt := lisp.StandardRuntime()
	tests := []struct {
		src  string
		char int64
	}{
		{"?a", 'a'},
		{"?\\n", '\n'},
		{"?\\s", ' '},
		{"?\\(", '('},
		{"?\\C-a", 1},
		{"?\\^a", 1},
		{"?\\^?", 127},
		{"?\\C-%", 1<<26 | '%'},
		{"?\\M-a", 1<<27 | 'a'},
		{"?\\M-\\C-b", 1<<27 | 2},
		{"?\\S-a", 1<<25 | 'a'},
		{"?\\x41", 'A'},
		{"?\\101", 'A'},
		{"?\\u00e9", 0xe9},
		{"?\\U0001F600", 0x1F600},
		{"?\\N{U+41}", 'A'},
		{"?\\N{LATIN SMALL LETTER E WITH ACUTE}", 0xe9},
		{"?\\d", 127},
		{"?é", 0xe9},
	}
	for i, test := range tests {
		v := readOne(t, rt, test.src)
		if assert.True(t, v.IsFixnum(), "test %d: %s", i, test.src) {
			assert.Equal(t, test.char, v.Fixnum(), "test %d: %s", i, test.src)
		}
	}
}

func TestReadStrings(t *testing.T) {
	rt := lisp.StandardRuntime()
	tests := []struct {
		src string
		str string
	}{
		{`""`, ""},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"line \
continued"`, "line continued"},
		{`"\x41\ B"`, "AB"},
		{`"\101"`, "A"},
		{`"été"`, "été"},
		{`"\C-a"`, "\x01"},
		{`"\M-\C-a"`, "\u0081"},
		{`"\e[0m"`, "\x1b[0m"},
		{"\"multi\nline\"", "multi\nline"},
		{`"\(escaped paren"`, "(escaped paren"},
	}
	for i, test := range tests {
		v := readOne(t, rt, test.src)
		require.Equal(t, lisp.TagString, v.Tag(), "test %d: %s", i, test.src)
		assert.Equal(t, test.str, rt.StringVal(v), "test %d: %s", i, test.src)
	}
}

func TestReadSymbols(t *testing.T) {
	rt := lisp.StandardRuntime()
	v := readOne(t, rt, `\1`)
	require.True(t, v.IsSymbol())
	assert.Equal(t, "1", rt.SymbolName(v))

	v = readOne(t, rt, `foo\ bar`)
	assert.Equal(t, rt.Symbol("foo bar"), v)

	v = readOne(t, rt, "##")
	assert.Equal(t, rt.Symbol(""), v)

	v = readOne(t, rt, ":key")
	assert.Equal(t, rt.Symbol(":key"), v)
	assert.True(t, rt.IsKeyword(v))

	v = readOne(t, rt, "#:foo")
	require.True(t, v.IsSymbol())
	assert.Equal(t, "foo", rt.SymbolName(v))
	assert.NotEqual(t, rt.Symbol("foo"), v)

	forms := readAll(t, rt, "(#:g #:g)")
	items := rt.ToSlice(forms[0])
	assert.NotEqual(t, items[0], items[1])
}

func TestReadBigInt(t *testing.T) {
	rt := lisp.StandardRuntime()
	v := readOne(t, rt, "#x10000000000000000")
	assert.Equal(t, lisp.TagBigInt, v.Tag())
	assert.Equal(t, "18446744073709551616", rt.Prin1String(v))

	serr := readError(t, rt, "1"+strings.Repeat("0", 20000))
	assert.Equal(t, "Integer too large", serr.Msg)
}

func TestReadHashTable(t *testing.T) {
	rt := lisp.StandardRuntime()
	v := readOne(t, rt, "#s(hash-table test equal data (\"a\" 1 b 2 \"a\" 3))")
	require.Equal(t, lisp.TagHashTable, v.Tag())
	table := rt.Table(v)
	assert.Equal(t, 2, table.Count())
	assert.Equal(t, rt.Symbol("equal"), table.Test)
}

func TestReadCircular(t *testing.T) {
	rt := lisp.StandardRuntime()
	v := readOne(t, rt, "#1=(a . #1#)")
	require.True(t, v.IsCons())
	assert.Equal(t, v, rt.Cdr(v))

	v = readOne(t, rt, "#1=[x #1#]")
	assert.Equal(t, v, rt.Items(v)[1])

	v = readOne(t, rt, "(#1=(a) #1# #2=b #2#)")
	items := rt.ToSlice(v)
	require.Len(t, items, 4)
	assert.Equal(t, items[0], items[1])
	assert.Equal(t, rt.Symbol("b"), items[3])

	serr := readError(t, rt, "#2#")
	assert.Equal(t, "#2#", serr.Msg)
}

func TestReadByteCode(t *testing.T) {
	rt := lisp.StandardRuntime()
	v := readOne(t, rt, `#[257 "\300\207" [x] 2]`)
	require.Equal(t, lisp.TagFunction, v.Tag())
	fn := rt.Fun(v)
	assert.Equal(t, lisp.FuncCompiled, fn.Kind)
	assert.Equal(t, []byte{0o300, 0o207}, fn.Code.Code)
	assert.Equal(t, 2, fn.Code.MaxDepth)

	serr := readError(t, rt, `#[1 2]`)
	assert.Equal(t, "Invalid byte-code object", serr.Msg)
}

func TestReadErrors(t *testing.T) {
	rt := lisp.StandardRuntime()
	tests := []struct {
		src string
		msg string
		eof bool
	}{
		{")", ")", false},
		{"]", "]", false},
		{"(a b", "End of file during parsing", true},
		{`"abc`, "End of file during parsing", true},
		{"'", "End of file during parsing", true},
		{"[1 2", "End of file during parsing", true},
		{"(a . b c)", ". in wrong context", false},
		{"#<buffer>", "#<", false},
		{"#12", "#12", false},
		{"#37r1", "integer, radix 37", false},
		{"#b102", "integer, radix 2", false},
		{"?ab", "?", false},
		{`"\s-a"`, "Invalid modifier in string", false},
		{`?\N{NO SUCH CHARACTER NAME}`, "Invalid character name: NO SUCH CHARACTER NAME", false},
	}
	for i, test := range tests {
		serr := readError(t, rt, test.src)
		assert.Equal(t, test.msg, serr.Msg, "test %d: %s", i, test.src)
		assert.Equal(t, test.eof, serr.EOF, "test %d: %s", i, test.src)
		assert.Equal(t, "test", serr.File)
	}
}

func TestReadErrorPosition(t *testing.T) {
	rt := lisp.StandardRuntime()
	serr := readError(t, rt, "\n  )")
	assert.Equal(t, 2, serr.Line)
	assert.Equal(t, 3, serr.Col)
	assert.Equal(t, "test:2:3: )", serr.Error())
}

func TestReadRecovery(t *testing.T) {
	rt := lisp.StandardRuntime()
	s := NewReader().NewStream(rt, "test", strings.NewReader(") 5 #<x> (a)"))
	_, err := s.Read()
	assert.Error(t, err)
	v, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, lisp.Int(5), v)
	_, err = s.Read()
	assert.Error(t, err)
	// The rest of the bad token is read as a symbol.
	v, err = s.Read()
	require.NoError(t, err)
	assert.Equal(t, "x>", rt.Prin1String(v))
	v, err = s.Read()
	require.NoError(t, err)
	assert.Equal(t, "(a)", rt.Prin1String(v))
	_, err = s.Read()
	assert.Equal(t, io.EOF, err)
}

func TestStreamOffset(t *testing.T) {
	rt := lisp.StandardRuntime()
	tests := []struct {
		src    string
		offset int
	}{
		{"abc def", 3},
		{"(a) b", 3},
		{"  \"é\"  ", 5},
		{"?a)", 2},
		{"'(1 2)", 6},
	}
	for i, test := range tests {
		s := NewReader().NewStream(rt, "test", strings.NewReader(test.src))
		_, err := s.Read()
		require.NoError(t, err, "test %d", i)
		assert.Equal(t, test.offset, s.Offset(), "test %d: %q", i, test.src)
	}
}

func TestReadNesting(t *testing.T) {
	rt := lisp.StandardRuntime()
	src := strings.Repeat("(", maxDepth+1) + strings.Repeat(")", maxDepth+1)
	serr := readError(t, rt, src)
	assert.Equal(t, "Nesting too deep", serr.Msg)
}
