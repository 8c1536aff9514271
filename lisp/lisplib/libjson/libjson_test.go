// Copyright © 2018 The ELPS authors

package libjson_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/lisplib/libjson"
	"github.com/luthersystems/elisp/parser"
)

func newContext(t *testing.T) *lisp.Context {
	t.Helper()
	c, err := lisp.New(lisp.WithReader(parser.NewReader()))
	require.NoError(t, err)
	libjson.Install(c.Runtime())
	t.Cleanup(c.Close)
	return c
}

func evalString(t *testing.T, c *lisp.Context, src string) string {
	t.Helper()
	v, err := c.EvalString(src)
	require.NoError(t, err, "source: %s", src)
	return c.Runtime().Prin1String(v)
}

func evalError(t *testing.T, c *lisp.Context, src string) *lisp.Signal {
	t.Helper()
	_, err := c.EvalString(src)
	require.Error(t, err, "source: %s", src)
	sig, ok := err.(*lisp.Signal)
	require.True(t, ok, "unexpected error type %T: %v", err, err)
	return sig
}

func TestSerialize(t *testing.T) {
	c := newContext(t)
	tests := []struct {
		src  string
		json string
	}{
		{`(json-serialize 1)`, `1`},
		{`(json-serialize 1.5)`, `1.5`},
		{`(json-serialize 100000000000000000000)`, `100000000000000000000`},
		{`(json-serialize "a\"b\n\t\1")`, `"a\"b\n\t\u0001"`},
		{`(json-serialize "é")`, `"é"`},
		{`(json-serialize t)`, `true`},
		{`(json-serialize :null)`, `null`},
		{`(json-serialize :false)`, `false`},
		{`(json-serialize nil)`, `{}`},
		{`(json-serialize [])`, `[]`},
		{`(json-serialize [1 "a" [t]])`, `[1,"a",[true]]`},
		{`(json-serialize '((a . 1) (b . [2])))`, `{"a":1,"b":[2]}`},
		{`(json-serialize '((a . 1) (a . 2)))`, `{"a":1}`},
		{`(json-serialize '(:a 1 :b (:c 2)))`, `{"a":1,"b":{"c":2}}`},
		{`(let ((h (make-hash-table :test 'equal)))
		   (puthash "x" 1 h)
		   (puthash "y" :null h)
		   (json-serialize h))`, `{"x":1,"y":null}`},
		{`(json-serialize [nil :false] :null-object nil :false-object nil)`, `[null,null]`},
	}
	for i, test := range tests {
		assert.Equal(t, `"`+escape(test.json)+`"`, evalString(t, c, test.src), "test %d: %s", i, test.src)
	}
}

// escape quotes s the way prin1 writes a string.
func escape(s string) string {
	var out []rune
	for _, r := range s {
		if r == '"' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

func TestSerializeErrors(t *testing.T) {
	c := newContext(t)
	rt := c.Runtime()
	sig := evalError(t, c, `(json-serialize 'foo)`)
	assert.Equal(t, rt.Symbol("wrong-type-argument"), sig.Symbol)
	sig = evalError(t, c, `(json-serialize '(1 2))`)
	assert.Equal(t, rt.Symbol("wrong-type-argument"), sig.Symbol)
	sig = evalError(t, c, `(json-serialize 1.0e+INF)`)
	assert.Equal(t, rt.Symbol("wrong-type-argument"), sig.Symbol)
	sig = evalError(t, c, `(let ((v (make-vector 1 nil))) (aset v 0 v) (json-serialize v))`)
	assert.Equal(t, rt.Symbol("json-object-too-deep"), sig.Symbol)
	evalError(t, c, `(json-serialize 1 :bogus 2)`)
}

func TestEncode(t *testing.T) {
	c := newContext(t)
	assert.Equal(t, `"null"`, evalString(t, c, `(json-encode nil)`))
	assert.Equal(t, `"[1,2,\"a\"]"`, evalString(t, c, `(json-encode '(1 2 "a"))`))
	assert.Equal(t, `"{\"a\":false}"`, evalString(t, c, `(json-encode '(:a :json-false))`))
	assert.Equal(t, `"\"sym\""`, evalString(t, c, `(json-encode 'sym)`))
}

func TestParseString(t *testing.T) {
	c := newContext(t)
	tests := []struct {
		src    string
		result string
	}{
		{`(json-parse-string "1")`, `1`},
		{`(json-parse-string " -2.5e1 ")`, `-25.0`},
		{`(json-parse-string "123456789012345678901234567890")`, `123456789012345678901234567890`},
		{`(json-parse-string "\"a\\u00e9\"")`, `"aé"`},
		{`(json-parse-string "[true, false, null]")`, `[t :false :null]`},
		{`(json-parse-string "[1, [2]]" :array-type 'list)`, `(1 (2))`},
		{`(json-parse-string "{\"b\": 1, \"a\": [2]}" :object-type 'alist)`, `((b . 1) (a . [2]))`},
		{`(json-parse-string "{\"b\": 1, \"a\": 2}" :object-type 'plist)`, `(:b 1 :a 2)`},
		{`(json-parse-string "[null, false]" :null-object nil :false-object 'no)`, `[nil no]`},
		{`(hash-table-keys (json-parse-string "{\"x\": 1, \"y\": 2}"))`, `("x" "y")`},
		{`(gethash "y" (json-parse-string "{\"x\": 1, \"y\": {}}"))`, `#s(hash-table test equal)`},
	}
	for i, test := range tests {
		assert.Equal(t, test.result, evalString(t, c, test.src), "test %d: %s", i, test.src)
	}
}

func TestParseErrors(t *testing.T) {
	c := newContext(t)
	rt := c.Runtime()
	tests := []struct {
		src string
		sym string
	}{
		{`(json-parse-string "")`, "json-end-of-file"},
		{`(json-parse-string "[1, 2")`, "json-end-of-file"},
		{`(json-parse-string "[tru]")`, "json-parse-error"},
		{`(json-parse-string "[1}")`, "json-parse-error"},
		{`(json-parse-string "{1: 2}")`, "json-parse-error"},
		{`(json-parse-string "[1] [2]")`, "json-trailing-content"},
		{`(json-parse-string "1" :object-type 'vector)`, "error"},
		{`(json-parse-string 1)`, "wrong-type-argument"},
	}
	for i, test := range tests {
		sig := evalError(t, c, test.src)
		assert.Equal(t, rt.Symbol(test.sym), sig.Symbol, "test %d: %s", i, test.src)
	}
	// Every parse failure is also a json-error.
	v, err := c.EvalString(`(condition-case nil (json-parse-string "[") (json-error 'caught))`)
	require.NoError(t, err)
	assert.Equal(t, rt.Symbol("caught"), v)
}

func TestRoundTrip(t *testing.T) {
	c := newContext(t)
	src := `{"a":[1,2.5,"x",{"b":null}],"c":true}`
	b, err := libjson.Dump(c, mustLoad(t, c, src), libjson.DefaultOptions(c.Runtime()))
	require.NoError(t, err)
	assert.JSONEq(t, src, string(b))
}

func mustLoad(t *testing.T, c *lisp.Context, src string) lisp.Value {
	t.Helper()
	v, err := libjson.Load(c, []byte(src), libjson.DefaultOptions(c.Runtime()))
	require.NoError(t, err)
	return v
}

func TestFeature(t *testing.T) {
	c := newContext(t)
	assert.True(t, c.Featurep(c.Runtime().Symbol("json")))
}
