// Copyright © 2018 The ELPS authors

// Package libjson provides JSON serialization and parsing of lisp values.
package libjson

import (
	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/lisplib/internal/libutil"
)

// Feature is the symbol provided by Install.
const Feature = "json"

// maxDepth bounds the nesting of arrays and objects in both directions.
const maxDepth = 10000

// Install defines the json functions in rt and provides the json feature.
func Install(rt *lisp.Runtime) {
	rt.DefineError(rt.Symbol("json-trailing-content"), "trailing content after JSON stream", "json-parse-error")
	rt.DefineError(rt.Symbol("json-object-too-deep"), "object cyclic or Lisp evaluation too deep", "json-error")
	libutil.Install(rt, Builtins())
	rt.Provide(rt.Symbol(Feature))
}

// Builtins returns the json functions.
func Builtins() []*libutil.Builtin {
	return []*libutil.Builtin{
		libutil.FunctionDoc("json-serialize", 1, lisp.Many, builtinSerialize,
			`Return the JSON representation of OBJECT as a string.
			Hash tables, alists and plists become objects.  Vectors become
			arrays.  The keyword arguments :null-object and :false-object
			name the values written as null and false.`),
		libutil.FunctionDoc("json-encode", 1, 1, builtinEncode,
			`Return a JSON representation of OBJECT as a string.
			Unlike json-serialize, nil is written as null, :json-false as
			false and lists that are not maps as arrays.`),
		libutil.FunctionDoc("json-parse-string", 1, lisp.Many, builtinParseString,
			`Parse the JSON STRING into a lisp object.
			The keyword argument :object-type is one of hash-table, alist
			or plist.  :array-type is array or list.  :null-object and
			:false-object give the values used for null and false.`),
	}
}

// Options controls the mapping between JSON and lisp values.
type Options struct {
	// ObjectType is hash-table, alist or plist.
	ObjectType string
	// ArrayType is array or list.
	ArrayType   string
	NullObject  lisp.Value
	FalseObject lisp.Value
	// Legacy selects the json-encode conventions: nil is null and any
	// list that is not a map is an array.
	Legacy bool
}

// DefaultOptions returns the options used when no keyword arguments are
// given.
func DefaultOptions(rt *lisp.Runtime) *Options {
	return &Options{
		ObjectType:  "hash-table",
		ArrayType:   "array",
		NullObject:  rt.Symbol(":null"),
		FalseObject: rt.Symbol(":false"),
	}
}

func parseOptions(c *lisp.Context, args []lisp.Value, decoding bool) (*Options, error) {
	rt := c.Runtime()
	known := []string{":null-object", ":false-object"}
	if decoding {
		known = append(known, ":object-type", ":array-type")
	}
	kw, err := libutil.KeywordArgs(c, args, known...)
	if err != nil {
		return nil, err
	}
	opts := DefaultOptions(rt)
	if v, ok := kw[":null-object"]; ok {
		opts.NullObject = v
	}
	if v, ok := kw[":false-object"]; ok {
		opts.FalseObject = v
	}
	if v, ok := kw[":object-type"]; ok {
		switch {
		case v == rt.Symbol("hash-table"), v == rt.Symbol("alist"), v == rt.Symbol("plist"):
			opts.ObjectType = rt.SymbolName(v)
		default:
			return nil, c.Errorf("One of hash-table, alist or plist expected: %s", rt.Prin1String(v))
		}
	}
	if v, ok := kw[":array-type"]; ok {
		switch {
		case v == rt.Symbol("array"), v == rt.Symbol("list"):
			opts.ArrayType = rt.SymbolName(v)
		default:
			return nil, c.Errorf("One of array or list expected: %s", rt.Prin1String(v))
		}
	}
	return opts, nil
}

func builtinSerialize(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	opts, err := parseOptions(c, args[1:], false)
	if err != nil {
		return lisp.Nil, err
	}
	b, err := Dump(c, args[0], opts)
	if err != nil {
		return lisp.Nil, err
	}
	return c.Runtime().String(string(b)), nil
}

func builtinEncode(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	rt := c.Runtime()
	opts := &Options{
		NullObject:  lisp.Nil,
		FalseObject: rt.Symbol(":json-false"),
		Legacy:      true,
	}
	b, err := Dump(c, args[0], opts)
	if err != nil {
		return lisp.Nil, err
	}
	return rt.String(string(b)), nil
}

func builtinParseString(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	s, err := libutil.String(c, args[0])
	if err != nil {
		return lisp.Nil, err
	}
	opts, err := parseOptions(c, args[1:], true)
	if err != nil {
		return lisp.Nil, err
	}
	return Load(c, []byte(s), opts)
}
