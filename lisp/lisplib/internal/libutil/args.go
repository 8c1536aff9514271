// Copyright © 2018 The ELPS authors

package libutil

import (
	"math/big"

	"github.com/luthersystems/elisp/lisp"
)

// OptArg returns args[i], or nil when the argument was omitted.
func OptArg(args []lisp.Value, i int) lisp.Value {
	if i < len(args) {
		return args[i]
	}
	return lisp.Nil
}

// String returns the contents of string v.
func String(c *lisp.Context, v lisp.Value) (string, error) {
	if v.Tag() != lisp.TagString {
		return "", c.WrongType(lisp.SymStringp, v)
	}
	return c.Runtime().StringVal(v), nil
}

// Int returns the value of fixnum v.
func Int(c *lisp.Context, v lisp.Value) (int64, error) {
	if !v.IsFixnum() {
		return 0, c.WrongType(lisp.SymFixnump, v)
	}
	return v.Fixnum(), nil
}

// Float converts the number v to a float64.
func Float(c *lisp.Context, v lisp.Value) (float64, error) {
	switch v.Tag() {
	case lisp.TagInt:
		return float64(v.Fixnum()), nil
	case lisp.TagFloat:
		return v.FloatVal(), nil
	case lisp.TagBigInt:
		f, _ := new(big.Float).SetInt(c.Runtime().BigIntVal(v)).Float64()
		return f, nil
	}
	return 0, c.WrongType(lisp.SymNumberp, v)
}

// BigInt returns the integer v as a big.Int.
func BigInt(c *lisp.Context, v lisp.Value) (*big.Int, error) {
	switch v.Tag() {
	case lisp.TagInt:
		return big.NewInt(v.Fixnum()), nil
	case lisp.TagBigInt:
		return new(big.Int).Set(c.Runtime().BigIntVal(v)), nil
	}
	return nil, c.WrongType(lisp.SymIntegerp, v)
}

// KeywordArgs splits a trailing keyword argument list into a map.  Unknown
// keywords and a missing value signal an error.
func KeywordArgs(c *lisp.Context, args []lisp.Value, known ...string) (map[string]lisp.Value, error) {
	rt := c.Runtime()
	kw := make(map[string]lisp.Value, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key := args[i]
		if !rt.IsKeyword(key) || !contains(known, rt.SymbolName(key)) {
			return nil, c.Errorf("Unknown keyword argument: %s", rt.Prin1String(key))
		}
		if i+1 >= len(args) {
			return nil, c.Errorf("Missing value for keyword argument %s", rt.Prin1String(key))
		}
		kw[rt.SymbolName(key)] = args[i+1]
	}
	return kw, nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
