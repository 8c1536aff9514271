// Copyright © 2018 The ELPS authors

package parser

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	parsec "github.com/prataprc/goparsec"

	"github.com/luthersystems/elisp/lisp"
)

// numberSyntax matches a complete numeric literal.  Alternatives are tried
// in order, so the integer form only matches text that is not a float.
var numberSyntax = newNumberParser()

func newNumberParser() parsec.Parser {
	mantissa := `[+-]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)`
	inf := parsec.Token(mantissa+`e\+INF`, "INF")
	nan := parsec.Token(mantissa+`e\+NaN`, "NAN")
	float := parsec.Token(`[+-]?(?:[0-9]*\.[0-9]+(?:[eE][+-]?[0-9]+)?|[0-9]+\.?[0-9]*[eE][+-]?[0-9]+)`, "FLOAT")
	integer := parsec.Token(`[+-]?[0-9]+\.?`, "INT")
	number := parsec.OrdChoice(nil, inf, nan, float, integer)
	return parsec.And(nil, number, parsec.End())
}

// classifyNumber returns the terminal matched by text when the whole of text
// is a number.
func classifyNumber(text string) (*parsec.Terminal, bool) {
	if !strings.ContainsAny(text, "0123456789") {
		return nil, false
	}
	node, _ := numberSyntax(parsec.NewScanner([]byte(text)))
	return firstTerminal(node)
}

// firstTerminal unwraps the node lists built by combinators without a
// callback.
func firstTerminal(node parsec.ParsecNode) (*parsec.Terminal, bool) {
	switch n := node.(type) {
	case *parsec.Terminal:
		return n, true
	case []parsec.ParsecNode:
		if len(n) > 0 {
			return firstTerminal(n[0])
		}
	}
	return nil, false
}

// parseNumber converts text to a number.  The second result is false when
// text is not numeric syntax and should be read as a symbol.
func parseNumber(rt *lisp.Runtime, text string) (lisp.Value, bool, error) {
	term, ok := classifyNumber(text)
	if !ok {
		return lisp.Nil, false, nil
	}
	switch term.Name {
	case "INF":
		if strings.HasPrefix(text, "-") {
			return lisp.Float(math.Inf(-1)), true, nil
		}
		return lisp.Float(math.Inf(1)), true, nil
	case "NAN":
		if strings.HasPrefix(text, "-") {
			return lisp.Float(math.Copysign(math.NaN(), -1)), true, nil
		}
		return lisp.Float(math.NaN()), true, nil
	case "FLOAT":
		// Out of range values read as infinities.
		f, _ := strconv.ParseFloat(text, 64)
		return lisp.Float(f), true, nil
	}
	v, err := parseInteger(rt, strings.TrimSuffix(text, "."), 10)
	return v, true, err
}

// parseInteger reads digits in base, allowing a leading sign.
func parseInteger(rt *lisp.Runtime, digits string, base int) (lisp.Value, error) {
	if n, err := strconv.ParseInt(digits, base, 64); err == nil {
		return lisp.Int(n), nil
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return lisp.Nil, fmt.Errorf("integer, radix %d", base)
	}
	if n.BitLen() > lisp.MaxIntegerBits {
		return lisp.Nil, fmt.Errorf("Integer too large")
	}
	return rt.BigInt(n), nil
}
