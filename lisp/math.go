// Copyright © 2018 The ELPS authors

package lisp

import (
	"math"
	"math/big"
	"math/bits"
)

var langMathBuiltins = []*langBuiltin{
	{"+", 0, Many, builtinAdd, `Returns the sum of the arguments.`},
	{"-", 0, Many, builtinSub,
		`Negates a single argument, otherwise subtracts the remaining
		arguments from the first.`},
	{"*", 0, Many, builtinMul, `Returns the product of the arguments.`},
	{"/", 1, Many, builtinDiv,
		`Divides the first argument by the rest.  If every argument is an
		integer the result is an integer truncated toward zero.`},
	{"%", 2, 2, builtinRem, `Returns the remainder of integer division, with the sign of the dividend.`},
	{"mod", 2, 2, builtinMod, `Returns X modulo Y, with the sign of the divisor.`},
	{"1+", 1, 1, builtinInc, `Returns the argument plus one.`},
	{"1-", 1, 1, builtinDec, `Returns the argument minus one.`},
	{"=", 1, Many, compareBuiltin(func(n int) bool { return n == 0 }), `Returns t if all arguments are numerically equal.`},
	{"<", 1, Many, compareBuiltin(func(n int) bool { return n < 0 }), `Returns t if the arguments are strictly increasing.`},
	{">", 1, Many, compareBuiltin(func(n int) bool { return n > 0 }), `Returns t if the arguments are strictly decreasing.`},
	{"<=", 1, Many, compareBuiltin(func(n int) bool { return n <= 0 }), `Returns t if the arguments are non-decreasing.`},
	{">=", 1, Many, compareBuiltin(func(n int) bool { return n >= 0 }), `Returns t if the arguments are non-increasing.`},
	{"/=", 2, 2, builtinNotEqual, `Returns t if the two numbers are not equal.`},
	{"max", 1, Many, builtinMax, `Returns the largest argument.  The result is a float if any argument is.`},
	{"min", 1, Many, builtinMin, `Returns the smallest argument.  The result is a float if any argument is.`},
	{"abs", 1, 1, builtinAbs, `Returns the absolute value of the argument.`},
	{"float", 1, 1, builtinFloat, `Returns the argument converted to a float.`},
	{"truncate", 1, 2, roundingBuiltin(math.Trunc, roundTrunc), `Truncates a number toward zero, optionally after dividing by DIVISOR.`},
	{"floor", 1, 2, roundingBuiltin(math.Floor, roundFloor), `Returns the largest integer not greater than the argument.`},
	{"ceiling", 1, 2, roundingBuiltin(math.Ceil, roundCeil), `Returns the smallest integer not less than the argument.`},
	{"round", 1, 2, roundingBuiltin(math.RoundToEven, roundEven), `Rounds to the nearest integer, ties to even.`},
	{"ffloor", 1, 1, floatRounding(math.Floor), `Returns the floor of a float as a float.`},
	{"fceiling", 1, 1, floatRounding(math.Ceil), `Returns the ceiling of a float as a float.`},
	{"ftruncate", 1, 1, floatRounding(math.Trunc), `Truncates a float toward zero, returning a float.`},
	{"fround", 1, 1, floatRounding(math.RoundToEven), `Rounds a float to the nearest integer value, returning a float.`},
	{"sqrt", 1, 1, floatFunc(math.Sqrt), `Returns the square root of the argument.`},
	{"exp", 1, 1, floatFunc(math.Exp), `Returns e raised to the argument.`},
	{"sin", 1, 1, floatFunc(math.Sin), `Returns the sine of the argument.`},
	{"cos", 1, 1, floatFunc(math.Cos), `Returns the cosine of the argument.`},
	{"tan", 1, 1, floatFunc(math.Tan), `Returns the tangent of the argument.`},
	{"asin", 1, 1, floatFunc(math.Asin), `Returns the arc sine of the argument.`},
	{"acos", 1, 1, floatFunc(math.Acos), `Returns the arc cosine of the argument.`},
	{"atan", 1, 2, builtinAtan, `Returns the arc tangent of Y, or of Y/X when X is given.`},
	{"log", 1, 2, builtinLog, `Returns the natural logarithm of the argument, or the logarithm in BASE.`},
	{"expt", 2, 2, builtinExpt, `Returns X raised to the power Y.`},
	{"isnan", 1, 1, builtinIsNaN, `Returns t if the float argument is a NaN.`},
	{"logand", 0, Many, bitwiseBuiltin(-1, func(a, b int64) int64 { return a & b }, (*big.Int).And), `Returns the bitwise and of the arguments.`},
	{"logior", 0, Many, bitwiseBuiltin(0, func(a, b int64) int64 { return a | b }, (*big.Int).Or), `Returns the bitwise or of the arguments.`},
	{"logxor", 0, Many, bitwiseBuiltin(0, func(a, b int64) int64 { return a ^ b }, (*big.Int).Xor), `Returns the bitwise exclusive or of the arguments.`},
	{"lognot", 1, 1, builtinLognot, `Returns the bitwise complement of the argument.`},
	{"ash", 2, 2, builtinAsh, `Shifts VALUE left by COUNT bits, or right when COUNT is negative.`},
	{"logcount", 1, 1, builtinLogcount, `Returns the number of one bits in the argument, or of zero bits if negative.`},
	{"random", 0, 1, builtinRandom, `Returns a pseudo-random integer, below LIMIT when it is a positive integer.`},
}

// Arithmetic operators shared by the evaluator primitives and the VM.
type arithOp int

const (
	opAdd arithOp = iota
	opSub
	opMul
	opDiv
	opRem
	opMod
)

// numberKind orders the numeric tower.
type numberKind int

const (
	kindFixnum numberKind = iota
	kindBig
	kindFloat
)

func (c *Context) checkNumber(v Value) (numberKind, error) {
	switch v.tag {
	case TagInt:
		return kindFixnum, nil
	case TagBigInt:
		return kindBig, nil
	case TagFloat:
		return kindFloat, nil
	}
	return 0, c.WrongType(SymNumberOrMarkerp, v)
}

// sign returns -1, 0 or 1 for a number.  Non-numbers and NaN report 0.
func (rt *Runtime) sign(v Value) int {
	switch v.tag {
	case TagInt:
		switch n := v.Fixnum(); {
		case n < 0:
			return -1
		case n > 0:
			return 1
		}
	case TagBigInt:
		return rt.BigIntVal(v).Sign()
	case TagFloat:
		switch x := v.FloatVal(); {
		case x < 0:
			return -1
		case x > 0:
			return 1
		}
	}
	return 0
}

func (rt *Runtime) toFloat(v Value) float64 {
	switch v.tag {
	case TagInt:
		return float64(v.Fixnum())
	case TagBigInt:
		f, _ := new(big.Float).SetInt(rt.BigIntVal(v)).Float64()
		return f
	}
	return v.FloatVal()
}

func (rt *Runtime) toBig(v Value) *big.Int {
	if v.tag == TagBigInt {
		return rt.BigIntVal(v)
	}
	return big.NewInt(v.Fixnum())
}

// arith applies a binary operator with contagion: any float operand makes
// the result a float, and fixnum overflow promotes to a bignum.
func (c *Context) arith(op arithOp, a, b Value) (Value, error) {
	ka, err := c.checkNumber(a)
	if err != nil {
		return Nil, err
	}
	kb, err := c.checkNumber(b)
	if err != nil {
		return Nil, err
	}
	kind := ka
	if kb > kind {
		kind = kb
	}
	if kind == kindFloat {
		if op == opRem {
			return Nil, c.WrongType(SymIntegerOrMarkerp, floatOperand(a, b))
		}
		return Float(floatOp(op, c.rt.toFloat(a), c.rt.toFloat(b))), nil
	}
	if kind == kindFixnum {
		if v, ok, err := c.fixnumOp(op, a.Fixnum(), b.Fixnum()); ok || err != nil {
			return v, err
		}
	}
	return c.bigOp(op, c.rt.toBig(a), c.rt.toBig(b))
}

func floatOperand(a, b Value) Value {
	if a.tag == TagFloat {
		return a
	}
	return b
}

func floatOp(op arithOp, x, y float64) float64 {
	switch op {
	case opAdd:
		return x + y
	case opSub:
		return x - y
	case opMul:
		return x * y
	case opDiv:
		return x / y
	}
	// opMod
	if y == 0 {
		return math.NaN()
	}
	m := math.Mod(x, y)
	if m != 0 && (m < 0) != (y < 0) {
		m += y
	}
	return m
}

// fixnumOp computes op on two fixnums.  It returns false when the result
// does not fit in a fixnum.
func (c *Context) fixnumOp(op arithOp, x, y int64) (Value, bool, error) {
	switch op {
	case opAdd:
		s := x + y
		if (s > x) == (y > 0) {
			return Int(s), true, nil
		}
	case opSub:
		d := x - y
		if (d < x) == (y > 0) {
			return Int(d), true, nil
		}
	case opMul:
		if x == 0 || y == 0 {
			return Int(0), true, nil
		}
		hi, lo := bits.Mul64(uint64(absInt(x)), uint64(absInt(y)))
		if hi == 0 && lo <= math.MaxInt64 && x != math.MinInt64 && y != math.MinInt64 {
			p := int64(lo)
			if (x < 0) != (y < 0) {
				p = -p
			}
			return Int(p), true, nil
		}
	case opDiv, opRem, opMod:
		if y == 0 {
			return Nil, false, c.Signal(SymArithError)
		}
		if x == math.MinInt64 && y == -1 {
			if op == opDiv {
				return Nil, false, nil
			}
			return Int(0), true, nil
		}
		switch op {
		case opDiv:
			return Int(x / y), true, nil
		case opRem:
			return Int(x % y), true, nil
		}
		m := x % y
		if m != 0 && (m < 0) != (y < 0) {
			m += y
		}
		return Int(m), true, nil
	}
	return Nil, false, nil
}

func absInt(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

func (c *Context) bigOp(op arithOp, x, y *big.Int) (Value, error) {
	z := new(big.Int)
	switch op {
	case opAdd:
		z.Add(x, y)
	case opSub:
		z.Sub(x, y)
	case opMul:
		z.Mul(x, y)
	default:
		if y.Sign() == 0 {
			return Nil, c.Signal(SymArithError)
		}
		switch op {
		case opDiv:
			z.Quo(x, y)
		case opRem:
			z.Rem(x, y)
		case opMod:
			z.Rem(x, y)
			if z.Sign() != 0 && (z.Sign() < 0) != (y.Sign() < 0) {
				z.Add(z, y)
			}
		}
	}
	if z.BitLen() > MaxIntegerBits {
		return Nil, c.Signal(SymOverflowError)
	}
	return c.rt.BigInt(z), nil
}

// MaxIntegerBits bounds the size of integers, like integer-width.
const MaxIntegerBits = 1 << 16

func (c *Context) fold(op arithOp, init Value, args []Value) (Value, error) {
	acc := init
	for _, x := range args {
		var err error
		if acc, err = c.arith(op, acc, x); err != nil {
			return Nil, err
		}
	}
	return acc, nil
}

// Add implements +.
func (c *Context) Add(args ...Value) (Value, error) {
	if len(args) == 1 {
		_, err := c.checkNumber(args[0])
		return args[0], err
	}
	return c.fold(opAdd, Int(0), args)
}

func builtinAdd(c *Context, args []Value) (Value, error) {
	return c.Add(args...)
}

// Sub implements -.
func (c *Context) Sub(args ...Value) (Value, error) {
	switch len(args) {
	case 0:
		return Int(0), nil
	case 1:
		return c.Negate(args[0])
	}
	if _, err := c.checkNumber(args[0]); err != nil {
		return Nil, err
	}
	return c.fold(opSub, args[0], args[1:])
}

// Negate returns the arithmetic negation of v.
func (c *Context) Negate(v Value) (Value, error) {
	if v.tag == TagFloat {
		return Float(-v.FloatVal()), nil
	}
	return c.arith(opSub, Int(0), v)
}

func builtinSub(c *Context, args []Value) (Value, error) {
	return c.Sub(args...)
}

// Mul implements *.
func (c *Context) Mul(args ...Value) (Value, error) {
	if len(args) == 1 {
		_, err := c.checkNumber(args[0])
		return args[0], err
	}
	return c.fold(opMul, Int(1), args)
}

func builtinMul(c *Context, args []Value) (Value, error) {
	return c.Mul(args...)
}

// Div implements /.  If any argument is a float every division is done in
// floating point.
func (c *Context) Div(args ...Value) (Value, error) {
	anyFloat := false
	for _, x := range args {
		k, err := c.checkNumber(x)
		if err != nil {
			return Nil, err
		}
		anyFloat = anyFloat || k == kindFloat
	}
	if len(args) == 1 {
		args = []Value{Int(1), args[0]}
	}
	acc := args[0]
	if anyFloat {
		acc = Float(c.rt.toFloat(acc))
	}
	return c.fold(opDiv, acc, args[1:])
}

func builtinDiv(c *Context, args []Value) (Value, error) {
	return c.Div(args...)
}

func builtinRem(c *Context, args []Value) (Value, error) {
	for _, x := range args {
		if !x.IsInteger() {
			return Nil, c.WrongType(SymIntegerOrMarkerp, x)
		}
	}
	return c.arith(opRem, args[0], args[1])
}

func builtinMod(c *Context, args []Value) (Value, error) {
	return c.arith(opMod, args[0], args[1])
}

func builtinInc(c *Context, args []Value) (Value, error) {
	return c.arith(opAdd, args[0], Int(1))
}

func builtinDec(c *Context, args []Value) (Value, error) {
	return c.arith(opSub, args[0], Int(1))
}

// compare returns the ordering of two numbers.  Comparisons involving NaN
// report 2, which satisfies no ordering test but /=.
func (c *Context) compare(a, b Value) (int, error) {
	ka, err := c.checkNumber(a)
	if err != nil {
		return 0, err
	}
	kb, err := c.checkNumber(b)
	if err != nil {
		return 0, err
	}
	switch {
	case ka == kindFixnum && kb == kindFixnum:
		x, y := a.Fixnum(), b.Fixnum()
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case ka != kindFloat && kb != kindFloat:
		return c.rt.toBig(a).Cmp(c.rt.toBig(b)), nil
	}
	x, y := c.rt.toFloat(a), c.rt.toFloat(b)
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return 2, nil
	case ka != kindFloat && !math.IsInf(y, 0):
		// Compare exactly so large integers are not rounded.
		return c.rt.toBig(a).Cmp(floatToBig(y, math.Floor)) + fracAdjust(y), nil
	case kb != kindFloat && !math.IsInf(x, 0):
		return -(c.rt.toBig(b).Cmp(floatToBig(x, math.Floor)) + fracAdjust(x)), nil
	case x < y:
		return -1, nil
	case x > y:
		return 1, nil
	}
	return 0, nil
}

// fracAdjust corrects an integer/floor(f) comparison when f has a
// fractional part: an integer equal to floor(f) is less than f.
func fracAdjust(f float64) int {
	if f != math.Floor(f) {
		return -1
	}
	return 0
}

func floatToBig(x float64, round func(float64) float64) *big.Int {
	z, _ := big.NewFloat(round(x)).Int(nil)
	return z
}

func compareBuiltin(test func(int) bool) NativeFunc {
	return func(c *Context, args []Value) (Value, error) {
		result := true
		for i := 0; i+1 < len(args); i++ {
			n, err := c.compare(args[i], args[i+1])
			if err != nil {
				return Nil, err
			}
			if n == 2 || !test(n) {
				result = false
			}
		}
		if len(args) == 1 {
			if _, err := c.checkNumber(args[0]); err != nil {
				return Nil, err
			}
		}
		return Bool(result), nil
	}
}

// NumEqual implements = for two arguments.
func (c *Context) NumEqual(a, b Value) (bool, error) {
	n, err := c.compare(a, b)
	return n == 0, err
}

func builtinNotEqual(c *Context, args []Value) (Value, error) {
	n, err := c.compare(args[0], args[1])
	return Bool(n != 0), err
}

func (c *Context) extremum(args []Value, want int) (Value, error) {
	best := args[0]
	anyFloat := false
	for _, x := range args {
		k, err := c.checkNumber(x)
		if err != nil {
			return Nil, err
		}
		if k == kindFloat {
			anyFloat = true
			if math.IsNaN(x.FloatVal()) {
				return x, nil
			}
		}
	}
	for _, x := range args[1:] {
		n, err := c.compare(x, best)
		if err != nil {
			return Nil, err
		}
		if n == want {
			best = x
		}
	}
	if anyFloat {
		best = Float(c.rt.toFloat(best))
	}
	return best, nil
}

func builtinMax(c *Context, args []Value) (Value, error) {
	return c.extremum(args, 1)
}

func builtinMin(c *Context, args []Value) (Value, error) {
	return c.extremum(args, -1)
}

func builtinAbs(c *Context, args []Value) (Value, error) {
	v := args[0]
	if _, err := c.checkNumber(v); err != nil {
		return Nil, err
	}
	if v.tag == TagFloat {
		return Float(math.Abs(v.FloatVal())), nil
	}
	if c.rt.sign(v) < 0 {
		return c.Negate(v)
	}
	return v, nil
}

func builtinFloat(c *Context, args []Value) (Value, error) {
	if _, err := c.checkNumber(args[0]); err != nil {
		return Nil, err
	}
	return Float(c.rt.toFloat(args[0])), nil
}

type roundMode int

const (
	roundTrunc roundMode = iota
	roundFloor
	roundCeil
	roundEven
)

// divRound divides two integers rounding according to mode.
func divRound(x, y *big.Int, mode roundMode) *big.Int {
	q, r := new(big.Int).QuoRem(x, y, new(big.Int))
	if r.Sign() == 0 {
		return q
	}
	neg := (x.Sign() < 0) != (y.Sign() < 0)
	switch mode {
	case roundFloor:
		if neg {
			q.Sub(q, big.NewInt(1))
		}
	case roundCeil:
		if !neg {
			q.Add(q, big.NewInt(1))
		}
	case roundEven:
		r2 := new(big.Int).Abs(r)
		r2.Lsh(r2, 1)
		cmp := r2.Cmp(new(big.Int).Abs(y))
		if cmp > 0 || (cmp == 0 && q.Bit(0) == 1) {
			if neg {
				q.Sub(q, big.NewInt(1))
			} else {
				q.Add(q, big.NewInt(1))
			}
		}
	}
	return q
}

func roundingBuiltin(round func(float64) float64, mode roundMode) NativeFunc {
	return func(c *Context, args []Value) (Value, error) {
		v := args[0]
		k, err := c.checkNumber(v)
		if err != nil {
			return Nil, err
		}
		if len(args) > 1 && args[1].Truthy() {
			d := args[1]
			kd, err := c.checkNumber(d)
			if err != nil {
				return Nil, err
			}
			if k != kindFloat && kd != kindFloat {
				if c.rt.sign(d) == 0 {
					return Nil, c.Signal(SymArithError)
				}
				return c.rt.BigInt(divRound(c.rt.toBig(v), c.rt.toBig(d), mode)), nil
			}
			y := c.rt.toFloat(d)
			if y == 0 {
				return Nil, c.Signal(SymArithError)
			}
			return c.floatToInteger(round(c.rt.toFloat(v)/y), v)
		}
		if k != kindFloat {
			return v, nil
		}
		return c.floatToInteger(round(v.FloatVal()), v)
	}
}

func (c *Context) floatToInteger(x float64, orig Value) (Value, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Nil, c.Signal(SymOverflowError, orig)
	}
	if x >= math.MinInt64 && x < math.MaxInt64 {
		return Int(int64(x)), nil
	}
	return c.rt.BigInt(floatToBig(x, math.Trunc)), nil
}

func floatRounding(round func(float64) float64) NativeFunc {
	return func(c *Context, args []Value) (Value, error) {
		if args[0].tag != TagFloat {
			return Nil, c.WrongType(SymFloatp, args[0])
		}
		return Float(round(args[0].FloatVal())), nil
	}
}

func floatFunc(fn func(float64) float64) NativeFunc {
	return func(c *Context, args []Value) (Value, error) {
		if _, err := c.checkNumber(args[0]); err != nil {
			return Nil, err
		}
		return Float(fn(c.rt.toFloat(args[0]))), nil
	}
}

func builtinAtan(c *Context, args []Value) (Value, error) {
	if _, err := c.checkNumber(args[0]); err != nil {
		return Nil, err
	}
	y := c.rt.toFloat(args[0])
	if len(args) > 1 && args[1].Truthy() {
		if _, err := c.checkNumber(args[1]); err != nil {
			return Nil, err
		}
		return Float(math.Atan2(y, c.rt.toFloat(args[1]))), nil
	}
	return Float(math.Atan(y)), nil
}

func builtinLog(c *Context, args []Value) (Value, error) {
	if _, err := c.checkNumber(args[0]); err != nil {
		return Nil, err
	}
	x := math.Log(c.rt.toFloat(args[0]))
	if len(args) > 1 && args[1].Truthy() {
		if _, err := c.checkNumber(args[1]); err != nil {
			return Nil, err
		}
		x /= math.Log(c.rt.toFloat(args[1]))
	}
	return Float(x), nil
}

func builtinExpt(c *Context, args []Value) (Value, error) {
	x, y := args[0], args[1]
	kx, err := c.checkNumber(x)
	if err != nil {
		return Nil, err
	}
	ky, err := c.checkNumber(y)
	if err != nil {
		return Nil, err
	}
	if kx == kindFloat || ky == kindFloat || c.rt.sign(y) < 0 {
		return Float(math.Pow(c.rt.toFloat(x), c.rt.toFloat(y))), nil
	}
	base := c.rt.toBig(x)
	if ky == kindBig || int64(base.BitLen())*y.Fixnum() > MaxIntegerBits {
		if base.CmpAbs(big.NewInt(1)) <= 0 {
			if base.Sign() < 0 && c.rt.toBig(y).Bit(0) == 1 {
				return Int(-1), nil
			}
			return Int(int64(base.Sign() * base.Sign())), nil
		}
		return Nil, c.Signal(SymOverflowError)
	}
	return c.rt.BigInt(new(big.Int).Exp(base, big.NewInt(y.Fixnum()), nil)), nil
}

func builtinIsNaN(c *Context, args []Value) (Value, error) {
	if args[0].tag != TagFloat {
		return Nil, c.WrongType(SymFloatp, args[0])
	}
	return Bool(math.IsNaN(args[0].FloatVal())), nil
}

func (c *Context) checkInteger(v Value) error {
	if !v.IsInteger() {
		return c.WrongType(SymIntegerOrMarkerp, v)
	}
	return nil
}

func bitwiseBuiltin(init int64, op func(a, b int64) int64, bigop func(z, x, y *big.Int) *big.Int) NativeFunc {
	return func(c *Context, args []Value) (Value, error) {
		acc := Int(init)
		for _, x := range args {
			if err := c.checkInteger(x); err != nil {
				return Nil, err
			}
			if acc.IsFixnum() && x.IsFixnum() {
				acc = Int(op(acc.Fixnum(), x.Fixnum()))
				continue
			}
			acc = c.rt.BigInt(bigop(new(big.Int), c.rt.toBig(acc), c.rt.toBig(x)))
		}
		return acc, nil
	}
}

func builtinLognot(c *Context, args []Value) (Value, error) {
	if err := c.checkInteger(args[0]); err != nil {
		return Nil, err
	}
	if args[0].IsFixnum() {
		return Int(^args[0].Fixnum()), nil
	}
	return c.rt.BigInt(new(big.Int).Not(c.rt.BigIntVal(args[0]))), nil
}

func builtinAsh(c *Context, args []Value) (Value, error) {
	if err := c.checkInteger(args[0]); err != nil {
		return Nil, err
	}
	n, err := c.checkFixnum(args[1])
	if err != nil {
		return Nil, err
	}
	x := c.rt.toBig(args[0])
	if n >= 0 {
		if int64(x.BitLen())+n > MaxIntegerBits {
			if x.Sign() == 0 {
				return Int(0), nil
			}
			return Nil, c.Signal(SymOverflowError)
		}
		return c.rt.BigInt(new(big.Int).Lsh(x, uint(n))), nil
	}
	if -n > int64(x.BitLen()) {
		if x.Sign() < 0 {
			return Int(-1), nil
		}
		return Int(0), nil
	}
	return c.rt.BigInt(new(big.Int).Rsh(x, uint(-n))), nil
}

func builtinLogcount(c *Context, args []Value) (Value, error) {
	if err := c.checkInteger(args[0]); err != nil {
		return Nil, err
	}
	x := c.rt.toBig(args[0])
	if x.Sign() < 0 {
		x = new(big.Int).Not(x)
	}
	n := 0
	for _, w := range x.Bits() {
		n += bits.OnesCount(uint(w))
	}
	return Int(int64(n)), nil
}

func builtinRandom(c *Context, args []Value) (Value, error) {
	rt := c.rt
	if len(args) > 0 && args[0].IsFixnum() && args[0].Fixnum() > 0 {
		return Int(rt.random.Int63n(args[0].Fixnum())), nil
	}
	if len(args) > 0 && args[0].tag == TagString {
		rt.random.Seed(int64(hashString(rt.StringVal(args[0]))))
	}
	return Int(rt.random.Int63() - rt.random.Int63()), nil
}
