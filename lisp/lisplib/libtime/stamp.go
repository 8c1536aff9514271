// Copyright © 2018 The ELPS authors

package libtime

import (
	"math"
	"math/big"
	"time"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/lisplib/internal/libutil"
)

var (
	bigBillion  = big.NewInt(1e9)
	bigThousand = big.NewInt(1000)
	big16       = big.NewInt(1 << 16)
)

// Stamp is an instant measured in nanoseconds since the epoch.  Float and
// Integer record the form of the time value it was decoded from.
type Stamp struct {
	NS      *big.Int
	Float   bool
	Integer bool
}

// FromTime returns the Stamp for t.
func FromTime(t time.Time) *Stamp {
	ns := new(big.Int).Mul(big.NewInt(t.Unix()), bigBillion)
	ns.Add(ns, big.NewInt(int64(t.Nanosecond())))
	return &Stamp{NS: ns}
}

// Time converts s to a time.Time in the local zone.
func (s *Stamp) Time() time.Time {
	sec, nsec := s.split()
	return time.Unix(sec, nsec)
}

// split returns whole seconds and the non-negative nanosecond remainder.
func (s *Stamp) split() (int64, int64) {
	sec, nsec := new(big.Int).DivMod(s.NS, bigBillion, new(big.Int))
	return sec.Int64(), nsec.Int64()
}

// Seconds returns s as floating point seconds.
func (s *Stamp) Seconds() float64 {
	f, _ := new(big.Rat).SetFrac(s.NS, bigBillion).Float64()
	return f
}

// List encodes s as (HIGH LOW USEC PSEC).
func (s *Stamp) List(rt *lisp.Runtime) lisp.Value {
	sec, nsec := new(big.Int).DivMod(s.NS, bigBillion, new(big.Int))
	high, low := new(big.Int).DivMod(sec, big16, new(big.Int))
	usec, rem := new(big.Int).DivMod(nsec, bigThousand, new(big.Int))
	psec := rem.Int64() * 1000
	return rt.List(integer(rt, high), lisp.Int(low.Int64()), lisp.Int(usec.Int64()), lisp.Int(psec))
}

// Ticks encodes s as (TICKS . HZ).
func (s *Stamp) Ticks(rt *lisp.Runtime, hz *big.Int) lisp.Value {
	ticks := new(big.Int).Mul(s.NS, hz)
	ticks.Div(ticks, bigBillion)
	return rt.Cons(integer(rt, ticks), integer(rt, hz))
}

// Lisp encodes s in the form matching its inputs.
func (s *Stamp) Lisp(rt *lisp.Runtime) lisp.Value {
	switch {
	case s.Float:
		return lisp.Float(s.Seconds())
	case s.Integer:
		if _, nsec := s.split(); nsec == 0 {
			sec := new(big.Int).Div(s.NS, bigBillion)
			return integer(rt, sec)
		}
	}
	return s.List(rt)
}

func integer(rt *lisp.Runtime, n *big.Int) lisp.Value {
	if n.IsInt64() {
		return lisp.Int(n.Int64())
	}
	return rt.BigInt(n)
}

func invalidTime(c *lisp.Context, v lisp.Value) error {
	return c.Signal(lisp.SymError, c.Runtime().String("Invalid time specification"), v)
}

// Decode converts a lisp time value to a Stamp.  Nil is the current time.
func Decode(c *lisp.Context, v lisp.Value) (*Stamp, error) {
	rt := c.Runtime()
	switch v.Tag() {
	case lisp.TagInt, lisp.TagBigInt:
		n, err := libutil.BigInt(c, v)
		if err != nil {
			return nil, err
		}
		return &Stamp{NS: n.Mul(n, bigBillion), Integer: true}, nil
	case lisp.TagFloat:
		f := v.FloatVal()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, invalidTime(c, v)
		}
		ns, _ := new(big.Float).Mul(big.NewFloat(f), big.NewFloat(1e9)).Int(nil)
		return &Stamp{NS: ns, Float: true}, nil
	case lisp.TagSymbol:
		if v.IsNil() {
			return FromTime(time.Now()), nil
		}
	case lisp.TagCons:
		if cdr := rt.Cdr(v); cdr.IsInteger() {
			return decodeTicks(c, v)
		}
		return decodeList(c, v)
	}
	return nil, invalidTime(c, v)
}

func decodeTicks(c *lisp.Context, v lisp.Value) (*Stamp, error) {
	rt := c.Runtime()
	ticks, err := libutil.BigInt(c, rt.Car(v))
	if err != nil {
		return nil, err
	}
	hz, err := libutil.BigInt(c, rt.Cdr(v))
	if err != nil {
		return nil, err
	}
	if hz.Sign() <= 0 {
		return nil, invalidTime(c, v)
	}
	ns := ticks.Mul(ticks, bigBillion)
	// Euclidean division rounds toward minus infinity for positive hz.
	return &Stamp{NS: ns.Div(ns, hz)}, nil
}

func decodeList(c *lisp.Context, v lisp.Value) (*Stamp, error) {
	rt := c.Runtime()
	n, ok := rt.ListLength(v)
	if !ok || n < 2 || n > 4 {
		return nil, invalidTime(c, v)
	}
	parts := rt.ToSlice(v)
	high, err := libutil.BigInt(c, parts[0])
	if err != nil {
		return nil, err
	}
	var rest [3]int64
	for i, p := range parts[1:] {
		if rest[i], err = libutil.Int(c, p); err != nil {
			return nil, err
		}
	}
	sec := high.Mul(high, big16)
	sec.Add(sec, big.NewInt(rest[0]))
	ns := sec.Mul(sec, bigBillion)
	ns.Add(ns, big.NewInt(rest[1]*1000+rest[2]/1000))
	return &Stamp{NS: ns}, nil
}

// Zone converts a ZONE argument to a location.  Nil is the local zone, t
// and "UTC0" are UTC, an integer is a fixed offset in seconds and a string
// names a location.
func Zone(c *lisp.Context, v lisp.Value) (*time.Location, error) {
	rt := c.Runtime()
	switch {
	case v.IsNil(), v == rt.Symbol("wall"):
		return time.Local, nil
	case v == lisp.T:
		return time.UTC, nil
	case v.IsFixnum():
		return time.FixedZone("", int(v.Fixnum())), nil
	case v.Tag() == lisp.TagString:
		name := rt.StringVal(v)
		if name == "UTC0" || name == "UTC" {
			return time.UTC, nil
		}
		loc, err := time.LoadLocation(name)
		if err != nil {
			return nil, c.Errorf("Invalid time zone specification: %s", name)
		}
		return loc, nil
	case v.IsCons():
		// (OFFSET ABBR)
		off, err := libutil.Int(c, rt.Car(v))
		if err != nil {
			return nil, err
		}
		abbr, err := libutil.String(c, rt.Nth(1, v))
		if err != nil {
			return nil, err
		}
		return time.FixedZone(abbr, int(off)), nil
	}
	return nil, c.Errorf("Invalid time zone specification: %s", rt.Prin1String(v))
}
