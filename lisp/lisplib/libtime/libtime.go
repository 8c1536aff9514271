// Copyright © 2018 The ELPS authors

// Package libtime implements the time-date functions over Lisp timestamps.
package libtime

import (
	"math/big"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/lisplib/internal/libutil"
)

// Feature is the symbol provided by Install.
const Feature = "time-date"

// Install defines the time functions in rt and provides the time-date
// feature.
func Install(rt *lisp.Runtime) {
	libutil.Install(rt, builtins)
	rt.Provide(rt.Symbol(Feature))
}

var builtins = []*libutil.Builtin{
	libutil.FunctionDoc("current-time", 0, 0, BuiltinCurrentTime,
		`Return the current time as a list (HIGH LOW USEC PSEC).`),
	libutil.FunctionDoc("float-time", 0, 1, BuiltinFloatTime,
		`Return TIME, or the current time, as seconds since the epoch.`),
	libutil.FunctionDoc("time-convert", 1, 2, BuiltinTimeConvert,
		`Convert TIME to the timestamp form FORM.
		FORM is list, integer, t or a positive integer clock frequency.`),
	libutil.FunctionDoc("time-add", 2, 2, BuiltinTimeAdd,
		`Return the sum of two time values A and B.`),
	libutil.FunctionDoc("time-subtract", 2, 2, BuiltinTimeSubtract,
		`Return the difference between time values A and B.`),
	libutil.FunctionDoc("time-less-p", 2, 2, BuiltinTimeLessP,
		`Return non-nil if time value A is less than time value B.`),
	libutil.FunctionDoc("time-equal-p", 2, 2, BuiltinTimeEqualP,
		`Return non-nil if A and B are the same time.`),
	libutil.FunctionDoc("current-time-string", 0, 2, BuiltinCurrentTimeString,
		`Return the current time, or TIME, as a human-readable string in
		ZONE, e.g. "Sun Sep 16 01:03:52 1973".`),
	libutil.FunctionDoc("format-time-string", 1, 3, BuiltinFormatTimeString,
		`Format TIME in ZONE using the strftime directives in FORMAT.
		%N inserts nanoseconds; %3N milliseconds.`),
	libutil.FunctionDoc("decode-time", 0, 2, BuiltinDecodeTime,
		`Decode TIME in ZONE into
		(SEC MINUTE HOUR DAY MONTH YEAR DOW DST UTCOFF).`),
	libutil.FunctionDoc("encode-time", 1, lisp.Many, BuiltinEncodeTime,
		`Convert the decoded time (SEC MINUTE HOUR DAY MONTH YEAR IGNORED
		DST ZONE) to a Lisp timestamp.  The obsolescent calling form
		SEC MINUTE HOUR DAY MONTH YEAR &optional ZONE is also accepted.`),
	libutil.FunctionDoc("sleep-for", 1, 2, BuiltinSleepFor,
		`Pause for SECONDS seconds plus optional MILLISECONDS.`),
}

func BuiltinCurrentTime(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	return FromTime(time.Now()).List(c.Runtime()), nil
}

func BuiltinFloatTime(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	s, err := Decode(c, libutil.OptArg(args, 0))
	if err != nil {
		return lisp.Nil, err
	}
	return lisp.Float(s.Seconds()), nil
}

func BuiltinTimeConvert(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	rt := c.Runtime()
	s, err := Decode(c, args[0])
	if err != nil {
		return lisp.Nil, err
	}
	form := libutil.OptArg(args, 1)
	switch {
	case form == rt.Symbol("list"):
		return s.List(rt), nil
	case form == rt.Symbol("integer"):
		return integer(rt, new(big.Int).Div(s.NS, bigBillion)), nil
	case form.IsNil(), form == lisp.T:
		return s.Ticks(rt, bigBillion), nil
	case form.IsInteger():
		hz, err := libutil.BigInt(c, form)
		if err != nil {
			return lisp.Nil, err
		}
		if hz.Sign() <= 0 {
			return lisp.Nil, c.Signal(lisp.SymArgsOutOfRange, form)
		}
		return s.Ticks(rt, hz), nil
	}
	return lisp.Nil, c.Errorf("Invalid time form: %s", rt.Prin1String(form))
}

func combine(c *lisp.Context, args []lisp.Value, op func(z, x, y *big.Int) *big.Int) (lisp.Value, error) {
	a, err := Decode(c, args[0])
	if err != nil {
		return lisp.Nil, err
	}
	b, err := Decode(c, args[1])
	if err != nil {
		return lisp.Nil, err
	}
	sum := &Stamp{
		NS:      op(new(big.Int), a.NS, b.NS),
		Float:   a.Float || b.Float,
		Integer: a.Integer && b.Integer,
	}
	return sum.Lisp(c.Runtime()), nil
}

func BuiltinTimeAdd(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	return combine(c, args, (*big.Int).Add)
}

func BuiltinTimeSubtract(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	return combine(c, args, (*big.Int).Sub)
}

func compare(c *lisp.Context, args []lisp.Value) (int, error) {
	a, err := Decode(c, args[0])
	if err != nil {
		return 0, err
	}
	b, err := Decode(c, args[1])
	if err != nil {
		return 0, err
	}
	return a.NS.Cmp(b.NS), nil
}

func BuiltinTimeLessP(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	cmp, err := compare(c, args)
	if err != nil {
		return lisp.Nil, err
	}
	return lisp.Bool(cmp < 0), nil
}

func BuiltinTimeEqualP(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	cmp, err := compare(c, args)
	if err != nil {
		return lisp.Nil, err
	}
	return lisp.Bool(cmp == 0), nil
}

// zoned decodes the TIME and ZONE arguments starting at args[i].
func zoned(c *lisp.Context, args []lisp.Value, i int) (time.Time, error) {
	s, err := Decode(c, libutil.OptArg(args, i))
	if err != nil {
		return time.Time{}, err
	}
	loc, err := Zone(c, libutil.OptArg(args, i+1))
	if err != nil {
		return time.Time{}, err
	}
	return s.Time().In(loc), nil
}

func BuiltinCurrentTimeString(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	t, err := zoned(c, args, 0)
	if err != nil {
		return lisp.Nil, err
	}
	return c.Runtime().String(t.Format("Mon Jan _2 15:04:05 2006")), nil
}

func BuiltinFormatTimeString(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	format, err := libutil.String(c, args[0])
	if err != nil {
		return lisp.Nil, err
	}
	t, err := zoned(c, args, 1)
	if err != nil {
		return lisp.Nil, err
	}
	return c.Runtime().String(FormatTime(format, t)), nil
}

// FormatTime formats t with strftime directives.  The %N directive, with an
// optional digit count, writes fractional seconds.
func FormatTime(format string, t time.Time) string {
	if !strings.Contains(format, "N") {
		return strftime.Format(format, t)
	}
	var b strings.Builder
	start := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			continue
		}
		j := i + 1
		if format[j] == '%' {
			i = j
			continue
		}
		digits := 9
		if format[j] >= '1' && format[j] <= '9' && j+1 < len(format) {
			digits = int(format[j] - '0')
			j++
		}
		if format[j] != 'N' {
			continue
		}
		b.WriteString(strftime.Format(format[start:i], t))
		frac := []byte("000000000")
		ns := t.Nanosecond()
		for k := 8; k >= 0; k-- {
			frac[k] = byte('0' + ns%10)
			ns /= 10
		}
		b.Write(frac[:digits])
		i = j
		start = j + 1
	}
	b.WriteString(strftime.Format(format[start:], t))
	return b.String()
}

func BuiltinDecodeTime(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	t, err := zoned(c, args, 0)
	if err != nil {
		return lisp.Nil, err
	}
	_, offset := t.Zone()
	return c.Runtime().List(
		lisp.Int(int64(t.Second())),
		lisp.Int(int64(t.Minute())),
		lisp.Int(int64(t.Hour())),
		lisp.Int(int64(t.Day())),
		lisp.Int(int64(t.Month())),
		lisp.Int(int64(t.Year())),
		lisp.Int(int64(t.Weekday())),
		lisp.Bool(t.IsDST()),
		lisp.Int(int64(offset)),
	), nil
}

func BuiltinEncodeTime(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	rt := c.Runtime()
	var fields []lisp.Value
	var zone lisp.Value
	if len(args) == 1 {
		n, ok := rt.ListLength(args[0])
		if !ok || n < 6 {
			return lisp.Nil, c.WrongType(lisp.SymConsp, args[0])
		}
		fields = rt.ToSlice(args[0])
		if n >= 9 {
			zone = fields[8]
		}
	} else {
		if len(args) < 6 {
			return lisp.Nil, c.Signal(lisp.SymWrongNumberOfArguments, rt.Symbol("encode-time"), lisp.Int(int64(len(args))))
		}
		fields = args
		if len(args) > 6 {
			zone = args[len(args)-1]
		}
	}
	var parts [6]int64
	frac := &Stamp{NS: new(big.Int)}
	for i := range parts {
		if i == 0 && !fields[0].IsFixnum() {
			// Seconds may carry a fraction.
			s, err := Decode(c, fields[0])
			if err != nil {
				return lisp.Nil, err
			}
			frac = s
			continue
		}
		n, err := libutil.Int(c, fields[i])
		if err != nil {
			return lisp.Nil, err
		}
		parts[i] = n
	}
	loc, err := Zone(c, zone)
	if err != nil {
		return lisp.Nil, err
	}
	t := time.Date(int(parts[5]), time.Month(parts[4]), int(parts[3]),
		int(parts[2]), int(parts[1]), int(parts[0]), 0, loc)
	s := FromTime(t)
	s.NS.Add(s.NS, frac.NS)
	return s.List(rt), nil
}

func BuiltinSleepFor(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	secs, err := libutil.Float(c, args[0])
	if err != nil {
		return lisp.Nil, err
	}
	ms := libutil.OptArg(args, 1)
	if !ms.IsNil() {
		n, err := libutil.Float(c, ms)
		if err != nil {
			return lisp.Nil, err
		}
		secs += n / 1000
	}
	if secs <= 0 {
		return lisp.Nil, nil
	}
	timer := time.NewTimer(time.Duration(secs * float64(time.Second)))
	defer timer.Stop()
	ctx := c.Context()
	select {
	case <-timer.C:
		return lisp.Nil, nil
	case <-ctx.Done():
		return lisp.Nil, c.Signal(lisp.SymDeadlineExceeded, c.Runtime().String(ctx.Err().Error()))
	}
}
