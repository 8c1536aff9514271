// Copyright © 2018 The ELPS authors

package libjson

import (
	"bytes"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/luthersystems/elisp/lisp"
)

// Dump serializes v as JSON.
func Dump(c *lisp.Context, v lisp.Value, opts *Options) ([]byte, error) {
	enc := &encoder{c: c, rt: c.Runtime(), opts: opts}
	if err := enc.encode(v); err != nil {
		return nil, err
	}
	return enc.buf.Bytes(), nil
}

type encoder struct {
	c     *lisp.Context
	rt    *lisp.Runtime
	opts  *Options
	depth int
	buf   bytes.Buffer
}

func (enc *encoder) badValue(v lisp.Value) error {
	return enc.c.Signal(lisp.SymWrongTypeArgument, enc.rt.Symbol("json-value-p"), v)
}

func (enc *encoder) encode(v lisp.Value) error {
	rt := enc.rt
	switch {
	case v == enc.opts.NullObject:
		enc.buf.WriteString("null")
		return nil
	case v == enc.opts.FalseObject:
		enc.buf.WriteString("false")
		return nil
	case v == lisp.T:
		enc.buf.WriteString("true")
		return nil
	}
	switch v.Tag() {
	case lisp.TagInt, lisp.TagBigInt:
		enc.buf.WriteString(rt.Prin1String(v))
	case lisp.TagFloat:
		f := v.FloatVal()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return enc.badValue(v)
		}
		enc.buf.WriteString(rt.Prin1String(v))
	case lisp.TagString:
		enc.encodeString(rt.StringVal(v))
	case lisp.TagVector:
		return enc.encodeArray(rt.Items(v))
	case lisp.TagHashTable:
		return enc.encodeTable(v)
	case lisp.TagSymbol:
		if v.IsNil() {
			if enc.opts.Legacy {
				enc.buf.WriteString("null")
			} else {
				enc.buf.WriteString("{}")
			}
			return nil
		}
		if !enc.opts.Legacy {
			return enc.badValue(v)
		}
		enc.encodeString(strings.TrimPrefix(rt.SymbolName(v), ":"))
	case lisp.TagCons:
		return enc.encodeList(v)
	default:
		return enc.badValue(v)
	}
	return nil
}

func (enc *encoder) enter() error {
	enc.depth++
	if enc.depth > maxDepth {
		return enc.c.SignalValue(enc.rt.Symbol("json-object-too-deep"), lisp.Nil)
	}
	return nil
}

func (enc *encoder) leave() {
	enc.depth--
}

func (enc *encoder) encodeArray(items []lisp.Value) error {
	if err := enc.enter(); err != nil {
		return err
	}
	defer enc.leave()
	enc.buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			enc.buf.WriteByte(',')
		}
		if err := enc.encode(item); err != nil {
			return err
		}
	}
	enc.buf.WriteByte(']')
	return nil
}

// object writes members of a JSON object, dropping repeated keys.
type object struct {
	enc  *encoder
	seen map[string]bool
}

func (enc *encoder) beginObject() (*object, error) {
	if err := enc.enter(); err != nil {
		return nil, err
	}
	enc.buf.WriteByte('{')
	return &object{enc: enc, seen: make(map[string]bool)}, nil
}

func (obj *object) member(key string, val lisp.Value) error {
	if obj.seen[key] {
		return nil
	}
	if len(obj.seen) > 0 {
		obj.enc.buf.WriteByte(',')
	}
	obj.seen[key] = true
	obj.enc.encodeString(key)
	obj.enc.buf.WriteByte(':')
	return obj.enc.encode(val)
}

func (obj *object) end() {
	obj.enc.buf.WriteByte('}')
	obj.enc.leave()
}

func (enc *encoder) keyName(k lisp.Value, plist bool) (string, error) {
	switch {
	case k.Tag() == lisp.TagString:
		return enc.rt.StringVal(k), nil
	case k.IsSymbol() && !k.IsNil():
		name := enc.rt.SymbolName(k)
		if plist || enc.opts.Legacy {
			name = strings.TrimPrefix(name, ":")
		}
		return name, nil
	}
	return "", enc.c.WrongType(lisp.SymSymbolp, k)
}

func (enc *encoder) encodeTable(v lisp.Value) error {
	obj, err := enc.beginObject()
	if err != nil {
		return err
	}
	err = enc.c.Maphash(v, func(k, val lisp.Value) error {
		key, err := enc.keyName(k, false)
		if err != nil {
			return err
		}
		return obj.member(key, val)
	})
	if err != nil {
		return err
	}
	obj.end()
	return nil
}

func (enc *encoder) encodeList(v lisp.Value) error {
	rt := enc.rt
	if _, ok := rt.ListLength(v); !ok {
		return enc.c.WrongType(lisp.SymListp, v)
	}
	items := rt.ToSlice(v)
	switch {
	case items[0].IsCons():
		return enc.encodeAlist(items)
	case items[0].IsSymbol() && (!enc.opts.Legacy || rt.IsKeyword(items[0])):
		return enc.encodePlist(items)
	case enc.opts.Legacy:
		return enc.encodeArray(items)
	}
	return enc.badValue(v)
}

func (enc *encoder) encodeAlist(items []lisp.Value) error {
	rt := enc.rt
	for _, item := range items {
		if !item.IsCons() {
			if enc.opts.Legacy {
				return enc.encodeArray(items)
			}
			return enc.c.WrongType(lisp.SymConsp, item)
		}
	}
	obj, err := enc.beginObject()
	if err != nil {
		return err
	}
	for _, item := range items {
		key, err := enc.keyName(rt.Car(item), false)
		if err != nil {
			return err
		}
		if err := obj.member(key, rt.Cdr(item)); err != nil {
			return err
		}
	}
	obj.end()
	return nil
}

func (enc *encoder) encodePlist(items []lisp.Value) error {
	if len(items)%2 != 0 {
		return enc.c.WrongType(lisp.SymPlistp, enc.rt.List(items...))
	}
	obj, err := enc.beginObject()
	if err != nil {
		return err
	}
	for i := 0; i < len(items); i += 2 {
		key, err := enc.keyName(items[i], true)
		if err != nil {
			return err
		}
		if err := obj.member(key, items[i+1]); err != nil {
			return err
		}
	}
	obj.end()
	return nil
}

func (enc *encoder) encodeString(s string) {
	const hex = "0123456789abcdef"
	enc.buf.WriteByte('"')
	start := 0
	for i := 0; i < len(s); {
		b := s[i]
		if b >= utf8.RuneSelf || (b >= 0x20 && b != '"' && b != '\\') {
			i++
			continue
		}
		enc.buf.WriteString(s[start:i])
		switch b {
		case '"', '\\':
			enc.buf.WriteByte('\\')
			enc.buf.WriteByte(b)
		case '\b':
			enc.buf.WriteString(`\b`)
		case '\f':
			enc.buf.WriteString(`\f`)
		case '\n':
			enc.buf.WriteString(`\n`)
		case '\r':
			enc.buf.WriteString(`\r`)
		case '\t':
			enc.buf.WriteString(`\t`)
		default:
			enc.buf.WriteString(`\u00`)
			enc.buf.WriteByte(hex[b>>4])
			enc.buf.WriteByte(hex[b&0xF])
		}
		i++
		start = i
	}
	enc.buf.WriteString(s[start:])
	enc.buf.WriteByte('"')
}
