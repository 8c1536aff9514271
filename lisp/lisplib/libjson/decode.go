// Copyright © 2018 The ELPS authors

package libjson

import (
	"bytes"
	"errors"
	"io"
	"math/big"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/luthersystems/elisp/lisp"
)

// Load parses b as a single JSON value.
func Load(c *lisp.Context, b []byte, opts *Options) (lisp.Value, error) {
	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()
	dec := &decoder{c: c, rt: c.Runtime(), opts: opts, d: d, size: len(b)}
	tok, err := d.Token()
	if err != nil {
		return lisp.Nil, dec.syntaxError(err)
	}
	v, err := dec.value(tok)
	if err != nil {
		return lisp.Nil, err
	}
	if _, err := d.Token(); err != io.EOF {
		return lisp.Nil, c.SignalValue(dec.rt.Symbol("json-trailing-content"), lisp.Nil)
	}
	return v, nil
}

type decoder struct {
	c     *lisp.Context
	rt    *lisp.Runtime
	opts  *Options
	d     *json.Decoder
	size  int
	depth int
}

// syntaxError maps a decoder error to json-end-of-file when the input
// stopped early and json-parse-error otherwise.
func (dec *decoder) syntaxError(err error) error {
	rt := dec.rt
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return dec.c.SignalValue(rt.Symbol("json-end-of-file"), lisp.Nil)
	}
	var serr *json.SyntaxError
	if errors.As(err, &serr) {
		if serr.Offset >= int64(dec.size) {
			return dec.c.SignalValue(rt.Symbol("json-end-of-file"), lisp.Nil)
		}
		return dec.c.SignalValue(rt.Symbol("json-parse-error"),
			rt.List(rt.String(serr.Error()), lisp.Int(serr.Offset)))
	}
	return dec.c.SignalValue(rt.Symbol("json-parse-error"), rt.List(rt.String(err.Error())))
}

func (dec *decoder) next() (json.Token, error) {
	tok, err := dec.d.Token()
	if err != nil {
		return nil, dec.syntaxError(err)
	}
	return tok, nil
}

func (dec *decoder) value(tok json.Token) (lisp.Value, error) {
	switch tok := tok.(type) {
	case nil:
		return dec.opts.NullObject, nil
	case bool:
		if tok {
			return lisp.T, nil
		}
		return dec.opts.FalseObject, nil
	case string:
		return dec.rt.String(tok), nil
	case json.Number:
		return dec.number(string(tok))
	case float64:
		return lisp.Float(tok), nil
	case json.Delim:
		if err := dec.enter(); err != nil {
			return lisp.Nil, err
		}
		defer dec.leave()
		switch tok {
		case '[':
			return dec.array()
		case '{':
			return dec.object()
		}
	}
	return lisp.Nil, dec.c.SignalValue(dec.rt.Symbol("json-parse-error"),
		dec.rt.List(dec.rt.String("unexpected token")))
}

func (dec *decoder) enter() error {
	dec.depth++
	if dec.depth > maxDepth {
		return dec.c.SignalValue(dec.rt.Symbol("json-object-too-deep"), lisp.Nil)
	}
	return nil
}

func (dec *decoder) leave() {
	dec.depth--
}

func (dec *decoder) number(s string) (lisp.Value, error) {
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return lisp.Nil, dec.syntaxError(err)
		}
		return lisp.Float(f), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return lisp.Int(n), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.BitLen() > lisp.MaxIntegerBits {
		return lisp.Nil, dec.c.Signal(lisp.SymOverflowError, dec.rt.String(s))
	}
	return dec.rt.BigInt(n), nil
}

// close consumes the delimiter ending the current array or object.
func (dec *decoder) close(delim json.Delim) error {
	tok, err := dec.next()
	if err != nil {
		return err
	}
	if tok != delim {
		return dec.c.SignalValue(dec.rt.Symbol("json-parse-error"),
			dec.rt.List(dec.rt.String("unexpected token")))
	}
	return nil
}

func (dec *decoder) array() (lisp.Value, error) {
	var items []lisp.Value
	for dec.d.More() {
		tok, err := dec.next()
		if err != nil {
			return lisp.Nil, err
		}
		v, err := dec.value(tok)
		if err != nil {
			return lisp.Nil, err
		}
		items = append(items, v)
	}
	if err := dec.close(']'); err != nil {
		return lisp.Nil, err
	}
	if dec.opts.ArrayType == "list" {
		return dec.rt.List(items...), nil
	}
	return dec.rt.Vector(items), nil
}

func (dec *decoder) object() (lisp.Value, error) {
	var keys []string
	var vals []lisp.Value
	for dec.d.More() {
		tok, err := dec.next()
		if err != nil {
			return lisp.Nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return lisp.Nil, dec.c.SignalValue(dec.rt.Symbol("json-parse-error"),
				dec.rt.List(dec.rt.String("object key must be a string")))
		}
		tok, err = dec.next()
		if err != nil {
			return lisp.Nil, err
		}
		v, err := dec.value(tok)
		if err != nil {
			return lisp.Nil, err
		}
		keys = append(keys, key)
		vals = append(vals, v)
	}
	if err := dec.close('}'); err != nil {
		return lisp.Nil, err
	}
	return dec.buildObject(keys, vals)
}

func (dec *decoder) buildObject(keys []string, vals []lisp.Value) (lisp.Value, error) {
	rt := dec.rt
	switch dec.opts.ObjectType {
	case "alist":
		pairs := make([]lisp.Value, len(keys))
		for i := range keys {
			pairs[i] = rt.Cons(rt.Symbol(keys[i]), vals[i])
		}
		return rt.List(pairs...), nil
	case "plist":
		items := make([]lisp.Value, 0, 2*len(keys))
		for i := range keys {
			items = append(items, rt.Symbol(":"+keys[i]), vals[i])
		}
		return rt.List(items...), nil
	}
	table := rt.NewHashTable(rt.Symbol("equal"), len(keys))
	for i := range keys {
		if err := dec.c.Puthash(table, rt.String(keys[i]), vals[i]); err != nil {
			return lisp.Nil, err
		}
	}
	return table, nil
}
