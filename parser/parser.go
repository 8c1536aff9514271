// Copyright © 2018 The ELPS authors

package parser

import (
	"fmt"
	"io"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/parser/lexer"
	"github.com/luthersystems/elisp/parser/token"
)

// maxDepth bounds the nesting of a single form.
const maxDepth = 10000

// Reader reads Emacs Lisp source text.
type Reader struct{}

// NewReader returns a new lisp.Reader
func NewReader() lisp.Reader {
	return &Reader{}
}

// NewStream implements lisp.Reader.
func (*Reader) NewStream(rt *lisp.Runtime, name string, r io.Reader) lisp.Stream {
	return &Stream{
		rt:   rt,
		name: name,
		lex:  lexer.New(token.NewScanner(name, r)),
	}
}

// Stream parses forms from a single source.
type Stream struct {
	rt    *lisp.Runtime
	name  string
	lex   *lexer.Lexer
	depth int
	// labels holds the objects defined with #N= in the current form.
	labels map[int64]*label
}

type label struct {
	value lisp.Value
	// placeholder stands in for value while the labelled object is read.
	placeholder lisp.Value
	used        bool
}

var _ lisp.Stream = (*Stream)(nil)

// Offset implements lisp.Stream.
func (s *Stream) Offset() int {
	return s.lex.Offset()
}

// Read implements lisp.Stream.
func (s *Stream) Read() (lisp.Value, error) {
	s.labels = nil
	s.depth = 0
	tok := s.lex.ReadToken()
	if tok.Type == token.EOF {
		return lisp.Nil, io.EOF
	}
	return s.readForm(tok)
}

func (s *Stream) next() (*token.Token, error) {
	tok := s.lex.ReadToken()
	if tok.Type == token.EOF {
		return nil, s.eofError(tok)
	}
	return tok, nil
}

func (s *Stream) readNext() (lisp.Value, error) {
	tok, err := s.next()
	if err != nil {
		return lisp.Nil, err
	}
	return s.readForm(tok)
}

func (s *Stream) readForm(tok *token.Token) (lisp.Value, error) {
	s.depth++
	defer func() { s.depth-- }()
	if s.depth > maxDepth {
		return lisp.Nil, s.errorf(tok, "Nesting too deep")
	}
	rt := s.rt
	switch tok.Type {
	case token.ERROR:
		return lisp.Nil, &lisp.SyntaxError{
			File: s.name,
			Line: tok.Source.Line,
			Col:  tok.Source.Col,
			Msg:  tok.Text,
			EOF:  tok.Int != 0,
		}
	case token.SYMBOL:
		return s.atom(tok)
	case token.UNINTERNED:
		return rt.MakeSymbol(tok.Text), nil
	case token.RADIX_INT:
		v, err := parseInteger(rt, tok.Text, int(tok.Int))
		if err != nil {
			return lisp.Nil, s.errorf(tok, "%v", err)
		}
		return v, nil
	case token.CHAR:
		return lisp.Int(tok.Int), nil
	case token.STRING:
		return rt.String(tok.Text), nil
	case token.QUOTE:
		return s.prefixed("quote")
	case token.FUN_REF:
		return s.prefixed("function")
	case token.BACKQUOTE:
		return s.prefixed("`")
	case token.COMMA:
		return s.prefixed(",")
	case token.COMMA_AT:
		return s.prefixed(",@")
	case token.PAREN_L:
		return s.readList()
	case token.BRACKET_L:
		items, err := s.readSeq(token.BRACKET_R)
		if err != nil {
			return lisp.Nil, err
		}
		return rt.Vector(items), nil
	case token.RECORD_L:
		return s.readRecord(tok)
	case token.BYTECODE_L:
		items, err := s.readSeq(token.BRACKET_R)
		if err != nil {
			return lisp.Nil, err
		}
		v, err := rt.NewByteCode(items)
		if err != nil {
			return lisp.Nil, s.errorf(tok, "Invalid byte-code object")
		}
		return v, nil
	case token.PROPSTRING_L:
		items, err := s.readSeq(token.PAREN_R)
		if err != nil {
			return lisp.Nil, err
		}
		// Text properties are not kept.
		if len(items) == 0 || items[0].Tag() != lisp.TagString {
			return lisp.Nil, s.errorf(tok, "#")
		}
		return items[0], nil
	case token.LABEL_DEF:
		return s.defineLabel(tok)
	case token.LABEL_REF:
		l, ok := s.labels[tok.Int]
		if !ok {
			return lisp.Nil, s.errorf(tok, "#%d#", tok.Int)
		}
		if l.value == l.placeholder {
			l.used = true
		}
		return l.value, nil
	case token.PAREN_R:
		return lisp.Nil, s.errorf(tok, ")")
	case token.BRACKET_R:
		return lisp.Nil, s.errorf(tok, "]")
	case token.DOT:
		return lisp.Nil, s.errorf(tok, ".")
	case token.EOF:
		return lisp.Nil, s.eofError(tok)
	}
	return lisp.Nil, s.errorf(tok, "unexpected token %v", tok)
}

func (s *Stream) atom(tok *token.Token) (lisp.Value, error) {
	if !tok.Escaped {
		v, ok, err := parseNumber(s.rt, tok.Text)
		if err != nil {
			return lisp.Nil, s.errorf(tok, "%v", err)
		}
		if ok {
			return v, nil
		}
	}
	return s.rt.Symbol(tok.Text), nil
}

func (s *Stream) prefixed(name string) (lisp.Value, error) {
	v, err := s.readNext()
	if err != nil {
		return lisp.Nil, err
	}
	return s.rt.List(s.rt.Symbol(name), v), nil
}

func (s *Stream) readList() (lisp.Value, error) {
	var items []lisp.Value
	for {
		tok, err := s.next()
		if err != nil {
			return lisp.Nil, err
		}
		switch tok.Type {
		case token.PAREN_R:
			return s.rt.List(items...), nil
		case token.DOT:
			tail, err := s.readNext()
			if err != nil {
				return lisp.Nil, err
			}
			end, err := s.next()
			if err != nil {
				return lisp.Nil, err
			}
			if end.Type != token.PAREN_R {
				return lisp.Nil, s.errorf(end, ". in wrong context")
			}
			return s.rt.ListStar(tail, items...), nil
		}
		v, err := s.readForm(tok)
		if err != nil {
			return lisp.Nil, err
		}
		items = append(items, v)
	}
}

// readSeq reads forms up to the closing delimiter.
func (s *Stream) readSeq(end token.Type) ([]lisp.Value, error) {
	items := []lisp.Value{}
	for {
		tok, err := s.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == end {
			return items, nil
		}
		v, err := s.readForm(tok)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
}

// readRecord reads #s(TYPE SLOTS...).  The type hash-table denotes a
// printed hash table rather than a record.
func (s *Stream) readRecord(tok *token.Token) (lisp.Value, error) {
	rt := s.rt
	items, err := s.readSeq(token.PAREN_R)
	if err != nil {
		return lisp.Nil, err
	}
	if len(items) == 0 {
		return lisp.Nil, s.errorf(tok, "#s")
	}
	if items[0] != rt.Symbol("hash-table") {
		return rt.Record(items), nil
	}
	test := rt.Symbol("eql")
	var data []lisp.Value
	for i := 1; i+1 < len(items); i += 2 {
		switch items[i] {
		case rt.Symbol("test"):
			test = items[i+1]
		case rt.Symbol("data"):
			data = rt.ToSlice(items[i+1])
		}
	}
	v, err := rt.HashTableFromData(test, data)
	if err != nil {
		return lisp.Nil, s.errorf(tok, "%v", err)
	}
	return v, nil
}

// defineLabel reads the object labelled by #N= and patches references to
// it made with #N# while the object was being read.
func (s *Stream) defineLabel(tok *token.Token) (lisp.Value, error) {
	if s.labels == nil {
		s.labels = make(map[int64]*label)
	}
	placeholder := s.rt.Cons(lisp.Nil, lisp.Nil)
	l := &label{value: placeholder, placeholder: placeholder}
	s.labels[tok.Int] = l
	v, err := s.readNext()
	if err != nil {
		return lisp.Nil, err
	}
	if v == placeholder {
		return lisp.Nil, s.errorf(tok, "#%d=", tok.Int)
	}
	l.value = v
	if l.used {
		s.substitute(v, placeholder, v, make(map[lisp.Value]bool))
	}
	return v, nil
}

// substitute replaces placeholder with v everywhere within obj.
func (s *Stream) substitute(obj, placeholder, v lisp.Value, seen map[lisp.Value]bool) {
	rt := s.rt
	for {
		switch obj.Tag() {
		case lisp.TagCons:
			if seen[obj] {
				return
			}
			seen[obj] = true
			if rt.Car(obj) == placeholder {
				rt.SetCar(obj, v)
			} else {
				s.substitute(rt.Car(obj), placeholder, v, seen)
			}
			if rt.Cdr(obj) == placeholder {
				rt.SetCdr(obj, v)
				return
			}
			obj = rt.Cdr(obj)
			continue
		case lisp.TagVector, lisp.TagRecord:
			if seen[obj] {
				return
			}
			seen[obj] = true
			items := rt.Items(obj)
			for i, x := range items {
				if x == placeholder {
					items[i] = v
				} else {
					s.substitute(x, placeholder, v, seen)
				}
			}
		}
		return
	}
}

func (s *Stream) eofError(tok *token.Token) error {
	return &lisp.SyntaxError{
		File: s.name,
		Line: tok.Source.Line,
		Col:  tok.Source.Col,
		Msg:  "End of file during parsing",
		EOF:  true,
	}
}

func (s *Stream) errorf(tok *token.Token, format string, v ...interface{}) error {
	return &lisp.SyntaxError{
		File: s.name,
		Line: tok.Source.Line,
		Col:  tok.Source.Col,
		Msg:  fmt.Sprintf(format, v...),
	}
}
