// Copyright © 2018 The ELPS authors

package token

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Scanner facilitates construction of tokens from a character stream
// (io.Reader).  Positions are counted in characters, not bytes.
type Scanner struct {
	file string
	path string

	r       *bufio.Reader
	readErr error
	// runeErr reports an invalid byte which has been dropped from the
	// input.  It is returned once by ScanRune.
	runeErr error

	c      rune // the last scanned rune
	peek   rune
	peeked bool
	offset int // runes scanned so far
	line   int // line of c
	col    int // column of c

	text      []rune // runes scanned since the last EmitToken or Ignore
	startPos  int
	startLine int
	startCol  int
}

// NewScanner initializes and returns a new Scanner.
func NewScanner(file string, r io.Reader) *Scanner {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Scanner{
		file:      file,
		r:         br,
		line:      1,
		startLine: 1,
		startCol:  1,
	}
}

// SetPath associates a physical location (e.g. filesystem path) with s to aid
// in debugging projects which scan many ungrouped files.
func (s *Scanner) SetPath(path string) {
	s.path = path
}

// EmitToken returns a token containing the text scanned since the last call to
// either EmitToken or Ignore.
func (s *Scanner) EmitToken(typ Type) *Token {
	tok := &Token{
		Type:   typ,
		Text:   s.Text(),
		Source: s.LocStart(),
	}
	s.Ignore()
	return tok
}

// Ignore causes the scanner to skip all text scanned since the last call to
// either EmitToken or Ignore.
func (s *Scanner) Ignore() {
	s.text = s.text[:0]
	s.startPos = s.offset
	if s.c == '\n' {
		s.startLine = s.line + 1
		s.startCol = 1
	} else {
		s.startLine = s.line
		s.startCol = s.col + 1
	}
}

// Text returns a string containing text scanned since the last call to either
// EmitToken or Ignore.
func (s *Scanner) Text() string {
	return string(s.text)
}

// Rune returns the current unicode rune that is being scanned.  The rune
// returned by Rune is the last rune in a token returned by EmitToken.
func (s *Scanner) Rune() rune {
	return s.c
}

// Offset returns the number of characters scanned.
func (s *Scanner) Offset() int {
	return s.offset
}

// Peek returns the next rune to be scanned, if there are any.  If an invalid
// utf-8 sequence or EOF prevents futher runes from being scanned Peek returns
// a false second value.  If Peek returns a false value the next call to
// s.ScanRune will return an error that reflects of the cause.
func (s *Scanner) Peek() (rune, bool) {
	if s.peeked {
		return s.peek, true
	}
	if s.readErr != nil || s.runeErr != nil {
		return 0, false
	}
	c, n, err := s.r.ReadRune()
	if err != nil {
		s.readErr = err
		return 0, false
	}
	if c == utf8.RuneError && n == 1 {
		s.runeErr = fmt.Errorf("invalid utf-8 sequence in source text at character %d", s.offset+1)
		return 0, false
	}
	s.peek, s.peeked = c, true
	return c, true
}

// ScanRune attempts to scan a utf-8 rune from the input for inclusion in the
// current token.  If an error prevents a valid unicode rune from being scanned
// then an error will be returned.  At the end of input ScanRune returns
// io.EOF.
func (s *Scanner) ScanRune() error {
	c, ok := s.Peek()
	if !ok {
		if s.runeErr != nil {
			err := s.runeErr
			s.runeErr = nil
			return err
		}
		return s.readErr
	}
	s.peeked = false
	s.scan(c)
	return nil
}

func (s *Scanner) scan(c rune) {
	if s.c == '\n' {
		s.line++
		s.col = 0
	}
	s.c = c
	s.col++
	s.offset++
	s.text = append(s.text, c)
}

// Err returns an error encountered during the last read on the input stream.
// Err returns nil at the end of input and while a peeked rune remains.
func (s *Scanner) Err() error {
	if s.peeked {
		return nil
	}
	if s.runeErr != nil {
		return s.runeErr
	}
	if s.readErr == io.EOF {
		return nil
	}
	return s.readErr
}

// EOF returns true when the input is exhausted.
func (s *Scanner) EOF() bool {
	_, ok := s.Peek()
	return !ok && s.runeErr == nil && s.readErr == io.EOF
}

func (s *Scanner) Accept(fn func(rune) bool) bool {
	peek, ok := s.Peek()
	if !ok || !fn(peek) {
		return false
	}
	return s.ScanRune() == nil
}

func (s *Scanner) AcceptRune(c rune) bool {
	return s.Accept(func(r rune) bool { return r == c })
}

func (s *Scanner) AcceptDigit() bool {
	return s.Accept(func(r rune) bool { return '0' <= r && r <= '9' })
}

func (s *Scanner) AcceptSpace() bool {
	return s.Accept(unicode.IsSpace)
}

func (s *Scanner) AcceptAny(charset string) bool {
	return s.Accept(func(r rune) bool { return strings.ContainsRune(charset, r) })
}

func (s *Scanner) AcceptSeq(fn func(rune) bool) int {
	var n int
	for s.Accept(fn) {
		n++
	}
	return n
}

func (s *Scanner) AcceptSeqDigit() int {
	var n int
	for s.AcceptDigit() {
		n++
	}
	return n
}

func (s *Scanner) AcceptSeqSpace() int {
	var n int
	for s.AcceptSpace() {
		n++
	}
	return n
}

// LocStart returns a Location referencing the beginning of the current token,
// just beyond the end of the previous token.
func (s *Scanner) LocStart() *Location {
	return &Location{
		File: s.file,
		Path: s.path,
		Pos:  s.startPos,
		Line: s.startLine,
		Col:  s.startCol,
	}
}

// Loc returns a Location referencing the current scanner position, the last
// position of the current token.
func (s *Scanner) Loc() *Location {
	return &Location{
		File: s.file,
		Path: s.path,
		Pos:  s.offset,
		Line: s.line,
		Col:  s.col,
	}
}
