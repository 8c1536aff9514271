// Copyright © 2018 The ELPS authors

package lexer

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/runenames"

	"github.com/luthersystems/elisp/parser/token"
)

// Character modifier bits.
const (
	ModAlt   = 1 << 22
	ModSuper = 1 << 23
	ModHyper = 1 << 24
	ModShift = 1 << 25
	ModCtrl  = 1 << 26
	ModMeta  = 1 << 27

	charMask = ModAlt - 1
	maxChar  = 0x3FFFFF
)

// delimiters end a symbol or number.
const delimiters = "()[]\"';`,"

// Lexer splits Emacs Lisp source into tokens.
type Lexer struct {
	scanner *token.Scanner
	buf     strings.Builder
	escaped bool
}

func New(s *token.Scanner) *Lexer {
	return &Lexer{scanner: s}
}

// Offset returns the number of characters consumed.
func (lex *Lexer) Offset() int {
	return lex.scanner.Offset()
}

// ReadToken returns the next token in the input.  Lexical errors are
// returned as ERROR tokens after the offending text has been consumed.
func (lex *Lexer) ReadToken() *token.Token {
	for {
		tok := lex.readToken()
		if tok != nil {
			return tok
		}
	}
}

// readToken returns nil after skipping text which produces no token.
func (lex *Lexer) readToken() *token.Token {
	lex.skipWhitespace()
	c, ok := lex.scanner.Peek()
	if !ok {
		if lex.scanner.EOF() {
			return lex.emit(token.EOF, "")
		}
		// Consume the bad input so the next read can make progress.
		err := lex.scanner.ScanRune()
		return lex.emitError(err, false)
	}
	_ = lex.scanner.ScanRune()
	switch c {
	case '(':
		return lex.charToken(token.PAREN_L)
	case ')':
		return lex.charToken(token.PAREN_R)
	case '[':
		return lex.charToken(token.BRACKET_L)
	case ']':
		return lex.charToken(token.BRACKET_R)
	case '\'':
		return lex.charToken(token.QUOTE)
	case '`':
		return lex.charToken(token.BACKQUOTE)
	case ',':
		if lex.scanner.AcceptRune('@') {
			return lex.charToken(token.COMMA_AT)
		}
		return lex.charToken(token.COMMA)
	case '"':
		return lex.readString()
	case '?':
		return lex.readCharLiteral()
	case '#':
		return lex.readDispatch()
	}
	tok := lex.readSymbol(c)
	if tok.Type == token.SYMBOL && tok.Text == "." && !tok.Escaped {
		tok.Type = token.DOT
	}
	return tok
}

func (lex *Lexer) skipWhitespace() {
	for {
		lex.scanner.AcceptSeqSpace()
		if !lex.scanner.AcceptRune(';') {
			break
		}
		lex.skipLine()
	}
	lex.scanner.Ignore()
}

func (lex *Lexer) skipLine() {
	lex.scanner.AcceptSeq(func(c rune) bool { return c != '\n' })
}

func isDelimiter(c rune) bool {
	return unicode.IsSpace(c) || strings.ContainsRune(delimiters, c)
}

// readSymbol reads a symbol name whose first character, c, has already been
// scanned.
func (lex *Lexer) readSymbol(c rune) *token.Token {
	lex.buf.Reset()
	lex.escaped = false
	if err := lex.symbolRune(c); err != nil {
		return lex.emitError(err, true)
	}
	if err := lex.symbolRest(); err != nil {
		return lex.emitError(err, true)
	}
	tok := lex.emit(token.SYMBOL, lex.buf.String())
	tok.Escaped = lex.escaped
	return tok
}

func (lex *Lexer) symbolRest() error {
	for lex.scanner.Accept(func(c rune) bool { return !isDelimiter(c) }) {
		if err := lex.symbolRune(lex.scanner.Rune()); err != nil {
			return err
		}
	}
	return lex.scanner.Err()
}

func (lex *Lexer) symbolRune(c rune) error {
	if c != '\\' {
		lex.buf.WriteRune(c)
		return nil
	}
	lex.escaped = true
	if err := lex.scanner.ScanRune(); err != nil {
		return err
	}
	lex.buf.WriteRune(lex.scanner.Rune())
	return nil
}

func (lex *Lexer) readString() *token.Token {
	lex.buf.Reset()
	for {
		if err := lex.scanner.ScanRune(); err != nil {
			return lex.emitError(err, true)
		}
		c := lex.scanner.Rune()
		switch c {
		case '"':
			return lex.emit(token.STRING, lex.buf.String())
		case '\\':
			n, skip, err := lex.readEscape(true)
			if err != nil {
				return lex.emitError(err, true)
			}
			if skip {
				continue
			}
			if n&^charMask != 0 || n > unicode.MaxRune {
				return lex.errorf("Invalid modifier in string")
			}
			lex.buf.WriteRune(rune(n))
		default:
			lex.buf.WriteRune(c)
		}
	}
}

func (lex *Lexer) readCharLiteral() *token.Token {
	n, err := lex.charBody(false)
	if err != nil {
		return lex.emitError(err, true)
	}
	if c, ok := lex.scanner.Peek(); ok && !isDelimiter(c) && !strings.ContainsRune("#?.", c) {
		lex.scanner.AcceptSeq(func(c rune) bool { return !isDelimiter(c) })
		return lex.errorf("?")
	}
	tok := lex.emit(token.CHAR, "")
	tok.Int = n
	return tok
}

// charBody reads one possibly escaped character.
func (lex *Lexer) charBody(inString bool) (int64, error) {
	if err := lex.scanner.ScanRune(); err != nil {
		return 0, err
	}
	c := lex.scanner.Rune()
	if c != '\\' {
		return int64(c), nil
	}
	n, _, err := lex.readEscape(inString)
	return n, err
}

// readEscape decodes the escape sequence following a backslash.  Inside
// strings an escaped space or newline is dropped, reported by skip.
func (lex *Lexer) readEscape(inString bool) (n int64, skip bool, err error) {
	if err = lex.scanner.ScanRune(); err != nil {
		return 0, false, err
	}
	c := lex.scanner.Rune()
	switch c {
	case 'a':
		return 7, false, nil
	case 'b':
		return 8, false, nil
	case 't':
		return '\t', false, nil
	case 'n':
		return '\n', false, nil
	case 'v':
		return 11, false, nil
	case 'f':
		return 12, false, nil
	case 'r':
		return '\r', false, nil
	case 'e':
		return 27, false, nil
	case 'd':
		return 127, false, nil
	case ' ', '\n':
		return int64(c), inString, nil
	case 's':
		if !lex.scanner.AcceptRune('-') {
			return ' ', false, nil
		}
		n, err = lex.modifier(ModSuper, inString)
		return n, false, err
	case 'x':
		digits := lex.acceptN(isHexDigit, -1)
		if digits == "" {
			return 0, false, fmt.Errorf("Invalid escape char syntax: \\x not followed by hex digit")
		}
		n, err = lex.charCode(digits, 16)
		return n, false, err
	case 'u', 'U':
		size := 4
		if c == 'U' {
			size = 8
		}
		digits := lex.acceptN(isHexDigit, size)
		if len(digits) != size {
			return 0, false, fmt.Errorf("Non-hex character used for Unicode escape: %c", c)
		}
		n, err = lex.charCode(digits, 16)
		if err == nil && n > unicode.MaxRune {
			err = fmt.Errorf("Non-Unicode character: 0x%x", n)
		}
		return n, false, err
	case '0', '1', '2', '3', '4', '5', '6', '7':
		digits := string(c) + lex.acceptN(isOctalDigit, 2)
		n, err = lex.charCode(digits, 8)
		return n, false, err
	case 'N':
		n, err = lex.namedChar()
		return n, false, err
	case 'C':
		if !lex.scanner.AcceptRune('-') {
			return 'C', false, nil
		}
		fallthrough
	case '^':
		body, err := lex.charBody(inString)
		if err != nil {
			return 0, false, err
		}
		return control(body), false, nil
	case 'M':
		if !lex.scanner.AcceptRune('-') {
			return 'M', false, nil
		}
		if inString {
			body, err := lex.charBody(inString)
			if err == nil && body > 127 {
				err = fmt.Errorf("Invalid modifier in string")
			}
			return body | 0x80, false, err
		}
		n, err = lex.modifier(ModMeta, inString)
		return n, false, err
	case 'S', 'H', 'A':
		if !lex.scanner.AcceptRune('-') {
			return int64(c), false, nil
		}
		mod := map[rune]int64{'S': ModShift, 'H': ModHyper, 'A': ModAlt}[c]
		n, err = lex.modifier(mod, inString)
		return n, false, err
	}
	return int64(c), false, nil
}

// acceptN scans up to max characters matching fn, or any number when max is
// negative, and returns them.
func (lex *Lexer) acceptN(fn func(rune) bool, max int) string {
	var b strings.Builder
	for i := 0; i != max && lex.scanner.Accept(fn); i++ {
		b.WriteRune(lex.scanner.Rune())
	}
	return b.String()
}

func (lex *Lexer) modifier(mod int64, inString bool) (int64, error) {
	if inString {
		return 0, fmt.Errorf("Invalid modifier in string")
	}
	body, err := lex.charBody(inString)
	return body | mod, err
}

func (lex *Lexer) charCode(digits string, base int) (int64, error) {
	n, err := strconv.ParseInt(digits, base, 64)
	if err != nil || n > maxChar {
		return 0, fmt.Errorf("Hex character out of range: \\x%s", digits)
	}
	return n, nil
}

// control applies the control modifier to c.
func control(c int64) int64 {
	base, mods := c&charMask, c&^charMask
	switch {
	case base == '?':
		return 127 | mods
	case base == '@':
		return mods
	case 'a' <= base && base <= 'z':
		return base - 'a' + 1 | mods
	case '@' < base && base <= '_':
		return base - '@' | mods
	}
	return c | ModCtrl
}

// namedChar reads the braced name of a \N escape.
func (lex *Lexer) namedChar() (int64, error) {
	if !lex.scanner.AcceptRune('{') {
		return 0, fmt.Errorf("Expecting character name")
	}
	name := lex.acceptN(func(c rune) bool { return c != '}' && c != '"' }, -1)
	if !lex.scanner.AcceptRune('}') {
		return 0, fmt.Errorf("Character name not terminated: %s", name)
	}
	if strings.HasPrefix(name, "U+") {
		n, err := strconv.ParseInt(name[2:], 16, 32)
		if err != nil || n > unicode.MaxRune {
			return 0, fmt.Errorf("Invalid character name: %s", name)
		}
		return n, nil
	}
	if r, ok := lookupRuneName(name); ok {
		return int64(r), nil
	}
	return 0, fmt.Errorf("Invalid character name: %s", name)
}

var (
	runeNamesOnce sync.Once
	runeNames     map[string]rune
)

// lookupRuneName finds a character by its Unicode name, ignoring case and
// treating runs of spaces as one.
func lookupRuneName(name string) (rune, bool) {
	runeNamesOnce.Do(func() {
		runeNames = make(map[string]rune)
		for r := rune(0); r <= unicode.MaxRune; r++ {
			if n := runenames.Name(r); n != "" && n[0] != '<' {
				runeNames[n] = r
			}
		}
	})
	r, ok := runeNames[strings.ToUpper(strings.Join(strings.Fields(name), " "))]
	return r, ok
}

func (lex *Lexer) readDispatch() *token.Token {
	if err := lex.scanner.ScanRune(); err != nil {
		return lex.emitError(err, true)
	}
	c := lex.scanner.Rune()
	switch c {
	case '\'':
		return lex.charToken(token.FUN_REF)
	case '[':
		return lex.charToken(token.BYTECODE_L)
	case '(':
		return lex.charToken(token.PROPSTRING_L)
	case 's':
		if !lex.scanner.AcceptRune('(') {
			return lex.errorf("#s")
		}
		return lex.charToken(token.RECORD_L)
	case ':':
		lex.buf.Reset()
		lex.escaped = false
		if err := lex.symbolRest(); err != nil {
			return lex.emitError(err, true)
		}
		return lex.emit(token.UNINTERNED, lex.buf.String())
	case '_':
		c, ok := lex.scanner.Peek()
		if !ok || isDelimiter(c) {
			tok := lex.emit(token.SYMBOL, "")
			tok.Escaped = true
			return tok
		}
		_ = lex.scanner.ScanRune()
		return lex.readSymbol(c)
	case '#':
		tok := lex.emit(token.SYMBOL, "")
		tok.Escaped = true
		return tok
	case '!':
		lex.skipLine()
		lex.scanner.Ignore()
		return nil
	case '@':
		return lex.skipBytes()
	case 'x', 'X':
		return lex.readRadix(16)
	case 'o', 'O':
		return lex.readRadix(8)
	case 'b', 'B':
		return lex.readRadix(2)
	case '&':
		lex.scanner.AcceptSeq(func(c rune) bool { return !isDelimiter(c) })
		return lex.errorf("#&")
	}
	if '0' <= c && c <= '9' {
		lex.scanner.AcceptSeqDigit()
		digits := strings.TrimPrefix(lex.scanner.Text(), "#")
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return lex.errorf("#%s", digits)
		}
		switch {
		case lex.scanner.AcceptRune('r'):
			if n < 2 || n > 36 {
				return lex.errorf("integer, radix %d", n)
			}
			return lex.readRadix(int(n))
		case lex.scanner.AcceptRune('='):
			tok := lex.emit(token.LABEL_DEF, "")
			tok.Int = n
			return tok
		case lex.scanner.AcceptRune('#'):
			tok := lex.emit(token.LABEL_REF, "")
			tok.Int = n
			return tok
		}
		return lex.errorf("#%s", digits)
	}
	return lex.errorf("#%c", c)
}

// readRadix reads the digits of an integer written in the given base.
func (lex *Lexer) readRadix(base int) *token.Token {
	lex.buf.Reset()
	lex.escaped = false
	if err := lex.symbolRest(); err != nil {
		return lex.emitError(err, true)
	}
	tok := lex.emit(token.RADIX_INT, lex.buf.String())
	tok.Int = int64(base)
	return tok
}

// skipBytes implements #@COUNT, which skips the COUNT characters following
// the count.  #@00 skips the rest of the input.
func (lex *Lexer) skipBytes() *token.Token {
	lex.scanner.Ignore()
	lex.scanner.AcceptSeqDigit()
	digits := lex.scanner.Text()
	if digits == "00" {
		lex.scanner.AcceptSeq(func(rune) bool { return true })
		lex.scanner.Ignore()
		return nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return lex.errorf("#@%s", digits)
	}
	for i := 0; i < n; i++ {
		if err := lex.scanner.ScanRune(); err != nil {
			return lex.emitError(err, true)
		}
	}
	lex.scanner.Ignore()
	return nil
}

func isHexDigit(c rune) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func isOctalDigit(c rune) bool {
	return '0' <= c && c <= '7'
}

func (lex *Lexer) charToken(typ token.Type) *token.Token {
	return lex.scanner.EmitToken(typ)
}

func (lex *Lexer) emit(typ token.Type, text string) *token.Token {
	tok := lex.scanner.EmitToken(typ)
	tok.Text = text
	return tok
}

// emitError returns an ERROR token for err.  The end of input is reported
// as a premature end when atEOF is true.
func (lex *Lexer) emitError(err error, atEOF bool) *token.Token {
	if errors.Is(err, io.EOF) {
		tok := lex.emit(token.ERROR, "End of file during parsing")
		if atEOF {
			tok.Int = 1
		}
		return tok
	}
	return lex.emit(token.ERROR, err.Error())
}

func (lex *Lexer) errorf(format string, v ...interface{}) *token.Token {
	return lex.emit(token.ERROR, fmt.Sprintf(format, v...))
}
