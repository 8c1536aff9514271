// Copyright © 2018 The ELPS authors

package token

import "fmt"

// Token is a lexical item of Emacs Lisp source.  Text holds the decoded
// contents of strings and symbol names, with escapes already processed.
type Token struct {
	Type Type
	Text string
	// Int holds the value of CHAR tokens, the radix of RADIX_INT tokens
	// and the label number of LABEL_DEF and LABEL_REF tokens.  It is
	// non-zero for ERROR tokens caused by the input ending inside a token.
	Int int64
	// Escaped is true when a symbol name contained a backslash escape.
	// Escaped names never read as numbers.
	Escaped bool
	Source  *Location
}

func (tok *Token) String() string {
	switch tok.Type {
	case CHAR, LABEL_DEF, LABEL_REF:
		return fmt.Sprintf("%v %d", tok.Type, tok.Int)
	case EOF, PAREN_L, PAREN_R, BRACKET_L, BRACKET_R, DOT, QUOTE, BACKQUOTE,
		COMMA, COMMA_AT, FUN_REF, RECORD_L, BYTECODE_L, PROPSTRING_L:
		return tok.Type.String()
	}
	return fmt.Sprintf("%v %q", tok.Type, tok.Text)
}

type Type uint

// Type constants produced by the lexer.
const (
	INVALID Type = iota
	ERROR
	EOF

	// Atoms
	SYMBOL     // a symbol name or a number, told apart by the parser
	UNINTERNED // #:name
	RADIX_INT  // #x1F #o17 #b101 #24r1k
	CHAR       // ?a ?\C-x
	STRING

	// Prefix operators
	QUOTE     // '
	BACKQUOTE // `
	COMMA     // ,
	COMMA_AT  // ,@
	FUN_REF   // #'
	LABEL_DEF // #1=
	LABEL_REF // #1#

	// Delimiters
	PAREN_L
	PAREN_R
	BRACKET_L
	BRACKET_R
	DOT
	RECORD_L     // #s(
	BYTECODE_L   // #[
	PROPSTRING_L // #(

	numTokenTypes
)

func (typ Type) String() string {
	typeStrings := [numTokenTypes]string{
		INVALID:      "invalid",
		ERROR:        "error",
		EOF:          "EOF",
		SYMBOL:       "symbol",
		UNINTERNED:   "#:",
		RADIX_INT:    "radix-int",
		CHAR:         "char",
		STRING:       "string",
		QUOTE:        "'",
		BACKQUOTE:    "`",
		COMMA:        ",",
		COMMA_AT:     ",@",
		FUN_REF:      "#'",
		LABEL_DEF:    "#N=",
		LABEL_REF:    "#N#",
		PAREN_L:      "(",
		PAREN_R:      ")",
		BRACKET_L:    "[",
		BRACKET_R:    "]",
		DOT:          ".",
		RECORD_L:     "#s(",
		BYTECODE_L:   "#[",
		PROPSTRING_L: "#(",
	}
	if typ >= numTokenTypes {
		return typeStrings[INVALID]
	}
	return typeStrings[typ]
}

// Location is a position in a source stream.
type Location struct {
	File string // a name representing the source stream
	Path string // a physical location which may differ from File
	Pos  int    // character offset from the start of the stream
	Line int    // line number (starting at 1 when tracked)
	Col  int    // line column number (starting at 1 when tracked)
}

func (loc *Location) String() string {
	switch {
	case loc.Pos < 0:
		return loc.File
	case loc.Line == 0:
		return fmt.Sprintf("%s[%d]", loc.File, loc.Pos)
	case loc.Col == 0:
		return fmt.Sprintf("%s:%d", loc.File, loc.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", loc.File, loc.Line, loc.Col)
	}
}

// LocationError is an error attributed to a source position.
type LocationError struct {
	Err    error
	Source *Location
}

func (err *LocationError) Error() string {
	return fmt.Sprintf("%s: %s", err.Source, err.Err)
}

func (err *LocationError) Unwrap() error {
	return err.Err
}
