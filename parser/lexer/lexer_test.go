// Copyright © 2018 The ELPS authors

package lexer

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/luthersystems/elisp/parser/token"
)

func TestLexer(t *testing.T) {
	tests := []struct {
		input  string
		tokens []*token.Token
	}{
		{``, []*token.Token{
			testToken(token.EOF, ""),
		}},
		{`abc`, []*token.Token{
			testToken(token.SYMBOL, "abc"),
			testToken(token.EOF, ""),
		}},
		{`=+()[]`, []*token.Token{
			testToken(token.SYMBOL, "=+"),
			testToken(token.PAREN_L, "("),
			testToken(token.PAREN_R, ")"),
			testToken(token.BRACKET_L, "["),
			testToken(token.BRACKET_R, "]"),
			testToken(token.EOF, ""),
		}},
		{"(a . b) ; trailing\n'x `(,y ,@z) #'f", []*token.Token{
			testToken(token.PAREN_L, "("),
			testToken(token.SYMBOL, "a"),
			testToken(token.DOT, "."),
			testToken(token.SYMBOL, "b"),
			testToken(token.PAREN_R, ")"),
			testToken(token.QUOTE, "'"),
			testToken(token.SYMBOL, "x"),
			testToken(token.BACKQUOTE, "`"),
			testToken(token.PAREN_L, "("),
			testToken(token.COMMA, ","),
			testToken(token.SYMBOL, "y"),
			testToken(token.COMMA_AT, ",@"),
			testToken(token.SYMBOL, "z"),
			testToken(token.PAREN_R, ")"),
			testToken(token.FUN_REF, "#'"),
			testToken(token.SYMBOL, "f"),
			testToken(token.EOF, ""),
		}},
		{`10 -5 0.1 1e5 foo? a.b`, []*token.Token{
			testToken(token.SYMBOL, "10"),
			testToken(token.SYMBOL, "-5"),
			testToken(token.SYMBOL, "0.1"),
			testToken(token.SYMBOL, "1e5"),
			testToken(token.SYMBOL, "foo?"),
			testToken(token.SYMBOL, "a.b"),
			testToken(token.EOF, ""),
		}},
		{`"abc" "" "a\"b" "\t\x41\ "`, []*token.Token{
			testToken(token.STRING, "abc"),
			testToken(token.STRING, ""),
			testToken(token.STRING, `a"b`),
			testToken(token.STRING, "\tA"),
			testToken(token.EOF, ""),
		}},
		{`#s(a) #[1] #("x") #:g ##`, []*token.Token{
			testToken(token.RECORD_L, "#s("),
			testToken(token.SYMBOL, "a"),
			testToken(token.PAREN_R, ")"),
			testToken(token.BYTECODE_L, "#["),
			testToken(token.SYMBOL, "1"),
			testToken(token.BRACKET_R, "]"),
			testToken(token.PROPSTRING_L, "#("),
			testToken(token.STRING, "x"),
			testToken(token.PAREN_R, ")"),
			testToken(token.UNINTERNED, "g"),
			escapedToken(""),
			testToken(token.EOF, ""),
		}},
		{`"unterminated`, []*token.Token{
			{Type: token.ERROR, Text: "End of file during parsing", Int: 1},
		}},
		{`#<`, []*token.Token{
			testToken(token.ERROR, "#<"),
		}},
	}
testloop:
	for i, test := range tests {
		lex := New(token.NewScanner("", strings.NewReader(test.input)))
		var tokens []*token.Token
		numToken := 0
		for {
			tok := lex.ReadToken()
			tok.Source = nil
			tokens = append(tokens, tok)
			if tok.Type == token.EOF || tok.Type == token.ERROR {
				break
			}
			numToken++
			if numToken > 100000 {
				t.Errorf("test %d: apparent infinite scanning loop", i)
				for _, tok := range tokens[len(tokens)-10:] {
					t.Log(tok)
				}
				continue testloop
			}
		}
		if !reflect.DeepEqual(tokens, test.tokens) {
			t.Errorf("test %d: unexpected tokens for input", i)
			t.Logf("source:\n\t%s", test.input)
			t.Logf("tokens:")
			for _, tok := range tokens {
				t.Logf("\t%v", tok)
			}
		}
	}
}

func TestLexerNumericTokens(t *testing.T) {
	tests := []struct {
		input string
		typ   token.Type
		text  string
		n     int64
	}{
		{"#x1f", token.RADIX_INT, "1f", 16},
		{"#o-17", token.RADIX_INT, "-17", 8},
		{"#B11", token.RADIX_INT, "11", 2},
		{"#36rZZ", token.RADIX_INT, "ZZ", 36},
		{"#3=", token.LABEL_DEF, "", 3},
		{"#12#", token.LABEL_REF, "", 12},
		{"?x", token.CHAR, "", 'x'},
		{`?\C-x`, token.CHAR, "", 24},
		{`?\A-\H-a`, token.CHAR, "", ModAlt | ModHyper | 'a'},
	}
	for i, test := range tests {
		lex := New(token.NewScanner("", strings.NewReader(test.input)))
		tok := lex.ReadToken()
		assert.Equal(t, test.typ, tok.Type, "test %d: %s", i, test.input)
		assert.Equal(t, test.text, tok.Text, "test %d: %s", i, test.input)
		assert.Equal(t, test.n, tok.Int, "test %d: %s", i, test.input)
		assert.Equal(t, token.EOF, lex.ReadToken().Type, "test %d: %s", i, test.input)
	}
}

func TestLexerLocation(t *testing.T) {
	lex := New(token.NewScanner("file.el", strings.NewReader("(a\n  \"é\" b)")))
	var locs []string
	for {
		tok := lex.ReadToken()
		if tok.Type == token.EOF {
			break
		}
		locs = append(locs, tok.Source.String())
	}
	assert.Equal(t, []string{"file.el:1:1", "file.el:1:2", "file.el:2:3", "file.el:2:7", "file.el:2:8"}, locs)
	assert.Equal(t, 11, lex.Offset())
}

func TestControl(t *testing.T) {
	assert.Equal(t, int64(0), control('@'))
	assert.Equal(t, int64(1), control('a'))
	assert.Equal(t, int64(1), control('A'))
	assert.Equal(t, int64(31), control('_'))
	assert.Equal(t, int64(127), control('?'))
	assert.Equal(t, int64(ModCtrl|'1'), control('1'))
	assert.Equal(t, int64(ModMeta|1), control(ModMeta|'a'))
}

func testToken(typ token.Type, text string) *token.Token {
	return &token.Token{
		Type: typ,
		Text: text,
	}
}

func escapedToken(text string) *token.Token {
	return &token.Token{
		Type:    token.SYMBOL,
		Text:    text,
		Escaped: true,
	}
}
