// Copyright © 2018 The ELPS authors

package token

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeStringsAreDistinct(t *testing.T) {
	used := make(map[string]Type)
	for typ := Type(0); typ < numTokenTypes; typ++ {
		str := typ.String()
		if !assert.NotEmpty(t, str, "token type %d", typ) {
			continue
		}
		prev, dup := used[str]
		assert.False(t, dup, "%q used by types %d and %d", str, prev, typ)
		used[str] = typ
	}
	assert.Equal(t, "invalid", numTokenTypes.String())
}

func TestTokenString(t *testing.T) {
	for _, test := range []struct {
		tok  Token
		want string
	}{
		{Token{Type: SYMBOL, Text: "car"}, `symbol "car"`},
		{Token{Type: STRING, Text: "a\nb"}, `string "a\nb"`},
		{Token{Type: CHAR, Int: 97}, "char 97"},
		{Token{Type: LABEL_REF, Int: 2}, "#N# 2"},
		{Token{Type: RECORD_L, Text: "#s("}, "#s("},
		{Token{Type: COMMA_AT}, ",@"},
		{Token{Type: RADIX_INT, Text: "1F", Int: 16}, `radix-int "1F"`},
	} {
		assert.Equal(t, test.want, test.tok.String())
	}
}

func TestLocation(t *testing.T) {
	assert.Equal(t, "f.el", (&Location{File: "f.el", Pos: -1}).String())
	assert.Equal(t, "f.el[12]", (&Location{File: "f.el", Pos: 12}).String())
	assert.Equal(t, "f.el:3", (&Location{File: "f.el", Pos: 12, Line: 3}).String())
	assert.Equal(t, "f.el:3:4", (&Location{File: "f.el", Pos: 12, Line: 3, Col: 4}).String())

	cause := errors.New("bad escape")
	err := &LocationError{Err: cause, Source: &Location{File: "f.el", Line: 1, Col: 2}}
	assert.Equal(t, "f.el:1:2: bad escape", err.Error())
	assert.ErrorIs(t, err, cause)
}
