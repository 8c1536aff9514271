// Copyright © 2018 The ELPS authors

package token

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScannerEOF(t *testing.T) {
	r := &io.LimitedReader{
		R: byteFiller('x'),
		N: 10,
	}
	s := NewScanner("", r)
	for i := 0; i < 10; i++ {
		err := s.ScanRune()
		if err != nil {
			t.Fatalf("Scan failure: %v", err)
		}
	}
	s.EmitToken(0)

	for i := 0; i < 10; i++ {
		tok := s.EmitToken(0)
		if tok.Text != "" {
			t.Errorf("Bad token text: %q", tok.Text)
		}
		err := s.ScanRune()
		if err != io.EOF {
			t.Fatalf("Not EOF: %q %v", s.Rune(), err)
		}
		if !s.EOF() {
			t.Fatalf("Scanner does not think it is EOF")
		}
		assert.NoError(t, s.Err())
	}
}

func TestScannerAcceptSeq(t *testing.T) {
	r := &io.LimitedReader{
		R: byteFiller('x'),
		N: 10,
	}
	s := NewScanner("", r)
	assert.Equal(t, 10, s.AcceptSeq(func(c rune) bool { return true }))
	s.Ignore()
	if s.Accept(func(c rune) bool { return true }) {
		t.Fatal("not EOF")
	}
	if !s.EOF() {
		t.Fatal("not EOF")
	}
}

func TestScannerAccept(t *testing.T) {
	s := NewScanner("", strings.NewReader("123 abc"))
	assert.Equal(t, 3, s.AcceptSeqDigit())
	assert.False(t, s.AcceptDigit())
	assert.Equal(t, "123", s.EmitToken(0).Text)
	assert.Equal(t, 1, s.AcceptSeqSpace())
	s.Ignore()
	assert.False(t, s.AcceptRune('b'))
	assert.True(t, s.AcceptRune('a'))
	assert.True(t, s.AcceptAny("xyzb"))
	assert.True(t, s.AcceptAny("c"))
	tok := s.EmitToken(0)
	assert.Equal(t, "abc", tok.Text)
	assert.Equal(t, 4, tok.Source.Pos)
	assert.Equal(t, 5, tok.Source.Col)
	assert.True(t, s.EOF())
}

func TestScanner(t *testing.T) {
	r := byteFiller('x')
	s := NewScanner("", r)

	var tokens []*Token
	for _, n := range []int{10, 7, 10} {
		for i := 0; i < n; i++ {
			err := s.ScanRune()
			if err != nil {
				t.Fatalf("Scan failure: %v", err)
			}
		}
		tokens = append(tokens, s.EmitToken(Type(len(tokens))))
	}

	assert.Equal(t, 27, s.Offset())
	assert.Equal(t, "xxxxxxxxxx", tokens[0].Text)
	assert.Equal(t, 0, tokens[0].Source.Pos)
	assert.Equal(t, "xxxxxxx", tokens[1].Text)
	assert.Equal(t, 10, tokens[1].Source.Pos)
	assert.Equal(t, "xxxxxxxxxx", tokens[2].Text)
	assert.Equal(t, 17, tokens[2].Source.Pos)
}

func TestScannerLoc(t *testing.T) {
	r := newSeqFiller([]byte("123456789\n"))
	s := NewScanner("test", r)

	var tokens []*Token
	for _, n := range []int{10, 10, 5, 5} {
		for i := 0; i < n; i++ {
			err := s.ScanRune()
			if err != nil {
				t.Fatalf("Scan failure: %v", err)
			}
		}
		tokens = append(tokens, s.EmitToken(0))
	}

	assert.Equal(t, 30, s.Offset())
	assert.Equal(t, 0, tokens[0].Source.Pos)
	assert.Equal(t, 10, tokens[1].Source.Pos)
	assert.Equal(t, 20, tokens[2].Source.Pos)
	assert.Equal(t, 25, tokens[3].Source.Pos)
	assert.Equal(t, "test:1:1", tokens[0].Source.String())
	assert.Equal(t, "test:2:1", tokens[1].Source.String())
	assert.Equal(t, "test:3:1", tokens[2].Source.String())
	assert.Equal(t, "test:3:6", tokens[3].Source.String())
	assert.Equal(t, "test:3:10", s.Loc().String())
}

func TestScannerMultibyte(t *testing.T) {
	s := NewScanner("", strings.NewReader("héllo wörld"))
	assert.Equal(t, 5, s.AcceptSeq(func(c rune) bool { return c != ' ' }))
	assert.Equal(t, "héllo", s.EmitToken(0).Text)
	assert.Equal(t, 5, s.Offset())
	s.AcceptSpace()
	s.Ignore()
	s.AcceptSeq(func(c rune) bool { return true })
	tok := s.EmitToken(0)
	assert.Equal(t, "wörld", tok.Text)
	assert.Equal(t, 6, tok.Source.Pos)
	assert.Equal(t, 11, s.Offset())
}

func TestScannerInvalidUTF8(t *testing.T) {
	s := NewScanner("", strings.NewReader("a\xffb"))
	require.NoError(t, s.ScanRune())
	_, ok := s.Peek()
	assert.False(t, ok)
	assert.Error(t, s.Err())
	assert.False(t, s.EOF())
	err := s.ScanRune()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid utf-8")
	// The bad byte is dropped and scanning continues.
	require.NoError(t, s.ScanRune())
	assert.Equal(t, 'b', s.Rune())
	assert.True(t, s.EOF())
}

type byteFiller byte

func (r byteFiller) Read(b []byte) (int, error) {
	for i := range b {
		b[i] = byte(r)
	}
	return len(b), nil
}

type seqFiller struct {
	seq []byte
	rem []byte
}

func newSeqFiller(seq []byte) *seqFiller {
	if len(seq) == 0 {
		panic("empty byte sequnce")
	}
	buf := make([]byte, len(seq))
	copy(buf, seq)
	return &seqFiller{
		seq: buf,
	}
}

func (r *seqFiller) Read(b []byte) (int, error) {
	if len(r.rem) == 0 {
		r.rem = r.seq
	}
	n := copy(b, r.rem)
	r.rem = r.rem[n:]
	return n, nil
}

func TestSeqFiller(t *testing.T) {
	r := newSeqFiller([]byte("xxxxxxxxx\n"))
	buf1 := make([]byte, 12)
	_, err := io.ReadFull(r, buf1)
	if err != nil {
		t.Fatal(err)
	}
	buf2 := make([]byte, 12)
	_, err = io.ReadFull(r, buf2)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "xxxxxxxxx\nxxxxxxxxx\nxxxx", string(buf1)+string(buf2))
}
