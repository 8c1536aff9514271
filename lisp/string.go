// Copyright © 2018 The ELPS authors

package lisp

import (
	"encoding/base64"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var langStringBuiltins = []*langBuiltin{
	{"concat", 0, Many, builtinConcat, `Concatenates sequences of characters into a new string.`},
	{"substring", 1, 3, builtinSubstring,
		`Returns the part of STRING from FROM up to TO.  Negative indices
		count from the end.  Vectors are also accepted.`},
	{"string=", 2, 2, builtinStringEqual, `Returns t if two strings have identical contents.  Symbols are replaced by their names.`},
	{"string-equal", 2, 2, builtinStringEqual, `Returns t if two strings have identical contents.  Symbols are replaced by their names.`},
	{"string<", 2, 2, builtinStringLessp, `Returns t if the first string is less than the second in lexicographic order.`},
	{"string-lessp", 2, 2, builtinStringLessp, `Returns t if the first string is less than the second in lexicographic order.`},
	{"string>", 2, 2, builtinStringGreaterp, `Returns t if the first string is greater than the second in lexicographic order.`},
	{"string-greaterp", 2, 2, builtinStringGreaterp, `Returns t if the first string is greater than the second in lexicographic order.`},
	{"string-version-lessp", 2, 2, builtinStringVersionLessp, `Like string-lessp but runs of digits compare as numbers.`},
	{"compare-strings", 6, 7, builtinCompareStrings,
		`Compares the contents of two substrings.  Returns t when they match,
		otherwise a negative or positive number one greater than the number of
		matching leading characters.`},
	{"string-prefix-p", 2, 3, builtinStringPrefixp, `Returns t if PREFIX is a prefix of STRING.`},
	{"string-suffix-p", 2, 3, builtinStringSuffixp, `Returns t if SUFFIX is a suffix of STRING.`},
	{"string-search", 2, 3, builtinStringSearch, `Returns the index of the first occurrence of NEEDLE in HAYSTACK, or nil.`},
	{"string-distance", 2, 3, builtinStringDistance, `Returns the Levenshtein distance between two strings.`},
	{"string-bytes", 1, 1, builtinStringBytes, `Returns the number of bytes in the UTF-8 encoding of STRING.`},
	{"string-width", 1, 3, builtinStringWidth, `Returns the number of columns STRING occupies when displayed.`},
	{"truncate-string-to-width", 2, 5, builtinTruncateStringToWidth, `Truncates STRING so it occupies at most END-COLUMN columns.`},
	{"string-to-multibyte", 1, 1, builtinStringToMultibyte, `Returns STRING.  All strings are multibyte.`},
	{"clear-string", 1, 1, builtinClearString, `Replaces every character of STRING with a zero.`},
	{"upcase", 1, 1, caseBuiltin(unicode.ToUpper, cases.Upper(language.Und)), `Converts a string or character to upper case.`},
	{"downcase", 1, 1, caseBuiltin(unicode.ToLower, cases.Lower(language.Und)), `Converts a string or character to lower case.`},
	{"capitalize", 1, 1, caseBuiltin(unicode.ToTitle, cases.Title(language.Und)), `Capitalizes each word of a string, or converts a character to title case.`},
	{"make-string", 2, 3, builtinMakeString, `Returns a string of LENGTH copies of INIT.`},
	{"string", 0, Many, builtinString, `Returns a string made of the character arguments.`},
	{"char-to-string", 1, 1, builtinCharToString, `Returns a one character string.`},
	{"string-to-char", 1, 1, builtinStringToChar, `Returns the first character of STRING, or zero if it is empty.`},
	{"string-to-list", 1, 1, builtinStringToList, `Returns a list of the characters of STRING.`},
	{"string-to-vector", 1, 1, builtinStringToVector, `Returns a vector of the characters of STRING.`},
	{"char-equal", 2, 2, builtinCharEqual, `Returns t if two characters match, ignoring case when case-fold-search is non-nil.`},
	{"number-to-string", 1, 1, builtinNumberToString, `Returns the printed representation of a number.`},
	{"string-to-number", 1, 2, builtinStringToNumber,
		`Parses the leading number in STRING in BASE, default 10.  Returns 0
		when no number is present.`},
	{"split-string", 1, 4, builtinSplitString,
		`Splits STRING into substrings at matches of SEPARATORS.  With the
		default separators empty substrings are omitted.`},
	{"string-join", 1, 2, builtinStringJoin, `Joins a list of strings with SEPARATOR.`},
	{"string-trim", 1, 3, builtinStringTrim, `Removes leading and trailing whitespace from STRING.`},
	{"string-trim-left", 1, 2, builtinStringTrimLeft, `Removes leading whitespace from STRING.`},
	{"string-trim-right", 1, 2, builtinStringTrimRight, `Removes trailing whitespace from STRING.`},
	{"format", 1, Many, builtinFormat, `Formats a string from a control string and arguments.`},
	{"format-message", 1, Many, builtinFormat, `Formats a string from a control string and arguments.`},
	{"base64-encode-string", 1, 2, builtinBase64Encode, `Returns the base64 encoding of STRING.`},
	{"base64url-encode-string", 1, 2, builtinBase64URLEncode, `Returns the base64url encoding of STRING, omitting padding when NO-PAD.`},
	{"base64-decode-string", 1, 3, builtinBase64Decode, `Decodes a base64 encoded string.`},
}

// stringArg accepts a string or, where the primitive allows it, a symbol.
func (c *Context) stringArg(v Value, symbols bool) (string, error) {
	if symbols && v.IsSymbol() {
		return c.rt.SymbolName(v), nil
	}
	return c.checkString(v)
}

// concatPart returns the characters of a sequence as a string.
func (c *Context) concatPart(v Value) (string, error) {
	if v.tag == TagString {
		return c.rt.StringVal(v), nil
	}
	items, err := c.sequenceSlice(v)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, x := range items {
		if !isChar(x) {
			return "", c.WrongType(SymCharacterp, x)
		}
		b.WriteRune(rune(x.Fixnum()))
	}
	return b.String(), nil
}

// Concat implements concat.
func (c *Context) Concat(args ...Value) (Value, error) {
	var b strings.Builder
	for _, x := range args {
		s, err := c.concatPart(x)
		if err != nil {
			return Nil, err
		}
		b.WriteString(s)
	}
	return c.rt.String(b.String()), nil
}

func builtinConcat(c *Context, args []Value) (Value, error) {
	return c.Concat(args...)
}

// sliceBounds resolves optional, possibly negative, FROM and TO indices
// against length n.
func (c *Context) sliceBounds(seq, fromv, tov Value, n int) (int, int, error) {
	from, to := int64(0), int64(n)
	if fromv.Truthy() {
		var err error
		if from, err = c.checkFixnum(fromv); err != nil {
			return 0, 0, err
		}
	}
	if tov.Truthy() {
		var err error
		if to, err = c.checkFixnum(tov); err != nil {
			return 0, 0, err
		}
	}
	if from < 0 {
		from += int64(n)
	}
	if to < 0 {
		to += int64(n)
	}
	if from < 0 || to > int64(n) || from > to {
		return 0, 0, c.Signal(SymArgsOutOfRange, seq, fromv, tov)
	}
	return int(from), int(to), nil
}

func optArg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Nil
}

// Substring implements substring.
func (c *Context) Substring(seq, from, to Value) (Value, error) {
	switch seq.tag {
	case TagString:
		rs := []rune(c.rt.StringVal(seq))
		i, j, err := c.sliceBounds(seq, from, to, len(rs))
		if err != nil {
			return Nil, err
		}
		return c.rt.String(string(rs[i:j])), nil
	case TagVector:
		items := c.rt.Items(seq)
		i, j, err := c.sliceBounds(seq, from, to, len(items))
		if err != nil {
			return Nil, err
		}
		return c.rt.Vector(append([]Value(nil), items[i:j]...)), nil
	}
	return Nil, c.WrongType(SymArrayp, seq)
}

func builtinSubstring(c *Context, args []Value) (Value, error) {
	return c.Substring(args[0], optArg(args, 1), optArg(args, 2))
}

func (c *Context) stringPair(args []Value) (string, string, error) {
	a, err := c.stringArg(args[0], true)
	if err != nil {
		return "", "", err
	}
	b, err := c.stringArg(args[1], true)
	return a, b, err
}

func builtinStringEqual(c *Context, args []Value) (Value, error) {
	a, b, err := c.stringPair(args)
	return Bool(err == nil && a == b), err
}

// Comparing UTF-8 bytes orders strings by code point.
func builtinStringLessp(c *Context, args []Value) (Value, error) {
	a, b, err := c.stringPair(args)
	return Bool(err == nil && a < b), err
}

func builtinStringGreaterp(c *Context, args []Value) (Value, error) {
	a, b, err := c.stringPair(args)
	return Bool(err == nil && a > b), err
}

func builtinStringVersionLessp(c *Context, args []Value) (Value, error) {
	a, b, err := c.stringPair(args)
	if err != nil {
		return Nil, err
	}
	return Bool(versionLess([]rune(a), []rune(b))), nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func versionLess(a, b []rune) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if isDigit(a[i]) && isDigit(b[j]) {
			si, sj := i, j
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na, _ := new(big.Int).SetString(string(a[si:i]), 10)
			nb, _ := new(big.Int).SetString(string(b[sj:j]), 10)
			if cmp := na.Cmp(nb); cmp != 0 {
				return cmp < 0
			}
			continue
		}
		if a[i] != b[j] {
			return a[i] < b[j]
		}
		i++
		j++
	}
	return len(a)-i < len(b)-j
}

func builtinCompareStrings(c *Context, args []Value) (Value, error) {
	s1, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	s2, err := c.checkString(args[3])
	if err != nil {
		return Nil, err
	}
	r1, r2 := []rune(s1), []rune(s2)
	i1, j1, err := c.sliceBoundsClamped(args[0], args[1], args[2], len(r1))
	if err != nil {
		return Nil, err
	}
	i2, j2, err := c.sliceBoundsClamped(args[3], args[4], args[5], len(r2))
	if err != nil {
		return Nil, err
	}
	fold := optArg(args, 6).Truthy()
	a, b := r1[i1:j1], r2[i2:j2]
	for k := 0; k < len(a) && k < len(b); k++ {
		x, y := a[k], b[k]
		if fold {
			x, y = unicode.ToUpper(x), unicode.ToUpper(y)
		}
		if x < y {
			return Int(int64(-(k + 1))), nil
		}
		if x > y {
			return Int(int64(k + 1)), nil
		}
	}
	switch {
	case len(a) < len(b):
		return Int(int64(-(len(a) + 1))), nil
	case len(a) > len(b):
		return Int(int64(len(b) + 1)), nil
	}
	return T, nil
}

// sliceBoundsClamped is sliceBounds where an END past the string is
// treated as its length.
func (c *Context) sliceBoundsClamped(seq, from, to Value, n int) (int, int, error) {
	if to.IsFixnum() && to.Fixnum() > int64(n) {
		to = Int(int64(n))
	}
	return c.sliceBounds(seq, from, to, n)
}

func builtinStringPrefixp(c *Context, args []Value) (Value, error) {
	prefix, s, err := c.stringPair(args)
	if err != nil {
		return Nil, err
	}
	if optArg(args, 2).Truthy() {
		prefix, s = strings.ToLower(prefix), strings.ToLower(s)
	}
	return Bool(strings.HasPrefix(s, prefix)), nil
}

func builtinStringSuffixp(c *Context, args []Value) (Value, error) {
	suffix, s, err := c.stringPair(args)
	if err != nil {
		return Nil, err
	}
	if optArg(args, 2).Truthy() {
		suffix, s = strings.ToLower(suffix), strings.ToLower(s)
	}
	return Bool(strings.HasSuffix(s, suffix)), nil
}

func builtinStringSearch(c *Context, args []Value) (Value, error) {
	needle, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	haystack, err := c.checkString(args[1])
	if err != nil {
		return Nil, err
	}
	rs := []rune(haystack)
	start := 0
	if v := optArg(args, 2); v.Truthy() {
		n, err := c.checkFixnum(v)
		if err != nil {
			return Nil, err
		}
		if n < 0 || n > int64(len(rs)) {
			return Nil, c.Signal(SymArgsOutOfRange, v)
		}
		start = int(n)
	}
	idx := strings.Index(string(rs[start:]), needle)
	if idx < 0 {
		return Nil, nil
	}
	return Int(int64(start + utf8.RuneCountInString(string(rs[start:])[:idx]))), nil
}

func builtinStringDistance(c *Context, args []Value) (Value, error) {
	a, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	b, err := c.checkString(args[1])
	if err != nil {
		return Nil, err
	}
	if optArg(args, 2).Truthy() {
		return Int(int64(levenshtein([]byte(a), []byte(b)))), nil
	}
	return Int(int64(levenshtein([]rune(a), []rune(b)))), nil
}

func levenshtein[T comparable](a, b []T) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func builtinStringBytes(c *Context, args []Value) (Value, error) {
	s, err := c.checkString(args[0])
	return Int(int64(len(s))), err
}

func builtinStringWidth(c *Context, args []Value) (Value, error) {
	if _, err := c.checkString(args[0]); err != nil {
		return Nil, err
	}
	sub, err := c.Substring(args[0], optArg(args, 1), optArg(args, 2))
	if err != nil {
		return Nil, err
	}
	return Int(int64(runewidth.StringWidth(c.rt.StringVal(sub)))), nil
}

func builtinTruncateStringToWidth(c *Context, args []Value) (Value, error) {
	s, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	width, err := c.checkNatnum(args[1])
	if err != nil {
		return Nil, err
	}
	tail := ""
	if v := optArg(args, 4); v.Truthy() {
		if tail, err = c.checkString(v); err != nil {
			return Nil, err
		}
	}
	out := runewidth.Truncate(s, int(width), tail)
	if pad := optArg(args, 3); isChar(pad) {
		if n := int(width) - runewidth.StringWidth(out); n > 0 {
			out += strings.Repeat(string(rune(pad.Fixnum())), n)
		}
	}
	return c.rt.String(out), nil
}

func builtinStringToMultibyte(c *Context, args []Value) (Value, error) {
	_, err := c.checkString(args[0])
	return args[0], err
}

func builtinClearString(c *Context, args []Value) (Value, error) {
	s, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	c.rt.setString(args[0], strings.Repeat("\x00", utf8.RuneCountInString(s)))
	return Nil, nil
}

func caseBuiltin(char func(rune) rune, caser cases.Caser) NativeFunc {
	return func(c *Context, args []Value) (Value, error) {
		v := args[0]
		if isChar(v) {
			return Int(int64(char(rune(v.Fixnum())))), nil
		}
		s, err := c.checkString(v)
		if err != nil {
			return Nil, c.WrongType(SymCharOrStringp, v)
		}
		return c.rt.String(caser.String(s)), nil
	}
}

func (c *Context) checkChar(v Value) (rune, error) {
	if !isChar(v) {
		return 0, c.WrongType(SymCharacterp, v)
	}
	return rune(v.Fixnum()), nil
}

func builtinMakeString(c *Context, args []Value) (Value, error) {
	n, err := c.checkNatnum(args[0])
	if err != nil {
		return Nil, err
	}
	r, err := c.checkChar(args[1])
	if err != nil {
		return Nil, err
	}
	if n > maxSequenceLength {
		return Nil, c.Signal(SymArgsOutOfRange, args[0])
	}
	return c.rt.String(strings.Repeat(string(r), int(n))), nil
}

func builtinString(c *Context, args []Value) (Value, error) {
	rs := make([]rune, len(args))
	for i, x := range args {
		r, err := c.checkChar(x)
		if err != nil {
			return Nil, err
		}
		rs[i] = r
	}
	return c.rt.String(string(rs)), nil
}

func builtinCharToString(c *Context, args []Value) (Value, error) {
	r, err := c.checkChar(args[0])
	if err != nil {
		return Nil, err
	}
	return c.rt.String(string(r)), nil
}

func builtinStringToChar(c *Context, args []Value) (Value, error) {
	s, err := c.checkString(args[0])
	if err != nil || s == "" {
		return Int(0), err
	}
	r, _ := utf8.DecodeRuneInString(s)
	return Int(int64(r)), nil
}

func builtinStringToList(c *Context, args []Value) (Value, error) {
	if _, err := c.checkString(args[0]); err != nil {
		return Nil, err
	}
	items, err := c.sequenceSlice(args[0])
	if err != nil {
		return Nil, err
	}
	return c.rt.List(items...), nil
}

func builtinStringToVector(c *Context, args []Value) (Value, error) {
	if _, err := c.checkString(args[0]); err != nil {
		return Nil, err
	}
	items, err := c.sequenceSlice(args[0])
	if err != nil {
		return Nil, err
	}
	return c.rt.Vector(items), nil
}

func (c *Context) caseFold() bool {
	return c.rt.varValue("case-fold-search").Truthy()
}

func builtinCharEqual(c *Context, args []Value) (Value, error) {
	a, err := c.checkChar(args[0])
	if err != nil {
		return Nil, err
	}
	b, err := c.checkChar(args[1])
	if err != nil {
		return Nil, err
	}
	if a == b {
		return T, nil
	}
	return Bool(c.caseFold() && unicode.ToLower(a) == unicode.ToLower(b)), nil
}

func builtinNumberToString(c *Context, args []Value) (Value, error) {
	if _, err := c.checkNumber(args[0]); err != nil {
		return Nil, err
	}
	return c.rt.String(c.rt.Prin1String(args[0])), nil
}

func builtinStringToNumber(c *Context, args []Value) (Value, error) {
	s, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	base := int64(10)
	if v := optArg(args, 1); v.Truthy() {
		if base, err = c.checkFixnum(v); err != nil {
			return Nil, err
		}
		if base < 2 || base > 16 {
			return Nil, c.Signal(SymArgsOutOfRange, v)
		}
	}
	return c.rt.parseNumberPrefix(strings.TrimLeft(s, " \t\n\f\r"), int(base)), nil
}

// parseNumberPrefix parses the longest numeric prefix of s.
func (rt *Runtime) parseNumberPrefix(s string, base int) Value {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := i
	for i < len(s) && digitValue(rune(s[i])) < base {
		i++
	}
	intEnd := i
	if base == 10 {
		isFloat := false
		j := i
		if j < len(s) && s[j] == '.' {
			j++
			k := j
			for j < len(s) && isDigit(rune(s[j])) {
				j++
			}
			if j > k {
				isFloat = true
				i = j
			}
		}
		if i > digits && i < len(s) && (s[i] == 'e' || s[i] == 'E') {
			j := i + 1
			if j < len(s) && (s[j] == '+' || s[j] == '-') {
				j++
			}
			k := j
			for j < len(s) && isDigit(rune(s[j])) {
				j++
			}
			if j > k {
				isFloat = true
				i = j
			}
		}
		if isFloat {
			f, err := strconv.ParseFloat(s[:i], 64)
			if err == nil || math.IsInf(f, 0) {
				return Float(f)
			}
		}
	}
	if intEnd == digits {
		return Int(0)
	}
	n, ok := new(big.Int).SetString(s[:intEnd], base)
	if !ok {
		return Int(0)
	}
	return rt.BigInt(n)
}

func digitValue(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'z':
		return int(r-'a') + 10
	case r >= 'A' && r <= 'Z':
		return int(r-'A') + 10
	}
	return 99
}

const defaultSplitSeparators = "[ \f\t\n\r\v]+"

func builtinSplitString(c *Context, args []Value) (Value, error) {
	s, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	sep := defaultSplitSeparators
	omitNulls := true
	if v := optArg(args, 1); v.Truthy() {
		if sep, err = c.checkString(v); err != nil {
			return Nil, err
		}
		omitNulls = optArg(args, 2).Truthy()
	}
	re, err := c.compileRegexp(sep, false)
	if err != nil {
		return Nil, err
	}
	var trim *emacsRegexp
	if v := optArg(args, 3); v.Truthy() {
		ts, err := c.checkString(v)
		if err != nil {
			return Nil, err
		}
		if trim, err = c.compileRegexp(ts, false); err != nil {
			return Nil, err
		}
	}
	var parts []Value
	for _, p := range re.re.Split(s, -1) {
		if trim != nil {
			p = trim.trimLeft(trim.trimRight(p))
		}
		if omitNulls && p == "" {
			continue
		}
		parts = append(parts, c.rt.String(p))
	}
	return c.rt.List(parts...), nil
}

func builtinStringJoin(c *Context, args []Value) (Value, error) {
	items, err := c.sequenceSlice(args[0])
	if err != nil {
		return Nil, err
	}
	sep := ""
	if v := optArg(args, 1); v.Truthy() {
		if sep, err = c.checkString(v); err != nil {
			return Nil, err
		}
	}
	parts := make([]string, len(items))
	for i, x := range items {
		if parts[i], err = c.concatPart(x); err != nil {
			return Nil, err
		}
	}
	return c.rt.String(strings.Join(parts, sep)), nil
}

const defaultTrimRegexp = "[ \t\n\r]+"

func (c *Context) trimArg(args []Value, i int) (*emacsRegexp, error) {
	pattern := defaultTrimRegexp
	if v := optArg(args, i); v.Truthy() {
		var err error
		if pattern, err = c.checkString(v); err != nil {
			return nil, err
		}
	}
	return c.compileRegexp(pattern, false)
}

func builtinStringTrim(c *Context, args []Value) (Value, error) {
	s, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	left, err := c.trimArg(args, 1)
	if err != nil {
		return Nil, err
	}
	right, err := c.trimArg(args, 2)
	if err != nil {
		return Nil, err
	}
	return c.rt.String(right.trimRight(left.trimLeft(s))), nil
}

func builtinStringTrimLeft(c *Context, args []Value) (Value, error) {
	s, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	re, err := c.trimArg(args, 1)
	if err != nil {
		return Nil, err
	}
	return c.rt.String(re.trimLeft(s)), nil
}

func builtinStringTrimRight(c *Context, args []Value) (Value, error) {
	s, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	re, err := c.trimArg(args, 1)
	if err != nil {
		return Nil, err
	}
	return c.rt.String(re.trimRight(s)), nil
}

func builtinFormat(c *Context, args []Value) (Value, error) {
	f, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	s, err := c.Format(f, args[1:]...)
	if err != nil {
		return Nil, err
	}
	return c.rt.String(s), nil
}

// Format implements the format control string language: %s %S %d %o %x
// %X %c %e %f %g and %%, with optional field numbers, flags, width and
// precision.
func (c *Context) Format(f string, args ...Value) (string, error) {
	var b strings.Builder
	next := 0
	for i := 0; i < len(f); i++ {
		if f[i] != '%' {
			b.WriteByte(f[i])
			continue
		}
		i++
		// Field number.
		j := i
		for j < len(f) && isDigit(rune(f[j])) {
			j++
		}
		if j > i && j < len(f) && f[j] == '$' {
			n, _ := strconv.Atoi(f[i:j])
			next = n - 1
			i = j + 1
		}
		flags := ""
		for i < len(f) && strings.IndexByte("-+ #0", f[i]) >= 0 {
			flags += string(f[i])
			i++
		}
		width := ""
		for i < len(f) && isDigit(rune(f[i])) {
			width += string(f[i])
			i++
		}
		prec := ""
		hasPrec := false
		if i < len(f) && f[i] == '.' {
			hasPrec = true
			i++
			for i < len(f) && isDigit(rune(f[i])) {
				prec += string(f[i])
				i++
			}
		}
		if i >= len(f) {
			return "", c.Errorf("Format string ends in middle of format specifier")
		}
		verb := f[i]
		if verb == '%' {
			b.WriteByte('%')
			continue
		}
		if next < 0 || next >= len(args) {
			return "", c.Errorf("Not enough arguments for format string")
		}
		arg := args[next]
		next++
		s, err := c.formatDirective(verb, flags, width, prec, hasPrec, arg)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

func (c *Context) formatDirective(verb byte, flags, width, prec string, hasPrec bool, arg Value) (string, error) {
	spec := "%" + flags + width
	pad := func(s string) string {
		return fmt.Sprintf("%"+strings.ReplaceAll(strings.ReplaceAll(flags, "0", ""), "#", "")+width+"s", s)
	}
	switch verb {
	case 's', 'S':
		var s string
		if verb == 's' {
			s = c.rt.PrincString(arg)
		} else {
			s = c.rt.Prin1String(arg)
		}
		if hasPrec {
			if n, _ := strconv.Atoi(prec); n < utf8.RuneCountInString(s) {
				s = string([]rune(s)[:n])
			}
		}
		return pad(s), nil
	case 'd', 'o', 'x', 'X':
		if !arg.IsNumber() {
			return "", c.Errorf("Format specifier doesn’t match argument type")
		}
		var n *big.Int
		if arg.tag == TagFloat {
			n = floatToBig(arg.FloatVal(), math.Trunc)
		} else {
			n = c.rt.toBig(arg)
		}
		if hasPrec {
			spec += "." + prec
		}
		return fmt.Sprintf(spec+string(verb), n), nil
	case 'c':
		r, err := c.checkChar(arg)
		if err != nil {
			return "", err
		}
		return pad(string(r)), nil
	case 'e', 'f', 'g':
		if !arg.IsNumber() {
			return "", c.Errorf("Format specifier doesn’t match argument type")
		}
		if !hasPrec {
			prec = "6"
		}
		return fmt.Sprintf(spec+"."+prec+string(verb), c.rt.toFloat(arg)), nil
	}
	return "", c.Errorf("Invalid format operation %%%c", verb)
}

func (c *Context) asciiString(v Value) (string, error) {
	s, err := c.checkString(v)
	if err != nil {
		return "", err
	}
	for _, r := range s {
		if r >= utf8.RuneSelf {
			return "", c.Errorf("Multibyte character in data for base64 encoding")
		}
	}
	return s, nil
}

func builtinBase64Encode(c *Context, args []Value) (Value, error) {
	s, err := c.asciiString(args[0])
	if err != nil {
		return Nil, err
	}
	enc := base64.StdEncoding.EncodeToString([]byte(s))
	if !optArg(args, 1).Truthy() {
		enc = breakLines(enc, 76)
	}
	return c.rt.String(enc), nil
}

func breakLines(s string, n int) string {
	var b strings.Builder
	for len(s) > n {
		b.WriteString(s[:n])
		b.WriteByte('\n')
		s = s[n:]
	}
	b.WriteString(s)
	return b.String()
}

func builtinBase64URLEncode(c *Context, args []Value) (Value, error) {
	s, err := c.asciiString(args[0])
	if err != nil {
		return Nil, err
	}
	enc := base64.URLEncoding
	if optArg(args, 1).Truthy() {
		enc = base64.RawURLEncoding
	}
	return c.rt.String(enc.EncodeToString([]byte(s))), nil
}

func builtinBase64Decode(c *Context, args []Value) (Value, error) {
	s, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	enc := base64.StdEncoding
	if optArg(args, 1).Truthy() {
		enc = base64.URLEncoding
	}
	if !strings.HasSuffix(s, "=") {
		enc = enc.WithPadding(base64.NoPadding)
	}
	data, err := enc.DecodeString(s)
	if err != nil {
		if optArg(args, 2).Truthy() {
			return Nil, nil
		}
		return Nil, c.Errorf("Invalid base64 data")
	}
	// Each byte decodes to one unibyte character.
	rs := make([]rune, len(data))
	for i, x := range data {
		rs[i] = rune(x)
	}
	return c.rt.String(string(rs)), nil
}
