// Copyright © 2018 The ELPS authors

package lisp

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var langSearchBuiltins = []*langBuiltin{
	{"string-match", 2, 4, builtinStringMatch,
		`Returns the index of the start of the first match for REGEXP in
		STRING, or nil.  The match data is updated on success.`},
	{"string-match-p", 2, 3, builtinStringMatchp, `Like string-match but does not change the match data.`},
	{"match-beginning", 1, 1, builtinMatchBeginning, `Returns the start of subexpression SUBEXP of the last match, or nil.`},
	{"match-end", 1, 1, builtinMatchEnd, `Returns the end of subexpression SUBEXP of the last match, or nil.`},
	{"match-data", 0, 3, builtinMatchData, `Returns a list of the positions of the last match and its subexpressions.`},
	{"set-match-data", 1, 2, builtinSetMatchData, `Sets the match data from a list of positions.`},
	{"match-data--translate", 1, 1, builtinMatchDataTranslate, `Adds N to every position in the match data.`},
	{"match-string", 1, 2, builtinMatchString, `Returns the text matched by subexpression NUM of the last search in STRING.`},
	{"replace-match", 1, 5, builtinReplaceMatch,
		`Replaces the text matched by the last search in STRING with NEWTEXT.
		Unless LITERAL, \& stands for the whole match and \N for
		subexpression N.`},
	{"replace-regexp-in-string", 3, 7, builtinReplaceRegexpInString,
		`Replaces all matches for REGEXP in STRING with REP, a string or a
		function of the matched text.`},
	{"regexp-quote", 1, 1, builtinRegexpQuote, `Returns a regexp that matches STRING literally.`},
}

// emacsRegexp is a compiled regular expression in Emacs syntax.
type emacsRegexp struct {
	re *regexp.Regexp
}

func (e *emacsRegexp) trimLeft(s string) string {
	if loc := e.re.FindStringIndex(s); loc != nil && loc[0] == 0 {
		return s[loc[1]:]
	}
	return s
}

func (e *emacsRegexp) trimRight(s string) string {
	locs := e.re.FindAllStringIndex(s, -1)
	for _, loc := range locs {
		if loc[1] == len(s) && loc[0] < loc[1] {
			return s[:loc[0]]
		}
	}
	return s
}

const regexpCacheSize = 64

// compileRegexp translates an Emacs regexp and compiles it, consulting a
// small per runtime cache.
func (c *Context) compileRegexp(pattern string, fold bool) (*emacsRegexp, error) {
	key := pattern
	if fold {
		key = "\x00i" + pattern
	}
	rt := c.rt
	if re, ok := rt.regexps[key]; ok {
		return re, nil
	}
	src, err := translateRegexp(pattern)
	if err != nil {
		return nil, c.Signal(SymInvalidRegexp, c.rt.String(err.Error()))
	}
	if fold {
		src = "(?i)" + src
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, c.Signal(SymInvalidRegexp, c.rt.String(err.Error()))
	}
	if rt.regexps == nil || len(rt.regexps) >= regexpCacheSize {
		rt.regexps = make(map[string]*emacsRegexp)
	}
	e := &emacsRegexp{re: re}
	rt.regexps[key] = e
	return e, nil
}

type regexpError string

func (e regexpError) Error() string { return string(e) }

// translateRegexp converts Emacs regexp syntax to RE2 syntax.  Grouping
// and alternation operators are backslashed in Emacs and literal when
// bare.  Back references and syntax classes other than whitespace, word
// and punctuation are not supported.
func translateRegexp(re string) (string, error) {
	var b strings.Builder
	rs := []rune(re)
	// atStart reports whether a repetition operator would have nothing to
	// repeat, in which case Emacs treats it literally.
	atStart := true
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch r {
		case '(', ')', '{', '}', '|':
			b.WriteByte('\\')
			b.WriteRune(r)
			atStart = false
		case '*', '+', '?':
			if atStart {
				b.WriteByte('\\')
				b.WriteRune(r)
				atStart = false
				continue
			}
			b.WriteRune(r)
		case '^':
			if atStart {
				b.WriteRune(r)
			} else {
				b.WriteString(`\^`)
				atStart = false
			}
		case '$':
			if i == len(rs)-1 || strings.HasPrefix(string(rs[i+1:]), `\)`) || strings.HasPrefix(string(rs[i+1:]), `\|`) {
				b.WriteRune(r)
			} else {
				b.WriteString(`\$`)
			}
			atStart = false
		case '[':
			j, err := translateBracket(&b, rs, i)
			if err != nil {
				return "", err
			}
			i = j
			atStart = false
		case '\\':
			if i+1 >= len(rs) {
				return "", regexpError("Trailing backslash")
			}
			i++
			atStart = false
			switch n := rs[i]; n {
			case '(':
				if strings.HasPrefix(string(rs[i+1:]), "?:") {
					b.WriteString("(?:")
					i += 2
				} else {
					b.WriteByte('(')
				}
				atStart = true
			case ')':
				b.WriteByte(')')
			case '|':
				b.WriteByte('|')
				atStart = true
			case '{':
				b.WriteByte('{')
			case '}':
				b.WriteByte('}')
			case '`':
				b.WriteString(`\A`)
				atStart = true
			case '\'':
				b.WriteString(`\z`)
			case 'b', '<', '>':
				b.WriteString(`\b`)
			case 'B':
				b.WriteString(`\B`)
			case 'w':
				b.WriteString(`[\pL\pN]`)
			case 'W':
				b.WriteString(`[^\pL\pN]`)
			case '_':
				if i+1 < len(rs) && (rs[i+1] == '<' || rs[i+1] == '>') {
					b.WriteString(`\b`)
					i++
					continue
				}
				return "", regexpError(`Invalid \_ construct`)
			case 's', 'S':
				if i+1 >= len(rs) {
					return "", regexpError("Invalid syntax class")
				}
				i++
				class, ok := syntaxClasses[rs[i]]
				if !ok {
					return "", regexpError("Invalid syntax class")
				}
				if n == 'S' {
					b.WriteString("[^" + class + "]")
				} else {
					b.WriteString("[" + class + "]")
				}
			default:
				if isDigit(n) {
					return "", regexpError("Back references are not supported")
				}
				b.WriteString(regexp.QuoteMeta(string(n)))
			}
		default:
			b.WriteRune(r)
			atStart = false
		}
	}
	return b.String(), nil
}

var syntaxClasses = map[rune]string{
	'-': `\s`,
	' ': `\s`,
	'w': `\pL\pN`,
	'_': `\pL\pN_\-+*/<>=!?$%&~^:`,
	'.': `[:punct:]`,
	'(': `(\[{`,
	')': `)\]}`,
	'"': `"`,
}

// translateBracket copies a bracket expression starting at rs[i] and
// returns the index of its closing bracket.  Backslash is literal inside
// brackets in Emacs.
func translateBracket(b *strings.Builder, rs []rune, i int) (int, error) {
	b.WriteByte('[')
	j := i + 1
	if j < len(rs) && rs[j] == '^' {
		b.WriteByte('^')
		j++
	}
	if j < len(rs) && rs[j] == ']' {
		b.WriteString(`\]`)
		j++
	}
	for ; j < len(rs); j++ {
		switch r := rs[j]; r {
		case ']':
			b.WriteByte(']')
			return j, nil
		case '[':
			if j+1 < len(rs) && rs[j+1] == ':' {
				k := j + 2
				for k+1 < len(rs) && !(rs[k] == ':' && rs[k+1] == ']') {
					k++
				}
				if k+1 >= len(rs) {
					return 0, regexpError("Unmatched [ or [^")
				}
				class := string(rs[j : k+2])
				switch class {
				case "[:word:]":
					class = `\pL\pN`
				case "[:multibyte:]", "[:nonascii:]":
					class = `\x{80}-\x{10FFFF}`
				case "[:unibyte:]", "[:ascii:]":
					class = `\x00-\x7f`
				}
				b.WriteString(class)
				j = k + 1
				continue
			}
			b.WriteString(`\[`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	return 0, regexpError("Unmatched [ or [^")
}

// runeOffsets converts byte offsets in s to character offsets.
func runeOffsets(s string, locs []int) []int {
	out := make([]int, len(locs))
	for i, l := range locs {
		if l < 0 {
			out[i] = -1
			continue
		}
		out[i] = utf8.RuneCountInString(s[:l])
	}
	return out
}

// byteOffset converts a character offset in s to a byte offset.
func byteOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}

// StringMatch searches s for pattern starting at character start.  It
// returns the character positions of the match and each subexpression,
// -1 for a subexpression that did not participate, or nil.
func (c *Context) StringMatch(pattern, s string, start int) ([]int, error) {
	re, err := c.compileRegexp(pattern, c.caseFold())
	if err != nil {
		return nil, err
	}
	off := byteOffset(s, start)
	locs := re.re.FindStringSubmatchIndex(s[off:])
	if locs == nil {
		return nil, nil
	}
	for i := range locs {
		if locs[i] >= 0 {
			locs[i] += off
		}
	}
	return runeOffsets(s, locs), nil
}

func (c *Context) matchArgs(args []Value) (string, string, int, error) {
	pattern, err := c.checkString(args[0])
	if err != nil {
		return "", "", 0, err
	}
	s, err := c.checkString(args[1])
	if err != nil {
		return "", "", 0, err
	}
	start := 0
	if v := optArg(args, 2); v.Truthy() {
		n, err := c.checkFixnum(v)
		if err != nil {
			return "", "", 0, err
		}
		length := utf8.RuneCountInString(s)
		if n < 0 {
			n += int64(length)
		}
		if n < 0 || n > int64(length) {
			return "", "", 0, c.Signal(SymArgsOutOfRange, args[1], v)
		}
		start = int(n)
	}
	return pattern, s, start, nil
}

func builtinStringMatch(c *Context, args []Value) (Value, error) {
	pattern, s, start, err := c.matchArgs(args)
	if err != nil {
		return Nil, err
	}
	locs, err := c.StringMatch(pattern, s, start)
	if err != nil || locs == nil {
		return Nil, err
	}
	if !optArg(args, 3).Truthy() {
		c.matchData = locs
	}
	return Int(int64(locs[0])), nil
}

func builtinStringMatchp(c *Context, args []Value) (Value, error) {
	pattern, s, start, err := c.matchArgs(args)
	if err != nil {
		return Nil, err
	}
	locs, err := c.StringMatch(pattern, s, start)
	if err != nil || locs == nil {
		return Nil, err
	}
	return Int(int64(locs[0])), nil
}

func (c *Context) matchPosition(v Value, end int) (Value, error) {
	n, err := c.checkNatnum(v)
	if err != nil {
		return Nil, err
	}
	i := int(n)*2 + end
	if i >= len(c.matchData) || c.matchData[i] < 0 {
		return Nil, nil
	}
	return Int(int64(c.matchData[i])), nil
}

func builtinMatchBeginning(c *Context, args []Value) (Value, error) {
	return c.matchPosition(args[0], 0)
}

func builtinMatchEnd(c *Context, args []Value) (Value, error) {
	return c.matchPosition(args[0], 1)
}

func builtinMatchData(c *Context, args []Value) (Value, error) {
	// Trailing unmatched subexpressions are omitted.
	n := len(c.matchData)
	for n > 0 && c.matchData[n-1] < 0 {
		n--
	}
	items := make([]Value, n)
	for i := 0; i < n; i++ {
		if c.matchData[i] >= 0 {
			items[i] = Int(int64(c.matchData[i]))
		}
	}
	return c.rt.List(items...), nil
}

func builtinSetMatchData(c *Context, args []Value) (Value, error) {
	items, err := c.listSlice(args[0])
	if err != nil {
		return Nil, err
	}
	data := make([]int, 0, len(items))
	for _, x := range items {
		switch {
		case x.IsNil():
			data = append(data, -1)
		case x.IsFixnum():
			data = append(data, int(x.Fixnum()))
		default:
			return Nil, c.WrongType(SymIntegerOrMarkerp, x)
		}
	}
	c.matchData = data
	return Nil, nil
}

func builtinMatchDataTranslate(c *Context, args []Value) (Value, error) {
	n, err := c.checkFixnum(args[0])
	if err != nil {
		return Nil, err
	}
	for i, x := range c.matchData {
		if x >= 0 {
			c.matchData[i] = x + int(n)
		}
	}
	return Nil, nil
}

func builtinMatchString(c *Context, args []Value) (Value, error) {
	start, err := c.matchPosition(args[0], 0)
	if err != nil || start.IsNil() {
		return Nil, err
	}
	end, _ := c.matchPosition(args[0], 1)
	if len(args) < 2 || args[1].IsNil() {
		return Nil, c.Errorf("match-string requires a string without buffers")
	}
	return c.Substring(args[1], start, end)
}

// expandReplacement expands \& \N and \\ in rep using the match positions
// locs (character offsets into rs).
func (c *Context) expandReplacement(rep string, rs []rune, locs []int) (string, error) {
	var b strings.Builder
	r := []rune(rep)
	for i := 0; i < len(r); i++ {
		if r[i] != '\\' || i+1 >= len(r) {
			b.WriteRune(r[i])
			continue
		}
		i++
		switch n := r[i]; {
		case n == '&':
			b.WriteString(string(rs[locs[0]:locs[1]]))
		case isDigit(n):
			g := int(n-'0') * 2
			if g+1 < len(locs) && locs[g] >= 0 {
				b.WriteString(string(rs[locs[g]:locs[g+1]]))
			} else if g+1 >= len(locs) {
				return "", c.Errorf("replace-match subexpression does not exist")
			}
		case n == '\\':
			b.WriteByte('\\')
		case n == '?':
			return "", c.Errorf("(replace-match) \\? is reserved")
		default:
			return "", c.Errorf("Invalid use of ‘\\’ in replacement text")
		}
	}
	return b.String(), nil
}

func builtinReplaceMatch(c *Context, args []Value) (Value, error) {
	newtext, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	strv := optArg(args, 3)
	if strv.IsNil() {
		return Nil, c.Errorf("replace-match requires a string without buffers")
	}
	s, err := c.checkString(strv)
	if err != nil {
		return Nil, err
	}
	sub := 0
	if v := optArg(args, 4); v.Truthy() {
		n, err := c.checkNatnum(v)
		if err != nil {
			return Nil, err
		}
		sub = int(n)
	}
	rs := []rune(s)
	locs := c.matchData
	if sub*2+1 >= len(locs) || locs[sub*2] < 0 {
		return Nil, c.Signal(SymArgsOutOfRange, Int(int64(sub)))
	}
	beg, end := locs[sub*2], locs[sub*2+1]
	if beg > end || end > len(rs) {
		return Nil, c.Signal(SymArgsOutOfRange, Int(int64(beg)), Int(int64(end)))
	}
	if !optArg(args, 2).Truthy() {
		if newtext, err = c.expandReplacement(newtext, rs, locs); err != nil {
			return Nil, err
		}
	}
	return c.rt.String(string(rs[:beg]) + newtext + string(rs[end:])), nil
}

func builtinReplaceRegexpInString(c *Context, args []Value) (Value, error) {
	pattern, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	rep := args[1]
	s, err := c.checkString(args[2])
	if err != nil {
		return Nil, err
	}
	literal := optArg(args, 4).Truthy()
	sub := 0
	if v := optArg(args, 5); v.Truthy() {
		n, err := c.checkNatnum(v)
		if err != nil {
			return Nil, err
		}
		sub = int(n)
	}
	start := 0
	if v := optArg(args, 6); v.Truthy() {
		n, err := c.checkNatnum(v)
		if err != nil {
			return Nil, err
		}
		start = int(n)
	}
	rs := []rune(s)
	if start > len(rs) {
		return Nil, c.Signal(SymArgsOutOfRange, args[2], optArg(args, 6))
	}
	var b strings.Builder
	pos := start
	for pos <= len(rs) {
		locs, err := c.StringMatch(pattern, s, pos)
		if err != nil {
			return Nil, err
		}
		if locs == nil {
			break
		}
		c.matchData = locs
		var text string
		if rep.tag == TagString {
			text = c.rt.StringVal(rep)
		} else {
			matched := c.rt.String(string(rs[locs[0]:locs[1]]))
			v, err := c.Funcall(rep, matched)
			if err != nil {
				return Nil, err
			}
			if text, err = c.checkString(v); err != nil {
				return Nil, err
			}
		}
		if !literal {
			if text, err = c.expandReplacement(text, rs, locs); err != nil {
				return Nil, err
			}
		}
		beg, end := locs[0], locs[1]
		if sub > 0 && sub*2+1 < len(locs) && locs[sub*2] >= 0 {
			beg, end = locs[sub*2], locs[sub*2+1]
		}
		b.WriteString(string(rs[pos:beg]))
		b.WriteString(text)
		b.WriteString(string(rs[end:locs[1]]))
		if locs[1] == locs[0] {
			if locs[1] < len(rs) {
				b.WriteRune(rs[locs[1]])
			}
			pos = locs[1] + 1
		} else {
			pos = locs[1]
		}
	}
	if pos < len(rs) {
		b.WriteString(string(rs[pos:]))
	}
	return c.rt.String(b.String()), nil
}

// RegexpQuote returns a regexp matching s literally.
func RegexpQuote(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '[', '*', '.', '\\', '?', '+', '^', '$':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func builtinRegexpQuote(c *Context, args []Value) (Value, error) {
	s, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	return c.rt.String(RegexpQuote(s)), nil
}
