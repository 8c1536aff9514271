// Copyright © 2018 The ELPS authors

package lisp

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

var langPrintBuiltins = []*langBuiltin{
	{"prin1", 1, 3, builtinPrin1, `Outputs the printed representation of OBJECT, with quoting, to PRINTCHARFUN.`},
	{"princ", 1, 2, builtinPrinc, `Outputs the printed representation of OBJECT, without quoting, to PRINTCHARFUN.`},
	{"print", 1, 2, builtinPrint, `Outputs a newline, the printed representation of OBJECT and another newline.`},
	{"terpri", 0, 2, builtinTerpri, `Outputs a newline to PRINTCHARFUN.`},
	{"write-char", 1, 2, builtinWriteChar, `Outputs CHARACTER to PRINTCHARFUN.`},
	{"prin1-to-string", 1, 3, builtinPrin1ToString,
		`Returns the printed representation of OBJECT.  When NOESCAPE is
		non-nil strings and symbols are printed without quoting.`},
	{"message", 1, Many, builtinMessage,
		`Formats the arguments with format-message and writes the result to
		standard error.  Returns the message.`},
	{"error-message-string", 1, 1, builtinErrorMessageString, `Returns the message of an error object (ERROR-SYMBOL . DATA).`},
}

// printer writes the external representation of values.
type printer struct {
	rt     *Runtime
	b      strings.Builder
	escape bool
	// stack holds the conses, vectors and records currently being printed
	// so cycles print as #N.
	stack  []Value
	length int
	level  int
}

func (rt *Runtime) newPrinter(escape bool) *printer {
	p := &printer{rt: rt, escape: escape, length: -1, level: -1}
	if v := rt.varValue("print-length"); v.IsFixnum() {
		p.length = int(v.Fixnum())
	}
	if v := rt.varValue("print-level"); v.IsFixnum() {
		p.level = int(v.Fixnum())
	}
	return p
}

// Prin1String returns the printed representation of v that read would
// turn back into an equal object where possible.
func (rt *Runtime) Prin1String(v Value) string {
	p := rt.newPrinter(true)
	p.print(v)
	return p.b.String()
}

// PrincString returns the printed representation of v without quoting.
func (rt *Runtime) PrincString(v Value) string {
	p := rt.newPrinter(false)
	p.print(v)
	return p.b.String()
}

func (p *printer) onStack(v Value) int {
	for i, x := range p.stack {
		if x == v {
			return i
		}
	}
	return -1
}

func (p *printer) print(v Value) {
	switch v.tag {
	case TagSymbol:
		p.symbol(v)
	case TagInt:
		p.b.WriteString(strconv.FormatInt(v.Fixnum(), 10))
	case TagBigInt:
		p.b.WriteString(p.rt.BigIntVal(v).String())
	case TagFloat:
		p.b.WriteString(FormatFloat(v.FloatVal()))
	case TagString:
		p.string(p.rt.StringVal(v))
	case TagCons, TagVector, TagRecord, TagHashTable, TagFunction:
		if i := p.onStack(v); i >= 0 {
			fmt.Fprintf(&p.b, "#%d", i)
			return
		}
		if p.level >= 0 && len(p.stack) >= p.level {
			p.b.WriteString("...")
			return
		}
		p.stack = append(p.stack, v)
		defer func() { p.stack = p.stack[:len(p.stack)-1] }()
		switch v.tag {
		case TagCons:
			p.list(v)
		case TagVector:
			p.items("[", p.rt.Items(v), "]")
		case TagRecord:
			p.items("#s(", p.rt.Items(v), ")")
		case TagHashTable:
			p.hashTable(v)
		case TagFunction:
			p.function(v)
		}
	case TagEnv:
		p.b.WriteString("#<env>")
	case TagUnbound:
		p.b.WriteString("#<unbound>")
	default:
		fmt.Fprintf(&p.b, "#<%s>", v.tag)
	}
}

// Characters that must be escaped in a printed symbol name.
const symbolEscapes = "\"\\;#()[],'`?. \t\n\r\f"

func (p *printer) symbol(v Value) {
	name := p.rt.SymbolName(v)
	if !p.escape {
		p.b.WriteString(name)
		return
	}
	if name == "" {
		p.b.WriteString("##")
		return
	}
	if looksLikeNumber(name) {
		p.b.WriteByte('\\')
	}
	for i, r := range name {
		// A dot or question mark is only ambiguous at the start.
		if (r == '.' || r == '?') && i > 0 {
			p.b.WriteRune(r)
			continue
		}
		if strings.ContainsRune(symbolEscapes, r) {
			p.b.WriteByte('\\')
		}
		p.b.WriteRune(r)
	}
}

func looksLikeNumber(s string) bool {
	if s == "" || s == "+" || s == "-" || s == "." {
		return false
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return true
	}
	if strings.HasSuffix(s, ".") {
		if _, err := strconv.ParseInt(s[:len(s)-1], 10, 64); err == nil {
			return true
		}
	}
	if strings.ContainsAny(s, ".eE") && !strings.ContainsAny(s, "xXpP_") {
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return !strings.HasPrefix(strings.ToLower(strings.TrimLeft(s, "+-")), "inf") &&
				!strings.HasPrefix(strings.ToLower(strings.TrimLeft(s, "+-")), "nan")
		}
	}
	return false
}

func (p *printer) string(s string) {
	if !p.escape {
		p.b.WriteString(s)
		return
	}
	escapeNewlines := p.rt.varValue("print-escape-newlines").Truthy()
	p.b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			p.b.WriteByte('\\')
			p.b.WriteRune(r)
		case r == '\n' && escapeNewlines:
			p.b.WriteString(`\n`)
		case r == '\f' && escapeNewlines:
			p.b.WriteString(`\f`)
		default:
			p.b.WriteRune(r)
		}
	}
	p.b.WriteByte('"')
}

// FormatFloat formats x the way the printer does: the shortest of 15, 16
// or 17 significant digits that reads back as x, always with a decimal
// point or exponent.
func FormatFloat(x float64) string {
	switch {
	case math.IsInf(x, 1):
		return "1.0e+INF"
	case math.IsInf(x, -1):
		return "-1.0e+INF"
	case math.IsNaN(x):
		if math.Signbit(x) {
			return "-0.0e+NaN"
		}
		return "0.0e+NaN"
	}
	var s string
	for prec := 15; prec <= 17; prec++ {
		s = strconv.FormatFloat(x, 'g', prec, 64)
		if y, err := strconv.ParseFloat(s, 64); err == nil && y == x {
			break
		}
	}
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

var quoteAbbrevs = map[SymbolID]string{
	SymQuote:     "'",
	SymFunction:  "#'",
	SymBackquote: "`",
	SymComma:     ",",
	SymCommaAt:   ",@",
}

func (p *printer) list(v Value) {
	rt := p.rt
	if head := rt.Car(v); head.IsSymbol() {
		prefix, ok := quoteAbbrevs[head.Symbol()]
		rest := rt.Cdr(v)
		if ok && rest.IsCons() && rt.Cdr(rest).IsNil() {
			p.b.WriteString(prefix)
			p.print(rt.Car(rest))
			return
		}
	}
	p.b.WriteByte('(')
	level := len(p.stack) - 1
	first := v
	// Short lists are checked for a circular cdr by scanning; longer ones
	// switch to a set of visited conses.
	const scanLimit = 32
	var seen map[Value]struct{}
	n := 0
	for {
		if p.length >= 0 && n >= p.length {
			p.b.WriteString("...")
			break
		}
		p.print(rt.Car(v))
		n++
		if seen != nil {
			seen[v] = struct{}{}
		}
		next := rt.Cdr(v)
		if next.IsNil() {
			break
		}
		if !next.IsCons() {
			p.b.WriteString(" . ")
			p.print(next)
			break
		}
		i := p.onStack(next)
		if i < 0 {
			if n == scanLimit {
				seen = make(map[Value]struct{})
				for x, k := first, 0; k < n; x, k = rt.Cdr(x), k+1 {
					seen[x] = struct{}{}
				}
			}
			cyclic := false
			if seen != nil {
				_, cyclic = seen[next]
			} else {
				cyclic = p.seenTail(first, next, n)
			}
			if cyclic {
				i = level
			}
		}
		if i >= 0 {
			fmt.Fprintf(&p.b, " . #%d", i)
			break
		}
		p.b.WriteByte(' ')
		v = next
	}
	p.b.WriteByte(')')
}

// seenTail reports whether tail is one of the first n conses of the list
// starting at head, which means the cdr chain is circular.
func (p *printer) seenTail(head, tail Value, n int) bool {
	for i := 0; i < n && head.IsCons(); i++ {
		if head == tail {
			return true
		}
		head = p.rt.Cdr(head)
	}
	return false
}

func (p *printer) items(open string, items []Value, close string) {
	p.b.WriteString(open)
	for i, x := range items {
		if i > 0 {
			p.b.WriteByte(' ')
		}
		if p.length >= 0 && i >= p.length {
			p.b.WriteString("...")
			break
		}
		p.print(x)
	}
	p.b.WriteString(close)
}

func (p *printer) hashTable(v Value) {
	t := p.rt.Table(v)
	p.b.WriteString("#s(hash-table")
	if t.Test != symbolValue(SymEql) {
		p.b.WriteString(" test ")
		p.print(t.Test)
	}
	if t.Weakness.Truthy() {
		p.b.WriteString(" weakness ")
		p.print(t.Weakness)
	}
	if t.count > 0 {
		p.b.WriteString(" data (")
		first := true
		for _, e := range t.entries {
			if e.deleted {
				continue
			}
			if !first {
				p.b.WriteByte(' ')
			}
			first = false
			p.print(e.key)
			p.b.WriteByte(' ')
			p.print(e.val)
		}
		p.b.WriteByte(')')
	}
	p.b.WriteByte(')')
}

func (p *printer) function(v Value) {
	rt := p.rt
	f := rt.Fun(v)
	switch f.Kind {
	case FuncNative:
		if f.Special != nil {
			fmt.Fprintf(&p.b, "#<special-form %s>", f.Name)
			return
		}
		fmt.Fprintf(&p.b, "#<subr %s>", f.Name)
	case FuncMacro:
		p.b.WriteString("(macro . ")
		if f.Expander.tag == TagFunction && rt.Fun(f.Expander).Kind == FuncNative {
			fmt.Fprintf(&p.b, "#<subr %s>", f.Name)
		} else {
			p.print(f.Expander)
		}
		p.b.WriteByte(')')
	case FuncInterpreted:
		p.b.WriteString("(closure ")
		p.lexicalEnv(f.Env)
		p.b.WriteByte(' ')
		p.print(f.Args)
		for body := f.Body; body.IsCons(); body = rt.Cdr(body) {
			p.b.WriteByte(' ')
			p.print(rt.Car(body))
		}
		p.b.WriteByte(')')
	case FuncCompiled:
		code := f.Code
		p.b.WriteString("#[")
		p.print(code.ArgDesc)
		p.b.WriteByte(' ')
		p.byteString(code.Code)
		p.b.WriteByte(' ')
		p.print(code.Constants)
		fmt.Fprintf(&p.b, " %d", code.MaxDepth)
		if code.Doc.Truthy() || code.Interactive.Truthy() {
			p.b.WriteByte(' ')
			p.print(code.Doc)
		}
		if code.Interactive.Truthy() {
			p.b.WriteByte(' ')
			p.print(code.Interactive)
		}
		p.b.WriteByte(']')
	}
}

// lexicalEnv prints a captured environment as an alist of bindings,
// innermost first, terminated by t.
func (p *printer) lexicalEnv(env Value) {
	p.b.WriteByte('(')
	for e := env; e.tag == TagEnv && e != emptyLexEnv; {
		fr := p.rt.env(e)
		for i := len(fr.vars) - 1; i >= 0; i-- {
			p.b.WriteByte('(')
			p.print(symbolValue(fr.vars[i].sym))
			p.b.WriteString(" . ")
			p.print(fr.vars[i].val)
			p.b.WriteString(") ")
		}
		e = fr.parent
	}
	p.b.WriteString("t)")
}

// byteString prints a unibyte string using octal escapes for bytes that
// are not printable ASCII.
func (p *printer) byteString(code []byte) {
	p.b.WriteByte('"')
	for _, c := range code {
		switch {
		case c == '"' || c == '\\':
			p.b.WriteByte('\\')
			p.b.WriteByte(c)
		case c >= 0x20 && c < 0x7f:
			p.b.WriteByte(c)
		default:
			fmt.Fprintf(&p.b, "\\%o", c)
		}
	}
	p.b.WriteByte('"')
}

// output returns a function writing text to the destination designated by
// printcharfun.
func (c *Context) output(printcharfun Value) (func(s string) error, error) {
	if printcharfun.IsNil() {
		printcharfun = c.rt.varValue("standard-output")
	}
	switch {
	case printcharfun == T:
		return c.writer(c.rt.Stdout), nil
	case printcharfun == c.sym("external-debugging-output"):
		return c.writer(c.rt.Stderr), nil
	case c.Functionp(printcharfun):
		return func(s string) error {
			for _, r := range s {
				if _, err := c.Funcall(printcharfun, Int(int64(r))); err != nil {
					return err
				}
			}
			return nil
		}, nil
	}
	return nil, c.WrongType(SymFunctionp, printcharfun)
}

func (c *Context) writer(w io.Writer) func(s string) error {
	return func(s string) error {
		if _, err := io.WriteString(w, s); err != nil {
			return c.Errorf("%v", err)
		}
		return nil
	}
}

func (c *Context) printTo(printcharfun Value, parts ...string) error {
	out, err := c.output(printcharfun)
	if err != nil {
		return err
	}
	return out(strings.Join(parts, ""))
}

func builtinPrin1(c *Context, args []Value) (Value, error) {
	return args[0], c.printTo(optArg(args, 1), c.rt.Prin1String(args[0]))
}

func builtinPrinc(c *Context, args []Value) (Value, error) {
	return args[0], c.printTo(optArg(args, 1), c.rt.PrincString(args[0]))
}

func builtinPrint(c *Context, args []Value) (Value, error) {
	return args[0], c.printTo(optArg(args, 1), "\n", c.rt.Prin1String(args[0]), "\n")
}

func builtinTerpri(c *Context, args []Value) (Value, error) {
	return T, c.printTo(optArg(args, 0), "\n")
}

func builtinWriteChar(c *Context, args []Value) (Value, error) {
	r, err := c.checkChar(args[0])
	if err != nil {
		return Nil, err
	}
	return args[0], c.printTo(optArg(args, 1), string(r))
}

func builtinPrin1ToString(c *Context, args []Value) (Value, error) {
	if optArg(args, 1).Truthy() {
		return c.rt.String(c.rt.PrincString(args[0])), nil
	}
	return c.rt.String(c.rt.Prin1String(args[0])), nil
}

func builtinMessage(c *Context, args []Value) (Value, error) {
	if args[0].IsNil() {
		return Nil, nil
	}
	v, err := builtinFormat(c, args)
	if err != nil {
		return Nil, err
	}
	msg := c.rt.StringVal(v)
	if !utf8.ValidString(msg) {
		msg = strings.ToValidUTF8(msg, "�")
	}
	return v, c.printTo(c.sym("external-debugging-output"), msg, "\n")
}

func builtinErrorMessageString(c *Context, args []Value) (Value, error) {
	v := args[0]
	if !v.IsCons() {
		return c.rt.String("peculiar error"), nil
	}
	return c.rt.String(c.rt.ErrorMessage(c.rt.Car(v), c.rt.Cdr(v))), nil
}
