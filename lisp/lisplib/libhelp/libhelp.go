// Copyright © 2021 The ELPS authors

// Package libhelp renders interactive documentation for functions and
// variables and reports definitions that lack a docstring.
package libhelp

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/lisplib/internal/libutil"
)

// Feature is the symbol provided by Install.
const Feature = "help"

// Install defines the help functions in rt and provides the help feature.
func Install(rt *lisp.Runtime) {
	libutil.Install(rt, builtins)
	rt.Provide(rt.Symbol(Feature))
}

var builtins = []*libutil.Builtin{
	libutil.FunctionDoc("help-describe-symbol", 1, 1, builtinDescribeSymbol,
		`Return a help text for SYMBOL.  Functions have their signature and
		docstring rendered.  Bound variables have their current value and
		variable documentation rendered.`),
	libutil.FunctionDoc("help-undocumented", 0, 1, builtinUndocumented,
		`Return a sorted list of function names lacking a docstring.
		When PREFIX is non-nil only names beginning with PREFIX are listed.`),
}

func builtinDescribeSymbol(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	var b strings.Builder
	if err := RenderSymbol(&b, c, args[0]); err != nil {
		return lisp.Nil, err
	}
	return c.Runtime().String(b.String()), nil
}

func builtinUndocumented(c *lisp.Context, args []lisp.Value) (lisp.Value, error) {
	rt := c.Runtime()
	prefix := ""
	if p := libutil.OptArg(args, 0); !p.IsNil() {
		s, err := libutil.String(c, p)
		if err != nil {
			return lisp.Nil, err
		}
		prefix = s
	}
	var names []lisp.Value
	for _, m := range CheckMissing(c) {
		if strings.HasPrefix(m.Name, prefix) {
			names = append(names, rt.Symbol(m.Name))
		}
	}
	return rt.List(names...), nil
}

// MissingDoc describes a function with no documentation.
type MissingDoc struct {
	// Kind is "special form", "function" or "macro".
	Kind string
	// Name is the symbol naming the function.
	Name string
}

// CheckMissing reports the functions bound in the runtime of c that have
// no docstring.  Internal names, which contain "--", are not reported.
// Results are sorted by name.
func CheckMissing(c *lisp.Context) []MissingDoc {
	rt := c.Runtime()
	type def struct {
		name string
		fn   lisp.Value
	}
	var defs []def
	rt.Symbols.Each(func(_ lisp.SymbolID, sym *lisp.Symbol) bool {
		if sym.Function.IsUnbound() || sym.Function.IsNil() || strings.Contains(sym.Name, "--") {
			return true
		}
		defs = append(defs, def{sym.Name, sym.Function})
		return true
	})
	var missing []MissingDoc
	for _, d := range defs {
		_, ok, err := c.Documentation(rt.Symbol(d.name))
		if err != nil || ok {
			continue
		}
		missing = append(missing, MissingDoc{Kind: kind(rt, d.fn), Name: d.name})
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].Name < missing[j].Name })
	return missing
}

func kind(rt *lisp.Runtime, fn lisp.Value) string {
	switch {
	case fn.Tag() == lisp.TagFunction && rt.Fun(fn).Special != nil:
		return "special form"
	case fn.Tag() == lisp.TagFunction && rt.Fun(fn).Kind == lisp.FuncMacro,
		fn.IsCons() && rt.Car(fn) == rt.Symbol("macro"):
		return "macro"
	}
	return "function"
}

// RenderSymbol writes documentation for sym to w.  The exact formatting of
// the rendered documentation is subject to change.
func RenderSymbol(w io.Writer, c *lisp.Context, sym lisp.Value) error {
	rt := c.Runtime()
	if !sym.IsSymbol() {
		return c.WrongType(lisp.SymSymbolp, sym)
	}
	described := false
	if fn, err := c.Funcall(rt.Symbol("fboundp"), sym); err != nil {
		return err
	} else if fn.Truthy() {
		text, err := c.DescribeFunction(sym)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, text); err != nil {
			return err
		}
		described = true
	}
	if v, bound := rt.SymbolValue(sym); bound {
		if described {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := renderVariable(w, rt, sym, v); err != nil {
			return err
		}
		described = true
	}
	if !described {
		_, err := fmt.Fprintf(w, "%s is void as a variable and as a function.\n", rt.SymbolName(sym))
		return err
	}
	return nil
}

func renderVariable(w io.Writer, rt *lisp.Runtime, sym, v lisp.Value) error {
	_, err := fmt.Fprintf(w, "%s's value is %s\n", rt.SymbolName(sym), rt.Prin1String(v))
	if err != nil {
		return err
	}
	doc := rt.Get(sym, rt.Symbol("variable-documentation"))
	if doc.Tag() != lisp.TagString {
		return nil
	}
	_, err = fmt.Fprintf(w, "\n%s\n", cleanDocstring(rt.StringVal(doc)))
	return err
}

// cleanDocstring reflows doc and indents it for display beneath a heading.
func cleanDocstring(doc string) string {
	doc = strings.TrimPrefix(doc, "\n")
	doc = indent.String(wordwrap.String(dedent(doc), 72), 2)
	return strings.TrimSuffix(doc, "\n")
}

// dedent removes the indentation shared by every non-blank line after the
// first.  The first line of a docstring usually follows the opening quote
// directly.
func dedent(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\t", "    "), "\n")
	if len(lines) < 2 {
		return s
	}
	common := -1
	for _, line := range lines[1:] {
		trimmed := strings.TrimLeft(line, " ")
		if trimmed == "" {
			continue
		}
		if n := len(line) - len(trimmed); common < 0 || n < common {
			common = n
		}
	}
	if common <= 0 {
		return strings.Join(lines, "\n")
	}
	for i := 1; i < len(lines); i++ {
		if len(lines[i]) >= common {
			lines[i] = lines[i][common:]
		} else {
			lines[i] = strings.TrimLeft(lines[i], " ")
		}
	}
	return strings.Join(lines, "\n")
}
