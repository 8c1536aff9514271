// Copyright © 2018 The ELPS authors

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/luthersystems/elisp/lisp"
)

var (
	compileExpression bool
	disasmSourceFile  string
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] FILE|-e FORM",
	Short: "Byte-compile functions and print their code",
	Long: `Byte-compile lisp code and print a disassembly of the result.

With -e the argument is a function form, such as a lambda expression,
which is compiled and disassembled.  Otherwise the argument is a file;
it is loaded and every function it defines is compiled and disassembled.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return compileSource(os.Stdout, args[0], compileExpression)
	},
}

var disasmCmd = &cobra.Command{
	Use:   "disasm [flags] FUNCTION...",
	Short: "Disassemble named functions",
	Long: `Byte-compile the named functions, if they are not compiled already,
and print their bytecode.  Use -f to load a source file first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newContext(os.Stderr, os.Stderr)
		if err != nil {
			return err
		}
		defer c.Close()
		if disasmSourceFile != "" {
			if _, err := c.LoadFile(disasmSourceFile); err != nil {
				return err
			}
		}
		rt := c.Runtime()
		for _, name := range args {
			if err := disassemble(c, os.Stdout, rt.Symbol(name)); err != nil {
				return err
			}
		}
		return nil
	},
}

// compileSource compiles an expression or the functions defined by a file.
func compileSource(w io.Writer, arg string, expr bool) error {
	c, err := newContext(os.Stderr, os.Stderr)
	if err != nil {
		return err
	}
	defer c.Close()
	rt := c.Runtime()
	if expr {
		forms, err := c.ReadString(arg)
		if err != nil {
			return err
		}
		if len(forms) != 1 {
			return fmt.Errorf("expected one form, got %d", len(forms))
		}
		fn, err := c.Call(rt.Symbol("byte-compile"), forms[0])
		if err != nil {
			return err
		}
		release := rt.Protect(fn)
		defer release()
		return disassemble(c, w, fn)
	}
	before := make(map[lisp.SymbolID]lisp.Value)
	rt.Symbols.Each(func(id lisp.SymbolID, sym *lisp.Symbol) bool {
		before[id] = sym.Function
		return true
	})
	if _, err := c.LoadFile(arg); err != nil {
		return err
	}
	var defined []lisp.Value
	rt.Symbols.Each(func(id lisp.SymbolID, sym *lisp.Symbol) bool {
		f := sym.Function
		if old, ok := before[id]; ok && old == f {
			return true
		}
		if f.Tag() == lisp.TagFunction {
			switch rt.Fun(f).Kind {
			case lisp.FuncInterpreted, lisp.FuncCompiled:
				defined = append(defined, rt.Symbol(sym.Name))
			}
		}
		return true
	})
	for _, sym := range defined {
		if err := disassemble(c, w, sym); err != nil {
			return err
		}
	}
	return nil
}

// disassemble compiles fn if needed and writes its listing.
func disassemble(c *lisp.Context, w io.Writer, fn lisp.Value) error {
	rt := c.Runtime()
	if fn.IsSymbol() {
		if _, err := c.Call(rt.Symbol("byte-compile"), fn); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s:\n", rt.SymbolName(fn)) //nolint:errcheck // best-effort output
	}
	text, err := c.Call(rt.Symbol("disassemble"), fn)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, rt.StringVal(text))
	return err
}

func init() {
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(disasmCmd)

	compileCmd.Flags().BoolVarP(&compileExpression, "expression", "e", false,
		"Interpret the argument as a function form")
	disasmCmd.Flags().StringVarP(&disasmSourceFile, "source-file", "f", "",
		"Load a lisp source file before disassembling")
}
