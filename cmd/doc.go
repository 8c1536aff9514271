// Copyright © 2021 The ELPS authors

package cmd

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/luthersystems/elisp/lisp"
)

var (
	docSourceFile string
	docMissing    bool
)

// docCmd represents the doc command
var docCmd = &cobra.Command{
	Use:   "doc [flags] SYMBOL...",
	Short: "Show documentation for functions and variables",
	Long: `Show built-in documentation for functions, macros, special forms and
variables.

Functions are shown with their argument list and docstring.  Bound
variables are shown with their value and variable documentation.  Use -f
to load a source file first (useful for documenting your own code).

Use --missing to list functions that lack a docstring; any arguments are
then name prefixes which restrict the listing.

Examples:
  elisp doc mapcar                  Show docs for mapcar
  elisp doc let defun               Show docs for a special form and a macro
  elisp doc -f mylib.el my-func     Load a file, then show docs for my-func
  elisp doc --missing json-         List undocumented json functions`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !docMissing && len(args) == 0 {
			_ = cmd.Help()
			return errSilent
		}
		out := bufio.NewWriter(os.Stdout)
		defer out.Flush() //nolint:errcheck // best-effort flush on exit
		return docExec(out, args)
	},
}

func docExec(w io.Writer, args []string) error {
	// Output of loaded source is kept in case loading fails.
	errbuf := &bytes.Buffer{}
	c, err := newContext(errbuf, errbuf)
	if err != nil {
		return err
	}
	defer c.Close()
	rt := c.Runtime()
	if docSourceFile != "" {
		if _, err := c.LoadFile(docSourceFile); err != nil {
			_, _ = os.Stderr.Write(errbuf.Bytes())
			return err
		}
	}
	if docMissing {
		return docUndocumented(c, w, args)
	}
	for i, name := range args {
		if i > 0 {
			io.WriteString(w, "\n") //nolint:errcheck // best-effort output
		}
		text, err := c.Call(rt.Symbol("help-describe-symbol"), rt.Symbol(name))
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, rt.StringVal(text)); err != nil {
			return err
		}
	}
	return nil
}

func docUndocumented(c *lisp.Context, w io.Writer, prefixes []string) error {
	rt := c.Runtime()
	if len(prefixes) == 0 {
		prefixes = []string{""}
	}
	for _, prefix := range prefixes {
		arg := lisp.Nil
		if prefix != "" {
			arg = rt.String(prefix)
		}
		names, err := c.Call(rt.Symbol("help-undocumented"), arg)
		if err != nil {
			return err
		}
		for _, name := range rt.ToSlice(names) {
			if _, err := io.WriteString(w, rt.SymbolName(name)+"\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(docCmd)

	docCmd.Flags().StringVarP(&docSourceFile, "source-file", "f", "",
		"Evaluate a lisp source file before querying documentation")
	docCmd.Flags().BoolVar(&docMissing, "missing", false,
		"List functions that have no docstring")
}
