// Copyright © 2018 The ELPS authors

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/luthersystems/elisp/lisp"
)

var evalCmd = &cobra.Command{
	Use:   "eval EXPR...",
	Short: "Evaluate expressions and print their values",
	Long: `Evaluate each argument as lisp source and print the value of its last
form.  An argument of "-" reads source from standard input.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return evalExpressions(os.Stdin, os.Stdout, os.Stderr, args)
	},
}

func evalExpressions(stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	c, err := newContext(stdout, stderr)
	if err != nil {
		return err
	}
	defer c.Close()
	rt := c.Runtime()
	for _, arg := range args {
		var v lisp.Value
		if arg == "-" {
			v, err = c.Load("stdin", stdin)
		} else {
			v, err = c.EvalString(arg)
		}
		if err != nil {
			return err
		}
		out := rt.Prin1String(v)
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		if _, err := io.WriteString(stdout, out); err != nil {
			return fmt.Errorf("write: %w", err)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(evalCmd)
}
