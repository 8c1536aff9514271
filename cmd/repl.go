// Copyright © 2018 The ELPS authors

package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luthersystems/elisp/repl"
)

// replCmd represents the repl command
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive lisp REPL",
	Long: `Start an interactive read-eval-print loop.

The optional libraries are loaded and provided.  Forms may span several
lines; the value of each form is printed once it is complete.  Line
editing, history and symbol completion (Tab) are supported via readline.
Use Ctrl-D to exit and Ctrl-C to discard the pending input.

Example REPL session:
  elisp> (+ 1 2)
  3
  elisp> (defun square (x)
           (* x x))
  square
  elisp> (square 5)
  25
  elisp> (mapcar #'square '(1 2 3))
  (1 4 9)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newContext(os.Stderr, os.Stderr)
		if err != nil {
			return err
		}
		defer c.Close()
		prompt := filepath.Base(os.Args[0]) + "> "
		var opts []repl.Option
		if viper.IsSet("history-file") {
			opts = append(opts, repl.WithHistoryFile(viper.GetString("history-file")))
		}
		return repl.RunContext(c, prompt, strings.Repeat(" ", len(prompt)), opts...)
	},
}

func init() {
	rootCmd.AddCommand(replCmd)

	replCmd.Flags().String("history-file", "", "Readline history file (empty disables history)")
	if err := viper.BindPFlag("history-file", replCmd.Flags().Lookup("history-file")); err != nil {
		panic(err)
	}
}
