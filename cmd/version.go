// Copyright © 2018 The ELPS authors

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/luthersystems/elisp/lisp"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the interpreter version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "elisp %s (Go %s)\n", lisp.ElispVersion, runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
