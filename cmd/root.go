// Copyright © 2018 The ELPS authors

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var cfgFile string

var log = commonlog.GetLogger("elisp.cli")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "elisp",
	Short: "Emacs Lisp compatible interpreter",
	Long: `elisp runs Emacs Lisp programs outside of an editor.  It provides the
core language: numbers, conses, strings, vectors, records, hash tables,
symbols with dynamic and lexical binding, macros, non-local exits, a byte
compiler and bytecode virtual machine.

Getting started:
  elisp run file.el              Run a Lisp source file
  elisp run -e '(+ 1 2)' -p      Evaluate an expression and print it
  elisp eval '(mapcar #'1+ (list 1 2))'
  elisp repl                     Start an interactive REPL
  elisp compile -e '(lambda (x) (* x x))'
                                 Byte-compile a form and show its code
  elisp doc mapcar               Show documentation for a function

Optional libraries are provided at startup and available to require:
  json       json-serialize, json-parse-string, json-encode
  time-date  current-time, time-add, format-time-string, decode-time
  ert        ert-deftest, should, should-error, ert-run-tests
  help       help-describe-symbol, help-undocumented

Configuration is read from $HOME/.elisp.yaml and ELISP_* environment
variables.  Every long flag may be given as a configuration key.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		commonlog.Configure(viper.GetInt("verbose"), nil)
		if f := viper.ConfigFileUsed(); f != "" {
			log.Infof("using config file %s", f)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errSilent) {
			reportError(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.elisp.yaml)")
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (repeatable)")
	rootCmd.PersistentFlags().Bool("dynamic", false, "Use dynamic binding instead of lexical binding")
	rootCmd.PersistentFlags().Int("max-lisp-eval-depth", 1600, "Limit on the depth of nested evaluation")
	rootCmd.PersistentFlags().Int64("max-steps", 0, "Abort evaluation after this many steps (0 is unlimited)")
	rootCmd.PersistentFlags().Int("gc-cons-threshold", 0, "Allocations between collections (0 uses the default)")
	bindFlags(rootCmd)
}

// bindFlags makes every persistent flag of cmd available through viper.
func bindFlags(cmd *cobra.Command) {
	for _, name := range []string{"verbose", "dynamic", "max-lisp-eval-depth", "max-steps", "gc-cons-threshold"} {
		if err := viper.BindPFlag(name, cmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".elisp")
	}

	viper.SetEnvPrefix("elisp")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
	}
}
