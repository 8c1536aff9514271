// Copyright © 2018 The ELPS authors

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/viper"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/lisplib"
)

// newContext creates a context with the optional libraries loaded and the
// evaluation limits taken from configuration.
func newContext(stdout, stderr io.Writer, config ...lisp.Config) (*lisp.Context, error) {
	base := []lisp.Config{
		lisp.WithStdout(stdout),
		lisp.WithStderr(stderr),
		lisp.WithLexicalBinding(!viper.GetBool("dynamic")),
	}
	if n := viper.GetInt("max-lisp-eval-depth"); n > 0 {
		base = append(base, lisp.WithMaxLispEvalDepth(n))
	}
	if n := viper.GetInt64("max-steps"); n > 0 {
		base = append(base, lisp.WithMaxSteps(n))
	}
	if n := viper.GetInt("gc-cons-threshold"); n > 0 {
		base = append(base, lisp.WithGCThreshold(n))
	}
	return lisplib.NewContext(append(base, config...)...)
}

// reportError writes err to w, including the backtrace of lisp signals.
func reportError(w io.Writer, err error) {
	var sig *lisp.Signal
	if errors.As(err, &sig) {
		_, _ = sig.WriteTrace(w)
		return
	}
	fmt.Fprintln(w, err) //nolint:errcheck // best-effort error display
}

// errSilent is returned by commands that already reported their failure.
var errSilent = errors.New("")
