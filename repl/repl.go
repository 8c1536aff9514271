// Copyright © 2018 The ELPS authors

package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/lisplib"
)

type config struct {
	stdin   io.ReadCloser
	stderr  io.WriteCloser
	history string
	noHist  bool
	lisp    []lisp.Config
}

func newConfig(opts ...Option) *config {
	config := &config{history: historyPath()}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

type Option func(*config)

// WithStdin allows overriding the input to the REPL.
func WithStdin(stdin io.ReadCloser) Option {
	return func(c *config) {
		c.stdin = stdin
	}
}

// WithStderr allows overriding the output of the REPL.  Printed values and
// lisp output both go to stderr.
func WithStderr(stderr io.WriteCloser) Option {
	return func(c *config) {
		c.stderr = stderr
	}
}

// WithHistoryFile sets the readline history file.  An empty path disables
// history.
func WithHistoryFile(path string) Option {
	return func(c *config) {
		c.history = path
		c.noHist = path == ""
	}
}

// WithLispConfig passes configuration to the context created by RunRepl.
func WithLispConfig(lcfg ...lisp.Config) Option {
	return func(c *config) {
		c.lisp = append(c.lisp, lcfg...)
	}
}

// RunRepl runs a simple repl in a fresh runtime with the standard libraries
// loaded.
func RunRepl(prompt string, opts ...Option) error {
	cfg := newConfig(opts...)
	var lcfg []lisp.Config
	if cfg.stderr != nil {
		lcfg = append(lcfg, lisp.WithStdout(cfg.stderr), lisp.WithStderr(cfg.stderr))
	}
	c, err := lisplib.NewContext(append(lcfg, cfg.lisp...)...)
	if err != nil {
		return fmt.Errorf("language initialization failure: %w", err)
	}
	defer c.Close()
	return RunContext(c, prompt, strings.Repeat(" ", len(prompt)), opts...)
}

// RunContext reads forms from the terminal and evaluates them in c until
// the input is exhausted.  Forms may span lines; cont is shown as the prompt
// while a form is incomplete.
func RunContext(c *lisp.Context, prompt, cont string, opts ...Option) error {
	cfg := newConfig(opts...)
	rt := c.Runtime()
	out := rt.Stderr
	if cfg.stderr != nil {
		out = cfg.stderr
	}
	rlCfg := &readline.Config{
		Stdout:            out,
		Stderr:            out,
		Prompt:            prompt,
		HistorySearchFold: true,
		AutoComplete:      &symbolCompleter{symbols: rt.Symbols},
	}
	if !cfg.noHist && cfg.history != "" {
		ensureHistoryFilePermissions(cfg.history)
		rlCfg.HistoryFile = cfg.history
	}
	if cfg.stdin != nil {
		rlCfg.Stdin = cfg.stdin
	}
	rl, err := readline.NewEx(rlCfg)
	if err != nil {
		return err
	}
	defer rl.Close() //nolint:errcheck // best-effort cleanup

	var pending strings.Builder
	for {
		if pending.Len() == 0 {
			rl.SetPrompt(prompt)
		} else {
			rl.SetPrompt(cont)
		}
		line, err := rl.ReadSlice()
		if errors.Is(err, readline.ErrInterrupt) {
			pending.Reset()
			continue
		}
		if err != nil {
			if pending.Len() > 0 {
				evalInput(c, out, pending.String())
			}
			return nil
		}
		if pending.Len() == 0 && len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		pending.Write(line)
		pending.WriteByte('\n')
		if incomplete(c, pending.String()) {
			continue
		}
		evalInput(c, out, pending.String())
		pending.Reset()
	}
}

// incomplete reports whether src ends inside an unfinished form.
func incomplete(c *lisp.Context, src string) bool {
	_, err := c.ReadString(src)
	var serr *lisp.SyntaxError
	return errors.As(err, &serr) && serr.EOF
}

// evalInput evaluates each form in src and prints its value.
func evalInput(c *lisp.Context, w io.Writer, src string) {
	rt := c.Runtime()
	forms, err := c.ReadString(src)
	if err != nil {
		fmt.Fprintln(w, err) //nolint:errcheck // best-effort error display
		return
	}
	releases := make([]func(), len(forms))
	for i, form := range forms {
		releases[i] = rt.Protect(form)
	}
	defer func() {
		for _, release := range releases {
			release()
		}
	}()
	for _, form := range forms {
		v, err := c.Eval(form)
		if err != nil {
			renderError(w, err)
			return
		}
		fmt.Fprintln(w, rt.Prin1String(v)) //nolint:errcheck // best-effort REPL output
	}
}

// renderError writes err and, for lisp signals, the backtrace.
func renderError(w io.Writer, err error) {
	var sig *lisp.Signal
	if errors.As(err, &sig) {
		_, _ = sig.WriteTrace(w)
		return
	}
	fmt.Fprintf(w, "error: %v\n", err) //nolint:errcheck // best-effort error display
}

// ensureHistoryFilePermissions creates the history file if needed and
// restricts it to the owner.
func ensureHistoryFilePermissions(path string) {
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600)
	if err != nil {
		return
	}
	_ = f.Close()
	_ = os.Chmod(path, 0o600)
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".elisp_history")
}
