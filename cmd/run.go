// Copyright © 2018 The ELPS authors

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/x/profiler"
)

var (
	runExpression bool
	runPrint      bool
	runParallel   int
	runTrace      bool
	runProfile    string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [flags] FILE...",
	Short: "Run lisp code",
	Long: `Run lisp code supplied via the command line or a file.

Files are loaded in order into one runtime so later files see the
definitions of earlier ones.  With --parallel N files are instead loaded
concurrently, each into its own runtime, at most N at a time.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if runParallel > 1 && !runExpression {
			return runFilesParallel(cmd.Context(), args)
		}
		return runSources(cmd.Context(), os.Stdout, os.Stderr, args)
	},
}

// runSources evaluates args, as expressions or files, in a single context.
func runSources(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := newContext(stdout, stderr, lisp.WithContext(ctx))
	if err != nil {
		return err
	}
	defer c.Close()
	rt := c.Runtime()
	var complete func() error
	if runTrace || runProfile != "" {
		p, err := newProfiler(ctx, rt)
		if err != nil {
			return err
		}
		if err := p.Enable(); err != nil {
			return err
		}
		complete = p.Complete
	}
	for _, arg := range args {
		var v lisp.Value
		if runExpression {
			v, err = c.EvalString(arg)
		} else {
			v, err = c.LoadFile(arg)
		}
		if err != nil {
			return err
		}
		if runPrint {
			fmt.Fprintln(stdout, rt.Prin1String(v)) //nolint:errcheck // best-effort output
		}
	}
	if complete != nil {
		return complete()
	}
	return nil
}

// newProfiler returns the profiler selected by the run flags.
func newProfiler(ctx context.Context, rt *lisp.Runtime) (lisp.Profiler, error) {
	if runProfile != "" {
		p := profiler.NewCallgrindProfiler(rt)
		if err := p.SetFile(runProfile); err != nil {
			return nil, err
		}
		return p, nil
	}
	return profiler.NewOpenTelemetryAnnotator(rt, ctx, profiler.WithDocFilter(), profiler.WithDocLabeler()), nil
}

// runFilesParallel loads each file in its own runtime.  Output of each file
// is written once the file completes.
func runFilesParallel(ctx context.Context, files []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runParallel)
	var mu sync.Mutex
	for _, file := range files {
		file := file
		g.Go(func() error {
			out := &bytes.Buffer{}
			c, err := newContext(out, out, lisp.WithContext(ctx))
			if err != nil {
				return err
			}
			defer c.Close()
			v, err := c.LoadFile(file)
			mu.Lock()
			defer mu.Unlock()
			_, _ = os.Stdout.Write(out.Bytes())
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			if runPrint {
				fmt.Fprintln(os.Stdout, c.Runtime().Prin1String(v)) //nolint:errcheck // best-effort output
			}
			log.Debugf("loaded %s", file)
			return nil
		})
	}
	return g.Wait()
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVarP(&runExpression, "expression", "e", false,
		"Interpret arguments as lisp expressions")
	runCmd.Flags().BoolVarP(&runPrint, "print", "p", false,
		"Print expression values to stdout")
	runCmd.Flags().IntVarP(&runParallel, "parallel", "j", 1,
		"Load files concurrently in independent runtimes")
	runCmd.Flags().BoolVar(&runTrace, "trace", false,
		"Record OpenTelemetry spans for functions whose docstring contains @trace")
	runCmd.Flags().StringVar(&runProfile, "profile", "",
		"Write a callgrind profile of function calls to this file")
}
