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
	"github.com/luthersystems/elisp/lisp/lisplib/libtesting"
)

var testParallel int

var testCmd = &cobra.Command{
	Use:   "test [flags] FILE...",
	Short: "Run ert tests defined in lisp files",
	Long: `Load each file into its own runtime and run the tests it defines with
ert-deftest.  Files are processed concurrently, at most --parallel at a
time.  The command fails if any test fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		summary, err := testFiles(ctx, os.Stdout, args)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Ran %d tests, %d passed, %d failed, %d skipped\n", //nolint:errcheck // best-effort output
			summary.total(), summary.passed, summary.failed, summary.skipped)
		if summary.failed > 0 {
			return errSilent
		}
		return nil
	},
}

type testSummary struct {
	passed, failed, skipped int
}

func (s *testSummary) total() int {
	return s.passed + s.failed + s.skipped
}

// testFiles runs the tests of every file and writes a report per file to w.
func testFiles(ctx context.Context, w io.Writer, files []string) (*testSummary, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(testParallel, 1))
	var (
		mu      sync.Mutex
		summary testSummary
	)
	for _, file := range files {
		file := file
		g.Go(func() error {
			var report bytes.Buffer
			s, err := testFile(ctx, &report, file)
			mu.Lock()
			defer mu.Unlock()
			_, _ = w.Write(report.Bytes())
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			summary.passed += s.passed
			summary.failed += s.failed
			summary.skipped += s.skipped
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &summary, nil
}

func testFile(ctx context.Context, w io.Writer, file string) (*testSummary, error) {
	c, err := newContext(w, w, lisp.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer c.Close()
	if _, err := c.LoadFile(file); err != nil {
		return nil, err
	}
	var s testSummary
	for _, t := range libtesting.Tests(c.Runtime()) {
		r, err := libtesting.Run(c, t.Name)
		if err != nil {
			return nil, err
		}
		switch {
		case r.Skipped:
			s.skipped++
			fmt.Fprintf(w, "  SKIPPED  %s\n", t.Name) //nolint:errcheck // best-effort output
		case r.Passed:
			s.passed++
			fmt.Fprintf(w, "   passed  %s\n", t.Name) //nolint:errcheck // best-effort output
		default:
			s.failed++
			fmt.Fprintf(w, "   FAILED  %s\n", t.Name) //nolint:errcheck // best-effort output
			reportError(w, r.Condition)
		}
	}
	log.Debugf("%s: %d tests", file, s.total())
	return &s, nil
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().IntVarP(&testParallel, "parallel", "j", 4,
		"Maximum number of files tested concurrently")
}
