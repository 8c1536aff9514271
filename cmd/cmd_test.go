// Copyright © 2018 The ELPS authors

package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/elisp/lisp"
)

func TestEvalExpressions(t *testing.T) {
	var out, errout bytes.Buffer
	stdin := strings.NewReader(`(setq from-stdin 'yes) from-stdin`)
	err := evalExpressions(stdin, &out, &errout, []string{`(+ 1 2)`, `(list "a" 'b)`, "-"})
	require.NoError(t, err)
	assert.Equal(t, "3\n(\"a\" b)\nyes\n", out.String())

	err = evalExpressions(stdin, &out, &errout, []string{`(car 1)`})
	var sig *lisp.Signal
	require.True(t, errors.As(err, &sig), "%v", err)
	assert.Equal(t, "wrong-type-argument", sig.Name())
}

func TestRunSources(t *testing.T) {
	defer func(e, p bool) { runExpression, runPrint = e, p }(runExpression, runPrint)

	var out bytes.Buffer
	runExpression, runPrint = false, false
	require.NoError(t, runSources(context.Background(), &out, &out, []string{filepath.Join("testdata", "square.el")}))
	assert.Equal(t, "14", out.String())

	out.Reset()
	runExpression, runPrint = true, true
	require.NoError(t, runSources(context.Background(), &out, &out, []string{`(defun f (x) (1+ x))`, `(f 41)`}))
	assert.Equal(t, "f\n42\n", out.String())
}

func TestRunProfile(t *testing.T) {
	defer func(p string) { runProfile = p }(runProfile)
	runProfile = filepath.Join(t.TempDir(), "callgrind.out")
	var out bytes.Buffer
	require.NoError(t, runSources(context.Background(), &out, &out, []string{filepath.Join("testdata", "square.el")}))
	assert.FileExists(t, runProfile)
}

func TestCompileSource(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, compileSource(&out, `(lambda (x) (car x))`, true))
	assert.Contains(t, out.String(), "car")
	assert.Contains(t, out.String(), "return")

	out.Reset()
	require.NoError(t, compileSource(&out, filepath.Join("testdata", "square.el"), false))
	assert.Contains(t, out.String(), "square:\n")
	assert.Contains(t, out.String(), "sum-squares:\n")

	assert.Error(t, compileSource(&out, `(lambda ()) (lambda ())`, true))
}

func TestDocExec(t *testing.T) {
	defer func(f string, m bool) { docSourceFile, docMissing = f, m }(docSourceFile, docMissing)

	var out bytes.Buffer
	docSourceFile, docMissing = filepath.Join("testdata", "square.el"), false
	require.NoError(t, docExec(&out, []string{"square"}))
	assert.Contains(t, out.String(), "Return X squared.")

	out.Reset()
	docMissing = true
	require.NoError(t, docExec(&out, []string{"sum-"}))
	assert.Equal(t, "sum-squares\n", out.String())
}

func TestTestFiles(t *testing.T) {
	var out bytes.Buffer
	summary, err := testFiles(context.Background(), &out, []string{
		filepath.Join("testdata", "square-test.el"),
		filepath.Join("testdata", "failing-test.el"),
	})
	require.NoError(t, err)
	assert.Equal(t, testSummary{passed: 2, failed: 1, skipped: 1}, *summary)
	assert.Contains(t, out.String(), "FAILED  arithmetic-is-broken")
	assert.Contains(t, out.String(), "SKIPPED  square-skipped")
}
