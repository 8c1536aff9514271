// Copyright © 2018 The ELPS authors

// NOTE:  This file uses package name suffixed with _test to avoid an import
// cycle.  packages outside the standard library shouldn't need to use a _test
// suffix in their test files.
package libtime_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/elisp/elisptest"
	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/lisplib/libtime"
	"github.com/luthersystems/elisp/parser"
)

func TestPackage(t *testing.T) {
	r := &elisptest.Runner{}
	r.RunTestFile(t, "libtime_test.el")
}

func TestFormatTime(t *testing.T) {
	tm := time.Date(2021, time.March, 4, 5, 6, 7, 123456789, time.UTC)
	for _, test := range []struct {
		format string
		want   string
	}{
		{"%Y-%m-%d", "2021-03-04"},
		{"%H:%M:%S", "05:06:07"},
		{"%S.%N", "07.123456789"},
		{"%S.%3N", "07.123"},
		{"%%N %N", "%N 123456789"},
		{"%N%N", "123456789123456789"},
	} {
		assert.Equal(t, test.want, libtime.FormatTime(test.format, tm), test.format)
	}
}

func TestSleepForDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	c, err := lisp.New(lisp.WithReader(parser.NewReader()), lisp.WithContext(ctx))
	require.NoError(t, err)
	defer c.Close()
	libtime.Install(c.Runtime())

	start := time.Now()
	_, err = c.EvalString(`(sleep-for 10)`)
	var sig *lisp.Signal
	require.True(t, errors.As(err, &sig), "%v", err)
	assert.Equal(t, c.Runtime().Symbol("deadline-exceeded"), sig.Symbol)
	assert.Less(t, time.Since(start), 5*time.Second)
}
