package profiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/x/profiler"
)

func TestNewPprofAnnotator(t *testing.T) {
	rt := lisp.StandardRuntime()
	ppa := profiler.NewPprofAnnotator(rt, nil)
	runProfiled(t, rt, ppa)
	assert.True(t, ppa.IsEnabled())
	require.NoError(t, ppa.Complete())
	assert.Error(t, ppa.Enable(), "enabled twice")
}
