package profiler_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/x/profiler"
)

func TestNewCallgrind(t *testing.T) {
	rt := lisp.StandardRuntime()
	p := profiler.NewCallgrindProfiler(rt)
	assert.Error(t, p.Enable(), "enabled without output")

	var buf bytes.Buffer
	require.NoError(t, p.SetWriter(&buf))
	runProfiled(t, rt, p)
	require.NoError(t, p.Complete())

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "version: 1\ncreator: elisp "))
	assert.Contains(t, out, "events: Time_(ns) Memory_(bytes)")
	assert.Contains(t, out, ") recurse-it\n")
	assert.Contains(t, out, ") ENTRYPOINT\n")
	assert.Contains(t, out, "calls=1 0 0\n")
	assert.Contains(t, out, "\nsummary ")
	assert.Contains(t, out, "fl=(1) -\n")
}

func TestCallgrindFile(t *testing.T) {
	rt := lisp.StandardRuntime()
	p := profiler.NewCallgrindProfiler(rt)
	require.NoError(t, p.SetFile(filepath.Join(t.TempDir(), "callgrind.out")))
	runProfiled(t, rt, p)
	require.NoError(t, p.Complete())
}
