// Copyright © 2018 The ELPS authors

package lisp_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthersystems/elisp/lisp"
)

var libraryFS = fstest.MapFS{
	"lib/greet.el": {Data: []byte(`
(require 'util)
(defun greet (name) (concat (util-prefix) name))
(provide 'greet)`)},
	"lib/util.el": {Data: []byte(`
(defun util-prefix () "hello ")
(provide 'util)`)},
	"lib/noprovide.el": {Data: []byte(`(defvar noprovide-loaded t)`)},
	"lib/loop-a.el": {Data: []byte(`(require 'loop-b) (provide 'loop-a)`)},
	"lib/loop-b.el": {Data: []byte(`(require 'loop-a) (provide 'loop-b)`)},
	"lib/dynamic.el": {Data: []byte(`;; -*- lexical-binding: nil -*-
(defvar seen-binding lexical-binding)`)},
	"lib/lexical.el": {Data: []byte(`(defvar seen-lexical lexical-binding)
(defvar seen-file load-file-name)`)},
	"main.el": {Data: []byte(`(load "lib/util") (util-prefix)`)},
}

func signalName(t *testing.T, err error) string {
	t.Helper()
	var sig *lisp.Signal
	require.True(t, errors.As(err, &sig), "%v", err)
	return sig.Name()
}

func TestFSLibrary(t *testing.T) {
	c := newContext(t, lisp.WithLibrary(&lisp.FSLibrary{FS: libraryFS}))
	rt := c.Runtime()

	v, err := c.LoadFile("main.el")
	require.NoError(t, err)
	assert.Equal(t, `"hello "`, rt.Prin1String(v))

	v, err = c.EvalString(`(progn (load "lib/greet") (greet "world"))`)
	require.NoError(t, err)
	assert.Equal(t, `"hello world"`, rt.Prin1String(v))
	assert.True(t, c.Featurep(rt.Symbol("greet")))
	assert.True(t, c.Featurep(rt.Symbol("util")))

	v, err = c.EvalString(`(list (load "lib/dynamic") seen-binding (load "lib/lexical") seen-lexical seen-file)`)
	require.NoError(t, err)
	assert.Equal(t, `(t nil t t "lib/lexical.el")`, rt.Prin1String(v))

	v, err = c.EvalString(`(load "lib/missing" t)`)
	require.NoError(t, err)
	assert.Equal(t, lisp.Nil, v)

	_, err = c.EvalString(`(load "lib/missing")`)
	assert.Equal(t, "file-missing", signalName(t, err))

	_, err = c.LoadFile("nowhere.el")
	assert.Equal(t, "file-missing", signalName(t, err))

	_, err = c.EvalString(`(load "../escape")`)
	assert.Equal(t, "file-missing", signalName(t, err))
}

func TestRequire(t *testing.T) {
	c := newContext(t, lisp.WithLibrary(&lisp.FSLibrary{FS: libraryFS}))
	rt := c.Runtime()

	v, err := c.EvalString(`(require 'greet "lib/greet")`)
	require.NoError(t, err)
	assert.Equal(t, "greet", rt.Prin1String(v))

	// A provided feature is not loaded again.
	_, err = c.EvalString(`(progn (fmakunbound 'greet) (require 'greet "lib/greet") (fboundp 'greet))`)
	require.NoError(t, err)
	v, err = c.EvalString(`(fboundp 'greet)`)
	require.NoError(t, err)
	assert.Equal(t, lisp.Nil, v)

	v, err = c.EvalString(`(require 'absent nil t)`)
	require.NoError(t, err)
	assert.Equal(t, lisp.Nil, v)

	v, err = c.EvalString(`(condition-case err (require 'absent) (file-missing (car err)))`)
	require.NoError(t, err)
	assert.Equal(t, "file-missing", rt.Prin1String(v))

	_, err = c.EvalString(`(require 'noprovide "lib/noprovide")`)
	var sig *lisp.Signal
	require.True(t, errors.As(err, &sig), "%v", err)
	assert.Contains(t, sig.Error(), "failed to provide feature")

	_, err = c.EvalString(`(require 'loop-a "lib/loop-a")`)
	require.True(t, errors.As(err, &sig), "%v", err)
	assert.Contains(t, sig.Error(), "Recursive")
	assert.Zero(t, c.SpecDepth())
}

func TestRelativeFileSystemLibrary(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	write := func(name, src string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	write("pkg/entry.el", `(load "helper") (defvar entry-value (helper-value))`)
	write("pkg/helper.el", `(defun helper-value () 'from-helper)`)
	write("pkg/escape.el", `(load "../../outside")`)

	c := newContext(t, lisp.WithLibrary(&lisp.RelativeFileSystemLibrary{RootDir: dir}))
	rt := c.Runtime()

	_, err := c.LoadFile(filepath.Join(sub, "entry.el"))
	require.NoError(t, err)
	v, err := c.EvalString(`entry-value`)
	require.NoError(t, err)
	assert.Equal(t, "from-helper", rt.Prin1String(v))

	// Files outside of the root are never read.
	_, err = c.LoadFile(filepath.Join(sub, "escape.el"))
	assert.Equal(t, "file-missing", signalName(t, err))
}

func TestReadFromString(t *testing.T) {
	c := newContext(t)
	rt := c.Runtime()
	for _, test := range []struct {
		src  string
		want string
	}{
		{`(read-from-string "(a . b) rest")`, "((a . b) . 7)"},
		{`(read-from-string "x y" 2)`, "(y . 3)"},
		{`(car (read-from-string "#s(point 1 2)"))`, "#s(point 1 2)"},
		{`(read "?a")`, "97"},
		{`(condition-case err (read-from-string "(1 2") (end-of-file (car err)))`, "end-of-file"},
	} {
		v, err := c.EvalString(test.src)
		require.NoError(t, err, test.src)
		assert.Equal(t, test.want, rt.Prin1String(v), test.src)
	}

	forms, err := c.ReadString(`(a) b "c"`)
	require.NoError(t, err)
	assert.Len(t, forms, 3)
}
