// Copyright © 2018 The ELPS authors

package lisp

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SourceContext describes the file being loaded when a library is asked
// to resolve another source file.
type SourceContext interface {
	// Name returns the name of the file currently loading, if any.
	Name() string
	// Location returns the resolved location of the file currently
	// loading, if any.
	Location() string
}

// SourceLibrary resolves the file names given to load and require.
type SourceLibrary interface {
	// LoadSource returns the name, canonical location and contents of the
	// source file loc.  Relative locations are resolved against ctx.
	LoadSource(ctx SourceContext, loc string) (name string, location string, data []byte, err error)
}

type sourceContext struct {
	name string
	loc  string
}

func (ctx *sourceContext) Name() string {
	return ctx.name
}

func (ctx *sourceContext) Location() string {
	return ctx.loc
}

// RelativeFileSystemLibrary loads files from the local file system.
// Relative paths are resolved against the directory of the file currently
// loading, or the working directory at top level.  When RootDir is set no
// file outside of it may be loaded.
type RelativeFileSystemLibrary struct {
	RootDir string
}

var _ SourceLibrary = (*RelativeFileSystemLibrary)(nil)

// LoadSource implements SourceLibrary.
func (lib *RelativeFileSystemLibrary) LoadSource(ctx SourceContext, loc string) (string, string, []byte, error) {
	if !filepath.IsAbs(loc) && ctx != nil && ctx.Location() != "" {
		loc = filepath.Join(filepath.Dir(ctx.Location()), loc)
	}
	abs, err := filepath.Abs(loc)
	if err != nil {
		return "", "", nil, err
	}
	if lib.RootDir != "" {
		root, err := filepath.Abs(lib.RootDir)
		if err != nil {
			return "", "", nil, err
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", "", nil, fmt.Errorf("file outside of library root: %s", loc)
		}
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return "", "", nil, err
	}
	return filepath.Base(abs), abs, b, nil
}

// FSLibrary loads files from an fs.FS.  Locations use forward slashes and
// are relative to the root of FS.
type FSLibrary struct {
	FS fs.FS
}

var _ SourceLibrary = (*FSLibrary)(nil)

// LoadSource implements SourceLibrary.
func (lib *FSLibrary) LoadSource(ctx SourceContext, loc string) (string, string, []byte, error) {
	if !path.IsAbs(loc) && ctx != nil && ctx.Location() != "" {
		loc = path.Join(path.Dir(ctx.Location()), loc)
	}
	loc = strings.TrimPrefix(path.Clean(loc), "/")
	if !fs.ValidPath(loc) {
		return "", "", nil, fmt.Errorf("invalid library path: %s", loc)
	}
	b, err := fs.ReadFile(lib.FS, loc)
	if err != nil {
		return "", "", nil, err
	}
	return path.Base(loc), loc, b, nil
}

// sourceContext returns the file loaded by the innermost active load.
func (rt *Runtime) sourceContext() SourceContext {
	if n := len(rt.loading); n > 0 {
		loc := rt.loading[n-1]
		return &sourceContext{name: filepath.Base(loc), loc: loc}
	}
	return &sourceContext{}
}
