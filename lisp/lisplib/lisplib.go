// Copyright © 2018 The ELPS authors

// Package lisplib is used to conveniently load the optional libraries into
// an elisp runtime.
package lisplib

import (
	"github.com/luthersystems/elisp/lisp"
	"github.com/luthersystems/elisp/lisp/lisplib/libhelp"
	"github.com/luthersystems/elisp/lisp/lisplib/libjson"
	"github.com/luthersystems/elisp/lisp/lisplib/libtesting"
	"github.com/luthersystems/elisp/lisp/lisplib/libtime"
	"github.com/luthersystems/elisp/parser"
)

// Library is an optional library installed by LoadLibrary.
type Library struct {
	Feature string
	Install func(rt *lisp.Runtime)
}

// Libraries lists the optional libraries in installation order.
var Libraries = []Library{
	{libjson.Feature, libjson.Install},
	{libtime.Feature, libtime.Install},
	{libtesting.Feature, libtesting.Install},
	{libhelp.Feature, libhelp.Install},
}

// LoadLibrary installs every optional library into rt.  Each library
// provides its feature, so require finds it without loading a file.
func LoadLibrary(rt *lisp.Runtime) {
	for _, lib := range Libraries {
		lib.Install(rt)
	}
}

// NewContext creates a runtime with the standard reader, a file system
// library rooted at the working directory and the optional libraries loaded,
// and returns its first context.
func NewContext(config ...lisp.Config) (*lisp.Context, error) {
	rt := lisp.StandardRuntime()
	rt.Reader = parser.NewReader()
	rt.Library = &lisp.RelativeFileSystemLibrary{}
	LoadLibrary(rt)
	return rt.NewContext(config...)
}
