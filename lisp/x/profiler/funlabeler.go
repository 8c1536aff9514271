package profiler

import (
	"regexp"
	"strings"

	"github.com/luthersystems/elisp/lisp"
)

// FunLabeler provides an alternative name for a function label in the trace.
type FunLabeler func(c *lisp.Context, fn lisp.Value) string

// WithDocLabeler labels spans using docstring magic strings.
func WithDocLabeler() Option {
	return WithFunLabeler(docFunLabeler)
}

// WithFunLabeler sets the labeler for tracing spans.
func WithFunLabeler(funLabeler FunLabeler) Option {
	return func(p *profiler) {
		p.funLabeler = funLabeler
	}
}

// DocLabel is a magic string used to extract function labels.
const DocLabel = `@trace\s*{([^}]+)}`

var (
	docLabelRegExp   = regexp.MustCompile(DocLabel)
	sanitizeRegExp   = regexp.MustCompile(`[\s_]+`)
	validLabelRegExp = regexp.MustCompile(`[[:graph:]]*`)
)

func sanitizeLabel(userLabel string) string {
	if userLabel == "" {
		return ""
	}
	userLabel = sanitizeRegExp.ReplaceAllString(userLabel, "_")
	if m := validLabelRegExp.FindString(userLabel); m != "" {
		return m
	}
	return ""
}

func extractLabel(doc string) string {
	if doc == "" {
		return ""
	}
	m := docLabelRegExp.FindStringSubmatch(doc)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func cleanLabel(doc string) string {
	return sanitizeLabel(extractLabel(doc))
}

func docFunLabeler(c *lisp.Context, fn lisp.Value) string {
	return cleanLabel(docstring(c, fn))
}
