// Copyright © 2018 The ELPS authors

package elisptest

import (
	"bytes"
	"io"
	"testing"
)

// Logger is an io.Writer which sends complete lines to a test log.
type Logger struct {
	t      testing.TB
	prefix string
	buf    []byte
}

var _ io.Writer = (*Logger)(nil)

func NewLogger(t testing.TB) *Logger {
	return &Logger{
		t: t,
	}
}

// WithPrefix returns a Logger writing to the same test with each line
// prefixed by p.
func (log *Logger) WithPrefix(p string) *Logger {
	return &Logger{t: log.t, prefix: p}
}

func (log *Logger) Write(b []byte) (int, error) {
	log.buf = append(log.buf, b...)
	for {
		i := bytes.IndexByte(log.buf, '\n')
		if i < 0 {
			return len(b), nil
		}
		log.t.Log(log.prefix + string(log.buf[:i]))
		log.buf = log.buf[i+1:]
	}
}

// Flush logs any partial line remaining in the buffer.
func (log *Logger) Flush() {
	if len(log.buf) == 0 {
		return
	}
	log.t.Log(log.prefix + string(log.buf))
	log.buf = nil
}
