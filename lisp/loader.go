// Copyright © 2018 The ELPS authors

package lisp

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Reader abstracts a parser implementation so that it may be implemented in a
// separate package as an optional/swappable component.
type Reader interface {
	// NewStream returns a Stream which parses forms from r, allocating them
	// in the heap of rt.
	NewStream(rt *Runtime, name string, r io.Reader) Stream
}

// Stream produces one form per call to Read.
type Stream interface {
	// Read parses the next form.  At the end of input Read returns io.EOF.
	// Malformed input is reported as a *SyntaxError, after which the stream
	// is positioned after the offending token.
	Read() (Value, error)
	// Offset returns the number of characters consumed so far.
	Offset() int
}

// SyntaxError is a reader error with its source position.
type SyntaxError struct {
	File string
	Line int
	Col  int
	Msg  string
	// EOF is true when the input ended in the middle of a form.
	EOF bool
}

func (e *SyntaxError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Col, e.Msg)
}

var langIOBuiltins = []*langBuiltin{
	{"read", 0, 1, builtinRead, `Reads one form from STREAM, which must be a string.`},
	{"read-from-string", 1, 3, builtinReadFromString,
		`Reads one form from STRING between START and END.  Returns a cons
		(OBJECT . FINAL-INDEX).`},
	{"load", 1, 5, builtinLoad,
		`Loads FILE through the source library.  Unless NOSUFFIX is non-nil
		FILE.el is tried before FILE.  With NOERROR a missing file returns
		nil.`},
	{"provide", 1, 2, builtinProvide, `Announces that FEATURE is available.`},
	{"require", 1, 3, builtinRequire,
		`Loads FILENAME, or the file named by FEATURE, unless FEATURE has been
		provided.  Signals an error if loading does not provide FEATURE.`},
	{"featurep", 1, 2, builtinFeaturep, `Returns t if FEATURE has been provided.`},
}

// readError converts a Stream error into a lisp condition.
func (c *Context) readError(err error) error {
	if errors.Is(err, io.EOF) {
		return c.Signal(SymEndOfFile)
	}
	var serr *SyntaxError
	if errors.As(err, &serr) {
		if serr.EOF {
			return c.Signal(SymEndOfFile)
		}
		return c.Signal(SymInvalidReadSyntax,
			c.rt.String(serr.Msg), Int(int64(serr.Line)), Int(int64(serr.Col)))
	}
	return c.Errorf("%v", err)
}

func (c *Context) newStream(name string, r io.Reader) (Stream, error) {
	if c.rt.Reader == nil {
		return nil, c.Errorf("no reader for runtime")
	}
	return c.rt.Reader.NewStream(c.rt, name, r), nil
}

// ReadFromString parses one form from s starting at character start.  It
// returns the form and the character index following it.
func (c *Context) ReadFromString(s string, start int) (Value, int, error) {
	if start > 0 {
		s = string([]rune(s)[start:])
	}
	stream, err := c.newStream("string", strings.NewReader(s))
	if err != nil {
		return Nil, 0, err
	}
	v, err := stream.Read()
	if err != nil {
		return Nil, 0, c.readError(err)
	}
	return v, start + stream.Offset(), nil
}

func builtinRead(c *Context, args []Value) (Value, error) {
	src := optArg(args, 0)
	if src.Tag() != TagString {
		return Nil, c.WrongType(SymStringp, src)
	}
	v, _, err := c.ReadFromString(c.rt.StringVal(src), 0)
	return v, err
}

func builtinReadFromString(c *Context, args []Value) (Value, error) {
	s, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	start, end, err := c.sliceBounds(args[0], optArg(args, 1), optArg(args, 2), utf8.RuneCountInString(s))
	if err != nil {
		return Nil, err
	}
	rs := []rune(s)
	v, next, err := c.ReadFromString(string(rs[:end]), start)
	if err != nil {
		return Nil, err
	}
	return c.rt.Cons(v, Int(int64(next))), nil
}

// lexicalCookie inspects the first line of src for a file local
// lexical-binding setting.
func lexicalCookie(src string) (lexical bool, ok bool) {
	line := src
	if i := strings.IndexByte(src, '\n'); i >= 0 {
		line = src[:i]
	}
	begin := strings.Index(line, "-*-")
	if begin < 0 {
		return false, false
	}
	line = line[begin+3:]
	end := strings.Index(line, "-*-")
	if end < 0 {
		return false, false
	}
	for _, field := range strings.Split(line[:end], ";") {
		key, val, found := strings.Cut(field, ":")
		if !found || strings.TrimSpace(key) != "lexical-binding" {
			continue
		}
		return strings.TrimSpace(val) != "nil", true
	}
	return false, false
}

// loadSource evaluates every form in src.  load-file-name and
// lexical-binding are bound for the duration of the load.
func (c *Context) loadSource(name, loc, src string) (Value, error) {
	lexical := c.Lexical
	if lex, ok := lexicalCookie(src); ok {
		lexical = lex
	}
	stream, err := c.newStream(name, strings.NewReader(src))
	if err != nil {
		return Nil, err
	}
	depth := len(c.specpdl)
	if err := c.specbind(SymLexicalBinding, Bool(lexical)); err != nil {
		return Nil, err
	}
	file := Nil
	if loc != "" {
		file = c.rt.String(loc)
	}
	if err := c.specbind(c.rt.Symbols.Intern("load-file-name"), file); err != nil {
		return c.unbind(depth, Nil, err)
	}
	c.rt.loading = append(c.rt.loading, loc)
	defer func() { c.rt.loading = c.rt.loading[:len(c.rt.loading)-1] }()
	env := Nil
	if lexical {
		env = emptyLexEnv
	}
	val := Nil
	for {
		form, rerr := stream.Read()
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return c.unbind(depth, Nil, c.readError(rerr))
		}
		mark := c.pin(form)
		val, err = c.eval(form, env)
		c.unpin(mark)
		if err != nil {
			return c.unbind(depth, Nil, err)
		}
	}
	return c.unbind(depth, val, nil)
}

// loadLibrary resolves loc through the runtime's SourceLibrary and loads
// it.  found is false when no candidate file could be read.
func (c *Context) loadLibrary(loc string, suffixes []string) (val Value, found bool, err error) {
	lib := c.rt.Library
	if lib == nil {
		return Nil, false, c.Errorf("no source library for runtime")
	}
	ctx := c.rt.sourceContext()
	var lerr error
	for _, suffix := range suffixes {
		name, resolved, src, err := lib.LoadSource(ctx, loc+suffix)
		if err != nil {
			lerr = err
			continue
		}
		for _, active := range c.rt.loading {
			if active == resolved {
				return Nil, true, c.Errorf("Recursive load: %s", resolved)
			}
		}
		v, err := c.loadSource(name, resolved, string(src))
		return v, true, err
	}
	c.rt.Logger.Debugf("load %s: %v", loc, lerr)
	return Nil, false, nil
}

// LoadString evaluates the forms in src at top level.  A lexical-binding
// cookie on the first line overrides the binding mode of c.
func (c *Context) LoadString(name, src string) (Value, error) {
	return c.toplevel(func() (Value, error) {
		return c.loadSource(name, "", src)
	})
}

// Load reads all of r and evaluates the forms it contains at top level.
func (c *Context) Load(name string, r io.Reader) (Value, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Nil, err
	}
	return c.LoadString(name, string(b))
}

// LoadFile uses the runtime's SourceLibrary to locate loc and evaluates
// the forms it contains.
func (c *Context) LoadFile(loc string) (Value, error) {
	return c.toplevel(func() (Value, error) {
		v, found, err := c.loadLibrary(loc, []string{""})
		if err == nil && !found {
			err = c.SignalValue(c.sym("file-missing"),
				c.rt.List(c.rt.String("Cannot open load file"), c.rt.String(loc)))
		}
		return v, err
	})
}

// EvalString evaluates the forms in src at top level in the binding mode
// of c and returns the value of the last one.
func (c *Context) EvalString(src string) (Value, error) {
	return c.toplevel(func() (Value, error) {
		stream, err := c.newStream("eval", strings.NewReader(src))
		if err != nil {
			return Nil, err
		}
		val := Nil
		for {
			form, err := stream.Read()
			if errors.Is(err, io.EOF) {
				return val, nil
			}
			if err != nil {
				return Nil, c.readError(err)
			}
			mark := c.pin(form)
			val, err = c.eval(form, c.topEnv())
			c.unpin(mark)
			if err != nil {
				return Nil, err
			}
		}
	})
}

// ReadString parses every form in src.  The forms are only valid until the
// next top level evaluation unless they are protected.
func (c *Context) ReadString(src string) ([]Value, error) {
	stream, err := c.newStream("string", strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	var forms []Value
	for {
		form, err := stream.Read()
		if errors.Is(err, io.EOF) {
			return forms, nil
		}
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
}

func builtinLoad(c *Context, args []Value) (Value, error) {
	file, err := c.checkString(args[0])
	if err != nil {
		return Nil, err
	}
	noerror := optArg(args, 1).Truthy()
	suffixes := []string{".el", ""}
	switch {
	case optArg(args, 3).Truthy():
		suffixes = []string{""}
	case optArg(args, 4).Truthy():
		suffixes = []string{".el"}
	}
	_, found, err := c.loadLibrary(file, suffixes)
	if err != nil {
		return Nil, err
	}
	if !found {
		if noerror {
			return Nil, nil
		}
		return Nil, c.SignalValue(c.sym("file-missing"),
			c.rt.List(c.rt.String("Cannot open load file"), c.rt.String("No such file or directory"), args[0]))
	}
	return T, nil
}

func (c *Context) featureList() Value {
	return c.rt.Symbols.Get(SymFeatures).Value
}

// Featurep returns true if feature has been provided.
func (c *Context) Featurep(feature Value) bool {
	tail, err := c.Memq(feature, c.featureList())
	return err == nil && tail.Truthy()
}

func builtinProvide(c *Context, args []Value) (Value, error) {
	feature := args[0]
	if _, err := c.checkSymbol(feature); err != nil {
		return Nil, err
	}
	if sub := optArg(args, 1); sub.Truthy() {
		if _, err := c.listSlice(sub); err != nil {
			return Nil, err
		}
		c.rt.Put(feature, c.sym("subfeatures"), sub)
	}
	c.rt.Provide(feature)
	return feature, nil
}

// Provide adds feature to the features list if it is not already present.
func (rt *Runtime) Provide(feature Value) {
	sym := rt.Symbols.Get(SymFeatures)
	for tail := sym.Value; tail.IsCons(); tail = rt.Cdr(tail) {
		if rt.Car(tail) == feature {
			return
		}
	}
	sym.Value = rt.Cons(feature, sym.Value)
}

func builtinFeaturep(c *Context, args []Value) (Value, error) {
	feature := args[0]
	if _, err := c.checkSymbol(feature); err != nil {
		return Nil, err
	}
	if !c.Featurep(feature) {
		return Nil, nil
	}
	sub := optArg(args, 1)
	if sub.IsNil() {
		return T, nil
	}
	subs := c.rt.Get(feature, c.sym("subfeatures"))
	found, err := c.Member(sub, subs)
	if err != nil {
		return Nil, err
	}
	return Bool(found.Truthy()), nil
}

func builtinRequire(c *Context, args []Value) (Value, error) {
	feature := args[0]
	if _, err := c.checkSymbol(feature); err != nil {
		return Nil, err
	}
	if c.Featurep(feature) {
		return feature, nil
	}
	file := c.rt.SymbolName(feature)
	if fv := optArg(args, 1); fv.Truthy() {
		var err error
		if file, err = c.checkString(fv); err != nil {
			return Nil, err
		}
	}
	for _, active := range c.rt.loading {
		if active != "" && strings.TrimSuffix(active, ".el") == strings.TrimSuffix(file, ".el") {
			return Nil, c.Errorf("Recursive ‘require’ for feature ‘%s’", c.rt.SymbolName(feature))
		}
	}
	_, found, err := c.loadLibrary(file, []string{".el", ""})
	if err != nil {
		return Nil, err
	}
	if !found {
		if optArg(args, 2).Truthy() {
			return Nil, nil
		}
		return Nil, c.SignalValue(c.sym("file-missing"),
			c.rt.List(c.rt.String("Cannot open load file"), c.rt.String("No such file or directory"), c.rt.String(file)))
	}
	if !c.Featurep(feature) {
		return Nil, c.Errorf("Loading file %s failed to provide feature ‘%s’", file, c.rt.SymbolName(feature))
	}
	return feature, nil
}
