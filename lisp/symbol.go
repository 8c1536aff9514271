// Copyright © 2018 The ELPS authors

package lisp

import (
	"strings"
)

// SymbolID is the index of a Symbol in a SymbolTable.
type SymbolID uint32

// SymbolFlag is a bit set of symbol properties consulted by the evaluator.
type SymbolFlag uint8

// Possible SymbolFlag bits.
const (
	// SymSpecialVar symbols are always bound dynamically, even in
	// lexical-binding mode.
	SymSpecialVar SymbolFlag = 1 << iota
	// SymConstantVar symbols cannot be set or bound.
	SymConstantVar
	// SymSpecialForm symbols name a special form.
	SymSpecialForm
	// SymBufferLocal symbols were declared with make-variable-buffer-local.
	SymBufferLocal
	// SymInterned symbols are reachable by name from the table.
	SymInterned
)

// Symbol is a named object with value, function and property cells.
type Symbol struct {
	Name     string
	Value    Value
	Function Value
	Plist    Value
	Flags    SymbolFlag
	// Alias is the variable this symbol forwards to, set by defvaralias.
	Alias Value
}

// Is returns true if all bits of flag are set on sym.
func (sym *Symbol) Is(flag SymbolFlag) bool {
	return sym.Flags&flag == flag
}

// Well known symbols.  The table is bootstrapped in this order so the IDs
// are fixed for every Runtime.
const (
	SymNil SymbolID = iota
	SymT
	SymQuote
	SymFunction
	SymLambda
	SymClosure
	SymMacro
	SymBackquote
	SymComma
	SymCommaAt
	SymOptional
	SymRest
	SymInteractive

	SymError
	SymQuit
	SymUserError
	SymVoidVariable
	SymVoidFunction
	SymWrongTypeArgument
	SymArgsOutOfRange
	SymWrongNumberOfArguments
	SymNoCatch
	SymSettingConstant
	SymInvalidFunction
	SymArithError
	SymOverflowError
	SymEndOfFile
	SymInvalidReadSyntax
	SymExcessiveLispNesting
	SymCyclicFunctionIndirection
	SymCircularList
	SymInvalidRegexp
	SymDeadlineExceeded
	SymErrorConditions
	SymErrorMessage

	SymLexicalBinding
	SymGCMessages
	SymFeatures
	SymEq
	SymEql
	SymEqual
	SymKeyTest
	SymKeySize

	SymListp
	SymConsp
	SymSymbolp
	SymStringp
	SymNumberp
	SymIntegerp
	SymFixnump
	SymNatnump
	SymNumberOrMarkerp
	SymIntegerOrMarkerp
	SymArrayp
	SymSequencep
	SymVectorp
	SymCharacterp
	SymFunctionp
	SymHashTablep
	SymCharOrStringp
	SymRecordp
	SymPlistp
	SymFloatp
	SymBufferOrStringp
	SymByteCodeFunctionp

	SymProgn
	SymLet
	SymLetStar
	SymSetq
	SymIf
	SymCond
	SymAnd
	SymOr
	SymWhile
	SymCatch
	SymUnwindProtect
	SymConditionCase
	SymProg1
	SymDefalias
	SymDefvar
	SymDefconst
	SymCons
	SymList
	SymAppend
	SymVconcat
	SymFuncall
	SymApply
	SymNot
	SymSetcar
	SymSetcdr
	SymCar
	SymCdr
	SymNthcdr
	SymMakeClosure
	SymDebug

	numWellKnown
)

var wellKnownNames = [numWellKnown]string{
	SymNil:         "nil",
	SymT:           "t",
	SymQuote:       "quote",
	SymFunction:    "function",
	SymLambda:      "lambda",
	SymClosure:     "closure",
	SymMacro:       "macro",
	SymBackquote:   "`",
	SymComma:       ",",
	SymCommaAt:     ",@",
	SymOptional:    "&optional",
	SymRest:        "&rest",
	SymInteractive: "interactive",

	SymError:                     "error",
	SymQuit:                      "quit",
	SymUserError:                 "user-error",
	SymVoidVariable:              "void-variable",
	SymVoidFunction:              "void-function",
	SymWrongTypeArgument:         "wrong-type-argument",
	SymArgsOutOfRange:            "args-out-of-range",
	SymWrongNumberOfArguments:    "wrong-number-of-arguments",
	SymNoCatch:                   "no-catch",
	SymSettingConstant:           "setting-constant",
	SymInvalidFunction:           "invalid-function",
	SymArithError:                "arith-error",
	SymOverflowError:             "overflow-error",
	SymEndOfFile:                 "end-of-file",
	SymInvalidReadSyntax:         "invalid-read-syntax",
	SymExcessiveLispNesting:      "excessive-lisp-nesting",
	SymCyclicFunctionIndirection: "cyclic-function-indirection",
	SymCircularList:              "circular-list",
	SymInvalidRegexp:             "invalid-regexp",
	SymDeadlineExceeded:          "deadline-exceeded",
	SymErrorConditions:           "error-conditions",
	SymErrorMessage:              "error-message",

	SymLexicalBinding: "lexical-binding",
	SymGCMessages:     "garbage-collection-messages",
	SymFeatures:       "features",
	SymEq:             "eq",
	SymEql:            "eql",
	SymEqual:          "equal",
	SymKeyTest:        ":test",
	SymKeySize:        ":size",

	SymListp:             "listp",
	SymConsp:             "consp",
	SymSymbolp:           "symbolp",
	SymStringp:           "stringp",
	SymNumberp:           "numberp",
	SymIntegerp:          "integerp",
	SymFixnump:           "fixnump",
	SymNatnump:           "natnump",
	SymNumberOrMarkerp:   "number-or-marker-p",
	SymIntegerOrMarkerp:  "integer-or-marker-p",
	SymArrayp:            "arrayp",
	SymSequencep:         "sequencep",
	SymVectorp:           "vectorp",
	SymCharacterp:        "characterp",
	SymFunctionp:         "functionp",
	SymHashTablep:        "hash-table-p",
	SymCharOrStringp:     "char-or-string-p",
	SymRecordp:           "recordp",
	SymPlistp:            "plistp",
	SymFloatp:            "floatp",
	SymBufferOrStringp:   "buffer-or-string-p",
	SymByteCodeFunctionp: "byte-code-function-p",

	SymProgn:         "progn",
	SymLet:           "let",
	SymLetStar:       "let*",
	SymSetq:          "setq",
	SymIf:            "if",
	SymCond:          "cond",
	SymAnd:           "and",
	SymOr:            "or",
	SymWhile:         "while",
	SymCatch:         "catch",
	SymUnwindProtect: "unwind-protect",
	SymConditionCase: "condition-case",
	SymProg1:         "prog1",
	SymDefalias:      "defalias",
	SymDefvar:        "defvar",
	SymDefconst:      "defconst",
	SymCons:          "cons",
	SymList:          "list",
	SymAppend:        "append",
	SymVconcat:       "vconcat",
	SymFuncall:       "funcall",
	SymApply:         "apply",
	SymNot:           "not",
	SymSetcar:        "setcar",
	SymSetcdr:        "setcdr",
	SymCar:           "car",
	SymCdr:           "cdr",
	SymNthcdr:        "nthcdr",
	SymMakeClosure:   "make-closure",
	SymDebug:         "debug",
}

// SymbolTable is the registry of every symbol known to a Runtime.  Interned
// symbols are reachable by name.  Uninterned symbols are registered so that
// they can be referenced by a SymbolID but are never returned by Intern.
// Symbols are never removed.
type SymbolTable struct {
	syms  []*Symbol
	index map[string]SymbolID
}

// NewSymbolTable returns a table containing the well known symbols.
func NewSymbolTable() *SymbolTable {
	tab := &SymbolTable{
		syms:  make([]*Symbol, 0, 1024),
		index: make(map[string]SymbolID, 1024),
	}
	for _, name := range wellKnownNames {
		tab.Intern(name)
	}
	for _, id := range []SymbolID{SymNil, SymT} {
		sym := tab.syms[id]
		sym.Value = symbolValue(id)
		sym.Flags |= SymConstantVar | SymSpecialVar
	}
	return tab
}

// Intern returns the symbol named name, creating it if necessary.  Symbols
// whose names begin with a colon are keywords; they evaluate to themselves
// and cannot be set.
func (tab *SymbolTable) Intern(name string) SymbolID {
	if id, ok := tab.index[name]; ok {
		return id
	}
	id := tab.add(name)
	sym := tab.syms[id]
	sym.Flags |= SymInterned
	tab.index[name] = id
	if strings.HasPrefix(name, ":") && len(name) > 1 {
		sym.Value = symbolValue(id)
		sym.Flags |= SymConstantVar | SymSpecialVar
	}
	return id
}

// InternSoft returns the symbol named name if it has been interned.
func (tab *SymbolTable) InternSoft(name string) (SymbolID, bool) {
	id, ok := tab.index[name]
	return id, ok
}

// MakeSymbol creates a fresh uninterned symbol.
func (tab *SymbolTable) MakeSymbol(name string) SymbolID {
	return tab.add(name)
}

// Unintern removes name from the index.  The symbol itself survives.
func (tab *SymbolTable) Unintern(id SymbolID) bool {
	sym := tab.Get(id)
	if !sym.Is(SymInterned) || id < numWellKnown {
		return false
	}
	delete(tab.index, sym.Name)
	sym.Flags &^= SymInterned
	return true
}

func (tab *SymbolTable) add(name string) SymbolID {
	id := SymbolID(len(tab.syms))
	tab.syms = append(tab.syms, &Symbol{
		Name:     name,
		Value:    Unbound,
		Function: Unbound,
		Plist:    Nil,
	})
	return id
}

// Get returns the symbol with the given id.
func (tab *SymbolTable) Get(id SymbolID) *Symbol {
	if int(id) >= len(tab.syms) {
		panic(&InternalError{Msg: "corrupted symbol reference"})
	}
	return tab.syms[id]
}

// Len returns the number of symbols in the table, interned or not.
func (tab *SymbolTable) Len() int {
	return len(tab.syms)
}

// Each calls fn for each interned symbol in creation order.
func (tab *SymbolTable) Each(fn func(id SymbolID, sym *Symbol) bool) {
	for i, sym := range tab.syms {
		if !sym.Is(SymInterned) {
			continue
		}
		if !fn(SymbolID(i), sym) {
			return
		}
	}
}

// Completions returns the names of interned symbols beginning with prefix.
func (tab *SymbolTable) Completions(prefix string) []string {
	var names []string
	for name := range tab.index {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names
}
