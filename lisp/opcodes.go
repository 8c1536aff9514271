// Copyright © 2018 The ELPS authors

package lisp

// Bytecode instructions.  The numbering is that of GNU Emacs so that
// compiled function objects printed by Emacs can be read and executed.
// Instructions in the ranges stack-ref through unbind carry their operand
// in the low three bits: 0-5 inline, 6 a following byte, 7 a following
// 16-bit little-endian word.
const (
	opStackRef          byte = 0o0
	opVarRef            byte = 0o10
	opVarSet            byte = 0o20
	opVarBind           byte = 0o30
	opCall              byte = 0o40
	opUnbind            byte = 0o50
	opPopHandler        byte = 0o60
	opPushConditionCase byte = 0o61
	opPushCatch         byte = 0o62

	opNth            byte = 0o70
	opSymbolp        byte = 0o71
	opConsp          byte = 0o72
	opStringp        byte = 0o73
	opListp          byte = 0o74
	opEq             byte = 0o75
	opMemq           byte = 0o76
	opNot            byte = 0o77
	opCar            byte = 0o100
	opCdr            byte = 0o101
	opCons           byte = 0o102
	opList1          byte = 0o103
	opList2          byte = 0o104
	opList3          byte = 0o105
	opList4          byte = 0o106
	opLength         byte = 0o107
	opAref           byte = 0o110
	opAset           byte = 0o111
	opSymbolValue    byte = 0o112
	opSymbolFunction byte = 0o113
	opSet            byte = 0o114
	opFset           byte = 0o115
	opGet            byte = 0o116
	opSubstring      byte = 0o117
	opConcat2        byte = 0o120
	opConcat3        byte = 0o121
	opConcat4        byte = 0o122
	opSub1           byte = 0o123
	opAdd1           byte = 0o124
	opEqlsign        byte = 0o125
	opGtr            byte = 0o126
	opLss            byte = 0o127
	opLeq            byte = 0o130
	opGeq            byte = 0o131
	opDiff           byte = 0o132
	opNegate         byte = 0o133
	opPlus           byte = 0o134
	opMax            byte = 0o135
	opMin            byte = 0o136
	opMult           byte = 0o137

	opPoint             byte = 0o140
	opGotoChar          byte = 0o142
	opInsert            byte = 0o143
	opPointMax          byte = 0o144
	opPointMin          byte = 0o145
	opCharAfter         byte = 0o146
	opFollowingChar     byte = 0o147
	opPrecedingChar     byte = 0o150
	opCurrentColumn     byte = 0o151
	opIndentTo          byte = 0o152
	opEolp              byte = 0o154
	opEobp              byte = 0o155
	opBolp              byte = 0o156
	opBobp              byte = 0o157
	opCurrentBuffer     byte = 0o160
	opSetBuffer         byte = 0o161
	opSaveCurrentBuffer byte = 0o162
	opForwardChar       byte = 0o165
	opForwardWord       byte = 0o166
	opSkipCharsForward  byte = 0o167
	opSkipCharsBackward byte = 0o170
	opForwardLine       byte = 0o171
	opCharSyntax        byte = 0o172
	opBufferSubstring   byte = 0o173
	opDeleteRegion      byte = 0o174
	opNarrowToRegion    byte = 0o175
	opWiden             byte = 0o176
	opEndOfLine         byte = 0o177

	opConstant2           byte = 0o201
	opGoto                byte = 0o202
	opGotoIfNil           byte = 0o203
	opGotoIfNonNil        byte = 0o204
	opGotoIfNilElsePop    byte = 0o205
	opGotoIfNonNilElsePop byte = 0o206
	opReturn              byte = 0o207
	opDiscard             byte = 0o210
	opDup                 byte = 0o211
	opSaveExcursion       byte = 0o212
	opSaveRestriction     byte = 0o214
	opUnwindProtectOp     byte = 0o216
	opSetMarker           byte = 0o223
	opMatchBeginning      byte = 0o224
	opMatchEnd            byte = 0o225
	opUpcase              byte = 0o226
	opDowncase            byte = 0o227
	opStringEqlsign       byte = 0o230
	opStringLss           byte = 0o231
	opEqual               byte = 0o232
	opNthcdr              byte = 0o233
	opElt                 byte = 0o234
	opMember              byte = 0o235
	opAssq                byte = 0o236
	opNreverse            byte = 0o237
	opSetcar              byte = 0o240
	opSetcdr              byte = 0o241
	opCarSafe             byte = 0o242
	opCdrSafe             byte = 0o243
	opNconc               byte = 0o244
	opQuo                 byte = 0o245
	opRemainder           byte = 0o246
	opNumberp             byte = 0o247
	opIntegerp            byte = 0o250
	opListN               byte = 0o257
	opConcatN             byte = 0o260
	opInsertN             byte = 0o261
	opStackSet            byte = 0o262
	opStackSet2           byte = 0o263
	opDiscardN            byte = 0o266
	opSwitch              byte = 0o267
	opConstant            byte = 0o300
)

type operandKind uint8

const (
	operandNone operandKind = iota
	// operandSmall instructions encode 0-5 in the opcode, or use a byte or
	// word operand.
	operandSmall
	operandByte
	operandWord
	// operandConst instructions push constant op-opConstant.
	operandConst
)

// opInfo describes an instruction.  Instructions with a non-empty fn are
// executed by calling the named function with nargs arguments popped from
// the stack.
type opInfo struct {
	name    string
	operand operandKind
	fn      string
	nargs   int
}

var opTable [256]opInfo

func defOp(op byte, name string, operand operandKind) {
	opTable[op] = opInfo{name: name, operand: operand}
}

// defCallOp defines an instruction equivalent to calling fn.
func defCallOp(op byte, name, fn string, nargs int) {
	opTable[op] = opInfo{name: name, fn: fn, nargs: nargs}
}

func init() {
	for _, op := range []struct {
		base byte
		name string
	}{
		{opStackRef, "stack-ref"},
		{opVarRef, "varref"},
		{opVarSet, "varset"},
		{opVarBind, "varbind"},
		{opCall, "call"},
		{opUnbind, "unbind"},
	} {
		for i := byte(0); i < 8; i++ {
			defOp(op.base+i, op.name, operandSmall)
		}
	}
	defOp(opPopHandler, "pophandler", operandNone)
	defOp(opPushConditionCase, "pushconditioncase", operandWord)
	defOp(opPushCatch, "pushcatch", operandWord)

	defOp(opNth, "nth", operandNone)
	defOp(opSymbolp, "symbolp", operandNone)
	defOp(opConsp, "consp", operandNone)
	defOp(opStringp, "stringp", operandNone)
	defOp(opListp, "listp", operandNone)
	defOp(opEq, "eq", operandNone)
	defOp(opMemq, "memq", operandNone)
	defOp(opNot, "not", operandNone)
	defOp(opCar, "car", operandNone)
	defOp(opCdr, "cdr", operandNone)
	defOp(opCons, "cons", operandNone)
	defOp(opList1, "list1", operandNone)
	defOp(opList2, "list2", operandNone)
	defOp(opList3, "list3", operandNone)
	defOp(opList4, "list4", operandNone)
	defOp(opLength, "length", operandNone)
	defOp(opAref, "aref", operandNone)
	defOp(opAset, "aset", operandNone)
	defOp(opSymbolValue, "symbol-value", operandNone)
	defOp(opSymbolFunction, "symbol-function", operandNone)
	defOp(opSet, "set", operandNone)
	defOp(opFset, "fset", operandNone)
	defOp(opGet, "get", operandNone)
	defOp(opSubstring, "substring", operandNone)
	defOp(opConcat2, "concat2", operandNone)
	defOp(opConcat3, "concat3", operandNone)
	defOp(opConcat4, "concat4", operandNone)
	defOp(opSub1, "sub1", operandNone)
	defOp(opAdd1, "add1", operandNone)
	defOp(opEqlsign, "eqlsign", operandNone)
	defOp(opGtr, "gtr", operandNone)
	defOp(opLss, "lss", operandNone)
	defOp(opLeq, "leq", operandNone)
	defOp(opGeq, "geq", operandNone)
	defOp(opDiff, "diff", operandNone)
	defOp(opNegate, "negate", operandNone)
	defOp(opPlus, "plus", operandNone)
	defOp(opMax, "max", operandNone)
	defOp(opMin, "min", operandNone)
	defOp(opMult, "mult", operandNone)

	defCallOp(opPoint, "point", "point", 0)
	defCallOp(opGotoChar, "goto-char", "goto-char", 1)
	defCallOp(opInsert, "insert", "insert", 1)
	defCallOp(opPointMax, "point-max", "point-max", 0)
	defCallOp(opPointMin, "point-min", "point-min", 0)
	defCallOp(opCharAfter, "char-after", "char-after", 1)
	defCallOp(opFollowingChar, "following-char", "following-char", 0)
	defCallOp(opPrecedingChar, "preceding-char", "preceding-char", 0)
	defCallOp(opCurrentColumn, "current-column", "current-column", 0)
	defCallOp(opIndentTo, "indent-to", "indent-to", 1)
	defCallOp(opEolp, "eolp", "eolp", 0)
	defCallOp(opEobp, "eobp", "eobp", 0)
	defCallOp(opBolp, "bolp", "bolp", 0)
	defCallOp(opBobp, "bobp", "bobp", 0)
	defCallOp(opCurrentBuffer, "current-buffer", "current-buffer", 0)
	defCallOp(opSetBuffer, "set-buffer", "set-buffer", 1)
	defCallOp(opSaveCurrentBuffer, "save-current-buffer", "save-current-buffer", 0)
	defCallOp(opForwardChar, "forward-char", "forward-char", 1)
	defCallOp(opForwardWord, "forward-word", "forward-word", 1)
	defCallOp(opSkipCharsForward, "skip-chars-forward", "skip-chars-forward", 2)
	defCallOp(opSkipCharsBackward, "skip-chars-backward", "skip-chars-backward", 2)
	defCallOp(opForwardLine, "forward-line", "forward-line", 1)
	defCallOp(opCharSyntax, "char-syntax", "char-syntax", 1)
	defCallOp(opBufferSubstring, "buffer-substring", "buffer-substring", 2)
	defCallOp(opDeleteRegion, "delete-region", "delete-region", 2)
	defCallOp(opNarrowToRegion, "narrow-to-region", "narrow-to-region", 2)
	defCallOp(opWiden, "widen", "widen", 0)
	defCallOp(opEndOfLine, "end-of-line", "end-of-line", 1)
	defCallOp(opSaveExcursion, "save-excursion", "save-excursion", 0)
	defCallOp(opSaveRestriction, "save-restriction", "save-restriction", 0)
	defCallOp(opSetMarker, "set-marker", "set-marker", 3)
	defCallOp(opMatchBeginning, "match-beginning", "match-beginning", 1)
	defCallOp(opMatchEnd, "match-end", "match-end", 1)
	defCallOp(opUpcase, "upcase", "upcase", 1)
	defCallOp(opDowncase, "downcase", "downcase", 1)
	defCallOp(opStringEqlsign, "string=", "string=", 2)
	defCallOp(opStringLss, "string<", "string<", 2)
	defCallOp(opEqual, "equal", "equal", 2)
	defCallOp(opNthcdr, "nthcdr", "nthcdr", 2)
	defCallOp(opElt, "elt", "elt", 2)
	defCallOp(opMember, "member", "member", 2)
	defCallOp(opAssq, "assq", "assq", 2)
	defCallOp(opNreverse, "nreverse", "nreverse", 1)
	defCallOp(opSetcar, "setcar", "setcar", 2)
	defCallOp(opSetcdr, "setcdr", "setcdr", 2)
	defCallOp(opCarSafe, "car-safe", "car-safe", 1)
	defCallOp(opCdrSafe, "cdr-safe", "cdr-safe", 1)
	defCallOp(opNconc, "nconc", "nconc", 2)
	defCallOp(opQuo, "quo", "/", 2)
	defCallOp(opRemainder, "rem", "%", 2)
	defCallOp(opNumberp, "numberp", "numberp", 1)
	defCallOp(opIntegerp, "integerp", "integerp", 1)

	defOp(opConstant2, "constant2", operandWord)
	defOp(opGoto, "goto", operandWord)
	defOp(opGotoIfNil, "goto-if-nil", operandWord)
	defOp(opGotoIfNonNil, "goto-if-not-nil", operandWord)
	defOp(opGotoIfNilElsePop, "goto-if-nil-else-pop", operandWord)
	defOp(opGotoIfNonNilElsePop, "goto-if-not-nil-else-pop", operandWord)
	defOp(opReturn, "return", operandNone)
	defOp(opDiscard, "discard", operandNone)
	defOp(opDup, "dup", operandNone)
	defOp(opUnwindProtectOp, "unwind-protect", operandNone)
	defOp(opListN, "listN", operandByte)
	defOp(opConcatN, "concatN", operandByte)
	defOp(opInsertN, "insertN", operandByte)
	defOp(opStackSet, "stack-set", operandByte)
	defOp(opStackSet2, "stack-set2", operandWord)
	defOp(opDiscardN, "discardN", operandByte)
	defOp(opSwitch, "switch", operandNone)
	for op := int(opConstant); op < 256; op++ {
		defOp(byte(op), "constant", operandConst)
	}
}

// decodeOperand returns the operand of the instruction at pc and the
// offset of the next instruction.  ok is false when the code ends inside
// the instruction.
func decodeOperand(code []byte, pc int) (op byte, arg int, next int, ok bool) {
	op = code[pc]
	next = pc + 1
	info := &opTable[op]
	switch info.operand {
	case operandSmall:
		switch low := op & 7; low {
		case 6:
			if next >= len(code) {
				return op, 0, next, false
			}
			arg = int(code[next])
			next++
		case 7:
			if next+1 >= len(code) {
				return op, 0, next, false
			}
			arg = int(code[next]) | int(code[next+1])<<8
			next += 2
		default:
			arg = int(low)
		}
	case operandByte:
		if next >= len(code) {
			return op, 0, next, false
		}
		arg = int(code[next])
		next++
	case operandWord:
		if next+1 >= len(code) {
			return op, 0, next, false
		}
		arg = int(code[next]) | int(code[next+1])<<8
		next += 2
	case operandConst:
		arg = int(op - opConstant)
	}
	return op, arg, next, true
}
