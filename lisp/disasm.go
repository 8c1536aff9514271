// Copyright © 2018 The ELPS authors

package lisp

import (
	"fmt"
	"strings"
)

// Disassemble returns a listing of the instructions of the compiled
// function fn.  Compiled functions found among the constants are listed
// after the function which references them.
func (c *Context) Disassemble(fn Value) (string, error) {
	rt := c.rt
	def, err := c.indirectFunction(fn)
	if err != nil {
		return "", err
	}
	if def.tag != TagFunction || rt.Fun(def).Kind != FuncCompiled {
		return "", c.WrongType(SymByteCodeFunctionp, fn)
	}
	var b strings.Builder
	c.disassemble(&b, def, rt.FunctionName(fn), 0)
	return b.String(), nil
}

func (c *Context) disassemble(b *strings.Builder, fn Value, name string, indent int) {
	rt := c.rt
	code := rt.Fun(fn).Code
	pad := strings.Repeat(" ", indent)
	fmt.Fprintf(b, "%sbyte code for %s:\n", pad, name)
	fmt.Fprintf(b, "%s  args: %s\n", pad, argDescString(rt, code.ArgDesc))
	if code.Interactive.Truthy() {
		fmt.Fprintf(b, "%s  interactive: %s\n", pad, rt.Prin1String(code.Interactive))
	}
	consts := rt.Items(code.Constants)
	var nested []Value
	for pc := 0; pc < len(code.Code); {
		op, arg, next, ok := decodeOperand(code.Code, pc)
		info := &opTable[op]
		name := info.name
		if name == "" {
			name = fmt.Sprintf("<invalid %#o>", op)
		}
		if !ok {
			fmt.Fprintf(b, "%s%-5d %s <truncated>\n", pad, pc, name)
			break
		}
		operand := ""
		switch {
		case info.operand == operandNone:
		case op >= opConstant || op == opConstant2:
			operand = constantString(rt, consts, arg)
			if arg < len(consts) && consts[arg].tag == TagFunction && rt.Fun(consts[arg]).Kind == FuncCompiled {
				nested = append(nested, consts[arg])
			}
		case op < opPopHandler && (op&^7 == opVarRef || op&^7 == opVarSet || op&^7 == opVarBind):
			operand = constantString(rt, consts, arg)
		case op == opDiscardN && arg&0x80 != 0:
			operand = fmt.Sprintf("%d preserve-tos", arg&0x7f)
		default:
			operand = fmt.Sprint(arg)
		}
		if operand == "" {
			fmt.Fprintf(b, "%s%-5d %s\n", pad, pc, name)
		} else {
			fmt.Fprintf(b, "%s%-5d %-18s %s\n", pad, pc, name, operand)
		}
		pc = next
	}
	for _, f := range nested {
		b.WriteString("\n")
		c.disassemble(b, f, "anonymous lambda", indent+2)
	}
}

func constantString(rt *Runtime, consts []Value, i int) string {
	if i >= len(consts) {
		return fmt.Sprintf("<constant %d out of range>", i)
	}
	v := consts[i]
	if v.tag == TagFunction && rt.Fun(v).Kind == FuncCompiled {
		return "<compiled-function>"
	}
	s := rt.Prin1String(v)
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}

func argDescString(rt *Runtime, desc Value) string {
	if !desc.IsFixnum() {
		return rt.Prin1String(desc)
	}
	code := ByteCode{ArgDesc: desc}
	mandatory, nonrest, rest, _ := code.LexicalArgs()
	s := fmt.Sprintf("%d mandatory, %d optional", mandatory, nonrest-mandatory)
	if rest {
		s += ", &rest"
	}
	return s
}

func builtinDisassemble(c *Context, args []Value) (Value, error) {
	s, err := c.Disassemble(args[0])
	if err != nil {
		return Nil, err
	}
	return c.rt.String(s), nil
}
