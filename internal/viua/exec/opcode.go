// Copyright 2024 The Viua Authors
// This file is part of Viua.
//
// Viua is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Viua is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Viua. If not, see <http://www.gnu.org/licenses/>.

// Package exec implements the instruction set of spec.md 4: decoding one
// opcode byte, dispatching it to a handler, and the handlers themselves.
// Handlers never panic on a domain error; they return it, the way
// probe-lang/lang/vm/vm.go's execute() switch returns an error up to its
// caller instead of aborting the process in place.
package exec

import "fmt"

// Opcode identifies an instruction. The numbering and grouping follow
// original_source/include/viua/bytecode/opcodes.h; legacy opcodes with no
// surviving operand encoding in spec.md 9's post-split format are not
// ported (see SPEC_FULL.md Open Questions).
type Opcode byte

const (
	NOP Opcode = iota

	IZERO
	ISTORE
	IINC
	IDEC

	FSTORE

	ITOF
	FTOI
	STOI
	STOF

	ADD
	SUB
	MUL
	DIV
	LT
	LTE
	GT
	GTE
	EQ

	STRSTORE
	STREQ

	TEXT
	TEXTEQ
	TEXTAT
	TEXTSUB
	TEXTLENGTH
	TEXTCOMMONPREFIX
	TEXTCOMMONSUFFIX
	TEXTVIEW
	TEXTCONCAT

	VEC
	VINSERT
	VPUSH
	VPOP
	VAT
	VLEN

	BOOL
	NOT
	AND
	OR

	MOVE
	COPY
	PTR
	SWAP
	DELETE
	ISNULL
	RESS

	PRINT
	ECHO

	CAPTURE
	CAPTURECOPY
	CAPTUREMOVE
	CLOSURE

	FUNCTION

	FRAME
	PARAM
	PAMV
	CALL
	TAILCALL
	DEFER
	ARG
	ARGC

	PROCESS
	SELF
	JOIN
	SEND
	RECEIVE
	WATCHDOG

	JUMP
	IF

	THROW
	CATCH
	DRAW

	TRY
	ENTER
	LEAVE

	CLASS
	DERIVE
	ATTACH
	REGISTER

	NEW
	MSG
	INSERT
	REMOVE

	RETURN
	HALT
)

var names = [...]string{
	NOP: "nop",

	IZERO: "izero", ISTORE: "istore", IINC: "iinc", IDEC: "idec",

	FSTORE: "fstore",

	ITOF: "itof", FTOI: "ftoi", STOI: "stoi", STOF: "stof",

	ADD: "add", SUB: "sub", MUL: "mul", DIV: "div",
	LT: "lt", LTE: "lte", GT: "gt", GTE: "gte", EQ: "eq",

	STRSTORE: "strstore", STREQ: "streq",

	TEXT: "text", TEXTEQ: "texteq", TEXTAT: "textat", TEXTSUB: "textsub",
	TEXTLENGTH: "textlength", TEXTCOMMONPREFIX: "textcommonprefix",
	TEXTCOMMONSUFFIX: "textcommonsuffix", TEXTVIEW: "textview",
	TEXTCONCAT: "textconcat",

	VEC: "vec", VINSERT: "vinsert", VPUSH: "vpush", VPOP: "vpop",
	VAT: "vat", VLEN: "vlen",

	BOOL: "bool", NOT: "not", AND: "and", OR: "or",

	MOVE: "move", COPY: "copy", PTR: "ptr", SWAP: "swap",
	DELETE: "delete", ISNULL: "isnull", RESS: "ress",

	PRINT: "print", ECHO: "echo",

	CAPTURE: "capture", CAPTURECOPY: "capturecopy", CAPTUREMOVE: "capturemove",
	CLOSURE: "closure",

	FUNCTION: "function",

	FRAME: "frame", PARAM: "param", PAMV: "pamv", CALL: "call",
	TAILCALL: "tailcall", DEFER: "defer", ARG: "arg", ARGC: "argc",

	PROCESS: "process", SELF: "self", JOIN: "join", SEND: "send",
	RECEIVE: "receive", WATCHDOG: "watchdog",

	JUMP: "jump", IF: "if",

	THROW: "throw", CATCH: "catch", DRAW: "draw",

	TRY: "try", ENTER: "enter", LEAVE: "leave",

	CLASS: "class", DERIVE: "derive", ATTACH: "attach", REGISTER: "register",

	NEW: "new", MSG: "msg", INSERT: "insert", REMOVE: "remove",

	RETURN: "return", HALT: "halt",
}

// String renders the opcode's mnemonic, the way
// probe-lang/lang/vm/opcodes.go's Opcode.String does for its own table.
func (op Opcode) String() string {
	if int(op) < len(names) && names[op] != "" {
		return names[op]
	}
	return fmt.Sprintf("opcode(0x%02x)", byte(op))
}

// Valid reports whether op is a recognised opcode.
func (op Opcode) Valid() bool {
	return int(op) < len(names) && names[op] != ""
}
