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

package exec

import (
	"fmt"

	"github.com/viua-lang/viua/internal/viua/bytecode"
	"github.com/viua-lang/viua/internal/viua/process"
)

// handler decodes its own operands from c (positioned just past the opcode
// byte) and executes one instruction against proc, returning the byte
// offset execution should resume at. Handlers that do not alter control
// flow return c.Pos() as their next IP; jump-like handlers compute their
// own.
type handler func(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error)

var handlers = map[Opcode]handler{
	NOP: func(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
		return uint64(c.Pos()), nil
	},

	IZERO: hIzero, ISTORE: hIstore, IINC: hIinc, IDEC: hIdec,
	FSTORE: hFstore,
	ITOF:   hItof, FTOI: hFtoi, STOI: hStoi, STOF: hStof,

	ADD: hAdd, SUB: hSub, MUL: hMul, DIV: hDiv,
	LT: hLt, LTE: hLte, GT: hGt, GTE: hGte, EQ: hEq,

	STRSTORE: hStrstore, STREQ: hStreq,

	TEXT: hText, TEXTEQ: hTextEq, TEXTAT: hTextAt, TEXTSUB: hTextSub,
	TEXTLENGTH: hTextLength, TEXTCOMMONPREFIX: hTextCommonPrefix,
	TEXTCOMMONSUFFIX: hTextCommonSuffix, TEXTVIEW: hTextView,
	TEXTCONCAT: hTextConcat,

	VEC: hVec, VINSERT: hVinsert, VPUSH: hVpush, VPOP: hVpop,
	VAT: hVat, VLEN: hVlen,

	BOOL: hBool, NOT: hNot, AND: hAnd, OR: hOr,

	MOVE: hMove, COPY: hCopy, PTR: hPtr, SWAP: hSwap,
	DELETE: hDelete, ISNULL: hIsnull, RESS: hRess,

	PRINT: hPrint, ECHO: hEcho,

	CAPTURE: hCapture, CAPTURECOPY: hCaptureCopy, CAPTUREMOVE: hCaptureMove,
	CLOSURE: hClosure,

	FUNCTION: hFunction,

	FRAME: hFrame, PARAM: hParam, PAMV: hPamv, CALL: hCall,
	TAILCALL: hTailcall, DEFER: hDefer, ARG: hArg, ARGC: hArgc,

	PROCESS: hProcess, SELF: hSelf, JOIN: hJoin, SEND: hSend,
	RECEIVE: hReceive, WATCHDOG: hWatchdog,

	JUMP: hJump, IF: hIf,

	THROW: hThrow, CATCH: hCatch, DRAW: hDraw,

	TRY: hTry, ENTER: hEnter, LEAVE: hLeave,

	CLASS: hClass, DERIVE: hDerive, ATTACH: hAttach, REGISTER: hRegister,

	NEW: hNew, MSG: hMsg, INSERT: hInsert, REMOVE: hRemove,

	RETURN: hReturn, HALT: hHaltOp,
}

// Step decodes and executes exactly one instruction for proc, starting at
// byte offset ip in rt.Code(), and returns the offset execution should
// resume at. The scheduler calls Step in a loop for as many instructions
// as the current quantum allows (spec.md 4.8).
func Step(rt Runtime, proc *process.Process, ip uint64) (uint64, error) {
	code := rt.Code()
	if int(ip) >= len(code) {
		return ip, fmt.Errorf("exec: instruction pointer %d past end of code (%d bytes)", ip, len(code))
	}

	op := Opcode(code[ip])
	if !op.Valid() {
		return ip, fmt.Errorf("exec: unrecognised opcode 0x%02x at offset %d", byte(op), ip)
	}

	h, ok := handlers[op]
	if !ok {
		return ip, fmt.Errorf("exec: opcode %s has no handler", op)
	}

	c := bytecode.NewCursor(code, int(ip)+1)
	next, err := h(rt, proc, c)
	if err != nil {
		return ip, fmt.Errorf("exec: %s at offset %d: %w", op, ip, err)
	}
	return next, nil
}
