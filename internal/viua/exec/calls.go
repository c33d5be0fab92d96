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
	"errors"
	"fmt"

	"github.com/viua-lang/viua/internal/viua/bytecode"
	"github.com/viua-lang/viua/internal/viua/frame"
	"github.com/viua-lang/viua/internal/viua/process"
	"github.com/viua-lang/viua/internal/viua/proto"
	"github.com/viua-lang/viua/internal/viua/register"
	"github.com/viua-lang/viua/internal/viua/value"
)

// hFunction stores a FunctionHandle naming fn, without capturing anything
// (spec.md 3's Function-handle variant).
func hFunction(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	fn, err := c.NulTerminated()
	if err != nil {
		return 0, err
	}
	dst.Store(proto.FunctionHandle{FnID: fn})
	return uint64(c.Pos()), nil
}

func hFrame(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	argc, err := c.Uint32()
	if err != nil {
		return 0, err
	}
	localSize, err := c.Uint32()
	if err != nil {
		return 0, err
	}
	proc.SetPending(frame.New(int(argc), int(localSize)))
	return uint64(c.Pos()), nil
}

func hParam(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return fillParam(rt, proc, c, false)
}

func hPamv(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return fillParam(rt, proc, c, true)
}

// fillParam implements PARAM (pass-by-value, a DeepCopy is installed) and
// PAMV (pass-by-move, the source register is emptied and the same cell
// re-homed — spec.md 4.3).
func fillParam(rt Runtime, proc *process.Process, c *bytecode.Cursor, byMove bool) (uint64, error) {
	idx, err := c.Uint32()
	if err != nil {
		return 0, err
	}
	pending, ok := proc.TakePending()
	if !ok {
		return 0, fmt.Errorf("exec: param/pamv with no pending frame (missing frame instruction)")
	}
	slot, err := pending.Args.At(int(idx))
	if err != nil {
		proc.SetPending(pending)
		return 0, err
	}

	if byMove {
		src, err := readRegisterOperand(proc, c)
		if err != nil {
			proc.SetPending(pending)
			return 0, err
		}
		cell, err := src.Release()
		if err != nil {
			proc.SetPending(pending)
			return 0, err
		}
		slot.StoreCell(cell)
	} else {
		v, err := readOperand(rt, proc, c)
		if err != nil {
			proc.SetPending(pending)
			return 0, err
		}
		slot.Store(v.DeepCopy())
	}

	proc.SetPending(pending)
	return uint64(c.Pos()), nil
}

// resolveCallable reads a callable operand for CALL/TAILCALL/PROCESS: a
// direct function-name Atom/Text, a FunctionHandle, or a Closure (whose
// Captured set becomes the callee's Local set in place of the pending
// frame's own).
func resolveCallable(rt Runtime, proc *process.Process, c *bytecode.Cursor) (fnName string, captured *register.Set, err error) {
	v, err := readOperand(rt, proc, c)
	if err != nil {
		return "", nil, err
	}
	switch t := v.(type) {
	case value.Atom:
		return string(t), nil, nil
	case value.Text:
		return t.ToText(), nil, nil
	case proto.FunctionHandle:
		return t.FnID, nil, nil
	case *proto.Closure:
		return t.FnID, t.Captured, nil
	default:
		return "", nil, fmt.Errorf("%w: %s is not callable", value.ErrTypeMismatch, v.TypeName())
	}
}

func hCall(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	retReg, hasRet, err := readOptionalRegister(proc, c)
	if err != nil {
		return 0, err
	}
	fnName, captured, err := resolveCallable(rt, proc, c)
	if err != nil {
		return 0, err
	}

	offset, _, err := rt.FunctionAddress(fnName)
	if errors.Is(err, ErrForeignFunction) {
		return callForeign(rt, proc, c, fnName, retReg, hasRet)
	}
	if err != nil {
		return 0, err
	}

	pending, ok := proc.TakePending()
	if !ok {
		return 0, fmt.Errorf("exec: call with no pending frame (missing frame instruction)")
	}
	if captured != nil {
		pending.Locals = captured
	}
	pending.FuncName = fnName
	pending.EntryAddr = offset
	pending.ReturnAddr = uint64(c.Pos())
	if hasRet {
		pending.ReturnTarget = retReg
	}

	proc.PushFrame(pending)
	return offset, nil
}

// callForeign executes a registered foreign function synchronously against
// the pending frame's already-filled argument registers, storing its
// result (or a raised exception) in place of pushing a bytecode frame
// (spec.md 4.9).
func callForeign(rt Runtime, proc *process.Process, c *bytecode.Cursor, fnName string, retReg *register.Register, hasRet bool) (uint64, error) {
	pending, ok := proc.TakePending()
	if !ok {
		return 0, fmt.Errorf("exec: call with no pending frame (missing frame instruction)")
	}
	args := make([]value.Value, pending.Args.Len())
	for i := range args {
		slot, err := pending.Args.At(i)
		if err != nil {
			return 0, err
		}
		if v, err := slot.Peek(); err == nil {
			args[i] = v
		}
	}

	result, err := rt.ForeignCall(fnName, args)
	if err != nil {
		proc.SetException(proto.NewException("ForeignCallError", err.Error()))
		return uint64(c.Pos()), nil
	}
	if hasRet && result != nil {
		retReg.Store(result)
	}
	return uint64(c.Pos()), nil
}

func hTailcall(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	fnName, captured, err := resolveCallable(rt, proc, c)
	if err != nil {
		return 0, err
	}
	offset, _, err := rt.FunctionAddress(fnName)
	if err != nil {
		return 0, err
	}
	pending, ok := proc.TakePending()
	if !ok {
		return 0, fmt.Errorf("exec: tailcall with no pending frame (missing frame instruction)")
	}
	if captured != nil {
		pending.Locals = captured
	}
	pending.FuncName = fnName
	pending.EntryAddr = offset

	if cur, ok := proc.Current(); ok {
		pending.ReturnTarget = cur.ReturnTarget
		pending.ReturnAddr = cur.ReturnAddr
	}
	proc.ReplaceTop(pending)
	return offset, nil
}

// hDefer implements Defer(fn): the pending frame is attached to the
// current frame's deferred list rather than pushed onto the call stack;
// Return later pushes deferred frames in last-registered-first order
// (spec.md 4.3/8: "deferred calls scheduled D1 then D2 execute in order D2
// then D1").
func hDefer(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	fnName, captured, err := resolveCallable(rt, proc, c)
	if err != nil {
		return 0, err
	}
	offset, _, err := rt.FunctionAddress(fnName)
	if err != nil {
		return 0, err
	}
	pending, ok := proc.TakePending()
	if !ok {
		return 0, fmt.Errorf("exec: defer with no pending frame (missing frame instruction)")
	}
	if captured != nil {
		pending.Locals = captured
	}
	pending.FuncName = fnName
	pending.EntryAddr = offset

	f, err := current(proc)
	if err != nil {
		return 0, err
	}
	f.PushDeferred(pending)
	return uint64(c.Pos()), nil
}

func hArg(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	idx, err := c.Uint32()
	if err != nil {
		return 0, err
	}
	f, err := current(proc)
	if err != nil {
		return 0, err
	}
	src, err := f.Args.At(int(idx))
	if err != nil {
		return 0, err
	}
	cell, err := src.Release()
	if err != nil {
		return 0, err
	}
	dst.StoreCell(cell)
	return uint64(c.Pos()), nil
}

func hArgc(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	f, err := current(proc)
	if err != nil {
		return 0, err
	}
	dst.Store(value.Integer(f.Args.Len()))
	return uint64(c.Pos()), nil
}

func hJump(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	target, err := c.Uint64()
	if err != nil {
		return 0, err
	}
	return target, nil
}

func hIf(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	cond, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	whenTrue, err := c.Uint64()
	if err != nil {
		return 0, err
	}
	whenFalse, err := c.Uint64()
	if err != nil {
		return 0, err
	}
	if cond.Truthy() {
		return whenTrue, nil
	}
	return whenFalse, nil
}

func hReturn(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	f, err := current(proc)
	if err != nil {
		return 0, err
	}

	// The callee's own Local register 0 holds its return value by
	// convention, the way probe-lang/lang/vm/vm.go's OpReturn reads r[0].
	var retVal value.Value
	if zero, err := f.Locals.At(0); err == nil {
		if v, err := zero.Peek(); err == nil {
			retVal = v
		}
	}

	proc.PopFrame()
	if retVal != nil && f.ReturnTarget != nil {
		f.ReturnTarget.Store(retVal)
	}

	// Chain f's deferred calls so they run last-registered first: the
	// first-registered one (Deferred[0]) runs last and resumes the
	// caller, and each later one resumes into the one registered just
	// before it (spec.md 8: "deferred calls scheduled D1 then D2 execute
	// in order D2 then D1, both before the caller observes the return").
	next := f.ReturnAddr
	deferred := f.Deferred
	for i, d := range deferred {
		if i == 0 {
			d.ReturnAddr = next
		} else {
			d.ReturnAddr = deferred[i-1].EntryAddr
		}
		proc.PushFrame(d)
	}
	if len(deferred) > 0 {
		next = deferred[len(deferred)-1].EntryAddr
	}

	if _, ok := proc.Current(); !ok {
		proc.Terminate(retVal, nil)
		return 0, nil
	}
	return next, nil
}

func hHaltOp(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	proc.Terminate(value.Boolean(true), nil)
	return 0, ErrHalt
}

// readOptionalRegister decodes a register operand that may be Void (used
// by CALL's return-target slot): hasReg is false and reg is nil on Void.
func readOptionalRegister(proc *process.Process, c *bytecode.Cursor) (reg *register.Register, hasReg bool, err error) {
	start := c.Pos()
	tag, err := c.Tag()
	if err != nil {
		return nil, false, err
	}
	if tag == bytecode.TagVoid {
		return nil, false, nil
	}
	c.Seek(start)
	reg, err = readRegisterOperand(proc, c)
	if err != nil {
		return nil, false, err
	}
	return reg, true, nil
}
