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
	"github.com/viua-lang/viua/internal/viua/proto"
	"github.com/viua-lang/viua/internal/viua/register"
	"github.com/viua-lang/viua/internal/viua/value"
)

// derefRegister reads reg's cell as a proto.Pointer and dereferences it
// against the running process's PID (spec.md 4.2/8: a Pointer only ever
// dereferences inside its origin process).
func derefRegister(proc *process.Process, reg *register.Register) (value.Value, error) {
	v, err := reg.Peek()
	if err != nil {
		return nil, err
	}
	p, ok := v.(proto.Pointer)
	if !ok {
		return nil, fmt.Errorf("%w: expected Pointer for dereference, got %s", value.ErrTypeMismatch, v.TypeName())
	}
	return p.Dereference(proc.PID)
}

func hPtr(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	src, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	cell := src.Cell()
	if cell == nil {
		return 0, register.ErrEmpty
	}
	dst.Store(proto.NewPointer(cell, proc.PID))
	return uint64(c.Pos()), nil
}

func hMove(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	src, err := readRegisterOperand(proc, c)
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

func hCopy(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	v, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, fmt.Errorf("%w: copy from void", value.ErrTypeMismatch)
	}
	dst.Store(v.DeepCopy())
	return uint64(c.Pos()), nil
}

func hSwap(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	a, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	b, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	a.Swap(b)
	return uint64(c.Pos()), nil
}

func hDelete(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	reg, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	if _, err := reg.Delete(); err != nil {
		return 0, err
	}
	return uint64(c.Pos()), nil
}

func hIsnull(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	src, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	dst.Store(value.Boolean(src.Empty()))
	return uint64(c.Pos()), nil
}

func hRess(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	marker, err := c.Byte()
	if err != nil {
		return 0, err
	}
	proc.SetCurrentRole(bytecode.RegisterSetMarker(marker).Role())
	return uint64(c.Pos()), nil
}

func hCapture(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return captureInto(rt, proc, c, func(v value.Value) value.Value { return v })
}

func hCaptureCopy(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return captureInto(rt, proc, c, func(v value.Value) value.Value { return v.DeepCopy() })
}

func hCaptureMove(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	closureReg, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	idx, err := readInt(rt, proc, c)
	if err != nil {
		return 0, err
	}
	srcReg, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	closureVal, err := closureReg.Peek()
	if err != nil {
		return 0, err
	}
	closure, ok := closureVal.(*proto.Closure)
	if !ok {
		return 0, fmt.Errorf("%w: expected Closure", value.ErrTypeMismatch)
	}
	slot, err := closure.Captured.At(int(idx))
	if err != nil {
		return 0, err
	}
	cell, err := srcReg.Release()
	if err != nil {
		return 0, err
	}
	slot.StoreCell(cell)
	return uint64(c.Pos()), nil
}

// captureInto implements CAPTURE/CAPTURECOPY: both read the closure
// register, the captured-slot index, and the source register, and differ
// only in whether the source value is shared or deep-copied into the slot.
func captureInto(rt Runtime, proc *process.Process, c *bytecode.Cursor, transform func(value.Value) value.Value) (uint64, error) {
	closureReg, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	idx, err := readInt(rt, proc, c)
	if err != nil {
		return 0, err
	}
	src, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	closureVal, err := closureReg.Peek()
	if err != nil {
		return 0, err
	}
	closure, ok := closureVal.(*proto.Closure)
	if !ok {
		return 0, fmt.Errorf("%w: expected Closure", value.ErrTypeMismatch)
	}
	slot, err := closure.Captured.At(int(idx))
	if err != nil {
		return 0, err
	}
	slot.Store(transform(src))
	return uint64(c.Pos()), nil
}

func hClosure(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	fn, err := c.NulTerminated()
	if err != nil {
		return 0, err
	}
	captures, err := c.Uint32()
	if err != nil {
		return 0, err
	}
	dst.Store(&proto.Closure{FnID: fn, Captured: register.NewSet(int(captures), register.Local)})
	return uint64(c.Pos()), nil
}

func hPrint(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	v, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	rt.Print(v.ToText())
	return uint64(c.Pos()), nil
}

func hEcho(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	v, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	rt.Echo(v.ToText())
	return uint64(c.Pos()), nil
}
