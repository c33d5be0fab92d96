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
	"github.com/viua-lang/viua/internal/viua/value"
)

func hClass(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	name, err := c.NulTerminated()
	if err != nil {
		return 0, err
	}
	dst.Store(proto.NewPrototype(name))
	return uint64(c.Pos()), nil
}

func asPrototype(v value.Value) (*proto.Prototype, error) {
	p, ok := v.(*proto.Prototype)
	if !ok {
		return nil, fmt.Errorf("%w: expected Prototype, got %s", value.ErrTypeMismatch, v.TypeName())
	}
	return p, nil
}

func hDerive(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	dv, err := dst.Peek()
	if err != nil {
		return 0, err
	}
	p, err := asPrototype(dv)
	if err != nil {
		return 0, err
	}
	base, err := c.NulTerminated()
	if err != nil {
		return 0, err
	}
	p.Derive(base)
	return uint64(c.Pos()), nil
}

func hAttach(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	dv, err := dst.Peek()
	if err != nil {
		return 0, err
	}
	p, err := asPrototype(dv)
	if err != nil {
		return 0, err
	}
	methodName, err := c.NulTerminated()
	if err != nil {
		return 0, err
	}
	fnID, err := c.NulTerminated()
	if err != nil {
		return 0, err
	}
	p.Attach(methodName, fnID)
	return uint64(c.Pos()), nil
}

func hRegister(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	src, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	p, err := asPrototype(src)
	if err != nil {
		return 0, err
	}
	if err := rt.Prototypes().Register(p); err != nil {
		return 0, err
	}
	return uint64(c.Pos()), nil
}

func hNew(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	className, err := c.NulTerminated()
	if err != nil {
		return 0, err
	}
	obj, err := proto.New(rt.Prototypes(), className)
	if err != nil {
		return 0, err
	}
	dst.Store(obj)
	return uint64(c.Pos()), nil
}

func asObject(v value.Value) (*proto.Object, error) {
	o, ok := v.(*proto.Object)
	if !ok {
		return nil, fmt.Errorf("%w: expected Object, got %s", value.ErrTypeMismatch, v.TypeName())
	}
	return o, nil
}

// hMsg implements dynamic dispatch: Msg(target, fn) resolves fn against
// target's class hierarchy and calls through the same pending-frame
// mechanism as Call (spec.md 4.7).
func hMsg(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	retReg, hasRet, err := readOptionalRegister(proc, c)
	if err != nil {
		return 0, err
	}
	targetVal, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	methodName, err := c.NulTerminated()
	if err != nil {
		return 0, err
	}
	obj, err := asObject(targetVal)
	if err != nil {
		return 0, err
	}
	fnID, _, err := rt.Prototypes().ResolveMethod(obj.Class().Name(), methodName)
	if err != nil {
		return 0, err
	}
	offset, _, err := rt.FunctionAddress(fnID)
	if err != nil {
		return 0, err
	}
	pending, ok := proc.TakePending()
	if !ok {
		return 0, fmt.Errorf("exec: msg with no pending frame (missing frame instruction)")
	}
	pending.FuncName = fnID
	pending.EntryAddr = offset
	pending.ReturnAddr = uint64(c.Pos())
	if hasRet {
		pending.ReturnTarget = retReg
	}
	proc.PushFrame(pending)
	return offset, nil
}

func hInsert(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	dv, err := dst.Peek()
	if err != nil {
		return 0, err
	}
	obj, err := asObject(dv)
	if err != nil {
		return 0, err
	}
	name, err := c.NulTerminated()
	if err != nil {
		return 0, err
	}
	v, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	obj.Insert(name, v)
	return uint64(c.Pos()), nil
}

func hRemove(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	srcReg, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	sv, err := srcReg.Peek()
	if err != nil {
		return 0, err
	}
	obj, err := asObject(sv)
	if err != nil {
		return 0, err
	}
	name, err := c.NulTerminated()
	if err != nil {
		return 0, err
	}
	v, err := obj.Remove(name)
	if err != nil {
		return 0, err
	}
	dst.Store(v)
	return uint64(c.Pos()), nil
}
