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
	"github.com/viua-lang/viua/internal/viua/value"
)

func asVector(v value.Value) (*value.Vector, error) {
	vec, ok := v.(*value.Vector)
	if !ok {
		return nil, fmt.Errorf("%w: expected Vector, got %s", value.ErrTypeMismatch, v.TypeName())
	}
	return vec, nil
}

func hVec(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	dst.Store(value.NewVector())
	return uint64(c.Pos()), nil
}

func hVinsert(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	dv, err := dst.Peek()
	if err != nil {
		return 0, err
	}
	vec, err := asVector(dv)
	if err != nil {
		return 0, err
	}
	idx, err := readInt(rt, proc, c)
	if err != nil {
		return 0, err
	}
	val, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	if err := vec.Insert(int(idx), val); err != nil {
		return 0, err
	}
	return uint64(c.Pos()), nil
}

func hVpush(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	dv, err := dst.Peek()
	if err != nil {
		return 0, err
	}
	vec, err := asVector(dv)
	if err != nil {
		return 0, err
	}
	val, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	vec.Push(val)
	return uint64(c.Pos()), nil
}

func hVpop(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
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
	vec, err := asVector(sv)
	if err != nil {
		return 0, err
	}
	idx, hasIdx, err := readIndexOrVoid(rt, proc, c)
	if err != nil {
		return 0, err
	}
	if !hasIdx {
		idx = vec.Len() - 1
	}
	popped, err := vec.Pop(idx)
	if err != nil {
		return 0, err
	}
	dst.Store(popped)
	return uint64(c.Pos()), nil
}

func hVat(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	sv, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	vec, err := asVector(sv)
	if err != nil {
		return 0, err
	}
	idx, err := readInt(rt, proc, c)
	if err != nil {
		return 0, err
	}
	elem, err := vec.At(int(idx))
	if err != nil {
		return 0, err
	}
	dst.Store(elem)
	return uint64(c.Pos()), nil
}

func hVlen(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	sv, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	vec, err := asVector(sv)
	if err != nil {
		return 0, err
	}
	dst.Store(value.Integer(vec.Len()))
	return uint64(c.Pos()), nil
}
