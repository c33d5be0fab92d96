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

func asText(v value.Value) (value.Text, error) {
	t, ok := v.(value.Text)
	if !ok {
		return value.Text{}, fmt.Errorf("%w: expected Text, got %s", value.ErrTypeMismatch, v.TypeName())
	}
	return t, nil
}

func hText(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	s, err := c.NulTerminated()
	if err != nil {
		return 0, err
	}
	dst.Store(value.NewText(s))
	return uint64(c.Pos()), nil
}

func hTextEq(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	av, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	bv, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	a, err := asText(av)
	if err != nil {
		return 0, err
	}
	b, err := asText(bv)
	if err != nil {
		return 0, err
	}
	dst.Store(value.Boolean(a.ToText() == b.ToText()))
	return uint64(c.Pos()), nil
}

func hTextAt(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	sv, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	idx, err := readInt(rt, proc, c)
	if err != nil {
		return 0, err
	}
	t, err := asText(sv)
	if err != nil {
		return 0, err
	}
	r, err := t.At(int(idx))
	if err != nil {
		return 0, err
	}
	dst.Store(r)
	return uint64(c.Pos()), nil
}

func textRange(rt Runtime, proc *process.Process, c *bytecode.Cursor,
	apply func(t value.Text, begin, end int) (value.Text, error)) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	sv, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	t, err := asText(sv)
	if err != nil {
		return 0, err
	}
	begin, err := readInt(rt, proc, c)
	if err != nil {
		return 0, err
	}
	end, hasEnd, err := readIndexOrVoid(rt, proc, c)
	if err != nil {
		return 0, err
	}
	if !hasEnd {
		end = t.Length()
	}
	out, err := apply(t, int(begin), end)
	if err != nil {
		return 0, err
	}
	dst.Store(out)
	return uint64(c.Pos()), nil
}

func hTextSub(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return textRange(rt, proc, c, func(t value.Text, begin, end int) (value.Text, error) {
		return t.Sub(begin, end)
	})
}

func hTextView(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return textRange(rt, proc, c, func(t value.Text, begin, end int) (value.Text, error) {
		return t.View(begin, end)
	})
}

func hTextLength(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	sv, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	t, err := asText(sv)
	if err != nil {
		return 0, err
	}
	dst.Store(value.Integer(t.Length()))
	return uint64(c.Pos()), nil
}

func textPairLength(rt Runtime, proc *process.Process, c *bytecode.Cursor,
	apply func(a, b value.Text) int) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	av, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	bv, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	a, err := asText(av)
	if err != nil {
		return 0, err
	}
	b, err := asText(bv)
	if err != nil {
		return 0, err
	}
	dst.Store(value.Integer(apply(a, b)))
	return uint64(c.Pos()), nil
}

func hTextCommonPrefix(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return textPairLength(rt, proc, c, func(a, b value.Text) int { return a.CommonPrefix(b) })
}

func hTextCommonSuffix(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return textPairLength(rt, proc, c, func(a, b value.Text) int { return a.CommonSuffix(b) })
}

func hTextConcat(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	av, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	bv, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	a, err := asText(av)
	if err != nil {
		return 0, err
	}
	b, err := asText(bv)
	if err != nil {
		return 0, err
	}
	dst.Store(a.Concat(b))
	return uint64(c.Pos()), nil
}
