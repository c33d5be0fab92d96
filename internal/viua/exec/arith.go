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
	"strconv"

	"github.com/viua-lang/viua/internal/viua/bytecode"
	"github.com/viua-lang/viua/internal/viua/process"
	"github.com/viua-lang/viua/internal/viua/value"
)

func hIzero(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	dst.Store(value.Integer(0))
	return uint64(c.Pos()), nil
}

func hIstore(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	n, err := c.Int64()
	if err != nil {
		return 0, err
	}
	dst.Store(value.Integer(n))
	return uint64(c.Pos()), nil
}

func hIinc(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	v, err := dst.Peek()
	if err != nil {
		return 0, err
	}
	i, ok := v.(value.Integer)
	if !ok {
		return 0, fmt.Errorf("%w: iinc on non-integer", value.ErrTypeMismatch)
	}
	dst.Store(i + 1)
	return uint64(c.Pos()), nil
}

func hIdec(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	v, err := dst.Peek()
	if err != nil {
		return 0, err
	}
	i, ok := v.(value.Integer)
	if !ok {
		return 0, fmt.Errorf("%w: idec on non-integer", value.ErrTypeMismatch)
	}
	dst.Store(i - 1)
	return uint64(c.Pos()), nil
}

func hFstore(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	f, err := c.Float64()
	if err != nil {
		return 0, err
	}
	dst.Store(value.Float(f))
	return uint64(c.Pos()), nil
}

func hItof(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return convertInto(rt, proc, c, func(v value.Value) (value.Value, error) {
		i, ok := v.(value.Integer)
		if !ok {
			return nil, fmt.Errorf("%w: itof expects an integer", value.ErrTypeMismatch)
		}
		return value.Float(float64(i)), nil
	})
}

func hFtoi(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return convertInto(rt, proc, c, func(v value.Value) (value.Value, error) {
		f, ok := v.(value.Float)
		if !ok {
			return nil, fmt.Errorf("%w: ftoi expects a float", value.ErrTypeMismatch)
		}
		return value.Integer(int64(f)), nil
	})
}

func hStoi(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return convertInto(rt, proc, c, func(v value.Value) (value.Value, error) {
		n, err := strconv.ParseInt(v.ToText(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: stoi: %v", value.ErrTypeMismatch, err)
		}
		return value.Integer(n), nil
	})
}

func hStof(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return convertInto(rt, proc, c, func(v value.Value) (value.Value, error) {
		f, err := strconv.ParseFloat(v.ToText(), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: stof: %v", value.ErrTypeMismatch, err)
		}
		return value.Float(f), nil
	})
}

// convertInto decodes (dst, src) register operands, applies convert to src's
// value, and stores the result in dst — the shape every n-to-m numeric
// conversion opcode shares.
func convertInto(rt Runtime, proc *process.Process, c *bytecode.Cursor, convert func(value.Value) (value.Value, error)) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	src, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	out, err := convert(src)
	if err != nil {
		return 0, err
	}
	dst.Store(out)
	return uint64(c.Pos()), nil
}

func binaryArith(rt Runtime, proc *process.Process, c *bytecode.Cursor, op func(a, b value.Value) (value.Value, error)) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	a, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	b, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	out, err := op(a, b)
	if err != nil {
		return 0, err
	}
	dst.Store(out)
	return uint64(c.Pos()), nil
}

func hAdd(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return binaryArith(rt, proc, c, value.Add)
}
func hSub(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return binaryArith(rt, proc, c, value.Sub)
}
func hMul(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return binaryArith(rt, proc, c, value.Mul)
}
func hDiv(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return binaryArith(rt, proc, c, value.Div)
}

func compareOp(rt Runtime, proc *process.Process, c *bytecode.Cursor, accept func(int) bool) (uint64, error) {
	return binaryArith(rt, proc, c, func(a, b value.Value) (value.Value, error) {
		cmp, err := value.Compare(a, b)
		if err != nil {
			return nil, err
		}
		return value.Boolean(accept(cmp)), nil
	})
}

func hLt(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return compareOp(rt, proc, c, func(cmp int) bool { return cmp < 0 })
}
func hLte(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return compareOp(rt, proc, c, func(cmp int) bool { return cmp <= 0 })
}
func hGt(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return compareOp(rt, proc, c, func(cmp int) bool { return cmp > 0 })
}
func hGte(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return compareOp(rt, proc, c, func(cmp int) bool { return cmp >= 0 })
}
func hEq(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	return compareOp(rt, proc, c, func(cmp int) bool { return cmp == 0 })
}

func hStrstore(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	b, err := c.LengthPrefixedBytes()
	if err != nil {
		return 0, err
	}
	dst.Store(value.String(b))
	return uint64(c.Pos()), nil
}

func hStreq(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	a, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	b, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	sa, ok := a.(value.String)
	if !ok {
		return 0, fmt.Errorf("%w: streq expects string operands", value.ErrTypeMismatch)
	}
	sb, ok := b.(value.String)
	if !ok {
		return 0, fmt.Errorf("%w: streq expects string operands", value.ErrTypeMismatch)
	}
	dst.Store(value.Boolean(string(sa) == string(sb)))
	return uint64(c.Pos()), nil
}

func hBool(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	src, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	if src == nil {
		dst.Store(value.Boolean(false))
	} else {
		dst.Store(value.Boolean(src.Truthy()))
	}
	return uint64(c.Pos()), nil
}

func hNot(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	src, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	dst.Store(value.Boolean(!src.Truthy()))
	return uint64(c.Pos()), nil
}

func hAnd(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	a, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	b, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	dst.Store(value.Boolean(a.Truthy() && b.Truthy()))
	return uint64(c.Pos()), nil
}

func hOr(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	a, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	b, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	dst.Store(value.Boolean(a.Truthy() || b.Truthy()))
	return uint64(c.Pos()), nil
}
