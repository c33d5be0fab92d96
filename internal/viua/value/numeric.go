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

package value

import (
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
)

// Integer is a 64-bit signed integer value.
type Integer int64

func (i Integer) TypeName() string { return "Integer" }
func (i Integer) ToText() string   { return strconv.FormatInt(int64(i), 10) }
func (i Integer) Truthy() bool     { return i != 0 }
func (i Integer) DeepCopy() Value  { return i }

// Float is a 64-bit floating point value.
type Float float64

func (f Float) TypeName() string { return "Float" }
func (f Float) ToText() string   { return strconv.FormatFloat(float64(f), 'g', -1, 64) }
func (f Float) Truthy() bool     { return f != 0 }
func (f Float) DeepCopy() Value  { return f }

// Boolean is a truth value.
type Boolean bool

func (b Boolean) TypeName() string { return "Boolean" }
func (b Boolean) ToText() string   { return strconv.FormatBool(bool(b)) }
func (b Boolean) Truthy() bool     { return bool(b) }
func (b Boolean) DeepCopy() Value  { return b }

// Bits is an arbitrary-width (up to 256 bits) bit string, backed by
// uint256.Int the same way the teacher's PROBE VM represents its wide
// register words.
type Bits struct {
	n     *uint256.Int
	width uint // number of significant bits, 1..256
}

// NewBits constructs a Bits value of the given bit width from a uint64
// payload.
func NewBits(width uint, payload uint64) Bits {
	if width == 0 || width > 256 {
		width = 256
	}
	return Bits{n: uint256.NewInt(payload), width: width}
}

func (b Bits) TypeName() string { return "Bits" }
func (b Bits) ToText() string {
	if b.n == nil {
		return "0b0"
	}
	return "0b" + b.n.Hex()
}
func (b Bits) Truthy() bool { return b.n != nil && !b.n.IsZero() }
func (b Bits) DeepCopy() Value {
	if b.n == nil {
		return b
	}
	cp := new(uint256.Int).Set(b.n)
	return Bits{n: cp, width: b.width}
}

// Width reports the declared bit width of the value.
func (b Bits) Width() uint { return b.width }

// Uint256 exposes the backing integer.
func (b Bits) Uint256() *uint256.Int { return b.n }

// numeric is the capability shared by Integer, Float, and Boolean: every
// arithmetic/comparison opcode widens its operands through it. Text, Vector,
// and Struct deliberately do not implement it and are rejected with
// ErrTypeMismatch.
type numeric interface {
	Value
	asFloat() float64
	isFloat() bool
}

func (i Integer) asFloat() float64 { return float64(i) }
func (i Integer) isFloat() bool    { return false }

func (f Float) asFloat() float64 { return float64(f) }
func (f Float) isFloat() bool    { return true }

func (b Boolean) asFloat() float64 {
	if b {
		return 1
	}
	return 0
}
func (b Boolean) isFloat() bool { return false }

func toNumeric(v Value) (numeric, error) {
	n, ok := v.(numeric)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not numeric", ErrTypeMismatch, v.TypeName())
	}
	return n, nil
}

// arith applies a binary numeric operator, widening to Float if either
// operand is a Float and otherwise operating over Integer arithmetic.
func arith(a, b Value, intOp func(x, y int64) (int64, error), floatOp func(x, y float64) float64) (Value, error) {
	na, err := toNumeric(a)
	if err != nil {
		return nil, err
	}
	nb, err := toNumeric(b)
	if err != nil {
		return nil, err
	}
	if na.isFloat() || nb.isFloat() {
		return Float(floatOp(na.asFloat(), nb.asFloat())), nil
	}
	x, y := int64(na.asFloat()), int64(nb.asFloat())
	r, err := intOp(x, y)
	if err != nil {
		return nil, err
	}
	return Integer(r), nil
}

// Add returns a + b.
func Add(a, b Value) (Value, error) {
	return arith(a, b,
		func(x, y int64) (int64, error) { return x + y, nil },
		func(x, y float64) float64 { return x + y })
}

// Sub returns a - b.
func Sub(a, b Value) (Value, error) {
	return arith(a, b,
		func(x, y int64) (int64, error) { return x - y, nil },
		func(x, y float64) float64 { return x - y })
}

// Mul returns a * b.
func Mul(a, b Value) (Value, error) {
	return arith(a, b,
		func(x, y int64) (int64, error) { return x * y, nil },
		func(x, y float64) float64 { return x * y })
}

// Div returns a / b; fails ErrDivisionByZero for a zero integer divisor.
func Div(a, b Value) (Value, error) {
	return arith(a, b,
		func(x, y int64) (int64, error) {
			if y == 0 {
				return 0, ErrDivisionByZero
			}
			return x / y, nil
		},
		func(x, y float64) float64 { return x / y })
}

// Compare returns -1, 0, or 1 for a<b, a==b, a>b over numeric operands.
func Compare(a, b Value) (int, error) {
	na, err := toNumeric(a)
	if err != nil {
		return 0, err
	}
	nb, err := toNumeric(b)
	if err != nil {
		return 0, err
	}
	x, y := na.asFloat(), nb.asFloat()
	switch {
	case x < y:
		return -1, nil
	case x > y:
		return 1, nil
	default:
		return 0, nil
	}
}
