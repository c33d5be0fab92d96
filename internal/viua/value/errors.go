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

import "errors"

// ErrTypeMismatch is returned when an operand does not satisfy the numeric,
// text, or collection capability a handler requires.
var ErrTypeMismatch = errors.New("value: type mismatch")

// ErrInvalidIndex is returned by Text/Vector index accessors given a
// negative index.
var ErrInvalidIndex = errors.New("value: invalid index")

// ErrOutOfBounds is returned by Vector/Text accessors given an index at or
// beyond the length of the receiver.
var ErrOutOfBounds = errors.New("value: index out of bounds")

// ErrMissingKey is returned by Struct.Remove when the atom is not present.
var ErrMissingKey = errors.New("value: missing key")

// ErrStalePointer is returned when dereferencing a Pointer whose referent
// has been deleted.
var ErrStalePointer = errors.New("value: stale pointer")

// ErrCrossProcessPointer is returned when dereferencing a Pointer from a
// process other than the one that created it.
var ErrCrossProcessPointer = errors.New("value: cross-process pointer dereference")

// ErrDivisionByZero is returned by Div when the integer divisor is zero.
var ErrDivisionByZero = errors.New("value: division by zero")
