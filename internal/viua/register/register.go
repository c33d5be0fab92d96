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

// Package register implements the register and register-set model of
// spec.md 3: fixed-capacity indexed slots, each holding at most one owned
// Value, plus the four semantic register-set roles (Local, Static, Global,
// Current) a frame can address.
package register

import (
	"errors"
	"fmt"

	"github.com/viua-lang/viua/internal/viua/value"
)

// ErrEmpty is returned when peeking or releasing an empty register.
var ErrEmpty = errors.New("register: slot is empty")

// ErrIndexOutOfRange is returned when a register index exceeds the set's
// capacity.
var ErrIndexOutOfRange = errors.New("register: index out of range")

// ErrInvalidIndirectIndex is returned when register-indirect access reads a
// non-Integer, or a negative Integer, from the index register.
var ErrInvalidIndirectIndex = errors.New("register: invalid indirect index")

// Register is a slot holding at most one owned value.Value. A Register
// never copies a value implicitly: Store always installs a brand-new Cell
// (invalidating whatever pointer observed the previous occupant), while
// StoreCell re-homes an existing Cell so that any Pointer watching it keeps
// working — this is how MOVE preserves pointer validity and DELETE/
// overwrite does not (see value.Cell and spec.md 9's pointer design notes).
type Register struct {
	cell *value.Cell
}

// Empty reports whether the register currently holds a value.
func (r *Register) Empty() bool { return r.cell == nil }

// Peek returns the boxed value without removing it.
func (r *Register) Peek() (value.Value, error) {
	if r.cell == nil {
		return nil, ErrEmpty
	}
	return r.cell.Value(), nil
}

// Store installs v as a freshly boxed value, marking any previous occupant's
// cell stale (its pointers start failing with value.ErrStalePointer).
func (r *Register) Store(v value.Value) {
	r.cell.MarkStale()
	r.cell = value.NewCell(v)
}

// StoreCell installs an existing cell, marking the previous occupant's cell
// stale if, and only if, it differs from c; used by MOVE to transfer
// ownership of a value (and its cell identity) between registers.
func (r *Register) StoreCell(c *value.Cell) {
	if r.cell != c {
		r.cell.MarkStale()
	}
	r.cell = c
}

// Cell returns the register's current cell (nil if empty) without removing
// it; PTR uses it to build a Pointer to the value in place.
func (r *Register) Cell() *value.Cell { return r.cell }

// Release empties the slot and returns its cell. The caller may re-home the
// cell via StoreCell elsewhere (preserving pointer validity) or let it drop
// (in which case any observing Pointer simply becomes unreachable garbage,
// not stale — staleness is reserved for an explicit Delete or overwrite).
func (r *Register) Release() (*value.Cell, error) {
	if r.cell == nil {
		return nil, ErrEmpty
	}
	c := r.cell
	r.cell = nil
	return c, nil
}

// Delete empties the slot and marks the value gone: any Pointer observing it
// now fails with value.ErrStalePointer.
func (r *Register) Delete() (value.Value, error) {
	if r.cell == nil {
		return nil, ErrEmpty
	}
	v := r.cell.Value()
	r.cell.MarkStale()
	r.cell = nil
	return v, nil
}

// Swap exchanges the contents of two registers without affecting pointer
// validity on either side.
func (r *Register) Swap(other *Register) {
	r.cell, other.cell = other.cell, r.cell
}

// Role identifies which of the four semantic register sets a frame
// addresses (spec.md 3).
type Role int

const (
	Local Role = iota
	Static
	Global
	Current
)

func (r Role) String() string {
	switch r {
	case Local:
		return "local"
	case Static:
		return "static"
	case Global:
		return "global"
	case Current:
		return "current"
	default:
		return "unknown"
	}
}

// Set is a fixed-capacity indexed array of Registers.
type Set struct {
	role Role
	regs []Register
}

// NewSet allocates a Set of the given capacity bound to role.
func NewSet(capacity int, role Role) *Set {
	return &Set{role: role, regs: make([]Register, capacity)}
}

// Role reports the set's semantic role.
func (s *Set) Role() Role { return s.role }

// Len returns the set's capacity.
func (s *Set) Len() int { return len(s.regs) }

// At returns the register at index i, bounds-checked.
func (s *Set) At(i int) (*Register, error) {
	if i < 0 || i >= len(s.regs) {
		return nil, fmt.Errorf("%w: index %d, capacity %d", ErrIndexOutOfRange, i, len(s.regs))
	}
	return &s.regs[i], nil
}

// ResolveIndirect reads an Integer from the register at index i and returns
// its value as an effective index, failing ErrInvalidIndirectIndex on a
// negative or non-Integer occupant.
func (s *Set) ResolveIndirect(i int) (int, error) {
	r, err := s.At(i)
	if err != nil {
		return 0, err
	}
	v, err := r.Peek()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidIndirectIndex, err)
	}
	n, ok := v.(value.Integer)
	if !ok || n < 0 {
		return 0, fmt.Errorf("%w: register %d holds %v", ErrInvalidIndirectIndex, i, v)
	}
	return int(n), nil
}
