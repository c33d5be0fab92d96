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

// Package value implements Viua's tagged polymorphic value model: Integer,
// Float, Boolean, Text, String, Bits, Atom, Vector, and Struct. The variants
// that close over a Prototype or a register set (Object, Closure,
// FunctionHandle, ProcessHandle, Pointer, Prototype, Exception) live in
// package proto.
//
// Every variant satisfies Value: TypeName, ToText, Truthy, DeepCopy. A value
// never sits in more than one register or message slot at a time; Cell is
// the shared box a Pointer observes so that moving a value between
// registers never invalidates pointers to it, while deleting it does.
package value

// Value is the capability every variant of the Viua value model implements.
type Value interface {
	// TypeName returns the runtime type name used in error messages and
	// exception-chain matching (e.g. "Integer", "Vector", a class name for
	// Object instances).
	TypeName() string

	// ToText renders a human-readable representation, used by PRINT/ECHO
	// equivalents.
	ToText() string

	// Truthy reports whether the value is considered true in a boolean
	// context (used by IF-style branches and logical operators).
	Truthy() bool

	// DeepCopy returns a structurally independent copy: Vector/Struct/Object
	// clone children, Closure clones its captured set, Pointer clones the
	// reference and origin token without affecting the referent.
	DeepCopy() Value
}

// PID is the opaque, monotonically assigned identifier of a process. PIDs
// are never reused within a single Kernel run.
type PID uint64

// Cell is the shared box a value lives in once it is placed in a register.
// Pointer holds a reference to the Cell of its referent rather than to the
// Value directly: moving a value between registers re-homes the same Cell
// (the pointer keeps working), while deleting or overwriting the value marks
// the Cell stale (the pointer starts failing with ErrStalePointer).
type Cell struct {
	v     Value
	stale bool
}

// NewCell boxes v in a fresh, live Cell.
func NewCell(v Value) *Cell {
	return &Cell{v: v}
}

// Value returns the boxed value. Callers holding a Pointer must check Stale
// first.
func (c *Cell) Value() Value { return c.v }

// Stale reports whether the boxed value has been deleted or overwritten.
func (c *Cell) Stale() bool { return c == nil || c.stale }

// MarkStale flags the cell as no longer backing a live value. It is called
// when a register holding this cell is deleted or overwritten with a fresh
// value, never when the value is merely moved to another register.
func (c *Cell) MarkStale() {
	if c != nil {
		c.stale = true
	}
}
