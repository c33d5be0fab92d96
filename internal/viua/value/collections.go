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

import "fmt"

// Vector is an ordered sequence of owned values.
type Vector struct {
	items []Value
}

// NewVector constructs a Vector from the given owned values.
func NewVector(items ...Value) *Vector {
	v := make([]Value, len(items))
	copy(v, items)
	return &Vector{items: v}
}

func (v *Vector) TypeName() string { return "Vector" }
func (v *Vector) ToText() string {
	out := "["
	for i, item := range v.items {
		if i > 0 {
			out += ", "
		}
		out += item.ToText()
	}
	return out + "]"
}
func (v *Vector) Truthy() bool { return len(v.items) > 0 }
func (v *Vector) DeepCopy() Value {
	cp := make([]Value, len(v.items))
	for i, item := range v.items {
		cp[i] = item.DeepCopy()
	}
	return &Vector{items: cp}
}

// Len returns the number of elements.
func (v *Vector) Len() int { return len(v.items) }

// At returns the element at index i without removing it.
func (v *Vector) At(i int) (Value, error) {
	if i < 0 {
		return nil, fmt.Errorf("%w: negative vector index %d", ErrInvalidIndex, i)
	}
	if i >= len(v.items) {
		return nil, fmt.Errorf("%w: vector index %d, length %d", ErrOutOfBounds, i, len(v.items))
	}
	return v.items[i], nil
}

// Insert shifts the tail right and places val at index i.
func (v *Vector) Insert(i int, val Value) error {
	if i < 0 {
		return fmt.Errorf("%w: negative vector index %d", ErrInvalidIndex, i)
	}
	if i > len(v.items) {
		return fmt.Errorf("%w: vector index %d, length %d", ErrOutOfBounds, i, len(v.items))
	}
	v.items = append(v.items, nil)
	copy(v.items[i+1:], v.items[i:])
	v.items[i] = val
	return nil
}

// Push appends val to the end.
func (v *Vector) Push(val Value) { v.items = append(v.items, val) }

// Pop removes and returns the element at index i. A negative i is rejected;
// callers wanting "pop last" pass i == Len()-1 (the exec layer maps a void
// index operand to this before calling Pop, per spec.md 4.1).
func (v *Vector) Pop(i int) (Value, error) {
	if i < 0 {
		return nil, fmt.Errorf("%w: negative vector index %d", ErrInvalidIndex, i)
	}
	if i >= len(v.items) {
		return nil, fmt.Errorf("%w: vector index %d, length %d", ErrOutOfBounds, i, len(v.items))
	}
	val := v.items[i]
	v.items = append(v.items[:i], v.items[i+1:]...)
	return val, nil
}

// Struct is a mapping from Atom to owned value, preserving insertion order
// for ToText rendering.
type Struct struct {
	order []Atom
	attrs map[Atom]Value
}

// NewStruct constructs an empty Struct.
func NewStruct() *Struct {
	return &Struct{attrs: make(map[Atom]Value)}
}

func (s *Struct) TypeName() string { return "Struct" }
func (s *Struct) ToText() string {
	out := "{"
	for i, k := range s.order {
		if i > 0 {
			out += ", "
		}
		out += string(k) + ": " + s.attrs[k].ToText()
	}
	return out + "}"
}
func (s *Struct) Truthy() bool { return len(s.order) > 0 }
func (s *Struct) DeepCopy() Value {
	cp := NewStruct()
	for _, k := range s.order {
		cp.Insert(k, s.attrs[k].DeepCopy())
	}
	return cp
}

// Insert overwrites (or creates) the value bound to atom.
func (s *Struct) Insert(atom Atom, v Value) {
	if _, exists := s.attrs[atom]; !exists {
		s.order = append(s.order, atom)
	}
	s.attrs[atom] = v
}

// Get returns the value bound to atom, or ErrMissingKey.
func (s *Struct) Get(atom Atom) (Value, error) {
	v, ok := s.attrs[atom]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingKey, atom)
	}
	return v, nil
}

// Remove deletes and returns the value bound to atom, or ErrMissingKey.
func (s *Struct) Remove(atom Atom) (Value, error) {
	v, ok := s.attrs[atom]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingKey, atom)
	}
	delete(s.attrs, atom)
	for i, k := range s.order {
		if k == atom {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return v, nil
}

// Keys returns the atoms bound in the struct, in insertion order.
func (s *Struct) Keys() []Atom {
	cp := make([]Atom, len(s.order))
	copy(cp, s.order)
	return cp
}
