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

package proto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viua-lang/viua/internal/viua/value"
)

func TestDynamicDispatchFallsThroughToBase(t *testing.T) {
	reg := NewRegistry()

	a := NewPrototype("A")
	a.Attach("m", "a_m/1")
	require.NoError(t, reg.Register(a))

	b := NewPrototype("B")
	b.Derive("A")
	require.NoError(t, reg.Register(b))

	fnID, defining, err := reg.ResolveMethod("B", "m")
	require.NoError(t, err)
	require.Equal(t, "a_m/1", fnID)
	require.Equal(t, "A", defining)
}

func TestDuplicateClassRegistrationFails(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewPrototype("A")))
	err := reg.Register(NewPrototype("A"))
	require.ErrorIs(t, err, ErrDuplicateClass)
}

func TestMethodNotFoundOnEmptyChain(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewPrototype("A")))
	_, _, err := reg.ResolveMethod("A", "missing")
	require.ErrorIs(t, err, ErrMethodNotFound)
}

func TestUnknownClassOnNew(t *testing.T) {
	reg := NewRegistry()
	_, err := New(reg, "Nope")
	require.ErrorIs(t, err, ErrUnknownClass)
}

func TestStalePointerAfterDelete(t *testing.T) {
	cell := value.NewCell(value.NewVector(value.Integer(1)))
	p := NewPointer(cell, value.PID(1))

	v, err := p.Dereference(value.PID(1))
	require.NoError(t, err)
	require.Equal(t, "Vector", v.TypeName())

	cell.MarkStale()
	_, err = p.Dereference(value.PID(1))
	require.ErrorIs(t, err, value.ErrStalePointer)
}

func TestCrossProcessPointerDereferenceFails(t *testing.T) {
	cell := value.NewCell(value.Integer(1))
	p := NewPointer(cell, value.PID(1))

	_, err := p.Dereference(value.PID(2))
	require.ErrorIs(t, err, value.ErrCrossProcessPointer)
}

func TestObjectInheritanceChainMatchesDeclarationOrder(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewPrototype("V")))
	require.NoError(t, reg.Register(NewPrototype("U")))
	tp := NewPrototype("T")
	tp.Derive("U")
	tp.Derive("V")
	require.NoError(t, reg.Register(tp))

	obj, err := New(reg, "T")
	require.NoError(t, err)
	require.Equal(t, []string{"T", "U", "V"}, obj.InheritanceChain())
}
