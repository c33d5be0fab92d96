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

package register

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viua-lang/viua/internal/viua/value"
)

func TestStoreThenReleaseEmptiesSlotAndReturnsSameValue(t *testing.T) {
	var r Register
	require.True(t, r.Empty())

	r.Store(value.Integer(42))
	require.False(t, r.Empty())

	cell, err := r.Release()
	require.NoError(t, err)
	require.True(t, r.Empty())
	require.Equal(t, value.Integer(42), cell.Value())
}

func TestReleaseOnEmptyFails(t *testing.T) {
	var r Register
	_, err := r.Release()
	require.ErrorIs(t, err, ErrEmpty)
}

func TestMoveBetweenRegistersPreservesPointerValidity(t *testing.T) {
	var src, dst Register
	src.Store(value.NewVector(value.Integer(1)))
	cell := src.Cell()

	// Simulate MOVE: release from src, store the same cell into dst.
	released, err := src.Release()
	require.NoError(t, err)
	dst.StoreCell(released)

	require.True(t, src.Empty())
	require.False(t, cell.Stale(), "moving a value must not invalidate pointers to it")
}

func TestDeleteMarksCellStale(t *testing.T) {
	var r Register
	r.Store(value.Integer(7))
	cell := r.Cell()

	_, err := r.Delete()
	require.NoError(t, err)
	require.True(t, cell.Stale())
}

func TestStoreOverExistingOccupantInvalidatesOldCell(t *testing.T) {
	var r Register
	r.Store(value.Integer(1))
	old := r.Cell()

	r.Store(value.Integer(2))
	require.True(t, old.Stale())
	v, err := r.Peek()
	require.NoError(t, err)
	require.Equal(t, value.Integer(2), v)
}

func TestSetIndexOutOfRange(t *testing.T) {
	s := NewSet(4, Local)
	_, err := s.At(4)
	require.True(t, errors.Is(err, ErrIndexOutOfRange))
}

func TestResolveIndirectRejectsNegative(t *testing.T) {
	s := NewSet(2, Local)
	r, err := s.At(0)
	require.NoError(t, err)
	r.Store(value.Integer(-1))

	_, err = s.ResolveIndirect(0)
	require.ErrorIs(t, err, ErrInvalidIndirectIndex)
}

func TestResolveIndirectReadsIndex(t *testing.T) {
	s := NewSet(3, Local)
	r, err := s.At(0)
	require.NoError(t, err)
	r.Store(value.Integer(2))

	idx, err := s.ResolveIndirect(0)
	require.NoError(t, err)
	require.Equal(t, 2, idx)
}
