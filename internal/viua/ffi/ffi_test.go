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

package ffi

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viua-lang/viua/internal/viua/value"
)

func TestCallRunsRegisteredFunction(t *testing.T) {
	reg := NewRegistry()
	reg.Register("double/1", func(args []value.Value) (value.Value, error) {
		n := args[0].(value.Integer)
		return value.Integer(int64(n) * 2), nil
	})
	require.True(t, reg.IsRegistered("double/1"))
	require.False(t, reg.IsRegistered("missing/0"))

	pool := NewPool(reg, 2)
	defer pool.Close()

	v, err := pool.Call("double/1", []value.Value{value.Integer(21)})
	require.NoError(t, err)
	require.Equal(t, value.Integer(42), v)
}

func TestCallUnknownFunctionErrors(t *testing.T) {
	pool := NewPool(NewRegistry(), 1)
	defer pool.Close()

	_, err := pool.Call("nope/0", nil)
	require.ErrorIs(t, err, ErrUnknownFunction)
}

func TestCallPropagatesFunctionError(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("boom")
	reg.Register("fail/0", func(args []value.Value) (value.Value, error) {
		return nil, boom
	})
	pool := NewPool(reg, 1)
	defer pool.Close()

	_, err := pool.Call("fail/0", nil)
	require.ErrorIs(t, err, boom)
}

func TestConcurrentCallsAreAllServiced(t *testing.T) {
	reg := NewRegistry()
	reg.Register("identity/1", func(args []value.Value) (value.Value, error) {
		return args[0], nil
	})
	pool := NewPool(reg, 4)
	defer pool.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := pool.Call("identity/1", []value.Value{value.Integer(int64(i))})
			require.NoError(t, err)
			require.Equal(t, value.Integer(int64(i)), v)
		}()
	}
	wg.Wait()
}

func TestCallAfterCloseFails(t *testing.T) {
	pool := NewPool(NewRegistry(), 1)
	require.NoError(t, pool.Close())

	_, err := pool.Call("anything/0", nil)
	require.ErrorIs(t, err, ErrClosed)
}
