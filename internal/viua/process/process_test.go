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

package process

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viua-lang/viua/internal/viua/frame"
	"github.com/viua-lang/viua/internal/viua/value"
)

func TestMailboxFIFOOrder(t *testing.T) {
	mb := NewMailbox()
	mb.Send(value.Integer(1))
	mb.Send(value.Integer(2))

	v1, ok := mb.TryReceive()
	require.True(t, ok)
	require.Equal(t, value.Integer(1), v1)

	v2, ok := mb.TryReceive()
	require.True(t, ok)
	require.Equal(t, value.Integer(2), v2)

	_, ok = mb.TryReceive()
	require.False(t, ok)
}

func TestSendAfterCloseIsSilentlyDropped(t *testing.T) {
	mb := NewMailbox()
	mb.close()
	mb.Send(value.Integer(1))
	_, ok := mb.TryReceive()
	require.False(t, ok)
}

func TestTailCallKeepsStackDepthBounded(t *testing.T) {
	p := New(value.PID(1), frame.New(0, 1), false)
	require.Equal(t, 1, p.Depth())

	for i := 0; i < 1000; i++ {
		p.ReplaceTop(frame.New(0, 1))
		require.Equal(t, 1, p.Depth())
	}
}

func TestTerminateRecordsOutcome(t *testing.T) {
	p := New(value.PID(1), frame.New(0, 1), false)
	p.Terminate(value.Integer(42), nil)

	out, ok := p.Outcome()
	require.True(t, ok)
	require.Equal(t, value.Integer(42), out.Value)
	require.Nil(t, out.Exception)
	require.Equal(t, Terminated, p.State())
}
