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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viua-lang/viua/internal/viua/bytecode"
	"github.com/viua-lang/viua/internal/viua/value"
)

func globalRegOperand(idx int) []byte {
	b := []byte{byte(bytecode.TagRegisterIndex)}
	var idxBuf [4]byte
	idxBuf[0] = byte(idx)
	b = append(b, idxBuf[:]...)
	b = append(b, byte(bytecode.MarkerGlobal))
	return b
}

func atomArg(name string) []byte {
	b := []byte{byte(bytecode.TagAtom)}
	b = append(b, []byte(name)...)
	return append(b, 0)
}

// TestReturnRunsDeferredCallsInReverseRegistrationOrder exercises a frame
// with two Defer-registered calls: d1 registered before d2 must still run
// *after* d2 (spec.md 8: "deferred calls scheduled D1 then D2 execute in
// order D2 then D1, both before the caller observes the return"), and the
// caller must resume cleanly once both have run.
func TestReturnRunsDeferredCallsInReverseRegistrationOrder(t *testing.T) {
	var code []byte

	// d1: snapshot the shared counter into global r0, then bump it.
	d1Off := len(code)
	code = append(code, byte(COPY))
	code = append(code, globalRegOperand(0)...)
	code = append(code, globalRegOperand(2)...)
	code = append(code, byte(IINC))
	code = append(code, globalRegOperand(2)...)
	code = append(code, byte(RETURN))

	// d2: snapshot the shared counter into global r1, then bump it.
	d2Off := len(code)
	code = append(code, byte(COPY))
	code = append(code, globalRegOperand(1)...)
	code = append(code, globalRegOperand(2)...)
	code = append(code, byte(IINC))
	code = append(code, globalRegOperand(2)...)
	code = append(code, byte(RETURN))

	// main: defer d1, then defer d2, then return. Each Defer consumes its
	// own pending frame, same as Call.
	mainOff := len(code)
	code = append(code, byte(IZERO))
	code = append(code, globalRegOperand(2)...)
	code = append(code, byte(FRAME), 0, 0, 0, 0, 0, 0, 0, 0)
	code = append(code, byte(DEFER))
	code = append(code, atomArg("d1")...)
	code = append(code, byte(FRAME), 0, 0, 0, 0, 0, 0, 0, 0)
	code = append(code, byte(DEFER))
	code = append(code, atomArg("d2")...)
	code = append(code, byte(RETURN))

	// caller: frame 0 0; call void, main; halt.
	callerOff := len(code)
	code = append(code, byte(FRAME), 0, 0, 0, 0, 0, 0, 0, 0)
	code = append(code, byte(CALL))
	code = append(code, byte(bytecode.TagVoid))
	code = append(code, atomArg("main")...)
	code = append(code, byte(HALT))

	rt := newFakeRuntime(code)
	rt.functions["d1"] = uint64(d1Off)
	rt.functions["d2"] = uint64(d2Off)
	rt.functions["main"] = uint64(mainOff)

	proc := newTestProcess()

	ip := uint64(callerOff)
	var err error
	for {
		ip, err = Step(rt, proc, ip)
		if err != nil {
			break
		}
	}
	require.ErrorIs(t, err, ErrHalt)

	d2Marker, err := proc.Global().At(1)
	require.NoError(t, err)
	d2Val, err := d2Marker.Peek()
	require.NoError(t, err)
	require.Equal(t, value.Integer(0), d2Val, "d2 (registered second) must run first")

	d1Marker, err := proc.Global().At(0)
	require.NoError(t, err)
	d1Val, err := d1Marker.Peek()
	require.NoError(t, err)
	require.Equal(t, value.Integer(1), d1Val, "d1 (registered first) must run last, after d2")

	outcome, ok := proc.Outcome()
	require.True(t, ok)
	require.Equal(t, value.Boolean(true), outcome.Value)
}
