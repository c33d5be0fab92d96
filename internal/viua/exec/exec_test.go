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
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viua-lang/viua/internal/viua/bytecode"
	"github.com/viua-lang/viua/internal/viua/frame"
	"github.com/viua-lang/viua/internal/viua/proto"
	"github.com/viua-lang/viua/internal/viua/process"
	"github.com/viua-lang/viua/internal/viua/value"
)

// fakeRuntime is a minimal Runtime used to exercise handlers without a
// full kernel: a single shared code buffer, a name-to-offset function
// table, and a prototype registry.
type fakeRuntime struct {
	code      []byte
	functions map[string]uint64
	protos    *proto.Registry
	printed   []string
	echoed    []string
}

func newFakeRuntime(code []byte) *fakeRuntime {
	return &fakeRuntime{code: code, functions: map[string]uint64{}, protos: proto.NewRegistry()}
}

func (f *fakeRuntime) Code() []byte { return f.code }
func (f *fakeRuntime) FunctionAddress(name string) (uint64, int, error) {
	off, ok := f.functions[name]
	if !ok {
		return 0, 0, fmt.Errorf("fakeRuntime: unknown function %s", name)
	}
	return off, 0, nil
}
func (f *fakeRuntime) BlockAddress(name string) (uint64, error) {
	off, ok := f.functions[name]
	if !ok {
		return 0, fmt.Errorf("fakeRuntime: unknown block %s", name)
	}
	return off, nil
}
func (f *fakeRuntime) Prototypes() *proto.Registry { return f.protos }
func (f *fakeRuntime) Spawn(fn string, initial *frame.Frame, hidden, disowned bool, watchdog string) (value.PID, error) {
	return 0, fmt.Errorf("fakeRuntime: spawn not supported")
}
func (f *fakeRuntime) Send(pid value.PID, msg value.Value) error { return nil }
func (f *fakeRuntime) Join(pid value.PID) (value.Value, value.Value, bool, error) {
	return nil, nil, false, fmt.Errorf("fakeRuntime: join not supported")
}
func (f *fakeRuntime) ForeignCall(name string, args []value.Value) (value.Value, error) {
	return nil, fmt.Errorf("fakeRuntime: no foreign functions registered")
}
func (f *fakeRuntime) Print(s string) { f.printed = append(f.printed, s) }
func (f *fakeRuntime) Echo(s string)  { f.echoed = append(f.echoed, s) }

func regOperand(idx int) []byte {
	b := []byte{byte(bytecode.TagRegisterIndex)}
	var idxBuf [4]byte
	idxBuf[0] = byte(idx)
	b = append(b, idxBuf[:]...)
	b = append(b, byte(bytecode.MarkerLocal))
	return b
}

// istoreImmediate encodes the raw little-endian int64 payload ISTORE reads
// directly (unlike most operands, ISTORE's literal carries no leading tag
// byte — see hIstore).
func istoreImmediate(n int64) []byte {
	var b []byte
	for i := 0; i < 8; i++ {
		b = append(b, byte(n>>(8*i)))
	}
	return b
}

func newTestProcess() *process.Process {
	f := frame.New(0, 8)
	return process.New(value.PID(1), f, false)
}

func TestStepIzeroIstoreAdd(t *testing.T) {
	// izero r0; istore r1, 5; add r2, r0, r1
	code := []byte{byte(IZERO)}
	code = append(code, regOperand(0)...)
	code = append(code, byte(ISTORE))
	code = append(code, regOperand(1)...)
	code = append(code, istoreImmediate(5)...)
	code = append(code, byte(ADD))
	code = append(code, regOperand(2)...)
	code = append(code, regOperand(0)...)
	code = append(code, regOperand(1)...)

	rt := newFakeRuntime(code)
	proc := newTestProcess()

	ip := uint64(0)
	var err error
	for i := 0; i < 3; i++ {
		ip, err = Step(rt, proc, ip)
		require.NoError(t, err)
	}

	f, _ := proc.Current()
	reg, err := f.Locals.At(2)
	require.NoError(t, err)
	v, err := reg.Peek()
	require.NoError(t, err)
	require.Equal(t, value.Integer(5), v)
}

func TestStepMoveReplacesOccupantWithoutStaling(t *testing.T) {
	code := []byte{byte(ISTORE)}
	code = append(code, regOperand(0)...)
	code = append(code, istoreImmediate(42)...)
	code = append(code, byte(PTR))
	code = append(code, regOperand(1)...)
	code = append(code, regOperand(0)...)
	code = append(code, byte(MOVE))
	code = append(code, regOperand(2)...)
	code = append(code, regOperand(0)...)

	rt := newFakeRuntime(code)
	proc := newTestProcess()

	ip := uint64(0)
	var err error
	for i := 0; i < 3; i++ {
		ip, err = Step(rt, proc, ip)
		require.NoError(t, err)
	}

	f, _ := proc.Current()
	ptrReg, _ := f.Locals.At(1)
	ptrVal, err := ptrReg.Peek()
	require.NoError(t, err)
	ptr := ptrVal.(proto.Pointer)

	v, err := ptr.Dereference(proc.PID)
	require.NoError(t, err)
	require.Equal(t, value.Integer(42), v)
}

func TestStepDeleteStalesPointer(t *testing.T) {
	code := []byte{byte(ISTORE)}
	code = append(code, regOperand(0)...)
	code = append(code, istoreImmediate(7)...)
	code = append(code, byte(PTR))
	code = append(code, regOperand(1)...)
	code = append(code, regOperand(0)...)
	code = append(code, byte(DELETE))
	code = append(code, regOperand(0)...)

	rt := newFakeRuntime(code)
	proc := newTestProcess()

	ip := uint64(0)
	var err error
	for i := 0; i < 3; i++ {
		ip, err = Step(rt, proc, ip)
		require.NoError(t, err)
	}

	f, _ := proc.Current()
	ptrReg, _ := f.Locals.At(1)
	ptrVal, _ := ptrReg.Peek()
	ptr := ptrVal.(proto.Pointer)

	_, err = ptr.Dereference(proc.PID)
	require.ErrorIs(t, err, value.ErrStalePointer)
}

func TestStepCallAndReturnRoundTrip(t *testing.T) {
	// callee at offset calleeOff: istore r0, 9; return
	// main: frame 0 1; call void, "callee"; halt
	var code []byte

	calleeOff := 0
	code = append(code, byte(ISTORE))
	code = append(code, regOperand(0)...)
	code = append(code, istoreImmediate(9)...)
	code = append(code, byte(RETURN))

	callOff := len(code)
	code = append(code, byte(FRAME))
	code = append(code, 0, 0, 0, 0) // argc=0
	code = append(code, 1, 0, 0, 0) // localSize=1
	code = append(code, byte(CALL))
	code = append(code, byte(bytecode.TagVoid))
	code = append(code, byte(bytecode.TagAtom))
	code = append(code, []byte("callee")...)
	code = append(code, 0)
	code = append(code, byte(HALT))

	rt := newFakeRuntime(code)
	rt.functions["callee"] = uint64(calleeOff)

	proc := newTestProcess()

	ip := uint64(callOff)
	var err error
	for {
		ip, err = Step(rt, proc, ip)
		if err != nil {
			break
		}
	}
	require.ErrorIs(t, err, ErrHalt)
	outcome, ok := proc.Outcome()
	require.True(t, ok)
	require.Equal(t, value.Boolean(true), outcome.Value)
}

func TestStepDynamicDispatchThroughMsg(t *testing.T) {
	var code []byte
	methodOff := 0
	code = append(code, byte(ISTORE))
	code = append(code, regOperand(0)...)
	code = append(code, istoreImmediate(1)...)
	code = append(code, byte(RETURN))

	entryOff := len(code)
	code = append(code, byte(FRAME))
	code = append(code, 0, 0, 0, 0)
	code = append(code, 1, 0, 0, 0)
	code = append(code, byte(MSG))
	code = append(code, byte(bytecode.TagVoid))
	code = append(code, regOperand(3)...)
	code = append(code, []byte("greet")...)
	code = append(code, 0)
	code = append(code, byte(HALT))

	rt := newFakeRuntime(code)
	rt.functions["base_greet/0"] = uint64(methodOff)

	base := proto.NewPrototype("Base")
	base.Attach("greet", "base_greet/0")
	require.NoError(t, rt.protos.Register(base))

	obj, err := proto.New(rt.protos, "Base")
	require.NoError(t, err)

	proc := newTestProcess()
	f, _ := proc.Current()
	reg3, _ := f.Locals.At(3)
	reg3.Store(obj)

	ip := uint64(entryOff)
	for {
		ip, err = Step(rt, proc, ip)
		if err != nil {
			break
		}
	}
	require.ErrorIs(t, err, ErrHalt)
}
