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

package scheduler

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viua-lang/viua/internal/viua/bytecode"
	"github.com/viua-lang/viua/internal/viua/exec"
	"github.com/viua-lang/viua/internal/viua/frame"
	"github.com/viua-lang/viua/internal/viua/process"
	"github.com/viua-lang/viua/internal/viua/proto"
	"github.com/viua-lang/viua/internal/viua/value"
)

// fakeRuntime mirrors exec_test.go's: a shared code image and a name-to-
// offset table, with no spawn/join/foreign-call support (this package's
// tests only exercise single-process unwind and termination).
type fakeRuntime struct {
	code      []byte
	functions map[string]uint64
	protos    *proto.Registry
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
func (f *fakeRuntime) Print(s string) {}
func (f *fakeRuntime) Echo(s string)  {}

func regOperand(idx int) []byte {
	b := []byte{byte(bytecode.TagRegisterIndex)}
	var idxBuf [4]byte
	idxBuf[0] = byte(idx)
	b = append(b, idxBuf[:]...)
	b = append(b, byte(bytecode.MarkerLocal))
	return b
}

// istoreImmediate mirrors exec_test.go's helper: ISTORE's literal operand
// carries no leading tag byte.
func istoreImmediate(n int64) []byte {
	var b []byte
	for i := 0; i < 8; i++ {
		b = append(b, byte(n>>(8*i)))
	}
	return b
}

func nulTerminated(s string) []byte {
	return append([]byte(s), 0)
}

func newTestProcess(code []byte) *process.Process {
	f := frame.New(0, 8)
	f.EntryAddr = 0
	return process.New(value.PID(1), f, false)
}

func TestPoolRunTerminatesOnHalt(t *testing.T) {
	// istore r0, 1; halt
	var code []byte
	code = append(code, byte(exec.ISTORE))
	code = append(code, regOperand(0)...)
	code = append(code, istoreImmediate(1)...)
	code = append(code, byte(exec.HALT))

	rt := newFakeRuntime(code)
	proc := newTestProcess(code)

	pool := New(rt, 1, 0, nil)
	pool.Submit(proc)

	err := pool.Run(context.Background())
	require.NoError(t, err)

	outcome, ok := proc.Outcome()
	require.True(t, ok)
	require.Equal(t, value.Boolean(true), outcome.Value)
	require.Nil(t, outcome.Exception)
}

func TestPoolUncaughtExceptionTerminatesProcessWithoutWatchdog(t *testing.T) {
	// istore r0, 99; throw r0
	var code []byte
	code = append(code, byte(exec.ISTORE))
	code = append(code, regOperand(0)...)
	code = append(code, istoreImmediate(99)...)
	code = append(code, byte(exec.THROW))
	code = append(code, regOperand(0)...)

	rt := newFakeRuntime(code)
	proc := newTestProcess(code)

	pool := New(rt, 1, 0, nil)
	pool.Submit(proc)

	err := pool.Run(context.Background())
	require.NoError(t, err)

	outcome, ok := proc.Outcome()
	require.True(t, ok)
	require.Nil(t, outcome.Value)
	require.NotNil(t, outcome.Exception)
	require.Equal(t, "Integer", outcome.Exception.TypeName())
}

func TestPoolCaughtExceptionResumesAtHandlerBlock(t *testing.T) {
	// main:  try; catch("Integer", "handler"); enter("body"); halt
	// body:  istore r0, 42; throw r0
	// handler: draw r1; leave
	var main, body, handler []byte

	body = append(body, byte(exec.ISTORE))
	body = append(body, regOperand(0)...)
	body = append(body, istoreImmediate(42)...)
	body = append(body, byte(exec.THROW))
	body = append(body, regOperand(0)...)

	handler = append(handler, byte(exec.DRAW))
	handler = append(handler, regOperand(1)...)
	handler = append(handler, byte(exec.LEAVE))

	main = append(main, byte(exec.TRY))
	main = append(main, byte(exec.CATCH))
	main = append(main, nulTerminated("Integer")...)
	main = append(main, nulTerminated("handler")...)
	main = append(main, byte(exec.ENTER))
	main = append(main, nulTerminated("body")...)
	main = append(main, byte(exec.HALT))

	var code []byte
	code = append(code, main...)
	bodyOff := len(code)
	code = append(code, body...)
	handlerOff := len(code)
	code = append(code, handler...)

	rt := newFakeRuntime(code)
	rt.functions["body"] = uint64(bodyOff)
	rt.functions["handler"] = uint64(handlerOff)

	proc := newTestProcess(code)

	pool := New(rt, 1, 0, nil)
	pool.Submit(proc)

	err := pool.Run(context.Background())
	require.NoError(t, err)

	outcome, ok := proc.Outcome()
	require.True(t, ok)
	require.Equal(t, value.Boolean(true), outcome.Value)
	require.Nil(t, outcome.Exception)
}

func TestPoolUncaughtExceptionSpawnsWatchdog(t *testing.T) {
	// istore r0, 7; throw r0
	var code []byte
	code = append(code, byte(exec.ISTORE))
	code = append(code, regOperand(0)...)
	code = append(code, istoreImmediate(7)...)
	code = append(code, byte(exec.THROW))
	code = append(code, regOperand(0)...)

	rt := newFakeRuntime(code)
	proc := newTestProcess(code)
	proc.SetWatchdog("panic_handler/1")

	var spawned value.Value
	watchdog := func(fnName string, exc value.Value) (*process.Process, error) {
		spawned = exc
		wf := frame.New(1, 1)
		wf.EntryAddr = 0
		return process.New(value.PID(2), wf, true), nil
	}

	pool := New(rt, 1, 0, watchdog)
	pool.Submit(proc)

	err := pool.Run(context.Background())
	require.NoError(t, err)

	outcome, ok := proc.Outcome()
	require.True(t, ok)
	require.NotNil(t, outcome.Exception)
	require.Equal(t, "Integer", outcome.Exception.TypeName())
	require.NotNil(t, spawned)
	require.Equal(t, "Integer", spawned.TypeName())
}
