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

package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viua-lang/viua/internal/viua/bytecode"
	"github.com/viua-lang/viua/internal/viua/exec"
	"github.com/viua-lang/viua/internal/viua/value"
)

func regOperand(idx int) []byte {
	b := []byte{byte(bytecode.TagRegisterIndex)}
	var idxBuf [4]byte
	idxBuf[0] = byte(idx)
	b = append(b, idxBuf[:]...)
	b = append(b, byte(bytecode.MarkerLocal))
	return b
}

func u32(n uint32) []byte {
	var b [4]byte
	b[0] = byte(n)
	b[1] = byte(n >> 8)
	b[2] = byte(n >> 16)
	b[3] = byte(n >> 24)
	return b[:]
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

func intOperand(n int64) []byte {
	return append([]byte{byte(bytecode.TagInt)}, istoreImmediate(n)...)
}

func atomOperand(s string) []byte {
	return append([]byte{byte(bytecode.TagAtom)}, nulTerminated(s)...)
}

func voidOperand() []byte {
	return []byte{byte(bytecode.TagVoid)}
}

func encodeImage(t *testing.T, code []byte, functions []bytecode.FunctionEntry) []byte {
	t.Helper()
	raw, err := bytecode.Encode(&bytecode.Image{
		Kind:      bytecode.Executable,
		Functions: functions,
		Code:      code,
	})
	require.NoError(t, err)
	return raw
}

func TestKernelLoadRejectsLinkableImage(t *testing.T) {
	raw, err := bytecode.Encode(&bytecode.Image{Kind: bytecode.Linkable})
	require.NoError(t, err)

	_, err = Load(raw, Config{})
	require.ErrorIs(t, err, ErrNotExecutable)
}

func TestKernelRunsSimpleProgramToHalt(t *testing.T) {
	// main/0: istore r0, 5; halt
	var code []byte
	code = append(code, byte(exec.ISTORE))
	code = append(code, regOperand(0)...)
	code = append(code, istoreImmediate(5)...)
	code = append(code, byte(exec.HALT))

	raw := encodeImage(t, code, []bytecode.FunctionEntry{{Name: "main/0", Offset: 0, Arity: 0}})

	k, err := Load(raw, Config{})
	require.NoError(t, err)
	defer k.Close()

	outcome, err := k.Run(context.Background(), "main/0", nil)
	require.NoError(t, err)
	require.Equal(t, value.Boolean(true), outcome.Value)
	require.Nil(t, outcome.Exception)
}

func TestKernelRoutesCallToRegisteredForeignFunction(t *testing.T) {
	// main/0: frame 1,0; param 0, 21; call r0, "double/1"; return
	var code []byte
	code = append(code, byte(exec.FRAME))
	code = append(code, u32(1)...)
	code = append(code, u32(0)...)

	code = append(code, byte(exec.PARAM))
	code = append(code, u32(0)...)
	code = append(code, intOperand(21)...)

	code = append(code, byte(exec.CALL))
	code = append(code, regOperand(0)...)
	code = append(code, atomOperand("double/1")...)

	code = append(code, byte(exec.RETURN))

	raw := encodeImage(t, code, []bytecode.FunctionEntry{{Name: "main/0", Offset: 0, Arity: 0}})

	k, err := Load(raw, Config{})
	require.NoError(t, err)
	defer k.Close()

	k.RegisterExternalFunction("double/1", func(args []value.Value) (value.Value, error) {
		n := args[0].(value.Integer)
		return value.Integer(int64(n) * 2), nil
	})

	outcome, err := k.Run(context.Background(), "main/0", nil)
	require.NoError(t, err)
	require.Equal(t, value.Integer(42), outcome.Value)
	require.Nil(t, outcome.Exception)
}

func TestKernelSpawnsChildAndJoinsItsResult(t *testing.T) {
	// main/0: frame 0,1; process r1, "child/0"; join r0, r1, void; return
	var main []byte
	main = append(main, byte(exec.FRAME))
	main = append(main, u32(0)...)
	main = append(main, u32(1)...)

	main = append(main, byte(exec.PROCESS))
	main = append(main, regOperand(1)...)
	main = append(main, atomOperand("child/0")...)

	main = append(main, byte(exec.JOIN))
	main = append(main, regOperand(0)...)
	main = append(main, regOperand(1)...)
	main = append(main, voidOperand()...)

	main = append(main, byte(exec.RETURN))

	// child/0: istore r0, 99; return
	var child []byte
	child = append(child, byte(exec.ISTORE))
	child = append(child, regOperand(0)...)
	child = append(child, istoreImmediate(99)...)
	child = append(child, byte(exec.RETURN))

	var code []byte
	code = append(code, main...)
	childOffset := len(code)
	code = append(code, child...)

	raw := encodeImage(t, code, []bytecode.FunctionEntry{
		{Name: "main/0", Offset: 0, Arity: 0},
		{Name: "child/0", Offset: uint64(childOffset), Arity: 0},
	})

	k, err := Load(raw, Config{Workers: 2})
	require.NoError(t, err)
	defer k.Close()

	outcome, err := k.Run(context.Background(), "main/0", nil)
	require.NoError(t, err)
	require.Equal(t, value.Integer(99), outcome.Value)
	require.Nil(t, outcome.Exception)
}

func TestKernelSpawnsWatchdogOnUncaughtException(t *testing.T) {
	// main/0: watchdog "handler/1"; istore r0, 13; throw r0
	var main []byte
	main = append(main, byte(exec.WATCHDOG))
	main = append(main, atomOperand("handler/1")...)

	main = append(main, byte(exec.ISTORE))
	main = append(main, regOperand(0)...)
	main = append(main, istoreImmediate(13)...)

	main = append(main, byte(exec.THROW))
	main = append(main, regOperand(0)...)

	// handler/1: arg r0, 0; return
	var handler []byte
	handler = append(handler, byte(exec.ARG))
	handler = append(handler, regOperand(0)...)
	handler = append(handler, u32(0)...)
	handler = append(handler, byte(exec.RETURN))

	var code []byte
	code = append(code, main...)
	handlerOffset := len(code)
	code = append(code, handler...)

	raw := encodeImage(t, code, []bytecode.FunctionEntry{
		{Name: "main/0", Offset: 0, Arity: 0},
		{Name: "handler/1", Offset: uint64(handlerOffset), Arity: 1},
	})

	k, err := Load(raw, Config{Workers: 2})
	require.NoError(t, err)
	defer k.Close()

	outcome, err := k.Run(context.Background(), "main/0", nil)
	require.NoError(t, err)
	require.Nil(t, outcome.Value)
	require.NotNil(t, outcome.Exception)
	require.Equal(t, "Integer", outcome.Exception.TypeName())
}
