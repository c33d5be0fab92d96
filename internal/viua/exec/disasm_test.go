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
)

func TestDisassembleSimpleProgram(t *testing.T) {
	var code []byte
	code = append(code, byte(ISTORE))
	code = append(code, regOperand(0)...)
	code = append(code, istoreImmediate(5)...)
	code = append(code, byte(HALT))

	instrs, err := Disassemble(code)
	require.NoError(t, err)
	require.Len(t, instrs, 2)

	require.Equal(t, uint64(0), instrs[0].Offset)
	require.Equal(t, ISTORE, instrs[0].Op)
	require.Equal(t, []string{"%0.local", "5"}, instrs[0].Operands)
	require.Equal(t, "istore %0.local, 5", instrs[0].String())

	require.Equal(t, HALT, instrs[1].Op)
	require.Equal(t, "halt", instrs[1].String())
}

func TestDisassembleCallWithVoidReturn(t *testing.T) {
	var code []byte
	code = append(code, byte(FRAME))
	code = append(code, u32Bytes(0)...)
	code = append(code, u32Bytes(0)...)

	code = append(code, byte(CALL))
	code = append(code, voidOp()...)
	code = append(code, atomOp("f/0")...)

	code = append(code, byte(RETURN))

	instrs, err := Disassemble(code)
	require.NoError(t, err)
	require.Len(t, instrs, 3)
	require.Equal(t, "frame 0, 0", instrs[0].String())
	require.Equal(t, "call void, 'f/0'", instrs[1].String())
	require.Equal(t, "return", instrs[2].String())
}

func TestDisassembleRejectsUnknownOpcode(t *testing.T) {
	_, err := Disassemble([]byte{0xff})
	require.Error(t, err)
}

func u32Bytes(n uint32) []byte {
	return []byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}
}

func voidOp() []byte {
	return []byte{byte(bytecode.TagVoid)}
}

func atomOp(s string) []byte {
	b := []byte{byte(bytecode.TagAtom)}
	b = append(b, []byte(s)...)
	return append(b, 0)
}
