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

package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/viua-lang/viua/internal/viua/register"
)

func TestEncodeDecodeRoundTripExecutable(t *testing.T) {
	img := &Image{
		Kind: Executable,
		Meta: map[string]string{"entry_point": "main/0"},
		Functions: []FunctionEntry{
			{Name: "main/0", Offset: 0, Arity: 0},
		},
		Code: []byte{0x01, 0x02, 0x03, 0x04},
	}

	raw, err := Encode(img)
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, Executable, got.Kind)
	require.Equal(t, "main/0", got.Meta["entry_point"])
	require.Equal(t, img.Code, got.Code)
	require.Len(t, got.Functions, 1)
	require.Equal(t, "main/0", got.Functions[0].Name)
}

func TestEncodeDecodeRoundTripLinkable(t *testing.T) {
	img := &Image{
		Kind:              Linkable,
		Meta:              map[string]string{},
		JumpTable:         []string{"foo/1", "bar/2"},
		ExternalFunctions: []Signature{{Name: "io::print/1", Arity: 1}},
		ExternalBlocks:    []Signature{{Name: "with_resource/0", Arity: 0}},
		Functions:         []FunctionEntry{{Name: "foo/1", Offset: 0, Arity: 1}},
		Blocks:            nil,
		Code:              []byte{0xAA, 0xBB},
	}

	raw, err := Encode(img)
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, Linkable, got.Kind)
	require.Equal(t, []string{"foo/1", "bar/2"}, got.JumpTable)
	require.Equal(t, "io::print/1", got.ExternalFunctions[0].Name)
	require.Equal(t, uint32(1), got.ExternalFunctions[0].Arity)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode([]byte("not-a-viua-image-at-all"))
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestDecodeRejectsCorruptedChecksum(t *testing.T) {
	img := &Image{Kind: Executable, Meta: map[string]string{}, Code: []byte{1, 2, 3}}
	raw, err := Encode(img)
	require.NoError(t, err)

	raw[len(raw)-1] ^= 0xFF
	_, err = Decode(raw)
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestDecodeRegisterOperandModesAndRoles(t *testing.T) {
	var buf []byte
	buf = append(buf, byte(TagRegisterReference))
	buf = append(buf, 0x2A, 0x00, 0x00, 0x00) // index 42
	buf = append(buf, byte(MarkerStatic))

	c := NewCursor(buf, 0)
	op, err := c.DecodeRegisterOperand()
	require.NoError(t, err)
	require.Equal(t, RegisterIndirect, op.Mode)
	require.Equal(t, register.Static, op.Set)
	require.Equal(t, 42, op.Index)
}

func TestDecodeRegisterOperandRejectsNonRegisterTag(t *testing.T) {
	buf := []byte{byte(TagInt), 0, 0, 0, 0, 0}
	c := NewCursor(buf, 0)
	_, err := c.DecodeRegisterOperand()
	require.ErrorIs(t, err, ErrMalformedOperand)
}

func TestCursorFloat64RoundTrips(t *testing.T) {
	var buf []byte
	// 3.5 in IEEE-754 little-endian.
	buf = append(buf, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0C, 0x40)
	c := NewCursor(buf, 0)
	f, err := c.Float64()
	require.NoError(t, err)
	require.Equal(t, 3.5, f)
}

func TestCursorNeedsMoreBytesThanAvailable(t *testing.T) {
	c := NewCursor([]byte{0x01}, 0)
	_, err := c.Uint64()
	require.ErrorIs(t, err, ErrMalformedOperand)
}
