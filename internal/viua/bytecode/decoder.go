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
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedOperand is returned when an operand's type tag is unknown or
// its payload runs past the end of the code image (spec.md 7: decode
// errors, fatal to the current process).
var ErrMalformedOperand = errors.New("bytecode: malformed operand")

// Cursor reads typed operand tuples from a byte slice, advancing as it goes
// (spec.md 4.10: "the decoder yields ... triples"; handlers "return the new
// byte cursor").
type Cursor struct {
	code []byte
	pos  int
}

// NewCursor starts a Cursor over code at byte offset pos.
func NewCursor(code []byte, pos int) *Cursor {
	return &Cursor{code: code, pos: pos}
}

// Pos returns the current byte offset.
func (c *Cursor) Pos() int { return c.pos }

// Seek repositions the cursor.
func (c *Cursor) Seek(pos int) { c.pos = pos }

func (c *Cursor) need(n int) error {
	if c.pos+n > len(c.code) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrMalformedOperand, n, c.pos, len(c.code))
	}
	return nil
}

// Byte reads one byte.
func (c *Cursor) Byte() (byte, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	b := c.code[c.pos]
	c.pos++
	return b, nil
}

// Tag reads an OperandTag.
func (c *Cursor) Tag() (OperandTag, error) {
	b, err := c.Byte()
	return OperandTag(b), err
}

// Uint32 reads a little-endian uint32.
func (c *Cursor) Uint32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.code[c.pos:])
	c.pos += 4
	return v, nil
}

// Uint64 reads a little-endian uint64.
func (c *Cursor) Uint64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.code[c.pos:])
	c.pos += 8
	return v, nil
}

// Int64 reads a little-endian int64.
func (c *Cursor) Int64() (int64, error) {
	v, err := c.Uint64()
	return int64(v), err
}

// Float64 reads a little-endian IEEE-754 double.
func (c *Cursor) Float64() (float64, error) {
	v, err := c.Uint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// NulTerminated reads bytes up to (and consuming) the next 0x00 byte.
func (c *Cursor) NulTerminated() (string, error) {
	start := c.pos
	for c.pos < len(c.code) {
		if c.code[c.pos] == 0 {
			s := string(c.code[start:c.pos])
			c.pos++
			return s, nil
		}
		c.pos++
	}
	return "", fmt.Errorf("%w: unterminated string starting at offset %d", ErrMalformedOperand, start)
}

// LengthPrefixedBytes reads a uint64 length followed by that many bytes —
// the encoding OT_STRING and OT_BITS operands use.
func (c *Cursor) LengthPrefixedBytes() ([]byte, error) {
	n, err := c.Uint64()
	if err != nil {
		return nil, err
	}
	if err := c.need(int(n)); err != nil {
		return nil, err
	}
	b := c.code[c.pos : c.pos+int(n)]
	c.pos += int(n)
	return append([]byte{}, b...), nil
}

// registerPayload reads a register operand's payload: a u32 index and a
// 1-byte register-set marker, for a given access mode already implied by
// the tag that preceded this call (TagRegisterIndex/TagRegisterReference/
// TagPointerDereference, see DecodeRegisterOperand).
func (c *Cursor) registerPayload() (int, RegisterSetMarker, error) {
	idx, err := c.Uint32()
	if err != nil {
		return 0, 0, err
	}
	marker, err := c.Byte()
	if err != nil {
		return 0, 0, err
	}
	return int(idx), RegisterSetMarker(marker), nil
}

// DecodeRegisterOperand reads a full register operand: the 1-byte tag plus
// its index/marker payload, producing a RegisterOperand whose AccessMode
// reflects the tag (spec.md 4.2).
func (c *Cursor) DecodeRegisterOperand() (RegisterOperand, error) {
	tag, err := c.Tag()
	if err != nil {
		return RegisterOperand{}, err
	}
	idx, marker, err := c.registerPayload()
	if err != nil {
		return RegisterOperand{}, err
	}
	var mode AccessMode
	switch tag {
	case TagRegisterIndex:
		mode = Direct
	case TagRegisterReference:
		mode = RegisterIndirect
	case TagPointerDereference:
		mode = PointerDereference
	default:
		return RegisterOperand{}, fmt.Errorf("%w: tag 0x%02x is not a register operand", ErrMalformedOperand, tag)
	}
	return RegisterOperand{Mode: mode, Set: marker.Role(), Index: idx}, nil
}
