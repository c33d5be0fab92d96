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
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Magic is the 5-byte identifier every image opens with (spec.md 6).
var Magic = [5]byte{'V', 'I', 'U', 'A', 0x00}

// ChecksumSize is the width of the trailing image checksum.
const ChecksumSize = 32

// Kind distinguishes an executable image (has an entry point, no external
// linkage left to resolve) from a linkable one (carries a jump table and
// external signature sections for the loader to resolve).
type Kind byte

const (
	Executable Kind = iota
	Linkable
)

var (
	ErrBadMagic        = errors.New("bytecode: not a viua image")
	ErrUnknownKind     = errors.New("bytecode: unrecognised image kind byte")
	ErrChecksumMismatch = errors.New("bytecode: code section checksum mismatch")
)

// FunctionEntry locates one function's (or block's) code by byte offset and
// records its declared arity, for the address table (spec.md 6).
type FunctionEntry struct {
	Name   string
	Offset uint64
	Arity  uint32
}

// Signature is an external function/block's declared name and arity, as
// carried in a linkable image's signature sections ahead of link-time
// resolution.
type Signature struct {
	Name  string
	Arity uint32
}

// Image is a fully decoded loaded-image: the meta section, the (for
// linkable images) external jump table and signature sections, the
// function/block address table, and the code itself.
type Image struct {
	Kind Kind
	Meta map[string]string

	JumpTable          []string
	ExternalFunctions  []Signature
	ExternalBlocks     []Signature

	Functions []FunctionEntry
	Blocks    []FunctionEntry

	Code []byte

	// Checksum is the SHAKE-256 digest of Code, as read from (or computed
	// for) the image trailer. This is not part of the original format; it
	// is the domain-stack addition verified by kernel.Load.
	Checksum [ChecksumSize]byte
}

// Checksum256 computes the SHAKE-256 digest of code at the fixed
// ChecksumSize width used by the image trailer.
func Checksum256(code []byte) [ChecksumSize]byte {
	var out [ChecksumSize]byte
	sha3.ShakeSum256(out[:], code)
	return out
}

// Encode serialises img to the wire format: magic, kind byte, length-prefixed
// meta section, (linkable only) jump table and signature sections, the
// address table, the code size and bytes, and the trailing checksum.
func Encode(img *Image) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.WriteByte(byte(img.Kind))

	meta := encodeMeta(img.Meta)
	writeLenPrefixed(&buf, meta)

	if img.Kind == Linkable {
		writeStringTable(&buf, img.JumpTable)
		writeSignatureTable(&buf, img.ExternalFunctions)
		writeSignatureTable(&buf, img.ExternalBlocks)
	}

	writeAddressTable(&buf, img.Functions)
	writeAddressTable(&buf, img.Blocks)

	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(len(img.Code)))
	buf.Write(sizeBuf[:])
	buf.Write(img.Code)

	sum := Checksum256(img.Code)
	buf.Write(sum[:])

	return buf.Bytes(), nil
}

// Decode parses a wire-format image, verifying the magic, kind byte, and
// trailing checksum. A checksum mismatch is reported as ErrChecksumMismatch
// rather than silently accepted (SPEC_FULL.md's domain-stack addition to
// 6/7.8).
func Decode(raw []byte) (*Image, error) {
	if len(raw) < len(Magic)+1 {
		return nil, fmt.Errorf("%w: image too short", ErrBadMagic)
	}
	if !bytes.Equal(raw[:len(Magic)], Magic[:]) {
		return nil, ErrBadMagic
	}
	c := NewCursor(raw, len(Magic))

	kindByte, err := c.Byte()
	if err != nil {
		return nil, err
	}
	kind := Kind(kindByte)
	if kind != Executable && kind != Linkable {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownKind, kindByte)
	}

	img := &Image{Kind: kind}

	metaBytes, err := c.LengthPrefixedBytes()
	if err != nil {
		return nil, fmt.Errorf("bytecode: meta section: %w", err)
	}
	img.Meta, err = decodeMeta(metaBytes)
	if err != nil {
		return nil, fmt.Errorf("bytecode: meta section: %w", err)
	}

	if kind == Linkable {
		if img.JumpTable, err = readStringTable(c); err != nil {
			return nil, fmt.Errorf("bytecode: jump table: %w", err)
		}
		if img.ExternalFunctions, err = readSignatureTable(c); err != nil {
			return nil, fmt.Errorf("bytecode: external functions: %w", err)
		}
		if img.ExternalBlocks, err = readSignatureTable(c); err != nil {
			return nil, fmt.Errorf("bytecode: external blocks: %w", err)
		}
	}

	if img.Functions, err = readAddressTable(c); err != nil {
		return nil, fmt.Errorf("bytecode: function address table: %w", err)
	}
	if img.Blocks, err = readAddressTable(c); err != nil {
		return nil, fmt.Errorf("bytecode: block address table: %w", err)
	}

	codeSize, err := c.Uint64()
	if err != nil {
		return nil, fmt.Errorf("bytecode: code size: %w", err)
	}
	if err := c.need(int(codeSize) + ChecksumSize); err != nil {
		return nil, fmt.Errorf("bytecode: code section: %w", err)
	}
	start := c.Pos()
	img.Code = append([]byte{}, raw[start:start+int(codeSize)]...)
	c.Seek(start + int(codeSize))

	copy(img.Checksum[:], raw[c.Pos():c.Pos()+ChecksumSize])

	if Checksum256(img.Code) != img.Checksum {
		return nil, ErrChecksumMismatch
	}

	return img, nil
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(len(b)))
	buf.Write(sizeBuf[:])
	buf.Write(b)
}

func encodeMeta(meta map[string]string) []byte {
	var buf bytes.Buffer
	for k, v := range meta {
		buf.WriteString(k)
		buf.WriteByte(0)
		buf.WriteString(v)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func decodeMeta(raw []byte) (map[string]string, error) {
	out := map[string]string{}
	c := NewCursor(raw, 0)
	for c.Pos() < len(raw) {
		k, err := c.NulTerminated()
		if err != nil {
			return nil, err
		}
		v, err := c.NulTerminated()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func writeStringTable(buf *bytes.Buffer, entries []string) {
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(entries)))
	buf.Write(countBuf[:])
	for _, e := range entries {
		buf.WriteString(e)
		buf.WriteByte(0)
	}
}

func readStringTable(c *Cursor) ([]string, error) {
	n, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := c.NulTerminated()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func writeSignatureTable(buf *bytes.Buffer, entries []Signature) {
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(entries)))
	buf.Write(countBuf[:])
	for _, e := range entries {
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		var arityBuf [4]byte
		binary.LittleEndian.PutUint32(arityBuf[:], e.Arity)
		buf.Write(arityBuf[:])
	}
}

func readSignatureTable(c *Cursor) ([]Signature, error) {
	n, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	out := make([]Signature, 0, n)
	for i := uint32(0); i < n; i++ {
		name, err := c.NulTerminated()
		if err != nil {
			return nil, err
		}
		arity, err := c.Uint32()
		if err != nil {
			return nil, err
		}
		out = append(out, Signature{Name: name, Arity: arity})
	}
	return out, nil
}

func writeAddressTable(buf *bytes.Buffer, entries []FunctionEntry) {
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(entries)))
	buf.Write(countBuf[:])
	for _, e := range entries {
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		var offBuf [8]byte
		binary.LittleEndian.PutUint64(offBuf[:], e.Offset)
		buf.Write(offBuf[:])
		var arityBuf [4]byte
		binary.LittleEndian.PutUint32(arityBuf[:], e.Arity)
		buf.Write(arityBuf[:])
	}
}

func readAddressTable(c *Cursor) ([]FunctionEntry, error) {
	n, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	out := make([]FunctionEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		name, err := c.NulTerminated()
		if err != nil {
			return nil, err
		}
		offset, err := c.Uint64()
		if err != nil {
			return nil, err
		}
		arity, err := c.Uint32()
		if err != nil {
			return nil, err
		}
		out = append(out, FunctionEntry{Name: name, Offset: offset, Arity: arity})
	}
	return out, nil
}
