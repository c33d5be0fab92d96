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

package value

import "fmt"

// Text is a Unicode scalar-value string. Every indexing operation (At, Sub,
// View, Length, CommonPrefix, CommonSuffix) counts Unicode scalar values,
// not bytes, and rejects negative indices with ErrInvalidIndex.
//
// Text supports non-owning views (the original's TEXTVIEW, absent from
// spec.md's distillation but present in original_source/include/viua/bytecode/opcodes.h):
// View returns a Text sharing the same backing rune slice. A view behaves
// identically to a copy for every read-only operation; it only matters for
// allocation, which this port does not otherwise observe, so shared and
// owned Text values are represented identically.
type Text struct {
	runes []rune
}

// NewText constructs a Text value from a Go string.
func NewText(s string) Text {
	return Text{runes: []rune(s)}
}

func (t Text) TypeName() string { return "Text" }
func (t Text) ToText() string   { return string(t.runes) }
func (t Text) Truthy() bool     { return len(t.runes) > 0 }
func (t Text) DeepCopy() Value {
	cp := make([]rune, len(t.runes))
	copy(cp, t.runes)
	return Text{runes: cp}
}

// Length returns the number of Unicode scalar values.
func (t Text) Length() int { return len(t.runes) }

// At returns the scalar value at index i as a single-rune Text.
func (t Text) At(i int) (Text, error) {
	if i < 0 {
		return Text{}, fmt.Errorf("%w: negative text index %d", ErrInvalidIndex, i)
	}
	if i >= len(t.runes) {
		return Text{}, fmt.Errorf("%w: text index %d, length %d", ErrOutOfBounds, i, len(t.runes))
	}
	return Text{runes: []rune{t.runes[i]}}, nil
}

// Sub returns a copy of the scalar-value range [begin, end).
func (t Text) Sub(begin, end int) (Text, error) {
	if begin < 0 || end < 0 {
		return Text{}, fmt.Errorf("%w: negative text range [%d,%d)", ErrInvalidIndex, begin, end)
	}
	if begin > len(t.runes) || end > len(t.runes) || begin > end {
		return Text{}, fmt.Errorf("%w: text range [%d,%d), length %d", ErrOutOfBounds, begin, end, len(t.runes))
	}
	cp := make([]rune, end-begin)
	copy(cp, t.runes[begin:end])
	return Text{runes: cp}, nil
}

// View returns a non-owning Text sharing the backing rune slice of the
// range [begin, end). Viua's value semantics give Text no mutating-in-place
// operations, so a view is observably a copy to every reader.
func (t Text) View(begin, end int) (Text, error) {
	if begin < 0 || end < 0 {
		return Text{}, fmt.Errorf("%w: negative text range [%d,%d)", ErrInvalidIndex, begin, end)
	}
	if begin > len(t.runes) || end > len(t.runes) || begin > end {
		return Text{}, fmt.Errorf("%w: text range [%d,%d), length %d", ErrOutOfBounds, begin, end, len(t.runes))
	}
	return Text{runes: t.runes[begin:end]}, nil
}

// CommonPrefix returns the length of the shared leading run of scalar values.
func (t Text) CommonPrefix(other Text) int {
	n := 0
	for n < len(t.runes) && n < len(other.runes) && t.runes[n] == other.runes[n] {
		n++
	}
	return n
}

// CommonSuffix returns the length of the shared trailing run of scalar values.
func (t Text) CommonSuffix(other Text) int {
	n := 0
	la, lb := len(t.runes), len(other.runes)
	for n < la && n < lb && t.runes[la-1-n] == other.runes[lb-1-n] {
		n++
	}
	return n
}

// Concat returns a new Text holding the receiver's and other's runes.
func (t Text) Concat(other Text) Text {
	cp := make([]rune, 0, len(t.runes)+len(other.runes))
	cp = append(cp, t.runes...)
	cp = append(cp, other.runes...)
	return Text{runes: cp}
}

// String is an opaque byte sequence distinct from Text: it carries no
// Unicode-scalar indexing contract.
type String []byte

func (s String) TypeName() string { return "String" }
func (s String) ToText() string   { return string(s) }
func (s String) Truthy() bool     { return len(s) > 0 }
func (s String) DeepCopy() Value {
	cp := make(String, len(s))
	copy(cp, s)
	return cp
}

// Atom is an interned symbol, used as Struct keys and method/type names.
type Atom string

func (a Atom) TypeName() string { return "Atom" }
func (a Atom) ToText() string   { return string(a) }
func (a Atom) Truthy() bool     { return a != "" }
func (a Atom) DeepCopy() Value  { return a }
