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

// Package bytecode implements the external interfaces of spec.md 6: the
// loaded-image format and the typed operand encoding every instruction's
// operands follow. It adopts the post-split, register-set-marker-aware
// encoding spec.md 9 names as the only supported one (the legacy encoding
// the original carried alongside it is not ported).
package bytecode

import "github.com/viua-lang/viua/internal/viua/register"

// OperandTag is the 1-byte tag that begins every encoded operand.
type OperandTag byte

const (
	TagRegisterIndex OperandTag = iota
	TagRegisterReference
	TagPointerDereference
	TagVoid
	TagAtom
	TagText
	TagString
	TagBits
	TagInt
	TagInt8
	TagInt16
	TagInt32
	TagInt64
	TagUint
	TagUint8
	TagUint16
	TagUint32
	TagUint64
	TagFloat
	TagFloat32
	TagFloat64
	TagTrue
	TagFalse
)

// RegisterSetMarker is the 1-byte register-set role tag that follows a
// register operand's index.
type RegisterSetMarker byte

const (
	MarkerLocal RegisterSetMarker = iota
	MarkerStatic
	MarkerGlobal
	MarkerCurrent
)

// Role converts a wire marker to the register package's Role.
func (m RegisterSetMarker) Role() register.Role {
	switch m {
	case MarkerStatic:
		return register.Static
	case MarkerGlobal:
		return register.Global
	case MarkerCurrent:
		return register.Current
	default:
		return register.Local
	}
}

// AccessMode is the decoded access discipline for a register operand
// (spec.md 4.2).
type AccessMode int

const (
	Direct AccessMode = iota
	RegisterIndirect
	PointerDereference
)

// RegisterOperand is a fully decoded (access_mode, set, index) triple.
type RegisterOperand struct {
	Mode  AccessMode
	Set   register.Role
	Index int
}
