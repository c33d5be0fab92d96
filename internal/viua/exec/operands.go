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

	"github.com/viua-lang/viua/internal/viua/bytecode"
	"github.com/viua-lang/viua/internal/viua/frame"
	"github.com/viua-lang/viua/internal/viua/process"
	"github.com/viua-lang/viua/internal/viua/register"
	"github.com/viua-lang/viua/internal/viua/value"
)

// setFor resolves a RegisterOperand's declared role to the concrete
// register.Set to index into, following the current frame's Current-role
// late binding (spec.md 4.2: "Current: late-bound to whatever set the
// active frame designates").
func setFor(proc *process.Process, f *frame.Frame, role register.Role) (*register.Set, error) {
	resolved := role
	if resolved == register.Current {
		resolved = proc.CurrentRole()
	}
	switch resolved {
	case register.Local:
		return f.Locals, nil
	case register.Static:
		return proc.Static(f.FuncName), nil
	case register.Global:
		return proc.Global(), nil
	default:
		return nil, fmt.Errorf("exec: unresolved register role %v", resolved)
	}
}

// resolveRegister resolves a decoded RegisterOperand to the concrete
// *register.Register it designates, following RegisterIndirect (the
// referent register's value selects the index). PointerDereference is not
// followed here: the register holding the proto.Pointer is returned, and
// readOperand reads the pointer's target through derefRegister in
// pointers.go.
func resolveRegister(proc *process.Process, f *frame.Frame, op bytecode.RegisterOperand) (*register.Register, error) {
	set, err := setFor(proc, f, op.Set)
	if err != nil {
		return nil, err
	}
	idx := op.Index
	if op.Mode == bytecode.RegisterIndirect {
		idx, err = set.ResolveIndirect(idx)
		if err != nil {
			return nil, err
		}
	}
	return set.At(idx)
}

// current returns the top frame, failing loudly if the stack is somehow
// empty (a process with no frame cannot execute).
func current(proc *process.Process) (*frame.Frame, error) {
	f, ok := proc.Current()
	if !ok {
		return nil, fmt.Errorf("exec: process has no active frame")
	}
	return f, nil
}

// readOperand decodes a full typed operand (not restricted to registers):
// a tag byte followed by either a register payload (resolved through the
// current frame to its held Value) or an immediate literal.
func readOperand(rt Runtime, proc *process.Process, c *bytecode.Cursor) (value.Value, error) {
	f, err := current(proc)
	if err != nil {
		return nil, err
	}

	start := c.Pos()
	tag, err := c.Tag()
	if err != nil {
		return nil, err
	}

	switch tag {
	case bytecode.TagRegisterIndex, bytecode.TagRegisterReference, bytecode.TagPointerDereference:
		c.Seek(start)
		op, err := c.DecodeRegisterOperand()
		if err != nil {
			return nil, err
		}
		reg, err := resolveRegister(proc, f, op)
		if err != nil {
			return nil, err
		}
		if op.Mode == bytecode.PointerDereference {
			return derefRegister(proc, reg)
		}
		return reg.Peek()
	case bytecode.TagVoid:
		return nil, nil
	case bytecode.TagTrue:
		return value.Boolean(true), nil
	case bytecode.TagFalse:
		return value.Boolean(false), nil
	case bytecode.TagInt, bytecode.TagInt64:
		n, err := c.Int64()
		return value.Integer(n), err
	case bytecode.TagInt8, bytecode.TagInt16, bytecode.TagInt32, bytecode.TagUint,
		bytecode.TagUint8, bytecode.TagUint16, bytecode.TagUint32, bytecode.TagUint64:
		n, err := c.Int64()
		return value.Integer(n), err
	case bytecode.TagFloat, bytecode.TagFloat64, bytecode.TagFloat32:
		n, err := c.Float64()
		return value.Float(n), err
	case bytecode.TagAtom:
		s, err := c.NulTerminated()
		return value.Atom(s), err
	case bytecode.TagText:
		s, err := c.NulTerminated()
		return value.NewText(s), err
	case bytecode.TagString:
		b, err := c.LengthPrefixedBytes()
		return value.String(b), err
	case bytecode.TagBits:
		b, err := c.LengthPrefixedBytes()
		if err != nil {
			return nil, err
		}
		var n uint64
		for _, byt := range b {
			n = n<<8 | uint64(byt)
		}
		return value.NewBits(uint(len(b)*8), n), nil
	default:
		return nil, fmt.Errorf("exec: unknown operand tag 0x%02x", byte(tag))
	}
}

// readRegisterOperand decodes an operand expected to be a register
// reference (the destination of nearly every instruction), returning the
// resolved register without reading its current value.
func readRegisterOperand(proc *process.Process, c *bytecode.Cursor) (*register.Register, error) {
	f, err := current(proc)
	if err != nil {
		return nil, err
	}
	op, err := c.DecodeRegisterOperand()
	if err != nil {
		return nil, err
	}
	return resolveRegister(proc, f, op)
}

// readInt reads an operand and requires it to be an Integer.
func readInt(rt Runtime, proc *process.Process, c *bytecode.Cursor) (int64, error) {
	v, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	i, ok := v.(value.Integer)
	if !ok {
		return 0, fmt.Errorf("%w: expected integer operand", value.ErrTypeMismatch)
	}
	return int64(i), nil
}

// readIndexOrVoid reads an operand that is either an Integer index or
// Void, returning ok=false for Void (spec.md 4.4 TEXTSUB's optional
// end-index).
func readIndexOrVoid(rt Runtime, proc *process.Process, c *bytecode.Cursor) (int, bool, error) {
	v, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, false, err
	}
	if v == nil {
		return 0, false, nil
	}
	i, ok := v.(value.Integer)
	if !ok {
		return 0, false, fmt.Errorf("%w: expected integer or void operand", value.ErrTypeMismatch)
	}
	return int(i), true, nil
}
