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
	"strconv"
	"strings"

	"github.com/viua-lang/viua/internal/viua/bytecode"
)

// Instruction is one decoded instruction, offset-addressed the way
// probe-lang/lang/vm's disassembler output is, for cmd/viua's `disasm`
// subcommand to render as a table.
type Instruction struct {
	Offset   uint64
	Op       Opcode
	Operands []string
}

// stepKind names one operand's wire shape, independent of any running
// process: Disassemble only needs to know how many bytes to consume and how
// to describe them, never what register a Role resolves to at runtime.
type stepKind int

const (
	stReg      stepKind = iota // tagged register operand
	stOptReg                   // register operand, or Void
	stTyped                    // full typed operand (register or literal)
	stU32                      // raw little-endian uint32
	stU64                      // raw little-endian uint64 (jump target)
	stI64Raw                   // raw little-endian int64, no tag (ISTORE)
	stF64Raw                   // raw little-endian float64, no tag (FSTORE)
	stByte                     // single raw byte (RESS's set marker)
	stNul                      // NUL-terminated string
	stStrLit                   // length-prefixed bytes (STRSTORE)
)

// schema lists, in encoding order, the operand shapes an opcode's handler
// reads from the cursor — grounded directly on each handler in arith.go,
// calls.go, collections.go, concurrency.go, exceptions.go, objects.go,
// pointers.go and text.go.
var schema = map[Opcode][]stepKind{
	NOP: {},

	IZERO:  {stReg},
	ISTORE: {stReg, stI64Raw},
	IINC:   {stReg},
	IDEC:   {stReg},

	FSTORE: {stReg, stF64Raw},

	ITOF: {stReg, stTyped},
	FTOI: {stReg, stTyped},
	STOI: {stReg, stTyped},
	STOF: {stReg, stTyped},

	ADD: {stReg, stTyped, stTyped},
	SUB: {stReg, stTyped, stTyped},
	MUL: {stReg, stTyped, stTyped},
	DIV: {stReg, stTyped, stTyped},
	LT:  {stReg, stTyped, stTyped},
	LTE: {stReg, stTyped, stTyped},
	GT:  {stReg, stTyped, stTyped},
	GTE: {stReg, stTyped, stTyped},
	EQ:  {stReg, stTyped, stTyped},

	STRSTORE: {stReg, stStrLit},
	STREQ:    {stReg, stTyped, stTyped},

	TEXT:             {stReg, stNul},
	TEXTEQ:           {stReg, stTyped, stTyped},
	TEXTAT:           {stReg, stTyped, stTyped},
	TEXTSUB:          {stReg, stTyped, stTyped, stTyped},
	TEXTLENGTH:       {stReg, stTyped},
	TEXTCOMMONPREFIX: {stReg, stTyped, stTyped},
	TEXTCOMMONSUFFIX: {stReg, stTyped, stTyped},
	TEXTVIEW:         {stReg, stTyped, stTyped, stTyped},
	TEXTCONCAT:       {stReg, stTyped, stTyped},

	VEC:     {stReg},
	VINSERT: {stReg, stTyped, stTyped},
	VPUSH:   {stReg, stTyped},
	VPOP:    {stReg, stReg, stTyped},
	VAT:     {stReg, stTyped, stTyped},
	VLEN:    {stReg, stTyped},

	BOOL: {stReg, stTyped},
	NOT:  {stReg, stTyped},
	AND:  {stReg, stTyped, stTyped},
	OR:   {stReg, stTyped, stTyped},

	MOVE:   {stReg, stReg},
	COPY:   {stReg, stTyped},
	PTR:    {stReg, stReg},
	SWAP:   {stReg, stReg},
	DELETE: {stReg},
	ISNULL: {stReg, stReg},
	RESS:   {stByte},

	PRINT: {stTyped},
	ECHO:  {stTyped},

	CAPTURE:     {stReg, stTyped, stTyped},
	CAPTURECOPY: {stReg, stTyped, stTyped},
	CAPTUREMOVE: {stReg, stTyped, stReg},
	CLOSURE:     {stReg, stNul, stU32},

	FUNCTION: {stReg, stNul},

	FRAME:    {stU32, stU32},
	PARAM:    {stU32, stTyped},
	PAMV:     {stU32, stReg},
	CALL:     {stOptReg, stTyped},
	TAILCALL: {stTyped},
	DEFER:    {stTyped},
	ARG:      {stReg, stU32},
	ARGC:     {stReg},

	PROCESS:  {stOptReg, stTyped},
	SELF:     {stReg},
	JOIN:     {stReg, stTyped, stTyped},
	SEND:     {stTyped, stTyped},
	RECEIVE:  {stReg, stTyped},
	WATCHDOG: {stTyped},

	JUMP: {stU64},
	IF:   {stTyped, stU64, stU64},

	THROW: {stTyped},
	CATCH: {stNul, stNul},
	DRAW:  {stReg},

	TRY:   {},
	ENTER: {stNul},
	LEAVE: {},

	CLASS:    {stReg, stNul},
	DERIVE:   {stReg, stNul},
	ATTACH:   {stReg, stNul, stNul},
	REGISTER: {stTyped},

	NEW:    {stReg, stNul},
	MSG:    {stOptReg, stTyped, stNul},
	INSERT: {stReg, stNul, stTyped},
	REMOVE: {stReg, stReg, stNul},

	RETURN: {},
	HALT:   {},
}

func formatRegisterOperand(op bytecode.RegisterOperand) string {
	switch op.Mode {
	case bytecode.RegisterIndirect:
		return fmt.Sprintf("@%d.%s", op.Index, op.Set)
	case bytecode.PointerDereference:
		return fmt.Sprintf("*%d.%s", op.Index, op.Set)
	default:
		return fmt.Sprintf("%%%d.%s", op.Index, op.Set)
	}
}

// describeTyped decodes one full typed operand (the shape readOperand
// reads at runtime) into its textual form, without resolving any register
// to a live value — disassembly only needs the wire shape.
func describeTyped(c *bytecode.Cursor) (string, error) {
	start := c.Pos()
	tag, err := c.Tag()
	if err != nil {
		return "", err
	}
	switch tag {
	case bytecode.TagRegisterIndex, bytecode.TagRegisterReference, bytecode.TagPointerDereference:
		c.Seek(start)
		op, err := c.DecodeRegisterOperand()
		if err != nil {
			return "", err
		}
		return formatRegisterOperand(op), nil
	case bytecode.TagVoid:
		return "void", nil
	case bytecode.TagTrue:
		return "true", nil
	case bytecode.TagFalse:
		return "false", nil
	case bytecode.TagInt, bytecode.TagInt8, bytecode.TagInt16, bytecode.TagInt32, bytecode.TagInt64,
		bytecode.TagUint, bytecode.TagUint8, bytecode.TagUint16, bytecode.TagUint32, bytecode.TagUint64:
		n, err := c.Int64()
		return strconv.FormatInt(n, 10), err
	case bytecode.TagFloat, bytecode.TagFloat32, bytecode.TagFloat64:
		f, err := c.Float64()
		return strconv.FormatFloat(f, 'g', -1, 64), err
	case bytecode.TagAtom:
		s, err := c.NulTerminated()
		return "'" + s + "'", err
	case bytecode.TagText:
		s, err := c.NulTerminated()
		return strconv.Quote(s), err
	case bytecode.TagString:
		b, err := c.LengthPrefixedBytes()
		return fmt.Sprintf("str(%d bytes)", len(b)), err
	case bytecode.TagBits:
		b, err := c.LengthPrefixedBytes()
		return fmt.Sprintf("bits(%d)", len(b)*8), err
	default:
		return "", fmt.Errorf("exec: disasm: unknown operand tag 0x%02x at offset %d", byte(tag), start)
	}
}

func decodeStep(c *bytecode.Cursor, kind stepKind) (string, error) {
	switch kind {
	case stReg:
		op, err := c.DecodeRegisterOperand()
		if err != nil {
			return "", err
		}
		return formatRegisterOperand(op), nil
	case stOptReg:
		start := c.Pos()
		tag, err := c.Tag()
		if err != nil {
			return "", err
		}
		if tag == bytecode.TagVoid {
			return "void", nil
		}
		c.Seek(start)
		op, err := c.DecodeRegisterOperand()
		if err != nil {
			return "", err
		}
		return formatRegisterOperand(op), nil
	case stTyped:
		return describeTyped(c)
	case stU32:
		n, err := c.Uint32()
		return strconv.FormatUint(uint64(n), 10), err
	case stU64:
		n, err := c.Uint64()
		return strconv.FormatUint(n, 10), err
	case stI64Raw:
		n, err := c.Int64()
		return strconv.FormatInt(n, 10), err
	case stF64Raw:
		f, err := c.Float64()
		return strconv.FormatFloat(f, 'g', -1, 64), err
	case stByte:
		b, err := c.Byte()
		return bytecode.RegisterSetMarker(b).Role().String(), err
	case stNul:
		s, err := c.NulTerminated()
		return s, err
	case stStrLit:
		b, err := c.LengthPrefixedBytes()
		return fmt.Sprintf("str(%d bytes)", len(b)), err
	default:
		return "", fmt.Errorf("exec: disasm: unhandled step kind %d", kind)
	}
}

// Disassemble walks code from offset 0 to its end, decoding one Instruction
// per opcode using the same cursor-driven scheme Step uses at runtime, but
// without a process to execute against — the static counterpart of Step,
// adapted from probe-lang/lang/vm's disassembler for the full opcode set.
func Disassemble(code []byte) ([]Instruction, error) {
	var out []Instruction
	pos := 0
	for pos < len(code) {
		offset := pos
		op := Opcode(code[pos])
		if !op.Valid() {
			return out, fmt.Errorf("exec: disasm: unrecognised opcode 0x%02x at offset %d", byte(op), offset)
		}
		steps, ok := schema[op]
		if !ok {
			return out, fmt.Errorf("exec: disasm: opcode %s has no disassembly schema", op)
		}
		c := bytecode.NewCursor(code, pos+1)
		operands := make([]string, 0, len(steps))
		for _, kind := range steps {
			s, err := decodeStep(c, kind)
			if err != nil {
				return out, fmt.Errorf("exec: disasm: %s at offset %d: %w", op, offset, err)
			}
			operands = append(operands, s)
		}
		out = append(out, Instruction{Offset: uint64(offset), Op: op, Operands: operands})
		pos = c.Pos()
	}
	return out, nil
}

// String renders an Instruction the way a Viua assembly listing would:
// mnemonic followed by comma-separated operands.
func (in Instruction) String() string {
	if len(in.Operands) == 0 {
		return in.Op.String()
	}
	return in.Op.String() + " " + strings.Join(in.Operands, ", ")
}
