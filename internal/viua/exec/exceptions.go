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
)

// hThrow sets the process's transient exception; unwinding itself happens
// between Step calls, driven by whatever runs the dispatch loop (spec.md
// 4.5/8: "Throw(reg) sets the process's transient exception and begins
// unwinding").
func hThrow(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	v, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	proc.SetException(v)
	return uint64(c.Pos()), nil
}

// hCatch registers a catcher on the pending (not-yet-called) frame's
// catcher list, ahead of the Try/Call that will push it (spec.md 4.5:
// "Catch(type_name, block_name) registers a catcher on the next-frame's
// catcher list").
func hCatch(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	typeName, err := c.NulTerminated()
	if err != nil {
		return 0, err
	}
	blockName, err := c.NulTerminated()
	if err != nil {
		return 0, err
	}
	blockOffset, err := rt.BlockAddress(blockName)
	if err != nil {
		return 0, err
	}
	pending, ok := proc.TakePending()
	if !ok {
		return 0, fmt.Errorf("exec: catch with no pending frame (missing try instruction)")
	}
	pending.Catchers = append(pending.Catchers, frame.Catcher{TypeName: typeName, BlockOffset: blockOffset})
	proc.SetPending(pending)
	return uint64(c.Pos()), nil
}

func hDraw(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	f, err := current(proc)
	if err != nil {
		return 0, err
	}
	if f.Caught == nil {
		return 0, fmt.Errorf("exec: draw with nothing caught in the active frame")
	}
	dst.Store(f.Caught)
	f.Caught = nil
	return uint64(c.Pos()), nil
}

// hTry prepares a frame-like scope (a zero-argument frame whose Catch
// instructions attach to it) without itself transferring control.
func hTry(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	proc.SetPending(frame.New(0, 0))
	return uint64(c.Pos()), nil
}

// hEnter pushes the try-scope's prepared frame as a frame-lite sharing the
// enclosing frame's Local set (spec.md 4.5).
func hEnter(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	blockName, err := c.NulTerminated()
	if err != nil {
		return 0, err
	}
	blockOffset, err := rt.BlockAddress(blockName)
	if err != nil {
		return 0, err
	}
	enclosing, err := current(proc)
	if err != nil {
		return 0, err
	}
	pending, ok := proc.TakePending()
	if !ok {
		pending = frame.New(0, 0)
	}
	pending.Locals = enclosing.Locals
	pending.FuncName = enclosing.FuncName
	pending.IsBlock = true
	pending.EntryAddr = blockOffset
	pending.ReturnAddr = uint64(c.Pos())
	proc.PushFrame(pending)
	return blockOffset, nil
}

// hLeave pops the active block frame and resumes after the Enter that
// pushed it.
func hLeave(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	f, err := current(proc)
	if err != nil {
		return 0, err
	}
	if !f.IsBlock {
		return 0, fmt.Errorf("exec: leave outside of an entered block")
	}
	proc.PopFrame()
	return f.ReturnAddr, nil
}
