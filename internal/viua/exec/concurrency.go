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
	"time"

	"github.com/viua-lang/viua/internal/viua/bytecode"
	"github.com/viua-lang/viua/internal/viua/process"
	"github.com/viua-lang/viua/internal/viua/proto"
	"github.com/viua-lang/viua/internal/viua/value"
)

// hProcess implements Process(target, fn): the pending frame seeds a newly
// spawned process; target receives a ProcessHandle, or the child is
// disowned (unjoinable) if target is Void (spec.md 4.6, SPEC_FULL.md Open
// Questions).
func hProcess(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	retReg, hasRet, err := readOptionalRegister(proc, c)
	if err != nil {
		return 0, err
	}
	fnName, captured, err := resolveCallable(rt, proc, c)
	if err != nil {
		return 0, err
	}
	offset, _, err := rt.FunctionAddress(fnName)
	if err != nil {
		return 0, err
	}
	pending, ok := proc.TakePending()
	if !ok {
		return 0, fmt.Errorf("exec: process with no pending frame (missing frame instruction)")
	}
	if captured != nil {
		pending.Locals = captured
	}
	pending.FuncName = fnName
	pending.EntryAddr = offset

	pid, err := rt.Spawn(fnName, pending, false, !hasRet, "")
	if err != nil {
		return 0, err
	}
	if hasRet {
		retReg.Store(proto.ProcessHandle{PID: pid, Disowned: false})
	}
	return uint64(c.Pos()), nil
}

func hSelf(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	dst.Store(proto.ProcessHandle{PID: proc.PID, Disowned: proc.Disowned()})
	return uint64(c.Pos()), nil
}

func asProcessHandle(v value.Value) (proto.ProcessHandle, error) {
	ph, ok := v.(proto.ProcessHandle)
	if !ok {
		return proto.ProcessHandle{}, fmt.Errorf("%w: expected Process handle, got %s", value.ErrTypeMismatch, v.TypeName())
	}
	return ph, nil
}

// hJoin implements Join(dst, target, timeout?): if target hasn't terminated
// yet it parks the caller as Joining(deadline?) and yields via ErrSuspended,
// the same cooperative-suspension shape hReceive uses for an empty mailbox
// (spec.md 4.6/4.8) — the scheduler re-tests rt.Join(target) between quanta
// and only re-enters this handler once it resolves, so it decodes its
// operands identically on every attempt.
func hJoin(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	target, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	timeoutMs, hasTimeout, err := readIndexOrVoid(rt, proc, c)
	if err != nil {
		return 0, err
	}
	ph, err := asProcessHandle(target)
	if err != nil {
		return 0, err
	}
	if ph.Disowned {
		return 0, fmt.Errorf("exec: join on a disowned process")
	}

	ret, exc, terminated, err := rt.Join(ph.PID)
	if err != nil {
		return 0, err
	}
	if !terminated {
		var deadline *time.Time
		if hasTimeout {
			d := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
			deadline = &d
		}
		proc.Suspend(process.WaitJoin, deadline, ph.PID)
		return 0, ErrSuspended
	}
	if exc != nil {
		proc.SetException(exc)
		return uint64(c.Pos()), nil
	}
	dst.Store(ret)
	return uint64(c.Pos()), nil
}

func hSend(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	target, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	msg, err := readOperand(rt, proc, c)
	if err != nil {
		return 0, err
	}
	ph, err := asProcessHandle(target)
	if err != nil {
		return 0, err
	}
	if err := rt.Send(ph.PID, msg); err != nil {
		return 0, err
	}
	return uint64(c.Pos()), nil
}

// hReceive implements Receive(dst, timeout?): on an empty mailbox it parks
// the process as AwaitingMessage(deadline?) and yields via ErrSuspended; the
// scheduler re-tests the mailbox (and, once the deadline passes, injects a
// Timeout exception) cooperatively before ever re-entering this handler
// (spec.md 4.6/4.8).
func hReceive(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	dst, err := readRegisterOperand(proc, c)
	if err != nil {
		return 0, err
	}
	timeoutMs, hasTimeout, err := readIndexOrVoid(rt, proc, c)
	if err != nil {
		return 0, err
	}
	msg, ok := proc.Mailbox().TryReceive()
	if !ok {
		var deadline *time.Time
		if hasTimeout {
			d := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
			deadline = &d
		}
		proc.Suspend(process.WaitMessage, deadline, 0)
		return 0, ErrSuspended
	}
	dst.Store(msg)
	return uint64(c.Pos()), nil
}

func hWatchdog(rt Runtime, proc *process.Process, c *bytecode.Cursor) (uint64, error) {
	fnName, _, err := resolveCallable(rt, proc, c)
	if err != nil {
		return 0, err
	}
	proc.SetWatchdog(fnName)
	return uint64(c.Pos()), nil
}
