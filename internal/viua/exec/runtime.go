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
	"errors"

	"github.com/viua-lang/viua/internal/viua/frame"
	"github.com/viua-lang/viua/internal/viua/proto"
	"github.com/viua-lang/viua/internal/viua/value"
)

// Runtime is everything a handler needs that lives above a single process:
// the shared code image, the function/block address table, the prototype
// registry, the process table, and the foreign-call gateway. kernel.Kernel
// implements this; exec never imports kernel (kernel imports exec), so
// handlers stay testable against a small fake.
type Runtime interface {
	// Code returns the shared, immutable code image bytes every process
	// executes against (spec.md 4.10).
	Code() []byte

	// FunctionAddress resolves a function name (e.g. "main/1") to its byte
	// offset and declared arity.
	FunctionAddress(name string) (offset uint64, arity int, err error)

	// BlockAddress resolves a TRY block name to its byte offset.
	BlockAddress(name string) (offset uint64, err error)

	// Prototypes returns the shared class/prototype registry (spec.md 3).
	Prototypes() *proto.Registry

	// Spawn starts a new process executing fn with the given initial
	// frame, returning its PID (spec.md 4.6 PROCESS/WATCHDOG). disowned
	// marks the child unjoinable from the start (a Void-target Process
	// instruction).
	Spawn(fn string, initial *frame.Frame, hidden, disowned bool, watchdog string) (value.PID, error)

	// Send delivers msg to pid's mailbox.
	Send(pid value.PID, msg value.Value) error

	// Join reports pid's outcome without blocking: terminated is false
	// while pid is still running, in which case ret/exc are both nil.
	// hJoin calls this to resolve an already-finished target immediately,
	// and the scheduler's WaitJoin wake-condition test polls it the same
	// cooperative way it polls a mailbox's length for WaitMessage (spec.md
	// 4.6/4.8: Joining is suspended and tested by the scheduler, never an
	// OS-level block).
	Join(pid value.PID) (ret, exc value.Value, terminated bool, err error)

	// ForeignCall invokes a registered foreign (non-bytecode) function by
	// name, off the calling process's own goroutine via the FFI pool
	// (spec.md 4.9).
	ForeignCall(name string, args []value.Value) (value.Value, error)

	// Echo and Print write a text value to the runtime's configured
	// sink (PRINT appends a newline, ECHO does not — spec.md 4.4).
	Print(s string)
	Echo(s string)
}

// ErrHalt is returned by Step when it executes a HALT instruction: the
// dispatch loop should stop running this process without treating it as a
// failure.
var ErrHalt = errors.New("exec: halt")

// ErrForeignFunction is returned by Runtime.FunctionAddress when name
// names a registered foreign function rather than a bytecode one: Call
// routes it through Runtime.ForeignCall instead of pushing a frame
// (spec.md 4.9's foreign-call gateway).
var ErrForeignFunction = errors.New("exec: foreign function, not a bytecode address")

// ErrSuspended is returned by Step when the instruction parked the process
// (RECEIVE with an empty mailbox, JOIN on a still-running process): the
// dispatch loop should yield this process back to the scheduler rather
// than keep stepping it.
var ErrSuspended = errors.New("exec: suspended")
