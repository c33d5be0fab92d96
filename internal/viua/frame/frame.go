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

// Package frame implements the call-frame model of spec.md 3/4.3: the
// activation record a FRAME instruction prepares and a CALL/PROCESS/
// TAILCALL/DEFER instruction consumes.
package frame

import (
	"github.com/viua-lang/viua/internal/viua/register"
	"github.com/viua-lang/viua/internal/viua/value"
)

// Catcher is one entry of a frame's catcher list: the exception type name it
// claims, and the byte offset of the handling block.
type Catcher struct {
	TypeName    string
	BlockOffset uint64
}

// Frame is the activation record for one call. ReturnTarget is a borrowed
// pointer into the caller's register set (nil encodes "void": the return
// value is discarded). Deferred holds frames prepared by DEFER, executed in
// LIFO order when the owning frame returns, even on exception unwind.
type Frame struct {
	Locals *register.Set
	Args   *register.Set

	ReturnTarget *register.Register
	FuncName     string
	ReturnAddr   uint64

	// EntryAddr is the byte offset execution should begin at when this
	// frame becomes the active one: set by Call/Tailcall/Process/Defer to
	// the callee's resolved entry point, and consumed by the dispatch loop
	// (or, for a deferred frame, by Return chaining one deferred call into
	// the next) rather than stored anywhere else.
	EntryAddr uint64

	Catchers []Catcher
	Deferred []*Frame

	// Caught holds the value transferred into this frame by a matching
	// CATCH once THROW begins unwinding; DRAW moves it into a register.
	Caught value.Value

	// IsBlock marks a frame-lite prepared by TRY and pushed by ENTER, whose Locals is the
	// enclosing frame's set rather than a freshly allocated one (spec.md
	// 4.5: "Enter(block_name) pushes the block as a frame-lite (local set
	// is inherited from enclosing frame)").
	IsBlock bool
}

// New allocates a pending frame with argc argument slots and localSize
// local slots, per spec.md 4.3's Frame(argc, local_size).
func New(argc, localSize int) *Frame {
	return &Frame{
		Args:   register.NewSet(argc, register.Local),
		Locals: register.NewSet(localSize, register.Local),
	}
}

// PushDeferred appends a prepared frame to the deferred-call list.
func (f *Frame) PushDeferred(d *Frame) {
	f.Deferred = append(f.Deferred, d)
}

// DeferredInReverse returns the deferred frames in LIFO execution order
// (spec.md 4.3: "Return executes deferred calls in reverse order").
func (f *Frame) DeferredInReverse() []*Frame {
	out := make([]*Frame, len(f.Deferred))
	for i, d := range f.Deferred {
		out[len(f.Deferred)-1-i] = d
	}
	return out
}

// MatchCatcher returns the index of the first catcher in the frame whose
// type name appears in chain, searching the chain in priority order
// (spec.md 8: innermost enclosing catcher whose type equals the first
// matching link of the thrown value's inheritance chain). ok is false if no
// catcher in this frame matches.
func (f *Frame) MatchCatcher(chain []string) (idx int, ok bool) {
	for _, typeName := range chain {
		for i, c := range f.Catchers {
			if c.TypeName == typeName {
				return i, true
			}
		}
	}
	return 0, false
}
