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

// Package process implements the Process abstraction of spec.md 3/4.6: a
// stack of frames, a mailbox, a transient exception slot, and the
// suspension states the scheduler tests cooperatively between instructions.
package process

import (
	"sync"
	"time"

	"github.com/viua-lang/viua/internal/viua/frame"
	"github.com/viua-lang/viua/internal/viua/register"
	"github.com/viua-lang/viua/internal/viua/value"
)

// State is the coarse lifecycle state of a Process.
type State int

const (
	Running State = iota
	Suspended
	Terminated
)

// String renders the state the way cmd/viua's `run --ps` table displays it.
func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// WaitKind distinguishes why a Suspended process is parked, so the
// scheduler knows which wake condition to poll (spec.md 4.8's cooperative
// suspension: "the scheduler keeps such processes in its run queue but when
// they are picked it first tests their wake condition").
type WaitKind int

const (
	WaitNone WaitKind = iota
	WaitMessage
	WaitJoin
	WaitForeignCall
)

// Outcome is a terminated process's final result: exactly one of Value or
// Exception is set.
type Outcome struct {
	Value     value.Value
	Exception value.Value
}

// Process owns a stack of frames, a message queue, and transient execution
// state. Only the owning scheduler worker goroutine mutates Stack/Pending/
// CurrentRole; cross-process interactions (Send, Join, watchdog spawn) go
// through the synchronized accessors below.
type Process struct {
	PID value.PID

	stack       []*frame.Frame
	pending     *frame.Frame
	currentRole register.Role

	// ip is the byte offset the scheduler resumes this process's top frame
	// at: saved across quantum boundaries and suspensions, since a
	// Process (unlike a Frame) has no other place to park "where was I".
	ip uint64

	global  *register.Set
	statics map[string]*register.Set

	mailbox *Mailbox

	// exception is the transient exception slot (spec.md 3): at most one
	// pending exception, set by a failing handler or THROW, cleared once
	// a catcher claims it.
	exception value.Value

	watchdog string
	hidden   bool
	disowned bool

	mu         sync.Mutex
	state      State
	waitKind   WaitKind
	deadline   *time.Time
	joinTarget value.PID
	outcome    *Outcome
}

// DefaultRegisterCapacity is the slot count given to a process's Global
// register set and to each function's lazily-created Static set, mirroring
// probe-lang/lang/vm/vm.go's fixed 256-slot register array.
const DefaultRegisterCapacity = 256

// New creates a Process with PID pid, a fresh mailbox, and entry pushed as
// its sole frame.
func New(pid value.PID, entry *frame.Frame, hidden bool) *Process {
	return &Process{
		PID:         pid,
		stack:       []*frame.Frame{entry},
		currentRole: register.Local,
		ip:          entry.EntryAddr,
		global:      register.NewSet(DefaultRegisterCapacity, register.Global),
		statics:     map[string]*register.Set{},
		mailbox:     NewMailbox(),
		hidden:      hidden,
		state:       Running,
	}
}

// IP returns the byte offset execution should resume at.
func (p *Process) IP() uint64 { return p.ip }

// SetIP updates the byte offset execution should resume at, called by the
// scheduler after every Step and after resolving a suspension/unwind.
func (p *Process) SetIP(ip uint64) { p.ip = ip }

// Global returns the process-scoped Global register set (spec.md 4.1).
func (p *Process) Global() *register.Set { return p.global }

// Static returns fnName's persistent per-function register set, creating
// it on first use (spec.md 4.1: "Static ... persistent across calls to the
// same function").
func (p *Process) Static(fnName string) *register.Set {
	if s, ok := p.statics[fnName]; ok {
		return s
	}
	s := register.NewSet(DefaultRegisterCapacity, register.Static)
	p.statics[fnName] = s
	return s
}

// Mailbox returns the process's mailbox.
func (p *Process) Mailbox() *Mailbox { return p.mailbox }

// Hidden reports whether this is a watchdog process, excluded from process
// listings; it still counts toward the scheduler's running-process count, so
// Kernel.Run waits for it (SPEC_FULL.md's supplemented watchdog-termination
// rule).
func (p *Process) Hidden() bool { return p.hidden }

// Disowned reports whether the process was spawned with a void target
// (spec.md 9, Open Questions: void disowns, non-void owns).
func (p *Process) Disowned() bool { return p.disowned }

// SetDisowned marks the process as disowned (unjoinable).
func (p *Process) SetDisowned() { p.disowned = true }

// SetWatchdog registers fnName as this process's watchdog function.
func (p *Process) SetWatchdog(fnName string) { p.watchdog = fnName }

// Watchdog returns the registered watchdog function name, or "" if none.
func (p *Process) Watchdog() string { return p.watchdog }

// --- Frame stack (owning worker only) ---------------------------------

// PushFrame pushes f onto the call stack.
func (p *Process) PushFrame(f *frame.Frame) { p.stack = append(p.stack, f) }

// PopFrame removes and returns the top frame. ok is false if the stack was
// already empty.
func (p *Process) PopFrame() (*frame.Frame, bool) {
	if len(p.stack) == 0 {
		return nil, false
	}
	f := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return f, true
}

// ReplaceTop swaps the current top frame for f in place, leaving stack
// depth unchanged (spec.md 4.3's TAILCALL).
func (p *Process) ReplaceTop(f *frame.Frame) {
	if len(p.stack) == 0 {
		p.stack = append(p.stack, f)
		return
	}
	p.stack[len(p.stack)-1] = f
}

// Current returns the top frame. ok is false on an empty stack.
func (p *Process) Current() (*frame.Frame, bool) {
	if len(p.stack) == 0 {
		return nil, false
	}
	return p.stack[len(p.stack)-1], true
}

// Depth returns the current call-stack depth.
func (p *Process) Depth() int { return len(p.stack) }

// SetPending stashes the frame being prepared by FRAME/PARAM/PAMV ahead of
// the CALL/PROCESS/TAILCALL/DEFER that consumes it.
func (p *Process) SetPending(f *frame.Frame) { p.pending = f }

// TakePending returns and clears the pending frame.
func (p *Process) TakePending() (*frame.Frame, bool) {
	f := p.pending
	p.pending = nil
	return f, f != nil
}

// CurrentRole returns the late-bound "Current" register-set designation.
func (p *Process) CurrentRole() register.Role { return p.currentRole }

// SetCurrentRole rebinds the "Current" register-set designation (RESS).
func (p *Process) SetCurrentRole(r register.Role) { p.currentRole = r }

// --- Transient exception slot -------------------------------------------

// SetException installs v as the pending exception.
func (p *Process) SetException(v value.Value) { p.exception = v }

// TakeException returns and clears the pending exception.
func (p *Process) TakeException() (value.Value, bool) {
	v := p.exception
	p.exception = nil
	return v, v != nil
}

// HasException reports whether an exception is pending.
func (p *Process) HasException() bool { return p.exception != nil }

// --- Suspension state (synchronized: read by scheduler + kernel) -------

// State returns the process's current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Suspend parks the process on the given wait condition.
func (p *Process) Suspend(kind WaitKind, deadline *time.Time, joinTarget value.PID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = Suspended
	p.waitKind = kind
	p.deadline = deadline
	p.joinTarget = joinTarget
}

// Resume marks the process runnable again.
func (p *Process) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = Running
	p.waitKind = WaitNone
	p.deadline = nil
}

// WaitInfo returns the current wait kind, deadline (nil if none), and join
// target, for the scheduler's readiness poll.
func (p *Process) WaitInfo() (WaitKind, *time.Time, value.PID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitKind, p.deadline, p.joinTarget
}

// Terminate transitions the process to Terminated with the given outcome.
// Exactly one of ret/exc should be non-nil.
func (p *Process) Terminate(ret value.Value, exc value.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = Terminated
	p.outcome = &Outcome{Value: ret, Exception: exc}
	p.mailbox.close()
}

// Outcome returns the process's terminal result. ok is false until the
// process has terminated.
func (p *Process) Outcome() (Outcome, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outcome == nil {
		return Outcome{}, false
	}
	return *p.outcome, true
}

// Mailbox is a per-PID FIFO of incoming messages, guarded by its own mutex
// (spec.md 3/5: "Mailboxes are per-PID and each is guarded by its own
// mutex").
type Mailbox struct {
	mu     sync.Mutex
	queue  []value.Value
	closed bool
}

// NewMailbox creates an empty, open mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Send appends v, unless the mailbox has already been closed (its owning
// process terminated and was reaped).
func (m *Mailbox) Send(v value.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.queue = append(m.queue, v)
}

// TryReceive pops the oldest message, if any.
func (m *Mailbox) TryReceive() (value.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, false
	}
	v := m.queue[0]
	m.queue = m.queue[1:]
	return v, true
}

// Len reports the number of queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.queue = nil
}
