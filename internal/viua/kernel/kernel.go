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

// Package kernel ties the image loader, the prototype registry, the
// foreign-function gateway, and the process scheduler together into the
// single object a loaded program runs against (spec.md 6): Kernel is the
// exec.Runtime every process's instructions execute through, grounded on
// original_source/include/viua/kernel/kernel.h's Kernel class (bytecode +
// typesystem + function_addresses + foreign_functions + the VP/FFI
// scheduler handles, all owned by one object).
package kernel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/viua-lang/viua/internal/viua/bytecode"
	"github.com/viua-lang/viua/internal/viua/exec"
	"github.com/viua-lang/viua/internal/viua/ffi"
	"github.com/viua-lang/viua/internal/viua/frame"
	"github.com/viua-lang/viua/internal/viua/process"
	"github.com/viua-lang/viua/internal/viua/proto"
	"github.com/viua-lang/viua/internal/viua/scheduler"
	"github.com/viua-lang/viua/internal/viua/value"
)

// ErrNotExecutable is returned by Load when given a linkable image: the
// Kernel only runs images the loader has already resolved to a single
// entry-point-bearing executable (spec.md 6/7.8 leave linking out of the
// runtime's scope).
var ErrNotExecutable = errors.New("kernel: image is not executable")

// ErrUnknownProcess is returned by Send/Join when no process with the
// given PID was ever spawned by this Kernel.
var ErrUnknownProcess = errors.New("kernel: unknown process")

// defaultLocalCapacity sizes the local register set Run and
// spawnWatchdogProcess allocate for a frame they build themselves (one not
// prepared by a bytecode FRAME instruction). Frames pushed by CALL/PROCESS
// size their own Locals from the callee's declared local_size instead; this
// constant only covers the two kernel-constructed entry frames.
const defaultLocalCapacity = 16

// Config tunes a loaded Kernel's worker pools and I/O sinks. A zero Config
// takes the scheduler and ffi packages' own defaults (2 process workers, 2
// FFI workers, a 4096-instruction quantum) and writes Print/Echo output to
// os.Stdout.
type Config struct {
	Workers    int
	FFIWorkers int
	Quantum    int
	Stdout     io.Writer
	Stderr     io.Writer
}

// Kernel owns the loaded code image, the address tables derived from it,
// the shared prototype and foreign-function registries, the process table,
// and the two worker pools (process scheduler, FFI executor) that actually
// run a program (spec.md 4.8, 4.9, 6).
type Kernel struct {
	image     *bytecode.Image
	functions map[string]bytecode.FunctionEntry
	blocks    map[string]uint64

	protos  *proto.Registry
	foreign *ffi.Registry
	ffiPool *ffi.Pool
	sched   *scheduler.Pool

	mu        sync.Mutex
	processes map[value.PID]*process.Process
	nextPID   atomic.Uint64

	stdout io.Writer
	stderr io.Writer
}

// Load decodes raw (spec.md 6's wire format, verified via bytecode.Decode's
// checksum check) and constructs a Kernel ready to Run it.
func Load(raw []byte, cfg Config) (*Kernel, error) {
	img, err := bytecode.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("kernel: load: %w", err)
	}
	if img.Kind != bytecode.Executable {
		return nil, fmt.Errorf("kernel: load: %w", ErrNotExecutable)
	}

	stdout, stderr := cfg.Stdout, cfg.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	k := &Kernel{
		image:     img,
		functions: make(map[string]bytecode.FunctionEntry, len(img.Functions)),
		blocks:    make(map[string]uint64, len(img.Blocks)),
		protos:    proto.NewRegistry(),
		foreign:   ffi.NewRegistry(),
		processes: make(map[value.PID]*process.Process),
		stdout:    stdout,
		stderr:    stderr,
	}
	for _, fe := range img.Functions {
		k.functions[fe.Name] = fe
	}
	for _, be := range img.Blocks {
		k.blocks[be.Name] = be.Offset
	}

	k.ffiPool = ffi.NewPool(k.foreign, cfg.FFIWorkers)
	k.sched = scheduler.New(k, cfg.Workers, cfg.Quantum, k.spawnWatchdogProcess)

	return k, nil
}

// RegisterExternalFunction installs fn as the native implementation of a
// foreign function name (original_source's registerExternalFunction):
// Call/FunctionAddress will report exec.ErrForeignFunction for name from
// then on, routing to fn through the FFI pool instead of a bytecode frame.
func (k *Kernel) RegisterExternalFunction(name string, fn ffi.Func) {
	k.foreign.Register(name, fn)
}

// RegisterPrototype installs a natively-constructed Prototype ahead of
// time, the way original_source's registerForeignPrototype injects a
// pure-C++ class into the typesystem before any bytecode CLASS/REGISTER
// instruction runs.
func (k *Kernel) RegisterPrototype(p *proto.Prototype) error {
	return k.protos.Register(p)
}

// Run spawns entryFn as the first process with args as its arguments and
// drives the scheduler pool until every process (the entry process, and
// anything it spawns or defers to a watchdog) has terminated or ctx is
// cancelled, then returns the entry process's outcome.
func (k *Kernel) Run(ctx context.Context, entryFn string, args []value.Value) (process.Outcome, error) {
	offset, arity, err := k.FunctionAddress(entryFn)
	if err != nil {
		return process.Outcome{}, fmt.Errorf("kernel: run: %w", err)
	}
	if arity > 0 && len(args) < arity {
		return process.Outcome{}, fmt.Errorf("kernel: run: %s expects %d arguments, got %d", entryFn, arity, len(args))
	}

	initial := frame.New(len(args), defaultLocalCapacity)
	initial.FuncName = entryFn
	initial.EntryAddr = offset
	for i, v := range args {
		reg, err := initial.Args.At(i)
		if err != nil {
			return process.Outcome{}, err
		}
		reg.Store(v)
	}

	pid, err := k.Spawn(entryFn, initial, false, false, "")
	if err != nil {
		return process.Outcome{}, err
	}

	if err := k.sched.Run(ctx); err != nil {
		return process.Outcome{}, err
	}

	proc, err := k.lookup(pid)
	if err != nil {
		return process.Outcome{}, err
	}
	outcome, ok := proc.Outcome()
	if !ok {
		return process.Outcome{}, fmt.Errorf("kernel: run: %s terminated without an outcome", entryFn)
	}
	return outcome, nil
}

// Close stops the FFI worker pool. The process scheduler pool has no
// separate teardown beyond Run returning, since its workers exit on their
// own once every process has terminated (scheduler.Pool.reap) or the VM
// halted (scheduler.Pool.haltAll).
func (k *Kernel) Close() error {
	return k.ffiPool.Close()
}

func (k *Kernel) lookup(pid value.PID) (*process.Process, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	proc, ok := k.processes[pid]
	if !ok {
		return nil, fmt.Errorf("%w: #%d", ErrUnknownProcess, pid)
	}
	return proc, nil
}

// spawnWatchdogProcess resolves fnName to an entry offset and builds a
// hidden process passing exc as its sole argument, implementing
// scheduler.WatchdogSpawner (spec.md 4.5: "the Kernel spawns a fresh
// process running that watchdog function with the exception as
// argument"). It deliberately does not Submit the process itself — the
// scheduler does that once this returns, the same way Spawn's caller
// (exec's hProcess handler) leaves submission to the Runtime method it
// calls.
func (k *Kernel) spawnWatchdogProcess(fnName string, exc value.Value) (*process.Process, error) {
	offset, _, err := k.FunctionAddress(fnName)
	if err != nil {
		return nil, fmt.Errorf("kernel: watchdog: %w", err)
	}
	f := frame.New(1, defaultLocalCapacity)
	f.FuncName = fnName
	f.EntryAddr = offset
	reg, err := f.Args.At(0)
	if err != nil {
		return nil, err
	}
	reg.Store(exc)

	pid := value.PID(k.nextPID.Add(1))
	proc := process.New(pid, f, true)
	k.mu.Lock()
	k.processes[pid] = proc
	k.mu.Unlock()
	return proc, nil
}

// --- exec.Runtime -----------------------------------------------------

func (k *Kernel) Code() []byte { return k.image.Code }

func (k *Kernel) FunctionAddress(name string) (uint64, int, error) {
	if fe, ok := k.functions[name]; ok {
		return fe.Offset, int(fe.Arity), nil
	}
	if k.foreign.IsRegistered(name) {
		return 0, 0, exec.ErrForeignFunction
	}
	return 0, 0, fmt.Errorf("kernel: unknown function %s", name)
}

func (k *Kernel) BlockAddress(name string) (uint64, error) {
	off, ok := k.blocks[name]
	if !ok {
		return 0, fmt.Errorf("kernel: unknown block %s", name)
	}
	return off, nil
}

func (k *Kernel) Prototypes() *proto.Registry { return k.protos }

func (k *Kernel) Spawn(fn string, initial *frame.Frame, hidden, disowned bool, watchdog string) (value.PID, error) {
	pid := value.PID(k.nextPID.Add(1))
	proc := process.New(pid, initial, hidden)
	if disowned {
		proc.SetDisowned()
	}
	if watchdog != "" {
		proc.SetWatchdog(watchdog)
	}
	k.mu.Lock()
	k.processes[pid] = proc
	k.mu.Unlock()
	k.sched.Submit(proc)
	return pid, nil
}

func (k *Kernel) Send(pid value.PID, msg value.Value) error {
	proc, err := k.lookup(pid)
	if err != nil {
		return err
	}
	proc.Mailbox().Send(msg)
	return nil
}

// Join reports whether pid has terminated, and its outcome if so. It never
// blocks: hJoin calls it to resolve an already-terminated target
// immediately, and the scheduler's WaitJoin wake-condition test polls it the
// same cooperative way Receive polls Mailbox().Len() — Joining is suspended
// and tested by the scheduler between quanta, never an OS-level block
// (spec.md 4.6, 4.8).
func (k *Kernel) Join(pid value.PID) (value.Value, value.Value, bool, error) {
	proc, err := k.lookup(pid)
	if err != nil {
		return nil, nil, false, err
	}
	outcome, ok := proc.Outcome()
	if !ok {
		return nil, nil, false, nil
	}
	return outcome.Value, outcome.Exception, true, nil
}

func (k *Kernel) ForeignCall(name string, args []value.Value) (value.Value, error) {
	return k.ffiPool.Call(name, args)
}

func (k *Kernel) Print(s string) { fmt.Fprintln(k.stdout, s) }
func (k *Kernel) Echo(s string)  { fmt.Fprint(k.stdout, s) }

// ProcessInfo is a point-in-time snapshot of one process, for cmd/viua's
// `run --ps` table (SPEC_FULL.md domain stack item 9).
type ProcessInfo struct {
	PID      value.PID
	State    process.State
	Disowned bool
}

// Snapshot lists every non-hidden process this Kernel has ever spawned, in
// PID order. Watchdog processes are explicitly excluded (SPEC_FULL.md's
// supplemented watchdog-visibility rule): they still count toward the
// kernel's "all processes drained" quiescence check, they just never appear
// in a `ps` listing.
func (k *Kernel) Snapshot() []ProcessInfo {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]ProcessInfo, 0, len(k.processes))
	for pid, proc := range k.processes {
		if proc.Hidden() {
			continue
		}
		out = append(out, ProcessInfo{
			PID:      pid,
			State:    proc.State(),
			Disowned: proc.Disowned(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}
