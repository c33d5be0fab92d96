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

// Package scheduler implements the process-scheduler pool of spec.md 4.8: a
// fixed number of workers, each with a private run queue and a handle to a
// shared free list, cooperatively multiplexing many Processes. It also owns
// exception unwinding (spec.md 4.5/8): the scheduler is what "observes [a
// pending exception] between instructions and begins unwinding", not exec.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/viua-lang/viua/internal/viua/exec"
	"github.com/viua-lang/viua/internal/viua/frame"
	"github.com/viua-lang/viua/internal/viua/process"
	"github.com/viua-lang/viua/internal/viua/proto"
	"github.com/viua-lang/viua/internal/viua/value"
)

// DefaultWorkers is the scheduler pool size absent an explicit override
// (spec.md 4.8: "A fixed pool of N worker threads (configurable; default
// 2)").
const DefaultWorkers = 2

// DefaultQuantum bounds how many instructions a worker runs a Process for
// before yielding it back to the run queue, even if it never voluntarily
// suspends (spec.md 4.8.2).
const DefaultQuantum = 4096

// DefaultLocalQueueCapacity is the per-worker run-queue size past which a
// worker sheds newly-ready processes to the shared free list instead of
// requeuing locally (spec.md 4.8.3's "overloaded").
const DefaultLocalQueueCapacity = 64

// quantumResult is what running a Process for one quantum produced.
type quantumResult int

const (
	yielded quantumResult = iota
	terminated
	halted
)

// WatchdogSpawner resolves and spawns a hidden watchdog process running
// fnName with exc as its sole argument, once proc terminates with an
// uncaught exception and a watchdog was registered (spec.md 4.5: "if a
// watchdog is registered, the Kernel spawns a fresh process running that
// watchdog function with the exception as argument"). Implemented by
// kernel.Kernel, which alone knows how to resolve fnName to an entry offset.
type WatchdogSpawner func(fnName string, exc value.Value) (*process.Process, error)

// Pool is the process-scheduler pool: DefaultWorkers (or Workers) goroutines
// each pulling from a private bounded queue and a free list shared with
// every other worker.
type Pool struct {
	rt       exec.Runtime
	workers  []*worker
	free     *freeList
	quantum  int
	watchdog WatchdogSpawner

	running atomic.Int64
	halted  chan struct{}
	haltErr error
	haltMu  sync.Mutex
	haltOne sync.Once
}

// New builds a Pool of the given size (DefaultWorkers if <= 0) driving rt,
// running each Process for up to quantum instructions per turn (DefaultQuantum
// if <= 0). watchdog may be nil, in which case an uncaught exception with no
// watchdog registered simply terminates its process (spec.md 4.5).
func New(rt exec.Runtime, workers, quantum int, watchdog WatchdogSpawner) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if quantum <= 0 {
		quantum = DefaultQuantum
	}
	p := &Pool{
		rt:       rt,
		free:     newFreeList(),
		quantum:  quantum,
		watchdog: watchdog,
		halted:   make(chan struct{}),
	}
	p.workers = make([]*worker, workers)
	for i := range p.workers {
		p.workers[i] = &worker{id: i, pool: p, sem: semaphore.NewWeighted(int64(DefaultLocalQueueCapacity))}
	}
	return p
}

// Submit enqueues proc onto the pool, ready to run, assigning it round-robin
// to a worker's local queue (spec.md 4.8's "private run queue of ready
// Processes").
func (p *Pool) Submit(proc *process.Process) {
	p.running.Add(1)
	w := p.workers[int(proc.PID)%len(p.workers)]
	w.enqueueLocal(proc)
}

// Run starts every worker and blocks until all submitted (and
// subsequently-spawned or -watchdog-spawned) Processes have terminated, a
// Halt instruction collapsed the whole VM, or ctx is cancelled. It mirrors
// golang.org/x/sync/errgroup's "first error wins, every goroutine observes
// cancellation" shape.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		w := w
		g.Go(func() error { return w.loop(ctx) })
	}
	go func() {
		<-ctx.Done()
		p.free.shutdown()
	}()
	err := g.Wait()
	p.haltMu.Lock()
	defer p.haltMu.Unlock()
	if p.haltErr != nil {
		return p.haltErr
	}
	return err
}

// haltAll records haltErr (nil for a plain Halt) and wakes every idle
// worker so they can observe the pool is done (spec.md 4.10: "Halt raises a
// sentinel error caught by the scheduler and terminates the VM").
func (p *Pool) haltAll(err error) {
	p.haltOne.Do(func() {
		p.haltMu.Lock()
		p.haltErr = err
		p.haltMu.Unlock()
		close(p.halted)
		p.free.shutdown()
	})
}

func (p *Pool) isHalted() bool {
	select {
	case <-p.halted:
		return true
	default:
		return false
	}
}

// worker owns a bounded local run queue and pulls from the pool's shared
// free list when its own queue runs dry.
type worker struct {
	id   int
	pool *Pool
	sem  *semaphore.Weighted

	mu    sync.Mutex
	local []*process.Process
}

// enqueueLocal appends proc to the worker's own queue if it has spare
// capacity (tracked by sem, giving the overload test below a race-free
// answer); otherwise it sheds proc to the pool's shared free list (spec.md
// 4.8.3).
func (w *worker) enqueueLocal(proc *process.Process) {
	if w.sem.TryAcquire(1) {
		w.mu.Lock()
		w.local = append(w.local, proc)
		w.mu.Unlock()
		w.pool.free.nudge()
		return
	}
	w.pool.free.push(proc)
}

func (w *worker) popLocal() (*process.Process, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.local) == 0 {
		return nil, false
	}
	proc := w.local[0]
	w.local = w.local[1:]
	w.sem.Release(1)
	return proc, true
}

// loop is one worker's cooperative run loop (spec.md 4.8.1-4.8.4).
func (w *worker) loop(ctx context.Context) error {
	for {
		if w.pool.isHalted() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		proc, ok := w.popLocal()
		if !ok {
			proc, ok = w.pool.free.pop(ctx)
		}
		if !ok {
			if w.pool.running.Load() == 0 || w.pool.isHalted() {
				return nil
			}
			continue
		}

		w.runOne(proc)
	}
}

// runOne advances proc by at most one quantum, first cooperatively testing
// its wake condition if it is parked (spec.md 4.8's "Suspension" paragraph),
// then re-homing it (local queue, free list, or nowhere if it terminated).
func (w *worker) runOne(proc *process.Process) {
	if proc.State() == process.Suspended {
		if !w.pool.testWakeCondition(proc) {
			if proc.State() != process.Terminated {
				w.pool.free.push(proc)
			}
			return
		}
	}

	switch w.pool.runQuantum(proc) {
	case halted:
		w.pool.haltAll(nil)
	case terminated:
		w.pool.reap(proc)
	case yielded:
		w.enqueueLocal(proc)
	}
}

// testWakeCondition polls proc's suspension reason without running it
// (spec.md 4.8: "tests their wake condition (message present / joined
// process terminated / deadline passed) before running"). A Receive or Join
// whose deadline has passed is resolved here by injecting a Timeout
// exception and immediately unwinding, rather than by re-entering the
// handler that suspended the process.
func (p *Pool) testWakeCondition(proc *process.Process) bool {
	kind, deadline, joinTarget := proc.WaitInfo()
	switch kind {
	case process.WaitMessage:
		if proc.Mailbox().Len() > 0 {
			proc.Resume()
			return true
		}
		if deadline != nil && !time.Now().Before(*deadline) {
			proc.SetException(proto.NewException("Timeout", "receive timed out"))
			proc.Resume()
			if p.handleException(proc) {
				p.reap(proc)
				return false
			}
			return true
		}
		return false
	case process.WaitJoin:
		if _, _, terminated, err := p.rt.Join(joinTarget); err == nil && terminated {
			proc.Resume()
			return true
		}
		if deadline != nil && !time.Now().Before(*deadline) {
			proc.SetException(proto.NewException("Timeout", "join timed out"))
			proc.Resume()
			if p.handleException(proc) {
				p.reap(proc)
				return false
			}
			return true
		}
		return false
	default:
		proc.Resume()
		return true
	}
}

// runQuantum runs proc for up to p.quantum instructions, handling Halt,
// cooperative suspension, and exception unwinding between each one.
func (p *Pool) runQuantum(proc *process.Process) quantumResult {
	ip := proc.IP()
	for i := 0; i < p.quantum; i++ {
		next, err := exec.Step(p.rt, proc, ip)
		if err != nil {
			switch {
			case errors.Is(err, exec.ErrHalt):
				proc.SetIP(next)
				proc.Terminate(value.Boolean(true), nil)
				return halted
			case errors.Is(err, exec.ErrSuspended):
				proc.SetIP(ip)
				return yielded
			default:
				proc.Terminate(nil, proto.NewException("InternalError", err.Error()))
				proc.SetIP(ip)
				return terminated
			}
		}
		ip = next

		if proc.HasException() {
			if p.handleException(proc) {
				proc.SetIP(ip)
				return terminated
			}
			ip = proc.IP()
		}
		if proc.State() == process.Terminated {
			proc.SetIP(ip)
			return terminated
		}
	}
	proc.SetIP(ip)
	return yielded
}

// handleException drives spec.md 4.5/8's unwind: pop frames, running each
// one's deferred calls first, until a catcher matches the exception's
// inheritance chain or the stack is exhausted. On a match it leaves proc
// Running with IP set to the catcher's block and returns false; on
// exhaustion it Terminates proc (spawning its watchdog if one is
// registered) and returns true.
func (p *Pool) handleException(proc *process.Process) (procTerminated bool) {
	exc, ok := proc.TakeException()
	if !ok {
		return false
	}
	chain := exceptionChain(exc)

	for {
		f, ok := proc.Current()
		if !ok {
			proc.Terminate(nil, exc)
			p.spawnWatchdog(proc, exc)
			return true
		}
		if idx, matched := f.MatchCatcher(chain); matched {
			f.Caught = exc
			proc.SetIP(f.Catchers[idx].BlockOffset)
			return false
		}

		popped, _ := proc.PopFrame()
		for _, d := range popped.DeferredInReverse() {
			if err := p.runDeferredFrame(proc, d); err != nil {
				if errors.Is(err, exec.ErrHalt) {
					proc.Terminate(value.Boolean(true), nil)
					return true
				}
				proc.Terminate(nil, proto.NewException("InternalError", err.Error()))
				return true
			}
			if proc.HasException() {
				exc, _ = proc.TakeException()
				chain = exceptionChain(exc)
			}
		}
	}
}

// runDeferredFrame pushes d and drives Step until the stack returns to its
// depth from before the push, i.e. d (and anything it calls) has fully
// returned. Unlike hReturn's normal (non-unwind) deferred-call chaining,
// which links the deferred frames through their ReturnAddr fields, this runs
// one frame at a time, since unwinding must inspect the exception state
// between each deferred call.
func (p *Pool) runDeferredFrame(proc *process.Process, d *frame.Frame) error {
	targetDepth := proc.Depth()
	proc.PushFrame(d)
	ip := d.EntryAddr
	for proc.Depth() > targetDepth {
		next, err := exec.Step(p.rt, proc, ip)
		if err != nil {
			return err
		}
		ip = next
		if proc.HasException() {
			return nil
		}
	}
	return nil
}

func (p *Pool) spawnWatchdog(proc *process.Process, exc value.Value) {
	if proc.Watchdog() == "" || p.watchdog == nil {
		return
	}
	child, err := p.watchdog(proc.Watchdog(), exc)
	if err != nil || child == nil {
		return
	}
	p.Submit(child)
}

// reap accounts for proc's termination and, once the last live process is
// gone, shuts down the free list so workers parked in freeList.pop (waiting
// on a condvar that nothing would otherwise signal again) notice there is
// no more work and return instead of blocking forever.
func (p *Pool) reap(proc *process.Process) {
	if p.running.Add(-1) == 0 {
		p.free.shutdown()
	}
}

// exceptionChain returns a thrown Value's dynamic-type chain in catcher-
// priority order: its own type name, then (for a proto.Exception) its
// declared base names (spec.md 8: "checked against the exception value's
// inheritance chain").
func exceptionChain(v value.Value) []string {
	type chained interface{ InheritanceChain() []string }
	if c, ok := v.(chained); ok {
		return c.InheritanceChain()
	}
	return []string{v.TypeName()}
}
