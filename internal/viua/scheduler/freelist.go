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

package scheduler

import (
	"context"
	"sync"

	"github.com/viua-lang/viua/internal/viua/process"
)

// freeList is the run queue shared by every worker, protected by a mutex
// and a condvar (spec.md 4.8: "a handle to the shared free_processes list
// protected by a mutex and a condvar"): overloaded workers shed ready
// Processes here, idle workers steal from it.
type freeList struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*process.Process
	closed bool
}

func newFreeList() *freeList {
	fl := &freeList{}
	fl.cond = sync.NewCond(&fl.mu)
	return fl
}

// push appends proc and wakes one idle worker.
func (fl *freeList) push(proc *process.Process) {
	fl.mu.Lock()
	fl.items = append(fl.items, proc)
	fl.mu.Unlock()
	fl.cond.Signal()
}

// nudge wakes one idle worker without adding anything, used after a worker
// enqueues locally so a worker parked on the free list (because its own
// queue was briefly empty) notices there is work again somewhere.
func (fl *freeList) nudge() {
	fl.cond.Signal()
}

// pop removes and returns the oldest entry, blocking (cooperatively, via
// the condvar — not spinning) while the list is empty, open, and ctx is
// still live. ok is false if ctx was cancelled or the pool shut down while
// waiting, in which case the caller re-checks the pool's running count.
func (fl *freeList) pop(ctx context.Context) (*process.Process, bool) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	for len(fl.items) == 0 && !fl.closed {
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				fl.cond.Broadcast()
			case <-done:
			}
		}()
		fl.cond.Wait()
		close(done)
		if ctx.Err() != nil {
			return nil, false
		}
	}
	if len(fl.items) == 0 {
		return nil, false
	}
	proc := fl.items[0]
	fl.items = fl.items[1:]
	return proc, true
}

// shutdown wakes every worker parked in pop so they can observe the pool is
// done (Halt, or ctx cancellation) instead of waiting on the condvar forever.
func (fl *freeList) shutdown() {
	fl.mu.Lock()
	fl.closed = true
	fl.mu.Unlock()
	fl.cond.Broadcast()
}
