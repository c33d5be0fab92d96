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

// Package ffi implements the foreign-function gateway of spec.md 4.9: a
// registry of names the host process provides natively, and a fixed pool
// of worker goroutines that actually run them (original_source's
// kernel.h keeps a `foreign_call_queue` drained by
// `default_ffi_schedulers_limit` (2) worker threads guarded by a mutex and
// a condition variable; a buffered Go channel plays that role here, the
// same substitution the process scheduler makes for its free list's
// condvar-guarded slice with golang.org/x/sync primitives).
package ffi

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/viua-lang/viua/internal/viua/value"
)

// ErrUnknownFunction is returned by Call when name has no registered
// Func.
var ErrUnknownFunction = errors.New("ffi: unknown foreign function")

// ErrClosed is returned by Call once the pool has been stopped.
var ErrClosed = errors.New("ffi: pool is closed")

// Func is a foreign function's native Go implementation: it receives the
// arguments already unpacked from the calling process's registers and
// returns either a result or an error (surfaced to the caller as an
// exception by exec.hCall's callForeign, per SPEC_FULL.md Open Question
// decision 6).
type Func func(args []value.Value) (value.Value, error)

// DefaultWorkers mirrors original_source's default_ffi_schedulers_limit.
const DefaultWorkers = 2

// Registry maps foreign function names to their native implementations,
// guarded by a mutex since registration can happen concurrently with
// lookups once multiple processes are running (spec.md 4.9).
type Registry struct {
	mu  sync.RWMutex
	fns map[string]Func
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{fns: map[string]Func{}}
}

// Register installs fn under name, replacing any prior registration (the
// loader re-registering a function it just unlinked is a legitimate use,
// unlike Prototype registration's stricter once-only rule).
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[name] = fn
}

// IsRegistered reports whether name names a foreign function, the
// predicate Runtime.FunctionAddress uses to decide whether to report
// exec.ErrForeignFunction instead of a bytecode offset.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.fns[name]
	return ok
}

func (r *Registry) lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[name]
	return fn, ok
}

// call is one queued invocation and the channel its result is delivered
// on, the Go analogue of a ForeignFunctionCallRequest.
type call struct {
	name   string
	args   []value.Value
	result chan callResult
}

type callResult struct {
	value value.Value
	err   error
}

// Pool runs foreign calls on a fixed number of worker goroutines, queued
// through a buffered channel (spec.md 4.9's FFI executor; original_source
// kernel.h's foreign_call_queue + foreign_call_workers).
type Pool struct {
	reg     *Registry
	queue   chan *call
	g       *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	closed  chan struct{}
	closeMu sync.Mutex
}

// NewPool starts workers (DefaultWorkers if <= 0) draining calls placed by
// Call against reg.
func NewPool(reg *Registry, workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	p := &Pool{
		reg:    reg,
		queue:  make(chan *call, workers*4),
		g:      g,
		ctx:    ctx,
		cancel: cancel,
		closed: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		g.Go(func() error { return p.worker(gctx) })
	}
	return p
}

func (p *Pool) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-p.queue:
			if !ok {
				return nil
			}
			v, err := p.invoke(c.name, c.args)
			c.result <- callResult{value: v, err: err}
		}
	}
}

func (p *Pool) invoke(name string, args []value.Value) (value.Value, error) {
	fn, ok := p.reg.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	return fn(args)
}

// Call enqueues name(args) and blocks the calling goroutine until a
// worker runs it (spec.md 4.9: the calling process's own goroutine is
// occupied for the duration, the same simplification SPEC_FULL.md Open
// Question decision 6 makes for a synchronous foreign Call).
func (p *Pool) Call(name string, args []value.Value) (value.Value, error) {
	select {
	case <-p.closed:
		return nil, ErrClosed
	default:
	}

	c := &call{name: name, args: args, result: make(chan callResult, 1)}
	select {
	case p.queue <- c:
	case <-p.ctx.Done():
		return nil, ErrClosed
	}

	select {
	case res := <-c.result:
		return res.value, res.err
	case <-p.ctx.Done():
		return nil, ErrClosed
	}
}

// Close stops accepting new calls and waits for in-flight workers to
// drain, the counterpart of the scheduler Pool's Run/haltAll shutdown.
func (p *Pool) Close() error {
	p.closeMu.Lock()
	select {
	case <-p.closed:
		p.closeMu.Unlock()
		return nil
	default:
		close(p.closed)
	}
	p.closeMu.Unlock()

	p.cancel()
	return p.g.Wait()
}
