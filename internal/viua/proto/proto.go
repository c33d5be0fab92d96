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

// Package proto implements the composite, cross-package value variants that
// round out spec.md's Value model (Object, Prototype, Closure,
// FunctionHandle, ProcessHandle, Pointer, Exception) and the prototype
// registry and dynamic-dispatch walk of spec.md 4.7.
package proto

import (
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set"

	"github.com/viua-lang/viua/internal/viua/register"
	"github.com/viua-lang/viua/internal/viua/value"
)

// ErrUnknownClass is returned by New when the named class was never
// registered.
var ErrUnknownClass = errors.New("proto: unknown class")

// ErrDuplicateClass is returned by Registry.Register when the class name is
// already installed (spec.md 9, Open Questions: second registration fails
// rather than silently replacing the first).
var ErrDuplicateClass = errors.New("proto: duplicate class registration")

// ErrMethodNotFound is returned by ResolveMethod when no class in the
// receiver's inheritance chain declares the method.
var ErrMethodNotFound = errors.New("proto: method not found")

// Chained is implemented by values whose exception-matching identity is
// richer than their bare TypeName: Object resolves it through its
// Prototype's bases, Exception carries an explicit synthetic chain.
type Chained interface {
	InheritanceChain() []string
}

// InheritanceChain returns v's exception-matching chain: v.InheritanceChain()
// if v implements Chained, otherwise the single-element chain [v.TypeName()].
func InheritanceChain(v value.Value) []string {
	if c, ok := v.(Chained); ok {
		return c.InheritanceChain()
	}
	return []string{v.TypeName()}
}

// Prototype is a runtime class descriptor: a name, an ordered list of base
// class names, and a method table mapping method name to function id.
type Prototype struct {
	name    string
	bases   []string
	methods map[string]string
}

// NewPrototype constructs an unregistered, base-less Prototype named name.
func NewPrototype(name string) *Prototype {
	return &Prototype{name: name, methods: make(map[string]string)}
}

func (p *Prototype) TypeName() string { return "Prototype" }
func (p *Prototype) ToText() string   { return fmt.Sprintf("<class %s>", p.name) }
func (p *Prototype) Truthy() bool     { return true }
func (p *Prototype) DeepCopy() value.Value {
	cp := NewPrototype(p.name)
	cp.bases = append([]string{}, p.bases...)
	for k, v := range p.methods {
		cp.methods[k] = v
	}
	return cp
}

// Name returns the class name.
func (p *Prototype) Name() string { return p.name }

// Bases returns the declared base class names, in declaration order.
func (p *Prototype) Bases() []string { return p.bases }

// Derive appends base to the prototype's inheritance list.
func (p *Prototype) Derive(base string) { p.bases = append(p.bases, base) }

// Attach binds methodName to fnID on this prototype.
func (p *Prototype) Attach(methodName, fnID string) { p.methods[methodName] = fnID }

// Method looks up a method declared directly on this prototype (not
// searching bases).
func (p *Prototype) Method(name string) (string, bool) {
	fnID, ok := p.methods[name]
	return fnID, ok
}

// Registry is the Kernel's type name to Prototype table (spec.md 3's
// "prototype registry"). Registration is serialised; lookups afterwards are
// read-only and safe for concurrent use by many processes.
type Registry struct {
	classes map[string]*Prototype
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*Prototype)}
}

// Register installs p under its own name, failing ErrDuplicateClass if a
// class of that name is already installed.
func (r *Registry) Register(p *Prototype) error {
	if _, exists := r.classes[p.name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateClass, p.name)
	}
	r.classes[p.name] = p
	return nil
}

// Lookup returns the Prototype registered under name.
func (r *Registry) Lookup(name string) (*Prototype, error) {
	p, ok := r.classes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}
	return p, nil
}

// ResolveMethod walks class's inheritance chain depth-first — the class
// itself first, then its bases in declaration order — selecting the first
// class that declares method (spec.md 4.7). A visited-name set guards
// against diamond inheritance revisiting the same base twice and against
// cycles, neither of which the spec forbids explicitly.
func (r *Registry) ResolveMethod(class, method string) (fnID string, definingClass string, err error) {
	visited := mapset.NewSet()
	fnID, definingClass, found := r.resolve(class, method, visited)
	if !found {
		return "", "", fmt.Errorf("%w: %s on %s", ErrMethodNotFound, method, class)
	}
	return fnID, definingClass, nil
}

func (r *Registry) resolve(class, method string, visited mapset.Set) (string, string, bool) {
	if visited.Contains(class) {
		return "", "", false
	}
	visited.Add(class)

	p, ok := r.classes[class]
	if !ok {
		return "", "", false
	}
	if fnID, ok := p.Method(method); ok {
		return fnID, class, true
	}
	for _, base := range p.bases {
		if fnID, defining, found := r.resolve(base, method, visited); found {
			return fnID, defining, true
		}
	}
	return "", "", false
}

// Object is a dynamically typed instance of a registered class: a type name
// plus a mapping from attribute name to owned value.
type Object struct {
	class *Prototype
	attrs map[string]value.Value
}

// New allocates an Object of class, failing ErrUnknownClass if class is not
// registered.
func New(reg *Registry, className string) (*Object, error) {
	p, err := reg.Lookup(className)
	if err != nil {
		return nil, err
	}
	return &Object{class: p, attrs: make(map[string]value.Value)}, nil
}

func (o *Object) TypeName() string { return o.class.Name() }
func (o *Object) ToText() string   { return fmt.Sprintf("<%s object>", o.class.Name()) }
func (o *Object) Truthy() bool     { return true }
func (o *Object) DeepCopy() value.Value {
	cp := &Object{class: o.class, attrs: make(map[string]value.Value, len(o.attrs))}
	for k, v := range o.attrs {
		cp.attrs[k] = v.DeepCopy()
	}
	return cp
}

// InheritanceChain returns the class name followed by its bases in
// declaration order (dynamic dispatch walks the same order; here it is
// exposed for exception-type matching of thrown objects).
func (o *Object) InheritanceChain() []string {
	return append([]string{o.class.Name()}, o.class.Bases()...)
}

// Class returns the object's prototype.
func (o *Object) Class() *Prototype { return o.class }

// Insert sets attribute name to v.
func (o *Object) Insert(name string, v value.Value) { o.attrs[name] = v }

// Remove deletes and returns attribute name, or value.ErrMissingKey.
func (o *Object) Remove(name string) (value.Value, error) {
	v, ok := o.attrs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", value.ErrMissingKey, name)
	}
	delete(o.attrs, name)
	return v, nil
}

// Attr returns attribute name, or value.ErrMissingKey.
func (o *Object) Attr(name string) (value.Value, error) {
	v, ok := o.attrs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", value.ErrMissingKey, name)
	}
	return v, nil
}

// Closure bundles a function id with a captured register set (spec.md 4.4).
// Invoking a closure installs Captured as the callee frame's Local set
// rather than allocating a fresh one.
type Closure struct {
	FnID     string
	Captured *register.Set
}

func (c *Closure) TypeName() string { return "Closure" }
func (c *Closure) ToText() string   { return fmt.Sprintf("<closure %s>", c.FnID) }
func (c *Closure) Truthy() bool     { return true }
func (c *Closure) DeepCopy() value.Value {
	cp := register.NewSet(c.Captured.Len(), c.Captured.Role())
	for i := 0; i < c.Captured.Len(); i++ {
		src, _ := c.Captured.At(i)
		dst, _ := cp.At(i)
		if v, err := src.Peek(); err == nil {
			dst.Store(v.DeepCopy())
		}
	}
	return &Closure{FnID: c.FnID, Captured: cp}
}

// FunctionHandle names a function without capturing anything.
type FunctionHandle struct {
	FnID string
}

func (f FunctionHandle) TypeName() string      { return "FunctionHandle" }
func (f FunctionHandle) ToText() string        { return fmt.Sprintf("<function %s>", f.FnID) }
func (f FunctionHandle) Truthy() bool          { return true }
func (f FunctionHandle) DeepCopy() value.Value { return f }

// ProcessHandle is a weak reference to a live process by PID (spec.md 3).
// Liveness/return-value resolution is performed by the Kernel's process
// table, not stored on the handle itself, since a handle must keep
// comparing equal by PID even after its process has terminated and been
// reaped (spec.md 4.6).
type ProcessHandle struct {
	PID     value.PID
	Disowned bool
}

func (p ProcessHandle) TypeName() string      { return "Process" }
func (p ProcessHandle) ToText() string        { return fmt.Sprintf("<process #%d>", p.PID) }
func (p ProcessHandle) Truthy() bool          { return true }
func (p ProcessHandle) DeepCopy() value.Value { return p }

// Pointer is a non-owning reference to another value plus the PID of the
// process that created it (spec.md 3/4.2). Dereferencing outside the
// origin process always fails, regardless of the referent's liveness
// (spec.md 8).
type Pointer struct {
	cell   *value.Cell
	origin value.PID
}

// NewPointer creates a Pointer to cell, tagged with the creating process's
// PID.
func NewPointer(cell *value.Cell, origin value.PID) Pointer {
	return Pointer{cell: cell, origin: origin}
}

func (p Pointer) TypeName() string { return "Pointer" }
func (p Pointer) ToText() string   { return "<pointer>" }
func (p Pointer) Truthy() bool     { return p.cell != nil && !p.cell.Stale() }
func (p Pointer) DeepCopy() value.Value {
	// Cloning a pointer clones the reference and origin token, not the
	// referent (spec.md 4.1).
	return p
}

// Dereference returns the referent, failing value.ErrCrossProcessPointer if
// current is not the pointer's origin process and value.ErrStalePointer if
// the referent has been deleted.
func (p Pointer) Dereference(current value.PID) (value.Value, error) {
	if current != p.origin {
		return nil, value.ErrCrossProcessPointer
	}
	if p.cell.Stale() {
		return nil, value.ErrStalePointer
	}
	return p.cell.Value(), nil
}

// Exception is a VM-raised (as opposed to user-constructed) throwable: a
// type name plus an ordered list of further base type names used for
// catcher matching (spec.md 7).
type Exception struct {
	Kind    string
	Message string
	Bases   []string
}

// NewException constructs a VM exception of the given kind.
func NewException(kind, message string, bases ...string) *Exception {
	return &Exception{Kind: kind, Message: message, Bases: bases}
}

func (e *Exception) TypeName() string { return e.Kind }
func (e *Exception) ToText() string   { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }
func (e *Exception) Truthy() bool     { return true }
func (e *Exception) DeepCopy() value.Value {
	return &Exception{Kind: e.Kind, Message: e.Message, Bases: append([]string{}, e.Bases...)}
}

// InheritanceChain returns the exception's own kind followed by its
// declared bases, in priority order.
func (e *Exception) InheritanceChain() []string {
	return append([]string{e.Kind}, e.Bases...)
}
