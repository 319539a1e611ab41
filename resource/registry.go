// Package resource holds the named GPU resources a renderer draws with:
// meshes, materials, shaders and textures. Managers are constructed
// explicitly and passed to whoever needs them.
package resource

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"render-core/core"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
)

// Releaser is anything a registry can own.
type Releaser interface {
	Release()
}

// Handle identifies a registered resource. The zero Handle is never
// issued.
type Handle uint32

// Policy decides what Register does with a name that is already taken.
type Policy int

const (
	// PolicyFail rejects the second registration with ErrAlreadyExists.
	PolicyFail Policy = iota
	// PolicyReplace releases the old resource and keeps its handle.
	PolicyReplace
)

type entry[T Releaser] struct {
	name     string
	resource T
}

// Registry maps names to owned resources, one live resource per name.
type Registry[T Releaser] struct {
	mu      sync.RWMutex
	kind    string
	policy  Policy
	next    Handle
	byName  map[string]Handle
	entries map[Handle]*entry[T]
}

func NewRegistry[T Releaser](kind string, policy Policy) *Registry[T] {
	return &Registry[T]{
		kind:    kind,
		policy:  policy,
		byName:  make(map[string]Handle),
		entries: make(map[Handle]*entry[T]),
	}
}

func (r *Registry[T]) SetPolicy(p Policy) {
	r.mu.Lock()
	r.policy = p
	r.mu.Unlock()
}

// Register takes ownership of res under name.
func (r *Registry[T]) Register(name string, res T) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.byName[name]; ok {
		if r.policy == PolicyFail {
			return 0, fmt.Errorf("%s %q: %w", r.kind, name, ErrAlreadyExists)
		}
		r.swap(h, res)
		core.Logger().Warn("resource re-registered", "kind", r.kind, "name", name)
		return h, nil
	}

	r.next++
	h := r.next
	r.byName[name] = h
	r.entries[h] = &entry[T]{name: name, resource: res}
	return h, nil
}

// Replace swaps the resource registered under name for res regardless
// of policy, releasing the old one.
func (r *Registry[T]) Replace(name string, res T) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.byName[name]
	if !ok {
		return 0, fmt.Errorf("%s %q: %w", r.kind, name, ErrNotFound)
	}
	r.swap(h, res)
	core.Logger().Info("resource replaced", "kind", r.kind, "name", name)
	return h, nil
}

func (r *Registry[T]) swap(h Handle, res T) {
	e := r.entries[h]
	e.resource.Release()
	e.resource = res
}

func (r *Registry[T]) Get(h Handle) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[h]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s handle %d: %w", r.kind, h, ErrNotFound)
	}
	return e.resource, nil
}

func (r *Registry[T]) Lookup(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.byName[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", r.kind, name, ErrNotFound)
	}
	return r.entries[h].resource, nil
}

func (r *Registry[T]) Handle(name string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byName[name]
	return h, ok
}

// rejects reports whether registering name would fail under the
// current policy.
func (r *Registry[T]) rejects(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, taken := r.byName[name]
	return taken && r.policy == PolicyFail
}

func (r *Registry[T]) Has(name string) bool {
	_, ok := r.Handle(name)
	return ok
}

// Unload releases the resource under name and forgets it.
func (r *Registry[T]) Unload(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%s %q: %w", r.kind, name, ErrNotFound)
	}
	r.entries[h].resource.Release()
	delete(r.entries, h)
	delete(r.byName, name)
	return nil
}

// Names returns the registered names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Clear releases every resource.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		e.resource.Release()
	}
	r.byName = make(map[string]Handle)
	r.entries = make(map[Handle]*entry[T])
}
