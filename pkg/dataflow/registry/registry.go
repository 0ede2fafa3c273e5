package registry

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrDuplicate is returned when a key is registered twice.
var ErrDuplicate = errors.New("already registered")

// ErrNotRegistered is returned by Lookup for an unknown key.
var ErrNotRegistered = errors.New("not registered")

// Registry is a thread-safe, enumerable set of values indexed by key.
// It uses sync.RWMutex for read-heavy workloads.
type Registry[K cmp.Ordered, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// New creates a new empty registry.
func New[K cmp.Ordered, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K]V),
	}
}

// Register adds a value. Registering an existing key fails with
// ErrDuplicate and leaves the original entry in place.
func (r *Registry[K, V]) Register(key K, value V) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; ok {
		return fmt.Errorf("%w: %v", ErrDuplicate, key)
	}
	r.entries[key] = value
	return nil
}

// MustRegister is like Register but panics on error. Intended for
// package-level setup.
func (r *Registry[K, V]) MustRegister(key K, value V) {
	if err := r.Register(key, value); err != nil {
		panic(err)
	}
}

// Alias registers alias with the value currently stored for target.
func (r *Registry[K, V]) Alias(alias, target K) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[target]
	if !ok {
		return fmt.Errorf("alias %v: %w: %v", alias, ErrNotRegistered, target)
	}
	if _, ok := r.entries[alias]; ok {
		return fmt.Errorf("%w: %v", ErrDuplicate, alias)
	}
	r.entries[alias] = v
	return nil
}

// Get returns the value for a key and whether it exists.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// Lookup returns the value for a key, or ErrNotRegistered listing the
// known keys.
func (r *Registry[K, V]) Lookup(key K) (V, error) {
	if v, ok := r.Get(key); ok {
		return v, nil
	}
	var zero V
	return zero, fmt.Errorf("%w: %v (known: %v)", ErrNotRegistered, key, r.Keys())
}

// Has returns true if the key exists in the registry.
func (r *Registry[K, V]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Keys returns all keys in ascending order.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of entries in the registry.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Range calls fn for each entry in key order until fn returns false.
//
// Range iterates over a snapshot of the registry, so it is safe
// to call Register during iteration without affecting the current
// iteration.
func (r *Registry[K, V]) Range(fn func(K, V) bool) {
	r.mu.RLock()
	snapshot := make(map[K]V, len(r.entries))
	for k, v := range r.entries {
		snapshot[k] = v
	}
	r.mu.RUnlock()

	keys := make([]K, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !fn(k, snapshot[k]) {
			return
		}
	}
}

// Clone returns an independent copy of the registry.
func (r *Registry[K, V]) Clone() *Registry[K, V] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := New[K, V]()
	for k, v := range r.entries {
		out.entries[k] = v
	}
	return out
}
