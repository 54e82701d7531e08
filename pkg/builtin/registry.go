// SPDX-License-Identifier: MPL-2.0

// Package builtin holds the table of modules that ship inside the runtime and are
// addressed with the reserved "@crescent/" alias namespace.
package builtin

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Namespace is the reserved alias name owned by the built-in module table.
const Namespace = "crescent"

type (
	// Registry maps fully-qualified built-in names ("@crescent/version") to
	// already-constructed values. It is safe for concurrent use.
	Registry struct {
		mu      sync.RWMutex
		modules map[string]any
	}

	// Lookup is the read side of a Registry.
	Lookup interface {
		Lookup(key string) (any, bool)
	}
)

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]any)}
}

// Key composes the fully-qualified key for a built-in module name.
func Key(name string) string {
	return "@" + Namespace + "/" + name
}

// IsKey reports whether a reference literal addresses the built-in namespace.
func IsKey(ref string) bool {
	return strings.HasPrefix(ref, "@"+Namespace+"/")
}

// Register adds a module under Key(name).
// Panics if the name is empty or already registered.
func (r *Registry) Register(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		panic("builtin: cannot register module with empty name")
	}
	key := Key(name)
	if _, exists := r.modules[key]; exists {
		panic(fmt.Sprintf("builtin: module %q already registered", key))
	}
	r.modules[key] = value
}

// Lookup retrieves a module by fully-qualified key.
func (r *Registry) Lookup(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.modules[key]
	return v, ok
}

// Keys returns all registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.modules))
	for k := range r.modules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
