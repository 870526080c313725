// core/registry.go
package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrDuplicateHandler = errors.New("handler already registered")
	ErrRegistrySealed   = errors.New("handler registry is sealed")
)

// Registry maps handler names to handlers. It is filled during startup and
// sealed before traffic is accepted; afterwards it is read-only.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	sealed   bool
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

// Add registers h under h.HandlerName().
func (r *Registry) Add(h Handler) error {
	if h == nil {
		return errors.New("nil handler")
	}
	name := h.HandlerName()
	if strings.TrimSpace(name) == "" {
		return errors.New("handler name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("add %q: %w", name, ErrRegistrySealed)
	}
	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("add %q: %w", name, ErrDuplicateHandler)
	}
	r.handlers[name] = h
	return nil
}

// Lookup returns the handler registered under name. A miss is not an error.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	return h, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		out = append(out, n)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (r *Registry) seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}
