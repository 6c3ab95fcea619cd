package filestore

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Registry maps service names to backends.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry returns a registry holding backends.
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[string]Backend, len(backends))}
	for _, b := range backends {
		r.Register(b)
	}

	return r
}

// Register adds b under b.Name(), replacing a previous backend of the same name.
func (r *Registry) Register(b Backend) {
	if b == nil {
		panic("filetransfer filestore: backend is nil")
	}
	r.mu.Lock()
	r.backends[b.Name()] = b
	r.mu.Unlock()
}

// Get returns the backend registered as name.
func (r *Registry) Get(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]

	return b, ok
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)

	return names
}

// BuildRegistry builds every configured backend. Names must be unique.
func BuildRegistry(ctx context.Context, configs []BackendConfig) (*Registry, error) {
	r := NewRegistry()
	for _, cfg := range configs {
		if _, dup := r.Get(cfg.Name); dup {
			return nil, fmt.Errorf("filetransfer filestore: duplicate backend %q", cfg.Name)
		}
		b, err := NewBackend(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("filetransfer filestore: backend %q: %w", cfg.Name, err)
		}
		r.Register(b)
	}

	return r, nil
}
