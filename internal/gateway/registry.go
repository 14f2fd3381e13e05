package gateway

import (
	"fmt"
	"sync"
)

// Registry maps a gateway name to its Port, built once at process start.
// Same sync.RWMutex-guarded map shape as the teacher's tasks.Registry,
// generalized from task names to gateway names.
type Registry struct {
	mu    sync.RWMutex
	ports map[string]Port
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{ports: make(map[string]Port)}
}

// Register adds a Port under its own Name().
func (r *Registry) Register(p Port) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ports[p.Name()] = p
}

// Get retrieves a Port by name, or an InternalFault-worthy error if the
// gateway was never enabled/registered.
func (r *Registry) Get(name string) (Port, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.ports[name]
	if !ok {
		return nil, fmt.Errorf("gateway %q is not enabled", name)
	}
	return p, nil
}
