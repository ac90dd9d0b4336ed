package oracle

import (
	"sync"

	"github.com/openclaims/coverd/models"
)

// Registry maps targets to their attestation sources
type Registry struct {
	mu      sync.RWMutex
	sources map[models.Address]Source
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[models.Address]Source),
	}
}

// Register binds a source to a target, replacing any previous binding
func (r *Registry) Register(target models.Address, source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[models.NormalizeAddress(target.String())] = source
}

// Get returns the target's source, if one is registered
func (r *Registry) Get(target models.Address) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	source, ok := r.sources[models.NormalizeAddress(target.String())]
	return source, ok
}
