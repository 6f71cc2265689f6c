package llm

import (
	"fmt"
	"sync"
)

// Registry holds named providers in registration order. Ordering matters:
// FirstAvailable prefers providers registered earlier, so the caller
// registers local backends before cloud ones.
type Registry struct {
	mu        sync.RWMutex
	names     []string
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider under name. Registering the same name twice is
// an error; replacing a provider is done by building a new registry.
func (r *Registry) Register(name string, p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	r.names = append(r.names, name)
	r.providers[name] = p
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Names returns provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// FirstAvailable returns the earliest-registered provider that reports
// itself available.
func (r *Registry) FirstAvailable() (string, Provider, error) {
	r.mu.RLock()
	names := make([]string, len(r.names))
	copy(names, r.names)
	r.mu.RUnlock()

	for _, name := range names {
		r.mu.RLock()
		p := r.providers[name]
		r.mu.RUnlock()
		if p.Available() {
			return name, p, nil
		}
	}
	return "", nil, fmt.Errorf("no available provider among %d registered", len(names))
}
