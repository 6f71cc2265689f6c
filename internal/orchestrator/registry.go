package orchestrator

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/normanking/orchestra/internal/llm"
	"github.com/normanking/orchestra/internal/memory"
	"github.com/normanking/orchestra/internal/router"
)

// Deps bundles everything a variant constructor may need.
type Deps struct {
	Providers       *llm.Registry
	Store           *memory.Store
	Searcher        *memory.Searcher
	Analyzer        *router.Analyzer
	Coordinator     *Coordinator
	DefaultProvider string
}

// Constructor builds a variant from shared dependencies.
type Constructor func(deps Deps) Orchestrator

// Registry maps orchestrator types to constructors. The three built-in
// variants are pre-registered; new ones can be added at runtime.
type Registry struct {
	mu           sync.RWMutex
	deps         Deps
	constructors map[router.OrchestratorType]Constructor
}

// NewRegistry creates a registry with the built-in variants registered.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{
		deps:         deps,
		constructors: make(map[router.OrchestratorType]Constructor),
	}

	r.Register(router.OrchestratorSimple, func(d Deps) Orchestrator {
		return NewSimpleOrchestrator(d.Providers, d.DefaultProvider)
	})
	r.Register(router.OrchestratorMemory, func(d Deps) Orchestrator {
		return NewMemoryOrchestrator(d.Providers, d.Store, d.Searcher, d.DefaultProvider)
	})
	r.Register(router.OrchestratorControl, func(d Deps) Orchestrator {
		return NewControlOrchestrator(d.Providers, d.Analyzer, d.Coordinator, d.DefaultProvider)
	})

	return r
}

// Register installs a constructor for a type, replacing any previous one.
func (r *Registry) Register(t router.OrchestratorType, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[t] = c
}

// Create builds a variant of the given type.
func (r *Registry) Create(t router.OrchestratorType) (Orchestrator, error) {
	r.mu.RLock()
	c, ok := r.constructors[t]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported orchestrator %q (available: %s)",
			t, strings.Join(r.availableNames(), ", "))
	}
	return c(r.deps), nil
}

// Available lists registered types in a stable order.
func (r *Registry) Available() []router.OrchestratorType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]router.OrchestratorType, 0, len(r.constructors))
	for t := range r.constructors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func (r *Registry) availableNames() []string {
	names := make([]string, 0)
	for _, t := range r.Available() {
		names = append(names, t.String())
	}
	return names
}
