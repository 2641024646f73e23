package orchestrator

import (
	"sync"

	"github.com/hupe1980/staffmesh/core"
)

// Registry holds the registered agents. Iteration follows registration
// order so classification is deterministic.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]core.Agent
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]core.Agent)}
}

// Register adds an agent. Duplicate names are rejected.
func (r *Registry) Register(a core.Agent) error {
	if a.Name() == "" {
		return core.NewValidationError("name", "must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[a.Name()]; ok {
		return core.NewValidationError("name", "agent "+a.Name()+" already registered")
	}
	r.agents[a.Name()] = a
	r.order = append(r.order, a.Name())
	return nil
}

// Get returns a registered agent by name.
func (r *Registry) Get(name string) (core.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// All returns the agents in registration order.
func (r *Registry) All() []core.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Agent, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.agents[name])
	}
	return out
}

// List returns the registry read model in registration order.
func (r *Registry) List() []core.RegisteredAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RegisteredAgent, 0, len(r.order))
	for _, name := range r.order {
		a := r.agents[name]
		out = append(out, core.RegisteredAgent{
			Name:         a.Name(),
			DisplayName:  a.DisplayName(),
			Kind:         a.Kind(),
			Capabilities: a.Capabilities(),
			Active:       a.Active(),
		})
	}
	return out
}
