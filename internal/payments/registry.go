package payments

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps provider names to gateways. Registration happens during
// startup wiring; lookups afterwards are read-mostly.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

func NewRegistry() *Registry {
	return &Registry{gateways: map[string]Gateway{}}
}

// Register adds a gateway under its own name. Registering the same name
// twice is a wiring bug and fails loudly.
func (r *Registry) Register(g Gateway) error {
	name := strings.ToLower(strings.TrimSpace(g.Name()))
	if name == "" {
		return fmt.Errorf("payments: gateway has no name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.gateways[name]; exists {
		return fmt.Errorf("payments: provider %q registered twice", name)
	}
	r.gateways[name] = g
	return nil
}

// Get returns the gateway for a provider name. Name matching is
// case-insensitive.
func (r *Registry) Get(provider string) (Gateway, error) {
	name := strings.ToLower(strings.TrimSpace(provider))
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[name]
	if !ok {
		return nil, &UnknownProviderError{Provider: provider}
	}
	return g, nil
}

// Providers lists registered provider names, sorted for stable output.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
