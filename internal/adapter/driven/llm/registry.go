package llm

import (
	"sort"

	"github.com/ericfisherdev/promptpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProviderRegistry = (*Registry)(nil)

// Registry is the closed provider lookup table. Adding a provider means
// adding a client here; the coordinator never changes.
type Registry struct {
	clients map[string]driven.ProviderClient
}

// NewRegistry builds the registry from the configured model per provider.
func NewRegistry(openaiModel, anthropicModel, googleModel string) *Registry {
	clients := map[string]driven.ProviderClient{}
	for _, c := range []driven.ProviderClient{
		NewOpenAIClient(openaiModel),
		NewAnthropicClient(anthropicModel),
		NewGoogleClient(googleModel),
	} {
		clients[c.Name()] = c
	}
	return &Registry{clients: clients}
}

// Lookup returns the client for a provider id.
func (r *Registry) Lookup(name string) (driven.ProviderClient, bool) {
	c, ok := r.clients[name]
	return c, ok
}

// Names returns all known provider ids in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
