package provider

import (
	"sort"
	"sync"

	"k8s.io/klog/v2"
)

// Registry is the process-wide map from provider id to Provider instance.
// It is populated once at startup by RegisterBuiltins and read-mostly
// afterwards; there is no dynamic unregistration.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its metadata id. Registering an id twice is
// idempotent with last-write-wins semantics and logs a warning.
func (r *Registry) Register(p Provider) {
	id := p.Metadata().ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[id]; exists {
		klog.Warningf("provider '%s' already registered, overwriting", id)
	}
	r.providers[id] = p
}

// Get returns the provider for id or a NotFoundError.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, &NotFoundError{ProviderID: id}
	}
	return p, nil
}

// Lookup returns the provider for id, or nil when unknown.
func (r *Registry) Lookup(id string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[id]
}

// List returns all registered providers sorted by id.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Provider, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.providers[id])
	}
	return out
}

// ListMetadata returns metadata for all registered providers sorted by id.
func (r *Registry) ListMetadata() []Metadata {
	providers := r.List()
	out := make([]Metadata, 0, len(providers))
	for _, p := range providers {
		out = append(out, p.Metadata())
	}
	return out
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Initialize builds the process-wide registry with the three built-in
// providers. It runs exactly once; later calls return the same registry.
func Initialize(premade PremadeCatalog) *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		RegisterBuiltins(defaultRegistry, premade)
	})
	return defaultRegistry
}

// Default returns the process-wide registry, or nil before Initialize.
func Default() *Registry {
	return defaultRegistry
}

// RegisterBuiltins registers the built-in providers on r.
func RegisterBuiltins(r *Registry, premade PremadeCatalog) {
	r.Register(NewDynamoProvider())
	r.Register(NewKubeRayProvider())
	r.Register(NewKaitoProvider(premade))
}
