package parcel

import (
	"fmt"
	"sync"
)

// DiscoverySource supplies provider descriptors from an external
// catalogue (a manifest, a host application's built-in list). Sources
// are consulted exactly once per registry, on first use.
type DiscoverySource func() []Descriptor

// Registry is the provider plugin catalogue. It maps slugs to
// descriptors, enforces slug uniqueness, and performs lazy idempotent
// discovery over its configured sources.
type Registry struct {
	mu         sync.RWMutex
	providers  map[string]Descriptor
	order      []string // registration order, drives Choices
	sources    []DiscoverySource
	discovered bool
}

// NewRegistry creates a registry over the given discovery sources.
func NewRegistry(sources ...DiscoverySource) *Registry {
	return &Registry{
		providers: make(map[string]Descriptor),
		sources:   sources,
	}
}

// AddSource appends a discovery source. Sources added after the first
// Discover call are not consulted.
func (r *Registry) AddSource(src DiscoverySource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, src)
}

// Register adds a provider descriptor under its slug. A second
// registration of the same slug fails with ErrDuplicateProvider and
// leaves the first registration resolvable.
func (r *Registry) Register(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(d)
}

func (r *Registry) register(d Descriptor) error {
	if d.Slug == "" {
		return fmt.Errorf("provider descriptor %q has no slug", d.DisplayName)
	}
	if d.New == nil {
		return fmt.Errorf("provider %q has no factory", d.Slug)
	}
	if _, exists := r.providers[d.Slug]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, d.Slug)
	}
	r.providers[d.Slug] = d
	r.order = append(r.order, d.Slug)
	return nil
}

// Discover runs discovery over the configured sources. It is
// idempotent: sources are consulted at most once per registry lifetime,
// and subsequent calls are no-ops. Get and Choices trigger it lazily.
func (r *Registry) Discover() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discover()
}

func (r *Registry) discover() error {
	if r.discovered {
		return nil
	}
	r.discovered = true
	for _, src := range r.sources {
		for _, d := range src() {
			if err := r.register(d); err != nil {
				return fmt.Errorf("discovering providers: %w", err)
			}
		}
	}
	return nil
}

// Get returns the descriptor registered under slug, triggering
// discovery on first use. It fails with ErrProviderNotFound for an
// unknown slug.
func (r *Registry) Get(slug string) (Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.discover(); err != nil {
		return Descriptor{}, err
	}
	d, ok := r.providers[slug]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrProviderNotFound, slug)
	}
	return d, nil
}

// Choice is one user-facing provider option.
type Choice struct {
	Slug        string
	DisplayName string
}

// Choices returns the user-selectable providers in registration order.
func (r *Registry) Choices() ([]Choice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.discover(); err != nil {
		return nil, err
	}
	choices := make([]Choice, 0, len(r.order))
	for _, slug := range r.order {
		d := r.providers[slug]
		if d.UserSelectable {
			choices = append(choices, Choice{Slug: d.Slug, DisplayName: d.DisplayName})
		}
	}
	return choices, nil
}

// Instantiate binds the provider registered under slug to one shipment
// and a settings map for a single operation.
func (r *Registry) Instantiate(slug string, shipment *Shipment, settings Settings) (Provider, error) {
	d, err := r.Get(slug)
	if err != nil {
		return nil, err
	}
	return d.New(shipment, settings), nil
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-scoped registry. It exists for
// compatibility with host-level plugin discovery; pass it explicitly
// into Flow construction rather than reaching for it from components.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}
