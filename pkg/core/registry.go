package core

import (
	"fmt"
	"sync"
)

// Global registry for provider self-registration
var globalRegistry = &Registry{
	prototypes: make(map[string]Provider),
	providers:  make(map[string]Provider),
}

type Registry struct {
	prototypes map[string]Provider
	providers  map[string]Provider
	order      []string
	mu         sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		prototypes: make(map[string]Provider),
		providers:  make(map[string]Provider),
	}
}

// RegisterProviderPrototype allows providers to register themselves during init()
func RegisterProviderPrototype(name string, prototype Provider) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.prototypes[name] = prototype
}

// GetGlobalRegistry returns a registry seeded with all self-registered prototypes.
func GetGlobalRegistry() *Registry {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	registry := NewRegistry()
	for name, prototype := range globalRegistry.prototypes {
		registry.prototypes[name] = prototype
	}
	return registry
}

func (r *Registry) RegisterPrototype(name string, prototype Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.prototypes[name]; exists {
		return fmt.Errorf("provider prototype %s already registered", name)
	}

	r.prototypes[name] = prototype
	return nil
}

// CreateProvider instantiates a provider of the given factory type under the
// instance name. Registration order is preserved: it determines fan-out order
// and therefore which source wins when duplicate URLs are merged.
func (r *Registry) CreateProvider(instanceName string, factoryType string, config interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prototype, exists := r.prototypes[factoryType]
	if !exists {
		return fmt.Errorf("provider prototype %s not found", factoryType)
	}

	if validator, ok := config.(interface{ Validate() error }); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("invalid config for provider %s: %w", instanceName, err)
		}
	}

	provider, err := prototype.Factory(instanceName, config)
	if err != nil {
		return fmt.Errorf("creating provider %s: %w", instanceName, err)
	}

	if existing, exists := r.providers[instanceName]; exists {
		if err := existing.Close(); err != nil {
			return fmt.Errorf("closing existing provider %s: %w", instanceName, err)
		}
	} else {
		r.order = append(r.order, instanceName)
	}

	r.providers[instanceName] = provider
	return nil
}

// GetPrototype returns the registered prototype for a provider type. Used to
// obtain the type's config struct before instantiation.
func (r *Registry) GetPrototype(factoryType string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prototype, exists := r.prototypes[factoryType]
	if !exists {
		return nil, fmt.Errorf("provider prototype %s not found", factoryType)
	}
	return prototype, nil
}

func (r *Registry) GetProvider(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}

	return provider, nil
}

func (r *Registry) GetAllProviders() map[string]Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]Provider)
	for name, p := range r.providers {
		result[name] = p
	}
	return result
}

// ListProviders returns the instance names in registration order.
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

func (r *Registry) RemoveProvider(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	provider, exists := r.providers[name]
	if !exists {
		return fmt.Errorf("provider %s not found", name)
	}

	if err := provider.Close(); err != nil {
		return fmt.Errorf("closing provider %s: %w", name, err)
	}

	delete(r.providers, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, provider := range r.providers {
		if err := provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing provider %s: %w", name, err))
		}
	}

	r.providers = make(map[string]Provider)
	r.order = nil

	if len(errs) > 0 {
		return fmt.Errorf("errors closing providers: %v", errs)
	}

	return nil
}
