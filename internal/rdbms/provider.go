package rdbms

import (
	"fmt"
	"sort"
)

// ProviderDefinition is a named storage provider with its SQL dialect
type ProviderDefinition struct {
	Name    string
	Dialect Dialect
}

// ProviderRegistry routes storage groups to storage providers. Classes
// without a storage group, or with a group no provider claims, go to the
// default provider.
type ProviderRegistry struct {
	providers       map[string]*ProviderDefinition
	groups          map[string]string
	defaultProvider string
}

// NewProviderRegistry creates a registry whose default provider is the
// given one
func NewProviderRegistry(defaultProvider *ProviderDefinition) *ProviderRegistry {
	r := &ProviderRegistry{
		providers:       make(map[string]*ProviderDefinition),
		groups:          make(map[string]string),
		defaultProvider: defaultProvider.Name,
	}
	r.providers[defaultProvider.Name] = defaultProvider
	return r
}

// NewDefaultProviderRegistry creates a registry with a single PostgreSQL
// provider named "default"
func NewDefaultProviderRegistry() *ProviderRegistry {
	return NewProviderRegistry(&ProviderDefinition{Name: "default", Dialect: NewPostgresDialect()})
}

// Register adds a provider serving the given storage groups
func (r *ProviderRegistry) Register(provider *ProviderDefinition, storageGroups ...string) error {
	if provider == nil || provider.Name == "" {
		return fmt.Errorf("provider must have a name")
	}
	if provider.Dialect == nil {
		return fmt.Errorf("provider %s has no dialect", provider.Name)
	}
	if existing, ok := r.providers[provider.Name]; ok && existing != provider {
		return fmt.Errorf("provider %s is already registered", provider.Name)
	}
	for _, group := range storageGroups {
		if owner, ok := r.groups[group]; ok && owner != provider.Name {
			return fmt.Errorf("storage group %s is already served by provider %s", group, owner)
		}
	}

	r.providers[provider.Name] = provider
	for _, group := range storageGroups {
		r.groups[group] = provider.Name
	}
	return nil
}

// ProviderFor returns the provider serving a storage group
func (r *ProviderRegistry) ProviderFor(storageGroup string) *ProviderDefinition {
	if name, ok := r.groups[storageGroup]; ok {
		return r.providers[name]
	}
	return r.providers[r.defaultProvider]
}

// Provider returns a provider by name
func (r *ProviderRegistry) Provider(name string) (*ProviderDefinition, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Default returns the default provider
func (r *ProviderRegistry) Default() *ProviderDefinition {
	return r.providers[r.defaultProvider]
}

// Providers returns all providers sorted by name
func (r *ProviderRegistry) Providers() []*ProviderDefinition {
	result := make([]*ProviderDefinition, 0, len(r.providers))
	for _, p := range r.providers {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
