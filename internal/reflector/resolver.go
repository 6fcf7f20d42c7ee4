package reflector

import (
	"github.com/conduit-lang/mapping/internal/discovery"
	"github.com/conduit-lang/mapping/internal/mapping"
	"github.com/conduit-lang/mapping/internal/mixins"
)

// PropertyResolver resolves property references declared on interfaces to
// the definitions in a class's composition graph. The interface may be
// mapped itself or introduced by a persistent mixin.
type PropertyResolver struct {
	domain *discovery.Domain
	mixins *mixins.Configuration
}

// NewPropertyResolver creates a resolver for domain
func NewPropertyResolver(domain *discovery.Domain, config *mixins.Configuration) *PropertyResolver {
	if config == nil {
		config = mixins.NewConfiguration(domain)
	}
	return &PropertyResolver{domain: domain, mixins: config}
}

// ResolveProperty returns the property definition of td matching the
// property shortName declared on declaringType.
func (r *PropertyResolver) ResolveProperty(td mapping.TypeDefinition, declaringType, shortName string) (*mapping.PropertyDefinition, error) {
	fullName := mapping.PropertyName(declaringType, shortName)
	if p, err := td.GetPropertyDefinition(fullName); err == nil {
		return p, nil
	}

	for _, candidate := range r.implementationNames(td, declaringType, shortName) {
		if p, err := td.GetPropertyDefinition(candidate); err == nil {
			return p, nil
		}
	}

	if r.implementsInterface(td.TypeName(), declaringType) {
		if p, err := mapping.FindPropertyByShortName(td, shortName); err == nil {
			return p, nil
		}
	}

	return nil, mapping.NewNotFoundError("property", fullName)
}

// ResolveRelationEndPoint returns the end point of td matching the relation
// property shortName declared on declaringType.
func (r *PropertyResolver) ResolveRelationEndPoint(td mapping.TypeDefinition, declaringType, shortName string) (mapping.EndPoint, error) {
	fullName := mapping.PropertyName(declaringType, shortName)
	if ep, err := td.GetRelationEndPointDefinition(fullName); err == nil {
		return ep, nil
	}

	for _, candidate := range r.implementationNames(td, declaringType, shortName) {
		if ep, err := td.GetRelationEndPointDefinition(candidate); err == nil {
			return ep, nil
		}
	}

	if r.implementsInterface(td.TypeName(), declaringType) {
		if ep, err := mapping.FindEndPointByShortName(td, shortName); err == nil {
			return ep, nil
		}
	}

	return nil, mapping.NewNotFoundError("relation end point", fullName)
}

// implementationNames returns the full names under which persistent mixins
// of the class implement the interface property
func (r *PropertyResolver) implementationNames(td mapping.TypeDefinition, declaringType, shortName string) []string {
	if td.IsInterface() {
		return nil
	}

	finder := mixins.NewPersistentMixinFinder(r.mixins, td.TypeName(), true)
	persistentMixins, err := finder.PersistentMixins()
	if err != nil {
		return nil
	}

	var names []string
	for _, name := range persistentMixins {
		m, ok := r.domain.Mixin(name)
		if !ok || !containsString(m.Introduces, declaringType) {
			continue
		}
		if _, ok := m.Property(shortName); ok {
			names = append(names, mapping.PropertyName(m.Name, shortName))
		}
	}
	return names
}

// implementsInterface reports whether typeName or one of its base types
// declares the interface, directly or through interface extension
func (r *PropertyResolver) implementsInterface(typeName, iface string) bool {
	t, ok := r.domain.Type(typeName)
	if !ok {
		return false
	}

	visited := make(map[string]bool)
	var extends func(name string) bool
	extends = func(name string) bool {
		if name == iface {
			return true
		}
		if visited[name] {
			return false
		}
		visited[name] = true
		i, ok := r.domain.Type(name)
		if !ok {
			return false
		}
		for _, ext := range i.Interfaces {
			if extends(ext) {
				return true
			}
		}
		return false
	}

	for _, current := range append([]*discovery.TypeDescriptor{t}, r.domain.BaseChain(typeName)...) {
		for _, name := range current.Interfaces {
			if extends(name) {
				return true
			}
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}
