package reflector

import (
	"fmt"

	"github.com/conduit-lang/mapping/internal/discovery"
	"github.com/conduit-lang/mapping/internal/mapping"
	"github.com/conduit-lang/mapping/internal/mixins"
)

// InstanceCreatorFunc supplies the runtime instance factory of a class
type InstanceCreatorFunc func(t *discovery.TypeDescriptor) mapping.InstanceCreator

// MappingObjectFactory creates the nodes of the mapping graph from type
// descriptors
type MappingObjectFactory struct {
	domain           *discovery.Domain
	mixins           *mixins.Configuration
	properties       *PropertyReflector
	endPoints        *EndPointReflector
	instanceCreators InstanceCreatorFunc
}

// FactoryOption configures a MappingObjectFactory
type FactoryOption func(*MappingObjectFactory)

// WithInstanceCreators sets the instance creator supplier
func WithInstanceCreators(fn InstanceCreatorFunc) FactoryOption {
	return func(f *MappingObjectFactory) {
		f.instanceCreators = fn
	}
}

// NewMappingObjectFactory creates a factory for domain
func NewMappingObjectFactory(domain *discovery.Domain, opts ...FactoryOption) *MappingObjectFactory {
	properties := NewPropertyReflector(domain)
	f := &MappingObjectFactory{
		domain:     domain,
		mixins:     mixins.NewConfiguration(domain),
		properties: properties,
		endPoints:  NewEndPointReflector(properties),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Domain returns the domain the factory reflects
func (f *MappingObjectFactory) Domain() *discovery.Domain {
	return f.domain
}

// MixinConfiguration returns the mixin configuration of the domain
func (f *MappingObjectFactory) MixinConfiguration() *mixins.Configuration {
	return f.mixins
}

// CreateClassDefinition creates and populates the class node for t. The
// base class and the implemented interfaces must already exist because
// duplicate property names are checked against them.
func (f *MappingObjectFactory) CreateClassDefinition(t *discovery.TypeDescriptor, base *mapping.ClassDefinition, interfaces []*mapping.InterfaceDefinition) (*mapping.ClassDefinition, error) {
	storageClass, err := f.defaultStorageClass(t)
	if err != nil {
		return nil, err
	}

	var creator mapping.InstanceCreator
	if f.instanceCreators != nil {
		creator = f.instanceCreators(t)
	}

	finder := mixins.NewPersistentMixinFinder(f.mixins, t.Name, false)
	class := mapping.NewClassDefinition(mapping.ClassOptions{
		ID:                    t.ClassID,
		TypeName:              t.Name,
		IsAbstract:            t.Abstract,
		BaseClass:             base,
		StorageGroup:          f.storageGroup(t),
		DefaultStorageClass:   storageClass,
		PersistentMixinFinder: finder,
		InstanceCreator:       creator,
	})
	if err := class.SetImplementedInterfaces(interfaces); err != nil {
		return nil, err
	}

	props, err := f.classProperties(t, finder)
	if err != nil {
		return nil, err
	}
	if err := f.populate(class, props); err != nil {
		return nil, err
	}
	return class, nil
}

// CreateInterfaceDefinition creates and populates the interface node for t
func (f *MappingObjectFactory) CreateInterfaceDefinition(t *discovery.TypeDescriptor, extended []*mapping.InterfaceDefinition) (*mapping.InterfaceDefinition, error) {
	storageClass, err := f.defaultStorageClass(t)
	if err != nil {
		return nil, err
	}

	iface := mapping.NewInterfaceDefinition(mapping.InterfaceOptions{
		TypeName:            t.Name,
		ExtendedInterfaces:  extended,
		StorageGroup:        t.StorageGroup,
		DefaultStorageClass: storageClass,
	})

	props := make([]declaredProperty, 0, len(t.Properties))
	for i := range t.Properties {
		props = append(props, declaredProperty{declaringType: t.Name, descriptor: &t.Properties[i]})
	}
	if err := f.populate(iface, props); err != nil {
		return nil, err
	}
	return iface, nil
}

func (f *MappingObjectFactory) populate(td mapping.TypeDefinition, props []declaredProperty) error {
	definitions, err := f.properties.CreatePropertyDefinitionCollection(td, props)
	if err != nil {
		return err
	}
	endPoints, err := f.endPoints.CreateEndPointCollection(td, props, definitions)
	if err != nil {
		return err
	}
	if err := td.SetPropertyDefinitions(definitions); err != nil {
		return err
	}
	return td.SetRelationEndPointDefinitions(endPoints)
}

// classProperties collects the properties a class owns: its own, those of
// ignored ancestors between it and its mapped base, and those of the
// persistent mixins it introduces.
func (f *MappingObjectFactory) classProperties(t *discovery.TypeDescriptor, finder *mixins.PersistentMixinFinder) ([]declaredProperty, error) {
	var props []declaredProperty
	add := func(declaringType string, descriptors []discovery.PropertyDescriptor) {
		for i := range descriptors {
			props = append(props, declaredProperty{declaringType: declaringType, descriptor: &descriptors[i]})
		}
	}

	add(t.Name, t.Properties)
	for _, ancestor := range f.domain.BaseChain(t.Name) {
		if !ancestor.IgnoreForMapping {
			break
		}
		add(ancestor.Name, ancestor.Properties)
	}

	persistentMixins, err := finder.PersistentMixins()
	if err != nil {
		return nil, err
	}
	for _, name := range persistentMixins {
		m, ok := f.domain.Mixin(name)
		if !ok {
			return nil, mapping.NewMappingError(t.Name, "mixin '%s' applied to class '%s' is not declared", name, t.Name)
		}
		add(m.Name, m.Properties)
	}

	return props, nil
}

// storageGroup returns the storage group declared on t or, failing that,
// on the nearest base type declaring one
func (f *MappingObjectFactory) storageGroup(t *discovery.TypeDescriptor) string {
	if t.StorageGroup != "" {
		return t.StorageGroup
	}
	for _, ancestor := range f.domain.BaseChain(t.Name) {
		if ancestor.StorageGroup != "" {
			return ancestor.StorageGroup
		}
	}
	return ""
}

func (f *MappingObjectFactory) defaultStorageClass(t *discovery.TypeDescriptor) (mapping.StorageClass, error) {
	declared := t.DefaultStorageClass
	if declared == "" {
		for _, ancestor := range f.domain.BaseChain(t.Name) {
			if ancestor.DefaultStorageClass != "" {
				declared = ancestor.DefaultStorageClass
				break
			}
		}
	}
	storageClass, err := mapping.ParseStorageClass(declared)
	if err != nil {
		return 0, &mapping.MappingError{
			Type:    t.Name,
			Message: fmt.Sprintf("invalid default storage class: %v", err),
		}
	}
	return storageClass, nil
}
