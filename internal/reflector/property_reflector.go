package reflector

import (
	"fmt"

	"github.com/conduit-lang/mapping/internal/discovery"
	"github.com/conduit-lang/mapping/internal/mapping"
)

// declaredProperty is a property descriptor together with the name of the
// type or mixin that declares it
type declaredProperty struct {
	declaringType string
	descriptor    *discovery.PropertyDescriptor
}

func (d declaredProperty) fullName() string {
	return mapping.PropertyName(d.declaringType, d.descriptor.Name)
}

// PropertyReflector creates property definitions from descriptors
type PropertyReflector struct {
	domain *discovery.Domain
}

// NewPropertyReflector creates a property reflector for domain
func NewPropertyReflector(domain *discovery.Domain) *PropertyReflector {
	return &PropertyReflector{domain: domain}
}

// IsRelationProperty reports whether the descriptor is a relation property
func (r *PropertyReflector) IsRelationProperty(p *discovery.PropertyDescriptor) bool {
	return p.IsRelation()
}

// IsVirtual reports whether a relation property is the virtual side of its
// relation. Collections are always virtual. A single-valued property is
// real unless its opposite is single-valued too and the property does not
// hold the foreign key.
func (r *PropertyReflector) IsVirtual(p *discovery.PropertyDescriptor) bool {
	rel := p.Relation
	if rel == nil {
		return false
	}
	if rel.Collection {
		return true
	}
	if rel.Opposite == "" {
		return false
	}
	owner, ok := r.domain.FindProperty(rel.Target, rel.Opposite)
	if !ok || owner.Property.Relation == nil || owner.Property.Relation.Collection {
		return false
	}
	return !rel.ContainsForeignKey
}

// CreatePropertyDefinition creates the property definition of a value
// property or of the foreign key side of a relation
func (r *PropertyReflector) CreatePropertyDefinition(td mapping.TypeDefinition, prop declaredProperty) (*mapping.PropertyDefinition, error) {
	p := prop.descriptor

	kind := mapping.KindObjectID
	if !r.IsRelationProperty(p) {
		parsed, err := mapping.ParseKind(p.Kind)
		if err != nil {
			return nil, &mapping.MappingError{
				Type:     td.TypeName(),
				Property: prop.fullName(),
				Message:  err.Error(),
				Hint:     "use one of string, binary, bool, int16, int32, int64, float, decimal, datetime, uuid, enum",
			}
		}
		kind = parsed
	}

	storageClass := td.DefaultStorageClass()
	if p.StorageClass != "" {
		parsed, err := mapping.ParseStorageClass(p.StorageClass)
		if err != nil {
			return nil, &mapping.MappingError{
				Type:     td.TypeName(),
				Property: prop.fullName(),
				Message:  err.Error(),
			}
		}
		storageClass = parsed
	}

	return mapping.NewPropertyDefinition(td, prop.fullName(), mapping.PropertyOptions{
		Kind:         kind,
		Nullable:     p.Nullable,
		MaxLength:    p.MaxLength,
		StorageClass: storageClass,
		EnumValues:   p.EnumValues,
		StorageName:  p.Column,
	}), nil
}

// CreatePropertyDefinitionCollection creates the property definitions for
// every value property and real relation end of props
func (r *PropertyReflector) CreatePropertyDefinitionCollection(td mapping.TypeDefinition, props []declaredProperty) (*mapping.PropertyDefinitionCollection, error) {
	collection, _ := mapping.NewCollection[*mapping.PropertyDefinition]()
	for _, prop := range props {
		if r.IsRelationProperty(prop.descriptor) && r.IsVirtual(prop.descriptor) {
			continue
		}
		definition, err := r.CreatePropertyDefinition(td, prop)
		if err != nil {
			return nil, err
		}
		if err := collection.Add(definition); err != nil {
			return nil, &mapping.MappingError{
				Type:     td.TypeName(),
				Property: definition.PropertyName(),
				Message:  fmt.Sprintf("property '%s' is declared more than once", definition.PropertyName()),
			}
		}
	}
	return collection, nil
}
