package reflector

import (
	"fmt"

	"github.com/conduit-lang/mapping/internal/mapping"
)

// EndPointReflector creates relation end point definitions
type EndPointReflector struct {
	properties *PropertyReflector
}

// NewEndPointReflector creates an end point reflector
func NewEndPointReflector(properties *PropertyReflector) *EndPointReflector {
	return &EndPointReflector{properties: properties}
}

// CreateEndPoint creates the end point of one relation property. Real end
// points reference the property definition created for the same property.
func (r *EndPointReflector) CreateEndPoint(td mapping.TypeDefinition, prop declaredProperty, props *mapping.PropertyDefinitionCollection) (mapping.EndPoint, error) {
	rel := prop.descriptor.Relation
	info := mapping.RelationInfo{
		TargetType:       rel.Target,
		OppositeProperty: rel.Opposite,
		Mandatory:        rel.Mandatory,
	}

	switch {
	case rel.Collection:
		return mapping.NewVirtualCollectionEndPoint(td, prop.fullName(), info, mapping.CollectionOptions{
			SortExpression:     rel.SortExpression,
			ForeignKeyDeclared: rel.ContainsForeignKey,
		}), nil
	case r.properties.IsVirtual(prop.descriptor):
		return mapping.NewVirtualObjectEndPoint(td, prop.fullName(), info), nil
	}

	property, ok := props.Get(prop.fullName())
	if !ok {
		return nil, mapping.NewStateError(td.TypeName(),
			"no property definition for relation property '%s'", prop.fullName())
	}
	return mapping.NewRealEndPoint(property, info), nil
}

// CreateEndPointCollection creates the end points of every relation property
// of props
func (r *EndPointReflector) CreateEndPointCollection(td mapping.TypeDefinition, props []declaredProperty, definitions *mapping.PropertyDefinitionCollection) (*mapping.EndPointCollection, error) {
	collection, _ := mapping.NewCollection[mapping.EndPoint]()
	for _, prop := range props {
		if !prop.descriptor.IsRelation() {
			continue
		}
		endPoint, err := r.CreateEndPoint(td, prop, definitions)
		if err != nil {
			return nil, err
		}
		if err := collection.Add(endPoint); err != nil {
			return nil, &mapping.MappingError{
				Type:     td.TypeName(),
				Property: endPoint.PropertyName(),
				Message:  fmt.Sprintf("relation property '%s' is declared more than once", endPoint.PropertyName()),
			}
		}
	}
	return collection, nil
}
