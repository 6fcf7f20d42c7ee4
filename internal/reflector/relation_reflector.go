package reflector

import (
	"github.com/conduit-lang/mapping/internal/discovery"
	"github.com/conduit-lang/mapping/internal/mapping"
)

// RelationReflector finds the opposite end point of a relation end point and
// pairs both into a relation definition
type RelationReflector struct {
	types     *TypeDefinitionCollection
	domain    *discovery.Domain
	anonymous map[mapping.EndPoint]*mapping.AnonymousEndPoint
	notFound  map[mapping.EndPoint]mapping.EndPoint
}

// NewRelationReflector creates a relation reflector over types
func NewRelationReflector(types *TypeDefinitionCollection, domain *discovery.Domain) *RelationReflector {
	return &RelationReflector{
		types:     types,
		domain:    domain,
		anonymous: make(map[mapping.EndPoint]*mapping.AnonymousEndPoint),
		notFound:  make(map[mapping.EndPoint]mapping.EndPoint),
	}
}

// GetRelationDefinition returns the relation endPoint belongs to. Reflecting
// the same relation from either side yields equal definitions.
func (r *RelationReflector) GetRelationDefinition(endPoint mapping.EndPoint) *mapping.RelationDefinition {
	return mapping.NewCanonicalRelationDefinition(endPoint, r.GetOppositeEndPoint(endPoint))
}

// GetOppositeEndPoint resolves the end point on the other side of endPoint:
// an anonymous end point for unidirectional relations, the declared opposite
// end point, or a terminal end point when the target type or the opposite
// property cannot be found.
func (r *RelationReflector) GetOppositeEndPoint(endPoint mapping.EndPoint) mapping.EndPoint {
	target := r.ResolveTargetType(endPoint.TargetType())
	opposite := endPoint.OppositeProperty()

	if target == nil {
		name := endPoint.TargetType()
		if opposite != "" {
			name = mapping.PropertyName(endPoint.TargetType(), opposite)
		}
		return r.terminal(endPoint, func() mapping.EndPoint {
			return mapping.NewTypeNotFoundEndPoint(endPoint.TargetType(), name)
		})
	}

	if opposite == "" {
		if anonymous, ok := r.anonymous[endPoint]; ok {
			return anonymous
		}
		anonymous := mapping.NewAnonymousEndPoint(target)
		r.anonymous[endPoint] = anonymous
		return anonymous
	}

	if found, err := mapping.FindEndPointByShortName(target, opposite); err == nil {
		return found
	}

	name := mapping.PropertyName(target.TypeName(), opposite)
	return r.terminal(endPoint, func() mapping.EndPoint {
		return mapping.NewPropertyNotFoundEndPoint(target, name)
	})
}

// terminal returns the cached terminal end point opposite of source
func (r *RelationReflector) terminal(source mapping.EndPoint, create func() mapping.EndPoint) mapping.EndPoint {
	if endPoint, ok := r.notFound[source]; ok {
		return endPoint
	}
	endPoint := create()
	r.notFound[source] = endPoint
	return endPoint
}

// ResolveTargetType returns the type definition a relation property points
// to. A target that is not mapped itself resolves to its nearest mapped base
// type and then to the first mapped interface it or its bases implement. It
// returns nil when nothing is mapped.
func (r *RelationReflector) ResolveTargetType(typeName string) mapping.TypeDefinition {
	if td, ok := r.types.Get(typeName); ok {
		return td
	}
	t, ok := r.domain.Type(typeName)
	if !ok {
		return nil
	}

	chain := append([]*discovery.TypeDescriptor{t}, r.domain.BaseChain(typeName)...)
	for _, ancestor := range chain[1:] {
		if td, ok := r.types.Get(ancestor.Name); ok {
			return td
		}
	}
	for _, ancestor := range chain {
		for _, iface := range ancestor.Interfaces {
			if td, ok := r.types.Get(iface); ok {
				return td
			}
		}
	}
	return nil
}
