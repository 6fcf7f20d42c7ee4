package mapping

import "fmt"

// RelationKind classifies a relation by its end points
type RelationKind int

const (
	RelationUnidirectional RelationKind = iota
	RelationOneToOne
	RelationOneToMany
)

// String returns the string representation of the relation kind
func (k RelationKind) String() string {
	switch k {
	case RelationUnidirectional:
		return "unidirectional"
	case RelationOneToOne:
		return "one_to_one"
	case RelationOneToMany:
		return "one_to_many"
	default:
		return "unknown"
	}
}

// RelationDefinition pairs exactly two end points. The order of the end
// points is significant.
type RelationDefinition struct {
	id        string
	endPoints [2]EndPoint
}

// NewRelationDefinition creates a relation from two end points in the given order
func NewRelationDefinition(id string, first, second EndPoint) *RelationDefinition {
	return &RelationDefinition{id: id, endPoints: [2]EndPoint{first, second}}
}

// NewCanonicalRelationDefinition orders the end points canonically and
// derives the relation ID from them, so that the same relation discovered
// from either side yields an equal definition.
func NewCanonicalRelationDefinition(a, b EndPoint) *RelationDefinition {
	first, second := CanonicalOrder(a, b)
	return NewRelationDefinition(RelationID(first, second), first, second)
}

// CanonicalOrder returns the end points with the real (foreign key) side
// first. Anonymous and unresolved end points always come last; ties are
// broken by full property name.
func CanonicalOrder(a, b EndPoint) (EndPoint, EndPoint) {
	switch {
	case a.IsAnonymous() != b.IsAnonymous():
		if a.IsAnonymous() {
			return b, a
		}
		return a, b
	case isUnresolved(a) != isUnresolved(b):
		if isUnresolved(a) {
			return b, a
		}
		return a, b
	case a.IsVirtual() != b.IsVirtual():
		if a.IsVirtual() {
			return b, a
		}
		return a, b
	case a.PropertyName() > b.PropertyName():
		return b, a
	default:
		return a, b
	}
}

func isUnresolved(ep EndPoint) bool {
	switch ep.(type) {
	case *PropertyNotFoundEndPoint, *TypeNotFoundEndPoint:
		return true
	}
	return false
}

// RelationID builds "<ownerType>:<property>[-><oppositeProperty>]"
func RelationID(first, second EndPoint) string {
	id := fmt.Sprintf("%s:%s", EndPointTypeName(first), first.PropertyName())
	if !second.IsAnonymous() {
		id += "->" + second.PropertyName()
	}
	return id
}

// ID returns the relation ID
func (r *RelationDefinition) ID() string {
	return r.id
}

// EndPoints returns both end points in order
func (r *RelationDefinition) EndPoints() [2]EndPoint {
	return r.endPoints
}

// Contains reports whether ep is one of the two end points
func (r *RelationDefinition) Contains(ep EndPoint) bool {
	return r.endPoints[0] == ep || r.endPoints[1] == ep
}

// GetOppositeEndPoint returns the end point on the other side of ep, nil
// when ep is not part of the relation
func (r *RelationDefinition) GetOppositeEndPoint(ep EndPoint) EndPoint {
	switch ep {
	case r.endPoints[0]:
		return r.endPoints[1]
	case r.endPoints[1]:
		return r.endPoints[0]
	default:
		return nil
	}
}

// GetEndPoint returns the end point with the given full property name
func (r *RelationDefinition) GetEndPoint(propertyName string) EndPoint {
	for _, ep := range r.endPoints {
		if !ep.IsAnonymous() && ep.PropertyName() == propertyName {
			return ep
		}
	}
	return nil
}

// GetOppositeTypeDefinition returns the type on the other side of ep
func (r *RelationDefinition) GetOppositeTypeDefinition(ep EndPoint) TypeDefinition {
	if opposite := r.GetOppositeEndPoint(ep); opposite != nil {
		return opposite.TypeDefinition()
	}
	return nil
}

// Kind classifies the relation
func (r *RelationDefinition) Kind() RelationKind {
	if r.endPoints[0].IsAnonymous() || r.endPoints[1].IsAnonymous() {
		return RelationUnidirectional
	}
	if r.endPoints[0].Cardinality() == CardinalityMany || r.endPoints[1].Cardinality() == CardinalityMany {
		return RelationOneToMany
	}
	return RelationOneToOne
}

// Equal reports whether both relations have the same ID and the same end
// points in the same order
func (r *RelationDefinition) Equal(other *RelationDefinition) bool {
	if other == nil {
		return false
	}
	return r.id == other.id && r.endPoints[0] == other.endPoints[0] && r.endPoints[1] == other.endPoints[1]
}

// String returns the relation ID
func (r *RelationDefinition) String() string {
	return r.id
}
