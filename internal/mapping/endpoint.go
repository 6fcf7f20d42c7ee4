package mapping

import "fmt"

// EndPoint is one side of a relation
type EndPoint interface {
	// TypeDefinition returns the node the end point belongs to; nil for
	// end points whose type is not part of the mapping
	TypeDefinition() TypeDefinition
	// PropertyName returns the full property name, empty for anonymous end points
	PropertyName() string
	IsVirtual() bool
	IsAnonymous() bool
	IsMandatory() bool
	Cardinality() Cardinality
	// TargetType returns the declared type of the relation property
	TargetType() string
	// OppositeProperty returns the declared short name of the opposite
	// property, empty for unidirectional relations
	OppositeProperty() string
	RelationDefinition() *RelationDefinition
	SetRelationDefinition(rd *RelationDefinition) error
}

// endPointBase holds the relation back reference shared by all end points
type endPointBase struct {
	relation *RelationDefinition
}

// RelationDefinition returns the relation the end point belongs to
func (e *endPointBase) RelationDefinition() *RelationDefinition {
	return e.relation
}

func (e *endPointBase) setRelation(owner string, rd *RelationDefinition) error {
	if rd == nil {
		return fmt.Errorf("relation definition cannot be nil")
	}
	if e.relation != nil {
		return newStateError(owner, "relation definition of end point '%s' has already been set", owner)
	}
	e.relation = rd
	return nil
}

// RelationInfo carries the declared facts of a relation property
type RelationInfo struct {
	TargetType       string
	OppositeProperty string
	Mandatory        bool
}

// RealEndPoint is the side of a relation that holds the foreign key
type RealEndPoint struct {
	endPointBase
	property *PropertyDefinition
	info     RelationInfo
}

// NewRealEndPoint creates the foreign-key side of a relation for property
func NewRealEndPoint(property *PropertyDefinition, info RelationInfo) *RealEndPoint {
	return &RealEndPoint{property: property, info: info}
}

// TypeDefinition returns the node owning the foreign key property
func (e *RealEndPoint) TypeDefinition() TypeDefinition { return e.property.TypeDefinition() }

// PropertyName returns the full property name
func (e *RealEndPoint) PropertyName() string { return e.property.PropertyName() }

// PropertyDefinition returns the foreign key property
func (e *RealEndPoint) PropertyDefinition() *PropertyDefinition { return e.property }

// IsVirtual is false for the foreign key side
func (e *RealEndPoint) IsVirtual() bool { return false }

// IsAnonymous is false for named end points
func (e *RealEndPoint) IsAnonymous() bool { return false }

// IsMandatory reports whether the reference must be set
func (e *RealEndPoint) IsMandatory() bool { return e.info.Mandatory }

// Cardinality is always one for a foreign key
func (e *RealEndPoint) Cardinality() Cardinality { return CardinalityOne }

// TargetType returns the declared type of the relation property
func (e *RealEndPoint) TargetType() string { return e.info.TargetType }

// OppositeProperty returns the declared opposite property short name
func (e *RealEndPoint) OppositeProperty() string { return e.info.OppositeProperty }

// SetRelationDefinition sets the relation back reference exactly once
func (e *RealEndPoint) SetRelationDefinition(rd *RelationDefinition) error {
	return e.setRelation(e.PropertyName(), rd)
}

// VirtualObjectEndPoint is the single-valued side of a one-to-one relation
// that does not hold the foreign key
type VirtualObjectEndPoint struct {
	endPointBase
	typeDefinition TypeDefinition
	propertyName   string
	info           RelationInfo
}

// NewVirtualObjectEndPoint creates a virtual single-valued end point
func NewVirtualObjectEndPoint(td TypeDefinition, propertyName string, info RelationInfo) *VirtualObjectEndPoint {
	return &VirtualObjectEndPoint{typeDefinition: td, propertyName: propertyName, info: info}
}

func (e *VirtualObjectEndPoint) TypeDefinition() TypeDefinition { return e.typeDefinition }
func (e *VirtualObjectEndPoint) PropertyName() string           { return e.propertyName }
func (e *VirtualObjectEndPoint) IsVirtual() bool                { return true }
func (e *VirtualObjectEndPoint) IsAnonymous() bool              { return false }
func (e *VirtualObjectEndPoint) IsMandatory() bool              { return e.info.Mandatory }
func (e *VirtualObjectEndPoint) Cardinality() Cardinality       { return CardinalityOne }
func (e *VirtualObjectEndPoint) TargetType() string             { return e.info.TargetType }
func (e *VirtualObjectEndPoint) OppositeProperty() string       { return e.info.OppositeProperty }

// SetRelationDefinition sets the relation back reference exactly once
func (e *VirtualObjectEndPoint) SetRelationDefinition(rd *RelationDefinition) error {
	return e.setRelation(e.propertyName, rd)
}

// VirtualCollectionEndPoint is the collection side of a one-to-many relation
type VirtualCollectionEndPoint struct {
	endPointBase
	typeDefinition     TypeDefinition
	propertyName       string
	info               RelationInfo
	sortExpressionText string
	foreignKeyDeclared bool
}

// CollectionOptions carries collection specific facts
type CollectionOptions struct {
	SortExpression string
	// ForeignKeyDeclared records that the property claimed to hold the
	// foreign key, which a collection never can
	ForeignKeyDeclared bool
}

// NewVirtualCollectionEndPoint creates a collection end point
func NewVirtualCollectionEndPoint(td TypeDefinition, propertyName string, info RelationInfo, opts CollectionOptions) *VirtualCollectionEndPoint {
	return &VirtualCollectionEndPoint{
		typeDefinition:     td,
		propertyName:       propertyName,
		info:               info,
		sortExpressionText: opts.SortExpression,
		foreignKeyDeclared: opts.ForeignKeyDeclared,
	}
}

func (e *VirtualCollectionEndPoint) TypeDefinition() TypeDefinition { return e.typeDefinition }
func (e *VirtualCollectionEndPoint) PropertyName() string           { return e.propertyName }
func (e *VirtualCollectionEndPoint) IsVirtual() bool                { return true }
func (e *VirtualCollectionEndPoint) IsAnonymous() bool              { return false }
func (e *VirtualCollectionEndPoint) IsMandatory() bool              { return e.info.Mandatory }
func (e *VirtualCollectionEndPoint) Cardinality() Cardinality       { return CardinalityMany }
func (e *VirtualCollectionEndPoint) TargetType() string             { return e.info.TargetType }
func (e *VirtualCollectionEndPoint) OppositeProperty() string       { return e.info.OppositeProperty }

// SortExpressionText returns the raw sort expression, empty when unsorted
func (e *VirtualCollectionEndPoint) SortExpressionText() string { return e.sortExpressionText }

// ForeignKeyDeclared reports whether the property claimed to hold the foreign key
func (e *VirtualCollectionEndPoint) ForeignKeyDeclared() bool { return e.foreignKeyDeclared }

// GetSortExpression parses the sort expression against the type on the
// opposite side of the relation. It returns nil for unsorted collections.
func (e *VirtualCollectionEndPoint) GetSortExpression() (*SortExpression, error) {
	if e.sortExpressionText == "" {
		return nil, nil
	}
	if e.relation == nil {
		return nil, newStateError(typeNameOf(e.typeDefinition), "end point '%s' is not part of a relation", e.propertyName)
	}
	opposite := e.relation.GetOppositeEndPoint(e)
	if opposite == nil || opposite.TypeDefinition() == nil {
		return nil, &MappingError{
			Type:     typeNameOf(e.typeDefinition),
			Property: e.propertyName,
			Message:  "sort expression cannot be resolved because the opposite type is not mapped",
		}
	}
	return ParseSortExpression(e.sortExpressionText, opposite.TypeDefinition())
}

// SetRelationDefinition sets the relation back reference exactly once
func (e *VirtualCollectionEndPoint) SetRelationDefinition(rd *RelationDefinition) error {
	return e.setRelation(e.propertyName, rd)
}

// AnonymousEndPoint is the side of a unidirectional relation without a
// navigable property
type AnonymousEndPoint struct {
	endPointBase
	typeDefinition TypeDefinition
}

// NewAnonymousEndPoint creates an anonymous end point on td
func NewAnonymousEndPoint(td TypeDefinition) *AnonymousEndPoint {
	return &AnonymousEndPoint{typeDefinition: td}
}

func (e *AnonymousEndPoint) TypeDefinition() TypeDefinition { return e.typeDefinition }
func (e *AnonymousEndPoint) PropertyName() string           { return "" }
func (e *AnonymousEndPoint) IsVirtual() bool                { return true }
func (e *AnonymousEndPoint) IsAnonymous() bool              { return true }
func (e *AnonymousEndPoint) IsMandatory() bool              { return false }
func (e *AnonymousEndPoint) Cardinality() Cardinality       { return CardinalityMany }
func (e *AnonymousEndPoint) TargetType() string             { return "" }
func (e *AnonymousEndPoint) OppositeProperty() string       { return "" }

// SetRelationDefinition sets the relation back reference exactly once
func (e *AnonymousEndPoint) SetRelationDefinition(rd *RelationDefinition) error {
	return e.setRelation("<anonymous>", rd)
}

// PropertyNotFoundEndPoint records a declared opposite property that does
// not exist on the opposite type. Validation reports it.
type PropertyNotFoundEndPoint struct {
	endPointBase
	typeDefinition TypeDefinition
	propertyName   string
}

// NewPropertyNotFoundEndPoint creates the terminal end point for an
// unresolved opposite property
func NewPropertyNotFoundEndPoint(td TypeDefinition, propertyName string) *PropertyNotFoundEndPoint {
	return &PropertyNotFoundEndPoint{typeDefinition: td, propertyName: propertyName}
}

func (e *PropertyNotFoundEndPoint) TypeDefinition() TypeDefinition { return e.typeDefinition }
func (e *PropertyNotFoundEndPoint) PropertyName() string           { return e.propertyName }
func (e *PropertyNotFoundEndPoint) IsVirtual() bool                { return true }
func (e *PropertyNotFoundEndPoint) IsAnonymous() bool              { return false }
func (e *PropertyNotFoundEndPoint) IsMandatory() bool              { return false }
func (e *PropertyNotFoundEndPoint) Cardinality() Cardinality       { return CardinalityOne }
func (e *PropertyNotFoundEndPoint) TargetType() string             { return "" }
func (e *PropertyNotFoundEndPoint) OppositeProperty() string       { return "" }

// SetRelationDefinition sets the relation back reference exactly once
func (e *PropertyNotFoundEndPoint) SetRelationDefinition(rd *RelationDefinition) error {
	return e.setRelation(e.propertyName, rd)
}

// TypeNotFoundEndPoint records a relation whose target type is not part of
// the mapping. Validation reports it.
type TypeNotFoundEndPoint struct {
	endPointBase
	typeName     string
	propertyName string
}

// NewTypeNotFoundEndPoint creates the terminal end point for an unmapped target type
func NewTypeNotFoundEndPoint(typeName, propertyName string) *TypeNotFoundEndPoint {
	return &TypeNotFoundEndPoint{typeName: typeName, propertyName: propertyName}
}

func (e *TypeNotFoundEndPoint) TypeDefinition() TypeDefinition { return nil }
func (e *TypeNotFoundEndPoint) PropertyName() string           { return e.propertyName }
func (e *TypeNotFoundEndPoint) IsVirtual() bool                { return true }
func (e *TypeNotFoundEndPoint) IsAnonymous() bool              { return false }
func (e *TypeNotFoundEndPoint) IsMandatory() bool              { return false }
func (e *TypeNotFoundEndPoint) Cardinality() Cardinality       { return CardinalityOne }
func (e *TypeNotFoundEndPoint) TargetType() string             { return e.typeName }
func (e *TypeNotFoundEndPoint) OppositeProperty() string       { return "" }

// MissingTypeName returns the unmapped type name
func (e *TypeNotFoundEndPoint) MissingTypeName() string { return e.typeName }

// SetRelationDefinition sets the relation back reference exactly once
func (e *TypeNotFoundEndPoint) SetRelationDefinition(rd *RelationDefinition) error {
	return e.setRelation(e.propertyName, rd)
}

// EndPointTypeName returns the type name of an end point, including end
// points whose type is not mapped
func EndPointTypeName(ep EndPoint) string {
	if tnf, ok := ep.(*TypeNotFoundEndPoint); ok {
		return tnf.typeName
	}
	return typeNameOf(ep.TypeDefinition())
}
