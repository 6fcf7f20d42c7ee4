package validation

import (
	"errors"

	"github.com/conduit-lang/mapping/internal/discovery"
	"github.com/conduit-lang/mapping/internal/mapping"
)

func isTerminal(ep mapping.EndPoint) bool {
	switch ep.(type) {
	case *mapping.PropertyNotFoundEndPoint, *mapping.TypeNotFoundEndPoint:
		return true
	}
	return false
}

// named reports whether both end points are navigable properties of mapped types
func named(rd *mapping.RelationDefinition) bool {
	for _, ep := range rd.EndPoints() {
		if ep.IsAnonymous() || isTerminal(ep) {
			return false
		}
	}
	return true
}

// RelationEndPointPropertyNotFound reports opposite properties that do not exist
func RelationEndPointPropertyNotFound() RelationRule {
	return RelationRuleFunc("RelationEndPointPropertyNotFound", func(rd *mapping.RelationDefinition) []mapping.ValidationFailure {
		var failures []mapping.ValidationFailure
		for _, ep := range rd.EndPoints() {
			missing, ok := ep.(*mapping.PropertyNotFoundEndPoint)
			if !ok {
				continue
			}
			source := rd.GetOppositeEndPoint(ep)
			failures = append(failures, endPointFailure(source,
				"the opposite relation property '%s' declared on '%s' could not be found on type '%s'",
				mapping.ShortName(missing.PropertyName()), source.PropertyName(), mapping.EndPointTypeName(missing)))
		}
		return failures
	})
}

// RelationEndPointTypeNotFound reports relation properties pointing to types
// outside the mapping
func RelationEndPointTypeNotFound() RelationRule {
	return RelationRuleFunc("RelationEndPointTypeNotFound", func(rd *mapping.RelationDefinition) []mapping.ValidationFailure {
		var failures []mapping.ValidationFailure
		for _, ep := range rd.EndPoints() {
			missing, ok := ep.(*mapping.TypeNotFoundEndPoint)
			if !ok {
				continue
			}
			source := rd.GetOppositeEndPoint(ep)
			failures = append(failures, endPointFailure(source,
				"the type '%s' referenced by relation property '%s' is not part of the mapping",
				missing.MissingTypeName(), source.PropertyName()))
		}
		return failures
	})
}

// RelationEndPointCombinationIsSupported requires exactly one side of a
// bidirectional relation to hold the foreign key
func RelationEndPointCombinationIsSupported() RelationRule {
	return RelationRuleFunc("RelationEndPointCombinationIsSupported", func(rd *mapping.RelationDefinition) []mapping.ValidationFailure {
		if !named(rd) {
			return nil
		}
		eps := rd.EndPoints()
		first, second := eps[0], eps[1]

		switch {
		case !first.IsVirtual() && !second.IsVirtual():
			return []mapping.ValidationFailure{endPointFailure(first,
				"both end points of relation '%s' contain the foreign key; only one side of a one-to-one relation can hold it",
				rd.ID())}
		case first.Cardinality() == mapping.CardinalityMany && second.Cardinality() == mapping.CardinalityMany:
			return []mapping.ValidationFailure{endPointFailure(first,
				"relation '%s' is a many-to-many relation, which is not supported; use an intermediate class", rd.ID())}
		case first.IsVirtual() && second.IsVirtual():
			return []mapping.ValidationFailure{endPointFailure(first,
				"neither end point of one-to-one relation '%s' contains the foreign key; "+
					"mark exactly one side with contains_foreign_key", rd.ID())}
		}
		return nil
	})
}

// RelationEndPointNamesAreConsistent requires both sides of a bidirectional
// relation to name each other as opposite
func RelationEndPointNamesAreConsistent() RelationRule {
	return RelationRuleFunc("RelationEndPointNamesAreConsistent", func(rd *mapping.RelationDefinition) []mapping.ValidationFailure {
		if !named(rd) {
			return nil
		}
		var failures []mapping.ValidationFailure
		eps := rd.EndPoints()
		for i, ep := range eps {
			opposite := eps[1-i]
			if ep.OppositeProperty() == mapping.ShortName(opposite.PropertyName()) {
				continue
			}
			failures = append(failures, endPointFailure(ep,
				"relation property '%s' names '%s' as its opposite, but the opposite property '%s' of type '%s' belongs to the relation",
				ep.PropertyName(), ep.OppositeProperty(), mapping.ShortName(opposite.PropertyName()), mapping.EndPointTypeName(opposite)))
		}
		return failures
	})
}

// RelationEndPointTypesAreConsistent requires the declared target of each
// end point to be the type of the opposite end point or one of its
// supertypes. Targets outside the mapping are accepted because they resolve
// to a mapped supertype.
func RelationEndPointTypesAreConsistent(domain *discovery.Domain) RelationRule {
	return RelationRuleFunc("RelationEndPointTypesAreConsistent", func(rd *mapping.RelationDefinition) []mapping.ValidationFailure {
		if !named(rd) {
			return nil
		}
		var failures []mapping.ValidationFailure
		eps := rd.EndPoints()
		for i, ep := range eps {
			opposite := eps[1-i]
			target := ep.TargetType()
			if domain != nil && !domain.IsMapped(target) {
				continue
			}
			compatible := false
			for _, node := range mapping.CompositionOrder(opposite.TypeDefinition()) {
				if node.TypeName() == target {
					compatible = true
					break
				}
			}
			if !compatible {
				failures = append(failures, endPointFailure(ep,
					"the declared type '%s' of relation property '%s' is not compatible with the type '%s' declaring the opposite property '%s'",
					target, ep.PropertyName(), mapping.EndPointTypeName(opposite), opposite.PropertyName()))
			}
		}
		return failures
	})
}

// ForeignKeyIsSupportedForCardinality rejects collections claiming to hold
// the foreign key
func ForeignKeyIsSupportedForCardinality() RelationRule {
	return RelationRuleFunc("ForeignKeyIsSupportedForCardinality", func(rd *mapping.RelationDefinition) []mapping.ValidationFailure {
		var failures []mapping.ValidationFailure
		for _, ep := range rd.EndPoints() {
			if collection, ok := ep.(*mapping.VirtualCollectionEndPoint); ok && collection.ForeignKeyDeclared() {
				failures = append(failures, endPointFailure(ep,
					"only single-valued relation properties can contain the foreign key"))
			}
		}
		return failures
	})
}

// SortExpressionOnlyOnCollection rejects sort expressions on single-valued
// relation properties
func SortExpressionOnlyOnCollection(domain *discovery.Domain) RelationRule {
	return RelationRuleFunc("SortExpressionOnlyOnCollection", func(rd *mapping.RelationDefinition) []mapping.ValidationFailure {
		var failures []mapping.ValidationFailure
		for _, ep := range rd.EndPoints() {
			if ep.Cardinality() == mapping.CardinalityMany || ep.IsAnonymous() || isTerminal(ep) {
				continue
			}
			descriptor := relationDescriptor(domain, ep.PropertyName())
			if descriptor != nil && descriptor.SortExpression != "" {
				failures = append(failures, endPointFailure(ep,
					"a sort expression can only be specified for collection relation properties"))
			}
		}
		return failures
	})
}

// relationDescriptor finds the relation descriptor behind a full property
// name declared on a type or a mixin
func relationDescriptor(domain *discovery.Domain, propertyName string) *discovery.RelationDescriptor {
	if domain == nil {
		return nil
	}
	short := mapping.ShortName(propertyName)
	if len(short) == len(propertyName) {
		return nil
	}
	declaring := propertyName[:len(propertyName)-len(short)-1]

	if t, ok := domain.Type(declaring); ok {
		if p, ok := t.Property(short); ok {
			return p.Relation
		}
	}
	if m, ok := domain.Mixin(declaring); ok {
		if p, ok := m.Property(short); ok {
			return p.Relation
		}
	}
	return nil
}

// SortExpressionIsValid parses the sort expression of every collection end point
func SortExpressionIsValid() SortExpressionRule {
	return sortExpressionIsValid{}
}

type sortExpressionIsValid struct{}

func (sortExpressionIsValid) Name() string { return "SortExpressionIsValid" }

func (sortExpressionIsValid) ValidateSortExpressions(rd *mapping.RelationDefinition) []mapping.ValidationFailure {
	var failures []mapping.ValidationFailure
	for _, ep := range rd.EndPoints() {
		collection, ok := ep.(*mapping.VirtualCollectionEndPoint)
		if !ok {
			continue
		}
		if _, err := collection.GetSortExpression(); err != nil {
			message := err.Error()
			var mappingErr *mapping.MappingError
			if errors.As(err, &mappingErr) {
				message = mappingErr.Message
			}
			failures = append(failures, endPointFailure(ep, "%s", message))
		}
	}
	return failures
}
