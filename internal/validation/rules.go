// Package validation checks a fully built mapping graph. Rules never return
// errors for expected failures; they report structured failures which the
// Validator aggregates into a single *Errors.
package validation

import (
	"fmt"

	"github.com/conduit-lang/mapping/internal/mapping"
)

// ClassRule validates one type definition
type ClassRule interface {
	Name() string
	ValidateType(td mapping.TypeDefinition) []mapping.ValidationFailure
}

// PropertyRule validates the own properties of one type definition
type PropertyRule interface {
	Name() string
	ValidateProperty(td mapping.TypeDefinition, p *mapping.PropertyDefinition) []mapping.ValidationFailure
}

// RelationRule validates one relation definition
type RelationRule interface {
	Name() string
	ValidateRelation(rd *mapping.RelationDefinition) []mapping.ValidationFailure
}

// SortExpressionRule validates the sort expressions of one relation definition
type SortExpressionRule interface {
	Name() string
	ValidateSortExpressions(rd *mapping.RelationDefinition) []mapping.ValidationFailure
}

type classRuleFunc struct {
	name string
	fn   func(td mapping.TypeDefinition) []mapping.ValidationFailure
}

func (r classRuleFunc) Name() string { return r.name }

func (r classRuleFunc) ValidateType(td mapping.TypeDefinition) []mapping.ValidationFailure {
	return r.fn(td)
}

// ClassRuleFunc adapts a function to a ClassRule
func ClassRuleFunc(name string, fn func(td mapping.TypeDefinition) []mapping.ValidationFailure) ClassRule {
	return classRuleFunc{name: name, fn: fn}
}

type propertyRuleFunc struct {
	name string
	fn   func(td mapping.TypeDefinition, p *mapping.PropertyDefinition) []mapping.ValidationFailure
}

func (r propertyRuleFunc) Name() string { return r.name }

func (r propertyRuleFunc) ValidateProperty(td mapping.TypeDefinition, p *mapping.PropertyDefinition) []mapping.ValidationFailure {
	return r.fn(td, p)
}

// PropertyRuleFunc adapts a function to a PropertyRule
func PropertyRuleFunc(name string, fn func(td mapping.TypeDefinition, p *mapping.PropertyDefinition) []mapping.ValidationFailure) PropertyRule {
	return propertyRuleFunc{name: name, fn: fn}
}

type relationRuleFunc struct {
	name string
	fn   func(rd *mapping.RelationDefinition) []mapping.ValidationFailure
}

func (r relationRuleFunc) Name() string { return r.name }

func (r relationRuleFunc) ValidateRelation(rd *mapping.RelationDefinition) []mapping.ValidationFailure {
	return r.fn(rd)
}

// RelationRuleFunc adapts a function to a RelationRule
func RelationRuleFunc(name string, fn func(rd *mapping.RelationDefinition) []mapping.ValidationFailure) RelationRule {
	return relationRuleFunc{name: name, fn: fn}
}

func failure(td mapping.TypeDefinition, property, format string, args ...interface{}) mapping.ValidationFailure {
	typeName := ""
	if td != nil {
		typeName = td.TypeName()
	}
	return mapping.ValidationFailure{
		Type:     typeName,
		Property: property,
		Message:  fmt.Sprintf(format, args...),
	}
}

func endPointFailure(ep mapping.EndPoint, format string, args ...interface{}) mapping.ValidationFailure {
	return mapping.ValidationFailure{
		Type:     mapping.EndPointTypeName(ep),
		Property: ep.PropertyName(),
		Message:  fmt.Sprintf(format, args...),
	}
}
