package rdbms

import (
	"fmt"

	"github.com/conduit-lang/mapping/internal/mapping"
)

// PersistenceRule checks one inheritance tree after its entities are bound
type PersistenceRule interface {
	Name() string
	Validate(classes []*mapping.ClassDefinition) []mapping.ValidationFailure
}

type persistenceRuleFunc struct {
	name string
	fn   func(classes []*mapping.ClassDefinition) []mapping.ValidationFailure
}

func (r persistenceRuleFunc) Name() string { return r.name }

func (r persistenceRuleFunc) Validate(classes []*mapping.ClassDefinition) []mapping.ValidationFailure {
	return r.fn(classes)
}

// PersistenceValidator runs the RDBMS rules over one inheritance tree
type PersistenceValidator struct {
	rules []PersistenceRule
}

// NewPersistenceValidator creates a validator with the standard RDBMS rules
func NewPersistenceValidator(providers *ProviderRegistry) *PersistenceValidator {
	return &PersistenceValidator{rules: []PersistenceRule{
		ClassAboveTableIsAbstract(),
		TableNamesAreDistinctWithinHierarchy(),
		ColumnNamesAreUniqueWithinHierarchy(),
		PropertyKindIsSupportedByDialect(providers),
	}}
}

// Rules returns the rules of the validator
func (v *PersistenceValidator) Rules() []PersistenceRule {
	return v.rules
}

// Validate runs every rule and collects all failures
func (v *PersistenceValidator) Validate(classes []*mapping.ClassDefinition) []mapping.ValidationFailure {
	var failures []mapping.ValidationFailure
	for _, rule := range v.rules {
		failures = append(failures, rule.Validate(classes)...)
	}
	return failures
}

func entityOf(td mapping.TypeDefinition) (Entity, bool) {
	e, ok := td.StorageEntityDefinition().(Entity)
	return e, ok
}

// ClassAboveTableIsAbstract requires classes without a table of their own
// or of a base class to be abstract
func ClassAboveTableIsAbstract() PersistenceRule {
	return persistenceRuleFunc{name: "ClassAboveTableIsAbstract", fn: func(classes []*mapping.ClassDefinition) []mapping.ValidationFailure {
		var failures []mapping.ValidationFailure
		for _, c := range classes {
			entity, ok := entityOf(c)
			if !ok || c.IsAbstract() {
				continue
			}
			if entity.Kind() == EntityTable || entity.Kind() == EntityFilterView {
				continue
			}
			failures = append(failures, mapping.ValidationFailure{
				Type: c.TypeName(),
				Message: fmt.Sprintf("neither class '%s' nor its base classes are mapped to a table; "+
					"make class '%s' abstract or define a table for it or one of its base classes",
					c.TypeName(), c.TypeName()),
			})
		}
		return failures
	}}
}

// TableNamesAreDistinctWithinHierarchy rejects two classes of one
// inheritance tree declaring the same table
func TableNamesAreDistinctWithinHierarchy() PersistenceRule {
	return persistenceRuleFunc{name: "TableNamesAreDistinctWithinHierarchy", fn: func(classes []*mapping.ClassDefinition) []mapping.ValidationFailure {
		var failures []mapping.ValidationFailure
		owners := make(map[string]*mapping.ClassDefinition)
		for _, c := range classes {
			entity, ok := entityOf(c)
			if !ok || entity.Kind() != EntityTable {
				continue
			}
			if owner, exists := owners[entity.EntityName()]; exists {
				failures = append(failures, mapping.ValidationFailure{
					Type: c.TypeName(),
					Message: fmt.Sprintf("class '%s' must not define table '%s' because class '%s' in the same inheritance hierarchy already defines a table with the same name",
						c.TypeName(), entity.EntityName(), owner.TypeName()),
				})
				continue
			}
			owners[entity.EntityName()] = c
		}
		return failures
	}}
}

// ColumnNamesAreUniqueWithinHierarchy rejects two different properties
// stored in the same table under the same column name
func ColumnNamesAreUniqueWithinHierarchy() PersistenceRule {
	return persistenceRuleFunc{name: "ColumnNamesAreUniqueWithinHierarchy", fn: func(classes []*mapping.ClassDefinition) []mapping.ValidationFailure {
		var failures []mapping.ValidationFailure
		type claim struct {
			property string
			class    string
		}
		// table name -> column name -> first property using it
		claims := make(map[string]map[string]claim)

		for _, c := range classes {
			table := storingTable(c)
			if table == "" {
				continue
			}
			if claims[table] == nil {
				claims[table] = map[string]claim{
					IDColumnName:        {},
					ClassIDColumnName:   {},
					TimestampColumnName: {},
				}
			}
			props, err := c.GetPropertyDefinitions()
			if err != nil {
				continue
			}
			for _, p := range props.Items() {
				sp := p.StoragePropertyDefinition()
				if sp == nil {
					continue
				}
				for _, column := range sp.ColumnNames() {
					existing, taken := claims[table][column]
					if !taken {
						claims[table][column] = claim{property: p.PropertyName(), class: c.TypeName()}
						continue
					}
					if existing.property == p.PropertyName() {
						continue
					}
					message := fmt.Sprintf("property '%s' of class '%s' must not use column name '%s' because it is reserved",
						p.PropertyName(), c.TypeName(), column)
					if existing.property != "" {
						message = fmt.Sprintf("property '%s' of class '%s' must not use column name '%s' because class '%s' in the same inheritance hierarchy already stores property '%s' in that column",
							p.PropertyName(), c.TypeName(), column, existing.class, existing.property)
					}
					failures = append(failures, mapping.ValidationFailure{Type: c.TypeName(), Property: p.PropertyName(), Message: message})
				}
			}
		}
		return failures
	}}
}

// storingTable returns the name of the table holding the instances of c
func storingTable(c *mapping.ClassDefinition) string {
	entity, ok := entityOf(c)
	if !ok {
		return ""
	}
	switch e := entity.(type) {
	case *TableDefinition:
		return e.EntityName()
	case *FilterViewDefinition:
		return e.BaseEntity().EntityName()
	}
	return ""
}

// PropertyKindIsSupportedByDialect requires every persistent own property
// to map to a column type of the provider's dialect
func PropertyKindIsSupportedByDialect(providers *ProviderRegistry) PersistenceRule {
	return persistenceRuleFunc{name: "PropertyKindIsSupportedByDialect", fn: func(classes []*mapping.ClassDefinition) []mapping.ValidationFailure {
		var failures []mapping.ValidationFailure
		for _, c := range classes {
			dialect := providers.ProviderFor(c.StorageGroup()).Dialect
			own, err := c.MyPropertyDefinitions()
			if err != nil {
				continue
			}
			for _, p := range own.Items() {
				if !p.IsPersistent() {
					continue
				}
				if _, err := dialect.MapType(p); err != nil {
					failures = append(failures, mapping.ValidationFailure{
						Type:     c.TypeName(),
						Property: p.PropertyName(),
						Message:  fmt.Sprintf("property '%s' cannot be stored by the %s dialect: %v", p.PropertyName(), dialect.Name(), err),
					})
				}
			}
		}
		return failures
	}}
}
