package validation

import (
	"go.uber.org/zap"

	"github.com/conduit-lang/mapping/internal/discovery"
	"github.com/conduit-lang/mapping/internal/mapping"
)

// Validator runs the class, property, relation and sort expression rule
// lists. Each list is executed once over the whole graph.
type Validator struct {
	classRules          []ClassRule
	propertyRules       []PropertyRule
	relationRules       []RelationRule
	sortExpressionRules []SortExpressionRule
	logger              *zap.Logger
}

// Options controls the standard rule catalogue
type Options struct {
	// SkipSortExpressions leaves out the sort expression rules
	SkipSortExpressions bool
	Logger              *zap.Logger
}

// NewValidator creates a validator without rules
func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{logger: logger}
}

// NewStandardValidator creates a validator with the standard rule catalogue
func NewStandardValidator(domain *discovery.Domain, opts Options) *Validator {
	v := NewValidator(opts.Logger)

	v.AddClassRules(
		ClassIDIsValid(),
		StorageGroupIsOnlyDefinedOncePerHierarchy(),
		ClassIsNotGeneric(domain),
		ConcreteClassIsCreatable(),
	)
	v.AddPropertyRules(
		StorageClassIsSupported(),
		MaxLengthOnlyOnStringOrBinary(),
		EnumPropertyHasValues(),
	)
	v.AddRelationRules(
		RelationEndPointPropertyNotFound(),
		RelationEndPointTypeNotFound(),
		RelationEndPointCombinationIsSupported(),
		RelationEndPointNamesAreConsistent(),
		RelationEndPointTypesAreConsistent(domain),
		ForeignKeyIsSupportedForCardinality(),
		SortExpressionOnlyOnCollection(domain),
	)
	if !opts.SkipSortExpressions {
		v.AddSortExpressionRules(SortExpressionIsValid())
	}

	return v
}

// AddClassRules appends class rules
func (v *Validator) AddClassRules(rules ...ClassRule) *Validator {
	v.classRules = append(v.classRules, rules...)
	return v
}

// AddPropertyRules appends property rules
func (v *Validator) AddPropertyRules(rules ...PropertyRule) *Validator {
	v.propertyRules = append(v.propertyRules, rules...)
	return v
}

// AddRelationRules appends relation rules
func (v *Validator) AddRelationRules(rules ...RelationRule) *Validator {
	v.relationRules = append(v.relationRules, rules...)
	return v
}

// AddSortExpressionRules appends sort expression rules
func (v *Validator) AddSortExpressionRules(rules ...SortExpressionRule) *Validator {
	v.sortExpressionRules = append(v.sortExpressionRules, rules...)
	return v
}

// RuleNames returns the names of all rules in execution order
func (v *Validator) RuleNames() []string {
	var names []string
	for _, r := range v.classRules {
		names = append(names, r.Name())
	}
	for _, r := range v.propertyRules {
		names = append(names, r.Name())
	}
	for _, r := range v.relationRules {
		names = append(names, r.Name())
	}
	for _, r := range v.sortExpressionRules {
		names = append(names, r.Name())
	}
	return names
}

// ValidateTypes runs the class rules over every type and the property rules
// over every own property of every type
func (v *Validator) ValidateTypes(types []mapping.TypeDefinition) []mapping.ValidationFailure {
	var failures []mapping.ValidationFailure

	for _, rule := range v.classRules {
		for _, td := range types {
			failures = append(failures, rule.ValidateType(td)...)
		}
	}

	for _, rule := range v.propertyRules {
		for _, td := range types {
			own, err := td.MyPropertyDefinitions()
			if err != nil {
				failures = append(failures, failure(td, "", "%s", err.Error()))
				continue
			}
			for _, p := range own.Items() {
				failures = append(failures, rule.ValidateProperty(td, p)...)
			}
		}
	}

	return failures
}

// ValidateRelations runs the relation rules over every relation
func (v *Validator) ValidateRelations(relations []*mapping.RelationDefinition) []mapping.ValidationFailure {
	var failures []mapping.ValidationFailure
	for _, rule := range v.relationRules {
		for _, rd := range relations {
			failures = append(failures, rule.ValidateRelation(rd)...)
		}
	}
	return failures
}

// ValidateSortExpressions runs the sort expression rules over every relation
func (v *Validator) ValidateSortExpressions(relations []*mapping.RelationDefinition) []mapping.ValidationFailure {
	var failures []mapping.ValidationFailure
	for _, rule := range v.sortExpressionRules {
		for _, rd := range relations {
			failures = append(failures, rule.ValidateSortExpressions(rd)...)
		}
	}
	return failures
}

// Validate runs every rule list and returns *Errors when any rule failed
func (v *Validator) Validate(types []mapping.TypeDefinition, relations []*mapping.RelationDefinition) error {
	errs := NewErrors()
	errs.Add(v.ValidateTypes(types)...)
	errs.Add(v.ValidateRelations(relations)...)
	errs.Add(v.ValidateSortExpressions(relations)...)

	if errs.HasErrors() {
		v.logger.Debug("mapping validation failed",
			zap.Int("failures", errs.Count()),
			zap.Int("types", len(types)),
			zap.Int("relations", len(relations)))
		return errs
	}

	v.logger.Debug("mapping validated",
		zap.Int("rules", len(v.RuleNames())),
		zap.Int("types", len(types)),
		zap.Int("relations", len(relations)))
	return nil
}

// RunPersistenceValidator runs a persistence mapping validator over one
// inheritance root together with all of its derived classes
func RunPersistenceValidator(validator mapping.PersistenceMappingValidator, root *mapping.ClassDefinition) []mapping.ValidationFailure {
	if validator == nil {
		return nil
	}
	unit := append([]*mapping.ClassDefinition{root}, root.GetAllDerivedClasses()...)
	return validator.Validate(unit)
}
