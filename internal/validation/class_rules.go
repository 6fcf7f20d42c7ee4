package validation

import (
	"regexp"

	"github.com/conduit-lang/mapping/internal/discovery"
	"github.com/conduit-lang/mapping/internal/mapping"
)

var classIDPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// ClassIDIsValid requires class IDs to be identifiers
func ClassIDIsValid() ClassRule {
	return ClassRuleFunc("ClassIDIsValid", func(td mapping.TypeDefinition) []mapping.ValidationFailure {
		class, ok := td.(*mapping.ClassDefinition)
		if !ok || classIDPattern.MatchString(class.ID()) {
			return nil
		}
		return []mapping.ValidationFailure{
			failure(td, "", "class ID '%s' is not valid; class IDs must start with a letter or underscore "+
				"and contain only letters, digits, underscores and dots", class.ID()),
		}
	})
}

// StorageGroupIsOnlyDefinedOncePerHierarchy requires derived classes to
// stay in the storage group of their base class
func StorageGroupIsOnlyDefinedOncePerHierarchy() ClassRule {
	return ClassRuleFunc("StorageGroupIsOnlyDefinedOncePerHierarchy", func(td mapping.TypeDefinition) []mapping.ValidationFailure {
		class, ok := td.(*mapping.ClassDefinition)
		if !ok || class.BaseClass() == nil {
			return nil
		}
		base := class.BaseClass()
		if class.StorageGroup() == base.StorageGroup() {
			return nil
		}
		return []mapping.ValidationFailure{
			failure(td, "", "the storage group '%s' of class '%s' differs from the storage group '%s' of its base class '%s'; "+
				"the storage group can only be defined once per inheritance hierarchy",
				class.StorageGroup(), class.TypeName(), base.StorageGroup(), base.TypeName()),
		}
	})
}

// ClassIsNotGeneric rejects mapped types with open type parameters
func ClassIsNotGeneric(domain *discovery.Domain) ClassRule {
	return ClassRuleFunc("ClassIsNotGeneric", func(td mapping.TypeDefinition) []mapping.ValidationFailure {
		t, ok := domain.Type(td.TypeName())
		if !ok || len(t.GenericParameters) == 0 {
			return nil
		}
		return []mapping.ValidationFailure{
			failure(td, "", "generic type '%s' cannot be mapped because it has open type parameters %v",
				td.TypeName(), t.GenericParameters),
		}
	})
}

// ConcreteClassIsCreatable requires non-abstract classes to have an
// instance creator that can create instances
func ConcreteClassIsCreatable() ClassRule {
	return ClassRuleFunc("ConcreteClassIsCreatable", func(td mapping.TypeDefinition) []mapping.ValidationFailure {
		class, ok := td.(*mapping.ClassDefinition)
		if !ok || class.IsAbstract() || class.InstanceCreator().CanCreate() {
			return nil
		}
		return []mapping.ValidationFailure{
			failure(td, "", "class '%s' is not abstract but its instance creator cannot create instances", class.TypeName()),
		}
	})
}
