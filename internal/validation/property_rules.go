package validation

import (
	"github.com/conduit-lang/mapping/internal/mapping"
)

// MaxLengthOnlyOnStringOrBinary rejects a maximum length on kinds without a length
func MaxLengthOnlyOnStringOrBinary() PropertyRule {
	return PropertyRuleFunc("MaxLengthOnlyOnStringOrBinary", func(td mapping.TypeDefinition, p *mapping.PropertyDefinition) []mapping.ValidationFailure {
		if p.MaxLength() == nil {
			return nil
		}
		if !p.Kind().SupportsMaxLength() {
			return []mapping.ValidationFailure{
				failure(td, p.PropertyName(), "max length can only be defined for string and binary properties, not for %s", p.Kind()),
			}
		}
		if *p.MaxLength() <= 0 {
			return []mapping.ValidationFailure{
				failure(td, p.PropertyName(), "max length must be greater than zero, got %d", *p.MaxLength()),
			}
		}
		return nil
	})
}

// EnumPropertyHasValues requires enum properties to declare their values
func EnumPropertyHasValues() PropertyRule {
	return PropertyRuleFunc("EnumPropertyHasValues", func(td mapping.TypeDefinition, p *mapping.PropertyDefinition) []mapping.ValidationFailure {
		if p.Kind() != mapping.KindEnum || len(p.EnumValues()) > 0 {
			return nil
		}
		return []mapping.ValidationFailure{
			failure(td, p.PropertyName(), "enum property declares no values"),
		}
	})
}

// StorageClassIsSupported rejects relation properties that are not stored
// at all; a relation must at least live for the duration of a transaction
func StorageClassIsSupported() PropertyRule {
	return PropertyRuleFunc("StorageClassIsSupported", func(td mapping.TypeDefinition, p *mapping.PropertyDefinition) []mapping.ValidationFailure {
		if !p.IsObjectID() || p.StorageClass() != mapping.StorageNone {
			return nil
		}
		return []mapping.ValidationFailure{
			failure(td, p.PropertyName(), "relation properties only support the storage classes persistent and transaction"),
		}
	})
}
