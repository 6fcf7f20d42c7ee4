package mapping

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PropertyOptions carries the reflected facts about a property
type PropertyOptions struct {
	Kind         Kind
	Nullable     bool
	MaxLength    *int
	StorageClass StorageClass
	EnumValues   []string
	// StorageName is an explicit column name; empty means derived from the property
	StorageName string
}

// PropertyDefinition describes one mapped property. It is immutable after
// construction except for the storage property, which the persistence model
// loader assigns exactly once.
type PropertyDefinition struct {
	typeDefinition TypeDefinition
	propertyName   string
	kind           Kind
	isNullable     bool
	maxLength      *int
	storageClass   StorageClass
	enumValues     []string
	storageName    string
	defaultValue   interface{}

	storageProperty StoragePropertyDefinition
}

// NewPropertyDefinition creates a property definition owned by typeDefinition.
// propertyName is the full name "<DeclaringType>.<Property>".
func NewPropertyDefinition(typeDefinition TypeDefinition, propertyName string, opts PropertyOptions) *PropertyDefinition {
	p := &PropertyDefinition{
		typeDefinition: typeDefinition,
		propertyName:   propertyName,
		kind:           opts.Kind,
		isNullable:     opts.Nullable,
		maxLength:      opts.MaxLength,
		storageClass:   opts.StorageClass,
		enumValues:     append([]string(nil), opts.EnumValues...),
		storageName:    opts.StorageName,
	}

	// Object references are always nullable in storage
	if p.kind == KindObjectID {
		p.isNullable = true
	}

	p.defaultValue = defaultValueFor(p.kind, p.isNullable, p.enumValues)
	return p
}

// defaultValueFor derives the default value of a property from its kind
func defaultValueFor(kind Kind, nullable bool, enumValues []string) interface{} {
	if nullable {
		return nil
	}

	switch kind {
	case KindString:
		return ""
	case KindBinary:
		return []byte{}
	case KindBool:
		return false
	case KindInt16:
		return int16(0)
	case KindInt32:
		return int32(0)
	case KindInt64:
		return int64(0)
	case KindFloat, KindDecimal:
		return float64(0)
	case KindDateTime:
		return time.Time{}
	case KindUUID:
		return uuid.Nil
	case KindEnum:
		if len(enumValues) > 0 {
			return enumValues[0]
		}
		return nil
	default:
		return nil
	}
}

// TypeDefinition returns the node owning this property
func (p *PropertyDefinition) TypeDefinition() TypeDefinition {
	return p.typeDefinition
}

// PropertyName returns the full property name
func (p *PropertyDefinition) PropertyName() string {
	return p.propertyName
}

// ShortName returns the property name without the declaring type
func (p *PropertyDefinition) ShortName() string {
	return ShortName(p.propertyName)
}

// DeclaringType returns the name of the type that declares the property.
// For mixin properties this is the mixin, not the owning class.
func (p *PropertyDefinition) DeclaringType() string {
	short := ShortName(p.propertyName)
	if len(short) == len(p.propertyName) {
		return ""
	}
	return p.propertyName[:len(p.propertyName)-len(short)-1]
}

// Kind returns the value kind
func (p *PropertyDefinition) Kind() Kind {
	return p.kind
}

// IsNullable reports whether the property accepts null
func (p *PropertyDefinition) IsNullable() bool {
	return p.isNullable
}

// MaxLength returns the maximum length, nil when unbounded
func (p *PropertyDefinition) MaxLength() *int {
	return p.maxLength
}

// StorageClass returns the storage class
func (p *PropertyDefinition) StorageClass() StorageClass {
	return p.storageClass
}

// IsPersistent reports whether the property is stored in the database
func (p *PropertyDefinition) IsPersistent() bool {
	return p.storageClass == StoragePersistent
}

// IsObjectID reports whether the property holds a reference to another object
func (p *PropertyDefinition) IsObjectID() bool {
	return p.kind == KindObjectID
}

// EnumValues returns the declared enum values
func (p *PropertyDefinition) EnumValues() []string {
	return append([]string(nil), p.enumValues...)
}

// StorageName returns the explicit storage name, if any
func (p *PropertyDefinition) StorageName() string {
	return p.storageName
}

// DefaultValue returns the value a new instance gets for this property
func (p *PropertyDefinition) DefaultValue() interface{} {
	return p.defaultValue
}

// StoragePropertyDefinition returns the storage binding, nil until bound
func (p *PropertyDefinition) StoragePropertyDefinition() StoragePropertyDefinition {
	return p.storageProperty
}

// SetStorageProperty binds the property to its storage representation.
// It succeeds exactly once and never after the owner is frozen.
func (p *PropertyDefinition) SetStorageProperty(sp StoragePropertyDefinition) error {
	if sp == nil {
		return fmt.Errorf("storage property cannot be nil")
	}
	if p.typeDefinition != nil && p.typeDefinition.IsReadOnly() {
		return newStateError(p.typeDefinition.TypeName(), "type '%s' is read-only", p.typeDefinition.TypeName())
	}
	if p.storageProperty != nil {
		return newStateError(p.ownerName(), "storage property of '%s' has already been set", p.propertyName)
	}
	p.storageProperty = sp
	return nil
}

func (p *PropertyDefinition) ownerName() string {
	if p.typeDefinition == nil {
		return ""
	}
	return p.typeDefinition.TypeName()
}

// String returns a debug representation
func (p *PropertyDefinition) String() string {
	return fmt.Sprintf("%s (%s)", p.propertyName, p.kind)
}
