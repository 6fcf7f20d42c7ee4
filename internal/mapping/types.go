// Package mapping provides the metadata graph of the persistence framework:
// type definitions for mapped classes and interfaces, their property and
// relation end-point definitions, relation definitions and the storage
// bindings attached to them. Every node follows the same lifecycle and
// becomes immutable once frozen.
package mapping

import (
	"fmt"
	"strings"
)

// State is the lifecycle state of a type definition
type State int

const (
	// StateConstructed is a bare node with identity only
	StateConstructed State = iota
	// StatePopulated means own properties and relation end points are set
	StatePopulated
	// StateBound means a storage entity has been attached
	StateBound
	// StateValidated means the node passed the validation pipeline
	StateValidated
	// StateFrozen is terminal; every mutation fails
	StateFrozen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StatePopulated:
		return "populated"
	case StateBound:
		return "bound"
	case StateValidated:
		return "validated"
	case StateFrozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// Kind is the value kind of a mapped property
type Kind int

const (
	KindString Kind = iota
	KindBinary
	KindBool
	KindInt16
	KindInt32
	KindInt64
	KindFloat
	KindDecimal
	KindDateTime
	KindUUID
	KindEnum
	KindObjectID
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindBool:
		return "bool"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindDateTime:
		return "datetime"
	case KindUUID:
		return "uuid"
	case KindEnum:
		return "enum"
	case KindObjectID:
		return "object_id"
	default:
		return "unknown"
	}
}

// IsValueKind reports whether values of the kind cannot be null unless the
// property is explicitly declared nullable.
func (k Kind) IsValueKind() bool {
	switch k {
	case KindString, KindBinary, KindObjectID:
		return false
	default:
		return true
	}
}

// SupportsMaxLength reports whether MaxLength is meaningful for the kind
func (k Kind) SupportsMaxLength() bool {
	return k == KindString || k == KindBinary
}

// ParseKind converts a string to a Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "string":
		return KindString, nil
	case "binary", "bytes":
		return KindBinary, nil
	case "bool":
		return KindBool, nil
	case "int16":
		return KindInt16, nil
	case "int32", "int":
		return KindInt32, nil
	case "int64":
		return KindInt64, nil
	case "float":
		return KindFloat, nil
	case "decimal":
		return KindDecimal, nil
	case "datetime", "timestamp":
		return KindDateTime, nil
	case "uuid":
		return KindUUID, nil
	case "enum":
		return KindEnum, nil
	case "object_id":
		return KindObjectID, nil
	default:
		return 0, fmt.Errorf("unknown property kind: %s", s)
	}
}

// StorageClass controls whether a property is persisted
type StorageClass int

const (
	StoragePersistent StorageClass = iota
	StorageTransaction
	StorageNone
)

// String returns the string representation of the storage class
func (s StorageClass) String() string {
	switch s {
	case StoragePersistent:
		return "persistent"
	case StorageTransaction:
		return "transaction"
	case StorageNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseStorageClass converts a string to a StorageClass
func ParseStorageClass(s string) (StorageClass, error) {
	switch strings.ToLower(s) {
	case "", "persistent":
		return StoragePersistent, nil
	case "transaction":
		return StorageTransaction, nil
	case "none":
		return StorageNone, nil
	default:
		return 0, fmt.Errorf("unknown storage class: %s", s)
	}
}

// Cardinality is the multiplicity of a relation end point
type Cardinality int

const (
	CardinalityOne Cardinality = iota
	CardinalityMany
)

// String returns the string representation of the cardinality
func (c Cardinality) String() string {
	if c == CardinalityMany {
		return "many"
	}
	return "one"
}

// PropertyName builds the full property name used as identifier throughout
// the graph.
func PropertyName(declaringType, shortName string) string {
	return declaringType + "." + shortName
}

// ShortName returns the part of a full property name after the declaring type
func ShortName(propertyName string) string {
	if i := strings.LastIndex(propertyName, "."); i >= 0 {
		return propertyName[i+1:]
	}
	return propertyName
}

// ShortTypeName returns the last segment of a dotted type name
func ShortTypeName(typeName string) string {
	return ShortName(typeName)
}
