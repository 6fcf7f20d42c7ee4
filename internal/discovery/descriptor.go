// Package discovery provides the structured type descriptors the mapping
// graph is built from. Descriptors come from YAML files or from the fluent
// Builder; the mapping core never inspects Go types itself.
package discovery

// TypeKind distinguishes classes from interfaces
type TypeKind string

const (
	KindClass     TypeKind = "class"
	KindInterface TypeKind = "interface"
)

// TypeDescriptor describes one candidate domain type
type TypeDescriptor struct {
	Name string   `yaml:"name"`
	Kind TypeKind `yaml:"kind,omitempty"`
	// Base is the direct base type of a class
	Base string `yaml:"base,omitempty"`
	// Interfaces are the implemented interfaces of a class or the extended
	// interfaces of an interface, in declaration order
	Interfaces          []string `yaml:"interfaces,omitempty"`
	Abstract            bool     `yaml:"abstract,omitempty"`
	ClassID             string   `yaml:"class_id,omitempty"`
	StorageGroup        string   `yaml:"storage_group,omitempty"`
	DefaultStorageClass string   `yaml:"default_storage_class,omitempty"`
	// Table requests a table for the class; empty means no own table
	Table string `yaml:"table,omitempty"`
	// IgnoreForMapping keeps the type out of the mapping; its properties are
	// attributed to the nearest mapped derived class
	IgnoreForMapping  bool                 `yaml:"ignore_for_mapping,omitempty"`
	GenericParameters []string             `yaml:"generic_parameters,omitempty"`
	Mixins            []string             `yaml:"mixins,omitempty"`
	SuppressedMixins  []string             `yaml:"suppressed_mixins,omitempty"`
	Properties        []PropertyDescriptor `yaml:"properties,omitempty"`
}

// IsInterface reports whether the descriptor is an interface
func (t *TypeDescriptor) IsInterface() bool {
	return t.Kind == KindInterface
}

// Property returns the property with the given short name declared directly
// on the type
func (t *TypeDescriptor) Property(name string) (*PropertyDescriptor, bool) {
	for i := range t.Properties {
		if t.Properties[i].Name == name {
			return &t.Properties[i], true
		}
	}
	return nil, false
}

// PropertyDescriptor describes one property of a type or mixin
type PropertyDescriptor struct {
	Name         string              `yaml:"name"`
	Kind         string              `yaml:"kind,omitempty"`
	Nullable     bool                `yaml:"nullable,omitempty"`
	MaxLength    *int                `yaml:"max_length,omitempty"`
	StorageClass string              `yaml:"storage_class,omitempty"`
	Column       string              `yaml:"column,omitempty"`
	EnumValues   []string            `yaml:"enum_values,omitempty"`
	Relation     *RelationDescriptor `yaml:"relation,omitempty"`
}

// IsRelation reports whether the property references other domain objects
func (p *PropertyDescriptor) IsRelation() bool {
	return p.Relation != nil
}

// RelationDescriptor describes the relation facts of a relation property
type RelationDescriptor struct {
	Target   string `yaml:"target"`
	Opposite string `yaml:"opposite,omitempty"`
	// Collection marks a property holding many related objects
	Collection bool `yaml:"collection,omitempty"`
	// ContainsForeignKey decides which side of a one-to-one relation holds
	// the foreign key
	ContainsForeignKey bool   `yaml:"contains_foreign_key,omitempty"`
	Mandatory          bool   `yaml:"mandatory,omitempty"`
	SortExpression     string `yaml:"sort_expression,omitempty"`
}

// MixinDescriptor describes a mixin that can be applied to classes
type MixinDescriptor struct {
	Name string `yaml:"name"`
	// Persistent marks mixins whose properties and relations are persisted
	// with their target class
	Persistent        bool                 `yaml:"persistent,omitempty"`
	GenericParameters []string             `yaml:"generic_parameters,omitempty"`
	Introduces        []string             `yaml:"introduces,omitempty"`
	Properties        []PropertyDescriptor `yaml:"properties,omitempty"`
}

// IsOpenGeneric reports whether the mixin still has unbound type parameters
func (m *MixinDescriptor) IsOpenGeneric() bool {
	return len(m.GenericParameters) > 0
}

// Property returns the property with the given short name
func (m *MixinDescriptor) Property(name string) (*PropertyDescriptor, bool) {
	for i := range m.Properties {
		if m.Properties[i].Name == name {
			return &m.Properties[i], true
		}
	}
	return nil, false
}
