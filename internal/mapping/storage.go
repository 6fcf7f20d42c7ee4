package mapping

// StorageEntityDefinition is the storage-side counterpart of a type
// definition (a table, a view or nothing at all).
type StorageEntityDefinition interface {
	// EntityName returns the storage name of the entity, empty for entities
	// that exist only logically
	EntityName() string
	// StorageProviderName returns the name of the provider that owns the entity
	StorageProviderName() string
}

// StoragePropertyDefinition is the storage-side counterpart of a property
// definition, usually one or more columns.
type StoragePropertyDefinition interface {
	// ColumnNames returns the names of the columns backing the property
	ColumnNames() []string
}

// PersistenceModelLoader binds storage entities and storage properties onto
// an already built class hierarchy.
type PersistenceModelLoader interface {
	// ApplyPersistenceModelToHierarchy must assign a storage entity to every
	// class of the tree rooted at root and a storage property to every
	// persistent property of those classes.
	ApplyPersistenceModelToHierarchy(root *ClassDefinition) error
	// ApplyPersistenceModelToInterface assigns the storage entity of an
	// interface and the storage properties of its own persistent properties.
	ApplyPersistenceModelToInterface(iface *InterfaceDefinition) error
	// CreatePersistenceMappingValidator returns the validator run once over
	// root and all of its transitive derived classes.
	CreatePersistenceMappingValidator(root *ClassDefinition) PersistenceMappingValidator
}

// PersistenceMappingValidator checks storage-specific consistency for one
// inheritance tree.
type PersistenceMappingValidator interface {
	Validate(classes []*ClassDefinition) []ValidationFailure
}

// ValidationFailure is a structured failure produced by a validation rule
type ValidationFailure struct {
	Message  string
	Type     string
	Property string
}

// Error makes a ValidationFailure usable as an error
func (f ValidationFailure) Error() string {
	return (&MappingError{Type: f.Type, Property: f.Property, Message: f.Message}).Error()
}

// PersistentMixinFinder identifies the mixins of a class that contribute
// persistent state.
type PersistentMixinFinder interface {
	// PersistentMixins returns the persistence-relevant mixins of the class
	PersistentMixins() ([]string, error)
	// IncludeInherited reports whether mixins of base classes are included
	IncludeInherited() bool
	// FindOriginalMixinTarget returns the class that first introduced the mixin
	FindOriginalMixinTarget(mixin string) (string, error)
}

// InstanceCreator creates runtime instances of a class. The mapping graph
// treats it as opaque.
type InstanceCreator interface {
	CanCreate() bool
}

type defaultInstanceCreator struct {
	abstract bool
}

func (c defaultInstanceCreator) CanCreate() bool {
	return !c.abstract
}

// DefaultInstanceCreator returns the creator used when none is supplied
func DefaultInstanceCreator(abstract bool) InstanceCreator {
	return defaultInstanceCreator{abstract: abstract}
}
