package mapping

import "fmt"

// ClassOptions carries the facts needed to construct a ClassDefinition
type ClassOptions struct {
	ID                    string
	TypeName              string
	IsAbstract            bool
	BaseClass             *ClassDefinition
	StorageGroup          string
	DefaultStorageClass   StorageClass
	PersistentMixinFinder PersistentMixinFinder
	InstanceCreator       InstanceCreator
}

// ClassDefinition is the graph node of a mapped class
type ClassDefinition struct {
	typeBase

	id                    string
	isAbstract            bool
	baseClass             *ClassDefinition
	derivedClasses        []*ClassDefinition
	derivedClassesSet     bool
	implementedInterfaces []*InterfaceDefinition
	interfacesSet         bool
	persistentMixinFinder PersistentMixinFinder
	instanceCreator       InstanceCreator
}

// NewClassDefinition creates a class node in the constructed state
func NewClassDefinition(opts ClassOptions) *ClassDefinition {
	c := &ClassDefinition{
		id:                    opts.ID,
		isAbstract:            opts.IsAbstract,
		baseClass:             opts.BaseClass,
		persistentMixinFinder: opts.PersistentMixinFinder,
		instanceCreator:       opts.InstanceCreator,
	}
	c.typeBase = typeBase{
		typeName:            opts.TypeName,
		storageGroup:        opts.StorageGroup,
		defaultStorageClass: opts.DefaultStorageClass,
		state:               StateConstructed,
	}
	c.self = c
	if c.id == "" {
		c.id = ShortTypeName(opts.TypeName)
	}
	if c.instanceCreator == nil {
		c.instanceCreator = DefaultInstanceCreator(opts.IsAbstract)
	}
	return c
}

// IsInterface is always false for classes
func (c *ClassDefinition) IsInterface() bool {
	return false
}

// ID returns the class ID
func (c *ClassDefinition) ID() string {
	return c.id
}

// IsAbstract reports whether the class cannot be instantiated
func (c *ClassDefinition) IsAbstract() bool {
	return c.isAbstract
}

// BaseClass returns the base class, nil for the root of a hierarchy
func (c *ClassDefinition) BaseClass() *ClassDefinition {
	return c.baseClass
}

// PersistentMixinFinder returns the finder used to collect mixin state
func (c *ClassDefinition) PersistentMixinFinder() PersistentMixinFinder {
	return c.persistentMixinFinder
}

// InstanceCreator returns the runtime instance factory
func (c *ClassDefinition) InstanceCreator() InstanceCreator {
	return c.instanceCreator
}

// DerivedClasses returns the direct derived classes
func (c *ClassDefinition) DerivedClasses() ([]*ClassDefinition, error) {
	if !c.derivedClassesSet {
		return nil, newStateError(c.typeName, "no derived classes set for class '%s'", c.typeName)
	}
	return append([]*ClassDefinition(nil), c.derivedClasses...), nil
}

// SetDerivedClasses sets the direct derived classes exactly once. Every
// candidate must name this class as its base class.
func (c *ClassDefinition) SetDerivedClasses(derived []*ClassDefinition) error {
	if err := c.checkNotReadOnly(); err != nil {
		return err
	}
	if c.derivedClassesSet {
		return newStateError(c.typeName, "derived classes for class '%s' have already been set", c.typeName)
	}
	for _, d := range derived {
		if d.baseClass == nil {
			return &MappingError{
				Type:    c.typeName,
				Message: fmt.Sprintf("derived class '%s' has no base class set, expected '%s'", d.typeName, c.typeName),
			}
		}
		if d.baseClass != c {
			return &MappingError{
				Type: c.typeName,
				Message: fmt.Sprintf("derived class '%s' has base class '%s', expected '%s'",
					d.typeName, d.baseClass.typeName, c.typeName),
			}
		}
	}
	c.derivedClasses = append([]*ClassDefinition(nil), derived...)
	c.derivedClassesSet = true
	return nil
}

// ImplementedInterfaces returns the interfaces the class implements directly
func (c *ClassDefinition) ImplementedInterfaces() ([]*InterfaceDefinition, error) {
	if !c.interfacesSet {
		return nil, newStateError(c.typeName, "no implemented interfaces set for class '%s'", c.typeName)
	}
	return append([]*InterfaceDefinition(nil), c.implementedInterfaces...), nil
}

// SetImplementedInterfaces sets the directly implemented interfaces exactly once
func (c *ClassDefinition) SetImplementedInterfaces(interfaces []*InterfaceDefinition) error {
	if err := c.checkNotReadOnly(); err != nil {
		return err
	}
	if c.interfacesSet {
		return newStateError(c.typeName, "implemented interfaces for class '%s' have already been set", c.typeName)
	}
	c.implementedInterfaces = append([]*InterfaceDefinition(nil), interfaces...)
	c.interfacesSet = true
	return nil
}

// IsPartOfInheritanceHierarchy reports whether the class has a base class or
// derived classes
func (c *ClassDefinition) IsPartOfInheritanceHierarchy() bool {
	return c.baseClass != nil || len(c.derivedClasses) > 0
}

// IsSameOrBaseClassOf reports whether c is other or one of its ancestors
func (c *ClassDefinition) IsSameOrBaseClassOf(other *ClassDefinition) bool {
	for cur := other; cur != nil; cur = cur.baseClass {
		if cur == c {
			return true
		}
	}
	return false
}

// InheritanceRoot returns the topmost base class
func (c *ClassDefinition) InheritanceRoot() *ClassDefinition {
	cur := c
	for cur.baseClass != nil {
		cur = cur.baseClass
	}
	return cur
}

// GetAllDerivedClasses returns every transitive derived class, depth first
// in declaration order
func (c *ClassDefinition) GetAllDerivedClasses() []*ClassDefinition {
	var result []*ClassDefinition
	var walk func(cd *ClassDefinition)
	walk = func(cd *ClassDefinition) {
		for _, d := range cd.derivedClasses {
			result = append(result, d)
			walk(d)
		}
	}
	walk(c)
	return result
}

// Implements reports whether the class or one of its base classes
// implements the interface, directly or through extension
func (c *ClassDefinition) Implements(iface *InterfaceDefinition) bool {
	for _, node := range CompositionOrder(c) {
		if node == TypeDefinition(iface) {
			return true
		}
	}
	return false
}

// SetReadOnly freezes the class
func (c *ClassDefinition) SetReadOnly() error {
	if err := c.freeze(); err != nil {
		return err
	}
	c.derivedClassesSet = true
	c.interfacesSet = true
	return nil
}

// String returns a debug representation
func (c *ClassDefinition) String() string {
	return fmt.Sprintf("ClassDefinition(%s)", c.id)
}
