package mapping

import "fmt"

// InterfaceOptions carries the facts needed to construct an InterfaceDefinition
type InterfaceOptions struct {
	TypeName            string
	ExtendedInterfaces  []*InterfaceDefinition
	StorageGroup        string
	DefaultStorageClass StorageClass
}

// InterfaceDefinition is the graph node of a mapped interface
type InterfaceDefinition struct {
	typeBase

	extendedInterfaces     []*InterfaceDefinition
	extendingInterfaces    []*InterfaceDefinition
	extendingSet           bool
	implementingClasses    []*ClassDefinition
	implementingClassesSet bool
}

// NewInterfaceDefinition creates an interface node in the constructed state
func NewInterfaceDefinition(opts InterfaceOptions) *InterfaceDefinition {
	i := &InterfaceDefinition{
		extendedInterfaces: append([]*InterfaceDefinition(nil), opts.ExtendedInterfaces...),
	}
	i.typeBase = typeBase{
		typeName:            opts.TypeName,
		storageGroup:        opts.StorageGroup,
		defaultStorageClass: opts.DefaultStorageClass,
		state:               StateConstructed,
	}
	i.self = i
	return i
}

// IsInterface is always true for interfaces
func (i *InterfaceDefinition) IsInterface() bool {
	return true
}

// ExtendedInterfaces returns the interfaces this interface extends
func (i *InterfaceDefinition) ExtendedInterfaces() []*InterfaceDefinition {
	return append([]*InterfaceDefinition(nil), i.extendedInterfaces...)
}

// ExtendingInterfaces returns the interfaces that directly extend this one
func (i *InterfaceDefinition) ExtendingInterfaces() ([]*InterfaceDefinition, error) {
	if !i.extendingSet {
		return nil, newStateError(i.typeName, "no extending interfaces set for interface '%s'", i.typeName)
	}
	return append([]*InterfaceDefinition(nil), i.extendingInterfaces...), nil
}

// SetExtendingInterfaces sets the extending interfaces exactly once. Every
// candidate must list this interface among its extended interfaces.
func (i *InterfaceDefinition) SetExtendingInterfaces(extending []*InterfaceDefinition) error {
	if err := i.checkNotReadOnly(); err != nil {
		return err
	}
	if i.extendingSet {
		return newStateError(i.typeName, "extending interfaces for interface '%s' have already been set", i.typeName)
	}
	for _, e := range extending {
		if !containsInterface(e.extendedInterfaces, i) {
			return &MappingError{
				Type:    i.typeName,
				Message: fmt.Sprintf("interface '%s' does not extend interface '%s'", e.typeName, i.typeName),
			}
		}
	}
	i.extendingInterfaces = append([]*InterfaceDefinition(nil), extending...)
	i.extendingSet = true
	return nil
}

// ImplementingClasses returns the classes that directly implement this interface
func (i *InterfaceDefinition) ImplementingClasses() ([]*ClassDefinition, error) {
	if !i.implementingClassesSet {
		return nil, newStateError(i.typeName, "no implementing classes set for interface '%s'", i.typeName)
	}
	return append([]*ClassDefinition(nil), i.implementingClasses...), nil
}

// SetImplementingClasses sets the implementing classes exactly once. Every
// candidate must list this interface among its implemented interfaces.
func (i *InterfaceDefinition) SetImplementingClasses(classes []*ClassDefinition) error {
	if err := i.checkNotReadOnly(); err != nil {
		return err
	}
	if i.implementingClassesSet {
		return newStateError(i.typeName, "implementing classes for interface '%s' have already been set", i.typeName)
	}
	for _, c := range classes {
		if !containsInterface(c.implementedInterfaces, i) {
			return &MappingError{
				Type:    i.typeName,
				Message: fmt.Sprintf("class '%s' does not implement interface '%s'", c.typeName, i.typeName),
			}
		}
	}
	i.implementingClasses = append([]*ClassDefinition(nil), classes...)
	i.implementingClassesSet = true
	return nil
}

// GetAllImplementingClasses returns every class implementing the interface
// directly, through a base class, or through an extending interface
func (i *InterfaceDefinition) GetAllImplementingClasses() []*ClassDefinition {
	seen := make(map[*ClassDefinition]bool)
	var result []*ClassDefinition
	var addClass func(c *ClassDefinition)
	addClass = func(c *ClassDefinition) {
		if seen[c] {
			return
		}
		seen[c] = true
		result = append(result, c)
		for _, d := range c.derivedClasses {
			addClass(d)
		}
	}
	var visit func(iface *InterfaceDefinition)
	visited := make(map[*InterfaceDefinition]bool)
	visit = func(iface *InterfaceDefinition) {
		if visited[iface] {
			return
		}
		visited[iface] = true
		for _, c := range iface.implementingClasses {
			addClass(c)
		}
		for _, e := range iface.extendingInterfaces {
			visit(e)
		}
	}
	visit(i)
	return result
}

// SetReadOnly freezes the interface
func (i *InterfaceDefinition) SetReadOnly() error {
	if err := i.freeze(); err != nil {
		return err
	}
	i.extendingSet = true
	i.implementingClassesSet = true
	return nil
}

// String returns a debug representation
func (i *InterfaceDefinition) String() string {
	return fmt.Sprintf("InterfaceDefinition(%s)", i.typeName)
}

func containsInterface(list []*InterfaceDefinition, target *InterfaceDefinition) bool {
	for _, candidate := range list {
		if candidate == target {
			return true
		}
	}
	return false
}
