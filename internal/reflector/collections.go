package reflector

import (
	"fmt"

	"github.com/conduit-lang/mapping/internal/discovery"
	"github.com/conduit-lang/mapping/internal/mapping"
)

// TypeDefinitionCollection is the ordered set of mapped type definitions
type TypeDefinitionCollection struct {
	types       []mapping.TypeDefinition
	byName      map[string]mapping.TypeDefinition
	classesByID map[string]*mapping.ClassDefinition
}

func newTypeDefinitionCollection() *TypeDefinitionCollection {
	return &TypeDefinitionCollection{
		byName:      make(map[string]mapping.TypeDefinition),
		classesByID: make(map[string]*mapping.ClassDefinition),
	}
}

func (c *TypeDefinitionCollection) add(td mapping.TypeDefinition) error {
	if _, exists := c.byName[td.TypeName()]; exists {
		return mapping.NewMappingError(td.TypeName(), "type '%s' is mapped more than once", td.TypeName())
	}
	if class, ok := td.(*mapping.ClassDefinition); ok {
		if other, exists := c.classesByID[class.ID()]; exists {
			return &mapping.MappingError{
				Type: class.TypeName(),
				Message: fmt.Sprintf("class '%s' and class '%s' both have the same class ID '%s'",
					other.TypeName(), class.TypeName(), class.ID()),
				Hint: "use class_id to give one of the classes a unique ID",
			}
		}
		c.classesByID[class.ID()] = class
	}
	c.types = append(c.types, td)
	c.byName[td.TypeName()] = td
	return nil
}

// Get returns the type definition with the given type name
func (c *TypeDefinitionCollection) Get(typeName string) (mapping.TypeDefinition, bool) {
	td, ok := c.byName[typeName]
	return td, ok
}

// GetClass returns the class definition with the given class ID
func (c *TypeDefinitionCollection) GetClass(id string) (*mapping.ClassDefinition, bool) {
	class, ok := c.classesByID[id]
	return class, ok
}

// All returns every type definition in creation order
func (c *TypeDefinitionCollection) All() []mapping.TypeDefinition {
	return append([]mapping.TypeDefinition(nil), c.types...)
}

// Classes returns the class definitions in creation order
func (c *TypeDefinitionCollection) Classes() []*mapping.ClassDefinition {
	var classes []*mapping.ClassDefinition
	for _, td := range c.types {
		if class, ok := td.(*mapping.ClassDefinition); ok {
			classes = append(classes, class)
		}
	}
	return classes
}

// Interfaces returns the interface definitions in creation order
func (c *TypeDefinitionCollection) Interfaces() []*mapping.InterfaceDefinition {
	var interfaces []*mapping.InterfaceDefinition
	for _, td := range c.types {
		if iface, ok := td.(*mapping.InterfaceDefinition); ok {
			interfaces = append(interfaces, iface)
		}
	}
	return interfaces
}

// InheritanceRoots returns the classes without a base class
func (c *TypeDefinitionCollection) InheritanceRoots() []*mapping.ClassDefinition {
	var roots []*mapping.ClassDefinition
	for _, class := range c.Classes() {
		if class.BaseClass() == nil {
			roots = append(roots, class)
		}
	}
	return roots
}

// Len returns the number of type definitions
func (c *TypeDefinitionCollection) Len() int {
	return len(c.types)
}

// TypeDefinitionCollectionFactory builds all type definitions of a domain
// and links them with each other
type TypeDefinitionCollectionFactory struct {
	factory *MappingObjectFactory
}

// NewTypeDefinitionCollectionFactory creates a collection factory using factory
func NewTypeDefinitionCollectionFactory(factory *MappingObjectFactory) *TypeDefinitionCollectionFactory {
	return &TypeDefinitionCollectionFactory{factory: factory}
}

// CreateTypeDefinitionCollection creates a type definition for every mapped
// candidate type. Interfaces are created before classes and every supertype
// before its subtypes. Afterwards the derived classes, implementing classes
// and extending interfaces of every node are set.
func (f *TypeDefinitionCollectionFactory) CreateTypeDefinitionCollection(candidates []*discovery.TypeDescriptor) (*TypeDefinitionCollection, error) {
	types := discovery.Dedupe(candidates)

	graph := NewInheritanceGraph(types)
	if cycles := graph.DetectCycles(); len(cycles) > 0 {
		return nil, &mapping.MappingError{
			Type:    cycles[0][0],
			Message: fmt.Sprintf("inheritance cycles detected:\n%s", formatCycles(cycles)),
		}
	}

	b := &collectionBuilder{
		factory:    f.factory,
		domain:     f.factory.Domain(),
		candidates: make(map[string]*discovery.TypeDescriptor, len(types)),
		classes:    make(map[string]*mapping.ClassDefinition),
		interfaces: make(map[string]*mapping.InterfaceDefinition),
		result:     newTypeDefinitionCollection(),
	}
	for _, t := range types {
		if !t.IgnoreForMapping {
			b.candidates[t.Name] = t
		}
	}

	for _, t := range types {
		if t.IsInterface() && !t.IgnoreForMapping {
			if _, err := b.interfaceDefinition(t.Name); err != nil {
				return nil, err
			}
		}
	}
	for _, t := range types {
		if !t.IsInterface() && !t.IgnoreForMapping {
			if _, err := b.classDefinition(t.Name); err != nil {
				return nil, err
			}
		}
	}

	if err := b.linkBackReferences(); err != nil {
		return nil, err
	}
	return b.result, nil
}

type collectionBuilder struct {
	factory    *MappingObjectFactory
	domain     *discovery.Domain
	candidates map[string]*discovery.TypeDescriptor
	classes    map[string]*mapping.ClassDefinition
	interfaces map[string]*mapping.InterfaceDefinition
	result     *TypeDefinitionCollection
}

func (b *collectionBuilder) interfaceDefinition(name string) (*mapping.InterfaceDefinition, error) {
	if iface, ok := b.interfaces[name]; ok {
		return iface, nil
	}
	t := b.candidates[name]

	extended, err := b.mappedInterfaces(t.Interfaces)
	if err != nil {
		return nil, err
	}
	iface, err := b.factory.CreateInterfaceDefinition(t, extended)
	if err != nil {
		return nil, err
	}
	b.interfaces[name] = iface
	if err := b.result.add(iface); err != nil {
		return nil, err
	}
	return iface, nil
}

func (b *collectionBuilder) classDefinition(name string) (*mapping.ClassDefinition, error) {
	if class, ok := b.classes[name]; ok {
		return class, nil
	}
	t := b.candidates[name]

	var base *mapping.ClassDefinition
	if parent := b.factory.MixinConfiguration().MappedParent(name); parent != "" {
		var err error
		if base, err = b.classDefinition(parent); err != nil {
			return nil, err
		}
	}

	// interfaces declared on ignored ancestors belong to the class
	declared := append([]string(nil), t.Interfaces...)
	for _, ancestor := range b.domain.BaseChain(name) {
		if !ancestor.IgnoreForMapping {
			break
		}
		declared = append(declared, ancestor.Interfaces...)
	}
	interfaces, err := b.mappedInterfaces(declared)
	if err != nil {
		return nil, err
	}

	class, err := b.factory.CreateClassDefinition(t, base, interfaces)
	if err != nil {
		return nil, err
	}
	b.classes[name] = class
	if err := b.result.add(class); err != nil {
		return nil, err
	}
	return class, nil
}

func (b *collectionBuilder) mappedInterfaces(names []string) ([]*mapping.InterfaceDefinition, error) {
	var result []*mapping.InterfaceDefinition
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		t, ok := b.candidates[name]
		if !ok || !t.IsInterface() || seen[name] {
			continue
		}
		seen[name] = true
		iface, err := b.interfaceDefinition(name)
		if err != nil {
			return nil, err
		}
		result = append(result, iface)
	}
	return result, nil
}

func (b *collectionBuilder) linkBackReferences() error {
	classes := b.result.Classes()
	interfaces := b.result.Interfaces()

	for _, class := range classes {
		var derived []*mapping.ClassDefinition
		for _, candidate := range classes {
			if candidate.BaseClass() == class {
				derived = append(derived, candidate)
			}
		}
		if err := class.SetDerivedClasses(derived); err != nil {
			return err
		}
	}

	for _, iface := range interfaces {
		var extending []*mapping.InterfaceDefinition
		for _, candidate := range interfaces {
			if containsInterface(candidate.ExtendedInterfaces(), iface) {
				extending = append(extending, candidate)
			}
		}
		if err := iface.SetExtendingInterfaces(extending); err != nil {
			return err
		}

		var implementing []*mapping.ClassDefinition
		for _, class := range classes {
			implemented, err := class.ImplementedInterfaces()
			if err != nil {
				return err
			}
			if containsInterface(implemented, iface) {
				implementing = append(implementing, class)
			}
		}
		if err := iface.SetImplementingClasses(implementing); err != nil {
			return err
		}
	}

	return nil
}

func containsInterface(list []*mapping.InterfaceDefinition, target *mapping.InterfaceDefinition) bool {
	for _, candidate := range list {
		if candidate == target {
			return true
		}
	}
	return false
}

// RelationDefinitionCollection is the ordered set of relation definitions,
// keyed by relation ID
type RelationDefinitionCollection struct {
	relations []*mapping.RelationDefinition
	byID      map[string]*mapping.RelationDefinition
}

// Get returns the relation with the given ID
func (c *RelationDefinitionCollection) Get(id string) (*mapping.RelationDefinition, bool) {
	rd, ok := c.byID[id]
	return rd, ok
}

// All returns every relation in discovery order
func (c *RelationDefinitionCollection) All() []*mapping.RelationDefinition {
	return append([]*mapping.RelationDefinition(nil), c.relations...)
}

// Len returns the number of relations
func (c *RelationDefinitionCollection) Len() int {
	return len(c.relations)
}

// RelationDefinitionCollectionFactory pairs the end points of all type
// definitions into relation definitions
type RelationDefinitionCollectionFactory struct {
	domain *discovery.Domain
}

// NewRelationDefinitionCollectionFactory creates a relation collection factory
func NewRelationDefinitionCollectionFactory(domain *discovery.Domain) *RelationDefinitionCollectionFactory {
	return &RelationDefinitionCollectionFactory{domain: domain}
}

// CreateRelationDefinitionCollection reflects the relation of every own end
// point of every type. The same relation found from both sides is kept
// once. Every end point gets its relation back reference; an end point
// already claimed by another relation keeps the first one.
func (f *RelationDefinitionCollectionFactory) CreateRelationDefinitionCollection(types *TypeDefinitionCollection) (*RelationDefinitionCollection, error) {
	reflector := NewRelationReflector(types, f.domain)
	result := &RelationDefinitionCollection{byID: make(map[string]*mapping.RelationDefinition)}

	for _, td := range types.All() {
		own, err := td.MyRelationEndPointDefinitions()
		if err != nil {
			return nil, err
		}
		for _, endPoint := range own.Items() {
			rd := reflector.GetRelationDefinition(endPoint)
			if _, exists := result.byID[rd.ID()]; exists {
				continue
			}
			result.byID[rd.ID()] = rd
			result.relations = append(result.relations, rd)
		}
	}

	for _, rd := range result.relations {
		for _, endPoint := range rd.EndPoints() {
			if endPoint.RelationDefinition() != nil {
				continue
			}
			if err := endPoint.SetRelationDefinition(rd); err != nil {
				return nil, err
			}
		}
	}

	return result, nil
}
