package mapping

// TypeDefinition is a node of the mapping graph: a mapped class or a mapped
// interface. Implementations live in this package only.
type TypeDefinition interface {
	// TypeName returns the fully qualified type name
	TypeName() string
	// IsInterface reports whether the node is an InterfaceDefinition
	IsInterface() bool
	StorageGroup() string
	DefaultStorageClass() StorageClass
	State() State
	IsReadOnly() bool

	MyPropertyDefinitions() (*PropertyDefinitionCollection, error)
	MyRelationEndPointDefinitions() (*EndPointCollection, error)
	SetPropertyDefinitions(props *PropertyDefinitionCollection) error
	SetRelationEndPointDefinitions(endPoints *EndPointCollection) error
	StorageEntityDefinition() StorageEntityDefinition
	SetStorageEntity(entity StorageEntityDefinition) error

	// GetPropertyDefinitions returns own, inherited and interface-contributed
	// property definitions, most derived first.
	GetPropertyDefinitions() (*PropertyDefinitionCollection, error)
	// GetRelationEndPointDefinitions returns own, inherited and
	// interface-contributed end points, most derived first.
	GetRelationEndPointDefinitions() (*EndPointCollection, error)
	GetPropertyDefinition(propertyName string) (*PropertyDefinition, error)
	GetRelationEndPointDefinition(propertyName string) (EndPoint, error)

	MarkValidated() error
	SetReadOnly() error

	base() *typeBase
}

// typeBase holds what classes and interfaces have in common
type typeBase struct {
	self                TypeDefinition
	typeName            string
	storageGroup        string
	defaultStorageClass StorageClass
	state               State

	propertyDefinitions *PropertyDefinitionCollection
	endPointDefinitions *EndPointCollection
	storageEntity       StorageEntityDefinition

	// only populated once frozen
	cachedProperties *PropertyDefinitionCollection
	cachedEndPoints  *EndPointCollection
}

func (b *typeBase) base() *typeBase {
	return b
}

// TypeName returns the fully qualified type name
func (b *typeBase) TypeName() string {
	return b.typeName
}

// StorageGroup returns the storage group the type belongs to, empty for the default group
func (b *typeBase) StorageGroup() string {
	return b.storageGroup
}

// DefaultStorageClass returns the storage class applied to properties that
// do not declare one
func (b *typeBase) DefaultStorageClass() StorageClass {
	return b.defaultStorageClass
}

// State returns the lifecycle state
func (b *typeBase) State() State {
	return b.state
}

// IsReadOnly reports whether the node is frozen
func (b *typeBase) IsReadOnly() bool {
	return b.state == StateFrozen
}

func (b *typeBase) checkNotReadOnly() error {
	if b.state == StateFrozen {
		return newStateError(b.typeName, "type '%s' is read-only", b.typeName)
	}
	return nil
}

func (b *typeBase) refreshState() {
	if b.state >= StateValidated {
		return
	}
	populated := b.propertyDefinitions != nil && b.endPointDefinitions != nil
	switch {
	case populated && b.storageEntity != nil:
		b.state = StateBound
	case populated:
		b.state = StatePopulated
	default:
		b.state = StateConstructed
	}
}

// MyPropertyDefinitions returns the properties declared directly on the type
func (b *typeBase) MyPropertyDefinitions() (*PropertyDefinitionCollection, error) {
	if b.propertyDefinitions == nil {
		return nil, newStateError(b.typeName, "no property definitions set for type '%s'", b.typeName)
	}
	return b.propertyDefinitions, nil
}

// MyRelationEndPointDefinitions returns the end points declared directly on the type
func (b *typeBase) MyRelationEndPointDefinitions() (*EndPointCollection, error) {
	if b.endPointDefinitions == nil {
		return nil, newStateError(b.typeName, "no relation end point definitions set for type '%s'", b.typeName)
	}
	return b.endPointDefinitions, nil
}

// SetPropertyDefinitions sets the own property definitions exactly once.
// Each property must have been created for this node and must not repeat a
// name declared anywhere up the composition chain.
func (b *typeBase) SetPropertyDefinitions(props *PropertyDefinitionCollection) error {
	if err := b.checkNotReadOnly(); err != nil {
		return err
	}
	if b.propertyDefinitions != nil {
		return newStateError(b.typeName, "property definitions for type '%s' have already been set", b.typeName)
	}
	if props == nil {
		props, _ = NewCollection[*PropertyDefinition]()
	}

	ancestors := CompositionOrder(b.self)[1:]
	for _, p := range props.Items() {
		if p.TypeDefinition() != b.self {
			return &MappingError{
				Type:     b.typeName,
				Property: p.PropertyName(),
				Message: "property '" + p.PropertyName() + "' cannot be added to type '" + b.typeName +
					"', because it was created for type '" + typeNameOf(p.TypeDefinition()) + "'",
			}
		}
		if declaring := findDeclaringProperty(ancestors, p.PropertyName()); declaring != nil {
			return &MappingError{
				Type:     b.typeName,
				Property: p.PropertyName(),
				Message: "property '" + p.PropertyName() + "' cannot be added to type '" + b.typeName +
					"', because '" + declaring.TypeName() + "' already declares a property with the same name",
			}
		}
	}

	b.propertyDefinitions = props
	b.refreshState()
	return nil
}

// SetRelationEndPointDefinitions sets the own end points exactly once
func (b *typeBase) SetRelationEndPointDefinitions(endPoints *EndPointCollection) error {
	if err := b.checkNotReadOnly(); err != nil {
		return err
	}
	if b.endPointDefinitions != nil {
		return newStateError(b.typeName, "relation end point definitions for type '%s' have already been set", b.typeName)
	}
	if endPoints == nil {
		endPoints, _ = NewCollection[EndPoint]()
	}

	ancestors := CompositionOrder(b.self)[1:]
	for _, ep := range endPoints.Items() {
		if ep.TypeDefinition() != b.self {
			return &MappingError{
				Type:     b.typeName,
				Property: ep.PropertyName(),
				Message: "relation end point for property '" + ep.PropertyName() + "' cannot be added to type '" +
					b.typeName + "', because it was created for type '" + typeNameOf(ep.TypeDefinition()) + "'",
			}
		}
		if declaring := findDeclaringEndPoint(ancestors, ep.PropertyName()); declaring != nil {
			return &MappingError{
				Type:     b.typeName,
				Property: ep.PropertyName(),
				Message: "relation end point for property '" + ep.PropertyName() + "' cannot be added to type '" +
					b.typeName + "', because '" + declaring.TypeName() + "' already declares a relation end point with the same name",
			}
		}
	}

	b.endPointDefinitions = endPoints
	b.refreshState()
	return nil
}

// StorageEntityDefinition returns the storage binding, nil until bound
func (b *typeBase) StorageEntityDefinition() StorageEntityDefinition {
	return b.storageEntity
}

// SetStorageEntity binds the node to its storage entity exactly once
func (b *typeBase) SetStorageEntity(entity StorageEntityDefinition) error {
	if err := b.checkNotReadOnly(); err != nil {
		return err
	}
	if entity == nil {
		return newStateError(b.typeName, "storage entity for type '%s' cannot be nil", b.typeName)
	}
	if b.storageEntity != nil {
		return newStateError(b.typeName, "storage entity for type '%s' has already been set", b.typeName)
	}
	b.storageEntity = entity
	b.refreshState()
	return nil
}

// GetPropertyDefinitions returns the transitive union of property definitions
func (b *typeBase) GetPropertyDefinitions() (*PropertyDefinitionCollection, error) {
	if b.cachedProperties != nil {
		return b.cachedProperties, nil
	}
	all, err := collectProperties(b.self)
	if err != nil {
		return nil, err
	}
	if b.IsReadOnly() {
		all.SetReadOnly()
		b.cachedProperties = all
	}
	return all, nil
}

// GetRelationEndPointDefinitions returns the transitive union of end points
func (b *typeBase) GetRelationEndPointDefinitions() (*EndPointCollection, error) {
	if b.cachedEndPoints != nil {
		return b.cachedEndPoints, nil
	}
	all, err := collectEndPoints(b.self)
	if err != nil {
		return nil, err
	}
	if b.IsReadOnly() {
		all.SetReadOnly()
		b.cachedEndPoints = all
	}
	return all, nil
}

// GetPropertyDefinition returns the property with the given full name from
// the transitive union
func (b *typeBase) GetPropertyDefinition(propertyName string) (*PropertyDefinition, error) {
	all, err := b.GetPropertyDefinitions()
	if err != nil {
		return nil, err
	}
	if p, ok := all.Get(propertyName); ok {
		return p, nil
	}
	return nil, NewNotFoundError("property", propertyName)
}

// GetRelationEndPointDefinition returns the end point with the given full
// name from the transitive union
func (b *typeBase) GetRelationEndPointDefinition(propertyName string) (EndPoint, error) {
	all, err := b.GetRelationEndPointDefinitions()
	if err != nil {
		return nil, err
	}
	if ep, ok := all.Get(propertyName); ok {
		return ep, nil
	}
	return nil, NewNotFoundError("relation end point", propertyName)
}

// MarkValidated records that the node passed validation
func (b *typeBase) MarkValidated() error {
	if err := b.checkNotReadOnly(); err != nil {
		return err
	}
	if b.state != StateBound {
		return newStateError(b.typeName, "type '%s' cannot be marked validated in state %s", b.typeName, b.state)
	}
	b.state = StateValidated
	return nil
}

func (b *typeBase) freeze() error {
	if b.state == StateFrozen {
		return nil
	}
	if b.storageEntity == nil {
		return newStateError(b.typeName, "cannot set type '%s' read-only: no storage entity set", b.typeName)
	}
	if b.propertyDefinitions == nil {
		return newStateError(b.typeName, "cannot set type '%s' read-only: no property definitions set", b.typeName)
	}
	if b.endPointDefinitions == nil {
		return newStateError(b.typeName, "cannot set type '%s' read-only: no relation end point definitions set", b.typeName)
	}
	b.propertyDefinitions.SetReadOnly()
	b.endPointDefinitions.SetReadOnly()
	b.state = StateFrozen
	return nil
}

// CompositionOrder returns td followed by every node it inherits from: for a
// class the base chain (most derived first) and then the implemented
// interfaces of that chain in declaration order, each followed by the
// interfaces it extends; for an interface its extended interfaces depth
// first. Every node appears once.
func CompositionOrder(td TypeDefinition) []TypeDefinition {
	var order []TypeDefinition
	seen := make(map[TypeDefinition]bool)
	add := func(t TypeDefinition) bool {
		if seen[t] {
			return false
		}
		seen[t] = true
		order = append(order, t)
		return true
	}

	var interfaces []*InterfaceDefinition
	switch n := td.(type) {
	case *ClassDefinition:
		for c := n; c != nil; c = c.baseClass {
			add(c)
			interfaces = append(interfaces, c.implementedInterfaces...)
		}
	case *InterfaceDefinition:
		add(n)
		interfaces = n.extendedInterfaces
	}

	var visit func(i *InterfaceDefinition)
	visit = func(i *InterfaceDefinition) {
		if !add(i) {
			return
		}
		for _, ext := range i.extendedInterfaces {
			visit(ext)
		}
	}
	for _, i := range interfaces {
		visit(i)
	}

	return order
}

func collectProperties(td TypeDefinition) (*PropertyDefinitionCollection, error) {
	all, _ := NewCollection[*PropertyDefinition]()
	for _, node := range CompositionOrder(td) {
		own, err := node.MyPropertyDefinitions()
		if err != nil {
			return nil, err
		}
		for _, p := range own.Items() {
			if all.Contains(p.PropertyName()) {
				continue
			}
			_ = all.Add(p)
		}
	}
	return all, nil
}

func collectEndPoints(td TypeDefinition) (*EndPointCollection, error) {
	all, _ := NewCollection[EndPoint]()
	for _, node := range CompositionOrder(td) {
		own, err := node.MyRelationEndPointDefinitions()
		if err != nil {
			return nil, err
		}
		for _, ep := range own.Items() {
			if all.Contains(ep.PropertyName()) {
				continue
			}
			_ = all.Add(ep)
		}
	}
	return all, nil
}

func findDeclaringProperty(nodes []TypeDefinition, propertyName string) TypeDefinition {
	for _, node := range nodes {
		if own := node.base().propertyDefinitions; own != nil && own.Contains(propertyName) {
			return node
		}
	}
	return nil
}

func findDeclaringEndPoint(nodes []TypeDefinition, propertyName string) TypeDefinition {
	for _, node := range nodes {
		if own := node.base().endPointDefinitions; own != nil && own.Contains(propertyName) {
			return node
		}
	}
	return nil
}

// FindPropertyByShortName resolves a property by its short name, the
// nearest declaring node in composition order winning.
func FindPropertyByShortName(td TypeDefinition, shortName string) (*PropertyDefinition, error) {
	for _, node := range CompositionOrder(td) {
		own, err := node.MyPropertyDefinitions()
		if err != nil {
			return nil, err
		}
		for _, p := range own.Items() {
			if p.ShortName() == shortName {
				return p, nil
			}
		}
	}
	return nil, NewNotFoundError("property", td.TypeName()+"."+shortName)
}

// FindEndPointByShortName resolves a relation end point by its short name,
// the nearest declaring node in composition order winning.
func FindEndPointByShortName(td TypeDefinition, shortName string) (EndPoint, error) {
	for _, node := range CompositionOrder(td) {
		own, err := node.MyRelationEndPointDefinitions()
		if err != nil {
			return nil, err
		}
		for _, ep := range own.Items() {
			if ShortName(ep.PropertyName()) == shortName {
				return ep, nil
			}
		}
	}
	return nil, NewNotFoundError("relation end point", td.TypeName()+"."+shortName)
}

func typeNameOf(td TypeDefinition) string {
	if td == nil {
		return "<nil>"
	}
	return td.TypeName()
}
