package discovery

// Builder assembles a Domain programmatically
type Builder struct {
	domain *Domain
}

// NewBuilder creates an empty domain builder
func NewBuilder() *Builder {
	return &Builder{domain: NewDomain()}
}

// Class adds a class descriptor
func (b *Builder) Class(name string) *TypeBuilder {
	t := &TypeDescriptor{Name: name, Kind: KindClass}
	b.domain.AddType(t)
	return &TypeBuilder{t: t}
}

// Interface adds an interface descriptor
func (b *Builder) Interface(name string) *TypeBuilder {
	t := &TypeDescriptor{Name: name, Kind: KindInterface}
	b.domain.AddType(t)
	return &TypeBuilder{t: t}
}

// Mixin adds a mixin descriptor
func (b *Builder) Mixin(name string) *MixinBuilder {
	m := &MixinDescriptor{Name: name}
	b.domain.AddMixin(m)
	return &MixinBuilder{m: m}
}

// Domain returns the domain without validating it
func (b *Builder) Domain() *Domain {
	return b.domain
}

// Build validates and returns the domain
func (b *Builder) Build() (*Domain, error) {
	if err := b.domain.Validate(); err != nil {
		return nil, err
	}
	return b.domain, nil
}

// PropertyOption configures a property descriptor
type PropertyOption func(*PropertyDescriptor)

// Nullable marks the property nullable
func Nullable() PropertyOption {
	return func(p *PropertyDescriptor) { p.Nullable = true }
}

// MaxLength sets the maximum length
func MaxLength(n int) PropertyOption {
	return func(p *PropertyDescriptor) { p.MaxLength = &n }
}

// WithStorageClass sets the storage class ("persistent", "transaction", "none")
func WithStorageClass(storageClass string) PropertyOption {
	return func(p *PropertyDescriptor) { p.StorageClass = storageClass }
}

// Column sets an explicit column name
func Column(name string) PropertyOption {
	return func(p *PropertyDescriptor) { p.Column = name }
}

// EnumValues sets the values of an enum property
func EnumValues(values ...string) PropertyOption {
	return func(p *PropertyDescriptor) { p.EnumValues = values }
}

func newProperty(name, kind string, opts []PropertyOption) PropertyDescriptor {
	p := PropertyDescriptor{Name: name, Kind: kind}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func newRelationProperty(name string, rel RelationDescriptor, opts []PropertyOption) PropertyDescriptor {
	kind := "object_id"
	if rel.Collection {
		kind = ""
	}
	p := newProperty(name, kind, opts)
	r := rel
	p.Relation = &r
	return p
}

// TypeBuilder configures a type descriptor
type TypeBuilder struct {
	t *TypeDescriptor
}

// Descriptor returns the descriptor being built
func (tb *TypeBuilder) Descriptor() *TypeDescriptor {
	return tb.t
}

// Base sets the base class
func (tb *TypeBuilder) Base(name string) *TypeBuilder {
	tb.t.Base = name
	return tb
}

// Implements adds implemented interfaces of a class
func (tb *TypeBuilder) Implements(names ...string) *TypeBuilder {
	tb.t.Interfaces = append(tb.t.Interfaces, names...)
	return tb
}

// Extends adds extended interfaces of an interface
func (tb *TypeBuilder) Extends(names ...string) *TypeBuilder {
	tb.t.Interfaces = append(tb.t.Interfaces, names...)
	return tb
}

// Abstract marks the class abstract
func (tb *TypeBuilder) Abstract() *TypeBuilder {
	tb.t.Abstract = true
	return tb
}

// ClassID sets an explicit class ID
func (tb *TypeBuilder) ClassID(id string) *TypeBuilder {
	tb.t.ClassID = id
	return tb
}

// Table requests an own table for the class
func (tb *TypeBuilder) Table(name string) *TypeBuilder {
	tb.t.Table = name
	return tb
}

// StorageGroup sets the storage group
func (tb *TypeBuilder) StorageGroup(name string) *TypeBuilder {
	tb.t.StorageGroup = name
	return tb
}

// DefaultStorageClass sets the storage class for properties that do not declare one
func (tb *TypeBuilder) DefaultStorageClass(storageClass string) *TypeBuilder {
	tb.t.DefaultStorageClass = storageClass
	return tb
}

// IgnoreForMapping keeps the type out of the mapping
func (tb *TypeBuilder) IgnoreForMapping() *TypeBuilder {
	tb.t.IgnoreForMapping = true
	return tb
}

// Generic declares open type parameters
func (tb *TypeBuilder) Generic(params ...string) *TypeBuilder {
	tb.t.GenericParameters = append(tb.t.GenericParameters, params...)
	return tb
}

// WithMixins applies mixins to the class
func (tb *TypeBuilder) WithMixins(names ...string) *TypeBuilder {
	tb.t.Mixins = append(tb.t.Mixins, names...)
	return tb
}

// SuppressMixins removes mixins inherited from the base class
func (tb *TypeBuilder) SuppressMixins(names ...string) *TypeBuilder {
	tb.t.SuppressedMixins = append(tb.t.SuppressedMixins, names...)
	return tb
}

// Property adds a value property
func (tb *TypeBuilder) Property(name, kind string, opts ...PropertyOption) *TypeBuilder {
	tb.t.Properties = append(tb.t.Properties, newProperty(name, kind, opts))
	return tb
}

// Relation adds a relation property
func (tb *TypeBuilder) Relation(name string, rel RelationDescriptor, opts ...PropertyOption) *TypeBuilder {
	tb.t.Properties = append(tb.t.Properties, newRelationProperty(name, rel, opts))
	return tb
}

// MixinBuilder configures a mixin descriptor
type MixinBuilder struct {
	m *MixinDescriptor
}

// Persistent marks the mixin persistence relevant
func (mb *MixinBuilder) Persistent() *MixinBuilder {
	mb.m.Persistent = true
	return mb
}

// Generic declares open type parameters
func (mb *MixinBuilder) Generic(params ...string) *MixinBuilder {
	mb.m.GenericParameters = append(mb.m.GenericParameters, params...)
	return mb
}

// Introduces declares interfaces the mixin adds to its target
func (mb *MixinBuilder) Introduces(names ...string) *MixinBuilder {
	mb.m.Introduces = append(mb.m.Introduces, names...)
	return mb
}

// Property adds a value property
func (mb *MixinBuilder) Property(name, kind string, opts ...PropertyOption) *MixinBuilder {
	mb.m.Properties = append(mb.m.Properties, newProperty(name, kind, opts))
	return mb
}

// Relation adds a relation property
func (mb *MixinBuilder) Relation(name string, rel RelationDescriptor, opts ...PropertyOption) *MixinBuilder {
	mb.m.Properties = append(mb.m.Properties, newRelationProperty(name, rel, opts))
	return mb
}
