package discovery

import (
	"fmt"
	"strings"
)

// Service supplies the candidate domain of a mapping configuration
type Service interface {
	Discover() (*Domain, error)
}

// Domain is an ordered set of type and mixin descriptors
type Domain struct {
	Types  []*TypeDescriptor  `yaml:"types"`
	Mixins []*MixinDescriptor `yaml:"mixins,omitempty"`

	typeIndex  map[string]*TypeDescriptor
	mixinIndex map[string]*MixinDescriptor
}

// NewDomain creates an empty domain
func NewDomain() *Domain {
	return &Domain{}
}

// Discover implements Service for an in-memory domain
func (d *Domain) Discover() (*Domain, error) {
	return d, nil
}

// DiscoverCandidateTypes returns the type descriptors in declaration order,
// duplicates removed
func (d *Domain) DiscoverCandidateTypes() []*TypeDescriptor {
	return Dedupe(d.Types)
}

// Dedupe removes descriptors whose name was already seen, keeping the first
// occurrence
func Dedupe(types []*TypeDescriptor) []*TypeDescriptor {
	seen := make(map[string]bool, len(types))
	result := make([]*TypeDescriptor, 0, len(types))
	for _, t := range types {
		if t == nil || seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		result = append(result, t)
	}
	return result
}

// Merge appends the descriptors of other
func (d *Domain) Merge(other *Domain) {
	if other == nil {
		return
	}
	d.Types = append(d.Types, other.Types...)
	d.Mixins = append(d.Mixins, other.Mixins...)
	d.typeIndex = nil
	d.mixinIndex = nil
}

// AddType appends a type descriptor
func (d *Domain) AddType(t *TypeDescriptor) {
	d.Types = append(d.Types, t)
	d.typeIndex = nil
}

// AddMixin appends a mixin descriptor
func (d *Domain) AddMixin(m *MixinDescriptor) {
	d.Mixins = append(d.Mixins, m)
	d.mixinIndex = nil
}

func (d *Domain) index() {
	if d.typeIndex != nil && d.mixinIndex != nil {
		return
	}
	d.typeIndex = make(map[string]*TypeDescriptor, len(d.Types))
	for _, t := range d.Types {
		if t == nil {
			continue
		}
		if _, exists := d.typeIndex[t.Name]; !exists {
			d.typeIndex[t.Name] = t
		}
	}
	d.mixinIndex = make(map[string]*MixinDescriptor, len(d.Mixins))
	for _, m := range d.Mixins {
		if m == nil {
			continue
		}
		if _, exists := d.mixinIndex[m.Name]; !exists {
			d.mixinIndex[m.Name] = m
		}
	}
}

// Type returns the descriptor with the given name
func (d *Domain) Type(name string) (*TypeDescriptor, bool) {
	d.index()
	t, ok := d.typeIndex[name]
	return t, ok
}

// Mixin returns the mixin with the given name
func (d *Domain) Mixin(name string) (*MixinDescriptor, bool) {
	d.index()
	m, ok := d.mixinIndex[name]
	return m, ok
}

// IsMapped reports whether the type is known and not ignored for mapping
func (d *Domain) IsMapped(name string) bool {
	t, ok := d.Type(name)
	return ok && !t.IgnoreForMapping
}

// Validate checks the descriptors for structural problems that make the
// domain unusable: missing names, unknown kinds, unknown base types,
// interfaces used as base classes and mixins that are not declared.
func (d *Domain) Validate() error {
	var errs []string

	for i, t := range d.Types {
		if t == nil {
			errs = append(errs, fmt.Sprintf("type #%d is empty", i))
			continue
		}
		if t.Name == "" {
			errs = append(errs, fmt.Sprintf("type #%d has no name", i))
			continue
		}
		switch t.Kind {
		case "":
			t.Kind = KindClass
		case KindClass, KindInterface:
		default:
			errs = append(errs, fmt.Sprintf("type %s has unknown kind '%s'", t.Name, t.Kind))
		}
		if t.Base != "" {
			base, ok := d.Type(t.Base)
			switch {
			case !ok:
				errs = append(errs, fmt.Sprintf("type %s has unknown base type %s", t.Name, t.Base))
			case t.IsInterface():
				errs = append(errs, fmt.Sprintf("interface %s cannot have a base type, use interfaces", t.Name))
			case base.IsInterface():
				errs = append(errs, fmt.Sprintf("class %s cannot derive from interface %s", t.Name, t.Base))
			}
		}
		for _, m := range append(append([]string(nil), t.Mixins...), t.SuppressedMixins...) {
			if _, ok := d.Mixin(m); !ok {
				errs = append(errs, fmt.Sprintf("type %s references unknown mixin %s", t.Name, m))
			}
		}
		for _, p := range t.Properties {
			if p.Name == "" {
				errs = append(errs, fmt.Sprintf("type %s has a property without name", t.Name))
			}
		}
	}

	for i, m := range d.Mixins {
		if m == nil || m.Name == "" {
			errs = append(errs, fmt.Sprintf("mixin #%d has no name", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("domain validation failed with %d errors:\n  %s", len(errs), strings.Join(errs, "\n  "))
	}
	return nil
}

// BaseChain returns the base types of name from the direct base upward
func (d *Domain) BaseChain(name string) []*TypeDescriptor {
	var chain []*TypeDescriptor
	seen := map[string]bool{name: true}
	t, ok := d.Type(name)
	for ok && t.Base != "" && !seen[t.Base] {
		seen[t.Base] = true
		t, ok = d.Type(t.Base)
		if ok {
			chain = append(chain, t)
		}
	}
	return chain
}

// PropertyOwner is the descriptor declaring a property: a type or a mixin
type PropertyOwner struct {
	Name     string
	Mixin    bool
	Property *PropertyDescriptor
}

// FindProperty looks up a property by short name on typeName: first the
// type and its mixins, then the base chain, then the interfaces of the
// type and of its bases in declaration order.
func (d *Domain) FindProperty(typeName, shortName string) (PropertyOwner, bool) {
	start, ok := d.Type(typeName)
	if !ok {
		return PropertyOwner{}, false
	}

	chain := append([]*TypeDescriptor{start}, d.BaseChain(typeName)...)
	for _, t := range chain {
		if p, ok := t.Property(shortName); ok {
			return PropertyOwner{Name: t.Name, Property: p}, true
		}
		for _, mixinName := range t.Mixins {
			if m, ok := d.Mixin(mixinName); ok {
				if p, ok := m.Property(shortName); ok {
					return PropertyOwner{Name: m.Name, Mixin: true, Property: p}, true
				}
			}
		}
	}

	visited := make(map[string]bool)
	var visit func(name string) (PropertyOwner, bool)
	visit = func(name string) (PropertyOwner, bool) {
		if visited[name] {
			return PropertyOwner{}, false
		}
		visited[name] = true
		iface, ok := d.Type(name)
		if !ok {
			return PropertyOwner{}, false
		}
		if p, ok := iface.Property(shortName); ok {
			return PropertyOwner{Name: iface.Name, Property: p}, true
		}
		for _, ext := range iface.Interfaces {
			if owner, ok := visit(ext); ok {
				return owner, true
			}
		}
		return PropertyOwner{}, false
	}
	for _, t := range chain {
		for _, name := range t.Interfaces {
			if owner, ok := visit(name); ok {
				return owner, true
			}
		}
	}

	return PropertyOwner{}, false
}
