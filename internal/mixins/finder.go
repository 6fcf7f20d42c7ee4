package mixins

import (
	"fmt"

	"github.com/conduit-lang/mapping/internal/mapping"
)

// PersistentMixinFinder finds the persistence-relevant mixins of one class
type PersistentMixinFinder struct {
	config           *Configuration
	typeName         string
	includeInherited bool
}

var _ mapping.PersistentMixinFinder = (*PersistentMixinFinder)(nil)

// NewPersistentMixinFinder creates a finder for typeName. Without
// includeInherited, mixins already active on the mapped parent class are
// left out because they belong to the parent's definition.
func NewPersistentMixinFinder(config *Configuration, typeName string, includeInherited bool) *PersistentMixinFinder {
	return &PersistentMixinFinder{
		config:           config,
		typeName:         typeName,
		includeInherited: includeInherited,
	}
}

// IncludeInherited reports whether mixins of base classes are included
func (f *PersistentMixinFinder) IncludeInherited() bool {
	return f.includeInherited
}

// TypeName returns the class the finder was created for
func (f *PersistentMixinFinder) TypeName() string {
	return f.typeName
}

func (f *PersistentMixinFinder) parentContext() *ClassContext {
	parent := f.config.MappedParent(f.typeName)
	if parent == "" {
		return nil
	}
	return f.config.ClassContext(parent)
}

// PersistentMixins returns the persistence-relevant mixins of the class in
// configuration order. It fails when the class suppresses a persistent
// mixin of its base class or when a persistent mixin has open type
// parameters.
func (f *PersistentMixinFinder) PersistentMixins() ([]string, error) {
	ctx := f.config.ClassContext(f.typeName)
	parent := f.parentContext()

	if parent != nil {
		for _, m := range parent.Mixins {
			if f.config.IsPersistent(m) && !ctx.Contains(m) {
				return nil, &mapping.MappingError{
					Type: f.typeName,
					Message: fmt.Sprintf("class '%s' suppresses mixin '%s' from its base class '%s', "+
						"which is not allowed because the mixin adds persistent state to the base class",
						f.typeName, m, parent.Type),
					Hint: "remove the suppression or apply the mixin to the derived classes individually",
				}
			}
		}
	}

	var result []string
	for _, m := range ctx.Mixins {
		if !f.config.IsPersistent(m) {
			continue
		}
		if descriptor, ok := f.config.Domain().Mixin(m); ok && descriptor.IsOpenGeneric() {
			return nil, &mapping.MappingError{
				Type: f.typeName,
				Message: fmt.Sprintf("the persistence-relevant mixin '%s' applied to class '%s' has open generic type parameters",
					m, f.typeName),
				Hint: "all type parameters of the mixin must be specified when it is applied to a persistent class",
			}
		}
		if !f.includeInherited && parent != nil && parent.Contains(m) {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

// FindOriginalMixinTarget returns the class that first introduced the mixin
// by walking up the mapped base chain. It returns an empty string when the
// mixin is not active on the class.
func (f *PersistentMixinFinder) FindOriginalMixinTarget(mixin string) (string, error) {
	ctx := f.config.ClassContext(f.typeName)
	if !ctx.Contains(mixin) {
		return "", nil
	}

	parent := f.parentContext()
	if !f.includeInherited && parent != nil && parent.Contains(mixin) {
		return "", mapping.NewStateError(f.typeName,
			"mixin '%s' is inherited from '%s' but the finder for '%s' does not include inherited mixins",
			mixin, parent.Type, f.typeName)
	}

	current := f.typeName
	for {
		p := f.config.MappedParent(current)
		if p == "" || !f.config.ClassContext(p).Contains(mixin) {
			return current, nil
		}
		current = p
	}
}
