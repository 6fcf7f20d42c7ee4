// Package mixins resolves which mixins are active on a class and which of
// them contribute persistent state.
package mixins

import (
	"github.com/conduit-lang/mapping/internal/discovery"
)

// ClassContext is the active mixin configuration of one type
type ClassContext struct {
	Type   string
	Mixins []string
}

// Contains reports whether the mixin is active in the context
func (c *ClassContext) Contains(mixin string) bool {
	for _, m := range c.Mixins {
		if m == mixin {
			return true
		}
	}
	return false
}

// Configuration computes class contexts from the declared mixins of a
// domain. A class inherits the active mixins of its base type, minus the
// ones it suppresses, plus its own.
type Configuration struct {
	domain   *discovery.Domain
	contexts map[string]*ClassContext
}

// NewConfiguration creates a mixin configuration for domain
func NewConfiguration(domain *discovery.Domain) *Configuration {
	return &Configuration{
		domain:   domain,
		contexts: make(map[string]*ClassContext),
	}
}

// Domain returns the domain the configuration was built from
func (c *Configuration) Domain() *discovery.Domain {
	return c.domain
}

// ClassContext returns the active mixins of typeName
func (c *Configuration) ClassContext(typeName string) *ClassContext {
	return c.classContext(typeName, make(map[string]bool))
}

func (c *Configuration) classContext(typeName string, visiting map[string]bool) *ClassContext {
	if ctx, ok := c.contexts[typeName]; ok {
		return ctx
	}

	ctx := &ClassContext{Type: typeName}
	t, ok := c.domain.Type(typeName)
	if !ok || visiting[typeName] {
		return ctx
	}
	visiting[typeName] = true

	suppressed := make(map[string]bool, len(t.SuppressedMixins))
	for _, m := range t.SuppressedMixins {
		suppressed[m] = true
	}

	if t.Base != "" {
		for _, m := range c.classContext(t.Base, visiting).Mixins {
			if !suppressed[m] {
				ctx.Mixins = append(ctx.Mixins, m)
			}
		}
	}
	for _, m := range t.Mixins {
		if !ctx.Contains(m) {
			ctx.Mixins = append(ctx.Mixins, m)
		}
	}

	c.contexts[typeName] = ctx
	return ctx
}

// MappedParent returns the nearest mapped base type of typeName, empty for
// inheritance roots
func (c *Configuration) MappedParent(typeName string) string {
	for _, base := range c.domain.BaseChain(typeName) {
		if !base.IgnoreForMapping {
			return base.Name
		}
	}
	return ""
}

// IsPersistent reports whether the mixin contributes persistent state
func (c *Configuration) IsPersistent(mixin string) bool {
	m, ok := c.domain.Mixin(mixin)
	return ok && m.Persistent
}
