package mapping

import "fmt"

// Named is implemented by everything stored in a definition collection
type Named interface {
	PropertyName() string
}

// Collection is an ordered set of definitions indexed by full property name.
// Once read-only it rejects every mutation.
type Collection[T Named] struct {
	items    []T
	index    map[string]T
	readOnly bool
}

// PropertyDefinitionCollection holds property definitions
type PropertyDefinitionCollection = Collection[*PropertyDefinition]

// EndPointCollection holds relation end-point definitions
type EndPointCollection = Collection[EndPoint]

// NewCollection creates a collection from items, rejecting duplicate names
func NewCollection[T Named](items ...T) (*Collection[T], error) {
	c := &Collection[T]{
		items: make([]T, 0, len(items)),
		index: make(map[string]T, len(items)),
	}
	for _, item := range items {
		if err := c.Add(item); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add appends an item
func (c *Collection[T]) Add(item T) error {
	if c.readOnly {
		return newStateError("", "collection is read-only")
	}
	name := item.PropertyName()
	if _, exists := c.index[name]; exists {
		return &MappingError{Property: name, Message: fmt.Sprintf("collection already contains '%s'", name)}
	}
	c.items = append(c.items, item)
	c.index[name] = item
	return nil
}

// Get returns the item with the given full name
func (c *Collection[T]) Get(name string) (T, bool) {
	item, ok := c.index[name]
	return item, ok
}

// Contains reports whether an item with the given full name exists
func (c *Collection[T]) Contains(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Len returns the number of items
func (c *Collection[T]) Len() int {
	return len(c.items)
}

// Items returns a copy of the items in insertion order
func (c *Collection[T]) Items() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Names returns the full names in insertion order
func (c *Collection[T]) Names() []string {
	names := make([]string, len(c.items))
	for i, item := range c.items {
		names[i] = item.PropertyName()
	}
	return names
}

// SetReadOnly freezes the collection
func (c *Collection[T]) SetReadOnly() {
	c.readOnly = true
}

// IsReadOnly reports whether the collection is frozen
func (c *Collection[T]) IsReadOnly() bool {
	return c.readOnly
}
