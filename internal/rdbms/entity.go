package rdbms

import (
	"github.com/conduit-lang/mapping/internal/mapping"
)

// Names of the columns every table carries
const (
	IDColumnName        = "ID"
	ClassIDColumnName   = "ClassID"
	TimestampColumnName = "Timestamp"
)

// EntityKind distinguishes the storage entity implementations
type EntityKind int

const (
	EntityTable EntityKind = iota
	EntityFilterView
	EntityUnionView
	EntityNull
)

// String returns the string representation of the entity kind
func (k EntityKind) String() string {
	switch k {
	case EntityTable:
		return "table"
	case EntityFilterView:
		return "filter_view"
	case EntityUnionView:
		return "union_view"
	case EntityNull:
		return "null"
	default:
		return "unknown"
	}
}

// ColumnDefinition describes one column of a table or view
type ColumnDefinition struct {
	Name        string
	StorageType string
	Nullable    bool
	PrimaryKey  bool
	// EnumValues are the allowed values of an enum column
	EnumValues []string
}

// withNullable returns a copy of the column that accepts NULL
func (c *ColumnDefinition) withNullable() *ColumnDefinition {
	copied := *c
	copied.Nullable = true
	return &copied
}

// Entity is the RDBMS implementation of mapping.StorageEntityDefinition
type Entity interface {
	mapping.StorageEntityDefinition
	Kind() EntityKind
	Columns() []*ColumnDefinition
}

type entityBase struct {
	name     string
	provider string
	columns  []*ColumnDefinition
}

func (e *entityBase) EntityName() string           { return e.name }
func (e *entityBase) StorageProviderName() string  { return e.provider }
func (e *entityBase) Columns() []*ColumnDefinition { return e.columns }

// Column returns a column by name
func (e *entityBase) Column(name string) (*ColumnDefinition, bool) {
	for _, c := range e.columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// TableDefinition is a physical table holding the instances of a class and
// all classes derived from it
type TableDefinition struct {
	entityBase
}

// NewTableDefinition creates a table entity
func NewTableDefinition(name, provider string, columns []*ColumnDefinition) *TableDefinition {
	return &TableDefinition{entityBase{name: name, provider: provider, columns: columns}}
}

func (t *TableDefinition) Kind() EntityKind { return EntityTable }

// FilterViewDefinition selects the rows of a base table whose ClassID
// belongs to a class or one of its derived classes
type FilterViewDefinition struct {
	entityBase
	base     Entity
	classIDs []string
}

// NewFilterViewDefinition creates a filter view over base
func NewFilterViewDefinition(name string, base Entity, classIDs []string) *FilterViewDefinition {
	return &FilterViewDefinition{
		entityBase: entityBase{name: name, provider: base.StorageProviderName(), columns: base.Columns()},
		base:       base,
		classIDs:   append([]string(nil), classIDs...),
	}
}

func (v *FilterViewDefinition) Kind() EntityKind { return EntityFilterView }

// BaseEntity returns the filtered entity
func (v *FilterViewDefinition) BaseEntity() Entity { return v.base }

// ClassIDs returns the class IDs selected by the view
func (v *FilterViewDefinition) ClassIDs() []string { return v.classIDs }

// UnionViewDefinition combines the rows of several entities. Columns
// missing from one of the unioned entities are selected as NULL.
type UnionViewDefinition struct {
	entityBase
	unioned []Entity
}

// NewUnionViewDefinition creates a union view over the given entities
func NewUnionViewDefinition(name, provider string, unioned []Entity) *UnionViewDefinition {
	return &UnionViewDefinition{
		entityBase: entityBase{name: name, provider: provider, columns: unionColumns(unioned)},
		unioned:    unioned,
	}
}

func (v *UnionViewDefinition) Kind() EntityKind { return EntityUnionView }

// UnionedEntities returns the entities combined by the view
func (v *UnionViewDefinition) UnionedEntities() []Entity { return v.unioned }

// unionColumns merges the columns of all entities in first-seen order; a
// column absent from any entity becomes nullable
func unionColumns(entities []Entity) []*ColumnDefinition {
	var columns []*ColumnDefinition
	index := make(map[string]int)
	counts := make(map[string]int)

	for _, e := range entities {
		for _, c := range e.Columns() {
			counts[c.Name]++
			if _, ok := index[c.Name]; ok {
				continue
			}
			index[c.Name] = len(columns)
			columns = append(columns, c)
		}
	}
	for i, c := range columns {
		if counts[c.Name] < len(entities) && !c.Nullable {
			columns[i] = c.withNullable()
		}
	}
	return columns
}

// NullEntityDefinition is the entity of a class that has no storage, such
// as an abstract class without any table below it
type NullEntityDefinition struct {
	entityBase
}

// NewNullEntityDefinition creates an entity without storage
func NewNullEntityDefinition(provider string) *NullEntityDefinition {
	return &NullEntityDefinition{entityBase{provider: provider}}
}

func (n *NullEntityDefinition) Kind() EntityKind { return EntityNull }

// SimpleStoragePropertyDefinition maps a value property to one column
type SimpleStoragePropertyDefinition struct {
	column *ColumnDefinition
}

// Column returns the backing column
func (s *SimpleStoragePropertyDefinition) Column() *ColumnDefinition { return s.column }

func (s *SimpleStoragePropertyDefinition) ColumnNames() []string {
	return []string{s.column.Name}
}

// ObjectIDStoragePropertyDefinition maps a relation property to its
// foreign key column and, when the target class is part of an inheritance
// hierarchy, a column holding the class ID of the referenced object
type ObjectIDStoragePropertyDefinition struct {
	value   *ColumnDefinition
	classID *ColumnDefinition
}

// ValueColumn returns the foreign key column
func (s *ObjectIDStoragePropertyDefinition) ValueColumn() *ColumnDefinition { return s.value }

// ClassIDColumn returns the class ID column, nil when not needed
func (s *ObjectIDStoragePropertyDefinition) ClassIDColumn() *ColumnDefinition { return s.classID }

func (s *ObjectIDStoragePropertyDefinition) ColumnNames() []string {
	if s.classID == nil {
		return []string{s.value.Name}
	}
	return []string{s.value.Name, s.classID.Name}
}

func (s *ObjectIDStoragePropertyDefinition) columns() []*ColumnDefinition {
	if s.classID == nil {
		return []*ColumnDefinition{s.value}
	}
	return []*ColumnDefinition{s.value, s.classID}
}
