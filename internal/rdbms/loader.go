package rdbms

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/mapping/internal/discovery"
	"github.com/conduit-lang/mapping/internal/mapping"
)

type storageProperty interface {
	mapping.StoragePropertyDefinition
	columns() []*ColumnDefinition
}

func (s *SimpleStoragePropertyDefinition) columns() []*ColumnDefinition {
	return []*ColumnDefinition{s.column}
}

// PersistenceModelLoader binds tables, views and columns onto class
// hierarchies and interfaces. Table names come from the type descriptors of
// the domain.
type PersistenceModelLoader struct {
	domain     *discovery.Domain
	providers  *ProviderRegistry
	logger     *zap.Logger
	properties map[*mapping.PropertyDefinition]storageProperty
}

// LoaderOption configures a PersistenceModelLoader
type LoaderOption func(*PersistenceModelLoader)

// WithLoaderLogger sets the logger of the loader
func WithLoaderLogger(logger *zap.Logger) LoaderOption {
	return func(l *PersistenceModelLoader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewPersistenceModelLoader creates a loader for the given domain. A nil
// registry routes everything to a single PostgreSQL provider.
func NewPersistenceModelLoader(domain *discovery.Domain, providers *ProviderRegistry, opts ...LoaderOption) *PersistenceModelLoader {
	if providers == nil {
		providers = NewDefaultProviderRegistry()
	}
	l := &PersistenceModelLoader{
		domain:     domain,
		providers:  providers,
		logger:     zap.NewNop(),
		properties: make(map[*mapping.PropertyDefinition]storageProperty),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Providers returns the provider registry of the loader
func (l *PersistenceModelLoader) Providers() *ProviderRegistry {
	return l.providers
}

// ApplyPersistenceModelToHierarchy assigns an entity to every class of the
// tree rooted at root and a storage property to every persistent property
// declared by those classes. Tables are created first so that the views
// of the remaining classes can refer to them.
func (l *PersistenceModelLoader) ApplyPersistenceModelToHierarchy(root *mapping.ClassDefinition) error {
	if root == nil {
		return fmt.Errorf("inheritance root cannot be nil")
	}
	classes := append([]*mapping.ClassDefinition{root}, root.GetAllDerivedClasses()...)
	entities := make(map[*mapping.ClassDefinition]Entity, len(classes))

	for _, c := range classes {
		name := l.tableName(c)
		if name == "" {
			continue
		}
		table, err := l.createTable(c, name)
		if err != nil {
			return err
		}
		entities[c] = table
	}

	for _, c := range classes {
		if _, ok := entities[c]; ok {
			continue
		}
		entities[c] = l.createView(c, entities)
	}

	for _, c := range classes {
		if err := c.SetStorageEntity(entities[c]); err != nil {
			return err
		}
		if err := l.bindOwnProperties(c, l.providers.ProviderFor(c.StorageGroup()).Dialect); err != nil {
			return err
		}
	}

	l.logger.Debug("persistence model applied",
		zap.String("root", root.TypeName()),
		zap.Int("classes", len(classes)))
	return nil
}

// ApplyPersistenceModelToInterface binds a union view over the entities of
// all implementing classes. Classes whose base class also implements the
// interface are covered by the entity of that base class.
func (l *PersistenceModelLoader) ApplyPersistenceModelToInterface(iface *mapping.InterfaceDefinition) error {
	if iface == nil {
		return fmt.Errorf("interface cannot be nil")
	}
	provider := l.providers.ProviderFor(iface.StorageGroup())

	implementing := iface.GetAllImplementingClasses()
	var unioned []Entity
	seen := make(map[string]bool)
	for _, c := range implementing {
		if hasAncestorIn(c, implementing) {
			continue
		}
		entity, ok := c.StorageEntityDefinition().(Entity)
		if !ok || entity.Kind() == EntityNull || seen[entity.EntityName()] {
			continue
		}
		seen[entity.EntityName()] = true
		unioned = append(unioned, entity)
	}

	var entity Entity
	if len(unioned) == 0 {
		entity = NewNullEntityDefinition(provider.Name)
	} else {
		entity = NewUnionViewDefinition(viewName(iface), provider.Name, unioned)
	}
	if err := iface.SetStorageEntity(entity); err != nil {
		return err
	}
	return l.bindOwnProperties(iface, provider.Dialect)
}

// CreatePersistenceMappingValidator returns the RDBMS rules for one
// inheritance tree
func (l *PersistenceModelLoader) CreatePersistenceMappingValidator(root *mapping.ClassDefinition) mapping.PersistenceMappingValidator {
	return NewPersistenceValidator(l.providers)
}

func (l *PersistenceModelLoader) tableName(c *mapping.ClassDefinition) string {
	if l.domain == nil {
		return ""
	}
	t, ok := l.domain.Type(c.TypeName())
	if !ok {
		return ""
	}
	return t.Table
}

// createTable builds the table of c. It holds the columns of c and of every
// derived class stored in it; columns of derived classes are nullable.
func (l *PersistenceModelLoader) createTable(c *mapping.ClassDefinition, name string) (*TableDefinition, error) {
	provider := l.providers.ProviderFor(c.StorageGroup())
	dialect := provider.Dialect

	columns := []*ColumnDefinition{
		{Name: IDColumnName, StorageType: dialect.IDType(), PrimaryKey: true},
		{Name: ClassIDColumnName, StorageType: dialect.ClassIDType()},
		{Name: TimestampColumnName, StorageType: dialect.TimestampType()},
	}
	seen := map[string]bool{IDColumnName: true, ClassIDColumnName: true, TimestampColumnName: true}

	add := func(td mapping.TypeDefinition, nullable bool) error {
		props, err := td.GetPropertyDefinitions()
		if err != nil {
			return err
		}
		for _, p := range props.Items() {
			if !p.IsPersistent() {
				continue
			}
			for _, column := range l.storagePropertyFor(p, dialect).columns() {
				if seen[column.Name] {
					continue
				}
				seen[column.Name] = true
				if nullable && !column.Nullable {
					column = column.withNullable()
				}
				columns = append(columns, column)
			}
		}
		return nil
	}

	if err := add(c, false); err != nil {
		return nil, err
	}
	for _, d := range l.storedIn(c) {
		if d == c {
			continue
		}
		if err := add(d, true); err != nil {
			return nil, err
		}
	}

	return NewTableDefinition(name, provider.Name, columns), nil
}

// createView builds the entity of a class without an own table: a filter
// view when a base class has a table, a union view over the nearest tables
// below it otherwise, and a null entity when no table exists at all
func (l *PersistenceModelLoader) createView(c *mapping.ClassDefinition, entities map[*mapping.ClassDefinition]Entity) Entity {
	provider := l.providers.ProviderFor(c.StorageGroup())

	for base := c.BaseClass(); base != nil; base = base.BaseClass() {
		if table, ok := entities[base]; ok && table.Kind() == EntityTable {
			var classIDs []string
			for _, d := range l.storedIn(c) {
				classIDs = append(classIDs, d.ID())
			}
			return NewFilterViewDefinition(viewName(c), table, classIDs)
		}
	}

	var tables []Entity
	var collect func(cd *mapping.ClassDefinition)
	collect = func(cd *mapping.ClassDefinition) {
		derived, _ := cd.DerivedClasses()
		for _, d := range derived {
			if table, ok := entities[d]; ok && table.Kind() == EntityTable {
				tables = append(tables, table)
				continue
			}
			collect(d)
		}
	}
	collect(c)

	if len(tables) == 0 {
		return NewNullEntityDefinition(provider.Name)
	}
	return NewUnionViewDefinition(viewName(c), provider.Name, tables)
}

// storedIn returns c and the derived classes whose instances live in the
// same table as those of c, stopping at classes with an own table
func (l *PersistenceModelLoader) storedIn(c *mapping.ClassDefinition) []*mapping.ClassDefinition {
	result := []*mapping.ClassDefinition{c}
	var walk func(cd *mapping.ClassDefinition)
	walk = func(cd *mapping.ClassDefinition) {
		derived, _ := cd.DerivedClasses()
		for _, d := range derived {
			if l.tableName(d) != "" {
				continue
			}
			result = append(result, d)
			walk(d)
		}
	}
	walk(c)
	return result
}

// bindOwnProperties assigns storage properties to the persistent properties
// declared by td. Properties already bound keep their binding.
func (l *PersistenceModelLoader) bindOwnProperties(td mapping.TypeDefinition, dialect Dialect) error {
	own, err := td.MyPropertyDefinitions()
	if err != nil {
		return err
	}
	for _, p := range own.Items() {
		if !p.IsPersistent() || p.StoragePropertyDefinition() != nil {
			continue
		}
		if err := p.SetStorageProperty(l.storagePropertyFor(p, dialect)); err != nil {
			return err
		}
	}
	return nil
}

// storagePropertyFor returns the storage property of p, creating it on
// first use. Shared definitions such as interface properties get one
// storage property for all tables they appear in.
func (l *PersistenceModelLoader) storagePropertyFor(p *mapping.PropertyDefinition, dialect Dialect) storageProperty {
	if sp, ok := l.properties[p]; ok {
		return sp
	}

	var sp storageProperty
	if p.IsObjectID() {
		name := p.StorageName()
		if name == "" {
			name = p.ShortName() + IDColumnName
		}
		objectID := &ObjectIDStoragePropertyDefinition{
			value: &ColumnDefinition{Name: name, StorageType: dialect.IDType(), Nullable: true},
		}
		if needsClassIDColumn(p) {
			objectID.classID = &ColumnDefinition{Name: name + ClassIDColumnName, StorageType: dialect.ClassIDType(), Nullable: true}
		}
		sp = objectID
	} else {
		name := p.StorageName()
		if name == "" {
			name = p.ShortName()
		}
		// An unsupported kind leaves the storage type empty; the persistence
		// validator reports it
		storageType, _ := dialect.MapType(p)
		sp = &SimpleStoragePropertyDefinition{column: &ColumnDefinition{
			Name:        name,
			StorageType: storageType,
			Nullable:    p.IsNullable(),
			EnumValues:  p.EnumValues(),
		}}
	}

	l.properties[p] = sp
	return sp
}

// needsClassIDColumn reports whether the target of a relation property can
// be one of several classes
func needsClassIDColumn(p *mapping.PropertyDefinition) bool {
	owner := p.TypeDefinition()
	if owner == nil {
		return false
	}
	endPoints, err := owner.MyRelationEndPointDefinitions()
	if err != nil {
		return false
	}
	ep, ok := endPoints.Get(p.PropertyName())
	if !ok || ep.RelationDefinition() == nil {
		return false
	}
	switch target := ep.RelationDefinition().GetOppositeTypeDefinition(ep).(type) {
	case *mapping.ClassDefinition:
		return target.IsPartOfInheritanceHierarchy()
	case *mapping.InterfaceDefinition:
		return true
	default:
		return false
	}
}

func hasAncestorIn(c *mapping.ClassDefinition, classes []*mapping.ClassDefinition) bool {
	for base := c.BaseClass(); base != nil; base = base.BaseClass() {
		for _, other := range classes {
			if other == base {
				return true
			}
		}
	}
	return false
}

func viewName(td mapping.TypeDefinition) string {
	return mapping.ShortTypeName(td.TypeName()) + "View"
}
