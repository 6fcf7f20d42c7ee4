package rdbms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/mapping/internal/discovery"
	"github.com/conduit-lang/mapping/internal/mapping"
	"github.com/conduit-lang/mapping/internal/reflector"
	"github.com/conduit-lang/mapping/internal/testdomain"
)

type model struct {
	types  *reflector.TypeDefinitionCollection
	loader *PersistenceModelLoader
}

func applyModel(t *testing.T, d *discovery.Domain, providers *ProviderRegistry) *model {
	t.Helper()
	factory := reflector.NewMappingObjectFactory(d)
	types, err := reflector.NewTypeDefinitionCollectionFactory(factory).CreateTypeDefinitionCollection(d.DiscoverCandidateTypes())
	require.NoError(t, err)
	_, err = reflector.NewRelationDefinitionCollectionFactory(d).CreateRelationDefinitionCollection(types)
	require.NoError(t, err)

	loader := NewPersistenceModelLoader(d, providers)
	for _, root := range types.InheritanceRoots() {
		require.NoError(t, loader.ApplyPersistenceModelToHierarchy(root))
	}
	for _, iface := range types.Interfaces() {
		require.NoError(t, loader.ApplyPersistenceModelToInterface(iface))
	}
	return &model{types: types, loader: loader}
}

func (m *model) entity(t *testing.T, typeName string) Entity {
	t.Helper()
	td, ok := m.types.Get(typeName)
	require.True(t, ok, "type %s not mapped", typeName)
	entity, ok := td.StorageEntityDefinition().(Entity)
	require.True(t, ok, "type %s has no rdbms entity", typeName)
	return entity
}

func (m *model) class(t *testing.T, typeName string) *mapping.ClassDefinition {
	t.Helper()
	td, ok := m.types.Get(typeName)
	require.True(t, ok)
	return td.(*mapping.ClassDefinition)
}

func columnNames(columns []*ColumnDefinition) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}

func column(t *testing.T, e Entity, name string) *ColumnDefinition {
	t.Helper()
	for _, c := range e.Columns() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("column %s not found in %s", name, e.EntityName())
	return nil
}

func TestApplyPersistenceModelToHierarchy_ConcreteTable(t *testing.T) {
	m := applyModel(t, testdomain.Domain(), nil)

	company := m.entity(t, testdomain.Company)
	require.Equal(t, EntityTable, company.Kind())
	assert.Equal(t, "Company", company.EntityName())
	assert.Equal(t, "default", company.StorageProviderName())
	assert.Equal(t, []string{
		"ID", "ClassID", "Timestamp",
		"Name", "IndustrialSector", "CreatedBy",
		"CustomerSince", "Type", "NumberOfShops", "SupplierQuality",
	}, columnNames(company.Columns()))

	assert.True(t, column(t, company, "ID").PrimaryKey)
	assert.False(t, column(t, company, "Name").Nullable)
	assert.Equal(t, "VARCHAR(100)", column(t, company, "Name").StorageType)
	assert.True(t, column(t, company, "CreatedBy").Nullable)
	assert.Equal(t, "company_industrial_sector_enum", column(t, company, "IndustrialSector").StorageType)

	// Columns of derived classes accept NULL for rows of other classes
	assert.True(t, column(t, company, "Type").Nullable)
	assert.True(t, column(t, company, "SupplierQuality").Nullable)
	assert.Equal(t, "INTEGER", column(t, company, "SupplierQuality").StorageType)
}

func TestApplyPersistenceModelToHierarchy_FilterViews(t *testing.T) {
	m := applyModel(t, testdomain.Domain(), nil)
	company := m.entity(t, testdomain.Company)

	tests := []struct {
		typeName string
		view     string
		classIDs []string
	}{
		{testdomain.Customer, "CustomerView", []string{"Customer"}},
		{testdomain.Partner, "PartnerView", []string{"Partner", "Distributor"}},
		{testdomain.Distributor, "DistributorView", []string{"Distributor"}},
		{testdomain.Supplier, "SupplierView", []string{"Supplier"}},
	}

	for _, tt := range tests {
		t.Run(tt.view, func(t *testing.T) {
			entity := m.entity(t, tt.typeName)
			view, ok := entity.(*FilterViewDefinition)
			require.True(t, ok, "expected a filter view, got %s", entity.Kind())
			assert.Equal(t, tt.view, view.EntityName())
			assert.Same(t, company, view.BaseEntity())
			assert.Equal(t, tt.classIDs, view.ClassIDs())
			assert.Equal(t, columnNames(company.Columns()), columnNames(view.Columns()))
		})
	}
}

func TestApplyPersistenceModelToHierarchy_StorageProperties(t *testing.T) {
	m := applyModel(t, testdomain.Domain(), nil)

	tests := []struct {
		typeName string
		property string
		columns  []string
	}{
		{testdomain.Company, "Sales.Company.Name", []string{"Name"}},
		{testdomain.Customer, "Sales.Customer.Type", []string{"Type"}},
		{testdomain.Order, "Sales.Order.Customer", []string{"CustomerID", "CustomerIDClassID"}},
		{testdomain.Order, "Sales.Order.Official", []string{"OfficialID"}},
		{testdomain.OrderItem, "Sales.OrderItem.Order", []string{"OrderID"}},
		{testdomain.Person, "Sales.Person.AssociatedPartnerCompany", []string{"AssociatedPartnerCompanyID", "AssociatedPartnerCompanyIDClassID"}},
		{testdomain.Employee, "Sales.Employee.Supervisor", []string{"SupervisorID"}},
		{testdomain.Person, "Sales.IContact.EmailAddress", []string{"EmailAddress"}},
	}

	for _, tt := range tests {
		t.Run(tt.property, func(t *testing.T) {
			td, ok := m.types.Get(tt.typeName)
			require.True(t, ok)
			p, err := td.GetPropertyDefinition(tt.property)
			require.NoError(t, err)
			require.NotNil(t, p.StoragePropertyDefinition())
			assert.Equal(t, tt.columns, p.StoragePropertyDefinition().ColumnNames())
		})
	}
}

func TestApplyPersistenceModelToHierarchy_EveryPersistentPropertyBound(t *testing.T) {
	m := applyModel(t, testdomain.Domain(), nil)

	for _, td := range m.types.All() {
		require.NotNil(t, td.StorageEntityDefinition(), "type %s has no entity", td.TypeName())
		props, err := td.GetPropertyDefinitions()
		require.NoError(t, err)
		for _, p := range props.Items() {
			if p.IsPersistent() {
				assert.NotNil(t, p.StoragePropertyDefinition(), "property %s has no storage property", p.PropertyName())
			}
		}
	}
}

func TestApplyPersistenceModelToHierarchy_ObjectIDColumns(t *testing.T) {
	m := applyModel(t, testdomain.Domain(), nil)

	order := m.entity(t, testdomain.Order)
	assert.Equal(t, []string{
		"ID", "ClassID", "Timestamp",
		"OrderNumber", "DeliveryDate", "CustomerID", "CustomerIDClassID", "OfficialID",
	}, columnNames(order.Columns()))
	assert.Equal(t, "UUID", column(t, order, "CustomerID").StorageType)
	assert.True(t, column(t, order, "CustomerID").Nullable)

	person := m.entity(t, testdomain.Person)
	assert.Equal(t, []string{
		"ID", "ClassID", "Timestamp",
		"Name", "AssociatedPartnerCompanyID", "AssociatedPartnerCompanyIDClassID", "EmailAddress",
	}, columnNames(person.Columns()))
}

func TestApplyPersistenceModelToInterface(t *testing.T) {
	m := applyModel(t, testdomain.Domain(), nil)

	entity := m.entity(t, testdomain.IContact)
	view, ok := entity.(*UnionViewDefinition)
	require.True(t, ok)
	assert.Equal(t, "IContactView", view.EntityName())
	require.Len(t, view.UnionedEntities(), 1)
	assert.Same(t, m.entity(t, testdomain.Person), view.UnionedEntities()[0])

	// The interface property is bound once and shared by the implementing class
	iface, _ := m.types.Get(testdomain.IContact)
	own, err := iface.MyPropertyDefinitions()
	require.NoError(t, err)
	email, ok := own.Get("Sales.IContact.EmailAddress")
	require.True(t, ok)
	person, _ := m.types.Get(testdomain.Person)
	viaPerson, err := person.GetPropertyDefinition("Sales.IContact.EmailAddress")
	require.NoError(t, err)
	assert.Same(t, email.StoragePropertyDefinition(), viaPerson.StoragePropertyDefinition())
}

func TestApplyPersistenceModelToHierarchy_UnionAndNullEntities(t *testing.T) {
	b := discovery.NewBuilder()
	b.Class("Test.Base").Abstract().Property("Shared", "string")
	b.Class("Test.A").Base("Test.Base").Table("A").Property("OnlyA", "int32")
	b.Class("Test.B").Base("Test.Base").Table("B").Property("OnlyB", "bool")
	b.Class("Test.Empty").Abstract().Property("Name", "string")
	d, err := b.Build()
	require.NoError(t, err)

	m := applyModel(t, d, nil)

	base, ok := m.entity(t, "Test.Base").(*UnionViewDefinition)
	require.True(t, ok)
	assert.Equal(t, "BaseView", base.EntityName())
	assert.Equal(t, []string{"A", "B"}, []string{base.UnionedEntities()[0].EntityName(), base.UnionedEntities()[1].EntityName()})
	assert.Equal(t, []string{"ID", "ClassID", "Timestamp", "OnlyA", "Shared", "OnlyB"}, columnNames(base.Columns()))
	assert.True(t, column(t, base, "OnlyA").Nullable, "columns missing from a unioned entity are nullable")
	assert.False(t, column(t, base, "Shared").Nullable)

	empty := m.entity(t, "Test.Empty")
	assert.Equal(t, EntityNull, empty.Kind())
	assert.Empty(t, empty.EntityName())

	validator := m.loader.CreatePersistenceMappingValidator(m.class(t, "Test.Empty"))
	assert.Empty(t, validator.Validate([]*mapping.ClassDefinition{m.class(t, "Test.Empty")}),
		"abstract classes without tables are valid")
}

func TestApplyPersistenceModelToHierarchy_StorageGroups(t *testing.T) {
	b := discovery.NewBuilder()
	b.Class("Reports.Entry").StorageGroup("Reporting").Table("Entry").Property("Amount", "decimal")
	b.Class("Sales.Item").Table("Item").Property("Amount", "decimal")
	d, err := b.Build()
	require.NoError(t, err)

	providers := NewDefaultProviderRegistry()
	require.NoError(t, providers.Register(&ProviderDefinition{Name: "reporting", Dialect: NewSQLiteDialect()}, "Reporting"))

	m := applyModel(t, d, providers)

	entry := m.entity(t, "Reports.Entry")
	assert.Equal(t, "reporting", entry.StorageProviderName())
	assert.Equal(t, "NUMERIC", column(t, entry, "Amount").StorageType)
	assert.Equal(t, "TEXT", column(t, entry, "ID").StorageType)

	item := m.entity(t, "Sales.Item")
	assert.Equal(t, "default", item.StorageProviderName())
	assert.Equal(t, "NUMERIC(38,10)", column(t, item, "Amount").StorageType)
}

func TestApplyPersistenceModelToHierarchy_MixinProperties(t *testing.T) {
	m := applyModel(t, testdomain.MixinDomain(), nil)

	target := m.entity(t, testdomain.TargetClassForPersistentMixin)
	assert.Equal(t, EntityTable, target.Kind())
	assert.Equal(t, "MixedDomains_Target", target.EntityName())
	assert.Contains(t, columnNames(target.Columns()), "PersistentProperty")

	derived := m.entity(t, testdomain.DerivedTargetClassForPersistentMixin)
	assert.Equal(t, EntityFilterView, derived.Kind())
}

func TestPersistenceValidator(t *testing.T) {
	tests := []struct {
		name     string
		build    func(b *discovery.Builder)
		root     string
		expected string
	}{
		{
			name: "concrete class above table",
			build: func(b *discovery.Builder) {
				b.Class("Test.Base").Property("Name", "string")
				b.Class("Test.Derived").Base("Test.Base").Table("Derived")
			},
			root:     "Test.Base",
			expected: "neither class 'Test.Base' nor its base classes are mapped to a table",
		},
		{
			name: "duplicate table name",
			build: func(b *discovery.Builder) {
				b.Class("Test.Base").Abstract()
				b.Class("Test.A").Base("Test.Base").Table("Same")
				b.Class("Test.B").Base("Test.Base").Table("Same")
			},
			root:     "Test.Base",
			expected: "class 'Test.B' must not define table 'Same'",
		},
		{
			name: "column name used twice",
			build: func(b *discovery.Builder) {
				b.Class("Test.Base").Table("Base")
				b.Class("Test.A").Base("Test.Base").Property("Code", "string")
				b.Class("Test.B").Base("Test.Base").Property("Other", "string", discovery.Column("Code"))
			},
			root:     "Test.Base",
			expected: "property 'Test.B.Other' of class 'Test.B' must not use column name 'Code'",
		},
		{
			name: "reserved column name",
			build: func(b *discovery.Builder) {
				b.Class("Test.Base").Table("Base").Property("Version", "int64", discovery.Column("Timestamp"))
			},
			root:     "Test.Base",
			expected: "must not use column name 'Timestamp' because it is reserved",
		},
		{
			name: "kind not supported by dialect",
			build: func(b *discovery.Builder) {
				b.Class("Test.Base").Table("Base").Property("State", "enum")
			},
			root:     "Test.Base",
			expected: "property 'Test.Base.State' cannot be stored by the postgres dialect",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := discovery.NewBuilder()
			tt.build(b)
			d, err := b.Build()
			require.NoError(t, err)
			m := applyModel(t, d, nil)

			root := m.class(t, tt.root)
			unit := append([]*mapping.ClassDefinition{root}, root.GetAllDerivedClasses()...)
			failures := m.loader.CreatePersistenceMappingValidator(root).Validate(unit)

			require.NotEmpty(t, failures)
			found := false
			var messages []string
			for _, f := range failures {
				messages = append(messages, f.Message)
				if strings.Contains(f.Message, tt.expected) {
					found = true
				}
			}
			assert.True(t, found, "expected a failure containing %q, got %v", tt.expected, messages)
		})
	}
}

func TestPersistenceValidator_ValidDomain(t *testing.T) {
	m := applyModel(t, testdomain.Domain(), nil)

	for _, root := range m.types.InheritanceRoots() {
		unit := append([]*mapping.ClassDefinition{root}, root.GetAllDerivedClasses()...)
		assert.Empty(t, m.loader.CreatePersistenceMappingValidator(root).Validate(unit), "root %s", root.TypeName())
	}
}

func TestProviderRegistry(t *testing.T) {
	registry := NewDefaultProviderRegistry()
	reporting := &ProviderDefinition{Name: "reporting", Dialect: NewSQLiteDialect()}

	require.NoError(t, registry.Register(reporting, "Reporting", "Archive"))
	assert.Same(t, reporting, registry.ProviderFor("Archive"))
	assert.Equal(t, "default", registry.ProviderFor("").Name)
	assert.Equal(t, "default", registry.ProviderFor("Unknown").Name)

	other := &ProviderDefinition{Name: "other", Dialect: NewPostgresDialect()}
	err := registry.Register(other, "Reporting")
	assert.EqualError(t, err, "storage group Reporting is already served by provider reporting")

	assert.Error(t, registry.Register(&ProviderDefinition{Name: "broken"}))
	assert.Equal(t, []string{"default", "reporting"}, []string{registry.Providers()[0].Name, registry.Providers()[1].Name})
}
