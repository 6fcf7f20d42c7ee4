// Package testdomain provides the domains shared by the tests of the
// mapping packages.
package testdomain

import (
	"github.com/conduit-lang/mapping/internal/discovery"
)

// Type names of the order domain
const (
	DomainBase  = "Sales.DomainBase"
	Company     = "Sales.Company"
	Customer    = "Sales.Customer"
	Partner     = "Sales.Partner"
	Supplier    = "Sales.Supplier"
	Distributor = "Sales.Distributor"
	Person      = "Sales.Person"
	Order       = "Sales.Order"
	OrderItem   = "Sales.OrderItem"
	Official    = "Sales.Official"
	Employee    = "Sales.Employee"
	IContact    = "Sales.IContact"
)

// Type names of the mixin domain
const (
	TargetClassForPersistentMixin        = "Mixins.TargetClassForPersistentMixin"
	DerivedTargetClassForPersistentMixin = "Mixins.DerivedTargetClassForPersistentMixin"
	MixinAddingPersistentProperties      = "Mixins.MixinAddingPersistentProperties"
	IMixinAddingPersistentProperties     = "Mixins.IMixinAddingPersistentProperties"
	NonPersistentMixin                   = "Mixins.NonPersistentMixin"
)

// Builder returns an unvalidated builder holding the order domain so tests
// can extend it before building
func Builder() *discovery.Builder {
	b := discovery.NewBuilder()

	b.Class(DomainBase).
		IgnoreForMapping().
		Abstract().
		Property("CreatedBy", "string", discovery.Nullable(), discovery.MaxLength(100))

	b.Class(Company).
		Base(DomainBase).
		Table("Company").
		Property("Name", "string", discovery.MaxLength(100)).
		Property("IndustrialSector", "enum", discovery.EnumValues("Manufacturing", "Retail", "Services"))

	b.Class(Customer).
		Base(Company).
		Property("CustomerSince", "datetime", discovery.Nullable()).
		Property("Type", "enum", discovery.EnumValues("Standard", "Premium", "Gold")).
		Relation("Orders", discovery.RelationDescriptor{
			Target:         Order,
			Opposite:       "Customer",
			Collection:     true,
			SortExpression: "OrderNumber desc",
		})

	b.Class(Partner).
		Base(Company).
		Relation("ContactPerson", discovery.RelationDescriptor{
			Target:   Person,
			Opposite: "AssociatedPartnerCompany",
		})

	b.Class(Supplier).
		Base(Company).
		Property("SupplierQuality", "int32")

	b.Class(Distributor).
		Base(Partner).
		Property("NumberOfShops", "int32")

	b.Interface(IContact).
		Property("EmailAddress", "string", discovery.Nullable(), discovery.MaxLength(255))

	b.Class(Person).
		Implements(IContact).
		Table("Person").
		Property("Name", "string", discovery.MaxLength(100)).
		Relation("AssociatedPartnerCompany", discovery.RelationDescriptor{
			Target:             Partner,
			Opposite:           "ContactPerson",
			ContainsForeignKey: true,
		})

	b.Class(Order).
		Table("Order").
		Property("OrderNumber", "int32").
		Property("DeliveryDate", "datetime").
		Relation("Customer", discovery.RelationDescriptor{
			Target:    Customer,
			Opposite:  "Orders",
			Mandatory: true,
		}).
		Relation("OrderItems", discovery.RelationDescriptor{
			Target:         OrderItem,
			Opposite:       "Order",
			Collection:     true,
			SortExpression: "Position",
		}).
		Relation("Official", discovery.RelationDescriptor{
			Target: Official,
		})

	b.Class(OrderItem).
		Table("OrderItem").
		Property("Position", "int32").
		Property("Product", "string", discovery.MaxLength(100)).
		Property("Picture", "binary").
		Relation("Order", discovery.RelationDescriptor{
			Target:    Order,
			Opposite:  "OrderItems",
			Mandatory: true,
		})

	b.Class(Official).
		Table("Official").
		Property("Name", "string", discovery.MaxLength(100))

	b.Class(Employee).
		Table("Employee").
		Property("Name", "string", discovery.MaxLength(100)).
		Relation("Supervisor", discovery.RelationDescriptor{
			Target:   Employee,
			Opposite: "Subordinates",
		}).
		Relation("Subordinates", discovery.RelationDescriptor{
			Target:     Employee,
			Opposite:   "Supervisor",
			Collection: true,
		})

	return b
}

// Domain returns the validated order domain
func Domain() *discovery.Domain {
	d, err := Builder().Build()
	if err != nil {
		panic(err)
	}
	return d
}

// MixinBuilder returns an unvalidated builder holding the mixin domain
func MixinBuilder() *discovery.Builder {
	b := discovery.NewBuilder()

	b.Mixin(MixinAddingPersistentProperties).
		Persistent().
		Introduces(IMixinAddingPersistentProperties).
		Property("PersistentProperty", "int32").
		Property("ExtraPersistentProperty", "string", discovery.Nullable())

	b.Mixin(NonPersistentMixin).
		Property("Transient", "string", discovery.Nullable())

	b.Class(TargetClassForPersistentMixin).
		Table("MixedDomains_Target").
		WithMixins(MixinAddingPersistentProperties, NonPersistentMixin).
		Property("Name", "string", discovery.Nullable())

	b.Class(DerivedTargetClassForPersistentMixin).
		Base(TargetClassForPersistentMixin).
		Property("DerivedName", "string", discovery.Nullable())

	return b
}

// MixinDomain returns the validated mixin domain
func MixinDomain() *discovery.Domain {
	d, err := MixinBuilder().Build()
	if err != nil {
		panic(err)
	}
	return d
}
