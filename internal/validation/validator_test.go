package validation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/mapping/internal/discovery"
	"github.com/conduit-lang/mapping/internal/mapping"
	"github.com/conduit-lang/mapping/internal/reflector"
	"github.com/conduit-lang/mapping/internal/testdomain"
)

type graph struct {
	types     []mapping.TypeDefinition
	relations []*mapping.RelationDefinition
}

func buildGraph(t *testing.T, d *discovery.Domain) graph {
	t.Helper()
	factory := reflector.NewMappingObjectFactory(d)
	types, err := reflector.NewTypeDefinitionCollectionFactory(factory).CreateTypeDefinitionCollection(d.DiscoverCandidateTypes())
	require.NoError(t, err)
	relations, err := reflector.NewRelationDefinitionCollectionFactory(d).CreateRelationDefinitionCollection(types)
	require.NoError(t, err)
	return graph{types: types.All(), relations: relations.All()}
}

func TestStandardValidator_ValidDomains(t *testing.T) {
	domains := map[string]*discovery.Domain{
		"order domain": testdomain.Domain(),
		"mixin domain": testdomain.MixinDomain(),
	}

	for name, d := range domains {
		t.Run(name, func(t *testing.T) {
			g := buildGraph(t, d)
			err := NewStandardValidator(d, Options{}).Validate(g.types, g.relations)
			assert.NoError(t, err)
		})
	}
}

func TestStandardValidator_Failures(t *testing.T) {
	tests := []struct {
		name    string
		build   func(b *discovery.Builder)
		message string
	}{
		{
			name: "invalid class ID",
			build: func(b *discovery.Builder) {
				b.Class("Test.A").ClassID("1 A")
			},
			message: "class ID '1 A' is not valid",
		},
		{
			name: "storage group redefined in derived class",
			build: func(b *discovery.Builder) {
				b.Class("Test.Root").StorageGroup("main")
				b.Class("Test.Derived").Base("Test.Root").StorageGroup("archive")
			},
			message: "the storage group can only be defined once per inheritance hierarchy",
		},
		{
			name: "generic class",
			build: func(b *discovery.Builder) {
				b.Class("Test.Box").Generic("T")
			},
			message: "has open type parameters",
		},
		{
			name: "max length on int",
			build: func(b *discovery.Builder) {
				b.Class("Test.A").Property("Count", "int32", discovery.MaxLength(10))
			},
			message: "max length can only be defined for string and binary properties, not for int32",
		},
		{
			name: "non positive max length",
			build: func(b *discovery.Builder) {
				b.Class("Test.A").Property("Name", "string", discovery.MaxLength(0))
			},
			message: "max length must be greater than zero",
		},
		{
			name: "enum without values",
			build: func(b *discovery.Builder) {
				b.Class("Test.A").Property("State", "enum")
			},
			message: "enum property declares no values",
		},
		{
			name: "relation without storage",
			build: func(b *discovery.Builder) {
				b.Class("Test.A").Relation("B", discovery.RelationDescriptor{Target: "Test.B"}, discovery.WithStorageClass("none"))
				b.Class("Test.B")
			},
			message: "relation properties only support the storage classes persistent and transaction",
		},
		{
			name: "opposite property not found",
			build: func(b *discovery.Builder) {
				b.Class("Test.A").Relation("B", discovery.RelationDescriptor{Target: "Test.B", Opposite: "Missing"})
				b.Class("Test.B")
			},
			message: "the opposite relation property 'Missing' declared on 'Test.A.B' could not be found on type 'Test.B'",
		},
		{
			name: "target type not mapped",
			build: func(b *discovery.Builder) {
				b.Class("Test.A").Relation("X", discovery.RelationDescriptor{Target: "External.Missing"})
			},
			message: "the type 'External.Missing' referenced by relation property 'Test.A.X' is not part of the mapping",
		},
		{
			name: "many-to-many",
			build: func(b *discovery.Builder) {
				b.Class("Test.A").Relation("Bs", discovery.RelationDescriptor{Target: "Test.B", Opposite: "As", Collection: true})
				b.Class("Test.B").Relation("As", discovery.RelationDescriptor{Target: "Test.A", Opposite: "Bs", Collection: true})
			},
			message: "is a many-to-many relation, which is not supported",
		},
		{
			name: "both sides hold the foreign key",
			build: func(b *discovery.Builder) {
				b.Class("Test.A").Relation("B", discovery.RelationDescriptor{Target: "Test.B", Opposite: "A", ContainsForeignKey: true})
				b.Class("Test.B").Relation("A", discovery.RelationDescriptor{Target: "Test.A", Opposite: "B", ContainsForeignKey: true})
			},
			message: "only one side of a one-to-one relation can hold it",
		},
		{
			name: "no side holds the foreign key",
			build: func(b *discovery.Builder) {
				b.Class("Test.A").Relation("B", discovery.RelationDescriptor{Target: "Test.B", Opposite: "A"})
				b.Class("Test.B").Relation("A", discovery.RelationDescriptor{Target: "Test.A", Opposite: "B"})
			},
			message: "neither end point of one-to-one relation",
		},
		{
			name: "inconsistent opposite names",
			build: func(b *discovery.Builder) {
				b.Class("Test.A").Relation("B", discovery.RelationDescriptor{Target: "Test.B", Opposite: "Items"})
				b.Class("Test.B").Relation("Items", discovery.RelationDescriptor{Target: "Test.A", Opposite: "Other", Collection: true})
			},
			message: "relation property 'Test.B.Items' names 'Other' as its opposite",
		},
		{
			name: "inconsistent opposite types",
			build: func(b *discovery.Builder) {
				b.Class("Test.A").Relation("B", discovery.RelationDescriptor{Target: "Test.B", Opposite: "As"})
				b.Class("Test.B").Relation("As", discovery.RelationDescriptor{Target: "Test.C", Opposite: "B", Collection: true})
				b.Class("Test.C")
			},
			message: "the declared type 'Test.C' of relation property 'Test.B.As' is not compatible",
		},
		{
			name: "foreign key on collection",
			build: func(b *discovery.Builder) {
				b.Class("Test.A").Relation("Bs", discovery.RelationDescriptor{Target: "Test.B", Opposite: "A", Collection: true, ContainsForeignKey: true})
				b.Class("Test.B").Relation("A", discovery.RelationDescriptor{Target: "Test.A", Opposite: "Bs"})
			},
			message: "only single-valued relation properties can contain the foreign key",
		},
		{
			name: "sort expression on single-valued property",
			build: func(b *discovery.Builder) {
				b.Class("Test.A").Relation("B", discovery.RelationDescriptor{Target: "Test.B", SortExpression: "Name"})
				b.Class("Test.B").Property("Name", "string")
			},
			message: "a sort expression can only be specified for collection relation properties",
		},
		{
			name: "sort expression with unknown property",
			build: func(b *discovery.Builder) {
				b.Class("Test.A").Relation("Bs", discovery.RelationDescriptor{Target: "Test.B", Opposite: "A", Collection: true, SortExpression: "Missing"})
				b.Class("Test.B").Relation("A", discovery.RelationDescriptor{Target: "Test.A", Opposite: "Bs"})
			},
			message: "sort expression 'Missing' cannot be parsed",
		},
		{
			name: "sort expression with bad order",
			build: func(b *discovery.Builder) {
				b.Class("Test.A").Relation("Bs", discovery.RelationDescriptor{Target: "Test.B", Opposite: "A", Collection: true, SortExpression: "Name sideways"})
				b.Class("Test.B").
					Property("Name", "string").
					Relation("A", discovery.RelationDescriptor{Target: "Test.A", Opposite: "Bs"})
			},
			message: "'sideways' is not a valid sort order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := discovery.NewBuilder()
			tt.build(b)
			d, err := b.Build()
			require.NoError(t, err)

			g := buildGraph(t, d)
			err = NewStandardValidator(d, Options{}).Validate(g.types, g.relations)
			require.Error(t, err)
			assert.True(t, errors.Is(err, mapping.ErrMapping))

			var validationErrs *Errors
			require.True(t, errors.As(err, &validationErrs))
			found := false
			for _, f := range validationErrs.Failures {
				if strings.Contains(f.Message, tt.message) {
					found = true
				}
			}
			assert.True(t, found, "expected a failure containing %q, got:\n%s", tt.message, err)
		})
	}
}

func TestStandardValidator_SkipSortExpressions(t *testing.T) {
	b := discovery.NewBuilder()
	b.Class("Test.A").Relation("Bs", discovery.RelationDescriptor{Target: "Test.B", Opposite: "A", Collection: true, SortExpression: "Missing"})
	b.Class("Test.B").Relation("A", discovery.RelationDescriptor{Target: "Test.A", Opposite: "Bs"})
	d, err := b.Build()
	require.NoError(t, err)

	g := buildGraph(t, d)
	v := NewStandardValidator(d, Options{SkipSortExpressions: true})
	assert.NotContains(t, v.RuleNames(), "SortExpressionIsValid")
	assert.NoError(t, v.Validate(g.types, g.relations))
}

func TestValidator_CustomRules(t *testing.T) {
	g := buildGraph(t, testdomain.Domain())

	var visited []string
	v := NewValidator(nil).AddClassRules(ClassRuleFunc("RecordTypes", func(td mapping.TypeDefinition) []mapping.ValidationFailure {
		visited = append(visited, td.TypeName())
		return nil
	}))
	require.NoError(t, v.Validate(g.types, g.relations))
	assert.Len(t, visited, len(g.types), "each class rule runs once per type")

	v.AddRelationRules(RelationRuleFunc("RejectUnidirectional", func(rd *mapping.RelationDefinition) []mapping.ValidationFailure {
		if rd.Kind() != mapping.RelationUnidirectional {
			return nil
		}
		first := rd.EndPoints()[0]
		return []mapping.ValidationFailure{{
			Type:     mapping.EndPointTypeName(first),
			Property: first.PropertyName(),
			Message:  "unidirectional relations are not allowed",
		}}
	}))

	err := v.Validate(g.types, g.relations)
	require.Error(t, err)
	assert.Equal(t,
		"mapping validation failed: Sales.Order.Official: unidirectional relations are not allowed",
		err.Error())

	var mappingErr *mapping.MappingError
	require.True(t, errors.As(err, &mappingErr))
	assert.Equal(t, "Sales.Order", mappingErr.Type)
	assert.Equal(t, "Sales.Order.Official", mappingErr.Property)
}

func TestErrors(t *testing.T) {
	errs := NewErrors()
	assert.False(t, errs.HasErrors())
	assert.Equal(t, "mapping validation failed", errs.Error())

	errs.Add(
		mapping.ValidationFailure{Type: "Test.A", Message: "first"},
		mapping.ValidationFailure{Type: "Test.B", Property: "Test.B.Name", Message: "second"},
	)
	assert.Equal(t, 2, errs.Count())
	assert.Equal(t,
		"mapping validation failed with 2 errors:\n  - Test.A: first\n  - Test.B.Name: second",
		errs.Error())

	data, err := json.Marshal(errs)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"error": "mapping_validation_failed",
		"failures": [
			{"type": "Test.A", "message": "first"},
			{"type": "Test.B", "property": "Test.B.Name", "message": "second"}
		]
	}`, string(data))
}

type countingPersistenceValidator struct {
	units [][]*mapping.ClassDefinition
}

func (v *countingPersistenceValidator) Validate(classes []*mapping.ClassDefinition) []mapping.ValidationFailure {
	v.units = append(v.units, classes)
	return nil
}

func TestRunPersistenceValidator(t *testing.T) {
	d := testdomain.Domain()
	factory := reflector.NewMappingObjectFactory(d)
	types, err := reflector.NewTypeDefinitionCollectionFactory(factory).CreateTypeDefinitionCollection(d.DiscoverCandidateTypes())
	require.NoError(t, err)

	td, _ := types.Get(testdomain.Company)
	company := td.(*mapping.ClassDefinition)

	v := &countingPersistenceValidator{}
	assert.Empty(t, RunPersistenceValidator(v, company))
	require.Len(t, v.units, 1)
	assert.Len(t, v.units[0], 5)
	assert.Same(t, company, v.units[0][0])

	assert.Nil(t, RunPersistenceValidator(nil, company))
}
