// Package introspect exposes a frozen mapping configuration as JSON views
// and serves them over HTTP.
package introspect

import (
	"time"

	"github.com/conduit-lang/mapping/internal/configuration"
	"github.com/conduit-lang/mapping/internal/mapping"
	"github.com/conduit-lang/mapping/internal/rdbms"
)

// ConfigurationView summarizes a configuration build
type ConfigurationView struct {
	ID         string    `json:"id"`
	BuiltAt    time.Time `json:"built_at"`
	Types      int       `json:"types"`
	Classes    int       `json:"classes"`
	Interfaces int       `json:"interfaces"`
	Relations  int       `json:"relations"`
	Entities   int       `json:"entities"`
}

// TypeSummary is the list entry of a type
type TypeSummary struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	ClassID    string `json:"class_id,omitempty"`
	Entity     string `json:"entity,omitempty"`
	EntityKind string `json:"entity_kind,omitempty"`
	Provider   string `json:"provider,omitempty"`
}

// TypeView is the full description of a type
type TypeView struct {
	TypeSummary
	Abstract            bool           `json:"abstract,omitempty"`
	BaseClass           string         `json:"base_class,omitempty"`
	DerivedClasses      []string       `json:"derived_classes,omitempty"`
	Interfaces          []string       `json:"interfaces,omitempty"`
	ImplementingClasses []string       `json:"implementing_classes,omitempty"`
	StorageGroup        string         `json:"storage_group,omitempty"`
	State               string         `json:"state"`
	Properties          []PropertyView `json:"properties"`
	EndPoints           []EndPointView `json:"end_points"`
}

// PropertyView describes a property definition
type PropertyView struct {
	Name          string   `json:"name"`
	DeclaringType string   `json:"declaring_type"`
	Kind          string   `json:"kind"`
	Nullable      bool     `json:"nullable"`
	MaxLength     *int     `json:"max_length,omitempty"`
	StorageClass  string   `json:"storage_class"`
	EnumValues    []string `json:"enum_values,omitempty"`
	Columns       []string `json:"columns,omitempty"`
}

// EndPointView describes a relation end point of a type
type EndPointView struct {
	Property       string `json:"property"`
	Type           string `json:"type"`
	Cardinality    string `json:"cardinality"`
	Mandatory      bool   `json:"mandatory"`
	Virtual        bool   `json:"virtual"`
	Relation       string `json:"relation,omitempty"`
	SortExpression string `json:"sort_expression,omitempty"`
}

// RelationView describes a relation and both of its end points
type RelationView struct {
	ID        string                  `json:"id"`
	Kind      string                  `json:"kind"`
	EndPoints [2]RelationEndPointView `json:"end_points"`
}

// RelationEndPointView is one side of a RelationView
type RelationEndPointView struct {
	Type        string `json:"type"`
	Property    string `json:"property,omitempty"`
	Cardinality string `json:"cardinality"`
	Mandatory   bool   `json:"mandatory"`
	Virtual     bool   `json:"virtual"`
	Anonymous   bool   `json:"anonymous"`
}

// EntityView describes a table or view
type EntityView struct {
	Name     string       `json:"name"`
	Kind     string       `json:"kind"`
	Provider string       `json:"provider"`
	Columns  []ColumnView `json:"columns"`
}

// ColumnView describes a column of an entity
type ColumnView struct {
	Name        string `json:"name"`
	StorageType string `json:"storage_type"`
	Nullable    bool   `json:"nullable"`
	PrimaryKey  bool   `json:"primary_key,omitempty"`
}

// NewConfigurationView summarizes cfg
func NewConfigurationView(cfg *configuration.MappingConfiguration) ConfigurationView {
	return ConfigurationView{
		ID:         cfg.ID(),
		BuiltAt:    cfg.BuiltAt(),
		Types:      len(cfg.GetTypeDefinitions()),
		Classes:    len(cfg.GetClassDefinitions()),
		Interfaces: len(cfg.GetInterfaceDefinitions()),
		Relations:  len(cfg.GetRelationDefinitions()),
		Entities:   len(cfg.StorageEntities()),
	}
}

// NewTypeSummary describes td for listings
func NewTypeSummary(td mapping.TypeDefinition) TypeSummary {
	summary := TypeSummary{Name: td.TypeName(), Kind: "class"}
	if class, ok := td.(*mapping.ClassDefinition); ok {
		summary.ClassID = class.ID()
	} else {
		summary.Kind = "interface"
	}
	if entity := td.StorageEntityDefinition(); entity != nil {
		summary.Entity = entity.EntityName()
		summary.Provider = entity.StorageProviderName()
		if e, ok := entity.(rdbms.Entity); ok {
			summary.EntityKind = e.Kind().String()
		}
	}
	return summary
}

// NewTypeView describes td with its composed properties and end points
func NewTypeView(td mapping.TypeDefinition) (TypeView, error) {
	view := TypeView{
		TypeSummary:  NewTypeSummary(td),
		StorageGroup: td.StorageGroup(),
		State:        td.State().String(),
	}

	switch t := td.(type) {
	case *mapping.ClassDefinition:
		view.Abstract = t.IsAbstract()
		if base := t.BaseClass(); base != nil {
			view.BaseClass = base.TypeName()
		}
		derived, err := t.DerivedClasses()
		if err != nil {
			return TypeView{}, err
		}
		view.DerivedClasses = typeNames(derived)
		interfaces, err := t.ImplementedInterfaces()
		if err != nil {
			return TypeView{}, err
		}
		view.Interfaces = typeNames(interfaces)
	case *mapping.InterfaceDefinition:
		view.Interfaces = typeNames(t.ExtendedInterfaces())
		implementing, err := t.ImplementingClasses()
		if err != nil {
			return TypeView{}, err
		}
		view.ImplementingClasses = typeNames(implementing)
	}

	properties, err := td.GetPropertyDefinitions()
	if err != nil {
		return TypeView{}, err
	}
	view.Properties = make([]PropertyView, 0, properties.Len())
	for _, p := range properties.Items() {
		view.Properties = append(view.Properties, NewPropertyView(p))
	}

	endPoints, err := td.GetRelationEndPointDefinitions()
	if err != nil {
		return TypeView{}, err
	}
	view.EndPoints = make([]EndPointView, 0, endPoints.Len())
	for _, ep := range endPoints.Items() {
		view.EndPoints = append(view.EndPoints, NewEndPointView(ep))
	}

	return view, nil
}

// NewPropertyView describes a property definition
func NewPropertyView(p *mapping.PropertyDefinition) PropertyView {
	view := PropertyView{
		Name:          p.PropertyName(),
		DeclaringType: p.DeclaringType(),
		Kind:          p.Kind().String(),
		Nullable:      p.IsNullable(),
		MaxLength:     p.MaxLength(),
		StorageClass:  p.StorageClass().String(),
		EnumValues:    p.EnumValues(),
	}
	if sp := p.StoragePropertyDefinition(); sp != nil {
		view.Columns = sp.ColumnNames()
	}
	return view
}

// NewEndPointView describes an end point
func NewEndPointView(ep mapping.EndPoint) EndPointView {
	view := EndPointView{
		Property:    ep.PropertyName(),
		Type:        mapping.EndPointTypeName(ep),
		Cardinality: ep.Cardinality().String(),
		Mandatory:   ep.IsMandatory(),
		Virtual:     ep.IsVirtual(),
	}
	if rd := ep.RelationDefinition(); rd != nil {
		view.Relation = rd.ID()
	}
	if collection, ok := ep.(*mapping.VirtualCollectionEndPoint); ok {
		view.SortExpression = collection.SortExpressionText()
	}
	return view
}

// NewRelationView describes a relation
func NewRelationView(rd *mapping.RelationDefinition) RelationView {
	view := RelationView{ID: rd.ID(), Kind: rd.Kind().String()}
	for i, ep := range rd.EndPoints() {
		view.EndPoints[i] = RelationEndPointView{
			Type:        mapping.EndPointTypeName(ep),
			Property:    ep.PropertyName(),
			Cardinality: ep.Cardinality().String(),
			Mandatory:   ep.IsMandatory(),
			Virtual:     ep.IsVirtual(),
			Anonymous:   ep.IsAnonymous(),
		}
	}
	return view
}

// NewEntityView describes a storage entity
func NewEntityView(e rdbms.Entity) EntityView {
	view := EntityView{
		Name:     e.EntityName(),
		Kind:     e.Kind().String(),
		Provider: e.StorageProviderName(),
		Columns:  make([]ColumnView, 0, len(e.Columns())),
	}
	for _, c := range e.Columns() {
		view.Columns = append(view.Columns, ColumnView{
			Name:        c.Name,
			StorageType: c.StorageType,
			Nullable:    c.Nullable,
			PrimaryKey:  c.PrimaryKey,
		})
	}
	return view
}

type named interface {
	TypeName() string
}

func typeNames[T named](types []T) []string {
	if len(types) == 0 {
		return nil
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.TypeName()
	}
	return names
}
