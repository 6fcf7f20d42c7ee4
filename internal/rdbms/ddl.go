package rdbms

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/mapping/internal/mapping"
)

// DDLGenerator generates the DDL script for the entities of one provider
type DDLGenerator struct {
	dialect Dialect
}

// NewDDLGenerator creates a DDL generator for a dialect
func NewDDLGenerator(dialect Dialect) *DDLGenerator {
	return &DDLGenerator{dialect: dialect}
}

// CollectEntities returns the distinct storage entities of the given type
// definitions in dependency order: tables sorted by name first, then views
// after every entity they select from. Null entities are skipped.
func CollectEntities(types []mapping.TypeDefinition) []Entity {
	byName := make(map[string]Entity)
	for _, td := range types {
		entity, ok := td.StorageEntityDefinition().(Entity)
		if !ok || entity.Kind() == EntityNull {
			continue
		}
		if _, exists := byName[entity.EntityName()]; !exists {
			byName[entity.EntityName()] = entity
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	var ordered []Entity
	emitted := make(map[string]bool)
	for _, name := range names {
		if byName[name].Kind() == EntityTable {
			ordered = append(ordered, byName[name])
			emitted[name] = true
		}
	}

	// Views may select from other views; emit each once all its sources are
	for progress := true; progress; {
		progress = false
		for _, name := range names {
			if emitted[name] {
				continue
			}
			ready := true
			for _, source := range sources(byName[name]) {
				if !emitted[source.EntityName()] {
					ready = false
					break
				}
			}
			if ready {
				ordered = append(ordered, byName[name])
				emitted[name] = true
				progress = true
			}
		}
	}

	// Sources outside the given types
	for _, name := range names {
		if !emitted[name] {
			ordered = append(ordered, byName[name])
		}
	}
	return ordered
}

// FilterByProvider returns the entities owned by a storage provider
func FilterByProvider(entities []Entity, provider string) []Entity {
	var result []Entity
	for _, e := range entities {
		if e.StorageProviderName() == provider {
			result = append(result, e)
		}
	}
	return result
}

func sources(e Entity) []Entity {
	switch v := e.(type) {
	case *FilterViewDefinition:
		return []Entity{v.BaseEntity()}
	case *UnionViewDefinition:
		return v.UnionedEntities()
	}
	return nil
}

// GenerateCreateTable generates a CREATE TABLE statement
func (g *DDLGenerator) GenerateCreateTable(table *TableDefinition) (string, error) {
	if table == nil {
		return "", fmt.Errorf("table cannot be nil")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n", g.dialect.QuoteIdentifier(table.EntityName())))

	columnDefs := make([]string, 0, len(table.Columns()))
	for _, column := range table.Columns() {
		def, err := g.generateColumnDefinition(column)
		if err != nil {
			return "", fmt.Errorf("table %s: %w", table.EntityName(), err)
		}
		columnDefs = append(columnDefs, def)
	}

	for i, def := range columnDefs {
		b.WriteString("  ")
		b.WriteString(def)
		if i < len(columnDefs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}

	b.WriteString(");")
	return b.String(), nil
}

func (g *DDLGenerator) generateColumnDefinition(column *ColumnDefinition) (string, error) {
	if column.StorageType == "" {
		return "", fmt.Errorf("column %s has no storage type", column.Name)
	}

	parts := []string{g.dialect.QuoteIdentifier(column.Name), g.columnType(column)}
	if column.Nullable {
		parts = append(parts, "NULL")
	} else {
		parts = append(parts, "NOT NULL")
	}
	if column.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if len(column.EnumValues) > 0 && !g.dialect.NativeEnums() {
		parts = append(parts, fmt.Sprintf("CHECK (%s IN (%s))",
			g.dialect.QuoteIdentifier(column.Name), quoteLiterals(column.EnumValues)))
	}
	return strings.Join(parts, " "), nil
}

func (g *DDLGenerator) columnType(column *ColumnDefinition) string {
	if len(column.EnumValues) > 0 && g.dialect.NativeEnums() {
		return g.dialect.QuoteIdentifier(column.StorageType)
	}
	return column.StorageType
}

// GenerateEnumTypes generates the CREATE TYPE statements for the enum
// columns of the given tables, sorted for deterministic output
func (g *DDLGenerator) GenerateEnumTypes(tables []*TableDefinition) []string {
	if !g.dialect.NativeEnums() {
		return nil
	}

	seen := make(map[string]bool)
	var statements []string
	for _, table := range tables {
		for _, column := range table.Columns() {
			if len(column.EnumValues) == 0 || seen[column.StorageType] {
				continue
			}
			seen[column.StorageType] = true
			statements = append(statements, fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);",
				g.dialect.QuoteIdentifier(column.StorageType), quoteLiterals(column.EnumValues)))
		}
	}
	sort.Strings(statements)
	return statements
}

// GenerateCreateView generates the statement creating a filter or union view
func (g *DDLGenerator) GenerateCreateView(entity Entity) (string, error) {
	var b strings.Builder

	switch v := entity.(type) {
	case *FilterViewDefinition:
		b.WriteString(g.dialect.CreateView(v.EntityName()))
		b.WriteString("\n  SELECT ")
		b.WriteString(g.selectList(v.Columns(), v.BaseEntity()))
		b.WriteString(fmt.Sprintf("\n  FROM %s", g.dialect.QuoteIdentifier(v.BaseEntity().EntityName())))
		b.WriteString(fmt.Sprintf("\n  WHERE %s IN (%s);",
			g.dialect.QuoteIdentifier(ClassIDColumnName), quoteLiterals(v.ClassIDs())))

	case *UnionViewDefinition:
		b.WriteString(g.dialect.CreateView(v.EntityName()))
		for i, source := range v.UnionedEntities() {
			if i > 0 {
				b.WriteString("\n  UNION ALL")
			}
			b.WriteString("\n  SELECT ")
			b.WriteString(g.selectList(v.Columns(), source))
			b.WriteString(fmt.Sprintf("\n  FROM %s", g.dialect.QuoteIdentifier(source.EntityName())))
		}
		b.WriteString(";")

	default:
		return "", fmt.Errorf("entity %s is not a view", entity.EntityName())
	}

	return b.String(), nil
}

// selectList selects the given columns from source, substituting a typed
// NULL for columns the source does not have
func (g *DDLGenerator) selectList(columns []*ColumnDefinition, source Entity) string {
	available := make(map[string]bool)
	for _, c := range source.Columns() {
		available[c.Name] = true
	}

	items := make([]string, 0, len(columns))
	for _, c := range columns {
		if available[c.Name] {
			items = append(items, g.dialect.QuoteIdentifier(c.Name))
			continue
		}
		items = append(items, fmt.Sprintf("CAST(NULL AS %s) AS %s", g.columnType(c), g.dialect.QuoteIdentifier(c.Name)))
	}
	return strings.Join(items, ", ")
}

// GenerateStatements generates the enum types, tables and views for the
// entities, one statement per element
func (g *DDLGenerator) GenerateStatements(entities []Entity) ([]string, error) {
	var tables []*TableDefinition
	for _, e := range entities {
		if t, ok := e.(*TableDefinition); ok {
			tables = append(tables, t)
		}
	}

	var statements []string
	statements = append(statements, g.GenerateEnumTypes(tables)...)

	for _, e := range entities {
		var statement string
		var err error
		switch e.Kind() {
		case EntityTable:
			statement, err = g.GenerateCreateTable(e.(*TableDefinition))
		case EntityFilterView, EntityUnionView:
			statement, err = g.GenerateCreateView(e)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		statements = append(statements, statement)
	}
	return statements, nil
}

// GenerateScript joins GenerateStatements into one script
func (g *DDLGenerator) GenerateScript(entities []Entity) (string, error) {
	statements, err := g.GenerateStatements(entities)
	if err != nil {
		return "", err
	}
	if len(statements) == 0 {
		return "", nil
	}
	return strings.Join(statements, "\n\n") + "\n", nil
}

// GenerateDropStatements drops views before the tables they select from,
// and the enum types of the tables last
func (g *DDLGenerator) GenerateDropStatements(entities []Entity) []string {
	var statements []string
	enumTypes := make(map[string]bool)
	for i := len(entities) - 1; i >= 0; i-- {
		e := entities[i]
		switch e.Kind() {
		case EntityTable:
			statements = append(statements, fmt.Sprintf("DROP TABLE IF EXISTS %s;", g.dialect.QuoteIdentifier(e.EntityName())))
			for _, column := range e.Columns() {
				if len(column.EnumValues) > 0 {
					enumTypes[column.StorageType] = true
				}
			}
		case EntityFilterView, EntityUnionView:
			statements = append(statements, fmt.Sprintf("DROP VIEW IF EXISTS %s;", g.dialect.QuoteIdentifier(e.EntityName())))
		}
	}

	if g.dialect.NativeEnums() {
		names := make([]string, 0, len(enumTypes))
		for name := range enumTypes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			statements = append(statements, fmt.Sprintf("DROP TYPE IF EXISTS %s;", g.dialect.QuoteIdentifier(name)))
		}
	}
	return statements
}

// GenerateDropScript joins GenerateDropStatements into one script
func (g *DDLGenerator) GenerateDropScript(entities []Entity) string {
	return strings.Join(g.GenerateDropStatements(entities), "\n")
}

func quoteLiterals(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quoteLiteral(v)
	}
	return strings.Join(quoted, ", ")
}
