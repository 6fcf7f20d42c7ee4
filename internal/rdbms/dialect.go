// Package rdbms maps class hierarchies onto relational storage: tables for
// classes that declare one, filter views for classes stored in the table of a
// base class, union views for abstract classes and interfaces above their
// tables. It generates DDL for the resulting entities and verifies them
// against a live database.
package rdbms

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/mapping/internal/mapping"
)

// Dialect maps property kinds to column types of one SQL database
type Dialect interface {
	// Name returns the dialect name as used in configuration files
	Name() string
	// QuoteIdentifier quotes a table, view or column name
	QuoteIdentifier(identifier string) string
	// MapType returns the column type for a property
	MapType(p *mapping.PropertyDefinition) (string, error)
	// IDType returns the column type of ID and foreign key columns
	IDType() string
	// ClassIDType returns the column type of ClassID columns
	ClassIDType() string
	// TimestampType returns the column type of the optimistic locking column
	TimestampType() string
	// ColumnsQuery returns a query with one parameter, the entity name,
	// that lists the column names of a table or view
	ColumnsQuery() string
	// NativeEnums reports whether enum columns use a generated enum type
	NativeEnums() bool
	// CreateView returns the statement head creating or replacing a view
	CreateView(name string) string
}

// ParseDialect returns the dialect registered under name
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return NewPostgresDialect(), nil
	case "sqlite", "sqlite3":
		return NewSQLiteDialect(), nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, sqlite)", name)
	}
}

// PostgresDialect maps kinds to PostgreSQL column types
type PostgresDialect struct{}

// NewPostgresDialect creates a PostgreSQL dialect
func NewPostgresDialect() *PostgresDialect {
	return &PostgresDialect{}
}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) QuoteIdentifier(identifier string) string {
	return QuoteIdentifier(identifier)
}

// MapType converts a property kind to a PostgreSQL column type
func (d *PostgresDialect) MapType(p *mapping.PropertyDefinition) (string, error) {
	if p == nil {
		return "", fmt.Errorf("property definition cannot be nil")
	}

	switch p.Kind() {
	case mapping.KindString:
		if p.MaxLength() != nil {
			return fmt.Sprintf("VARCHAR(%d)", *p.MaxLength()), nil
		}
		return "TEXT", nil

	case mapping.KindBinary:
		return "BYTEA", nil

	case mapping.KindBool:
		return "BOOLEAN", nil

	case mapping.KindInt16:
		return "SMALLINT", nil

	case mapping.KindInt32:
		return "INTEGER", nil

	case mapping.KindInt64:
		return "BIGINT", nil

	case mapping.KindFloat:
		return "DOUBLE PRECISION", nil

	case mapping.KindDecimal:
		return "NUMERIC(38,10)", nil

	case mapping.KindDateTime:
		return "TIMESTAMP WITH TIME ZONE", nil

	case mapping.KindUUID:
		return "UUID", nil

	case mapping.KindEnum:
		if len(p.EnumValues()) == 0 {
			return "", fmt.Errorf("enum property %s has no values", p.PropertyName())
		}
		return EnumTypeName(p), nil

	case mapping.KindObjectID:
		return d.IDType(), nil

	default:
		return "", fmt.Errorf("unsupported kind: %s", p.Kind())
	}
}

func (d *PostgresDialect) IDType() string        { return "UUID" }
func (d *PostgresDialect) ClassIDType() string   { return "VARCHAR(100)" }
func (d *PostgresDialect) TimestampType() string { return "BIGINT" }

func (d *PostgresDialect) ColumnsQuery() string {
	return "SELECT column_name FROM information_schema.columns WHERE table_name = $1 ORDER BY ordinal_position"
}

func (d *PostgresDialect) NativeEnums() bool { return true }

func (d *PostgresDialect) CreateView(name string) string {
	return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS", d.QuoteIdentifier(name))
}

// SQLiteDialect maps kinds to SQLite storage classes
type SQLiteDialect struct{}

// NewSQLiteDialect creates a SQLite dialect
func NewSQLiteDialect() *SQLiteDialect {
	return &SQLiteDialect{}
}

func (d *SQLiteDialect) Name() string { return "sqlite" }

func (d *SQLiteDialect) QuoteIdentifier(identifier string) string {
	return QuoteIdentifier(identifier)
}

// MapType converts a property kind to a SQLite column type. SQLite has no
// native enum, UUID or date type; they are stored as text.
func (d *SQLiteDialect) MapType(p *mapping.PropertyDefinition) (string, error) {
	if p == nil {
		return "", fmt.Errorf("property definition cannot be nil")
	}

	switch p.Kind() {
	case mapping.KindString, mapping.KindDateTime, mapping.KindUUID:
		return "TEXT", nil
	case mapping.KindEnum:
		if len(p.EnumValues()) == 0 {
			return "", fmt.Errorf("enum property %s has no values", p.PropertyName())
		}
		return "TEXT", nil
	case mapping.KindBinary:
		return "BLOB", nil
	case mapping.KindBool, mapping.KindInt16, mapping.KindInt32, mapping.KindInt64:
		return "INTEGER", nil
	case mapping.KindFloat:
		return "REAL", nil
	case mapping.KindDecimal:
		return "NUMERIC", nil
	case mapping.KindObjectID:
		return d.IDType(), nil
	default:
		return "", fmt.Errorf("unsupported kind: %s", p.Kind())
	}
}

func (d *SQLiteDialect) IDType() string        { return "TEXT" }
func (d *SQLiteDialect) ClassIDType() string   { return "TEXT" }
func (d *SQLiteDialect) TimestampType() string { return "INTEGER" }

func (d *SQLiteDialect) ColumnsQuery() string {
	return "SELECT name FROM pragma_table_info(?) ORDER BY cid"
}

func (d *SQLiteDialect) NativeEnums() bool { return false }

func (d *SQLiteDialect) CreateView(name string) string {
	return fmt.Sprintf("CREATE VIEW IF NOT EXISTS %s AS", d.QuoteIdentifier(name))
}

// EnumTypeName generates a PostgreSQL enum type name for a property
func EnumTypeName(p *mapping.PropertyDefinition) string {
	declaring := mapping.ShortTypeName(p.DeclaringType())
	return fmt.Sprintf("%s_%s_enum", toSnakeCase(declaring), toSnakeCase(p.ShortName()))
}

// toSnakeCase converts a string to snake_case
// Handles acronyms properly (HTTPRequest -> http_request, userID -> user_id)
func toSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if !isAlphanumeric(r) && r != '_' {
			continue
		}

		if r >= 'A' && r <= 'Z' {
			if i > 0 && len(result) > 0 {
				prev := runes[i-1]
				if prev >= 'a' && prev <= 'z' {
					result = append(result, '_')
				} else if prev >= 'A' && prev <= 'Z' {
					if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
						result = append(result, '_')
					}
				}
			}
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}

	// Identifiers cannot start with a digit
	if len(result) > 0 && result[0] >= '0' && result[0] <= '9' {
		result = append([]rune{'_'}, result...)
	}

	return string(result)
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// QuoteIdentifier wraps a SQL identifier in double quotes and escapes internal quotes
func QuoteIdentifier(identifier string) string {
	escaped := strings.ReplaceAll(identifier, `"`, `""`)
	return fmt.Sprintf(`"%s"`, escaped)
}

// quoteLiteral wraps a string literal in single quotes
func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
