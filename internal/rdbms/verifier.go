package rdbms

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Mismatch is a difference between the mapped and the actual schema
type Mismatch struct {
	Entity string `json:"entity"`
	Column string `json:"column,omitempty"`
	Reason string `json:"reason"`
}

func (m Mismatch) String() string {
	if m.Column == "" {
		return fmt.Sprintf("%s: %s", m.Entity, m.Reason)
	}
	return fmt.Sprintf("%s.%s: %s", m.Entity, m.Column, m.Reason)
}

// Verifier compares storage entities with the schema of a live database
type Verifier struct {
	db      *sql.DB
	dialect Dialect
}

// NewVerifier creates a verifier for a database of the given dialect
func NewVerifier(db *sql.DB, dialect Dialect) *Verifier {
	return &Verifier{db: db, dialect: dialect}
}

// Verify checks that every table and view exists and has every mapped
// column. Missing entities and columns are returned as mismatches; only
// database failures are returned as errors.
func (v *Verifier) Verify(ctx context.Context, entities []Entity) ([]Mismatch, error) {
	var mismatches []Mismatch

	for _, entity := range entities {
		if entity.Kind() == EntityNull {
			continue
		}

		actual, err := v.columns(ctx, entity.EntityName())
		if err != nil {
			return nil, fmt.Errorf("failed to read columns of %s: %w", entity.EntityName(), err)
		}
		if len(actual) == 0 {
			mismatches = append(mismatches, Mismatch{
				Entity: entity.EntityName(),
				Reason: fmt.Sprintf("%s does not exist", strings.ReplaceAll(entity.Kind().String(), "_", " ")),
			})
			continue
		}

		for _, column := range entity.Columns() {
			if !actual[strings.ToLower(column.Name)] {
				mismatches = append(mismatches, Mismatch{
					Entity: entity.EntityName(),
					Column: column.Name,
					Reason: "column does not exist",
				})
			}
		}
	}

	return mismatches, nil
}

// columns returns the lower-cased column names of a table or view
func (v *Verifier) columns(ctx context.Context, entity string) (map[string]bool, error) {
	rows, err := v.db.QueryContext(ctx, v.dialect.ColumnsQuery(), entity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		result[strings.ToLower(name)] = true
	}
	return result, rows.Err()
}
