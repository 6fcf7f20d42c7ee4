package ui

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conduit-lang/mapping/internal/mapping"
)

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, true, "TYPE", "KIND", "ENTITY")
	table.AddRow("Sales.Company", "class", "Company")
	table.AddRow("Sales.IContact", "interface")

	table.Render()

	expected := "TYPE            KIND       ENTITY\n" +
		"──────────────  ─────────  ───────\n" +
		"Sales.Company   class      Company\n" +
		"Sales.IContact  interface  \n"
	assert.Equal(t, expected, buf.String())
	assert.Equal(t, 2, table.Len())
}

func TestTable_NoHeaders(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, true).Render()
	assert.Empty(t, buf.String())
}

func TestKeyValueTable_Render(t *testing.T) {
	var buf bytes.Buffer
	table := NewKeyValueTable(&buf, true)
	table.AddRow("Class ID", "Customer")
	table.AddRow("Base", "Sales.Company")
	table.Render()

	assert.Equal(t, "Class ID: Customer\nBase:     Sales.Company\n", buf.String())
}

func TestHeader(t *testing.T) {
	var buf bytes.Buffer
	Header(&buf, "Types", true)
	assert.Equal(t, "Types\n─────\n", buf.String())
}

func TestFormat(t *testing.T) {
	out := Format(Message{
		Context:     "type not found",
		Problem:     "Cannot find type 'Custmer'.",
		Suggestions: []string{"Sales.Customer"},
		Hints:       []string{"List all types: mapping inspect types"},
		NoColor:     true,
	})

	assert.Equal(t, "✗ TYPE NOT FOUND: Cannot find type 'Custmer'.\n\n"+
		"   Did you mean: Sales.Customer?\n\n"+
		"   → List all types: mapping inspect types\n", out)

	assert.Equal(t, "! careful\n", Warning("careful", true))
}

func TestValidationFailed(t *testing.T) {
	out := ValidationFailed([]mapping.ValidationFailure{
		{Type: "Sales.Order", Message: "first"},
		{Type: "Sales.Customer", Property: "Sales.Customer.Orders", Message: "second"},
	}, true)

	assert.Contains(t, out, "MAPPING INVALID: 2 validation failures.")
	assert.Contains(t, out, "   - ")
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")

	single := ValidationFailed([]mapping.ValidationFailure{{Message: "only"}}, true)
	assert.Contains(t, single, "1 validation failure.")
}

func TestMessageHelpers(t *testing.T) {
	assert.Contains(t, TypeNotFound("X", nil, true), "Cannot find type 'X'.")
	assert.Contains(t, RelationNotFound("A:B", []string{"A:C"}, true), "Did you mean: A:C?")
	assert.Contains(t, ConfigError(errors.New("bad port"), true), "CONFIGURATION ERROR: bad port")
	assert.Equal(t, "✓ done", FormatSuccess("done", true))

	var buf bytes.Buffer
	WriteSuccess(&buf, "done", true)
	assert.Equal(t, "✓ done\n", buf.String())
}

func TestSimilarNames(t *testing.T) {
	candidates := []string{"Sales.Customer", "Sales.Company", "Sales.Order", "Sales.OrderItem"}

	tests := []struct {
		target   string
		expected []string
	}{
		{"Custmer", []string{"Sales.Customer"}},
		{"sales.ordr", []string{"Sales.Order"}},
		{"Compnay", []string{"Sales.Company"}},
		{"Unrelated", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.expected, SimilarNames(tt.target, candidates))
		})
	}
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 3, LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 3, LevenshteinDistance("saturday", "sunday"))
	assert.Equal(t, 4, LevenshteinDistance("", "abcd"))
	assert.Equal(t, 0, LevenshteinDistance("same", "same"))
}
