package mapping

import (
	"fmt"
	"strings"
)

// SortOrder is the direction of a sort specification
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

// String returns the string representation of the sort order
func (o SortOrder) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// SortedProperty is one component of a sort expression
type SortedProperty struct {
	Property *PropertyDefinition
	Order    SortOrder
}

// SortExpression is a parsed sort expression of a collection end point
type SortExpression struct {
	Specifications []SortedProperty
}

// String renders the expression with full property names
func (s *SortExpression) String() string {
	parts := make([]string, len(s.Specifications))
	for i, spec := range s.Specifications {
		parts[i] = spec.Property.PropertyName() + " " + spec.Order.String()
	}
	return strings.Join(parts, ", ")
}

// ParseSortExpression parses "Prop [asc|desc], ..." and resolves every
// property against td. Names may be short or full property names.
func ParseSortExpression(text string, td TypeDefinition) (*SortExpression, error) {
	fail := func(format string, args ...interface{}) error {
		return &MappingError{
			Type:    td.TypeName(),
			Message: fmt.Sprintf("sort expression '%s' cannot be parsed: ", text) + fmt.Sprintf(format, args...),
		}
	}

	expr := &SortExpression{}
	for _, component := range strings.Split(text, ",") {
		fields := strings.Fields(component)
		if len(fields) == 0 {
			return nil, fail("empty sort specification")
		}
		if len(fields) > 2 {
			return nil, fail("'%s' has more than two words", strings.TrimSpace(component))
		}

		order := Ascending
		if len(fields) == 2 {
			switch strings.ToLower(fields[1]) {
			case "asc", "ascending":
				order = Ascending
			case "desc", "descending":
				order = Descending
			default:
				return nil, fail("'%s' is not a valid sort order", fields[1])
			}
		}

		property, err := resolveSortProperty(td, fields[0])
		if err != nil {
			return nil, fail("%s", err.Error())
		}
		expr.Specifications = append(expr.Specifications, SortedProperty{Property: property, Order: order})
	}

	return expr, nil
}

func resolveSortProperty(td TypeDefinition, name string) (*PropertyDefinition, error) {
	if p, err := td.GetPropertyDefinition(name); err == nil {
		return p, nil
	}
	if p, err := FindPropertyByShortName(td, name); err == nil {
		return p, nil
	}
	if ep, err := FindEndPointByShortName(td, ShortName(name)); err == nil && ep.IsVirtual() {
		return nil, fmt.Errorf("property '%s' is a virtual relation end point and cannot be used for sorting", ep.PropertyName())
	}
	return nil, fmt.Errorf("type '%s' has no property '%s'", td.TypeName(), name)
}
