package mapping_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/mapping/internal/configuration"
	"github.com/conduit-lang/mapping/internal/mapping"
	"github.com/conduit-lang/mapping/internal/testdomain"
)

func TestParseSortExpression(t *testing.T) {
	cfg, err := configuration.BuildFromDomain(testdomain.Domain())
	require.NoError(t, err)
	order, err := cfg.GetTypeDefinition(testdomain.Order)
	require.NoError(t, err)

	tests := []struct {
		name    string
		text    string
		want    string
		wantErr string
	}{
		{
			name: "short names",
			text: "OrderNumber desc, DeliveryDate",
			want: "Sales.Order.OrderNumber desc, Sales.Order.DeliveryDate asc",
		},
		{
			name: "full name and long order",
			text: "Sales.Order.OrderNumber ascending",
			want: "Sales.Order.OrderNumber asc",
		},
		{
			name:    "invalid order",
			text:    "OrderNumber sideways",
			wantErr: "'sideways' is not a valid sort order",
		},
		{
			name:    "too many words",
			text:    "OrderNumber desc now",
			wantErr: "'OrderNumber desc now' has more than two words",
		},
		{
			name:    "empty component",
			text:    "OrderNumber,",
			wantErr: "empty sort specification",
		},
		{
			name:    "unknown property",
			text:    "Total",
			wantErr: "type 'Sales.Order' has no property 'Total'",
		},
		{
			name:    "virtual end point",
			text:    "OrderItems",
			wantErr: "property 'Sales.Order.OrderItems' is a virtual relation end point and cannot be used for sorting",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := mapping.ParseSortExpression(tt.text, order)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Contains(t, err.Error(), "sort expression '"+tt.text+"' cannot be parsed")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr.String())
		})
	}
}
