package cel

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farewatch/pkg/models"
)

func testEvent() models.PriceEvent {
	return models.PriceEvent{
		FlightID:      "TP1234",
		Airline:       "TAP",
		Origin:        "JFK",
		Destination:   "LIS",
		DepartureDate: models.NewFlightDate(time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)),
		Price:         decimal.RequireFromString("420.50"),
		Currency:      "EUR",
	}
}

func TestNewFilter(t *testing.T) {
	tests := []struct {
		name      string
		expr      string
		wantError bool
	}{
		{name: "valid comparison", expr: `price < 500.0`},
		{name: "valid string check", expr: `destination == "LIS"`},
		{name: "invalid syntax", expr: `price <<< 1`, wantError: true},
		{name: "undefined variable", expr: `seats > 3`, wantError: true},
		{name: "non-bool result", expr: `price * 2.0`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(tt.expr)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expr, f.Expression())
		})
	}
}

func TestFilter_Allow(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want bool
	}{
		{name: "price under ceiling", expr: `price < 500.0`, want: true},
		{name: "price over ceiling", expr: `price < 400.0`, want: false},
		{name: "currency", expr: `currency == "EUR"`, want: true},
		{name: "destination list", expr: `destination in ["OPO", "FAO"]`, want: false},
		{name: "departure date", expr: `departureDate > timestamp("2024-06-30T00:00:00Z")`, want: true},
		{name: "source", expr: `source.startsWith("https://")`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(tt.expr)
			require.NoError(t, err)

			got, err := f.Allow(context.Background(), testEvent(), "https://prices.example/api")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterExpressionExamplesCompile(t *testing.T) {
	for name, expr := range FilterExpressionExamples {
		t.Run(name, func(t *testing.T) {
			_, err := NewFilter(expr)
			assert.NoError(t, err)
		})
	}
}
