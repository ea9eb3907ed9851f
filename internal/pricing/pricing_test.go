package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/liftme/liftme-go/internal/entities"
	"github.com/liftme/liftme-go/internal/pricing"
)

func TestVehicleByCode(t *testing.T) {
	assert.Equal(t, "crane", pricing.VehicleByCode("crane").Code)
	// Stale or unknown codes fall back to the first class.
	assert.Equal(t, "tow_truck", pricing.VehicleByCode("bulldozer").Code)
	assert.Equal(t, "tow_truck", pricing.VehicleByCode("").Code)
}

func TestEstimate(t *testing.T) {
	tow := pricing.VehicleByCode("tow_truck")

	testCases := []struct {
		name       string
		distanceKm float64
		want       int64
	}{
		{"no route", 0, 8000},
		{"negative distance", -2, 8000},
		{"ten km", 10, 8000 + 10*120},
		{"fractional km rounds", 7.5, 8900},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pricing.Estimate(tow, tc.distanceKm))
		})
	}
}

func TestFromOrder(t *testing.T) {
	crane := pricing.VehicleByCode("crane")
	total := int64(21000)

	testCases := []struct {
		name  string
		order entities.Order
		want  int64
	}{
		{
			name:  "total price wins",
			order: entities.Order{TotalPrice: &total, PricePerMinute: 300, EstimatedMinutes: 10},
			want:  21000,
		},
		{
			name:  "rate times minutes",
			order: entities.Order{PricePerMinute: 300, EstimatedMinutes: 45},
			want:  13500,
		},
		{
			name:  "missing minutes fall back to thirty",
			order: entities.Order{PricePerMinute: 300},
			want:  9000,
		},
		{
			name:  "missing rate derives from base price",
			order: entities.Order{EstimatedMinutes: 30},
			// round(9500/30) = 317
			want: 317 * 30,
		},
		{
			name:  "nothing quoted at all",
			order: entities.Order{},
			want:  317 * 30,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pricing.FromOrder(tc.order, crane))
		})
	}
}

func TestLiveEarnings(t *testing.T) {
	assert.EqualValues(t, 0, pricing.LiveEarnings(300, 0))
	assert.EqualValues(t, 0, pricing.LiveEarnings(0, 600))
	assert.EqualValues(t, 300, pricing.LiveEarnings(300, 60))
	// 90 seconds at 300 per minute.
	assert.EqualValues(t, 450, pricing.LiveEarnings(300, 90))
	// Rounded, not truncated.
	assert.EqualValues(t, 5, pricing.LiveEarnings(300, 1))
}
