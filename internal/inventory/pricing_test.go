package inventory

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestWeightedAverageCost(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		oldQty int
		oldAvg string
		inQty  int
		inCost string
		want   string
	}{
		{"blend", 10, "100", 5, "130", "110"},
		{"first batch", 0, "0", 5, "42.5", "42.5"},
		{"same cost stays", 3, "20", 7, "20", "20"},
		{"fractional", 1, "10", 2, "11.5", "11"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := WeightedAverageCost(
				tc.oldQty, decimal.RequireFromString(tc.oldAvg),
				tc.inQty, decimal.RequireFromString(tc.inCost),
			)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.want)),
				"expected %s, got %s", tc.want, got)
		})
	}
}

func TestComputePrices(t *testing.T) {
	t.Parallel()

	prices := ComputePrices(
		decimal.RequireFromString("100"),
		decimal.RequireFromString("30"),
		decimal.RequireFromString("10"),
	)
	assert.True(t, prices.SellingPrice.Equal(decimal.RequireFromString("130")),
		"selling price: %s", prices.SellingPrice)
	assert.True(t, prices.FinalPrice.Equal(decimal.RequireFromString("117")),
		"final price: %s", prices.FinalPrice)
}

func TestComputePricesZeroDiscount(t *testing.T) {
	t.Parallel()

	prices := ComputePrices(decimal.RequireFromString("80"), decimal.RequireFromString("25"), decimal.Zero)
	assert.True(t, prices.SellingPrice.Equal(prices.FinalPrice))
}
