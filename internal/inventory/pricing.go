package inventory

import "github.com/shopspring/decimal"

var oneHundred = decimal.NewFromInt(100)

// Prices carries the derived selling figures for a stock item.
type Prices struct {
	SellingPrice decimal.Decimal
	FinalPrice   decimal.Decimal
}

// ComputePrices derives the selling and final price from a cost basis:
// sellingPrice = cost * (1 + targetProfitPercent/100),
// finalPrice   = sellingPrice * (1 - percentDiscount/100).
// Pure function shared by stock-in and the price-preview endpoint.
func ComputePrices(cost, targetProfitPercent, percentDiscount decimal.Decimal) Prices {
	selling := cost.Mul(decimal.NewFromInt(1).Add(targetProfitPercent.Div(oneHundred)))
	final := selling.Mul(decimal.NewFromInt(1).Sub(percentDiscount.Div(oneHundred)))
	return Prices{
		SellingPrice: selling.Round(4),
		FinalPrice:   final.Round(4),
	}
}

// WeightedAverageCost blends the existing cost basis with an incoming batch:
// (oldQty*oldAvg + inQty*inCost) / (oldQty+inQty). A zero combined quantity
// yields the incoming cost unchanged.
func WeightedAverageCost(oldQty int, oldAvg decimal.Decimal, inQty int, inCost decimal.Decimal) decimal.Decimal {
	total := oldQty + inQty
	if total <= 0 {
		return inCost
	}
	oldPart := decimal.NewFromInt(int64(oldQty)).Mul(oldAvg)
	newPart := decimal.NewFromInt(int64(inQty)).Mul(inCost)
	return oldPart.Add(newPart).Div(decimal.NewFromInt(int64(total))).Round(4)
}
