package billing

import (
	"gitlab.ozon.dev/pupkingeorgij/parcelhub/internal/money"
)

// HeavyParcelWeight is the weight in pounds above which a parcel ships alone.
const HeavyParcelWeight = 50.0

type handlingTier struct {
	maxWeight float64
	fee       money.Money
}

var handlingTiers = []handlingTier{
	{maxWeight: 10, fee: money.MustParse("3.00")},
	{maxWeight: 30, fee: money.MustParse("5.00")},
	{maxWeight: HeavyParcelWeight, fee: money.MustParse("8.00")},
}

var heavyHandlingFee = money.MustParse("15.00")

// HandlingFee is the flat per-parcel fee charged on hub pickup or retrieval,
// tiered by weight in pounds. It is independent of storage debt.
func HandlingFee(weight float64) money.Money {
	for _, tier := range handlingTiers {
		if weight <= tier.maxWeight {
			return tier.fee
		}
	}
	return heavyHandlingFee
}

// IsHeavy reports whether a parcel must ship in a group of its own.
func IsHeavy(weight float64) bool {
	return weight > HeavyParcelWeight
}
