package projection

import (
	"math"

	"github.com/sunquote/sunquote/pkg/pricing"
	"github.com/sunquote/sunquote/pkg/types"
)

// projectYear computes one year's energy split, revenue and cost.
//
// All coefficients compound from year 1, so year 1 uses the baseline values
// unchanged. The degradation coefficient is never clamped: an arbitrarily long
// horizon keeps showing decline. Monetary values stay plain float64 with no
// intermediate rounding; rounding to display precision is a presentation
// concern. This function never fails: missing data (e.g. a subscription price
// of 0) contributes zero instead of halting the projection.
func projectYear(p types.QuoteParams, year int, subscriptionMonthly float64, storage pricing.CostParts) types.YearlyResult {
	degradation := math.Pow(1+p.DegradationPercent/100, float64(year-1))
	indexation := math.Pow(1+p.ResaleIndexationPercent/100, float64(year-1))
	revaluation := math.Pow(1+p.EnergyRevaluationPercent/100, float64(year-1))

	production := p.BaselineAnnualKWH * degradation
	autoconsumed := production * p.AutoconsumptionPercent / 100
	surplus := production - autoconsumed

	adjustedBuyPrice := p.BuyPricePerKWH * revaluation
	savings := autoconsumed * adjustedBuyPrice

	var revenue float64
	if p.Storage.Type == types.StorageMyBattery {
		// pooled-simple resells at the buy price minus the grid transport fee,
		// floored at zero
		resalePrice := adjustedBuyPrice - pricing.MyBatteryGridFeePerKWH
		if resalePrice < 0 {
			resalePrice = 0
		}
		revenue = surplus * resalePrice
	} else if year <= types.ResaleGuaranteeYears {
		revenue = surplus * p.ResaleTariffPerKWH * indexation
	}

	var subscriptionCost float64
	if p.FinancingMode == types.FinancingSubscription && year <= p.SubscriptionYears {
		monthly := subscriptionMonthly
		if p.Storage.Type == types.StoragePhysical {
			// a monthly-priced battery is billed with the subscription
			monthly += storage.Monthly
		}
		subscriptionCost = monthly * 12
		if p.TaxExcluded {
			subscriptionCost = exTax(subscriptionCost, p.VATPercent)
		}
	}

	var storageCost float64
	switch p.Storage.Type {
	case types.StorageVirtual, types.StorageMyBattery:
		// pooled storage billing runs for the whole horizon, independent of
		// the subscription term
		storageCost = storage.Monthly * 12
	}

	return types.YearlyResult{
		Year:                   year,
		ProductionKWH:          production,
		AutoconsumedKWH:        autoconsumed,
		SurplusKWH:             surplus,
		SelfConsumptionSavings: savings,
		ResaleRevenue:          revenue,
		SubscriptionCost:       subscriptionCost,
		StorageCost:            storageCost,
		NetGain:                savings + revenue - subscriptionCost - storageCost,
	}
}

func exTax(amount, vatPercent float64) float64 {
	if vatPercent == 0 {
		return amount
	}
	return amount / (1 + vatPercent/100)
}
