package projection

import (
	"github.com/sunquote/sunquote/pkg/pricing"
	"github.com/sunquote/sunquote/pkg/types"
)

// Inputs are the scalar pricing inputs the aggregator needs. The caller
// resolves them from the settings store and caches so the projection itself
// stays pure and deterministic.
type Inputs struct {
	// InstallPrice is the resolved base installation price. Missing reports
	// the "contact us" condition; the projection still completes.
	InstallPrice        float64
	InstallPriceMissing bool

	// SubscriptionMonthly is the monthly plan price for the requested power
	// and duration, 0 when the price table is not ready.
	SubscriptionMonthly float64

	// Storage holds the resolved cost parts for the storage selection.
	Storage pricing.CostParts

	ActivationFee      float64
	MicroInverterPrice float64
}

// Build drives the yearly step across the fixed 30-year horizon and assembles
// the aggregate projection: per-category totals and averages, pricing, and the
// break-even year.
//
// Later years depend only on the year index and the fixed inputs, never on
// prior records; the loop exists for accumulation only. A zero installation
// price still yields a complete 30-row projection with degenerate totals.
func Build(params types.QuoteParams, in Inputs) types.Projection {
	p := params.Normalized()

	years := make([]types.YearlyResult, 0, types.ProjectionHorizonYears)
	var totals types.ProjectionTotals
	for year := 1; year <= types.ProjectionHorizonYears; year++ {
		r := projectYear(p, year, in.SubscriptionMonthly, in.Storage)
		years = append(years, r)

		totals.SelfConsumption += r.SelfConsumptionSavings
		totals.Resale += r.ResaleRevenue
		totals.Subscription += r.SubscriptionCost
		totals.Storage += r.StorageCost
		totals.Net += r.NetGain
	}

	n := float64(types.ProjectionHorizonYears)
	averages := types.ProjectionTotals{
		SelfConsumption: totals.SelfConsumption / n,
		Resale:          totals.Resale / n,
		Subscription:    totals.Subscription / n,
		Storage:         totals.Storage / n,
		Net:             totals.Net / n,
	}

	base := in.InstallPrice
	var pooledSetup float64
	switch p.Storage.Type {
	case types.StoragePhysical:
		if p.FinancingMode == types.FinancingCash {
			base += in.Storage.OneTime
		}
	case types.StorageVirtual, types.StorageMyBattery:
		pooledSetup = in.Storage.OneTime
	}

	var upgrades float64
	if p.MicroInverters {
		upgrades = in.MicroInverterPrice
	}

	final := base + upgrades - p.SubsidyAmount - p.CommercialDiscount
	if p.FinancingMode == types.FinancingCash && p.TaxExcluded {
		final = exTax(final, p.VATPercent)
	}

	var outlay float64
	if p.FinancingMode == types.FinancingSubscription {
		// setup fees only: activation, pooled setup, or a battery financed up
		// front under subscription
		outlay = in.ActivationFee + in.Storage.OneTime
	} else {
		// physical battery cost is already part of the final price
		outlay = final + pooledSetup
	}

	var breakEven int
	var cumulative float64
	for _, r := range years {
		cumulative += r.NetGain
		if breakEven == 0 && cumulative >= outlay {
			breakEven = r.Year
		}
	}

	return types.Projection{
		Years:         years,
		Totals:        totals,
		Averages:      averages,
		BreakEvenYear: breakEven,
		BasePrice:     base,
		Subsidy:       p.SubsidyAmount,
		Discount:      p.CommercialDiscount,
		FinalPrice:    final,
		SetupFees:     pooledSetup,
		UpFrontOutlay: outlay,
		PriceMissing:  in.InstallPriceMissing,
	}
}
