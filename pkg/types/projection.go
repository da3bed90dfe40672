package types

// ProjectionHorizonYears is the fixed projection length.
const ProjectionHorizonYears = 30

// ResaleGuaranteeYears is the feed-in tariff guarantee window. It does not
// vary with the subscription duration.
const ResaleGuaranteeYears = 20

// YearlyResult is the computed outcome for a single year of the projection.
type YearlyResult struct {
	Year int `json:"year"`

	ProductionKWH   float64 `json:"productionKWH"`
	AutoconsumedKWH float64 `json:"autoconsumedKWH"`
	SurplusKWH      float64 `json:"surplusKWH"`

	SelfConsumptionSavings float64 `json:"selfConsumptionSavings"`
	ResaleRevenue          float64 `json:"resaleRevenue"`
	SubscriptionCost       float64 `json:"subscriptionCost"`
	StorageCost            float64 `json:"storageCost"`

	// NetGain = SelfConsumptionSavings + ResaleRevenue - SubscriptionCost - StorageCost
	NetGain float64 `json:"netGain"`
}

// ProjectionTotals holds one amount per projection category.
type ProjectionTotals struct {
	SelfConsumption float64 `json:"selfConsumption"`
	Resale          float64 `json:"resale"`
	Subscription    float64 `json:"subscription"`
	Storage         float64 `json:"storage"`
	Net             float64 `json:"net"`
}

// Projection is the aggregate output of a projection run. It is owned by the
// caller and immutable once returned.
type Projection struct {
	Years []YearlyResult `json:"years"`

	Totals   ProjectionTotals `json:"totals"`
	Averages ProjectionTotals `json:"averages"`

	// BreakEvenYear is the first year at which the cumulative net gain covers
	// the up-front outlay, or 0 if never reached within the horizon.
	BreakEvenYear int `json:"breakEvenYear"`

	BasePrice  float64 `json:"basePrice"`
	Subsidy    float64 `json:"subsidy"`
	Discount   float64 `json:"discount"`
	FinalPrice float64 `json:"finalPrice"`

	// SetupFees are one-time charges for pooled storage products.
	SetupFees     float64 `json:"setupFees"`
	UpFrontOutlay float64 `json:"upFrontOutlay"`

	// PriceMissing is set when no installation price could be resolved for the
	// requested power. The projection is still complete, with degenerate totals.
	PriceMissing bool `json:"priceMissing,omitempty"`
}
