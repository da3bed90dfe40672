package pricing

import (
	"math"

	"github.com/sunquote/sunquote/pkg/types"
)

// ProTierThresholdKWC is the boundary between the residential and professional
// installation price tables.
const ProTierThresholdKWC = 9

// defaultInstallPrices is the built-in residential price table, keyed by power
// in half-kWc steps up to 9 kWc. Amounts include tax.
var defaultInstallPrices = map[float64]float64{
	2.5: 7990,
	3:   8990,
	3.5: 9990,
	4:   10490,
	4.5: 11490,
	5:   11990,
	5.5: 12490,
	6:   12990,
	6.5: 13490,
	7:   13990,
	7.5: 14490,
	8:   14990,
	8.5: 15490,
	9:   15990,
}

// defaultProInstallPrices is the built-in professional-tier table for powers
// above 9 kWc. Custom overrides fill the gaps between these points.
var defaultProInstallPrices = map[float64]float64{
	10: 17490,
	12: 20490,
	15: 24990,
	20: 32490,
	25: 39990,
	30: 46990,
	36: 54990,
}

// RoundPower rounds a power rating to the nearest 0.5 kWc increment.
func RoundPower(powerKWC float64) float64 {
	return math.Round(powerKWC*2) / 2
}

// InstallPrice resolves the flat installation price for a power rating.
//
// Resolution order: an exact override match, then the built-in residential
// table (power <= 9 kWc), then the built-in professional table, then the
// override whose power above 9 kWc is numerically closest (ties resolve to
// the lower power). When nothing resolves it returns (0, false); the caller
// surfaces that as a "contact us" condition rather than an error.
func InstallPrice(powerKWC float64, overrides []types.PricePoint) (float64, bool) {
	p := RoundPower(powerKWC)

	for _, o := range overrides {
		if o.PowerKWC == p {
			return o.Amount, true
		}
	}

	if p <= ProTierThresholdKWC {
		if amount, ok := defaultInstallPrices[p]; ok {
			return amount, true
		}
		return 0, false
	}

	if amount, ok := defaultProInstallPrices[p]; ok {
		return amount, true
	}

	// fall back to the closest professional-tier override
	var best types.PricePoint
	bestDiff := math.Inf(1)
	for _, o := range overrides {
		if o.PowerKWC <= ProTierThresholdKWC {
			continue
		}
		diff := math.Abs(o.PowerKWC - p)
		if diff < bestDiff || (diff == bestDiff && o.PowerKWC < best.PowerKWC) {
			best = o
			bestDiff = diff
		}
	}
	if !math.IsInf(bestDiff, 1) {
		return best.Amount, true
	}

	return 0, false
}

// ResaleTariff resolves the per-kWh feed-in tariff for the given power from
// ordered tiers. Returns 0 when no tier covers the power.
func ResaleTariff(powerKWC float64, tiers []types.TariffTier) float64 {
	for _, t := range tiers {
		if powerKWC <= t.MaxKWC {
			return t.PerKWH
		}
	}
	return 0
}
