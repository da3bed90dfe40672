package pricing

import (
	"github.com/sunquote/sunquote/pkg/types"
)

const (
	// MyBatteryMonthlyPerKWC is the pooled-simple monthly rate per installed kWc.
	MyBatteryMonthlyPerKWC = 1.20

	// MyBatteryGridFeePerKWH is the grid transport fee deducted from the buy
	// price when pricing pooled-simple resale.
	MyBatteryGridFeePerKWH = 0.0996

	DefaultVirtualSetupFee   = 2000
	DefaultMyBatterySetupFee = 179
)

// virtualTierMonthly maps the pooled smart-battery capacity tiers to their
// flat monthly prices.
var virtualTierMonthly = map[int]float64{
	100: 15,
	300: 24,
	600: 30,
	900: 35,
}

// CostParts are the one-time and recurring components of a storage selection.
type CostParts struct {
	OneTime float64 `json:"oneTime"`
	Monthly float64 `json:"monthly"`
}

// StorageCost resolves the cost components for a storage selection. It is
// stateless and recomputes from scratch on every call, so switching selection
// types mid-session needs no reset logic here.
func StorageCost(sel types.StorageSelection, powerKWC float64, mode types.FinancingMode) CostParts {
	switch sel.Type {
	case types.StoragePhysical:
		if sel.Battery == nil {
			return CostParts{}
		}
		if mode == types.FinancingSubscription && sel.Battery.MonthlyPrice > 0 {
			return CostParts{Monthly: sel.Battery.MonthlyPrice}
		}
		// cash mode, or a model without a monthly price financed up front
		return CostParts{OneTime: sel.Battery.OneTimePrice}
	case types.StorageVirtual:
		return CostParts{
			OneTime: setupFee(sel, DefaultVirtualSetupFee),
			Monthly: virtualTierMonthly[sel.VirtualCapacity],
		}
	case types.StorageMyBattery:
		return CostParts{
			OneTime: setupFee(sel, DefaultMyBatterySetupFee),
			Monthly: powerKWC * MyBatteryMonthlyPerKWC,
		}
	}
	return CostParts{}
}

func setupFee(sel types.StorageSelection, fallback float64) float64 {
	fee := sel.SetupFee
	if fee == 0 {
		fee = fallback
	}
	fee -= sel.SetupFeeWaiver
	if fee < 0 {
		fee = 0
	}
	return fee
}
