package types

import (
	"fmt"
)

// CurrentSettingsVersion is the current version of the pricing settings struct.
// Increment this value when adding new fields that require default values.
const CurrentSettingsVersion = 4

// SubsidyBand maps a power range to a per-kWc subsidy amount.
type SubsidyBand struct {
	MinKWC float64 `json:"minKWC"`
	MaxKWC float64 `json:"maxKWC"`
	PerKWC float64 `json:"perKWC"`
}

// TariffTier maps a maximum power to a feed-in tariff. Tiers are ordered by
// MaxKWC ascending and the first tier with power <= MaxKWC wins.
type TariffTier struct {
	MaxKWC float64 `json:"maxKWC"`
	PerKWH float64 `json:"perKWH"`
}

// PricePoint is one entry of an installation price table.
type PricePoint struct {
	PowerKWC float64 `json:"powerKWC"`
	Amount   float64 `json:"amount"`
}

// Settings represents the pricing configuration stored in the database.
// These are dynamic settings that can be changed without redeploying.
type Settings struct {
	// SubsidyBands configure the autoconsumption subsidy per power range.
	SubsidyBands []SubsidyBand `json:"subsidyBands"`

	// Feed-in tariffs by power tier, per connection type.
	SurplusTariffs   []TariffTier `json:"surplusTariffs"`
	TotalSaleTariffs []TariffTier `json:"totalSaleTariffs"`

	// CustomInstallPrices override the built-in installation price tables.
	CustomInstallPrices []PricePoint `json:"customInstallPrices"`

	// ActivationFee is the one-time fee due when a subscription starts.
	ActivationFee float64 `json:"activationFee"`

	// MicroInverterPrice is the flat price of the micro-inverter upgrade.
	MicroInverterPrice float64 `json:"microInverterPrice"`

	VATPercent float64 `json:"vatPercent"`

	// Setup fees and promotional waivers for the pooled storage products.
	VirtualSetupFee         float64 `json:"virtualSetupFee"`
	VirtualSetupFeeWaiver   float64 `json:"virtualSetupFeeWaiver"`
	MyBatterySetupFee       float64 `json:"myBatterySetupFee"`
	MyBatterySetupFeeWaiver float64 `json:"myBatterySetupFeeWaiver"`

	// BatteryModels is the catalog of physical batteries offered.
	BatteryModels []BatteryModel `json:"batteryModels"`
}

// DefaultSubsidyBands is the hardcoded fallback used when the remote settings
// store could not be reached.
func DefaultSubsidyBands() []SubsidyBand {
	return []SubsidyBand{
		{MinKWC: 0, MaxKWC: 3, PerKWC: 220},
		{MinKWC: 3, MaxKWC: 9, PerKWC: 160},
		{MinKWC: 9, MaxKWC: 36, PerKWC: 190},
		{MinKWC: 36, MaxKWC: 100, PerKWC: 100},
	}
}

// MigrateSettings migrates the settings to the current version.
// It returns the migrated settings, a boolean indicating if changes were made,
// and an error if migration failed.
func MigrateSettings(s Settings, currentVersion int) (Settings, bool, error) {
	if currentVersion >= CurrentSettingsVersion {
		return s, false, nil
	}

	migrated := false
	// Loop through versions to apply migrations sequentially
	for version := currentVersion + 1; version <= CurrentSettingsVersion; version++ {
		switch version {
		case 1:
			// version 1: initial
			if len(s.SubsidyBands) == 0 {
				s.SubsidyBands = DefaultSubsidyBands()
				migrated = true
			}
			if s.VATPercent == 0 {
				s.VATPercent = 20
				migrated = true
			}
		case 2:
			// version 2: add feed-in tariff tiers
			if len(s.SurplusTariffs) == 0 {
				s.SurplusTariffs = []TariffTier{
					{MaxKWC: 9, PerKWH: 0.1269},
					{MaxKWC: 100, PerKWH: 0.0761},
				}
				migrated = true
			}
			if len(s.TotalSaleTariffs) == 0 {
				s.TotalSaleTariffs = []TariffTier{
					{MaxKWC: 3, PerKWH: 0.1430},
					{MaxKWC: 9, PerKWH: 0.1215},
					{MaxKWC: 100, PerKWH: 0.1031},
				}
				migrated = true
			}
		case 3:
			// version 3: subscription activation fee and upgrade pricing
			if s.ActivationFee == 0 {
				s.ActivationFee = 499
				migrated = true
			}
			if s.MicroInverterPrice == 0 {
				s.MicroInverterPrice = 990
				migrated = true
			}
		case 4:
			// version 4: pooled storage setup fees
			if s.VirtualSetupFee == 0 {
				s.VirtualSetupFee = 2000
				migrated = true
			}
			if s.MyBatterySetupFee == 0 {
				s.MyBatterySetupFee = 179
				migrated = true
			}
		default:
			return s, false, fmt.Errorf("unknown settings version: %d", version)
		}
	}

	return s, migrated, nil
}

// SubscriptionPrice is one entry of the subscription price grid.
type SubscriptionPrice struct {
	DurationYears int     `json:"durationYears"`
	PowerKWC      float64 `json:"powerKWC"`
	MonthlyPrice  float64 `json:"monthlyPrice"`
}

// SubscriptionPriceTable is the externally-sourced subscription price grid,
// keyed by duration then power.
type SubscriptionPriceTable struct {
	Prices []SubscriptionPrice `json:"prices"`
}

// Empty reports whether the table holds no entries.
func (t SubscriptionPriceTable) Empty() bool {
	return len(t.Prices) == 0
}

// Monthly returns the monthly price for the given power and duration, or 0
// when no entry matches.
func (t SubscriptionPriceTable) Monthly(powerKWC float64, durationYears int) float64 {
	for _, p := range t.Prices {
		if p.DurationYears == durationYears && p.PowerKWC == powerKWC {
			return p.MonthlyPrice
		}
	}
	return 0
}
