package types

import (
	"strings"
	"time"
)

const (
	AgencyIDNone = "none"

	CurrentQuoteVersion = 1
)

// FinancingMode is how the customer pays for the installation.
type FinancingMode string

const (
	FinancingCash         FinancingMode = "cash"
	FinancingSubscription FinancingMode = "subscription"
)

// ConnectionType is how the installation is connected to the grid.
type ConnectionType string

const (
	// ConnectionSurplus self-consumes and sells the surplus.
	ConnectionSurplus ConnectionType = "surplus"
	// ConnectionTotalAuto self-consumes everything, nothing is exported.
	ConnectionTotalAuto ConnectionType = "total_auto"
	// ConnectionTotalSale exports everything, nothing is self-consumed.
	ConnectionTotalSale ConnectionType = "total_sale"
)

// StorageType identifies the storage product attached to a quote.
type StorageType string

const (
	StorageNone StorageType = ""
	// StoragePhysical is an on-site battery with a specific model.
	StoragePhysical StorageType = "physical"
	// StorageVirtual is the pooled "smart battery" product billed by capacity tier.
	StorageVirtual StorageType = "virtual"
	// StorageMyBattery is the pooled-simple product billed per installed kWc.
	StorageMyBattery StorageType = "mybattery"
)

// BatteryModel describes a physical battery product.
// A model is priced either one-time (cash) or monthly (subscription), never both.
type BatteryModel struct {
	Name                 string  `json:"name"`
	CapacityKWH          float64 `json:"capacityKWH"`
	OneTimePrice         float64 `json:"oneTimePrice"`
	MonthlyPrice         float64 `json:"monthlyPrice"`
	AutoconsumptionGain  float64 `json:"autoconsumptionGain"`
}

// StorageSelection is the storage product chosen for a quote.
// Only the fields relevant to Type are set.
type StorageSelection struct {
	Type StorageType `json:"type"`
	// Battery is set when Type is StoragePhysical.
	Battery *BatteryModel `json:"battery,omitempty"`
	// VirtualCapacity is the pooled capacity tier (100/300/600/900) when Type is StorageVirtual.
	VirtualCapacity int `json:"virtualCapacity,omitempty"`
	// SetupFee overrides the default setup fee when non-zero.
	SetupFee float64 `json:"setupFee,omitempty"`
	// SetupFeeWaiver is a promotional reduction applied to the setup fee.
	SetupFeeWaiver float64 `json:"setupFeeWaiver,omitempty"`
}

// QuoteParams is the full input snapshot for one projection run.
// It is owned by the caller and never mutated by the calculator.
type QuoteParams struct {
	FinancingMode  FinancingMode  `json:"financingMode"`
	ConnectionType ConnectionType `json:"connectionType"`

	PowerKWC          float64 `json:"powerKWC"`
	BaselineAnnualKWH float64 `json:"baselineAnnualKWH"`

	// BuyPricePerKWH is what the customer pays the utility per kWh.
	BuyPricePerKWH     float64 `json:"buyPricePerKWH"`
	ResaleTariffPerKWH float64 `json:"resaleTariffPerKWH"`

	// AutoconsumptionPercent is the share of production consumed on-site (0-100).
	AutoconsumptionPercent float64 `json:"autoconsumptionPercent"`

	// Annual rates in percent. DegradationPercent is negative (e.g. -0.2).
	EnergyRevaluationPercent float64 `json:"energyRevaluationPercent"`
	ResaleIndexationPercent  float64 `json:"resaleIndexationPercent"`
	DegradationPercent       float64 `json:"degradationPercent"`

	// SubscriptionYears is one of 10, 15, 20 or 25.
	SubscriptionYears int `json:"subscriptionYears"`

	// SubsidyAmount is precomputed upstream from the configured bands.
	SubsidyAmount      float64 `json:"subsidyAmount"`
	CommercialDiscount float64 `json:"commercialDiscount"`

	Storage StorageSelection `json:"storage"`

	MicroInverters bool `json:"microInverters"`

	// TaxExcluded requests amounts expressed excluding VAT.
	TaxExcluded bool    `json:"taxExcluded"`
	VATPercent  float64 `json:"vatPercent"`
}

// Normalized applies the configuration rules the quote UI enforces before a
// projection runs. The calculator assumes these already hold.
func (p QuoteParams) Normalized() QuoteParams {
	if p.ConnectionType == ConnectionTotalSale {
		p.AutoconsumptionPercent = 0
		// total-sale installations cannot carry a storage product
		p.Storage = StorageSelection{}
	}
	if p.Storage.Type == StorageVirtual {
		// the pooled smart battery claims 100% effective autoconsumption
		p.AutoconsumptionPercent = 100
	}
	return p
}

// SanitizeNumericField strips everything but digits from a free-form numeric
// form field (e.g. a fiscal-income input) before it is parsed.
func SanitizeNumericField(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LineItem is one row of the pricing breakdown shown on the quote document.
type LineItem struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// Quote is a persisted quote session for an agency.
type Quote struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customerName"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Params QuoteParams `json:"params"`

	MountingSystem string `json:"mountingSystem,omitempty"`
	PromoCode      string `json:"promoCode,omitempty"`

	LineItems []LineItem `json:"lineItems,omitempty"`

	// Projection is the last computed projection for these parameters.
	Projection *Projection `json:"projection,omitempty"`
}

// Agency represents a sales agency whose agents produce quotes.
type Agency struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	InviteCode  string              `json:"inviteCode"`
	Permissions []AgencyPermissions `json:"permissions"`
}

// AgencyPermissions represents the permissions for a user on an agency.
type AgencyPermissions struct {
	UserID string `json:"userID"`
}

// UserAgency represents an agency on a user.
type UserAgency struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User represents a sales agent.
type User struct {
	ID       string       `json:"id"`
	Email    string       `json:"email"`
	Agencies []UserAgency `json:"agencies"`
	Admin    bool         `json:"-"`
}
