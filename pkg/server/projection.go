package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sunquote/sunquote/pkg/log"
	"github.com/sunquote/sunquote/pkg/pricing"
	"github.com/sunquote/sunquote/pkg/projection"
	"github.com/sunquote/sunquote/pkg/types"
)

// resolveQuoteInputs fills in the pricing the calculator needs from the agency
// settings and the subscription price cache. Fields the client already set
// (tariff, VAT, subsidy, setup fees) are kept as-is so agents can quote
// negotiated terms.
func (s *Server) resolveQuoteInputs(ctx context.Context, params types.QuoteParams, settings types.Settings) (types.QuoteParams, projection.Inputs) {
	params = params.Normalized()

	if params.VATPercent == 0 {
		params.VATPercent = settings.VATPercent
	}

	if params.ResaleTariffPerKWH == 0 {
		tiers := settings.SurplusTariffs
		if params.ConnectionType == types.ConnectionTotalSale {
			tiers = settings.TotalSaleTariffs
		}
		params.ResaleTariffPerKWH = pricing.ResaleTariff(params.PowerKWC, tiers)
	}

	if params.SubsidyAmount == 0 && params.ConnectionType != types.ConnectionTotalSale {
		bands := settings.SubsidyBands
		if len(bands) == 0 {
			bands = types.DefaultSubsidyBands()
		}
		params.SubsidyAmount = pricing.Subsidy(params.PowerKWC, bands)
	}

	// default setup fees from the agency settings, waiver included
	switch params.Storage.Type {
	case types.StorageVirtual:
		if params.Storage.SetupFee == 0 && settings.VirtualSetupFee > 0 {
			params.Storage.SetupFee = settings.VirtualSetupFee
		}
		if params.Storage.SetupFeeWaiver == 0 {
			params.Storage.SetupFeeWaiver = settings.VirtualSetupFeeWaiver
		}
	case types.StorageMyBattery:
		if params.Storage.SetupFee == 0 && settings.MyBatterySetupFee > 0 {
			params.Storage.SetupFee = settings.MyBatterySetupFee
		}
		if params.Storage.SetupFeeWaiver == 0 {
			params.Storage.SetupFeeWaiver = settings.MyBatterySetupFeeWaiver
		}
	}

	price, ok := pricing.InstallPrice(params.PowerKWC, settings.CustomInstallPrices)
	in := projection.Inputs{
		InstallPrice:        price,
		InstallPriceMissing: !ok,
		Storage:             pricing.StorageCost(params.Storage, params.PowerKWC, params.FinancingMode),
		ActivationFee:       settings.ActivationFee,
		MicroInverterPrice:  settings.MicroInverterPrice,
	}
	if params.FinancingMode == types.FinancingSubscription {
		in.SubscriptionMonthly = s.prices.Monthly(ctx, pricing.RoundPower(params.PowerKWC), params.SubscriptionYears)
	}
	return params, in
}

type projectionResponse struct {
	Params     types.QuoteParams `json:"params"`
	Projection types.Projection  `json:"projection"`
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agencyID := s.getAgencyID(r)

	var req struct {
		Params types.QuoteParams `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode projection request", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Params.PowerKWC <= 0 {
		writeJSONError(w, "powerKWC must be positive", http.StatusBadRequest)
		return
	}
	if req.Params.BaselineAnnualKWH < 0 {
		writeJSONError(w, "baselineAnnualKWH cannot be negative", http.StatusBadRequest)
		return
	}

	settings, err := s.getSettingsWithMigration(ctx, agencyID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	params, in := s.resolveQuoteInputs(ctx, req.Params, settings.Settings)
	proj := projection.Build(params, in)

	if proj.PriceMissing {
		log.Ctx(ctx).InfoContext(ctx, "projection built with missing install price", slog.Float64("powerKWC", params.PowerKWC))
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(projectionResponse{
		Params:     params,
		Projection: proj,
	}); err != nil {
		panic(http.ErrAbortHandler)
	}
}
