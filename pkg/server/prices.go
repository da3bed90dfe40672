package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sunquote/sunquote/pkg/log"
	"github.com/sunquote/sunquote/pkg/pricing"
	"github.com/sunquote/sunquote/pkg/types"
)

type installPriceResponse struct {
	PowerKWC float64 `json:"powerKWC"`
	Amount   float64 `json:"amount"`
	Missing  bool    `json:"missing"`
}

func (s *Server) handleInstallPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agencyID := s.getAgencyID(r)

	power, err := strconv.ParseFloat(r.URL.Query().Get("powerKWC"), 64)
	if err != nil || power <= 0 {
		writeJSONError(w, "powerKWC must be a positive number", http.StatusBadRequest)
		return
	}

	settings, err := s.getSettingsWithMigration(ctx, agencyID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	amount, ok := pricing.InstallPrice(power, settings.CustomInstallPrices)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(installPriceResponse{
		PowerKWC: pricing.RoundPower(power),
		Amount:   amount,
		Missing:  !ok,
	}); err != nil {
		panic(http.ErrAbortHandler)
	}
}

type subscriptionPriceResponse struct {
	PowerKWC      float64 `json:"powerKWC"`
	DurationYears int     `json:"durationYears"`
	MonthlyPrice  float64 `json:"monthlyPrice"`
	// Ready is false while the price table is still loading. A later request
	// will find the table populated.
	Ready bool `json:"ready"`
}

func (s *Server) handleSubscriptionPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	power, err := strconv.ParseFloat(r.URL.Query().Get("powerKWC"), 64)
	if err != nil || power <= 0 {
		writeJSONError(w, "powerKWC must be a positive number", http.StatusBadRequest)
		return
	}
	duration, err := strconv.Atoi(r.URL.Query().Get("durationYears"))
	if err != nil || duration <= 0 {
		writeJSONError(w, "durationYears must be a positive number", http.StatusBadRequest)
		return
	}

	rounded := pricing.RoundPower(power)
	monthly := s.prices.Monthly(ctx, rounded, duration)

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(subscriptionPriceResponse{
		PowerKWC:      rounded,
		DurationYears: duration,
		MonthlyPrice:  monthly,
		Ready:         monthly > 0 || s.prices.Loaded(),
	}); err != nil {
		panic(http.ErrAbortHandler)
	}
}

// handleSetSubscriptionPrices replaces the stored subscription price grid and
// invalidates the cache so the next lookup reloads it.
func (s *Server) handleSetSubscriptionPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user := s.getUser(r)
	if !s.bypassAuth && !s.isMultiAgencyAdmin(user) {
		writeJSONError(w, "unauthorized", http.StatusForbidden)
		return
	}

	var req struct {
		types.SubscriptionPriceTable
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode subscription prices", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	for _, p := range req.Prices {
		if p.PowerKWC <= 0 || p.DurationYears <= 0 || p.MonthlyPrice < 0 {
			writeJSONError(w, "invalid subscription price entry", http.StatusBadRequest)
			return
		}
	}

	if err := s.storage.SetSubscriptionPrices(ctx, req.SubscriptionPriceTable); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save subscription prices", slog.Any("error", err))
		writeJSONError(w, "failed to save subscription prices", http.StatusInternalServerError)
		return
	}

	s.prices.Invalidate()
	log.Ctx(ctx).InfoContext(ctx, "subscription prices updated", slog.Int("entries", len(req.Prices)))

	w.WriteHeader(http.StatusOK)
}
