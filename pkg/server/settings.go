package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sunquote/sunquote/pkg/log"
	"github.com/sunquote/sunquote/pkg/types"
)

type settingsWithVersion struct {
	types.Settings
	version int
}

func (s *Server) getSettingsWithMigration(ctx context.Context, agencyID string) (settingsWithVersion, error) {
	settings, version, err := s.storage.GetSettings(ctx, agencyID)
	if err != nil {
		return settingsWithVersion{}, err
	}
	sv := settingsWithVersion{
		Settings: settings,
		version:  version,
	}

	// Check for migration
	if version < types.CurrentSettingsVersion {
		log.Ctx(ctx).InfoContext(ctx, "migrating settings", slog.Int("oldVersion", version), slog.Int("newVersion", types.CurrentSettingsVersion))
		newSettings, changed, err := types.MigrateSettings(settings, version)
		if err != nil {
			// Log error but return settings as is (best effort)
			log.Ctx(ctx).ErrorContext(ctx, "failed to migrate settings", slog.Int("currentVersion", version), slog.Any("error", err))
		} else if changed {
			sv.Settings = newSettings
			sv.version = types.CurrentSettingsVersion
			if err := s.storage.SetSettings(ctx, agencyID, newSettings, types.CurrentSettingsVersion); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to save migrated settings", slog.Any("error", err))
				// Return migrated settings even if save failed, so current request works with new defaults
			} else {
				log.Ctx(ctx).InfoContext(ctx, "saved migrated settings", slog.Int("oldVersion", version), slog.Int("newVersion", types.CurrentSettingsVersion))
			}
		}
	}

	return sv, nil
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agencyID := s.getAgencyID(r)
	settings, err := s.getSettingsWithMigration(ctx, agencyID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(settings.Settings); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func validateSettings(settings types.Settings) string {
	if settings.VATPercent < 0 || settings.VATPercent > 100 {
		return "vat percent must be between 0 and 100"
	}
	if settings.ActivationFee < 0 {
		return "activation fee cannot be negative"
	}
	if settings.MicroInverterPrice < 0 {
		return "micro-inverter price cannot be negative"
	}
	if settings.VirtualSetupFee < 0 || settings.MyBatterySetupFee < 0 {
		return "setup fees cannot be negative"
	}
	if settings.VirtualSetupFeeWaiver < 0 || settings.MyBatterySetupFeeWaiver < 0 {
		return "setup fee waivers cannot be negative"
	}
	for _, b := range settings.SubsidyBands {
		if b.MinKWC > b.MaxKWC {
			return "subsidy band min power cannot exceed max power"
		}
		if b.PerKWC < 0 {
			return "subsidy rate cannot be negative"
		}
	}
	for _, t := range settings.SurplusTariffs {
		if t.PerKWH < 0 {
			return "surplus tariff cannot be negative"
		}
	}
	for _, t := range settings.TotalSaleTariffs {
		if t.PerKWH < 0 {
			return "total-sale tariff cannot be negative"
		}
	}
	for _, p := range settings.CustomInstallPrices {
		if p.PowerKWC <= 0 {
			return "custom install price power must be positive"
		}
		if p.Amount < 0 {
			return "custom install price cannot be negative"
		}
	}
	for _, m := range settings.BatteryModels {
		if m.OneTimePrice < 0 || m.MonthlyPrice < 0 {
			return "battery model prices cannot be negative"
		}
	}
	return ""
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agencyID := s.getAgencyID(r)

	// Validate Authentication from Context (set by authMiddleware)
	user := s.getUser(r)
	if !s.bypassAuth && user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}

	if !user.Admin {
		log.Ctx(ctx).WarnContext(ctx, "unauthorized for settings update", slog.String("userID", user.ID), slog.String("email", user.Email))
		writeJSONError(w, "unauthorized", http.StatusForbidden)
		return
	}

	var newSettings types.Settings
	if err := json.NewDecoder(r.Body).Decode(&newSettings); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode settings", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if msg := validateSettings(newSettings); msg != "" {
		writeJSONError(w, msg, http.StatusBadRequest)
		return
	}

	if err := s.storage.SetSettings(ctx, agencyID, newSettings, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save settings", slog.Any("error", err))
		writeJSONError(w, "failed to save settings", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "settings updated")

	w.WriteHeader(http.StatusOK)
}
