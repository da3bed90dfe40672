package main

import (
	"context"
	"fmt"
	"os"

	"github.com/levenlabs/go-lflag"
	"github.com/sunquote/sunquote/pkg/log"
	"github.com/sunquote/sunquote/pkg/storage"
	"github.com/sunquote/sunquote/pkg/types"
)

func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()

	log.Ctx(ctx).InfoContext(ctx, "seeding demo data")

	agencyID := "demo"
	agency := types.Agency{
		ID:         agencyID,
		Name:       "Demo Agency",
		InviteCode: "demo-invite",
	}
	if err := s.CreateAgency(ctx, agencyID, agency); err != nil {
		// already exists from a previous run, keep going
		log.Ctx(ctx).WarnContext(ctx, "failed to create demo agency", "error", err)
	}

	settings, _, err := types.MigrateSettings(types.Settings{}, 0)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to build default settings", "error", err)
		os.Exit(1)
	}
	settings.BatteryModels = []types.BatteryModel{
		{Name: "HomeCell 5", CapacityKWH: 5, OneTimePrice: 4490, AutoconsumptionGain: 15},
		{Name: "HomeCell 10", CapacityKWH: 10, OneTimePrice: 6990, AutoconsumptionGain: 25},
		{Name: "HomeCell 10 Flex", CapacityKWH: 10, MonthlyPrice: 39, AutoconsumptionGain: 25},
	}
	if err := s.SetSettings(ctx, agencyID, settings, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed settings", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded settings for agency %q (version %d)\n", agencyID, types.CurrentSettingsVersion)

	// subscription price grid: duration x power
	var table types.SubscriptionPriceTable
	monthly := map[int]map[float64]float64{
		10: {3: 99, 4.5: 129, 6: 167, 7.5: 195, 9: 219},
		15: {3: 85, 4.5: 112, 6: 142, 7.5: 168, 9: 189},
		20: {3: 74, 4.5: 99, 6: 121, 7.5: 146, 9: 165},
		25: {3: 67, 4.5: 89, 6: 109, 7.5: 131, 9: 149},
	}
	for duration, prices := range monthly {
		for power, price := range prices {
			table.Prices = append(table.Prices, types.SubscriptionPrice{
				DurationYears: duration,
				PowerKWC:      power,
				MonthlyPrice:  price,
			})
		}
	}
	if err := s.SetSubscriptionPrices(ctx, table); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed subscription prices", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded %d subscription prices\n", len(table.Prices))

	// a couple of example quotes so the list view has content
	quotes := []types.Quote{
		{
			ID:           "demo-cash",
			CustomerName: "Dupont",
			Params: types.QuoteParams{
				FinancingMode:            types.FinancingCash,
				ConnectionType:           types.ConnectionSurplus,
				PowerKWC:                 6,
				BaselineAnnualKWH:        6900,
				BuyPricePerKWH:           0.26,
				ResaleTariffPerKWH:       0.1269,
				AutoconsumptionPercent:   70,
				EnergyRevaluationPercent: 3,
				ResaleIndexationPercent:  1,
				DegradationPercent:       -0.2,
				VATPercent:               20,
			},
		},
		{
			ID:           "demo-subscription",
			CustomerName: "Martin",
			Params: types.QuoteParams{
				FinancingMode:            types.FinancingSubscription,
				ConnectionType:           types.ConnectionSurplus,
				PowerKWC:                 9,
				BaselineAnnualKWH:        9800,
				BuyPricePerKWH:           0.26,
				ResaleTariffPerKWH:       0.1269,
				AutoconsumptionPercent:   75,
				EnergyRevaluationPercent: 3,
				SubscriptionYears:        15,
				VATPercent:               20,
				Storage: types.StorageSelection{
					Type:            types.StorageVirtual,
					VirtualCapacity: 300,
				},
			},
		},
	}
	for _, q := range quotes {
		q.Params = q.Params.Normalized()
		if err := s.UpsertQuote(ctx, agencyID, q); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed quote", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Seeded quote %q (%s)\n", q.ID, q.CustomerName)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded demo data successfully")
}
