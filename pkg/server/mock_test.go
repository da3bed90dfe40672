package server

import (
	"context"
	"net/http"

	"github.com/sunquote/sunquote/pkg/pricing"
	"github.com/sunquote/sunquote/pkg/storage"
	"github.com/sunquote/sunquote/pkg/types"
)

// staticTableSource serves a fixed subscription price table in tests.
type staticTableSource struct {
	table types.SubscriptionPriceTable
	err   error
}

func (s *staticTableSource) LoadSubscriptionPrices(ctx context.Context) (types.SubscriptionPriceTable, error) {
	return s.table, s.err
}

func testPriceTable() types.SubscriptionPriceTable {
	return types.SubscriptionPriceTable{
		Prices: []types.SubscriptionPrice{
			{DurationYears: 10, PowerKWC: 6, MonthlyPrice: 167},
			{DurationYears: 15, PowerKWC: 6, MonthlyPrice: 142},
			{DurationYears: 20, PowerKWC: 6, MonthlyPrice: 121},
			{DurationYears: 10, PowerKWC: 9, MonthlyPrice: 219},
		},
	}
}

// newTestServer builds a Server around the mock database with a warm
// subscription price cache.
func newTestServer(db storage.Database) *Server {
	cache := pricing.NewSubscriptionCache(&staticTableSource{table: testPriceTable()})
	if err := cache.Reload(context.Background()); err != nil {
		panic(err)
	}
	return &Server{
		storage: db,
		prices:  cache,
	}
}

// withAgency injects the agency, user and agency-list context values the auth
// middleware would normally provide.
func withAgency(req *http.Request, agencyID string, user types.User) *http.Request {
	ctx := req.Context()
	ctx = context.WithValue(ctx, agencyIDContextKey, agencyID)
	ctx = context.WithValue(ctx, userContextKey, user)
	ctx = context.WithValue(ctx, allUserAgenciesContextKey, user.Agencies)
	return req.WithContext(ctx)
}

func adminUser() types.User {
	return types.User{
		ID:       "user-1",
		Email:    "admin@example.com",
		Admin:    true,
		Agencies: []types.UserAgency{{ID: "agency-1", Name: "Agency One"}},
	}
}

func currentSettings() types.Settings {
	s, _, err := types.MigrateSettings(types.Settings{}, 0)
	if err != nil {
		panic(err)
	}
	return s
}
