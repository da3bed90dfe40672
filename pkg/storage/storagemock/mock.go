package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/sunquote/sunquote/pkg/storage"
	"github.com/sunquote/sunquote/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetSettings(ctx context.Context, agencyID string) (types.Settings, int, error) {
	args := m.Called(ctx, agencyID)
	// return empty if not specified, or checks args
	if len(args) > 0 {
		return args.Get(0).(types.Settings), args.Int(1), args.Error(2)
	}
	return types.Settings{}, 0, nil
}

func (m *MockDatabase) SetSettings(ctx context.Context, agencyID string, settings types.Settings, version int) error {
	args := m.Called(ctx, agencyID, settings, version)
	return args.Error(0)
}

func (m *MockDatabase) GetSubscriptionPrices(ctx context.Context) (types.SubscriptionPriceTable, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).(types.SubscriptionPriceTable), args.Error(1)
	}
	return types.SubscriptionPriceTable{}, nil
}

func (m *MockDatabase) SetSubscriptionPrices(ctx context.Context, table types.SubscriptionPriceTable) error {
	args := m.Called(ctx, table)
	return args.Error(0)
}

func (m *MockDatabase) UpsertQuote(ctx context.Context, agencyID string, quote types.Quote) error {
	args := m.Called(ctx, agencyID, quote)
	return args.Error(0)
}

func (m *MockDatabase) GetQuote(ctx context.Context, agencyID, quoteID string) (types.Quote, error) {
	args := m.Called(ctx, agencyID, quoteID)
	if len(args) > 0 {
		return args.Get(0).(types.Quote), args.Error(1)
	}
	return types.Quote{}, nil
}

func (m *MockDatabase) ListQuotes(ctx context.Context, agencyID string) ([]types.Quote, error) {
	args := m.Called(ctx, agencyID)
	if len(args) > 0 {
		return args.Get(0).([]types.Quote), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) DeleteQuote(ctx context.Context, agencyID, quoteID string) error {
	args := m.Called(ctx, agencyID, quoteID)
	return args.Error(0)
}

func (m *MockDatabase) GetAgency(ctx context.Context, agencyID string) (types.Agency, error) {
	args := m.Called(ctx, agencyID)
	if len(args) > 0 {
		return args.Get(0).(types.Agency), args.Error(1)
	}
	return types.Agency{}, nil
}

func (m *MockDatabase) ListAgencies(ctx context.Context) ([]types.Agency, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).([]types.Agency), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) CreateAgency(ctx context.Context, agencyID string, agency types.Agency) error {
	args := m.Called(ctx, agencyID, agency)
	return args.Error(0)
}

func (m *MockDatabase) UpdateAgency(ctx context.Context, agencyID string, agency types.Agency) error {
	args := m.Called(ctx, agencyID, agency)
	return args.Error(0)
}

func (m *MockDatabase) GetUser(ctx context.Context, userID string) (types.User, error) {
	args := m.Called(ctx, userID)
	if len(args) > 0 {
		return args.Get(0).(types.User), args.Error(1)
	}
	return types.User{}, nil
}

func (m *MockDatabase) CreateUser(ctx context.Context, user types.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockDatabase) UpdateUser(ctx context.Context, user types.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
