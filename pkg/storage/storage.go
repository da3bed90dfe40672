package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/levenlabs/go-lflag"
	"github.com/sunquote/sunquote/pkg/types"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrAgencyNotFound = errors.New("agency not found")
	ErrQuoteNotFound  = errors.New("quote not found")
)

// Database defines the interface for persisting quotes and retrieving pricing data.
type Database interface {
	// Pricing settings, versioned per agency.
	GetSettings(ctx context.Context, agencyID string) (types.Settings, int, error)
	SetSettings(ctx context.Context, agencyID string, settings types.Settings, version int) error

	// Subscription price grid (global catalog).
	GetSubscriptionPrices(ctx context.Context) (types.SubscriptionPriceTable, error)
	SetSubscriptionPrices(ctx context.Context, table types.SubscriptionPriceTable) error

	// Quotes
	UpsertQuote(ctx context.Context, agencyID string, quote types.Quote) error
	GetQuote(ctx context.Context, agencyID, quoteID string) (types.Quote, error)
	ListQuotes(ctx context.Context, agencyID string) ([]types.Quote, error)
	DeleteQuote(ctx context.Context, agencyID, quoteID string) error

	// Agencies & Users
	GetAgency(ctx context.Context, agencyID string) (types.Agency, error)
	ListAgencies(ctx context.Context) ([]types.Agency, error)
	CreateAgency(ctx context.Context, agencyID string, agency types.Agency) error
	UpdateAgency(ctx context.Context, agencyID string, agency types.Agency) error
	GetUser(ctx context.Context, userID string) (types.User, error)
	CreateUser(ctx context.Context, user types.User) error
	UpdateUser(ctx context.Context, user types.User) error

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
