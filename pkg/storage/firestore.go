package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/sunquote/sunquote/pkg/log"
	"github.com/sunquote/sunquote/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. It persists pricing settings, quotes, agencies and users.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID verification could be here, but we allow empty if inferred.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(agencyID, name string) (*firestore.CollectionRef, error) {
	if agencyID == "" {
		return nil, fmt.Errorf("agencyID cannot be empty")
	}
	return f.client.Collection("agencies").Doc(agencyID).Collection(name), nil
}

// GetSettings retrieves the pricing configuration from the "config/settings" document.
func (f *FirestoreProvider) GetSettings(ctx context.Context, agencyID string) (types.Settings, int, error) {
	coll, err := f.getCollection(agencyID, "config")
	if err != nil {
		return types.Settings{}, 0, err
	}
	doc, err := coll.Doc("settings").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// Return default settings if not found
			return types.Settings{}, 0, nil
		}
		return types.Settings{}, 0, fmt.Errorf("failed to fetch settings doc: %w", err)
	}

	// Read version if available (default 0)
	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "settings doc missing json", slog.String("agencyID", agencyID))
		return types.Settings{}, 0, fmt.Errorf("settings document missing 'json' field: %w", err)
	}

	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "settings doc json not string", slog.String("agencyID", agencyID))
		return types.Settings{}, 0, fmt.Errorf("settings 'json' field is not a string")
	}

	var s types.Settings
	if err := json.Unmarshal([]byte(jsonStr), &s); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal settings json", slog.String("agencyID", agencyID), slog.Any("err", err))
		return types.Settings{}, 0, fmt.Errorf("failed to unmarshal settings json: %w", err)
	}
	return s, version, nil
}

// SetSettings saves the pricing configuration to the "config/settings" document.
// It stores the settings as a JSON string for portability.
func (f *FirestoreProvider) SetSettings(ctx context.Context, agencyID string, settings types.Settings, version int) error {
	jsonBytes, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	coll, err := f.getCollection(agencyID, "config")
	if err != nil {
		return err
	}
	_, err = coll.Doc("settings").Set(ctx, map[string]interface{}{
		"json":    string(jsonBytes),
		"version": version,
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// GetSubscriptionPrices retrieves the subscription price grid from the
// "catalog/subscription_prices" document. An absent document yields an empty
// table, which lookups treat as "not ready".
func (f *FirestoreProvider) GetSubscriptionPrices(ctx context.Context) (types.SubscriptionPriceTable, error) {
	doc, err := f.client.Collection("catalog").Doc("subscription_prices").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.SubscriptionPriceTable{}, nil
		}
		return types.SubscriptionPriceTable{}, fmt.Errorf("failed to fetch subscription prices doc: %w", err)
	}

	val, err := doc.DataAt("json")
	if err != nil {
		return types.SubscriptionPriceTable{}, fmt.Errorf("subscription prices doc missing 'json' field: %w", err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		return types.SubscriptionPriceTable{}, fmt.Errorf("subscription prices 'json' field is not a string")
	}

	var t types.SubscriptionPriceTable
	if err := json.Unmarshal([]byte(jsonStr), &t); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal subscription prices", slog.Any("err", err))
		return types.SubscriptionPriceTable{}, fmt.Errorf("failed to unmarshal subscription prices: %w", err)
	}
	return t, nil
}

// SetSubscriptionPrices saves the subscription price grid.
func (f *FirestoreProvider) SetSubscriptionPrices(ctx context.Context, table types.SubscriptionPriceTable) error {
	jsonBytes, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription prices: %w", err)
	}
	_, err = f.client.Collection("catalog").Doc("subscription_prices").Set(ctx, map[string]interface{}{
		"json": string(jsonBytes),
	})
	if err != nil {
		return fmt.Errorf("failed to save subscription prices: %w", err)
	}
	return nil
}

// UpsertQuote adds or updates a quote in the "quotes" sub-collection of the agency.
func (f *FirestoreProvider) UpsertQuote(ctx context.Context, agencyID string, quote types.Quote) error {
	if quote.ID == "" {
		return fmt.Errorf("quote missing id")
	}
	jsonBytes, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}

	coll, err := f.getCollection(agencyID, "quotes")
	if err != nil {
		return err
	}
	_, err = coll.Doc(quote.ID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"updatedAt": quote.UpdatedAt,
		"version":   types.CurrentQuoteVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert quote: %w", err)
	}
	return nil
}

// GetQuote retrieves a single quote.
func (f *FirestoreProvider) GetQuote(ctx context.Context, agencyID, quoteID string) (types.Quote, error) {
	coll, err := f.getCollection(agencyID, "quotes")
	if err != nil {
		return types.Quote{}, err
	}
	doc, err := coll.Doc(quoteID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Quote{}, fmt.Errorf("%w: %s", ErrQuoteNotFound, quoteID)
		}
		return types.Quote{}, fmt.Errorf("failed to get quote %s: %w", quoteID, err)
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "quote doc missing json", slog.String("quoteID", quoteID), slog.String("agencyID", agencyID))
		return types.Quote{}, fmt.Errorf("quote %s missing json: %w", quoteID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "quote doc json not string", slog.String("quoteID", quoteID), slog.String("agencyID", agencyID))
		return types.Quote{}, fmt.Errorf("quote %s json not string", quoteID)
	}

	var q types.Quote
	if err := json.Unmarshal([]byte(jsonStr), &q); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal quote", slog.String("quoteID", quoteID), slog.String("agencyID", agencyID), slog.Any("err", err))
		return types.Quote{}, fmt.Errorf("failed to unmarshal quote %s: %w", quoteID, err)
	}
	return q, nil
}

// ListQuotes retrieves all quotes for an agency, most recently updated first.
// Malformed documents are skipped with a warning rather than failing the list.
func (f *FirestoreProvider) ListQuotes(ctx context.Context, agencyID string) ([]types.Quote, error) {
	coll, err := f.getCollection(agencyID, "quotes")
	if err != nil {
		return nil, err
	}
	iter := coll.OrderBy("updatedAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var quotes []types.Quote
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating quotes: %w", err)
		}

		val, err := doc.DataAt("json")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "quote doc missing json", slog.String("quoteID", doc.Ref.ID), slog.String("agencyID", agencyID))
			continue
		}
		jsonStr, ok := val.(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "quote doc json not string", slog.String("quoteID", doc.Ref.ID), slog.String("agencyID", agencyID))
			continue
		}

		var q types.Quote
		if err := json.Unmarshal([]byte(jsonStr), &q); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal quote", slog.String("quoteID", doc.Ref.ID), slog.String("agencyID", agencyID), slog.Any("err", err))
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

// DeleteQuote removes a quote document.
func (f *FirestoreProvider) DeleteQuote(ctx context.Context, agencyID, quoteID string) error {
	coll, err := f.getCollection(agencyID, "quotes")
	if err != nil {
		return err
	}
	if _, err := coll.Doc(quoteID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete quote %s: %w", quoteID, err)
	}
	return nil
}

// GetAgency retrieves an agency from the "agencies" collection.
func (f *FirestoreProvider) GetAgency(ctx context.Context, agencyID string) (types.Agency, error) {
	doc, err := f.client.Collection("agencies").Doc(agencyID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Agency{}, fmt.Errorf("%w: %s", ErrAgencyNotFound, agencyID)
		}
		return types.Agency{}, fmt.Errorf("failed to get agency %s: %w", agencyID, err)
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "agency doc missing json", slog.String("agencyID", agencyID), slog.Any("err", err))
		return types.Agency{}, fmt.Errorf("agency %s missing json: %w", agencyID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "agency doc json not string", slog.String("agencyID", agencyID))
		return types.Agency{}, fmt.Errorf("agency %s json not string", agencyID)
	}

	var agency types.Agency
	if err := json.Unmarshal([]byte(jsonStr), &agency); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal agency", slog.String("agencyID", agencyID), slog.Any("err", err))
		return types.Agency{}, fmt.Errorf("failed to unmarshal agency %s: %w", agencyID, err)
	}
	return agency, nil
}

// ListAgencies retrieves all agencies from the "agencies" collection.
func (f *FirestoreProvider) ListAgencies(ctx context.Context) ([]types.Agency, error) {
	iter := f.client.Collection("agencies").Documents(ctx)
	defer iter.Stop()

	var agencies []types.Agency
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating agencies: %w", err)
		}

		val, err := doc.DataAt("json")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "agency doc missing json", slog.String("agencyID", doc.Ref.ID))
			// Skip malformed documents
			continue
		}
		jsonStr, ok := val.(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "agency doc json not string", slog.String("agencyID", doc.Ref.ID))
			continue
		}

		var agency types.Agency
		if err := json.Unmarshal([]byte(jsonStr), &agency); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal agency", slog.String("agencyID", doc.Ref.ID), slog.Any("err", err))
			// Skip malformed JSON
			continue
		}
		agencies = append(agencies, agency)
	}
	return agencies, nil
}

// CreateAgency creates a new agency document.
func (f *FirestoreProvider) CreateAgency(ctx context.Context, agencyID string, agency types.Agency) error {
	jsonBytes, err := json.Marshal(agency)
	if err != nil {
		return fmt.Errorf("failed to marshal agency %s: %w", agencyID, err)
	}
	_, err = f.client.Collection("agencies").Doc(agencyID).Create(ctx, map[string]interface{}{
		"json": string(jsonBytes),
	})
	if err != nil {
		return fmt.Errorf("failed to create agency %s: %w", agencyID, err)
	}
	return nil
}

// UpdateAgency updates an agency document.
func (f *FirestoreProvider) UpdateAgency(ctx context.Context, agencyID string, agency types.Agency) error {
	jsonBytes, err := json.Marshal(agency)
	if err != nil {
		return fmt.Errorf("failed to marshal agency %s: %w", agencyID, err)
	}
	_, err = f.client.Collection("agencies").Doc(agencyID).Set(ctx, map[string]interface{}{
		"json": string(jsonBytes),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to update agency %s: %w", agencyID, err)
	}
	return nil
}

// GetUser retrieves a user from the "users" collection.
func (f *FirestoreProvider) GetUser(ctx context.Context, userID string) (types.User, error) {
	doc, err := f.client.Collection("users").Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return types.User{}, fmt.Errorf("failed to get user %s: %w", userID, err)
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "user doc missing json", slog.String("userID", userID))
		return types.User{}, fmt.Errorf("user %s missing json: %w", userID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "user doc json not string", slog.String("userID", userID))
		return types.User{}, fmt.Errorf("user %s json not string", userID)
	}

	var user types.User
	if err := json.Unmarshal([]byte(jsonStr), &user); err != nil {
		return types.User{}, fmt.Errorf("failed to unmarshal user %s: %w", userID, err)
	}
	return user, nil
}

// CreateUser creates a new user document in the "users" collection.
func (f *FirestoreProvider) CreateUser(ctx context.Context, user types.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user %s: %w", user.ID, err)
	}
	_, err = f.client.Collection("users").Doc(user.ID).Create(ctx, map[string]interface{}{
		"json": string(userJSON),
	})
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.ID, err)
	}
	return nil
}

// UpdateUser updates an existing user document in the "users" collection.
func (f *FirestoreProvider) UpdateUser(ctx context.Context, user types.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user %s: %w", user.ID, err)
	}
	_, err = f.client.Collection("users").Doc(user.ID).Set(ctx, map[string]interface{}{
		"json": string(userJSON),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", user.ID, err)
	}
	return nil
}
