package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/sunquote/sunquote/pkg/common"
	"github.com/sunquote/sunquote/pkg/log"
	"github.com/sunquote/sunquote/pkg/types"
)

// HTTPTableSource fetches the subscription price grid from a hosted JSON
// endpoint. The payload is the JSON encoding of types.SubscriptionPriceTable.
type HTTPTableSource struct {
	url    string
	client *http.Client
}

// configuredHTTPTableSource sets up flags for the hosted price grid endpoint.
func configuredHTTPTableSource() *HTTPTableSource {
	s := &HTTPTableSource{
		client: common.HTTPClient(10 * time.Second),
	}
	priceURL := lflag.String("subscription-prices-url", "", "URL of the hosted subscription price grid (empty uses the database)")

	lflag.Do(func() {
		s.url = *priceURL
	})

	return s
}

// Validate ensures the configured URL parses.
func (s *HTTPTableSource) Validate() error {
	if s.url == "" {
		return nil
	}
	if _, err := url.Parse(s.url); err != nil {
		return fmt.Errorf("failed to parse subscription-prices-url (%s): %w", s.url, err)
	}
	return nil
}

// LoadSubscriptionPrices implements TableSource.
func (s *HTTPTableSource) LoadSubscriptionPrices(ctx context.Context) (types.SubscriptionPriceTable, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.url, nil)
	if err != nil {
		return types.SubscriptionPriceTable{}, fmt.Errorf("failed to create request: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "fetching subscription prices", slog.String("url", s.url))

	resp, err := s.client.Do(req)
	if err != nil {
		return types.SubscriptionPriceTable{}, fmt.Errorf("failed to fetch subscription prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.SubscriptionPriceTable{}, fmt.Errorf("subscription prices endpoint returned status: %d", resp.StatusCode)
	}

	var table types.SubscriptionPriceTable
	if err := json.NewDecoder(resp.Body).Decode(&table); err != nil {
		return types.SubscriptionPriceTable{}, fmt.Errorf("failed to decode subscription prices: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "fetched subscription prices", slog.Int("count", len(table.Prices)))

	return table, nil
}

// ConfiguredSource registers flags and returns the subscription price source:
// the hosted endpoint when subscription-prices-url is set, otherwise fallback.
func ConfiguredSource(fallback TableSource) TableSource {
	var p struct{ TableSource }

	h := configuredHTTPTableSource()

	lflag.Do(func() {
		if h.url != "" {
			if err := h.Validate(); err != nil {
				panic(fmt.Sprintf("subscription price source validation failed: %v", err))
			}
			p.TableSource = h
		} else {
			p.TableSource = fallback
		}
	})

	return &p
}
