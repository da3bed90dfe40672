package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunquote/sunquote/pkg/common"
)

func TestHTTPTableSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"prices":[{"durationYears":25,"powerKWC":9,"monthlyPrice":167}]}`))
		require.NoError(t, err)
	}))
	defer server.Close()

	src := &HTTPTableSource{url: server.URL, client: common.HTTPClient(5 * time.Second)}
	require.NoError(t, src.Validate())

	table, err := src.LoadSubscriptionPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 167.0, table.Monthly(9, 25))
}

func TestHTTPTableSourceErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	src := &HTTPTableSource{url: server.URL, client: common.HTTPClient(5 * time.Second)}
	_, err := src.LoadSubscriptionPrices(context.Background())
	assert.ErrorContains(t, err, "status: 500")
}

func TestHTTPTableSourceBadPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	src := &HTTPTableSource{url: server.URL, client: common.HTTPClient(5 * time.Second)}
	_, err := src.LoadSubscriptionPrices(context.Background())
	assert.ErrorContains(t, err, "failed to decode")
}
