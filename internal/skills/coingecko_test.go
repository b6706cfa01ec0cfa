package skills

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCoinGeckoFeedParsesAndReverseMapsSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"bitcoin":{"usd":50000.5},"ethereum":{"usd":3000.25}}`))
	}))
	defer srv.Close()

	feed := NewCoinGeckoFeed(60)
	feed.baseURL = srv.URL

	prices, err := feed.FetchPrices(context.Background(), []string{"BTC", "ETH"})
	require.NoError(t, err)
	require.Equal(t, 50000.5, prices["BTC"])
	require.Equal(t, 3000.25, prices["ETH"])
}

func TestCoinGeckoFeedUnknownSymbolsYieldEmptyRequest(t *testing.T) {
	feed := NewCoinGeckoFeed(60)
	prices, err := feed.FetchPrices(context.Background(), []string{"NOTASYMBOL"})
	require.NoError(t, err)
	require.Empty(t, prices)
}

func TestCoinGeckoFeedErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	feed := NewCoinGeckoFeed(60)
	feed.baseURL = srv.URL

	_, err := feed.FetchPrices(context.Background(), []string{"BTC"})
	require.Error(t, err)
}
