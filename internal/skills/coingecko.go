package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var coingeckoIDs = map[string]string{
	"BTC": "bitcoin", "ETH": "ethereum", "SOL": "solana", "AVAX": "avalanche-2",
	"DOGE": "dogecoin", "ADA": "cardano", "DOT": "polkadot", "MATIC": "matic-network",
	"LINK": "chainlink", "UNI": "uniswap",
}

// CoinGeckoFeed implements PriceFeed against CoinGecko's free simple
// price endpoint, throttled to stay under its anonymous rate limit.
type CoinGeckoFeed struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewCoinGeckoFeed builds a feed limited to callsPerMinute requests per
// minute.
func NewCoinGeckoFeed(callsPerMinute int) *CoinGeckoFeed {
	if callsPerMinute <= 0 {
		callsPerMinute = 10
	}
	return &CoinGeckoFeed{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(callsPerMinute)), 1),
		baseURL: "https://api.coingecko.com/api/v3/simple/price",
	}
}

// FetchPrices implements PriceFeed.
func (f *CoinGeckoFeed) FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	reverse := make(map[string]string, len(coingeckoIDs))
	for sym, id := range coingeckoIDs {
		reverse[id] = sym
	}

	var ids []string
	for _, sym := range symbols {
		if id, ok := coingeckoIDs[sym]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return map[string]float64{}, nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	idsParam := ids[0]
	for _, id := range ids[1:] {
		idsParam += "," + id
	}
	url := fmt.Sprintf("%s?ids=%s&vs_currencies=usd", f.baseURL, idsParam)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("coingecko: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var data map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(data))
	for geckoID, byCurrency := range data {
		sym, ok := reverse[geckoID]
		if !ok {
			continue
		}
		if usd, ok := byCurrency["usd"]; ok {
			prices[sym] = usd
		}
	}
	return prices, nil
}
