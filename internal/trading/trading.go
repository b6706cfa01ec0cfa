// Package trading is a Hyperliquid-style REST client: asset-index
// resolution, account/market reads, and signed order placement against
// the exchange endpoint.
package trading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/alejandrodnm/evoclaw/internal/config"
	"github.com/alejandrodnm/evoclaw/internal/ratelimit"
	"github.com/alejandrodnm/evoclaw/internal/signer"
)

// TimeInForce selects limit-order matching behavior.
type TimeInForce string

const (
	GTC TimeInForce = "Gtc"
	ALO TimeInForce = "Alo"
	IOC TimeInForce = "Ioc"
)

// PlaceOrderRequest places a single limit order.
type PlaceOrderRequest struct {
	Coin       string
	IsBuy      bool
	Price      string
	Size       string
	ReduceOnly bool
	TIF        TimeInForce
	CLOID      *string
}

// CancelOrderRequest cancels one resting order.
type CancelOrderRequest struct {
	Coin string
	OID  uint64
}

// ModifyOrderRequest replaces a resting order in place.
type ModifyOrderRequest struct {
	OID        uint64
	Coin       string
	IsBuy      bool
	Price      string
	Size       string
	ReduceOnly bool
	TIF        TimeInForce
	CLOID      *string
}

// Position mirrors one Hyperliquid clearinghouse asset position.
type Position struct {
	Coin            string  `json:"coin"`
	Szi             string  `json:"szi"`
	EntryPx         *string `json:"entryPx"`
	PositionValue   string  `json:"positionValue"`
	UnrealizedPnl   string  `json:"unrealizedPnl"`
	ReturnOnEquity  string  `json:"returnOnEquity"`
}

type assetPosition struct {
	Position Position `json:"position"`
	Type     string   `json:"type"`
}

type clearinghouseState struct {
	AssetPositions []assetPosition `json:"assetPositions"`
	MarginSummary  struct {
		AccountValue string `json:"accountValue"`
	} `json:"marginSummary"`
}

// OpenOrder mirrors one resting order returned by the exchange.
type OpenOrder struct {
	Coin      string `json:"coin"`
	OID       uint64 `json:"oid"`
	LimitPx   string `json:"limitPx"`
	Sz        string `json:"sz"`
	Side      string `json:"side"`
	Timestamp uint64 `json:"timestamp"`
}

// Fill mirrors one historical fill record.
type Fill struct {
	Coin      string `json:"coin"`
	Px        string `json:"px"`
	Sz        string `json:"sz"`
	Side      string `json:"side"`
	Time      uint64 `json:"time"`
	Fee       string `json:"fee"`
	OID       uint64 `json:"oid"`
	ClosedPnl string `json:"closedPnl"`
}

// OrderResponse is the raw exchange acknowledgement.
type OrderResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type metaResponse struct {
	Universe []assetMeta `json:"universe"`
}

type assetMeta struct {
	Name       string `json:"name"`
	SzDecimals uint32 `json:"szDecimals"`
}

type allMidsResponse struct {
	Mids map[string]string `json:"mids"`
}

// Client is the Hyperliquid-style REST client: unauthenticated /info
// reads and signed /exchange writes, with asset-index caching and
// 429-aware retry.
type Client struct {
	cfg        config.TradingConfig
	http       *http.Client
	privateKey string
	network    signer.Network
	limiter    *ratelimit.Limiter

	mu         sync.Mutex
	assetIndex map[string]uint32
}

// NewClient builds a Client. privateKeyHex may be empty, in which case
// write operations (PlaceOrder, CancelOrder, ModifyOrder) fail fast.
func NewClient(cfg config.TradingConfig, privateKeyHex string) *Client {
	network := signer.Mainnet
	if cfg.Testnet {
		network = signer.Testnet
	}
	return &Client{
		cfg:        cfg,
		http:       &http.Client{Timeout: 15 * time.Second},
		privateKey: privateKeyHex,
		network:    network,
		limiter:    ratelimit.New(100, 10*time.Second),
		assetIndex: make(map[string]uint32),
	}
}

func (c *Client) requirePrivateKey() (string, error) {
	if c.privateKey == "" {
		return "", fmt.Errorf("trading: private key not loaded")
	}
	return c.privateKey, nil
}

func (c *Client) infoURL() string    { return c.cfg.HyperliquidAPI + "/info" }
func (c *Client) exchangeURL() string { return c.cfg.HyperliquidAPI + "/exchange" }

func (c *Client) postInfo(ctx context.Context, body interface{}, out interface{}) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return err
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.infoURL(), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("trading: info request failed (%d): %s", resp.StatusCode, string(data))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) resolveAsset(ctx context.Context, coin string) (uint32, error) {
	c.mu.Lock()
	idx, ok := c.assetIndex[coin]
	c.mu.Unlock()
	if ok {
		return idx, nil
	}
	if err := c.refreshAssetIndex(ctx); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok = c.assetIndex[coin]
	if !ok {
		return 0, fmt.Errorf("trading: unknown asset %q", coin)
	}
	return idx, nil
}

func (c *Client) refreshAssetIndex(ctx context.Context) error {
	var resp metaResponse
	if err := c.postInfo(ctx, map[string]string{"type": "meta"}, &resp); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, a := range resp.Universe {
		c.assetIndex[a.Name] = uint32(i)
	}
	return nil
}

// GetPrices returns the current mid price for every listed asset.
func (c *Client) GetPrices(ctx context.Context) (map[string]float64, error) {
	var resp allMidsResponse
	if err := c.postInfo(ctx, map[string]string{"type": "allMids"}, &resp); err != nil {
		return nil, err
	}
	prices := make(map[string]float64, len(resp.Mids))
	for coin, raw := range resp.Mids {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			prices[coin] = v
		}
	}
	return prices, nil
}

// GetPositions returns the account's current asset positions.
func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	var state clearinghouseState
	body := map[string]string{"type": "clearinghouseState", "user": c.cfg.WalletAddress}
	if err := c.postInfo(ctx, body, &state); err != nil {
		return nil, err
	}
	positions := make([]Position, 0, len(state.AssetPositions))
	for _, ap := range state.AssetPositions {
		positions = append(positions, ap.Position)
	}
	return positions, nil
}

// GetAccountBalance returns the account value from the margin summary.
func (c *Client) GetAccountBalance(ctx context.Context) (float64, error) {
	var state clearinghouseState
	body := map[string]string{"type": "clearinghouseState", "user": c.cfg.WalletAddress}
	if err := c.postInfo(ctx, body, &state); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(state.MarginSummary.AccountValue, 64)
}

// GetOpenOrders returns the account's resting orders.
func (c *Client) GetOpenOrders(ctx context.Context) ([]OpenOrder, error) {
	var orders []OpenOrder
	body := map[string]string{"type": "openOrders", "user": c.cfg.WalletAddress}
	if err := c.postInfo(ctx, body, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetFills returns the account's historical fills.
func (c *Client) GetFills(ctx context.Context) ([]Fill, error) {
	var fills []Fill
	body := map[string]string{"type": "userFills", "user": c.cfg.WalletAddress}
	if err := c.postInfo(ctx, body, &fills); err != nil {
		return nil, err
	}
	return fills, nil
}

func orderWire(asset uint32, isBuy bool, price, size string, reduceOnly bool, tif TimeInForce, cloid *string) map[string]interface{} {
	wire := map[string]interface{}{
		"a": asset, "b": isBuy, "p": price, "s": size, "r": reduceOnly,
		"t": map[string]interface{}{"limit": map[string]interface{}{"tif": string(tif)}},
	}
	if cloid != nil {
		wire["c"] = *cloid
	}
	return wire
}

// PlaceOrder signs and submits a limit order.
func (c *Client) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*OrderResponse, error) {
	key, err := c.requirePrivateKey()
	if err != nil {
		return nil, err
	}
	asset, err := c.resolveAsset(ctx, req.Coin)
	if err != nil {
		return nil, err
	}
	action := map[string]interface{}{
		"type":     "order",
		"orders":   []map[string]interface{}{orderWire(asset, req.IsBuy, req.Price, req.Size, req.ReduceOnly, req.TIF, req.CLOID)},
		"grouping": "na",
	}
	return c.signAndSend(ctx, key, action)
}

// CancelOrder cancels a resting order by coin and order id.
func (c *Client) CancelOrder(ctx context.Context, req CancelOrderRequest) (*OrderResponse, error) {
	key, err := c.requirePrivateKey()
	if err != nil {
		return nil, err
	}
	asset, err := c.resolveAsset(ctx, req.Coin)
	if err != nil {
		return nil, err
	}
	action := map[string]interface{}{
		"type":    "cancel",
		"cancels": []map[string]interface{}{{"a": asset, "o": req.OID}},
	}
	return c.signAndSend(ctx, key, action)
}

// ModifyOrder replaces a resting order's price/size/TIF in place.
func (c *Client) ModifyOrder(ctx context.Context, req ModifyOrderRequest) (*OrderResponse, error) {
	key, err := c.requirePrivateKey()
	if err != nil {
		return nil, err
	}
	asset, err := c.resolveAsset(ctx, req.Coin)
	if err != nil {
		return nil, err
	}
	action := map[string]interface{}{
		"type":  "modify",
		"oid":   req.OID,
		"order": orderWire(asset, req.IsBuy, req.Price, req.Size, req.ReduceOnly, req.TIF, req.CLOID),
	}
	return c.signAndSend(ctx, key, action)
}

// CancelAllOrders cancels every currently-open order, continuing past
// individual cancel failures.
func (c *Client) CancelAllOrders(ctx context.Context) ([]*OrderResponse, error) {
	orders, err := c.GetOpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	var results []*OrderResponse
	for _, order := range orders {
		resp, err := c.CancelOrder(ctx, CancelOrderRequest{Coin: order.Coin, OID: order.OID})
		if err != nil {
			continue
		}
		results = append(results, resp)
	}
	return results, nil
}

func (c *Client) signAndSend(ctx context.Context, privateKey string, action map[string]interface{}) (*OrderResponse, error) {
	nonce := uint64(time.Now().UnixMilli())
	sig, err := signer.SignL1Action(privateKey, action, nil, nonce, nil, c.network)
	if err != nil {
		return nil, fmt.Errorf("trading: sign action: %w", err)
	}
	return c.sendExchangeRequest(ctx, action, nonce, sig)
}

func (c *Client) sendExchangeRequest(ctx context.Context, action map[string]interface{}, nonce uint64, sig signer.Signature) (*OrderResponse, error) {
	body := map[string]interface{}{
		"action":    action,
		"nonce":     nonce,
		"signature": map[string]interface{}{"r": sig.R, "s": sig.S, "v": sig.V},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	const maxAttempts = 3
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.exchangeURL(), bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxAttempts-1 {
				return nil, fmt.Errorf("trading: exchange request failed after %d attempts: %w", maxAttempts, err)
			}
			c.backoff(ctx, attempt)
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			c.backoff(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("trading: exchange request failed (%d): %s", resp.StatusCode, string(data))
		}

		var out OrderResponse
		if err := json.Unmarshal(data, &out); err != nil {
			return &OrderResponse{Status: "ok", Response: json.RawMessage(fmt.Sprintf(`{"raw":%q}`, string(data)))}, nil
		}
		return &out, nil
	}
	return nil, fmt.Errorf("trading: exchange request exhausted retries")
}

func (c *Client) backoff(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * 500 * time.Millisecond
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

// FormatPrice renders a price at Hyperliquid's standard precision
// tiers: tighter precision the lower the magnitude.
func FormatPrice(price float64) string {
	switch {
	case price >= 10000:
		return strconv.FormatFloat(price, 'f', 1, 64)
	case price >= 1000:
		return strconv.FormatFloat(price, 'f', 2, 64)
	case price >= 1:
		return strconv.FormatFloat(price, 'f', 4, 64)
	default:
		return strconv.FormatFloat(price, 'f', 6, 64)
	}
}

// FormatSize renders size at the asset's configured decimal precision.
func FormatSize(size float64, decimals uint32) string {
	return strconv.FormatFloat(size, 'f', int(decimals), 64)
}
