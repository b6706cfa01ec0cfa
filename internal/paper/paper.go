// Package paper implements deterministic paper-trade matching against
// externally supplied mid prices: position tracking with weighted-average
// entry, realized/unrealized PnL, and fee accounting.
package paper

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"time"
)

const takerFeeRate = 0.00035

// OrderStatus is the lifecycle state of a PaperOrder. Monotone:
// Open -> {Filled, Canceled}, both terminal.
type OrderStatus string

const (
	Open     OrderStatus = "open"
	Filled   OrderStatus = "filled"
	Canceled OrderStatus = "canceled"
)

// Position is the net exposure in one coin. Invariant: |Size| < 1e-10
// means the position has been removed from the book.
type Position struct {
	Coin          string  `json:"coin"`
	Size          float64 `json:"size"` // long > 0, short < 0
	EntryPrice    float64 `json:"entry_price"`
	Notional      float64 `json:"notional"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// Order is a resting or terminal paper order.
type Order struct {
	OID        uint64      `json:"oid"`
	Coin       string      `json:"coin"`
	IsBuy      bool        `json:"is_buy"`
	Price      float64     `json:"price"`
	Size       float64     `json:"size"`
	ReduceOnly bool        `json:"reduce_only"`
	TimestampMs int64      `json:"ts_ms"`
	Status     OrderStatus `json:"status"`
}

// Fill is an append-only execution record.
type Fill struct {
	TimestampMs int64   `json:"ts_ms"`
	Coin        string  `json:"coin"`
	IsBuy       bool    `json:"is_buy"`
	Price       float64 `json:"price"`
	Size        float64 `json:"size"`
	PnL         float64 `json:"pnl"`
	Fee         float64 `json:"fee"`
}

// Trader is the in-process paper book. Not safe for concurrent use from
// more than one goroutine — the event loop holds exclusive mutable
// ownership of it.
type Trader struct {
	mu             sync.Mutex
	positions      map[string]*Position
	orders         []*Order
	fills          []Fill
	nextOID        uint64
	balance        float64
	initialBalance float64
	logPath        string
	totalFees      float64
	now            func() int64
}

// New builds a Trader with initialBalance, logging fills to logPath.
func New(initialBalance float64, logPath string) *Trader {
	return &Trader{
		positions:      make(map[string]*Position),
		nextOID:        1,
		balance:        initialBalance,
		initialBalance: initialBalance,
		logPath:        logPath,
		now:            nowMs,
	}
}

// PlaceOrder allocates the next oid and appends an Open order.
func (t *Trader) PlaceOrder(coin string, isBuy bool, price, size float64, reduceOnly bool) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	oid := t.nextOID
	t.nextOID++
	t.orders = append(t.orders, &Order{
		OID:         oid,
		Coin:        coin,
		IsBuy:       isBuy,
		Price:       price,
		Size:        size,
		ReduceOnly:  reduceOnly,
		TimestampMs: t.now(),
		Status:      Open,
	})
	return oid
}

// PlaceMarketOrder places then immediately fills at currentPrice.
func (t *Trader) PlaceMarketOrder(coin string, isBuy bool, size, currentPrice float64) uint64 {
	oid := t.PlaceOrder(coin, isBuy, currentPrice, size, false)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fillOrderLocked(oid, currentPrice)
	return oid
}

// CancelOrder marks an Open order Canceled; returns false if it was not
// found or already terminal.
func (t *Trader) CancelOrder(oid uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, o := range t.orders {
		if o.OID == oid && o.Status == Open {
			o.Status = Canceled
			return true
		}
	}
	return false
}

// CancelAllOrders cancels every Open order, returning the count canceled.
func (t *Trader) CancelAllOrders() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, o := range t.orders {
		if o.Status == Open {
			o.Status = Canceled
			n++
		}
	}
	return n
}

// CheckFills scans Open orders against observed mid prices, filling any
// that qualify at the observed mid (not the limit price), in insertion
// order (lower oid first).
func (t *Trader) CheckFills(prices map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ordered := make([]*Order, len(t.orders))
	copy(ordered, t.orders)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].OID < ordered[j].OID })

	for _, o := range ordered {
		if o.Status != Open {
			continue
		}
		mid, ok := prices[o.Coin]
		if !ok {
			continue
		}
		qualifies := (o.IsBuy && mid >= o.Price) || (!o.IsBuy && mid <= o.Price)
		if qualifies {
			t.fillOrderLocked(o.OID, mid)
		}
	}
}

// fillOrderLocked marks oid Filled at fillPrice, updates the position,
// deducts fees, and logs the resulting Fill. Caller must hold t.mu.
func (t *Trader) fillOrderLocked(oid uint64, fillPrice float64) {
	var order *Order
	for _, o := range t.orders {
		if o.OID == oid {
			order = o
			break
		}
	}
	if order == nil || order.Status != Open {
		return
	}
	order.Status = Filled

	signedSize := order.Size
	if !order.IsBuy {
		signedSize = -signedSize
	}

	realized := t.updatePositionLocked(order.Coin, signedSize, fillPrice)
	t.balance += realized

	fee := fillPrice * math.Abs(order.Size) * takerFeeRate
	t.balance -= fee
	t.totalFees += fee

	fill := Fill{
		TimestampMs: t.now(),
		Coin:        order.Coin,
		IsBuy:       order.IsBuy,
		Price:       fillPrice,
		Size:        order.Size,
		PnL:         realized,
		Fee:         fee,
	}
	t.fills = append(t.fills, fill)
	_ = t.logFill(fill)
}

// updatePositionLocked applies a signed fill to the position book and
// returns the realized PnL: weighted-average entry on an add, realized
// PnL on a close, and a flip to the opposite side when the fill
// overshoots the existing position.
func (t *Trader) updatePositionLocked(coin string, signedSize, price float64) float64 {
	pos, exists := t.positions[coin]
	if !exists {
		t.positions[coin] = &Position{Coin: coin, Size: signedSize, EntryPrice: price}
		return 0
	}

	sameSign := (pos.Size >= 0) == (signedSize >= 0)
	if sameSign {
		oldAbs := math.Abs(pos.Size)
		addAbs := math.Abs(signedSize)
		pos.EntryPrice = (pos.EntryPrice*oldAbs + price*addAbs) / (oldAbs + addAbs)
		pos.Size += signedSize
		if math.Abs(pos.Size) < 1e-10 {
			delete(t.positions, coin)
		}
		return 0
	}

	closing := math.Min(math.Abs(pos.Size), math.Abs(signedSize))
	var realized float64
	if pos.Size > 0 {
		realized = (price - pos.EntryPrice) * closing
	} else {
		realized = (pos.EntryPrice - price) * closing
	}

	newSize := pos.Size + signedSize
	if math.Abs(newSize) < 1e-10 {
		delete(t.positions, coin)
		return realized
	}

	if (newSize >= 0) != (pos.Size >= 0) {
		pos.EntryPrice = price
	}
	pos.Size = newSize
	return realized
}

// UpdateUnrealized recomputes unrealized PnL and notional for every open
// position from the supplied mid prices.
func (t *Trader) UpdateUnrealized(prices map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for coin, pos := range t.positions {
		cur, ok := prices[coin]
		if !ok {
			continue
		}
		if pos.Size > 0 {
			pos.UnrealizedPnL = (cur - pos.EntryPrice) * pos.Size
		} else {
			pos.UnrealizedPnL = (pos.EntryPrice - cur) * math.Abs(pos.Size)
		}
		pos.Notional = math.Abs(pos.Size) * cur
	}
}

// GetPositions returns a snapshot of all open positions.
func (t *Trader) GetPositions() []Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Position, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Coin < out[j].Coin })
	return out
}

// GetOpenOrders returns a snapshot of all Open orders.
func (t *Trader) GetOpenOrders() []Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Order
	for _, o := range t.orders {
		if o.Status == Open {
			out = append(out, *o)
		}
	}
	return out
}

// GetFills returns every fill recorded so far.
func (t *Trader) GetFills() []Fill {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Fill, len(t.fills))
	copy(out, t.fills)
	return out
}

// Balance returns the current cash balance.
func (t *Trader) Balance() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance
}

// TotalPnL is (balance - initial_balance) + sum of unrealized PnL.
func (t *Trader) TotalPnL() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	sum := t.balance - t.initialBalance
	for _, p := range t.positions {
		sum += p.UnrealizedPnL
	}
	return sum
}

// FillCount returns the number of fills recorded so far.
func (t *Trader) FillCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.fills)
}

func (t *Trader) logFill(fill Fill) error {
	if t.logPath == "" {
		return nil
	}
	f, err := os.OpenFile(t.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("paper.logFill: open: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(fill)
	if err != nil {
		return fmt.Errorf("paper.logFill: marshal: %w", err)
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
