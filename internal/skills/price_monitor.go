package skills

import (
	"context"
	"encoding/json"
	"fmt"
)

// PriceFeed fetches current USD prices for the requested symbols.
// Implementations decide their own transport, auth, and rate limiting.
type PriceFeed interface {
	FetchPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// priceReading is one historical price observation.
type priceReading struct {
	TimestampUnix int64   `json:"timestamp"`
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
}

// priceAlert is a one-shot target-price alert, disarmed once triggered.
type priceAlert struct {
	Symbol      string  `json:"symbol"`
	TargetPrice float64 `json:"target_price"`
	Direction   string  `json:"direction"`
	Triggered   bool    `json:"triggered"`
}

// PriceMonitor polls a PriceFeed on a tick cadence, raising alerts on
// large moves or configured target-price crossings.
type PriceMonitor struct {
	feed         PriceFeed
	symbols      []string
	thresholdPct float64
	tickInterval uint64
	maxHistory   int

	lastPrices map[string]float64
	history    []priceReading
	alerts     []*priceAlert
	nowUnix    func() int64
}

// NewPriceMonitor builds the skill.
func NewPriceMonitor(feed PriceFeed, symbols []string, thresholdPct float64, tickInterval uint64, now func() int64) *PriceMonitor {
	return &PriceMonitor{
		feed:         feed,
		symbols:      symbols,
		thresholdPct: thresholdPct,
		tickInterval: tickInterval,
		maxHistory:   100,
		lastPrices:   make(map[string]float64),
		nowUnix:      now,
	}
}

// Name implements Skill.
func (p *PriceMonitor) Name() string { return "price_monitor" }

// Capabilities implements Skill.
func (p *PriceMonitor) Capabilities() []string {
	return []string{"price.check", "price.alert", "price.history"}
}

// Init implements Skill.
func (p *PriceMonitor) Init(ctx context.Context) error { return nil }

func (p *PriceMonitor) recordPrices(prices map[string]float64) {
	ts := p.nowUnix()
	for symbol, price := range prices {
		p.history = append(p.history, priceReading{TimestampUnix: ts, Symbol: symbol, Price: price})
		p.lastPrices[symbol] = price
	}
	if len(p.history) > p.maxHistory {
		p.history = p.history[len(p.history)-p.maxHistory:]
	}
}

func (p *PriceMonitor) checkMovements(prices map[string]float64) []Report {
	var reports []Report
	for symbol, current := range prices {
		last, ok := p.lastPrices[symbol]
		if !ok || last == 0 {
			continue
		}
		changePct := (current - last) / last * 100.0
		if abs(changePct) >= p.thresholdPct {
			payload, _ := json.Marshal(map[string]interface{}{
				"alert": "price_movement", "symbol": symbol, "from_price": last, "to_price": current,
				"change_pct": changePct, "threshold_pct": p.thresholdPct,
				"message": fmt.Sprintf("%s moved %.1f%% (%.2f -> %.2f)", symbol, changePct, last, current),
			})
			reports = append(reports, Report{Skill: p.Name(), Kind: ReportAlert, Payload: payload})
		}
	}
	return reports
}

func (p *PriceMonitor) checkAlerts(prices map[string]float64) []Report {
	var reports []Report
	for _, alert := range p.alerts {
		if alert.Triggered {
			continue
		}
		price, ok := prices[alert.Symbol]
		if !ok {
			continue
		}
		triggered := false
		switch alert.Direction {
		case "above":
			triggered = price >= alert.TargetPrice
		case "below":
			triggered = price <= alert.TargetPrice
		}
		if !triggered {
			continue
		}
		alert.Triggered = true
		payload, _ := json.Marshal(map[string]interface{}{
			"alert": "price_target", "symbol": alert.Symbol, "target_price": alert.TargetPrice,
			"current_price": price, "direction": alert.Direction,
			"message": fmt.Sprintf("%s hit %s target %.2f (current: %.2f)", alert.Symbol, alert.Direction, alert.TargetPrice, price),
		})
		reports = append(reports, Report{Skill: p.Name(), Kind: ReportAlert, Payload: payload})
	}
	return reports
}

// Handle implements Skill. Supported commands: check/status, alert,
// history, clear_alerts, list_alerts.
func (p *PriceMonitor) Handle(ctx context.Context, command string, payload json.RawMessage) (json.RawMessage, error) {
	switch command {
	case "check", "status":
		prices, err := p.feed.FetchPrices(ctx, p.symbols)
		if err != nil {
			return nil, err
		}
		p.recordPrices(prices)
		return json.Marshal(map[string]interface{}{"status": "success", "prices": prices, "timestamp": p.nowUnix()})

	case "alert":
		var req struct {
			Symbol      string  `json:"symbol"`
			TargetPrice float64 `json:"target_price"`
			Direction   string  `json:"direction"`
		}
		if err := json.Unmarshal(payload, &req); err != nil || req.Symbol == "" {
			return nil, fmt.Errorf("price_monitor: missing symbol or target_price")
		}
		if req.Direction == "" {
			req.Direction = "above"
		}
		if req.Direction != "above" && req.Direction != "below" {
			return nil, fmt.Errorf("price_monitor: direction must be 'above' or 'below'")
		}
		p.alerts = append(p.alerts, &priceAlert{Symbol: req.Symbol, TargetPrice: req.TargetPrice, Direction: req.Direction})
		return json.Marshal(map[string]interface{}{
			"status": "alert_created", "symbol": req.Symbol, "target_price": req.TargetPrice,
			"direction": req.Direction, "total_alerts": len(p.alerts),
		})

	case "history":
		var req struct {
			Count  int    `json:"count"`
			Symbol string `json:"symbol"`
		}
		_ = json.Unmarshal(payload, &req)
		if req.Count <= 0 {
			req.Count = 10
		}
		var matched []priceReading
		for i := len(p.history) - 1; i >= 0 && len(matched) < req.Count; i-- {
			if req.Symbol == "" || p.history[i].Symbol == req.Symbol {
				matched = append(matched, p.history[i])
			}
		}
		return json.Marshal(map[string]interface{}{"count": len(matched), "readings": matched})

	case "clear_alerts":
		count := len(p.alerts)
		p.alerts = nil
		return json.Marshal(map[string]interface{}{"status": "alerts_cleared", "cleared": count})

	case "list_alerts":
		return json.Marshal(map[string]interface{}{"alerts": p.alerts, "count": len(p.alerts)})

	default:
		return nil, fmt.Errorf("price_monitor: unknown command %q", command)
	}
}

// Tick implements Skill: fetches prices, records history, and returns a
// metric report plus one alert report per movement/target crossing,
// returning nil if the feed fetch failed.
func (p *PriceMonitor) Tick(ctx context.Context) ([]*Report, error) {
	prices, err := p.feed.FetchPrices(ctx, p.symbols)
	if err != nil {
		return nil, nil
	}
	movementAlerts := p.checkMovements(prices)
	targetAlerts := p.checkAlerts(prices)
	p.recordPrices(prices)

	payload, err := json.Marshal(map[string]interface{}{
		"prices": prices, "timestamp": p.nowUnix(),
		"alert_count": len(movementAlerts) + len(targetAlerts),
	})
	if err != nil {
		return nil, err
	}
	reports := make([]*Report, 0, len(movementAlerts)+len(targetAlerts)+1)
	reports = append(reports, &Report{Skill: p.Name(), Kind: ReportMetric, Payload: payload})
	for i := range movementAlerts {
		reports = append(reports, &movementAlerts[i])
	}
	for i := range targetAlerts {
		reports = append(reports, &targetAlerts[i])
	}
	return reports, nil
}

// TickIntervalSecs implements Skill.
func (p *PriceMonitor) TickIntervalSecs() uint64 { return p.tickInterval }

// Shutdown implements Skill.
func (p *PriceMonitor) Shutdown(ctx context.Context) {}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
