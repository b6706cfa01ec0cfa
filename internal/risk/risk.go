// Package risk implements the pre-trade and post-trade policy gate:
// daily loss limits, consecutive-loss cooldowns, position-size and
// open-position caps, and an emergency stop.
package risk

import (
	"fmt"
	"sync"
	"time"
)

// Decision is the outcome of a policy check.
type Decision struct {
	Rejected bool
	Reason   string
}

func allowed() Decision            { return Decision{} }
func rejected(reason string) Decision { return Decision{Rejected: true, Reason: reason} }

// IsAllowed reports whether d permits the order.
func (d Decision) IsAllowed() bool { return !d.Rejected }

// Event is an append-only log line describing a risk-relevant state
// transition (cooldown start/expiry, daily rollover, etc.).
type Event struct {
	TimestampUnix int64  `json:"timestamp"`
	EventType     string `json:"event_type"`
	Details       string `json:"details"`
}

// Config bounds the gate's behavior.
type Config struct {
	MaxPositionSizeUSD   float64
	MaxOpenPositions     int
	DailyLossLimitUSD    float64
	ConsecutiveLossLimit int
	Cooldown             time.Duration
}

// Manager tracks daily PnL, streaks, and cooldown/emergency state for one
// agent. Not shared across goroutines — the event loop owns it
// exclusively.
type Manager struct {
	mu                sync.Mutex
	cfg               Config
	dailyPnL          float64
	dailyDateKey      string
	openPositionCount int
	consecutiveLosses int
	cooldownUntil     *time.Time
	emergencyStop     bool
	events            []Event
	now               func() time.Time
}

// New builds a Manager bound to cfg.
func New(cfg Config) *Manager {
	return &Manager{cfg: cfg, now: time.Now}
}

// CheckOrder evaluates, in order and short-circuit: daily rollover,
// emergency stop, cooldown, size limit, max-open-positions (only when
// isNewPosition), daily-loss limit.
func (m *Manager) CheckOrder(sizeUSD float64, isNewPosition bool) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.maybeResetDailyLocked()

	if m.emergencyStop {
		return rejected("emergency stop active")
	}

	if m.cooldownUntil != nil {
		now := m.now()
		if now.Before(*m.cooldownUntil) {
			return rejected(fmt.Sprintf("cooldown active until %s", m.cooldownUntil.Format(time.RFC3339)))
		}
		m.cooldownUntil = nil
		m.consecutiveLosses = 0
		m.logEventLocked("cooldown_expired", "cooldown window elapsed, loss streak reset")
	}

	if m.cfg.MaxPositionSizeUSD > 0 && sizeUSD > m.cfg.MaxPositionSizeUSD {
		return rejected(fmt.Sprintf("order size %.2f exceeds max position size %.2f", sizeUSD, m.cfg.MaxPositionSizeUSD))
	}

	if isNewPosition && m.cfg.MaxOpenPositions > 0 && m.openPositionCount >= m.cfg.MaxOpenPositions {
		return rejected(fmt.Sprintf("open position count %d at or above max %d", m.openPositionCount, m.cfg.MaxOpenPositions))
	}

	if m.cfg.DailyLossLimitUSD > 0 && m.dailyPnL <= -m.cfg.DailyLossLimitUSD {
		return rejected(fmt.Sprintf("daily pnl %.2f breaches loss limit %.2f", m.dailyPnL, m.cfg.DailyLossLimitUSD))
	}

	return allowed()
}

// RecordTrade accumulates dailyPnL and the consecutive-loss streak. Ties
// (pnl == 0) count as a loss, matching the upstream convention — see
// DESIGN.md's Open Question resolution.
func (m *Manager) RecordTrade(pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.maybeResetDailyLocked()
	m.dailyPnL += pnl

	if pnl > 0 {
		m.consecutiveLosses = 0
	} else {
		m.consecutiveLosses++
		if m.cfg.ConsecutiveLossLimit > 0 && m.consecutiveLosses >= m.cfg.ConsecutiveLossLimit {
			until := m.now().Add(m.cfg.Cooldown)
			m.cooldownUntil = &until
			m.logEventLocked("cooldown_started", fmt.Sprintf("%d consecutive losses", m.consecutiveLosses))
		}
	}

	if m.cfg.DailyLossLimitUSD > 0 && m.dailyPnL <= -m.cfg.DailyLossLimitUSD {
		m.logEventLocked("daily_loss_limit_breached", fmt.Sprintf("daily pnl %.2f", m.dailyPnL))
	}
}

// SetOpenPositions overwrites the tracked open-position count.
func (m *Manager) SetOpenPositions(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openPositionCount = n
}

// EmergencyStop sets the emergency-stop flag.
func (m *Manager) EmergencyStop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emergencyStop = true
	m.logEventLocked("emergency_stop", "emergency stop engaged")
}

// ClearEmergencyStop clears the flag.
func (m *Manager) ClearEmergencyStop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emergencyStop = false
	m.logEventLocked("emergency_stop_cleared", "emergency stop cleared")
}

// IsEmergencyStopped reports the current flag state.
func (m *Manager) IsEmergencyStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emergencyStop
}

// DailyPnL returns the accumulated PnL for the current day key.
func (m *Manager) DailyPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyPnL
}

// ConsecutiveLosses returns the current loss streak length.
func (m *Manager) ConsecutiveLosses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveLosses
}

// Events returns the append-only risk event log.
func (m *Manager) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Status is a snapshot of the gate's state for reporting.
type Status struct {
	DailyPnL          float64 `json:"daily_pnl"`
	OpenPositionCount int     `json:"open_position_count"`
	ConsecutiveLosses int     `json:"consecutive_losses"`
	CooldownActive    bool    `json:"cooldown_active"`
	EmergencyStop     bool    `json:"emergency_stop"`
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	cooldownActive := m.cooldownUntil != nil && m.now().Before(*m.cooldownUntil)
	return Status{
		DailyPnL:          m.dailyPnL,
		OpenPositionCount: m.openPositionCount,
		ConsecutiveLosses: m.consecutiveLosses,
		CooldownActive:    cooldownActive,
		EmergencyStop:     m.emergencyStop,
	}
}

// currentDateKey derives a non-calendar "day" from unix_ts / 86400, as
// the upstream risk gate does — see DESIGN.md's Open Question resolutions.
func currentDateKey(t time.Time) string {
	return fmt.Sprintf("day-%d", t.Unix()/86400)
}

func (m *Manager) maybeResetDailyLocked() {
	key := currentDateKey(m.now())
	if key != m.dailyDateKey {
		m.dailyDateKey = key
		m.dailyPnL = 0
	}
}

func (m *Manager) logEventLocked(eventType, details string) {
	m.events = append(m.events, Event{
		TimestampUnix: m.now().Unix(),
		EventType:     eventType,
		Details:       details,
	})
}
