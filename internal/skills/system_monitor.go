package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/evoclaw/internal/platform/probe"
)

// AlertThresholds gate when SystemMonitor emits an alert report on tick.
type AlertThresholds struct {
	CPUPct        float64 `json:"cpu_pct"`
	MemoryPct     float64 `json:"memory_pct"`
	TemperatureC  float64 `json:"temperature_c"`
	DiskPct       float64 `json:"disk_pct"`
}

// DefaultAlertThresholds mirrors the upstream defaults.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{CPUPct: 90, MemoryPct: 80, TemperatureC: 70, DiskPct: 90}
}

// MetricsSnapshot is the reportable JSON view of one probe read.
type MetricsSnapshot struct {
	TimestampUnix int64    `json:"timestamp"`
	CPUPct        float64  `json:"cpu_pct"`
	MemoryUsedMB  float64  `json:"memory_used_mb"`
	MemoryTotalMB float64  `json:"memory_total_mb"`
	MemoryPct     float64  `json:"memory_pct"`
	DiskUsedGB    float64  `json:"disk_used_gb"`
	DiskTotalGB   float64  `json:"disk_total_gb"`
	DiskPct       float64  `json:"disk_pct"`
	TemperatureC  *float64 `json:"temperature_c"`
	UptimeSec     uint64   `json:"uptime_secs"`
	Load1         float64  `json:"load_1m"`
	Load5         float64  `json:"load_5m"`
	Load15        float64  `json:"load_15m"`
	NetRxBytes    uint64   `json:"net_rx_bytes"`
	NetTxBytes    uint64   `json:"net_tx_bytes"`
}

// SystemMonitor reports host health (CPU, memory, disk, temperature,
// load, network) on a tick cadence and keeps a bounded history.
type SystemMonitor struct {
	probe        probe.PlatformProbe
	tickInterval uint64
	maxHistory   int
	history      []MetricsSnapshot
	thresholds   AlertThresholds
	nowUnix      func() int64
}

// NewSystemMonitor builds the skill. now defaults to a real clock when
// nil; tests should inject a fixed function.
func NewSystemMonitor(p probe.PlatformProbe, tickInterval uint64, now func() int64) *SystemMonitor {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	return &SystemMonitor{
		probe:        p,
		tickInterval: tickInterval,
		maxHistory:   100,
		thresholds:   DefaultAlertThresholds(),
		nowUnix:      now,
	}
}

// Name implements Skill.
func (s *SystemMonitor) Name() string { return "system_monitor" }

// Capabilities implements Skill.
func (s *SystemMonitor) Capabilities() []string {
	return []string{
		"system.cpu", "system.memory", "system.disk",
		"system.temperature", "system.uptime", "system.load", "system.network",
	}
}

// Init implements Skill.
func (s *SystemMonitor) Init(ctx context.Context) error {
	_, err := s.probe.Read()
	return err
}

func (s *SystemMonitor) collect() (MetricsSnapshot, error) {
	snap, err := s.probe.Read()
	if err != nil {
		return MetricsSnapshot{}, err
	}
	return MetricsSnapshot{
		TimestampUnix: s.nowUnix(),
		CPUPct:        snap.CPUPct,
		MemoryUsedMB:  snap.MemoryUsedMB,
		MemoryTotalMB: snap.MemoryTotalMB,
		MemoryPct:     snap.MemoryPct,
		DiskUsedGB:    snap.DiskUsedGB,
		DiskTotalGB:   snap.DiskTotalGB,
		DiskPct:       snap.DiskPct,
		TemperatureC:  snap.TemperatureC,
		UptimeSec:     snap.UptimeSec,
		Load1:         snap.Load1,
		Load5:         snap.Load5,
		Load15:        snap.Load15,
		NetRxBytes:    snap.NetRxBytes,
		NetTxBytes:    snap.NetTxBytes,
	}, nil
}

func (s *SystemMonitor) alerts(snap MetricsSnapshot) []Report {
	var reports []Report
	emit := func(kind, msg string, value, threshold float64) {
		payload, _ := json.Marshal(map[string]interface{}{
			"alert": kind, "value": value, "threshold": threshold, "message": msg,
		})
		reports = append(reports, Report{Skill: s.Name(), Kind: ReportAlert, Payload: payload})
	}
	if snap.CPUPct > s.thresholds.CPUPct {
		emit("cpu_high", fmt.Sprintf("CPU usage at %.1f%% (threshold: %.0f%%)", snap.CPUPct, s.thresholds.CPUPct), snap.CPUPct, s.thresholds.CPUPct)
	}
	if snap.MemoryPct > s.thresholds.MemoryPct {
		emit("memory_high", fmt.Sprintf("Memory usage at %.1f%% (threshold: %.0f%%)", snap.MemoryPct, s.thresholds.MemoryPct), snap.MemoryPct, s.thresholds.MemoryPct)
	}
	if snap.TemperatureC != nil && *snap.TemperatureC > s.thresholds.TemperatureC {
		emit("temperature_high", fmt.Sprintf("CPU temperature at %.1f°C (threshold: %.0f°C)", *snap.TemperatureC, s.thresholds.TemperatureC), *snap.TemperatureC, s.thresholds.TemperatureC)
	}
	if snap.DiskPct > s.thresholds.DiskPct {
		emit("disk_high", fmt.Sprintf("Disk usage at %.1f%% (threshold: %.0f%%)", snap.DiskPct, s.thresholds.DiskPct), snap.DiskPct, s.thresholds.DiskPct)
	}
	return reports
}

// Handle implements Skill. Supported commands: status, history,
// alert_threshold.
func (s *SystemMonitor) Handle(ctx context.Context, command string, payload json.RawMessage) (json.RawMessage, error) {
	switch command {
	case "status":
		snap, err := s.collect()
		if err != nil {
			return nil, err
		}
		return json.Marshal(snap)

	case "history":
		var req struct {
			Count int `json:"count"`
		}
		_ = json.Unmarshal(payload, &req)
		if req.Count <= 0 {
			req.Count = 10
		}
		n := len(s.history)
		if req.Count > n {
			req.Count = n
		}
		recent := s.history[n-req.Count:]
		return json.Marshal(map[string]interface{}{"count": len(recent), "snapshots": recent})

	case "alert_threshold":
		var req map[string]float64
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("system_monitor: invalid alert_threshold payload: %w", err)
		}
		if v, ok := req["cpu_pct"]; ok {
			s.thresholds.CPUPct = v
		}
		if v, ok := req["memory_pct"]; ok {
			s.thresholds.MemoryPct = v
		}
		if v, ok := req["temperature_c"]; ok {
			s.thresholds.TemperatureC = v
		}
		if v, ok := req["disk_pct"]; ok {
			s.thresholds.DiskPct = v
		}
		return json.Marshal(map[string]interface{}{
			"status": "thresholds_updated", "cpu_pct": s.thresholds.CPUPct,
			"memory_pct": s.thresholds.MemoryPct, "temperature_c": s.thresholds.TemperatureC, "disk_pct": s.thresholds.DiskPct,
		})

	default:
		return nil, fmt.Errorf("system_monitor: unknown command %q", command)
	}
}

// Tick implements Skill, returning a metric report plus one alert
// report per breached threshold.
func (s *SystemMonitor) Tick(ctx context.Context) ([]*Report, error) {
	snap, err := s.collect()
	if err != nil {
		return nil, err
	}
	alerts := s.alerts(snap)

	s.history = append(s.history, snap)
	if len(s.history) > s.maxHistory {
		s.history = s.history[1:]
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	reports := make([]*Report, 0, len(alerts)+1)
	reports = append(reports, &Report{Skill: s.Name(), Kind: ReportMetric, Payload: payload})
	for i := range alerts {
		reports = append(reports, &alerts[i])
	}
	return reports, nil
}

// TickIntervalSecs implements Skill.
func (s *SystemMonitor) TickIntervalSecs() uint64 { return s.tickInterval }

// Shutdown implements Skill.
func (s *SystemMonitor) Shutdown(ctx context.Context) {}
