package skills

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/evoclaw/internal/platform/probe"
)

func TestSystemMonitorStatusReturnsSnapshot(t *testing.T) {
	p := probe.FixtureProbe{Snapshot: probe.Snapshot{CPUPct: 42, MemoryPct: 30}}
	sm := NewSystemMonitor(p, 30, func() int64 { return 1000 })

	out, err := sm.Handle(context.Background(), "status", nil)
	require.NoError(t, err)

	var snap MetricsSnapshot
	require.NoError(t, json.Unmarshal(out, &snap))
	require.Equal(t, 42.0, snap.CPUPct)
	require.Equal(t, int64(1000), snap.TimestampUnix)
}

func TestSystemMonitorTickAppendsHistory(t *testing.T) {
	p := probe.FixtureProbe{Snapshot: probe.Snapshot{CPUPct: 10}}
	sm := NewSystemMonitor(p, 30, func() int64 { return 0 })

	reports, err := sm.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, ReportMetric, reports[0].Kind)
	require.Len(t, sm.history, 1)
}

func TestSystemMonitorTickEmitsAlertReportOnThresholdBreach(t *testing.T) {
	p := probe.FixtureProbe{Snapshot: probe.Snapshot{CPUPct: 97}}
	sm := NewSystemMonitor(p, 30, func() int64 { return 0 })

	reports, err := sm.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	require.Equal(t, ReportMetric, reports[0].Kind)
	require.Equal(t, ReportAlert, reports[1].Kind)

	var alert map[string]interface{}
	require.NoError(t, json.Unmarshal(reports[1].Payload, &alert))
	require.Equal(t, "cpu_high", alert["alert"])
	require.Equal(t, 97.0, alert["value"])
}

func TestSystemMonitorHistoryBoundedByMaxHistory(t *testing.T) {
	p := probe.FixtureProbe{Snapshot: probe.Snapshot{CPUPct: 10}}
	sm := NewSystemMonitor(p, 30, func() int64 { return 0 })
	sm.maxHistory = 3

	for i := 0; i < 5; i++ {
		_, _ = sm.Tick(context.Background())
	}
	require.Len(t, sm.history, 3)
}

func TestSystemMonitorAlertThresholdUpdatesAndReflectsInGet(t *testing.T) {
	p := probe.FixtureProbe{Snapshot: probe.Snapshot{}}
	sm := NewSystemMonitor(p, 30, func() int64 { return 0 })

	payload, _ := json.Marshal(map[string]float64{"cpu_pct": 95, "memory_pct": 85})
	out, err := sm.Handle(context.Background(), "alert_threshold", payload)
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &resp))
	require.Equal(t, 95.0, resp["cpu_pct"])
	require.Equal(t, 85.0, resp["memory_pct"])
	require.Equal(t, 70.0, resp["temperature_c"], "unchanged field keeps its default")
}

func TestSystemMonitorUnknownCommandErrors(t *testing.T) {
	p := probe.FixtureProbe{}
	sm := NewSystemMonitor(p, 30, func() int64 { return 0 })
	_, err := sm.Handle(context.Background(), "bogus", nil)
	require.Error(t, err)
}

func TestSystemMonitorHistoryCommandReturnsMostRecent(t *testing.T) {
	p := probe.FixtureProbe{Snapshot: probe.Snapshot{CPUPct: 5}}
	sm := NewSystemMonitor(p, 30, func() int64 { return 0 })
	for i := 0; i < 3; i++ {
		_, _ = sm.Tick(context.Background())
	}

	payload, _ := json.Marshal(map[string]int{"count": 2})
	out, err := sm.Handle(context.Background(), "history", payload)
	require.NoError(t, err)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(out, &resp))
	require.Equal(t, 2, resp.Count)
}
