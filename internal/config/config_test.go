package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent_id: agent-1
agent_type: trader
mqtt:
  broker: localhost
  port: 1883
orchestrator:
  url: http://localhost:8420
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "agent-1", cfg.AgentID)
	require.Equal(t, 30, cfg.MQTT.KeepAliveSecs)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "text", cfg.Log.Format)
	require.Equal(t, 10, cfg.Firewall.MaxMutationsPerHour)
	require.Equal(t, 0.30, cfg.Firewall.FitnessDropThreshold)
	require.Equal(t, 3, cfg.Risk.ConsecutiveLossLimit)
	require.Equal(t, 1000, cfg.Evolution.MaxHistorySize)
	require.Equal(t, 300, cfg.Skills.Governance.TickInterval)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDefaultForType(t *testing.T) {
	cfg := DefaultForType("a1", "trader")
	require.NotNil(t, cfg.Trading)
	require.Nil(t, cfg.Monitor)
	require.Equal(t, 1000.0, cfg.Trading.MaxPositionSizeUSD)

	cfg2 := DefaultForType("a2", "monitor")
	require.Nil(t, cfg2.Trading)
	require.NotNil(t, cfg2.Monitor)
}
