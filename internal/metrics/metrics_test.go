package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordSuccessAndFailure(t *testing.T) {
	m := New()
	m.RecordSuccess()
	m.RecordSuccess()
	m.RecordFailure()

	snap := m.Snapshot()
	require.Equal(t, uint64(3), snap.ActionsTotal)
	require.Equal(t, uint64(2), snap.ActionsSuccess)
	require.Equal(t, uint64(1), snap.ActionsFailed)
	require.InDelta(t, 2.0/3.0, m.SuccessRate(), 1e-9)
}

func TestSuccessRateWithNoActions(t *testing.T) {
	m := New()
	require.Equal(t, 0.0, m.SuccessRate())
}

func TestIncrementUptime(t *testing.T) {
	m := New()
	m.IncrementUptime(30)
	m.IncrementUptime(30)
	require.Equal(t, uint64(60), m.Snapshot().UptimeSec)
}

func TestSetCustom(t *testing.T) {
	m := New()
	m.SetCustom("fitness", 72.5)
	require.Equal(t, 72.5, m.Snapshot().Custom["fitness"])
}
