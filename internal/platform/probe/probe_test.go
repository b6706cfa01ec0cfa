package probe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixtureProbeReturnsConfiguredSnapshot(t *testing.T) {
	temp := 48.3
	p := FixtureProbe{Snapshot: Snapshot{CPUPct: 12.5, TemperatureC: &temp}}
	snap, err := p.Read()
	require.NoError(t, err)
	require.Equal(t, 12.5, snap.CPUPct)
	require.NotNil(t, snap.TemperatureC)
	require.Equal(t, 48.3, *snap.TemperatureC)
}

func TestFixtureProbePropagatesError(t *testing.T) {
	p := FixtureProbe{Err: require.AnError}
	_, err := p.Read()
	require.Error(t, err)
}
