package skills

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGPIOInitFallsBackToSimulationWithoutSysfs(t *testing.T) {
	g := NewGPIO([]uint8{17}, "/nonexistent/sysfs/gpio")
	err := g.Init(context.Background())
	require.NoError(t, err)
	require.False(t, g.gpioAvailable)
}

func TestGPIOWriteThenReadRoundTripsInSimulation(t *testing.T) {
	g := NewGPIO([]uint8{17}, "/nonexistent/sysfs/gpio")
	require.NoError(t, g.Init(context.Background()))

	writePayload, _ := json.Marshal(map[string]int{"pin": 17, "value": 1})
	_, err := g.Handle(context.Background(), "write", writePayload)
	require.NoError(t, err)

	readPayload, _ := json.Marshal(map[string]int{"pin": 17})
	out, err := g.Handle(context.Background(), "read", readPayload)
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &resp))
	require.Equal(t, float64(1), resp["value"])
	require.Equal(t, true, resp["simulated"])
}

func TestGPIOWriteDisallowedPinErrors(t *testing.T) {
	g := NewGPIO([]uint8{17}, "/nonexistent/sysfs/gpio")
	require.NoError(t, g.Init(context.Background()))

	payload, _ := json.Marshal(map[string]int{"pin": 4, "value": 1})
	_, err := g.Handle(context.Background(), "write", payload)
	require.Error(t, err)
}

func TestGPIOModeSetsDirection(t *testing.T) {
	g := NewGPIO([]uint8{17}, "/nonexistent/sysfs/gpio")
	require.NoError(t, g.Init(context.Background()))

	payload, _ := json.Marshal(map[string]interface{}{"pin": 17, "direction": "output"})
	out, err := g.Handle(context.Background(), "mode", payload)
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &resp))
	require.Equal(t, "output", resp["direction"])
}

func TestGPIOModeInvalidDirectionErrors(t *testing.T) {
	g := NewGPIO([]uint8{17}, "/nonexistent/sysfs/gpio")
	payload, _ := json.Marshal(map[string]interface{}{"pin": 17, "direction": "sideways"})
	_, err := g.Handle(context.Background(), "mode", payload)
	require.Error(t, err)
}

func TestGPIOStatusListsKnownPins(t *testing.T) {
	g := NewGPIO([]uint8{17}, "/nonexistent/sysfs/gpio")
	require.NoError(t, g.Init(context.Background()))

	writePayload, _ := json.Marshal(map[string]int{"pin": 17, "value": 1})
	_, _ = g.Handle(context.Background(), "write", writePayload)

	out, err := g.Handle(context.Background(), "status", nil)
	require.NoError(t, err)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &resp))
	pins, ok := resp["pins"].([]interface{})
	require.True(t, ok)
	require.Len(t, pins, 1)
}

func TestGPIOShutdownUnexportsPinsExportedDuringInit(t *testing.T) {
	sysfs := t.TempDir()
	g := NewGPIO([]uint8{17}, sysfs)
	require.NoError(t, g.Init(context.Background()))
	require.True(t, g.gpioAvailable)
	require.True(t, g.pinStates[17].Exported)

	g.Shutdown(context.Background())

	data, err := os.ReadFile(filepath.Join(sysfs, "unexport"))
	require.NoError(t, err)
	require.Equal(t, "17", string(data))
	require.False(t, g.pinStates[17].Exported)
}

func TestGPIOOutOfRangeBCMPinRejected(t *testing.T) {
	g := NewGPIO([]uint8{99}, "/nonexistent/sysfs/gpio")
	require.False(t, g.isAllowed(99), "99 is outside the valid BCM pin range even if configured")
}
