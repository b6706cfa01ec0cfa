package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommandValid(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"command":"ping","payload":{"test":true},"request_id":"req123"}`))
	require.NoError(t, err)
	require.Equal(t, "ping", cmd.Command)
	require.Equal(t, "req123", cmd.RequestID)
}

func TestParseCommandMissingRequestID(t *testing.T) {
	_, err := ParseCommand([]byte(`{"command":"ping","payload":{}}`))
	require.Error(t, err)
}

func TestParseCommandInvalidJSON(t *testing.T) {
	_, err := ParseCommand([]byte("not valid json {["))
	require.Error(t, err)
}

func TestReportRoundTrip(t *testing.T) {
	r := NewReport("agent1", "trader", ReportHeartbeat, map[string]int{"uptime": 3600})
	data, err := Encode(r)
	require.NoError(t, err)
	require.Contains(t, string(data), `"report_type":"heartbeat"`)
}
