// Package wire defines the command/report envelopes exchanged with the
// orchestrator over the bus, and the JSON codec for them.
package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Command is a message from the orchestrator to the agent.
type Command struct {
	Command   string          `json:"command"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id"`
}

// rawCommand distinguishes an absent request_id from an empty one, since
// the wire contract requires request_id to correlate replies.
type rawCommand struct {
	Command   string          `json:"command"`
	Payload   json.RawMessage `json:"payload"`
	RequestID *string         `json:"request_id"`
}

// ReportType enumerates the report_type values a Report may carry.
type ReportType string

const (
	ReportMetric    ReportType = "metric"
	ReportResult    ReportType = "result"
	ReportError     ReportType = "error"
	ReportHeartbeat ReportType = "heartbeat"
	ReportData      ReportType = "data"
	ReportAlert     ReportType = "alert"
)

// Report is a message from the agent to the orchestrator.
type Report struct {
	AgentID    string      `json:"agent_id"`
	AgentType  string      `json:"agent_type"`
	ReportType ReportType  `json:"report_type"`
	Payload    interface{} `json:"payload"`
	Timestamp  int64       `json:"timestamp"`
}

// NewReport stamps the current unix time onto a report.
func NewReport(agentID, agentType string, reportType ReportType, payload interface{}) Report {
	return Report{
		AgentID:    agentID,
		AgentType:  agentType,
		ReportType: reportType,
		Payload:    payload,
		Timestamp:  time.Now().Unix(),
	}
}

// ParseCommand decodes an incoming bus payload into a Command. request_id
// is required on the wire; a missing field is an error, matching the
// orchestrator's own command schema.
func ParseCommand(payload []byte) (Command, error) {
	var raw rawCommand
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Command{}, err
	}
	if raw.RequestID == nil {
		return Command{}, fmt.Errorf("wire: missing field request_id")
	}
	return Command{Command: raw.Command, Payload: raw.Payload, RequestID: *raw.RequestID}, nil
}

// Encode marshals a Report for publish.
func Encode(r Report) ([]byte, error) {
	return json.Marshal(r)
}
