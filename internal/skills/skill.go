// Package skills defines the pluggable capability contract (system
// monitoring, GPIO control, price feeds, clawchain RPC) and the
// registry that drives their lifecycle from the agent event loop.
package skills

import (
	"context"
	"encoding/json"
)

// ReportKind tags the shape of a SkillReport's payload.
type ReportKind string

const (
	ReportMetric ReportKind = "metric"
	ReportAlert  ReportKind = "alert"
)

// Report is a skill-originated report, either from a tick or pushed
// asynchronously. It is wrapped into a wire.Report by the caller.
type Report struct {
	Skill   string          `json:"skill"`
	Kind    ReportKind      `json:"report_type"`
	Payload json.RawMessage `json:"payload"`
}

// Info describes a registered skill's current state, returned by
// Registry.ListSkills.
type Info struct {
	Name             string   `json:"name"`
	Enabled          bool     `json:"enabled"`
	Capabilities     []string `json:"capabilities"`
	TickIntervalSecs uint64   `json:"tick_interval_secs"`
	LastTickUnix     int64    `json:"last_tick_unix,omitempty"`
}

// Skill is the pluggable capability contract. Init failures disable the
// skill in the registry rather than aborting startup; Tick returning an
// empty slice means there was nothing to report this cycle. A tick may
// produce more than one report, e.g. a metric plus one alert per
// breached threshold.
type Skill interface {
	Name() string
	Capabilities() []string
	Init(ctx context.Context) error
	Handle(ctx context.Context, command string, payload json.RawMessage) (json.RawMessage, error)
	Tick(ctx context.Context) ([]*Report, error)
	TickIntervalSecs() uint64
	Shutdown(ctx context.Context)
}
