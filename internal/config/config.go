// Package config loads the agent's YAML configuration file, overlaying a
// .env file and environment variable overrides, in the same shape the
// teacher's scanner config package used.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration for one agent process.
type Config struct {
	AgentID   string          `yaml:"agent_id"`
	AgentType string          `yaml:"agent_type"` // trader | monitor | sensor | governance
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Trading   *TradingConfig  `yaml:"trading,omitempty"`
	Monitor   *MonitorConfig  `yaml:"monitor,omitempty"`
	Skills    SkillsConfig    `yaml:"skills"`
	Firewall  FirewallConfig  `yaml:"firewall"`
	Risk      RiskConfig      `yaml:"risk"`
	Evolution EvolutionConfig `yaml:"evolution"`
	Log       LogConfig       `yaml:"log"`
	StateDir  string          `yaml:"state_dir"`
}

type MQTTConfig struct {
	Broker        string `yaml:"broker"`
	Port          int    `yaml:"port"`
	KeepAliveSecs int    `yaml:"keep_alive_secs"`
}

type OrchestratorConfig struct {
	URL string `yaml:"url"`
}

type TradingConfig struct {
	HyperliquidAPI     string  `yaml:"hyperliquid_api"`
	WalletAddress      string  `yaml:"wallet_address"`
	PrivateKeyPath     string  `yaml:"private_key_path"`
	MaxPositionSizeUSD float64 `yaml:"max_position_size_usd"`
	MaxLeverage        float64 `yaml:"max_leverage"`
	Testnet            bool    `yaml:"testnet"`
}

type MonitorConfig struct {
	PriceAlertThresholdPct   float64 `yaml:"price_alert_threshold_pct"`
	FundingRateThresholdPct  float64 `yaml:"funding_rate_threshold_pct"`
	CheckIntervalSecs        int     `yaml:"check_interval_secs"`
}

type SkillsConfig struct {
	SystemMonitor SystemMonitorSkillConfig `yaml:"system_monitor"`
	GPIO          GPIOSkillConfig          `yaml:"gpio"`
	PriceMonitor  PriceMonitorSkillConfig  `yaml:"price_monitor"`
	Clawchain     ClawchainSkillConfig     `yaml:"clawchain"`
	Governance    GovernanceSkillConfig    `yaml:"governance"`
}

type SystemMonitorSkillConfig struct {
	Enabled      bool `yaml:"enabled"`
	TickInterval int  `yaml:"tick_interval_secs"`
}

type GPIOSkillConfig struct {
	Enabled bool  `yaml:"enabled"`
	Pins    []int `yaml:"pins"`
}

type PriceMonitorSkillConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Symbols      []string `yaml:"symbols"`
	ThresholdPct float64  `yaml:"threshold_pct"`
	TickInterval int      `yaml:"tick_interval_secs"`
}

type ClawchainSkillConfig struct {
	Enabled bool   `yaml:"enabled"`
	RPCURL  string `yaml:"rpc_url"`
}

// GovernanceSkillConfig gates the LLM-advised governance skill. The LLM
// endpoint itself (LLM_BASE_URL/LLM_API_KEY/LLM_MODEL) is env-only, not
// part of the YAML tree, since it is credential-bearing.
type GovernanceSkillConfig struct {
	Enabled      bool `yaml:"enabled"`
	TickInterval int  `yaml:"tick_interval_secs"`
}

type FirewallConfig struct {
	Enabled              bool    `yaml:"enabled"`
	MaxMutationsPerHour  int     `yaml:"max_mutations_per_hour"`
	FitnessDropThreshold float64 `yaml:"fitness_drop_threshold"`
	CooldownSecs         int     `yaml:"cooldown_secs"`
}

type RiskConfig struct {
	MaxPositionSizeUSD  float64 `yaml:"max_position_size_usd"`
	MaxOpenPositions    int     `yaml:"max_open_positions"`
	DailyLossLimitUSD   float64 `yaml:"daily_loss_limit_usd"`
	ConsecutiveLossLimit int    `yaml:"consecutive_loss_limit"`
	CooldownSecs        int     `yaml:"cooldown_secs"`
}

type EvolutionConfig struct {
	MaxHistorySize int `yaml:"max_history_size"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads path (YAML), applies a best-effort .env overlay, then env
// overrides, then defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// DefaultForType builds a minimal config for agentType without needing
// a config file on disk, useful for quick starts and tests.
func DefaultForType(agentID, agentType string) *Config {
	cfg := &Config{
		AgentID:   agentID,
		AgentType: agentType,
		MQTT: MQTTConfig{
			Broker:        "localhost",
			Port:          1883,
			KeepAliveSecs: 30,
		},
		Orchestrator: OrchestratorConfig{URL: "http://localhost:8420"},
	}
	if agentType == "trader" {
		cfg.Trading = &TradingConfig{
			HyperliquidAPI:     "https://api.hyperliquid.xyz",
			PrivateKeyPath:     "keys/private.key",
			MaxPositionSizeUSD: 1000.0,
			MaxLeverage:        3.0,
		}
	}
	if agentType == "monitor" {
		cfg.Monitor = &MonitorConfig{
			PriceAlertThresholdPct:  5.0,
			FundingRateThresholdPct: 0.1,
			CheckIntervalSecs:       60,
		}
	}
	setDefaults(cfg)
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("EVOCLAW_WALLET_ADDRESS"); v != "" && cfg.Trading != nil {
		cfg.Trading.WalletAddress = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.MQTT.KeepAliveSecs <= 0 {
		cfg.MQTT.KeepAliveSecs = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.StateDir == "" {
		cfg.StateDir = "state"
	}
	if cfg.Firewall.MaxMutationsPerHour <= 0 {
		cfg.Firewall.MaxMutationsPerHour = 10
	}
	if cfg.Firewall.FitnessDropThreshold <= 0 {
		cfg.Firewall.FitnessDropThreshold = 0.30
	}
	if cfg.Firewall.CooldownSecs <= 0 {
		cfg.Firewall.CooldownSecs = 3600
	}
	if cfg.Risk.MaxOpenPositions <= 0 {
		cfg.Risk.MaxOpenPositions = 5
	}
	if cfg.Risk.ConsecutiveLossLimit <= 0 {
		cfg.Risk.ConsecutiveLossLimit = 3
	}
	if cfg.Risk.CooldownSecs <= 0 {
		cfg.Risk.CooldownSecs = 60
	}
	if cfg.Evolution.MaxHistorySize <= 0 {
		cfg.Evolution.MaxHistorySize = 1000
	}
	if cfg.Skills.PriceMonitor.TickInterval <= 0 {
		cfg.Skills.PriceMonitor.TickInterval = 60
	}
	if cfg.Skills.SystemMonitor.TickInterval <= 0 {
		cfg.Skills.SystemMonitor.TickInterval = 30
	}
	if cfg.Skills.Governance.TickInterval <= 0 {
		cfg.Skills.Governance.TickInterval = 300
	}
}
