// Command agent runs one edge node: it loads configuration, wires every
// subsystem, connects to the MQTT bus, and runs the cooperative event
// loop until the process receives a shutdown signal or a "shutdown"
// command arrives over the bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alejandrodnm/evoclaw/internal/adapters/llm"
	"github.com/alejandrodnm/evoclaw/internal/agent"
	"github.com/alejandrodnm/evoclaw/internal/bus"
	"github.com/alejandrodnm/evoclaw/internal/config"
	"github.com/alejandrodnm/evoclaw/internal/errkind"
	"github.com/alejandrodnm/evoclaw/internal/evolution"
	"github.com/alejandrodnm/evoclaw/internal/firewall"
	"github.com/alejandrodnm/evoclaw/internal/metrics"
	"github.com/alejandrodnm/evoclaw/internal/paper"
	"github.com/alejandrodnm/evoclaw/internal/platform/logging"
	"github.com/alejandrodnm/evoclaw/internal/platform/probe"
	"github.com/alejandrodnm/evoclaw/internal/risk"
	"github.com/alejandrodnm/evoclaw/internal/skills"
	"github.com/alejandrodnm/evoclaw/internal/store/archive"
	"github.com/alejandrodnm/evoclaw/internal/store/session"
	"github.com/alejandrodnm/evoclaw/internal/store/wal"
	"github.com/alejandrodnm/evoclaw/internal/strategy"
	"github.com/alejandrodnm/evoclaw/internal/trading"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "agent:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "config.yaml", "path to the agent's YAML config file")
		agentID    = flag.String("id", "", "agent id (overrides config when set)")
		agentType  = flag.String("agent-type", "", "agent type: trader | monitor | sensor | governance (overrides config when set)")
		broker     = flag.String("broker", "", "MQTT broker host:port (overrides config when set)")
	)
	var (
		port         = flag.Int("port", 0, "MQTT broker port (overrides config when set)")
		orchestrator = flag.String("orchestrator", "", "orchestrator URL (overrides config when set)")
		stateDir     = flag.String("state-dir", "", "directory for WAL/session/paper-log files (overrides config when set)")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath, *agentID, *agentType)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *broker != "" {
		cfg.MQTT.Broker = *broker
	}
	if *port > 0 {
		cfg.MQTT.Port = *port
	}
	if *orchestrator != "" {
		cfg.Orchestrator.URL = *orchestrator
	}
	if *stateDir != "" {
		cfg.StateDir = *stateDir
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log.Info("agent: starting", "agent_id", cfg.AgentID, "agent_type", cfg.AgentType)

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	sessions := session.New(filepath.Join(cfg.StateDir, "sessions.jsonl"))
	walStore, err := wal.Open(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	archiveStore, err := archive.Open(filepath.Join(cfg.StateDir, "archive.db"))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveStore.Close()

	tradingClient, err := buildTradingClient(cfg)
	if err != nil {
		return fmt.Errorf("build trading client: %w", err)
	}

	paperTrader := paper.New(startingBalance(cfg), filepath.Join(cfg.StateDir, "fills.jsonl"))
	riskMgr := risk.New(risk.Config{
		MaxPositionSizeUSD:   cfg.Risk.MaxPositionSizeUSD,
		MaxOpenPositions:     cfg.Risk.MaxOpenPositions,
		DailyLossLimitUSD:    cfg.Risk.DailyLossLimitUSD,
		ConsecutiveLossLimit: cfg.Risk.ConsecutiveLossLimit,
		Cooldown:             secs(cfg.Risk.CooldownSecs),
	})
	fw := firewall.New(firewall.Config{
		Enabled:              cfg.Firewall.Enabled,
		MaxMutationsPerHour:  cfg.Firewall.MaxMutationsPerHour,
		FitnessDropThreshold: cfg.Firewall.FitnessDropThreshold,
		Cooldown:             secs(cfg.Firewall.CooldownSecs),
	})
	evo := evolution.New(cfg.Evolution.MaxHistorySize)
	met := metrics.New()

	engine := buildStrategyEngine(cfg)
	registry := buildSkillsRegistry(cfg, log)
	registry.InitAll(context.Background())

	topics := bus.TopicsFor(cfg.AgentID)
	busClient := bus.New(fmt.Sprintf("%s:%d", cfg.MQTT.Broker, cfg.MQTT.Port), cfg.AgentID, topics, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go busClient.RunWithReconnect(ctx)

	a := agent.New(agent.Deps{
		AgentID:   cfg.AgentID,
		AgentType: cfg.AgentType,
		Bus:       busClient,
		Incoming:  busClient.Incoming(),
		Log:       log,
		Trading:   tradingClient,
		Paper:     paperTrader,
		Risk:      riskMgr,
		Firewall:  fw,
		Strategy:  engine,
		Skills:    registry,
		Evolution: evo,
		Metrics:   met,
		Sessions:  sessions,
		WAL:       walStore,
		Archive:   archiveStore,
	})

	return a.Run(ctx)
}

func loadConfig(path, agentIDFlag, agentTypeFlag string) (*config.Config, error) {
	if _, err := os.Stat(path); err == nil {
		return config.Load(path)
	}
	if agentIDFlag == "" {
		return nil, fmt.Errorf("no config file at %q and -id not set", path)
	}
	agentType := agentTypeFlag
	if agentType == "" {
		agentType = "monitor"
	}
	return config.DefaultForType(agentIDFlag, agentType), nil
}

func startingBalance(cfg *config.Config) float64 {
	if cfg.Trading != nil && cfg.Trading.MaxPositionSizeUSD > 0 {
		return cfg.Trading.MaxPositionSizeUSD * 10
	}
	return 10000
}

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

func buildTradingClient(cfg *config.Config) (*trading.Client, error) {
	if cfg.Trading == nil {
		return nil, nil
	}
	keyData, err := os.ReadFile(cfg.Trading.PrivateKeyPath)
	if err != nil {
		return nil, errkind.Fatalf("buildTradingClient", fmt.Errorf("read private key: %w", err))
	}
	privateKey := strings.TrimSpace(string(keyData))

	return trading.NewClient(*cfg.Trading, privateKey), nil
}

func buildStrategyEngine(cfg *config.Config) *strategy.Engine {
	engine := strategy.NewEngine()
	if cfg.Trading == nil {
		return engine
	}
	engine.AddStrategy(strategy.NewFundingArbitrage(strategy.FundingArbitrageConfig{
		FundingThreshold: 0.01,
		ExitFunding:      0.002,
		PositionSizeUSD:  cfg.Trading.MaxPositionSizeUSD,
	}))
	engine.AddStrategy(strategy.NewMeanReversion(strategy.MeanReversionConfig{
		PositionSizeUSD: cfg.Trading.MaxPositionSizeUSD,
	}))
	return engine
}

func buildSkillsRegistry(cfg *config.Config, log *slog.Logger) *skills.Registry {
	registry := skills.NewRegistry(log, func() int64 { return time.Now().Unix() })

	if cfg.Skills.SystemMonitor.Enabled {
		p := probe.NewGopsutilProbe("/")
		sm := skills.NewSystemMonitor(p, uint64(cfg.Skills.SystemMonitor.TickInterval), nil)
		registry.Register(sm)
	}
	if cfg.Skills.GPIO.Enabled {
		pins := make([]uint8, 0, len(cfg.Skills.GPIO.Pins))
		for _, p := range cfg.Skills.GPIO.Pins {
			pins = append(pins, uint8(p))
		}
		registry.Register(skills.NewGPIO(pins, "/sys/class/gpio"))
	}
	if cfg.Skills.PriceMonitor.Enabled {
		feed := skills.NewCoinGeckoFeed(10)
		pm := skills.NewPriceMonitor(feed, cfg.Skills.PriceMonitor.Symbols, cfg.Skills.PriceMonitor.ThresholdPct, uint64(cfg.Skills.PriceMonitor.TickInterval), nil)
		registry.Register(pm)
	}
	if cfg.Skills.Clawchain.Enabled {
		rpc := skills.NewHTTPRPCClient(cfg.Skills.Clawchain.RPCURL)
		cc := skills.NewClawChain(rpc, cfg.AgentID, "", cfg.Skills.Clawchain.RPCURL, 60, nil)
		registry.Register(cc)
	}
	if cfg.Skills.Governance.Enabled {
		client := llm.New(llm.ConfigFromEnv())
		registry.Register(skills.NewGovernance(client, cfg.AgentID, uint64(cfg.Skills.Governance.TickInterval), func() int64 { return time.Now().Unix() }))
	}
	return registry
}
