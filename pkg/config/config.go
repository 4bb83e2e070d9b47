package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/krivonosoff161/futures-exit-bot/internal/engine"
	boterrors "github.com/krivonosoff161/futures-exit-bot/internal/errors"
	"github.com/krivonosoff161/futures-exit-bot/internal/exchange/bybit"
	"github.com/krivonosoff161/futures-exit-bot/internal/params"
	"github.com/krivonosoff161/futures-exit-bot/internal/pnl"
	"github.com/krivonosoff161/futures-exit-bot/internal/pricing"
	"github.com/krivonosoff161/futures-exit-bot/internal/regime"
	"github.com/krivonosoff161/futures-exit-bot/internal/thresholds"
)

// Config is the full bot configuration. Credentials are never stored in
// the file; they come from the environment (BYBIT_API_KEY and
// BYBIT_API_SECRET), optionally loaded from .env by the binary.
type Config struct {
	Symbols []string `json:"symbols"`

	// Scheduler cadence, seconds
	EvalIntervalSeconds int `json:"eval_interval_seconds"`
	SyncIntervalSeconds int `json:"sync_interval_seconds"`

	// Candle feed for regime detection and the last-candle fallback
	KlineInterval string `json:"kline_interval"`
	KlineLimit    int    `json:"kline_limit"`

	// Stop-loss grace window, seconds
	GraceWindowSeconds int `json:"grace_window_seconds"`

	Logging    LoggingConfig         `json:"logging"`
	Engine     engine.Config         `json:"engine"`
	Fees       pnl.Config            `json:"fees"`
	Pricing    PricingConfig         `json:"pricing"`
	Thresholds thresholds.Config     `json:"thresholds"`
	Regime     regime.DetectorConfig `json:"regime"`
	Bybit      bybit.Config          `json:"bybit"`
	Monitoring MonitoringConfig      `json:"monitoring"`
	Reporting  ReportingConfig       `json:"reporting"`

	// Parameter bundles keyed by regime name, with optional per-symbol
	// overrides. Missing regimes fall back to the built-in defaults.
	Parameters map[string]*params.Bundle            `json:"parameters,omitempty"`
	Overrides  map[string]map[string]*params.Bundle `json:"overrides,omitempty"`
}

// LoggingConfig selects log level and output format
type LoggingConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
}

// PricingConfig mirrors the price-resolution budgets in whole units
// that survive JSON editing (seconds and milliseconds, not nanoseconds)
type PricingConfig struct {
	SignalBudgetSeconds  float64 `json:"signal_budget_seconds"`
	ExitBudgetSeconds    float64 `json:"exit_budget_seconds"`
	CacheTTLMillis       int     `json:"cache_ttl_millis"`
	CandleMaxAgeSeconds  int     `json:"candle_max_age_seconds"`
	MaxConcurrentFetches int     `json:"max_concurrent_fetches"`
	FallbackThreshold    int     `json:"fallback_threshold"`
}

// MonitoringConfig configures the metrics/health HTTP server
type MonitoringConfig struct {
	Enabled    bool   `json:"enabled"`
	ListenAddr string `json:"listen_addr"`
}

// ReportingConfig configures the decision audit trail
type ReportingConfig struct {
	Dir          string `json:"dir"`
	BufferSize   int    `json:"buffer_size"`
	ExcelEnabled bool   `json:"excel_enabled"`
}

// Load reads, defaults and validates a JSON config file
func Load(configFile string) (*Config, error) {
	if !strings.ContainsAny(configFile, "/\\") {
		configFile = filepath.Join("configs", configFile)
	}
	if !strings.HasSuffix(configFile, ".json") {
		configFile += ".json"
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.setDefaults()
	config.loadCredentials()

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) setDefaults() {
	if c.EvalIntervalSeconds == 0 {
		c.EvalIntervalSeconds = 5
	}
	if c.SyncIntervalSeconds == 0 {
		c.SyncIntervalSeconds = 15
	}
	if c.KlineInterval == "" {
		c.KlineInterval = string(bybit.Interval1m)
	}
	if c.KlineLimit == 0 {
		c.KlineLimit = 300
	}
	if c.GraceWindowSeconds == 0 {
		c.GraceWindowSeconds = 30
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Engine.MinSLHoldSeconds == 0 {
		c.Engine = engine.DefaultConfig()
	}
	if c.Fees.TakerFeeRate == 0 {
		c.Fees = pnl.DefaultConfig()
	}
	if c.Thresholds.VolatilityFactors == nil {
		c.Thresholds = thresholds.DefaultConfig()
	}
	if c.Regime.SlowEMAPeriod == 0 {
		c.Regime = regime.DefaultDetectorConfig()
	}

	defaults := pricing.DefaultConfig()
	if c.Pricing.SignalBudgetSeconds == 0 {
		c.Pricing.SignalBudgetSeconds = defaults.SignalBudget.Seconds()
	}
	if c.Pricing.ExitBudgetSeconds == 0 {
		c.Pricing.ExitBudgetSeconds = defaults.ExitBudget.Seconds()
	}
	if c.Pricing.CacheTTLMillis == 0 {
		c.Pricing.CacheTTLMillis = int(defaults.CacheTTL.Milliseconds())
	}
	if c.Pricing.CandleMaxAgeSeconds == 0 {
		c.Pricing.CandleMaxAgeSeconds = int(defaults.CandleMaxAge.Seconds())
	}
	if c.Pricing.MaxConcurrentFetches == 0 {
		c.Pricing.MaxConcurrentFetches = defaults.MaxConcurrentFetches
	}
	if c.Pricing.FallbackThreshold == 0 {
		c.Pricing.FallbackThreshold = defaults.FallbackThreshold
	}

	if c.Monitoring.ListenAddr == "" {
		c.Monitoring.ListenAddr = ":9090"
	}
	if c.Reporting.Dir == "" {
		c.Reporting.Dir = "reports"
	}
	if c.Reporting.BufferSize == 0 {
		c.Reporting.BufferSize = 512
	}
}

func (c *Config) loadCredentials() {
	if c.Bybit.APIKey == "" {
		c.Bybit.APIKey = os.Getenv("BYBIT_API_KEY")
	}
	if c.Bybit.APISecret == "" {
		c.Bybit.APISecret = os.Getenv("BYBIT_API_SECRET")
	}
}

func (c *Config) validate() error {
	if len(c.Symbols) == 0 {
		return boterrors.New(boterrors.ErrorCategoryConfig, "config", "validate", "at least one symbol is required")
	}
	for name, bundle := range c.Parameters {
		if _, err := regime.Parse(name); err != nil {
			return boterrors.New(boterrors.ErrorCategoryConfig, "config", "validate",
				fmt.Sprintf("unknown regime %q in parameters", name))
		}
		if err := bundle.Validate(); err != nil {
			return fmt.Errorf("parameters[%s]: %w", name, err)
		}
	}
	for symbol, byRegime := range c.Overrides {
		for name, bundle := range byRegime {
			if _, err := regime.Parse(name); err != nil {
				return boterrors.New(boterrors.ErrorCategoryConfig, "config", "validate",
					fmt.Sprintf("unknown regime %q in overrides[%s]", name, symbol))
			}
			if err := bundle.Validate(); err != nil {
				return fmt.Errorf("overrides[%s][%s]: %w", symbol, name, err)
			}
		}
	}
	return nil
}

// EvalInterval returns the evaluation tick cadence
func (c *Config) EvalInterval() time.Duration {
	return time.Duration(c.EvalIntervalSeconds) * time.Second
}

// SyncInterval returns the position/candle refresh cadence
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

// GraceWindow returns the stop-loss grace window
func (c *Config) GraceWindow() time.Duration {
	return time.Duration(c.GraceWindowSeconds) * time.Second
}

// PricingConfig converts the JSON-friendly fields into resolver config
func (c *Config) PricingConfig() pricing.Config {
	return pricing.Config{
		SignalBudget:         time.Duration(c.Pricing.SignalBudgetSeconds * float64(time.Second)),
		ExitBudget:           time.Duration(c.Pricing.ExitBudgetSeconds * float64(time.Second)),
		CacheTTL:             time.Duration(c.Pricing.CacheTTLMillis) * time.Millisecond,
		CandleMaxAge:         time.Duration(c.Pricing.CandleMaxAgeSeconds) * time.Second,
		MaxConcurrentFetches: c.Pricing.MaxConcurrentFetches,
		FallbackThreshold:    c.Pricing.FallbackThreshold,
	}
}

// BuildResolver assembles the parameter resolver: built-in defaults,
// overlaid with configured per-regime bundles and per-symbol overrides.
func (c *Config) BuildResolver() (*params.StaticResolver, error) {
	table := params.DefaultBundles()
	for name, bundle := range c.Parameters {
		reg, err := regime.Parse(name)
		if err != nil {
			return nil, err
		}
		table[reg] = bundle
	}
	resolver := params.NewStaticResolver(table)
	for symbol, byRegime := range c.Overrides {
		for name, bundle := range byRegime {
			reg, err := regime.Parse(name)
			if err != nil {
				return nil, err
			}
			resolver.SetSymbolOverride(symbol, reg, bundle)
		}
	}
	return resolver, nil
}
