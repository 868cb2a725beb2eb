// Package config loads the riskos configuration file and its environment
// overrides, and converts it into the settings each package takes.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/riskos/engine"
	"github.com/rustyeddy/riskos/httpapi"
	"github.com/rustyeddy/riskos/market"
	"github.com/rustyeddy/riskos/portfolio"
	"github.com/rustyeddy/riskos/regime"
	"github.com/rustyeddy/riskos/risk"
	"github.com/rustyeddy/riskos/store"
)

// Config is the complete riskos configuration.
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	Risk    RiskConfig    `json:"risk" yaml:"risk"`
	Regime  RegimeConfig  `json:"regime" yaml:"regime"`
	Monitor MonitorConfig `json:"monitor" yaml:"monitor"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Market  MarketConfig  `json:"market" yaml:"market"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// AccountConfig seeds the account the first time the database is created.
type AccountConfig struct {
	SeedEquity float64 `json:"seed_equity" yaml:"seed_equity"`
	Currency   string  `json:"currency" yaml:"currency"`
}

type RiskConfig struct {
	BaseRiskPct    float64 `json:"base_risk_pct" yaml:"base_risk_pct"`
	MaxPositionPct float64 `json:"max_position_pct" yaml:"max_position_pct"`
	// MergePolicy is "reset" or "blend".
	MergePolicy string `json:"merge_policy" yaml:"merge_policy"`
}

type RegimeConfig struct {
	Default            string   `json:"default" yaml:"default"`
	Proxies            []string `json:"proxies" yaml:"proxies"`
	MAPeriod           int      `json:"ma_period" yaml:"ma_period"`
	HistoryDays        int      `json:"history_days" yaml:"history_days"`
	FeedbackWindow     int      `json:"feedback_window" yaml:"feedback_window"`
	FeedbackThreshold  float64  `json:"feedback_threshold" yaml:"feedback_threshold"`
	ChecklistThreshold int      `json:"checklist_threshold" yaml:"checklist_threshold"`
}

type MonitorConfig struct {
	SectorLimit int `json:"sector_limit" yaml:"sector_limit"`
	HoldDays    int `json:"hold_days" yaml:"hold_days"`
}

type StoreConfig struct {
	DBPath      string `json:"db_path" yaml:"db_path"`
	BusyTimeout string `json:"busy_timeout" yaml:"busy_timeout"` // e.g. "5s"
}

type MarketConfig struct {
	BaseURL         string  `json:"base_url" yaml:"base_url"`
	Timeout         string  `json:"timeout" yaml:"timeout"`
	RPS             float64 `json:"rps" yaml:"rps"`
	Burst           int     `json:"burst" yaml:"burst"`
	CacheTTL        string  `json:"cache_ttl" yaml:"cache_ttl"`
	RedisAddr       string  `json:"redis_addr" yaml:"redis_addr"`
	BreakerFailures uint32  `json:"breaker_failures" yaml:"breaker_failures"`
	BreakerTimeout  string  `json:"breaker_timeout" yaml:"breaker_timeout"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

// duration parses a config duration; empty means zero.
func duration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// LoadFromFile loads configuration from a file (YAML first, JSON fallback).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load reads .env if present, then path (defaults when path is empty), then
// applies RISKOS_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv overlays the environment onto c.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"RISKOS_DB_PATH", &c.Store.DBPath},
		{"RISKOS_LOG_LEVEL", &c.Log.Level},
		{"RISKOS_SERVER_ADDR", &c.Server.Addr},
		{"RISKOS_MARKET_BASE_URL", &c.Market.BaseURL},
		{"RISKOS_REDIS_ADDR", &c.Market.RedisAddr},
		{"RISKOS_REGIME_DEFAULT", &c.Regime.Default},
		{"RISKOS_MERGE_POLICY", &c.Risk.MergePolicy},
	}
	for _, o := range overrides {
		if v, ok := lookup(o.key); ok && strings.TrimSpace(v) != "" {
			*o.dst = strings.TrimSpace(v)
		}
	}
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.SeedEquity <= 0 {
		return fmt.Errorf("account.seed_equity must be positive")
	}
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if err := c.policy().Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if _, err := portfolio.PolicyByName(c.Risk.MergePolicy); err != nil {
		return fmt.Errorf("risk.merge_policy: %w", err)
	}

	r, err := regime.ParseRegime(c.Regime.Default)
	if err != nil {
		return fmt.Errorf("regime.default: %w", err)
	}
	if !r.Tradable() {
		return fmt.Errorf("regime.default must be GREEN, YELLOW or RED, got %s", r)
	}
	if len(c.Regime.Proxies) == 0 {
		return fmt.Errorf("regime.proxies must name at least one symbol")
	}
	if c.Regime.MAPeriod <= 0 {
		return fmt.Errorf("regime.ma_period must be positive")
	}
	if need := market.CalendarDays(c.Regime.MAPeriod); c.Regime.HistoryDays < need {
		return fmt.Errorf("regime.history_days is calendar days; ma_period %d needs at least %d, got %d",
			c.Regime.MAPeriod, need, c.Regime.HistoryDays)
	}
	if c.Regime.FeedbackWindow < 0 {
		return fmt.Errorf("regime.feedback_window must not be negative")
	}
	if c.Regime.FeedbackThreshold < 0 || c.Regime.FeedbackThreshold > 1 {
		return fmt.Errorf("regime.feedback_threshold must be between 0 and 1")
	}
	if c.Regime.ChecklistThreshold < 0 {
		return fmt.Errorf("regime.checklist_threshold must not be negative")
	}

	if c.Monitor.SectorLimit < 0 || c.Monitor.HoldDays < 0 {
		return fmt.Errorf("monitor limits must not be negative")
	}
	if c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path is required")
	}

	for name, v := range map[string]string{
		"store.busy_timeout":     c.Store.BusyTimeout,
		"market.timeout":         c.Market.Timeout,
		"market.cache_ttl":       c.Market.CacheTTL,
		"market.breaker_timeout": c.Market.BreakerTimeout,
	} {
		d, err := duration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.Market.RPS <= 0 || c.Market.Burst <= 0 {
		return fmt.Errorf("market.rps and market.burst must be positive")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			SeedEquity: 10000,
			Currency:   "USD",
		},
		Risk: RiskConfig{
			BaseRiskPct:    0.01,
			MaxPositionPct: 0.20,
			MergePolicy:    "reset",
		},
		Regime: RegimeConfig{
			Default:            "GREEN",
			Proxies:            []string{"SPY", "RSP"},
			MAPeriod:           20,
			HistoryDays:        60,
			FeedbackWindow:     5,
			FeedbackThreshold:  0.20,
			ChecklistThreshold: 3,
		},
		Monitor: MonitorConfig{
			SectorLimit: 3,
			HoldDays:    5,
		},
		Store: StoreConfig{
			DBPath:      "./riskos.db",
			BusyTimeout: "5s",
		},
		Market: MarketConfig{
			BaseURL:         market.YahooURL,
			Timeout:         "10s",
			RPS:             2,
			Burst:           4,
			CacheTTL:        "5m",
			BreakerFailures: 3,
			BreakerTimeout:  "30s",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

func (c *Config) policy() risk.Policy {
	return risk.Policy{BaseRiskPct: c.Risk.BaseRiskPct, MaxPositionPct: c.Risk.MaxPositionPct}
}

// Engine converts c into engine settings. c must have been validated.
func (c *Config) Engine() engine.Config {
	merge, _ := portfolio.PolicyByName(c.Risk.MergePolicy)
	def, _ := regime.ParseRegime(c.Regime.Default)
	return engine.Config{
		Policy:         c.policy(),
		Merge:          merge,
		DefaultRegime:  def,
		Review:         portfolio.ReviewRules{HoldDays: c.Monitor.HoldDays},
		SectorLimit:    c.Monitor.SectorLimit,
		FeedbackWindow: c.Regime.FeedbackWindow,
		Proxies:        c.Regime.Proxies,
		MAPeriod:       c.Regime.MAPeriod,
		HistoryDays:    c.Regime.HistoryDays,
		Thresholds: regime.Thresholds{
			WinRateFloor:       c.Regime.FeedbackThreshold,
			ChecklistDowngrade: c.Regime.ChecklistThreshold,
		},
	}
}

func (c *Config) StoreOptions() store.Options {
	busy, _ := duration(c.Store.BusyTimeout)
	return store.Options{BusyTimeout: busy, SeedEquity: c.Account.SeedEquity}
}

func (c *Config) Guard() market.GuardConfig {
	open, _ := duration(c.Market.BreakerTimeout)
	return market.GuardConfig{
		Name:        "yahoo",
		RPS:         c.Market.RPS,
		Burst:       c.Market.Burst,
		MaxFailures: c.Market.BreakerFailures,
		OpenTimeout: open,
	}
}

func (c *Config) MarketTimeout() time.Duration {
	d, _ := duration(c.Market.Timeout)
	return d
}

func (c *Config) CacheTTL() time.Duration {
	d, _ := duration(c.Market.CacheTTL)
	return d
}

func (c *Config) HTTP() httpapi.Config {
	h := httpapi.DefaultConfig()
	h.Addr = c.Server.Addr
	return h
}
