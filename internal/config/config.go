package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"candlebt/internal/engine"
	"candlebt/internal/strategy/builtins"
)

// ErrInvalid is returned when a configuration value is out of range.
var ErrInvalid = errors.New("invalid configuration")

// DefaultPath is the config file used when CANDLEBT_CONFIG is unset.
const DefaultPath = "config/candlebt.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for candlebt.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Server   Server   `yaml:"server"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Logging  Logging  `yaml:"logging"`
	Backtest Backtest `yaml:"backtest"`
	Strategy Strategy `yaml:"strategy"`
}

// Storage holds paths for the bar archive and the fetch cache.
type Storage struct {
	DataDir    string        `yaml:"data_dir"`
	SQLitePath string        `yaml:"sqlite_path"`
	CacheTTL   time.Duration `yaml:"cache_ttl"` // 0 keeps cached fetches forever
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	DataURL         string `yaml:"data_url"`
	Feed            string `yaml:"feed"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Backtest holds the simulated account settings.
type Backtest struct {
	InitialCapital  float64 `yaml:"initial_capital"`
	Commission      float64 `yaml:"commission"`
	Slippage        float64 `yaml:"slippage"`
	MaxPositionRisk float64 `yaml:"max_position_risk"`
	Concurrency     int     `yaml:"concurrency"` // parallel runs across symbols
}

// Strategy holds the signal generator parameters.
type Strategy struct {
	TrendWindow       int     `yaml:"trend_window"`
	RiskReward        float64 `yaml:"risk_reward"`
	SessionRiskReward float64 `yaml:"session_risk_reward"`
	SessionHour       int     `yaml:"session_hour"`
	SessionMinute     int     `yaml:"session_minute"`
	SessionZone       string  `yaml:"session_zone"`
	StrictTrendOnly   bool    `yaml:"strict_trend_only"`
}

// Default returns the built-in configuration.
func Default() *Config {
	opts := engine.DefaultOptions()
	params := builtins.DefaultParams()
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/cache.db",
		},
		Server: Server{
			Host:     "127.0.0.1",
			GRPCPort: 9090,
		},
		Alpaca: Alpaca{
			Feed:            "sip",
			RateLimitPerMin: 200,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Backtest: Backtest{
			InitialCapital:  opts.InitialCapital,
			Commission:      opts.Commission,
			Slippage:        opts.Slippage,
			MaxPositionRisk: opts.MaxPositionRisk,
			Concurrency:     4,
		},
		Strategy: Strategy{
			TrendWindow:       params.TrendWindow,
			RiskReward:        params.RiskReward,
			SessionRiskReward: params.SessionRiskReward,
			SessionHour:       params.SessionHour,
			SessionMinute:     params.SessionMinute,
			SessionZone:       params.SessionZone,
			StrictTrendOnly:   params.StrictTrendOnly,
		},
	}
}

// EngineOptions returns the account settings for engine.NewEngine.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		InitialCapital:  c.Backtest.InitialCapital,
		Commission:      c.Backtest.Commission,
		Slippage:        c.Backtest.Slippage,
		MaxPositionRisk: c.Backtest.MaxPositionRisk,
	}
}

// StrategyParams returns the parameters for builtins.RegisterAll.
func (c *Config) StrategyParams() builtins.Params {
	s := c.Strategy
	return builtins.Params{
		TrendWindow:       s.TrendWindow,
		RiskReward:        s.RiskReward,
		SessionRiskReward: s.SessionRiskReward,
		SessionHour:       s.SessionHour,
		SessionMinute:     s.SessionMinute,
		SessionZone:       s.SessionZone,
		StrictTrendOnly:   s.StrictTrendOnly,
	}
}

// Validate reports the first out-of-range value, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	b, s := c.Backtest, c.Strategy
	switch {
	case !(b.InitialCapital > 0):
		return fmt.Errorf("%w: backtest.initial_capital must be > 0", ErrInvalid)
	case b.Commission < 0 || b.Commission >= 1:
		return fmt.Errorf("%w: backtest.commission must be in [0, 1)", ErrInvalid)
	case b.Slippage < 0 || b.Slippage >= 1:
		return fmt.Errorf("%w: backtest.slippage must be in [0, 1)", ErrInvalid)
	case !(b.MaxPositionRisk > 0) || b.MaxPositionRisk > 1:
		return fmt.Errorf("%w: backtest.max_position_risk must be in (0, 1]", ErrInvalid)
	case s.TrendWindow < 1:
		return fmt.Errorf("%w: strategy.trend_window must be >= 1", ErrInvalid)
	case !(s.RiskReward > 0) || !(s.SessionRiskReward > 0):
		return fmt.Errorf("%w: risk/reward ratios must be > 0", ErrInvalid)
	case s.SessionHour < 0 || s.SessionHour > 23:
		return fmt.Errorf("%w: strategy.session_hour must be in 0..23", ErrInvalid)
	case s.SessionMinute < 0 || s.SessionMinute > 59:
		return fmt.Errorf("%w: strategy.session_minute must be in 0..59", ErrInvalid)
	case c.Storage.CacheTTL < 0:
		return fmt.Errorf("%w: storage.cache_ttl must be >= 0", ErrInvalid)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns the config file path from CANDLEBT_CONFIG, or DefaultPath.
func Path() string {
	if v := os.Getenv("CANDLEBT_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at path over Default(), loads a
// .env file from the working directory if present, applies environment
// variable overrides and validates the result. A missing file is not an
// error when allowMissing is set.
func Load(path string, allowMissing bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case allowMissing && errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	// A missing .env file is fine; a malformed one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	strs := []struct {
		env string
		dst *string
	}{
		{"DATA_DIR", &cfg.Storage.DataDir},
		{"SQLITE_PATH", &cfg.Storage.SQLitePath},
		{"ALPACA_API_KEY", &cfg.Alpaca.APIKey},
		{"ALPACA_API_SECRET", &cfg.Alpaca.APISecret},
		{"ALPACA_DATA_URL", &cfg.Alpaca.DataURL},
		{"ALPACA_FEED", &cfg.Alpaca.Feed},
		{"LOG_LEVEL", &cfg.Logging.Level},
		{"LOG_FORMAT", &cfg.Logging.Format},
		{"SESSION_ZONE", &cfg.Strategy.SessionZone},
		// Standard Alpaca env vars (highest priority, canonical names used by SDK).
		{"APCA_API_KEY_ID", &cfg.Alpaca.APIKey},
		{"APCA_API_SECRET_KEY", &cfg.Alpaca.APISecret},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}

	floats := []struct {
		env string
		dst *float64
	}{
		{"INITIAL_CAPITAL", &cfg.Backtest.InitialCapital},
		{"COMMISSION", &cfg.Backtest.Commission},
		{"SLIPPAGE", &cfg.Backtest.Slippage},
		{"MAX_POSITION_RISK", &cfg.Backtest.MaxPositionRisk},
	}
	for _, f := range floats {
		v := strings.TrimSpace(os.Getenv(f.env))
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, f.env, v, err)
		}
		*f.dst = n
	}

	if v := os.Getenv("GRPC_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: GRPC_PORT=%q: %v", ErrInvalid, v, err)
		}
		cfg.Server.GRPCPort = n
	}
	return nil
}
