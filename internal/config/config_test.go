package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var overrideVars = []string{
	"DATA_DIR", "SQLITE_PATH", "ALPACA_API_KEY", "ALPACA_API_SECRET", "ALPACA_DATA_URL",
	"ALPACA_FEED", "LOG_LEVEL", "LOG_FORMAT", "SESSION_ZONE", "APCA_API_KEY_ID",
	"APCA_API_SECRET_KEY", "INITIAL_CAPITAL", "COMMISSION", "SLIPPAGE",
	"MAX_POSITION_RISK", "GRPC_PORT",
}

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range overrideVars {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candlebt.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/candlebt/data"
  sqlite_path: "/tmp/candlebt/cache.db"
  cache_ttl: 12h
server:
  host: "0.0.0.0"
  grpc_port: 9191
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  data_url: "https://data.alpaca.markets"
  feed: "iex"
logging:
  level: "debug"
  format: "text"
backtest:
  initial_capital: 250000
  commission: 0.001
  max_position_risk: 0.05
strategy:
  trend_window: 4
  session_hour: 9
  session_minute: 30
  strict_trend_only: true
`)

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/candlebt/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/candlebt/data")
	}
	if cfg.Storage.CacheTTL != 12*time.Hour {
		t.Errorf("Storage.CacheTTL = %v, want 12h", cfg.Storage.CacheTTL)
	}

	// -- Server --
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.GRPCPort != 9191 {
		t.Errorf("Server = %+v, want 0.0.0.0:9191", cfg.Server)
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" || cfg.Alpaca.Feed != "iex" {
		t.Errorf("Alpaca = %+v", cfg.Alpaca)
	}
	if cfg.Alpaca.RateLimitPerMin != 200 {
		t.Errorf("Alpaca.RateLimitPerMin = %d, want default 200", cfg.Alpaca.RateLimitPerMin)
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want debug/text", cfg.Logging)
	}

	// -- Backtest: unset keys keep their defaults --
	if cfg.Backtest.InitialCapital != 250000 {
		t.Errorf("Backtest.InitialCapital = %v, want 250000", cfg.Backtest.InitialCapital)
	}
	if cfg.Backtest.Slippage != 0.0001 {
		t.Errorf("Backtest.Slippage = %v, want default 0.0001", cfg.Backtest.Slippage)
	}

	// -- Strategy --
	p := cfg.StrategyParams()
	if p.TrendWindow != 4 || p.SessionHour != 9 || p.SessionMinute != 30 || !p.StrictTrendOnly {
		t.Errorf("StrategyParams() = %+v", p)
	}
	if p.RiskReward != 1.5 || p.SessionRiskReward != 8 {
		t.Errorf("risk/reward = %v/%v, want defaults 1.5/8", p.RiskReward, p.SessionRiskReward)
	}

	o := cfg.EngineOptions()
	if o.InitialCapital != 250000 || o.Commission != 0.001 || o.MaxPositionRisk != 0.05 {
		t.Errorf("EngineOptions() = %+v", o)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("INITIAL_CAPITAL", "100000")
	t.Setenv("GRPC_PORT", "7070")

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Backtest.InitialCapital != 100000 || cfg.Server.GRPCPort != 7070 {
		t.Errorf("capital/port = %v/%d, want 100000/7070", cfg.Backtest.InitialCapital, cfg.Server.GRPCPort)
	}

	// The SDK's own variable wins over ALPACA_API_KEY.
	t.Setenv("APCA_API_KEY_ID", "sdk-key")
	cfg, err = Load(path, false)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "sdk-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "sdk-key")
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	if _, err := Load(missing, false); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing, false) error = %v, want ErrNotExist", err)
	}

	cfg, err := Load(missing, true)
	if err != nil {
		t.Fatalf("Load(missing, true) returned error: %v", err)
	}
	def := Default()
	if cfg.Backtest != def.Backtest || cfg.Strategy != def.Strategy {
		t.Errorf("Load(missing, true) = %+v, want defaults", cfg)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	missing := filepath.Join(dir, "missing.yaml")

	if _, err := Load(missing, true); err != nil {
		t.Fatalf("Load without .env returned error: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("ALPACA_API_KEY=\"unterminated\n"), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	_, err := Load(missing, true)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load with malformed .env error = %v, want parse error", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{"negative capital", "backtest:\n  initial_capital: -1\n", nil},
		{"commission of 100%", "backtest:\n  commission: 1\n", nil},
		{"zero window", "strategy:\n  trend_window: 0\n", nil},
		{"zero risk reward", "strategy:\n  risk_reward: 0\n", nil},
		{"hour 24", "strategy:\n  session_hour: 24\n", nil},
		{"unparsable env", "", map[string]string{"SLIPPAGE": "lots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(writeConfig(t, tt.yaml), false); !errors.Is(err, ErrInvalid) {
				t.Errorf("Load() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Backtest.InitialCapital != 500000 || cfg.Backtest.MaxPositionRisk != 0.10 {
		t.Errorf("Backtest defaults = %+v", cfg.Backtest)
	}
	if cfg.Strategy.SessionZone != "America/New_York" || cfg.Strategy.SessionHour != 8 {
		t.Errorf("Strategy defaults = %+v", cfg.Strategy)
	}
}

func TestPath(t *testing.T) {
	t.Setenv("CANDLEBT_CONFIG", "")
	if got := Path(); got != DefaultPath {
		t.Errorf("Path() = %q, want %q", got, DefaultPath)
	}
	t.Setenv("CANDLEBT_CONFIG", "/etc/candlebt.yaml")
	if got := Path(); got != "/etc/candlebt.yaml" {
		t.Errorf("Path() = %q, want /etc/candlebt.yaml", got)
	}
}
