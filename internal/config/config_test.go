package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvAPIKey, EnvAPISecret, EnvTestnet} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearCredentialEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.True(t, cfg.Exchange.Testnet)
	assert.Equal(t, "BTCUSDT", cfg.Strategy.Symbol)
	assert.True(t, decimal.NewFromInt(10).Equal(cfg.Strategy.USDAmount))
	assert.Equal(t, 1, cfg.Strategy.Leverage)
	assert.Equal(t, 15*time.Second, cfg.Strategy.Interval)
	assert.Equal(t, 3*time.Minute, cfg.Strategy.CandleInterval)
	assert.Equal(t, 50, cfg.Strategy.CandleLimit)
	assert.Equal(t, 20, cfg.Strategy.MinCandles)
	assert.Equal(t, "1.002", cfg.Strategy.LongThreshold.String())
	assert.Equal(t, "0.998", cfg.Strategy.ShortThreshold.String())
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearCredentialEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
exchange:
  api_key: file-key
  testnet: false
strategy:
  symbol: ETHUSDT
  usd_amount: "25.5"
  leverage: 5
  interval: 30s
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.Exchange.APIKey)
	assert.False(t, cfg.Exchange.Testnet)
	assert.Equal(t, "ETHUSDT", cfg.Strategy.Symbol)
	assert.Equal(t, "25.5", cfg.Strategy.USDAmount.String())
	assert.Equal(t, 5, cfg.Strategy.Leverage)
	assert.Equal(t, 30*time.Second, cfg.Strategy.Interval)
	assert.Equal(t, 3*time.Minute, cfg.Strategy.CandleInterval, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvironmentWinsOverDotenvAndFile(t *testing.T) {
	clearCredentialEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "exchange:\n  api_key: file-key\n  api_secret: file-secret\n")
	envFile := writeFile(t, dir, ".env", "BINANCE_API_KEY=dotenv-key\nBINANCE_API_SECRET=dotenv-secret\nBINANCE_TESTNET=false\n")
	t.Setenv(EnvAPIKey, "process-key")

	cfg, err := Load(path, envFile)
	require.NoError(t, err)

	assert.Equal(t, "process-key", cfg.Exchange.APIKey)
	assert.Equal(t, "dotenv-secret", cfg.Exchange.APISecret)
	assert.False(t, cfg.Exchange.Testnet)
}

func TestLoad_MissingDotenvIgnored(t *testing.T) {
	clearCredentialEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
}

func TestLoad_BadTestnetValue(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv(EnvTestnet, "maybe")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, EnvTestnet)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty symbol", func(c *Config) { c.Strategy.Symbol = "" }, false},
		{"lowercase symbol", func(c *Config) { c.Strategy.Symbol = "btcusdt" }, false},
		{"zero leverage", func(c *Config) { c.Strategy.Leverage = 0 }, false},
		{"leverage too high", func(c *Config) { c.Strategy.Leverage = 126 }, false},
		{"zero usd", func(c *Config) { c.Strategy.USDAmount = decimal.Zero }, false},
		{"zero interval", func(c *Config) { c.Strategy.Interval = 0 }, false},
		{"long threshold at one", func(c *Config) { c.Strategy.LongThreshold = decimal.NewFromInt(1) }, false},
		{"short threshold at one", func(c *Config) { c.Strategy.ShortThreshold = decimal.NewFromInt(1) }, false},
		{"short threshold zero", func(c *Config) { c.Strategy.ShortThreshold = decimal.Zero }, false},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }, false},
		{"empty log level", func(c *Config) { c.Logging.Level = "" }, true},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, false},
		{"candle limit equals min candles", func(c *Config) { c.Strategy.CandleLimit, c.Strategy.MinCandles = 20, 20 }, false},
		{"candle limit one above min candles", func(c *Config) { c.Strategy.CandleLimit, c.Strategy.MinCandles = 21, 20 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	clearCredentialEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Strategy.Symbol = "SOLUSDT"
	cfg.Strategy.USDAmount = decimal.RequireFromString("12.5")
	cfg.Strategy.CandleInterval = 5 * time.Minute
	require.NoError(t, Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "SOLUSDT", loaded.Strategy.Symbol)
	assert.Equal(t, "12.5", loaded.Strategy.USDAmount.String())
	assert.Equal(t, 5*time.Minute, loaded.Strategy.CandleInterval)
}

func TestStrategyConversions(t *testing.T) {
	s := Default().Strategy

	rc := s.RunnerConfig()
	assert.Equal(t, s.Symbol, rc.Symbol)
	assert.Equal(t, s.Leverage, rc.Leverage)
	assert.Equal(t, s.CandleLimit, rc.CandleLimit)

	mc := s.MomentumConfig()
	assert.Equal(t, s.MinCandles, mc.MinCandles)
	assert.True(t, s.LongThreshold.Equal(mc.LongThreshold))
}
