// Package config loads bot settings from a YAML file with credential
// overrides taken from the environment or a .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_momentum_bot/internal/usecase"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

const (
	EnvAPIKey    = "BINANCE_API_KEY"
	EnvAPISecret = "BINANCE_API_SECRET"
	EnvTestnet   = "BINANCE_TESTNET"
)

type Config struct {
	Exchange ExchangeConfig `yaml:"exchange"`
	Strategy StrategyConfig `yaml:"strategy"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
}

type ExchangeConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
}

type StrategyConfig struct {
	Symbol         string          `yaml:"symbol" validate:"required,uppercase"`
	USDAmount      decimal.Decimal `yaml:"usd_amount"`
	Leverage       int             `yaml:"leverage" validate:"min=1,max=125"`
	Interval       time.Duration   `yaml:"interval" validate:"gt=0"`
	CandleInterval time.Duration   `yaml:"candle_interval" validate:"gt=0"`
	CandleLimit    int             `yaml:"candle_limit" validate:"min=2,max=1500"`
	MinCandles     int             `yaml:"min_candles" validate:"min=2"`
	LongThreshold  decimal.Decimal `yaml:"long_threshold"`
	ShortThreshold decimal.Decimal `yaml:"short_threshold"`
	Autostart      bool            `yaml:"autostart"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	File  string `yaml:"file"`
}

type ServerConfig struct {
	Port int `yaml:"port" validate:"min=0,max=65535"`
}

func Default() *Config {
	return &Config{
		Exchange: ExchangeConfig{Testnet: true},
		Strategy: StrategyConfig{
			Symbol:         "BTCUSDT",
			USDAmount:      decimal.NewFromInt(10),
			Leverage:       1,
			Interval:       usecase.DefaultEvaluationInterval,
			CandleInterval: usecase.DefaultCandleInterval,
			CandleLimit:    usecase.DefaultCandleLimit,
			MinCandles:     usecase.DefaultMinCandles,
			LongThreshold:  usecase.DefaultLongThreshold,
			ShortThreshold: usecase.DefaultShortThreshold,
		},
		Logging: LoggingConfig{Level: "info"},
		Server:  ServerConfig{Port: 8080},
	}
}

// Load reads path over the defaults (a missing file yields the defaults),
// then applies credential overrides from the process environment, falling
// back to the given .env files.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(envFiles); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(envFiles []string) error {
	dotenv := map[string]string{}
	for _, file := range envFiles {
		values, err := godotenv.Read(file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		for k, v := range values {
			if _, seen := dotenv[k]; !seen {
				dotenv[k] = v
			}
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if v, ok := lookup(EnvAPIKey); ok {
		c.Exchange.APIKey = v
	}
	if v, ok := lookup(EnvAPISecret); ok {
		c.Exchange.APISecret = v
	}
	if v, ok := lookup(EnvTestnet); ok {
		testnet, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTestnet, err)
		}
		c.Exchange.Testnet = testnet
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	s := c.Strategy
	// The forming candle is dropped, so one fetch yields CandleLimit-1 closed candles.
	if s.CandleLimit-1 < s.MinCandles {
		return fmt.Errorf("invalid config: strategy.candle_limit (%d) must exceed strategy.min_candles (%d)",
			s.CandleLimit, s.MinCandles)
	}
	if !s.USDAmount.IsPositive() {
		return fmt.Errorf("invalid config: strategy.usd_amount must be positive, got %s", s.USDAmount)
	}
	if !s.LongThreshold.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("invalid config: strategy.long_threshold must be above 1, got %s", s.LongThreshold)
	}
	if !s.ShortThreshold.IsPositive() || !s.ShortThreshold.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("invalid config: strategy.short_threshold must be in (0, 1), got %s", s.ShortThreshold)
	}
	return nil
}

func (s StrategyConfig) RunnerConfig() usecase.StrategyConfig {
	return usecase.StrategyConfig{
		Symbol:         s.Symbol,
		USDAmount:      s.USDAmount,
		Leverage:       s.Leverage,
		Interval:       s.Interval,
		CandleInterval: s.CandleInterval,
		CandleLimit:    s.CandleLimit,
	}
}

func (s StrategyConfig) MomentumConfig() usecase.MomentumConfig {
	return usecase.MomentumConfig{
		MinCandles:     s.MinCandles,
		LongThreshold:  s.LongThreshold,
		ShortThreshold: s.ShortThreshold,
	}
}

// Save writes cfg to path, creating the directory if needed. The file holds
// credentials, so it is written owner-only.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}
