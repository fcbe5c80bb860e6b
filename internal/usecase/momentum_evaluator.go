package usecase

import (
	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_momentum_bot/internal/domain"
)

const DefaultMinCandles = 20

var (
	DefaultLongThreshold  = decimal.RequireFromString("1.002")
	DefaultShortThreshold = decimal.RequireFromString("0.998")
)

type MomentumConfig struct {
	MinCandles     int
	LongThreshold  decimal.Decimal // last.close must exceed prev.close * LongThreshold
	ShortThreshold decimal.Decimal // last.close must be below prev.close * ShortThreshold
}

func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		MinCandles:     DefaultMinCandles,
		LongThreshold:  DefaultLongThreshold,
		ShortThreshold: DefaultShortThreshold,
	}
}

// MomentumEvaluator compares the two most recent closed candles against
// hysteresis bands. It has no side effects.
type MomentumEvaluator struct {
	config MomentumConfig
}

func NewMomentumEvaluator(config MomentumConfig) *MomentumEvaluator {
	if config.MinCandles < 2 {
		config.MinCandles = DefaultMinCandles
	}
	if !config.LongThreshold.IsPositive() {
		config.LongThreshold = DefaultLongThreshold
	}
	if !config.ShortThreshold.IsPositive() {
		config.ShortThreshold = DefaultShortThreshold
	}
	return &MomentumEvaluator{config: config}
}

func (e *MomentumEvaluator) Config() MomentumConfig {
	return e.config
}

// Evaluate expects candles ordered oldest first. Short history yields NoAction.
func (e *MomentumEvaluator) Evaluate(candles []domain.Candle) domain.TradingSignal {
	if len(candles) < e.config.MinCandles {
		return domain.NoAction
	}

	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	// Strict comparisons: a close exactly on the band is not a signal.
	if last.Close.GreaterThan(prev.Close.Mul(e.config.LongThreshold)) {
		return domain.OpenLong
	}
	if last.Close.LessThan(prev.Close.Mul(e.config.ShortThreshold)) {
		return domain.OpenShort
	}
	return domain.NoAction
}
