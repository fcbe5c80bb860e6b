package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Exchange defines the interface for interacting with a derivatives exchange.
// It is shared between the strategy runner and the manual order surface, so
// implementations must be safe for concurrent use.
type Exchange interface {
	GetCandles(ctx context.Context, symbol string, interval time.Duration, limit int) ([]Candle, error)
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	// GetPosition returns the signed position quantity: positive long, negative short, zero flat.
	GetPosition(ctx context.Context, symbol string) (decimal.Decimal, error)
	PlaceMarketOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	GetInstrument(ctx context.Context, symbol string) (*Instrument, error)
	GetAccountInfo(ctx context.Context) (*AccountInfo, error)
	CheckConnection(ctx context.Context) (bool, string)
}

type Candle struct {
	OpenTime  time.Time       `json:"open_time"`
	CloseTime time.Time       `json:"close_time"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}
