package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// OrderSide returns the order side that opens a position in this direction.
func (s Side) OrderSide() OrderSide {
	if s == SideShort {
		return OrderSideSell
	}
	return OrderSideBuy
}

type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// PositionIntent is built per action and never persisted.
type PositionIntent struct {
	Symbol    string
	USDAmount decimal.Decimal
	Leverage  int
	Side      Side
}

type OrderRequest struct {
	Symbol     string
	Side       OrderSide
	Quantity   decimal.Decimal
	ReduceOnly bool
}

// OrderResult represents a market order accepted by the exchange.
type OrderResult struct {
	OrderID      string          `json:"order_id"`
	Symbol       string          `json:"symbol"`
	Side         OrderSide       `json:"side"`
	Quantity     decimal.Decimal `json:"quantity"`
	ExecutedQty  decimal.Decimal `json:"executed_qty"`
	AveragePrice decimal.Decimal `json:"average_price"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}
