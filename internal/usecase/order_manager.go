package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_momentum_bot/internal/domain"
)

const (
	MinLeverage = 1
	MaxLeverage = 125
)

// Used when the instrument reports no quantity step.
var fallbackQuantityStep = decimal.New(1, -8)

// OrderManager turns trading intents into market orders. It keeps no state of
// its own; live position state is always re-read from the exchange.
type OrderManager struct {
	exchange domain.Exchange
}

func NewOrderManager(exchange domain.Exchange) *OrderManager {
	return &OrderManager{
		exchange: exchange,
	}
}

// OpenPosition sizes a market order from notional * leverage at the current
// price, truncated down to the instrument's quantity step, and submits it.
func (m *OrderManager) OpenPosition(ctx context.Context, intent domain.PositionIntent) (*domain.OrderResult, error) {
	symbol := intent.Symbol
	if !intent.USDAmount.IsPositive() {
		return nil, domain.NewOrderError(domain.InvalidConfiguration, symbol,
			fmt.Sprintf("usd amount must be positive, got %s", intent.USDAmount), nil)
	}
	if intent.Leverage < MinLeverage {
		return nil, domain.NewOrderError(domain.InvalidLeverage, symbol,
			fmt.Sprintf("leverage must be positive, got %d", intent.Leverage), nil)
	}
	if intent.Side != domain.SideLong && intent.Side != domain.SideShort {
		return nil, domain.NewOrderError(domain.InvalidConfiguration, symbol,
			fmt.Sprintf("invalid side: %s", intent.Side), nil)
	}

	price, err := m.exchange.GetPrice(ctx, symbol)
	if err != nil {
		return nil, domain.NewOrderError(domain.PriceUnavailable, symbol, "price fetch failed", err)
	}
	if !price.IsPositive() {
		return nil, domain.NewOrderError(domain.PriceUnavailable, symbol,
			fmt.Sprintf("non-positive price %s", price), nil)
	}

	instrument, err := m.exchange.GetInstrument(ctx, symbol)
	if err != nil {
		return nil, domain.NewOrderError(domain.DataUnavailable, symbol, "instrument rules unavailable", err)
	}

	quantity := PositionQuantity(intent.USDAmount, intent.Leverage, price, instrument.QuantityStep)
	if !quantity.IsPositive() || quantity.LessThan(instrument.MinQuantity) {
		return nil, domain.NewOrderError(domain.InvalidConfiguration, symbol,
			fmt.Sprintf("quantity %s below instrument minimum %s (usd=%s leverage=%d price=%s)",
				quantity, instrument.MinQuantity, intent.USDAmount, intent.Leverage, price), nil)
	}

	return m.submit(ctx, domain.OrderRequest{
		Symbol:   symbol,
		Side:     intent.Side.OrderSide(),
		Quantity: quantity,
	})
}

// CloseAllPositions flattens the live position. It reports false when the
// position was already flat and no order was sent.
func (m *OrderManager) CloseAllPositions(ctx context.Context, symbol string) (bool, *domain.OrderResult, error) {
	qty, err := m.exchange.GetPosition(ctx, symbol)
	if err != nil {
		return false, nil, domain.NewOrderError(domain.DataUnavailable, symbol, "position fetch failed", err)
	}
	if qty.IsZero() {
		return false, nil, nil
	}

	side := domain.OrderSideSell
	if qty.IsNegative() {
		side = domain.OrderSideBuy
	}

	result, err := m.submit(ctx, domain.OrderRequest{
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty.Abs(),
		ReduceOnly: true,
	})
	if err != nil {
		return false, nil, err
	}
	return true, result, nil
}

func (m *OrderManager) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage < MinLeverage || leverage > MaxLeverage {
		return domain.NewOrderError(domain.InvalidLeverage, symbol,
			fmt.Sprintf("leverage %d outside [%d, %d]", leverage, MinLeverage, MaxLeverage), nil)
	}
	if err := m.exchange.SetLeverage(ctx, symbol, leverage); err != nil {
		return classifyExchangeError(symbol, err)
	}
	return nil
}

func (m *OrderManager) submit(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	result, err := m.exchange.PlaceMarketOrder(ctx, req)
	if err != nil {
		return nil, classifyExchangeError(req.Symbol, err)
	}
	return result, nil
}

// PositionQuantity returns floor((usd*leverage/price) / step) * step. The
// division is exact, so quantity*price never exceeds usd*leverage.
func PositionQuantity(usdAmount decimal.Decimal, leverage int, price, step decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	if !step.IsPositive() {
		step = fallbackQuantityStep
	}
	notional := usdAmount.Mul(decimal.NewFromInt(int64(leverage)))
	lots, _ := notional.QuoRem(price.Mul(step), 0)
	return lots.Mul(step)
}

// classifyExchangeError keeps already classified errors and treats the rest
// as transient transport failures.
func classifyExchangeError(symbol string, err error) error {
	var orderErr *domain.OrderError
	if errors.As(err, &orderErr) {
		return err
	}
	return domain.NewOrderError(domain.TransientExchangeError, symbol, "", err)
}
