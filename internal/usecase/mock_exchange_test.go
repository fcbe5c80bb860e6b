package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_momentum_bot/internal/domain"
)

// MockExchange is a concurrency-safe fake of domain.Exchange.
type MockExchange struct {
	mu sync.Mutex

	Candles       []domain.Candle
	CandleErrs    []error // consumed one per GetCandles call before Candles are returned
	CandleCalls   int
	CandleGate    chan struct{} // when set, GetCandles waits for a value
	CandleEntered chan struct{}

	Price    decimal.Decimal
	PriceErr error

	Position    decimal.Decimal
	PositionErr error

	Instrument domain.Instrument

	Orders   []domain.OrderRequest
	OrderErr error

	Leverage      int
	LeverageErr   error
	LeverageCalls int
}

func NewMockExchange() *MockExchange {
	return &MockExchange{
		Price: decimal.NewFromInt(50000),
		Instrument: domain.Instrument{
			Symbol:       "BTCUSDT",
			QuantityStep: decimal.RequireFromString("0.001"),
			MinQuantity:  decimal.RequireFromString("0.001"),
		},
	}
}

func (m *MockExchange) GetCandles(ctx context.Context, symbol string, interval time.Duration, limit int) ([]domain.Candle, error) {
	m.mu.Lock()
	m.CandleCalls++
	gate, entered := m.CandleGate, m.CandleEntered
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.CandleErrs) > 0 {
		err := m.CandleErrs[0]
		m.CandleErrs = m.CandleErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	out := make([]domain.Candle, len(m.Candles))
	copy(out, m.Candles)
	return out, nil
}

func (m *MockExchange) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Price, m.PriceErr
}

func (m *MockExchange) GetPosition(ctx context.Context, symbol string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Position, m.PositionErr
}

func (m *MockExchange) PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OrderErr != nil {
		return nil, m.OrderErr
	}
	m.Orders = append(m.Orders, req)
	return &domain.OrderResult{
		OrderID:  fmt.Sprintf("mock-%d", len(m.Orders)),
		Symbol:   req.Symbol,
		Side:     req.Side,
		Quantity: req.Quantity,
		Status:   "FILLED",
	}, nil
}

func (m *MockExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LeverageCalls++
	if m.LeverageErr != nil {
		return m.LeverageErr
	}
	m.Leverage = leverage
	return nil
}

func (m *MockExchange) GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst := m.Instrument
	return &inst, nil
}

func (m *MockExchange) GetAccountInfo(ctx context.Context) (*domain.AccountInfo, error) {
	return &domain.AccountInfo{}, nil
}

func (m *MockExchange) CheckConnection(ctx context.Context) (bool, string) {
	return true, ""
}

func (m *MockExchange) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Orders)
}

func (m *MockExchange) CandleCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CandleCalls
}

// candlesWithCloses builds a flat history of n candles ending in prev, last.
func candlesWithCloses(n int, prev, last string) []domain.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]domain.Candle, n)
	for i := range candles {
		price := decimal.RequireFromString(prev)
		if i == n-1 {
			price = decimal.RequireFromString(last)
		}
		candles[i] = domain.Candle{
			OpenTime:  start.Add(time.Duration(i) * 3 * time.Minute),
			CloseTime: start.Add(time.Duration(i+1)*3*time.Minute - time.Millisecond),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
		}
	}
	return candles
}
