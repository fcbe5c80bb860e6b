package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_momentum_bot/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var klineIntervals = map[time.Duration]string{
	time.Minute:      "1m",
	3 * time.Minute:  "3m",
	5 * time.Minute:  "5m",
	15 * time.Minute: "15m",
	30 * time.Minute: "30m",
	time.Hour:        "1h",
	2 * time.Hour:    "2h",
	4 * time.Hour:    "4h",
	6 * time.Hour:    "6h",
	8 * time.Hour:    "8h",
	12 * time.Hour:   "12h",
	24 * time.Hour:   "1d",
}

// BinanceAdapter implements domain.Exchange on top of Binance USD-M futures.
type BinanceAdapter struct {
	client  *futures.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	hasKeys bool
	timeNow func() time.Time

	mu          sync.Mutex
	instruments map[string]*domain.Instrument
}

func NewBinanceAdapter(apiKey, apiSecret string, testnet bool, logger *zap.Logger) *BinanceAdapter {
	// The endpoint is picked from this package flag at client construction.
	futures.UseTestnet = testnet
	client := futures.NewClient(apiKey, apiSecret)
	client.HTTPClient = &http.Client{Timeout: 10 * time.Second}

	return newBinanceAdapter(client, logger)
}

func newBinanceAdapter(client *futures.Client, logger *zap.Logger) *BinanceAdapter {
	return &BinanceAdapter{
		client:      client,
		limiter:     rate.NewLimiter(rate.Limit(10), 20),
		logger:      logger,
		hasKeys:     client.APIKey != "" && client.SecretKey != "",
		timeNow:     time.Now,
		instruments: make(map[string]*domain.Instrument),
	}
}

// GetCandles returns closed candles only, oldest first.
func (a *BinanceAdapter) GetCandles(ctx context.Context, symbol string, interval time.Duration, limit int) ([]domain.Candle, error) {
	iv, ok := klineIntervals[interval]
	if !ok {
		return nil, fmt.Errorf("unsupported kline interval %s", interval)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	klines, err := a.client.NewKlinesService().
		Symbol(symbol).
		Interval(iv).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("get klines %s %s: %w", symbol, iv, err)
	}

	nowMs := a.timeNow().UnixMilli()
	candles := make([]domain.Candle, 0, len(klines))
	for _, k := range klines {
		if k.CloseTime >= nowMs {
			// Still forming.
			continue
		}
		candle, err := klineToCandle(k)
		if err != nil {
			return nil, fmt.Errorf("parse kline %s: %w", symbol, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func klineToCandle(k *futures.Kline) (domain.Candle, error) {
	fields := []string{k.Open, k.High, k.Low, k.Close, k.Volume}
	values := make([]decimal.Decimal, len(fields))
	for i, f := range fields {
		v, err := decimal.NewFromString(f)
		if err != nil {
			return domain.Candle{}, err
		}
		values[i] = v
	}
	return domain.Candle{
		OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
		CloseTime: time.UnixMilli(k.CloseTime).UTC(),
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}

func (a *BinanceAdapter) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}
	prices, err := a.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get price %s: %w", symbol, err)
	}
	for _, p := range prices {
		if p.Symbol == symbol {
			return decimal.NewFromString(p.Price)
		}
	}
	return decimal.Zero, fmt.Errorf("symbol not found: %s", symbol)
}

// GetPosition returns the signed one-way position. Hedge-mode accounts report
// separate LONG and SHORT legs that a single reduce-only order cannot flatten,
// so they are refused rather than netted.
func (a *BinanceAdapter) GetPosition(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}
	risks, err := a.client.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get position %s: %w", symbol, err)
	}

	total := decimal.Zero
	for _, r := range risks {
		if r.Symbol != symbol {
			continue
		}
		if r.PositionSide != "" && r.PositionSide != string(futures.PositionSideTypeBoth) {
			return decimal.Zero, domain.NewOrderError(domain.DataUnavailable, symbol,
				fmt.Sprintf("hedge mode not supported (position side %s)", r.PositionSide), nil)
		}
		amt, err := decimal.NewFromString(r.PositionAmt)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse position amount %q: %w", r.PositionAmt, err)
		}
		total = total.Add(amt)
	}
	return total, nil
}

func (a *BinanceAdapter) PlaceMarketOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	side := futures.SideTypeBuy
	if req.Side == domain.OrderSideSell {
		side = futures.SideTypeSell
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, domain.NewOrderError(domain.TransientExchangeError, req.Symbol, "", err)
	}

	a.logger.Debug("Placing market order",
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("quantity", req.Quantity.String()),
		zap.Bool("reduce_only", req.ReduceOnly))

	svc := a.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(req.Quantity.String())
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, exchangeError(req.Symbol, err)
	}

	executed, _ := decimal.NewFromString(resp.ExecutedQuantity)
	avgPrice, _ := decimal.NewFromString(resp.AvgPrice)
	return &domain.OrderResult{
		OrderID:      strconv.FormatInt(resp.OrderID, 10),
		Symbol:       req.Symbol,
		Side:         req.Side,
		Quantity:     req.Quantity,
		ExecutedQty:  executed,
		AveragePrice: avgPrice,
		Status:       string(resp.Status),
		CreatedAt:    time.UnixMilli(resp.UpdateTime).UTC(),
	}, nil
}

func (a *BinanceAdapter) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := a.client.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx); err != nil {
		return exchangeError(symbol, err)
	}
	return nil
}

// GetInstrument returns lot size rules, cached after the first exchangeInfo call.
func (a *BinanceAdapter) GetInstrument(ctx context.Context, symbol string) (*domain.Instrument, error) {
	a.mu.Lock()
	inst, ok := a.instruments[symbol]
	a.mu.Unlock()
	if ok {
		return inst, nil
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	info, err := a.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("get exchange info: %w", err)
	}

	loaded := make(map[string]*domain.Instrument, len(info.Symbols))
	for i := range info.Symbols {
		s := &info.Symbols[i]
		instrument := &domain.Instrument{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
			Status:     s.Status,
		}
		// Market orders are checked against MARKET_LOT_SIZE; LOT_SIZE is the fallback.
		if lot := s.MarketLotSizeFilter(); lot != nil && lot.StepSize != "" {
			instrument.QuantityStep, _ = decimal.NewFromString(lot.StepSize)
			instrument.MinQuantity, _ = decimal.NewFromString(lot.MinQuantity)
		} else if lot := s.LotSizeFilter(); lot != nil {
			instrument.QuantityStep, _ = decimal.NewFromString(lot.StepSize)
			instrument.MinQuantity, _ = decimal.NewFromString(lot.MinQuantity)
		}
		loaded[s.Symbol] = instrument
	}

	a.mu.Lock()
	for k, v := range loaded {
		a.instruments[k] = v
	}
	a.mu.Unlock()

	inst, ok = loaded[symbol]
	if !ok {
		return nil, fmt.Errorf("symbol not found: %s", symbol)
	}
	return inst, nil
}

func (a *BinanceAdapter) GetAccountInfo(ctx context.Context) (*domain.AccountInfo, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	acc, err := a.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	wallet, _ := decimal.NewFromString(acc.TotalWalletBalance)
	available, _ := decimal.NewFromString(acc.AvailableBalance)
	unrealized, _ := decimal.NewFromString(acc.TotalUnrealizedProfit)
	return &domain.AccountInfo{
		TotalWalletBalance:    wallet,
		AvailableBalance:      available,
		TotalUnrealizedProfit: unrealized,
	}, nil
}

// CheckConnection pings the API and, when credentials are configured,
// verifies them with a signed account request.
func (a *BinanceAdapter) CheckConnection(ctx context.Context) (bool, string) {
	if err := a.limiter.Wait(ctx); err != nil {
		return false, err.Error()
	}
	if err := a.client.NewPingService().Do(ctx); err != nil {
		return false, fmt.Sprintf("ping failed: %v", err)
	}
	if !a.hasKeys {
		return true, fmt.Sprintf("connected to %s (no API credentials configured)", a.client.BaseURL)
	}
	if _, err := a.GetAccountInfo(ctx); err != nil {
		return false, fmt.Sprintf("credentials rejected: %v", err)
	}
	return true, fmt.Sprintf("connected to %s", a.client.BaseURL)
}

// exchangeError maps API rejections to OrderRejected with the exchange's
// message and everything else to TransientExchangeError.
func exchangeError(symbol string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return domain.NewOrderError(domain.OrderRejected, symbol,
			fmt.Sprintf("%s (code %d)", apiErr.Message, apiErr.Code), nil)
	}
	return domain.NewOrderError(domain.TransientExchangeError, symbol, "", err)
}
