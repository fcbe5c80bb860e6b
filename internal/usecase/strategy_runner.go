package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_momentum_bot/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultEvaluationInterval = 15 * time.Second
	DefaultCandleInterval     = 3 * time.Minute
	DefaultCandleLimit        = 50
)

type RunState int32

const (
	StateIdle RunState = iota
	StateRunning
	StateStopping
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

type StrategyConfig struct {
	Symbol         string          `json:"symbol"`
	USDAmount      decimal.Decimal `json:"usd_amount"`
	Leverage       int             `json:"leverage"`
	Interval       time.Duration   `json:"interval"`
	CandleInterval time.Duration   `json:"candle_interval"`
	CandleLimit    int             `json:"candle_limit"`
}

func (c StrategyConfig) withDefaults() StrategyConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultEvaluationInterval
	}
	if c.CandleInterval <= 0 {
		c.CandleInterval = DefaultCandleInterval
	}
	if c.CandleLimit <= 0 {
		c.CandleLimit = DefaultCandleLimit
	}
	return c
}

func (c StrategyConfig) Validate() error {
	if c.Symbol == "" {
		return domain.NewOrderError(domain.InvalidConfiguration, "", "symbol is required", nil)
	}
	if !c.USDAmount.IsPositive() {
		return domain.NewOrderError(domain.InvalidConfiguration, c.Symbol,
			fmt.Sprintf("usd amount must be positive, got %s", c.USDAmount), nil)
	}
	if c.Leverage < MinLeverage {
		return domain.NewOrderError(domain.InvalidLeverage, c.Symbol,
			fmt.Sprintf("leverage must be a positive integer, got %d", c.Leverage), nil)
	}
	return nil
}

// SignalEvaluator maps candle history to a trading decision.
type SignalEvaluator interface {
	Evaluate(candles []domain.Candle) domain.TradingSignal
}

type RunnerStatus struct {
	State  string          `json:"state"`
	Config *StrategyConfig `json:"config,omitempty"`
	Events []domain.Event  `json:"events"`
}

// StrategyRunner owns the evaluation loop. Start and Stop are serialized by mu;
// the loop itself runs without locks and executes ticks strictly in sequence.
type StrategyRunner struct {
	exchange  domain.Exchange
	evaluator SignalEvaluator
	orders    *OrderManager
	events    *EventBus
	logger    *zap.Logger

	mu     sync.Mutex
	state  atomic.Int32
	config atomic.Pointer[StrategyConfig]
	cancel context.CancelFunc
	done   chan struct{}
}

func NewStrategyRunner(exchange domain.Exchange, evaluator SignalEvaluator, orders *OrderManager, events *EventBus, logger *zap.Logger) *StrategyRunner {
	return &StrategyRunner{
		exchange:  exchange,
		evaluator: evaluator,
		orders:    orders,
		events:    events,
		logger:    logger,
	}
}

// Start validates the config and launches the loop. It is a no-op, even for an
// invalid config, while a loop is already running.
func (r *StrategyRunner) Start(config StrategyConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() != StateIdle {
		r.logger.Debug("Strategy already running, start ignored", zap.String("symbol", config.Symbol))
		return nil
	}
	if err := config.Validate(); err != nil {
		r.emit(domain.EventError, config.Symbol, "Strategy not started", err)
		return err
	}

	config = config.withDefaults()
	// Loop context is detached from any caller (e.g. an HTTP request).
	ctx, cancel := context.WithCancel(context.Background())
	r.config.Store(&config)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.state.Store(int32(StateRunning))

	go r.run(ctx, config, r.done)
	return nil
}

// Stop requests cancellation and returns once the loop has exited. A tick
// already in flight finishes its exchange calls first.
func (r *StrategyRunner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() != StateRunning {
		return
	}
	r.state.Store(int32(StateStopping))
	r.cancel()
	<-r.done

	r.cancel = nil
	r.done = nil
	r.config.Store(nil)
	r.state.Store(int32(StateIdle))
}

func (r *StrategyRunner) State() RunState {
	return RunState(r.state.Load())
}

func (r *StrategyRunner) Status() RunnerStatus {
	return RunnerStatus{
		State:  r.State().String(),
		Config: r.config.Load(),
		Events: r.events.Recent(20),
	}
}

func (r *StrategyRunner) run(ctx context.Context, config StrategyConfig, done chan struct{}) {
	defer close(done)

	r.emit(domain.EventStarted, config.Symbol,
		fmt.Sprintf("Strategy started: usd=%s leverage=%dx interval=%s", config.USDAmount, config.Leverage, config.Interval), nil)

	// Exchange calls use a context that survives Stop so in-flight I/O completes.
	ioCtx := context.WithoutCancel(ctx)

	if err := r.orders.SetLeverage(ioCtx, config.Symbol, config.Leverage); err != nil {
		r.emit(domain.EventError, config.Symbol, "Failed to set leverage", err)
	} else {
		r.emit(domain.EventLeverage, config.Symbol, fmt.Sprintf("Leverage set to %dx", config.Leverage), nil)
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.emit(domain.EventStopped, config.Symbol, "Strategy stopped", nil)
			return
		case <-timer.C:
		}

		// Stop may land while the timer fired; never begin a tick after it.
		if ctx.Err() != nil {
			r.emit(domain.EventStopped, config.Symbol, "Strategy stopped", nil)
			return
		}

		if err := r.tick(ioCtx, config); err != nil {
			r.emit(domain.EventError, config.Symbol, "Strategy iteration failed", err)
		}
		timer.Reset(config.Interval)
	}
}

// tick runs one fetch -> evaluate -> dispatch cycle.
func (r *StrategyRunner) tick(ctx context.Context, config StrategyConfig) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("iteration panic: %v", p)
		}
	}()

	candles, err := r.exchange.GetCandles(ctx, config.Symbol, config.CandleInterval, config.CandleLimit)
	if err != nil {
		return domain.NewOrderError(domain.DataUnavailable, config.Symbol, "candle fetch failed", err)
	}

	signal := r.evaluator.Evaluate(candles)
	r.logger.Debug("Signal check",
		zap.String("symbol", config.Symbol),
		zap.Int("candles", len(candles)),
		zap.String("signal", signal.String()))
	if signal != domain.NoAction {
		r.emit(domain.EventSignal, config.Symbol, "Signal "+signal.String(), nil)
	}

	switch signal {
	case domain.OpenLong, domain.OpenShort:
		side := domain.SideLong
		if signal == domain.OpenShort {
			side = domain.SideShort
		}
		result, err := r.orders.OpenPosition(ctx, domain.PositionIntent{
			Symbol:    config.Symbol,
			USDAmount: config.USDAmount,
			Leverage:  config.Leverage,
			Side:      side,
		})
		if err != nil {
			return err
		}
		r.emit(domain.EventOrder, config.Symbol,
			fmt.Sprintf("%s: opened %s %s (order %s)", signal, side, result.Quantity, result.OrderID), nil)
	case domain.CloseAll:
		closed, result, err := r.orders.CloseAllPositions(ctx, config.Symbol)
		if err != nil {
			return err
		}
		if !closed {
			r.emit(domain.EventOrder, config.Symbol, "CLOSE_ALL: position already flat", nil)
			return nil
		}
		r.emit(domain.EventOrder, config.Symbol,
			fmt.Sprintf("CLOSE_ALL: closed %s via %s (order %s)", result.Quantity, result.Side, result.OrderID), nil)
	}
	return nil
}

func (r *StrategyRunner) emit(kind domain.EventKind, symbol, message string, err error) {
	event := domain.Event{Kind: kind, Symbol: symbol, Message: message}
	if err != nil {
		event.Error = err.Error()
	}
	r.events.Publish(event)
}
