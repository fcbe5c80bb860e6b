package main

import (
	"fmt"

	"github.com/vitos/crypto_momentum_bot/internal/config"
	"github.com/vitos/crypto_momentum_bot/internal/infrastructure/exchange"
	"github.com/vitos/crypto_momentum_bot/internal/infrastructure/logger"
	"github.com/vitos/crypto_momentum_bot/internal/usecase"
	"go.uber.org/zap"
)

// app holds the wired services shared by every subcommand.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	exchange *exchange.BinanceAdapter
	orders   *usecase.OrderManager
	events   *usecase.EventBus
	runner   *usecase.StrategyRunner
}

func newApp(opts *rootOptions) (*app, error) {
	// 1. Load Config
	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	// 3. Init Exchange (Binance USDT-M futures)
	if cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "" {
		log.Warn("API credentials missing, only public endpoints will work")
	}
	adapter := exchange.NewBinanceAdapter(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.Testnet, log)

	// 4. Init Services
	events := usecase.NewEventBus(log)
	orders := usecase.NewOrderManager(adapter)
	evaluator := usecase.NewMomentumEvaluator(cfg.Strategy.MomentumConfig())
	runner := usecase.NewStrategyRunner(adapter, evaluator, orders, events, log)

	return &app{
		cfg:      cfg,
		log:      log,
		exchange: adapter,
		orders:   orders,
		events:   events,
		runner:   runner,
	}, nil
}

func (a *app) close() {
	a.runner.Stop()
	_ = a.log.Sync()
}
