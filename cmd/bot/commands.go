package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/vitos/crypto_momentum_bot/internal/config"
	"github.com/vitos/crypto_momentum_bot/internal/domain"
	"github.com/vitos/crypto_momentum_bot/internal/web"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "bot",
		Short: "Momentum trading bot for Binance USDT-M futures",
		Long: `bot evaluates the last two closed candles on a fixed interval and opens
or closes futures positions when the close-to-close move crosses a threshold.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "Dotenv file with BINANCE_* credentials")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newOpenCmd(opts))
	rootCmd.AddCommand(newCloseCmd(opts))
	rootCmd.AddCommand(newLeverageCmd(opts))
	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newAccountCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))

	return rootCmd
}

// newServeCmd runs the HTTP control API, optionally autostarting the strategy.
func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the control API and event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			a.announceConnection(ctx)

			server := web.NewServer(a.cfg.Server.Port, a.runner, a.orders, a.exchange, a.events,
				a.cfg.Strategy.RunnerConfig(), a.log)
			serverErr := make(chan error, 1)
			go func() {
				serverErr <- server.Start()
			}()

			if a.cfg.Strategy.Autostart {
				if err := a.runner.Start(a.cfg.Strategy.RunnerConfig()); err != nil {
					a.log.Error("Autostart failed", zap.Error(err))
				}
			}

			select {
			case <-ctx.Done():
			case err := <-serverErr:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
			}

			a.log.Info("Shutting down...")
			a.runner.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}

// newRunCmd runs the strategy in the foreground and prints events.
func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the strategy loop in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			events, unsubscribe := a.events.Subscribe(64)
			defer unsubscribe()
			go printEvents(cmd.OutOrStdout(), events)

			a.announceConnection(ctx)
			if err := a.runner.Start(a.cfg.Strategy.RunnerConfig()); err != nil {
				return err
			}

			<-ctx.Done()
			a.runner.Stop()
			return nil
		},
	}
}

type orderFlags struct {
	symbol   string
	usd      string
	leverage int
}

func (f *orderFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.symbol, "symbol", "", "Trading pair (config default if empty)")
	cmd.Flags().StringVar(&f.usd, "usd", "", "USD notional before leverage (config default if empty)")
	cmd.Flags().IntVar(&f.leverage, "leverage", 0, "Leverage multiplier (config default if zero)")
}

func newOpenCmd(opts *rootOptions) *cobra.Command {
	flags := &orderFlags{}
	cmd := &cobra.Command{
		Use:       "open long|short",
		Short:     "Open a market position sized from a USD amount",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"long", "short"},
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := parseSide(args[0])
			if err != nil {
				return err
			}
			var usd decimal.Decimal
			if flags.usd != "" {
				if usd, err = decimal.NewFromString(flags.usd); err != nil {
					return fmt.Errorf("invalid --usd %q: %w", flags.usd, err)
				}
			}

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			intent := domain.PositionIntent{
				Symbol:    a.symbol(flags.symbol),
				USDAmount: a.cfg.Strategy.USDAmount,
				Leverage:  a.cfg.Strategy.Leverage,
				Side:      side,
			}
			if flags.usd != "" {
				intent.USDAmount = usd
			}
			if flags.leverage != 0 {
				intent.Leverage = flags.leverage
			}

			result, err := a.orders.OpenPosition(cmd.Context(), intent)
			if err != nil {
				return err
			}
			printOrder(cmd.OutOrStdout(), result)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newCloseCmd(opts *rootOptions) *cobra.Command {
	var symbol string
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close the whole open position with a reduce-only market order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			closed, result, err := a.orders.CloseAllPositions(cmd.Context(), a.symbol(symbol))
			if err != nil {
				return err
			}
			if !closed {
				fmt.Fprintln(cmd.OutOrStdout(), "No open position")
				return nil
			}
			printOrder(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "Trading pair (config default if empty)")
	return cmd
}

func newLeverageCmd(opts *rootOptions) *cobra.Command {
	var symbol string
	cmd := &cobra.Command{
		Use:   "leverage N",
		Short: "Set the account leverage for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			leverage, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid leverage %q: %w", args[0], err)
			}

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			sym := a.symbol(symbol)
			if err := a.orders.SetLeverage(cmd.Context(), sym, leverage); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Leverage for %s set to %dx\n", sym, leverage)
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "Trading pair (config default if empty)")
	return cmd
}

// newCheckCmd probes public and private endpoints the way an operator would
// before letting the strategy trade.
func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check exchange connectivity, price and position",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			symbol := a.cfg.Strategy.Symbol

			ok, message := a.exchange.CheckConnection(ctx)
			if !ok {
				fmt.Fprintf(out, "FAIL connection: %s\n", message)
				return errors.New("exchange unreachable")
			}
			fmt.Fprintf(out, "OK   connection: %s\n", message)

			if price, err := a.exchange.GetPrice(ctx, symbol); err != nil {
				fmt.Fprintf(out, "FAIL price (%s): %v\n", symbol, err)
			} else {
				fmt.Fprintf(out, "OK   price (%s): %s\n", symbol, price)
			}

			if inst, err := a.exchange.GetInstrument(ctx, symbol); err != nil {
				fmt.Fprintf(out, "FAIL instrument (%s): %v\n", symbol, err)
			} else {
				fmt.Fprintf(out, "OK   instrument (%s): step=%s min=%s\n", symbol, inst.QuantityStep, inst.MinQuantity)
			}

			if pos, err := a.exchange.GetPosition(ctx, symbol); err != nil {
				fmt.Fprintf(out, "FAIL position (%s): %v\n", symbol, err)
			} else {
				fmt.Fprintf(out, "OK   position (%s): %s\n", symbol, pos)
			}
			return nil
		},
	}
}

func newAccountCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show futures wallet balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			info, err := a.exchange.GetAccountInfo(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wallet balance:    %s\n", info.TotalWalletBalance)
			fmt.Fprintf(out, "Available balance: %s\n", info.AvailableBalance)
			fmt.Fprintf(out, "Unrealized PnL:    %s\n", info.TotalUnrealizedProfit)
			return nil
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", opts.configPath)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.Save(opts.configPath, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", opts.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(initCmd)

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath, opts.envFile)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config OK: %s every %s, testnet=%t\n",
				cfg.Strategy.Symbol, cfg.Strategy.Interval, cfg.Exchange.Testnet)
			return nil
		},
	})

	return configCmd
}

func parseSide(raw string) (domain.Side, error) {
	switch strings.ToLower(raw) {
	case "long":
		return domain.SideLong, nil
	case "short":
		return domain.SideShort, nil
	}
	return "", fmt.Errorf("side must be long or short, got %q", raw)
}

func (a *app) symbol(flag string) string {
	if flag == "" {
		return a.cfg.Strategy.Symbol
	}
	return strings.ToUpper(flag)
}

func (a *app) announceConnection(ctx context.Context) {
	ok, message := a.exchange.CheckConnection(ctx)
	event := domain.Event{Kind: domain.EventConnection, Message: message}
	if !ok {
		event.Kind = domain.EventError
		event.Message = "Exchange connection failed"
		event.Error = message
	}
	a.events.Publish(event)
}

func printEvents(w io.Writer, events <-chan domain.Event) {
	for event := range events {
		fmt.Fprintln(w, event.String())
	}
}

func printOrder(w io.Writer, result *domain.OrderResult) {
	fmt.Fprintf(w, "Order %s: %s %s %s status=%s avg=%s\n",
		result.OrderID, result.Side, result.Quantity, result.Symbol, result.Status, result.AveragePrice)
}
