package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"swingline/backtest"
	"swingline/bot"
	"swingline/core"
	"swingline/exchange"
	zerologger "swingline/logger/zerolog"
	"swingline/notification"
	"swingline/order"
	"swingline/storage"

	"github.com/spf13/cobra"
	"github.com/xhit/go-str2duration/v2"
)

var (
	configPath string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:           "swingline",
		Short:         "Daily-bar swing trading decision engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "swingline.yml", "settings file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(backtestCmd(), liveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() core.Logger {
	level := core.InfoLevel
	if verbose {
		level = core.DebugLevel
	}
	return zerologger.New(level)
}

func backtestCmd() *cobra.Command {
	var (
		dataDir string
		limit   string
		trades  bool
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay historical CSV data through the decision engine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := newLogger()

			settings, err := core.LoadSettings(configPath)
			if err != nil {
				return err
			}
			if dataDir != "" {
				settings.Backtest.DataDir = dataDir
			}

			feeds := make([]exchange.SymbolFeed, 0, len(settings.Symbols))
			for _, symbol := range settings.Symbols {
				feeds = append(feeds, exchange.SymbolFeed{
					Symbol: symbol,
					File:   filepath.Join(settings.Backtest.DataDir, symbol+".csv"),
				})
			}

			feed, err := exchange.NewCSVFeed(feeds...)
			if err != nil {
				return err
			}
			if limit != "" {
				duration, err := str2duration.ParseDuration(limit)
				if err != nil {
					return fmt.Errorf("invalid limit %q: %w", limit, err)
				}
				feed.Limit(duration)
			}

			store, err := storage.FromMemory()
			if err != nil {
				return err
			}
			defer store.Shutdown()

			broker := exchange.NewPaperBroker(settings.Backtest.StartCapital)
			manager := order.NewManager(settings.Tiers, store, broker, nil, log)

			engine := backtest.NewEngine(settings, feed, broker, store, manager, log)
			engine.ShowProgress = true

			result, err := engine.Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Println(result)
			if trades {
				result.PrintTrades()
				result.PrintHistogram()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory of <SYMBOL>.csv files")
	cmd.Flags().StringVar(&limit, "limit", "", "restrict replay to the trailing duration, e.g. 730d")
	cmd.Flags().BoolVar(&trades, "trades", false, "print the closed trade list and return histogram")
	return cmd
}

func liveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Run the live decision loop against Binance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := newLogger()

			settings, err := core.LoadSettings(configPath)
			if err != nil {
				return err
			}

			store, err := openStore(settings.Storage)
			if err != nil {
				return err
			}

			exch := exchange.NewBinance(settings.Binance.APIKey, settings.Binance.APISecret, settings.Binance.Quote)

			feed := order.NewFeed()
			feed.Start()
			defer feed.Stop()

			var notifier core.Notifier
			if settings.Telegram.Enabled {
				telegram, err := notification.NewTelegram(settings.Telegram, log)
				if err != nil {
					return err
				}
				notifier = telegram
				feed.OnDecision(telegram.OnDecision)
				feed.OnError(telegram.OnError)
			}

			manager := order.NewManager(settings.Tiers, store, exch, feed, log)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return bot.New(settings, exch, store, manager, feed, notifier, log).Run(ctx)
		},
	}
	return cmd
}

func openStore(cfg core.StorageSettings) (core.PositionStore, error) {
	switch cfg.Backend {
	case "sqlite":
		return storage.FromSQLite(cfg.Path)
	case "memory":
		return storage.FromMemory()
	default:
		return storage.FromFile(cfg.Path)
	}
}
