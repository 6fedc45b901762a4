package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alejandrodnm/backtester/config"
	"github.com/alejandrodnm/backtester/internal/adapters/apistore"
	"github.com/alejandrodnm/backtester/internal/adapters/history"
	"github.com/alejandrodnm/backtester/internal/adapters/notify"
	"github.com/alejandrodnm/backtester/internal/backtest"
	"github.com/alejandrodnm/backtester/internal/ports"
	"github.com/alejandrodnm/backtester/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print the full trade table each day (default: compact 1-line)")
	noAPI := flag.Bool("no-api", false, "do not persist run state to the data-access API")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("backtester starting",
		"config", *configPath,
		"start", cfg.Backtest.StartDate,
		"end", cfg.Backtest.EndDate,
		"start_balance", cfg.Backtest.StartBalance,
		"no_api", *noAPI,
	)

	strat, err := strategy.Build(cfg.Strategy)
	if err != nil {
		slog.Error("invalid strategy config", "err", err)
		os.Exit(1)
	}

	store, err := history.NewStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open historical data store", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tickers, err := store.Tickers(ctx)
	if err != nil {
		slog.Error("failed to load ticker universe", "err", err)
		os.Exit(1)
	}
	if len(tickers) == 0 {
		slog.Error("no valid tickers recorded; load historical data first", "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}

	var runStore ports.RunStore = apistore.Nop{}
	if !*noAPI {
		runStore = apistore.NewClient(apistore.Config{
			BaseURL:     cfg.API.BaseURL,
			MaxAttempts: cfg.API.MaxAttempts,
			RetryDelay:  cfg.RetryDelay(),
		})
	}

	bt, err := backtest.New(cfg.StartDate, cfg.EndDate, cfg.Backtest.StartBalance)
	if err != nil {
		slog.Error("failed to initialise backtest", "err", err)
		os.Exit(1)
	}

	trades := backtest.NewTradeManager(bt, store, runStore, backtest.TradeConfig{
		MaxCapPctPerTrade: cfg.Backtest.MaxCapPctPerTrade,
		TPLimit:           cfg.Backtest.TPLimit,
		SLLimit:           cfg.Backtest.SLLimit,
	})
	executor := strategy.NewExecutor(store, strat, cfg.Backtest.AnalysisWorkers)
	notifier := notify.NewConsole(*table)

	controller := backtest.NewController(bt, trades, executor, runStore, notifier, tickers,
		backtest.ControllerConfig{MinTickDuration: cfg.MinTickDuration()})

	go readCommands(bt)

	if err := controller.Run(ctx); err != nil {
		slog.Error("backtest exited with error", "err", err)
		os.Exit(1)
	}
	bt.Wait()

	slog.Info("backtester stopped cleanly")
}

// readCommands drives the run state machine from stdin: pause, resume, stop.
func readCommands(bt *backtest.Backtest) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(strings.ToLower(scanner.Text())) {
		case "pause", "p":
			bt.Pause()
			slog.Info("backtest paused; type 'resume' to continue")
		case "resume", "r":
			bt.Resume()
			slog.Info("backtest resumed")
		case "stop", "q":
			bt.RequestStop()
			slog.Info("stop requested; finishing current day")
			return
		case "":
		default:
			slog.Info("commands: pause | resume | stop")
		}
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
