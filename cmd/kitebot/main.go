package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/kitebot/config"
	"github.com/alejandrodnm/kitebot/internal/adapters/broker"
	"github.com/alejandrodnm/kitebot/internal/adapters/notify"
	"github.com/alejandrodnm/kitebot/internal/adapters/storage"
	"github.com/alejandrodnm/kitebot/internal/application/executor"
	"github.com/alejandrodnm/kitebot/internal/application/risk"
	"github.com/alejandrodnm/kitebot/internal/application/scanner"
	"github.com/alejandrodnm/kitebot/internal/domain"
	"github.com/alejandrodnm/kitebot/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one scan cycle and exit")
	execute := flag.Bool("execute", false, "scan once and execute admitted opportunities (REAL ORDERS)")
	unwindID := flag.String("unwind", "", "flatten a PARTIAL_FAILURE sequence by correlation id")
	insights := flag.Bool("insights", false, "print historical insight tables and exit")
	cleanup := flag.Bool("cleanup", false, "delete history older than the retention window and exit")
	dryRun := flag.Bool("dry-run", false, "use local fixtures instead of real API")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full tables (default: compact 1-line)")
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

	if *dryRun && (*insights || *cleanup || *unwindID != "") {
		slog.Error("insights, cleanup and unwind read real history, remove -dry-run")
		os.Exit(1)
	}
	needsAPI := !*dryRun && !*insights && !*cleanup
	if needsAPI && (cfg.API.APIKey == "" || cfg.API.AccessToken == "") {
		slog.Error("missing broker credentials, set KITE_API_KEY and KITE_ACCESS_TOKEN")
		os.Exit(1)
	}

	slog.Info("kitebot starting",
		"config", *configPath,
		"interval", cfg.ScanInterval(),
		"symbols", len(cfg.Scanner.Symbols),
		"dry_run", *dryRun,
		"once", *once,
	)

	client := broker.NewClient(cfg.API.BaseURL, cfg.API.APIKey, cfg.API.AccessToken)

	var quotes ports.QuoteProvider = client
	var instruments ports.InstrumentProvider = client
	if *dryRun {
		fixtures := newFixtureMarket(cfg.Scanner.FuturesVenue)
		quotes, instruments = fixtures, fixtures
	}

	var store *storage.SQLiteStore
	var spreadStore ports.SpreadStore
	if !*dryRun {
		store, err = storage.New(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
		spreadStore = store
	}

	notifier := notify.NewConsole(*table)

	scanCfg := scanner.Config{
		ScanInterval: cfg.ScanInterval(),
		Symbols:      cfg.Scanner.Symbols,
		VenueA:       cfg.Scanner.VenueA,
		VenueB:       cfg.Scanner.VenueB,
		FuturesVenue: cfg.Scanner.FuturesVenue,
		Workers:      cfg.Scanner.Workers,
		Once:         *once || *dryRun,
		Arbitrage: domain.ArbitrageParams{
			MinPctDiff:     cfg.Arbitrage.MinPctDiff,
			MinVolume:      cfg.Arbitrage.MinVolume,
			MaxQuoteAge:    time.Duration(cfg.Arbitrage.QuoteMaxAgeSeconds) * time.Second,
			CostPerSidePct: cfg.Arbitrage.CostPerSidePct,
			Score:          scoreParams(cfg.Arbitrage.Scoring),
		},
		CashFutures: domain.CashFuturesParams{
			MinPremiumPct:     cfg.CashFutures.MinPremiumPct,
			MinDaysToExpiry:   cfg.CashFutures.MinDaysToExpiry,
			MaxDaysToExpiry:   cfg.CashFutures.MaxDaysToExpiry,
			HoldingWindowDays: cfg.CashFutures.HoldingWindowDays,
			MinVolume:         cfg.CashFutures.MinVolume,
			MaxQuoteAge:       time.Duration(cfg.CashFutures.QuoteMaxAgeSeconds) * time.Second,
			Score:             scoreParams(cfg.CashFutures.Scoring),
		},
	}

	s := scanner.New(scanCfg, quotes, instruments, spreadStore, notifier)

	marginRates := make(map[domain.Product]float64, len(cfg.Risk.MarginRates))
	for product, rate := range cfg.Risk.MarginRates {
		marginRates[domain.Product(product)] = rate
	}
	gate := risk.New(risk.Config{
		MarginRates:       marginRates,
		DefaultMarginRate: cfg.Risk.DefaultMarginRate,
		LotSizes:          cfg.Risk.LotSizes,
	}, client)

	var exec *executor.Executor
	if !*dryRun {
		exec = executor.New(executor.Config{
			OrderType:     domain.OrderType(cfg.Executor.OrderType),
			AckTimeout:    cfg.AckTimeout(),
			StopOnFailure: cfg.Executor.StopOnFailure,
		}, gate, client, store)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *cleanup {
		runCleanup(ctx, store, cfg.Storage.RetentionDays)
		return
	}
	if *insights {
		runInsights(ctx, store, notifier)
		return
	}
	if *unwindID != "" {
		runUnwind(ctx, exec, notifier, *unwindID)
		return
	}
	if *execute {
		runExecute(ctx, s, gate, exec, notifier, cfg, *dryRun)
		return
	}

	if err := s.Run(ctx); err != nil {
		slog.Error("scanner exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("kitebot stopped cleanly")
}

func scoreParams(sc config.ScoringConfig) domain.ScoreParams {
	return domain.ScoreParams{
		LiquidityBase:    sc.LiquidityBase,
		LiquidityBoost:   sc.LiquidityBoost,
		VolumeSaturation: sc.VolumeSaturation,
		VolumeFloor:      sc.VolumeFloor,
		PenaltyWeight:    sc.PenaltyWeight,
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
