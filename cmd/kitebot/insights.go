package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alejandrodnm/kitebot/internal/adapters/notify"
	"github.com/alejandrodnm/kitebot/internal/adapters/storage"
	"github.com/alejandrodnm/kitebot/internal/application/insight"
)

const (
	insightsLookbackDays = 30
	insightsTopN         = 5
)

func runInsights(ctx context.Context, store *storage.SQLiteStore, notifier *notify.Console) {
	slog.Info("=== INSIGHTS MODE ===", "lookback_days", insightsLookbackDays)

	engine := insight.New(store)

	arb, topArb, err := engine.ArbitrageReport(ctx, "", insightsLookbackDays, insightsTopN)
	if err != nil {
		slog.Error("arbitrage report failed", "err", err)
		os.Exit(1)
	}
	cf, topCF, err := engine.CashFuturesReport(ctx, "", insightsLookbackDays, insightsTopN)
	if err != nil {
		slog.Error("cash-futures report failed", "err", err)
		os.Exit(1)
	}
	execs, err := engine.ExecutionReport(ctx, insightsLookbackDays)
	if err != nil {
		slog.Error("execution report failed", "err", err)
		os.Exit(1)
	}

	notifier.PrintInsights(notify.InsightsInput{
		LookbackDays:   insightsLookbackDays,
		Arbitrage:      arb,
		TopArbitrage:   topArb,
		CashFutures:    cf,
		TopCashFutures: topCF,
		Executions:     execs,
	})
}

func runCleanup(ctx context.Context, store *storage.SQLiteStore, retentionDays int) {
	slog.Info("=== CLEANUP MODE ===", "retention_days", retentionDays)

	res, err := store.CleanupOldData(ctx, retentionDays)
	if err != nil {
		slog.Error("cleanup failed", "err", err)
		os.Exit(1)
	}
	slog.Info("cleanup complete",
		"arbitrage_spreads", res.ArbitrageDeleted,
		"cash_futures_spreads", res.CashFuturesDeleted,
		"order_sequences", res.SequencesDeleted,
		"order_history", res.OrdersDeleted,
		"total", res.Total(),
	)
}
