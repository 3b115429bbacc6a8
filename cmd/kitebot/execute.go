package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/alejandrodnm/kitebot/config"
	"github.com/alejandrodnm/kitebot/internal/adapters/notify"
	"github.com/alejandrodnm/kitebot/internal/application/executor"
	"github.com/alejandrodnm/kitebot/internal/application/risk"
	"github.com/alejandrodnm/kitebot/internal/application/scanner"
	"github.com/alejandrodnm/kitebot/internal/domain"
)

// Margin budget for dry-run admission, where there is no account to ask.
const dryRunMargin = 500_000.0

func runExecute(ctx context.Context, s *scanner.Scanner, gate *risk.Gate, exec *executor.Executor, notifier *notify.Console, cfg *config.Config, dryRun bool) {
	slog.Info("=== EXECUTE MODE (REAL ORDERS) ===",
		"order_type", cfg.Executor.OrderType,
		"default_quantity", cfg.Executor.DefaultQuantity,
		"default_lots", cfg.Executor.DefaultLots,
		"dry_run", dryRun,
	)

	if !dryRun {
		fmt.Printf("\n⚠️  EXECUTE MODE — REAL ORDERS WILL BE PLACED\n")
		fmt.Printf("   Order type: %s | Qty per arbitrage leg: %d | Lots per futures leg: %d\n",
			cfg.Executor.OrderType, cfg.Executor.DefaultQuantity, cfg.Executor.DefaultLots)
		fmt.Printf("   Press Ctrl+C within 5 seconds to abort...\n\n")

		abortTimer := time.NewTimer(5 * time.Second)
		select {
		case <-abortTimer.C:
		case <-ctx.Done():
			slog.Info("execute aborted by user")
			return
		}
	}

	res, err := s.RunOnce(ctx)
	if err != nil {
		slog.Error("scan failed", "err", err)
		os.Exit(1)
	}

	candidates, rejections := buildCandidates(gate, res, cfg)
	if len(candidates) == 0 && len(rejections) == 0 {
		slog.Info("no executable opportunities this cycle",
			"arbitrage", len(res.Arbitrage),
			"cash_futures", len(res.CashFutures),
		)
		return
	}

	var decision risk.Decision
	if dryRun {
		decision = gate.AdmitWithin(candidates, dryRunMargin)
	} else {
		decision, err = gate.Admit(ctx, candidates)
		if err != nil {
			slog.Error("margin check failed", "err", err)
			os.Exit(1)
		}
	}

	if dryRun {
		logDryRunDecision(decision, rejections)
		return
	}

	report := exec.ExecuteAdmitted(ctx, decision)
	notifier.PrintExecutionReport(reportInput(decision, report, rejections))
}

// buildCandidates turns ranked opportunities into order candidates. Both
// strategies share the 0-100 score scale, so the merged list re-sorts by
// score before the greedy admission pass.
func buildCandidates(gate *risk.Gate, res scanner.ScanResult, cfg *config.Config) ([]risk.Candidate, []string) {
	var (
		candidates []risk.Candidate
		rejections []string
	)
	orderType := domain.OrderType(cfg.Executor.OrderType)

	for _, opp := range res.Arbitrage {
		if !opp.Profitable {
			continue
		}
		cand, err := gate.NewArbitrageCandidate(opp, cfg.Executor.DefaultQuantity, orderType)
		if err != nil {
			rejections = append(rejections, err.Error())
			continue
		}
		candidates = append(candidates, cand)
	}
	for _, opp := range res.CashFutures {
		cand, err := gate.NewCashFuturesCandidate(opp, cfg.Executor.DefaultLots, orderType)
		if err != nil {
			rejections = append(rejections, err.Error())
			continue
		}
		candidates = append(candidates, cand)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, rejections
}

func logDryRunDecision(decision risk.Decision, rejections []string) {
	slog.Info("dry-run: no orders submitted",
		"admitted", len(decision.Admitted),
		"rejected", len(decision.Rejected)+len(rejections),
		"available", fmt.Sprintf("%.2f", decision.AvailableMargin),
		"reserved", fmt.Sprintf("%.2f", decision.MarginReserved),
	)
	for _, cand := range decision.Admitted {
		for _, leg := range cand.Legs {
			slog.Info("dry-run: would submit",
				"strategy", cand.Strategy,
				"leg", leg.Leg,
				"side", leg.Side,
				"symbol", leg.Symbol,
				"venue", leg.Venue,
				"qty", leg.Quantity,
				"type", leg.OrderType,
				"product", leg.Product,
			)
		}
	}
	for _, reason := range rejections {
		slog.Warn("dry-run: candidate not built", "reason", reason)
	}
	for _, rej := range decision.Rejected {
		slog.Warn("dry-run: not admitted",
			"strategy", rej.Candidate.Strategy,
			"symbol", rej.Candidate.Symbol,
			"reason", rej.Reason,
		)
	}
}

func reportInput(decision risk.Decision, report executor.Report, rejections []string) notify.ExecutionReportInput {
	for _, rej := range decision.Rejected {
		rejections = append(rejections, fmt.Sprintf("%s %s: %v", rej.Candidate.Strategy, rej.Candidate.Symbol, rej.Reason))
	}
	return notify.ExecutionReportInput{
		AvailableMargin: decision.AvailableMargin,
		MarginReserved:  decision.MarginReserved,
		Rejections:      rejections,
		Sequences:       report.Sequences,
		SuccessCount:    report.SuccessCount,
		Leg1Failures:    report.Leg1Failures,
		PartialFailures: report.PartialFailures,
		Skipped:         report.Skipped,
		Warnings:        report.Warnings,
	}
}

func runUnwind(ctx context.Context, exec *executor.Executor, notifier *notify.Console, correlationID string) {
	slog.Info("=== UNWIND MODE ===", "correlation_id", correlationID)

	res, err := exec.UnwindSequence(ctx, correlationID)
	if res.Intent.Symbol == "" {
		// nothing was submitted: unknown ID, wrong state or symbol busy
		slog.Error("unwind rejected", "correlation_id", correlationID, "err", err)
		os.Exit(1)
	}
	if err != nil {
		slog.Error("unwind finished with errors", "correlation_id", correlationID, "err", err)
	}
	notifier.PrintUnwindResult(correlationID, res)
	if !res.Acked() {
		os.Exit(1)
	}
}
