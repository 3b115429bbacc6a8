package executor

// executor.go — real order execution against the broker gateway.
//
// Everything here moves real money. The rules are strict: buy leg first,
// no automatic retry, no automatic compensation. A half-filled pair is
// flagged PARTIAL_FAILURE and flattening it is an explicit operator
// action, because a market order that failed to ack may still have
// reached the venue and a blind retry can double the position.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/kitebot/internal/application/risk"
	"github.com/alejandrodnm/kitebot/internal/domain"
	"github.com/alejandrodnm/kitebot/internal/ports"
)

// Config controls execution behaviour.
type Config struct {
	OrderType     domain.OrderType
	AckTimeout    time.Duration // no ack within this window marks the leg FAILED
	StopOnFailure bool          // stop a batch after the first failed sequence
}

// Executor turns admitted candidates into order sequences.
type Executor struct {
	cfg    Config
	gate   *risk.Gate
	broker ports.BrokerGateway
	store  ports.SpreadStore
	locks  *symbolLocks
}

// New creates an Executor. All dependencies are required.
func New(cfg Config, gate *risk.Gate, broker ports.BrokerGateway, store ports.SpreadStore) *Executor {
	if cfg.OrderType == "" {
		cfg.OrderType = domain.OrderTypeMarket
	}
	return &Executor{
		cfg:    cfg,
		gate:   gate,
		broker: broker,
		store:  store,
		locks:  newSymbolLocks(),
	}
}

// Report aggregates the outcome of executing a batch of admitted candidates.
type Report struct {
	Sequences       []domain.OrderSequence
	SuccessCount    int // sequences that reached COMPLETED
	Leg1Failures    int
	PartialFailures int
	Skipped         int      // busy symbol or failed pre-flight, nothing submitted
	Warnings        []string // history writes that missed, never fatal
}

// ExecuteAdmitted runs the two-leg sequence for every admitted candidate,
// in ranking order. The default is continue-and-collect: one failed
// sequence does not abort the rest of the batch. StopOnFailure flips that
// for conservative operation.
func (e *Executor) ExecuteAdmitted(ctx context.Context, decision risk.Decision) Report {
	var report Report

	for _, cand := range decision.Admitted {
		seq, err := e.Execute(ctx, cand)
		if seq == nil {
			// nothing was submitted for this candidate
			report.Skipped++
			slog.Warn("executor: candidate skipped", "symbol", cand.Symbol, "err", err)
			continue
		}

		report.Sequences = append(report.Sequences, *seq)
		if errors.Is(err, domain.ErrPersistenceFailure) {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("history write missed for %s (%s %s)", seq.CorrelationID, seq.Symbol, seq.State))
		}

		stop := false
		switch seq.State {
		case domain.SequenceCompleted:
			report.SuccessCount++
		case domain.SequenceLeg1Failed:
			report.Leg1Failures++
			stop = e.cfg.StopOnFailure
		case domain.SequencePartialFailure:
			report.PartialFailures++
			stop = e.cfg.StopOnFailure
		}
		if stop {
			slog.Warn("executor: stopping batch after failed sequence",
				"correlation_id", seq.CorrelationID, "state", seq.State)
			break
		}
	}

	slog.Info("executor: batch complete",
		"sequences", len(report.Sequences),
		"completed", report.SuccessCount,
		"leg1_failed", report.Leg1Failures,
		"partial_failures", report.PartialFailures,
		"skipped", report.Skipped,
	)
	return report
}

// PlaceOrder submits one standalone intent and classifies the outcome.
// An invalid intent comes back REJECTED without touching the gateway.
// No symbol lock and no margin re-check here: those belong to the
// two-leg sequence, not to a lone order.
func (e *Executor) PlaceOrder(ctx context.Context, intent domain.OrderIntent) domain.ExecutionResult {
	if err := intent.Validate(); err != nil {
		return domain.ExecutionResult{
			Intent:    intent,
			Status:    domain.ExecRejected,
			Message:   err.Error(),
			Timestamp: time.Now().UTC(),
		}
	}
	return e.submitLeg(ctx, intent)
}

// BulkResult is the outcome of submitting a list of independent intents.
type BulkResult struct {
	Results      []domain.ExecutionResult
	SuccessCount int
}

// ExecuteSequence submits independent, pre-built intents in order. These
// are not coupled legs: results are collected per intent and a failure
// only stops the batch when StopOnFailure is set.
func (e *Executor) ExecuteSequence(ctx context.Context, intents []domain.OrderIntent) BulkResult {
	var out BulkResult
	for _, intent := range intents {
		res := e.PlaceOrder(ctx, intent)
		out.Results = append(out.Results, res)
		if res.Acked() {
			out.SuccessCount++
			continue
		}
		if e.cfg.StopOnFailure {
			break
		}
	}
	return out
}

// PlaceArbitrageOrders builds and runs the two-leg sequence for a scored
// two-venue spread: buy the cheap venue, sell the expensive one.
func (e *Executor) PlaceArbitrageOrders(ctx context.Context, opp domain.ArbitrageOpportunity, quantity int) (*domain.OrderSequence, error) {
	cand, err := e.gate.NewArbitrageCandidate(opp, quantity, e.cfg.OrderType)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, cand)
}

// PlaceCashFuturesOrders builds and runs the two-leg sequence for a
// cash-futures premium: buy cash, sell the futures contract.
func (e *Executor) PlaceCashFuturesOrders(ctx context.Context, opp domain.CashFuturesOpportunity, lots int) (*domain.OrderSequence, error) {
	cand, err := e.gate.NewCashFuturesCandidate(opp, lots, e.cfg.OrderType)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, cand)
}
