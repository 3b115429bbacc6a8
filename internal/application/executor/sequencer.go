package executor

// sequencer.go — the two-leg submission protocol.
//
// Legs go out sequentially, buy first: the second leg is only sent after
// the broker acked the first, so the worst half-filled state is a long
// position, never a naked short. Whatever happens, the terminal sequence
// is written to history; a failed write never rolls back an acked trade,
// it travels up as ErrPersistenceFailure next to the execution outcome.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/kitebot/internal/application/risk"
	"github.com/alejandrodnm/kitebot/internal/domain"
)

// Execute runs the full two-leg sequence for one admitted candidate. The
// symbol is locked for the duration: a second request for the same symbol
// fails fast with ErrBusy instead of queueing behind an in-flight one.
// Margin is re-checked against the live account immediately before leg 1,
// because the budget the candidate was admitted under may have moved.
func (e *Executor) Execute(ctx context.Context, cand risk.Candidate) (*domain.OrderSequence, error) {
	if len(cand.Legs) != 2 {
		return nil, fmt.Errorf("executor.Execute: %s: want 2 legs, got %d", cand.Symbol, len(cand.Legs))
	}
	for _, leg := range cand.Legs {
		if err := leg.Validate(); err != nil {
			return nil, fmt.Errorf("executor.Execute: %w", err)
		}
	}

	if !e.locks.TryAcquire(cand.Symbol) {
		return nil, fmt.Errorf("executor.Execute: %s: %w", cand.Symbol, domain.ErrBusy)
	}
	defer e.locks.Release(cand.Symbol)

	if err := e.gate.Recheck(ctx, cand); err != nil {
		return nil, fmt.Errorf("executor.Execute: %s: pre-flight margin: %w", cand.Symbol, err)
	}

	seq := domain.NewOrderSequence(
		uuid.New().String(),
		cand.Symbol,
		cand.Strategy,
		cand.Legs[0].Quantity,
		cand.ExpectedProfit,
		time.Now().UTC(),
	)
	slog.Info("executor: starting sequence",
		"correlation_id", seq.CorrelationID,
		"symbol", seq.Symbol,
		"strategy", seq.Strategy,
		"qty", seq.Quantity,
		"expected_profit", seq.ExpectedProfit,
	)
	return e.runTwoLeg(ctx, seq, cand.Legs)
}

// runTwoLeg drives the state machine. The sequence is always returned,
// whatever state it ended in, so callers and tests can inspect the trail.
func (e *Executor) runTwoLeg(ctx context.Context, seq *domain.OrderSequence, legs []domain.OrderIntent) (*domain.OrderSequence, error) {
	advance(seq, domain.SequenceLeg1Submitted)
	first := e.submitLeg(ctx, legs[0])
	seq.Legs = append(seq.Legs, first)

	if !first.Acked() {
		// Nothing is at risk: leg 1 never reached the book.
		advance(seq, domain.SequenceLeg1Failed)
		slog.Warn("executor: leg 1 not acked, sequence abandoned",
			"correlation_id", seq.CorrelationID,
			"symbol", seq.Symbol,
			"status", first.Status,
			"detail", first.Message,
		)
		return seq, errors.Join(
			fmt.Errorf("executor: leg 1 %s %s on %s: %s: %w",
				first.Intent.Side, first.Intent.Symbol, first.Intent.Venue, first.Message, domain.ErrLegSubmissionFailed),
			e.persist(ctx, seq),
		)
	}

	advance(seq, domain.SequenceLeg2Submitted)
	second := e.submitLeg(ctx, legs[1])
	seq.Legs = append(seq.Legs, second)

	if !second.Acked() {
		// The first leg is live with no hedge. No automatic retry and no
		// automatic counter-order: a market order that timed out may still
		// have reached the venue, so flattening is an explicit operator
		// action against the recorded sequence.
		advance(seq, domain.SequencePartialFailure)
		slog.Error("executor: PARTIAL FAILURE, first leg live without hedge",
			"correlation_id", seq.CorrelationID,
			"symbol", seq.Symbol,
			"filled_leg", fmt.Sprintf("%s %d %s @ %s", first.Intent.Side, first.Intent.Quantity, first.Intent.Symbol, first.Intent.Venue),
			"order_id", first.OrderID,
			"failed_leg_status", second.Status,
			"detail", second.Message,
			"action", "unwind "+seq.CorrelationID+" to flatten",
		)
		return seq, errors.Join(
			fmt.Errorf("executor: leg 2 %s %s on %s: %s: %w",
				second.Intent.Side, second.Intent.Symbol, second.Intent.Venue, second.Message, domain.ErrLegSubmissionFailed),
			e.persist(ctx, seq),
		)
	}

	advance(seq, domain.SequenceCompleted)
	slog.Info("executor: sequence completed",
		"correlation_id", seq.CorrelationID,
		"symbol", seq.Symbol,
		"strategy", seq.Strategy,
		"buy_order", first.OrderID,
		"sell_order", second.OrderID,
		"qty", seq.Quantity,
		"expected_profit", seq.ExpectedProfit,
	)
	return seq, e.persist(ctx, seq)
}

// submitLeg sends one leg and classifies the broker's answer. No ack
// within AckTimeout counts as FAILED: for sequencing purposes an
// unconfirmed order is not a fill, and reconciliation against the
// broker's order book is the operator's call.
func (e *Executor) submitLeg(ctx context.Context, intent domain.OrderIntent) domain.ExecutionResult {
	res := domain.ExecutionResult{Intent: intent, Timestamp: time.Now().UTC()}

	subCtx := ctx
	if e.cfg.AckTimeout > 0 {
		var cancel context.CancelFunc
		subCtx, cancel = context.WithTimeout(ctx, e.cfg.AckTimeout)
		defer cancel()
	}

	orderID, err := e.broker.SubmitOrder(subCtx, intent)
	var rejected *domain.OrderRejectedError
	switch {
	case err == nil:
		res.Status = domain.ExecAcked
		res.OrderID = orderID
		slog.Info("executor: leg acked",
			"symbol", intent.Symbol, "venue", intent.Venue, "side", intent.Side,
			"qty", intent.Quantity, "leg", intent.Leg, "order_id", orderID)
	case errors.As(err, &rejected):
		res.Status = domain.ExecRejected
		res.Message = rejected.Message
		res.Shortfall = rejected.Shortfall
		slog.Warn("executor: leg rejected by broker",
			"symbol", intent.Symbol, "venue", intent.Venue, "side", intent.Side,
			"leg", intent.Leg, "reason", rejected.Message)
	default:
		res.Status = domain.ExecFailed
		res.Message = err.Error()
		slog.Warn("executor: leg submission failed",
			"symbol", intent.Symbol, "venue", intent.Venue, "side", intent.Side,
			"leg", intent.Leg, "err", err)
	}
	return res
}

// persist writes the terminal sequence for the reconciliation trail.
func (e *Executor) persist(ctx context.Context, seq *domain.OrderSequence) error {
	if err := e.store.SaveOrderSequence(ctx, *seq); err != nil {
		slog.Error("executor: history write failed, trade outcome unaffected",
			"correlation_id", seq.CorrelationID, "state", seq.State, "err", err)
		return fmt.Errorf("executor: save sequence %s: %w",
			seq.CorrelationID, errors.Join(domain.ErrPersistenceFailure, err))
	}
	return nil
}

// advance applies a transition that is legal by construction; a rejection
// here is a programming error worth a loud log, not a control path.
func advance(seq *domain.OrderSequence, next domain.SequenceState) {
	if err := seq.Transition(next); err != nil {
		slog.Error("executor: sequence transition rejected", "err", err)
	}
}
