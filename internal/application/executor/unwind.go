package executor

// unwind.go — explicit flattening of a partially failed sequence.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

// UnwindSequence submits the counter-order for a PARTIAL_FAILURE
// sequence: the opposite side of the acked first leg, same quantity, at
// market. It is a deliberate operator action against a recorded
// correlation ID, never something the sequencer does on its own. The
// sequence stays PARTIAL_FAILURE; the unwind is appended to its order
// history as its own leg.
func (e *Executor) UnwindSequence(ctx context.Context, correlationID string) (domain.ExecutionResult, error) {
	seq, err := e.store.GetSequence(ctx, correlationID)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("executor.UnwindSequence: load %s: %w", correlationID, err)
	}
	if seq.State != domain.SequencePartialFailure {
		return domain.ExecutionResult{}, fmt.Errorf("executor.UnwindSequence: %s is %s, only PARTIAL_FAILURE sequences can be unwound",
			correlationID, seq.State)
	}
	leg1, ok := seq.AckedLeg(1)
	if !ok {
		return domain.ExecutionResult{}, fmt.Errorf("executor.UnwindSequence: %s has no acked first leg", correlationID)
	}

	if !e.locks.TryAcquire(seq.Symbol) {
		return domain.ExecutionResult{}, fmt.Errorf("executor.UnwindSequence: %s: %w", seq.Symbol, domain.ErrBusy)
	}
	defer e.locks.Release(seq.Symbol)

	// Market order: the point is to flatten now, not to price the exit.
	counter := domain.OrderIntent{
		Symbol:    leg1.Intent.Symbol,
		Venue:     leg1.Intent.Venue,
		Side:      leg1.Intent.Side.Opposite(),
		Quantity:  leg1.Intent.Quantity,
		OrderType: domain.OrderTypeMarket,
		Product:   leg1.Intent.Product,
		LotSize:   leg1.Intent.LotSize,
		Leg:       domain.UnwindLeg,
	}

	slog.Info("executor: unwinding sequence",
		"correlation_id", correlationID,
		"symbol", counter.Symbol,
		"venue", counter.Venue,
		"side", counter.Side,
		"qty", counter.Quantity,
	)
	res := e.submitLeg(ctx, counter)

	var persistErr error
	if err := e.store.SaveUnwind(ctx, correlationID, res); err != nil {
		slog.Error("executor: unwind history write failed",
			"correlation_id", correlationID, "err", err)
		persistErr = fmt.Errorf("executor.UnwindSequence: save unwind %s: %w",
			correlationID, errors.Join(domain.ErrPersistenceFailure, err))
	}

	if !res.Acked() {
		return res, errors.Join(
			fmt.Errorf("executor.UnwindSequence: %s: counter order not acked: %s: %w",
				correlationID, res.Message, domain.ErrLegSubmissionFailed),
			persistErr,
		)
	}
	slog.Info("executor: unwind placed",
		"correlation_id", correlationID,
		"symbol", counter.Symbol,
		"side", counter.Side,
		"qty", counter.Quantity,
		"order_id", res.OrderID,
	)
	return res, persistErr
}
