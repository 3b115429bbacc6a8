package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

// partialSequence is a recorded PARTIAL_FAILURE: leg 1 bought 10 RELIANCE
// on NSE, leg 2 never acked.
func partialSequence(correlationID string) domain.OrderSequence {
	return domain.OrderSequence{
		CorrelationID: correlationID,
		Symbol:        "RELIANCE",
		Strategy:      domain.StrategyArbitrage,
		State:         domain.SequencePartialFailure,
		Quantity:      10,
		CreatedAt:     time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		Legs: []domain.ExecutionResult{
			{
				OrderID: "ORD-1",
				Status:  domain.ExecAcked,
				Intent: domain.OrderIntent{
					Symbol: "RELIANCE", Venue: "NSE", Side: domain.SideBuy,
					Quantity: 10, OrderType: domain.OrderTypeMarket,
					Product: domain.ProductMIS, Leg: 1,
				},
			},
			{
				Status:  domain.ExecFailed,
				Message: "connection reset by peer",
				Intent: domain.OrderIntent{
					Symbol: "RELIANCE", Venue: "BSE", Side: domain.SideSell,
					Quantity: 10, OrderType: domain.OrderTypeMarket,
					Product: domain.ProductMIS, Leg: 2,
				},
			},
		},
	}
}

func TestUnwindSubmitsCounterOrder(t *testing.T) {
	broker := &scriptedBroker{responses: []brokerResponse{{orderID: "ORD-UNWIND"}}}
	store := newMemStore()
	store.sequences = append(store.sequences, partialSequence("SEQ-1"))
	ex := testExecutor(broker, store, 1_000_000)

	res, err := ex.UnwindSequence(context.Background(), "SEQ-1")

	require.NoError(t, err)
	assert.Equal(t, domain.ExecAcked, res.Status)
	assert.Equal(t, "ORD-UNWIND", res.OrderID)

	// counter order: opposite side of the acked buy, same size, at market
	calls := broker.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.SideSell, calls[0].Side)
	assert.Equal(t, "RELIANCE", calls[0].Symbol)
	assert.Equal(t, "NSE", calls[0].Venue)
	assert.Equal(t, 10, calls[0].Quantity)
	assert.Equal(t, domain.OrderTypeMarket, calls[0].OrderType)
	assert.Equal(t, domain.UnwindLeg, calls[0].Leg)

	// appended to the original correlation's history
	require.Len(t, store.unwinds["SEQ-1"], 1)
	assert.Equal(t, "ORD-UNWIND", store.unwinds["SEQ-1"][0].OrderID)
}

func TestUnwindRefusesNonPartialSequences(t *testing.T) {
	broker := &scriptedBroker{}
	store := newMemStore()
	seq := partialSequence("SEQ-1")
	seq.State = domain.SequenceCompleted
	store.sequences = append(store.sequences, seq)
	ex := testExecutor(broker, store, 1_000_000)

	_, err := ex.UnwindSequence(context.Background(), "SEQ-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "PARTIAL_FAILURE")
	assert.Empty(t, broker.calls())
}

func TestUnwindUnknownSequence(t *testing.T) {
	ex := testExecutor(&scriptedBroker{}, newMemStore(), 1_000_000)

	_, err := ex.UnwindSequence(context.Background(), "NO-SUCH-ID")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "NO-SUCH-ID")
}

func TestUnwindWithoutAckedFirstLegRefuses(t *testing.T) {
	broker := &scriptedBroker{}
	store := newMemStore()
	seq := partialSequence("SEQ-1")
	seq.Legs[0].Status = domain.ExecRejected
	store.sequences = append(store.sequences, seq)
	ex := testExecutor(broker, store, 1_000_000)

	_, err := ex.UnwindSequence(context.Background(), "SEQ-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no acked first leg")
	assert.Empty(t, broker.calls())
}

func TestUnwindRecordsFailedCounterOrder(t *testing.T) {
	broker := &scriptedBroker{responses: []brokerResponse{{err: errors.New("exchange closed")}}}
	store := newMemStore()
	store.sequences = append(store.sequences, partialSequence("SEQ-1"))
	ex := testExecutor(broker, store, 1_000_000)

	res, err := ex.UnwindSequence(context.Background(), "SEQ-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLegSubmissionFailed)
	assert.Equal(t, domain.ExecFailed, res.Status)

	// the failed attempt still lands in history for the audit trail
	require.Len(t, store.unwinds["SEQ-1"], 1)
	assert.Equal(t, domain.ExecFailed, store.unwinds["SEQ-1"][0].Status)
}
