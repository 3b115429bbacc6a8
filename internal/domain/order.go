package domain

import (
	"fmt"
	"time"
)

// Side of an order leg.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the counter side, used when unwinding a filled leg.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType of an order leg.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Product is the broker margin class an order is booked under.
type Product string

const (
	ProductCNC  Product = "CNC"  // cash and carry, full value
	ProductMIS  Product = "MIS"  // intraday, leveraged
	ProductNRML Product = "NRML" // overnight derivatives
)

// OrderIntent is one fully specified leg, ready for the broker gateway.
// Quantity is in shares; for derivative legs it must already be a whole
// number of lots and LotSize must carry the contract's lot size.
type OrderIntent struct {
	Symbol    string
	Venue     string
	Side      Side
	Quantity  int
	Price     float64 // 0 for market orders
	OrderType OrderType
	Product   Product
	LotSize   int // 0 for cash legs
	Leg       int // 1-based position within its sequence
}

// Validate rejects intents that would be refused by any broker anyway.
func (i OrderIntent) Validate() error {
	switch {
	case i.Symbol == "":
		return fmt.Errorf("domain.OrderIntent: empty symbol")
	case i.Venue == "":
		return fmt.Errorf("domain.OrderIntent: %s: empty venue", i.Symbol)
	case i.Side != SideBuy && i.Side != SideSell:
		return fmt.Errorf("domain.OrderIntent: %s: unknown side %q", i.Symbol, i.Side)
	case i.Quantity <= 0:
		return fmt.Errorf("domain.OrderIntent: %s: quantity %d must be positive", i.Symbol, i.Quantity)
	case i.OrderType == OrderTypeLimit && i.Price <= 0:
		return fmt.Errorf("domain.OrderIntent: %s: limit order needs a positive price", i.Symbol)
	}
	return nil
}

// UnwindLeg is the leg number recorded for the compensating order of a
// partially failed sequence. Legs 1 and 2 are the pair itself.
const UnwindLeg = 3

// ExecStatus classifies the broker response for one submitted leg.
type ExecStatus string

const (
	ExecAcked    ExecStatus = "ACKED"    // broker accepted, order ID assigned
	ExecRejected ExecStatus = "REJECTED" // broker refused (margin, RMS, validation)
	ExecFailed   ExecStatus = "FAILED"   // transport error or ack timeout
)

// ExecutionResult is the outcome of submitting one leg.
type ExecutionResult struct {
	OrderID   string // broker order ID, empty unless acked
	Intent    OrderIntent
	Status    ExecStatus
	Message   string           // broker or transport detail for non-acked legs
	Shortfall *MarginShortfall // parsed margin figures, when the broker gave them
	Timestamp time.Time
}

// Acked reports whether the broker accepted the leg.
func (r ExecutionResult) Acked() bool { return r.Status == ExecAcked }

// SequenceState is the lifecycle of a two-leg execution request.
type SequenceState string

const (
	SequencePending        SequenceState = "PENDING"
	SequenceLeg1Submitted  SequenceState = "LEG1_SUBMITTED"
	SequenceLeg2Submitted  SequenceState = "LEG2_SUBMITTED"
	SequenceCompleted      SequenceState = "COMPLETED"
	SequenceLeg1Failed     SequenceState = "LEG1_FAILED"
	SequencePartialFailure SequenceState = "PARTIAL_FAILURE"
)

// sequenceTransitions is the full transition table. Anything not listed is
// illegal, including every move out of a terminal state.
var sequenceTransitions = map[SequenceState][]SequenceState{
	SequencePending:       {SequenceLeg1Submitted},
	SequenceLeg1Submitted: {SequenceLeg2Submitted, SequenceLeg1Failed},
	SequenceLeg2Submitted: {SequenceCompleted, SequencePartialFailure},
}

// CanTransition reports whether moving from s to next is legal.
func (s SequenceState) CanTransition(next SequenceState) bool {
	for _, allowed := range sequenceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the sequence can make no further progress.
// PARTIAL_FAILURE is terminal too: recovery is an explicit unwind, never an
// automatic retry.
func (s SequenceState) Terminal() bool {
	switch s {
	case SequenceCompleted, SequenceLeg1Failed, SequencePartialFailure:
		return true
	}
	return false
}

// Strategy labels which scanner produced an execution request.
type Strategy string

const (
	StrategyArbitrage   Strategy = "ARBITRAGE"
	StrategyCashFutures Strategy = "CASH_FUTURES"
)

// OrderSequence tracks one two-leg execution request end to end. The buy
// leg always goes first so a fill never leaves a naked short; Legs holds
// the per-leg results in submission order, failed attempts included.
type OrderSequence struct {
	CorrelationID  string
	Symbol         string
	Strategy       Strategy
	State          SequenceState
	Legs           []ExecutionResult
	Quantity       int
	ExpectedProfit float64 // gross, at observed prices
	CreatedAt      time.Time
}

// NewOrderSequence starts a sequence in PENDING.
func NewOrderSequence(correlationID, symbol string, strategy Strategy, quantity int, expectedProfit float64, now time.Time) *OrderSequence {
	return &OrderSequence{
		CorrelationID:  correlationID,
		Symbol:         symbol,
		Strategy:       strategy,
		State:          SequencePending,
		Quantity:       quantity,
		ExpectedProfit: expectedProfit,
		CreatedAt:      now,
	}
}

// Transition advances the state, rejecting illegal moves.
func (s *OrderSequence) Transition(next SequenceState) error {
	if !s.State.CanTransition(next) {
		return fmt.Errorf("domain.OrderSequence %s: illegal transition %s to %s", s.CorrelationID, s.State, next)
	}
	s.State = next
	return nil
}

// AckedLeg returns the result of the given 1-based leg if it was acked.
func (s *OrderSequence) AckedLeg(leg int) (ExecutionResult, bool) {
	for _, r := range s.Legs {
		if r.Intent.Leg == leg && r.Acked() {
			return r, true
		}
	}
	return ExecutionResult{}, false
}
