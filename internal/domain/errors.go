package domain

import (
	"errors"
	"fmt"
)

// Typed conditions shared across the scan/gate/execute pipeline. Callers
// branch with errors.Is / errors.As, never by matching message strings.
var (
	// ErrDataUnavailable marks a quote or reference row that could not be
	// obtained. Scorers absorb it per symbol; it never aborts a scan cycle.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrConfigurationMissing marks an instrument without the reference data
	// an operation needs (lot size, expiry). It is never silently defaulted.
	ErrConfigurationMissing = errors.New("instrument configuration missing")

	// ErrInsufficientMargin marks a candidate whose margin requirement does
	// not fit in the available budget. See MarginShortfallError for detail.
	ErrInsufficientMargin = errors.New("insufficient margin")

	// ErrBusy marks a symbol that already has an execution in flight.
	ErrBusy = errors.New("execution already in flight for symbol")

	// ErrLegSubmissionFailed marks a leg the broker rejected or that never
	// got an ack. The sequence state says which leg and what remains open.
	ErrLegSubmissionFailed = errors.New("leg submission failed")

	// ErrPersistenceFailure marks a failed audit write. It never rolls back
	// an acked trade; the execution outcome stands and the miss is surfaced.
	ErrPersistenceFailure = errors.New("persistence failure")
)

// MarginShortfall is the required/available breakdown of a margin rejection,
// either computed by the risk gate or parsed from a broker error message.
type MarginShortfall struct {
	Required  float64
	Available float64
}

// Gap returns how much margin was missing.
func (m MarginShortfall) Gap() float64 {
	return m.Required - m.Available
}

// MarginShortfallError is an ErrInsufficientMargin with numbers attached.
type MarginShortfallError struct {
	Symbol string
	MarginShortfall
}

func (e *MarginShortfallError) Error() string {
	return fmt.Sprintf("insufficient margin for %s: required %.2f, available %.2f", e.Symbol, e.Required, e.Available)
}

func (e *MarginShortfallError) Unwrap() error { return ErrInsufficientMargin }

// OrderRejectedError is a broker-side rejection of a single order leg, as
// opposed to a transport failure. Shortfall is set when the broker message
// included margin figures.
type OrderRejectedError struct {
	Message   string
	Shortfall *MarginShortfall
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("order rejected: %s", e.Message)
}

func (e *OrderRejectedError) Unwrap() error { return ErrLegSubmissionFailed }
