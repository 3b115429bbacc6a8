package domain

import "time"

// Filas tal y como viven en el almacén. Las observaciones de spreads llevan
// el timestamp que asigna el almacén al insertar; las filas de ejecución
// conservan el instante real de envío. Las lecturas devuelven histórico
// ascendente por CreatedAt.

// ArbitrageSpread es una observación persistida de un spread entre venues.
type ArbitrageSpread struct {
	ID          int64
	Symbol      string
	VenueAPrice float64
	VenueBPrice float64
	AbsDiff     float64
	PctDiff     float64
	Score       float64
	VolumeA     float64
	VolumeB     float64
	Profitable  bool
	CreatedAt   time.Time
}

// CashFuturesSpread es una observación persistida de un premium
// cash-futures.
type CashFuturesSpread struct {
	ID                int64
	Symbol            string
	CashPrice         float64
	FuturesPrice      float64
	Premium           float64
	PctPremium        float64
	AnnualizedPremium float64
	DaysToExpiry      int
	Expiry            time.Time
	Score             float64
	CreatedAt         time.Time
}

// SequenceRecord es la fila persistida de una secuencia de ejecución en
// estado terminal.
type SequenceRecord struct {
	CorrelationID  string
	Symbol         string
	Strategy       Strategy
	State          SequenceState
	Quantity       int
	ExpectedProfit float64
	CreatedAt      time.Time
}

// OrderRecord es una fila del historial de órdenes, una por leg enviada,
// fallidas incluidas. Leg 3 es la orden de unwind de una PARTIAL_FAILURE.
// Guarda la intención completa: un unwind tras un reinicio se reconstruye
// desde aquí.
type OrderRecord struct {
	ID            int64
	CorrelationID string
	Symbol        string
	Leg           int
	Venue         string
	Side          Side
	Quantity      int
	Price         float64
	OrderType     OrderType
	Product       Product
	LotSize       int
	OrderID       string
	Status        ExecStatus
	Message       string
	CreatedAt     time.Time
}

// CleanupResult cuenta las filas borradas por una pasada de retención.
type CleanupResult struct {
	ArbitrageDeleted   int64
	CashFuturesDeleted int64
	SequencesDeleted   int64
	OrdersDeleted      int64
}

// Total devuelve el total de filas borradas.
func (r CleanupResult) Total() int64 {
	return r.ArbitrageDeleted + r.CashFuturesDeleted + r.SequencesDeleted + r.OrdersDeleted
}
