package domain

// TrendDirection clasifica la dirección del spread medio dentro de la
// ventana analizada.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "INCREASING"
	TrendDecreasing TrendDirection = "DECREASING"
	TrendFlat       TrendDirection = "FLAT"
	TrendNoData     TrendDirection = "NO_DATA"
)

// ArbitrageInsights resume la señal histórica de arbitraje dentro de una
// ventana de lookback. Todos los porcentajes van en escala 0-100.
type ArbitrageInsights struct {
	TotalRecords  int
	UniqueSymbols int

	AvgPctDiff float64
	MaxPctDiff float64
	MinPctDiff float64

	ProfitableCount int
	ProfitableRate  float64 // % de observaciones marcadas profitable

	BestSymbol    string  // símbolo con mayor spread medio
	BestSymbolAvg float64

	// Tendencia: media de la sub-ventana reciente contra la anterior.
	Trend          TrendDirection
	TrendChangePct float64 // variación de la media reciente vs la anterior, en %
}

// CashFuturesInsights resume la señal histórica de premiums cash-futures.
type CashFuturesInsights struct {
	TotalRecords  int
	UniqueSymbols int

	AvgPctPremium float64
	MaxPctPremium float64
	MinPctPremium float64

	AvgAnnualized float64
	MaxAnnualized float64

	BestSymbol           string // símbolo con mayor premium medio
	BestSymbolAvgPremium float64
}

// SymbolSpreadStats es el agregado por símbolo del histórico de arbitraje,
// para los rankings top-N.
type SymbolSpreadStats struct {
	Symbol          string
	Samples         int
	AvgPctDiff      float64
	MaxPctDiff      float64
	AvgScore        float64
	ProfitableCount int
	ProfitableRate  float64
}

// SymbolPremiumStats es el agregado por símbolo del histórico cash-futures.
type SymbolPremiumStats struct {
	Symbol        string
	Samples       int
	AvgPctPremium float64
	MaxPctPremium float64
	AvgAnnualized float64
	AvgScore      float64
}

// ExecutionStats resume el historial de secuencias de ejecución.
type ExecutionStats struct {
	Total           int
	Completed       int
	Leg1Failed      int
	PartialFailures int
	SuccessRate     float64 // COMPLETED sobre el total, en %
	BySymbol        []SymbolExecutionStats
}

// SymbolExecutionStats es la tasa de éxito de ejecución de un símbolo.
type SymbolExecutionStats struct {
	Symbol      string
	Total       int
	Completed   int
	SuccessRate float64
}
