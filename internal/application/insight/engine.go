package insight

// engine.go — análisis de solo lectura sobre el histórico persistido.
//
// El motor nunca escribe: carga la ventana de lookback del almacén y
// delega en funciones puras, que son las que llevan los tests. Toda la
// estadística se calcula sobre lo que el scanner y el executor dejaron
// escrito, nunca contra datos en vivo.

import (
	"context"
	"fmt"
	"sort"

	"github.com/alejandrodnm/kitebot/internal/domain"
	"github.com/alejandrodnm/kitebot/internal/ports"
)

const (
	// defaultTopN limita los rankings por símbolo cuando el caller no pide
	// un tamaño concreto.
	defaultTopN = 10

	// trendFlatBandPct es la banda muerta de la tendencia: variaciones de
	// la media por debajo de este porcentaje se consideran planas.
	trendFlatBandPct = 5.0
)

// Engine resume el histórico persistido de spreads y ejecuciones.
type Engine struct {
	store ports.SpreadStore
}

// New crea un Engine sobre el almacén dado.
func New(store ports.SpreadStore) *Engine {
	return &Engine{store: store}
}

// ArbitrageReport carga el histórico de arbitraje de los últimos
// lookbackDays y lo resume junto al top-N de símbolos por spread medio.
// Con symbol vacío cubre toda la watchlist.
func (e *Engine) ArbitrageReport(ctx context.Context, symbol string, lookbackDays, topN int) (domain.ArbitrageInsights, []domain.SymbolSpreadStats, error) {
	records, err := e.store.ArbitrageHistory(ctx, symbol, lookbackDays)
	if err != nil {
		return domain.ArbitrageInsights{}, nil, fmt.Errorf("insight.ArbitrageReport: %w", err)
	}
	return SummarizeArbitrage(records), TopArbitrageSymbols(records, topN), nil
}

// CashFuturesReport es el equivalente para premiums cash-futures.
func (e *Engine) CashFuturesReport(ctx context.Context, symbol string, lookbackDays, topN int) (domain.CashFuturesInsights, []domain.SymbolPremiumStats, error) {
	records, err := e.store.CashFuturesHistory(ctx, symbol, lookbackDays)
	if err != nil {
		return domain.CashFuturesInsights{}, nil, fmt.Errorf("insight.CashFuturesReport: %w", err)
	}
	return SummarizeCashFutures(records), TopCashFuturesSymbols(records, topN), nil
}

// ExecutionReport resume las secuencias de ejecución de los últimos
// lookbackDays.
func (e *Engine) ExecutionReport(ctx context.Context, lookbackDays int) (domain.ExecutionStats, error) {
	records, err := e.store.SequenceHistory(ctx, lookbackDays)
	if err != nil {
		return domain.ExecutionStats{}, fmt.Errorf("insight.ExecutionReport: %w", err)
	}
	return SummarizeExecutions(records), nil
}

// SummarizeArbitrage agrega la ventana completa: medias y extremos del
// spread, tasa de observaciones rentables, mejor símbolo por media y
// tendencia de la mitad reciente contra la anterior.
func SummarizeArbitrage(records []domain.ArbitrageSpread) domain.ArbitrageInsights {
	out := domain.ArbitrageInsights{Trend: domain.TrendNoData}
	if len(records) == 0 {
		return out
	}

	type agg struct {
		samples int
		sumPct  float64
	}
	bySymbol := make(map[string]*agg)

	var sum float64
	out.MinPctDiff = records[0].PctDiff
	for _, r := range records {
		sum += r.PctDiff
		out.MaxPctDiff = max(out.MaxPctDiff, r.PctDiff)
		out.MinPctDiff = min(out.MinPctDiff, r.PctDiff)
		if r.Profitable {
			out.ProfitableCount++
		}
		a, ok := bySymbol[r.Symbol]
		if !ok {
			a = &agg{}
			bySymbol[r.Symbol] = a
		}
		a.samples++
		a.sumPct += r.PctDiff
	}

	out.TotalRecords = len(records)
	out.UniqueSymbols = len(bySymbol)
	out.AvgPctDiff = sum / float64(len(records))
	out.ProfitableRate = float64(out.ProfitableCount) / float64(len(records)) * 100

	// recorrido en orden alfabético para que el empate sea determinista
	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		avg := bySymbol[sym].sumPct / float64(bySymbol[sym].samples)
		if avg > out.BestSymbolAvg {
			out.BestSymbol = sym
			out.BestSymbolAvg = avg
		}
	}

	out.Trend, out.TrendChangePct = spreadTrend(records)
	return out
}

// spreadTrend parte la ventana en dos mitades por tiempo, no por número
// de filas: el corte es el punto medio entre la primera y la última
// observación, así una racha reciente de escrituras no desplaza la
// frontera. Compara la media de PctDiff posterior al corte contra la
// anterior.
//
// Con menos de dos observaciones no hay tendencia (NO_DATA). Con una
// mitad vacía o con media anterior cero el cambio no está definido y se
// devuelve FLAT.
func spreadTrend(records []domain.ArbitrageSpread) (domain.TrendDirection, float64) {
	if len(records) < 2 {
		return domain.TrendNoData, 0
	}

	earliest := records[0].CreatedAt
	latest := records[len(records)-1].CreatedAt
	mid := earliest.Add(latest.Sub(earliest) / 2)

	var priorSum, recentSum float64
	var priorN, recentN int
	for _, r := range records {
		if r.CreatedAt.After(mid) {
			recentSum += r.PctDiff
			recentN++
		} else {
			priorSum += r.PctDiff
			priorN++
		}
	}
	if priorN == 0 || recentN == 0 {
		return domain.TrendFlat, 0
	}

	priorAvg := priorSum / float64(priorN)
	recentAvg := recentSum / float64(recentN)
	if priorAvg == 0 {
		return domain.TrendFlat, 0
	}

	changePct := (recentAvg - priorAvg) / priorAvg * 100
	switch {
	case changePct > trendFlatBandPct:
		return domain.TrendIncreasing, changePct
	case changePct < -trendFlatBandPct:
		return domain.TrendDecreasing, changePct
	default:
		return domain.TrendFlat, changePct
	}
}

// TopArbitrageSymbols rankea símbolos por spread medio descendente, con
// el símbolo como desempate para que el orden sea estable. n <= 0 usa el
// top por defecto.
func TopArbitrageSymbols(records []domain.ArbitrageSpread, n int) []domain.SymbolSpreadStats {
	if n <= 0 {
		n = defaultTopN
	}

	type agg struct {
		samples         int
		sumPct, maxPct  float64
		sumScore        float64
		profitableCount int
	}
	bySymbol := make(map[string]*agg)
	for _, r := range records {
		a, ok := bySymbol[r.Symbol]
		if !ok {
			a = &agg{}
			bySymbol[r.Symbol] = a
		}
		a.samples++
		a.sumPct += r.PctDiff
		a.maxPct = max(a.maxPct, r.PctDiff)
		a.sumScore += r.Score
		if r.Profitable {
			a.profitableCount++
		}
	}

	stats := make([]domain.SymbolSpreadStats, 0, len(bySymbol))
	for sym, a := range bySymbol {
		stats = append(stats, domain.SymbolSpreadStats{
			Symbol:          sym,
			Samples:         a.samples,
			AvgPctDiff:      a.sumPct / float64(a.samples),
			MaxPctDiff:      a.maxPct,
			AvgScore:        a.sumScore / float64(a.samples),
			ProfitableCount: a.profitableCount,
			ProfitableRate:  float64(a.profitableCount) / float64(a.samples) * 100,
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].AvgPctDiff != stats[j].AvgPctDiff {
			return stats[i].AvgPctDiff > stats[j].AvgPctDiff
		}
		return stats[i].Symbol < stats[j].Symbol
	})
	if len(stats) > n {
		stats = stats[:n]
	}
	return stats
}

// SummarizeCashFutures agrega la ventana de premiums: medias y extremos
// del premium porcentual y anualizado, y mejor símbolo por premium medio.
func SummarizeCashFutures(records []domain.CashFuturesSpread) domain.CashFuturesInsights {
	var out domain.CashFuturesInsights
	if len(records) == 0 {
		return out
	}

	type agg struct {
		samples int
		sumPct  float64
	}
	bySymbol := make(map[string]*agg)

	var sumPct, sumAnnual float64
	out.MinPctPremium = records[0].PctPremium
	for _, r := range records {
		sumPct += r.PctPremium
		sumAnnual += r.AnnualizedPremium
		out.MaxPctPremium = max(out.MaxPctPremium, r.PctPremium)
		out.MinPctPremium = min(out.MinPctPremium, r.PctPremium)
		out.MaxAnnualized = max(out.MaxAnnualized, r.AnnualizedPremium)
		a, ok := bySymbol[r.Symbol]
		if !ok {
			a = &agg{}
			bySymbol[r.Symbol] = a
		}
		a.samples++
		a.sumPct += r.PctPremium
	}

	out.TotalRecords = len(records)
	out.UniqueSymbols = len(bySymbol)
	out.AvgPctPremium = sumPct / float64(len(records))
	out.AvgAnnualized = sumAnnual / float64(len(records))

	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		avg := bySymbol[sym].sumPct / float64(bySymbol[sym].samples)
		if avg > out.BestSymbolAvgPremium {
			out.BestSymbol = sym
			out.BestSymbolAvgPremium = avg
		}
	}
	return out
}

// TopCashFuturesSymbols rankea símbolos por premium anualizado medio, la
// métrica comparable entre vencimientos distintos.
func TopCashFuturesSymbols(records []domain.CashFuturesSpread, n int) []domain.SymbolPremiumStats {
	if n <= 0 {
		n = defaultTopN
	}

	type agg struct {
		samples        int
		sumPct, maxPct float64
		sumAnnual      float64
		sumScore       float64
	}
	bySymbol := make(map[string]*agg)
	for _, r := range records {
		a, ok := bySymbol[r.Symbol]
		if !ok {
			a = &agg{}
			bySymbol[r.Symbol] = a
		}
		a.samples++
		a.sumPct += r.PctPremium
		a.maxPct = max(a.maxPct, r.PctPremium)
		a.sumAnnual += r.AnnualizedPremium
		a.sumScore += r.Score
	}

	stats := make([]domain.SymbolPremiumStats, 0, len(bySymbol))
	for sym, a := range bySymbol {
		stats = append(stats, domain.SymbolPremiumStats{
			Symbol:        sym,
			Samples:       a.samples,
			AvgPctPremium: a.sumPct / float64(a.samples),
			MaxPctPremium: a.maxPct,
			AvgAnnualized: a.sumAnnual / float64(a.samples),
			AvgScore:      a.sumScore / float64(a.samples),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].AvgAnnualized != stats[j].AvgAnnualized {
			return stats[i].AvgAnnualized > stats[j].AvgAnnualized
		}
		return stats[i].Symbol < stats[j].Symbol
	})
	if len(stats) > n {
		stats = stats[:n]
	}
	return stats
}

// SummarizeExecutions cuenta las secuencias por estado terminal y calcula
// la tasa de éxito global y por símbolo. Los símbolos van ordenados por
// volumen de secuencias, descendente.
func SummarizeExecutions(records []domain.SequenceRecord) domain.ExecutionStats {
	var out domain.ExecutionStats
	if len(records) == 0 {
		return out
	}

	type agg struct {
		total, completed int
	}
	bySymbol := make(map[string]*agg)
	for _, r := range records {
		out.Total++
		a, ok := bySymbol[r.Symbol]
		if !ok {
			a = &agg{}
			bySymbol[r.Symbol] = a
		}
		a.total++
		switch r.State {
		case domain.SequenceCompleted:
			out.Completed++
			a.completed++
		case domain.SequenceLeg1Failed:
			out.Leg1Failed++
		case domain.SequencePartialFailure:
			out.PartialFailures++
		}
	}
	out.SuccessRate = float64(out.Completed) / float64(out.Total) * 100

	out.BySymbol = make([]domain.SymbolExecutionStats, 0, len(bySymbol))
	for sym, a := range bySymbol {
		out.BySymbol = append(out.BySymbol, domain.SymbolExecutionStats{
			Symbol:      sym,
			Total:       a.total,
			Completed:   a.completed,
			SuccessRate: float64(a.completed) / float64(a.total) * 100,
		})
	}
	sort.Slice(out.BySymbol, func(i, j int) bool {
		if out.BySymbol[i].Total != out.BySymbol[j].Total {
			return out.BySymbol[i].Total > out.BySymbol[j].Total
		}
		return out.BySymbol[i].Symbol < out.BySymbol[j].Symbol
	})
	return out
}
