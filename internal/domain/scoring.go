package domain

import (
	"sort"
	"time"
)

// Parámetros por defecto de la curva de scoring. Calibrados para que un
// spread del 0.5% con buena liquidez puntúe en la zona media de la escala.
const (
	DefaultLiquidityBase    = 10.0
	DefaultLiquidityBoost   = 40.0
	DefaultVolumeSaturation = 1_000_000.0
	DefaultVolumeFloor      = 10_000.0
	DefaultPenaltyWeight    = 5.0

	// ScoreMax es el techo de la escala de scoring.
	ScoreMax = 100.0

	// premiumScaleDays normaliza el premium cash-futures: un premium que
	// vence en 30 días pesa su valor nominal completo.
	premiumScaleDays = 30.0

	daysPerYear = 365.0
)

// ScoreParams parametriza la curva de liquidez del scoring. Los campos a
// cero se sustituyen por los defaults, así un ScoreParams{} vacío funciona.
type ScoreParams struct {
	LiquidityBase    float64 // factor mínimo, con volumen cero
	LiquidityBoost   float64 // factor extra máximo al saturar el volumen
	VolumeSaturation float64 // volumen al que el boost llega a su tope
	VolumeFloor      float64 // por debajo de este volumen entra la penalización
	PenaltyWeight    float64 // penalización máxima, a volumen cero
}

// DefaultScoreParams devuelve la curva de scoring por defecto.
func DefaultScoreParams() ScoreParams {
	return ScoreParams{
		LiquidityBase:    DefaultLiquidityBase,
		LiquidityBoost:   DefaultLiquidityBoost,
		VolumeSaturation: DefaultVolumeSaturation,
		VolumeFloor:      DefaultVolumeFloor,
		PenaltyWeight:    DefaultPenaltyWeight,
	}
}

func (p ScoreParams) withDefaults() ScoreParams {
	if p.LiquidityBase <= 0 {
		p.LiquidityBase = DefaultLiquidityBase
	}
	if p.LiquidityBoost <= 0 {
		p.LiquidityBoost = DefaultLiquidityBoost
	}
	if p.VolumeSaturation <= 0 {
		p.VolumeSaturation = DefaultVolumeSaturation
	}
	if p.VolumeFloor <= 0 {
		p.VolumeFloor = DefaultVolumeFloor
	}
	if p.PenaltyWeight < 0 {
		p.PenaltyWeight = DefaultPenaltyWeight
	}
	return p
}

// LiquidityFactor crece con el volumen y satura en VolumeSaturation.
//
// Fórmula: f = base + boost × min(v / saturación, 1)
//   - v: volumen del lado menos líquido
//
// Es monótona no decreciente en v, así más volumen nunca baja el score.
func (p ScoreParams) LiquidityFactor(minVolume float64) float64 {
	p = p.withDefaults()
	if minVolume < 0 {
		minVolume = 0
	}
	return p.LiquidityBase + p.LiquidityBoost*min(minVolume/p.VolumeSaturation, 1)
}

// IlliquidityPenalty castiga el volumen por debajo de VolumeFloor.
//
// Fórmula: p = peso × max(0, 1 - v / floor)
//
// Vale cero a partir del floor y crece linealmente hasta el peso máximo
// con volumen cero.
func (p ScoreParams) IlliquidityPenalty(minVolume float64) float64 {
	p = p.withDefaults()
	if minVolume < 0 {
		minVolume = 0
	}
	return p.PenaltyWeight * max(0, 1-minVolume/p.VolumeFloor)
}

// PctDiff calcula la diferencia porcentual de dos precios sobre el menor.
//
// Fórmula: d = |a - b| / min(a, b) × 100
func PctDiff(priceA, priceB float64) float64 {
	lower := min(priceA, priceB)
	if lower <= 0 {
		return 0
	}
	diff := priceA - priceB
	if diff < 0 {
		diff = -diff
	}
	return diff / lower * 100
}

// RoundTripCost estima el coste de comprar en un venue y vender en el otro
// (brokerage, impuestos y slippage aproximados), por acción.
//
// Fórmula: c = precio × costePorLado% / 100 × 2
func RoundTripCost(price, costPerSidePct float64) float64 {
	if price <= 0 || costPerSidePct <= 0 {
		return 0
	}
	return price * costPerSidePct / 100 * 2
}

// ArbitrageScore combina spread y liquidez en un score 0-100.
//
// Fórmula: S = clamp(0, 100, d × f(v) - p(v))
//   - d: diferencia porcentual entre venues
//   - v: volumen del lado menos líquido
//   - f: LiquidityFactor, p: IlliquidityPenalty
//
// Monótono en d y en v; dos inputs idénticos puntúan idéntico siempre.
func ArbitrageScore(pctDiff, volumeA, volumeB float64, p ScoreParams) float64 {
	if pctDiff <= 0 {
		return 0
	}
	v := min(volumeA, volumeB)
	return clampScore(pctDiff*p.LiquidityFactor(v) - p.IlliquidityPenalty(v))
}

// AnnualizedPremium extrapola un premium porcentual a tasa anual.
//
// Fórmula: a = premium% × 365 / días
func AnnualizedPremium(pctPremium float64, daysToExpiry int) float64 {
	if daysToExpiry <= 0 {
		return 0
	}
	return pctPremium * daysPerYear / float64(daysToExpiry)
}

// CashFuturesScore pondera el premium por el tiempo restante y la liquidez.
//
// Fórmula: S = clamp(0, 100, premium% × (días / 30) × h × f(v) - p(v))
//   - h: factor de ventana, min(1, días / ventana). Un contrato a punto de
//     vencer deja poco tiempo para capturar la convergencia y puntúa menos.
//   - v: volumen del lado menos líquido del par contado/futuro
func CashFuturesScore(pctPremium float64, daysToExpiry, holdingWindowDays int, volumeCash, volumeFutures float64, p ScoreParams) float64 {
	if pctPremium <= 0 || daysToExpiry <= 0 {
		return 0
	}
	holding := 1.0
	if holdingWindowDays > 0 {
		holding = min(1, float64(daysToExpiry)/float64(holdingWindowDays))
	}
	v := min(volumeCash, volumeFutures)
	raw := pctPremium * (float64(daysToExpiry) / premiumScaleDays) * holding * p.LiquidityFactor(v)
	return clampScore(raw - p.IlliquidityPenalty(v))
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > ScoreMax {
		return ScoreMax
	}
	return s
}

// ArbitrageParams son los umbrales del escaneo de arbitraje entre venues.
type ArbitrageParams struct {
	MinPctDiff     float64       // diferencia mínima para marcar profitable, en %
	MinVolume      float64       // volumen mínimo por lado; 0 desactiva el filtro
	MaxQuoteAge    time.Duration // edad máxima de una quote; 0 desactiva el filtro
	CostPerSidePct float64       // coste estimado por lado, en % del precio
	Score          ScoreParams
}

// CashFuturesParams son los umbrales del escaneo cash-futures.
type CashFuturesParams struct {
	MinPremiumPct     float64       // premium mínimo para considerar el par, en %
	MinDaysToExpiry   int           // excluye contratos demasiado cerca del vencimiento
	MaxDaysToExpiry   int           // excluye contratos lejanos; 0 desactiva el filtro
	HoldingWindowDays int           // ventana del factor h del score
	MinVolume         float64       // volumen mínimo por lado; 0 desactiva el filtro
	MaxQuoteAge       time.Duration // edad máxima de una quote; 0 desactiva el filtro
	Score             ScoreParams
}

// ScoreArbitragePair puntúa un símbolo con quote en ambos venues. Devuelve
// false si algún lado falla la validación, está stale o no llega al volumen
// mínimo: el dato malo se absorbe aquí y no contamina el resto del escaneo.
func ScoreArbitragePair(a, b Quote, p ArbitrageParams, now time.Time) (ArbitrageOpportunity, bool) {
	if a.Validate() != nil || b.Validate() != nil {
		return ArbitrageOpportunity{}, false
	}
	if a.Stale(now, p.MaxQuoteAge) || b.Stale(now, p.MaxQuoteAge) {
		return ArbitrageOpportunity{}, false
	}
	if p.MinVolume > 0 && (a.Volume < p.MinVolume || b.Volume < p.MinVolume) {
		return ArbitrageOpportunity{}, false
	}

	absDiff := a.Price - b.Price
	if absDiff < 0 {
		absDiff = -absDiff
	}
	pctDiff := PctDiff(a.Price, b.Price)

	opp := ArbitrageOpportunity{
		Symbol:      a.Symbol,
		VenueA:      a.Venue,
		VenueB:      b.Venue,
		VenueAPrice: a.Price,
		VenueBPrice: b.Price,
		VolumeA:     a.Volume,
		VolumeB:     b.Volume,
		AbsDiff:     absDiff,
		PctDiff:     pctDiff,
		Score:       ArbitrageScore(pctDiff, a.Volume, b.Volume, p.Score),
		ObservedAt:  now,
	}
	cost := RoundTripCost(opp.BuyPrice(), p.CostPerSidePct)
	opp.Profitable = pctDiff >= p.MinPctDiff && opp.AbsDiff > cost
	return opp, true
}

// CalculateArbitrageOpportunities puntúa todos los símbolos del set que
// cotizan en ambos venues y devuelve las oportunidades rankeadas. Los
// símbolos con datos incompletos se omiten sin error.
func CalculateArbitrageOpportunities(quotes QuoteSet, venueA, venueB string, p ArbitrageParams, now time.Time) []ArbitrageOpportunity {
	opps := make([]ArbitrageOpportunity, 0, len(quotes))
	for _, symbol := range quotes.Symbols() {
		a, okA := quotes.Get(symbol, venueA)
		b, okB := quotes.Get(symbol, venueB)
		if !okA || !okB {
			continue
		}
		if opp, ok := ScoreArbitragePair(a, b, p, now); ok {
			opps = append(opps, opp)
		}
	}
	RankArbitrage(opps)
	return opps
}

// ScoreCashFuturesPair puntúa el par contado/futuro de un subyacente.
// Excluye contratos vencidos, fuera de la ventana de días o con premium por
// debajo del mínimo; la exclusión no es un error, simplemente no hay
// oportunidad.
func ScoreCashFuturesPair(cash, futures Quote, ref InstrumentRef, p CashFuturesParams, now time.Time) (CashFuturesOpportunity, bool) {
	if cash.Validate() != nil || futures.Validate() != nil {
		return CashFuturesOpportunity{}, false
	}
	if cash.Stale(now, p.MaxQuoteAge) || futures.Stale(now, p.MaxQuoteAge) {
		return CashFuturesOpportunity{}, false
	}
	if p.MinVolume > 0 && (cash.Volume < p.MinVolume || futures.Volume < p.MinVolume) {
		return CashFuturesOpportunity{}, false
	}

	days := ref.DaysToExpiry(now)
	if days <= 0 {
		return CashFuturesOpportunity{}, false
	}
	if days < p.MinDaysToExpiry {
		return CashFuturesOpportunity{}, false
	}
	if p.MaxDaysToExpiry > 0 && days > p.MaxDaysToExpiry {
		return CashFuturesOpportunity{}, false
	}

	premium := futures.Price - cash.Price
	pctPremium := premium / cash.Price * 100
	if pctPremium < p.MinPremiumPct {
		return CashFuturesOpportunity{}, false
	}

	return CashFuturesOpportunity{
		Symbol:            cash.Symbol,
		CashVenue:         cash.Venue,
		FuturesVenue:      futures.Venue,
		FuturesSymbol:     ref.FuturesSymbol,
		CashPrice:         cash.Price,
		FuturesPrice:      futures.Price,
		CashVolume:        cash.Volume,
		FuturesVolume:     futures.Volume,
		Premium:           premium,
		PctPremium:        pctPremium,
		AnnualizedPremium: AnnualizedPremium(pctPremium, days),
		DaysToExpiry:      days,
		Expiry:            ref.Expiry,
		LotSize:           ref.LotSize,
		Score:             CashFuturesScore(pctPremium, days, p.HoldingWindowDays, cash.Volume, futures.Volume, p.Score),
		ObservedAt:        now,
	}, true
}

// CalculateCashFuturesOpportunities puntúa todos los subyacentes con quote
// de contado, fila de referencia y quote del futuro. El futuro se busca en
// el set de futuros por su tradingsymbol.
func CalculateCashFuturesOpportunities(cash, futures QuoteSet, refs map[string]InstrumentRef, cashVenue, futuresVenue string, p CashFuturesParams, now time.Time) []CashFuturesOpportunity {
	opps := make([]CashFuturesOpportunity, 0, len(refs))
	for _, symbol := range cash.Symbols() {
		ref, ok := refs[symbol]
		if !ok {
			continue
		}
		cq, okC := cash.Get(symbol, cashVenue)
		fq, okF := futures.Get(ref.FuturesSymbol, futuresVenue)
		if !okC || !okF {
			continue
		}
		if opp, ok := ScoreCashFuturesPair(cq, fq, ref, p, now); ok {
			opps = append(opps, opp)
		}
	}
	RankCashFutures(opps)
	return opps
}

// RankArbitrage ordena in-place por score descendente, con desempate por
// diferencia absoluta descendente y símbolo ascendente. El mismo input
// produce siempre el mismo orden, venga del camino secuencial o del pool.
func RankArbitrage(opps []ArbitrageOpportunity) {
	sort.Slice(opps, func(i, j int) bool {
		if opps[i].Score != opps[j].Score {
			return opps[i].Score > opps[j].Score
		}
		if opps[i].AbsDiff != opps[j].AbsDiff {
			return opps[i].AbsDiff > opps[j].AbsDiff
		}
		return opps[i].Symbol < opps[j].Symbol
	})
}

// RankCashFutures ordena in-place por score descendente, con desempate por
// premium anualizado descendente y símbolo ascendente.
func RankCashFutures(opps []CashFuturesOpportunity) {
	sort.Slice(opps, func(i, j int) bool {
		if opps[i].Score != opps[j].Score {
			return opps[i].Score > opps[j].Score
		}
		if opps[i].AnnualizedPremium != opps[j].AnnualizedPremium {
			return opps[i].AnnualizedPremium > opps[j].AnnualizedPremium
		}
		return opps[i].Symbol < opps[j].Symbol
	})
}
