package risk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

type fakeAccount struct {
	margin float64
	err    error
}

func (f *fakeAccount) AvailableMargin(context.Context) (float64, error) {
	return f.margin, f.err
}

func testGateConfig() Config {
	return Config{
		MarginRates: map[domain.Product]float64{
			domain.ProductCNC:  1.0,
			domain.ProductMIS:  0.30,
			domain.ProductNRML: 1.0,
		},
		DefaultMarginRate: 0.30,
	}
}

// misCandidate construye un candidato intradía de dos legs cuyo margen es
// qty × price × 0.30 × 2.
func misCandidate(symbol string, price float64, qty int) Candidate {
	return Candidate{
		Symbol:   symbol,
		Strategy: domain.StrategyArbitrage,
		Legs: []domain.OrderIntent{
			{Symbol: symbol, Venue: "NSE", Side: domain.SideBuy, Quantity: qty, OrderType: domain.OrderTypeMarket, Product: domain.ProductMIS, Leg: 1},
			{Symbol: symbol, Venue: "BSE", Side: domain.SideSell, Quantity: qty, OrderType: domain.OrderTypeMarket, Product: domain.ProductMIS, Leg: 2},
		},
		ReferencePrice: price,
	}
}

func arbOpp() domain.ArbitrageOpportunity {
	return domain.ArbitrageOpportunity{
		Symbol:      "RELIANCE",
		VenueA:      "NSE",
		VenueB:      "BSE",
		VenueAPrice: 100.60,
		VenueBPrice: 100.00,
		VolumeA:     50_000,
		VolumeB:     60_000,
		AbsDiff:     0.60,
		PctDiff:     0.60,
		Score:       25,
		Profitable:  true,
	}
}

func cfOpp(lotSize int) domain.CashFuturesOpportunity {
	return domain.CashFuturesOpportunity{
		Symbol:        "RELIANCE",
		CashVenue:     "NSE",
		FuturesVenue:  "NFO",
		FuturesSymbol: "RELIANCE26AUG",
		CashPrice:     1000.00,
		FuturesPrice:  1010.00,
		Premium:       10.00,
		PctPremium:    1.0,
		DaysToExpiry:  10,
		LotSize:       lotSize,
		Score:         20,
	}
}

// --- MarginRequired ---

func TestMarginRequired_IntradayPair(t *testing.T) {
	g := New(testGateConfig(), nil)
	// 2 legs × 100 × 10 × 0.30 = 600
	required, err := g.MarginRequired(misCandidate("RELIANCE", 100, 10))
	require.NoError(t, err)
	assert.InDelta(t, 600, required, 0.001)
}

func TestMarginRequired_CashFuturesPair(t *testing.T) {
	g := New(testGateConfig(), nil)
	cand, err := g.NewCashFuturesCandidate(cfOpp(250), 1, domain.OrderTypeLimit)
	require.NoError(t, err)
	// cash CNC: 1000 × 250 × 1.0 = 250000; futuro NRML: 1010 × 250 × 1.0 = 252500
	required, err := g.MarginRequired(cand)
	require.NoError(t, err)
	assert.InDelta(t, 502_500, required, 0.001)
}

func TestMarginRequired_UnknownProductUsesDefault(t *testing.T) {
	g := New(testGateConfig(), nil)
	c := misCandidate("TCS", 200, 10)
	c.Legs[0].Product = "BO" // producto sin mapear
	// leg1: 200×10×0.30 (default) + leg2: 200×10×0.30 = 1200
	required, err := g.MarginRequired(c)
	require.NoError(t, err)
	assert.InDelta(t, 1200, required, 0.001)
}

func TestMarginRequired_DerivativeWithoutLotSize(t *testing.T) {
	g := New(testGateConfig(), nil)
	c := misCandidate("RELIANCE", 1000, 250)
	c.Legs[1].Product = domain.ProductNRML
	c.Legs[1].LotSize = 0

	_, err := g.MarginRequired(c)
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing, "un derivado sin lot size nunca se estima")
}

func TestMarginRequired_NoReferencePrice(t *testing.T) {
	g := New(testGateConfig(), nil)
	c := misCandidate("RELIANCE", 0, 10)
	_, err := g.MarginRequired(c)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

// --- Candidatos ---

func TestNewArbitrageCandidate_BuyLegFirst(t *testing.T) {
	g := New(testGateConfig(), nil)
	cand, err := g.NewArbitrageCandidate(arbOpp(), 10, domain.OrderTypeMarket)
	require.NoError(t, err)

	require.Len(t, cand.Legs, 2)
	// compra en el venue barato (B) primero, venta en el caro (A) después
	assert.Equal(t, domain.SideBuy, cand.Legs[0].Side)
	assert.Equal(t, "BSE", cand.Legs[0].Venue)
	assert.Equal(t, 1, cand.Legs[0].Leg)
	assert.Equal(t, domain.SideSell, cand.Legs[1].Side)
	assert.Equal(t, "NSE", cand.Legs[1].Venue)
	assert.Equal(t, 2, cand.Legs[1].Leg)
	// orden a mercado: sin precio en la leg, referencia en el candidato
	assert.Equal(t, 0.0, cand.Legs[0].Price)
	assert.InDelta(t, 100.00, cand.ReferencePrice, 0.0001)
	// 0.60 × 10 acciones
	assert.InDelta(t, 6.0, cand.ExpectedProfit, 0.0001)
}

func TestNewArbitrageCandidate_LimitCarriesPrices(t *testing.T) {
	g := New(testGateConfig(), nil)
	cand, err := g.NewArbitrageCandidate(arbOpp(), 10, domain.OrderTypeLimit)
	require.NoError(t, err)
	assert.InDelta(t, 100.00, cand.Legs[0].Price, 0.0001)
	assert.InDelta(t, 100.60, cand.Legs[1].Price, 0.0001)
}

func TestNewCashFuturesCandidate_QuantityIsLots(t *testing.T) {
	g := New(testGateConfig(), nil)
	cand, err := g.NewCashFuturesCandidate(cfOpp(250), 2, domain.OrderTypeMarket)
	require.NoError(t, err)

	require.Len(t, cand.Legs, 2)
	assert.Equal(t, 500, cand.Legs[0].Quantity)
	assert.Equal(t, 500, cand.Legs[1].Quantity)
	assert.Equal(t, domain.ProductCNC, cand.Legs[0].Product)
	assert.Equal(t, domain.ProductNRML, cand.Legs[1].Product)
	assert.Equal(t, 250, cand.Legs[1].LotSize)
	assert.Equal(t, "RELIANCE26AUG", cand.Legs[1].Symbol)
	// premium 10 × 500 acciones
	assert.InDelta(t, 5000, cand.ExpectedProfit, 0.0001)
}

func TestNewCashFuturesCandidate_MissingLotSize(t *testing.T) {
	g := New(testGateConfig(), nil)
	_, err := g.NewCashFuturesCandidate(cfOpp(0), 1, domain.OrderTypeMarket)
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
}

func TestNewCashFuturesCandidate_ConfigOverridesLotSize(t *testing.T) {
	cfg := testGateConfig()
	cfg.LotSizes = map[string]int{"RELIANCE": 500}
	g := New(cfg, nil)

	cand, err := g.NewCashFuturesCandidate(cfOpp(250), 1, domain.OrderTypeMarket)
	require.NoError(t, err)
	assert.Equal(t, 500, cand.Legs[0].Quantity, "el override de config manda sobre el dump")
}

// --- AdmitWithin ---

func TestAdmitWithin_GreedyBudget(t *testing.T) {
	g := New(testGateConfig(), nil)
	// cada candidato requiere 500 × 100 × 0.30 × 2 = 30000
	first := misCandidate("RELIANCE", 100, 500)
	second := misCandidate("TCS", 100, 500)

	d := g.AdmitWithin([]Candidate{first, second}, 50_000)

	require.Len(t, d.Admitted, 1)
	assert.Equal(t, "RELIANCE", d.Admitted[0].Symbol)

	require.Len(t, d.Rejected, 1)
	assert.Equal(t, "TCS", d.Rejected[0].Candidate.Symbol)
	assert.ErrorIs(t, d.Rejected[0].Reason, domain.ErrInsufficientMargin)

	var shortfall *domain.MarginShortfallError
	require.ErrorAs(t, d.Rejected[0].Reason, &shortfall)
	assert.InDelta(t, 30_000, shortfall.Required, 0.001)
	assert.InDelta(t, 20_000, shortfall.Available, 0.001, "presupuesto restante tras la primera admisión")

	assert.InDelta(t, 30_000, d.MarginReserved, 0.001)
}

func TestAdmitWithin_ExactFitAdmitted(t *testing.T) {
	g := New(testGateConfig(), nil)
	d := g.AdmitWithin([]Candidate{misCandidate("ITC", 100, 500)}, 30_000)
	assert.Len(t, d.Admitted, 1)
	assert.Empty(t, d.Rejected)
}

func TestAdmitWithin_ConfigMissingRejectedNotAdmitted(t *testing.T) {
	g := New(testGateConfig(), nil)
	broken := misCandidate("RELIANCE", 1000, 250)
	broken.Legs[1].Product = domain.ProductNRML // derivado sin lot size
	healthy := misCandidate("TCS", 100, 10)

	d := g.AdmitWithin([]Candidate{broken, healthy}, 1_000_000)

	require.Len(t, d.Admitted, 1)
	assert.Equal(t, "TCS", d.Admitted[0].Symbol)
	require.Len(t, d.Rejected, 1)
	assert.ErrorIs(t, d.Rejected[0].Reason, domain.ErrConfigurationMissing)
}

func TestAdmitWithin_PreservesRankOrder(t *testing.T) {
	g := New(testGateConfig(), nil)
	cands := []Candidate{
		misCandidate("AAA", 100, 10),
		misCandidate("BBB", 100, 10),
		misCandidate("CCC", 100, 10),
	}
	d := g.AdmitWithin(cands, 1_000_000)
	require.Len(t, d.Admitted, 3)
	assert.Equal(t, "AAA", d.Admitted[0].Symbol)
	assert.Equal(t, "CCC", d.Admitted[2].Symbol)
}

// --- Admit y Recheck contra la cuenta ---

func TestAdmit_FetchesLiveMargin(t *testing.T) {
	g := New(testGateConfig(), &fakeAccount{margin: 50_000})
	d, err := g.Admit(context.Background(), []Candidate{misCandidate("RELIANCE", 100, 500)})
	require.NoError(t, err)
	assert.InDelta(t, 50_000, d.AvailableMargin, 0.001)
	assert.Len(t, d.Admitted, 1)
}

func TestAdmit_AccountFailure(t *testing.T) {
	g := New(testGateConfig(), &fakeAccount{err: errors.New("session expired")})
	_, err := g.Admit(context.Background(), []Candidate{misCandidate("RELIANCE", 100, 500)})
	assert.Error(t, err)
}

func TestRecheck_MarginDroppedSinceAdmission(t *testing.T) {
	account := &fakeAccount{margin: 50_000}
	g := New(testGateConfig(), account)
	cand := misCandidate("RELIANCE", 100, 500) // requiere 30000

	require.NoError(t, g.Recheck(context.Background(), cand))

	// otra posición consumió margen entre la admisión y la ejecución
	account.margin = 25_000
	err := g.Recheck(context.Background(), cand)
	assert.ErrorIs(t, err, domain.ErrInsufficientMargin)

	var shortfall *domain.MarginShortfallError
	require.ErrorAs(t, err, &shortfall)
	assert.InDelta(t, 30_000, shortfall.Required, 0.001)
	assert.InDelta(t, 25_000, shortfall.Available, 0.001)
}
