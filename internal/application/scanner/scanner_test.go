package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kitebot/internal/domain"
	"github.com/alejandrodnm/kitebot/internal/ports"
)

var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

// --- fakes ---

type fakeQuoteProvider struct {
	cash    domain.QuoteSet
	futures domain.QuoteSet
	cashErr error
	futErr  error
}

func (f *fakeQuoteProvider) Quotes(_ context.Context, venues, _ []string) (domain.QuoteSet, error) {
	if len(venues) == 1 && venues[0] == "NFO" {
		return f.futures, f.futErr
	}
	return f.cash, f.cashErr
}

type fakeInstrumentProvider struct {
	refs map[string]domain.InstrumentRef
	err  error
}

func (f *fakeInstrumentProvider) FuturesRefs(context.Context, []string) (map[string]domain.InstrumentRef, error) {
	return f.refs, f.err
}

type fakeNotifier struct {
	arb []domain.ArbitrageOpportunity
	cf  []domain.CashFuturesOpportunity
}

func (f *fakeNotifier) NotifyScan(_ context.Context, arb []domain.ArbitrageOpportunity, cf []domain.CashFuturesOpportunity) error {
	f.arb = arb
	f.cf = cf
	return nil
}

// fakeStore implementa solo los saves que usa el scanner; el resto del
// port no se toca en estos tests.
type fakeStore struct {
	ports.SpreadStore
	arbSaves [][]domain.ArbitrageOpportunity
	cfSaves  [][]domain.CashFuturesOpportunity
}

func (f *fakeStore) SaveArbitrageSpreads(_ context.Context, opps []domain.ArbitrageOpportunity) error {
	f.arbSaves = append(f.arbSaves, opps)
	return nil
}

func (f *fakeStore) SaveCashFuturesSpreads(_ context.Context, opps []domain.CashFuturesOpportunity) error {
	f.cfSaves = append(f.cfSaves, opps)
	return nil
}

// --- helpers ---

func quoteAt(symbol, venue string, price, volume float64) domain.Quote {
	return domain.Quote{Symbol: symbol, Venue: venue, Price: price, Volume: volume, Timestamp: testNow}
}

func testConfig() Config {
	return Config{
		ScanInterval: time.Second,
		Symbols:      []string{"RELIANCE", "TCS"},
		VenueA:       "NSE",
		VenueB:       "BSE",
		FuturesVenue: "NFO",
		Workers:      4,
		Arbitrage: domain.ArbitrageParams{
			MinPctDiff:     0.3,
			CostPerSidePct: 0.05,
			Score:          domain.DefaultScoreParams(),
		},
		CashFutures: domain.CashFuturesParams{
			MinPremiumPct:     0.1,
			MinDaysToExpiry:   1,
			HoldingWindowDays: 7,
			Score:             domain.DefaultScoreParams(),
		},
	}
}

func testQuotes() (*fakeQuoteProvider, *fakeInstrumentProvider) {
	cash := make(domain.QuoteSet)
	cash.Put(quoteAt("RELIANCE", "NSE", 100.00, 50_000))
	cash.Put(quoteAt("RELIANCE", "BSE", 100.60, 60_000))
	cash.Put(quoteAt("TCS", "NSE", 3000.00, 40_000))
	cash.Put(quoteAt("TCS", "BSE", 3001.00, 40_000))

	// RunOnce puntúa contra el reloj real, así que el vencimiento se ancla a él
	expiry := time.Now().UTC().AddDate(0, 0, 15)
	refs := map[string]domain.InstrumentRef{
		"RELIANCE": {
			Symbol:        "RELIANCE",
			FuturesSymbol: domain.FormatFuturesSymbol("RELIANCE", expiry),
			Exchange:      "NFO",
			Expiry:        expiry,
			LotSize:       250,
		},
	}

	futures := make(domain.QuoteSet)
	futures.Put(quoteAt(refs["RELIANCE"].FuturesSymbol, "NFO", 101.00, 30_000))

	return &fakeQuoteProvider{cash: cash, futures: futures}, &fakeInstrumentProvider{refs: refs}
}

// --- tests ---

func TestScanner_RunOnce_ScoresBothStrategies(t *testing.T) {
	quotes, instruments := testQuotes()
	s := New(testConfig(), quotes, instruments, nil, &fakeNotifier{})

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Arbitrage, 2)
	// RELIANCE: 0.60% > TCS: 0.033% → primero por score
	assert.Equal(t, "RELIANCE", res.Arbitrage[0].Symbol)
	assert.True(t, res.Arbitrage[0].Profitable)
	assert.False(t, res.Arbitrage[1].Profitable)

	require.Len(t, res.CashFutures, 1)
	assert.Equal(t, "RELIANCE", res.CashFutures[0].Symbol)
	// premium 1.00 sobre 100.00 = 1.0%
	assert.InDelta(t, 1.0, res.CashFutures[0].PctPremium, 0.0001)
	assert.Equal(t, 15, res.CashFutures[0].DaysToExpiry)
}

func TestScanner_RunOnce_CashQuotesFailureIsError(t *testing.T) {
	quotes, instruments := testQuotes()
	quotes.cashErr = errors.New("gateway timeout")
	s := New(testConfig(), quotes, instruments, nil, &fakeNotifier{})

	_, err := s.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestScanner_RunOnce_FuturesFailureDegradesToArbitrageOnly(t *testing.T) {
	quotes, instruments := testQuotes()
	instruments.err = errors.New("instrument dump unavailable")
	s := New(testConfig(), quotes, instruments, nil, &fakeNotifier{})

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err, "el fallo de futuros no tira el ciclo de cash")
	assert.Len(t, res.Arbitrage, 2)
	assert.Empty(t, res.CashFutures)
}

func TestScanner_RunOnce_BusyWhileCycleInFlight(t *testing.T) {
	quotes, instruments := testQuotes()
	s := New(testConfig(), quotes, instruments, nil, &fakeNotifier{})

	s.inFlight.Store(true)
	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, domain.ErrBusy)

	s.inFlight.Store(false)
	_, err = s.RunOnce(context.Background())
	assert.NoError(t, err)
}

func TestScanner_RunCycle_NotifiesAndPersists(t *testing.T) {
	quotes, instruments := testQuotes()
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	s := New(testConfig(), quotes, instruments, store, notifier)

	require.NoError(t, s.runCycle(context.Background()))

	assert.Len(t, notifier.arb, 2)
	assert.Len(t, notifier.cf, 1)
	require.Len(t, store.arbSaves, 1)
	require.Len(t, store.cfSaves, 1)
	assert.Len(t, store.arbSaves[0], 2)
}

func TestScanner_EmitSpreadAlerts_TracksNewProfitable(t *testing.T) {
	quotes, instruments := testQuotes()
	s := New(testConfig(), quotes, instruments, nil, &fakeNotifier{})

	opps := []domain.ArbitrageOpportunity{
		{Symbol: "RELIANCE", Profitable: true},
		{Symbol: "TCS", Profitable: false},
	}
	s.emitSpreadAlerts(opps)
	assert.True(t, s.previousProfitable["RELIANCE"])
	assert.False(t, s.previousProfitable["TCS"])

	// el símbolo deja de ser profitable → sale del set
	s.emitSpreadAlerts(nil)
	assert.Empty(t, s.previousProfitable)
}

// El pool y el camino secuencial deben producir exactamente el mismo
// resultado: mismo contenido y mismo orden.
func TestScoreArbitrageConcurrent_MatchesSequential(t *testing.T) {
	cfg := testConfig()
	quotes := make(domain.QuoteSet)
	for i := 0; i < 40; i++ {
		sym := fmt.Sprintf("SYM%02d", i)
		base := 100.0 + float64(i)
		quotes.Put(quoteAt(sym, "NSE", base, float64(1000*(i+1))))
		quotes.Put(quoteAt(sym, "BSE", base+0.5, float64(1200*(i+1))))
	}

	sequential := domain.CalculateArbitrageOpportunities(quotes, "NSE", "BSE", cfg.Arbitrage, testNow)

	for _, workers := range []int{1, 4, 16} {
		cfg.Workers = workers
		concurrent := scoreArbitrageConcurrent(context.Background(), quotes, cfg, testNow)
		assert.Equal(t, sequential, concurrent, "workers=%d", workers)
	}
}

func TestScoreCashFuturesConcurrent_MatchesSequential(t *testing.T) {
	cfg := testConfig()
	expiry := testNow.AddDate(0, 0, 20)

	cash := make(domain.QuoteSet)
	futures := make(domain.QuoteSet)
	refs := make(map[string]domain.InstrumentRef)
	for i := 0; i < 25; i++ {
		sym := fmt.Sprintf("SYM%02d", i)
		ref := domain.InstrumentRef{
			Symbol:        sym,
			FuturesSymbol: domain.FormatFuturesSymbol(sym, expiry),
			Exchange:      "NFO",
			Expiry:        expiry,
			LotSize:       100 + i,
		}
		refs[sym] = ref
		base := 500.0 + float64(i)*10
		cash.Put(quoteAt(sym, "NSE", base, float64(5000*(i+1))))
		futures.Put(quoteAt(ref.FuturesSymbol, "NFO", base*1.01, float64(4000*(i+1))))
	}

	sequential := domain.CalculateCashFuturesOpportunities(cash, futures, refs, "NSE", "NFO", cfg.CashFutures, testNow)
	require.Len(t, sequential, 25)

	for _, workers := range []int{1, 8} {
		cfg.Workers = workers
		concurrent := scoreCashFuturesConcurrent(context.Background(), cash, futures, refs, cfg, testNow)
		assert.Equal(t, sequential, concurrent, "workers=%d", workers)
	}
}
