package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kitebot/internal/adapters/notify"
	"github.com/alejandrodnm/kitebot/internal/domain"
)

func makeArb(symbol string, pctDiff float64, profitable bool) domain.ArbitrageOpportunity {
	return domain.ArbitrageOpportunity{
		Symbol:      symbol,
		VenueA:      "NSE",
		VenueB:      "BSE",
		VenueAPrice: 100.00,
		VenueBPrice: 100.00 * (1 + pctDiff/100),
		VolumeA:     50_000,
		VolumeB:     40_000,
		AbsDiff:     pctDiff,
		PctDiff:     pctDiff,
		Score:       pctDiff * 60,
		Profitable:  profitable,
		ObservedAt:  time.Now(),
	}
}

func makeCF(symbol string, annualized float64) domain.CashFuturesOpportunity {
	return domain.CashFuturesOpportunity{
		Symbol:            symbol,
		CashVenue:         "NSE",
		FuturesVenue:      "NFO",
		FuturesSymbol:     symbol + "26AUGFUT",
		CashPrice:         100.00,
		FuturesPrice:      101.00,
		Premium:           1.00,
		PctPremium:        1.0,
		AnnualizedPremium: annualized,
		DaysToExpiry:      10,
		LotSize:           250,
		Score:             55.0,
	}
}

func TestConsole_NotifyScan_TableMode(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	err := n.NotifyScan(context.Background(),
		[]domain.ArbitrageOpportunity{makeArb("RELIANCE", 0.60, true), makeArb("TCS", 0.03, false)},
		[]domain.CashFuturesOpportunity{makeCF("INFY", 36.5)},
	)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "RELIANCE")
	assert.Contains(t, out, "TCS")
	assert.Contains(t, out, "INFY")
	assert.Contains(t, out, "ARBITRAJE ENTRE VENUES")
	assert.Contains(t, out, "CASH-FUTURES")
	assert.Contains(t, out, "1 profitable")
	assert.Contains(t, out, "36.5")
}

func TestConsole_NotifyScan_CompactMode(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	err := n.NotifyScan(context.Background(),
		[]domain.ArbitrageOpportunity{makeArb("RELIANCE", 0.60, true)},
		nil,
	)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "top arb: RELIANCE")
	assert.NotContains(t, out, "ARBITRAJE ENTRE VENUES", "el modo compacto no imprime tablas")
}

func TestConsole_NotifyScan_Empty(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	err := n.NotifyScan(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "sin oportunidades")
}

func TestConsole_PrintExecutionReport_FlagsPartialFailures(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	seq := domain.OrderSequence{
		CorrelationID:  "a1b2c3d4-0000-0000-0000-000000000000",
		Symbol:         "RELIANCE",
		Strategy:       domain.StrategyArbitrage,
		State:          domain.SequencePartialFailure,
		Quantity:       10,
		ExpectedProfit: 6.00,
		Legs: []domain.ExecutionResult{
			{Status: domain.ExecAcked, OrderID: "ORD-1",
				Intent: domain.OrderIntent{Symbol: "RELIANCE", Venue: "NSE", Side: domain.SideBuy, Quantity: 10, Leg: 1}},
			{Status: domain.ExecFailed, Message: "connection reset",
				Intent: domain.OrderIntent{Symbol: "RELIANCE", Venue: "BSE", Side: domain.SideSell, Quantity: 10, Leg: 2}},
		},
	}

	n.PrintExecutionReport(notify.ExecutionReportInput{
		AvailableMargin: 10_000,
		MarginReserved:  600,
		Sequences:       []domain.OrderSequence{seq},
		PartialFailures: 1,
		Warnings:        []string{"history write missed for RELIANCE"},
	})

	out := buf.String()
	assert.Contains(t, out, "PARTIAL_FAILURE")
	assert.Contains(t, out, "-unwind a1b2c3d4-0000-0000-0000-000000000000")
	assert.Contains(t, out, "connection reset")
	assert.Contains(t, out, ">> history write missed for RELIANCE")
}

func TestConsole_PrintUnwindResult_FailedCounterOrderWarns(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	n.PrintUnwindResult("SEQ-1", domain.ExecutionResult{
		Status:  domain.ExecFailed,
		Message: "gateway timeout",
		Intent: domain.OrderIntent{
			Symbol: "RELIANCE", Venue: "NSE", Side: domain.SideSell,
			Quantity: 10, OrderType: domain.OrderTypeMarket, Leg: domain.UnwindLeg,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "UNWIND SEQ-1")
	assert.Contains(t, out, "STILL live")
	assert.Contains(t, out, "gateway timeout")
}

func TestConsole_PrintInsights_RendersAllSections(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	n.PrintInsights(notify.InsightsInput{
		LookbackDays: 7,
		Arbitrage: domain.ArbitrageInsights{
			TotalRecords: 12, UniqueSymbols: 3,
			AvgPctDiff: 0.40, MaxPctDiff: 0.80, MinPctDiff: 0.10,
			ProfitableCount: 4, ProfitableRate: 33.3,
			BestSymbol: "RELIANCE", BestSymbolAvg: 0.52,
			Trend: domain.TrendIncreasing, TrendChangePct: 18.0,
		},
		TopArbitrage: []domain.SymbolSpreadStats{
			{Symbol: "RELIANCE", Samples: 6, AvgPctDiff: 0.52, MaxPctDiff: 0.80, AvgScore: 41.0, ProfitableRate: 50.0},
		},
		CashFutures: domain.CashFuturesInsights{
			TotalRecords: 5, UniqueSymbols: 2,
			AvgPctPremium: 0.9, MaxPctPremium: 1.4,
			AvgAnnualized: 29.5, MaxAnnualized: 40.0,
			BestSymbol: "TCS", BestSymbolAvgPremium: 1.1,
		},
		TopCashFutures: []domain.SymbolPremiumStats{
			{Symbol: "TCS", Samples: 3, AvgPctPremium: 1.1, MaxPctPremium: 1.4, AvgAnnualized: 40.0, AvgScore: 60.0},
		},
		Executions: domain.ExecutionStats{
			Total: 4, Completed: 2, Leg1Failed: 1, PartialFailures: 1, SuccessRate: 50.0,
			BySymbol: []domain.SymbolExecutionStats{
				{Symbol: "RELIANCE", Total: 2, Completed: 2, SuccessRate: 100.0},
			},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "INSIGHTS")
	assert.Contains(t, out, "INCREASING (+18.0% reciente vs anterior)")
	assert.Contains(t, out, "Mejor símbolo: RELIANCE")
	assert.Contains(t, out, "PREMIUMS CASH-FUTURES")
	assert.Contains(t, out, "Tasa de éxito: 50.0%")
	assert.Contains(t, out, "revisar con -unwind")
	assert.Contains(t, out, "09:15-15:30 IST")
}

func TestConsole_PrintInsights_EmptyHistory(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	n.PrintInsights(notify.InsightsInput{LookbackDays: 7})

	out := buf.String()
	assert.Contains(t, out, "sin histórico en la ventana")
	assert.Contains(t, out, "sin secuencias en la ventana")
}
