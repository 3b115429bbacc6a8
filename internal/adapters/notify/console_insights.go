package notify

import (
	"fmt"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

// InsightsInput agrupa los datos del informe histórico.
type InsightsInput struct {
	LookbackDays   int
	Arbitrage      domain.ArbitrageInsights
	TopArbitrage   []domain.SymbolSpreadStats
	CashFutures    domain.CashFuturesInsights
	TopCashFutures []domain.SymbolPremiumStats
	Executions     domain.ExecutionStats
}

// PrintInsights imprime el análisis del histórico persistido.
func (c *Console) PrintInsights(in InsightsInput) {
	fmt.Fprintf(c.out, "\n╔══════════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(c.out, "║              INSIGHTS — últimos %3d días                     ║\n", in.LookbackDays)
	fmt.Fprintf(c.out, "╚══════════════════════════════════════════════════════════════╝\n")

	c.printArbitrageInsights(in.Arbitrage, in.TopArbitrage)
	c.printCashFuturesInsights(in.CashFutures, in.TopCashFutures)
	c.printExecutionInsights(in.Executions)

	fmt.Fprintln(c.out, "\n  sesión NSE/BSE: 09:15-15:30 IST; los timestamps del histórico van en UTC")
	fmt.Fprintln(c.out)
}

// printArbitrageInsights imprime el resumen y el top-N de spreads.
func (c *Console) printArbitrageInsights(ins domain.ArbitrageInsights, top []domain.SymbolSpreadStats) {
	fmt.Fprintf(c.out, "\n── SPREADS ENTRE VENUES ──\n")
	if ins.TotalRecords == 0 {
		fmt.Fprintln(c.out, "  sin histórico en la ventana")
		return
	}

	fmt.Fprintf(c.out, "  Observaciones: %d en %d símbolos\n", ins.TotalRecords, ins.UniqueSymbols)
	fmt.Fprintf(c.out, "  Spread medio:  %.3f%% (mín %.3f%%, máx %.3f%%)\n",
		ins.AvgPctDiff, ins.MinPctDiff, ins.MaxPctDiff)
	fmt.Fprintf(c.out, "  Profitable:    %d (%.1f%% de las observaciones)\n",
		ins.ProfitableCount, ins.ProfitableRate)
	fmt.Fprintf(c.out, "  Mejor símbolo: %s (%.3f%% de media)\n", ins.BestSymbol, ins.BestSymbolAvg)
	fmt.Fprintf(c.out, "  Tendencia:     %s%s\n", ins.Trend, trendDetail(ins.Trend, ins.TrendChangePct))

	if len(top) == 0 {
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Símbolo", "Obs", "Dif% media", "Dif% máx", "Score medio", "Prof%")
	for i, s := range top {
		table.Append(
			fmt.Sprintf("%d", i+1),
			s.Symbol,
			fmt.Sprintf("%d", s.Samples),
			fmt.Sprintf("%.3f", s.AvgPctDiff),
			fmt.Sprintf("%.3f", s.MaxPctDiff),
			fmt.Sprintf("%.1f", s.AvgScore),
			fmt.Sprintf("%.1f", s.ProfitableRate),
		)
	}
	table.Render()
}

// printCashFuturesInsights imprime el resumen y el top-N de premiums.
func (c *Console) printCashFuturesInsights(ins domain.CashFuturesInsights, top []domain.SymbolPremiumStats) {
	fmt.Fprintf(c.out, "\n── PREMIUMS CASH-FUTURES ──\n")
	if ins.TotalRecords == 0 {
		fmt.Fprintln(c.out, "  sin histórico en la ventana")
		return
	}

	fmt.Fprintf(c.out, "  Observaciones:  %d en %d símbolos\n", ins.TotalRecords, ins.UniqueSymbols)
	fmt.Fprintf(c.out, "  Premium medio:  %.3f%% (máx %.3f%%)\n", ins.AvgPctPremium, ins.MaxPctPremium)
	fmt.Fprintf(c.out, "  Anualizado:     %.1f%% de media, %.1f%% máximo\n", ins.AvgAnnualized, ins.MaxAnnualized)
	fmt.Fprintf(c.out, "  Mejor símbolo:  %s (%.3f%% de media)\n", ins.BestSymbol, ins.BestSymbolAvgPremium)

	if len(top) == 0 {
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Símbolo", "Obs", "Prem% media", "Prem% máx", "Anual% media", "Score medio")
	for i, s := range top {
		table.Append(
			fmt.Sprintf("%d", i+1),
			s.Symbol,
			fmt.Sprintf("%d", s.Samples),
			fmt.Sprintf("%.3f", s.AvgPctPremium),
			fmt.Sprintf("%.3f", s.MaxPctPremium),
			fmt.Sprintf("%.1f", s.AvgAnnualized),
			fmt.Sprintf("%.1f", s.AvgScore),
		)
	}
	table.Render()
	fmt.Fprintln(c.out, "  el ranking ordena por anualizado: es la métrica comparable entre vencimientos distintos")
}

// printExecutionInsights imprime las tasas de éxito de ejecución.
func (c *Console) printExecutionInsights(stats domain.ExecutionStats) {
	fmt.Fprintf(c.out, "\n── EJECUCIÓN ──\n")
	if stats.Total == 0 {
		fmt.Fprintln(c.out, "  sin secuencias en la ventana")
		return
	}

	fmt.Fprintf(c.out, "  Secuencias: %d | completadas %d | leg-1 fallidas %d | PARTIAL %d\n",
		stats.Total, stats.Completed, stats.Leg1Failed, stats.PartialFailures)
	fmt.Fprintf(c.out, "  Tasa de éxito: %.1f%%\n", stats.SuccessRate)
	if stats.PartialFailures > 0 {
		fmt.Fprintln(c.out, "  !! hay secuencias PARTIAL_FAILURE registradas: revisar con -unwind")
	}

	if len(stats.BySymbol) == 0 {
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Símbolo", "Secuencias", "Completadas", "Éxito%")
	for _, s := range stats.BySymbol {
		table.Append(
			s.Symbol,
			fmt.Sprintf("%d", s.Total),
			fmt.Sprintf("%d", s.Completed),
			fmt.Sprintf("%.1f", s.SuccessRate),
		)
	}
	table.Render()
}

// trendDetail añade la variación porcentual cuando hay datos que mostrar.
func trendDetail(trend domain.TrendDirection, changePct float64) string {
	if trend == domain.TrendNoData {
		return ""
	}
	return fmt.Sprintf(" (%+.1f%% reciente vs anterior)", changePct)
}
