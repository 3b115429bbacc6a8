package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyScan imprime las oportunidades del ciclo en el modo configurado.
func (c *Console) NotifyScan(_ context.Context, arb []domain.ArbitrageOpportunity, cf []domain.CashFuturesOpportunity) error {
	if len(arb) == 0 && len(cf) == 0 {
		fmt.Fprintf(c.out, "[%s] sin oportunidades en este ciclo\n", time.Now().Format("15:04:05"))
		return nil
	}

	if c.table {
		c.printFull(arb, cf)
	} else {
		c.printCompact(arb, cf)
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(arb []domain.ArbitrageOpportunity, cf []domain.CashFuturesOpportunity) {
	now := time.Now().Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] arb %d (%d prof) | cf %d", now, len(arb), countProfitable(arb), len(cf))

	if len(arb) > 0 {
		top := arb[0]
		fmt.Fprintf(&sb, " | top arb: %s %.3f%% s%.0f", top.Symbol, top.PctDiff, top.Score)
	}
	if len(cf) > 0 {
		top := cf[0]
		fmt.Fprintf(&sb, " | top cf: %s %.1f%%/año s%.0f", top.Symbol, top.AnnualizedPremium, top.Score)
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime las tablas de ambas estrategias.
func (c *Console) printFull(arb []domain.ArbitrageOpportunity, cf []domain.CashFuturesOpportunity) {
	now := time.Now().Format("15:04:05")
	fmt.Fprintf(c.out, "\n[%s] %d spreads entre venues — %d profitable | %d premiums cash-futures\n",
		now, len(arb), countProfitable(arb), len(cf))

	if len(arb) > 0 {
		c.printArbitrageTable(arb)
	}
	if len(cf) > 0 {
		c.printCashFuturesTable(cf)
	}
}

// printArbitrageTable imprime la tabla de spreads entre venues.
func (c *Console) printArbitrageTable(opps []domain.ArbitrageOpportunity) {
	fmt.Fprintln(c.out, "\n── ARBITRAJE ENTRE VENUES ──")

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Símbolo", "Compra", "Venta", "Dif", "Dif%", "Score", "Prof")

	for i, opp := range opps {
		table.Append(
			fmt.Sprintf("%d", i+1),
			opp.Symbol,
			fmt.Sprintf("%s %.2f", opp.BuyVenue(), opp.BuyPrice()),
			fmt.Sprintf("%s %.2f", opp.SellVenue(), opp.SellPrice()),
			fmt.Sprintf("%.2f", opp.AbsDiff),
			fmt.Sprintf("%.3f", opp.PctDiff),
			fmt.Sprintf("%.1f", opp.Score),
			profitMark(opp.Profitable),
		)
	}
	table.Render()

	fmt.Fprintln(c.out, "  Dif% = diferencia sobre el precio menor | Prof = supera umbral y coste de ida y vuelta")
}

// printCashFuturesTable imprime la tabla de premiums contado-futuro.
func (c *Console) printCashFuturesTable(opps []domain.CashFuturesOpportunity) {
	fmt.Fprintln(c.out, "\n── CASH-FUTURES ──")

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Símbolo", "Contado", "Futuro", "Prem", "Prem%", "Anual%", "Días", "Lote", "Score")

	for i, opp := range opps {
		table.Append(
			fmt.Sprintf("%d", i+1),
			opp.Symbol,
			fmt.Sprintf("%.2f", opp.CashPrice),
			fmt.Sprintf("%.2f", opp.FuturesPrice),
			fmt.Sprintf("%.2f", opp.Premium),
			fmt.Sprintf("%.3f", opp.PctPremium),
			fmt.Sprintf("%.1f", opp.AnnualizedPremium),
			fmt.Sprintf("%d", opp.DaysToExpiry),
			fmt.Sprintf("%d", opp.LotSize),
			fmt.Sprintf("%.1f", opp.Score),
		)
	}
	table.Render()

	fmt.Fprintln(c.out, "  Anual% = premium anualizado a 365 días | Días = días naturales hasta vencimiento")
}

// --- helpers ---

func countProfitable(opps []domain.ArbitrageOpportunity) int {
	n := 0
	for _, o := range opps {
		if o.Profitable {
			n++
		}
	}
	return n
}

func profitMark(profitable bool) string {
	if profitable {
		return "✓"
	}
	return "✗"
}
