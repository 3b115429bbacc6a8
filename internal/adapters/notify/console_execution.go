package notify

import (
	"fmt"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

// ExecutionReportInput bundles everything PrintExecutionReport needs.
type ExecutionReportInput struct {
	AvailableMargin float64
	MarginReserved  float64
	Rejections      []string // pre-rendered "SYMBOL: reason" lines
	Sequences       []domain.OrderSequence
	SuccessCount    int
	Leg1Failures    int
	PartialFailures int
	Skipped         int
	Warnings        []string
}

// PrintExecutionReport imprime el resultado de un lote de ejecución real.
func (c *Console) PrintExecutionReport(in ExecutionReportInput) {
	fmt.Fprintf(c.out, "\n╔══════════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(c.out, "║                   ORDER EXECUTION REPORT                     ║\n")
	fmt.Fprintf(c.out, "╚══════════════════════════════════════════════════════════════╝\n\n")

	fmt.Fprintf(c.out, "  Margin:    %.2f available, %.2f reserved by admitted candidates\n",
		in.AvailableMargin, in.MarginReserved)
	fmt.Fprintf(c.out, "  Outcome:   %d completed | %d leg-1 failures | %d PARTIAL | %d skipped\n",
		in.SuccessCount, in.Leg1Failures, in.PartialFailures, in.Skipped)

	if len(in.Rejections) > 0 {
		fmt.Fprintf(c.out, "\n── NOT ADMITTED (%d) ──\n", len(in.Rejections))
		for _, line := range in.Rejections {
			fmt.Fprintf(c.out, "  %s\n", line)
		}
	}

	if len(in.Sequences) > 0 {
		fmt.Fprintf(c.out, "\n── SEQUENCES (%d) ──\n", len(in.Sequences))

		table := tablewriter.NewWriter(c.out)
		table.Header("#", "Correlation", "Symbol", "Strategy", "State", "Qty", "E[Profit]")
		for i, seq := range in.Sequences {
			table.Append(
				fmt.Sprintf("%d", i+1),
				shortID(seq.CorrelationID),
				seq.Symbol,
				string(seq.Strategy),
				string(seq.State),
				fmt.Sprintf("%d", seq.Quantity),
				fmt.Sprintf("%.2f", seq.ExpectedProfit),
			)
		}
		table.Render()

		for _, seq := range in.Sequences {
			for _, leg := range seq.Legs {
				detail := leg.OrderID
				if !leg.Acked() {
					detail = leg.Message
				}
				fmt.Fprintf(c.out, "  [%s leg %d] %-4s %4d %-10s on %-4s — %-8s %s\n",
					shortID(seq.CorrelationID), leg.Intent.Leg, leg.Intent.Side,
					leg.Intent.Quantity, leg.Intent.Symbol, leg.Intent.Venue,
					leg.Status, detail)
			}
		}
	}

	if len(in.Warnings) > 0 {
		fmt.Fprintln(c.out)
		for _, warn := range in.Warnings {
			fmt.Fprintf(c.out, "  >> %s\n", warn)
		}
	}

	partials := partialSequenceIDs(in.Sequences)
	if len(partials) > 0 {
		fmt.Fprintf(c.out, "\n── ACTION REQUIRED ──\n")
		fmt.Fprintln(c.out, "  PARTIAL_FAILURE sequences hold a live leg without its hedge.")
		for _, id := range partials {
			fmt.Fprintf(c.out, "  flatten with: kitebot -unwind %s\n", id)
		}
	}
	fmt.Fprintln(c.out)
}

// PrintUnwindResult imprime el resultado de aplanar una secuencia.
func (c *Console) PrintUnwindResult(correlationID string, res domain.ExecutionResult) {
	fmt.Fprintf(c.out, "\n── UNWIND %s ──\n", correlationID)
	fmt.Fprintf(c.out, "  Counter order: %s %d %s on %s (%s)\n",
		res.Intent.Side, res.Intent.Quantity, res.Intent.Symbol, res.Intent.Venue, res.Intent.OrderType)

	switch {
	case res.Acked():
		fmt.Fprintf(c.out, "  Status:        ACKED, order id %s — position flattened at market\n", res.OrderID)
	default:
		fmt.Fprintf(c.out, "  Status:        %s — %s\n", res.Status, res.Message)
		fmt.Fprintln(c.out, "  The first leg is STILL live. Retry the unwind or flatten manually.")
	}
	fmt.Fprintln(c.out)
}

// --- helpers ---

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func partialSequenceIDs(seqs []domain.OrderSequence) []string {
	var ids []string
	for _, s := range seqs {
		if s.State == domain.SequencePartialFailure {
			ids = append(ids, s.CorrelationID)
		}
	}
	return ids
}
