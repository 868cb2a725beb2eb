package journal

import (
	"fmt"
	"strings"
)

// FormatRowOrg renders an exit as an Org-mode block suitable for pasting into
// a trading journal. Facts go in the PROPERTIES drawer; the narrative headings
// are left for the trader.
func FormatRowOrg(r Row) string {
	kind := "full"
	if r.Partial {
		kind = "partial"
	}
	heading := fmt.Sprintf("** Exit: %s %s (%s)", r.Symbol, kind, shortID(r.ID))

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":ID: %s\n", r.ID))
	b.WriteString(fmt.Sprintf(":TRADE_ID: %s\n", r.TradeID))
	b.WriteString(fmt.Sprintf(":SYMBOL: %s\n", r.Symbol))
	b.WriteString(fmt.Sprintf(":ENTRY_DATE: %s\n", r.EntryDate))
	b.WriteString(fmt.Sprintf(":EXIT_DATE: %s\n", r.ExitDate))
	b.WriteString(fmt.Sprintf(":ENTRY_PRICE: %.2f\n", r.EntryPrice))
	b.WriteString(fmt.Sprintf(":EXIT_PRICE: %.2f\n", r.ExitPrice))
	b.WriteString(fmt.Sprintf(":EXIT_QTY: %d\n", r.ExitQty))
	b.WriteString(fmt.Sprintf(":R_MULTIPLE: %.2f\n", r.RMultiple))
	b.WriteString(fmt.Sprintf(":REALIZED_PL: %s\n", r.PnL().StringFixed(2)))
	if r.Outcome != "" && r.Outcome != OutcomeOK {
		b.WriteString(fmt.Sprintf(":OUTCOME: %s\n", r.Outcome))
	}
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatRowsOrg renders multiple exits separated by blank lines.
func FormatRowsOrg(rows []Row) string {
	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatRowOrg(r))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}
