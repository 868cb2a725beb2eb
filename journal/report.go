package journal

import (
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
)

// Report is a point-in-time performance review rendered as Org.
type Report struct {
	Created time.Time
	Regime  string
	Reason  string
	Equity  decimal.Decimal
	TOR     float64
	Limit   float64
	Recent  float64
	Window  int
	Stats   Stats
	Notes   []string
}

var reportOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"money":  func(d decimal.Decimal) string { return d.StringFixed(2) },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var reportOrg = template.Must(template.New("report").Funcs(reportOrgFuncs).Parse(ReportOrgTemplate))

// WriteReportOrg renders rep to w.
func WriteReportOrg(w io.Writer, rep Report) error {
	if err := reportOrg.Execute(w, rep); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

const ReportOrgTemplate = `* REVIEW: {{(orTime .Created).Format "2006-01-02"}} {{.Regime}}
:PROPERTIES:
:REGIME:      {{.Regime}}
:EQUITY:      {{money .Equity}}
:TOR:         {{printf "%.2f" .TOR}}R / {{printf "%.2f" .Limit}}R
:TRADES:      {{.Stats.TotalTrades}}
:WIN_RATE:    {{printf "%.2f" (mul100 .Stats.WinRate)}}
:EXPECTANCY:  {{printf "%.2f" .Stats.Expectancy}}
:NET_PL:      {{money .Stats.NetPnL}}
:PROFIT_FAC:  {{if ne .Stats.ProfitFactor 0.0}}{{printf "%.2f" .Stats.ProfitFactor}}{{else}}(no losses){{end}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:
{{- if .Reason}}

Regime: {{.Reason}}
{{- end}}

** Performance Summary
- Expectancy:       *{{printf "%.2f" .Stats.Expectancy}}R*
- Win Rate:         *{{printf "%.2f" (mul100 .Stats.WinRate)}}%*
- Recent Win Rate:  *{{printf "%.0f" (mul100 .Recent)}}%* (last {{.Window}} exits)
- Gross Profit:     *{{money .Stats.GrossProfit}}*
- Gross Loss:       *{{money .Stats.GrossLoss}}*

** Trades
| Trade | Exits | Qty | R | P/L |
|-------+-------+-----+---+-----|
{{- range .Stats.Trades }}
| {{if .TradeID}}{{.TradeID}}{{else}}{{.Symbol}} (legacy){{end}} | {{.Exits}} | {{.Quantity}} | {{printf "%.2f" .TotalR}} | {{money .PnL}} |
{{- end }}

{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
