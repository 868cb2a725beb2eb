package journal

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// TradeSummary is one logical trade, the exits sharing a trade id.
type TradeSummary struct {
	TradeID  string          `json:"trade_id"`
	Symbol   string          `json:"symbol"`
	Exits    int             `json:"exits"`
	Quantity int             `json:"quantity"`
	TotalR   float64         `json:"total_r"`
	PnL      decimal.Decimal `json:"pnl"`
	LastExit string          `json:"last_exit"`
	Legacy   bool            `json:"legacy,omitempty"`
}

// Stats summarises realized performance over logical trades.
type Stats struct {
	Expectancy  float64         `json:"expectancy"`
	WinRate     float64         `json:"win_rate"`
	TotalTrades int             `json:"total_trades"`
	NetPnL      decimal.Decimal `json:"net_pnl"`
	GrossProfit decimal.Decimal `json:"gross_profit"`
	GrossLoss   decimal.Decimal `json:"gross_loss"`
	// ProfitFactor is GrossProfit / GrossLoss, 0 while there are no losses.
	ProfitFactor float64        `json:"profit_factor"`
	Trades       []TradeSummary `json:"trades"`
}

// ComputeExpectancy groups rows by trade id and weights each exit's R by
// its share of the trade's exited quantity. Legacy rows without a trade id
// are trades of their own with weight 1.
func ComputeExpectancy(rows []Row) Stats {
	type group struct {
		sum  TradeSummary
		rows []Row
	}

	var order []string
	groups := map[string]*group{}
	for i, r := range rows {
		key := r.TradeID
		if key == "" {
			key = "\x00legacy-" + r.ID + "-" + strconv.Itoa(i)
		}
		g, ok := groups[key]
		if !ok {
			g = &group{sum: TradeSummary{TradeID: r.TradeID, Symbol: r.Symbol, Legacy: r.TradeID == ""}}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, r)
	}

	st := Stats{
		NetPnL:      decimal.Zero,
		GrossProfit: decimal.Zero,
		GrossLoss:   decimal.Zero,
	}
	wins := 0
	totalR := 0.0

	for _, key := range order {
		g := groups[key]
		s := g.sum
		s.PnL = decimal.Zero

		for _, r := range g.rows {
			s.Quantity += r.ExitQty
			s.PnL = s.PnL.Add(r.PnL())
			if r.ExitDate > s.LastExit {
				s.LastExit = r.ExitDate
			}
		}
		s.Exits = len(g.rows)

		switch {
		case s.Legacy:
			s.TotalR = g.rows[0].RMultiple
		case s.Quantity != 0:
			for _, r := range g.rows {
				s.TotalR += r.RMultiple * float64(r.ExitQty) / float64(s.Quantity)
			}
		}

		if s.TotalR > 0 {
			wins++
		}
		totalR += s.TotalR

		st.NetPnL = st.NetPnL.Add(s.PnL)
		if s.PnL.IsPositive() {
			st.GrossProfit = st.GrossProfit.Add(s.PnL)
		} else {
			st.GrossLoss = st.GrossLoss.Add(s.PnL.Neg())
		}
		st.Trades = append(st.Trades, s)
	}

	st.TotalTrades = len(st.Trades)
	if st.TotalTrades > 0 {
		st.Expectancy = totalR / float64(st.TotalTrades)
		st.WinRate = float64(wins) / float64(st.TotalTrades)
	}
	if st.GrossLoss.IsPositive() {
		st.ProfitFactor = st.GrossProfit.Div(st.GrossLoss).InexactFloat64()
	}
	return st
}

// RecentWinRate is the fraction of the k most recent rows, by exit date and
// then id, with a positive R. With fewer than k rows it is 1.
func RecentWinRate(rows []Row, k int) float64 {
	if k <= 0 || len(rows) < k {
		return 1
	}

	recent := append([]Row(nil), rows...)
	SortRecentFirst(recent)

	wins := 0
	for _, r := range recent[:k] {
		if r.RMultiple > 0 {
			wins++
		}
	}
	return float64(wins) / float64(k)
}

// SortRecentFirst orders rows by exit date then id, newest first.
func SortRecentFirst(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ExitDate != rows[j].ExitDate {
			return rows[i].ExitDate > rows[j].ExitDate
		}
		return rows[i].ID > rows[j].ID
	})
}
