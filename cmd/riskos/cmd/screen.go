package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskos/market"
	"github.com/rustyeddy/riskos/metrics"
)

var screenCmd = &cobra.Command{
	Use:   "screen <symbols...>",
	Short: "Find volume spikes in a watchlist",
	Long: `Screen a watchlist for symbols whose last session closed up on unusual
volume, above the long-term trend.

A symbol qualifies when:
  - volume >= ratio x its 20 session average volume
  - close > previous close
  - close > its trend moving average (--trend 0 disables)
  - it does not look like an OTC listing (5+ letters ending in F, Y or Q)

Symbols may be separated by spaces or commas.

Example:
  riskos screen TSLA,NVDA,AMD AAPL MSFT --ratio 2.5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbols := splitSymbols(args)
		opts := market.ScreenOptions{Ratio: screenRatio, TrendPeriod: screenTrend}

		return withProvider(cmd, func(ctx context.Context, md market.Provider) error {
			spikes, err := market.VolumeSpikes(ctx, md, symbols, opts)
			if err != nil {
				return err
			}
			if ok, err := printJSON(cmd.OutOrStdout(), spikes); ok {
				return err
			}

			out := cmd.OutOrStdout()
			if len(spikes) == 0 {
				fmt.Fprintf(out, "No spikes among %d symbols\n", len(symbols))
				return nil
			}
			fmt.Fprintf(out, "%-6s %10s %8s %14s %6s\n", "SYMBOL", "CLOSE", "CHANGE", "VOLUME", "xAVG")
			for _, s := range spikes {
				fmt.Fprintf(out, "%-6s %10.2f %7.2f%% %14.0f %6.1f\n",
					s.Symbol, s.Close, (s.Close/s.PrevClose-1)*100, s.Volume, s.Multiple)
			}
			return nil
		})
	},
}

var dataCmd = &cobra.Command{
	Use:   "data <symbol>",
	Short: "Print daily bars with 20 session averages",
	Long: `Print a symbol's daily OHLCV bars with the 20 session average close
(20SMA) and volume (20VMA) as a pipe separated table.

Example:
  riskos data TSLA --since 2024-05-03`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var since time.Time
		if dataSince != "" {
			var err error
			if since, err = time.Parse("2006-01-02", dataSince); err != nil {
				return fmt.Errorf("since: %w", err)
			}
		}
		if dataDays <= 0 {
			return fmt.Errorf("days must be positive, got %d", dataDays)
		}
		symbol := strings.ToUpper(strings.TrimSpace(args[0]))

		return withProvider(cmd, func(ctx context.Context, md market.Provider) error {
			candles, err := md.History(ctx, symbol, dataDays)
			if err != nil {
				return err
			}
			bars := market.WithAverages(candles, since)
			if ok, err := printJSON(cmd.OutOrStdout(), bars); ok {
				return err
			}
			return market.WriteDaily(cmd.OutOrStdout(), symbol, bars)
		})
	},
}

var (
	screenRatio float64
	screenTrend int
	dataDays    int
	dataSince   string
)

func init() {
	rootCmd.AddCommand(screenCmd, dataCmd)

	def := market.DefaultScreenOptions()
	screenCmd.Flags().Float64Var(&screenRatio, "ratio", def.Ratio, "volume multiple of the 20 session average")
	screenCmd.Flags().IntVar(&screenTrend, "trend", def.TrendPeriod, "moving average the close must be above (0 disables)")

	dataCmd.Flags().IntVar(&dataDays, "days", 400, "calendar days of history to fetch")
	dataCmd.Flags().StringVar(&dataSince, "since", "", "only print bars on or after this date (YYYY-MM-DD)")
}

// withProvider runs fn against the guarded, cached market data provider.
// The store is not opened.
func withProvider(cmd *cobra.Command, fn func(ctx context.Context, md market.Provider) error) error {
	md, closeMD := newProvider(metrics.New())
	defer closeMD()
	return fn(cmd.Context(), md)
}

func splitSymbols(args []string) []string {
	var out []string
	for _, a := range args {
		out = append(out, strings.FieldsFunc(a, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})...)
	}
	return out
}
