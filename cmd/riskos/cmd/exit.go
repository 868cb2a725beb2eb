package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskos/engine"
	"github.com/rustyeddy/riskos/journal"
)

var exitCmd = &cobra.Command{
	Use:   "exit <symbol> <price>",
	Short: "Record a full or partial exit",
	Long: `Sell shares of an open position. The ledger row, the equity credit
and the position change are saved together.

Examples:
  riskos exit AAPL 110          # close the whole position
  riskos exit AAPL 110 --qty 5  # partial exit`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := parseFloat("price", args[1])
		if err != nil {
			return err
		}
		partial := cmd.Flags().Changed("qty")

		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			var ex journal.Exit
			if partial {
				ex, err = e.Exit(ctx, args[0], price, exitQty)
			} else {
				ex, err = e.Close(ctx, args[0], price)
			}
			if err != nil {
				return err
			}
			if ok, err := printJSON(cmd.OutOrStdout(), ex); ok {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Exit %s %d @ %.2f: %+.2fR, P&L %s\n",
				ex.Row.Symbol, ex.Row.ExitQty, ex.Row.ExitPrice, ex.Row.RMultiple, ex.Credit.StringFixed(2))
			if ex.Row.Outcome == journal.OutcomeDegenerateRisk {
				fmt.Fprintln(out, "! no initial risk on record; R recorded as 0")
			}
			if ex.Closed {
				fmt.Fprintln(out, "Position closed")
			} else {
				fmt.Fprintf(out, "%d shares remain\n", ex.Remaining.Quantity)
			}
			return nil
		})
	},
}

var exitQty int

func init() {
	rootCmd.AddCommand(exitCmd)
	exitCmd.Flags().IntVar(&exitQty, "qty", 0, "shares to sell (default: the whole position)")
}
