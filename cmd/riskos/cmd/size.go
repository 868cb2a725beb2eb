package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskos/engine"
)

var sizeCmd = &cobra.Command{
	Use:   "size <entry> <stop>",
	Short: "Recommend a share count for an entry and stop",
	Long: `Size a new position from the active 1R unit, capped by the maximum
position size. The remaining TOR budget is checked too.

Example:
  riskos size 100 95`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := parseFloat("entry", args[0])
		if err != nil {
			return err
		}
		stop, err := parseFloat("stop", args[1])
		if err != nil {
			return err
		}

		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			sz, err := e.Size(ctx, entry, stop)
			if err != nil {
				return err
			}
			if ok, err := printJSON(cmd.OutOrStdout(), sz); ok {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "1R unit:   %.2f\n", sz.ActiveUnit)
			fmt.Fprintf(out, "Stop:      %.2f (%.2f%%)\n", sz.StopDistance, sz.StopDistancePct*100)
			fmt.Fprintf(out, "Shares:    %d", sz.FinalShares)
			if sz.CapBound {
				fmt.Fprintf(out, " (capped from %d)", sz.TheoreticalShares)
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Size:      %.2f (%.1f%% of equity)\n", sz.DollarSize, sz.PctOfEquity*100)
			fmt.Fprintf(out, "Risk:      %.2fR of %.2fR remaining\n", sz.OccupiedR, sz.RemainingTOR)
			for _, t := range sz.Targets {
				fmt.Fprintf(out, "Target %dR: %.2f\n", t.R, t.Price)
			}
			for _, f := range sz.Flags {
				fmt.Fprintf(out, "! %s: %s\n", f.Code, f.Msg)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sizeCmd)
}

func parseFloat(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func parseInt(name, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}
