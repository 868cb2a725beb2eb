package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskos/engine"
	"github.com/rustyeddy/riskos/portfolio"
)

var positionCmd = &cobra.Command{
	Use:     "position",
	Aliases: []string{"pos"},
	Short:   "Manage open positions",
	Long: `Open, adjust and review positions.

Subcommands:
  add     - Open a position or add to an existing one
  stop    - Move the live stop
  be      - Move the stop to break-even
  delete  - Remove a position without recording an exit
  list    - Show open risk per position
  review  - Check positions against recent prices

Examples:
  riskos position add AAPL 100 95 20 --sector Tech
  riskos position stop AAPL 98.5
  riskos position review`,
}

var positionAddCmd = &cobra.Command{
	Use:   "add <symbol> <entry> <stop> <quantity>",
	Short: "Open a position or add to an existing one",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := parseFloat("entry", args[1])
		if err != nil {
			return err
		}
		stop, err := parseFloat("stop", args[2])
		if err != nil {
			return err
		}
		qty, err := parseInt("quantity", args[3])
		if err != nil {
			return err
		}
		f := portfolio.Fill{Symbol: args[0], Entry: entry, Stop: stop, Quantity: qty, Sector: positionSector}

		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			p, err := e.AddPosition(ctx, f)
			if err != nil {
				return err
			}
			return printPosition(cmd, p)
		})
	},
}

var positionStopCmd = &cobra.Command{
	Use:   "stop <symbol> <price>",
	Short: "Move the live stop",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		stop, err := parseFloat("stop", args[1])
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			p, err := e.UpdateStop(ctx, args[0], stop)
			if err != nil {
				return err
			}
			return printPosition(cmd, p)
		})
	},
}

var positionBreakEvenCmd = &cobra.Command{
	Use:     "be <symbol>",
	Aliases: []string{"breakeven"},
	Short:   "Move the stop to the entry price",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			p, err := e.MoveToBreakEven(ctx, args[0])
			if err != nil {
				return err
			}
			return printPosition(cmd, p)
		})
	},
}

var positionDeleteCmd = &cobra.Command{
	Use:   "delete <symbol>",
	Short: "Remove a position without recording an exit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			if err := e.DeletePosition(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", portfolio.NormalizeSymbol(args[0]))
			return nil
		})
	},
}

var positionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show open risk per position",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			ov, err := e.Overview(ctx)
			if err != nil {
				return err
			}
			if ok, err := printJSON(cmd.OutOrStdout(), ov); ok {
				return err
			}
			return printOverview(cmd, ov)
		})
	},
}

var positionReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Check positions for +1R, breakdowns and stale holds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			as, err := e.Review(ctx)
			if err != nil {
				return err
			}
			if ok, err := printJSON(cmd.OutOrStdout(), as); ok {
				return err
			}

			out := cmd.OutOrStdout()
			for _, a := range as {
				if len(a.Alerts) == 0 {
					fmt.Fprintf(out, "%-6s ok\n", a.Symbol)
					continue
				}
				for _, al := range a.Alerts {
					fmt.Fprintf(out, "%-6s %s: %s\n", a.Symbol, al.Code, al.Msg)
				}
			}
			return nil
		})
	},
}

var positionSector string

func init() {
	rootCmd.AddCommand(positionCmd)
	positionCmd.AddCommand(positionAddCmd, positionStopCmd, positionBreakEvenCmd,
		positionDeleteCmd, positionListCmd, positionReviewCmd)

	positionAddCmd.Flags().StringVar(&positionSector, "sector", "", "sector label for concentration checks")
}

func printPosition(cmd *cobra.Command, p portfolio.Position) error {
	if ok, err := printJSON(cmd.OutOrStdout(), p); ok {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d @ %.2f stop %.2f (initial %.2f) since %s\n",
		p.Symbol, p.Quantity, p.EntryPrice, p.StopLoss, p.InitialStopLoss, p.EntryDate)
	return nil
}

func printOverview(cmd *cobra.Command, ov engine.Overview) error {
	printSession(cmd, ov.Session)
	out := cmd.OutOrStdout()
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tQTY\tENTRY\tSTOP\tRISK\tOPEN R\tSECTOR")
	for _, x := range ov.Portfolio.Exposures {
		risk := fmt.Sprintf("%.2f", x.RiskAmount)
		if x.Protected {
			risk = "protected"
		}
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%s\t%.2f\t%s\n",
			x.Symbol, x.Quantity, x.EntryPrice, x.StopLoss, risk, x.OpenR, x.Sector)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nTOR %.2fR of %.1fR (%.2fR space)\n", ov.Portfolio.TOR, ov.Portfolio.Limit, ov.Portfolio.Space)
	if ov.Portfolio.OverLimit() {
		fmt.Fprintln(out, "! total open risk is over the regime limit")
	}
	for _, s := range ov.Sectors {
		fmt.Fprintf(out, "! %d positions in %s\n", s.Count, s.Sector)
	}
	return nil
}
