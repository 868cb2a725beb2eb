package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskos/engine"
	"github.com/rustyeddy/riskos/regime"
)

var regimeCmd = &cobra.Command{
	Use:   "regime",
	Short: "Show, set or suggest the market regime",
	Long: `The regime scales the 1R unit and caps total open risk.

  GREEN   full speed   TOR 5R  x1.00
  YELLOW  half speed   TOR 3R  x0.50
  RED     survival     TOR 1R  x0.25

Examples:
  riskos regime show
  riskos regime set yellow
  riskos regime suggest --check distribution --check stop-streak --apply`,
}

var regimeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active regime",
	Args:  cobra.NoArgs,
	RunE:  accountShowCmd.RunE,
}

var regimeSetCmd = &cobra.Command{
	Use:   "set <GREEN|YELLOW|RED>",
	Short: "Override the active regime",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := regime.ParseRegime(args[0])
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			if err := e.SetRegime(ctx, r); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Regime set to %s\n", r)
			return nil
		})
	},
}

var regimeSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Classify the market from trend, checklist and win rate",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := regime.CountChecked(regimeChecks)
		if err != nil {
			return err
		}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			res, err := e.Suggest(ctx, n, regimeApply)
			if ok, jerr := printJSON(cmd.OutOrStdout(), res); ok {
				if jerr != nil {
					return jerr
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Suggested: %s\n", res.Regime)
			fmt.Fprintf(out, "Reason:    %s\n", res.Reason)
			for _, t := range res.Inputs.Proxies {
				fmt.Fprintf(out, "  %-4s close %.2f  sma %.2f\n", t.Symbol, t.Close, t.SMA)
			}
			fmt.Fprintf(out, "Checklist: %d warning signs\n", res.Inputs.Checklist)
			fmt.Fprintf(out, "Win rate:  %.0f%%\n", res.Inputs.WinRate*100)
			if err == nil && regimeApply {
				fmt.Fprintf(out, "Applied %s\n", res.Regime)
			}
			return err
		})
	},
}

var regimeChecklistCmd = &cobra.Command{
	Use:   "checklist",
	Short: "List the behavior checklist keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, s := range regime.Checklist {
			fmt.Fprintf(cmd.OutOrStdout(), "%-18s %s\n", s.Key, s.Label)
		}
		return nil
	},
}

var (
	regimeChecks []string
	regimeApply  bool
)

func init() {
	rootCmd.AddCommand(regimeCmd)
	regimeCmd.AddCommand(regimeShowCmd, regimeSetCmd, regimeSuggestCmd, regimeChecklistCmd)
	regimeChecklistCmd.PersistentPreRunE = noSetup

	regimeSuggestCmd.Flags().StringSliceVar(&regimeChecks, "check", nil, "checked warning sign (repeatable, see 'regime checklist')")
	regimeSuggestCmd.Flags().BoolVar(&regimeApply, "apply", false, "make the suggestion the active regime")
}
