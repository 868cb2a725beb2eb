package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskos/account"
	"github.com/rustyeddy/riskos/engine"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show or change the account equity",
	Long: `The account holds the equity every 1R unit is computed from.

Examples:
  riskos account show
  riskos account adjust 2500 --reason deposit
  riskos account adjust -- -1000 --reason withdrawal
  riskos account set 25000`,
}

var accountShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print equity, regime and the 1R unit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			s, err := e.Session(ctx)
			if err != nil {
				return err
			}
			if ok, err := printJSON(cmd.OutOrStdout(), s); ok {
				return err
			}
			printSession(cmd, s)
			return nil
		})
	},
}

var accountAdjustCmd = &cobra.Command{
	Use:   "adjust <amount>",
	Short: "Add a signed amount to equity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := decimal.NewFromString(args[0])
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			a, err := e.AdjustEquity(ctx, amount, accountReason)
			if err != nil {
				return err
			}
			return printAccount(cmd, a)
		})
	},
}

var accountSetCmd = &cobra.Command{
	Use:   "set <equity>",
	Short: "Overwrite equity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := decimal.NewFromString(args[0])
		if err != nil {
			return fmt.Errorf("equity: %w", err)
		}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			a, err := e.ForceEquity(ctx, value)
			if err != nil {
				return err
			}
			return printAccount(cmd, a)
		})
	},
}

var accountReason string

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountShowCmd, accountAdjustCmd, accountSetCmd)

	accountAdjustCmd.Flags().StringVar(&accountReason, "reason", "manual", "why the balance changed")
}

func printAccount(cmd *cobra.Command, a account.Account) error {
	if ok, err := printJSON(cmd.OutOrStdout(), map[string]interface{}{
		"equity":       a.Equity,
		"last_updated": a.LastUpdated,
	}); ok {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Equity: %s (updated %s)\n", a.Equity.StringFixed(2), a.LastUpdated.Format(time.RFC3339))
	return nil
}

func printSession(cmd *cobra.Command, s engine.Session) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Regime:  %s (%s)\n", s.Regime, s.Params.Description)
	fmt.Fprintf(out, "Equity:  %s\n", s.Equity.StringFixed(2))
	fmt.Fprintf(out, "1R unit: %.2f (x%.2f)\n", s.Unit, s.Params.RMultiplier)
	fmt.Fprintf(out, "TOR cap: %.1fR\n", s.Params.TORLimit)
}
