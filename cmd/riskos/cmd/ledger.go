package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskos/engine"
	"github.com/rustyeddy/riskos/journal"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Query and maintain the trade ledger",
	Long: `The ledger holds one row per exit, partial or full.

Subcommands:
  list    - List exits, newest last
  stats   - Expectancy, win rate and profit factor
  delete  - Delete rows by id
  edit    - Correct fields of one row
  clear   - Delete every row
  export  - Write the ledger as CSV
  import  - Append rows from CSV
  org     - Print rows as Org entries
  report  - Write an Org performance review

Examples:
  riskos ledger stats
  riskos ledger edit 01J0... --exit-price 112.5 --r 2.5
  riskos ledger export -o trades.csv`,
}

var ledgerListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List exits",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			rows, err := e.Ledger(ctx)
			if err != nil {
				return err
			}
			if ok, err := printJSON(cmd.OutOrStdout(), rows); ok {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSYMBOL\tENTRY\tEXIT\tQTY\tR\tP&L\tKIND")
			for _, r := range rows {
				kind := "full"
				if r.Partial {
					kind = "partial"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%+.2f\t%s\t%s\n",
					r.ID, r.Symbol, r.EntryDate, r.ExitDate, r.ExitQty, r.RMultiple, r.PnL().StringFixed(2), kind)
			}
			return tw.Flush()
		})
	},
}

var ledgerStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Expectancy, win rate and profit factor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			perf, err := e.Stats(ctx)
			if err != nil {
				return err
			}
			if ok, err := printJSON(cmd.OutOrStdout(), perf); ok {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Trades:        %d\n", perf.TotalTrades)
			fmt.Fprintf(out, "Expectancy:    %+.2fR\n", perf.Expectancy)
			fmt.Fprintf(out, "Win rate:      %.1f%%\n", perf.WinRate*100)
			fmt.Fprintf(out, "Recent (%d):    %.1f%%\n", perf.Window, perf.RecentWinRate*100)
			fmt.Fprintf(out, "Net P&L:       %s\n", perf.NetPnL.StringFixed(2))
			fmt.Fprintf(out, "Profit factor: %.2f\n", perf.ProfitFactor)
			return nil
		})
	},
}

var ledgerDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete rows by id (equity is not changed)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			n, err := e.DeleteRows(ctx, args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d of %d rows\n", n, len(args))
			return nil
		})
	},
}

var ledgerEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Correct fields of one row",
	Long: `Only the flags given are changed. The R multiple is never recomputed;
pass --r to change it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := correctionFromFlags(cmd)
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			r, err := e.CorrectRow(ctx, args[0], c)
			if err != nil {
				return err
			}
			if ok, err := printJSON(cmd.OutOrStdout(), r); ok {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), journal.FormatRowOrg(r))
			return nil
		})
	},
}

var ledgerClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every row",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !ledgerYes {
			return fmt.Errorf("refusing to clear the ledger without --yes")
		}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			n, err := e.ClearLedger(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d rows\n", n)
			return nil
		})
	},
}

var ledgerExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the ledger as CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			rows, err := e.Ledger(ctx)
			if err != nil {
				return err
			}
			return writeOutput(cmd, func(w io.Writer) error { return journal.WriteCSV(w, rows) })
		})
	},
}

var ledgerImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Append rows from CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		rows, err := journal.ReadCSV(f)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			n, err := e.ImportRows(ctx, rows)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rows\n", n)
			return nil
		})
	},
}

var ledgerOrgCmd = &cobra.Command{
	Use:   "org",
	Short: "Print rows as Org entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			rows, err := e.Ledger(ctx)
			if err != nil {
				return err
			}
			return writeOutput(cmd, func(w io.Writer) error {
				_, err := io.WriteString(w, journal.FormatRowsOrg(rows))
				return err
			})
		})
	},
}

var ledgerReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write an Org performance review",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, e *engine.Engine) error {
			rep, err := e.Report(ctx, ledgerNotes...)
			if err != nil {
				return err
			}
			return writeOutput(cmd, func(w io.Writer) error { return journal.WriteReportOrg(w, rep) })
		})
	},
}

var (
	ledgerYes    bool
	ledgerOutput string
	ledgerNotes  []string

	editEntryDate  string
	editExitDate   string
	editEntryPrice float64
	editExitPrice  float64
	editQty        int
	editR          float64
)

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerListCmd, ledgerStatsCmd, ledgerDeleteCmd, ledgerEditCmd,
		ledgerClearCmd, ledgerExportCmd, ledgerImportCmd, ledgerOrgCmd, ledgerReportCmd)

	ledgerClearCmd.Flags().BoolVar(&ledgerYes, "yes", false, "confirm deleting every row")
	for _, c := range []*cobra.Command{ledgerExportCmd, ledgerOrgCmd, ledgerReportCmd} {
		c.Flags().StringVarP(&ledgerOutput, "output", "o", "", "output file (default stdout)")
	}
	ledgerReportCmd.Flags().StringArrayVar(&ledgerNotes, "note", nil, "note to include (repeatable)")

	fl := ledgerEditCmd.Flags()
	fl.StringVar(&editEntryDate, "entry-date", "", "entry date (YYYY-MM-DD); also regroups the trade")
	fl.StringVar(&editExitDate, "exit-date", "", "exit date (YYYY-MM-DD)")
	fl.Float64Var(&editEntryPrice, "entry-price", 0, "entry price")
	fl.Float64Var(&editExitPrice, "exit-price", 0, "exit price")
	fl.IntVar(&editQty, "qty", 0, "exit quantity")
	fl.Float64Var(&editR, "r", 0, "R multiple")
}

func correctionFromFlags(cmd *cobra.Command) engine.Correction {
	var c engine.Correction
	fl := cmd.Flags()
	if fl.Changed("entry-date") {
		c.EntryDate = &editEntryDate
	}
	if fl.Changed("exit-date") {
		c.ExitDate = &editExitDate
	}
	if fl.Changed("entry-price") {
		c.EntryPrice = &editEntryPrice
	}
	if fl.Changed("exit-price") {
		c.ExitPrice = &editExitPrice
	}
	if fl.Changed("qty") {
		c.ExitQty = &editQty
	}
	if fl.Changed("r") {
		c.RMultiple = &editR
	}
	return c
}

// writeOutput sends fn's output to --output or stdout.
func writeOutput(cmd *cobra.Command, fn func(io.Writer) error) error {
	if ledgerOutput == "" {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(ledgerOutput)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", ledgerOutput)
	return nil
}
