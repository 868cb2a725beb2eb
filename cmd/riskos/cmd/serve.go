package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskos/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API and Prometheus metrics",
	Long: `Run the HTTP API on server.addr until interrupted. /metrics exposes
equity, TOR and exit counters.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		// prime the gauges before the first scrape
		if _, err := a.engine.Overview(ctx); err != nil {
			return err
		}
		return httpapi.New(a.engine, a.metrics.Handler(), cfg.HTTP()).ListenAndServe(ctx)
	},
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}
