package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/riskos/config"
	"github.com/rustyeddy/riskos/engine"
	"github.com/rustyeddy/riskos/market"
	"github.com/rustyeddy/riskos/metrics"
	"github.com/rustyeddy/riskos/store"
)

var rootCmd = &cobra.Command{
	Use:   "riskos",
	Short: "Risk controller for discretionary stock trading",
	Long: `riskos keeps a discretionary trader inside a risk budget.

It provides tools for:
  - Classifying the market regime (GREEN / YELLOW / RED)
  - Sizing positions from entry, stop and the active 1R unit
  - Tracking total open risk (TOR) against the regime limit
  - Recording full and partial exits in an R-multiple ledger
  - Computing expectancy and feeding the win rate back into the regime

State lives in a single SQLite file (--db).`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	cfgFile  string
	dbPath   string
	logLevel string
	asJSON   bool

	cfg *config.Config
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides store.db_path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides log.level)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print results as JSON")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfg, err = config.Load(cfgFile); err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Store.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return nil
}

// noSetup skips config loading for commands that do not touch the store.
func noSetup(*cobra.Command, []string) error { return nil }

// app is everything a command needs to reach the engine.
type app struct {
	engine  *engine.Engine
	metrics *metrics.Recorder
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}

// newProvider puts the rate limiter and breaker in front of the Yahoo
// client and caches what gets through.
func newProvider(rec *metrics.Recorder) (market.Provider, func() error) {
	yahoo := market.NewYahooClient(cfg.Market.BaseURL, cfg.MarketTimeout())
	guarded := market.NewGuarded(yahoo, cfg.Guard())
	guarded.OnFailure = rec.DataFailure

	if cfg.Market.RedisAddr != "" {
		rc := market.DialRedis(cfg.Market.RedisAddr)
		return market.NewCached(guarded, rc, cfg.CacheTTL()), rc.Close
	}
	return market.NewCached(guarded, market.NewMemoryCache(), cfg.CacheTTL()), func() error { return nil }
}

func openApp(ctx context.Context) (*app, error) {
	st, err := store.Open(ctx, cfg.Store.DBPath, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{metrics: metrics.New(), closers: []func() error{st.Close}}
	md, closeMD := newProvider(a.metrics)
	a.closers = append(a.closers, closeMD)
	a.engine = engine.New(st, md, cfg.Engine(), engine.WithObserver(a.metrics))
	return a, nil
}

// withEngine opens the engine for the duration of fn.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *engine.Engine) error) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a.engine)
}

// printJSON writes v when --json is set and reports whether it did.
func printJSON(w io.Writer, v interface{}) (bool, error) {
	if !asJSON {
		return false, nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}
