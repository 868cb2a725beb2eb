package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags puts every scalar flag back to its default between runs.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if strings.Contains(f.Value.Type(), "Slice") || strings.Contains(f.Value.Type(), "Array") {
			return
		}
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--log-level", "warn"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "riskos version "+version)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "riskos.yaml")

	out, err := run(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	out, err = run(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")

	_, err = run(t, "config", "validate", "-f", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTradeWorkflow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "riskos.db")

	out, err := run(t, "--db", db, "size", "100", "95")
	require.NoError(t, err)
	assert.Contains(t, out, "Shares:    20")

	_, err = run(t, "--db", db, "position", "add", "AAPL", "100", "95", "20", "--sector", "Tech")
	require.NoError(t, err)

	out, err = run(t, "--db", db, "position", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "TOR 1.00R of 5.0R")

	out, err = run(t, "--db", db, "exit", "AAPL", "110", "--qty", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "15 shares remain")

	out, err = run(t, "--db", db, "exit", "AAPL", "110")
	require.NoError(t, err)
	assert.Contains(t, out, "Position closed")

	out, err = run(t, "--db", db, "--json", "ledger", "stats")
	require.NoError(t, err)
	var perf struct {
		TotalTrades int     `json:"total_trades"`
		Expectancy  float64 `json:"expectancy"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &perf))
	assert.Equal(t, 1, perf.TotalTrades)
	assert.InDelta(t, 2.0, perf.Expectancy, 1e-9)

	out, err = run(t, "--db", db, "account", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Equity:  10200.00")

	csv := filepath.Join(t.TempDir(), "ledger.csv")
	_, err = run(t, "--db", db, "ledger", "export", "-o", csv)
	require.NoError(t, err)
	data, err := os.ReadFile(csv)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"))

	_, err = run(t, "--db", db, "ledger", "clear")
	assert.Error(t, err)
	out, err = run(t, "--db", db, "ledger", "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 2 rows")

	out, err = run(t, "--db", db, "ledger", "import", csv)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 rows")
}

func TestRegimeCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "riskos.db")

	_, err := run(t, "--db", db, "regime", "set", "red")
	require.NoError(t, err)

	out, err := run(t, "--db", db, "regime", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Regime:  RED")
	assert.Contains(t, out, "1R unit: 25.00")

	_, err = run(t, "--db", db, "regime", "set", "unknown")
	assert.Error(t, err)

	out, err = run(t, "regime", "checklist")
	require.NoError(t, err)
	assert.Contains(t, out, "distribution")
}

const threeBars = `{"chart": {"result": [{
  "meta": {"symbol": "TSLA"},
  "timestamp": [1717977600, 1718064000, 1718150400],
  "indicators": {"quote": [{
    "open":   [500.0, 505.0, 509.0],
    "high":   [506.0, 510.0, 515.0],
    "low":    [499.0, 503.0, 508.0],
    "close":  [505.0, 509.0, 514.0],
    "volume": [1000, 1200, 5000]
  }]}
}], "error": null}}`

func TestMarketCommands(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(threeBars))
	}))
	defer srv.Close()

	conf := filepath.Join(t.TempDir(), "riskos.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("market:\n  base_url: "+srv.URL+"\n"), 0644))

	out, err := run(t, "-c", conf, "data", "tsla", "--since", "2024-06-11")
	require.NoError(t, err)
	assert.Contains(t, out, "[TSLA Daily Data]")
	assert.Contains(t, out, "2024-06-11 | 505.000 | 510.000 | 503.000 | 509.000 | 1200 | NaN | NaN")
	assert.Contains(t, out, "2024-06-12 | 509.000")
	assert.NotContains(t, out, "2024-06-10")

	out, err = run(t, "-c", conf, "--json", "data", "TSLA")
	require.NoError(t, err)
	var bars []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &bars))
	assert.Len(t, bars, 3)
	assert.Nil(t, bars[0]["sma20"])

	out, err = run(t, "-c", conf, "screen", "TSLA,NVDA", "NSRGY", "--trend", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "No spikes among 3 symbols", "three bars are short of the volume window")

	_, err = run(t, "-c", conf, "data", "TSLA", "--since", "06/11/2024")
	assert.Error(t, err)
	_, err = run(t, "-c", conf, "screen", "TSLA", "--ratio", "0")
	assert.Error(t, err)
}

func TestSplitSymbols(t *testing.T) {
	assert.Equal(t, []string{"TSLA", "NVDA", "amd", "AAPL"}, splitSymbols([]string{"TSLA, NVDA,amd", " AAPL "}))
	assert.Empty(t, splitSymbols([]string{" , "}))
}
