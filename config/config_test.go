package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-signals/internal/indicator"
	"trading-signals/internal/model"
	"trading-signals/internal/signal"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"SOURCE", "BARS_DIR", "HTTP_ADDR", "SCAN_CONCURRENCY", "POLICY_FILE", "TIMEFRAME"} {
		t.Setenv(k, "")
	}
	c := Load()
	assert.Equal(t, SourceFile, c.Source)
	assert.Equal(t, "data/bars", c.BarsDir)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, 4, c.ScanConcurrency)
	assert.Empty(t, c.PolicyFile)
	assert.Empty(t, c.Timeframe)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SOURCE", "SQLite")
	t.Setenv("SCAN_CONCURRENCY", "16")
	t.Setenv("BAR_LIMIT", "not-a-number")
	t.Setenv("SCAN_INTERVAL", "5m")
	c := Load()
	assert.Equal(t, SourceSQLite, c.Source)
	assert.Equal(t, 16, c.ScanConcurrency)
	assert.Equal(t, 500, c.BarLimit)
	assert.Equal(t, 5*time.Minute, c.ScanInterval)
}

func TestParseSymbols(t *testing.T) {
	c := &Config{Symbols: "crypto:btc, forex:EUR/USD,,stocks:AAPL,nomarket,forex:"}
	got := c.ParseSymbols()
	require.Len(t, got, 2)
	assert.Equal(t, model.Instrument{Market: model.MarketCrypto, Symbol: "BTC", Ticker: "BTC-USD"}, got[0])
	assert.Equal(t, "EURUSD=X", got[1].Ticker)
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadPolicy_EmptyPathIsDefault(t *testing.T) {
	params, policy, err := LoadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, indicator.DefaultParams(), params)
	assert.Equal(t, signal.DefaultPolicy(), policy)
}

func TestLoadPolicy_PartialOverride(t *testing.T) {
	path := writeFile(t, `
indicators:
  rsi_period: 21
policy:
  rsi_oversold: 25
  verdict_threshold: 0.5
`)
	params, policy, err := LoadPolicy(path)
	require.NoError(t, err)

	assert.Equal(t, 21, params.RSIPeriod)
	assert.Equal(t, 26, params.MACDSlow, "unset keys keep their defaults")
	assert.Equal(t, 25.0, policy.RSIOversold)
	assert.Equal(t, 70.0, policy.RSIOverbought)
	assert.Equal(t, 0.5, policy.VerdictThreshold)
	assert.Equal(t, 20, policy.MinBars)
}

func TestLoadPolicy_ExampleFile(t *testing.T) {
	params, policy, err := LoadPolicy("policy.example.yaml")
	require.NoError(t, err)
	assert.Equal(t, indicator.DefaultParams(), params)
	assert.Equal(t, signal.DefaultPolicy(), policy)
}

func TestLoadPolicy_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"negative band width", "indicators:\n  bb_num_std: -1\n", "bb_num_std"},
		{"strength above one", "policy:\n  macd_strength: 1.5\n", "macd_strength"},
		{"inverted rsi levels", "policy:\n  rsi_oversold: 80\n", "rsi thresholds"},
		{"unknown key", "policy:\n  rsi_lower: 20\n", "rsi_lower"},
		{"not yaml", "policy: [", "parse policy file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := LoadPolicy(writeFile(t, tt.body))
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, _, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
