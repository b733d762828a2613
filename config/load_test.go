package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
env: dev
log:
  level: info
  outputs: [stdout]
  format: json
oracle:
  periodSeconds: 43200
  commitPhaseSeconds: 1800
  windowSize: 14
feed:
  url: wss://feed.test/ws
metrics:
  addr: :9090
instruments:
  ETH-USDC:
    underlyingDecimals: 18
    quoteDecimals: 6
adminCallers: [ops-1]
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, int64(43200), cfg.Oracle.PeriodSeconds)
	assert.Equal(t, int64(1800), cfg.Oracle.CommitPhaseSeconds)
	assert.Equal(t, 14, cfg.Oracle.WindowSize)
	assert.Equal(t, "wss://feed.test/ws", cfg.Feed.URL)
	assert.Equal(t, []string{"ops-1"}, cfg.AdminCallers)

	ic, ok := cfg.Instruments["ETH-USDC"]
	require.True(t, ok)
	assert.Equal(t, 18, ic.UnderlyingDecimals)
	assert.Equal(t, 6, ic.QuoteDecimals)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	t.Setenv("VO_FEED_URL", "wss://override.test/ws")
	t.Setenv("VO_LOG_LEVEL", "debug")

	cfg, err := LoadWithEnvOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://override.test/ws", cfg.Feed.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	require.Error(t, Validate(AppConfig{}))

	base := func() AppConfig {
		return AppConfig{
			Env: "dev",
			Oracle: OracleConfig{
				PeriodSeconds:      43200,
				CommitPhaseSeconds: 1800,
				WindowSize:         14,
			},
			Feed:        FeedConfig{URL: "wss://feed.test/ws"},
			Instruments: map[string]InstrumentConfig{"ETH-USDC": {UnderlyingDecimals: 18, QuoteDecimals: 6}},
		}
	}
	require.NoError(t, Validate(base()))

	cfg := base()
	cfg.Oracle.CommitPhaseSeconds = cfg.Oracle.PeriodSeconds/2 + 1
	assert.Error(t, Validate(cfg), "commit phase over half the period")

	cfg = base()
	cfg.Instruments["ETH-USDC"] = InstrumentConfig{UnderlyingDecimals: 19}
	assert.Error(t, Validate(cfg), "decimals out of range")

	cfg = base()
	cfg.Instruments = nil
	assert.Error(t, Validate(cfg), "missing instruments")

	cfg = base()
	cfg.Oracle.WindowSize = 0
	assert.Error(t, Validate(cfg), "zero window size")
}
