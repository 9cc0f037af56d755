package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/ducminhle1904/noise-engine/internal/errors"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Risk.MaxConcurrentPositions)
	assert.Equal(t, 0.5, cfg.TrailingStop.TrailPercent)
	assert.Equal(t, 0.4, cfg.Signals.Strategies["momentum"].Weight)
	assert.Equal(t, 0.5, cfg.Portfolio.SectorConcentration["TECH"])
	assert.Len(t, cfg.Portfolio.CorrelationGroups, 2)
	assert.Equal(t, "FUTURES", cfg.Replay.AssetClass)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "noise.yaml", `
risk:
  max_order_value: 25000
  consecutive_loss_limit: 4
trailing_stop:
  trail_percent: 0.8
signals:
  min_strength: 0.6
  strategies:
    breakout:
      enabled: false
      weight: 0.3
  ttl:
    5m: 20m
portfolio:
  sector_concentration:
    energy: 0.25
  correlation_groups:
    - name: METALS
      symbols: [GC, SI, MGC]
      max_concentration: 0.2
      correlation_threshold: 0.85
replay:
  symbol: mes
  asset_class: futures
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25000.0, cfg.Risk.MaxOrderValue)
	assert.Equal(t, 4, cfg.Risk.ConsecutiveLossLimit)
	assert.Equal(t, 2.0, cfg.Risk.MaxRiskPerTradePercent)
	assert.Equal(t, 0.8, cfg.TrailingStop.TrailPercent)
	assert.True(t, cfg.TrailingStop.Enabled)
	assert.Equal(t, 0.6, cfg.Signals.MinStrength)
	assert.False(t, cfg.Signals.Strategies["breakout"].Enabled)
	assert.True(t, cfg.Signals.Strategies["momentum"].Enabled)
	assert.Equal(t, 20*time.Minute, cfg.Signals.TTL["5m"])

	// sector names come back upper-cased; defaults are kept
	assert.Equal(t, 0.25, cfg.Portfolio.SectorConcentration["ENERGY"])
	assert.Equal(t, 0.5, cfg.Portfolio.SectorConcentration["TECH"])

	// lists replace the default rather than merge
	require.Len(t, cfg.Portfolio.CorrelationGroups, 1)
	assert.Equal(t, "METALS", cfg.Portfolio.CorrelationGroups[0].Name)

	assert.Equal(t, "FUTURES", cfg.Replay.AssetClass)

	engineCfg := cfg.Engine()
	assert.Equal(t, cfg.Risk, engineCfg.Risk)
	assert.Equal(t, cfg.TrailingStop, engineCfg.Stops)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("NOISE_RISK_MAX_CONCURRENT_POSITIONS", "8")
	t.Setenv("NOISE_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Risk.MaxConcurrentPositions)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"invalid trail", "bad.yaml", "trailing_stop:\n  trail_percent: 150\n"},
		{"min above max order value", "bad.yaml", "risk:\n  min_order_value: 50000\n"},
		{"bad session clock", "bad.yaml", "signals:\n  session_start: \"25:00\"\n"},
		{"unknown log level", "bad.yaml", "logging:\n  level: loud\n"},
		{"malformed json", "bad.json", "{\"risk\": "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Equal(t, coreerrors.ErrorCategoryConfiguration, coreerrors.CategoryOf(err))
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	path := writeFile(t, ".env", "NOISE_TEST_LOADENV=from-file\n")
	t.Setenv("NOISE_TEST_LOADENV", "")
	os.Unsetenv("NOISE_TEST_LOADENV")

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "from-file", os.Getenv("NOISE_TEST_LOADENV"))

	err := LoadEnv(filepath.Join(t.TempDir(), "nope.env"))
	assert.True(t, coreerrors.IsNotFound(err))
}
