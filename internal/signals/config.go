package signals

import (
	"strings"
	"time"

	"github.com/ducminhle1904/noise-engine/internal/regime"
	"github.com/ducminhle1904/noise-engine/internal/strategy"
)

// StrategyWeight enables a strategy and sets its informational weight
type StrategyWeight struct {
	Enabled bool    `json:"enabled" mapstructure:"enabled"`
	Weight  float64 `json:"weight" mapstructure:"weight" validate:"gte=0"`
}

// Config holds the signal manager settings
type Config struct {
	Strategies map[string]StrategyWeight `json:"strategies" mapstructure:"strategies" validate:"dive"`

	EnableRegimeFilter     bool `json:"enable_regime_filter" mapstructure:"enable_regime_filter"`
	EnableTimeFilter       bool `json:"enable_time_filter" mapstructure:"enable_time_filter"`
	EnableVolatilityFilter bool `json:"enable_volatility_filter" mapstructure:"enable_volatility_filter"`

	MinStrength         float64 `json:"min_strength" mapstructure:"min_strength" validate:"gte=0,lte=1"`
	MaxSignalsPerSymbol int     `json:"max_signals_per_symbol" mapstructure:"max_signals_per_symbol" validate:"gt=0"`

	// Session window in HH:MM, interpreted in SessionLocation. A window whose
	// end is before its start wraps midnight.
	SessionStart    string `json:"session_start" mapstructure:"session_start" validate:"omitempty,datetime=15:04"`
	SessionEnd      string `json:"session_end" mapstructure:"session_end" validate:"omitempty,datetime=15:04"`
	SessionLocation string `json:"session_location" mapstructure:"session_location"`

	VolatilityATRPeriod  int     `json:"volatility_atr_period" mapstructure:"volatility_atr_period" validate:"gte=0"`
	MinVolatilityPercent float64 `json:"min_volatility_percent" mapstructure:"min_volatility_percent" validate:"gte=0"`
	MaxVolatilityPercent float64 `json:"max_volatility_percent" mapstructure:"max_volatility_percent" validate:"gtefield=MinVolatilityPercent"`

	// Signal lifetime: TTL by timeframe wins, otherwise ExpiryBars bar durations
	ExpiryBars int                      `json:"expiry_bars" mapstructure:"expiry_bars" validate:"gte=0"`
	TTL        map[string]time.Duration `json:"ttl" mapstructure:"ttl"`

	Params  strategy.Params `json:"params" mapstructure:"params"`
	Scorers strategy.Config `json:"scorers" mapstructure:"scorers"`
	Regime  regime.Config   `json:"regime" mapstructure:"regime"`
}

// DefaultConfig returns the signal manager defaults
func DefaultConfig() Config {
	return Config{
		Strategies: map[string]StrategyWeight{
			string(strategy.KindMomentum):      {Enabled: true, Weight: 0.4},
			string(strategy.KindMeanReversion): {Enabled: true, Weight: 0.3},
			string(strategy.KindBreakout):      {Enabled: true, Weight: 0.3},
		},
		EnableRegimeFilter:     true,
		EnableTimeFilter:       false,
		EnableVolatilityFilter: true,
		MinStrength:            0.5,
		MaxSignalsPerSymbol:    3,
		SessionStart:           "13:30",
		SessionEnd:             "20:00",
		SessionLocation:        "UTC",
		VolatilityATRPeriod:    14,
		MinVolatilityPercent:   0.05,
		MaxVolatilityPercent:   5.0,
		ExpiryBars:             3,
		Params:                 strategy.DefaultParams(),
		Scorers:                strategy.DefaultConfig(),
		Regime:                 regime.DefaultConfig(),
	}
}

// defaultTTL applies when the timeframe cannot be parsed and no TTL is configured
const defaultTTL = 15 * time.Minute

// TimeframeDuration parses timeframes such as "1m", "15m", "4h", "1d" and "1w"
func TimeframeDuration(timeframe string) (time.Duration, bool) {
	tf := strings.TrimSpace(strings.ToLower(timeframe))
	if len(tf) < 2 {
		return 0, false
	}

	unit := tf[len(tf)-1]
	n := 0
	for _, r := range tf[:len(tf)-1] {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return 0, false
	}

	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, true
	case 'h':
		return time.Duration(n) * time.Hour, true
	case 'd':
		return time.Duration(n) * 24 * time.Hour, true
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

func (c Config) ttlFor(timeframe string) time.Duration {
	if ttl, ok := c.TTL[timeframe]; ok && ttl > 0 {
		return ttl
	}
	if d, ok := TimeframeDuration(timeframe); ok && c.ExpiryBars > 0 {
		return d * time.Duration(c.ExpiryBars)
	}
	return defaultTTL
}
