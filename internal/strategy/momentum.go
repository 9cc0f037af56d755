package strategy

import (
	"fmt"
	"math"

	"github.com/ducminhle1904/noise-engine/internal/indicators"
	"github.com/ducminhle1904/noise-engine/pkg/types"
)

// MomentumConfig holds the momentum scorer settings
type MomentumConfig struct {
	FastEMAPeriod int     `json:"fast_ema_period" mapstructure:"fast_ema_period" validate:"gt=0"`
	SlowEMAPeriod int     `json:"slow_ema_period" mapstructure:"slow_ema_period" validate:"gtfield=FastEMAPeriod"`
	RSIPeriod     int     `json:"rsi_period" mapstructure:"rsi_period" validate:"gt=0"`
	ADXPeriod     int     `json:"adx_period" mapstructure:"adx_period" validate:"gt=0"`
	MinADX        float64 `json:"min_adx" mapstructure:"min_adx" validate:"gte=0,lt=100"`
}

// DefaultMomentumConfig returns the momentum defaults
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		FastEMAPeriod: 9,
		SlowEMAPeriod: 21,
		RSIPeriod:     14,
		ADXPeriod:     14,
		MinADX:        20,
	}
}

// Momentum follows aligned moving averages confirmed by RSI and trend strength
type Momentum struct {
	cfg MomentumConfig
}

// NewMomentum creates a momentum scorer
func NewMomentum(cfg MomentumConfig) *Momentum {
	def := DefaultMomentumConfig()
	if cfg.FastEMAPeriod <= 0 {
		cfg.FastEMAPeriod = def.FastEMAPeriod
	}
	if cfg.SlowEMAPeriod <= cfg.FastEMAPeriod {
		cfg.SlowEMAPeriod = def.SlowEMAPeriod
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	if cfg.ADXPeriod <= 0 {
		cfg.ADXPeriod = def.ADXPeriod
	}
	return &Momentum{cfg: cfg}
}

func (m *Momentum) Kind() Kind   { return KindMomentum }
func (m *Momentum) Name() string { return string(KindMomentum) }

// Score proposes a trade in the direction of the EMA alignment when RSI sits
// on the same side of 50 without being stretched and ADX confirms a trend.
func (m *Momentum) Score(bars []types.PriceBar, params Params) (Candidate, bool) {
	params = withDefaults(params)
	closes := types.Closes(bars)

	fast, err := indicators.NewEMA(m.cfg.FastEMAPeriod).Calculate(closes)
	if err != nil {
		return Candidate{}, false
	}
	slow, err := indicators.NewEMA(m.cfg.SlowEMAPeriod).Calculate(closes)
	if err != nil || slow <= 0 {
		return Candidate{}, false
	}
	rsi, err := indicators.NewRSI(m.cfg.RSIPeriod).Calculate(closes)
	if err != nil {
		return Candidate{}, false
	}
	di, err := indicators.NewADX(m.cfg.ADXPeriod).Calculate(bars)
	if err != nil || di.ADX < m.cfg.MinADX {
		return Candidate{}, false
	}

	last := closes[len(closes)-1]
	c := Candidate{Entry: last}
	switch {
	case fast > slow && last > fast && rsi > 50 && rsi < 75:
		c.Direction = types.DirectionLong
	case fast < slow && last < fast && rsi < 50 && rsi > 25:
		c.Direction = types.DirectionShort
	default:
		return Candidate{}, false
	}

	spreadPct := math.Abs(fast-slow) / slow * 100
	trendScore := clamp01((di.ADX - m.cfg.MinADX) / math.Max(50-m.cfg.MinADX, 1))
	spreadScore := clamp01(spreadPct)
	rsiScore := clamp01(math.Abs(rsi-50) / 25)
	c.Strength = clamp01(0.4*trendScore + 0.3*spreadScore + 0.3*rsiScore)

	c.Reasons = []string{
		fmt.Sprintf("EMA%d %s EMA%d by %.2f%%", m.cfg.FastEMAPeriod, crossWord(c.Direction), m.cfg.SlowEMAPeriod, spreadPct),
		fmt.Sprintf("RSI %.1f confirms momentum", rsi),
		fmt.Sprintf("ADX %.1f shows trend strength", di.ADX),
	}
	c.Indicators = map[string]float64{
		"ema_fast": fast,
		"ema_slow": slow,
		"rsi":      rsi,
		"adx":      di.ADX,
		"plus_di":  di.PlusDI,
		"minus_di": di.MinusDI,
	}

	if !placeLevels(&c, bars, params) {
		return Candidate{}, false
	}
	return c, true
}

func crossWord(d types.Direction) string {
	if d == types.DirectionShort {
		return "below"
	}
	return "above"
}
