package regime

import (
	"fmt"
	"math"
	"time"

	"github.com/ducminhle1904/noise-engine/internal/indicators"
	"github.com/ducminhle1904/noise-engine/pkg/types"
)

// RegimeType represents different market regimes
type RegimeType int

const (
	RegimeTrending RegimeType = iota
	RegimeRanging
	RegimeVolatile
	RegimeUncertain
)

func (r RegimeType) String() string {
	switch r {
	case RegimeTrending:
		return "TRENDING"
	case RegimeRanging:
		return "RANGING"
	case RegimeVolatile:
		return "VOLATILE"
	case RegimeUncertain:
		return "UNCERTAIN"
	default:
		return "UNKNOWN"
	}
}

// RegimeSignal represents the output of regime detection
type RegimeSignal struct {
	Type          RegimeType `json:"type"`
	Confidence    float64    `json:"confidence"` // 0.0 to 1.0
	Timestamp     time.Time  `json:"timestamp"`
	ADX           float64    `json:"adx"`
	EMADistance   float64    `json:"ema_distance"`
	ATRPercent    float64    `json:"atr_percent"`
	TrendStrength float64    `json:"trend_strength"`
}

// Config holds configuration parameters for regime detection
type Config struct {
	FastEMAPeriod        int     `json:"fast_ema_period" mapstructure:"fast_ema_period" validate:"gt=0"`
	SlowEMAPeriod        int     `json:"slow_ema_period" mapstructure:"slow_ema_period" validate:"gtfield=FastEMAPeriod"`
	ADXPeriod            int     `json:"adx_period" mapstructure:"adx_period" validate:"gt=0"`
	ATRPeriod            int     `json:"atr_period" mapstructure:"atr_period" validate:"gt=0"`
	ADXTrendThreshold    float64 `json:"adx_trend_threshold" mapstructure:"adx_trend_threshold" validate:"gt=0"`
	ADXRangeThreshold    float64 `json:"adx_range_threshold" mapstructure:"adx_range_threshold" validate:"gt=0,ltefield=ADXTrendThreshold"`
	EMADistanceThreshold float64 `json:"ema_distance_threshold" mapstructure:"ema_distance_threshold" validate:"gte=0"`
	VolatileATRPercent   float64 `json:"volatile_atr_percent" mapstructure:"volatile_atr_percent" validate:"gt=0"`
}

// DefaultConfig returns the detector defaults
func DefaultConfig() Config {
	return Config{
		FastEMAPeriod:        20,
		SlowEMAPeriod:        50,
		ADXPeriod:            14,
		ATRPeriod:            14,
		ADXTrendThreshold:    25,
		ADXRangeThreshold:    20,
		EMADistanceThreshold: 0.005,
		VolatileATRPercent:   1.5,
	}
}

// Detector classifies market conditions from a bar series. It keeps no
// state between calls.
type Detector struct {
	cfg     Config
	fastEMA *indicators.EMA
	slowEMA *indicators.EMA
	adx     *indicators.ADX
	atr     *indicators.ATR
}

// NewDetector creates a detector; zero-valued fields fall back to defaults
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.FastEMAPeriod <= 0 {
		cfg.FastEMAPeriod = def.FastEMAPeriod
	}
	if cfg.SlowEMAPeriod <= 0 {
		cfg.SlowEMAPeriod = def.SlowEMAPeriod
	}
	if cfg.ADXPeriod <= 0 {
		cfg.ADXPeriod = def.ADXPeriod
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = def.ATRPeriod
	}
	if cfg.ADXTrendThreshold <= 0 {
		cfg.ADXTrendThreshold = def.ADXTrendThreshold
	}
	if cfg.ADXRangeThreshold <= 0 {
		cfg.ADXRangeThreshold = def.ADXRangeThreshold
	}
	if cfg.VolatileATRPercent <= 0 {
		cfg.VolatileATRPercent = def.VolatileATRPercent
	}

	return &Detector{
		cfg:     cfg,
		fastEMA: indicators.NewEMA(cfg.FastEMAPeriod),
		slowEMA: indicators.NewEMA(cfg.SlowEMAPeriod),
		adx:     indicators.NewADX(cfg.ADXPeriod),
		atr:     indicators.NewATR(cfg.ATRPeriod),
	}
}

// MinRequiredPeriods returns the number of bars Detect needs
func (d *Detector) MinRequiredPeriods() int {
	need := d.slowEMA.GetRequiredPeriods()
	if n := d.adx.GetRequiredPeriods(); n > need {
		need = n
	}
	if n := d.atr.GetRequiredPeriods(); n > need {
		need = n
	}
	return need
}

// Detect classifies the regime at the last bar
func (d *Detector) Detect(bars []types.PriceBar) (RegimeSignal, error) {
	if len(bars) < d.MinRequiredPeriods() {
		return RegimeSignal{Type: RegimeUncertain}, fmt.Errorf("insufficient data: need at least %d periods", d.MinRequiredPeriods())
	}

	closes := types.Closes(bars)
	fast, err := d.fastEMA.Calculate(closes)
	if err != nil {
		return RegimeSignal{Type: RegimeUncertain}, err
	}
	slow, err := d.slowEMA.Calculate(closes)
	if err != nil {
		return RegimeSignal{Type: RegimeUncertain}, err
	}
	di, err := d.adx.Calculate(bars)
	if err != nil {
		return RegimeSignal{Type: RegimeUncertain}, err
	}
	atrPct, err := d.atr.Percent(bars)
	if err != nil {
		return RegimeSignal{Type: RegimeUncertain}, err
	}

	sig := RegimeSignal{
		Timestamp:     bars[len(bars)-1].Timestamp,
		ADX:           di.ADX,
		ATRPercent:    atrPct,
		TrendStrength: clamp01(di.ADX / 50),
	}
	if slow != 0 {
		sig.EMADistance = (fast - slow) / slow
	}

	sig.Type, sig.Confidence = d.classify(sig)
	return sig, nil
}

func (d *Detector) classify(m RegimeSignal) (RegimeType, float64) {
	// A strong ADX only counts as a trend when the averages have separated
	if m.ADX >= d.cfg.ADXTrendThreshold && math.Abs(m.EMADistance) >= d.cfg.EMADistanceThreshold {
		return RegimeTrending, clamp01(m.ADX / (2 * d.cfg.ADXTrendThreshold))
	}

	if m.ATRPercent >= d.cfg.VolatileATRPercent {
		return RegimeVolatile, clamp01(m.ATRPercent / (2 * d.cfg.VolatileATRPercent))
	}

	if m.ADX < d.cfg.ADXRangeThreshold {
		return RegimeRanging, clamp01(1 - m.ADX/d.cfg.ADXRangeThreshold)
	}

	return RegimeUncertain, 0
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
