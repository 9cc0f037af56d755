package strategy

import (
	"fmt"

	"github.com/ducminhle1904/noise-engine/internal/indicators"
	"github.com/ducminhle1904/noise-engine/pkg/types"
)

// MeanReversionConfig holds the mean reversion scorer settings
type MeanReversionConfig struct {
	BollingerPeriod int     `json:"bollinger_period" mapstructure:"bollinger_period" validate:"gt=1"`
	BollingerStdDev float64 `json:"bollinger_std_dev" mapstructure:"bollinger_std_dev" validate:"gt=0"`
	RSIPeriod       int     `json:"rsi_period" mapstructure:"rsi_period" validate:"gt=0"`
	Oversold        float64 `json:"oversold" mapstructure:"oversold" validate:"gt=0,lt=50"`
	Overbought      float64 `json:"overbought" mapstructure:"overbought" validate:"gt=50,lt=100"`
	LowerPercentB   float64 `json:"lower_percent_b" mapstructure:"lower_percent_b"`
	UpperPercentB   float64 `json:"upper_percent_b" mapstructure:"upper_percent_b" validate:"gtfield=LowerPercentB"`
}

// DefaultMeanReversionConfig returns the mean reversion defaults
func DefaultMeanReversionConfig() MeanReversionConfig {
	return MeanReversionConfig{
		BollingerPeriod: 20,
		BollingerStdDev: 2.0,
		RSIPeriod:       14,
		Oversold:        30,
		Overbought:      70,
		LowerPercentB:   0.05,
		UpperPercentB:   0.95,
	}
}

// MeanReversion fades band extremes confirmed by RSI and targets the middle band
type MeanReversion struct {
	cfg MeanReversionConfig
}

// NewMeanReversion creates a mean reversion scorer
func NewMeanReversion(cfg MeanReversionConfig) *MeanReversion {
	def := DefaultMeanReversionConfig()
	if cfg.BollingerPeriod <= 1 {
		cfg.BollingerPeriod = def.BollingerPeriod
	}
	if cfg.BollingerStdDev <= 0 {
		cfg.BollingerStdDev = def.BollingerStdDev
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	if cfg.Oversold <= 0 || cfg.Overbought <= cfg.Oversold {
		cfg.Oversold, cfg.Overbought = def.Oversold, def.Overbought
	}
	if cfg.UpperPercentB <= cfg.LowerPercentB {
		cfg.LowerPercentB, cfg.UpperPercentB = def.LowerPercentB, def.UpperPercentB
	}
	return &MeanReversion{cfg: cfg}
}

func (m *MeanReversion) Kind() Kind   { return KindMeanReversion }
func (m *MeanReversion) Name() string { return string(KindMeanReversion) }

// Score proposes a trade back toward the middle band when price closes
// outside the band extremes and RSI agrees.
func (m *MeanReversion) Score(bars []types.PriceBar, params Params) (Candidate, bool) {
	params = withDefaults(params)
	closes := types.Closes(bars)

	bands, err := indicators.NewBollingerBands(m.cfg.BollingerPeriod, m.cfg.BollingerStdDev).Calculate(closes)
	if err != nil || bands.Upper <= bands.Lower {
		return Candidate{}, false
	}
	rsi, err := indicators.NewRSI(m.cfg.RSIPeriod).Calculate(closes)
	if err != nil {
		return Candidate{}, false
	}

	last := closes[len(closes)-1]
	c := Candidate{Entry: last}
	var bandScore, rsiScore float64

	switch {
	case bands.PercentB <= m.cfg.LowerPercentB && rsi <= m.cfg.Oversold:
		c.Direction = types.DirectionLong
		bandScore = clamp01(0.6 + (m.cfg.LowerPercentB - bands.PercentB))
		rsiScore = clamp01(0.6 + (m.cfg.Oversold-rsi)/m.cfg.Oversold)
		c.Reasons = []string{
			fmt.Sprintf("Close at %.2f%%B below lower band", bands.PercentB*100),
			fmt.Sprintf("RSI %.1f oversold", rsi),
		}
		if bands.Middle > last {
			c.TakeProfit = bands.Middle
		}
	case bands.PercentB >= m.cfg.UpperPercentB && rsi >= m.cfg.Overbought:
		c.Direction = types.DirectionShort
		bandScore = clamp01(0.6 + (bands.PercentB - m.cfg.UpperPercentB))
		rsiScore = clamp01(0.6 + (rsi-m.cfg.Overbought)/(100-m.cfg.Overbought))
		c.Reasons = []string{
			fmt.Sprintf("Close at %.2f%%B above upper band", bands.PercentB*100),
			fmt.Sprintf("RSI %.1f overbought", rsi),
		}
		if bands.Middle < last {
			c.TakeProfit = bands.Middle
		}
	default:
		return Candidate{}, false
	}

	c.Strength = clamp01((bandScore + rsiScore) / 2)
	c.Indicators = map[string]float64{
		"bb_upper":  bands.Upper,
		"bb_middle": bands.Middle,
		"bb_lower":  bands.Lower,
		"percent_b": bands.PercentB,
		"rsi":       rsi,
	}

	if !placeLevels(&c, bars, params) {
		return Candidate{}, false
	}
	return c, true
}
