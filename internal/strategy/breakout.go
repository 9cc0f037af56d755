package strategy

import (
	"fmt"

	"github.com/ducminhle1904/noise-engine/internal/indicators"
	"github.com/ducminhle1904/noise-engine/pkg/types"
)

// BreakoutConfig holds the breakout scorer settings
type BreakoutConfig struct {
	ChannelPeriod  int     `json:"channel_period" mapstructure:"channel_period" validate:"gt=0"`
	VolumePeriod   int     `json:"volume_period" mapstructure:"volume_period" validate:"gt=0"`
	VolumeMultiple float64 `json:"volume_multiple" mapstructure:"volume_multiple" validate:"gte=0"`
}

// DefaultBreakoutConfig returns the breakout defaults
func DefaultBreakoutConfig() BreakoutConfig {
	return BreakoutConfig{
		ChannelPeriod:  20,
		VolumePeriod:   20,
		VolumeMultiple: 1.5,
	}
}

// Breakout trades closes beyond the prior Donchian channel on expanding volume
type Breakout struct {
	cfg BreakoutConfig
}

// NewBreakout creates a breakout scorer
func NewBreakout(cfg BreakoutConfig) *Breakout {
	def := DefaultBreakoutConfig()
	if cfg.ChannelPeriod <= 0 {
		cfg.ChannelPeriod = def.ChannelPeriod
	}
	if cfg.VolumePeriod <= 0 {
		cfg.VolumePeriod = def.VolumePeriod
	}
	if cfg.VolumeMultiple < 0 {
		cfg.VolumeMultiple = def.VolumeMultiple
	}
	return &Breakout{cfg: cfg}
}

func (b *Breakout) Kind() Kind   { return KindBreakout }
func (b *Breakout) Name() string { return string(KindBreakout) }

// Score compares the last close with the channel of the bars before it
func (b *Breakout) Score(bars []types.PriceBar, params Params) (Candidate, bool) {
	params = withDefaults(params)
	if len(bars) < 2 {
		return Candidate{}, false
	}

	prior := bars[:len(bars)-1]
	last := bars[len(bars)-1]

	channel, err := indicators.NewDonchianChannels(b.cfg.ChannelPeriod).Calculate(prior)
	if err != nil {
		return Candidate{}, false
	}
	avgVolume, err := indicators.AverageVolume(prior, b.cfg.VolumePeriod)
	if err != nil {
		return Candidate{}, false
	}
	atr, err := indicators.NewATR(params.ATRPeriod).Calculate(bars)
	if err != nil || atr <= 0 {
		return Candidate{}, false
	}

	volumeRatio := 1.0
	if avgVolume > 0 {
		volumeRatio = last.Volume / avgVolume
	}
	if volumeRatio < b.cfg.VolumeMultiple {
		return Candidate{}, false
	}

	c := Candidate{Entry: last.Close}
	var distance float64
	switch {
	case last.Close > channel.Upper:
		c.Direction = types.DirectionLong
		distance = last.Close - channel.Upper
		c.Reasons = []string{fmt.Sprintf("Close %.2f broke %d-bar high %.2f", last.Close, b.cfg.ChannelPeriod, channel.Upper)}
	case last.Close < channel.Lower:
		c.Direction = types.DirectionShort
		distance = channel.Lower - last.Close
		c.Reasons = []string{fmt.Sprintf("Close %.2f broke %d-bar low %.2f", last.Close, b.cfg.ChannelPeriod, channel.Lower)}
	default:
		return Candidate{}, false
	}
	c.Reasons = append(c.Reasons, fmt.Sprintf("Volume %.1fx average", volumeRatio))

	c.Strength = clamp01(0.5*clamp01(distance/atr) + 0.5*clamp01((volumeRatio-1)/2))
	c.Indicators = map[string]float64{
		"donchian_upper": channel.Upper,
		"donchian_lower": channel.Lower,
		"volume_ratio":   volumeRatio,
	}

	if !placeLevels(&c, bars, params) {
		return Candidate{}, false
	}
	return c, true
}
