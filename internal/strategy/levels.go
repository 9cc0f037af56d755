package strategy

import (
	"math"

	"github.com/ducminhle1904/noise-engine/internal/indicators"
	"github.com/ducminhle1904/noise-engine/pkg/types"
)

// placeLevels fills stop and target around entry using ATR distance
func placeLevels(c *Candidate, bars []types.PriceBar, params Params) bool {
	atr, err := indicators.NewATR(params.ATRPeriod).Calculate(bars)
	if err != nil || atr <= 0 {
		return false
	}

	risk := atr * params.StopATRMultiple
	switch c.Direction {
	case types.DirectionLong:
		c.Stop = c.Entry - risk
		if c.TakeProfit == 0 && params.RewardRiskRatio > 0 {
			c.TakeProfit = c.Entry + risk*params.RewardRiskRatio
		}
	case types.DirectionShort:
		c.Stop = c.Entry + risk
		if c.TakeProfit == 0 && params.RewardRiskRatio > 0 {
			c.TakeProfit = c.Entry - risk*params.RewardRiskRatio
		}
	default:
		return false
	}

	if c.Indicators == nil {
		c.Indicators = make(map[string]float64)
	}
	c.Indicators["atr"] = atr
	return c.Stop > 0
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func withDefaults(params Params) Params {
	def := DefaultParams()
	if params.ATRPeriod <= 0 {
		params.ATRPeriod = def.ATRPeriod
	}
	if params.StopATRMultiple <= 0 {
		params.StopATRMultiple = def.StopATRMultiple
	}
	return params
}
