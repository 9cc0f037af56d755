package indicators

import (
	"math"

	"github.com/ducminhle1904/noise-engine/pkg/types"
)

// ATR represents the Average True Range with Wilder smoothing
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

// Calculate returns the ATR at the last bar
func (a *ATR) Calculate(bars []types.PriceBar) (float64, error) {
	if a.period <= 0 || len(bars) < a.period+1 {
		return 0, insufficient("ATR", a.period+1, len(bars))
	}

	atr := 0.0
	for i := 1; i <= a.period; i++ {
		atr += TrueRange(bars[i], bars[i-1].Close)
	}
	atr /= float64(a.period)

	p := float64(a.period)
	for i := a.period + 1; i < len(bars); i++ {
		atr = (atr*(p-1) + TrueRange(bars[i], bars[i-1].Close)) / p
	}
	return atr, nil
}

// Percent returns ATR as a percentage of the last close
func (a *ATR) Percent(bars []types.PriceBar) (float64, error) {
	atr, err := a.Calculate(bars)
	if err != nil {
		return 0, err
	}
	last := bars[len(bars)-1].Close
	if last <= 0 {
		return 0, nil
	}
	return atr / last * 100, nil
}

// GetRequiredPeriods returns the minimum number of bars needed
func (a *ATR) GetRequiredPeriods() int {
	return a.period + 1
}

// TrueRange is the greatest of the bar range and the gaps from the previous close
func TrueRange(bar types.PriceBar, prevClose float64) float64 {
	return math.Max(bar.High-bar.Low, math.Max(math.Abs(bar.High-prevClose), math.Abs(bar.Low-prevClose)))
}
