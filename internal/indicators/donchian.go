package indicators

import (
	"math"

	"github.com/ducminhle1904/noise-engine/pkg/types"
)

// Channel is one Donchian Channel reading
type Channel struct {
	Upper  float64
	Lower  float64
	Middle float64
}

// DonchianChannels tracks the highest high and lowest low over a lookback window
type DonchianChannels struct {
	period int
}

// NewDonchianChannels creates a new Donchian Channels indicator
func NewDonchianChannels(period int) *DonchianChannels {
	return &DonchianChannels{period: period}
}

// Calculate returns the channel over the last period bars. Callers testing a
// breakout pass the series without the bar being tested.
func (d *DonchianChannels) Calculate(bars []types.PriceBar) (Channel, error) {
	if d.period <= 0 || len(bars) < d.period {
		return Channel{}, insufficient("Donchian", d.period, len(bars))
	}

	upper, lower := math.Inf(-1), math.Inf(1)
	for _, bar := range bars[len(bars)-d.period:] {
		upper = math.Max(upper, bar.High)
		lower = math.Min(lower, bar.Low)
	}
	return Channel{Upper: upper, Lower: lower, Middle: (upper + lower) / 2}, nil
}

// GetRequiredPeriods returns the minimum number of bars needed
func (d *DonchianChannels) GetRequiredPeriods() int {
	return d.period
}
