package indicators

import "github.com/ducminhle1904/noise-engine/pkg/types"

// AverageVolume returns the mean volume of the last period bars
func AverageVolume(bars []types.PriceBar, period int) (float64, error) {
	if period <= 0 || len(bars) < period {
		return 0, insufficient("volume average", period, len(bars))
	}
	sum := 0.0
	for _, bar := range bars[len(bars)-period:] {
		sum += bar.Volume
	}
	return sum / float64(period), nil
}
