package indicators

import "math"

// Bands is one Bollinger Bands reading
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
	// PercentB locates the last value inside the bands: 0 at the lower band, 1 at the upper
	PercentB float64
	// Width is (upper - lower) / middle
	Width float64
}

// BollingerBands represents the Bollinger Bands indicator
type BollingerBands struct {
	period int
	stdDev float64
}

// NewBollingerBands creates a new Bollinger Bands indicator
func NewBollingerBands(period int, stdDev float64) *BollingerBands {
	return &BollingerBands{period: period, stdDev: stdDev}
}

// Calculate returns the bands for the last period values
func (b *BollingerBands) Calculate(values []float64) (Bands, error) {
	if b.period <= 0 || len(values) < b.period {
		return Bands{}, insufficient("Bollinger Bands", b.period, len(values))
	}

	window := values[len(values)-b.period:]
	middle := mean(window)

	variance := 0.0
	for _, v := range window {
		d := v - middle
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(b.period))

	out := Bands{
		Upper:  middle + b.stdDev*sd,
		Middle: middle,
		Lower:  middle - b.stdDev*sd,
	}

	last := values[len(values)-1]
	if spread := out.Upper - out.Lower; spread > 0 {
		out.PercentB = (last - out.Lower) / spread
	} else {
		out.PercentB = 0.5
	}
	if middle != 0 {
		out.Width = (out.Upper - out.Lower) / middle
	}
	return out, nil
}

// GetRequiredPeriods returns the minimum number of values needed
func (b *BollingerBands) GetRequiredPeriods() int {
	return b.period
}
