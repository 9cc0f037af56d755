package indicators

// EMA represents the Exponential Moving Average technical indicator.
// The first period values seed the average with their SMA.
type EMA struct {
	period     int
	multiplier float64
}

// NewEMA creates a new EMA indicator
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

// Calculate returns the EMA at the last value
func (e *EMA) Calculate(values []float64) (float64, error) {
	if e.period <= 0 || len(values) < e.period {
		return 0, insufficient("EMA", e.period, len(values))
	}

	ema := mean(values[:e.period])
	for _, v := range values[e.period:] {
		ema = (v-ema)*e.multiplier + ema
	}
	return ema, nil
}

// GetRequiredPeriods returns the minimum number of values needed
func (e *EMA) GetRequiredPeriods() int {
	return e.period
}
