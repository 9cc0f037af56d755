package indicators

// SMA represents the Simple Moving Average technical indicator
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

// Calculate returns the average of the last period values
func (s *SMA) Calculate(values []float64) (float64, error) {
	if s.period <= 0 || len(values) < s.period {
		return 0, insufficient("SMA", s.period, len(values))
	}
	return mean(values[len(values)-s.period:]), nil
}

// GetRequiredPeriods returns the minimum number of values needed
func (s *SMA) GetRequiredPeriods() int {
	return s.period
}
