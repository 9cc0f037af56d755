// Package indicators holds stateless technical indicators. Every calculator
// reads only the series it is given, so repeated calls over the same bars
// always return the same value.
package indicators

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned when a series is shorter than an
// indicator's warm-up requirement
var ErrInsufficientData = errors.New("insufficient data")

func insufficient(name string, need, have int) error {
	return fmt.Errorf("%w for %s calculation: need %d, have %d", ErrInsufficientData, name, need, have)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
