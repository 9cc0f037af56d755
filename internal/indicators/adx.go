package indicators

import (
	"math"

	"github.com/ducminhle1904/noise-engine/pkg/types"
)

// DirectionalIndex is one ADX reading with its directional components
type DirectionalIndex struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
}

// ADX represents the Average Directional Index technical indicator
// ADX measures trend strength regardless of direction (0-100 scale)
// Values > 20 indicate trending market, > 40 indicate strong trend
type ADX struct {
	period int
}

// NewADX creates a new ADX indicator
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

// Calculate returns the Wilder-smoothed ADX at the last bar
func (a *ADX) Calculate(bars []types.PriceBar) (DirectionalIndex, error) {
	need := a.GetRequiredPeriods()
	if a.period <= 0 || len(bars) < need {
		return DirectionalIndex{}, insufficient("ADX", need, len(bars))
	}

	p := float64(a.period)
	var trSum, plusSum, minusSum float64
	var out DirectionalIndex
	dxSeen := 0
	dxSum := 0.0

	for i := 1; i < len(bars); i++ {
		tr := TrueRange(bars[i], bars[i-1].Close)
		plusDM, minusDM := directionalMove(bars[i], bars[i-1])

		if i <= a.period {
			trSum += tr
			plusSum += plusDM
			minusSum += minusDM
			if i < a.period {
				continue
			}
		} else {
			trSum = trSum - trSum/p + tr
			plusSum = plusSum - plusSum/p + plusDM
			minusSum = minusSum - minusSum/p + minusDM
		}

		if trSum > 0 {
			out.PlusDI = 100 * plusSum / trSum
			out.MinusDI = 100 * minusSum / trSum
		} else {
			out.PlusDI, out.MinusDI = 0, 0
		}

		dx := 0.0
		if total := out.PlusDI + out.MinusDI; total > 0 {
			dx = 100 * math.Abs(out.PlusDI-out.MinusDI) / total
		}

		dxSeen++
		switch {
		case dxSeen < a.period:
			dxSum += dx
		case dxSeen == a.period:
			out.ADX = (dxSum + dx) / p
		default:
			out.ADX = (out.ADX*(p-1) + dx) / p
		}
	}
	return out, nil
}

// GetRequiredPeriods returns the minimum number of bars needed
func (a *ADX) GetRequiredPeriods() int {
	return 2 * a.period
}

func directionalMove(cur, prev types.PriceBar) (plusDM, minusDM float64) {
	up := cur.High - prev.High
	down := prev.Low - cur.Low
	if up > down && up > 0 {
		plusDM = up
	}
	if down > up && down > 0 {
		minusDM = down
	}
	return plusDM, minusDM
}
