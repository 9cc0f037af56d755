package engine

import (
	"math"
	"time"

	"github.com/ducminhle1904/noise-engine/pkg/types"
)

// Trade is a closed paper position
type Trade struct {
	PositionID string     `json:"position_id"`
	Symbol     string     `json:"symbol"`
	Side       types.Side `json:"side"`
	Source     string     `json:"source"`
	Quantity   float64    `json:"quantity"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   time.Time  `json:"exit_time"`
	PnL        float64    `json:"pnl"`
}

// Return is the trade's P&L relative to its entry notional
func (t Trade) Return() float64 {
	notional := t.EntryPrice * t.Quantity
	if notional <= 0 {
		return 0
	}
	return t.PnL / notional
}

// EquityPoint is one mark of the paper account
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// Results summarizes a replay
type Results struct {
	StartEquity float64       `json:"start_equity"`
	EndEquity   float64       `json:"end_equity"`
	Trades      []Trade       `json:"trades"`
	EquityCurve []EquityPoint `json:"equity_curve"`
}

// TotalReturn is the percentage change in equity
func (r Results) TotalReturn() float64 {
	if r.StartEquity <= 0 {
		return 0
	}
	return (r.EndEquity - r.StartEquity) / r.StartEquity * 100
}

// WinRate is the percentage of trades closed with a profit
func (r Results) WinRate() float64 {
	if len(r.Trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range r.Trades {
		if t.PnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(r.Trades)) * 100
}

// ProfitFactor is gross profit over gross loss. Infinite when there are
// profits and no losses.
func (r Results) ProfitFactor() float64 {
	profit, loss := 0.0, 0.0
	for _, t := range r.Trades {
		if t.PnL > 0 {
			profit += t.PnL
		} else {
			loss += math.Abs(t.PnL)
		}
	}
	if loss == 0 {
		if profit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return profit / loss
}

// SharpeRatio is the mean per-trade return over its standard deviation, with
// a zero risk-free rate
func (r Results) SharpeRatio() float64 {
	if len(r.Trades) == 0 {
		return 0
	}
	avg := 0.0
	for _, t := range r.Trades {
		avg += t.Return()
	}
	avg /= float64(len(r.Trades))

	variance := 0.0
	for _, t := range r.Trades {
		variance += math.Pow(t.Return()-avg, 2)
	}
	variance /= float64(len(r.Trades))
	stdDev := math.Sqrt(variance)

	if stdDev < 1e-10 {
		return 0
	}
	return avg / stdDev
}

// MaxDrawdown is the largest peak-to-trough fall of the equity curve, in
// percent of the peak
func (r Results) MaxDrawdown() float64 {
	peak := r.StartEquity
	maxDD := 0.0
	for _, p := range r.EquityCurve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
