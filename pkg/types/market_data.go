package types

import "time"

// PriceBar is a single normalized OHLCV bar. Bars are ordered oldest first.
type PriceBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Closes extracts the close prices of a bar series
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// LastBar returns the most recent bar and false when the series is empty
func LastBar(bars []PriceBar) (PriceBar, bool) {
	if len(bars) == 0 {
		return PriceBar{}, false
	}
	return bars[len(bars)-1], true
}

// Ticker is a single current-price observation for a symbol
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
