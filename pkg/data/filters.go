package data

import (
	"time"

	"github.com/ducminhle1904/noise-engine/pkg/types"
)

// FilterByDateRange keeps bars with start <= timestamp <= end. A zero bound
// is open.
func FilterByDateRange(bars []types.PriceBar, start, end time.Time) []types.PriceBar {
	var filtered []types.PriceBar
	for _, b := range bars {
		if !start.IsZero() && b.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && b.Timestamp.After(end) {
			continue
		}
		filtered = append(filtered, b)
	}
	return filtered
}

// Window returns up to size bars ending at index end, inclusive. A
// non-positive size returns everything up to end.
func Window(bars []types.PriceBar, end, size int) []types.PriceBar {
	if end < 0 || len(bars) == 0 {
		return nil
	}
	if end >= len(bars) {
		end = len(bars) - 1
	}
	start := 0
	if size > 0 && end+1-size > 0 {
		start = end + 1 - size
	}
	return bars[start : end+1]
}
