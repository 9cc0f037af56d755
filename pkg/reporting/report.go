package reporting

import (
	"github.com/ducminhle1904/noise-engine/internal/engine"
	"github.com/ducminhle1904/noise-engine/internal/portfolio"
	"github.com/ducminhle1904/noise-engine/internal/risk"
	"github.com/ducminhle1904/noise-engine/internal/stops"
)

// Report is everything a replay run produced
type Report struct {
	Symbol    string
	Timeframe string
	Decisions []engine.Decision
	Stops     []stops.Record
	Analysis  portfolio.Analysis
	Risk      risk.State
	Results   engine.Results
}

// Admitted counts the ALLOW decisions
func (r Report) Admitted() int {
	n := 0
	for _, d := range r.Decisions {
		if d.Evaluation.Allowed() {
			n++
		}
	}
	return n
}

// BlockCounts tallies BLOCK decisions by code
func (r Report) BlockCounts() map[string]int {
	counts := make(map[string]int)
	for _, d := range r.Decisions {
		if !d.Evaluation.Allowed() {
			counts[string(d.Evaluation.Code)]++
		}
	}
	return counts
}
