package strategy

import (
	"github.com/ducminhle1904/noise-engine/pkg/types"
)

// Kind identifies a scorer variant
type Kind string

const (
	KindMomentum      Kind = "momentum"
	KindMeanReversion Kind = "mean_reversion"
	KindBreakout      Kind = "breakout"
)

// Scorer turns a bar series into at most one trade candidate. Scorers are
// pure: the same bars and params always give the same candidate.
type Scorer interface {
	// Kind returns the variant tag used by regime gating
	Kind() Kind

	// Name returns the strategy name stamped on signals as their source
	Name() string

	// Score returns a candidate and true, or false when the scorer has no
	// opinion (insufficient history or no setup)
	Score(bars []types.PriceBar, params Params) (Candidate, bool)
}

// Params are the level-placement settings shared by every scorer
type Params struct {
	ATRPeriod       int     `json:"atr_period" mapstructure:"atr_period" validate:"gt=0"`
	StopATRMultiple float64 `json:"stop_atr_multiple" mapstructure:"stop_atr_multiple" validate:"gt=0"`
	RewardRiskRatio float64 `json:"reward_risk_ratio" mapstructure:"reward_risk_ratio" validate:"gte=0"`
}

// DefaultParams returns the default level-placement settings
func DefaultParams() Params {
	return Params{
		ATRPeriod:       14,
		StopATRMultiple: 1.5,
		RewardRiskRatio: 2.0,
	}
}

// Candidate is a scorer's proposed trade before filtering
type Candidate struct {
	Direction  types.Direction
	Strength   float64
	Entry      float64
	Stop       float64
	TakeProfit float64 // 0 means no target
	Reasons    []string
	Indicators map[string]float64
}
