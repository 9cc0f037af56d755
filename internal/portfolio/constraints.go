package portfolio

// CorrelationGroup is a set of symbols that move together. MaxConcentration
// is a fraction of equity.
type CorrelationGroup struct {
	Name                 string   `json:"name" mapstructure:"name" validate:"required"`
	Symbols              []string `json:"symbols" mapstructure:"symbols" validate:"min=1"`
	MaxConcentration     float64  `json:"max_concentration" mapstructure:"max_concentration" validate:"gt=0"`
	CorrelationThreshold float64  `json:"correlation_threshold" mapstructure:"correlation_threshold" validate:"gte=0,lte=1"`
}

func (g CorrelationGroup) contains(symbol string) bool {
	for _, s := range g.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// Constraints are the portfolio exposure limits, as multiples or fractions
// of equity
type Constraints struct {
	MaxTotalExposure    float64            `json:"max_total_exposure" mapstructure:"max_total_exposure" validate:"gt=0"`
	MaxGrossExposure    float64            `json:"max_gross_exposure" mapstructure:"max_gross_exposure" validate:"gt=0"`
	MaxNetGrowth        float64            `json:"max_net_growth" mapstructure:"max_net_growth" validate:"gt=0"`
	MaxNetShort         float64            `json:"max_net_short" mapstructure:"max_net_short" validate:"lte=0"`
	SectorConcentration map[string]float64 `json:"sector_concentration" mapstructure:"sector_concentration" validate:"dive,gt=0"`
	CorrelationGroups   []CorrelationGroup `json:"correlation_groups" mapstructure:"correlation_groups" validate:"dive"`
}

// DefaultConstraints returns the default exposure limits
func DefaultConstraints() Constraints {
	return Constraints{
		MaxTotalExposure: 2.5,
		MaxGrossExposure: 3.0,
		MaxNetGrowth:     1.5,
		MaxNetShort:      -0.5,
		SectorConcentration: map[string]float64{
			"TECH":       0.5,
			"FINANCIALS": 0.4,
			"HEALTHCARE": 0.4,
			"CONSUMER":   0.4,
			"ENERGY":     0.4,
		},
		CorrelationGroups: []CorrelationGroup{
			{
				Name:                 "NASDAQ",
				Symbols:              []string{"MNQ", "MES", "MYM", "NQ", "ES", "YM", "RTY", "RUTY"},
				MaxConcentration:     0.6,
				CorrelationThreshold: 0.8,
			},
			{
				Name:                 "LEVERAGE_ETFS",
				Symbols:              []string{"TQQQ", "SQQQ", "UPRO", "SPXU", "LABU", "LABD"},
				MaxConcentration:     0.3,
				CorrelationThreshold: 0.9,
			},
		},
	}
}

// Clone deep-copies the sector map and the groups
func (c Constraints) Clone() Constraints {
	out := c
	if c.SectorConcentration != nil {
		out.SectorConcentration = make(map[string]float64, len(c.SectorConcentration))
		for k, v := range c.SectorConcentration {
			out.SectorConcentration[k] = v
		}
	}
	if c.CorrelationGroups != nil {
		out.CorrelationGroups = make([]CorrelationGroup, len(c.CorrelationGroups))
		for i, g := range c.CorrelationGroups {
			g.Symbols = append([]string(nil), g.Symbols...)
			out.CorrelationGroups[i] = g
		}
	}
	return out
}

// ConstraintsUpdate is a partial update. Nil scalars are left alone, sector
// limits merge into the existing map and groups are appended.
type ConstraintsUpdate struct {
	MaxTotalExposure    *float64           `json:"max_total_exposure,omitempty"`
	MaxGrossExposure    *float64           `json:"max_gross_exposure,omitempty"`
	MaxNetGrowth        *float64           `json:"max_net_growth,omitempty"`
	MaxNetShort         *float64           `json:"max_net_short,omitempty"`
	SectorConcentration map[string]float64 `json:"sector_concentration,omitempty"`
	CorrelationGroups   []CorrelationGroup `json:"correlation_groups,omitempty"`
}

func (u ConstraintsUpdate) applyTo(c Constraints) Constraints {
	out := c.Clone()
	if u.MaxTotalExposure != nil {
		out.MaxTotalExposure = *u.MaxTotalExposure
	}
	if u.MaxGrossExposure != nil {
		out.MaxGrossExposure = *u.MaxGrossExposure
	}
	if u.MaxNetGrowth != nil {
		out.MaxNetGrowth = *u.MaxNetGrowth
	}
	if u.MaxNetShort != nil {
		out.MaxNetShort = *u.MaxNetShort
	}
	if len(u.SectorConcentration) > 0 {
		if out.SectorConcentration == nil {
			out.SectorConcentration = make(map[string]float64, len(u.SectorConcentration))
		}
		for k, v := range u.SectorConcentration {
			out.SectorConcentration[k] = v
		}
	}
	for _, g := range u.CorrelationGroups {
		g.Symbols = append([]string(nil), g.Symbols...)
		out.CorrelationGroups = append(out.CorrelationGroups, g)
	}
	return out
}
