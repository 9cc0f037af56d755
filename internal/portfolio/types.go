package portfolio

// ViolationType names the exposure limit that was breached
type ViolationType string

const (
	ViolationTotalExposure ViolationType = "TOTAL_EXPOSURE"
	ViolationGrossExposure ViolationType = "GROSS_EXPOSURE"
	ViolationNetGrowth     ViolationType = "NET_GROWTH"
	ViolationNetShort      ViolationType = "NET_SHORT"
	ViolationSector        ViolationType = "SECTOR"
	ViolationCorrelation   ViolationType = "CORRELATION"
)

// Severity of a violation. Only ERROR blocks.
type Severity string

const (
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Violation is one breached or nearly breached exposure limit. Values are in
// percent of equity.
type Violation struct {
	Type         ViolationType `json:"type"`
	Severity     Severity      `json:"severity"`
	Message      string        `json:"message"`
	CurrentValue float64       `json:"current_value"`
	LimitValue   float64       `json:"limit_value"`
}

// SectorExposure is the exposure of one sector bucket
type SectorExposure struct {
	Sector        string  `json:"sector"`
	Long          float64 `json:"long"`
	Short         float64 `json:"short"`
	Net           float64 `json:"net"`
	Concentration float64 `json:"concentration"` // percent of equity
}

// GroupExposure is the exposure of one correlation group
type GroupExposure struct {
	Name          string  `json:"name"`
	Exposure      float64 `json:"exposure"`
	Concentration float64 `json:"concentration"` // percent of equity
	Limit         float64 `json:"limit"`         // percent of equity
}

// Metrics are the exposure figures of one analysis
type Metrics struct {
	LongExposure         float64 `json:"long_exposure"`
	ShortExposure        float64 `json:"short_exposure"`
	TotalExposure        float64 `json:"total_exposure"`
	TotalExposurePercent float64 `json:"total_exposure_percent"`
	GrossExposure        float64 `json:"gross_exposure"`
	GrossExposurePercent float64 `json:"gross_exposure_percent"`
	NetExposure          float64 `json:"net_exposure"`
	NetExposurePercent   float64 `json:"net_exposure_percent"`
	NetLongPercent       float64 `json:"net_long_percent"`
	// NetShortPercent is the signed net percent when net is short, else 0
	NetShortPercent float64 `json:"net_short_percent"`

	Sectors     []SectorExposure `json:"sectors"`
	Correlation []GroupExposure  `json:"correlation"`
}

// Sector looks up a sector bucket by name
func (m Metrics) Sector(name string) (SectorExposure, bool) {
	for _, s := range m.Sectors {
		if s.Sector == name {
			return s, true
		}
	}
	return SectorExposure{}, false
}

// Group looks up a correlation group by name
func (m Metrics) Group(name string) (GroupExposure, bool) {
	for _, g := range m.Correlation {
		if g.Name == name {
			return g, true
		}
	}
	return GroupExposure{}, false
}

// Analysis is the result of AnalyzePortfolio
type Analysis struct {
	WithinLimits bool        `json:"within_limits"`
	Violations   []Violation `json:"violations"`
	Metrics      Metrics     `json:"metrics"`
}

// Errors returns the ERROR violations
func (a Analysis) Errors() []Violation {
	return filterSeverity(a.Violations, SeverityError)
}

// Warnings returns the WARNING violations
func (a Analysis) Warnings() []Violation {
	return filterSeverity(a.Violations, SeverityWarning)
}

// OrderExposure is the result of CheckOrderExposure
type OrderExposure struct {
	Allowed    bool        `json:"allowed"`
	Violations []Violation `json:"violations"`
	Warnings   []string    `json:"warnings"`
}

func filterSeverity(vs []Violation, severity Severity) []Violation {
	var out []Violation
	for _, v := range vs {
		if v.Severity == severity {
			out = append(out, v)
		}
	}
	return out
}
