package portfolio

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ducminhle1904/noise-engine/internal/logger"
	"github.com/ducminhle1904/noise-engine/internal/monitoring"
	"github.com/ducminhle1904/noise-engine/pkg/types"
)

// correlationWarnFraction is the share of a group limit above which a WARNING is raised
const correlationWarnFraction = 0.8

// syntheticPositionID marks the position appended by CheckOrderExposure
const syntheticPositionID = "order-exposure-check"

// unclassifiedSector is the bucket for positions without sector or asset class
const unclassifiedSector = "UNCLASSIFIED"

// ExposureManager analyzes account exposure against portfolio constraints.
// Constraints are published as immutable snapshots; readers never lock.
type ExposureManager struct {
	constraints atomic.Pointer[Constraints]
	writeMu     sync.Mutex
	log         *logger.Logger
}

// Option configures an ExposureManager
type Option func(*ExposureManager)

// WithLogger sets the manager's logger
func WithLogger(l *logger.Logger) Option {
	return func(m *ExposureManager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewExposureManager creates a manager with the given constraints
func NewExposureManager(constraints Constraints, opts ...Option) *ExposureManager {
	m := &ExposureManager{log: logger.Nop()}
	c := constraints.Clone()
	m.constraints.Store(&c)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetConstraints returns a deep copy of the current constraints
func (m *ExposureManager) GetConstraints() Constraints {
	return m.constraints.Load().Clone()
}

// UpdateConstraints merges a partial update into the constraints and
// publishes the result
func (m *ExposureManager) UpdateConstraints(update ConstraintsUpdate) Constraints {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	next := update.applyTo(*m.constraints.Load())
	m.constraints.Store(&next)

	m.log.Status("portfolio constraints updated",
		"max_total_exposure", next.MaxTotalExposure,
		"max_gross_exposure", next.MaxGrossExposure,
		"max_net_growth", next.MaxNetGrowth,
		"max_net_short", next.MaxNetShort,
		"sectors", len(next.SectorConcentration),
		"correlation_groups", len(next.CorrelationGroups),
	)
	return next.Clone()
}

// AnalyzePortfolio computes exposure metrics and violations for an account
func (m *ExposureManager) AnalyzePortfolio(account types.Account) Analysis {
	c := m.constraints.Load()
	analysis := analyze(*c, account)

	for _, v := range analysis.Violations {
		monitoring.RecordExposureViolation(string(v.Type), string(v.Severity))
	}
	return analysis
}

// CheckOrderExposure analyzes the account as if the order were already
// filled. The input account is not modified.
func (m *ExposureManager) CheckOrderExposure(symbol string, side types.Side, quantity, price float64, account types.Account) OrderExposure {
	orderValue := math.Abs(quantity * price)

	hypothetical := account.Clone()
	synthetic := types.Position{
		ID:           syntheticPositionID,
		Symbol:       symbol,
		Side:         side,
		Quantity:     quantity,
		EntryPrice:   price,
		CurrentPrice: price,
		MarketValue:  orderValue,
	}
	// inherit classification from an existing position in the same symbol
	for _, p := range account.Positions {
		if p.Symbol == symbol {
			synthetic.AssetClass = p.AssetClass
			synthetic.Sector = p.Sector
			break
		}
	}
	hypothetical.Positions = append(hypothetical.Positions, synthetic)
	hypothetical.Exposure.Total += orderValue

	analysis := m.AnalyzePortfolio(hypothetical)

	out := OrderExposure{
		Allowed:    analysis.WithinLimits,
		Violations: analysis.Errors(),
	}
	for _, w := range analysis.Warnings() {
		out.Warnings = append(out.Warnings, w.Message)
	}
	return out
}

// GetSymbolConcentration returns the symbol's exposure in percent of equity
func (m *ExposureManager) GetSymbolConcentration(symbol string, account types.Account) float64 {
	if !(account.TotalEquity > 0) {
		return 0
	}
	exposure := 0.0
	for _, p := range account.Positions {
		if p.Symbol == symbol {
			exposure += p.Value()
		}
	}
	return exposure / account.TotalEquity * 100
}

func analyze(c Constraints, account types.Account) Analysis {
	equity := account.TotalEquity
	if !(equity > 0) {
		return Analysis{
			WithinLimits: false,
			Violations: []Violation{{
				Type:         ViolationTotalExposure,
				Severity:     SeverityError,
				Message:      "Invalid equity value",
				CurrentValue: 0,
				LimitValue:   equity,
			}},
		}
	}

	metrics := calculateMetrics(c, account)
	var violations []Violation

	if limit := c.MaxTotalExposure * 100; metrics.TotalExposurePercent > limit {
		violations = append(violations, errorViolation(ViolationTotalExposure,
			fmt.Sprintf("Total exposure %.1f%% exceeds %.1f%%", metrics.TotalExposurePercent, limit),
			metrics.TotalExposurePercent, limit))
	}

	if limit := c.MaxGrossExposure * 100; metrics.GrossExposurePercent > limit {
		violations = append(violations, errorViolation(ViolationGrossExposure,
			fmt.Sprintf("Gross exposure %.1f%% exceeds %.1f%%", metrics.GrossExposurePercent, limit),
			metrics.GrossExposurePercent, limit))
	}

	if limit := c.MaxNetGrowth * 100; metrics.NetLongPercent > limit {
		violations = append(violations, errorViolation(ViolationNetGrowth,
			fmt.Sprintf("Net long exposure %.1f%% exceeds %.1f%%", metrics.NetLongPercent, limit),
			metrics.NetLongPercent, limit))
	}

	if limit := c.MaxNetShort * 100; metrics.NetShortPercent < limit {
		violations = append(violations, errorViolation(ViolationNetShort,
			fmt.Sprintf("Net short exposure %.1f%% exceeds %.1f%%", metrics.NetShortPercent, limit),
			metrics.NetShortPercent, limit))
	}

	for _, s := range metrics.Sectors {
		maxFraction, ok := c.SectorConcentration[s.Sector]
		if !ok {
			continue
		}
		if limit := maxFraction * 100; s.Concentration > limit {
			violations = append(violations, errorViolation(ViolationSector,
				fmt.Sprintf("%s sector exposure %.1f%% exceeds %.1f%%", s.Sector, s.Concentration, limit),
				s.Concentration, limit))
		}
	}

	for _, g := range metrics.Correlation {
		switch {
		case g.Concentration > g.Limit:
			violations = append(violations, errorViolation(ViolationCorrelation,
				fmt.Sprintf("%s exposure %.1f%% exceeds %.1f%%", g.Name, g.Concentration, g.Limit),
				g.Concentration, g.Limit))
		case g.Concentration > g.Limit*correlationWarnFraction:
			violations = append(violations, Violation{
				Type:         ViolationCorrelation,
				Severity:     SeverityWarning,
				Message:      fmt.Sprintf("%s exposure approaching limit (%.1f%% of %.1f%%)", g.Name, g.Concentration, g.Limit),
				CurrentValue: g.Concentration,
				LimitValue:   g.Limit,
			})
		}
	}

	analysis := Analysis{Violations: violations, Metrics: metrics}
	analysis.WithinLimits = len(analysis.Errors()) == 0
	return analysis
}

func errorViolation(t ViolationType, msg string, current, limit float64) Violation {
	return Violation{Type: t, Severity: SeverityError, Message: msg, CurrentValue: current, LimitValue: limit}
}

func calculateMetrics(c Constraints, account types.Account) Metrics {
	equity := account.TotalEquity
	var m Metrics

	sectors := make(map[string]*SectorExposure)
	for _, p := range account.Positions {
		value := p.Value()
		name := sectorOf(p)
		s, ok := sectors[name]
		if !ok {
			s = &SectorExposure{Sector: name}
			sectors[name] = s
		}

		if p.Side == types.SideShort {
			m.ShortExposure += value
			s.Short += value
		} else {
			m.LongExposure += value
			s.Long += value
		}
	}

	m.TotalExposure = m.LongExposure + m.ShortExposure
	m.GrossExposure = m.LongExposure + math.Abs(m.ShortExposure)
	m.NetExposure = m.LongExposure - m.ShortExposure

	m.TotalExposurePercent = m.TotalExposure / equity * 100
	m.GrossExposurePercent = m.GrossExposure / equity * 100
	m.NetExposurePercent = m.NetExposure / equity * 100
	m.NetLongPercent = m.NetExposurePercent
	if m.NetExposurePercent < 0 {
		m.NetShortPercent = m.NetExposurePercent
	}

	names := make([]string, 0, len(sectors))
	for name := range sectors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := sectors[name]
		s.Net = s.Long - s.Short
		s.Concentration = (s.Long + s.Short) / equity * 100
		m.Sectors = append(m.Sectors, *s)
	}

	for _, g := range c.CorrelationGroups {
		exposure := 0.0
		for _, p := range account.Positions {
			if g.contains(p.Symbol) {
				exposure += p.Value()
			}
		}
		m.Correlation = append(m.Correlation, GroupExposure{
			Name:          g.Name,
			Exposure:      exposure,
			Concentration: exposure / equity * 100,
			Limit:         g.MaxConcentration * 100,
		})
	}
	return m
}

// sectorOf buckets a position by sector, falling back to its asset class
func sectorOf(p types.Position) string {
	if p.Sector != "" {
		return p.Sector
	}
	if p.AssetClass != "" {
		return string(p.AssetClass)
	}
	return unclassifiedSector
}
