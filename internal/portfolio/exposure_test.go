package portfolio

import (
	"math"
	"sync"
	"testing"

	"github.com/ducminhle1904/noise-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func position(id, symbol string, side types.Side, value float64) types.Position {
	return types.Position{
		ID:           id,
		Symbol:       symbol,
		Side:         side,
		Quantity:     1,
		EntryPrice:   value,
		CurrentPrice: value,
		MarketValue:  value,
		AssetClass:   types.AssetClassFutures,
	}
}

func account(equity float64, positions ...types.Position) types.Account {
	return types.Account{TotalEquity: equity, Positions: positions}
}

func violationTypes(vs []Violation) []ViolationType {
	out := make([]ViolationType, len(vs))
	for i, v := range vs {
		out[i] = v.Type
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func TestAnalyzePortfolio_InvalidEquity(t *testing.T) {
	m := NewExposureManager(DefaultConstraints())

	for _, equity := range []float64{0, -100} {
		analysis := m.AnalyzePortfolio(account(equity, position("p", "MNQ", types.SideLong, 1000)))
		assert.False(t, analysis.WithinLimits)
		require.Len(t, analysis.Violations, 1)
		assert.Equal(t, ViolationTotalExposure, analysis.Violations[0].Type)
		assert.Equal(t, SeverityError, analysis.Violations[0].Severity)
		assert.Equal(t, Metrics{}, analysis.Metrics)
	}
}

func TestAnalyzePortfolio_Metrics(t *testing.T) {
	m := NewExposureManager(DefaultConstraints())
	analysis := m.AnalyzePortfolio(account(100000,
		position("a", "MNQ", types.SideLong, 30000),
		position("b", "TQQQ", types.SideShort, 10000),
	))

	mt := analysis.Metrics
	assert.Equal(t, 30000.0, mt.LongExposure)
	assert.Equal(t, 10000.0, mt.ShortExposure)
	assert.Equal(t, 40000.0, mt.TotalExposure)
	assert.Equal(t, 40000.0, mt.GrossExposure)
	assert.Equal(t, 20000.0, mt.NetExposure)
	assert.InDelta(t, 40.0, mt.TotalExposurePercent, 1e-9)
	assert.InDelta(t, 20.0, mt.NetLongPercent, 1e-9)
	assert.Equal(t, 0.0, mt.NetShortPercent)

	nasdaq, ok := mt.Group("NASDAQ")
	require.True(t, ok)
	assert.InDelta(t, 30.0, nasdaq.Concentration, 1e-9)
	assert.Equal(t, 60.0, nasdaq.Limit)

	futures, ok := mt.Sector("FUTURES")
	require.True(t, ok)
	assert.Equal(t, 30000.0, futures.Long)
	assert.Equal(t, 10000.0, futures.Short)
	assert.Equal(t, 20000.0, futures.Net)
	assert.InDelta(t, 40.0, futures.Concentration, 1e-9)

	assert.True(t, analysis.WithinLimits)
	assert.Empty(t, analysis.Violations)
}

func TestAnalyzePortfolio_Violations(t *testing.T) {
	tech := func(id string, value float64) types.Position {
		p := position(id, "AAPL", types.SideLong, value)
		p.AssetClass = types.AssetClassEquity
		p.Sector = "TECH"
		return p
	}

	tests := []struct {
		name         string
		account      types.Account
		wantTypes    []ViolationType
		wantWithin   bool
		wantSeverity Severity
	}{
		{
			name:       "correlation warning near limit",
			account:    account(100000, position("a", "MNQ", types.SideLong, 50000)),
			wantTypes:  []ViolationType{ViolationCorrelation},
			wantWithin: true, wantSeverity: SeverityWarning,
		},
		{
			name:       "correlation error above limit",
			account:    account(100000, position("a", "MNQ", types.SideLong, 70000)),
			wantTypes:  []ViolationType{ViolationCorrelation},
			wantWithin: false, wantSeverity: SeverityError,
		},
		{
			name:       "total and net long",
			account:    account(100000, position("a", "CL", types.SideLong, 160000), position("b", "GC", types.SideLong, 100000)),
			wantTypes:  []ViolationType{ViolationTotalExposure, ViolationNetGrowth},
			wantWithin: false, wantSeverity: SeverityError,
		},
		{
			name:       "net short beyond limit",
			account:    account(100000, position("a", "CL", types.SideShort, 60000)),
			wantTypes:  []ViolationType{ViolationNetShort},
			wantWithin: false, wantSeverity: SeverityError,
		},
		{
			name:       "net short within limit",
			account:    account(100000, position("a", "CL", types.SideShort, 40000)),
			wantTypes:  []ViolationType{},
			wantWithin: true,
		},
		{
			name:       "sector concentration",
			account:    account(100000, tech("a", 35000), tech("b", 25000)),
			wantTypes:  []ViolationType{ViolationSector},
			wantWithin: false, wantSeverity: SeverityError,
		},
	}

	m := NewExposureManager(DefaultConstraints())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := m.AnalyzePortfolio(tt.account)
			assert.Equal(t, tt.wantTypes, violationTypes(analysis.Violations))
			assert.Equal(t, tt.wantWithin, analysis.WithinLimits)
			if len(analysis.Violations) > 0 {
				assert.Equal(t, tt.wantSeverity, analysis.Violations[0].Severity)
				assert.NotEmpty(t, analysis.Violations[0].Message)
			}
		})
	}
}

func TestAnalyzePortfolio_GrossAndOrdering(t *testing.T) {
	m := NewExposureManager(DefaultConstraints())
	analysis := m.AnalyzePortfolio(account(100000,
		position("a", "MNQ", types.SideLong, 200000),
		position("b", "TQQQ", types.SideShort, 120000),
	))

	assert.Equal(t, []ViolationType{
		ViolationTotalExposure,
		ViolationGrossExposure,
		ViolationCorrelation,
		ViolationCorrelation,
	}, violationTypes(analysis.Violations))
	assert.Equal(t, "NASDAQ exposure 200.0% exceeds 60.0%", analysis.Violations[2].Message)
	assert.Contains(t, analysis.Violations[3].Message, "LEVERAGE_ETFS")
	assert.False(t, analysis.WithinLimits)
}

func TestCheckOrderExposure(t *testing.T) {
	m := NewExposureManager(DefaultConstraints())
	acct := account(100000, position("a", "MNQ", types.SideLong, 40000))
	acct.Exposure = types.Exposure{Total: 40000, Futures: 40000}

	t.Run("warning does not block", func(t *testing.T) {
		result := m.CheckOrderExposure("MES", types.SideLong, 2, 5000, acct)
		assert.True(t, result.Allowed)
		assert.Empty(t, result.Violations)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "NASDAQ")
	})

	t.Run("error blocks", func(t *testing.T) {
		result := m.CheckOrderExposure("MNQ", types.SideLong, 5, 5000, acct)
		assert.False(t, result.Allowed)
		require.Len(t, result.Violations, 1)
		assert.Equal(t, ViolationCorrelation, result.Violations[0].Type)
		assert.Empty(t, result.Warnings)
	})

	t.Run("input account untouched", func(t *testing.T) {
		m.CheckOrderExposure("MNQ", types.SideLong, 5, 5000, acct)
		assert.Len(t, acct.Positions, 1)
		assert.Equal(t, 40000.0, acct.Exposure.Total)
	})
}

func TestGetSymbolConcentration(t *testing.T) {
	m := NewExposureManager(DefaultConstraints())
	acct := account(50000,
		position("a", "MNQ", types.SideLong, 10000),
		position("b", "MNQ", types.SideShort, 5000),
		position("c", "MES", types.SideLong, 20000),
	)

	assert.InDelta(t, 30.0, m.GetSymbolConcentration("MNQ", acct), 1e-9)
	assert.Equal(t, 0.0, m.GetSymbolConcentration("SPY", acct))
	assert.Equal(t, 0.0, m.GetSymbolConcentration("MNQ", account(0, position("a", "MNQ", types.SideLong, 1))))
	assert.Equal(t, 0.0, m.GetSymbolConcentration("MNQ", account(math.NaN(), position("a", "MNQ", types.SideLong, 1))))
}

func TestUpdateConstraints_Merges(t *testing.T) {
	m := NewExposureManager(DefaultConstraints())

	updated := m.UpdateConstraints(ConstraintsUpdate{
		MaxTotalExposure:    ptr(2.0),
		SectorConcentration: map[string]float64{"TECH": 0.3, "UTILITIES": 0.2},
		CorrelationGroups: []CorrelationGroup{
			{Name: "METALS", Symbols: []string{"GC", "SI"}, MaxConcentration: 0.25, CorrelationThreshold: 0.7},
		},
	})

	assert.Equal(t, 2.0, updated.MaxTotalExposure)
	assert.Equal(t, 3.0, updated.MaxGrossExposure, "nil scalars are left alone")
	assert.Equal(t, 0.3, updated.SectorConcentration["TECH"])
	assert.Equal(t, 0.2, updated.SectorConcentration["UTILITIES"])
	assert.Equal(t, 0.4, updated.SectorConcentration["ENERGY"], "existing sectors survive")
	require.Len(t, updated.CorrelationGroups, 3)
	assert.Equal(t, "METALS", updated.CorrelationGroups[2].Name)

	analysis := m.AnalyzePortfolio(account(100000, position("a", "GC", types.SideLong, 30000)))
	assert.Equal(t, []ViolationType{ViolationCorrelation}, violationTypes(analysis.Violations))
}

func TestGetConstraints_ReturnsCopy(t *testing.T) {
	m := NewExposureManager(DefaultConstraints())

	c := m.GetConstraints()
	c.SectorConcentration["TECH"] = 0.99
	c.CorrelationGroups[0].Symbols[0] = "XXX"
	c.CorrelationGroups = append(c.CorrelationGroups, CorrelationGroup{Name: "NEW"})

	fresh := m.GetConstraints()
	assert.Equal(t, 0.5, fresh.SectorConcentration["TECH"])
	assert.Equal(t, "MNQ", fresh.CorrelationGroups[0].Symbols[0])
	assert.Len(t, fresh.CorrelationGroups, 2)
}

func TestNewExposureManager_CopiesInput(t *testing.T) {
	c := DefaultConstraints()
	m := NewExposureManager(c)
	c.SectorConcentration["TECH"] = 0.01
	assert.Equal(t, 0.5, m.GetConstraints().SectorConcentration["TECH"])
}

func TestExposureManager_ConcurrentUpdatesAndReads(t *testing.T) {
	m := NewExposureManager(DefaultConstraints())
	acct := account(100000, position("a", "MNQ", types.SideLong, 30000))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			m.UpdateConstraints(ConstraintsUpdate{SectorConcentration: map[string]float64{"S": float64(i) / 10}})
		}(i)
		go func() {
			defer wg.Done()
			m.AnalyzePortfolio(acct)
			m.GetConstraints()
		}()
	}
	wg.Wait()

	_, ok := m.GetConstraints().SectorConcentration["S"]
	assert.True(t, ok)
}
