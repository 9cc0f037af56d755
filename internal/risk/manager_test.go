package risk

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/noise-engine/internal/portfolio"
	"github.com/ducminhle1904/noise-engine/pkg/types"
)

func longSignal(symbol string, entry, stop float64) types.Signal {
	return types.Signal{
		ID:         "sig-" + symbol,
		Symbol:     symbol,
		AssetClass: types.AssetClassEquity,
		Direction:  types.DirectionLong,
		Strength:   0.8,
		EntryPrice: entry,
		StopLoss:   stop,
		Source:     "momentum",
		Status:     types.SignalActive,
	}
}

func account(equity float64, positions int) types.Account {
	acc := types.Account{TotalEquity: equity, TotalCash: equity}
	for i := 0; i < positions; i++ {
		acc.Positions = append(acc.Positions, types.Position{
			ID:           "pos-" + string(rune('a'+i)),
			Symbol:       "AAPL",
			Side:         types.SideLong,
			Quantity:     1,
			EntryPrice:   100,
			CurrentPrice: 100,
			AssetClass:   types.AssetClassEquity,
		})
	}
	return acc
}

type stubChecker struct {
	result portfolio.OrderExposure
	calls  int
}

func (s *stubChecker) CheckOrderExposure(string, types.Side, float64, float64, types.Account) portfolio.OrderExposure {
	s.calls++
	return s.result
}

func TestEvaluateOrder_AllowsAndSizes(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)

	eval := m.EvaluateOrder(longSignal("AAPL", 100, 98), account(100000, 0))

	require.True(t, eval.Allowed())
	require.NotNil(t, eval.PositionSize)
	// risk budget allows 1000 units but max order value caps at 100
	assert.Equal(t, 100.0, eval.PositionSize.Quantity)
	assert.Equal(t, 10000.0, eval.PositionSize.Value)
	assert.Equal(t, types.BlockNone, eval.Code)
}

func TestEvaluateOrder_Blocks(t *testing.T) {
	tests := []struct {
		name    string
		signal  types.Signal
		account types.Account
		code    types.BlockCode
		reason  string
	}{
		{
			name:    "concurrency limit",
			signal:  longSignal("AAPL", 100, 98),
			account: account(100000, 5),
			code:    types.BlockConcurrencyLimit,
			reason:  "Maximum concurrent positions",
		},
		{
			name:    "zero equity",
			signal:  longSignal("AAPL", 100, 98),
			account: account(0, 0),
			code:    types.BlockInvalidAccount,
		},
		{
			name:    "negative equity",
			signal:  longSignal("AAPL", 100, 98),
			account: account(-500, 0),
			code:    types.BlockInvalidAccount,
		},
		{
			name:    "neutral direction",
			signal:  func() types.Signal { s := longSignal("AAPL", 100, 98); s.Direction = types.DirectionNeutral; return s }(),
			account: account(100000, 0),
			code:    types.BlockInvalidSignal,
		},
		{
			name:    "zero entry",
			signal:  longSignal("AAPL", 0, 98),
			account: account(100000, 0),
			code:    types.BlockInvalidSignal,
		},
		{
			name:    "negative stop",
			signal:  longSignal("AAPL", 100, -1),
			account: account(100000, 0),
			code:    types.BlockInvalidSignal,
		},
		{
			name:    "stop equals entry",
			signal:  longSignal("AAPL", 100, 100),
			account: account(100000, 0),
			code:    types.BlockInvalidSignal,
		},
		{
			name:    "unit price above max order value",
			signal:  longSignal("MNQ", 15000, 14900),
			account: account(100000, 0),
			code:    types.BlockOrderSize,
		},
		{
			name:    "position cap below one unit",
			signal:  longSignal("AAPL", 60, 59),
			account: account(100, 0),
			code:    types.BlockOrderSize,
		},
	}

	m := NewManager(DefaultConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := m.EvaluateOrder(tt.signal, tt.account)

			assert.Equal(t, types.DecisionBlock, eval.Decision)
			assert.Equal(t, tt.code, eval.Code)
			assert.NotEmpty(t, eval.Reason)
			assert.Nil(t, eval.PositionSize)
			if tt.reason != "" {
				assert.Contains(t, eval.Reason, tt.reason)
			}
		})
	}
}

func TestEvaluateOrder_ConcurrencyCheckedFirst(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	m.Breaker().Trip("test")

	eval := m.EvaluateOrder(longSignal("AAPL", 0, 0), account(0, 5))
	assert.Equal(t, types.BlockConcurrencyLimit, eval.Code)

	eval = m.EvaluateOrder(longSignal("AAPL", 0, 0), account(0, 4))
	assert.Equal(t, types.BlockCircuitBreaker, eval.Code)
	assert.Contains(t, eval.Reason, "test")
}

func TestEvaluateOrder_FourPositionsStillAllowed(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	acc := account(100000, 4)
	acc.Exposure = types.Exposure{Total: 400, Equities: 400}

	eval := m.EvaluateOrder(longSignal("AAPL", 100, 98), acc)
	assert.True(t, eval.Allowed())
}

func TestCalculatePositionSize(t *testing.T) {
	tests := []struct {
		name   string
		entry  float64
		stop   float64
		equity float64
		qty    float64
		value  float64
	}{
		{"risk budget binds", 100, 50, 100000, 40, 4000},
		{"max order value binds", 100, 98, 100000, 100, 10000},
		{"position percent binds", 100, 99, 20000, 40, 4000},
		{"short stop above entry", 100, 102, 100000, 100, 10000},
		{"fractional prices", 12.5, 12.25, 10000, 160, 2000},
	}

	m := NewManager(DefaultConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, reason := m.CalculatePositionSize(longSignal("X", tt.entry, tt.stop), tt.equity)
			require.Empty(t, reason)
			assert.Equal(t, tt.qty, size.Quantity)
			assert.InDelta(t, tt.value, size.Value, 1e-9)
		})
	}
}

func TestCalculatePositionSize_RejectsNonFiniteInputs(t *testing.T) {
	tests := []struct {
		name   string
		entry  float64
		stop   float64
		equity float64
		reason string
	}{
		{"nan entry", math.NaN(), 100, 100000, "entry price"},
		{"inf entry", math.Inf(1), 100, 100000, "entry price"},
		{"negative entry", -100, 90, 100000, "entry price"},
		{"nan stop", 100, math.NaN(), 100000, "stop loss"},
		{"negative inf stop", 100, math.Inf(-1), 100000, "stop loss"},
		{"nan equity", 100, 90, math.NaN(), "equity"},
		{"inf equity", 100, 90, math.Inf(1), "equity"},
		{"zero equity", 100, 90, 0, "equity"},
		{"stop equals entry", 100, 100, 100000, "per-unit risk"},
	}

	m := NewManager(DefaultConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				size   types.PositionSize
				reason string
			)
			require.NotPanics(t, func() {
				size, reason = m.CalculatePositionSize(longSignal("X", tt.entry, tt.stop), tt.equity)
			})
			assert.Contains(t, reason, tt.reason)
			assert.Zero(t, size.Quantity)
		})
	}
}

func TestCalculatePositionSize_BelowMinimumValue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinOrderValue = 500
	m := NewManager(cfg, nil)

	// 2% of 10000 over 10 per unit is 20 units, but max position is 2000/100 = 20
	// and min order value needs 5 units, so this fits
	size, reason := m.CalculatePositionSize(longSignal("X", 100, 90), 10000)
	require.Empty(t, reason)
	assert.Equal(t, 20.0, size.Quantity)

	// 2% of 1000 over 10 per unit is 2 units, below the 5 unit minimum
	_, reason = m.CalculatePositionSize(longSignal("X", 100, 90), 1000)
	assert.NotEmpty(t, reason)
}

func TestEvaluateOrder_SizeStaysWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	m := NewManager(cfg, nil)

	for _, entry := range []float64{1.5, 7, 33.3, 99.99, 250, 1234.5, 4999} {
		for _, stopGap := range []float64{0.01, 0.5, 3, 20} {
			if stopGap >= entry {
				continue
			}
			equity := 50000.0
			size, reason := m.CalculatePositionSize(longSignal("X", entry, entry-stopGap), equity)
			if reason != "" {
				continue
			}
			assert.Greater(t, size.Quantity, 0.0)
			assert.LessOrEqual(t, size.Value, cfg.MaxOrderValue+1e-9)
			assert.GreaterOrEqual(t, size.Value, cfg.MinOrderValue-1e-9)
			assert.LessOrEqual(t, size.Value, equity*cfg.MaxPositionPercent/100+1e-9)
			assert.LessOrEqual(t, size.Quantity*stopGap, equity*cfg.MaxRiskPerTradePercent/100+1e-9)
		}
	}
}

func TestEvaluateOrder_ProjectedExposure(t *testing.T) {
	tests := []struct {
		name       string
		assetClass types.AssetClass
		exposure   types.Exposure
		code       types.BlockCode
	}{
		{"equities cap", types.AssetClassEquity, types.Exposure{Total: 95000, Equities: 95000}, types.BlockAssetClassExposure},
		{"futures cap", types.AssetClassFutures, types.Exposure{Total: 145000, Futures: 145000}, types.BlockAssetClassExposure},
		{"total cap", types.AssetClassEquity, types.Exposure{Total: 195000, Futures: 140000, Equities: 55000}, types.BlockExposureLimit},
		{"within caps", types.AssetClassFutures, types.Exposure{Total: 100000, Futures: 100000}, types.BlockNone},
	}

	m := NewManager(DefaultConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := longSignal("X", 100, 98)
			sig.AssetClass = tt.assetClass
			acc := account(100000, 0)
			acc.Exposure = tt.exposure

			eval := m.EvaluateOrder(sig, acc)
			assert.Equal(t, tt.code, eval.Code)
			assert.Equal(t, tt.code == types.BlockNone, eval.Allowed())
		})
	}
}

func TestEvaluateOrder_ExposureChecker(t *testing.T) {
	t.Run("error violation blocks", func(t *testing.T) {
		checker := &stubChecker{result: portfolio.OrderExposure{
			Allowed: false,
			Violations: []portfolio.Violation{{
				Type:     portfolio.ViolationCorrelation,
				Severity: portfolio.SeverityError,
				Message:  "NASDAQ exposure 70.0% exceeds 60.0%",
			}},
		}}
		m := NewManager(DefaultConfig(), nil, WithExposureChecker(checker))

		eval := m.EvaluateOrder(longSignal("AAPL", 100, 98), account(100000, 0))
		assert.Equal(t, types.BlockExposureLimit, eval.Code)
		assert.Contains(t, eval.Reason, "NASDAQ")
		assert.Equal(t, 1, checker.calls)
	})

	t.Run("warnings are attached", func(t *testing.T) {
		checker := &stubChecker{result: portfolio.OrderExposure{Allowed: true, Warnings: []string{"approaching limit"}}}
		m := NewManager(DefaultConfig(), nil, WithExposureChecker(checker))

		eval := m.EvaluateOrder(longSignal("AAPL", 100, 98), account(100000, 0))
		require.True(t, eval.Allowed())
		assert.Equal(t, []string{"approaching limit"}, eval.Warnings)
	})

	t.Run("disabled check is skipped", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EnableExposureCheck = false
		checker := &stubChecker{result: portfolio.OrderExposure{Allowed: false}}
		m := NewManager(cfg, nil, WithExposureChecker(checker))

		eval := m.EvaluateOrder(longSignal("AAPL", 100, 98), account(100000, 0))
		assert.True(t, eval.Allowed())
		assert.Zero(t, checker.calls)
	})

	t.Run("not reached when sizing fails", func(t *testing.T) {
		checker := &stubChecker{result: portfolio.OrderExposure{Allowed: true}}
		m := NewManager(DefaultConfig(), nil, WithExposureChecker(checker))

		m.EvaluateOrder(longSignal("MNQ", 15000, 14900), account(100000, 0))
		assert.Zero(t, checker.calls)
	})
}

func TestEvaluateOrder_WithExposureManager(t *testing.T) {
	exposure := portfolio.NewExposureManager(portfolio.DefaultConstraints())
	m := NewManager(DefaultConfig(), nil, WithExposureChecker(exposure))

	held := func(value float64) types.Account {
		acc := types.Account{TotalEquity: 100000}
		acc.Positions = []types.Position{{
			ID: "p1", Symbol: "TQQQ", Side: types.SideLong,
			Quantity: value / 50, EntryPrice: 50, CurrentPrice: 50,
			AssetClass: types.AssetClassEquity,
		}}
		acc.Exposure = types.Exposure{Total: value, Equities: value}
		return acc
	}

	// 28% held plus a 10% order breaches the 30% leveraged ETF group
	eval := m.EvaluateOrder(longSignal("TQQQ", 100, 98), held(28000))
	assert.Equal(t, types.BlockExposureLimit, eval.Code)
	assert.Contains(t, eval.Reason, "LEVERAGE_ETFS")

	// 15% held plus 10% lands above the warning threshold but within the limit
	eval = m.EvaluateOrder(longSignal("TQQQ", 100, 98), held(15000))
	require.True(t, eval.Allowed())
	require.Len(t, eval.Warnings, 1)
	assert.Contains(t, eval.Warnings[0], "LEVERAGE_ETFS")
}

func TestEvaluateOrder_ConcurrentWithReset(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if i%2 == 0 {
					m.Breaker().Trip("flap")
					m.Breaker().Reset()
					continue
				}
				eval := m.EvaluateOrder(longSignal("AAPL", 100, 98), account(100000, 0))
				if !eval.Allowed() {
					assert.Equal(t, types.BlockCircuitBreaker, eval.Code)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestNewManager_SharesBreaker(t *testing.T) {
	clock := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	breaker := NewBreaker(DefaultConfig().BreakerConfig(), WithBreakerClock(func() time.Time { return clock }))
	m := NewManager(DefaultConfig(), breaker)

	breaker.RecordTradeResult(-6000, 100000)

	eval := m.EvaluateOrder(longSignal("AAPL", 100, 98), account(100000, 0))
	assert.Equal(t, types.BlockCircuitBreaker, eval.Code)
	assert.Contains(t, eval.Reason, "Daily loss")
}
