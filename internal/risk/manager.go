package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ducminhle1904/noise-engine/internal/logger"
	"github.com/ducminhle1904/noise-engine/internal/monitoring"
	"github.com/ducminhle1904/noise-engine/internal/portfolio"
	"github.com/ducminhle1904/noise-engine/pkg/types"
)

// ExposureChecker evaluates an order against portfolio-level exposure limits.
// *portfolio.ExposureManager satisfies it.
type ExposureChecker interface {
	CheckOrderExposure(symbol string, side types.Side, quantity, price float64, account types.Account) portfolio.OrderExposure
}

// Manager gates every proposed order against the risk limits
type Manager struct {
	config   Config
	breaker  *Breaker
	exposure ExposureChecker
	log      *logger.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithExposureChecker enables the portfolio exposure check
func WithExposureChecker(c ExposureChecker) Option {
	return func(m *Manager) {
		m.exposure = c
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewManager creates a risk manager. A nil breaker gets a fresh one built
// from the config's loss limits.
func NewManager(config Config, breaker *Breaker, opts ...Option) *Manager {
	config = config.withDefaults()
	m := &Manager{
		config: config,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if breaker == nil {
		breaker = NewBreaker(config.BreakerConfig(), WithBreakerLogger(m.log))
	}
	m.breaker = breaker
	return m
}

// GetConfig returns the risk configuration
func (m *Manager) GetConfig() Config {
	return m.config
}

// Breaker returns the circuit breaker consulted by EvaluateOrder
func (m *Manager) Breaker() *Breaker {
	return m.breaker
}

// EvaluateOrder decides whether the signal may be turned into an order and,
// if so, how large it is. Checks run in a fixed order and the first failure
// blocks.
func (m *Manager) EvaluateOrder(signal types.Signal, account types.Account) types.RiskEvaluation {
	eval := m.evaluate(signal, account)

	monitoring.RecordRiskDecision(string(eval.Decision), string(eval.Code))
	if eval.Allowed() {
		monitoring.RecordAdmittedOrder(string(signal.AssetClass), eval.PositionSize.Value)
		m.log.Trade("order admitted",
			"signal_id", signal.ID,
			"symbol", signal.Symbol,
			"direction", string(signal.Direction),
			"quantity", eval.PositionSize.Quantity,
			"value", eval.PositionSize.Value,
			"warnings", len(eval.Warnings))
	} else {
		m.log.Warning("order blocked",
			"signal_id", signal.ID,
			"symbol", signal.Symbol,
			"code", string(eval.Code),
			"reason", eval.Reason)
	}
	return eval
}

func (m *Manager) evaluate(signal types.Signal, account types.Account) types.RiskEvaluation {
	if open := len(account.Positions); open >= m.config.MaxConcurrentPositions {
		return block(types.BlockConcurrencyLimit,
			fmt.Sprintf("Maximum concurrent positions reached (%d/%d)", open, m.config.MaxConcurrentPositions))
	}

	state := m.breaker.State()
	if state.CircuitBreakerTriggered {
		reason := "Circuit breaker triggered"
		if state.CircuitBreakerReason != "" {
			reason += ": " + state.CircuitBreakerReason
		}
		return block(types.BlockCircuitBreaker, reason)
	}

	equity := account.TotalEquity
	if !(equity > 0) || math.IsInf(equity, 0) {
		return block(types.BlockInvalidAccount, fmt.Sprintf("Account equity must be positive, got %.2f", equity))
	}

	side, reason := validateSignal(signal)
	if reason != "" {
		return block(types.BlockInvalidSignal, reason)
	}

	size, reason := m.CalculatePositionSize(signal, equity)
	if reason != "" {
		return block(types.BlockOrderSize, reason)
	}

	var warnings []string
	if m.config.EnableExposureCheck && m.exposure != nil {
		check := m.exposure.CheckOrderExposure(signal.Symbol, side, size.Quantity, signal.EntryPrice, account)
		if !check.Allowed {
			msgs := make([]string, 0, len(check.Violations))
			for _, v := range check.Violations {
				msgs = append(msgs, v.Message)
			}
			if len(msgs) == 0 {
				msgs = append(msgs, "order exceeds portfolio exposure limits")
			}
			return block(types.BlockExposureLimit, "Exposure limit: "+strings.Join(msgs, "; "))
		}
		warnings = check.Warnings
	}

	if eval, blocked := m.checkProjectedExposure(signal.AssetClass, size.Value, account); blocked {
		return eval
	}

	return types.RiskEvaluation{
		Decision:     types.DecisionAllow,
		PositionSize: &size,
		Warnings:     warnings,
	}
}

func (m *Manager) checkProjectedExposure(assetClass types.AssetClass, orderValue float64, account types.Account) (types.RiskEvaluation, bool) {
	equity := account.TotalEquity

	var limit float64
	switch assetClass {
	case types.AssetClassFutures:
		limit = m.config.MaxFuturesExposurePercent
	case types.AssetClassEquity:
		limit = m.config.MaxEquitiesExposurePercent
	}
	if limit > 0 {
		projected := (account.Exposure.ForAssetClass(assetClass) + orderValue) / equity * 100
		if projected > limit {
			return block(types.BlockAssetClassExposure,
				fmt.Sprintf("%s exposure would reach %.2f%%, limit %.2f%%", assetClass, projected, limit)), true
		}
	}

	projectedTotal := (account.Exposure.Total + orderValue) / equity * 100
	if projectedTotal > m.config.MaxTotalExposurePercent {
		return block(types.BlockExposureLimit,
			fmt.Sprintf("Total exposure would reach %.2f%%, limit %.2f%%", projectedTotal, m.config.MaxTotalExposurePercent)), true
	}
	return types.RiskEvaluation{}, false
}

// CalculatePositionSize sizes an order so that hitting the stop loses at most
// MaxRiskPerTradePercent of equity, clamped by the order value and position
// limits. A non-empty reason means no admissible size exists.
func (m *Manager) CalculatePositionSize(signal types.Signal, equity float64) (types.PositionSize, string) {
	switch {
	case !finitePositive(signal.EntryPrice):
		return types.PositionSize{}, fmt.Sprintf("Invalid entry price %v", signal.EntryPrice)
	case !finitePositive(signal.StopLoss):
		return types.PositionSize{}, fmt.Sprintf("Invalid stop loss %v", signal.StopLoss)
	case !finitePositive(equity):
		return types.PositionSize{}, fmt.Sprintf("Invalid account equity %v", equity)
	}
	for _, limit := range []float64{m.config.MaxRiskPerTradePercent, m.config.MaxOrderValue, m.config.MaxPositionPercent, m.config.MinOrderValue} {
		if math.IsNaN(limit) || math.IsInf(limit, 0) {
			return types.PositionSize{}, "Sizing limits are not finite"
		}
	}

	entry := decimal.NewFromFloat(signal.EntryPrice)
	stop := decimal.NewFromFloat(signal.StopLoss)
	perUnit := entry.Sub(stop).Abs()
	if !entry.IsPositive() || !perUnit.IsPositive() {
		return types.PositionSize{}, "Signal has no per-unit risk"
	}

	hundred := decimal.NewFromInt(100)
	eq := decimal.NewFromFloat(equity)

	riskBudget := eq.Mul(decimal.NewFromFloat(m.config.MaxRiskPerTradePercent)).Div(hundred)
	qtyRisk := riskBudget.Div(perUnit).Floor()
	qtyOrder := decimal.NewFromFloat(m.config.MaxOrderValue).Div(entry).Floor()
	qtyPosition := eq.Mul(decimal.NewFromFloat(m.config.MaxPositionPercent)).Div(hundred).Div(entry).Floor()

	upper := decimal.Min(qtyRisk, qtyOrder, qtyPosition)
	lower := decimal.NewFromFloat(m.config.MinOrderValue).Div(entry).Ceil()

	if !upper.IsPositive() || upper.LessThan(lower) {
		return types.PositionSize{}, fmt.Sprintf(
			"No order size fits limits: max %s units, min %s units at entry %s",
			upper.String(), lower.String(), entry.String())
	}

	qty, _ := upper.Float64()
	value, _ := upper.Mul(entry).Float64()
	return types.PositionSize{Quantity: qty, Value: value}, ""
}

func validateSignal(signal types.Signal) (types.Side, string) {
	side, ok := signal.Direction.Side()
	if !ok {
		return "", fmt.Sprintf("Signal direction %q is not tradeable", signal.Direction)
	}
	if !finitePositive(signal.EntryPrice) {
		return "", fmt.Sprintf("Invalid entry price %v", signal.EntryPrice)
	}
	if !finitePositive(signal.StopLoss) {
		return "", fmt.Sprintf("Invalid stop loss %v", signal.StopLoss)
	}
	if signal.EntryPrice == signal.StopLoss {
		return "", "Stop loss equals entry price"
	}
	return side, ""
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func block(code types.BlockCode, reason string) types.RiskEvaluation {
	return types.RiskEvaluation{
		Decision: types.DecisionBlock,
		Code:     code,
		Reason:   reason,
	}
}
