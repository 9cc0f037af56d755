package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ducminhle1904/noise-engine/internal/logger"
	"github.com/ducminhle1904/noise-engine/internal/monitoring"
)

// BreakerState is the latch state of the circuit breaker
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
)

// String returns the string representation of the breaker state
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig holds the loss limits that latch the breaker
type BreakerConfig struct {
	MaxDailyLossPercent  float64
	ConsecutiveLossLimit int // 0 disables the streak check
}

// State is a point-in-time snapshot of the day's risk state
type State struct {
	TradingDay              time.Time `json:"trading_day"`
	DailyPnl                float64   `json:"daily_pnl"`
	DailyPnlPercent         float64   `json:"daily_pnl_percent"`
	ConsecutiveLosses       int       `json:"consecutive_losses"`
	CircuitBreakerTriggered bool      `json:"circuit_breaker_triggered"`
	CircuitBreakerReason    string    `json:"circuit_breaker_reason,omitempty"`
	TriggeredAt             time.Time `json:"triggered_at,omitempty"`
	LastUpdated             time.Time `json:"last_updated"`
}

// Breaker tracks realized results for the trading day and latches when a loss
// limit is hit. Once open it stays open until Reset is called; there is no
// timed half-open state.
type Breaker struct {
	config        BreakerConfig
	state         State
	equity        float64 // last positive equity seen, the daily loss denominator
	mutex         sync.RWMutex
	now           func() time.Time
	log           *logger.Logger
	onStateChange func(from, to BreakerState)
}

// BreakerOption configures a Breaker
type BreakerOption func(*Breaker)

// WithBreakerClock injects the clock used for timestamps
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithBreakerLogger sets the logger
func WithBreakerLogger(l *logger.Logger) BreakerOption {
	return func(b *Breaker) {
		if l != nil {
			b.log = l
		}
	}
}

// NewBreaker creates a closed breaker for the current trading day
func NewBreaker(config BreakerConfig, opts ...BreakerOption) *Breaker {
	if config.MaxDailyLossPercent <= 0 {
		config.MaxDailyLossPercent = DefaultConfig().MaxDailyLossPercent
	}
	if config.ConsecutiveLossLimit < 0 {
		config.ConsecutiveLossLimit = 0
	}

	b := &Breaker{
		config: config,
		now:    time.Now,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	now := b.now()
	b.state = State{TradingDay: startOfDay(now), LastUpdated: now}
	return b
}

// SetStateChangeCallback sets a callback invoked after every latch or reset.
// It runs on the caller's goroutine with no lock held.
func (b *Breaker) SetStateChangeCallback(callback func(from, to BreakerState)) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.onStateChange = callback
}

// RecordTradeResult folds a realized P&L into the day's state and latches the
// breaker if a loss limit is reached. equity is the account equity used to
// express the daily P&L as a percentage; a non-positive equity falls back to
// the last one seen. A daily loss with no known equity latches.
func (b *Breaker) RecordTradeResult(pnl, equity float64) State {
	b.mutex.Lock()
	from := b.stateLocked()

	now := b.now()
	b.observeEquityLocked(equity)
	if !math.IsNaN(pnl) && !math.IsInf(pnl, 0) {
		b.state.DailyPnl += pnl
	}
	if b.equity > 0 {
		b.state.DailyPnlPercent = b.state.DailyPnl / b.equity * 100
	}
	switch {
	case pnl < 0:
		b.state.ConsecutiveLosses++
	case pnl > 0:
		b.state.ConsecutiveLosses = 0
	}
	b.state.LastUpdated = now

	if !b.state.CircuitBreakerTriggered {
		if reason := b.limitBreachedLocked(); reason != "" {
			b.latchLocked(reason, now)
		}
	}

	snapshot := b.state
	to := b.stateLocked()
	callback := b.onStateChange
	b.mutex.Unlock()

	b.notify(callback, from, to, snapshot)
	return snapshot
}

// ObserveEquity records the account equity that later daily loss percentages
// are measured against. Non-positive or non-finite values are ignored.
func (b *Breaker) ObserveEquity(equity float64) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.observeEquityLocked(equity)
}

func (b *Breaker) observeEquityLocked(equity float64) {
	if equity > 0 && !math.IsInf(equity, 1) {
		b.equity = equity
	}
}

func (b *Breaker) limitBreachedLocked() string {
	if b.state.DailyPnl < 0 && b.equity <= 0 {
		return fmt.Sprintf("Daily loss %.2f with no account equity to measure against", -b.state.DailyPnl)
	}
	if b.state.DailyPnl < 0 && -b.state.DailyPnlPercent >= b.config.MaxDailyLossPercent {
		return fmt.Sprintf("Daily loss %.2f%% reached limit %.2f%%", -b.state.DailyPnlPercent, b.config.MaxDailyLossPercent)
	}
	if b.config.ConsecutiveLossLimit > 0 && b.state.ConsecutiveLosses >= b.config.ConsecutiveLossLimit {
		return fmt.Sprintf("%d consecutive losses reached limit %d", b.state.ConsecutiveLosses, b.config.ConsecutiveLossLimit)
	}
	return ""
}

func (b *Breaker) latchLocked(reason string, at time.Time) {
	b.state.CircuitBreakerTriggered = true
	b.state.CircuitBreakerReason = reason
	b.state.TriggeredAt = at
	b.state.LastUpdated = at
}

// Trip latches the breaker manually. A breaker that is already open keeps its
// original reason.
func (b *Breaker) Trip(reason string) State {
	b.mutex.Lock()
	from := b.stateLocked()
	if !b.state.CircuitBreakerTriggered {
		if reason == "" {
			reason = "Manual trip"
		}
		b.latchLocked(reason, b.now())
	}
	snapshot := b.state
	to := b.stateLocked()
	callback := b.onStateChange
	b.mutex.Unlock()

	b.notify(callback, from, to, snapshot)
	return snapshot
}

// Reset clears the latch, the loss streak and the day's P&L
func (b *Breaker) Reset() State {
	b.mutex.Lock()
	from := b.stateLocked()
	now := b.now()
	b.state = State{TradingDay: b.state.TradingDay, LastUpdated: now}
	snapshot := b.state
	callback := b.onStateChange
	b.mutex.Unlock()

	b.notify(callback, from, StateClosed, snapshot)
	return snapshot
}

// RollDay starts a new trading day. Daily P&L is cleared; the latch and the
// loss streak carry over.
func (b *Breaker) RollDay(day time.Time) State {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.state.TradingDay = startOfDay(day)
	b.state.DailyPnl = 0
	b.state.DailyPnlPercent = 0
	b.state.LastUpdated = b.now()
	b.log.Status("trading day rolled",
		"trading_day", b.state.TradingDay.Format("2006-01-02"),
		"circuit_breaker_triggered", b.state.CircuitBreakerTriggered)
	return b.state
}

// State returns a consistent snapshot of the risk state
func (b *Breaker) State() State {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.state
}

// Triggered reports whether the breaker is latched
func (b *Breaker) Triggered() bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.state.CircuitBreakerTriggered
}

// GetConfig returns the breaker configuration
func (b *Breaker) GetConfig() BreakerConfig {
	return b.config
}

func (b *Breaker) stateLocked() BreakerState {
	if b.state.CircuitBreakerTriggered {
		return StateOpen
	}
	return StateClosed
}

func (b *Breaker) notify(callback func(from, to BreakerState), from, to BreakerState, snapshot State) {
	if from == to {
		return
	}
	monitoring.SetCircuitBreaker(to == StateOpen)
	if to == StateOpen {
		b.log.Warning("circuit breaker triggered",
			"reason", snapshot.CircuitBreakerReason,
			"daily_pnl", snapshot.DailyPnl,
			"consecutive_losses", snapshot.ConsecutiveLosses)
	} else {
		b.log.Status("circuit breaker reset")
	}
	if callback != nil {
		callback(from, to)
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
