package engine

import (
	"sort"
	"sync"
	"time"

	coreerrors "github.com/ducminhle1904/noise-engine/internal/errors"
	"github.com/ducminhle1904/noise-engine/internal/logger"
	"github.com/ducminhle1904/noise-engine/internal/monitoring"
	"github.com/ducminhle1904/noise-engine/internal/portfolio"
	"github.com/ducminhle1904/noise-engine/internal/risk"
	"github.com/ducminhle1904/noise-engine/internal/signals"
	"github.com/ducminhle1904/noise-engine/internal/stops"
	"github.com/ducminhle1904/noise-engine/pkg/types"
)

const component = "engine"

// Config bundles the settings of every decision component
type Config struct {
	Signals     signals.Config        `json:"signals" mapstructure:"signals"`
	Risk        risk.Config           `json:"risk" mapstructure:"risk"`
	Stops       stops.Config          `json:"trailing_stop" mapstructure:"trailing_stop"`
	Constraints portfolio.Constraints `json:"portfolio" mapstructure:"portfolio"`
}

// DefaultConfig returns the defaults of every component
func DefaultConfig() Config {
	return Config{
		Signals:     signals.DefaultConfig(),
		Risk:        risk.DefaultConfig(),
		Stops:       stops.DefaultConfig(),
		Constraints: portfolio.DefaultConstraints(),
	}
}

// Decision pairs a generated signal with the risk verdict on it
type Decision struct {
	Signal     types.Signal         `json:"signal"`
	Evaluation types.RiskEvaluation `json:"evaluation"`
}

// Exit is a tracked position whose trailing stop was crossed
type Exit struct {
	PositionID string     `json:"position_id"`
	Symbol     string     `json:"symbol"`
	Side       types.Side `json:"side"`
	Price      float64    `json:"price"`
	Stop       float64    `json:"stop"`
}

// Engine wires signal generation, risk gating, trailing stops and exposure
// analysis together. It performs no I/O; callers feed it bars, fills and
// prices and act on what it returns.
type Engine struct {
	signals  *signals.Manager
	book     *signals.Book
	risk     *risk.Manager
	stops    *stops.Manager
	exposure *portfolio.ExposureManager

	now func() time.Time
	log *logger.Logger

	mu         sync.Mutex
	open       map[string]types.Position
	lastEquity float64
}

// Option configures an Engine
type Option func(*Engine)

// WithClock injects the clock shared by every component
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger; each component gets a child tagged with its name
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New builds an engine and its components from config
func New(cfg Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		now:  time.Now,
		log:  logger.Nop(),
		book: signals.NewBook(),
		open: make(map[string]types.Position),
	}
	for _, opt := range opts {
		opt(e)
	}

	sm, err := signals.NewManager(cfg.Signals,
		signals.WithClock(e.now),
		signals.WithLogger(e.log.Component("signals")))
	if err != nil {
		return nil, err
	}
	e.signals = sm

	stopManager, err := stops.NewManager(cfg.Stops, stops.WithLogger(e.log.Component("trailing_stops")))
	if err != nil {
		return nil, err
	}
	e.stops = stopManager

	e.exposure = portfolio.NewExposureManager(cfg.Constraints, portfolio.WithLogger(e.log.Component("portfolio")))

	riskLog := e.log.Component("risk")
	breaker := risk.NewBreaker(cfg.Risk.BreakerConfig(),
		risk.WithBreakerClock(e.now),
		risk.WithBreakerLogger(riskLog))
	e.risk = risk.NewManager(cfg.Risk, breaker,
		risk.WithExposureChecker(e.exposure),
		risk.WithLogger(riskLog))

	return e, nil
}

// OnBars generates signals for a symbol's latest bars, records them in the
// signal book and evaluates each against the account. Decisions come back in
// signal strength order.
func (e *Engine) OnBars(symbol string, assetClass types.AssetClass, timeframe string, bars []types.PriceBar, account types.Account) []Decision {
	e.mu.Lock()
	e.lastEquity = account.TotalEquity
	e.mu.Unlock()
	e.risk.Breaker().ObserveEquity(account.TotalEquity)

	if last, ok := types.LastBar(bars); ok {
		e.rollDay(last.Timestamp)
	}

	e.book.ExpireStale(e.now())
	generated := e.signals.GenerateSignals(symbol, assetClass, bars, timeframe)
	e.book.Record(generated...)

	decisions := make([]Decision, 0, len(generated))
	for _, sig := range generated {
		decisions = append(decisions, Decision{
			Signal:     sig,
			Evaluation: e.risk.EvaluateOrder(sig, account),
		})
	}
	return decisions
}

// rollDay starts a new risk day when bars cross midnight
func (e *Engine) rollDay(ts time.Time) {
	breaker := e.risk.Breaker()
	current := breaker.State().TradingDay
	y, m, d := ts.In(current.Location()).Date()
	if y == current.Year() && m == current.Month() && d == current.Day() {
		return
	}
	if ts.Before(current) {
		return
	}
	breaker.RollDay(ts.In(current.Location()))
}

// OnFill starts tracking a filled position with its initial stop
func (e *Engine) OnFill(position types.Position, initialStop float64) error {
	if position.Quantity <= 0 {
		return coreerrors.NewValidationError(component, "OnFill", "position quantity must be positive").
			WithContext("id", position.ID)
	}
	if err := e.stops.AddPosition(position.ID, position.Symbol, position.Side, position.EntryPrice, initialStop); err != nil {
		return err
	}

	e.mu.Lock()
	e.open[position.ID] = position
	e.mu.Unlock()

	e.log.Trade("position opened",
		"id", position.ID,
		"symbol", position.Symbol,
		"side", string(position.Side),
		"quantity", position.Quantity,
		"entry", position.EntryPrice,
		"stop", initialStop)
	return nil
}

// OnPrices moves trailing stops with the latest price per symbol and returns
// the positions whose stop was crossed. Exits stay tracked until Close.
func (e *Engine) OnPrices(prices map[string]float64) []Exit {
	e.stops.UpdateStops(prices)

	ids := e.stops.Triggered(prices)
	exits := make([]Exit, 0, len(ids))
	for _, id := range ids {
		rec, err := e.stops.GetRecord(id)
		if err != nil {
			continue
		}
		exits = append(exits, Exit{
			PositionID: id,
			Symbol:     rec.Symbol,
			Side:       rec.Side,
			Price:      prices[rec.Symbol],
			Stop:       rec.CurrentStop,
		})
	}
	return exits
}

// Close stops tracking a position and feeds its realized P&L to the circuit
// breaker
func (e *Engine) Close(id string, exitPrice float64) (float64, error) {
	if !(exitPrice > 0) {
		return 0, coreerrors.NewValidationError(component, "Close", "exit price must be positive").
			WithContext("id", id)
	}

	e.mu.Lock()
	position, ok := e.open[id]
	if ok {
		delete(e.open, id)
	}
	equity := e.lastEquity
	e.mu.Unlock()

	if !ok {
		return 0, coreerrors.NewNotFoundError(component, "Close", id)
	}
	e.stops.RemovePosition(id)

	pnl := (exitPrice - position.EntryPrice) * position.Quantity
	if position.Side == types.SideShort {
		pnl = -pnl
	}
	state := e.risk.Breaker().RecordTradeResult(pnl, equity)

	e.log.Trade("position closed",
		"id", id,
		"symbol", position.Symbol,
		"exit", exitPrice,
		"pnl", pnl,
		"daily_pnl", state.DailyPnl,
		"consecutive_losses", state.ConsecutiveLosses)
	return pnl, nil
}

// MarkExecuted records that a signal was acted on
func (e *Engine) MarkExecuted(signalID string) error {
	_, err := e.book.Transition(signalID, types.SignalExecuted)
	return err
}

// Analyze runs the exposure analysis on an account snapshot and publishes the
// headline percentages
func (e *Engine) Analyze(account types.Account) portfolio.Analysis {
	analysis := e.exposure.AnalyzePortfolio(account)
	monitoring.UpdateExposure("total", analysis.Metrics.TotalExposurePercent)
	monitoring.UpdateExposure("gross", analysis.Metrics.GrossExposurePercent)
	monitoring.UpdateExposure("net", analysis.Metrics.NetExposurePercent)
	return analysis
}

// Open returns the ids of the positions being tracked
func (e *Engine) Open() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.open))
	for id := range e.open {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Signals returns the signal manager
func (e *Engine) Signals() *signals.Manager { return e.signals }

// Book returns the signal book
func (e *Engine) Book() *signals.Book { return e.book }

// Risk returns the risk manager
func (e *Engine) Risk() *risk.Manager { return e.risk }

// Stops returns the trailing stop manager
func (e *Engine) Stops() *stops.Manager { return e.stops }

// Exposure returns the portfolio exposure manager
func (e *Engine) Exposure() *portfolio.ExposureManager { return e.exposure }
