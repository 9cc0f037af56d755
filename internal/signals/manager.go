package signals

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"

	"github.com/ducminhle1904/noise-engine/internal/indicators"
	"github.com/ducminhle1904/noise-engine/internal/logger"
	"github.com/ducminhle1904/noise-engine/internal/monitoring"
	"github.com/ducminhle1904/noise-engine/internal/regime"
	"github.com/ducminhle1904/noise-engine/internal/strategy"
	"github.com/ducminhle1904/noise-engine/pkg/types"
)

// signalNamespace seeds the name-based signal ids
var signalNamespace = uuid.MustParse("6f1c3a52-8e0b-4d7f-9a61-2b5e7c9d4f10")

// Manager runs the strategy ensemble for a symbol and turns surviving
// candidates into signals
type Manager struct {
	cfg      Config
	scorers  []strategy.Scorer
	detector *regime.Detector
	atr      *indicators.ATR
	session  sessionWindow
	now      func() time.Time
	log      *logger.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithClock injects the clock used for signal timestamps and expiry checks
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the manager's logger
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithScorers replaces the registered scorers; order is the tie-break order
func WithScorers(scorers ...strategy.Scorer) Option {
	return func(m *Manager) {
		m.scorers = scorers
	}
}

// NewManager creates a signal manager. Zero numeric settings fall back to
// DefaultConfig values.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	def := DefaultConfig()
	if cfg.MaxSignalsPerSymbol <= 0 {
		cfg.MaxSignalsPerSymbol = def.MaxSignalsPerSymbol
	}
	if cfg.VolatilityATRPeriod <= 0 {
		cfg.VolatilityATRPeriod = def.VolatilityATRPeriod
	}
	if cfg.Strategies == nil {
		cfg.Strategies = def.Strategies
	}

	session, err := parseSession(cfg.SessionStart, cfg.SessionEnd, cfg.SessionLocation)
	if err != nil {
		return nil, fmt.Errorf("signal manager: %w", err)
	}

	m := &Manager{
		cfg:      cfg,
		scorers:  strategy.Registry(cfg.Scorers),
		detector: regime.NewDetector(cfg.Regime),
		atr:      indicators.NewATR(cfg.VolatilityATRPeriod),
		session:  session,
		now:      time.Now,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// GetConfig returns the manager configuration
func (m *Manager) GetConfig() Config {
	return m.cfg
}

type scored struct {
	scorer    strategy.Scorer
	weight    float64
	candidate strategy.Candidate
	ok        bool
}

// GenerateSignals runs every enabled strategy over bars and returns at most
// MaxSignalsPerSymbol signals, strongest first. Equal strengths keep
// registration order.
func (m *Manager) GenerateSignals(symbol string, assetClass types.AssetClass, bars []types.PriceBar, timeframe string) []types.Signal {
	last, ok := types.LastBar(bars)
	if !ok {
		return nil
	}

	enabled := m.enabledScorers()
	if len(enabled) == 0 {
		return nil
	}

	if m.cfg.EnableTimeFilter && !m.session.contains(last.Timestamp) {
		m.dropAll(enabled, filterTime)
		m.log.Debug("bar outside trading session", "symbol", symbol, "bar_time", last.Timestamp)
		return nil
	}

	atrPct, atrErr := m.atr.Percent(bars)
	if m.cfg.EnableVolatilityFilter {
		if atrErr != nil || atrPct < m.cfg.MinVolatilityPercent || atrPct > m.cfg.MaxVolatilityPercent {
			m.dropAll(enabled, filterVolatility)
			m.log.Debug("volatility outside band", "symbol", symbol, "atr_percent", atrPct)
			return nil
		}
	}

	detected, err := m.detector.Detect(bars)
	if err != nil {
		detected = regime.RegimeSignal{Type: regime.RegimeUncertain}
	}

	params := m.cfg.Params
	results := iter.Map(enabled, func(s *scored) scored {
		out := *s
		out.candidate, out.ok = s.scorer.Score(bars, params)
		return out
	})

	now := m.now()
	ttl := m.cfg.ttlFor(timeframe)
	signals := make([]types.Signal, 0, len(results))

	for _, r := range results {
		name := r.scorer.Name()
		if !r.ok {
			continue
		}
		monitoring.UpdateStrategyStrength(name, r.candidate.Strength)

		if !validCandidate(r.candidate) {
			m.drop(name, filterInvalid)
			continue
		}
		if m.cfg.EnableRegimeFilter && !regimeAllows(r.scorer.Kind(), detected.Type) {
			m.drop(name, filterRegime)
			continue
		}
		if r.candidate.Strength < m.cfg.MinStrength {
			m.drop(name, filterStrength)
			continue
		}

		sig := m.buildSignal(symbol, assetClass, timeframe, last, r, detected, now, ttl)
		if atrErr == nil {
			sig.Indicators["atr_percent"] = atrPct
		}
		signals = append(signals, sig)
	}

	// stable: equal strengths keep registration order
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Strength > signals[j].Strength
	})

	if len(signals) > m.cfg.MaxSignalsPerSymbol {
		for _, s := range signals[m.cfg.MaxSignalsPerSymbol:] {
			m.drop(s.Source, filterCap)
		}
		signals = signals[:m.cfg.MaxSignalsPerSymbol]
	}

	for _, s := range signals {
		monitoring.RecordSignal(s.Symbol, s.Source, string(s.Direction))
		m.log.Info("signal generated",
			"id", s.ID,
			"symbol", s.Symbol,
			"source", s.Source,
			"direction", s.Direction,
			"strength", s.Strength,
			"regime", s.Regime,
		)
	}
	return signals
}

// ValidateSignal reports whether the signal is still fresh. Status is not
// inspected.
func (m *Manager) ValidateSignal(signal types.Signal) bool {
	return !signal.IsExpired(m.now())
}

func (m *Manager) enabledScorers() []scored {
	out := make([]scored, 0, len(m.scorers))
	for _, s := range m.scorers {
		w, configured := m.cfg.Strategies[s.Name()]
		if configured && !w.Enabled {
			continue
		}
		weight := 1.0
		if configured {
			weight = w.Weight
		}
		out = append(out, scored{scorer: s, weight: weight})
	}
	return out
}

func (m *Manager) buildSignal(symbol string, assetClass types.AssetClass, timeframe string, last types.PriceBar, r scored, detected regime.RegimeSignal, now time.Time, ttl time.Duration) types.Signal {
	c := r.candidate

	ind := make(map[string]float64, len(c.Indicators)+4)
	for k, v := range c.Indicators {
		ind[k] = v
	}
	ind["weight"] = r.weight
	ind["weighted_strength"] = c.Strength * r.weight
	ind["regime_confidence"] = detected.Confidence

	sig := types.Signal{
		ID:         signalID(symbol, timeframe, r.scorer.Name(), last.Timestamp),
		Symbol:     symbol,
		AssetClass: assetClass,
		Timeframe:  timeframe,
		Direction:  c.Direction,
		Strength:   c.Strength,
		EntryPrice: c.Entry,
		StopLoss:   c.Stop,
		Source:     r.scorer.Name(),
		Status:     types.SignalActive,
		Reasons:    append(append([]string(nil), c.Reasons...), "Regime "+detected.Type.String()),
		Timestamp:  now,
		ExpiresAt:  now.Add(ttl),
		Indicators: ind,
		Regime:     detected.Type.String(),
	}
	if c.TakeProfit > 0 {
		tp := c.TakeProfit
		sig.TakeProfit = &tp
	}
	return sig
}

func (m *Manager) drop(source, filter string) {
	monitoring.RecordFiltered(source, filter)
}

func (m *Manager) dropAll(enabled []scored, filter string) {
	for _, s := range enabled {
		m.drop(s.scorer.Name(), filter)
	}
}

func validCandidate(c strategy.Candidate) bool {
	side, ok := c.Direction.Side()
	if !ok {
		return false
	}
	if math.IsNaN(c.Strength) || c.Strength < 0 || c.Strength > 1 {
		return false
	}
	if !(c.Entry > 0) || !(c.Stop > 0) || c.Entry == c.Stop {
		return false
	}
	// the stop must sit on the losing side of entry
	if side == types.SideLong {
		return c.Stop < c.Entry
	}
	return c.Stop > c.Entry
}

// signalID is stable for a symbol, timeframe, source and bar
func signalID(symbol, timeframe, source string, barTime time.Time) string {
	key := strings.Join([]string{symbol, timeframe, source, strconv.FormatInt(barTime.UnixNano(), 10)}, "|")
	return uuid.NewSHA1(signalNamespace, []byte(key)).String()
}
