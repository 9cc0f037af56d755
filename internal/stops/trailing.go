package stops

import (
	"fmt"
	"math"
	"sort"
	"sync"

	coreerrors "github.com/ducminhle1904/noise-engine/internal/errors"
	"github.com/ducminhle1904/noise-engine/internal/logger"
	"github.com/ducminhle1904/noise-engine/internal/monitoring"
	"github.com/ducminhle1904/noise-engine/pkg/types"
)

const component = "trailing_stops"

// StopState is the trailing state of a tracked position
type StopState string

const (
	StateInitial   StopState = "INITIAL"
	StateActivated StopState = "ACTIVATED"
)

// Config holds the trailing stop settings. Percentages are in percent units.
type Config struct {
	TrailPercent      float64 `json:"trail_percent" mapstructure:"trail_percent" validate:"gt=0,lt=100"`
	ActivationPercent float64 `json:"activation_percent" mapstructure:"activation_percent" validate:"gte=0"`
	MinTrailPercent   float64 `json:"min_trail_percent" mapstructure:"min_trail_percent" validate:"gte=0,lt=100"`
	Enabled           bool    `json:"enabled" mapstructure:"enabled"`
}

// DefaultConfig returns the trailing stop defaults
func DefaultConfig() Config {
	return Config{
		TrailPercent:      0.5,
		ActivationPercent: 0.3,
		MinTrailPercent:   0.2,
		Enabled:           true,
	}
}

// effectiveTrail is the trail distance after applying the floor
func (c Config) effectiveTrail() float64 {
	return math.Max(c.TrailPercent, c.MinTrailPercent)
}

func (c Config) validate(op string) error {
	if !(c.TrailPercent > 0) || c.TrailPercent >= 100 {
		return coreerrors.NewValidationError(component, op, "trail percent must be in (0, 100)")
	}
	if c.ActivationPercent < 0 || math.IsNaN(c.ActivationPercent) {
		return coreerrors.NewValidationError(component, op, "activation percent must not be negative")
	}
	if c.MinTrailPercent < 0 || c.MinTrailPercent >= 100 || math.IsNaN(c.MinTrailPercent) {
		return coreerrors.NewValidationError(component, op, "min trail percent must be in [0, 100)")
	}
	return nil
}

// Record is the trailing stop state of one position
type Record struct {
	PositionID  string     `json:"position_id"`
	Symbol      string     `json:"symbol"`
	Side        types.Side `json:"side"`
	EntryPrice  float64    `json:"entry_price"`
	InitialStop float64    `json:"initial_stop"`
	CurrentStop float64    `json:"current_stop"`
	State       StopState  `json:"state"`
}

// Activated reports whether the stop has started trailing
func (r Record) Activated() bool {
	return r.State == StateActivated
}

// profitFraction is the unrealized profit at price as a fraction of entry
func (r Record) profitFraction(price float64) float64 {
	if r.Side == types.SideShort {
		return (r.EntryPrice - price) / r.EntryPrice
	}
	return (price - r.EntryPrice) / r.EntryPrice
}

// crossed reports whether price is through the stop
func (r Record) crossed(price float64) bool {
	if r.Side == types.SideShort {
		return price >= r.CurrentStop
	}
	return price <= r.CurrentStop
}

// StopUpdate describes a record whose stop or state changed in UpdateStops
type StopUpdate struct {
	PositionID    string     `json:"position_id"`
	Symbol        string     `json:"symbol"`
	Side          types.Side `json:"side"`
	Price         float64    `json:"price"`
	PreviousStop  float64    `json:"previous_stop"`
	NewStop       float64    `json:"new_stop"`
	PreviousState StopState  `json:"previous_state"`
	State         StopState  `json:"state"`
}

// Manager owns the trailing stop records. Stops only ever move in the
// position's favor.
type Manager struct {
	mu      sync.RWMutex
	cfg     Config
	records map[string]*Record
	fired   map[string]bool // crossed as of the last Triggered call
	log     *logger.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the manager's logger
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewManager creates a trailing stop manager. Settings are validated the same
// way as UpdateConfig.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.validate("NewManager"); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:     cfg,
		records: make(map[string]*Record),
		fired:   make(map[string]bool),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// AddPosition starts tracking a position in the INITIAL state
func (m *Manager) AddPosition(id, symbol string, side types.Side, entryPrice, initialStop float64) error {
	switch {
	case id == "":
		return coreerrors.NewValidationError(component, "AddPosition", "position id is required")
	case symbol == "":
		return coreerrors.NewValidationError(component, "AddPosition", "symbol is required").WithContext("id", id)
	case !side.Valid():
		return coreerrors.NewValidationError(component, "AddPosition", fmt.Sprintf("invalid side %q", side)).WithContext("id", id)
	case !(entryPrice > 0) || math.IsInf(entryPrice, 0):
		return coreerrors.NewValidationError(component, "AddPosition", "entry price must be positive").WithContext("id", id)
	case !(initialStop > 0) || math.IsInf(initialStop, 0):
		return coreerrors.NewValidationError(component, "AddPosition", "initial stop must be positive").WithContext("id", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[id]; exists {
		return coreerrors.NewDuplicateError(component, "AddPosition", id)
	}

	m.records[id] = &Record{
		PositionID:  id,
		Symbol:      symbol,
		Side:        side,
		EntryPrice:  entryPrice,
		InitialStop: initialStop,
		CurrentStop: initialStop,
		State:       StateInitial,
	}
	monitoring.SetStopsTracked(len(m.records))
	m.log.Info("tracking position", "id", id, "symbol", symbol, "side", side, "entry", entryPrice, "stop", initialStop)
	return nil
}

// RemovePosition stops tracking a position and reports whether it was tracked
func (m *Manager) RemovePosition(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return false
	}
	delete(m.records, id)
	delete(m.fired, id)
	monitoring.SetStopsTracked(len(m.records))
	return true
}

// UpdateStops applies one price observation per symbol to every tracked
// record. The batch is applied under a single lock so readers never observe
// it half done. Symbols without a positive price are skipped.
func (m *Manager) UpdateStops(prices map[string]float64) []StopUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cfg.Enabled || len(prices) == 0 {
		return nil
	}

	activation := m.cfg.ActivationPercent / 100
	trail := m.cfg.effectiveTrail() / 100

	var updates []StopUpdate
	for _, id := range m.sortedIDs() {
		rec := m.records[id]
		price, ok := prices[rec.Symbol]
		if !ok || !(price > 0) || math.IsInf(price, 0) {
			continue
		}

		if rec.profitFraction(price) < activation {
			continue
		}

		prevStop, prevState := rec.CurrentStop, rec.State
		if rec.Side == types.SideShort {
			rec.CurrentStop = math.Min(rec.CurrentStop, price*(1+trail))
		} else {
			rec.CurrentStop = math.Max(rec.CurrentStop, price*(1-trail))
		}
		rec.State = StateActivated

		if rec.CurrentStop == prevStop && rec.State == prevState {
			continue
		}

		updates = append(updates, StopUpdate{
			PositionID:    rec.PositionID,
			Symbol:        rec.Symbol,
			Side:          rec.Side,
			Price:         price,
			PreviousStop:  prevStop,
			NewStop:       rec.CurrentStop,
			PreviousState: prevState,
			State:         rec.State,
		})
		monitoring.RecordStopUpdate(rec.Symbol, string(rec.Side))

		if prevState != StateActivated {
			m.log.Trade("trailing stop activated", "id", id, "symbol", rec.Symbol, "price", price, "stop", rec.CurrentStop)
		} else {
			m.log.Debug("trailing stop moved", "id", id, "symbol", rec.Symbol, "from", prevStop, "to", rec.CurrentStop)
		}
	}
	return updates
}

// CheckTrigger reports whether price has crossed the position's stop. The
// record is left in place; unknown ids never trigger.
func (m *Manager) CheckTrigger(id string, price float64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return false
	}
	return rec.crossed(price)
}

// Triggered returns the sorted ids of records whose stop is crossed by the
// price of their symbol. A record is reported on every call while crossed,
// but counted and logged only when it first crosses.
func (m *Manager) Triggered(prices map[string]float64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for _, id := range m.sortedIDs() {
		rec := m.records[id]
		price, ok := prices[rec.Symbol]
		if !ok || !(price > 0) {
			continue
		}
		if !rec.crossed(price) {
			delete(m.fired, id)
			continue
		}
		ids = append(ids, id)
		if m.fired[id] {
			continue
		}
		m.fired[id] = true
		monitoring.RecordStopTrigger(rec.Symbol, string(rec.Side))
		m.log.Trade("trailing stop triggered", "id", id, "symbol", rec.Symbol, "price", price, "stop", rec.CurrentStop)
	}
	return ids
}

// GetStopLevel returns the current stop of a tracked position
func (m *Manager) GetStopLevel(id string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return 0, false
	}
	return rec.CurrentStop, true
}

// GetRecord returns a copy of a tracked record
func (m *Manager) GetRecord(id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return Record{}, coreerrors.NewNotFoundError(component, "GetRecord", id)
	}
	return *rec, nil
}

// GetAllStops returns a snapshot of every stop keyed by position id
func (m *Manager) GetAllStops() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]float64, len(m.records))
	for id, rec := range m.records {
		out[id] = rec.CurrentStop
	}
	return out
}

// GetRecords returns copies of every record ordered by id
func (m *Manager) GetRecords() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.records))
	for _, id := range m.sortedIDs() {
		out = append(out, *m.records[id])
	}
	return out
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// UpdateConfig replaces the configuration. Existing stops are kept; the new
// settings apply from the next UpdateStops call.
func (m *Manager) UpdateConfig(cfg Config) error {
	if err := cfg.validate("UpdateConfig"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	m.log.Status("trailing stop config updated",
		"trail_percent", cfg.TrailPercent,
		"activation_percent", cfg.ActivationPercent,
		"min_trail_percent", cfg.MinTrailPercent,
		"enabled", cfg.Enabled,
	)
	return nil
}

// Len returns the number of tracked positions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// sortedIDs must be called with the lock held
func (m *Manager) sortedIDs() []string {
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
