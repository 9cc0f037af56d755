package signals

import (
	"sync"
	"time"

	coreerrors "github.com/ducminhle1904/noise-engine/internal/errors"
	"github.com/ducminhle1904/noise-engine/pkg/types"
)

const bookComponent = "signal_book"

// Book keeps emitted signals for polling consumers. Stored signals are
// replaced on transition, never patched.
type Book struct {
	mu      sync.RWMutex
	signals map[string]types.Signal
	order   []string
}

// NewBook creates an empty signal book
func NewBook() *Book {
	return &Book{
		signals: make(map[string]types.Signal),
	}
}

// Record stores new signals. A signal whose id is already present is ignored
// so that replaying the same bar is idempotent.
func (b *Book) Record(signals ...types.Signal) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	added := 0
	for _, s := range signals {
		if _, exists := b.signals[s.ID]; exists {
			continue
		}
		b.signals[s.ID] = s.Clone()
		b.order = append(b.order, s.ID)
		added++
	}
	return added
}

// Get returns a copy of the stored signal
func (b *Book) Get(id string) (types.Signal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, ok := b.signals[id]
	if !ok {
		return types.Signal{}, false
	}
	return s.Clone(), true
}

// Active returns ACTIVE signals that have not expired at now, in record order
func (b *Book) Active(now time.Time) []types.Signal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []types.Signal
	for _, id := range b.order {
		s := b.signals[id]
		if s.Status == types.SignalActive && !s.IsExpired(now) {
			out = append(out, s.Clone())
		}
	}
	return out
}

// All returns every stored signal in record order
func (b *Book) All() []types.Signal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]types.Signal, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.signals[id].Clone())
	}
	return out
}

// Transition moves a signal to a terminal status. Terminal states are final.
func (b *Book) Transition(id string, status types.SignalStatus) (types.Signal, error) {
	if !status.IsTerminal() {
		return types.Signal{}, coreerrors.NewValidationError(bookComponent, "Transition",
			"target status must be EXPIRED, EXECUTED or CANCELLED").WithContext("status", status)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.signals[id]
	if !ok {
		return types.Signal{}, coreerrors.NewNotFoundError(bookComponent, "Transition", id)
	}
	if current.Status.IsTerminal() {
		return types.Signal{}, coreerrors.NewValidationError(bookComponent, "Transition",
			"signal already "+string(current.Status)).WithContext("id", id)
	}

	next := current.WithStatus(status)
	b.signals[id] = next
	return next.Clone(), nil
}

// ExpireStale marks ACTIVE signals past their expiry as EXPIRED and returns their ids
func (b *Book) ExpireStale(now time.Time) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var expired []string
	for _, id := range b.order {
		s := b.signals[id]
		if s.Status == types.SignalActive && s.IsExpired(now) {
			b.signals[id] = s.WithStatus(types.SignalExpired)
			expired = append(expired, id)
		}
	}
	return expired
}

// Len returns the number of stored signals
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.signals)
}
