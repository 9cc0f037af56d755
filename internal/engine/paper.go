package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	coreerrors "github.com/ducminhle1904/noise-engine/internal/errors"
	"github.com/ducminhle1904/noise-engine/pkg/types"
)

const paperBroker = "paper"

type paperFill struct {
	source    string
	entryTime time.Time
}

// PaperBook simulates immediate fills at the requested price. Longs debit
// cash at entry and shorts credit it, so equity is cash plus long value minus
// short value at the latest marks.
type PaperBook struct {
	mu          sync.Mutex
	cash        float64
	startEquity float64
	realized    float64
	seq         int
	positions   map[string]*types.Position
	fills       map[string]paperFill
	trades      []Trade
	curve       []EquityPoint
}

// NewPaperBook creates a book holding only cash
func NewPaperBook(cash float64) *PaperBook {
	return &PaperBook{
		cash:        cash,
		startEquity: cash,
		positions:   make(map[string]*types.Position),
		fills:       make(map[string]paperFill),
	}
}

// Open fills an admitted signal at its entry price
func (p *PaperBook) Open(signal types.Signal, size types.PositionSize, at time.Time) (types.Position, error) {
	side, ok := signal.Direction.Side()
	if !ok {
		return types.Position{}, coreerrors.NewValidationError(component, "Open",
			fmt.Sprintf("direction %q is not tradeable", signal.Direction))
	}
	if !(size.Quantity > 0) || !(signal.EntryPrice > 0) {
		return types.Position{}, coreerrors.NewValidationError(component, "Open", "quantity and price must be positive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	pos := &types.Position{
		ID:           fmt.Sprintf("%s-%s-%04d", paperBroker, signal.Symbol, p.seq),
		Symbol:       signal.Symbol,
		Side:         side,
		Quantity:     size.Quantity,
		EntryPrice:   signal.EntryPrice,
		CurrentPrice: signal.EntryPrice,
		AssetClass:   signal.AssetClass,
		Broker:       paperBroker,
	}
	notional := pos.Quantity * pos.EntryPrice
	if side == types.SideShort {
		p.cash += notional
	} else {
		p.cash -= notional
	}
	p.positions[pos.ID] = pos
	p.fills[pos.ID] = paperFill{source: signal.Source, entryTime: at}
	return *pos, nil
}

// Mark revalues open positions at the latest price per symbol and appends a
// point to the equity curve
func (p *PaperBook) Mark(prices map[string]float64, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, pos := range p.positions {
		price, ok := prices[pos.Symbol]
		if !ok || !(price > 0) {
			continue
		}
		pos.CurrentPrice = price
		pos.UnrealizedPnl = unrealized(*pos)
	}
	p.curve = append(p.curve, EquityPoint{Time: at, Equity: p.equityLocked()})
}

// Close fills the whole position at price and books the trade
func (p *PaperBook) Close(id string, price float64, at time.Time) (Trade, error) {
	if !(price > 0) {
		return Trade{}, coreerrors.NewValidationError(component, "Close", "exit price must be positive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[id]
	if !ok {
		return Trade{}, coreerrors.NewNotFoundError(component, "Close", id)
	}

	notional := pos.Quantity * price
	if pos.Side == types.SideShort {
		p.cash -= notional
	} else {
		p.cash += notional
	}

	pos.CurrentPrice = price
	pnl := unrealized(*pos)
	p.realized += pnl

	fill := p.fills[id]
	trade := Trade{
		PositionID: id,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		Source:     fill.source,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		EntryTime:  fill.entryTime,
		ExitTime:   at,
		PnL:        pnl,
	}
	p.trades = append(p.trades, trade)
	delete(p.positions, id)
	delete(p.fills, id)
	return trade, nil
}

// Position returns an open position by id
func (p *PaperBook) Position(id string) (types.Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[id]
	if !ok {
		return types.Position{}, false
	}
	return *pos, true
}

// Account builds the aggregated account snapshot fed to the risk and
// exposure components
func (p *PaperBook) Account() types.Account {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.positions))
	for id := range p.positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	acc := types.Account{
		TotalCash:   p.cash,
		RealizedPnl: p.realized,
		Positions:   make([]types.Position, 0, len(ids)),
	}
	for _, id := range ids {
		pos := *p.positions[id]
		value := pos.Value()
		acc.Positions = append(acc.Positions, pos)
		acc.UnrealizedPnl += pos.UnrealizedPnl
		acc.Exposure.Total += value
		switch pos.AssetClass {
		case types.AssetClassFutures:
			acc.Exposure.Futures += value
		case types.AssetClassEquity:
			acc.Exposure.Equities += value
		}
	}
	acc.TotalEquity = p.equityLocked()
	acc.TotalBuyingPower = acc.TotalCash
	return acc
}

// Results returns the closed trades and equity curve so far
func (p *PaperBook) Results() Results {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Results{
		StartEquity: p.startEquity,
		EndEquity:   p.equityLocked(),
		Trades:      append([]Trade(nil), p.trades...),
		EquityCurve: append([]EquityPoint(nil), p.curve...),
	}
}

func (p *PaperBook) equityLocked() float64 {
	equity := p.cash
	for _, pos := range p.positions {
		value := pos.Quantity * pos.CurrentPrice
		if pos.Side == types.SideShort {
			equity -= value
		} else {
			equity += value
		}
	}
	return equity
}

func unrealized(pos types.Position) float64 {
	pnl := (pos.CurrentPrice - pos.EntryPrice) * pos.Quantity
	if pos.Side == types.SideShort {
		return -pnl
	}
	return pnl
}
