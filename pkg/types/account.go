package types

import "math"

// Side is the direction of an open position
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Valid reports whether the side is one of the known values
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// Position is an open position as reported by the execution layer
type Position struct {
	ID            string     `json:"id"`
	Symbol        string     `json:"symbol"`
	Side          Side       `json:"side"`
	Quantity      float64    `json:"quantity"`
	EntryPrice    float64    `json:"entry_price"`
	CurrentPrice  float64    `json:"current_price"`
	MarketValue   float64    `json:"market_value,omitempty"`
	UnrealizedPnl float64    `json:"unrealized_pnl"`
	AssetClass    AssetClass `json:"asset_class"`
	Sector        string     `json:"sector,omitempty"`
	Broker        string     `json:"broker,omitempty"`
}

// Value returns the absolute market value of the position. A reported market
// value wins over quantity times current price.
func (p Position) Value() float64 {
	if p.MarketValue != 0 {
		return math.Abs(p.MarketValue)
	}
	return math.Abs(p.Quantity * p.CurrentPrice)
}

// Exposure holds the account's aggregate exposure by asset class
type Exposure struct {
	Total    float64 `json:"total"`
	Futures  float64 `json:"futures"`
	Equities float64 `json:"equities"`
}

// ForAssetClass returns the exposure bucket for an asset class
func (e Exposure) ForAssetClass(ac AssetClass) float64 {
	switch ac {
	case AssetClassFutures:
		return e.Futures
	case AssetClassEquity:
		return e.Equities
	default:
		return 0
	}
}

// Account is an aggregated account snapshot. It is passed by value into the
// risk and exposure components and never mutated by them.
type Account struct {
	TotalEquity      float64    `json:"total_equity"`
	TotalCash        float64    `json:"total_cash"`
	TotalBuyingPower float64    `json:"total_buying_power"`
	Positions        []Position `json:"positions"`
	RealizedPnl      float64    `json:"realized_pnl"`
	UnrealizedPnl    float64    `json:"unrealized_pnl"`
	MarginUsed       float64    `json:"margin_used"`
	MarginAvailable  float64    `json:"margin_available"`
	Exposure         Exposure   `json:"exposure"`
}

// Clone returns a copy that shares no slices with the receiver
func (a Account) Clone() Account {
	out := a
	out.Positions = append([]Position(nil), a.Positions...)
	return out
}
