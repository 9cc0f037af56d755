package types

import (
	"strings"
	"time"
)

// Direction is the trade direction proposed by a signal
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// Side returns the position side matching a tradeable direction
func (d Direction) Side() (Side, bool) {
	switch d {
	case DirectionLong:
		return SideLong, true
	case DirectionShort:
		return SideShort, true
	default:
		return "", false
	}
}

// SignalStatus is the lifecycle state of a signal
type SignalStatus string

const (
	SignalActive    SignalStatus = "ACTIVE"
	SignalExpired   SignalStatus = "EXPIRED"
	SignalExecuted  SignalStatus = "EXECUTED"
	SignalCancelled SignalStatus = "CANCELLED"
)

// IsTerminal reports whether no further transitions are allowed
func (s SignalStatus) IsTerminal() bool {
	return s == SignalExpired || s == SignalExecuted || s == SignalCancelled
}

// AssetClass groups instruments for exposure accounting
type AssetClass string

const (
	AssetClassFutures AssetClass = "FUTURES"
	AssetClassEquity  AssetClass = "EQUITY"
)

// ParseAssetClass accepts the common spellings used by upstream feeds
func ParseAssetClass(s string) (AssetClass, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FUTURES", "FUTURE":
		return AssetClassFutures, true
	case "EQUITY", "EQUITIES", "STOCK":
		return AssetClassEquity, true
	default:
		return "", false
	}
}

// Signal is a proposed trade emitted by the signal manager. Consumers never
// mutate a signal in place: status changes produce a new value via WithStatus.
type Signal struct {
	ID         string             `json:"id"`
	Symbol     string             `json:"symbol"`
	AssetClass AssetClass         `json:"asset_class"`
	Timeframe  string             `json:"timeframe"`
	Direction  Direction          `json:"direction"`
	Strength   float64            `json:"strength"`
	EntryPrice float64            `json:"entry_price"`
	StopLoss   float64            `json:"stop_loss"`
	TakeProfit *float64           `json:"take_profit,omitempty"`
	Source     string             `json:"source"`
	Status     SignalStatus       `json:"status"`
	Reasons    []string           `json:"reasons"`
	Timestamp  time.Time          `json:"timestamp"`
	ExpiresAt  time.Time          `json:"expires_at"`
	Indicators map[string]float64 `json:"indicators"`
	Regime     string             `json:"regime"`
}

// WithStatus returns a copy of the signal carrying the new status
func (s Signal) WithStatus(status SignalStatus) Signal {
	out := s.Clone()
	out.Status = status
	return out
}

// Clone deep-copies the reference fields of the signal
func (s Signal) Clone() Signal {
	out := s
	if s.TakeProfit != nil {
		tp := *s.TakeProfit
		out.TakeProfit = &tp
	}
	if s.Reasons != nil {
		out.Reasons = append([]string(nil), s.Reasons...)
	}
	if s.Indicators != nil {
		out.Indicators = make(map[string]float64, len(s.Indicators))
		for k, v := range s.Indicators {
			out.Indicators[k] = v
		}
	}
	return out
}

// IsExpired reports whether the signal is past its expiry at the given time
func (s Signal) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
