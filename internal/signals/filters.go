package signals

import (
	"fmt"
	"time"

	"github.com/ducminhle1904/noise-engine/internal/regime"
	"github.com/ducminhle1904/noise-engine/internal/strategy"
)

// Filter names used in logs and metrics
const (
	filterRegime     = "regime"
	filterTime       = "time"
	filterVolatility = "volatility"
	filterInvalid    = "invalid"
	filterStrength   = "strength"
	filterCap        = "cap"
)

// regimeAllows gates a strategy kind on the detected regime. An uncertain
// regime suppresses nothing.
func regimeAllows(kind strategy.Kind, r regime.RegimeType) bool {
	switch r {
	case regime.RegimeTrending:
		return kind == strategy.KindMomentum
	case regime.RegimeRanging:
		return kind == strategy.KindMeanReversion || kind == strategy.KindBreakout
	case regime.RegimeVolatile:
		return kind == strategy.KindBreakout
	default:
		return true
	}
}

// sessionWindow is a daily [start, end) window in minutes after midnight
type sessionWindow struct {
	start int
	end   int
	loc   *time.Location
}

func parseSession(start, end, location string) (sessionWindow, error) {
	loc := time.UTC
	if location != "" {
		l, err := time.LoadLocation(location)
		if err != nil {
			return sessionWindow{}, fmt.Errorf("session location %q: %w", location, err)
		}
		loc = l
	}

	s, err := parseClock(start)
	if err != nil {
		return sessionWindow{}, fmt.Errorf("session start: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return sessionWindow{}, fmt.Errorf("session end: %w", err)
	}
	return sessionWindow{start: s, end: e, loc: loc}, nil
}

func parseClock(hhmm string) (int, error) {
	if hhmm == "" {
		return 0, nil
	}
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", hhmm)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// contains reports whether ts falls inside the window. Equal start and end
// means the whole day.
func (w sessionWindow) contains(ts time.Time) bool {
	local := ts.In(w.loc)
	m := local.Hour()*60 + local.Minute()

	switch {
	case w.start == w.end:
		return true
	case w.start < w.end:
		return m >= w.start && m < w.end
	default:
		return m >= w.start || m < w.end
	}
}
