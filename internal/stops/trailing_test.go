package stops

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	coreerrors "github.com/ducminhle1904/noise-engine/internal/errors"
	"github.com/ducminhle1904/noise-engine/internal/logger"
	"github.com/ducminhle1904/noise-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, cfg Config, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(cfg, opts...)
	require.NoError(t, err)
	return m
}

func TestNewManager_Defaults(t *testing.T) {
	m := newManager(t, DefaultConfig())
	cfg := m.GetConfig()
	assert.Equal(t, 0.5, cfg.TrailPercent)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 0, m.Len())
}

func TestNewManager_RejectsWhatUpdateConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative trail", Config{TrailPercent: -1, Enabled: true}},
		{"zero trail", Config{TrailPercent: 0, Enabled: true}},
		{"nan trail", Config{TrailPercent: math.NaN(), Enabled: true}},
		{"trail of 100", Config{TrailPercent: 100, Enabled: true}},
		{"negative activation", Config{TrailPercent: 0.5, ActivationPercent: -0.1}},
		{"min trail of 100", Config{TrailPercent: 0.5, MinTrailPercent: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewManager(tt.cfg)
			assert.Nil(t, m)
			assert.True(t, coreerrors.IsValidation(err))

			assert.True(t, coreerrors.IsValidation(newManager(t, DefaultConfig()).UpdateConfig(tt.cfg)))
		})
	}
}

func TestAddPosition_Validation(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		symbol  string
		side    types.Side
		entry   float64
		stop    float64
		wantErr func(error) bool
	}{
		{"missing id", "", "MNQ", types.SideLong, 15000, 14900, coreerrors.IsValidation},
		{"missing symbol", "p1", "", types.SideLong, 15000, 14900, coreerrors.IsValidation},
		{"bad side", "p1", "MNQ", types.Side("FLAT"), 15000, 14900, coreerrors.IsValidation},
		{"zero entry", "p1", "MNQ", types.SideLong, 0, 14900, coreerrors.IsValidation},
		{"negative stop", "p1", "MNQ", types.SideLong, 15000, -1, coreerrors.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(t, DefaultConfig())
			err := m.AddPosition(tt.id, tt.symbol, tt.side, tt.entry, tt.stop)
			require.Error(t, err)
			assert.True(t, tt.wantErr(err))
			assert.Equal(t, 0, m.Len())
		})
	}
}

func TestAddPosition_Duplicate(t *testing.T) {
	m := newManager(t, DefaultConfig())
	require.NoError(t, m.AddPosition("p1", "MNQ", types.SideLong, 15000, 14900))

	err := m.AddPosition("p1", "MNQ", types.SideLong, 15100, 15000)
	require.Error(t, err)
	assert.True(t, coreerrors.IsDuplicate(err))

	stop, ok := m.GetStopLevel("p1")
	require.True(t, ok)
	assert.Equal(t, 14900.0, stop)
}

func TestUpdateStops_LongScenario(t *testing.T) {
	m := newManager(t, DefaultConfig())
	require.NoError(t, m.AddPosition("p1", "MNQ", types.SideLong, 15000, 14900))

	steps := []struct {
		price     float64
		wantStop  float64
		wantState StopState
		changed   bool
	}{
		{15020, 14900, StateInitial, false},
		{15060, 15060 * 0.995, StateActivated, true},
		{15120, 15120 * 0.995, StateActivated, true},
		{15050, 15120 * 0.995, StateActivated, false},
	}

	for _, step := range steps {
		t.Run(fmt.Sprintf("price %.0f", step.price), func(t *testing.T) {
			updates := m.UpdateStops(map[string]float64{"MNQ": step.price})
			if step.changed {
				require.Len(t, updates, 1)
				assert.Equal(t, "p1", updates[0].PositionID)
				assert.InDelta(t, step.wantStop, updates[0].NewStop, 1e-9)
			} else {
				assert.Empty(t, updates)
			}

			rec, err := m.GetRecord("p1")
			require.NoError(t, err)
			assert.InDelta(t, step.wantStop, rec.CurrentStop, 1e-9)
			assert.Equal(t, step.wantState, rec.State)
		})
	}

	assert.True(t, m.CheckTrigger("p1", 15044))
	assert.False(t, m.CheckTrigger("p1", 15045))
	assert.Equal(t, 1, m.Len(), "triggering leaves the record in place")
}

func TestUpdateStops_ShortScenario(t *testing.T) {
	m := newManager(t, DefaultConfig())
	require.NoError(t, m.AddPosition("s1", "MES", types.SideShort, 15000, 15100))

	m.UpdateStops(map[string]float64{"MES": 14980})
	stop, _ := m.GetStopLevel("s1")
	assert.Equal(t, 15100.0, stop, "below activation")

	m.UpdateStops(map[string]float64{"MES": 14940})
	stop, _ = m.GetStopLevel("s1")
	assert.InDelta(t, 14940*1.005, stop, 1e-9)

	// a worse price never loosens the stop
	m.UpdateStops(map[string]float64{"MES": 14950})
	again, _ := m.GetStopLevel("s1")
	assert.Equal(t, stop, again)

	assert.True(t, m.CheckTrigger("s1", stop))
	assert.False(t, m.CheckTrigger("s1", stop-1))
}

func TestUpdateStops_ActivatedStaysActivatedBelowThreshold(t *testing.T) {
	m := newManager(t, DefaultConfig())
	require.NoError(t, m.AddPosition("p1", "MNQ", types.SideLong, 15000, 14900))

	m.UpdateStops(map[string]float64{"MNQ": 15100})
	m.UpdateStops(map[string]float64{"MNQ": 15010})

	rec, err := m.GetRecord("p1")
	require.NoError(t, err)
	assert.True(t, rec.Activated())
	assert.InDelta(t, 15100*0.995, rec.CurrentStop, 1e-9)
}

func TestUpdateStops_MinTrailFloor(t *testing.T) {
	m := newManager(t, Config{TrailPercent: 0.1, ActivationPercent: 0.3, MinTrailPercent: 0.2, Enabled: true})
	require.NoError(t, m.AddPosition("p1", "MNQ", types.SideLong, 100, 95))

	m.UpdateStops(map[string]float64{"MNQ": 110})
	stop, _ := m.GetStopLevel("p1")
	assert.InDelta(t, 110*0.998, stop, 1e-9)
}

func TestUpdateStops_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	m := newManager(t, cfg)
	require.NoError(t, m.AddPosition("p1", "MNQ", types.SideLong, 15000, 14900))

	assert.Empty(t, m.UpdateStops(map[string]float64{"MNQ": 16000}))
	stop, _ := m.GetStopLevel("p1")
	assert.Equal(t, 14900.0, stop)
}

func TestUpdateStops_SkipsMissingAndBadPrices(t *testing.T) {
	m := newManager(t, DefaultConfig())
	require.NoError(t, m.AddPosition("a", "MNQ", types.SideLong, 100, 95))
	require.NoError(t, m.AddPosition("b", "MES", types.SideLong, 100, 95))
	require.NoError(t, m.AddPosition("c", "TQQQ", types.SideShort, 100, 105))

	updates := m.UpdateStops(map[string]float64{"MNQ": 110, "MES": 0, "SPY": 500})
	require.Len(t, updates, 1)
	assert.Equal(t, "a", updates[0].PositionID)

	stops := m.GetAllStops()
	assert.Equal(t, 95.0, stops["b"])
	assert.Equal(t, 105.0, stops["c"])
}

func TestUpdateStops_BatchUpdatesAllSymbols(t *testing.T) {
	m := newManager(t, DefaultConfig())
	require.NoError(t, m.AddPosition("b", "MES", types.SideLong, 100, 95))
	require.NoError(t, m.AddPosition("a", "MNQ", types.SideLong, 100, 95))
	require.NoError(t, m.AddPosition("c", "MNQ", types.SideShort, 120, 125))

	updates := m.UpdateStops(map[string]float64{"MNQ": 110, "MES": 105})
	require.Len(t, updates, 3)
	assert.Equal(t, "a", updates[0].PositionID)
	assert.Equal(t, "b", updates[1].PositionID)
	assert.Equal(t, "c", updates[2].PositionID)
}

func TestTriggered(t *testing.T) {
	m := newManager(t, DefaultConfig())
	require.NoError(t, m.AddPosition("long", "MNQ", types.SideLong, 100, 95))
	require.NoError(t, m.AddPosition("short", "MES", types.SideShort, 100, 105))
	require.NoError(t, m.AddPosition("safe", "MYM", types.SideLong, 100, 95))

	ids := m.Triggered(map[string]float64{"MNQ": 94, "MES": 106, "MYM": 99})
	assert.Equal(t, []string{"long", "short"}, ids)
}

func TestTriggered_LogsOncePerCrossing(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, logger.Config{Level: "info", Format: "json"})
	m := newManager(t, DefaultConfig(), WithLogger(log))
	require.NoError(t, m.AddPosition("p1", "MNQ", types.SideLong, 100, 95))

	triggers := func() int { return strings.Count(buf.String(), "trailing stop triggered") }

	// polling while still crossed keeps reporting the id without recounting
	for i := 0; i < 3; i++ {
		assert.Equal(t, []string{"p1"}, m.Triggered(map[string]float64{"MNQ": 94}))
	}
	assert.Equal(t, 1, triggers())

	// recovering above the stop and crossing again counts a new trigger
	assert.Empty(t, m.Triggered(map[string]float64{"MNQ": 96}))
	assert.Equal(t, []string{"p1"}, m.Triggered(map[string]float64{"MNQ": 94}))
	assert.Equal(t, 2, triggers())

	// a missing price leaves the crossing state alone
	assert.Empty(t, m.Triggered(map[string]float64{}))
	m.Triggered(map[string]float64{"MNQ": 94})
	assert.Equal(t, 2, triggers())

	// removal forgets the crossing
	require.True(t, m.RemovePosition("p1"))
	require.NoError(t, m.AddPosition("p1", "MNQ", types.SideLong, 100, 95))
	m.Triggered(map[string]float64{"MNQ": 94})
	assert.Equal(t, 3, triggers())
}

func TestRemovePosition(t *testing.T) {
	m := newManager(t, DefaultConfig())
	require.NoError(t, m.AddPosition("p1", "MNQ", types.SideLong, 100, 95))

	assert.True(t, m.RemovePosition("p1"))
	assert.False(t, m.RemovePosition("p1"))

	_, ok := m.GetStopLevel("p1")
	assert.False(t, ok)
	_, err := m.GetRecord("p1")
	assert.True(t, coreerrors.IsNotFound(err))
	assert.False(t, m.CheckTrigger("p1", 1))
}

func TestGetAllStops_IsSnapshot(t *testing.T) {
	m := newManager(t, DefaultConfig())
	require.NoError(t, m.AddPosition("p1", "MNQ", types.SideLong, 100, 95))

	snapshot := m.GetAllStops()
	snapshot["p1"] = 1

	stop, _ := m.GetStopLevel("p1")
	assert.Equal(t, 95.0, stop)
}

func TestUpdateConfig(t *testing.T) {
	m := newManager(t, DefaultConfig())

	err := m.UpdateConfig(Config{TrailPercent: 0, Enabled: true})
	assert.True(t, coreerrors.IsValidation(err))

	require.NoError(t, m.UpdateConfig(Config{TrailPercent: 1, ActivationPercent: 0.5, MinTrailPercent: 0.2, Enabled: false}))
	assert.False(t, m.GetConfig().Enabled)
	assert.Equal(t, 1.0, m.GetConfig().TrailPercent)
}

func TestUpdateStops_ConcurrentStopsNeverLoosen(t *testing.T) {
	m := newManager(t, DefaultConfig())
	require.NoError(t, m.AddPosition("long", "MNQ", types.SideLong, 100, 95))
	require.NoError(t, m.AddPosition("short", "MES", types.SideShort, 100, 105))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				delta := float64((i*7+w*13)%40) - 20
				m.UpdateStops(map[string]float64{"MNQ": 100 + delta, "MES": 100 - delta})
			}
		}(w)
	}

	done := make(chan struct{})
	violations := make(chan string, 1)
	go func() {
		defer close(done)
		lastLong, lastShort := 0.0, 1e9
		for i := 0; i < 2000; i++ {
			stops := m.GetAllStops()
			if stops["long"] < lastLong || stops["short"] > lastShort {
				select {
				case violations <- fmt.Sprintf("long %v->%v short %v->%v", lastLong, stops["long"], lastShort, stops["short"]):
				default:
				}
				return
			}
			lastLong, lastShort = stops["long"], stops["short"]
		}
	}()

	wg.Wait()
	<-done
	select {
	case v := <-violations:
		t.Fatalf("stop moved against the position: %s", v)
	default:
	}
}
