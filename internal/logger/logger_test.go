package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestLogger_LevelsAndComponent(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Component: "risk", Level: "info"})

	log.Debug("hidden")
	log.Info("evaluated", "symbol", "MNQ")
	log.Trade("order admitted", "quantity", 2)
	log.Status("breaker state", "triggered", false)
	log.LogError("load failed", errors.New("disk"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 4)

	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "risk", entries[0]["component"])
	assert.Equal(t, "MNQ", entries[0]["symbol"])
	assert.Equal(t, "TRADE", entries[1]["level"])
	assert.Equal(t, "STATUS", entries[2]["level"])
	assert.Equal(t, "ERROR", entries[3]["level"])
	assert.Equal(t, "disk", entries[3]["error"])
}

func TestLogger_WarnLevelDropsTrade(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Level: "warn"})

	log.Info("dropped")
	log.Trade("dropped too")
	log.Warning("kept")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["msg"])
}

func TestLogger_NilAndNopAreSafe(t *testing.T) {
	var nilLogger *Logger
	assert.NotPanics(t, func() {
		nilLogger.Info("ignored")
		nilLogger.With("k", "v").Warning("ignored")
		Nop().Error("ignored")
	})
	assert.NoError(t, nilLogger.Close())
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Format: "text"}).Component("stops")
	log.Info("stop activated", "position_id", "pos-1")

	assert.Contains(t, buf.String(), "component=stops")
	assert.Contains(t, buf.String(), "position_id=pos-1")
}
