package zerolog

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/jnirepair/internal/domain/interfaces"
)

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "debug", false)

	l.Info("stage finished",
		interfaces.F("stage", "Strip"),
		interfaces.F("removed", true),
		interfaces.F("attempts", 2),
		interfaces.F("tools", []string{"patchelf"}),
		interfaces.F("error", errors.New("exit 1")),
		interfaces.F("size", int64(4096)))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "stage finished", entry["message"])
	assert.Equal(t, "Strip", entry["stage"])
	assert.Equal(t, true, entry["removed"])
	assert.InDelta(t, 2, entry["attempts"], 0)
	assert.Equal(t, []interface{}{"patchelf"}, entry["tools"])
	assert.Equal(t, "exit 1", entry["error"])
	assert.InDelta(t, 4096, entry["size"], 0)
	assert.Contains(t, entry, "time")
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", false)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown too")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "info", true).Warn("lock busy", interfaces.F("path", "/tmp/a.jar.lock"))

	out := buf.String()
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "lock busy")
	assert.Contains(t, out, "path=/tmp/a.jar.lock")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
