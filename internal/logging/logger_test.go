package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &m), l)
		out = append(out, m)
	}
	return out
}

func TestSubsystemFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug").Sub("connection").With("transport", "discord")

	log.Debug().Str("state", "connecting").Msg("transition")

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "connection", got[0]["subsystem"])
	assert.Equal(t, "discord", got[0]["transport"])
	assert.Equal(t, "connecting", got[0]["state"])
	assert.Equal(t, "debug", got[0]["level"])
	assert.Contains(t, got[0], "time")
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		emit  int
	}{
		{"debug", 4},
		{"info", 3},
		{"", 3},
		{"bogus", 3},
		{"warn", 2},
		{"error", 1},
		{"silent", 0},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(&buf, tt.level)
			log.Trace().Msg("t")
			log.Debug().Msg("d")
			log.Info().Msg("i")
			log.Warn().Msg("w")
			log.Error().Msg("e")
			assert.Len(t, lines(t, &buf), tt.emit)
		})
	}
}

func TestParseLevel_CaseSensitive(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel("WARN"))
	assert.Equal(t, zerolog.Disabled, parseLevel("silent"))
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	assert.Same(t, &buf, Writer("json", &buf))

	pretty, ok := Writer("pretty", &buf).(zerolog.ConsoleWriter)
	require.True(t, ok)
	assert.False(t, pretty.NoColor)

	compact, ok := Writer("compact", &buf).(zerolog.ConsoleWriter)
	require.True(t, ok)
	assert.True(t, compact.NoColor)

	New(Writer("compact", &buf), "info").Info().Msg("status expired")
	assert.Contains(t, buf.String(), "status expired")
}

func TestNopAndDefault(t *testing.T) {
	require.NotNil(t, New(nil, "info"))

	nop := Nop()
	nop.Error().Msg("dropped")
	assert.Equal(t, zerolog.Disabled, nop.Zerolog().GetLevel())
}
