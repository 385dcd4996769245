package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestComponentFields(t *testing.T) {
	var buf bytes.Buffer
	l := Component(newLogger(Config{Level: "info", Service: "parley"}, &buf), "hub")

	l.Info().Str(FieldRoom, "general").Msg("hello")
	l.Debug().Msg("filtered")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "parley", entry[FieldService])
	require.Equal(t, "hub", entry[FieldComponent])
	require.Equal(t, "general", entry[FieldRoom])
	require.Equal(t, "hello", entry["message"])
}
