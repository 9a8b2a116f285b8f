package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(level LogLevel, format LogFormat) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(level, format)
	l.SetOutput(&buf)
	return l, &buf
}

func TestLogger_JSONEntry(t *testing.T) {
	l, buf := newBufferedLogger(LevelInfo, FormatJSON)

	l.WithComponent("ingest").
		WithFields(map[string]interface{}{"rows": 12}).
		WithDuration(1500 * time.Millisecond).
		Info("batch written")

	var entry Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry.Level)
	assert.Equal(t, "batch written", entry.Message)
	assert.Equal(t, "ingest", entry.Fields["component"])
	assert.EqualValues(t, 12, entry.Fields["rows"])
	assert.EqualValues(t, 1500, entry.Fields["duration_ms"])
	assert.Empty(t, entry.Caller)
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferedLogger(LevelWarn, FormatText)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Errorf("failed after %d attempts", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN  shown")
	assert.Contains(t, out, "ERROR failed after 3 attempts")
	assert.Contains(t, out, "caller=")
}

func TestLogger_DerivedLoggersDoNotShareFields(t *testing.T) {
	l, buf := newBufferedLogger(LevelInfo, FormatText)

	base := l.WithField("service", "flows")
	_ = base.WithField("wallet", "0xabc")
	base.Info("classified")

	assert.NotContains(t, buf.String(), "wallet=")
	assert.Contains(t, buf.String(), "service=flows")
}

func TestLogger_WithError(t *testing.T) {
	l, buf := newBufferedLogger(LevelInfo, FormatText)

	assert.Same(t, l, l.WithError(nil))
	l.WithError(errors.New("redis down")).Warn("cache skipped")
	assert.True(t, strings.Contains(buf.String(), "error=redis down"))
}

func TestFromContext(t *testing.T) {
	l := NewLogger(LevelDebug, FormatText)
	ctx := WithLogger(context.Background(), l)

	assert.Same(t, l, FromContext(ctx))
	assert.Same(t, GetGlobalLogger(), FromContext(context.Background()))
}

func TestParseLogLevelAndFormat(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{" WARNING ", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.in))
		})
	}

	assert.Equal(t, FormatText, ParseLogFormat("TEXT"))
	assert.Equal(t, FormatJSON, ParseLogFormat("logfmt"))
}
