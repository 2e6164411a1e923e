package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCLILogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		t.Run(level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(NewCLIHandler(&buf, ParseLogLevel(level)))
			require.NotNil(t, NewCLILogger(level))

			logger.Error("snapshot import failed")
			assert.Contains(t, buf.String(), "snapshot import failed")
		})
	}
}

func TestCLIHandler_LevelColors(t *testing.T) {
	tests := []struct {
		level slog.Level
		color string
		other string
	}{
		{slog.LevelDebug, colorGray, colorRed},
		{slog.LevelInfo, colorGreen, colorYellow},
		{slog.LevelWarn, colorYellow, colorRed},
		{slog.LevelError, colorRed, colorGray},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(NewCLIHandler(&buf, slog.LevelDebug))

			logger.Log(context.Background(), tt.level, "model trained")

			out := buf.String()
			assert.Contains(t, out, "model trained")
			assert.Contains(t, out, tt.color)
			assert.Contains(t, out, colorReset)
			assert.NotContains(t, out, tt.other)
		})
	}
}

func TestCLIHandler_Enabled(t *testing.T) {
	tests := []struct {
		handler slog.Level
		record  slog.Level
		want    bool
	}{
		{slog.LevelInfo, slog.LevelInfo, true},
		{slog.LevelInfo, slog.LevelDebug, false},
		{slog.LevelDebug, slog.LevelDebug, true},
		{slog.LevelError, slog.LevelError, true},
		{slog.LevelError, slog.LevelWarn, false},
	}

	for _, tt := range tests {
		t.Run(tt.handler.String()+"/"+tt.record.String(), func(t *testing.T) {
			var buf bytes.Buffer
			h := NewCLIHandler(&buf, tt.handler)
			assert.Equal(t, tt.want, h.Enabled(context.Background(), tt.record))

			slog.New(h).Log(context.Background(), tt.record, "scored")
			assert.Equal(t, tt.want, buf.Len() > 0)
		})
	}
}

func TestCLIHandler_RecordAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelInfo))

	logger.Info("snapshot imported", "files", 2, "rows", 1200)

	out := buf.String()
	assert.Contains(t, out, "snapshot imported")
	assert.Contains(t, out, "files=2")
	assert.Contains(t, out, "rows=1200")
}

func TestCLIHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := NewCLIHandler(&buf, slog.LevelInfo)

	assert.Equal(t, handler, handler.WithAttrs(nil))

	logger := slog.New(handler.WithAttrs([]slog.Attr{slog.String("snapshot", "master.csv")}))
	logger.Info("imported", "rows", 42)

	output := buf.String()
	assert.Contains(t, output, "snapshot=master.csv")
	assert.Contains(t, output, "rows=42")
	assert.Less(t, strings.Index(output, "snapshot="), strings.Index(output, "rows="))

	buf.Reset()
	slog.New(handler).Info("plain")
	assert.NotContains(t, buf.String(), "snapshot=")
}

func TestCLIHandler_GroupAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelInfo))

	logger.Info("plan", slog.Group("power", slog.Float64("alpha", 0.05), slog.Int("n", 8144)))

	output := buf.String()
	assert.Contains(t, output, "power.alpha=0.05")
	assert.Contains(t, output, "power.n=8144")
}

func TestCLIHandler_WarnMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelInfo))

	logger.Warn("low power")

	output := buf.String()
	assert.Contains(t, output, colorYellow)
	assert.NotContains(t, output, colorRed)
}

func TestCLIHandler_WithGroup(t *testing.T) {
	tests := []struct {
		group string
		want  string
	}{
		{"import", "[import] decoded"},
		{"server", "[server] decoded"},
		{"", "decoded"},
	}

	for _, tt := range tests {
		t.Run(tt.group, func(t *testing.T) {
			var buf bytes.Buffer
			handler := NewCLIHandler(&buf, slog.LevelInfo)

			grouped := handler.WithGroup(tt.group)
			if tt.group == "" {
				assert.Equal(t, handler, grouped)
			}

			slog.New(grouped).Info("decoded")
			assert.Contains(t, buf.String(), tt.want)
			if tt.group == "" {
				assert.NotContains(t, buf.String(), "]")
			}
		})
	}
}

func TestSetDefaultCLILogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	SetDefaultCLILogger("debug")

	_, ok := slog.Default().Handler().(*CLIHandler)
	assert.True(t, ok)
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"  debug  ", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLogLevel(tt.input)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCLIHandler_NestedGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCLIHandler(&buf, slog.LevelInfo)).WithGroup("server").WithGroup("score")

	logger.Info("scored")

	assert.Contains(t, buf.String(), "[server.score] scored")
}

func TestCLIHandler_DynamicLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := &slog.LevelVar{}
	lvl.Set(slog.LevelInfo)
	logger := slog.New(NewCLIHandler(&buf, lvl))

	logger.Debug("hidden")
	assert.Zero(t, buf.Len())

	lvl.Set(slog.LevelDebug)
	logger.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), colorGray)
}
