package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func logToFile(t *testing.T, cfg Config, write func(*Logger)) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slowtty.log")
	cfg.OutputPaths = []string{path}

	logger, err := New(cfg)
	require.NoError(t, err)
	write(logger)
	logger.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestProductionWritesJSON(t *testing.T) {
	out := logToFile(t, Config{Level: "info"}, func(l *Logger) {
		l.Named("writer").Info("relay started", zap.Int("quota", 38))
		l.Debug("hidden")
	})

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "writer", entry["logger"])
	assert.Equal(t, "relay started", entry["message"])
	assert.EqualValues(t, 38, entry["quota"])
}

func TestRawTerminalLineEnding(t *testing.T) {
	tests := []struct {
		name        string
		development bool
	}{
		{"json", false},
		{"console", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := logToFile(t, Config{Level: "info", Development: tt.development, RawTerminal: true}, func(l *Logger) {
				l.Info("one")
				l.Info("two")
			})
			assert.Equal(t, 2, strings.Count(out, "\r\n"))
			assert.Equal(t, 2, strings.Count(out, "\n"))
		})
	}
}

func TestCookedLineEnding(t *testing.T) {
	out := logToFile(t, Config{Level: "info"}, func(l *Logger) {
		l.Info("one")
	})
	assert.NotContains(t, out, "\r")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestDevelopmentConsole(t *testing.T) {
	out := logToFile(t, DevelopmentConfig(), func(l *Logger) {
		l.Debug("tick", zap.Int("buffered", 12))
	})
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "tick")
	assert.Contains(t, out, `{"buffered": 12}`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, []string{"stderr"}, DefaultConfig().OutputPaths)
	assert.Equal(t, "debug", DevelopmentConfig().Level)

	cfg := DefaultConfig().WithFile("/tmp/x.log")
	assert.Equal(t, []string{"stderr", "/tmp/x.log"}, cfg.OutputPaths)
	assert.Equal(t, []string{"stderr"}, DefaultConfig().WithFile("").OutputPaths)
}
