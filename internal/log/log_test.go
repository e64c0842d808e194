package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	InitLogger(&buf)

	SetLevel("debug")
	assert.Equal(t, slog.LevelDebug, levelVar.Level())

	SetLevel("error")
	assert.Equal(t, slog.LevelError, levelVar.Level())

	SetLevel("bogus")
	assert.Equal(t, slog.LevelInfo, levelVar.Level())
	assert.Contains(t, buf.String(), "Unknown log level")
}

func TestNewLogrusLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLogrusLogger("debug", &buf)
	assert.Equal(t, logrus.DebugLevel, logger.Level)

	logger.WithField("playbook", "config.yml").Debug("starting")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "config.yml", entry["playbook"])
	assert.Equal(t, "starting", entry["msg"])

	assert.Equal(t, logrus.WarnLevel, NewLogrusLogger("warn", &buf).Level)
	assert.Equal(t, logrus.InfoLevel, NewLogrusLogger("", &buf).Level)
}

func TestLevelsAgree(t *testing.T) {
	var buf bytes.Buffer
	InitLogger(&buf)

	tests := []struct {
		level      string
		wantSlog   slog.Level
		wantLogrus logrus.Level
	}{
		{"trace", slog.LevelDebug, logrus.TraceLevel},
		{"debug", slog.LevelDebug, logrus.DebugLevel},
		{"info", slog.LevelInfo, logrus.InfoLevel},
		{"", slog.LevelInfo, logrus.InfoLevel},
		{"warn", slog.LevelWarn, logrus.WarnLevel},
		{"error", slog.LevelError, logrus.ErrorLevel},
		{"verbose", slog.LevelInfo, logrus.InfoLevel},
	}

	for _, tc := range tests {
		t.Run("level "+tc.level, func(t *testing.T) {
			SetLevel(tc.level)
			assert.Equal(t, tc.wantSlog, levelVar.Level())
			assert.Equal(t, tc.wantLogrus, NewLogrusLogger(tc.level, &buf).Level)
		})
	}
}

func TestNewLogr(t *testing.T) {
	var buf bytes.Buffer

	l := NewLogr(NewLogrusLogger("info", &buf))
	l.Info("otel message", "key", "value")

	assert.Contains(t, buf.String(), "otel message")
}
