// Package log sets up the installer's loggers: the slog JSON default logger
// used throughout, and a logrus logger for ansible-playbook output that is
// also handed to OpenTelemetry through logr.
package log

import (
	"io"
	"log/slog"

	runtime "github.com/banzaicloud/logrus-runtime-formatter"
	"github.com/bombsimon/logrusr/v4"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"
)

type Level string

const (
	LevelTrace Level = "trace"
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// levels maps a configured level onto both backends. slog has no trace
// level, so trace only differs for the playbook output logger.
var levels = map[Level]struct {
	slog   slog.Level
	logrus logrus.Level
}{
	LevelTrace: {slog.LevelDebug, logrus.TraceLevel},
	LevelDebug: {slog.LevelDebug, logrus.DebugLevel},
	LevelInfo:  {slog.LevelInfo, logrus.InfoLevel},
	"":         {slog.LevelInfo, logrus.InfoLevel},
	LevelWarn:  {slog.LevelWarn, logrus.WarnLevel},
	LevelError: {slog.LevelError, logrus.ErrorLevel},
}

var levelVar = &slog.LevelVar{}

// InitLogger makes a JSON logger writing to w the slog default, at info level.
func InitLogger(w io.Writer) {
	levelVar.Set(slog.LevelInfo)

	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelVar, AddSource: true})))
}

// SetLevel changes the default logger's level. Unknown levels fall back to info.
func SetLevel(loglevel string) {
	l, ok := levels[Level(loglevel)]
	levelVar.Set(l.slog)

	if !ok {
		levelVar.Set(slog.LevelInfo)
		slog.Warn("Unknown log level, defaulting to info", "loglevel", loglevel)
	}
}

// NewLogrusLogger returns the logger ansible-playbook output is streamed to.
// Entries are JSON with the calling file and line.
func NewLogrusLogger(logLevel string, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&runtime.Formatter{
		ChildFormatter: &logrus.JSONFormatter{},
		File:           true,
		Line:           true,
		BaseNameOnly:   true,
	})

	l, ok := levels[Level(logLevel)]
	if !ok {
		logger.SetLevel(logrus.InfoLevel)
		logger.WithField("logLevel", logLevel).Warn("Unknown log level, defaulting to info")

		return logger
	}

	logger.SetLevel(l.logrus)

	return logger
}

// NewLogr adapts a logrus logger to logr, as used by the OpenTelemetry SDK.
func NewLogr(logger *logrus.Logger) logr.Logger {
	return logrusr.New(logger)
}
