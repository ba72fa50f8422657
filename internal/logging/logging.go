// Package logging wraps zap's sugared logger behind a small interface so
// components log structured key/value events without caring about the
// encoder in use.
package logging

import (
	"strings"

	"go.uber.org/zap"
)

type Logger struct {
	s *zap.SugaredLogger
}

// New builds a logger for the given mode: "prod"/"production" emits JSON
// lines, anything else a development console encoder.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{s: zl.Sugar()}, nil
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() { _ = l.s.Sync() }

func (l *Logger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l *Logger) Fatal(msg string, kv ...interface{}) { l.s.Fatalw(msg, kv...) }

func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{s: l.s.With(kv...)}
}
