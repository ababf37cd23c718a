// Package logger provides the process-wide logging facade backed by zap.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	base  = zap.NewNop()
	sugar = base.Sugar()
)

// New builds a zap logger for the given level. "debug" uses the development
// encoder; every other level uses the production JSON encoder.
// loglevel could be "debug", "info", "warn", "error", "fatal"
func New(logLevel string) (*zap.Logger, error) {
	var cfg zap.Config
	if logLevel == "debug" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(logLevel))
	return cfg.Build()
}

func parseLevel(logLevel string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// ReplaceGlobal swaps the global logger. Components that were handed an
// explicit *zap.Logger keep theirs.
func ReplaceGlobal(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	base = l
	sugar = l.Sugar()
	mu.Unlock()
}

// L returns the global structured logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func s() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Sync flushes the global logger.
func Sync() error {
	return L().Sync()
}

// Info logs an informational message using the global logger.
func Info(args ...interface{}) {
	s().Info(args...)
}

// Infof logs an informational message with formatting.
func Infof(format string, args ...interface{}) {
	s().Infof(format, args...)
}

// Errorf logs an error message with formatting.
func Errorf(format string, args ...interface{}) {
	s().Errorf(format, args...)
}
