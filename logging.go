package vkcompute

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// The package logger is a no-op unless the embedding application installs
// one. All instance debug callbacks and context lifecycle events are
// reported through it.
var logger atomic.Pointer[zap.Logger]

func init() {
	logger.Store(zap.NewNop())
}

// SetLogger installs a logger for the package. Passing nil restores the
// no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

func log() *zap.Logger {
	return logger.Load()
}
