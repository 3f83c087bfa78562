// Package logging contains the zap-backed logger used by every pathtracker component.
package logging

import (
	"io"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewLogger returns a logger writing console lines at level and above to w, with UTC times.
// Commands log to stderr so stdout only carries their output.
func NewLogger(name string, w io.Writer, level Level) Logger {
	const inUTC = true
	return newImpl(name, level, inUTC, NewWriterAppender(w))
}

// NewTestLogger returns a new logger that outputs Debug+ logs to the test object in local time.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also saves logs to an in memory observer.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	const inUTC = false
	observerCore, observedLogs := observer.New(zap.LevelEnablerFunc(zapcore.DebugLevel.Enabled))
	return newImpl("", DEBUG, inUTC, NewTestAppender(tb), observerCore), observedLogs
}
