// Package xlog provides the structured trace logging this core emits at
// every throttle decision and cache event. The codegen backend, the query
// planner, and process bootstrap own their own logging configuration; this
// package only carries the small, swappable logger interface that
// trpc-group-trpc-agent-go/log is built the same way around.
package xlog

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface this package's package-level functions
// delegate to. A sugared zap logger satisfies it; so does a test no-op.
type Logger interface {
	Debugf(format string, args ...any)
}

// Default is the package-level logger. Tests may swap it for a no-op.
var Default Logger = zap.New(
	zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		zap.NewAtomicLevelAt(zapcore.DebugLevel),
	),
).Sugar()

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	MessageKey:     "message",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.LowercaseLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
}

var traceEnabled int32

// SetTraceEnabled toggles whether Tracef actually logs. Trace logging is off
// by default since it runs on the compile hot path.
func SetTraceEnabled(enabled bool) {
	v := int32(0)
	if enabled {
		v = 1
	}
	atomic.StoreInt32(&traceEnabled, v)
}

// Tracef logs a compile-cache trace event: throttle decisions, inline
// compiles, and cache hits and inserts, mirroring the LOG_TRACE call sites in
// ExpressionJIT.cpp (see SPEC_FULL.md's ambient stack section).
func Tracef(format string, args ...any) {
	if atomic.LoadInt32(&traceEnabled) == 0 {
		return
	}
	Default.Debugf(format, args...)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}

// Noop is a Logger that discards everything, for tests that don't want
// trace output on stdout.
var Noop Logger = noopLogger{}
