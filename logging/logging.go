// Package logging provides the structured logger used across the boot
// manager.
//
// Libraries accept the small Logger interface so that any framework can be
// plugged in; the command-line tools use zap through New and Zap.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface accepted by every package in this module.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}

// New builds a named zap logger at the given level ("debug", "info", ...).
func New(name, level string) (*zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	log, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return log.Named(name).Sugar(), nil
}

// Zap adapts a zap SugaredLogger to Logger.
func Zap(s *zap.SugaredLogger) Logger {
	if s == nil {
		return Nop()
	}
	return zapLogger{s}
}

type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l zapLogger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l zapLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// With returns a Logger that adds kv to every message.
func With(l Logger, kv ...interface{}) Logger {
	if l == nil {
		return Nop()
	}
	if z, ok := l.(zapLogger); ok {
		return zapLogger{z.s.With(kv...)}
	}
	return withLogger{l: l, kv: kv}
}

type withLogger struct {
	l  Logger
	kv []interface{}
}

func (w withLogger) Debug(msg string, kv ...interface{}) { w.l.Debug(msg, w.merge(kv)...) }
func (w withLogger) Info(msg string, kv ...interface{})  { w.l.Info(msg, w.merge(kv)...) }
func (w withLogger) Error(msg string, kv ...interface{}) { w.l.Error(msg, w.merge(kv)...) }

func (w withLogger) merge(kv []interface{}) []interface{} {
	out := make([]interface{}, 0, len(w.kv)+len(kv))
	out = append(out, w.kv...)
	return append(out, kv...)
}
