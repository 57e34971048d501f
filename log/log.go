// Package log provides the structured logger used across the ceremony engine.
// It is a thin layer on top of zap so that components can be handed a logger
// (or pull one out of a context) without depending on zap directly.
package log

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger logs key/value pairs at different levels.
type Logger interface {
	Debugw(msg string, keyvals ...interface{})
	Infow(msg string, keyvals ...interface{})
	Warnw(msg string, keyvals ...interface{})
	Errorw(msg string, keyvals ...interface{})
	Fatalw(msg string, keyvals ...interface{})
	With(keyvals ...interface{}) Logger
	Named(name string) Logger
}

type logger struct {
	*zap.SugaredLogger
}

func (l *logger) With(keyvals ...interface{}) Logger {
	return &logger{l.SugaredLogger.With(keyvals...)}
}

func (l *logger) Named(name string) Logger {
	return &logger{l.SugaredLogger.Named(name)}
}

const (
	DebugLevel = int(zapcore.DebugLevel)
	InfoLevel  = int(zapcore.InfoLevel)
	WarnLevel  = int(zapcore.WarnLevel)
	ErrorLevel = int(zapcore.ErrorLevel)
	FatalLevel = int(zapcore.FatalLevel)
)

// DefaultLevel is the level of the default logger. Setting CEREMONY_TEST_LOGS=DEBUG
// lowers it to debug.
var DefaultLevel = InfoLevel

//nolint:gochecknoinits
func init() {
	if lvl, ok := os.LookupEnv("CEREMONY_TEST_LOGS"); ok && lvl == "DEBUG" {
		DefaultLevel = DebugLevel
	}
}

var (
	defaultOnce   sync.Once
	defaultLogger Logger
)

// DefaultLogger returns a process wide JSON logger writing to stdout at DefaultLevel.
func DefaultLogger() Logger {
	defaultOnce.Do(func() {
		defaultLogger = New(nil, DefaultLevel, true)
	})
	return defaultLogger
}

// New returns a logger writing to output (stdout when nil) at the given level.
func New(output zapcore.WriteSyncer, level int, isJSON bool) Logger {
	if output == nil {
		output = os.Stdout
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	encoder := zapcore.NewConsoleEncoder(cfg)
	if isJSON {
		encoder = zapcore.NewJSONEncoder(cfg)
	}
	core := zapcore.NewCore(encoder, output, zapcore.Level(level))
	return &logger{zap.New(core, zap.WithCaller(true)).Sugar()}
}

type ctxKey string

const ctxLogger ctxKey = "ceremonyLogger"

// ToContext attaches l to ctx.
func ToContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxLogger, l)
}

// FromContextOrDefault returns the logger stored by ToContext, or the default
// logger when there is none.
func FromContextOrDefault(ctx context.Context) Logger {
	l, ok := ctx.Value(ctxLogger).(Logger)
	if !ok {
		l = DefaultLogger()
		l.Debugw("logger missing on context, using default logger")
	}
	return l
}
