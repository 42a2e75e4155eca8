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

// Init builds the process logger. "production" emits JSON, anything else a
// colored console encoder.
func Init(environment string) {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := config.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewExample()
	}
	Set(l)
}

// Set swaps the process logger; tests use it with zap.NewNop or zaptest.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	sugar = l.Sugar()
}

// L returns the underlying zap logger.
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

func Debug(msg string, keysAndValues ...any) { s().Debugw(msg, keysAndValues...) }

func Info(msg string, keysAndValues ...any) { s().Infow(msg, keysAndValues...) }

func Warn(msg string, keysAndValues ...any) { s().Warnw(msg, keysAndValues...) }

func Error(msg string, keysAndValues ...any) { s().Errorw(msg, keysAndValues...) }

func Fatal(msg string, keysAndValues ...any) { s().Fatalw(msg, keysAndValues...) }

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}
