package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu          sync.RWMutex
	sugar       *zap.SugaredLogger
	development = os.Getenv("ENVIRONMENT") == "development"
)

func init() {
	sugar = newLogger(development, zapcore.InfoLevel).Sugar()
}

// Setup replaces the process logger. It is called once from main after config is loaded.
func Setup(environment, level string) {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	dev := environment == "development"
	if dev && lvl > zapcore.DebugLevel {
		lvl = zapcore.DebugLevel
	}

	mu.Lock()
	defer mu.Unlock()
	development = dev
	sugar = newLogger(dev, lvl).Sugar()
}

// Use installs an existing zap logger, mostly for tests that want an observer core.
func Use(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sugar = l.Sugar()
}

func newLogger(dev bool, lvl zapcore.Level) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if dev {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), lvl)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Info(format string, v ...interface{}) {
	current().Infof(format, v...)
}

func Error(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

func Debug(format string, v ...interface{}) {
	mu.RLock()
	dev := development
	mu.RUnlock()
	if dev {
		current().Debugf(format, v...)
	}
}

func Warn(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

// With returns a structured logger carrying the given key/value pairs.
func With(keysAndValues ...interface{}) *zap.SugaredLogger {
	return current().With(keysAndValues...)
}

func Sync() error {
	return current().Sync()
}

// LogSideEffectError records a best-effort failure that must not fail the caller.
func LogSideEffectError(action, resourceID string, err error) {
	current().Warnw("side effect failed", "action", action, "resource_id", resourceID, "error", err)
}
