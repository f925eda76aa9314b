// Package logging provides unified logging infrastructure for CropCure
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFileName is the file created inside the log directory
const LogFileName = "cropcure.log"

var (
	mu          sync.RWMutex
	base        = zap.NewNop()
	sugar       = base.Sugar()
	file        *os.File
	development bool
)

func init() {
	Setup(os.Getenv("CROPCURE_ENV") == "development")
}

// Setup configures the console logger. Development mode uses a human-readable
// encoder, production emits JSON. DEBUG=true lowers the level to debug.
func Setup(dev bool) {
	mu.Lock()
	defer mu.Unlock()

	development = dev
	replace(newCore(zapcore.Lock(os.Stdout)))
}

// Initialize tees log output into logDir/cropcure.log in addition to stdout
func Initialize(logDir string) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, LogFileName)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	mu.Lock()
	if file != nil {
		_ = file.Close()
	}
	file = f
	replace(zapcore.NewTee(
		newCore(zapcore.Lock(os.Stdout)),
		newCore(zapcore.AddSync(f)),
	))
	mu.Unlock()

	Infof("Logging initialized: %s", logPath)
	return nil
}

// Close flushes buffered entries and closes the log file
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	_ = base.Sync()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	replace(newCore(zapcore.Lock(os.Stdout)))
	return err
}

// L returns the structured logger
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Infof logs an info message
func Infof(format string, v ...interface{}) {
	current().Infof(format, v...)
}

// Warnf logs a warning message
func Warnf(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

// Errorf logs an error message
func Errorf(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

// Debugf logs a debug message, only emitted when DEBUG=true
func Debugf(format string, v ...interface{}) {
	current().Debugf(format, v...)
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// replace must be called with mu held. The sugared helpers skip their own
// frame; base is used directly by callers and reports them as is.
func replace(core zapcore.Core) {
	base = zap.New(core, zap.AddCaller())
	sugar = base.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func newCore(ws zapcore.WriteSyncer) zapcore.Core {
	level := zapcore.InfoLevel
	if os.Getenv("DEBUG") == "true" {
		level = zapcore.DebugLevel
	}

	var encoder zapcore.Encoder
	if development {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
	} else {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	return zapcore.NewCore(encoder, ws, level)
}
