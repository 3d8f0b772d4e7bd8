// Package logger wraps zap for structured logging.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log     *zap.Logger
	once    sync.Once
	mu      sync.Mutex
	file    *os.File
	logFile = "mongoload.log" // Default log file
	level   = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// SetLogPath changes the log file. It takes effect on the next InitLogger
// after ResetLogger, or on first use.
func SetLogPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	logFile = path
}

// SetLevel parses and applies a level name ("debug", "info", "warn", "error").
// The change is visible to an already initialized logger.
func SetLevel(name string) error {
	l, err := zapcore.ParseLevel(name)
	if err != nil {
		return err
	}
	level.SetLevel(l)
	return nil
}

// InitLogger initializes the Zap logger with structured logging.
func InitLogger() {
	once.Do(func() {
		mu.Lock()
		path := logFile
		mu.Unlock()

		// Configure console logging
		consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores := []zapcore.Core{zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), level)}

		// Configure file logging; an empty path or unwritable file leaves console only
		if path != "" {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err == nil {
				file = f
				fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
				cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(f), level))
			}
		}

		// Initialize global logger
		log = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	})
}

// GetLogger provides access to the initialized logger.
func GetLogger() *zap.Logger {
	if log == nil {
		InitLogger()
	}
	return log
}

// Sync ensures buffered logs are written before the application exits.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

// ResetLogger flushes and discards the global logger so the next call
// initializes a fresh one.
func ResetLogger() {
	Sync()
	if file != nil {
		_ = file.Close()
		file = nil
	}
	log = nil
	once = sync.Once{}
	level.SetLevel(zap.InfoLevel)
}
