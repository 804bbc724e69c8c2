package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger

	// Handler configuration. Each setter updates one knob and rebuilds,
	// so SetLevel after SetTextOutput keeps the text handler.
	logOutput io.Writer  = os.Stdout
	logLevel  slog.Level = slog.LevelInfo
	logText   bool
	logRedact bool
)

func init() {
	rebuild()
}

// rebuild reconstructs the global logger from the current configuration.
// Callers must hold mu; init is the single unlocked caller.
func rebuild() {
	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if logText {
		handler = slog.NewTextHandler(logOutput, opts)
	} else {
		handler = slog.NewJSONHandler(logOutput, opts)
	}
	if logRedact {
		handler = NewRedactingHandler(handler)
	}
	defaultLogger = slog.New(handler)
}

// SetLogger replaces the global logger wholesale, bypassing the configured
// output and level. Mostly useful in tests.
func SetLogger(logger *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// SetOutput directs JSON log output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logOutput = w
	logText = false
	rebuild()
}

// SetTextOutput switches to human-readable text output at debug level
// (for development).
func SetTextOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logOutput = w
	logText = true
	logLevel = slog.LevelDebug
	rebuild()
}

// SetLevel sets the logging level, keeping the configured output and format.
func SetLevel(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	logLevel = level
	rebuild()
}

// Logger returns the default logger
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// With returns a logger with additional context
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// Debug logs at debug level
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs at info level
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs at warn level
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs at error level
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// DebugContext logs at debug level with context
func DebugContext(ctx context.Context, msg string, args ...any) {
	Logger().DebugContext(ctx, msg, args...)
}

// InfoContext logs at info level with context
func InfoContext(ctx context.Context, msg string, args ...any) {
	Logger().InfoContext(ctx, msg, args...)
}

// WarnContext logs at warn level with context
func WarnContext(ctx context.Context, msg string, args ...any) {
	Logger().WarnContext(ctx, msg, args...)
}

// ErrorContext logs at error level with context
func ErrorContext(ctx context.Context, msg string, args ...any) {
	Logger().ErrorContext(ctx, msg, args...)
}

// Common field helpers
func Operation(name string) slog.Attr {
	return slog.String("operation", name)
}

func TxHash(hash string) slog.Attr {
	return slog.String("tx_hash", hash)
}

func Wallet(address string) slog.Attr {
	return slog.String("wallet", address)
}

func Student(id string) slog.Attr {
	return slog.String("student_id", id)
}

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}
