// Package logging configures the application's slog loggers, including
// rotating per-service file loggers used across the ingestion pipeline.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

// Default rotation settings for file loggers.
const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 3
	defaultMaxAge     = 28 // days
)

// Init initializes the logging system with structured and human-readable loggers.
// It configures JSON output for structured logs and Text output for human-readable logs.
func Init() {
	// Configure structured logger (JSON to stdout)
	structuredHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	structuredLogger = slog.New(structuredHandler)

	// Configure human-readable logger (Text to stderr)
	humanReadableHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	humanReadableLogger = slog.New(humanReadableHandler)

	// Set the structured logger as the application default
	slog.SetDefault(structuredLogger)
}

// SetLevel sets the minimum logging level for both loggers by re-creating the handlers.
func SetLevel(level slog.Level) {
	structuredHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	structuredLogger = slog.New(structuredHandler)

	humanReadableHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	humanReadableLogger = slog.New(humanReadableHandler)

	slog.SetDefault(structuredLogger)
}

// NewFileLogger creates a slog.Logger writing JSON to a rotating log file.
// The returned closer flushes and closes the underlying file; callers should
// invoke it during shutdown. The level argument may be a *slog.LevelVar for
// dynamic level control.
func NewFileLogger(filePath, serviceName string, level slog.Leveler) (*slog.Logger, func() error, error) {
	// Ensure the directory exists (lumberjack doesn't create directories)
	logDir := filepath.Dir(filePath)
	if logDir != "." { // Avoid trying to create the current directory if filePath is just a filename
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		MaxAge:     defaultMaxAge,
		Compress:   false,
	}

	fileHandler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(fileHandler).With("service", serviceName)
	closer := func() error { return logWriter.Close() }

	return logger, closer, nil
}

// NewDiscardLogger returns a logger writing to io.Discard, used as a fallback
// when a file logger cannot be initialized.
func NewDiscardLogger(serviceName string, level slog.Leveler) *slog.Logger {
	fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: level})
	return slog.New(fbHandler).With("service", serviceName)
}
