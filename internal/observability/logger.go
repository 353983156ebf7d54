// Package observability holds the process-wide loggers. The server profile
// emits structured JSON; the CLI profile emits human-readable console lines.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// CLILogger is used by CLI commands.
	CLILogger *zap.Logger

	// ServerLogger is used by the HTTP server and middleware.
	ServerLogger *zap.Logger
)

// InitCLILogger initializes the console logger for CLI commands.
func InitCLILogger(verbose bool) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	CLILogger = logger
}

// InitServerLogger initializes the structured JSON logger for server mode.
func InitServerLogger(service, level string) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build(zap.Fields(zap.String("service", service)))
	if err != nil {
		logger = zap.NewNop()
	}
	ServerLogger = logger
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
