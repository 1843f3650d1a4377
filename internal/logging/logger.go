package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Encoding selects between human-readable and machine-readable log lines.
type Encoding string

const (
	// EncodingConsole writes colored, human-readable lines.
	EncodingConsole Encoding = "console"

	// EncodingJSON writes one JSON object per line.
	EncodingJSON Encoding = "json"
)

// Config holds the configuration for the logger.
type Config struct {
	// Level is the minimum enabled logging level (debug, info, warn, error).
	Level string

	// Encoding determines the log format.
	Encoding Encoding

	// OutputPaths is a list of URLs or file paths to write logging output to.
	OutputPaths []string

	// ErrorOutputPaths is a list of URLs or file paths to write internal logger errors to.
	ErrorOutputPaths []string

	// DisableCaller disables automatic caller information.
	DisableCaller bool
}

// DefaultConfig returns a console configuration writing to stderr.
func DefaultConfig() Config {
	return Config{
		Level:            "info",
		Encoding:         EncodingConsole,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// NewLogger creates a new zap logger based on the provided configuration.
func NewLogger(cfg Config) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Encoding == EncodingJSON {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	} else {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	encoding := string(cfg.Encoding)
	if encoding == "" {
		encoding = string(EncodingConsole)
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       false,
		DisableCaller:     cfg.DisableCaller,
		DisableStacktrace: true,
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       cfg.OutputPaths,
		ErrorOutputPaths:  cfg.ErrorOutputPaths,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

// NewCLILogger builds the logger used by the tasks command.
//
// In debug mode everything goes to stderr so it interleaves with command
// output. Otherwise records are appended as JSON to logFile. If the log file
// cannot be created a no-op logger is returned so the command still runs.
func NewCLILogger(debug bool, level, logFile string) *zap.Logger {
	if level == "" {
		level = "debug"
	}

	if debug {
		cfg := DefaultConfig()
		cfg.Level = "debug"
		if logger, err := NewLogger(cfg); err == nil {
			return logger
		}
		return zap.NewNop()
	}

	if logFile == "" {
		return zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return zap.NewNop()
	}

	logger, err := NewLogger(Config{
		Level:            level,
		Encoding:         EncodingJSON,
		OutputPaths:      []string{logFile},
		ErrorOutputPaths: []string{logFile},
	})
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// ParseLevel converts a string level to zapcore.Level.
func ParseLevel(level string) (zapcore.Level, error) {
	return zapcore.ParseLevel(strings.ToLower(level))
}
