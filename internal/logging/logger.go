// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Thermoquad/mistral/pkg/aircode"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "MISTRAL_LOG_LEVEL"

// Rotation limits for file output
const (
	fileMaxSizeMB  = 10
	fileMaxBackups = 3
	fileMaxAgeDays = 28
)

// Options selects where log entries go
type Options struct {
	Level string // empty falls back to MISTRAL_LOG_LEVEL
	File  string // rotated JSON log file; empty writes console output to stderr
}

// ParseLevel maps a level name to a zap level. Unknown names map to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug", "trace":
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

// Initialize creates the global logger.
// If no level is given it checks MISTRAL_LOG_LEVEL.
// If neither is set, logging is disabled (silent mode).
func Initialize(opts Options) error {
	level := opts.Level
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	l, err := build(ParseLevel(level), opts.File)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = l
	return nil
}

// InitializeFromEnv initializes the logger from MISTRAL_LOG_LEVEL only
func InitializeFromEnv() error {
	return Initialize(Options{})
}

func build(level zapcore.Level, file string) (*zap.Logger, error) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	if file == "" {
		// stdout carries command output, so diagnostics go to stderr
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config := zap.Config{
			Level:            zap.NewAtomicLevelAt(level),
			Development:      false,
			Encoding:         "console",
			EncoderConfig:    encoderConfig,
			OutputPaths:      []string{"stderr"},
			ErrorOutputPaths: []string{"stderr"},
		}
		return config.Build()
	}

	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	writer := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    fileMaxSizeMB,
		MaxBackups: fileMaxBackups,
		MaxAge:     fileMaxAgeDays,
		LocalTime:  true,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(writer),
		level,
	)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), nil
}

// SetLogger replaces the global logger
func SetLogger(l *zap.Logger) {
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		// Silent until initialized so commands never print stray log lines
		logger = zap.NewNop()
	}
	return logger
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogConnection logs a link connection event
func LogConnection(target string, event string) {
	Info("Connection event",
		zap.String("target", target),
		zap.String("event", event),
	)
}

// LogFrame logs the outcome of decoding a captured frame
func LogFrame(variant string, codes []aircode.Code, err error) {
	fields := []zap.Field{
		zap.String("variant", variant),
		zap.Int("codes", len(codes)),
		zap.String("frame", aircode.FormatCodes(codes)),
	}
	if err != nil {
		fields = append(fields,
			zap.String("kind", aircode.ErrorKind(err)),
			zap.Error(err),
		)
		Warn("Frame rejected", fields...)
		return
	}
	Debug("Frame decoded", fields...)
}

// LogRawBytes logs raw bytes (useful for debugging link framing)
func LogRawBytes(label string, data []byte) {
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
	)
}

func hexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	// Limit to first 256 bytes for logging
	if len(data) > 256 {
		return hex.EncodeToString(data[:256]) + "..."
	}
	return hex.EncodeToString(data)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
