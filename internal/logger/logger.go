// Package logger provides structured logging for repogate.
//
// Loggers are zap loggers writing JSON to stdout. Components derive named children with
// Named and attach the execution context with ForContext so every line emitted on behalf of
// one request can be correlated.
package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/repogate/internal/execution"
)

// ExecutionIDKey is the log field carrying the execution context.
const ExecutionIDKey = "execution_id"

// ErrInvalidLogLevel is returned when an invalid log level string is provided.
var ErrInvalidLogLevel = fmt.Errorf("invalid log level")

// InitLogger builds a production JSON logger at the given level, tagged with the service name.
// An empty service name leaves the tag off.
func InitLogger(level, service string) (*zap.Logger, error) {
	zapLevel, err := ParseLogLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", level, err)
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         "json",
		EncoderConfig:    encoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if service != "" {
		zapConfig.InitialFields = map[string]any{"service": service}
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	return logger, nil
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// ParseLogLevel converts a case-insensitive level name to a zapcore.Level.
// On error it returns InfoLevel.
func ParseLogLevel(level string) (zapcore.Level, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("%w: %s", ErrInvalidLogLevel, err)
	}
	return zapLevel, nil
}

// ExecutionField returns the log field for an execution ID.
func ExecutionField(id execution.ID) zap.Field {
	return zap.String(ExecutionIDKey, id.String())
}

// ForContext returns l tagged with the execution ID carried by ctx, or l itself when ctx has none.
func ForContext(ctx context.Context, l *zap.Logger) *zap.Logger {
	id, ok := execution.FromContext(ctx)
	if !ok {
		return l
	}
	return l.With(ExecutionField(id))
}

// SyncLogger flushes any buffered log entries. It is safe to call with a nil logger.
func SyncLogger(logger *zap.Logger) {
	if logger == nil {
		return
	}
	// stdout/stderr return "inappropriate ioctl for device" on some platforms
	_ = logger.Sync()
}
