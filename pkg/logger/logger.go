// Package logger builds the zap loggers used across discoursehash and names
// the structured fields they share.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/japaniel/discoursehash/pkg/errors"
)

// Standard field names for structured logging.
const (
	FieldDiscourseID = "discourse_id"
	FieldSentenceID  = "sentence_id"
	FieldTripletID   = "triplet_id"
	FieldRunID       = "run_id"
	FieldEntityID    = "entity_id"
	FieldUnitTensor  = "unit_tensor_id"
	FieldHashType    = "hash_type"
	FieldComponent   = "component"
	FieldCount       = "count"
	FieldDurationMS  = "duration_ms"
	FieldError       = "error"
	FieldPath        = "path"
	FieldReason      = "reason"
)

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// JSON selects the production JSON encoder instead of the console encoder.
	JSON bool
}

// New builds a sugared zap logger writing to stderr.
func New(opts Options) (*zap.SugaredLogger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	if opts.JSON {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		config.OutputPaths = []string{"stderr"}
		zapLogger, err := config.Build()
		if err != nil {
			return nil, errors.Wrap(err, "build json logger")
		}
		return zapLogger.Sugar(), nil
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)
	return zap.New(core).Sugar(), nil
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zap.InfoLevel, nil
	case "debug":
		return zap.DebugLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, errors.Newf("unknown log level %q", name)
	}
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}

// Component returns a child logger named for a component. The name is also
// attached as the component field so JSON output can be filtered on it.
func Component(parent *zap.SugaredLogger, name string) *zap.SugaredLogger {
	return OrNop(parent).Named(name).With(FieldComponent, name)
}
