// Package logging builds the zap loggers used by the scheduler, the CLI and
// the examples.
package logging

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names for structured logging.
const (
	FieldJob         = "job"
	FieldTypeID      = "type_id"
	FieldJobID       = "job_id"
	FieldQueueItemID = "queue_item_id"
	FieldTryCount    = "try_count"
	FieldStatus      = "status"
	FieldState       = "state"
	FieldNextRun     = "next_run"
	FieldTimestamp   = "at"
	FieldDurationMS  = "duration_ms"
	FieldError       = "error"
	FieldCount       = "count"
)

// Config selects the output format and level.
type Config struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string
	// JSON switches from console to JSON output.
	JSON bool
}

// New builds a logger from cfg.
func New(cfg Config) (*zap.SugaredLogger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	if cfg.JSON {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
		l, err := config.Build()
		if err != nil {
			return nil, errors.Wrap(err, "jobs: build json logger")
		}
		return l.Sugar(), nil
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)
	return zap.New(core).Sugar(), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zap.InfoLevel, nil
	case "debug":
		return zap.DebugLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, errors.WithHint(
			errors.Newf("jobs: unknown log level %q", s),
			"use debug, info, warn or error")
	}
}

// ForJob returns a child logger tagged with a job's name and type id.
func ForJob(l *zap.SugaredLogger, name, typeID string) *zap.SugaredLogger {
	return l.With(FieldJob, name, FieldTypeID, typeID)
}
