package logging

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level selects a logging verbosity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config controls logger construction.
type Config struct {
	Level Level
	// JSON selects structured JSON output; false uses zap's
	// human-readable console encoder, for local development.
	JSON bool
}

// New builds a logr.Logger backed by zap, the operator's sole logging
// entry point: every package in this module takes a logr.Logger rather
// than constructing its own.
func New(cfg Config) (logr.Logger, error) {
	zapLevel, err := zapLevelFor(cfg.Level)
	if err != nil {
		return logr.Logger{}, err
	}

	var encoderCfg zapcore.EncoderConfig
	var encoder zapcore.Encoder
	if cfg.JSON {
		encoderCfg = zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), zapLevel)
	zl := zap.New(core, zap.AddCaller())
	return zapr.NewLogger(zl), nil
}

func zapLevelFor(level Level) (zapcore.Level, error) {
	switch level {
	case "", LevelInfo:
		return zapcore.InfoLevel, nil
	case LevelDebug:
		return zapcore.DebugLevel, nil
	case LevelWarn:
		return zapcore.WarnLevel, nil
	case LevelError:
		return zapcore.ErrorLevel, nil
	default:
		return 0, &unknownLevelError{level: level}
	}
}

type unknownLevelError struct{ level Level }

func (e *unknownLevelError) Error() string {
	return "logging: unknown level " + string(e.level)
}
