// Package logging builds the zap logger of the carhire binary, carries it through contexts and
// adapts it to the logger interfaces of the collection store.
package logging

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	contextKeyLogger contextKey = "logger"
)

var ErrUnknownLevel = errors.New("unknown log level")

// Config selects the level and encoder. Development switches to the console encoder with stack traces on warnings.
type Config struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

type ContextData struct {
	Logger *zap.Logger
	Debug  bool
}

// New builds a logger from cfg. An empty level means info.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, errors.Join(ErrUnknownLevel, fmt.Errorf("%q: %w", cfg.Level, err))
		}
		level = parsed
	}

	zapconfig := zap.NewProductionConfig()
	if cfg.Development {
		zapconfig = zap.NewDevelopmentConfig()
	}
	zapconfig.Level = zap.NewAtomicLevelAt(level)

	return zapconfig.Build()
}

func NewContextWithLogger(ctx context.Context, logger *zap.Logger, debug bool) context.Context {
	return context.WithValue(ctx, contextKeyLogger, ContextData{Logger: logger, Debug: debug})
}

// FromContext returns the logger stored in ctx or the global zap logger.
func FromContext(ctx context.Context) *zap.Logger {
	cdata, ok := ctx.Value(contextKeyLogger).(ContextData)
	if !ok || cdata.Logger == nil {
		return zap.L()
	}

	return cdata.Logger
}

func DataFromContext(ctx context.Context) ContextData {
	cdata, ok := ctx.Value(contextKeyLogger).(ContextData)
	if !ok {
		return ContextData{
			Logger: zap.L(),
		}
	}

	return cdata
}
