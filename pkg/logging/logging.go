// Package logging turns the logging section of the configuration into the
// process-wide zap logger. Components receive it and derive their own with
// logger.Named.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sirosfoundation/go-workspace-backend/pkg/config"
)

// Output formats
const (
	FormatJSON = "json"
	FormatText = "text"
)

// NewLogger builds a logger writing to stderr. The json format uses zap's
// production encoder; text uses the development console encoder.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	switch cfg.Format {
	case FormatJSON, "":
		zapCfg = zap.NewProductionConfig()
	case FormatText, "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.Level))
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// ParseLevel maps a configured level name to a zap level. Unknown names
// fall back to info.
func ParseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil || l > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return l
}
