// Package logging builds the process zap logger from the log configuration.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/amartya2002/uptime-probe/config"
)

// New builds a logger writing to stderr plus the optional log file. Level "none"
// returns a no-op logger. Stdout is left to the countdown and the reports.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	if cfg.Level == "none" {
		return zap.NewNop(), nil
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Development = false
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	// Build output paths
	paths := []string{"stderr"}
	if cfg.File != "" && cfg.File != "stderr" {
		paths = append(paths, cfg.File)
	}
	zcfg.OutputPaths = paths
	zcfg.ErrorOutputPaths = []string{"stderr"}

	l, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return l, nil
}
