// Package config provides application configuration structures and helpers.
package config

import (
	"go.uber.org/zap"
)

// NewLogger builds a production JSON logger at the given level writing to
// stdout and, when set, to file.
func NewLogger(level, file string) (*zap.SugaredLogger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	logCfg := zap.NewProductionConfig()
	logCfg.Level = lvl
	logCfg.OutputPaths = []string{"stdout"}
	if file != "" {
		logCfg.OutputPaths = append(logCfg.OutputPaths, file)
	}

	logger, err := logCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
