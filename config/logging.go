package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pieceengine/piece-host/errors"
)

// NewLogger builds the host logger: JSON production encoding or a
// development console encoder, at the configured level.
func (l LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, errors.Config("log.level", err)
	}

	var zc zap.Config
	if l.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	log, err := zc.Build()
	if err != nil {
		return nil, errors.Config("building logger", err)
	}
	return log, nil
}
