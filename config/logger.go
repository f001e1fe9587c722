package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger *zap.Logger

// InitLogger builds the process-wide JSON logger at the given level.
// Unrecognized level strings fall back to info so a misconfigured
// LOG_LEVEL never blocks startup.
func InitLogger(logLevelStr string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(logLevelStr)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	globalLogger = logger
	return logger, nil
}

// Cleanup flushes any buffered log entries.
func Cleanup() {
	if globalLogger != nil {
		globalLogger.Sync()
	}
}
