package main

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the console logger used by every component. Unknown levels
// fall back to INFO and are reported through the returned logger.
func NewLogger(level string) *zap.SugaredLogger {
	atomicLevel := zap.NewAtomicLevelAt(zap.InfoLevel)
	parsed, parseErr := zap.ParseAtomicLevel(level)
	if parseErr == nil {
		atomicLevel.SetLevel(parsed.Level())
	}
	config := zap.Config{
		Level:       atomicLevel,
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "M",
			LevelKey:       "L",
			TimeKey:        "T",
			NameKey:        "N",
			CallerKey:      zapcore.OmitKey,
			FunctionKey:    zapcore.OmitKey,
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
			EncodeName:     zapcore.FullNameEncoder,
		},
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}
	sugar := logger.Sugar()
	if parseErr != nil && level != "" {
		sugar.Warnf("failed to parse log level %q, fallback to INFO: %v", level, parseErr)
	}
	return sugar
}
