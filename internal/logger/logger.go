// Package logger builds the zap loggers shared by every component.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the level and optional rotated log file.
type Config struct {
	File  string
	Level string
}

// New returns a logger writing human-readable lines to stderr and, when a
// file is configured, JSON lines to a rotated log file.
func New(cfg Config) *zap.Logger {
	level := parseLevel(cfg.Level)
	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(os.Stderr),
			level,
		),
	}
	if cfg.File != "" {
		cores = append(cores, fileCore(cfg.File, level))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

// NewFileOnly returns a logger that never touches the terminal. It writes to
// the configured file, or discards everything when no file is set.
func NewFileOnly(cfg Config) *zap.Logger {
	if cfg.File == "" {
		return zap.NewNop()
	}
	return zap.New(fileCore(cfg.File, parseLevel(cfg.Level)), zap.AddCaller())
}

func fileCore(path string, level zapcore.Level) zapcore.Core {
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level)
}

func parseLevel(s string) zapcore.Level {
	level, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}
