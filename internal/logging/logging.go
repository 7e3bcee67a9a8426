// Package logging builds the process logger.
//
// Human-readable lines go to stderr; when a log file is configured the same
// entries are also written there as JSON, rotated by lumberjack. Packages
// that take a *log.Logger get one from Std, which routes through zap.
package logging

import (
	"io"
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configure New.
type Options struct {
	Verbose    bool
	File       string
	MaxSizeMB  int
	MaxBackups int

	// Console receives human-readable output (default: os.Stderr)
	Console io.Writer
}

// New returns a zap logger and a cleanup func that flushes it.
func New(opts Options) (*zap.Logger, func()) {
	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(console), level),
	}

	var rotator *lumberjack.Logger
	if opts.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		// The file always gets debug entries.
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(rotator), zapcore.DebugLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	cleanup := func() {
		_ = logger.Sync()
		if rotator != nil {
			_ = rotator.Close()
		}
	}
	return logger, cleanup
}

// Std adapts logger to a *log.Logger whose lines are logged at debug level
// under the given name.
func Std(logger *zap.Logger, name string) *log.Logger {
	l, err := zap.NewStdLogAt(logger.Named(name), zapcore.DebugLevel)
	if err != nil {
		return zap.NewStdLog(logger.Named(name))
	}
	return l
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}
