// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package commons

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the application-wide logging contract. It mirrors the sugared
// zap surface so call sites can mix printf-style and key/value logging.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Fatalf(template string, args ...interface{})
	Sync() error
}

type loggerOptions struct {
	name  string
	path  string
	level string
}

type LoggerOption func(*loggerOptions)

// Name sets the service name used for the log file and the logger name.
func Name(name string) LoggerOption {
	return func(o *loggerOptions) { o.name = name }
}

// Path sets the directory the rotating log file is written to.
func Path(path string) LoggerOption {
	return func(o *loggerOptions) { o.path = path }
}

// Level sets the minimum level (debug, info, warn, error).
func Level(level string) LoggerOption {
	return func(o *loggerOptions) { o.level = level }
}

type applicationLogger struct {
	*zap.SugaredLogger
}

// NewApplicationLogger builds the process logger: JSON lines to a rotating
// file under the configured path and console output on stdout.
func NewApplicationLogger(opts ...LoggerOption) (Logger, error) {
	options := &loggerOptions{
		name:  "application",
		path:  ".",
		level: "info",
	}
	for _, opt := range opts {
		opt(options)
	}

	level, err := zapcore.ParseLevel(options.level)
	if err != nil {
		return nil, fmt.Errorf("illegal log level %q: %w", options.level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	fileSink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(options.path, options.name+".log"),
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	})

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), fileSink, level),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(os.Stdout), level),
	)

	logger := zap.New(core, zap.AddCaller()).Named(options.name)
	return &applicationLogger{logger.Sugar()}, nil
}
