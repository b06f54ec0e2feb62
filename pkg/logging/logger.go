// Copyright (c) 2026 The Echoloop Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging provides the logger used by echoloop listeners and handlers.
//
// There is no process-wide logger: a Logger is built with NewConsoleLogger,
// CreateLoggerAsLocalFile or Nop and passed explicitly to echoloop.WithLogger
// and to the handler constructors. The zap-backed loggers returned here are
// safe for concurrent use by all event-loops.
//
// The environment variable `ECHOLOOP_LOGGING_LEVEL` holds the default level name
// (debug, info, warn, error) and `ECHOLOOP_LOGGING_FILE` a local file path for
// rotating file output; see LevelFromEnv and FileFromEnv.
package logging

import (
	"errors"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Flusher is the callback function which flushes any buffered log entries to the underlying writer.
// It is usually called before the process exits.
type Flusher = func() error

// Level is the alias of zapcore.Level.
type Level = zapcore.Level

// Levels accepted by the constructors, from the most to the least verbose.
const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
	FatalLevel = zapcore.FatalLevel
)

const (
	// EnvLoggingLevel names the environment variable holding the default level.
	EnvLoggingLevel = "ECHOLOOP_LOGGING_LEVEL"
	// EnvLoggingFile names the environment variable holding the log file path.
	EnvLoggingFile = "ECHOLOOP_LOGGING_FILE"

	prefix = "[echoloop]"
)

// Logger is used for logging formatted messages.
type Logger interface {
	// Debugf logs messages at DEBUG level.
	Debugf(format string, args ...interface{})
	// Infof logs messages at INFO level.
	Infof(format string, args ...interface{})
	// Warnf logs messages at WARN level.
	Warnf(format string, args ...interface{})
	// Errorf logs messages at ERROR level.
	Errorf(format string, args ...interface{})
	// Fatalf logs messages at FATAL level.
	Fatalf(format string, args ...interface{})
}

// ParseLevel converts a level name such as "debug" or "WARN" into a Level.
func ParseLevel(s string) (Level, error) {
	var lvl Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return InfoLevel, err
	}
	return lvl, nil
}

// LevelFromEnv returns the level named by ECHOLOOP_LOGGING_LEVEL, or def if it is unset.
func LevelFromEnv(def Level) (Level, error) {
	if s := os.Getenv(EnvLoggingLevel); len(s) > 0 {
		return ParseLevel(s)
	}
	return def, nil
}

// FileFromEnv returns the path in ECHOLOOP_LOGGING_FILE, empty if unset.
func FileFromEnv() string {
	return os.Getenv(EnvLoggingFile)
}

// Rotation settings of the file logger.
const (
	fileMaxSizeMB  = 100
	fileMaxBackups = 2
	fileMaxAgeDays = 15
)

// prefixEncoder tags every entry with the echoloop prefix.
type prefixEncoder struct {
	zapcore.Encoder

	bufPool buffer.Pool
}

func newPrefixEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	cfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return &prefixEncoder{Encoder: zapcore.NewConsoleEncoder(cfg), bufPool: buffer.NewPool()}
}

func (e *prefixEncoder) Clone() zapcore.Encoder {
	return &prefixEncoder{Encoder: e.Encoder.Clone(), bufPool: e.bufPool}
}

func (e *prefixEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line, err := e.Encoder.EncodeEntry(entry, fields)
	if err != nil {
		return nil, err
	}
	defer line.Free()

	buf := e.bufPool.Get()
	buf.AppendString(prefix)
	buf.AppendByte(' ')
	_, _ = buf.Write(line.Bytes())
	return buf, nil
}

// NewConsoleLogger creates a logger writing to stdout, with errors of the
// logger itself going to stderr.
func NewConsoleLogger(logLevel Level) (Logger, Flusher) {
	core := zapcore.NewCore(newPrefixEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.Lock(os.Stdout), logLevel)
	zl := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(FatalLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	return zl.Sugar(), zl.Sync
}

// CreateLoggerAsLocalFile creates a logger writing to localFilePath, rotated
// by lumberjack once it grows past 100 MB. The Flusher also closes the file.
func CreateLoggerAsLocalFile(localFilePath string, logLevel Level) (Logger, Flusher, error) {
	if localFilePath == "" {
		return nil, nil, errors.New("invalid local logger path")
	}

	rotator := &lumberjack.Logger{
		Filename:   localFilePath,
		MaxSize:    fileMaxSizeMB,
		MaxBackups: fileMaxBackups,
		MaxAge:     fileMaxAgeDays,
	}
	core := zapcore.NewCore(newPrefixEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(rotator), logLevel)
	zl := zap.New(core, zap.AddCaller(), zap.AddStacktrace(FatalLevel))
	flush := func() error {
		if err := zl.Sync(); err != nil {
			return err
		}
		return rotator.Close()
	}
	return zl.Sugar(), flush, nil
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return zap.NewNop().Sugar()
}
