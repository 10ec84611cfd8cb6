// logger.go: Logger implementations for pixcache
//
// Copyright (c) 2025 AGILira
// Series: an AGLIra fragment
// SPDX-License-Identifier: MPL-2.0

package pixcache

import "github.com/rs/zerolog"

// nopLogger discards everything
type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
// Fields are alternating key/value pairs.
type ZerologLogger struct {
	logger zerolog.Logger
}

// NewZerologLogger creates a Logger backed by zerolog
func NewZerologLogger(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

// Debug logs at debug level
func (z *ZerologLogger) Debug(msg string, fields ...interface{}) {
	z.logger.Debug().Fields(fields).Msg(msg)
}

// Info logs at info level
func (z *ZerologLogger) Info(msg string, fields ...interface{}) {
	z.logger.Info().Fields(fields).Msg(msg)
}

// Warn logs at warn level
func (z *ZerologLogger) Warn(msg string, fields ...interface{}) {
	z.logger.Warn().Fields(fields).Msg(msg)
}

// Error logs at error level
func (z *ZerologLogger) Error(msg string, fields ...interface{}) {
	z.logger.Error().Fields(fields).Msg(msg)
}

var _ Logger = (*ZerologLogger)(nil)
