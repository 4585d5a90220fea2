// Copyright 2021 The OPA Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package logging provides structured logging for the bundler CLI and
// compile pipeline.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Level is a logging verbosity level.
type Level int

const (
	// Error level, only fatal and error conditions.
	Error Level = iota
	// Warn level, non-fatal conditions worth surfacing.
	Warn
	// Info level, the default.
	Info
	// Debug level, verbose per-stage tracing.
	Debug
)

// Logger is the logging interface used throughout the module. Components
// take a Logger rather than calling a global, so tests can inject a
// buffering or no-op implementation.
type Logger interface {
	Debug(fmt string, a ...interface{})
	Info(fmt string, a ...interface{})
	Error(fmt string, a ...interface{})
	Warn(fmt string, a ...interface{})
	WithFields(fields map[string]interface{}) Logger
	GetLevel() Level
	SetLevel(Level)
	SetOutput(io.Writer)
	SetFormatter(logrus.Formatter)
}

// StandardLogger is the default Logger implementation, backed by logrus.
type StandardLogger struct {
	logger *logrus.Logger
	fields map[string]interface{}
}

// New returns a new standard logger writing to stderr at Info level.
func New() *StandardLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	return &StandardLogger{logger: l}
}

var std = New()

// Get returns the logger shared by callers that have not been given one
// explicitly (primarily the CLI entrypoint before flags are parsed).
func Get() *StandardLogger {
	return std
}

func (l *StandardLogger) levelEntry() *logrus.Entry {
	return l.logger.WithFields(logrus.Fields(l.fields))
}

// Debug logs at debug level.
func (l *StandardLogger) Debug(fmt string, a ...interface{}) {
	l.levelEntry().Debugf(fmt, a...)
}

// Info logs at info level.
func (l *StandardLogger) Info(fmt string, a ...interface{}) {
	l.levelEntry().Infof(fmt, a...)
}

// Error logs at error level.
func (l *StandardLogger) Error(fmt string, a ...interface{}) {
	l.levelEntry().Errorf(fmt, a...)
}

// Warn logs at warn level.
func (l *StandardLogger) Warn(fmt string, a ...interface{}) {
	l.levelEntry().Warnf(fmt, a...)
}

// WithFields returns a new Logger carrying fields merged over any fields
// already set (a repeated key overrides its previous value).
func (l *StandardLogger) WithFields(fields map[string]interface{}) Logger {
	cp := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		cp[k] = v
	}
	for k, v := range fields {
		cp[k] = v
	}
	return &StandardLogger{logger: l.logger, fields: cp}
}

// GetLevel returns the logger's current level.
func (l *StandardLogger) GetLevel() Level {
	switch l.logger.GetLevel() {
	case logrus.DebugLevel, logrus.TraceLevel:
		return Debug
	case logrus.WarnLevel:
		return Warn
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return Error
	default:
		return Info
	}
}

// SetLevel sets the logger's level.
func (l *StandardLogger) SetLevel(level Level) {
	switch level {
	case Debug:
		l.logger.SetLevel(logrus.DebugLevel)
	case Warn:
		l.logger.SetLevel(logrus.WarnLevel)
	case Error:
		l.logger.SetLevel(logrus.ErrorLevel)
	default:
		l.logger.SetLevel(logrus.InfoLevel)
	}
}

// SetOutput redirects where log entries are written.
func (l *StandardLogger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

// SetFormatter sets the logrus formatter used to render entries.
func (l *StandardLogger) SetFormatter(formatter logrus.Formatter) {
	l.logger.SetFormatter(formatter)
}

// NoOpLogger discards everything. Useful for library callers and
// benchmarks that don't want log output on the critical path.
type NoOpLogger struct {
	fields map[string]interface{}
}

// NewNoOpLogger returns a Logger that discards all output.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (*NoOpLogger) Debug(string, ...interface{}) {}
func (*NoOpLogger) Info(string, ...interface{})  {}
func (*NoOpLogger) Error(string, ...interface{}) {}
func (*NoOpLogger) Warn(string, ...interface{})  {}
func (l *NoOpLogger) WithFields(fields map[string]interface{}) Logger {
	return l
}
func (*NoOpLogger) GetLevel() Level                 { return Info }
func (*NoOpLogger) SetLevel(Level)                  {}
func (*NoOpLogger) SetOutput(io.Writer)             {}
func (*NoOpLogger) SetFormatter(logrus.Formatter)   {}

// BuildContext carries per-invocation correlation data: every log line
// emitted while compiling one asset graph is tagged with the same BuildID
// so multi-stage output can be grepped back together.
type BuildContext struct {
	BuildID string
	Stage   string
}

// Fields renders the build context as structured logging fields.
func (b BuildContext) Fields() map[string]interface{} {
	f := map[string]interface{}{}
	if b.BuildID != "" {
		f["build_id"] = b.BuildID
	}
	if b.Stage != "" {
		f["stage"] = b.Stage
	}
	return f
}

type buildContextKey struct{}
type buildIDKey struct{}

// NewContext returns a copy of parent carrying val.
func NewContext(parent context.Context, val *BuildContext) context.Context {
	return context.WithValue(parent, buildContextKey{}, val)
}

// FromContext returns the BuildContext associated with ctx, if any.
func FromContext(ctx context.Context) (*BuildContext, bool) {
	val, ok := ctx.Value(buildContextKey{}).(*BuildContext)
	return val, ok
}

// WithBuildID returns a copy of parent carrying id as the active build
// correlation id.
func WithBuildID(parent context.Context, id string) context.Context {
	return context.WithValue(parent, buildIDKey{}, id)
}

// BuildIDFromContext returns the build id associated with ctx, if any.
func BuildIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(buildIDKey{}).(string)
	return id, ok
}

var _ Logger = (*StandardLogger)(nil)
var _ Logger = (*NoOpLogger)(nil)
