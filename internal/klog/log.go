// Package klog is the kernel's logging seam. It wraps logrus the way the
// teacher repo's shared/logger wraps its own backend: capitalized
// "Failed to ..." messages, %w-wrapped errors, level-guarded Debugf for
// the hot IPC/scheduler paths.
package klog

import (
	"github.com/sirupsen/logrus"
)

// Logger is a thin, struct-embeddable wrapper so call sites don't import
// logrus directly.
type Logger struct {
	entry *logrus.Entry
}

// New builds a Logger at the given level, using logrus's default text
// formatter.
func New(level logrus.Level) *Logger {
	l := logrus.New()
	l.SetLevel(level)
	return &Logger{entry: logrus.NewEntry(l)}
}

// WithField returns a child logger carrying one extra structured field,
// the way request-scoped fields are threaded through the teacher's
// request/response logging.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

// Nop returns a Logger that discards everything, for tests that don't
// want to assert on log output but still need to satisfy the interface.
func Nop() *Logger {
	l := logrus.New()
	l.SetOutput(discard{})
	return &Logger{entry: logrus.NewEntry(l)}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
