// Package logging provides the leveled diagnostic logger shared by the
// extraction and diff tools. Messages are written as "[prefix] LEVEL: msg".
package logging

import (
	"fmt"
	"io"
	"log"
)

// Level orders diagnostics from least to most verbose.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var levelNames = map[Level]string{
	LevelError: "ERROR",
	LevelWarn:  "WARN",
	LevelInfo:  "INFO",
	LevelDebug: "DEBUG",
	LevelTrace: "TRACE",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// Logger writes messages at or below its level. A nil *Logger discards
// everything, so callers never need to guard.
type Logger struct {
	prefix string
	level  Level
	out    *log.Logger
}

// New returns a Logger writing to w.
func New(w io.Writer, prefix string, level Level) *Logger {
	return &Logger{
		prefix: prefix,
		level:  level,
		out:    log.New(w, "", 0),
	}
}

// Discard returns a Logger that drops every message.
func Discard() *Logger {
	return New(io.Discard, "", LevelError)
}

// FromVerbosity maps a repeat count of a -d/-v style flag onto a level,
// starting at base for a count of zero.
func FromVerbosity(base Level, count int) Level {
	l := base + Level(count)
	if l > LevelTrace {
		return LevelTrace
	}
	return l
}

// Level reports the configured level.
func (l *Logger) Level() Level {
	if l == nil {
		return LevelError
	}
	return l.level
}

// Enabled reports whether messages at lvl would be written.
func (l *Logger) Enabled(lvl Level) bool {
	return l != nil && lvl <= l.level
}

func (l *Logger) logf(lvl Level, format string, args ...any) {
	if !l.Enabled(lvl) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.prefix == "" {
		l.out.Printf("%s: %s", lvl, msg)
		return
	}
	l.out.Printf("[%s] %s: %s", l.prefix, lvl, msg)
}

func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Logger) Tracef(format string, args ...any) { l.logf(LevelTrace, format, args...) }
