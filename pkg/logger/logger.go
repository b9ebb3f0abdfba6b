// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logger is the formatted logging front end: tag + level + printf
// style expansion, written one line at a time to a Sink.
package logger

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Level values match the android log priorities.
type Level int32

const (
	LevelVerbose Level = 2
	LevelDebug   Level = 3
	LevelInfo    Level = 4
	LevelWarn    Level = 5
	LevelError   Level = 6
)

const formatFailTag = "LOG"

func (l Level) String() string {
	switch l {
	case LevelVerbose:
		return "verbose"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return "info"
}

// Char is the single letter logcat uses for the level.
func (l Level) Char() byte {
	switch l {
	case LevelVerbose:
		return 'V'
	case LevelDebug:
		return 'D'
	case LevelWarn:
		return 'W'
	case LevelError:
		return 'E'
	}
	return 'I'
}

// ParseLevel accepts names ("debug", "warning") or logcat letters ("D").
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verbose", "trace", "v":
		return LevelVerbose, true
	case "debug", "d":
		return LevelDebug, true
	case "info", "i", "":
		return LevelInfo, true
	case "warn", "warning", "w":
		return LevelWarn, true
	case "error", "e", "fatal", "f", "assert", "a":
		return LevelError, true
	}
	return LevelInfo, false
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	level, ok := ParseLevel(string(text))
	if !ok {
		return fmt.Errorf("unknown log level %q", text)
	}
	*l = level
	return nil
}

// Sink writes one line at a given level to a log.
type Sink interface {
	WriteLine(level Level, tag string, msg string)
}

type FuncSink func(level Level, tag string, msg string)

func (f FuncSink) WriteLine(level Level, tag string, msg string) {
	f(level, tag, msg)
}

type Config struct {
	// Level is the root level, lines below it are dropped. 0 => LevelInfo
	Level Level
	// Locale is a BCP 47 tag used for expansion. "" => English
	Locale string
	// Sink nil => logrus sink on stderr
	Sink Sink
}

// Logger holds its own root level, so independent instances do not interfere.
type Logger struct {
	rootLevel atomic.Int32
	sink      Sink
	expander  *Expander
}

func MakeLogger(cfg Config) *Logger {
	l := &Logger{
		sink:     cfg.Sink,
		expander: MakeExpanderForLocale(cfg.Locale),
	}
	if l.sink == nil {
		l.sink = MakeLogrusSink(nil)
	}
	level := cfg.Level
	if level == 0 {
		level = LevelInfo
	}
	l.rootLevel.Store(int32(level))
	return l
}

// MakeDiscardLogger drops every line.
func MakeDiscardLogger() *Logger {
	l := MakeLogger(Config{Sink: FuncSink(func(Level, string, string) {})})
	l.SetRootLevel(LevelError + 1)
	return l
}

func (l *Logger) SetRootLevel(level Level) {
	l.rootLevel.Store(int32(level))
}

func (l *Logger) RootLevel() Level {
	return Level(l.rootLevel.Load())
}

func (l *Logger) IsLoggable(level Level) bool {
	return level >= l.RootLevel()
}

func (l *Logger) Expand(format string, args ...any) string {
	return l.expander.Expand(format, args...)
}

func (l *Logger) Tag(tag string) *TaggedLogger {
	return &TaggedLogger{tag: tag, logger: l}
}

func (l *Logger) logAs(level Level, tag string, msg string) {
	if !l.IsLoggable(level) {
		return
	}
	l.sink.WriteLine(level, tag, msg)
}

func (l *Logger) logf(level Level, tag string, format string, args []any) {
	if !l.IsLoggable(level) {
		return
	}
	msg, ok := l.expander.TryExpand(format, args...)
	if !ok {
		l.logAs(LevelDebug, formatFailTag, "Log format failed: "+format)
	}
	l.logAs(level, tag, msg)
}

func (l *Logger) logErr(level Level, tag string, err error, msg string) {
	if !l.IsLoggable(level) {
		return
	}
	l.logAs(level, tag, FormatError(err, msg))
}

func (l *Logger) Verbose(tag string, format string, args ...any) {
	l.logf(LevelVerbose, tag, format, args)
}

func (l *Logger) Debug(tag string, format string, args ...any) {
	l.logf(LevelDebug, tag, format, args)
}

func (l *Logger) Info(tag string, format string, args ...any) {
	l.logf(LevelInfo, tag, format, args)
}

func (l *Logger) Warn(tag string, format string, args ...any) {
	l.logf(LevelWarn, tag, format, args)
}

func (l *Logger) Error(tag string, format string, args ...any) {
	l.logf(LevelError, tag, format, args)
}

func (l *Logger) DebugErr(tag string, err error, msg string) {
	l.logErr(LevelDebug, tag, err, msg)
}

func (l *Logger) WarnErr(tag string, err error, msg string) {
	l.logErr(LevelWarn, tag, err, msg)
}

func (l *Logger) ErrorErr(tag string, err error, msg string) {
	l.logErr(LevelError, tag, err, msg)
}

// TaggedLogger fixes the tag so callers set it once.
type TaggedLogger struct {
	tag    string
	logger *Logger
}

func (tl *TaggedLogger) GetTag() string {
	return tl.tag
}

func (tl *TaggedLogger) Logger() *Logger {
	return tl.logger
}

func (tl *TaggedLogger) Verbose(format string, args ...any) {
	tl.logger.logf(LevelVerbose, tl.tag, format, args)
}

func (tl *TaggedLogger) Debug(format string, args ...any) {
	tl.logger.logf(LevelDebug, tl.tag, format, args)
}

func (tl *TaggedLogger) Info(format string, args ...any) {
	tl.logger.logf(LevelInfo, tl.tag, format, args)
}

func (tl *TaggedLogger) Warn(format string, args ...any) {
	tl.logger.logf(LevelWarn, tl.tag, format, args)
}

func (tl *TaggedLogger) Error(format string, args ...any) {
	tl.logger.logf(LevelError, tl.tag, format, args)
}

func (tl *TaggedLogger) DebugErr(err error, msg string) {
	tl.logger.logErr(LevelDebug, tl.tag, err, msg)
}

func (tl *TaggedLogger) WarnErr(err error, msg string) {
	tl.logger.logErr(LevelWarn, tl.tag, err, msg)
}

func (tl *TaggedLogger) ErrorErr(err error, msg string) {
	tl.logger.logErr(LevelError, tl.tag, err, msg)
}
