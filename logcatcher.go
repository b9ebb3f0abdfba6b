// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logcatcher captures, dumps, and clears the shared device log buffer.
//
//	c := logcatcher.New(false, true)
//	defer c.Close()
//	c.Dump(ctx, logcatcher.ListenerCallbacks{OnLine: func(line string) { fmt.Println(line) }})
package logcatcher

import (
	"context"
	"sync"

	"github.com/outrigdev/logcatcher/pkg/catcher"
	"github.com/outrigdev/logcatcher/pkg/ds"
	"github.com/outrigdev/logcatcher/pkg/logger"
)

type (
	Catcher           = catcher.Catcher
	CatcherConfig     = catcher.CatcherConfig
	ClearHooks        = catcher.ClearHooks
	CaptureConfig     = ds.CaptureConfig
	Scope             = ds.Scope
	Executor          = ds.Executor
	Event             = ds.Event
	EventType         = ds.EventType
	Listener          = ds.Listener
	ListenerFunc      = ds.ListenerFunc
	ListenerCallbacks = ds.ListenerCallbacks
	Logger            = logger.Logger
	TaggedLogger      = logger.TaggedLogger
	LogConfig         = logger.Config
	Level             = logger.Level
)

const (
	EventStarted  = ds.EventStarted
	EventLine     = ds.EventLine
	EventFinished = ds.EventFinished
	EventError    = ds.EventError
)

const (
	LevelVerbose = logger.LevelVerbose
	LevelDebug   = logger.LevelDebug
	LevelInfo    = logger.LevelInfo
	LevelWarn    = logger.LevelWarn
	LevelError   = logger.LevelError
)

var (
	ErrIllegalState      = catcher.ErrIllegalState
	ErrCaptureInProgress = catcher.ErrCaptureInProgress
	ErrNotCapturing      = catcher.ErrNotCapturing
	ErrClearInProgress   = catcher.ErrClearInProgress
	ErrClosed            = catcher.ErrClosed
)

func GlobalScope() Scope {
	return ds.GlobalScope()
}

func SelfScope() Scope {
	return ds.SelfScope()
}

func PidScope(pid int) Scope {
	return ds.PidScope(pid)
}

// New runs logcat locally. clearFirst clears the buffer right away, self limits
// capture to this process.
func New(clearFirst bool, self bool) *Catcher {
	scope := GlobalScope()
	if self {
		scope = SelfScope()
	}
	return NewWithConfig(CatcherConfig{
		Capture: CaptureConfig{ClearBeforeStart: clearFirst, Scope: scope},
	})
}

// NewDefault neither clears nor filters.
func NewDefault() *Catcher {
	return New(false, false)
}

func NewWithConfig(cfg CatcherConfig) *Catcher {
	return catcher.MakeCatcher(cfg)
}

// ClearLog clears the buffer without a Catcher and blocks until done.
func ClearLog(ctx context.Context, hooks *ClearHooks) {
	catcher.ClearLog(ctx, hooks)
}

func NewLogger(cfg LogConfig) *Logger {
	return logger.MakeLogger(cfg)
}

var defaultLogger = sync.OnceValue(func() *Logger {
	return logger.MakeLogger(logger.Config{})
})

// DefaultLogger is a logrus-backed logger at Info, created on first use.
func DefaultLogger() *Logger {
	return defaultLogger()
}

// Tag returns a tagged view of the default logger.
func Tag(tag string) *TaggedLogger {
	return DefaultLogger().Tag(tag)
}

func Expand(format string, args ...any) string {
	return logger.Expand(format, args...)
}

func FormatError(err error, msg string) string {
	return logger.FormatError(err, msg)
}
