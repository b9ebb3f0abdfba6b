// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package catcher

import (
	"context"
	"fmt"
	"io"

	"github.com/alexflint/go-filemutex"
	"github.com/outrigdev/logcatcher/pkg/base"
	"github.com/outrigdev/logcatcher/pkg/linesource"
	"github.com/outrigdev/logcatcher/pkg/logger"
)

// ClearHooks observe the outcome of a clear. Both are optional.
// OnComplete gets the line source exit code (non-zero included), OnError gets launch
// failures and interrupted clears.
type ClearHooks struct {
	OnComplete func(exitCode int)
	OnError    func(err error)
}

func (h *ClearHooks) complete(code int) {
	if h != nil && h.OnComplete != nil {
		h.OnComplete(code)
	}
}

func (h *ClearHooks) fail(err error) {
	if h != nil && h.OnError != nil {
		h.OnError(err)
	}
}

// Eraser clears the shared log buffer. Failures never surface as return values.
type Eraser struct {
	Command  linesource.Command
	Launcher linesource.Launcher
	// LockFile, if set, is held across the clear so cooperating processes don't clear concurrently
	LockFile string
	Log      *logger.TaggedLogger
	Metrics  *Metrics
}

// ClearLog clears the log buffer with the default line source and blocks until it is done.
// There is no in-progress guard, concurrent calls each run their own clear.
func ClearLog(ctx context.Context, hooks *ClearHooks) {
	e := &Eraser{
		Command:  linesource.DefaultCommand(),
		Launcher: &linesource.ExecLauncher{},
		Log:      logger.MakeDiscardLogger().Tag(base.CatcherTraceTag),
	}
	e.Run(ctx, hooks)
}

func (e *Eraser) Run(ctx context.Context, hooks *ClearHooks) {
	if e.LockFile != "" {
		fm, err := filemutex.New(e.LockFile)
		if err != nil {
			e.failed(hooks, fmt.Errorf("opening clear lock %q: %w", e.LockFile, err))
			return
		}
		defer fm.Close()
		if err := fm.Lock(); err != nil {
			e.failed(hooks, fmt.Errorf("locking %q: %w", e.LockFile, err))
			return
		}
		defer fm.Unlock()
	}
	argv := e.Command.ClearArgs()
	e.Log.Debug("clearing log: %v", argv)
	proc, err := e.Launcher.Launch(ctx, argv)
	if err != nil {
		e.failed(hooks, err)
		return
	}
	output := proc.Output()
	io.Copy(io.Discard, output)
	output.Close()
	code, err := proc.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		e.failed(hooks, fmt.Errorf("clear interrupted: %w", err))
		return
	}
	e.Log.Debug("clear finished with exit code %d", code)
	if code == 0 {
		e.Metrics.clearDone(ClearResultOk)
	} else {
		e.Metrics.clearDone(ClearResultNonZero)
	}
	hooks.complete(code)
}

func (e *Eraser) failed(hooks *ClearHooks, err error) {
	e.Log.DebugErr(err, "clear failed")
	e.Metrics.clearDone(ClearResultError)
	hooks.fail(err)
}
