// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package catcher is the capture engine: it coordinates mutually exclusive
// "clear" and "capture" operations against the shared log buffer and
// streams line source output to listeners.
package catcher

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/outrigdev/logcatcher/pkg/base"
	"github.com/outrigdev/logcatcher/pkg/dispatch"
	"github.com/outrigdev/logcatcher/pkg/ds"
	"github.com/outrigdev/logcatcher/pkg/linesource"
	"github.com/outrigdev/logcatcher/pkg/logger"
	"github.com/sourcegraph/conc/pool"
)

type CatcherConfig struct {
	Capture ds.CaptureConfig
	// Command zero value => linesource.DefaultCommand()
	Command linesource.Command
	// Launcher nil => linesource.ExecLauncher
	Launcher linesource.Launcher
	// Workers is the task pool size. <= 0 => base.DefaultWorkers
	Workers  int
	LockFile string
	// Logger receives the engine's diagnostic trace. nil => logrus at Info
	Logger     *logger.Logger
	Metrics    *Metrics
	ClearHooks *ClearHooks
}

type session struct {
	id       string
	bounded  bool
	stop     *StopToken
	listener ds.Listener
}

// Catcher owns the capturing/clearing state for one log buffer view.
// At most one capture session and one clear run at a time, and never both.
type Catcher struct {
	lock      sync.Mutex
	cond      *sync.Cond
	clearing  bool
	capturing bool
	closed    bool
	session   *session

	scope    ds.Scope
	command  linesource.Command
	launcher linesource.Launcher
	eraser   *Eraser
	hooks    *ClearHooks
	log      *logger.TaggedLogger
	metrics  *Metrics

	dispatch      ds.Executor
	ownedDispatch *dispatch.SerialExecutor

	schedLock  sync.RWMutex
	poolClosed bool
	pool       *pool.Pool

	ctx      context.Context
	cancelFn context.CancelFunc
}

func MakeCatcher(cfg CatcherConfig) *Catcher {
	if cfg.Command.Exec == "" {
		cfg.Command = linesource.DefaultCommand()
	}
	if cfg.Launcher == nil {
		cfg.Launcher = &linesource.ExecLauncher{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = base.DefaultWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.MakeLogger(logger.Config{})
	}
	c := &Catcher{
		scope:    cfg.Capture.Scope,
		command:  cfg.Command,
		launcher: cfg.Launcher,
		hooks:    cfg.ClearHooks,
		log:      cfg.Logger.Tag(base.CatcherTraceTag),
		metrics:  cfg.Metrics,
		dispatch: cfg.Capture.Dispatch,
		pool:     pool.New().WithMaxGoroutines(cfg.Workers),
	}
	c.cond = sync.NewCond(&c.lock)
	c.ctx, c.cancelFn = context.WithCancel(context.Background())
	c.eraser = &Eraser{
		Command:  cfg.Command,
		Launcher: cfg.Launcher,
		LockFile: cfg.LockFile,
		Log:      c.log,
		Metrics:  cfg.Metrics,
	}
	if c.dispatch == nil {
		c.ownedDispatch = dispatch.MakeSerialExecutor(cfg.Logger)
		c.dispatch = c.ownedDispatch
	}
	if cfg.Capture.ClearBeforeStart {
		// cannot fail on a fresh catcher
		c.Clear(context.Background())
	}
	return c
}

func (c *Catcher) Scope() ds.Scope {
	return c.scope
}

func (c *Catcher) IsCapturing() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.capturing
}

func (c *Catcher) IsClearing() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.clearing
}

// waitWhile_nolock waits on the state condition until busy() is false or ctx is done.
// Must hold c.lock.
func (c *Catcher) waitWhile_nolock(ctx context.Context, busy func() bool) error {
	if !busy() {
		return nil
	}
	stop := context.AfterFunc(ctx, func() {
		c.lock.Lock()
		defer c.lock.Unlock()
		c.cond.Broadcast()
	})
	defer stop()
	for busy() {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.cond.Wait()
	}
	return nil
}

// schedule runs fn on the task pool. Returns false once the catcher is closed.
func (c *Catcher) schedule(fn func()) bool {
	c.schedLock.RLock()
	defer c.schedLock.RUnlock()
	if c.poolClosed {
		return false
	}
	c.pool.Go(fn)
	return true
}

// Dump delivers the existing buffer contents to l and finishes.
// Blocks only while a clear is in progress.
func (c *Catcher) Dump(ctx context.Context, l ds.Listener) error {
	_, err := c.startSession(ctx, l, true)
	return err
}

// DumpSession is Dump but also returns the new session's id.
func (c *Catcher) DumpSession(ctx context.Context, l ds.Listener) (string, error) {
	return c.startSession(ctx, l, true)
}

// StartCapture streams the buffer to l until EndCapture or Close.
// Blocks only while a clear is in progress.
func (c *Catcher) StartCapture(ctx context.Context, l ds.Listener) error {
	_, err := c.startSession(ctx, l, false)
	return err
}

// StartCaptureSession is StartCapture but also returns the new session's id.
func (c *Catcher) StartCaptureSession(ctx context.Context, l ds.Listener) (string, error) {
	return c.startSession(ctx, l, false)
}

func (c *Catcher) startSession(ctx context.Context, l ds.Listener, bounded bool) (string, error) {
	if l == nil {
		l = ds.ListenerFunc(func(ds.Event) {})
	}
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return "", ErrClosed
	}
	if c.capturing {
		c.lock.Unlock()
		return "", ErrCaptureInProgress
	}
	err := c.waitWhile_nolock(ctx, func() bool { return c.clearing && !c.closed })
	if err == nil && c.closed {
		err = ErrClosed
	}
	if err == nil && c.capturing {
		err = ErrCaptureInProgress
	}
	if err != nil {
		c.lock.Unlock()
		return "", err
	}
	sess := &session{
		id:       uuid.New().String(),
		bounded:  bounded,
		stop:     MakeStopToken(),
		listener: dispatch.MakeProxyListener(c.dispatch, l),
	}
	c.capturing = true
	c.session = sess
	c.lock.Unlock()

	mode := ModeCapture
	if bounded {
		mode = ModeDump
	}
	c.log.Debug("starting %s session %s scope=%s", mode, sess.id, c.scope)
	c.metrics.sessionStarted(mode)
	if !c.schedule(func() { c.runReader(sess) }) {
		c.endSession(sess)
		return "", ErrClosed
	}
	return sess.id, nil
}

func (c *Catcher) endSession(sess *session) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.session == sess {
		c.session = nil
	}
	c.capturing = false
	c.cond.Broadcast()
}

// EndCapture asks the active session (capture or dump) to stop.
// The session finishes asynchronously with a Finished event.
func (c *Catcher) EndCapture() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.capturing || c.session == nil {
		return ErrNotCapturing
	}
	c.stopSession_nolock()
	return nil
}

// EndSession is EndCapture limited to the session with the given id.
// It returns ErrNotCapturing once that session is no longer the active one.
func (c *Catcher) EndSession(sessionId string) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.capturing || c.session == nil || c.session.id != sessionId {
		return ErrNotCapturing
	}
	c.stopSession_nolock()
	return nil
}

func (c *Catcher) stopSession_nolock() {
	if c.session.stop.Set() {
		c.log.Debug("stop requested for session %s", c.session.id)
	}
}

// Clear schedules a best-effort clear of the log buffer. Failures reach only the
// configured ClearHooks. Blocks only while a capture is in progress.
func (c *Catcher) Clear(ctx context.Context) error {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return ErrClosed
	}
	if c.clearing {
		c.lock.Unlock()
		return ErrClearInProgress
	}
	err := c.waitWhile_nolock(ctx, func() bool { return c.capturing && !c.closed })
	if err == nil && c.closed {
		err = ErrClosed
	}
	if err == nil && c.clearing {
		err = ErrClearInProgress
	}
	if err != nil {
		c.lock.Unlock()
		return err
	}
	c.clearing = true
	c.lock.Unlock()

	if !c.schedule(c.runEraser) {
		c.endClear()
		return ErrClosed
	}
	return nil
}

func (c *Catcher) runEraser() {
	defer c.endClear()
	defer func() {
		if err := recoverTask("catcher:eraser", recover(), c.log); err != nil {
			c.metrics.clearDone(ClearResultError)
		}
	}()
	c.eraser.Run(c.ctx, c.hooks)
}

func (c *Catcher) endClear() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.clearing = false
	c.cond.Broadcast()
}

// WaitForClearEnd blocks until no clear is in progress or ctx is done.
func (c *Catcher) WaitForClearEnd(ctx context.Context) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.waitWhile_nolock(ctx, func() bool { return c.clearing })
}

// WaitForCaptureEnd blocks until no capture is in progress or ctx is done.
func (c *Catcher) WaitForCaptureEnd(ctx context.Context) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.waitWhile_nolock(ctx, func() bool { return c.capturing })
}

// WaitForSessionEnd blocks until the session with the given id is no longer active or ctx is done.
// Its terminal event may still be queued for delivery.
func (c *Catcher) WaitForSessionEnd(ctx context.Context, sessionId string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.waitWhile_nolock(ctx, func() bool { return c.session != nil && c.session.id == sessionId })
}

// Close interrupts running sessions (they finish with Finished), kills any clear in
// progress, and waits for queued listener events to be delivered. Later calls return ErrClosed.
func (c *Catcher) Close() error {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return nil
	}
	c.closed = true
	c.cond.Broadcast()
	c.lock.Unlock()

	c.log.Debug("closing catcher scope=%s", c.scope)
	c.cancelFn()
	c.schedLock.Lock()
	c.poolClosed = true
	c.schedLock.Unlock()
	c.pool.Wait()
	if c.ownedDispatch != nil {
		c.ownedDispatch.Close()
	}
	return nil
}
