// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package catcher

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/outrigdev/logcatcher/pkg/ds"
	"github.com/outrigdev/logcatcher/pkg/linesource"
	"github.com/outrigdev/logcatcher/pkg/logger"
	"github.com/outrigdev/logcatcher/pkg/panichandler"
	"github.com/outrigdev/logcatcher/pkg/utilfn"
	"github.com/sourcegraph/conc"
)

const readBufSize = 32 * 1024

type waitResult struct {
	code int
	err  error
}

func recoverTask(where string, recoverVal any, log *logger.TaggedLogger) error {
	return panichandler.PanicHandler(where, recoverVal, log.Logger())
}

// runReader runs one capture session to its terminal event.
// Lines are read on a separate goroutine while this one supervises the process.
func (c *Catcher) runReader(sess *session) {
	var terminalOnce sync.Once
	finish := func(ev ds.Event) {
		terminalOnce.Do(func() {
			sess.listener.OnEvent(ev)
		})
	}
	defer c.endSession(sess)
	defer func() {
		if err := recoverTask("catcher:reader", recover(), c.log); err != nil {
			c.metrics.sessionFailed(ErrKindPanic)
			finish(ds.ErrorEvent(sess.id, err))
		}
	}()

	argv := c.command.CaptureArgs(c.scope.Pid(), sess.bounded)
	c.log.Debug("session %s launching %v", sess.id, argv)
	proc, err := c.launcher.Launch(c.ctx, argv)
	if err != nil {
		c.log.DebugErr(err, "launch failed")
		c.metrics.sessionFailed(ErrKindLaunch)
		finish(ds.ErrorEvent(sess.id, err))
		return
	}
	output := proc.Output()
	defer output.Close()
	sess.listener.OnEvent(ds.StartedEvent(sess.id))

	var readErr error
	var wg conc.WaitGroup
	wg.Go(func() {
		readErr = c.readLines(sess, proc, output)
	})

	waitCh := make(chan waitResult, 1)
	go func() {
		code, err := proc.Wait()
		waitCh <- waitResult{code: code, err: err}
	}()

	var res waitResult
	interrupted := false
	stopCh := sess.stop.Done()
	doneCh := c.ctx.Done()
waitLoop:
	for {
		select {
		case res = <-waitCh:
			break waitLoop
		case <-stopCh:
			// the stream may be idle, so the reader won't see the stop on its own
			stopCh = nil
			c.terminate(sess, proc)
		case <-doneCh:
			doneCh = nil
			interrupted = true
			c.terminate(sess, proc)
		}
	}
	stopped := sess.stop.IsSet()
	if stopped || interrupted {
		// unblock a reader stuck on output held open by a stray child
		output.Close()
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		readErr = recovered.AsError()
	}
	c.log.Debug("session %s exited code=%d err=%v stopped=%v interrupted=%v", sess.id, res.code, res.err, stopped, interrupted)

	switch {
	case stopped || interrupted:
		finish(ds.FinishedEvent(sess.id))
	case readErr != nil:
		c.metrics.sessionFailed(ErrKindStream)
		finish(ds.ErrorEvent(sess.id, fmt.Errorf("reading log output: %w", readErr)))
	default:
		finish(ds.FinishedEvent(sess.id))
	}
}

func (c *Catcher) terminate(sess *session, proc linesource.Process) {
	if err := proc.Terminate(); err != nil {
		c.log.DebugErr(err, "terminating line source for session "+sess.id)
	}
}

// readLines delivers every line until EOF, a read error, or a stop observed after a line.
// A line read before the stop is seen is always delivered.
func (c *Catcher) readLines(sess *session, proc linesource.Process, r io.Reader) error {
	lb := utilfn.MakeLineBuf()
	buf := make([]byte, readBufSize)
	deliver := func(line string) bool {
		sess.listener.OnEvent(ds.LineEvent(sess.id, line))
		c.metrics.lineDelivered()
		if sess.stop.IsSet() {
			c.terminate(sess, proc)
			return false
		}
		return true
	}
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, line := range lb.ProcessBuf(buf[:n]) {
				if !deliver(line) {
					return nil
				}
			}
		}
		if errors.Is(err, io.EOF) {
			if partial := lb.GetPartialAndReset(); partial != "" {
				deliver(partial)
			}
			return nil
		}
		if err != nil {
			if sess.stop.IsSet() || c.ctx.Err() != nil {
				return nil
			}
			// nobody drains the output any more
			c.terminate(sess, proc)
			return err
		}
	}
}
