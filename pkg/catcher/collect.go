// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package catcher

import (
	"context"

	"github.com/outrigdev/logcatcher/pkg/ds"
	"github.com/outrigdev/logcatcher/pkg/utilds"
)

type DumpResult struct {
	SessionId string   `json:"sessionid"`
	Lines     []string `json:"lines"`
	Dropped   int      `json:"dropped,omitempty"`
	// Err is the session's terminal error, if it ended with one
	Err error `json:"-"`
}

// DumpLines runs a Dump and collects its lines, keeping only the last tail lines
// (tail <= 0 keeps all). It returns once the session is no longer active.
// If ctx is done first the dump is stopped and the lines read so far are
// returned along with ctx.Err().
func DumpLines(ctx context.Context, c *Catcher, tail int) (*DumpResult, error) {
	buf := utilds.MakeTailBuf[string](tail)
	rtn := &DumpResult{}
	doneCh := make(chan struct{})
	l := ds.ListenerFunc(func(ev ds.Event) {
		switch ev.Type {
		case ds.EventLine:
			buf.Write(ev.Line)
		case ds.EventError:
			rtn.Err = ev.Err
		}
		if ev.IsTerminal() {
			rtn.SessionId = ev.SessionId
			close(doneCh)
		}
	})
	sessionId, err := c.DumpSession(ctx, l)
	if err != nil {
		return nil, err
	}
	select {
	case <-doneCh:
	case <-ctx.Done():
		err = ctx.Err()
		c.EndSession(sessionId)
		<-doneCh
	}
	c.WaitForSessionEnd(ctx, sessionId)
	rtn.Lines = buf.Snapshot()
	rtn.Dropped = buf.Dropped()
	return rtn, err
}
