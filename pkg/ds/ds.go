// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package ds

import (
	"fmt"
	"os"
	"strconv"

	"github.com/outrigdev/logcatcher/pkg/base"
)

// Scope selects which lines of the shared log buffer a capture sees.
// The zero value is the unfiltered global scope.
type Scope struct {
	pid  int // 0 => global
	self bool
}

func GlobalScope() Scope {
	return Scope{}
}

// SelfScope filters by the calling process id, resolved once here.
func SelfScope() Scope {
	return Scope{pid: os.Getpid(), self: true}
}

// PidScope filters by an arbitrary program id. Non-positive ids mean global.
func PidScope(pid int) Scope {
	if pid <= 0 {
		return GlobalScope()
	}
	return Scope{pid: pid}
}

func (s Scope) IsGlobal() bool {
	return s.pid <= 0
}

func (s Scope) IsSelf() bool {
	return s.self
}

// Pid returns the filter pid, or base.PidNone for the global scope.
func (s Scope) Pid() int {
	if s.IsGlobal() {
		return base.PidNone
	}
	return s.pid
}

func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	if s.self {
		return "self:" + strconv.Itoa(s.pid)
	}
	return "pid:" + strconv.Itoa(s.pid)
}

// Executor runs a function on some execution context.
// Implementations must run functions in the order Execute was called.
type Executor interface {
	Execute(fn func())
}

// CaptureConfig is immutable after the catcher is built.
type CaptureConfig struct {
	ClearBeforeStart bool
	Scope            Scope
	// Dispatch is where listener callbacks run. nil => a private serial executor.
	Dispatch Executor
}

type EventType int

const (
	EventStarted EventType = iota
	EventLine
	EventFinished
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventLine:
		return "line"
	case EventFinished:
		return "finished"
	case EventError:
		return "error"
	}
	return fmt.Sprintf("eventtype(%d)", int(t))
}

// Event is one lifecycle event of a capture session. Per session the order is
// Started? Line* (Finished|Error), with exactly one terminal event.
type Event struct {
	Type      EventType
	SessionId string
	Line      string // EventLine only
	Err       error  // EventError only
}

func (e Event) IsTerminal() bool {
	return e.Type == EventFinished || e.Type == EventError
}

func StartedEvent(sessionId string) Event {
	return Event{Type: EventStarted, SessionId: sessionId}
}

func LineEvent(sessionId string, line string) Event {
	return Event{Type: EventLine, SessionId: sessionId, Line: line}
}

func FinishedEvent(sessionId string) Event {
	return Event{Type: EventFinished, SessionId: sessionId}
}

func ErrorEvent(sessionId string, err error) Event {
	return Event{Type: EventError, SessionId: sessionId, Err: err}
}

// Listener receives capture session events. A source line longer than 64 KiB
// arrives as several consecutive EventLine events of at most 64 KiB each.
type Listener interface {
	OnEvent(ev Event)
}

type ListenerFunc func(ev Event)

func (f ListenerFunc) OnEvent(ev Event) {
	f(ev)
}

// ListenerCallbacks adapts the four-callback listener style. nil callbacks are skipped.
type ListenerCallbacks struct {
	OnLine     func(line string)
	OnStart    func()
	OnFinished func()
	OnError    func(err error)
}

func (lc ListenerCallbacks) OnEvent(ev Event) {
	switch ev.Type {
	case EventStarted:
		if lc.OnStart != nil {
			lc.OnStart()
		}
	case EventLine:
		if lc.OnLine != nil {
			lc.OnLine(ev.Line)
		}
	case EventFinished:
		if lc.OnFinished != nil {
			lc.OnFinished()
		}
	case EventError:
		if lc.OnError != nil {
			lc.OnError(ev.Err)
		}
	}
}
