// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package catcher

import (
	"context"
	"errors"
	"os"
	"reflect"
	"runtime"
	"testing"
	"time"

	"github.com/outrigdev/logcatcher/pkg/ds"
	"github.com/outrigdev/logcatcher/pkg/linesource"
	"github.com/outrigdev/logcatcher/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

const testTimeout = 5 * time.Second

type eventRecorder struct {
	ch chan ds.Event
}

func makeRecorder() *eventRecorder {
	return &eventRecorder{ch: make(chan ds.Event, 1024)}
}

func (r *eventRecorder) OnEvent(ev ds.Event) {
	r.ch <- ev
}

func (r *eventRecorder) next(t *testing.T) ds.Event {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for an event")
	}
	return ds.Event{}
}

func (r *eventRecorder) untilTerminal(t *testing.T) []ds.Event {
	t.Helper()
	var rtn []ds.Event
	for {
		ev := r.next(t)
		rtn = append(rtn, ev)
		if ev.IsTerminal() {
			return rtn
		}
	}
}

func (r *eventRecorder) expectNone(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case ev := <-r.ch:
		t.Fatalf("unexpected event %v", ev.Type)
	case <-time.After(d):
	}
}

func eventTypes(events []ds.Event) []ds.EventType {
	rtn := make([]ds.EventType, len(events))
	for i, ev := range events {
		rtn[i] = ev.Type
	}
	return rtn
}

func eventLines(events []ds.Event) []string {
	var rtn []string
	for _, ev := range events {
		if ev.Type == ds.EventLine {
			rtn = append(rtn, ev.Line)
		}
	}
	return rtn
}

func newTestCatcher(t *testing.T, cfg CatcherConfig) *Catcher {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = logger.MakeDiscardLogger()
	}
	c := MakeCatcher(cfg)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDumpDeliversLinesInOrder(t *testing.T) {
	fb := makeFakeLogBuffer()
	fb.Append(0, "one")
	fb.Append(0, "two")
	fb.Append(0, "three")
	c := newTestCatcher(t, CatcherConfig{Launcher: fb})

	rec := makeRecorder()
	if err := c.Dump(context.Background(), rec); err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	events := rec.untilTerminal(t)
	want := []ds.EventType{ds.EventStarted, ds.EventLine, ds.EventLine, ds.EventLine, ds.EventFinished}
	if !reflect.DeepEqual(eventTypes(events), want) {
		t.Fatalf("event types = %v, want %v", eventTypes(events), want)
	}
	if got := eventLines(events); !reflect.DeepEqual(got, []string{"one", "two", "three"}) {
		t.Errorf("lines = %q", got)
	}
	c.WaitForCaptureEnd(context.Background())
	if c.IsCapturing() {
		t.Error("IsCapturing() should be false after the dump ends")
	}
	if got := fb.Launches(); !reflect.DeepEqual(got, []string{"logcat -d"}) {
		t.Errorf("launches = %q", got)
	}
}

func TestEventsCarrySessionId(t *testing.T) {
	fb := makeFakeLogBuffer()
	fb.Append(0, "x")
	c := newTestCatcher(t, CatcherConfig{Launcher: fb})

	var ids []string
	for i := 0; i < 2; i++ {
		rec := makeRecorder()
		if err := c.Dump(context.Background(), rec); err != nil {
			t.Fatalf("Dump() error: %v", err)
		}
		events := rec.untilTerminal(t)
		for _, ev := range events {
			if ev.SessionId == "" || ev.SessionId != events[0].SessionId {
				t.Errorf("event %v has session id %q, want %q", ev.Type, ev.SessionId, events[0].SessionId)
			}
		}
		ids = append(ids, events[0].SessionId)
		c.WaitForCaptureEnd(context.Background())
	}
	if ids[0] == ids[1] {
		t.Error("separate sessions should have different ids")
	}
}

func TestCaptureFollowsNewLines(t *testing.T) {
	fb := makeFakeLogBuffer()
	fb.Append(0, "existing")
	c := newTestCatcher(t, CatcherConfig{Launcher: fb})

	rec := makeRecorder()
	if err := c.StartCapture(context.Background(), rec); err != nil {
		t.Fatalf("StartCapture() error: %v", err)
	}
	if ev := rec.next(t); ev.Type != ds.EventStarted {
		t.Fatalf("first event = %v, want started", ev.Type)
	}
	if ev := rec.next(t); ev.Type != ds.EventLine || ev.Line != "existing" {
		t.Fatalf("got %v %q, want line existing", ev.Type, ev.Line)
	}
	fb.Append(0, "fresh")
	if ev := rec.next(t); ev.Type != ds.EventLine || ev.Line != "fresh" {
		t.Fatalf("got %v %q, want line fresh", ev.Type, ev.Line)
	}
	if !c.IsCapturing() {
		t.Error("IsCapturing() should be true during a capture")
	}
	if err := c.EndCapture(); err != nil {
		t.Fatalf("EndCapture() error: %v", err)
	}
	events := rec.untilTerminal(t)
	if last := events[len(events)-1]; last.Type != ds.EventFinished {
		t.Errorf("terminal event = %v, want finished", last.Type)
	}
	c.WaitForCaptureEnd(context.Background())
	if got := fb.Launches(); !reflect.DeepEqual(got, []string{"logcat"}) {
		t.Errorf("launches = %q", got)
	}
}

func TestEndCaptureOnIdleStream(t *testing.T) {
	fb := makeFakeLogBuffer()
	c := newTestCatcher(t, CatcherConfig{Launcher: fb})

	rec := makeRecorder()
	if err := c.StartCapture(context.Background(), rec); err != nil {
		t.Fatalf("StartCapture() error: %v", err)
	}
	if ev := rec.next(t); ev.Type != ds.EventStarted {
		t.Fatalf("first event = %v, want started", ev.Type)
	}
	if err := c.EndCapture(); err != nil {
		t.Fatalf("EndCapture() error: %v", err)
	}
	if ev := rec.next(t); ev.Type != ds.EventFinished {
		t.Errorf("event after stop = %v, want finished", ev.Type)
	}
	rec.expectNone(t, 50*time.Millisecond)
}

func TestEndCaptureWithoutCapture(t *testing.T) {
	c := newTestCatcher(t, CatcherConfig{Launcher: makeFakeLogBuffer()})
	err := c.EndCapture()
	if !errors.Is(err, ErrNotCapturing) || !errors.Is(err, ErrIllegalState) {
		t.Errorf("EndCapture() = %v, want ErrNotCapturing", err)
	}
}

func TestStaleEndSessionLeavesNewerSession(t *testing.T) {
	fb := makeFakeLogBuffer()
	c := newTestCatcher(t, CatcherConfig{Launcher: fb})

	first := makeRecorder()
	firstId, err := c.StartCaptureSession(context.Background(), first)
	if err != nil {
		t.Fatalf("StartCaptureSession() error: %v", err)
	}
	if err := c.EndSession(firstId); err != nil {
		t.Fatalf("EndSession(first) error: %v", err)
	}
	first.untilTerminal(t)
	c.WaitForSessionEnd(context.Background(), firstId)

	second := makeRecorder()
	secondId, err := c.StartCaptureSession(context.Background(), second)
	if err != nil {
		t.Fatalf("StartCaptureSession() error: %v", err)
	}
	if secondId == firstId {
		t.Fatalf("session ids should differ, both %q", firstId)
	}
	if ev := second.next(t); ev.Type != ds.EventStarted {
		t.Fatalf("first event = %v, want started", ev.Type)
	}

	err = c.EndSession(firstId)
	if !errors.Is(err, ErrNotCapturing) {
		t.Errorf("EndSession(stale) = %v, want ErrNotCapturing", err)
	}
	second.expectNone(t, 50*time.Millisecond)
	if !c.IsCapturing() {
		t.Fatal("newer session should still be capturing")
	}

	fb.Append(0, "after stale end")
	if ev := second.next(t); ev.Type != ds.EventLine || ev.Line != "after stale end" {
		t.Errorf("event = %v %q, want the appended line", ev.Type, ev.Line)
	}
	if err := c.EndSession(secondId); err != nil {
		t.Fatalf("EndSession(second) error: %v", err)
	}
	if ev := second.next(t); ev.Type != ds.EventFinished {
		t.Errorf("event after stop = %v, want finished", ev.Type)
	}
}

func TestSecondCaptureIsIllegal(t *testing.T) {
	fb := makeFakeLogBuffer()
	c := newTestCatcher(t, CatcherConfig{Launcher: fb})

	rec := makeRecorder()
	if err := c.StartCapture(context.Background(), rec); err != nil {
		t.Fatalf("StartCapture() error: %v", err)
	}
	rec.next(t)

	other := makeRecorder()
	if err := c.Dump(context.Background(), other); !errors.Is(err, ErrCaptureInProgress) || !errors.Is(err, ErrIllegalState) {
		t.Errorf("Dump() during capture = %v, want ErrCaptureInProgress", err)
	}
	if err := c.StartCapture(context.Background(), other); !errors.Is(err, ErrCaptureInProgress) {
		t.Errorf("StartCapture() during capture = %v, want ErrCaptureInProgress", err)
	}

	// the running session is unaffected
	fb.Append(0, "still here")
	if ev := rec.next(t); ev.Type != ds.EventLine || ev.Line != "still here" {
		t.Fatalf("got %v %q, want line", ev.Type, ev.Line)
	}
	c.EndCapture()
	rec.untilTerminal(t)
	other.expectNone(t, 20*time.Millisecond)
}

func TestClearWhileClearingIsIllegal(t *testing.T) {
	fb := makeFakeLogBuffer()
	fb.clearGate = make(chan struct{})
	c := newTestCatcher(t, CatcherConfig{Launcher: fb})

	if err := c.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if !c.IsClearing() {
		t.Error("IsClearing() should be true while the clear is gated")
	}
	if err := c.Clear(context.Background()); !errors.Is(err, ErrClearInProgress) || !errors.Is(err, ErrIllegalState) {
		t.Errorf("second Clear() = %v, want ErrClearInProgress", err)
	}
	close(fb.clearGate)
	c.WaitForClearEnd(context.Background())
	if c.IsClearing() {
		t.Error("IsClearing() should be false after the clear ends")
	}
}

func TestDumpWaitsForClear(t *testing.T) {
	fb := makeFakeLogBuffer()
	fb.Append(0, "old line")
	fb.clearGate = make(chan struct{})
	c := newTestCatcher(t, CatcherConfig{Launcher: fb})

	if err := c.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	rec := makeRecorder()
	dumpErr := make(chan error, 1)
	go func() {
		dumpErr <- c.Dump(context.Background(), rec)
	}()
	select {
	case err := <-dumpErr:
		t.Fatalf("Dump() returned %v while a clear was in progress", err)
	case <-time.After(100 * time.Millisecond):
	}
	if c.IsCapturing() {
		t.Error("capturing must not be set before the clear ends")
	}

	close(fb.clearGate)
	select {
	case err := <-dumpErr:
		if err != nil {
			t.Fatalf("Dump() error: %v", err)
		}
	case <-time.After(testTimeout):
		t.Fatal("Dump() did not return after the clear ended")
	}
	events := rec.untilTerminal(t)
	if got := eventTypes(events); !reflect.DeepEqual(got, []ds.EventType{ds.EventStarted, ds.EventFinished}) {
		t.Errorf("event types = %v, want started/finished on a cleared buffer", got)
	}
	if got := fb.Launches(); !reflect.DeepEqual(got, []string{"logcat -c", "logcat -d"}) {
		t.Errorf("launches = %q, want clear then dump", got)
	}
}

func TestClearWaitsForCapture(t *testing.T) {
	fb := makeFakeLogBuffer()
	fb.Append(0, "a")
	c := newTestCatcher(t, CatcherConfig{Launcher: fb})

	rec := makeRecorder()
	if err := c.StartCapture(context.Background(), rec); err != nil {
		t.Fatalf("StartCapture() error: %v", err)
	}
	rec.next(t)

	clearErr := make(chan error, 1)
	go func() {
		clearErr <- c.Clear(context.Background())
	}()
	select {
	case err := <-clearErr:
		t.Fatalf("Clear() returned %v during a capture", err)
	case <-time.After(100 * time.Millisecond):
	}

	c.EndCapture()
	select {
	case err := <-clearErr:
		if err != nil {
			t.Fatalf("Clear() error: %v", err)
		}
	case <-time.After(testTimeout):
		t.Fatal("Clear() did not return after the capture ended")
	}
	c.WaitForClearEnd(context.Background())
	if fb.Len() != 0 {
		t.Errorf("buffer has %d entries after clear", fb.Len())
	}
}

func TestDumpContextCancelledWhileClearing(t *testing.T) {
	fb := makeFakeLogBuffer()
	fb.clearGate = make(chan struct{})
	c := newTestCatcher(t, CatcherConfig{Launcher: fb})
	defer close(fb.clearGate)

	if err := c.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.Dump(ctx, makeRecorder()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Dump() = %v, want deadline exceeded", err)
	}
	if c.IsCapturing() {
		t.Error("a cancelled Dump must not leave capturing set")
	}
}

func TestWaitForCaptureEndHonorsContext(t *testing.T) {
	fb := makeFakeLogBuffer()
	c := newTestCatcher(t, CatcherConfig{Launcher: fb})
	rec := makeRecorder()
	if err := c.StartCapture(context.Background(), rec); err != nil {
		t.Fatalf("StartCapture() error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	c.WaitForCaptureEnd(ctx)
	if !c.IsCapturing() {
		t.Error("capture should still be running after an interrupted wait")
	}
	c.EndCapture()
	c.WaitForCaptureEnd(context.Background())
	rec.untilTerminal(t)
}

func TestLaunchFailure(t *testing.T) {
	fb := makeFakeLogBuffer()
	launchErr := errors.New("logcat not found")
	fb.launchErr = launchErr
	c := newTestCatcher(t, CatcherConfig{Launcher: fb})

	rec := makeRecorder()
	if err := c.Dump(context.Background(), rec); err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	events := rec.untilTerminal(t)
	if len(events) != 1 || events[0].Type != ds.EventError {
		t.Fatalf("events = %v, want a single error", eventTypes(events))
	}
	if !errors.Is(events[0].Err, launchErr) {
		t.Errorf("error = %v, want %v", events[0].Err, launchErr)
	}
	c.WaitForCaptureEnd(context.Background())
	if c.IsCapturing() {
		t.Error("capturing should reset after a launch failure")
	}
}

func TestStreamFailure(t *testing.T) {
	fb := makeFakeLogBuffer()
	fb.Append(0, "before failure")
	streamErr := errors.New("device went away")
	fb.streamErr = streamErr
	c := newTestCatcher(t, CatcherConfig{Launcher: fb})

	rec := makeRecorder()
	if err := c.Dump(context.Background(), rec); err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	events := rec.untilTerminal(t)
	want := []ds.EventType{ds.EventStarted, ds.EventLine, ds.EventError}
	if !reflect.DeepEqual(eventTypes(events), want) {
		t.Fatalf("event types = %v, want %v", eventTypes(events), want)
	}
	if !errors.Is(events[2].Err, streamErr) {
		t.Errorf("error = %v, want %v", events[2].Err, streamErr)
	}
}

func TestScopeIsolation(t *testing.T) {
	fb := makeFakeLogBuffer()
	for i := 0; i < 20; i++ {
		fb.Append(100, "app-a")
		fb.Append(200, "app-b")
		fb.Append(300, "other")
	}
	ca := newTestCatcher(t, CatcherConfig{Launcher: fb, Capture: ds.CaptureConfig{Scope: ds.PidScope(100)}})
	cb := newTestCatcher(t, CatcherConfig{Launcher: fb, Capture: ds.CaptureConfig{Scope: ds.PidScope(200)}})

	recA, recB := makeRecorder(), makeRecorder()
	if err := ca.Dump(context.Background(), recA); err != nil {
		t.Fatalf("Dump() a error: %v", err)
	}
	if err := cb.Dump(context.Background(), recB); err != nil {
		t.Fatalf("Dump() b error: %v", err)
	}
	linesA := eventLines(recA.untilTerminal(t))
	linesB := eventLines(recB.untilTerminal(t))
	if len(linesA) != 20 || len(linesB) != 20 {
		t.Fatalf("got %d and %d lines, want 20 each", len(linesA), len(linesB))
	}
	for _, l := range linesA {
		if l != "app-a" {
			t.Errorf("scope pid:100 received %q", l)
		}
	}
	for _, l := range linesB {
		if l != "app-b" {
			t.Errorf("scope pid:200 received %q", l)
		}
	}
}

func TestCloseInterruptsCapture(t *testing.T) {
	fb := makeFakeLogBuffer()
	c := MakeCatcher(CatcherConfig{Launcher: fb, Logger: logger.MakeDiscardLogger()})

	rec := makeRecorder()
	if err := c.StartCapture(context.Background(), rec); err != nil {
		t.Fatalf("StartCapture() error: %v", err)
	}
	rec.next(t)
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if ev := rec.next(t); ev.Type != ds.EventFinished {
		t.Errorf("event after Close = %v, want finished", ev.Type)
	}
	if err := c.Dump(context.Background(), rec); !errors.Is(err, ErrClosed) {
		t.Errorf("Dump() after Close = %v, want ErrClosed", err)
	}
	if err := c.Clear(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Clear() after Close = %v, want ErrClosed", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestClearBeforeStart(t *testing.T) {
	fb := makeFakeLogBuffer()
	fb.Append(0, "stale")
	c := newTestCatcher(t, CatcherConfig{Launcher: fb, Capture: ds.CaptureConfig{ClearBeforeStart: true}})

	rec := makeRecorder()
	if err := c.Dump(context.Background(), rec); err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	if lines := eventLines(rec.untilTerminal(t)); len(lines) != 0 {
		t.Errorf("lines = %q, want none after clear-before-start", lines)
	}
	if got := fb.Launches(); len(got) == 0 || got[0] != "logcat -c" {
		t.Errorf("launches = %q, want clear first", got)
	}
}

func TestClearHooks(t *testing.T) {
	fb := makeFakeLogBuffer()
	fb.clearCode = 3
	codes := make(chan int, 1)
	c := newTestCatcher(t, CatcherConfig{
		Launcher:   fb,
		ClearHooks: &ClearHooks{OnComplete: func(code int) { codes <- code }},
	})
	if err := c.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	select {
	case code := <-codes:
		if code != 3 {
			t.Errorf("OnComplete(%d), want 3", code)
		}
	case <-time.After(testTimeout):
		t.Fatal("OnComplete was not called")
	}
}

type failingLauncher struct {
	err error
}

func (l failingLauncher) Launch(ctx context.Context, argv []string) (linesource.Process, error) {
	return nil, l.err
}

func TestClearLaunchFailureReachesHook(t *testing.T) {
	launchErr := errors.New("no such binary")
	errs := make(chan error, 1)
	c := newTestCatcher(t, CatcherConfig{
		Launcher:   failingLauncher{err: launchErr},
		ClearHooks: &ClearHooks{OnError: func(err error) { errs <- err }},
	})
	if err := c.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() should not surface launch failures, got %v", err)
	}
	select {
	case err := <-errs:
		if !errors.Is(err, launchErr) {
			t.Errorf("OnError(%v), want %v", err, launchErr)
		}
	case <-time.After(testTimeout):
		t.Fatal("OnError was not called")
	}
	c.WaitForClearEnd(context.Background())
	if c.IsClearing() {
		t.Error("clearing should reset after a failed clear")
	}
}

func TestClearLockFile(t *testing.T) {
	fb := makeFakeLogBuffer()
	fb.Append(0, "x")
	codes := make(chan int, 1)
	c := newTestCatcher(t, CatcherConfig{
		Launcher:   fb,
		LockFile:   t.TempDir() + "/clear.lock",
		ClearHooks: &ClearHooks{OnComplete: func(code int) { codes <- code }},
	})
	c.Clear(context.Background())
	select {
	case code := <-codes:
		if code != 0 {
			t.Errorf("OnComplete(%d), want 0", code)
		}
	case <-time.After(testTimeout):
		t.Fatal("OnComplete was not called")
	}
	if fb.Len() != 0 {
		t.Error("buffer should be empty after clear")
	}
}

func TestClearLockFileFailure(t *testing.T) {
	errs := make(chan error, 1)
	c := newTestCatcher(t, CatcherConfig{
		Launcher:   makeFakeLogBuffer(),
		LockFile:   t.TempDir() + "/missing-dir/clear.lock",
		ClearHooks: &ClearHooks{OnError: func(err error) { errs <- err }},
	})
	c.Clear(context.Background())
	select {
	case <-errs:
	case <-time.After(testTimeout):
		t.Fatal("OnError was not called for a bad lock file")
	}
}

func TestClearLogStatic(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	errs := make(chan error, 1)
	ClearLog(context.Background(), &ClearHooks{OnError: func(err error) { errs <- err }})
	select {
	case err := <-errs:
		var launchErr *linesource.LaunchError
		if !errors.As(err, &launchErr) {
			t.Errorf("OnError(%v), want a launch error", err)
		}
	default:
		t.Fatal("ClearLog should report the missing binary through OnError")
	}
}

func counterTotal(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	fb := makeFakeLogBuffer()
	fb.Append(0, "a")
	fb.Append(0, "b")
	c := newTestCatcher(t, CatcherConfig{Launcher: fb, Metrics: MakeMetrics(reg)})

	rec := makeRecorder()
	c.Dump(context.Background(), rec)
	rec.untilTerminal(t)
	c.WaitForCaptureEnd(context.Background())

	if got := counterTotal(t, reg, "logcatcher_catcher_sessions_total"); got != 1 {
		t.Errorf("sessions_total = %v, want 1", got)
	}
	if got := counterTotal(t, reg, "logcatcher_catcher_lines_total"); got != 2 {
		t.Errorf("lines_total = %v, want 2", got)
	}
	if got := counterTotal(t, reg, "logcatcher_catcher_session_errors_total"); got != 0 {
		t.Errorf("session_errors_total = %v, want 0", got)
	}
}

func TestScopeForPid(t *testing.T) {
	ctx := context.Background()
	scope, err := ScopeForPid(ctx, os.Getpid())
	if err != nil {
		t.Fatalf("ScopeForPid(self) error: %v", err)
	}
	if scope.Pid() != os.Getpid() {
		t.Errorf("Pid() = %d, want %d", scope.Pid(), os.Getpid())
	}
	if scope, err := ScopeForPid(ctx, 0); err != nil || !scope.IsGlobal() {
		t.Errorf("ScopeForPid(0) = %v, %v; want global", scope, err)
	}
	if _, err := ScopeForPid(ctx, 1<<30); err == nil {
		t.Error("ScopeForPid() should fail for a pid that does not exist")
	}
}

func shCommand(script string) linesource.Command {
	return linesource.Command{
		Exec:       "sh",
		PrefixArgs: []string{"-c", script, "sh"},
		DumpFlag:   "-d",
	}
}

func TestDumpWithExecLauncher(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	c := newTestCatcher(t, CatcherConfig{Command: shCommand(`printf 'one\ntwo\nthree'`)})
	rec := makeRecorder()
	if err := c.Dump(context.Background(), rec); err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	events := rec.untilTerminal(t)
	if got := eventLines(events); !reflect.DeepEqual(got, []string{"one", "two", "three"}) {
		t.Errorf("lines = %q", got)
	}
	if last := events[len(events)-1]; last.Type != ds.EventFinished {
		t.Errorf("terminal = %v, want finished", last.Type)
	}
}

func TestCaptureWithExecLauncherStops(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	c := newTestCatcher(t, CatcherConfig{Command: shCommand(`echo ready; exec sleep 30`)})
	rec := makeRecorder()
	if err := c.StartCapture(context.Background(), rec); err != nil {
		t.Fatalf("StartCapture() error: %v", err)
	}
	rec.next(t)
	if ev := rec.next(t); ev.Type != ds.EventLine || ev.Line != "ready" {
		t.Fatalf("got %v %q, want line ready", ev.Type, ev.Line)
	}
	c.EndCapture()
	if ev := rec.next(t); ev.Type != ds.EventFinished {
		t.Errorf("event after stop = %v, want finished", ev.Type)
	}
}

func TestDumpLinesTail(t *testing.T) {
	fb := makeFakeLogBuffer()
	for _, l := range []string{"a", "b", "c", "d"} {
		fb.Append(0, l)
	}
	c := newTestCatcher(t, CatcherConfig{Launcher: fb})

	res, err := DumpLines(context.Background(), c, 2)
	if err != nil {
		t.Fatalf("DumpLines() error: %v", err)
	}
	if !reflect.DeepEqual(res.Lines, []string{"c", "d"}) || res.Dropped != 2 {
		t.Errorf("DumpLines() = %q dropped=%d, want [c d] dropped=2", res.Lines, res.Dropped)
	}
	if res.SessionId == "" || res.Err != nil {
		t.Errorf("DumpLines() session=%q err=%v", res.SessionId, res.Err)
	}

	res, err = DumpLines(context.Background(), c, 0)
	if err != nil || len(res.Lines) != 4 {
		t.Errorf("DumpLines(all) = %v, %v", res, err)
	}
}

func TestDumpLinesBusy(t *testing.T) {
	fb := makeFakeLogBuffer()
	c := newTestCatcher(t, CatcherConfig{Launcher: fb})
	rec := makeRecorder()
	if err := c.StartCapture(context.Background(), rec); err != nil {
		t.Fatalf("StartCapture() error: %v", err)
	}
	if _, err := DumpLines(context.Background(), c, 0); !errors.Is(err, ErrCaptureInProgress) {
		t.Errorf("DumpLines() during capture = %v, want ErrCaptureInProgress", err)
	}
	c.EndCapture()
	rec.untilTerminal(t)
}
