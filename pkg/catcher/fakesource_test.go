// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package catcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/outrigdev/logcatcher/pkg/linesource"
)

type fakeEntry struct {
	seq  int
	pid  int
	text string
}

// fakeLogBuffer is an in-memory log buffer with a logcat-like launcher.
// It honours -c (clear), -d (dump) and --pid N.
type fakeLogBuffer struct {
	lock    sync.Mutex
	entries []fakeEntry
	nextSeq int
	notify  chan struct{}

	launches  []string
	launchErr error
	clearCode int
	// clearGate, if set, holds a clear until it is closed
	clearGate chan struct{}
	// streamErr, if set, is returned by the output after the existing lines
	streamErr error
}

func makeFakeLogBuffer() *fakeLogBuffer {
	return &fakeLogBuffer{notify: make(chan struct{})}
}

func (fb *fakeLogBuffer) Append(pid int, text string) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	fb.entries = append(fb.entries, fakeEntry{seq: fb.nextSeq, pid: pid, text: text})
	fb.nextSeq++
	close(fb.notify)
	fb.notify = make(chan struct{})
}

func (fb *fakeLogBuffer) Len() int {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	return len(fb.entries)
}

func (fb *fakeLogBuffer) Launches() []string {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	return slices.Clone(fb.launches)
}

func (fb *fakeLogBuffer) linesFrom(seq int, pid int) ([]fakeEntry, chan struct{}) {
	fb.lock.Lock()
	defer fb.lock.Unlock()
	var rtn []fakeEntry
	for _, e := range fb.entries {
		if e.seq >= seq && (pid <= 0 || e.pid == pid) {
			rtn = append(rtn, e)
		}
	}
	return rtn, fb.notify
}

type fakeArgs struct {
	clear bool
	dump  bool
	pid   int
}

func parseFakeArgs(argv []string) (fakeArgs, error) {
	var rtn fakeArgs
	for i := 1; i < len(argv); i++ {
		switch argv[i] {
		case "-c":
			rtn.clear = true
		case "-d":
			rtn.dump = true
		case "--pid":
			if i+1 >= len(argv) {
				return rtn, errors.New("--pid needs a value")
			}
			pid, err := strconv.Atoi(argv[i+1])
			if err != nil {
				return rtn, err
			}
			rtn.pid = pid
			i++
		default:
			return rtn, fmt.Errorf("unknown arg %q", argv[i])
		}
	}
	return rtn, nil
}

func (fb *fakeLogBuffer) Launch(ctx context.Context, argv []string) (linesource.Process, error) {
	args, err := parseFakeArgs(argv)
	if err != nil {
		return nil, err
	}
	fb.lock.Lock()
	fb.launches = append(fb.launches, strings.Join(argv, " "))
	launchErr := fb.launchErr
	fb.lock.Unlock()
	if launchErr != nil && !args.clear {
		return nil, launchErr
	}
	proc := makeFakeProcess()
	if args.clear {
		go fb.runClear(ctx, proc)
	} else {
		go fb.runStream(ctx, proc, args)
	}
	return proc, nil
}

func (fb *fakeLogBuffer) runClear(ctx context.Context, proc *fakeProcess) {
	defer proc.exit()
	if fb.clearGate != nil {
		select {
		case <-fb.clearGate:
		case <-proc.term:
			proc.code = -1
			return
		case <-ctx.Done():
			proc.code = -1
			return
		}
	}
	fb.lock.Lock()
	fb.entries = nil
	proc.code = fb.clearCode
	fb.lock.Unlock()
}

func (fb *fakeLogBuffer) runStream(ctx context.Context, proc *fakeProcess, args fakeArgs) {
	defer proc.exit()
	seq := 0
	for {
		entries, notify := fb.linesFrom(seq, args.pid)
		for _, e := range entries {
			if _, err := io.WriteString(proc.pw, e.text+"\n"); err != nil {
				proc.code = -1
				return
			}
			seq = e.seq + 1
		}
		if args.dump {
			if fb.streamErr != nil {
				proc.pw.CloseWithError(fb.streamErr)
				proc.code = 1
			}
			return
		}
		select {
		case <-notify:
		case <-proc.term:
			proc.code = -1
			return
		case <-ctx.Done():
			proc.code = -1
			return
		}
	}
}

type fakeProcess struct {
	pr       *io.PipeReader
	pw       *io.PipeWriter
	term     chan struct{}
	termOnce sync.Once
	exited   chan struct{}
	code     int
}

func makeFakeProcess() *fakeProcess {
	pr, pw := io.Pipe()
	return &fakeProcess{pr: pr, pw: pw, term: make(chan struct{}), exited: make(chan struct{})}
}

func (p *fakeProcess) exit() {
	p.pw.Close()
	close(p.exited)
}

func (p *fakeProcess) Output() io.ReadCloser {
	return p.pr
}

func (p *fakeProcess) Wait() (int, error) {
	<-p.exited
	return p.code, nil
}

func (p *fakeProcess) Terminate() error {
	p.termOnce.Do(func() {
		close(p.term)
		// a killed process can't finish a write
		p.pw.Close()
	})
	return nil
}

func (p *fakeProcess) Pid() int {
	return 1
}
