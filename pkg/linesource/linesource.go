// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package linesource launches the external command that dumps or streams the
// shared log buffer as text lines.
package linesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/outrigdev/logcatcher/pkg/base"
	"github.com/outrigdev/logcatcher/pkg/utilfn"
)

// Command describes how to invoke the line source.
type Command struct {
	Exec       string
	PrefixArgs []string // inserted before the logcat args, e.g. "-s serial logcat" for adb
	ClearFlag  string
	DumpFlag   string
	PidFlag    string
}

func DefaultCommand() Command {
	return Command{
		Exec:      base.LogcatExec,
		ClearFlag: base.LogcatArgClear,
		DumpFlag:  base.LogcatArgDump,
		PidFlag:   base.LogcatArgPid,
	}
}

// AdbCommand runs logcat on a device through adb. serial may be empty.
func AdbCommand(serial string) Command {
	cmd := DefaultCommand()
	cmd.Exec = base.AdbExec
	if serial != "" {
		cmd.PrefixArgs = append(cmd.PrefixArgs, "-s", serial)
	}
	cmd.PrefixArgs = append(cmd.PrefixArgs, base.LogcatExec)
	return cmd
}

// WithExec returns a copy of the command using a different executable path.
func (c Command) WithExec(path string) Command {
	if strings.HasPrefix(path, "~") {
		path = utilfn.ExpandHomeDir(path)
	}
	c.Exec = path
	c.PrefixArgs = utilfn.CopyStrArr(c.PrefixArgs)
	return c
}

func (c Command) base() []string {
	argv := make([]string, 0, len(c.PrefixArgs)+4)
	argv = append(argv, c.Exec)
	argv = append(argv, c.PrefixArgs...)
	return argv
}

// CaptureArgs builds argv for a capture. pid <= 0 means no filter, bounded adds the dump flag.
func (c Command) CaptureArgs(pid int, bounded bool) []string {
	argv := c.base()
	if pid > 0 && c.PidFlag != "" {
		argv = append(argv, c.PidFlag, strconv.Itoa(pid))
	}
	if bounded && c.DumpFlag != "" {
		argv = append(argv, c.DumpFlag)
	}
	return argv
}

func (c Command) ClearArgs() []string {
	argv := c.base()
	if c.ClearFlag != "" {
		argv = append(argv, c.ClearFlag)
	}
	return argv
}

// Process is a running line source.
type Process interface {
	// Output is the line stream. Closing it unblocks a pending Read.
	Output() io.ReadCloser
	// Wait blocks until exit and returns the exit code (-1 if killed or unknown).
	// Safe to call concurrently with reads from Output.
	Wait() (int, error)
	// Terminate forcibly stops the process. Safe to call more than once.
	Terminate() error
	Pid() int
}

type Launcher interface {
	Launch(ctx context.Context, argv []string) (Process, error)
}

// ExecLauncher starts the line source as a child process.
// The process is killed when ctx is done.
type ExecLauncher struct {
	Env []string // nil => inherit
	Dir string
}

type LaunchError struct {
	Argv []string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("cannot launch %q: %v", e.Argv, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

func (l *ExecLauncher) Launch(ctx context.Context, argv []string) (Process, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, &LaunchError{Argv: argv, Err: errors.New("empty command")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &LaunchError{Argv: argv, Err: err}
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = l.Env
	cmd.Dir = l.Dir
	setSysProcAttr(cmd)
	proc := &execProcess{cmd: cmd}
	cmd.Cancel = proc.Terminate

	// a manual pipe (instead of StdoutPipe) lets Wait run while the output is still being read
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Argv: argv, Err: err}
	}
	cmd.Stdout = pw
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, &LaunchError{Argv: argv, Err: err}
	}
	pw.Close()
	proc.output = pr
	return proc, nil
}

type execProcess struct {
	cmd      *exec.Cmd
	output   *os.File
	killLock sync.Mutex
	killed   bool
}

func (p *execProcess) Output() io.ReadCloser {
	return p.output
}

func (p *execProcess) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	code := -1
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// non-zero exit is reported through the code
		return code, nil
	}
	return code, err
}

func (p *execProcess) Terminate() error {
	p.killLock.Lock()
	defer p.killLock.Unlock()
	if p.killed || p.cmd.Process == nil {
		return nil
	}
	p.killed = true
	err := terminateProcess(p.cmd.Process)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
