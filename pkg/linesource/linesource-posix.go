// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package linesource

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// the line source runs in its own process group so helpers it spawns die with it
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateProcess(proc *os.Process) error {
	err := unix.Kill(-proc.Pid, unix.SIGKILL)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	// group kill can fail with EPERM, fall back to the process itself
	return proc.Kill()
}
