// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package catcher

import (
	"context"
	"fmt"

	"github.com/outrigdev/logcatcher/pkg/ds"
	"github.com/shirou/gopsutil/v4/process"
)

// ScopeForPid returns a scope filtering by pid after checking the process exists.
// pid <= 0 gives the global scope.
func ScopeForPid(ctx context.Context, pid int) (ds.Scope, error) {
	if pid <= 0 {
		return ds.GlobalScope(), nil
	}
	exists, err := process.PidExistsWithContext(ctx, int32(pid))
	if err != nil {
		return ds.Scope{}, fmt.Errorf("checking pid %d: %w", pid, err)
	}
	if !exists {
		return ds.Scope{}, fmt.Errorf("no process with pid %d", pid)
	}
	return ds.PidScope(pid), nil
}
