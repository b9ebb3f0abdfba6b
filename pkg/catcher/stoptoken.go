// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package catcher

import "sync/atomic"

// StopToken is a one-way stop flag for a capture session.
// It can be polled (IsSet) or waited on (Done).
type StopToken struct {
	set  atomic.Bool
	done chan struct{}
}

func MakeStopToken() *StopToken {
	return &StopToken{done: make(chan struct{})}
}

// Set returns true on the first call only.
func (st *StopToken) Set() bool {
	if !st.set.CompareAndSwap(false, true) {
		return false
	}
	close(st.done)
	return true
}

func (st *StopToken) IsSet() bool {
	return st.set.Load()
}

func (st *StopToken) Done() <-chan struct{} {
	return st.done
}
