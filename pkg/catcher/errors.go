// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package catcher

import (
	"errors"
	"fmt"
)

// ErrIllegalState marks calls made in the wrong state. Never retried.
var ErrIllegalState = errors.New("illegal state")

var (
	ErrCaptureInProgress = fmt.Errorf("%w: capture already in progress", ErrIllegalState)
	ErrNotCapturing      = fmt.Errorf("%w: no capture in progress", ErrIllegalState)
	ErrClearInProgress   = fmt.Errorf("%w: clear already in progress", ErrIllegalState)
)

var ErrClosed = errors.New("catcher is closed")
