// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package panichandler

import (
	"fmt"
	"runtime/debug"

	"github.com/outrigdev/logcatcher/pkg/logger"
)

const panicTag = "PANIC"

// PanicError carries the recovered value and the stack at the point of recovery.
// %+v prints the stack after the message.
type PanicError struct {
	Where string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Where, e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func (e *PanicError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		fmt.Fprint(s, e.Error())
		if s.Flag('+') {
			fmt.Fprintf(s, "\n%s", e.Stack)
		}
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// PanicHandler converts a recovered value into an error, logging it to log if non-nil.
// Returns nil if recoverVal is nil.
//
//	defer func() {
//		panichandler.PanicHandler("reader", recover(), log)
//	}()
func PanicHandler(debugStr string, recoverVal any, log *logger.Logger) error {
	if recoverVal == nil {
		return nil
	}
	perr := &PanicError{Where: debugStr, Value: recoverVal, Stack: debug.Stack()}
	if log != nil {
		log.ErrorErr(panicTag, perr, "[panic] in "+debugStr)
	}
	return perr
}
