// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package utilfn

import (
	"bytes"
)

// LineBuf splits a byte stream into text lines. Lines longer than
// MaxLineLength are split into MaxLineLength chunks, each returned as its
// own line, so no text is lost.
type LineBuf struct {
	buf []byte
	// the current line has already emitted at least one chunk
	inLongLine bool
}

const MaxLineLength = 64 * 1024

func MakeLineBuf() *LineBuf {
	return &LineBuf{
		buf: make([]byte, 0, 4096),
	}
}

// GetPartialAndReset returns any unterminated trailing text (used at end of stream).
func (lb *LineBuf) GetPartialAndReset() string {
	rtn := trimLineEnd(lb.buf)
	lb.buf = lb.buf[:0]
	lb.inLongLine = false
	return rtn
}

// ProcessBuf returns the complete lines in readBuf without their line endings.
// Partial lines are retained for the next call.
func (lb *LineBuf) ProcessBuf(readBuf []byte) (lines []string) {
	pos := 0
	for pos < len(readBuf) {
		nlIdx := bytes.IndexByte(readBuf[pos:], '\n')
		end := len(readBuf)
		if nlIdx != -1 {
			end = pos + nlIdx
		}
		lb.buf = append(lb.buf, readBuf[pos:end]...)
		for len(lb.buf) >= MaxLineLength {
			lines = append(lines, string(lb.buf[:MaxLineLength]))
			lb.buf = append(lb.buf[:0], lb.buf[MaxLineLength:]...)
			lb.inLongLine = true
		}
		if nlIdx == -1 {
			return
		}
		// a line that ended exactly on a chunk boundary has nothing left to emit
		if rest := trimLineEnd(lb.buf); rest != "" || !lb.inLongLine {
			lines = append(lines, rest)
		}
		lb.buf = lb.buf[:0]
		lb.inLongLine = false
		pos = end + 1
	}
	return
}

func trimLineEnd(b []byte) string {
	return string(bytes.TrimRight(b, "\r"))
}
