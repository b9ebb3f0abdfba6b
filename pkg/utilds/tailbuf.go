// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package utilds

import "sync"

// TailBuf keeps the last MaxSize elements written to it.
// It grows on demand up to MaxSize, then overwrites the oldest element.
type TailBuf[T any] struct {
	lock    sync.Mutex
	maxSize int
	buf     []T
	head    int
	size    int
	dropped int
}

// MakeTailBuf returns a TailBuf holding at most maxSize elements. maxSize <= 0 means unbounded.
func MakeTailBuf[T any](maxSize int) *TailBuf[T] {
	return &TailBuf[T]{maxSize: maxSize}
}

// Write appends an element, returning true if the oldest element was kicked out.
func (tb *TailBuf[T]) Write(elem T) bool {
	tb.lock.Lock()
	defer tb.lock.Unlock()

	if tb.maxSize <= 0 {
		tb.buf = append(tb.buf, elem)
		tb.size++
		return false
	}
	if tb.size == tb.maxSize {
		tb.buf[tb.head] = elem
		tb.head = (tb.head + 1) % len(tb.buf)
		tb.dropped++
		return true
	}
	if tb.size == len(tb.buf) {
		newBuf := make([]T, max(min(tb.size*2, tb.maxSize), 1))
		n := copy(newBuf, tb.buf[tb.head:])
		copy(newBuf[n:], tb.buf[:tb.head])
		tb.buf = newBuf
		tb.head = 0
	}
	tb.buf[(tb.head+tb.size)%len(tb.buf)] = elem
	tb.size++
	return false
}

// Snapshot returns the retained elements oldest first.
func (tb *TailBuf[T]) Snapshot() []T {
	tb.lock.Lock()
	defer tb.lock.Unlock()

	rtn := make([]T, tb.size)
	for i := 0; i < tb.size; i++ {
		rtn[i] = tb.buf[(tb.head+i)%len(tb.buf)]
	}
	return rtn
}

func (tb *TailBuf[T]) Size() int {
	tb.lock.Lock()
	defer tb.lock.Unlock()
	return tb.size
}

// Dropped is the number of elements overwritten so far.
func (tb *TailBuf[T]) Dropped() int {
	tb.lock.Lock()
	defer tb.lock.Unlock()
	return tb.dropped
}
