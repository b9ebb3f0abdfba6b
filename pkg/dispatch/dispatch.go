// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package dispatch redelivers listener events onto a designated execution context.
package dispatch

import (
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/outrigdev/logcatcher/pkg/ds"
	"github.com/outrigdev/logcatcher/pkg/logger"
	"github.com/outrigdev/logcatcher/pkg/panichandler"
)

// SerialExecutor runs functions one at a time, in submission order, on a single goroutine.
// A panicking function is recovered and logged, later functions still run.
type SerialExecutor struct {
	lock   sync.Mutex
	cond   *sync.Cond
	queue  *linkedlistqueue.Queue
	closed bool
	done   chan struct{}
	log    *logger.Logger
}

// MakeSerialExecutor starts the executor goroutine. log may be nil.
func MakeSerialExecutor(log *logger.Logger) *SerialExecutor {
	se := &SerialExecutor{
		queue: linkedlistqueue.New(),
		done:  make(chan struct{}),
		log:   log,
	}
	se.cond = sync.NewCond(&se.lock)
	go se.run()
	return se
}

// Execute queues fn. After Close, fn is dropped.
func (se *SerialExecutor) Execute(fn func()) {
	se.lock.Lock()
	defer se.lock.Unlock()
	if se.closed {
		return
	}
	se.queue.Enqueue(fn)
	se.cond.Signal()
}

// Close stops accepting work and blocks until the queued functions have run.
func (se *SerialExecutor) Close() {
	se.lock.Lock()
	se.closed = true
	se.cond.Broadcast()
	se.lock.Unlock()
	<-se.done
}

// Pending is the number of queued functions not yet started.
func (se *SerialExecutor) Pending() int {
	se.lock.Lock()
	defer se.lock.Unlock()
	return se.queue.Size()
}

func (se *SerialExecutor) next() (func(), bool) {
	se.lock.Lock()
	defer se.lock.Unlock()
	for se.queue.Empty() && !se.closed {
		se.cond.Wait()
	}
	val, ok := se.queue.Dequeue()
	if !ok {
		return nil, false
	}
	return val.(func()), true
}

func (se *SerialExecutor) run() {
	defer close(se.done)
	for {
		fn, ok := se.next()
		if !ok {
			return
		}
		se.runOne(fn)
	}
}

func (se *SerialExecutor) runOne(fn func()) {
	defer func() {
		panichandler.PanicHandler("dispatch:SerialExecutor", recover(), se.log)
	}()
	fn()
}

// InlineExecutor runs fn on the calling goroutine.
type InlineExecutor struct{}

func (InlineExecutor) Execute(fn func()) {
	fn()
}

// ProxyListener redelivers every event to Delegate through Exec.
type ProxyListener struct {
	Exec     ds.Executor
	Delegate ds.Listener
}

func MakeProxyListener(exec ds.Executor, delegate ds.Listener) *ProxyListener {
	return &ProxyListener{Exec: exec, Delegate: delegate}
}

func (pl *ProxyListener) OnEvent(ev ds.Event) {
	pl.Exec.Execute(func() {
		pl.Delegate.OnEvent(ev)
	})
}
