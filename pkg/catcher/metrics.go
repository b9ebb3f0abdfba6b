// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package catcher

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "logcatcher"

const (
	ModeDump    = "dump"
	ModeCapture = "capture"

	ErrKindLaunch = "launch"
	ErrKindStream = "stream"
	ErrKindPanic  = "panic"

	ClearResultOk      = "ok"
	ClearResultNonZero = "nonzero"
	ClearResultError   = "error"
)

// Metrics counts engine activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Sessions      *prometheus.CounterVec
	Lines         prometheus.Counter
	SessionErrors *prometheus.CounterVec
	Clears        *prometheus.CounterVec
}

// MakeMetrics builds the counters and registers them with reg (skipped if reg is nil).
func MakeMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "catcher",
			Name:      "sessions_total",
			Help:      "Capture sessions started, by mode",
		}, []string{"mode"}),
		Lines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "catcher",
			Name:      "lines_total",
			Help:      "Log lines delivered to listeners",
		}),
		SessionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "catcher",
			Name:      "session_errors_total",
			Help:      "Capture sessions that ended with an error, by kind",
		}, []string{"kind"}),
		Clears: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "catcher",
			Name:      "clears_total",
			Help:      "Log buffer clears, by result",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.Sessions, m.Lines, m.SessionErrors, m.Clears)
	}
	return m
}

func (m *Metrics) sessionStarted(mode string) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(mode).Inc()
}

func (m *Metrics) lineDelivered() {
	if m == nil {
		return
	}
	m.Lines.Inc()
}

func (m *Metrics) sessionFailed(kind string) {
	if m == nil {
		return
	}
	m.SessionErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) clearDone(result string) {
	if m == nil {
		return
	}
	m.Clears.WithLabelValues(result).Inc()
}
