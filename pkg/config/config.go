// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"

	"github.com/outrigdev/logcatcher/pkg/base"
	"github.com/outrigdev/logcatcher/pkg/catcher"
	"github.com/outrigdev/logcatcher/pkg/ds"
	"github.com/outrigdev/logcatcher/pkg/linesource"
	"github.com/outrigdev/logcatcher/pkg/logger"
)

type Config struct {
	// LogcatPath overrides the line source executable ("logcat" or "adb")
	LogcatPath   string       `json:"logcatpath,omitempty"`
	Adb          bool         `json:"adb,omitempty"`
	AdbSerial    string       `json:"adbserial,omitempty"`
	Self         bool         `json:"self,omitempty"`
	Pid          int          `json:"pid,omitempty"`
	ClearOnStart bool         `json:"clearonstart,omitempty"`
	Workers      int          `json:"workers,omitempty"`
	LockFile     string       `json:"lockfile,omitempty"`
	LogLevel     logger.Level `json:"loglevel,omitempty"`
	Locale       string       `json:"locale,omitempty"`
	ListenAddr   string       `json:"listenaddr,omitempty"`
}

// getDefaultConfig returns a default configuration, dev mode turns on the engine trace
func getDefaultConfig(isDev bool) *Config {
	level := logger.LevelInfo
	if isDev {
		level = logger.LevelDebug
	}
	return &Config{
		Workers:    base.DefaultWorkers,
		LogLevel:   level,
		ListenAddr: base.DefaultListenAddr,
	}
}

// DefaultConfig returns the default configuration, honoring LOGCATCHER_DEV
func DefaultConfig() *Config {
	return getDefaultConfig(os.Getenv(base.DevEnvName) != "")
}

// Command builds the line source invocation
func (c *Config) Command() linesource.Command {
	cmd := linesource.DefaultCommand()
	if c.Adb || c.AdbSerial != "" {
		cmd = linesource.AdbCommand(c.AdbSerial)
	}
	if c.LogcatPath != "" {
		cmd = cmd.WithExec(c.LogcatPath)
	}
	return cmd
}

// Scope prefers Self over Pid, neither means global
func (c *Config) Scope() ds.Scope {
	if c.Self {
		return ds.SelfScope()
	}
	return ds.PidScope(c.Pid)
}

func (c *Config) MakeLogger(sink logger.Sink) *logger.Logger {
	return logger.MakeLogger(logger.Config{
		Level:  c.LogLevel,
		Locale: c.Locale,
		Sink:   sink,
	})
}

// CatcherConfig converts to the engine configuration. log and metrics may be nil.
func (c *Config) CatcherConfig(log *logger.Logger, metrics *catcher.Metrics) catcher.CatcherConfig {
	return catcher.CatcherConfig{
		Capture: ds.CaptureConfig{
			ClearBeforeStart: c.ClearOnStart,
			Scope:            c.Scope(),
		},
		Command:  c.Command(),
		Workers:  c.Workers,
		LockFile: c.LockFile,
		Logger:   log,
		Metrics:  metrics,
	}
}
