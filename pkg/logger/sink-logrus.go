// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// LogrusSink writes lines through logrus with the tag as a field.
// Level filtering is left to the Logger, so the logrus logger should be at TraceLevel.
type LogrusSink struct {
	Logger *logrus.Logger
}

// MakeLogrusSink wraps lr, or a new stderr logger at TraceLevel if lr is nil.
func MakeLogrusSink(lr *logrus.Logger) *LogrusSink {
	if lr == nil {
		lr = logrus.New()
		lr.SetOutput(os.Stderr)
		lr.SetLevel(logrus.TraceLevel)
		lr.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return &LogrusSink{Logger: lr}
}

func (s *LogrusSink) WriteLine(level Level, tag string, msg string) {
	s.Logger.WithField("tag", tag).Log(toLogrusLevel(level), msg)
}

func toLogrusLevel(level Level) logrus.Level {
	switch level {
	case LevelVerbose:
		return logrus.TraceLevel
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	}
	return logrus.InfoLevel
}
