// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logcatline parses logcat output lines ("threadtime" and "brief" formats).
package logcatline

import (
	"regexp"
	"strconv"

	"github.com/outrigdev/logcatcher/pkg/logger"
)

const (
	FormatThreadTime = "threadtime"
	FormatBrief      = "brief"
	FormatLoose      = "loose"
)

// 08-14 12:01:02.345  1234  1250 I ActivityManager: Start proc
var threadTimeRe = regexp.MustCompile(`^(\d\d-\d\d\s+\d\d:\d\d:\d\d\.\d+)\s+(\d+)\s+(\d+)\s+([VDIWEFA])\s+([^:]*?)\s*:\s?(.*)$`)

// I/ActivityManager(  1234): Start proc
var briefRe = regexp.MustCompile(`^([VDIWEFA])/([^(]*?)\s*\(\s*(\d+)\)\s*:\s?(.*)$`)

// anything with a lone priority letter followed by "TAG:"
var looseRe = regexp.MustCompile(`^(?:.*\s)?([VDIWEFA])\s+([^:\s][^:]*?)\s*:\s?(.*)$`)

type Entry struct {
	Format   string       `json:"format"`
	Time     string       `json:"time,omitempty"`
	Pid      int          `json:"pid,omitempty"`
	Tid      int          `json:"tid,omitempty"`
	Priority string       `json:"priority"`
	Level    logger.Level `json:"level"`
	Tag      string       `json:"tag"`
	Message  string       `json:"message"`
}

// Parse extracts the fields of a logcat line. Returns false for lines in no known
// format, e.g. the "--------- beginning of main" separators.
func Parse(line string) (Entry, bool) {
	if m := threadTimeRe.FindStringSubmatch(line); m != nil {
		pid, _ := strconv.Atoi(m[2])
		tid, _ := strconv.Atoi(m[3])
		return makeEntry(FormatThreadTime, m[4], m[5], m[6], m[1], pid, tid), true
	}
	if m := briefRe.FindStringSubmatch(line); m != nil {
		pid, _ := strconv.Atoi(m[3])
		return makeEntry(FormatBrief, m[1], m[2], m[4], "", pid, 0), true
	}
	if m := looseRe.FindStringSubmatch(line); m != nil {
		return makeEntry(FormatLoose, m[1], m[2], m[3], "", 0, 0), true
	}
	return Entry{}, false
}

func makeEntry(format string, priority string, tag string, msg string, ts string, pid int, tid int) Entry {
	level, _ := logger.ParseLevel(priority)
	return Entry{
		Format:   format,
		Time:     ts,
		Pid:      pid,
		Tid:      tid,
		Priority: priority,
		Level:    level,
		Tag:      tag,
		Message:  msg,
	}
}

// ParseAll parses every line, keeping only the ones that match.
func ParseAll(lines []string) []Entry {
	rtn := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if e, ok := Parse(line); ok {
			rtn = append(rtn, e)
		}
	}
	return rtn
}
