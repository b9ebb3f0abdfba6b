// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package base

// Line Source invocation
const LogcatExec = "logcat"
const LogcatArgClear = "-c"
const LogcatArgDump = "-d"
const LogcatArgPid = "--pid"
const AdbExec = "adb"

// PidNone means the capture is not filtered by program id
const PidNone = -1

// Environment variables
const ConfigJsonEnvName = "LOGCATCHER_CONFIGJSON"
const ConfigFileEnvName = "LOGCATCHER_CONFIGFILE"
const DevEnvName = "LOGCATCHER_DEV"

// Trace tag used by the capture engine
const CatcherTraceTag = "LOG:CATCHER"

const LogcatcherVersion = "v0.1.0"

// Worker pool size for capture/clear tasks (one reader plus one eraser)
const DefaultWorkers = 2

const ConfigFileName = "logcatcher.json"

// Default address for the web relay
const DefaultListenAddr = "127.0.0.1:5015"
