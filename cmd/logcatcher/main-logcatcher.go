// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/outrigdev/logcatcher/pkg/base"
	"github.com/outrigdev/logcatcher/pkg/catcher"
	"github.com/outrigdev/logcatcher/pkg/config"
	"github.com/outrigdev/logcatcher/pkg/ds"
	"github.com/outrigdev/logcatcher/pkg/logcatline"
	"github.com/outrigdev/logcatcher/pkg/logger"
	"github.com/outrigdev/logcatcher/pkg/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// LogcatcherVersion is overridden at build time
var LogcatcherVersion = base.LogcatcherVersion

// LogcatcherBuildTime is the build timestamp
var LogcatcherBuildTime = ""

var cliLog = logrus.New()

type jsonLine struct {
	Line  string            `json:"line"`
	Entry *logcatline.Entry `json:"entry,omitempty"`
}

func init() {
	cliLog.SetOutput(os.Stderr)
	cliLog.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// loadCliConfig loads the config file and applies any flags that were set
func loadCliConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfigOrDefault()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("self") {
		cfg.Self, _ = flags.GetBool("self")
	}
	if flags.Changed("pid") {
		cfg.Pid, _ = flags.GetInt("pid")
	}
	if flags.Changed("logcat") {
		cfg.LogcatPath, _ = flags.GetString("logcat")
	}
	if flags.Changed("adb") {
		cfg.Adb, _ = flags.GetBool("adb")
	}
	if flags.Changed("serial") {
		cfg.AdbSerial, _ = flags.GetString("serial")
	}
	if flags.Changed("clear") {
		cfg.ClearOnStart, _ = flags.GetBool("clear")
	}
	if flags.Changed("loglevel") {
		levelStr, _ := flags.GetString("loglevel")
		level, ok := logger.ParseLevel(levelStr)
		if !ok {
			return nil, fmt.Errorf("unknown log level %q", levelStr)
		}
		cfg.LogLevel = level
	}
	if flags.Changed("listen") {
		cfg.ListenAddr, _ = flags.GetString("listen")
	}
	cliLog.SetLevel(toLogrusLevel(cfg.LogLevel))
	return cfg, nil
}

func toLogrusLevel(level logger.Level) logrus.Level {
	switch level {
	case logger.LevelVerbose:
		return logrus.TraceLevel
	case logger.LevelDebug:
		return logrus.DebugLevel
	case logger.LevelWarn:
		return logrus.WarnLevel
	case logger.LevelError:
		return logrus.ErrorLevel
	}
	return logrus.InfoLevel
}

// makeCatcher builds the engine from cfg, validating a local pid filter first
func makeCatcher(ctx context.Context, cfg *config.Config, hooks *catcher.ClearHooks) (*catcher.Catcher, *prometheus.Registry, error) {
	local := !cfg.Adb && cfg.AdbSerial == ""
	if local && !cfg.Self && cfg.Pid > 0 {
		if _, err := catcher.ScopeForPid(ctx, cfg.Pid); err != nil {
			return nil, nil, err
		}
	}
	sinkLogger := logrus.New()
	sinkLogger.SetOutput(os.Stderr)
	sinkLogger.SetLevel(logrus.TraceLevel)
	sinkLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := cfg.MakeLogger(logger.MakeLogrusSink(sinkLogger))

	reg := prometheus.NewRegistry()
	cc := cfg.CatcherConfig(log, catcher.MakeMetrics(reg))
	cc.ClearHooks = hooks
	c := catcher.MakeCatcher(cc)
	cliLog.Debugf("catcher ready scope=%s command=%v", c.Scope(), cc.Command.CaptureArgs(c.Scope().Pid(), false))
	return c, reg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func writeLine(w io.Writer, line string, asJson bool) {
	if !asJson {
		fmt.Fprintln(w, line)
		return
	}
	out := jsonLine{Line: line}
	if entry, ok := logcatline.Parse(line); ok {
		out.Entry = &entry
	}
	barr, _ := json.Marshal(out)
	fmt.Fprintln(w, string(barr))
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadCliConfig(cmd)
	if err != nil {
		return err
	}
	tail, _ := cmd.Flags().GetInt("tail")
	asJson, _ := cmd.Flags().GetBool("json")
	ctx, cancel := signalContext()
	defer cancel()
	c, _, err := makeCatcher(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := catcher.DumpLines(ctx, c, tail)
	if res != nil {
		for _, line := range res.Lines {
			writeLine(os.Stdout, line, asJson)
		}
		if res.Dropped > 0 {
			cliLog.Debugf("dropped %d lines before the last %d", res.Dropped, tail)
		}
		if res.Err != nil {
			return res.Err
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := loadCliConfig(cmd)
	if err != nil {
		return err
	}
	duration, _ := cmd.Flags().GetDuration("for")
	asJson, _ := cmd.Flags().GetBool("json")
	ctx, cancel := signalContext()
	defer cancel()
	if duration > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, duration)
		defer timeoutCancel()
	}
	c, _, err := makeCatcher(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	doneCh := make(chan error, 1)
	listener := ds.ListenerCallbacks{
		OnStart: func() {
			cliLog.Infof("capture started scope=%s", c.Scope())
		},
		OnLine: func(line string) {
			writeLine(os.Stdout, line, asJson)
		},
		OnFinished: func() {
			doneCh <- nil
		},
		OnError: func(err error) {
			doneCh <- err
		},
	}
	sessionId, err := c.StartCaptureSession(ctx, listener)
	if err != nil {
		return err
	}
	select {
	case err := <-doneCh:
		return err
	case <-ctx.Done():
		cliLog.Infof("ending capture %s", sessionId)
		c.EndSession(sessionId)
	}
	return <-doneCh
}

func runClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadCliConfig(cmd)
	if err != nil {
		return err
	}
	// a clear-first catcher would clear twice
	cfg.ClearOnStart = false
	ctx, cancel := signalContext()
	defer cancel()

	var clearErr error
	hooks := &catcher.ClearHooks{
		OnComplete: func(exitCode int) {
			if exitCode != 0 {
				clearErr = fmt.Errorf("clear exited with code %d", exitCode)
			}
		},
		OnError: func(err error) {
			clearErr = err
		},
	}
	c, _, err := makeCatcher(ctx, cfg, hooks)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Clear(ctx); err != nil {
		return err
	}
	c.WaitForClearEnd(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if clearErr != nil {
		return clearErr
	}
	cliLog.Infof("log buffer cleared")
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadCliConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	c, reg, err := makeCatcher(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	listener, err := web.MakeTCPListener(cfg.ListenAddr)
	if err != nil {
		return err
	}
	accessLog := cliLog.WriterLevel(logrus.DebugLevel)
	defer accessLog.Close()
	server := web.MakeServer(c, web.ServerOpts{
		Gatherer:  reg,
		AccessLog: accessLog,
		Logger:    cfg.MakeLogger(logger.MakeLogrusSink(cliLog)),
	})
	cliLog.Infof("serving %s on http://%s", c.Scope(), listener.Addr())
	return server.Serve(ctx, listener)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "logcatcher",
		Short: "logcatcher dumps, follows, and clears the device log buffer",
		Long: `logcatcher runs logcat (locally or through adb) and streams its lines.
Captures and clears are mutually exclusive: a capture waits for a running clear and vice versa.`,
		SilenceUsage: true,
	}

	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the current contents of the log buffer",
		Args:  cobra.NoArgs,
		RunE:  runDump,
	}
	dumpCmd.Flags().Int("tail", 0, "Only print the last N lines (0 = all)")
	dumpCmd.Flags().Bool("json", false, "Print one JSON object per line")

	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Follow the log buffer until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runCapture,
	}
	captureCmd.Flags().Duration("for", 0, "Stop after this long (0 = until interrupted)")
	captureCmd.Flags().Bool("json", false, "Print one JSON object per line")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the log buffer",
		Args:  cobra.NoArgs,
		RunE:  runClear,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve dump/clear over HTTP and live captures over WebSocket",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().String("listen", base.DefaultListenAddr, "Address to listen on")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of logcatcher",
		Run: func(cmd *cobra.Command, args []string) {
			if LogcatcherBuildTime != "" {
				fmt.Printf("%s+%s\n", LogcatcherVersion, LogcatcherBuildTime)
			} else {
				fmt.Printf("%s+dev\n", LogcatcherVersion)
			}
		},
	}

	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	// inherited by all subcommands, override the config file
	pflags := rootCmd.PersistentFlags()
	pflags.Bool("self", false, "Only lines from this process")
	pflags.Int("pid", 0, "Only lines from this program id")
	pflags.String("logcat", "", "Path to the logcat (or adb) executable")
	pflags.Bool("adb", false, "Run logcat on a device through adb")
	pflags.String("serial", "", "adb device serial (implies --adb)")
	pflags.Bool("clear", false, "Clear the log buffer before the first capture")
	pflags.String("loglevel", "", "Log level (verbose, debug, info, warn, error)")

	if err := rootCmd.Execute(); err != nil {
		cliLog.Error(err)
		os.Exit(1)
	}
}
