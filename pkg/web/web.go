// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

// Package web relays a catcher over HTTP and WebSocket.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/outrigdev/logcatcher/pkg/base"
	"github.com/outrigdev/logcatcher/pkg/catcher"
	"github.com/outrigdev/logcatcher/pkg/logcatline"
	"github.com/outrigdev/logcatcher/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Header constants
const (
	CacheControlHeaderKey     = "Cache-Control"
	CacheControlHeaderNoCache = "no-cache"

	ContentTypeHeaderKey = "Content-Type"
	ContentTypeJson      = "application/json"
)

const HttpReadTimeout = 5 * time.Second
const HttpWriteTimeout = 21 * time.Second
const HttpMaxHeaderBytes = 60000
const HttpTimeoutDuration = 21 * time.Second
const ShutdownTimeout = 5 * time.Second

const webTag = "WEB"

type WebFnType = func(http.ResponseWriter, *http.Request)

type WebFnOpts struct {
	AllowCaching bool
}

type ServerOpts struct {
	// Gatherer backs /metrics. nil => no metrics endpoint
	Gatherer prometheus.Gatherer
	// AccessLog receives combined-format request lines. nil => no access log
	AccessLog io.Writer
	// Logger nil => discard
	Logger *logger.Logger
}

type Server struct {
	catcher *catcher.Catcher
	opts    ServerOpts
	log     *logger.TaggedLogger

	lock  sync.Mutex
	conns map[string]*websocket.Conn // connId => conn
}

func MakeServer(c *catcher.Catcher, opts ServerOpts) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.MakeDiscardLogger()
	}
	return &Server{
		catcher: c,
		opts:    opts,
		log:     opts.Logger.Tag(webTag),
		conns:   make(map[string]*websocket.Conn),
	}
}

type jsonResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func WriteJsonError(w http.ResponseWriter, status int, errVal error) {
	w.Header().Set(ContentTypeHeaderKey, ContentTypeJson)
	w.WriteHeader(status)
	barr, _ := json.Marshal(jsonResponse{Error: errVal.Error()})
	w.Write(barr)
}

func WriteJsonSuccess(w http.ResponseWriter, data any) {
	barr, err := json.Marshal(jsonResponse{Success: true, Data: data})
	if err != nil {
		WriteJsonError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set(ContentTypeHeaderKey, ContentTypeJson)
	w.WriteHeader(http.StatusOK)
	w.Write(barr)
}

// statusForError maps engine errors to http status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, catcher.ErrIllegalState):
		return http.StatusConflict
	case errors.Is(err, catcher.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) WebFnWrap(opts WebFnOpts, fn WebFnType) WebFnType {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				s.log.Error("panic in handler %s: %v", r.URL.Path, rv)
				WriteJsonError(w, http.StatusInternalServerError, fmt.Errorf("internal server error"))
			}
		}()
		if !opts.AllowCaching {
			w.Header().Set(CacheControlHeaderKey, CacheControlHeaderNoCache)
		}
		fn(w, r)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJsonSuccess(w, map[string]any{
		"status":  "ok",
		"version": base.LogcatcherVersion,
		"time":    time.Now().UnixMilli(),
	})
}

type DumpResponse struct {
	SessionId string             `json:"sessionid"`
	Lines     []string           `json:"lines"`
	Dropped   int                `json:"dropped,omitempty"`
	Entries   []logcatline.Entry `json:"entries,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	tail := 0
	if tailStr := r.URL.Query().Get("tail"); tailStr != "" {
		n, err := strconv.Atoi(tailStr)
		if err != nil || n < 0 {
			WriteJsonError(w, http.StatusBadRequest, fmt.Errorf("invalid tail %q", tailStr))
			return
		}
		tail = n
	}
	res, err := catcher.DumpLines(r.Context(), s.catcher, tail)
	if err != nil {
		WriteJsonError(w, statusForError(err), err)
		return
	}
	rtn := DumpResponse{
		SessionId: res.SessionId,
		Lines:     res.Lines,
		Dropped:   res.Dropped,
	}
	if res.Err != nil {
		rtn.Error = res.Err.Error()
	}
	if r.URL.Query().Get("parse") == "1" {
		rtn.Entries = logcatline.ParseAll(res.Lines)
	}
	WriteJsonSuccess(w, rtn)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.catcher.Clear(r.Context()); err != nil {
		WriteJsonError(w, statusForError(err), err)
		return
	}
	s.catcher.WaitForClearEnd(r.Context())
	WriteJsonSuccess(w, map[string]any{"clearing": s.catcher.IsClearing()})
}

// Router builds the handler. The websocket route is outside the timeout handler,
// which cannot hijack connections.
func (s *Server) Router() http.Handler {
	gr := mux.NewRouter()
	api := mux.NewRouter()
	api.HandleFunc("/health", s.WebFnWrap(WebFnOpts{}, handleHealth))
	api.HandleFunc("/api/dump", s.WebFnWrap(WebFnOpts{}, s.handleDump)).Methods(http.MethodGet)
	api.HandleFunc("/api/clear", s.WebFnWrap(WebFnOpts{}, s.handleClear)).Methods(http.MethodPost)
	if s.opts.Gatherer != nil {
		api.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	timeoutHandler := http.TimeoutHandler(api, HttpTimeoutDuration, "Timeout")

	gr.HandleFunc("/ws/capture", s.HandleCaptureWs)
	gr.PathPrefix("/").Handler(timeoutHandler)

	var handler http.Handler = gr
	if os.Getenv(base.DevEnvName) == "1" {
		handler = handlers.CORS(handlers.AllowedOrigins([]string{"*"}))(handler)
	}
	if s.opts.AccessLog != nil {
		handler = handlers.CombinedLoggingHandler(s.opts.AccessLog, handler)
	}
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(handler)
}

func MakeTCPListener(addr string) (net.Listener, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	rtn, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error creating listener at %v: %w", addr, err)
	}
	return rtn, nil
}

// Serve blocks until ctx is done or the server fails. Open websocket captures are
// closed on shutdown.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		ReadTimeout:    HttpReadTimeout,
		WriteTimeout:   HttpWriteTimeout,
		MaxHeaderBytes: HttpMaxHeaderBytes,
		Handler:        s.Router(),
	}
	server.RegisterOnShutdown(s.closeConns)
	s.log.Info("listening on %s", listener.Addr())
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	<-errCh
	return err
}
