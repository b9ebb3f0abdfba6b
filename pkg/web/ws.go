// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/outrigdev/logcatcher/pkg/catcher"
	"github.com/outrigdev/logcatcher/pkg/ds"
	"github.com/outrigdev/logcatcher/pkg/logcatline"
)

const wsReadWaitTimeout = 30 * time.Second
const wsWriteWaitTimeout = 10 * time.Second
const wsPingPeriodTickTime = 10 * time.Second
const wsOutputBufSize = 100

const (
	WsTypeStarted  = "started"
	WsTypeLine     = "line"
	WsTypeFinished = "finished"
	WsTypeError    = "error"
)

var WebSocketUpgrader = websocket.Upgrader{
	ReadBufferSize:   4 * 1024,
	WriteBufferSize:  32 * 1024,
	HandshakeTimeout: 1 * time.Second,
	CheckOrigin:      func(r *http.Request) bool { return true },
}

type WsMessage struct {
	Type      string            `json:"type"`
	SessionId string            `json:"sessionid,omitempty"`
	Line      string            `json:"line,omitempty"`
	Entry     *logcatline.Entry `json:"entry,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func (m WsMessage) IsTerminal() bool {
	return m.Type == WsTypeFinished || m.Type == WsTypeError
}

func makeWsMessage(ev ds.Event, parse bool) WsMessage {
	msg := WsMessage{Type: ev.Type.String(), SessionId: ev.SessionId}
	switch ev.Type {
	case ds.EventLine:
		msg.Line = ev.Line
		if parse {
			if entry, ok := logcatline.Parse(ev.Line); ok {
				msg.Entry = &entry
			}
		}
	case ds.EventError:
		msg.Error = ev.Err.Error()
	}
	return msg
}

func (s *Server) registerConn(connId string, conn *websocket.Conn) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.conns[connId] = conn
}

func (s *Server) unregisterConn(connId string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.conns, connId)
}

func (s *Server) closeConns() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, conn := range s.conns {
		conn.Close()
	}
}

// NumConns is the number of open capture websockets.
func (s *Server) NumConns() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.conns)
}

func writeWsMessage(conn *websocket.Conn, msg any) error {
	barr, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWaitTimeout))
	return conn.WriteMessage(websocket.TextMessage, barr)
}

// HandleCaptureWs streams a live capture to the client until either side ends it.
func (s *Server) HandleCaptureWs(w http.ResponseWriter, r *http.Request) {
	if s.catcher.IsCapturing() {
		WriteJsonError(w, http.StatusConflict, catcher.ErrCaptureInProgress)
		return
	}
	parse := r.URL.Query().Get("parse") == "1"
	conn, err := WebSocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		s.log.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connId := uuid.New().String()
	s.registerConn(connId, conn)
	defer s.unregisterConn(connId)
	s.log.Debug("new capture connection: connid:%s", connId)

	outputCh := make(chan WsMessage, wsOutputBufSize)
	doneCh := make(chan struct{})
	defer close(doneCh)
	listener := ds.ListenerFunc(func(ev ds.Event) {
		select {
		case outputCh <- makeWsMessage(ev, parse):
		case <-doneCh:
		}
	})
	sessionId, err := s.catcher.StartCaptureSession(r.Context(), listener)
	if err != nil {
		writeWsMessage(conn, WsMessage{Type: WsTypeError, Error: err.Error()})
		return
	}
	closeCh := make(chan struct{})
	go s.readLoop(conn, closeCh, connId)
	if !s.writeLoop(conn, outputCh, closeCh, connId, sessionId) {
		s.catcher.EndSession(sessionId)
	}
}

// readLoop discards client messages and closes closeCh when the client goes away.
func (s *Server) readLoop(conn *websocket.Conn, closeCh chan struct{}, connId string) {
	defer close(closeCh)
	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(wsReadWaitTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadWaitTimeout))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.log.Debug("read loop done (%s): %v", connId, err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsReadWaitTimeout))
	}
}

// writeLoop returns true once the terminal message was written.
func (s *Server) writeLoop(conn *websocket.Conn, outputCh chan WsMessage, closeCh chan struct{}, connId string, sessionId string) bool {
	ticker := time.NewTicker(wsPingPeriodTickTime)
	defer ticker.Stop()
	for {
		select {
		case msg := <-outputCh:
			if err := writeWsMessage(conn, msg); err != nil {
				s.log.Debug("write loop error (%s): %v", connId, err)
				return msg.IsTerminal()
			}
			if msg.IsTerminal() {
				conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWaitTimeout))
				return true
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWaitTimeout)); err != nil {
				s.log.Debug("ping error (%s): %v", connId, err)
				return false
			}

		case <-closeCh:
			// client went away, stop the capture and keep draining until the terminal event
			closeCh = nil
			s.log.Debug("client closed (%s), ending capture %s", connId, sessionId)
			s.catcher.EndSession(sessionId)
		}
	}
}
