// HTTP and websocket API
//
// Serves the device endpoints the smart-home controller integrates
// with, plus a websocket that mirrors every attribute push to its
// subscribers. Slow subscribers drop updates rather than stall the
// control loop.
//
// Copyright (C) 2026  blindctl authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"blindctl/pkg/log"
)

// Config holds the API server configuration.
type Config struct {
	Addr    string // listen address, e.g. ":8080"
	Name    string // device name reported by the info endpoint
	Version string // software version reported by the info endpoint
}

// Server serves the bridge over HTTP and websocket.
type Server struct {
	bridge *Bridge
	cfg    Config

	httpServer *http.Server

	upgrader websocket.Upgrader
	clients  map[int64]*wsClient
	clientMu sync.RWMutex
	nextID   int64

	startTime time.Time
	logger    *log.Logger
}

// NewServer wires a server to the bridge and installs the broadcast
// hook.
func NewServer(b *Bridge, cfg Config) *Server {
	s := &Server{
		bridge:    b,
		cfg:       cfg,
		clients:   make(map[int64]*wsClient),
		startTime: time.Now(),
		logger:    log.GetLogger("api"),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // local installs serve panels on other origins
		},
	}
	b.OnUpdate(s.broadcast)
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/device/info", s.handleInfo)
	mux.HandleFunc("/device/status", s.handleStatus)
	mux.HandleFunc("/device/lift", s.handleLift)
	mux.HandleFunc("/websocket", s.handleWebSocket)
	return s.corsMiddleware(mux)
}

// Start serves until Stop is called. It blocks, so it runs on its own
// goroutine; a closed server returns http.ErrServerClosed.
func (s *Server) Start() error {
	s.httpServer = &http.Server{Addr: s.cfg.Addr, Handler: s.Handler()}
	s.logger.WithField("addr", s.cfg.Addr).Info("api server starting")
	return s.httpServer.ListenAndServe()
}

// Stop disconnects all websocket clients and closes the listener.
func (s *Server) Stop() error {
	s.clientMu.Lock()
	for _, c := range s.clients {
		c.close()
	}
	s.clients = make(map[int64]*wsClient)
	s.clientMu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]any{
		"name":    s.cfg.Name,
		"version": s.cfg.Version,
		"uptime":  time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.bridge.Status())
}

// liftRequest is the lift endpoint body: exactly one of percent or raw.
type liftRequest struct {
	Percent *float64 `json:"percent"`
	Raw     *float64 `json:"raw"`
}

func (s *Server) handleLift(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req liftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, err)
		return
	}

	var status Status
	switch {
	case req.Percent != nil && req.Raw != nil:
		s.writeJSONError(w, fmt.Errorf("specify percent or raw, not both"))
		return
	case req.Percent != nil:
		status = s.bridge.RequestPercent(clampUint8(*req.Percent))
	case req.Raw != nil:
		status = s.bridge.RequestRaw(clampUint16(*req.Raw))
	default:
		s.writeJSONError(w, fmt.Errorf("missing percent or raw"))
		return
	}
	s.writeJSON(w, status)
}

// clampUint8 rounds and saturates a JSON number into uint8 range.
// Values above 100 are accepted here and clamp in the percent remap.
func clampUint8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func clampUint16(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v >= 65535 {
		return 65535
	}
	return uint16(v + 0.5)
}

// corsMiddleware allows browser panels on other origins to use the API.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeJSONError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
}

// wsClient is one websocket subscriber.
type wsClient struct {
	id     int64
	conn   *websocket.Conn
	server *Server
	send   chan Update
	done   chan struct{}
	mu     sync.Mutex
}

// handleWebSocket upgrades the connection, seeds the subscriber with
// the current state and serves it until the peer goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Error("websocket upgrade failed")
		return
	}

	c := &wsClient{
		id:     atomic.AddInt64(&s.nextID, 1),
		conn:   conn,
		server: s,
		send:   make(chan Update, 64),
		done:   make(chan struct{}),
	}

	s.clientMu.Lock()
	s.clients[c.id] = c
	s.clientMu.Unlock()
	s.bridge.dm.ClientConnected()
	s.logger.WithField("client", c.id).Info("websocket client connected")

	go c.writePump()

	st := s.bridge.Status()
	c.trySend(Update{
		ActualRaw:     st.ActualRaw,
		ActualPercent: st.ActualPercent,
		Operation:     st.Operation,
	})

	c.readPump() // blocks until the connection closes
}

// broadcast queues an update to every connected client.
func (s *Server) broadcast(u Update) {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	for _, c := range s.clients {
		c.trySend(u)
	}
}

func (s *Server) removeClient(c *wsClient) {
	s.clientMu.Lock()
	delete(s.clients, c.id)
	s.clientMu.Unlock()
	s.bridge.dm.ClientDisconnected()
	s.logger.WithField("client", c.id).Info("websocket client disconnected")
}

// trySend queues an update without blocking. A full buffer drops the
// update; the next push carries newer state anyway.
func (c *wsClient) trySend(u Update) {
	select {
	case c.send <- u:
	case <-c.done:
	default:
		c.server.bridge.dm.RecordClientDrop()
		c.server.logger.WithField("client", c.id).Debug("send buffer full, dropping update")
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return // already closed
	default:
		close(c.done)
	}
	c.conn.Close()
}

// readPump discards inbound frames; the socket is broadcast-only. It
// unregisters the client when the peer disconnects.
func (c *wsClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.WithError(err).Debug("websocket read error")
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case u := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(u); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
