// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/go-jsenv"
	"github.com/joeycumines/go-jsenv/inspector"
	"github.com/joeycumines/go-jsenv/logging"
	"golang.org/x/net/websocket"
)

const (
	// ProtocolVersion is reported by /json/version.
	ProtocolVersion = "1.3"

	pagePrefix = "/devtools/page/"
	logTag     = "cdp"
)

// ErrClosed is returned by [Server.AddTarget] after [Server.Close].
var ErrClosed = errors.New("cdp: server closed")

// Server is an [http.Handler] serving debug targets. Create it with
// [NewServer].
type Server struct {
	opts        *serverOptions
	targets     map[string]*Target
	nextSession atomic.Int64
	mu          sync.RWMutex
	closed      bool
}

// Target is a debuggable execution context served by a [Server].
type Target struct {
	server *Server
	bridge *inspector.Bridge
	conns  map[int]*conn
	ID     string
	Title  string
	URL    string
	mu     sync.Mutex
	served bool
}

type conn struct {
	ws        *websocket.Conn
	sessionID int
}

// targetDescriptor is an entry of /json/list.
type targetDescriptor struct {
	Description          string `json:"description"`
	DevtoolsFrontendURL  string `json:"devtoolsFrontendUrl"`
	ID                   string `json:"id"`
	Title                string `json:"title"`
	Type                 string `json:"type"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// NewServer returns a server with no targets.
func NewServer(opts ...Option) (*Server, error) {
	cfg, err := resolveServerOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Server{
		opts:    cfg,
		targets: make(map[string]*Target),
	}, nil
}

// AddTarget creates a target with a new bridge. The caller attaches an
// engine to [Target.Bridge], and the bridge is destroyed by
// [Server.RemoveTarget] or [Server.Close].
func (s *Server) AddTarget(title, url string, opts ...inspector.Option) (*Target, error) {
	t := &Target{
		server: s,
		conns:  make(map[int]*conn),
		ID:     uuid.NewString(),
		Title:  title,
		URL:    url,
	}
	bridge, err := inspector.New(0, (*peer)(t), opts...)
	if err != nil {
		return nil, err
	}
	t.bridge = bridge

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		bridge.Destroy()
		return nil, ErrClosed
	}
	s.targets[t.ID] = t
	s.mu.Unlock()

	logging.L().Info().
		Str("tag", logTag).
		Str("target", t.ID).
		Str("title", title).
		Log("target added")
	return t, nil
}

// Target returns the target with id, or nil.
func (s *Server) Target(id string) *Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.targets[id]
}

// RemoveTarget destroys the bridge of the target with id, disconnecting its
// clients. It reports whether the target existed.
func (s *Server) RemoveTarget(id string) bool {
	s.mu.Lock()
	t, ok := s.targets[id]
	delete(s.targets, id)
	s.mu.Unlock()
	if ok {
		t.bridge.Destroy()
	}
	return ok
}

// Close removes every target. It does not stop any [http.Server] serving s.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	targets := s.targets
	s.targets = make(map[string]*Target)
	s.mu.Unlock()
	for _, t := range targets {
		t.bridge.Destroy()
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch path := strings.TrimSuffix(r.URL.Path, "/"); {
	case path == "/json/version":
		s.serveJSON(w, r, map[string]string{
			"Browser":          "jsenv/" + strconv.Itoa(jsenv.Version),
			"Protocol-Version": ProtocolVersion,
		})
	case path == "/json" || path == "/json/list":
		s.serveJSON(w, r, s.descriptors(r.Host))
	case strings.HasPrefix(path, pagePrefix):
		t := s.Target(strings.TrimPrefix(path, pagePrefix))
		if t == nil {
			http.NotFound(w, r)
			return
		}
		websocket.Server{
			// devtools frontends send assorted origins
			Handshake: func(*websocket.Config, *http.Request) error { return nil },
			Handler:   t.serve,
		}.ServeHTTP(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) serveJSON(w http.ResponseWriter, r *http.Request, v any) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.L().Debug().
			Str("tag", logTag).
			Err(err).
			Log("discovery response failed")
	}
}

func (s *Server) descriptors(host string) []targetDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]targetDescriptor, 0, len(s.targets))
	for _, t := range s.targets {
		ws := host + pagePrefix + t.ID
		list = append(list, targetDescriptor{
			Description:          "jsenv instance",
			DevtoolsFrontendURL:  "devtools://devtools/bundled/js_app.html?experiments=true&v8only=true&ws=" + ws,
			ID:                   t.ID,
			Title:                t.Title,
			Type:                 "node",
			URL:                  t.URL,
			WebSocketDebuggerURL: "ws://" + ws,
		})
	}
	slices.SortFunc(list, func(a, b targetDescriptor) int { return strings.Compare(a.ID, b.ID) })
	return list
}

// Bridge returns the bridge of t.
func (t *Target) Bridge() *inspector.Bridge { return t.bridge }

// Connections returns the number of connected clients, at most one.
func (t *Target) Connections() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// serve runs a client connection. A target has one active client, so a new
// connection supersedes any previous one, and every connection after the
// first is a frontend reload.
func (t *Target) serve(ws *websocket.Conn) {
	s := t.server
	c := &conn{ws: ws, sessionID: int(s.nextSession.Add(1))}
	t.mu.Lock()
	reload := t.served
	t.served = true
	superseded := make([]*conn, 0, len(t.conns))
	for id, prev := range t.conns {
		superseded = append(superseded, prev)
		delete(t.conns, id)
	}
	t.conns[c.sessionID] = c
	t.mu.Unlock()
	defer t.disconnect(c)

	for _, prev := range superseded {
		_ = prev.ws.Close()
		logging.L().Info().
			Str("tag", logTag).
			Str("target", t.ID).
			Int("session", prev.sessionID).
			Int("by", c.sessionID).
			Log("client superseded")
	}
	logging.L().Info().
		Str("tag", logTag).
		Str("target", t.ID).
		Int("session", c.sessionID).
		Log("client connected")
	if reload {
		t.bridge.OnFrontendReload()
	}

	ctx := ws.Request().Context()
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			if !errors.Is(err, io.EOF) {
				logging.L().Debug().
					Str("tag", logTag).
					Int("session", c.sessionID).
					Err(err).
					Log("receive failed")
			}
			return
		}
		if !s.wait(ctx, c.sessionID) || !t.active(c) {
			return
		}
		t.bridge.HandleInboundMessage(c.sessionID, msg)
	}
}

// wait blocks until the limiter admits a message for the session.
func (s *Server) wait(ctx context.Context, sessionID int) bool {
	for {
		next, ok := s.opts.limiter.Allow(sessionID)
		if ok {
			return true
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

func (t *Target) active(c *conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conns[c.sessionID] == c
}

func (t *Target) disconnect(c *conn) {
	t.mu.Lock()
	delete(t.conns, c.sessionID)
	t.mu.Unlock()
	_ = c.ws.Close()
	logging.L().Info().
		Str("tag", logTag).
		Str("target", t.ID).
		Int("session", c.sessionID).
		Log("client disconnected")
}

// peer is the [inspector.Peer] of a target's bridge.
type peer Target

func (p *peer) SendMessage(sessionID, _ int, message string) {
	t := (*Target)(p)
	t.mu.Lock()
	c := t.conns[sessionID]
	t.mu.Unlock()
	if c == nil {
		return
	}
	if d := t.server.opts.writeTimeout; d > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(d))
	}
	if err := websocket.Message.Send(c.ws, message); err != nil {
		logging.L().Warning().
			Str("tag", logTag).
			Int("session", sessionID).
			Err(err).
			Log("send failed, disconnecting")
		_ = c.ws.Close()
	}
}

// Release disconnects every client.
func (p *peer) Release() {
	t := (*Target)(p)
	t.mu.Lock()
	conns := make([]*conn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()
	for _, c := range conns {
		_ = c.ws.Close()
	}
}
