// Package gena implements the GENA event subscription engine: the
// SUBSCRIBE/RENEW/UNSUBSCRIBE client, a locally-hosted NOTIFY callback
// server, and timer-driven renewal. The HTTP server signals through Start's
// ready channel once its listener is bound, so callers can synchronize on
// it, and shuts down gracefully when Stop is called.
package gena

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// Server accepts inbound NOTIFY requests on a single path and dispatches
// each to the subscription its SID names. Unrecognized SIDs get 412
// Precondition Failed, which is also the trigger a publisher uses to learn
// a subscription needs replacing.
type Server struct {
	addr     string
	path     string
	server   *http.Server
	listener net.Listener

	mu        sync.RWMutex
	listeners map[string]chan<- Event // SID -> dispatch channel
}

// NewServer builds a callback server listening on addr (host:port, host may
// be empty for the wildcard address) and serving NOTIFY at path.
func NewServer(addr, path string) *Server {
	s := &Server{
		addr:      addr,
		path:      path,
		listeners: make(map[string]chan<- Event),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, s.handleNotify)
	s.server = &http.Server{Handler: mux}
	return s
}

// Start binds the listener and begins serving. ready, if non-nil, is closed
// once the listener is bound, letting callers (including tests) wait until
// the server is actually accepting connections before continuing.
func (s *Server) Start(ready chan<- struct{}) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen gena callback: %w", err)
	}
	s.listener = listener
	if ready != nil {
		close(ready)
	}

	slog.Info("gena: callback server starting", "addr", listener.Addr().String(), "path", s.path)
	err = s.server.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("gena: callback server stopping")
	return s.server.Shutdown(ctx)
}

// CallbackURL returns the URL a SUBSCRIBE's CALLBACK header should carry,
// given the address external peers should use to reach this server (which
// may differ from the bind address).
func (s *Server) CallbackURL(externalHost string) string {
	return "http://" + externalHost + s.path
}

// register associates sid with a dispatch channel. Replaces any existing
// registration for the same SID.
func (s *Server) register(sid string, ch chan<- Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[sid] = ch
}

// unregister removes sid's dispatch channel.
func (s *Server) unregister(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, sid)
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != "NOTIFY" {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !strings.EqualFold(r.Header.Get("NT"), "upnp:event") || !strings.EqualFold(r.Header.Get("NTS"), "upnp:propchange") {
		http.Error(w, "bad NT/NTS", http.StatusBadRequest)
		return
	}

	sid := r.Header.Get("SID")
	if sid == "" {
		http.Error(w, "missing SID", http.StatusBadRequest)
		return
	}

	s.mu.RLock()
	ch, ok := s.listeners[sid]
	s.mu.RUnlock()
	if !ok {
		// Unrecognized SID is the publisher-visible signal that this
		// subscription no longer exists here.
		http.Error(w, "unknown subscription", http.StatusPreconditionFailed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("gena: failed to read NOTIFY body", "sid", sid, "err", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	props, err := parsePropertySet(body)
	if err != nil {
		// Malformed NOTIFY body: logged and dropped, never surfaced to the
		// subscriber.
		slog.Warn("gena: malformed NOTIFY body", "sid", sid, "err", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	seq, _ := strconv.Atoi(r.Header.Get("SEQ"))
	event := Event{SID: sid, SEQ: seq, Properties: props}

	select {
	case ch <- event:
	default:
		slog.Warn("gena: event dropped, subscriber not keeping up", "sid", sid)
	}

	w.WriteHeader(http.StatusOK)
}
