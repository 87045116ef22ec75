package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"zendex/pkg/provider"
	"zendex/pkg/wallet"
	"zendex/pkg/watcher"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"
)

//go:embed bridge.html
var bridgePage []byte

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	watcher *watcher.Watcher
	bridge  *provider.Bridge
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	mux     *http.ServeMux
}

// NewServer builds the API server. bridge may be nil when the wallet is not
// reached through a browser page.
func NewServer(w *watcher.Watcher, bridge *provider.Bridge) *Server {
	s := &Server{
		watcher: w,
		bridge:  bridge,
		clients: make(map[*websocket.Conn]bool),
		mux:     http.NewServeMux(),
	}
	s.routes()
	if bridge != nil {
		// A page that attaches may carry an already-authorized account.
		bridge.OnAttach(func() { w.Restore(context.Background()) })
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /api/session", s.handleSession)
	s.mux.HandleFunc("POST /api/connect", s.handleConnect)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/watch/{symbol}", s.handleWatch)
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("GET /bridge", s.handleBridge)
}

// Handler exposes the routes, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start(port int) error {
	go s.listenToWatcher()

	log.Info("API server listening", "addr", fmt.Sprintf("http://localhost:%d", port))
	return http.ListenAndServe(fmt.Sprintf(":%d", port), s.mux)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(bridgePage)
}

func (s *Server) snapshot() map[string]interface{} {
	return map[string]interface{}{
		"session": s.watcher.GetSession(),
		"status":  s.watcher.GetStatus(),
		"network": s.watcher.Config().Network,
		"bridge":  s.bridge.Available(),
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	out := s.watcher.Connect(r.Context())
	if out.OK() {
		writeJSON(w, http.StatusOK, map[string]interface{}{"session": out.Session})
		return
	}

	code := http.StatusBadGateway
	switch {
	case errors.Is(out.Err, wallet.ErrHandshakeInProgress):
		code = http.StatusConflict
	case errors.Is(out.Err, wallet.ErrProviderUnavailable):
		code = http.StatusServiceUnavailable
	case errors.Is(out.Err, wallet.ErrUserRejected):
		code = http.StatusForbidden
	}
	writeJSON(w, code, map[string]interface{}{"session": out.Session, "error": out.Reason})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.watcher.Refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": s.watcher.GetSession()})
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if err := s.watcher.WatchAsset(r.Context(), symbol); err != nil {
		code := http.StatusBadGateway
		switch {
		case errors.Is(err, watcher.ErrUnknownToken):
			code = http.StatusNotFound
		case errors.Is(err, wallet.ErrNotConnected):
			code = http.StatusConflict
		}
		writeJSON(w, code, map[string]interface{}{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"symbol": symbol})
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		http.NotFound(w, r)
		return
	}
	if s.bridge.Available() {
		http.Error(w, provider.ErrBridgeBusy.Error(), http.StatusConflict)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	if err := s.bridge.Attach(conn); err != nil {
		log.Debug("Wallet bridge closed", "err", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	// Send initial state
	initialData := map[string]interface{}{
		"type": "initial",
		"data": s.snapshot(),
	}
	s.mu.Lock()
	err = conn.WriteJSON(initialData)
	s.mu.Unlock()
	if err != nil {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) listenToWatcher() {
	sub := s.watcher.Subscribe()
	defer s.watcher.Unsubscribe(sub)

	for event := range sub {
		s.broadcast(event)
	}
}

func (s *Server) broadcast(event watcher.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}
